package consist

import (
	"fmt"

	"railkit/validation"
)

// WagonCategory 车厢类别
type WagonCategory string

const (
	CategoryPassenger WagonCategory = "passenger"
	CategoryGoods     WagonCategory = "goods"
	CategorySleeping  WagonCategory = "sleeping"
	CategoryDining    WagonCategory = "dining"
	CategoryBaggage   WagonCategory = "baggage"
)

// WagonCategories 全部合法车厢类别
func WagonCategories() []WagonCategory {
	return []WagonCategory{CategoryPassenger, CategoryGoods, CategorySleeping, CategoryDining, CategoryBaggage}
}

func (c WagonCategory) String() string { return string(c) }

// ParseWagonCategory 解析车厢类别
func ParseWagonCategory(s string) (WagonCategory, error) {
	c := WagonCategory(s)
	if err := c.Validate(); err != nil {
		return "", err
	}
	return c, nil
}

// Validate 校验车厢类别
func (c WagonCategory) Validate() error {
	valid := make([]string, 0, 5)
	for _, v := range WagonCategories() {
		valid = append(valid, string(v))
	}
	return validation.ValidateEnum(string(c), "车厢类别", valid)
}

// WagonSpec 车厢构造参数
type WagonSpec struct {
	Attributes
	Category WagonCategory
}

// Wagon 车厢，不提供牵引
type Wagon struct {
	element
	category WagonCategory
}

// NewWagon 创建车厢，序列号由 src 提供
func NewWagon(src SerialSource, spec WagonSpec) (*Wagon, error) {
	if err := spec.Category.Validate(); err != nil {
		return nil, err
	}
	w := &Wagon{category: spec.Category}
	if err := w.element.init(src, spec.Attributes); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Wagon) Kind() ElementKind       { return KindWagon }
func (w *Wagon) Category() WagonCategory { return w.category }

// Spec 返回构造参数，用于持久化
func (w *Wagon) Spec() WagonSpec {
	return WagonSpec{Attributes: w.attrs, Category: w.category}
}

func (w *Wagon) String() string {
	return fmt.Sprintf("Wagon(%s, category=%s)", w.describe(), w.category)
}
