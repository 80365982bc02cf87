package consist

import (
	"fmt"

	"railkit/validation"
)

// DriveType 机车驱动类型
type DriveType string

const (
	DriveDiesel   DriveType = "diesel"
	DriveElectric DriveType = "electric"
	DriveSteam    DriveType = "steam"
	DriveHybrid   DriveType = "hybrid"
)

// DriveTypes 全部合法驱动类型
func DriveTypes() []DriveType {
	return []DriveType{DriveDiesel, DriveElectric, DriveSteam, DriveHybrid}
}

func (d DriveType) String() string { return string(d) }

// ParseDriveType 解析驱动类型
func ParseDriveType(s string) (DriveType, error) {
	d := DriveType(s)
	if err := d.Validate(); err != nil {
		return "", err
	}
	return d, nil
}

// Validate 校验驱动类型
func (d DriveType) Validate() error {
	valid := make([]string, 0, 4)
	for _, v := range DriveTypes() {
		valid = append(valid, string(v))
	}
	return validation.ValidateEnum(string(d), "驱动类型", valid)
}

// LocomotiveSpec 机车构造参数
type LocomotiveSpec struct {
	Attributes
	DriveType DriveType
	// TractivePower 在自重之外还能牵引的重量（kg）
	TractivePower int
}

// Locomotive 机车，提供牵引能力
type Locomotive struct {
	element
	driveType     DriveType
	tractivePower int
}

// NewLocomotive 创建机车，序列号由 src 提供
func NewLocomotive(src SerialSource, spec LocomotiveSpec) (*Locomotive, error) {
	if err := validation.First(
		spec.DriveType.Validate(),
		validation.ValidateNonNegative(spec.TractivePower, "牵引功率"),
	); err != nil {
		return nil, err
	}
	l := &Locomotive{
		driveType:     spec.DriveType,
		tractivePower: spec.TractivePower,
	}
	if err := l.element.init(src, spec.Attributes); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Locomotive) Kind() ElementKind    { return KindLocomotive }
func (l *Locomotive) DriveType() DriveType { return l.driveType }

// TractivePower 额定牵引功率，不含自重
func (l *Locomotive) TractivePower() int { return l.tractivePower }

// Power 计入自重的总牵引能力，用于判断列车能否开行
func (l *Locomotive) Power() int { return l.tractivePower + l.attrs.EmptyWeight }

// Spec 返回构造参数，用于持久化
func (l *Locomotive) Spec() LocomotiveSpec {
	return LocomotiveSpec{
		Attributes:    l.attrs,
		DriveType:     l.driveType,
		TractivePower: l.tractivePower,
	}
}

func (l *Locomotive) String() string {
	return fmt.Sprintf("Locomotive(%s, drive=%s, power=%d)", l.describe(), l.driveType, l.Power())
}
