package validation

import (
	"fmt"
	"strings"
	"time"

	"railkit/errors"
)

// IValidator 定义通用验证器接口
type IValidator interface {
	Validate(value any) error
}

// NoopValidator 默认验证器，实现为空操作
type NoopValidator struct{}

// Validate 实现 IValidator 接口
func (NoopValidator) Validate(value any) error {
	return nil
}

// ValidateStringLength 验证字符串长度（按字符计），max<=0 表示不限上限
func ValidateStringLength(value, fieldName string, min, max int) error {
	length := len([]rune(value))
	if length < min {
		return errors.NewError(errors.ErrCodeValidation,
			fmt.Sprintf("%s长度不能少于%d个字符（当前%d）", fieldName, min, length)).
			WithContext("field", fieldName)
	}
	if max > 0 && length > max {
		return errors.NewError(errors.ErrCodeValidation,
			fmt.Sprintf("%s长度不能超过%d个字符（当前%d）", fieldName, max, length)).
			WithContext("field", fieldName)
	}
	return nil
}

// ValidateRequired 验证必填字段
func ValidateRequired(value, fieldName string) error {
	if strings.TrimSpace(value) == "" {
		return errors.NewError(errors.ErrCodeValidation,
			fmt.Sprintf("%s不能为空", fieldName)).
			WithContext("field", fieldName)
	}
	return nil
}

// ValidateIntRange 验证整数范围（闭区间）
func ValidateIntRange(value int, fieldName string, min, max int) error {
	if value < min {
		return errors.NewError(errors.ErrCodeValidation,
			fmt.Sprintf("%s不能小于%d（当前%d）", fieldName, min, value)).
			WithContext("field", fieldName)
	}
	if value > max {
		return errors.NewError(errors.ErrCodeValidation,
			fmt.Sprintf("%s不能大于%d（当前%d）", fieldName, max, value)).
			WithContext("field", fieldName)
	}
	return nil
}

// ValidatePositive 验证正数
func ValidatePositive(value int, fieldName string) error {
	if value <= 0 {
		return errors.NewError(errors.ErrCodeValidation,
			fmt.Sprintf("%s必须为正数（当前%d）", fieldName, value)).
			WithContext("field", fieldName)
	}
	return nil
}

// ValidateNonNegative 验证非负数
func ValidateNonNegative(value int, fieldName string) error {
	if value < 0 {
		return errors.NewError(errors.ErrCodeValidation,
			fmt.Sprintf("%s不能为负数（当前%d）", fieldName, value)).
			WithContext("field", fieldName)
	}
	return nil
}

// ValidateNotAfter 验证时间不晚于参照时间（例如出厂日期不能在未来）
func ValidateNotAfter(value, ref time.Time, fieldName string) error {
	if value.After(ref) {
		return errors.NewError(errors.ErrCodeValidation,
			fmt.Sprintf("%s不能晚于%s", fieldName, ref.Format(time.DateOnly))).
			WithContext("field", fieldName)
	}
	return nil
}

// ValidateEnum 验证枚举值
func ValidateEnum(value, fieldName string, validValues []string) error {
	for _, valid := range validValues {
		if value == valid {
			return nil
		}
	}
	return errors.NewError(errors.ErrCodeValidation,
		fmt.Sprintf("%s的值无效，必须是以下之一: %v", fieldName, validValues)).
		WithContext("field", fieldName)
}

// First 返回第一个非 nil 错误
func First(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
