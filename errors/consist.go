package errors

import "fmt"

// 编组错误构造函数
//
// 所有构造函数都携带 serial / position 等详情，便于上层记录日志；
// 判断错误类型请使用 errors.Is(err, ErrXxx) 或下方的 IsXxx 谓词。

// NewDuplicateElementError 车辆已经是本列车成员
func NewDuplicateElementError(serial string) IError {
	return NewError(ErrCodeDuplicateElement, fmt.Sprintf("车辆 %s 已在列车中", serial)).
		WithContext("serial", serial)
}

// NewAlreadyAssignedError 车辆已被其他列车占用
func NewAlreadyAssignedError(serial, ownerID string) IError {
	return NewError(ErrCodeAlreadyAssigned, fmt.Sprintf("车辆 %s 已属于列车 %s", serial, ownerID)).
		WithContext("serial", serial).
		WithContext("owner_id", ownerID)
}

// NewElementNotFoundError 锚点或目标车辆不在列车中
func NewElementNotFoundError(serial string) IError {
	return NewError(ErrCodeElementNotFound, fmt.Sprintf("车辆 %s 不在列车中", serial)).
		WithContext("serial", serial)
}

// NewOutOfBoundsError 插入位置超出 [0, length]
func NewOutOfBoundsError(position, length int) IError {
	return NewError(ErrCodeOutOfBounds, fmt.Sprintf("位置 %d 超出范围 [0, %d]", position, length)).
		WithContext("position", position).
		WithContext("length", length)
}

// NewInvalidPlacementError 操作会使非机车位于首位
func NewInvalidPlacementError(serial string) IError {
	return NewError(ErrCodeInvalidPlacement, fmt.Sprintf("车辆 %s 不能位于列车首位", serial)).
		WithContext("serial", serial)
}

// NewLastLocomotiveError 操作会移除唯一的机车
func NewLastLocomotiveError(serial string) IError {
	return NewError(ErrCodeLastLocomotive, fmt.Sprintf("机车 %s 是列车中唯一的机车", serial)).
		WithContext("serial", serial)
}

// NewTrainDissolvedError 列车已解编，不再接受编组操作
func NewTrainDissolvedError(trainID string) IError {
	return NewError(ErrCodeTrainDissolved, fmt.Sprintf("列车 %s 已解编", trainID)).
		WithContext("train_id", trainID)
}

func IsDuplicateElement(err error) bool { return IsErrorCode(err, ErrCodeDuplicateElement) }
func IsAlreadyAssigned(err error) bool  { return IsErrorCode(err, ErrCodeAlreadyAssigned) }
func IsElementNotFound(err error) bool  { return IsErrorCode(err, ErrCodeElementNotFound) }
func IsOutOfBounds(err error) bool      { return IsErrorCode(err, ErrCodeOutOfBounds) }
func IsInvalidPlacement(err error) bool { return IsErrorCode(err, ErrCodeInvalidPlacement) }
func IsLastLocomotive(err error) bool   { return IsErrorCode(err, ErrCodeLastLocomotive) }
func IsTrainDissolved(err error) bool   { return IsErrorCode(err, ErrCodeTrainDissolved) }

// IsCompositionError 判断是否为编组约束错误（调用方可修正输入后重试）
func IsCompositionError(err error) bool {
	switch GetErrorCode(err) {
	case ErrCodeDuplicateElement, ErrCodeAlreadyAssigned, ErrCodeElementNotFound,
		ErrCodeOutOfBounds, ErrCodeInvalidPlacement, ErrCodeLastLocomotive,
		ErrCodeTrainDissolved:
		return true
	default:
		return false
	}
}
