package consist

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/google/uuid"
)

// Serial 车辆序列号，车辆的唯一身份，用于相等性与成员判断
type Serial = uuid.UUID

// ParseSerial 解析序列号字符串
func ParseSerial(s string) (Serial, error) {
	return uuid.Parse(s)
}

// SerialSource 序列号来源
//
// 由调用方注入车辆构造函数，而不是在构造函数内部直接读取全局随机源，
// 这样测试与数据恢复可以得到确定的序列号。
type SerialSource interface {
	NextSerial() (Serial, error)
}

// SerialSourceFunc 函数适配器
type SerialSourceFunc func() (Serial, error)

// NextSerial 实现 SerialSource
func (f SerialSourceFunc) NextSerial() (Serial, error) {
	return f()
}

// RandomSerials 基于 UUIDv4 的随机序列号
func RandomSerials() SerialSource {
	return SerialSourceFunc(uuid.NewRandom)
}

// FixedSerial 始终返回同一个序列号，用于从存储中恢复车辆
func FixedSerial(serial Serial) SerialSource {
	return SerialSourceFunc(func() (Serial, error) {
		return serial, nil
	})
}

// SequenceSerials 依次返回给定的序列号，耗尽后返回错误
func SequenceSerials(serials ...Serial) SerialSource {
	var (
		mu   sync.Mutex
		next int
	)
	return SerialSourceFunc(func() (Serial, error) {
		mu.Lock()
		defer mu.Unlock()
		if next >= len(serials) {
			return uuid.Nil, fmt.Errorf("serial sequence exhausted after %d serials", len(serials))
		}
		s := serials[next]
		next++
		return s, nil
	})
}

// HashedSerials 在命名空间下按计数器生成确定性的 UUIDv5 序列号
func HashedSerials(namespace uuid.UUID) SerialSource {
	var (
		mu      sync.Mutex
		counter uint64
	)
	return SerialSourceFunc(func() (Serial, error) {
		mu.Lock()
		defer mu.Unlock()
		counter++
		return uuid.NewSHA1(namespace, []byte(strconv.FormatUint(counter, 10))), nil
	})
}
