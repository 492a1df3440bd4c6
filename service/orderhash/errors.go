package orderhash

import "fmt"

// MalformedOrderError 订单字段无法通过数值/格式校验
// 出现该错误时哈希函数同时返回 NullDigest
type MalformedOrderError struct {
	Field  string
	Reason string
	Err    error
}

func (e *MalformedOrderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed order: %s: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed order: %s: %s", e.Field, e.Reason)
}

func (e *MalformedOrderError) Unwrap() error {
	return e.Err
}

func malformed(field, reason string, err error) error {
	return &MalformedOrderError{Field: field, Reason: reason, Err: err}
}
