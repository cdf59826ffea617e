package signer

import (
	"fmt"
)

// BatchError 批量调用的传输层错误（整个请求失败，而非单个调用）
type BatchError struct {
	Op  string
	Err error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch %s failed: %v", e.Op, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}
