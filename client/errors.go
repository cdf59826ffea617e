package client

import (
	"errors"
	"fmt"

	"github.com/cashierlink/link-sdk-go/types"
)

// Error 客户端错误
type Error struct {
	Code    int
	Message string
	RPCCode int         // JSON-RPC error.code，仅 ErrCodeRPCError 时有效
	Data    interface{} // JSON-RPC error.data
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("client error [%d]: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("client error [%d]: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsLinkError 检查错误是否为后端返回的 LinkError
func IsLinkError(err error) (*types.LinkError, bool) {
	return types.IsLinkError(err)
}

// IsClientError 检查错误链中是否有 *Error，并返回其错误码
func IsClientError(err error) (*Error, bool) {
	var cErr *Error
	if errors.As(err, &cErr) {
		return cErr, true
	}
	return nil, false
}

// 错误码定义
const (
	ErrCodeNetwork         = 1000 // 网络错误
	ErrCodeTimeout         = 1001 // 超时错误
	ErrCodeInvalidResponse = 1002 // 无效响应
	ErrCodeRPCError        = 1003 // JSON-RPC错误
	ErrCodeNotSupported    = 1004 // 不支持的操作
	ErrCodeClosed          = 1005 // 连接已关闭
)

// NewNetworkError 创建网络错误
func NewNetworkError(err error) *Error {
	return &Error{
		Code:    ErrCodeNetwork,
		Message: "network error",
		Err:     err,
	}
}

// NewTimeoutError 创建超时错误
func NewTimeoutError() *Error {
	return &Error{
		Code:    ErrCodeTimeout,
		Message: "request timeout",
	}
}

// NewInvalidResponseError 创建无效响应错误
func NewInvalidResponseError(message string) *Error {
	return &Error{
		Code:    ErrCodeInvalidResponse,
		Message: message,
	}
}

// NewRPCError 创建JSON-RPC错误
func NewRPCError(code int, message string, data interface{}) *Error {
	return &Error{
		Code:    ErrCodeRPCError,
		Message: fmt.Sprintf("RPC error [%d]: %s", code, message),
		RPCCode: code,
		Data:    data,
	}
}

// NewNotSupportedError 创建不支持的操作错误
func NewNotSupportedError(operation string) *Error {
	return &Error{
		Code:    ErrCodeNotSupported,
		Message: fmt.Sprintf("operation not supported: %s", operation),
	}
}

// rpcErrorToError JSON-RPC 错误对象转 error
//
// data 中带有 Problem 时返回 *types.LinkError，否则返回 *Error。
func rpcErrorToError(rpcErr *jsonRPCError) error {
	if linkErr, ok := types.FromRPCError(rpcErr.Code, rpcErr.Message, rpcErr.Data); ok {
		return linkErr
	}
	return NewRPCError(rpcErr.Code, rpcErr.Message, rpcErr.Data)
}
