package client

import (
	"errors"
	"fmt"

	"github.com/cashierlink/link-sdk-go/types"
)

// BackendErrorCode 后端客户端错误码
type BackendErrorCode string

const (
	BackendErrCodeNetwork       BackendErrorCode = "NETWORK_ERROR"
	BackendErrCodeRPC           BackendErrorCode = "RPC_ERROR"
	BackendErrCodeInvalidParams BackendErrorCode = "INVALID_PARAMS"
	BackendErrCodeDecodeFailed  BackendErrorCode = "DECODE_FAILED"
)

// BackendError 后端调用统一错误类型
type BackendError struct {
	Code    BackendErrorCode
	Method  string
	Message string
	Cause   error
}

func (e *BackendError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s %s: %s (cause=%v)", e.Code, e.Method, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s %s: %s", e.Code, e.Method, e.Message)
}

func (e *BackendError) Unwrap() error {
	return e.Cause
}

// invalidParams 参数校验失败
func invalidParams(method, message string) *BackendError {
	return &BackendError{Code: BackendErrCodeInvalidParams, Method: method, Message: message}
}

// wrapBackendError 包装传输层错误
//
// 后端返回的 LinkError 只补上方法名，调用方直接拿到后端的错误体。
func wrapBackendError(method string, err error) error {
	if err == nil {
		return nil
	}

	if linkErr, ok := types.IsLinkError(err); ok {
		if linkErr.Method != "" {
			return err
		}
		return linkErr.ForMethod(method)
	}

	var bErr *BackendError
	if errors.As(err, &bErr) {
		return err
	}

	var cErr *Error
	if errors.As(err, &cErr) {
		switch cErr.Code {
		case ErrCodeNetwork, ErrCodeTimeout, ErrCodeClosed:
			return &BackendError{Code: BackendErrCodeNetwork, Method: method, Message: "transport failure", Cause: err}
		case ErrCodeRPCError:
			return &BackendError{Code: BackendErrCodeRPC, Method: method, Message: cErr.Message, Cause: err}
		case ErrCodeInvalidResponse:
			return &BackendError{Code: BackendErrCodeDecodeFailed, Method: method, Message: cErr.Message, Cause: err}
		}
	}

	return err
}
