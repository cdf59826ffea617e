package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
)

// Problem 链接后端的错误体
//
// RFC7807 字段之外，code/layer/userMessage/traceId 为后端必填扩展。
type Problem struct {
	Type     string `json:"type,omitempty"`
	Title    string `json:"title,omitempty"`
	Status   *int   `json:"status,omitempty"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`

	Code        string                 `json:"code"`
	Layer       string                 `json:"layer"`
	UserMessage string                 `json:"userMessage"`
	Details     map[string]interface{} `json:"details,omitempty"`
	TraceID     string                 `json:"traceId"`
	Timestamp   string                 `json:"timestamp,omitempty"`
}

func (p *Problem) complete() bool {
	return p.Code != "" && p.Layer != "" && p.UserMessage != "" && p.TraceID != ""
}

// DecodeProblem 解析错误体，不是 JSON 或缺少必填扩展字段时返回 false
func DecodeProblem(raw []byte) (*Problem, bool) {
	var p Problem
	if err := json.Unmarshal(raw, &p); err != nil || !p.complete() {
		return nil, false
	}
	return &p, true
}

// LinkError SDK 统一错误类型
//
// 后端返回的错误体原样保留在 Problem 中；Method 为出错的后端方法，SDK 本地错误为空。
type LinkError struct {
	Problem
	Method string
}

func (e *LinkError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.UserMessage)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Method != "" {
		msg = e.Method + ": " + msg
	}
	return msg
}

// ForMethod 返回标注了后端方法的副本
func (e *LinkError) ForMethod(method string) *LinkError {
	out := *e
	out.Method = method
	return &out
}

// FromRPCError JSON-RPC 错误的 data 是 Problem 时转换为 LinkError
//
// data 缺少 detail 时取 message，缺少 status 时取 JSON-RPC code，缺少时间戳时补当前时间。
func FromRPCError(code int, message string, data interface{}) (*LinkError, bool) {
	if data == nil {
		return nil, false
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, false
	}
	p, ok := DecodeProblem(raw)
	if !ok {
		return nil, false
	}
	if p.Detail == "" {
		p.Detail = message
	}
	if p.Status == nil {
		p.Status = &code
	}
	if p.Timestamp == "" {
		p.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	return &LinkError{Problem: *p}, true
}

// IsLinkError 检查错误链中是否有 LinkError
func IsLinkError(err error) (*LinkError, bool) {
	var linkErr *LinkError
	if errors.As(err, &linkErr) {
		return linkErr, true
	}
	return nil, false
}

// Layer 常量
const (
	LayerLinkSDKGo = "link-sdk-go"
	LayerBackend   = "link-backend"
)

// ErrorCode SDK 本地错误码；后端错误码原样透传
const (
	ErrorCodeSDKHTTPError                    = "SDK_HTTP_ERROR"
	ErrorCodeSDKRequestSerializationError    = "SDK_REQUEST_SERIALIZATION_ERROR"
	ErrorCodeSDKResponseDeserializationError = "SDK_RESPONSE_DESERIALIZATION_ERROR"

	ErrorCodeUnauthenticated = "LINK_UNAUTHENTICATED"
)

// ErrUnauthenticated 没有已连接的账户
var ErrUnauthenticated = &LinkError{Problem: Problem{
	Code:        ErrorCodeUnauthenticated,
	Layer:       LayerLinkSDKGo,
	UserMessage: "no authenticated account",
}}

// NewLinkError 创建 SDK 层 LinkError，自动生成 traceId 和时间戳
func NewLinkError(code, userMessage, detail string, status int, details map[string]interface{}) *LinkError {
	if details == nil {
		details = make(map[string]interface{})
	}
	return &LinkError{Problem: Problem{
		Code:        code,
		Layer:       LayerLinkSDKGo,
		UserMessage: userMessage,
		Detail:      detail,
		Status:      &status,
		Details:     details,
		TraceID:     uuid.NewString(),
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}}
}

// ValidationCode 客户端校验错误码
type ValidationCode string

const (
	ValidationMissingLinkType     ValidationCode = "MISSING_LINK_TYPE"
	ValidationMissingTitle        ValidationCode = "MISSING_TITLE"
	ValidationNoAssets            ValidationCode = "NO_ASSETS"
	ValidationTooManyAssets       ValidationCode = "TOO_MANY_ASSETS"
	ValidationDuplicateAsset      ValidationCode = "DUPLICATE_ASSET"
	ValidationInvalidAsset        ValidationCode = "INVALID_ASSET"
	ValidationInvalidAmount       ValidationCode = "INVALID_AMOUNT"
	ValidationInvalidMaxUse       ValidationCode = "INVALID_MAX_USE"
	ValidationTotalExceedsLimit   ValidationCode = "TOTAL_EXCEEDS_LIMIT"
	ValidationInsufficientBalance ValidationCode = "INSUFFICIENT_BALANCE"
	ValidationWrongStep           ValidationCode = "WRONG_STEP"
	ValidationActionNotSettled    ValidationCode = "ACTION_NOT_SETTLED"
)

// ValidationError 网络调用前发现的可恢复错误，附带格式化所需的上下文
type ValidationError struct {
	Code      ValidationCode
	Field     string
	Message   string
	Required  *big.Int // 原始单位
	Available *big.Int // 原始单位
	Symbol    string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed [%s] %s: %s", e.Code, e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed [%s]: %s", e.Code, e.Message)
}

// NewValidationError 创建校验错误
func NewValidationError(code ValidationCode, field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{
		Code:    code,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
}

// IsValidationError 检查错误链中是否有 ValidationError
func IsValidationError(err error) (*ValidationError, bool) {
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return vErr, true
	}
	return nil, false
}
