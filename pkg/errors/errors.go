// Package errors 提供统一的错误定义
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode 错误码类型
type ErrorCode string

// 预定义错误码
const (
	// 通用错误 (1xxx)
	CodeSuccess            ErrorCode = "0"
	CodeUnknown            ErrorCode = "1000"
	CodeInvalidParam       ErrorCode = "1001"
	CodeNotFound           ErrorCode = "1004"
	CodeConflict           ErrorCode = "1005"
	CodeTooManyRequests    ErrorCode = "1006"
	CodeInternalError      ErrorCode = "1007"
	CodeServiceUnavailable ErrorCode = "1008"

	// 资源错误 (3xxx)
	CodeCameraNotFound ErrorCode = "3001"
	CodeEventNotFound  ErrorCode = "3002"
	CodeEntityNotFound ErrorCode = "3003"

	// 业务错误 (4xxx)
	CodeMediaFetchFailed   ErrorCode = "4001"
	CodeMediaBusy          ErrorCode = "4002"
	CodeMediaUnsupported   ErrorCode = "4003"
	CodeAnalysisFailed     ErrorCode = "4004"
	CodeConfidenceMissing  ErrorCode = "4005"
	CodeBudgetDailyLimit   ErrorCode = "4006"
	CodeBudgetMonthlyLimit ErrorCode = "4007"
	CodeMatchFailed        ErrorCode = "4008"

	// 外部服务错误 (5xxx)
	CodeDatabaseError       ErrorCode = "5001"
	CodeCacheError          ErrorCode = "5002"
	CodeVectorDBError       ErrorCode = "5003"
	CodeProviderError       ErrorCode = "5004"
	CodeProviderUnavailable ErrorCode = "5005"
	CodeUpstreamError       ErrorCode = "5006"
	CodeProviderUnsupported ErrorCode = "5007"
)

// AppError 应用错误
type AppError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Detail     string    `json:"detail,omitempty"`
	HTTPStatus int       `json:"-"`
	Err        error     `json:"-"`
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 返回底层错误
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail 添加详细信息
func (e *AppError) WithDetail(detail string) *AppError {
	e.Detail = detail
	return e
}

// WithError 添加底层错误
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

// New 创建新的应用错误
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

// Wrap 包装错误
func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Err:        err,
	}
}

// codeToHTTPStatus 错误码转 HTTP 状态码
func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case CodeSuccess:
		return http.StatusOK
	case CodeInvalidParam:
		return http.StatusBadRequest
	case CodeNotFound, CodeCameraNotFound, CodeEventNotFound, CodeEntityNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeTooManyRequests, CodeMediaBusy:
		return http.StatusTooManyRequests
	case CodeServiceUnavailable, CodeProviderUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// 预定义错误
var (
	ErrInvalidParam       = New(CodeInvalidParam, "invalid parameter")
	ErrNotFound           = New(CodeNotFound, "resource not found")
	ErrConflict           = New(CodeConflict, "resource conflict")
	ErrInternalError      = New(CodeInternalError, "internal server error")
	ErrServiceUnavailable = New(CodeServiceUnavailable, "service unavailable")

	ErrCameraNotFound = New(CodeCameraNotFound, "camera not found")
	ErrEventNotFound  = New(CodeEventNotFound, "event not found")
	ErrEntityNotFound = New(CodeEntityNotFound, "entity not found")

	ErrMediaFetchFailed    = New(CodeMediaFetchFailed, "media fetch failed")
	ErrMediaBusy           = New(CodeMediaBusy, "media source busy")
	ErrMediaUnsupported    = New(CodeMediaUnsupported, "unsupported media input")
	ErrAnalysisFailed      = New(CodeAnalysisFailed, "AI analysis failed")
	ErrProviderUnavailable = New(CodeProviderUnavailable, "provider unavailable")
)

// IsAppError 检查是否为 AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError 将错误转换为 AppError
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Wrap(err, CodeUnknown, "unknown error")
}

// IsCode 检查错误链上是否带指定错误码
func IsCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
