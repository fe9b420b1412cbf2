package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode 错误码类型
type ErrorCode string

// 预定义错误码
const (
	// 通用错误
	ErrCodeInternalServer ErrorCode = "INTERNAL_SERVER_ERROR"
	ErrCodeBadRequest     ErrorCode = "BAD_REQUEST"
	ErrCodeNotFound       ErrorCode = "NOT_FOUND"

	// 验证错误
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidInput     ErrorCode = "INVALID_INPUT"
	ErrCodeMissingRequired  ErrorCode = "MISSING_REQUIRED"

	// 存储错误
	ErrCodeStorage          ErrorCode = "STORAGE_ERROR"
	ErrCodeConnectionFailed ErrorCode = "CONNECTION_FAILED"

	// 外部服务错误（embedding / chat 模型）
	ErrCodeProvider ErrorCode = "PROVIDER_ERROR"
	ErrCodeTimeout  ErrorCode = "TIMEOUT"
)

// ErrorType 错误类型
type ErrorType int

const (
	ErrorTypeSystem ErrorType = iota
	ErrorTypeBusiness
	ErrorTypeValidation
	ErrorTypeExternal
	ErrorTypeStorage
)

func (t ErrorType) String() string {
	switch t {
	case ErrorTypeBusiness:
		return "business"
	case ErrorTypeValidation:
		return "validation"
	case ErrorTypeExternal:
		return "external"
	case ErrorTypeStorage:
		return "storage"
	default:
		return "system"
	}
}

// AppError 应用错误结构体
type AppError struct {
	Code      ErrorCode   `json:"code"`
	Message   string      `json:"message"`
	Type      ErrorType   `json:"type"`
	HTTPCode  int         `json:"-"`
	Details   interface{} `json:"details,omitempty"`
	Cause     error       `json:"-"`
	RequestID string      `json:"-"`
}

// Error 实现error接口
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap 返回底层错误
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails 添加错误详情
func (e *AppError) WithDetails(details interface{}) *AppError {
	e.Details = details
	return e
}

// WithCause 添加错误原因
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithRequestID 添加请求ID
func (e *AppError) WithRequestID(requestID string) *AppError {
	e.RequestID = requestID
	return e
}

// NewSystemError 创建系统错误
func NewSystemError(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:     code,
		Message:  message,
		Type:     ErrorTypeSystem,
		HTTPCode: http.StatusInternalServerError,
	}
}

// NewValidationError 创建验证错误
func NewValidationError(message string) *AppError {
	return &AppError{
		Code:     ErrCodeValidationFailed,
		Message:  message,
		Type:     ErrorTypeValidation,
		HTTPCode: http.StatusBadRequest,
	}
}

// NewInvalidInputError 创建输入无效错误
func NewInvalidInputError(field, reason string) *AppError {
	return &AppError{
		Code:     ErrCodeInvalidInput,
		Message:  fmt.Sprintf("Invalid input for field '%s': %s", field, reason),
		Type:     ErrorTypeValidation,
		HTTPCode: http.StatusBadRequest,
	}
}

// NewProviderError 外部模型服务（embedding/生成）不可达、未授权或被限流
func NewProviderError(provider, op string, cause error) *AppError {
	return &AppError{
		Code:     ErrCodeProvider,
		Message:  fmt.Sprintf("%s %s failed", provider, op),
		Type:     ErrorTypeExternal,
		HTTPCode: http.StatusBadGateway,
		Details:  map[string]string{"provider": provider, "operation": op},
		Cause:    cause,
	}
}

// NewStorageError 知识库存储不可读或数据不完整
func NewStorageError(backend, op string, cause error) *AppError {
	return &AppError{
		Code:     ErrCodeStorage,
		Message:  fmt.Sprintf("%s %s failed", backend, op),
		Type:     ErrorTypeStorage,
		HTTPCode: http.StatusServiceUnavailable,
		Details:  map[string]string{"backend": backend, "operation": op},
		Cause:    cause,
	}
}

// IsAppError 检查是否为AppError（支持包装链）
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// GetAppError 获取AppError，如果不是则包装为系统错误
func GetAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}

	return NewSystemError(ErrCodeInternalServer, "Internal server error").WithCause(err)
}

// IsProviderError 判断错误链中是否包含ProviderError
func IsProviderError(err error) bool {
	return hasCode(err, ErrCodeProvider)
}

// IsStorageError 判断错误链中是否包含StorageError
func IsStorageError(err error) bool {
	return hasCode(err, ErrCodeStorage)
}

func hasCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return false
	}
	return appErr.Code == code
}
