package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net"

	"github.com/go-playground/validator/v10"
)

// ErrorTranslator 把边界层遇到的错误统一转换为AppError
type ErrorTranslator struct{}

// NewErrorTranslator 创建错误转换器
func NewErrorTranslator() *ErrorTranslator {
	return &ErrorTranslator{}
}

// Translate 转换错误，已是AppError的原样返回
func (t *ErrorTranslator) Translate(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}

	var validationErrs validator.ValidationErrors
	if stderrors.As(err, &validationErrs) {
		return t.translateValidationErrors(validationErrs)
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case stderrors.As(err, &syntaxErr):
		return NewValidationError("Malformed JSON body").WithCause(err).
			WithDetails(map[string]interface{}{"offset": syntaxErr.Offset})
	case stderrors.As(err, &typeErr):
		return NewInvalidInputError(typeErr.Field, "expected "+typeErr.Type.String()).WithCause(err)
	case stderrors.Is(err, context.DeadlineExceeded):
		return NewSystemError(ErrCodeTimeout, "Operation timed out").WithCause(err)
	}

	var netErr *net.OpError
	if stderrors.As(err, &netErr) {
		if netErr.Timeout() {
			return NewSystemError(ErrCodeTimeout, "Operation timed out").WithCause(err)
		}
		return NewSystemError(ErrCodeConnectionFailed, "Network error").WithCause(err)
	}

	return NewSystemError(ErrCodeInternalServer, "Internal server error").WithCause(err)
}

func (t *ErrorTranslator) translateValidationErrors(validationErrors validator.ValidationErrors) *AppError {
	details := make([]map[string]interface{}, 0, len(validationErrors))
	for _, fieldError := range validationErrors {
		details = append(details, map[string]interface{}{
			"field":   fieldError.Field(),
			"tag":     fieldError.Tag(),
			"message": t.getValidationErrorMessage(fieldError),
		})
	}

	return NewValidationError("Validation failed").
		WithDetails(map[string]interface{}{
			"errors": details,
		})
}

func (t *ErrorTranslator) getValidationErrorMessage(fieldError validator.FieldError) string {
	field := fieldError.Field()

	switch fieldError.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return field + " must be at least " + fieldError.Param()
	case "max":
		return field + " must be at most " + fieldError.Param()
	case "oneof":
		return field + " must be one of: " + fieldError.Param()
	case "dive":
		return field + " contains an invalid element"
	default:
		return field + " is invalid"
	}
}

// Wrap 包装错误为AppError
func (t *ErrorTranslator) Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return NewSystemError(code, message).WithCause(err)
}
