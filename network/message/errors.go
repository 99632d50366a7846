package message

import (
	"errors"
	"fmt"
)

// ErrorCode 错误代码类型
type ErrorCode int

const (
	ErrConnection ErrorCode = iota + 1000
	ErrProtocol
	ErrSigning
	ErrTimeout
	ErrEmptyResponse
	ErrStartup
)

var codeNames = map[ErrorCode]string{
	ErrConnection:    "connection",
	ErrProtocol:      "protocol",
	ErrSigning:       "signing",
	ErrTimeout:       "timeout",
	ErrEmptyResponse: "empty response",
	ErrStartup:       "startup",
}

// String 返回错误代码的名称
func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("code %d", int(c))
}

// Error 网络错误, 带有错误代码和可选的底层错误
type Error struct {
	Message string
	Code    ErrorCode
	Err     error
}

// NewError 创建网络错误
func NewError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Message: message,
		Code:    code,
		Err:     err,
	}
}

// Error 实现error接口
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error[%d]: %s: %v", e.Code, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error[%d]: %s", e.Code, e.Code, e.Message)
}

// Unwrap 返回底层错误
func (e *Error) Unwrap() error {
	return e.Err
}

// IsCode reports whether any error in err's chain is an *Error with code
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}
