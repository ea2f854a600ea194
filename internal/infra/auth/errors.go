package auth

import (
	"errors"
	"fmt"
)

// Сентинелы для errors.Is: TokenError с соответствующим кодом матчится на них.
var (
	ErrTokenInvalid = errors.New("token invalid")
	ErrTokenExpired = errors.New("token expired")
)

// ErrorCode — стабильная категория ошибки токена.
type ErrorCode string

const (
	CodeTokenInvalid ErrorCode = "token_invalid"
	CodeTokenExpired ErrorCode = "token_expired"
)

var errorMessages = map[ErrorCode]string{
	CodeTokenInvalid: "Invalid token",
	CodeTokenExpired: "Token has expired",
}

// TokenError оборачивает ошибку парсера jwt в типизированное условие.
type TokenError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *TokenError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *TokenError) Unwrap() error {
	return e.Err
}

// Is связывает код с сентинелом.
func (e *TokenError) Is(target error) bool {
	switch e.Code {
	case CodeTokenInvalid:
		return target == ErrTokenInvalid
	case CodeTokenExpired:
		return target == ErrTokenExpired
	}
	return false
}

func newTokenError(code ErrorCode, err error) *TokenError {
	return &TokenError{Code: code, Message: errorMessages[code], Err: err}
}
