package domain

import (
	"errors"
	"fmt"
)

type ErrCode string

const (
	CodeValidation   ErrCode = "validation_error"
	CodeNotFound     ErrCode = "not_found"
	CodeUnauthorized ErrCode = "unauthorized"
	CodeForbidden    ErrCode = "forbidden"
	CodeUpstream     ErrCode = "upstream_error"
	CodeInternal     ErrCode = "internal_error"
)

type AppError struct {
	Code    ErrCode
	Message string
	Meta    map[string]string
}

func (e *AppError) Error() string {
	if len(e.Meta) == 0 {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Meta)
}

func ErrValidation(msg string) error { return &AppError{Code: CodeValidation, Message: msg} }
func ErrValidationMeta(msg string, meta map[string]string) error {
	return &AppError{Code: CodeValidation, Message: msg, Meta: meta}
}
func ErrNotFound(msg string) error     { return &AppError{Code: CodeNotFound, Message: msg} }
func ErrUnauthorized(msg string) error { return &AppError{Code: CodeUnauthorized, Message: msg} }
func ErrForbidden(msg string) error    { return &AppError{Code: CodeForbidden, Message: msg} }
func ErrUpstream(msg string) error     { return &AppError{Code: CodeUpstream, Message: msg} }
func ErrInternal(msg string) error     { return &AppError{Code: CodeInternal, Message: msg} }

func IsNotFound(err error) bool {
	var app *AppError
	return errors.As(err, &app) && app.Code == CodeNotFound
}
