// Package apperr 商城错误码，错误本体为 wyfcoding/pkg/xerrors.Error
// 商城码写入 Context["code"]，附加字段（如 available）同样放在 Context 中
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/wyfcoding/pkg/xerrors"
)

// Code 商城错误码
type Code string

const (
	CodeNotFound          Code = "NOT_FOUND"
	CodeInsufficientStock Code = "INSUFFICIENT_STOCK"
	CodeInvalidInput      Code = "INVALID_INPUT"
	CodeUnauthenticated   Code = "UNAUTHENTICATED"
	CodeUnauthorized      Code = "UNAUTHORIZED"
	CodeConflict          Code = "CONFLICT"
	CodePersistence       Code = "PERSISTENCE"
	CodeInternal          Code = "INTERNAL"
)

// CodeKey Context 中商城码的键
const CodeKey = "code"

var codeTypes = map[Code]xerrors.ErrorType{
	CodeNotFound:          xerrors.ErrNotFound,
	CodeInsufficientStock: xerrors.ErrInvalidArg,
	CodeInvalidInput:      xerrors.ErrInvalidArg,
	CodeUnauthenticated:   xerrors.ErrUnauthenticated,
	CodeUnauthorized:      xerrors.ErrPermissionDenied,
	CodeConflict:          xerrors.ErrAlreadyExists,
	CodePersistence:       xerrors.ErrInternal,
	CodeInternal:          xerrors.ErrInternal,
}

// New 创建带商城码的错误
func New(code Code, message string) *xerrors.Error {
	return Wrap(code, message, nil)
}

// Wrap 用商城码包装底层错误
func Wrap(code Code, message string, cause error) *xerrors.Error {
	t, ok := codeTypes[code]
	if !ok {
		t = xerrors.ErrUnknown
	}
	e := &xerrors.Error{Type: t}
	return xerrors.New(t, e.HTTPStatus(), message, "", cause).WithContext(CodeKey, code)
}

// NotFound 实体不存在
func NotFound(entity, id string) *xerrors.Error {
	return New(CodeNotFound, fmt.Sprintf("%s not found", entity)).WithContext("id", id)
}

// InvalidInput 输入不合法
func InvalidInput(format string, args ...any) *xerrors.Error {
	return New(CodeInvalidInput, fmt.Sprintf(format, args...))
}

// InsufficientStock 库存不足，Context["available"] 为当前可售数量
func InsufficientStock(available int) *xerrors.Error {
	return New(CodeInsufficientStock, fmt.Sprintf("Not enough stock. Only %d available.", available)).
		WithContext("available", available).
		WithDetail("available=%d", available)
}

// Unauthenticated 缺少或无效的身份
func Unauthenticated(message string) *xerrors.Error {
	return New(CodeUnauthenticated, message)
}

// Unauthorized 身份有效但角色不符
func Unauthorized(message string) *xerrors.Error {
	return New(CodeUnauthorized, message)
}

// Conflict 唯一性或引用冲突
func Conflict(format string, args ...any) *xerrors.Error {
	return New(CodeConflict, fmt.Sprintf(format, args...))
}

// Persistence 将存储层错误包装为 PERSISTENCE，已是类型化错误时原样返回
func Persistence(op string, cause error) error {
	if cause == nil {
		return nil
	}
	if _, ok := As(cause); ok {
		return cause
	}
	return Wrap(CodePersistence, op+" failed", cause)
}

// As 沿错误链提取 xerrors.Error
func As(err error) (*xerrors.Error, bool) {
	var e *xerrors.Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// CodeOf 返回商城码，非类型化错误视为 INTERNAL
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	e, ok := As(err)
	if !ok {
		return CodeInternal
	}
	if code, ok := e.Context[CodeKey].(Code); ok {
		return code
	}
	switch e.Type {
	case xerrors.ErrNotFound:
		return CodeNotFound
	case xerrors.ErrInvalidArg:
		return CodeInvalidInput
	case xerrors.ErrUnauthenticated:
		return CodeUnauthenticated
	case xerrors.ErrPermissionDenied:
		return CodeUnauthorized
	case xerrors.ErrAlreadyExists:
		return CodeConflict
	default:
		return CodeInternal
	}
}

// IsCode 判断商城码
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// ContextValue 读取错误 Context 中的附加字段
func ContextValue(err error, key string) (any, bool) {
	e, ok := As(err)
	if !ok {
		return nil, false
	}
	v, ok := e.Context[key]
	return v, ok
}

// HTTPStatus 错误到 HTTP 状态码
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if e, ok := As(err); ok {
		return e.HTTPStatus()
	}
	return http.StatusInternalServerError
}
