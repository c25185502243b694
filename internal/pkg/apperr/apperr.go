// Package apperr 定义业务错误分类，调用方统一用 errors.Is 判断。
package apperr

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"gorm.io/gorm"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrInvalidInput    = errors.New("invalid input")
	ErrDependencyInUse = errors.New("dependency in use")
	ErrTransient       = errors.New("transient store error")
)

// NotFound 构造带上下文的 ErrNotFound
func NotFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// Conflict 构造带上下文的 ErrConflict
func Conflict(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// Invalid 构造带上下文的 ErrInvalidInput
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// InUse 构造带上下文的 ErrDependencyInUse
func InUse(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrDependencyInUse, fmt.Sprintf(format, args...))
}

// FromStore 把 gorm/驱动层错误归类到业务错误；已归类或无法识别的错误原样返回。
// op 描述当前操作，会出现在错误文本里（不会暴露给最终用户）。
func FromStore(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsKnown(err) {
		return err
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound), errors.Is(err, gorm.ErrForeignKeyViolated):
		return fmt.Errorf("%w: %s: %w", ErrNotFound, op, err)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %s: %w", ErrConflict, op, err)
	case isTransient(err):
		return fmt.Errorf("%w: %s: %w", ErrTransient, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsKnown 判断错误是否已属于分类之一
func IsKnown(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrDependencyInUse) ||
		errors.Is(err, ErrTransient)
}

func isTransient(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset")
}

// UserMessage 返回可直接展示给终端用户的简短说明，不包含 SQL 或内部细节
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "That item could not be found."
	case errors.Is(err, ErrConflict):
		return "That already exists."
	case errors.Is(err, ErrInvalidInput):
		return "Some of the values you entered are not valid."
	case errors.Is(err, ErrDependencyInUse):
		return "This is still in use and cannot be deleted."
	case errors.Is(err, ErrTransient):
		return "The database is temporarily unavailable, please try again."
	default:
		return "Something went wrong, please try again later."
	}
}
