package store

import (
	"errors"
	"strings"

	"shop_checkout/internal/apperr"

	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

// classify 把驱动/ORM 错误归入业务错误分类：
//   - 唯一约束冲突、SQLITE_BUSY/LOCKED、CHECK 约束 -> Conflict（可重试）
//   - 其余 -> Internal
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	switch {
	case isUniqueViolation(err):
		return apperr.Conflict(apperr.ReasonDuplicate, op, err)
	case isBusy(err), isCheckViolation(err):
		return apperr.Conflict(apperr.ReasonWriteConflict, op, err)
	default:
		return apperr.Internal(op, err)
	}
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
			se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	s := err.Error()
	return strings.Contains(s, "UNIQUE constraint") || strings.Contains(s, "duplicate key")
}

func isBusy(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
	}
	return false
}

func isCheckViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintCheck
	}
	return false
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
