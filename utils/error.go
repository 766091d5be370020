package utils

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
)

var ErrorRecordNotFound = errors.New("record not found")

// ErrStockUnitNotFound: the sale/return references a product or variation that
// no longer exists. Fatal to the enclosing operation.
var ErrStockUnitNotFound = errors.New("stock unit not found")

// ErrLockWaitTimeout: the row lock could not be acquired in time. Transient;
// the caller may retry the whole request.
var ErrLockWaitTimeout = errors.New("stock row is locked by another transaction, try again")

// InsufficientStockError rejects a reservation that exceeds the on-hand
// quantity. Never retried automatically; surfaced to the end user.
type InsufficientStockError struct {
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock, only %s remaining", e.Available.String())
}

func IsInsufficientStock(err error) bool {
	var target *InsufficientStockError
	return errors.As(err, &target)
}

// MySQL errno 1205: "Lock wait timeout exceeded; try restarting transaction".
func IsLockWaitTimeout(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1205
	}
	return false
}

// MapLockError converts a low-level lock wait timeout into the transient
// sentinel; anything else passes through unchanged.
func MapLockError(err error) error {
	if IsLockWaitTimeout(err) {
		return ErrLockWaitTimeout
	}
	return err
}

func ErrorPanic(err error) {
	if err != nil {
		panic(err)
	}
}
