package repository

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/joseph-ayodele/payment-receipts/internal/common"
)

// Unique index names from db/migrations.
const (
	indexReferenceClaim = "ux_payment_receipts_reference_claim"
	indexReceiptOrder   = "ux_payment_receipts_order_id"
)

var (
	// ErrReferenceClaimed means another receipt won the race for the same normalized reference.
	ErrReferenceClaimed = errors.New("reference number already claimed")
	// ErrReceiptExists means the order already has a receipt.
	ErrReceiptExists = common.NewAppError(common.CodeConflict, "a receipt was already submitted for this order", common.ErrConflict)
)

// uniqueViolation reports which unique index, if any, rejected a write. Postgres names the
// constraint; SQLite only names the column.
func uniqueViolation(err error) (index string, ok bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != "23505" {
			return "", false
		}
		return pgErr.ConstraintName, true
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) && isSQLiteUnique(liteErr) {
		msg := liteErr.Error()
		switch {
		case strings.Contains(msg, "payment_receipts.reference_claim"):
			return indexReferenceClaim, true
		case strings.Contains(msg, "payment_receipts.order_id"):
			return indexReceiptOrder, true
		}
		return "", true
	}
	return "", false
}

func isSQLiteUnique(e *sqlite.Error) bool {
	if e.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return true
	}
	// primary result code only when extended codes are off
	return e.Code()&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(e.Error(), "UNIQUE constraint failed")
}

// mapWriteError turns unique violations on payment_receipts into typed errors.
func mapWriteError(err error) error {
	index, ok := uniqueViolation(err)
	if !ok {
		return err
	}
	switch index {
	case indexReferenceClaim:
		return ErrReferenceClaimed
	case indexReceiptOrder:
		return ErrReceiptExists
	}
	return common.NewAppError(common.CodeConflict, "unique constraint violated", errors.Join(common.ErrConflict, err))
}
