package repository

import (
	"errors"

	"github.com/lib/pq"
)

// ErrDuplicate is returned when an insert hits a uniqueness constraint.
// Callers rely on it for idempotency decisions (duplicate webhooks,
// repeated reviews, concurrent certificate creation).
var ErrDuplicate = errors.New("duplicate record")

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
