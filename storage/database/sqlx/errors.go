package sqlxrepos

import (
	"github.com/lib/pq"
	"github.com/pkg/errors"
)

const uniqueViolation = "23505"

// uniqueConstraintErr maps a unique violation on one of the given constraints to its domain error.
func uniqueConstraintErr(err error, constraints map[string]error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		if domainErr, ok := constraints[pqErr.Constraint]; ok {
			return domainErr
		}
	}
	return err
}
