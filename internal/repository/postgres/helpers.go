package postgres

import (
	"database/sql"
	"fmt"
	"strings"

	ierr "github.com/invoicekit/invoicekit/internal/errors"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// notFoundOr maps sql.ErrNoRows to a not found error and anything else to a database error
func notFoundOr(err error, entity, id string) error {
	if err == sql.ErrNoRows {
		return ierr.WithError(err).
			WithHintf("%s not found", entity).
			WithReportableDetails(map[string]any{
				"id": id,
			}).
			Mark(ierr.ErrNotFound)
	}
	return dbError(err, "failed to get "+strings.ToLower(entity))
}

func dbError(err error, msg string) error {
	var pqErr *pq.Error
	if ierr.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ierr.WithError(err).
			WithHint("A record with the same identifier already exists").
			WithReportableDetails(map[string]any{
				"constraint": pqErr.Constraint,
			}).
			Mark(ierr.ErrAlreadyExists)
	}
	return ierr.WithError(err).
		WithMessage(msg).
		WithHint("Database operation failed").
		Mark(ierr.ErrDatabase)
}

// requireAffected turns an update or delete that matched no row into a not found error
func requireAffected(result sql.Result, entity, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return dbError(err, "failed to read affected rows")
	}
	if n == 0 {
		return ierr.NewErrorf("%s %s not found", strings.ToLower(entity), id).
			WithHintf("%s not found", entity).
			WithReportableDetails(map[string]any{
				"id": id,
			}).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

// whereBuilder accumulates AND conditions with positional parameters
type whereBuilder struct {
	conds []string
	args  []interface{}
}

// add appends a condition; every "?" in cond is replaced by the next $n placeholder
func (w *whereBuilder) add(cond string, args ...interface{}) {
	for _, arg := range args {
		w.args = append(w.args, arg)
		cond = strings.Replace(cond, "?", fmt.Sprintf("$%d", len(w.args)), 1)
	}
	w.conds = append(w.conds, cond)
}

func (w *whereBuilder) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// page renders ORDER BY and LIMIT/OFFSET, appending the limit arguments
func (w *whereBuilder) page(sortColumn, order string, limit, offset int, unlimited bool) string {
	if order != "asc" {
		order = "desc"
	}
	clause := fmt.Sprintf(" ORDER BY %s %s, id %s", sortColumn, strings.ToUpper(order), strings.ToUpper(order))
	if unlimited {
		return clause
	}
	w.args = append(w.args, limit, offset)
	return clause + fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(w.args)-1, len(w.args))
}

func sortColumn(requested string, allowed map[string]string) string {
	if col, ok := allowed[requested]; ok {
		return col
	}
	return "created_at"
}
