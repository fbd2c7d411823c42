// Package sqlxrepos implements the repositories on PostgreSQL with sqlx.
package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/alumnet/alumnet/core"
	"github.com/alumnet/alumnet/core/event"
	"github.com/alumnet/alumnet/core/fund"
	"github.com/alumnet/alumnet/core/group"
	"github.com/alumnet/alumnet/core/job"
	"github.com/alumnet/alumnet/core/message"
	"github.com/alumnet/alumnet/core/payment"
	"github.com/alumnet/alumnet/core/post"
	"github.com/alumnet/alumnet/core/project"
	"github.com/alumnet/alumnet/core/user"
)

const uniqueViolation = "23505"

// Repositories bundles one repository per domain, all sharing db.
type Repositories struct {
	Users    user.Repository
	Groups   group.Repository
	Messages message.Repository
	Projects project.Repository
	Funds    fund.Repository
	Payments payment.Repository
	Posts    post.Repository
	Jobs     job.Repository
	Events   event.Repository
}

func NewRepositories(db core.DB) Repositories {
	return Repositories{
		Users:    NewUserRepository(db),
		Groups:   NewGroupRepository(db),
		Messages: NewMessageRepository(db),
		Projects: NewProjectRepository(db),
		Funds:    NewFundRepository(db),
		Payments: NewPaymentRepository(db),
		Posts:    NewPostRepository(db),
		Jobs:     NewJobRepository(db),
		Events:   NewEventRepository(db),
	}
}

// uniqueViolationOn reports whether err is a unique violation of constraint.
func uniqueViolationOn(err error, constraint string) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation && pqErr.Constraint == constraint
	}
	return false
}

// notFound maps sql.ErrNoRows to notFoundErr.
func notFound(err, notFoundErr error) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFoundErr
	}
	return err
}

// execOne runs an UPDATE or DELETE expected to touch one row, returning noRowErr otherwise.
func execOne(ctx context.Context, db core.DBExecutor, noRowErr error, query string, args ...interface{}) error {
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return noRowErr
	}
	return nil
}

func nullString(s string) null.String {
	return null.NewString(s, s != "")
}

// where joins conds with AND, or returns nothing without conditions.
func where(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}
