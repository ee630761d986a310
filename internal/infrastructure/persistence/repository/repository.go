package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/ringi/internal/application/port"
	domainwf "github.com/garyjia/ringi/internal/domain/workflow"
	"github.com/garyjia/ringi/internal/infrastructure/persistence/sqlstore"
)

const defaultListLimit = 50

// base holds what every repository shares: the unit of work and its logger
type base struct {
	db     *sqlstore.DB
	logger *zap.Logger
}

func (b base) exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return b.db.Executor(ctx).ExecContext(ctx, b.db.Rebind(query), args...)
}

func (b base) query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return b.db.Executor(ctx).QueryContext(ctx, b.db.Rebind(query), args...)
}

func (b base) queryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return b.db.Executor(ctx).QueryRowContext(ctx, b.db.Rebind(query), args...)
}

// expectOneRow turns a zero-row versioned update into a ConflictError
func expectOneRow(res sql.Result, entity string, id fmt.Stringer) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return domainwf.NewConflict(entity, id)
	}
	return nil
}

func checkTenant(tenant, owner domainwf.TenantID, entity string, id fmt.Stringer) error {
	if tenant != owner {
		return domainwf.Forbiddenf("%s %s belongs to another tenant", entity, id)
	}
	return nil
}

func limitOffset(p port.Page) (int, int) {
	limit := p.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	offset := p.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// parseID decodes a stored uuid column, keeping the first failure in errp
func parseID[T ~[16]byte](s string, errp *error) T {
	u, err := uuid.Parse(s)
	if err != nil && *errp == nil {
		*errp = fmt.Errorf("%w: malformed id %q", domainwf.ErrInvalidRecord, s)
	}
	return T(u)
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

// rowScanner covers *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}
