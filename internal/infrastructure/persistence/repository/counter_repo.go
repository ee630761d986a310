package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/ringi/internal/application/port"
	domainwf "github.com/garyjia/ringi/internal/domain/workflow"
	"github.com/garyjia/ringi/internal/infrastructure/persistence/sqlstore"
)

// CounterRepository hands out display numbers from the display_counters table
type CounterRepository struct {
	base
}

// NewCounterRepository creates a new display number counter
func NewCounterRepository(db *sqlstore.DB, logger *zap.Logger) *CounterRepository {
	return &CounterRepository{base{db: db, logger: logger}}
}

// Next seeds the tenant's counter row if needed and increments it. Run inside
// the caller's transaction the number is released again on rollback.
func (r *CounterRepository) Next(ctx context.Context, tenant domainwf.TenantID, entity domainwf.DisplayEntity) (int64, error) {
	seed := `
		INSERT INTO display_counters (tenant_id, entity, last_number)
		VALUES (?, ?, 0)
		ON CONFLICT (tenant_id, entity) DO NOTHING
	`
	if _, err := r.exec(ctx, seed, tenant.String(), string(entity)); err != nil {
		r.logger.Error("Failed to seed display counter", zap.String("entity", string(entity)), zap.Error(err))
		return 0, fmt.Errorf("failed to seed display counter: %w", err)
	}

	bump := `
		UPDATE display_counters
		SET last_number = last_number + 1
		WHERE tenant_id = ? AND entity = ?
		RETURNING last_number
	`
	var next int64
	if err := r.queryRow(ctx, bump, tenant.String(), string(entity)).Scan(&next); err != nil {
		r.logger.Error("Failed to increment display counter", zap.String("entity", string(entity)), zap.Error(err))
		return 0, fmt.Errorf("failed to increment display counter: %w", err)
	}
	return next, nil
}

// Verify interface compliance
var _ port.DisplayNumberCounter = (*CounterRepository)(nil)
