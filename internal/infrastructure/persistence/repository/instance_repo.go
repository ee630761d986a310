package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/ringi/internal/application/port"
	domainwf "github.com/garyjia/ringi/internal/domain/workflow"
	"github.com/garyjia/ringi/internal/infrastructure/persistence/sqlstore"
)

const instanceColumns = `id, tenant_id, definition_id, definition_version, display_number, title, form_data,
	status, version, current_step_id, initiated_by, submitted_at, completed_at,
	cancelled_from, cancel_reason, created_at, updated_at`

// InstanceRepository implements port.InstanceRepository
type InstanceRepository struct {
	base
}

// NewInstanceRepository creates a new instance repository
func NewInstanceRepository(db *sqlstore.DB, logger *zap.Logger) *InstanceRepository {
	return &InstanceRepository{base{db: db, logger: logger}}
}

// Insert stores a new instance
func (r *InstanceRepository) Insert(ctx context.Context, tenant domainwf.TenantID, inst *domainwf.Instance) error {
	if err := checkTenant(tenant, inst.TenantID, "workflow instance", inst.ID); err != nil {
		return err
	}
	rec := inst.Record()
	query := `
		INSERT INTO workflow_instances (` + instanceColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.exec(ctx, query,
		rec.ID.String(),
		tenant.String(),
		rec.DefinitionID.String(),
		rec.DefinitionVersion,
		rec.DisplayNumber,
		rec.Title,
		string(rec.FormData),
		rec.Status,
		rec.Version,
		nullString(rec.CurrentStepID),
		rec.InitiatedBy.String(),
		nullTime(rec.SubmittedAt),
		nullTime(rec.CompletedAt),
		nullString(rec.CancelledFrom),
		nullString(rec.CancelReason),
		rec.CreatedAt.UTC(),
		rec.UpdatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to insert instance", zap.String("instance_id", rec.ID.String()), zap.Error(err))
		return fmt.Errorf("failed to insert instance: %w", err)
	}
	return nil
}

// Update writes inst when the stored version equals expectedVersion
func (r *InstanceRepository) Update(ctx context.Context, tenant domainwf.TenantID, inst *domainwf.Instance, expectedVersion int) error {
	if err := checkTenant(tenant, inst.TenantID, "workflow instance", inst.ID); err != nil {
		return err
	}
	rec := inst.Record()
	query := `
		UPDATE workflow_instances
		SET title = ?, form_data = ?, status = ?, version = ?, current_step_id = ?,
			submitted_at = ?, completed_at = ?, cancelled_from = ?, cancel_reason = ?, updated_at = ?
		WHERE id = ? AND tenant_id = ? AND version = ?
	`
	res, err := r.exec(ctx, query,
		rec.Title,
		string(rec.FormData),
		rec.Status,
		rec.Version,
		nullString(rec.CurrentStepID),
		nullTime(rec.SubmittedAt),
		nullTime(rec.CompletedAt),
		nullString(rec.CancelledFrom),
		nullString(rec.CancelReason),
		rec.UpdatedAt.UTC(),
		rec.ID.String(),
		tenant.String(),
		expectedVersion,
	)
	if err != nil {
		r.logger.Error("Failed to update instance", zap.String("instance_id", rec.ID.String()), zap.Error(err))
		return fmt.Errorf("failed to update instance: %w", err)
	}
	return expectOneRow(res, "workflow instance", inst.ID)
}

// FindByID returns nil, nil when the instance does not exist in tenant
func (r *InstanceRepository) FindByID(ctx context.Context, tenant domainwf.TenantID, id domainwf.InstanceID) (*domainwf.Instance, error) {
	query := `SELECT ` + instanceColumns + ` FROM workflow_instances WHERE id = ? AND tenant_id = ?`
	return r.findOne(ctx, query, id.String(), tenant.String())
}

// FindByDisplayNumber looks an instance up by its WF number
func (r *InstanceRepository) FindByDisplayNumber(ctx context.Context, tenant domainwf.TenantID, number int64) (*domainwf.Instance, error) {
	query := `SELECT ` + instanceColumns + ` FROM workflow_instances WHERE tenant_id = ? AND display_number = ?`
	return r.findOne(ctx, query, tenant.String(), number)
}

func (r *InstanceRepository) findOne(ctx context.Context, query string, args ...interface{}) (*domainwf.Instance, error) {
	inst, err := scanInstance(r.queryRow(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get instance", zap.Error(err))
		return nil, fmt.Errorf("failed to get instance: %w", err)
	}
	return inst, nil
}

// ListByInitiator returns the user's instances, newest first
func (r *InstanceRepository) ListByInitiator(ctx context.Context, tenant domainwf.TenantID, user domainwf.UserID, filter port.InstanceFilter) ([]*domainwf.Instance, error) {
	query := `SELECT ` + instanceColumns + ` FROM workflow_instances WHERE tenant_id = ? AND initiated_by = ?`
	args := []interface{}{tenant.String(), user.String()}
	if filter.Status != nil {
		query += ` AND status = ?`
		args = append(args, filter.Status.String())
	}
	limit, offset := limitOffset(filter.Page)
	query += ` ORDER BY display_number DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := r.query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list instances", zap.Error(err))
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}
	defer rows.Close()

	var instances []*domainwf.Instance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan instance: %w", err)
		}
		instances = append(instances, inst)
	}
	return instances, rows.Err()
}

func scanInstance(row rowScanner) (*domainwf.Instance, error) {
	var (
		rec                                      domainwf.InstanceRecord
		id, tenant, definition, initiator, form  string
		currentStep, cancelledFrom, cancelReason sql.NullString
		submittedAt, completedAt                 sql.NullTime
	)
	if err := row.Scan(
		&id,
		&tenant,
		&definition,
		&rec.DefinitionVersion,
		&rec.DisplayNumber,
		&rec.Title,
		&form,
		&rec.Status,
		&rec.Version,
		&currentStep,
		&initiator,
		&submittedAt,
		&completedAt,
		&cancelledFrom,
		&cancelReason,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		return nil, err
	}

	var err error
	rec.ID = parseID[domainwf.InstanceID](id, &err)
	rec.TenantID = parseID[domainwf.TenantID](tenant, &err)
	rec.DefinitionID = parseID[domainwf.DefinitionID](definition, &err)
	rec.InitiatedBy = parseID[domainwf.UserID](initiator, &err)
	if err != nil {
		return nil, err
	}
	rec.FormData = []byte(form)
	rec.CurrentStepID = stringPtr(currentStep)
	rec.SubmittedAt = timePtr(submittedAt)
	rec.CompletedAt = timePtr(completedAt)
	rec.CancelledFrom = stringPtr(cancelledFrom)
	rec.CancelReason = stringPtr(cancelReason)
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()

	return rec.Restore()
}

// Verify interface compliance
var _ port.InstanceRepository = (*InstanceRepository)(nil)
