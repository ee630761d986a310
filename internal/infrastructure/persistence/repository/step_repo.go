package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/ringi/internal/application/port"
	domainwf "github.com/garyjia/ringi/internal/domain/workflow"
	"github.com/garyjia/ringi/internal/infrastructure/persistence/sqlstore"
)

const stepColumns = `id, tenant_id, instance_id, display_number, position, definition_step_id, name,
	status, version, assigned_to, decision, comment, due_date, started_at, completed_at,
	created_at, updated_at`

// StepRepository implements port.StepRepository
type StepRepository struct {
	base
}

// NewStepRepository creates a new step repository
func NewStepRepository(db *sqlstore.DB, logger *zap.Logger) *StepRepository {
	return &StepRepository{base{db: db, logger: logger}}
}

// InsertAll stores a fresh step chain
func (r *StepRepository) InsertAll(ctx context.Context, tenant domainwf.TenantID, steps []*domainwf.Step) error {
	query := `
		INSERT INTO workflow_steps (` + stepColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, step := range steps {
		if err := checkTenant(tenant, step.TenantID, "workflow step", step.ID); err != nil {
			return err
		}
		rec := step.Record()
		_, err := r.exec(ctx, query,
			rec.ID.String(),
			tenant.String(),
			rec.InstanceID.String(),
			rec.DisplayNumber,
			rec.Position,
			rec.DefinitionStepID,
			rec.Name,
			rec.Status,
			rec.Version,
			nullUser(rec.AssignedTo),
			nullString(rec.Decision),
			nullString(rec.Comment),
			nullTime(rec.DueDate),
			nullTime(rec.StartedAt),
			nullTime(rec.CompletedAt),
			rec.CreatedAt.UTC(),
			rec.UpdatedAt.UTC(),
		)
		if err != nil {
			r.logger.Error("Failed to insert step", zap.String("step_id", rec.ID.String()), zap.Error(err))
			return fmt.Errorf("failed to insert step: %w", err)
		}
	}
	return nil
}

// Update writes step when the stored version equals expectedVersion
func (r *StepRepository) Update(ctx context.Context, tenant domainwf.TenantID, step *domainwf.Step, expectedVersion int) error {
	if err := checkTenant(tenant, step.TenantID, "workflow step", step.ID); err != nil {
		return err
	}
	rec := step.Record()
	query := `
		UPDATE workflow_steps
		SET status = ?, version = ?, decision = ?, comment = ?, due_date = ?,
			started_at = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND tenant_id = ? AND version = ?
	`
	res, err := r.exec(ctx, query,
		rec.Status,
		rec.Version,
		nullString(rec.Decision),
		nullString(rec.Comment),
		nullTime(rec.DueDate),
		nullTime(rec.StartedAt),
		nullTime(rec.CompletedAt),
		rec.UpdatedAt.UTC(),
		rec.ID.String(),
		tenant.String(),
		expectedVersion,
	)
	if err != nil {
		r.logger.Error("Failed to update step", zap.String("step_id", rec.ID.String()), zap.Error(err))
		return fmt.Errorf("failed to update step: %w", err)
	}
	return expectOneRow(res, "workflow step", step.ID)
}

// MarkSkipped persists a skipped step. The version is neither checked nor
// changed.
func (r *StepRepository) MarkSkipped(ctx context.Context, tenant domainwf.TenantID, step *domainwf.Step) error {
	if err := checkTenant(tenant, step.TenantID, "workflow step", step.ID); err != nil {
		return err
	}
	query := `UPDATE workflow_steps SET status = ?, updated_at = ? WHERE id = ? AND tenant_id = ?`

	res, err := r.exec(ctx, query,
		domainwf.StepStatusSkipped.String(),
		step.UpdatedAt.UTC(),
		step.ID.String(),
		tenant.String(),
	)
	if err != nil {
		r.logger.Error("Failed to skip step", zap.String("step_id", step.ID.String()), zap.Error(err))
		return fmt.Errorf("failed to skip step: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return domainwf.NewNotFound("workflow step", step.ID)
	}
	return nil
}

// FindByID returns nil, nil when the step does not exist in tenant
func (r *StepRepository) FindByID(ctx context.Context, tenant domainwf.TenantID, id domainwf.StepID) (*domainwf.Step, error) {
	query := `SELECT ` + stepColumns + ` FROM workflow_steps WHERE id = ? AND tenant_id = ?`
	return r.findOne(ctx, query, id.String(), tenant.String())
}

// FindByDisplayNumber looks a step up by its STEP number within one instance
func (r *StepRepository) FindByDisplayNumber(ctx context.Context, tenant domainwf.TenantID, instanceID domainwf.InstanceID, number int64) (*domainwf.Step, error) {
	query := `SELECT ` + stepColumns + ` FROM workflow_steps WHERE tenant_id = ? AND instance_id = ? AND display_number = ?`
	return r.findOne(ctx, query, tenant.String(), instanceID.String(), number)
}

// FindByInstance returns every step of the instance ordered by display number
func (r *StepRepository) FindByInstance(ctx context.Context, tenant domainwf.TenantID, instanceID domainwf.InstanceID) ([]*domainwf.Step, error) {
	query := `SELECT ` + stepColumns + ` FROM workflow_steps WHERE tenant_id = ? AND instance_id = ? ORDER BY display_number`
	return r.findMany(ctx, query, tenant.String(), instanceID.String())
}

// ListActiveByAssignee returns the user's open tasks, oldest first
func (r *StepRepository) ListActiveByAssignee(ctx context.Context, tenant domainwf.TenantID, user domainwf.UserID) ([]*domainwf.Step, error) {
	query := `SELECT ` + stepColumns + ` FROM workflow_steps
		WHERE tenant_id = ? AND assigned_to = ? AND status = ?
		ORDER BY started_at, display_number`
	return r.findMany(ctx, query, tenant.String(), user.String(), domainwf.StepStatusActive.String())
}

// ListOverdue returns one page of active steps past their due date across
// all tenants, keyed on (due_date, id). Steps of cancelled instances stay
// active, so the instance status is checked.
func (r *StepRepository) ListOverdue(ctx context.Context, now time.Time, after *port.OverdueCursor, limit int) ([]*domainwf.Step, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	query := `SELECT ` + stepColumns + ` FROM workflow_steps
		WHERE status = ? AND due_date IS NOT NULL AND due_date < ?
		AND instance_id IN (SELECT id FROM workflow_instances WHERE status = ?)`
	args := []interface{}{
		domainwf.StepStatusActive.String(),
		now.UTC(),
		domainwf.StatusInProgress.String(),
	}
	if after != nil {
		due := after.DueDate.UTC()
		query += ` AND (due_date > ? OR (due_date = ? AND id > ?))`
		args = append(args, due, due, after.StepID.String())
	}
	query += ` ORDER BY due_date, id LIMIT ?`
	args = append(args, limit)
	return r.findMany(ctx, query, args...)
}

func (r *StepRepository) findOne(ctx context.Context, query string, args ...interface{}) (*domainwf.Step, error) {
	step, err := scanStep(r.queryRow(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get step", zap.Error(err))
		return nil, fmt.Errorf("failed to get step: %w", err)
	}
	return step, nil
}

func (r *StepRepository) findMany(ctx context.Context, query string, args ...interface{}) ([]*domainwf.Step, error) {
	rows, err := r.query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list steps", zap.Error(err))
		return nil, fmt.Errorf("failed to list steps: %w", err)
	}
	defer rows.Close()

	var steps []*domainwf.Step
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

func scanStep(row rowScanner) (*domainwf.Step, error) {
	var (
		rec                             domainwf.StepRecord
		id, tenant, instance            string
		assignee, decision, comment     sql.NullString
		dueDate, startedAt, completedAt sql.NullTime
	)
	if err := row.Scan(
		&id,
		&tenant,
		&instance,
		&rec.DisplayNumber,
		&rec.Position,
		&rec.DefinitionStepID,
		&rec.Name,
		&rec.Status,
		&rec.Version,
		&assignee,
		&decision,
		&comment,
		&dueDate,
		&startedAt,
		&completedAt,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		return nil, err
	}

	var err error
	rec.ID = parseID[domainwf.StepID](id, &err)
	rec.TenantID = parseID[domainwf.TenantID](tenant, &err)
	rec.InstanceID = parseID[domainwf.InstanceID](instance, &err)
	if assignee.Valid {
		user := parseID[domainwf.UserID](assignee.String, &err)
		rec.AssignedTo = &user
	}
	if err != nil {
		return nil, err
	}
	rec.Decision = stringPtr(decision)
	rec.Comment = stringPtr(comment)
	rec.DueDate = timePtr(dueDate)
	rec.StartedAt = timePtr(startedAt)
	rec.CompletedAt = timePtr(completedAt)
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()

	return rec.Restore()
}

func nullUser(u *domainwf.UserID) sql.NullString {
	if u == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: u.String(), Valid: true}
}

// Verify interface compliance
var (
	_ port.StepRepository    = (*StepRepository)(nil)
	_ port.OverdueStepFinder = (*StepRepository)(nil)
)
