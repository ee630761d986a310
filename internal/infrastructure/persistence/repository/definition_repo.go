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

const definitionColumns = `id, tenant_id, name, description, status, version, body, created_by, created_at, updated_at`

// DefinitionRepository implements port.DefinitionRepository
type DefinitionRepository struct {
	base
}

// NewDefinitionRepository creates a new definition repository
func NewDefinitionRepository(db *sqlstore.DB, logger *zap.Logger) *DefinitionRepository {
	return &DefinitionRepository{base{db: db, logger: logger}}
}

// Insert stores a new definition
func (r *DefinitionRepository) Insert(ctx context.Context, tenant domainwf.TenantID, def *domainwf.Definition) error {
	if err := checkTenant(tenant, def.TenantID, "workflow definition", def.ID); err != nil {
		return err
	}
	query := `
		INSERT INTO workflow_definitions (` + definitionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.exec(ctx, query,
		def.ID.String(),
		tenant.String(),
		def.Name,
		def.Description,
		def.Status.String(),
		def.Version,
		string(def.Body),
		def.CreatedBy.String(),
		def.CreatedAt.UTC(),
		def.UpdatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to insert definition", zap.String("definition_id", def.ID.String()), zap.Error(err))
		return fmt.Errorf("failed to insert definition: %w", err)
	}
	return nil
}

// Update writes def when the stored version equals expectedVersion
func (r *DefinitionRepository) Update(ctx context.Context, tenant domainwf.TenantID, def *domainwf.Definition, expectedVersion int) error {
	if err := checkTenant(tenant, def.TenantID, "workflow definition", def.ID); err != nil {
		return err
	}
	query := `
		UPDATE workflow_definitions
		SET name = ?, description = ?, status = ?, version = ?, body = ?, updated_at = ?
		WHERE id = ? AND tenant_id = ? AND version = ?
	`
	res, err := r.exec(ctx, query,
		def.Name,
		def.Description,
		def.Status.String(),
		def.Version,
		string(def.Body),
		def.UpdatedAt.UTC(),
		def.ID.String(),
		tenant.String(),
		expectedVersion,
	)
	if err != nil {
		r.logger.Error("Failed to update definition", zap.String("definition_id", def.ID.String()), zap.Error(err))
		return fmt.Errorf("failed to update definition: %w", err)
	}
	return expectOneRow(res, "workflow definition", def.ID)
}

// FindByID returns nil, nil when the definition does not exist in tenant
func (r *DefinitionRepository) FindByID(ctx context.Context, tenant domainwf.TenantID, id domainwf.DefinitionID) (*domainwf.Definition, error) {
	query := `SELECT ` + definitionColumns + ` FROM workflow_definitions WHERE id = ? AND tenant_id = ?`

	def, err := scanDefinition(r.queryRow(ctx, query, id.String(), tenant.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get definition", zap.String("definition_id", id.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to get definition: %w", err)
	}
	return def, nil
}

// List returns the tenant's definitions by name, optionally filtered by status
func (r *DefinitionRepository) List(ctx context.Context, tenant domainwf.TenantID, filter port.DefinitionFilter) ([]*domainwf.Definition, error) {
	query := `SELECT ` + definitionColumns + ` FROM workflow_definitions WHERE tenant_id = ?`
	args := []interface{}{tenant.String()}
	if filter.Status != nil {
		query += ` AND status = ?`
		args = append(args, filter.Status.String())
	}
	limit, offset := limitOffset(filter.Page)
	query += ` ORDER BY name, id LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := r.query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list definitions", zap.Error(err))
		return nil, fmt.Errorf("failed to list definitions: %w", err)
	}
	defer rows.Close()

	var defs []*domainwf.Definition
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan definition: %w", err)
		}
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

func scanDefinition(row rowScanner) (*domainwf.Definition, error) {
	var (
		def                         domainwf.Definition
		id, tenant, createdBy, body string
		status                      string
	)
	if err := row.Scan(
		&id,
		&tenant,
		&def.Name,
		&def.Description,
		&status,
		&def.Version,
		&body,
		&createdBy,
		&def.CreatedAt,
		&def.UpdatedAt,
	); err != nil {
		return nil, err
	}

	var err error
	def.ID = parseID[domainwf.DefinitionID](id, &err)
	def.TenantID = parseID[domainwf.TenantID](tenant, &err)
	def.CreatedBy = parseID[domainwf.UserID](createdBy, &err)
	if err != nil {
		return nil, err
	}
	def.Status = domainwf.DefinitionStatus(status)
	if !def.Status.IsValid() {
		return nil, fmt.Errorf("%w: definition %s has unknown status %q", domainwf.ErrInvalidRecord, id, status)
	}
	def.Body = []byte(body)
	def.CreatedAt = def.CreatedAt.UTC()
	def.UpdatedAt = def.UpdatedAt.UTC()
	return &def, nil
}

// Verify interface compliance
var _ port.DefinitionRepository = (*DefinitionRepository)(nil)
