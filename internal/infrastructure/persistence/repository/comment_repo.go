package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/ringi/internal/application/port"
	domainwf "github.com/garyjia/ringi/internal/domain/workflow"
	"github.com/garyjia/ringi/internal/infrastructure/persistence/sqlstore"
)

// CommentRepository implements port.CommentRepository
type CommentRepository struct {
	base
}

// NewCommentRepository creates a new comment repository
func NewCommentRepository(db *sqlstore.DB, logger *zap.Logger) *CommentRepository {
	return &CommentRepository{base{db: db, logger: logger}}
}

// Insert stores a comment
func (r *CommentRepository) Insert(ctx context.Context, tenant domainwf.TenantID, c *domainwf.Comment) error {
	if err := checkTenant(tenant, c.TenantID, "comment", c.ID); err != nil {
		return err
	}
	query := `
		INSERT INTO instance_comments (id, tenant_id, instance_id, posted_by, body, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := r.exec(ctx, query,
		c.ID.String(),
		tenant.String(),
		c.InstanceID.String(),
		c.PostedBy.String(),
		c.Body,
		c.CreatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to insert comment", zap.String("instance_id", c.InstanceID.String()), zap.Error(err))
		return fmt.Errorf("failed to insert comment: %w", err)
	}
	return nil
}

// ListByInstance returns the instance's comments oldest first
func (r *CommentRepository) ListByInstance(ctx context.Context, tenant domainwf.TenantID, instanceID domainwf.InstanceID) ([]*domainwf.Comment, error) {
	query := `
		SELECT id, tenant_id, instance_id, posted_by, body, created_at
		FROM instance_comments
		WHERE tenant_id = ? AND instance_id = ?
		ORDER BY created_at, id
	`
	rows, err := r.query(ctx, query, tenant.String(), instanceID.String())
	if err != nil {
		r.logger.Error("Failed to list comments", zap.String("instance_id", instanceID.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	var comments []*domainwf.Comment
	for rows.Next() {
		var (
			c                                domainwf.Comment
			id, tenantID, instance, postedBy string
		)
		if err := rows.Scan(&id, &tenantID, &instance, &postedBy, &c.Body, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		var perr error
		c.ID = parseID[domainwf.CommentID](id, &perr)
		c.TenantID = parseID[domainwf.TenantID](tenantID, &perr)
		c.InstanceID = parseID[domainwf.InstanceID](instance, &perr)
		c.PostedBy = parseID[domainwf.UserID](postedBy, &perr)
		if perr != nil {
			return nil, perr
		}
		c.CreatedAt = c.CreatedAt.UTC()
		comments = append(comments, &c)
	}
	return comments, rows.Err()
}

// Verify interface compliance
var _ port.CommentRepository = (*CommentRepository)(nil)
