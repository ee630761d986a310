package workflow

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Comment is a note posted on an instance by one of its participants
type Comment struct {
	ID         CommentID
	TenantID   TenantID
	InstanceID InstanceID
	PostedBy   UserID
	Body       string
	CreatedAt  time.Time
}

// NewCommentParams holds the inputs for posting a comment
type NewCommentParams struct {
	ID         CommentID
	TenantID   TenantID
	InstanceID InstanceID
	PostedBy   UserID
	Body       string
	Now        time.Time
}

// NewComment trims and checks the body
func NewComment(p NewCommentParams) (*Comment, error) {
	body := strings.TrimSpace(p.Body)
	if body == "" {
		return nil, Validationf("comment body is required")
	}
	if utf8.RuneCountInString(body) > maxCommentLength {
		return nil, Validationf("comment must be at most %d characters", maxCommentLength)
	}
	return &Comment{
		ID:         p.ID,
		TenantID:   p.TenantID,
		InstanceID: p.InstanceID,
		PostedBy:   p.PostedBy,
		Body:       body,
		CreatedAt:  p.Now,
	}, nil
}

// IsParticipant reports whether user initiated the instance or is assigned to
// one of its steps
func IsParticipant(instance *Instance, steps []*Step, user UserID) bool {
	if instance.InitiatedBy == user {
		return true
	}
	for _, s := range steps {
		if s.IsAssignedTo(user) {
			return true
		}
	}
	return false
}
