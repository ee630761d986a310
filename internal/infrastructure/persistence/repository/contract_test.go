package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/ringi/internal/application/port"
	domainwf "github.com/garyjia/ringi/internal/domain/workflow"
	"github.com/garyjia/ringi/internal/infrastructure/persistence/sqlstore"
)

var baseTime = time.Date(2024, 5, 2, 8, 30, 0, 0, time.UTC)

const validBody = `{
	"form": {"fields": [{"id": "amount", "type": "number", "label": "Amount"}]},
	"steps": [
		{"id": "start", "type": "start", "name": "Start"},
		{"id": "mgr", "type": "approval", "name": "Manager", "fields": ["amount"], "due_in_hours": 24},
		{"id": "end", "type": "end", "name": "End"}
	],
	"transitions": [
		{"from": "start", "to": "mgr"},
		{"from": "mgr", "to": "end", "trigger": "approve"},
		{"from": "mgr", "to": "end", "trigger": "reject"}
	]
}`

// stores bundles the repositories under test
type stores struct {
	db          *sqlstore.DB
	definitions *DefinitionRepository
	instances   *InstanceRepository
	steps       *StepRepository
	comments    *CommentRepository
	counter     *CounterRepository
}

func newStores(db *sqlstore.DB) *stores {
	logger := zap.NewNop()
	return &stores{
		db:          db,
		definitions: NewDefinitionRepository(db, logger),
		instances:   NewInstanceRepository(db, logger),
		steps:       NewStepRepository(db, logger),
		comments:    NewCommentRepository(db, logger),
		counter:     NewCounterRepository(db, logger),
	}
}

// runContract exercises every repository against a migrated database
func runContract(t *testing.T, db *sqlstore.DB) {
	s := newStores(db)
	t.Run("definitions", func(t *testing.T) { testDefinitions(t, s) })
	t.Run("instances", func(t *testing.T) { testInstances(t, s) })
	t.Run("steps", func(t *testing.T) { testSteps(t, s) })
	t.Run("comments", func(t *testing.T) { testComments(t, s) })
	t.Run("counter", func(t *testing.T) { testCounter(t, s) })
}

func (s *stores) definition(t *testing.T, tenant domainwf.TenantID, name string) *domainwf.Definition {
	t.Helper()
	def, err := domainwf.NewDefinition(domainwf.NewDefinitionParams{
		ID:        domainwf.NewDefinitionID(),
		TenantID:  tenant,
		Name:      name,
		Body:      json.RawMessage(validBody),
		CreatedBy: domainwf.NewUserID(),
		Now:       baseTime,
	})
	require.NoError(t, err)
	require.NoError(t, s.definitions.Insert(context.Background(), tenant, def))
	return def
}

func (s *stores) instance(t *testing.T, def *domainwf.Definition, initiator domainwf.UserID, number int64) *domainwf.Instance {
	t.Helper()
	inst, err := domainwf.NewInstance(domainwf.NewInstanceParams{
		ID:                domainwf.NewInstanceID(),
		TenantID:          def.TenantID,
		DefinitionID:      def.ID,
		DefinitionVersion: def.Version,
		DisplayNumber:     number,
		Title:             "Conference trip",
		FormData:          json.RawMessage(`{"amount":300}`),
		InitiatedBy:       initiator,
		Now:               baseTime,
	})
	require.NoError(t, err)
	require.NoError(t, s.instances.Insert(context.Background(), def.TenantID, inst))
	return inst
}

func (s *stores) chain(t *testing.T, inst *domainwf.Instance, assignee domainwf.UserID, firstNumber int64, n int) []*domainwf.Step {
	t.Helper()
	due := baseTime.Add(24 * time.Hour)
	steps := make([]*domainwf.Step, n)
	for i := range steps {
		p := domainwf.NewStepParams{
			ID:               domainwf.NewStepID(),
			TenantID:         inst.TenantID,
			InstanceID:       inst.ID,
			DisplayNumber:    firstNumber + int64(i),
			Position:         i + 1,
			DefinitionStepID: "mgr",
			Name:             "Manager",
			AssignedTo:       &assignee,
			Now:              baseTime,
		}
		if i == 0 {
			p.DueDate = &due
			steps[i] = domainwf.NewActiveStep(p)
			continue
		}
		steps[i] = domainwf.NewStep(p)
	}
	require.NoError(t, s.steps.InsertAll(context.Background(), inst.TenantID, steps))
	return steps
}

func testDefinitions(t *testing.T, s *stores) {
	ctx := context.Background()
	tenant := domainwf.NewTenantID()
	def := s.definition(t, tenant, "Travel")
	s.definition(t, tenant, "Equipment")

	got, err := s.definitions.FindByID(ctx, tenant, def.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, def.Name, got.Name)
	assert.Equal(t, domainwf.DefinitionDraft, got.Status)
	assert.JSONEq(t, validBody, string(got.Body))
	assert.True(t, def.CreatedAt.Equal(got.CreatedAt))

	other, err := s.definitions.FindByID(ctx, domainwf.NewTenantID(), def.ID)
	require.NoError(t, err)
	assert.Nil(t, other, "other tenants cannot see the row")

	published, err := def.Published(baseTime.Add(time.Minute))
	require.NoError(t, err)
	require.NoError(t, s.definitions.Update(ctx, tenant, published, def.Version))

	err = s.definitions.Update(ctx, tenant, published, def.Version)
	assert.ErrorIs(t, err, domainwf.ErrConflict)

	err = s.definitions.Update(ctx, domainwf.NewTenantID(), published, published.Version)
	assert.ErrorIs(t, err, domainwf.ErrForbidden)

	status := domainwf.DefinitionPublished
	list, err := s.definitions.List(ctx, tenant, port.DefinitionFilter{Status: &status})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 2, list[0].Version)

	all, err := s.definitions.List(ctx, tenant, port.DefinitionFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Equipment", all[0].Name)

	page, err := s.definitions.List(ctx, tenant, port.DefinitionFilter{Page: port.Page{Limit: 1, Offset: 1}})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "Travel", page[0].Name)
}

func testInstances(t *testing.T, s *stores) {
	ctx := context.Background()
	tenant := domainwf.NewTenantID()
	def := s.definition(t, tenant, "Travel")
	alice, bob := domainwf.NewUserID(), domainwf.NewUserID()

	first := s.instance(t, def, alice, 1)
	s.instance(t, def, bob, 2)
	third := s.instance(t, def, alice, 3)

	got, err := s.instances.FindByDisplayNumber(ctx, tenant, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, domainwf.StatusDraft, got.Status())
	assert.JSONEq(t, `{"amount":300}`, string(got.FormData))

	missing, err := s.instances.FindByDisplayNumber(ctx, tenant, 99)
	require.NoError(t, err)
	assert.Nil(t, missing)

	now := baseTime.Add(time.Hour)
	pending, err := first.Submitted(now)
	require.NoError(t, err)
	running, err := pending.WithCurrentStep("mgr", now)
	require.NoError(t, err)
	require.NoError(t, s.instances.Update(ctx, tenant, running, first.Version))

	cancelled, err := running.Cancelled("duplicate", now.Add(time.Minute))
	require.NoError(t, err)
	require.NoError(t, s.instances.Update(ctx, tenant, cancelled, running.Version))

	err = s.instances.Update(ctx, tenant, cancelled, running.Version)
	assert.ErrorIs(t, err, domainwf.ErrConflict)

	got, err = s.instances.FindByID(ctx, tenant, first.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	state, ok := got.State.(domainwf.CancelledState)
	require.True(t, ok)
	assert.Equal(t, domainwf.StatusInProgress, state.From)
	assert.Equal(t, "duplicate", state.Reason)
	assert.Equal(t, "mgr", state.CurrentStep)
	require.NotNil(t, state.SubmittedAt)
	assert.True(t, now.Equal(*state.SubmittedAt))
	assert.Equal(t, 4, got.Version)

	mine, err := s.instances.ListByInitiator(ctx, tenant, alice, port.InstanceFilter{})
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, third.ID, mine[0].ID, "newest first")

	draft := domainwf.StatusDraft
	drafts, err := s.instances.ListByInitiator(ctx, tenant, alice, port.InstanceFilter{Status: &draft})
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, third.ID, drafts[0].ID)
}

func testSteps(t *testing.T, s *stores) {
	ctx := context.Background()
	tenant := domainwf.NewTenantID()
	def := s.definition(t, tenant, "Travel")
	approver := domainwf.NewUserID()
	inst := s.instance(t, def, domainwf.NewUserID(), 1)
	steps := s.chain(t, inst, approver, 10, 3)

	all, err := s.steps.FindByInstance(ctx, tenant, inst.ID)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, int64(10), all[0].DisplayNumber)
	assert.Equal(t, domainwf.StepStatusActive, all[0].Status())
	require.NotNil(t, all[0].DueDate)
	assert.True(t, baseTime.Add(24*time.Hour).Equal(*all[0].DueDate))
	assert.True(t, all[0].IsAssignedTo(approver))

	tasks, err := s.steps.ListActiveByAssignee(ctx, tenant, approver)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, steps[0].ID, tasks[0].ID)

	note := "see receipt"
	completedAt := baseTime.Add(2 * time.Hour)
	rejected, err := steps[0].Reject(&note, completedAt)
	require.NoError(t, err)
	require.NoError(t, s.steps.Update(ctx, tenant, rejected, steps[0].Version))
	assert.ErrorIs(t, s.steps.Update(ctx, tenant, rejected, steps[0].Version), domainwf.ErrConflict)

	for _, pending := range steps[1:] {
		skipped, err := pending.Skipped(completedAt)
		require.NoError(t, err)
		require.NoError(t, s.steps.MarkSkipped(ctx, tenant, skipped))
	}
	assert.ErrorIs(t, s.steps.MarkSkipped(ctx, domainwf.NewTenantID(), steps[1]), domainwf.ErrForbidden)

	got, err := s.steps.FindByDisplayNumber(ctx, tenant, inst.ID, 10)
	require.NoError(t, err)
	require.NotNil(t, got)
	completed, ok := got.State.(domainwf.StepCompleted)
	require.True(t, ok)
	assert.Equal(t, domainwf.DecisionRejected, completed.Decision)
	require.NotNil(t, completed.Comment)
	assert.Equal(t, note, *completed.Comment)
	assert.True(t, completedAt.Equal(completed.CompletedAt))
	assert.True(t, baseTime.Equal(completed.StartedAt))
	assert.Equal(t, 2, got.Version)

	skipped, err := s.steps.FindByID(ctx, tenant, steps[2].ID)
	require.NoError(t, err)
	assert.Equal(t, domainwf.StepStatusSkipped, skipped.Status())
	assert.Equal(t, 1, skipped.Version)

	tasks, err = s.steps.ListActiveByAssignee(ctx, tenant, approver)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	none, err := s.steps.FindByID(ctx, domainwf.NewTenantID(), steps[0].ID)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func testComments(t *testing.T, s *stores) {
	ctx := context.Background()
	tenant := domainwf.NewTenantID()
	def := s.definition(t, tenant, "Travel")
	user := domainwf.NewUserID()
	inst := s.instance(t, def, user, 1)

	for i, body := range []string{"first", "second"} {
		c, err := domainwf.NewComment(domainwf.NewCommentParams{
			ID:         domainwf.NewCommentID(),
			TenantID:   tenant,
			InstanceID: inst.ID,
			PostedBy:   user,
			Body:       body,
			Now:        baseTime.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
		require.NoError(t, s.comments.Insert(ctx, tenant, c))
	}

	list, err := s.comments.ListByInstance(ctx, tenant, inst.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "first", list[0].Body)
	assert.Equal(t, user, list[1].PostedBy)

	list, err = s.comments.ListByInstance(ctx, domainwf.NewTenantID(), inst.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func testCounter(t *testing.T, s *stores) {
	ctx := context.Background()
	a, b := domainwf.NewTenantID(), domainwf.NewTenantID()

	for want := int64(1); want <= 3; want++ {
		got, err := s.counter.Next(ctx, a, domainwf.EntityInstance)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	got, err := s.counter.Next(ctx, a, domainwf.EntityStep)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got, "each entity has its own sequence")

	got, err = s.counter.Next(ctx, b, domainwf.EntityInstance)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got, "each tenant has its own sequence")

	err = s.db.WithTransaction(ctx, func(ctx context.Context) error {
		n, err := s.counter.Next(ctx, a, domainwf.EntityInstance)
		require.NoError(t, err)
		assert.Equal(t, int64(4), n)
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	got, err = s.counter.Next(ctx, a, domainwf.EntityInstance)
	require.NoError(t, err)
	assert.Equal(t, int64(4), got, "a rolled back number is handed out again")
}
