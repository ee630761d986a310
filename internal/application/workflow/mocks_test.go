package workflow

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/garyjia/ringi/internal/application/dispatcher"
	"github.com/garyjia/ringi/internal/application/port"
	"github.com/garyjia/ringi/internal/domain/event"
	domainwf "github.com/garyjia/ringi/internal/domain/workflow"
)

// memStore backs every repository port with maps. Updates are version-checked
// the same way the SQL repositories check them.
type memStore struct {
	mu          sync.Mutex
	definitions map[domainwf.DefinitionID]*domainwf.Definition
	instances   map[domainwf.InstanceID]*domainwf.Instance
	steps       map[domainwf.StepID]*domainwf.Step
	comments    []*domainwf.Comment
	counters    map[string]int64
}

func newMemStore() *memStore {
	return &memStore{
		definitions: make(map[domainwf.DefinitionID]*domainwf.Definition),
		instances:   make(map[domainwf.InstanceID]*domainwf.Instance),
		steps:       make(map[domainwf.StepID]*domainwf.Step),
		counters:    make(map[string]int64),
	}
}

type mockDefinitionRepo struct{ s *memStore }

func (m mockDefinitionRepo) Insert(ctx context.Context, tenant domainwf.TenantID, def *domainwf.Definition) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.definitions[def.ID] = def
	return nil
}

func (m mockDefinitionRepo) Update(ctx context.Context, tenant domainwf.TenantID, def *domainwf.Definition, expectedVersion int) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	cur, ok := m.s.definitions[def.ID]
	if !ok || cur.TenantID != tenant || cur.Version != expectedVersion {
		return domainwf.NewConflict("workflow definition", def.ID)
	}
	m.s.definitions[def.ID] = def
	return nil
}

func (m mockDefinitionRepo) FindByID(ctx context.Context, tenant domainwf.TenantID, id domainwf.DefinitionID) (*domainwf.Definition, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	def, ok := m.s.definitions[id]
	if !ok || def.TenantID != tenant {
		return nil, nil
	}
	return def, nil
}

func (m mockDefinitionRepo) List(ctx context.Context, tenant domainwf.TenantID, filter port.DefinitionFilter) ([]*domainwf.Definition, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []*domainwf.Definition
	for _, def := range m.s.definitions {
		if def.TenantID != tenant || (filter.Status != nil && def.Status != *filter.Status) {
			continue
		}
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type mockInstanceRepo struct{ s *memStore }

func (m mockInstanceRepo) Insert(ctx context.Context, tenant domainwf.TenantID, inst *domainwf.Instance) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.instances[inst.ID] = inst
	return nil
}

func (m mockInstanceRepo) Update(ctx context.Context, tenant domainwf.TenantID, inst *domainwf.Instance, expectedVersion int) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	cur, ok := m.s.instances[inst.ID]
	if !ok || cur.TenantID != tenant || cur.Version != expectedVersion {
		return domainwf.NewConflict("workflow instance", inst.ID)
	}
	m.s.instances[inst.ID] = inst
	return nil
}

func (m mockInstanceRepo) FindByID(ctx context.Context, tenant domainwf.TenantID, id domainwf.InstanceID) (*domainwf.Instance, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	inst, ok := m.s.instances[id]
	if !ok || inst.TenantID != tenant {
		return nil, nil
	}
	return inst, nil
}

func (m mockInstanceRepo) FindByDisplayNumber(ctx context.Context, tenant domainwf.TenantID, number int64) (*domainwf.Instance, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, inst := range m.s.instances {
		if inst.TenantID == tenant && inst.DisplayNumber == number {
			return inst, nil
		}
	}
	return nil, nil
}

func (m mockInstanceRepo) ListByInitiator(ctx context.Context, tenant domainwf.TenantID, user domainwf.UserID, filter port.InstanceFilter) ([]*domainwf.Instance, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []*domainwf.Instance
	for _, inst := range m.s.instances {
		if inst.TenantID != tenant || inst.InitiatedBy != user {
			continue
		}
		if filter.Status != nil && inst.Status() != *filter.Status {
			continue
		}
		out = append(out, inst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayNumber > out[j].DisplayNumber })
	return out, nil
}

type mockStepRepo struct{ s *memStore }

func (m mockStepRepo) InsertAll(ctx context.Context, tenant domainwf.TenantID, steps []*domainwf.Step) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, st := range steps {
		m.s.steps[st.ID] = st
	}
	return nil
}

func (m mockStepRepo) Update(ctx context.Context, tenant domainwf.TenantID, step *domainwf.Step, expectedVersion int) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	cur, ok := m.s.steps[step.ID]
	if !ok || cur.TenantID != tenant || cur.Version != expectedVersion {
		return domainwf.NewConflict("workflow step", step.ID)
	}
	m.s.steps[step.ID] = step
	return nil
}

func (m mockStepRepo) MarkSkipped(ctx context.Context, tenant domainwf.TenantID, step *domainwf.Step) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if cur, ok := m.s.steps[step.ID]; !ok || cur.TenantID != tenant {
		return errors.New("step not found")
	}
	m.s.steps[step.ID] = step
	return nil
}

func (m mockStepRepo) FindByID(ctx context.Context, tenant domainwf.TenantID, id domainwf.StepID) (*domainwf.Step, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	st, ok := m.s.steps[id]
	if !ok || st.TenantID != tenant {
		return nil, nil
	}
	return st, nil
}

func (m mockStepRepo) FindByDisplayNumber(ctx context.Context, tenant domainwf.TenantID, instanceID domainwf.InstanceID, number int64) (*domainwf.Step, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, st := range m.s.steps {
		if st.TenantID == tenant && st.InstanceID == instanceID && st.DisplayNumber == number {
			return st, nil
		}
	}
	return nil, nil
}

func (m mockStepRepo) FindByInstance(ctx context.Context, tenant domainwf.TenantID, instanceID domainwf.InstanceID) ([]*domainwf.Step, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []*domainwf.Step
	for _, st := range m.s.steps {
		if st.TenantID == tenant && st.InstanceID == instanceID {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayNumber < out[j].DisplayNumber })
	return out, nil
}

func (m mockStepRepo) ListActiveByAssignee(ctx context.Context, tenant domainwf.TenantID, user domainwf.UserID) ([]*domainwf.Step, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []*domainwf.Step
	for _, st := range m.s.steps {
		if st.TenantID == tenant && st.IsAssignedTo(user) && st.Status() == domainwf.StepStatusActive {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayNumber < out[j].DisplayNumber })
	return out, nil
}

type mockCommentRepo struct{ s *memStore }

func (m mockCommentRepo) Insert(ctx context.Context, tenant domainwf.TenantID, c *domainwf.Comment) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.comments = append(m.s.comments, c)
	return nil
}

func (m mockCommentRepo) ListByInstance(ctx context.Context, tenant domainwf.TenantID, instanceID domainwf.InstanceID) ([]*domainwf.Comment, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []*domainwf.Comment
	for _, c := range m.s.comments {
		if c.TenantID == tenant && c.InstanceID == instanceID {
			out = append(out, c)
		}
	}
	return out, nil
}

type mockCounter struct{ s *memStore }

func (m mockCounter) Next(ctx context.Context, tenant domainwf.TenantID, entity domainwf.DisplayEntity) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	key := tenant.String() + "/" + string(entity)
	m.s.counters[key]++
	return m.s.counters[key], nil
}

type mockTxManager struct {
	commitErr error
	calls     int
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.calls++
	if err := fn(ctx); err != nil {
		return err
	}
	return m.commitErr
}

type mockDispatcher struct {
	mu     sync.Mutex
	events []*event.Event
}

func (m *mockDispatcher) Subscribe(eventType event.Type, handler dispatcher.Handler) {}

func (m *mockDispatcher) SubscribeNamed(eventType event.Type, name string, handler dispatcher.Handler) {
}

func (m *mockDispatcher) Unsubscribe(eventType event.Type, name string) {}

func (m *mockDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	m.DispatchAsync(ctx, evt)
	return nil
}

func (m *mockDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
}

func (m *mockDispatcher) ListHandlers(eventType event.Type) []dispatcher.HandlerInfo { return nil }

func (m *mockDispatcher) Close() error { return nil }

func (m *mockDispatcher) types() []event.Type {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]event.Type, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.Type)
	}
	return out
}

type observation struct {
	operation string
	outcome   string
}

type mockMetrics struct {
	mu  sync.Mutex
	obs []observation
}

func (m *mockMetrics) ObserveOperation(operation, outcome string, elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.obs = append(m.obs, observation{operation, outcome})
}

func (m *mockMetrics) last() observation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.obs[len(m.obs)-1]
}

type mockLogger struct {
	mu     sync.Mutex
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}
