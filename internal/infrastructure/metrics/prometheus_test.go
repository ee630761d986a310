package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_ObserveOperation(t *testing.T) {
	r := NewRecorder("test")

	r.ObserveOperation("approve_step", "ok", 5*time.Millisecond)
	r.ObserveOperation("approve_step", "ok", 7*time.Millisecond)
	r.ObserveOperation("approve_step", "conflict", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.operations.WithLabelValues("approve_step", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.operations.WithLabelValues("approve_step", "conflict")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.duration))
}

func TestRecorder_Handler(t *testing.T) {
	r := NewRecorder("")
	r.ObserveOperation("submit_instance", "validation", time.Millisecond)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `ringi_workflow_operations_total{operation="submit_instance",outcome="validation"} 1`))
	assert.Contains(t, body, "go_goroutines")
}
