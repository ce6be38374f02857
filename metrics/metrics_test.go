package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", Outcome(nil))
	assert.Equal(t, "error", Outcome(errors.New("boom")))
}

func TestCountersRecord(t *testing.T) {
	before := testutil.ToFloat64(EmailsTotal.WithLabelValues("created", "ok"))
	EmailsTotal.WithLabelValues("created", "ok").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(EmailsTotal.WithLabelValues("created", "ok")))
}

func TestHandlerExposesRegistry(t *testing.T) {
	TasksTotal.WithLabelValues("test", "ok").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "event_manager_background_tasks_total")
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
