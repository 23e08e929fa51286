package observability

import (
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordHelpersIncrement(t *testing.T) {
	m := NewMetrics()

	m.RecordLogin("success")
	m.RecordLogin("success")
	m.RecordLogin("invalid_credentials")
	assert.Equal(t, float64(2), testutil.ToFloat64(m.LoginAttemptsTotal.WithLabelValues("success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.LoginAttemptsTotal.WithLabelValues("invalid_credentials")))

	m.RecordStoreFailure("userstore", "put")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.StoreFailuresTotal.WithLabelValues("userstore", "put")))

	m.RecordPermissionCheck("read_own_data", true)
	m.RecordPermissionCheck("read_own_data", false)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PermissionChecksTotal.WithLabelValues("read_own_data", "true")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PermissionChecksTotal.WithLabelValues("read_own_data", "false")))

	m.RecordLogout()
	assert.Equal(t, float64(1), testutil.ToFloat64(m.LogoutsTotal))

	m.RecordGrantOperation("grant", "success")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.GrantOperationsTotal.WithLabelValues("grant", "success")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.RecordHTTPRequest("GET", "/healthz", 200, 0)
	m.RecordSignup("success")
	m.RecordLogin("failure")
	m.RecordLogout()
	m.RecordPermissionCheck("read_own_data", true)
	m.RecordAccessCheck("allowed")
	m.RecordRoleChange("admin", "success")
	m.RecordGrantOperation("revoke", "success")
	m.RecordStoreFailure("kvstore", "set")
	m.RecordSessionFlagWrite("set_logged_in")
}

func TestMetricsHandlerServesRegistry(t *testing.T) {
	m := NewMetrics()
	m.RecordSignup("success")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "tracklet_signups_total")
}
