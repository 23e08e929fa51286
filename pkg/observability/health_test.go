package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLivenessAlwaysOK(t *testing.T) {
	h := NewHealth(time.Second)
	h.Register(CheckerFunc{CheckerName: "broken", Fn: func(context.Context) error {
		return errors.New("down")
	}})

	rec := httptest.NewRecorder()
	h.LivenessHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))
	assert.Equal(t, 200, rec.Code)
}

func TestReadinessReflectsCheckers(t *testing.T) {
	h := NewHealth(time.Second)
	h.Register(CheckerFunc{CheckerName: "kvstore", Fn: func(context.Context) error {
		return nil
	}})

	rec := httptest.NewRecorder()
	h.ReadinessHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/readyz", nil))
	require.Equal(t, 200, rec.Code)

	h.Register(CheckerFunc{CheckerName: "provider", Fn: func(context.Context) error {
		return errors.New("unreachable")
	}})

	rec = httptest.NewRecorder()
	h.ReadinessHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/readyz", nil))
	require.Equal(t, 503, rec.Code)

	var body struct {
		Status string                 `json:"status"`
		Checks map[string]checkResult `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not_ready", body.Status)
	assert.Equal(t, "healthy", body.Checks["kvstore"].Status)
	assert.Equal(t, "unhealthy", body.Checks["provider"].Status)
	assert.Equal(t, "unreachable", body.Checks["provider"].Error)
}

func TestCheckHonorsTimeout(t *testing.T) {
	h := NewHealth(10 * time.Millisecond)
	h.Register(CheckerFunc{CheckerName: "slow", Fn: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})

	healthy, results := h.Check(context.Background())
	assert.False(t, healthy)
	assert.Equal(t, "unhealthy", results["slow"].Status)
}
