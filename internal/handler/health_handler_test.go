package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"carprice/internal/api"
	"carprice/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBroker struct{ closed bool }

func (b fakeBroker) IsClosed() bool { return b.closed }

func TestHealth_ReturnsOK(t *testing.T) {
	for _, method := range []string{http.MethodGet, http.MethodHead} {
		t.Run(method, func(t *testing.T) {
			w := httptest.NewRecorder()
			Health(w, httptest.NewRequest(method, "/health", nil))

			testutil.AssertStatusCode(t, w, http.StatusOK)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		})
	}
}

func TestRoot_ListsEndpoints(t *testing.T) {
	w := httptest.NewRecorder()
	Root(w, httptest.NewRequest(http.MethodGet, "/api/", nil))

	testutil.AssertStatusCode(t, w, http.StatusOK)
	resp := testutil.DecodeJSON[api.RootResponse](t, w)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "/api/token/refresh/", resp.Endpoints["token_refresh"])
}

type readyResponse struct {
	Status string                       `json:"status"`
	Checks map[string]HealthCheckResult `json:"checks"`
}

func TestReady(t *testing.T) {
	tests := []struct {
		name       string
		dbErr      error
		redisDown  bool
		broker     Broker
		wantStatus int
		wantChecks map[string]string
	}{
		{
			name:       "all up",
			broker:     fakeBroker{},
			wantStatus: http.StatusOK,
			wantChecks: map[string]string{"database": "up", "redis": "up", "rabbitmq": "up"},
		},
		{
			name:       "broker disabled",
			broker:     nil,
			wantStatus: http.StatusOK,
			wantChecks: map[string]string{"database": "up", "redis": "up", "rabbitmq": "disabled"},
		},
		{
			name:       "database down",
			dbErr:      errors.New("connection refused"),
			broker:     fakeBroker{},
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"database": "down", "redis": "up", "rabbitmq": "up"},
		},
		{
			name:       "redis down",
			redisDown:  true,
			broker:     fakeBroker{},
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"database": "up", "redis": "down", "rabbitmq": "up"},
		},
		{
			name:       "broker closed",
			broker:     fakeBroker{closed: true},
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"database": "up", "redis": "up", "rabbitmq": "down"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
			require.NoError(t, err)
			defer db.Close()
			mock.ExpectPing().WillReturnError(tt.dbErr)

			mr := miniredis.RunT(t)
			rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			defer rdb.Close()
			if tt.redisDown {
				mr.Close()
			}

			w := httptest.NewRecorder()
			Ready(db, rdb, tt.broker)(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			testutil.AssertStatusCode(t, w, tt.wantStatus)
			resp := testutil.DecodeJSON[readyResponse](t, w)
			for name, want := range tt.wantChecks {
				assert.Equal(t, want, resp.Checks[name].Status, name)
			}
		})
	}
}
