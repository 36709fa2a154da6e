package destination

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/recruitops/atsync/pkg/config"
	"github.com/recruitops/atsync/pkg/errors"
	"github.com/recruitops/atsync/pkg/transport"
)

func newTestDestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	tc := transport.NewClient("destination", srv.URL, transport.NoAuth{}, config.TransportConfig{
		RequestTimeout:   5 * time.Second,
		RetryAttempts:    1,
		RateLimitRetries: 1,
	}, zap.NewNop())
	return NewClient(tc, zap.NewNop())
}

func TestFindByExternalID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/candidates", r.URL.Path)
		assert.Equal(t, "gh_candidate_42", r.URL.Query().Get("filter[external-id]"))
		w.Write([]byte(`{"data":[{"id":"9001","type":"candidates"}]}`))
	}))
	defer srv.Close()

	c := newTestDestClient(t, srv)
	m, err := c.FindByExternalID(context.Background(), ResCandidates, "gh_candidate_42")
	require.NoError(t, err)
	assert.Equal(t, "9001", m.ID)
	assert.Equal(t, 1, m.Count)
}

func TestFindByExternalIDMiss(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	c := newTestDestClient(t, srv)
	m, err := c.FindByExternalID(context.Background(), ResJobs, "gh_job_404")
	require.NoError(t, err)
	assert.Empty(t, m.ID)
	assert.Zero(t, m.Count)
}

func TestPreflightAuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestDestClient(t, srv)
	err := c.Preflight(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeAuthentication))
}

func TestPreflightOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	c := newTestDestClient(t, srv)
	require.NoError(t, c.Preflight(context.Background()))
}
