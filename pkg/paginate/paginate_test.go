package paginate

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/recruitops/atsync/pkg/config"
	"github.com/recruitops/atsync/pkg/errors"
	"github.com/recruitops/atsync/pkg/transport"
)

func testSourceConfig() config.SourceConfig {
	return config.SourceConfig{
		Name:       "gh",
		Pagination: config.PaginationPage,
		PageSize:   100,
		MaxPages:   1000,
	}
}

func newTestPaginator(t *testing.T, srv *httptest.Server, cfg config.SourceConfig) *Paginator {
	t.Helper()
	client := transport.NewClient("source", srv.URL, transport.NoAuth{}, config.TransportConfig{
		RequestTimeout:   5 * time.Second,
		RetryAttempts:    1,
		RateLimitRetries: 1,
	}, zap.NewNop())
	return New(client, cfg, zap.NewNop())
}

func pageOfRecords(n, offset int) []map[string]interface{} {
	out := make([]map[string]interface{}, n)
	for i := 0; i < n; i++ {
		out[i] = map[string]interface{}{"id": offset + i}
	}
	return out
}

func TestFetchAllStopsAtEmptyPage(t *testing.T) {
	pageSizes := []int{100, 100, 37, 0}
	var requests int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		page, err := strconv.Atoi(r.URL.Query().Get("page"))
		require.NoError(t, err)
		require.Equal(t, "100", r.URL.Query().Get("per_page"))
		require.LessOrEqual(t, page, len(pageSizes), "paginator requested a page past the empty page")

		body, _ := gojson.Marshal(pageOfRecords(pageSizes[page-1], (page-1)*100))
		w.Write(body)
	}))
	defer srv.Close()

	p := newTestPaginator(t, srv, testSourceConfig())
	records, err := p.FetchAll(context.Background(), "/v1/candidates")
	require.NoError(t, err)

	assert.Len(t, records, 237)
	assert.EqualValues(t, 4, atomic.LoadInt32(&requests))
}

func TestFetchAllEmptyFirstPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	p := newTestPaginator(t, srv, testSourceConfig())
	records, err := p.FetchAll(context.Background(), "/v1/candidates")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestCursorPagination(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&requests, 1)
		switch r.URL.Query().Get("cursor") {
		case "":
			require.EqualValues(t, 1, n)
			fmt.Fprint(w, `{"data":[{"id":1},{"id":2}],"meta":{"next_cursor":"abc"}}`)
		case "abc":
			fmt.Fprint(w, `{"data":[{"id":3}],"meta":{}}`)
		default:
			t.Errorf("unexpected cursor %q", r.URL.Query().Get("cursor"))
		}
	}))
	defer srv.Close()

	cfg := testSourceConfig()
	cfg.Pagination = config.PaginationCursor
	p := newTestPaginator(t, srv, cfg)

	records, err := p.FetchAll(context.Background(), "/v1/candidates")
	require.NoError(t, err)
	assert.Len(t, records, 3)
	assert.EqualValues(t, 2, atomic.LoadInt32(&requests))
}

func TestMaxPagesCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Never-empty endpoint.
		w.Write([]byte(`[{"id":1}]`))
	}))
	defer srv.Close()

	cfg := testSourceConfig()
	cfg.MaxPages = 5
	p := newTestPaginator(t, srv, cfg)

	records, err := p.FetchAll(context.Background(), "/v1/candidates")
	require.NoError(t, err)
	assert.Len(t, records, 5)
}

func TestAuthFailureIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := newTestPaginator(t, srv, testSourceConfig())
	_, err := p.FetchAll(context.Background(), "/v1/candidates")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeAuthentication))
}

func TestStreamCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":1},{"id":2},{"id":3}]`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	p := newTestPaginator(t, srv, testSourceConfig())

	s := p.Stream(ctx, "/v1/candidates")
	_, ok := s.Next()
	require.True(t, ok)
	cancel()

	for {
		if _, ok := s.Next(); !ok {
			break
		}
	}
	require.Error(t, s.Err())
}
