package destination

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/recruitops/atsync/pkg/transport"
)

// fakeAPI counts lookups and serves a fixed external-id directory.
type fakeAPI struct {
	directory map[string]string // externalID -> destination ID
	ambiguous map[string]int    // externalID -> match count override
	lookups   int
}

func (f *fakeAPI) Create(ctx context.Context, resource string, payload *Payload) (*transport.Response, error) {
	panic("resolver tests never create")
}

func (f *fakeAPI) Patch(ctx context.Context, resource, id string, payload *Payload) (*transport.Response, error) {
	panic("resolver tests never patch")
}

func (f *fakeAPI) FindByExternalID(ctx context.Context, resource, externalID string) (*Match, error) {
	f.lookups++
	id, ok := f.directory[externalID]
	if !ok {
		return &Match{}, nil
	}
	count := 1
	if n := f.ambiguous[externalID]; n > 0 {
		count = n
	}
	return &Match{ID: id, Count: count}, nil
}

func TestResolverCachesHits(t *testing.T) {
	api := &fakeAPI{directory: map[string]string{"gh_candidate_42": "9001"}}
	r := NewResolver(api, zap.NewNop())

	for i := 0; i < 3; i++ {
		id, err := r.Resolve(context.Background(), ResCandidates, "gh_candidate_42", false)
		require.NoError(t, err)
		assert.Equal(t, "9001", id)
	}
	assert.Equal(t, 1, api.lookups)
}

func TestResolverMemoizesMisses(t *testing.T) {
	api := &fakeAPI{directory: map[string]string{}}
	r := NewResolver(api, zap.NewNop())

	for i := 0; i < 3; i++ {
		id, err := r.Resolve(context.Background(), ResCandidates, "gh_candidate_404", false)
		require.NoError(t, err)
		assert.Empty(t, id)
	}
	assert.Equal(t, 1, api.lookups)
}

func TestResolverForceRefreshesStaleMiss(t *testing.T) {
	api := &fakeAPI{directory: map[string]string{}}
	r := NewResolver(api, zap.NewNop())

	id, err := r.Resolve(context.Background(), ResJobs, "gh_job_7", false)
	require.NoError(t, err)
	require.Empty(t, id)

	// The record appears at the destination after the cached miss.
	api.directory["gh_job_7"] = "77"

	id, err = r.Resolve(context.Background(), ResJobs, "gh_job_7", false)
	require.NoError(t, err)
	assert.Empty(t, id, "non-forced lookup must serve the cached miss")

	id, err = r.Resolve(context.Background(), ResJobs, "gh_job_7", true)
	require.NoError(t, err)
	assert.Equal(t, "77", id)

	// The forced result replaces the stale entry.
	id, err = r.Resolve(context.Background(), ResJobs, "gh_job_7", false)
	require.NoError(t, err)
	assert.Equal(t, "77", id)
}

func TestResolverPutWriteThrough(t *testing.T) {
	api := &fakeAPI{directory: map[string]string{}}
	r := NewResolver(api, zap.NewNop())

	r.Put(ResCandidates, "gh_candidate_42", "9001")

	id, err := r.Resolve(context.Background(), ResCandidates, "gh_candidate_42", false)
	require.NoError(t, err)
	assert.Equal(t, "9001", id)
	assert.Zero(t, api.lookups)
}

func TestResolverAmbiguousMatchUsesFirst(t *testing.T) {
	api := &fakeAPI{
		directory: map[string]string{"gh_candidate_42": "9001"},
		ambiguous: map[string]int{"gh_candidate_42": 3},
	}
	r := NewResolver(api, zap.NewNop())

	id, err := r.Resolve(context.Background(), ResCandidates, "gh_candidate_42", false)
	require.NoError(t, err)
	assert.Equal(t, "9001", id)
}

func TestResolverEmptyExternalID(t *testing.T) {
	api := &fakeAPI{}
	r := NewResolver(api, zap.NewNop())

	id, err := r.Resolve(context.Background(), ResCandidates, "", false)
	require.NoError(t, err)
	assert.Empty(t, id)
	assert.Zero(t, api.lookups)
}
