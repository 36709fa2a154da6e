package destination

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/recruitops/atsync/pkg/metrics"
)

// Resolver caches external-ID lookups against the destination. Both hits
// and misses are memoized: a record known to be absent is not re-queried
// until a caller forces a refresh (after a create conflict, when the
// destination clearly knows something the cache does not).
type Resolver struct {
	api    API
	logger *zap.Logger

	mu    sync.Mutex
	cache map[resolverKey]resolverEntry
}

type resolverKey struct {
	resource   string
	externalID string
}

type resolverEntry struct {
	id    string
	found bool
}

// NewResolver creates an empty resolver over a destination API.
func NewResolver(api API, logger *zap.Logger) *Resolver {
	return &Resolver{
		api:    api,
		logger: logger.With(zap.String("component", "resolver")),
		cache:  make(map[resolverKey]resolverEntry),
	}
}

// Resolve returns the destination ID for an external ID, consulting the
// cache first. force bypasses the cache and refreshes it from the lookup
// result. A miss returns empty with no error.
func (r *Resolver) Resolve(ctx context.Context, resource, externalID string, force bool) (string, error) {
	if externalID == "" {
		return "", nil
	}
	key := resolverKey{resource: resource, externalID: externalID}

	if !force {
		r.mu.Lock()
		entry, ok := r.cache[key]
		r.mu.Unlock()
		if ok {
			metrics.ResolverLookups.WithLabelValues(resource, "cache").Inc()
			return entry.id, nil
		}
	}

	match, err := r.api.FindByExternalID(ctx, resource, externalID)
	if err != nil {
		return "", err
	}

	if match.Count > 1 {
		// More than one record claims this external ID. First match wins,
		// and the duplication is surfaced for a human to clean up.
		r.logger.Warn("ambiguous external id match, using first",
			zap.String("resource", resource),
			zap.String("external_id", externalID),
			zap.Int("matches", match.Count))
		metrics.ResolverLookups.WithLabelValues(resource, "ambiguous").Inc()
	} else if match.ID != "" {
		metrics.ResolverLookups.WithLabelValues(resource, "found").Inc()
	} else {
		metrics.ResolverLookups.WithLabelValues(resource, "miss").Inc()
	}

	r.mu.Lock()
	r.cache[key] = resolverEntry{id: match.ID, found: match.ID != ""}
	r.mu.Unlock()
	return match.ID, nil
}

// Put records a freshly created destination ID, so later references to the
// same external ID resolve without a round trip.
func (r *Resolver) Put(resource, externalID, id string) {
	if externalID == "" || id == "" {
		return
	}
	r.mu.Lock()
	r.cache[resolverKey{resource: resource, externalID: externalID}] = resolverEntry{id: id, found: true}
	r.mu.Unlock()
}

// Len returns the number of cached entries.
func (r *Resolver) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cache)
}
