// Package destination wraps the target ATS's JSON:API surface: resource
// payload construction, create/patch/find verbs, and the external-ID
// resolver cache the upsert engine leans on.
package destination

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/recruitops/atsync/pkg/canonical"
	"github.com/recruitops/atsync/pkg/errors"
	"github.com/recruitops/atsync/pkg/transport"
)

// JSON:API resource type names.
const (
	ResCandidates        = "candidates"
	ResJobs              = "jobs"
	ResJobApplications   = "job-applications"
	ResComments          = "comments"
	ResCustomFields      = "custom-fields"
	ResCustomFieldValues = "custom-field-values"
	ResUsers             = "users"
)

// Resource maps a canonical kind to the destination resource it is written
// to. Interviews, notes and offers all land as comments; they have no
// first-class resource of their own.
func Resource(kind canonical.Kind) string {
	switch kind {
	case canonical.KindCandidate:
		return ResCandidates
	case canonical.KindJob:
		return ResJobs
	case canonical.KindApplication:
		return ResJobApplications
	case canonical.KindInterview, canonical.KindNote, canonical.KindOffer:
		return ResComments
	case canonical.KindCustomFieldValue:
		return ResCustomFieldValues
	case canonical.KindUser:
		return ResUsers
	default:
		return ""
	}
}

// API is the destination surface the upsert engine depends on. The real
// client implements it; tests substitute fakes.
type API interface {
	Create(ctx context.Context, resource string, payload *Payload) (*transport.Response, error)
	Patch(ctx context.Context, resource, id string, payload *Payload) (*transport.Response, error)
	FindByExternalID(ctx context.Context, resource, externalID string) (*Match, error)
}

// Match is the result of an external-ID lookup.
type Match struct {
	ID    string // first matching destination ID, empty when none
	Count int    // how many records matched the filter
}

// Client talks JSON:API to the destination over the shared rate-limited
// transport.
type Client struct {
	http   *transport.Client
	logger *zap.Logger
}

// NewClient wraps a transport client.
func NewClient(http *transport.Client, logger *zap.Logger) *Client {
	return &Client{
		http:   http,
		logger: logger.With(zap.String("component", "destination")),
	}
}

// Create posts a new resource. Non-2xx responses are returned with the
// response for the caller to interpret; only transport failures error.
func (c *Client) Create(ctx context.Context, resource string, payload *Payload) (*transport.Response, error) {
	return c.http.Post(ctx, transport.Path("v1", resource), payload)
}

// Patch updates an existing resource by destination ID.
func (c *Client) Patch(ctx context.Context, resource, id string, payload *Payload) (*transport.Response, error) {
	return c.http.Patch(ctx, transport.Path("v1", resource, id), payload)
}

// findEnvelope is the slice of a JSON:API list response the resolver needs.
type findEnvelope struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

// FindByExternalID looks a resource up via filter[external-id]. A miss is
// a nil-ID match, not an error.
func (c *Client) FindByExternalID(ctx context.Context, resource, externalID string) (*Match, error) {
	if externalID == "" {
		return &Match{}, nil
	}
	resp, err := c.http.Get(ctx, transport.Path("v1", resource), transport.Params{
		"filter[external-id]": externalID,
	})
	if err != nil {
		return nil, err
	}
	if resp.Status == 401 || resp.Status == 403 {
		return nil, errors.Newf(errors.ErrorTypeAuthentication, "destination rejected credentials (status %d)", resp.Status)
	}
	if !resp.OK() {
		return nil, errors.Newf(errors.ErrorTypeFindFailed, "lookup %s by external id returned status %d", resource, resp.Status).
			WithDetail("external_id", externalID).
			WithDetail("body", string(resp.Body))
	}

	var env findEnvelope
	if err := resp.DecodeJSON(&env); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFindFailed, "decode lookup response")
	}
	m := &Match{Count: len(env.Data)}
	if len(env.Data) > 0 {
		m.ID = env.Data[0].ID
	}
	return m, nil
}

// Preflight verifies credentials with a minimal read before a run mutates
// anything. An auth failure here is fatal to the run.
func (c *Client) Preflight(ctx context.Context) error {
	resp, err := c.http.Get(ctx, transport.Path("v1", ResCandidates), transport.Params{
		"page[size]": strconv.Itoa(1),
	})
	if err != nil {
		return err
	}
	if resp.Status == 401 || resp.Status == 403 {
		return errors.Newf(errors.ErrorTypeAuthentication, "destination credentials rejected (status %d)", resp.Status)
	}
	if !resp.OK() {
		return errors.Newf(errors.ErrorTypeTransport, "destination preflight returned status %d", resp.Status)
	}
	c.logger.Debug("destination preflight ok")
	return nil
}
