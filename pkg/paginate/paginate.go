// Package paginate drives page-by-page traversal of a source listing
// endpoint into a flat, lazy sequence of raw records. Two styles are
// supported: page-number (page=1,2,3... until an empty page) and cursor
// (follow a next-cursor token until absent). A stream is finite and not
// restartable; calling Stream again starts over from the first page.
package paginate

import (
	"context"
	"strconv"

	gojson "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/recruitops/atsync/pkg/config"
	"github.com/recruitops/atsync/pkg/errors"
	"github.com/recruitops/atsync/pkg/transport"
)

// RawRecord is one untyped record as returned by a listing endpoint.
type RawRecord = map[string]interface{}

// envelope is the {data, metadata} wrapper some listing endpoints use.
// Bare-array responses are handled separately.
type envelope struct {
	Data []RawRecord            `json:"data"`
	Meta map[string]interface{} `json:"meta"`
	Paging *struct {
		Next    string `json:"next"`
		Cursors *struct {
			After string `json:"after"`
		} `json:"cursors"`
	} `json:"paging"`
}

// Paginator traverses listing endpoints through the shared transport.
type Paginator struct {
	client      *transport.Client
	style       config.PaginationStyle
	pageSize    int
	maxPages    int
	cursorParam string
	logger      *zap.Logger
}

// New creates a paginator for one source API.
func New(client *transport.Client, cfg config.SourceConfig, logger *zap.Logger) *Paginator {
	return &Paginator{
		client:      client,
		style:       cfg.Pagination,
		pageSize:    cfg.PageSize,
		maxPages:    cfg.MaxPages,
		cursorParam: "cursor",
		logger:      logger.With(zap.String("component", "paginator")),
	}
}

// Stream starts traversal of the listing endpoint and returns a lazy
// record sequence. Records are fetched a page ahead of consumption; the
// stream ends at the first empty page or absent cursor, or when the
// max-pages safety cap trips.
func (p *Paginator) Stream(ctx context.Context, path string) *Stream {
	s := &Stream{
		records: make(chan RawRecord),
	}

	go func() {
		defer close(s.records)
		s.err = p.run(ctx, path, s)
	}()

	return s
}

// FetchAll drains a stream into a slice.
func (p *Paginator) FetchAll(ctx context.Context, path string) ([]RawRecord, error) {
	s := p.Stream(ctx, path)
	var all []RawRecord
	for {
		rec, ok := s.Next()
		if !ok {
			break
		}
		all = append(all, rec)
	}
	return all, s.Err()
}

func (p *Paginator) run(ctx context.Context, path string, s *Stream) error {
	page := 1
	cursor := ""
	requests := 0

	for {
		if p.maxPages > 0 && requests >= p.maxPages {
			p.logger.Warn("max pages cap reached, stopping traversal",
				zap.String("path", path),
				zap.Int("pages", requests))
			return nil
		}

		params := transport.Params{}
		switch p.style {
		case config.PaginationCursor:
			params["per_page"] = strconv.Itoa(p.pageSize)
			if cursor != "" {
				params[p.cursorParam] = cursor
			}
		default:
			params["per_page"] = strconv.Itoa(p.pageSize)
			params["page"] = strconv.Itoa(page)
		}

		resp, err := p.client.Get(ctx, path, params)
		if err != nil {
			return err
		}
		requests++

		if resp.Status == 401 || resp.Status == 403 {
			return errors.Newf(errors.ErrorTypeAuthentication, "source API rejected credentials (status %d)", resp.Status)
		}
		if !resp.OK() {
			return errors.Newf(errors.ErrorTypeTransport, "listing %s returned status %d", path, resp.Status).
				WithDetail("body", string(resp.Body))
		}

		items, nextCursor, err := parsePage(resp.Body)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeData, "parse listing page").WithDetail("path", path)
		}

		if len(items) == 0 {
			return nil
		}
		for _, item := range items {
			select {
			case s.records <- item:
			case <-ctx.Done():
				return errors.Wrap(ctx.Err(), errors.ErrorTypeTimeout, "stream cancelled")
			}
		}

		switch p.style {
		case config.PaginationCursor:
			if nextCursor == "" {
				return nil
			}
			cursor = nextCursor
		default:
			page++
		}
	}
}

// parsePage accepts either a bare JSON array or a {data, meta/paging}
// envelope, returning the records and any next-cursor token.
func parsePage(body []byte) ([]RawRecord, string, error) {
	var bare []RawRecord
	if err := gojson.Unmarshal(body, &bare); err == nil {
		return bare, "", nil
	}

	var env envelope
	if err := gojson.Unmarshal(body, &env); err != nil {
		return nil, "", err
	}

	cursor := ""
	if env.Meta != nil {
		if c, ok := env.Meta["next_cursor"].(string); ok {
			cursor = c
		}
	}
	if cursor == "" && env.Paging != nil {
		if env.Paging.Cursors != nil && env.Paging.Cursors.After != "" {
			cursor = env.Paging.Cursors.After
		} else if env.Paging.Next != "" {
			cursor = env.Paging.Next
		}
	}

	return env.Data, cursor, nil
}

// Stream is a lazy, finite sequence of raw records.
type Stream struct {
	records chan RawRecord
	err     error
}

// Next returns the next record, blocking until one is available. ok is
// false once the stream is exhausted; check Err afterwards.
func (s *Stream) Next() (RawRecord, bool) {
	rec, ok := <-s.records
	return rec, ok
}

// Err returns the terminal error, if any. Only valid after Next has
// returned ok=false.
func (s *Stream) Err() error {
	return s.err
}
