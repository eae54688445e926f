package dhis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/intellisoft-ke/findams/internal/config"
)

// Paths holds the API paths relative to the client base URL. They are
// variables rather than constants so stub servers in tests can reuse
// the defaults.
type Paths struct {
	TrackedEntityAttributes string
	OptionSets              string
	TrackedEntityInstances  string
	Enrollments             string
	Events                  string
	DataStore               string
}

// DefaultPaths are the standard DHIS2 API paths.
func DefaultPaths() Paths {
	return Paths{
		TrackedEntityAttributes: "trackedEntityAttributes.json?fields=id,displayName&paging=false",
		OptionSets:              "optionSets.json?fields=displayName,options[code,name]&paging=false",
		TrackedEntityInstances:  "trackedEntityInstances",
		Enrollments:             "enrollments",
		Events:                  "events",
		DataStore:               "dataStore/findams/batchSummaries",
	}
}

// Client is a thin DHIS2 API client with basic auth. Timeouts live on
// the underlying http.Client; the pipeline treats a timeout like any
// other transport error.
type Client struct {
	base     string
	username string
	password string
	http     *http.Client
	paths    Paths
	log      *slog.Logger
}

// NewClient builds a Client from configuration.
func NewClient(cfg config.DHISConfig, log *slog.Logger) *Client {
	paths := DefaultPaths()
	if cfg.DataStoreKey != "" {
		paths.DataStore = cfg.DataStoreKey
	}
	return &Client{
		base:     strings.TrimRight(cfg.BaseURL, "/"),
		username: cfg.Username,
		password: cfg.Password,
		http:     &http.Client{Timeout: cfg.Timeout},
		paths:    paths,
		log:      log,
	}
}

// NewClientForTest builds a Client against an arbitrary base URL with
// no credentials. Intended for httptest servers.
func NewClientForTest(baseURL string) *Client {
	return &Client{
		base:  strings.TrimRight(baseURL, "/"),
		http:  &http.Client{Timeout: 5 * time.Second},
		paths: DefaultPaths(),
		log:   slog.Default(),
	}
}

func (c *Client) url(path string) string {
	return c.base + "/" + strings.TrimLeft(path, "/")
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", method, path, err)
	}

	// DHIS2 import endpoints return structured error envelopes with
	// conflict detail on 409; those still decode into the response
	// type, so only treat other non-2xx codes as transport failures.
	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusConflict {
		return fmt.Errorf("%s %s: %w", method, path, &HTTPError{Code: resp.StatusCode, Body: truncate(data, 256)})
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("%s %s: decode response: %w", method, path, err)
		}
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// HTTPError is a non-2xx response from the remote API.
type HTTPError struct {
	Code int
	Body string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

func isNotFound(err error) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.Code == http.StatusNotFound
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// PostTrackedEntities submits the assembled batch and returns the
// structured import summary.
func (c *Client) PostTrackedEntities(ctx context.Context, payload TrackedEntityPayload) (*ImportResponse, error) {
	var out ImportResponse
	if err := c.do(ctx, http.MethodPost, c.paths.TrackedEntityInstances, payload, &out); err != nil {
		return nil, fmt.Errorf("post tracked entities: %w", err)
	}
	return &out, nil
}

// PostEnrollment enrolls one accepted tracked entity instance.
func (c *Client) PostEnrollment(ctx context.Context, enrollment Enrollment) (*ImportResponse, error) {
	var out ImportResponse
	if err := c.do(ctx, http.MethodPost, c.paths.Enrollments, enrollment, &out); err != nil {
		return nil, fmt.Errorf("post enrollment: %w", err)
	}
	return &out, nil
}

// PostEvent posts one susceptibility event for an enrolled instance.
func (c *Client) PostEvent(ctx context.Context, event Event) (*ImportResponse, error) {
	var out ImportResponse
	if err := c.do(ctx, http.MethodPost, c.paths.Events, event, &out); err != nil {
		return nil, fmt.Errorf("post event: %w", err)
	}
	return &out, nil
}

// UpdateEvent replaces an event's data values server-side.
func (c *Client) UpdateEvent(ctx context.Context, eventID string, event Event) error {
	path := c.paths.Events + "/" + eventID
	if err := c.do(ctx, http.MethodPut, path, event, nil); err != nil {
		return fmt.Errorf("update event %s: %w", eventID, err)
	}
	return nil
}

// GetDocument reads the datastore document into out. A missing
// document (404) leaves out untouched and returns no error so callers
// can start a fresh list.
func (c *Client) GetDocument(ctx context.Context, out any) error {
	err := c.getJSON(ctx, c.paths.DataStore, out)
	if isNotFound(err) {
		return nil
	}
	return err
}

// PutDocument replaces the datastore document. DHIS2 requires POST for
// a key that does not exist yet and PUT afterwards; try the update
// first and fall back to create.
func (c *Client) PutDocument(ctx context.Context, doc any) error {
	err := c.do(ctx, http.MethodPut, c.paths.DataStore, doc, nil)
	if isNotFound(err) {
		return c.do(ctx, http.MethodPost, c.paths.DataStore, doc, nil)
	}
	return err
}
