package outbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const registryContentType = "application/vnd.schemaregistry.v1+json"

// RegistryError is a non-2xx answer from the schema registry.
type RegistryError struct {
	Op      string
	Subject string
	Status  int
	Body    string
}

func (e *RegistryError) Error() string {
	return fmt.Sprintf("schema registry %s %s: status %d: %s", e.Op, e.Subject, e.Status, e.Body)
}

// NotFound reports whether the subject has no registered version.
func (e *RegistryError) NotFound() bool { return e.Status == http.StatusNotFound }

// SchemaRegistryClient resolves JSON schema ids for the wire framing of
// outbound events. Subjects missing from the registry are registered.
type SchemaRegistryClient struct {
	baseURL string
	http    *http.Client
}

// NewSchemaRegistryClient returns a client for the registry at baseURL.
func NewSchemaRegistryClient(baseURL string, timeout time.Duration) *SchemaRegistryClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SchemaRegistryClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// EnsureSchema returns the id of the latest version of subject, registering
// schema when the subject is unknown.
func (c *SchemaRegistryClient) EnsureSchema(ctx context.Context, subject, schema string) (int, error) {
	id, err := c.do(ctx, "lookup", http.MethodGet, subject, "/versions/latest", nil)
	var regErr *RegistryError
	if errors.As(err, &regErr) && regErr.NotFound() {
		body, merr := json.Marshal(registerRequest{SchemaType: "JSON", Schema: schema})
		if merr != nil {
			return 0, merr
		}
		return c.do(ctx, "register", http.MethodPost, subject, "/versions", body)
	}
	return id, err
}

type registerRequest struct {
	SchemaType string `json:"schemaType"`
	Schema     string `json:"schema"`
}

func (c *SchemaRegistryClient) do(ctx context.Context, op, method, subject, suffix string, body []byte) (int, error) {
	endpoint := c.baseURL + "/subjects/" + url.PathEscape(subject) + suffix
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", registryContentType)
	if body != nil {
		req.Header.Set("Content-Type", registryContentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("schema registry %s %s: %w", op, subject, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return 0, &RegistryError{Op: op, Subject: subject, Status: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	var out struct {
		ID int `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("schema registry %s %s: decode: %w", op, subject, err)
	}
	return out.ID, nil
}

// StaticRegistry frames every payload with a fixed schema id. It stands in
// for a registry in local setups.
type StaticRegistry struct {
	ID int
}

// EnsureSchema returns the configured id.
func (r StaticRegistry) EnsureSchema(context.Context, string, string) (int, error) {
	return r.ID, nil
}
