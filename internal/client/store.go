package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/Nao-Mk2/cwlogs-to-es/internal/model"
)

// ListError reports a non-2xx answer to the index catalog query.
type ListError struct {
	StatusCode int
	Body       string
}

func (e *ListError) Error() string {
	return fmt.Sprintf("list indices: HTTP %d: %s", e.StatusCode, e.Body)
}

// WriteError reports a non-2xx answer to a bulk write.
type WriteError struct {
	StatusCode int
	Body       string
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("bulk write: HTTP %d: %s", e.StatusCode, e.Body)
}

// DeleteError reports a non-2xx answer to an index deletion.
type DeleteError struct {
	Index      string
	StatusCode int
	Body       string
}

func (e *DeleteError) Error() string {
	return fmt.Sprintf("delete index %s: HTTP %d: %s", e.Index, e.StatusCode, e.Body)
}

// BulkResult is the store's answer to a successful (2xx) bulk write.
// Items and Failed are only filled when the body could be parsed.
type BulkResult struct {
	StatusCode int
	Body       string
	Errors     bool
	Items      int
	Failed     int
}

// Store speaks the store's REST contract over an esapi.Transport.
type Store struct {
	transport esapi.Transport
}

// NewStore creates a Store sending requests through transport.
func NewStore(transport esapi.Transport) *Store {
	return &Store{transport: transport}
}

// Bulk sends body to the _bulk endpoint in a single request. A 2xx answer is
// success even when individual items failed; the per-item summary is
// returned for logging.
func (s *Store) Bulk(ctx context.Context, body []byte) (*BulkResult, error) {
	res, err := esapi.BulkRequest{Body: bytes.NewReader(body)}.Do(ctx, s.transport)
	if err != nil {
		return nil, fmt.Errorf("bulk write: %w", err)
	}
	status, text, err := readResponse(res)
	if err != nil {
		return nil, fmt.Errorf("bulk write: %w", err)
	}
	if !is2xx(status) {
		return nil, &WriteError{StatusCode: status, Body: text}
	}
	result := &BulkResult{StatusCode: status, Body: text}
	var parsed struct {
		Errors bool                         `json:"errors"`
		Items  []map[string]json.RawMessage `json:"items"`
	}
	if json.Unmarshal([]byte(text), &parsed) == nil {
		result.Errors = parsed.Errors
		result.Items = len(parsed.Items)
		for _, item := range parsed.Items {
			for _, raw := range item {
				var st struct {
					Status int             `json:"status"`
					Error  json.RawMessage `json:"error"`
				}
				if json.Unmarshal(raw, &st) == nil && (len(st.Error) > 0 || st.Status > 299) {
					result.Failed++
				}
			}
		}
	}
	return result, nil
}

// ListIndices returns the index catalog.
func (s *Store) ListIndices(ctx context.Context) ([]model.IndexDescriptor, error) {
	res, err := esapi.CatIndicesRequest{Format: "json"}.Do(ctx, s.transport)
	if err != nil {
		return nil, fmt.Errorf("list indices: %w", err)
	}
	status, text, err := readResponse(res)
	if err != nil {
		return nil, fmt.Errorf("list indices: %w", err)
	}
	if !is2xx(status) {
		return nil, &ListError{StatusCode: status, Body: text}
	}
	var indices []model.IndexDescriptor
	if err := json.Unmarshal([]byte(text), &indices); err != nil {
		return nil, fmt.Errorf("list indices: decode catalog: %w", err)
	}
	return indices, nil
}

// DeleteIndex deletes a single index. esapi.IndicesDeleteRequest has no
// format parameter, so the request is built here and sent through the same
// transport.
func (s *Store) DeleteIndex(ctx context.Context, index string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, "/"+url.PathEscape(index)+"?format=json", nil)
	if err != nil {
		return fmt.Errorf("delete index %s: %w", index, err)
	}
	resp, err := s.transport.Perform(req)
	if err != nil {
		return fmt.Errorf("delete index %s: %w", index, err)
	}
	status, text, err := readResponse(&esapi.Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: resp.Body})
	if err != nil {
		return fmt.Errorf("delete index %s: %w", index, err)
	}
	if !is2xx(status) {
		return &DeleteError{Index: index, StatusCode: status, Body: text}
	}
	return nil
}

func readResponse(res *esapi.Response) (int, string, error) {
	if res.Body == nil {
		return res.StatusCode, "", nil
	}
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	if err != nil {
		return res.StatusCode, "", fmt.Errorf("read response body: %w", err)
	}
	return res.StatusCode, string(b), nil
}

func is2xx(status int) bool {
	return status >= 200 && status < 300
}
