package shipper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/Nao-Mk2/cwlogs-to-es/internal/bulk"
	"github.com/Nao-Mk2/cwlogs-to-es/internal/client"
	"github.com/Nao-Mk2/cwlogs-to-es/internal/decoder"
	"github.com/Nao-Mk2/cwlogs-to-es/internal/model"
	"github.com/Nao-Mk2/cwlogs-to-es/internal/pattern"
)

type fakeStore struct {
	bodies [][]byte
	res    *client.BulkResult
	err    error
}

func (f *fakeStore) Bulk(ctx context.Context, body []byte) (*client.BulkResult, error) {
	f.bodies = append(f.bodies, body)
	if f.err != nil {
		return nil, f.err
	}
	if f.res != nil {
		return f.res, nil
	}
	return &client.BulkResult{StatusCode: 200, Body: `{"errors":false}`}, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func rawEvent(t *testing.T, batch *model.LogBatch) []byte {
	t.Helper()
	data, err := decoder.Encode(batch)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return []byte(fmt.Sprintf(`{"awslogs":{"data":%q}}`, data))
}

func newShipper(store BulkWriter, logger *slog.Logger) *Shipper {
	return New(store, bulk.New(pattern.MustCompile("'cwl-'yyyy.MM.dd"), "log"), "awslogs.data", logger)
}

func dataBatch() *model.LogBatch {
	return &model.LogBatch{
		MessageType: model.MessageTypeData,
		Owner:       "123456789012",
		LogGroup:    "/aws/lambda/orders",
		LogStream:   "s1",
		LogEvents: []model.LogEvent{
			{ID: "e1", Timestamp: 1709769600000, Message: "first"},
			{ID: "e2", Timestamp: 1709769600001, Message: "second\t{\"k\":1}"},
		},
	}
}

func TestHandleShipsDataMessage(t *testing.T) {
	store := &fakeStore{}
	s := newShipper(store, quietLogger())

	got, err := s.Handle(context.Background(), rawEvent(t, dataBatch()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != Success {
		t.Fatalf("Handle()=%q, want %q", got, Success)
	}
	if len(store.bodies) != 1 {
		t.Fatalf("expected exactly one bulk request, got %d", len(store.bodies))
	}
	body := string(store.bodies[0])
	if strings.Count(body, "\n") != 4 {
		t.Fatalf("expected 4 bulk lines, got %q", body)
	}
	if strings.Index(body, `"_id":"e1"`) > strings.Index(body, `"_id":"e2"`) {
		t.Fatalf("events out of order: %q", body)
	}
}

func TestHandleIgnoresControlMessage(t *testing.T) {
	store := &fakeStore{}
	s := newShipper(store, quietLogger())
	batch := &model.LogBatch{
		MessageType: model.MessageTypeControl,
		LogEvents:   []model.LogEvent{{ID: "c", Timestamp: 1, Message: "CWL CONTROL MESSAGE: Checking health of destination"}},
	}
	got, err := s.Handle(context.Background(), rawEvent(t, batch))
	if err != nil || got != Success {
		t.Fatalf("Handle()=(%q, %v), want (%q, nil)", got, err, Success)
	}
	if len(store.bodies) != 0 {
		t.Fatalf("control message must not be written")
	}
}

func TestHandleDecodeFailure(t *testing.T) {
	store := &fakeStore{}
	s := newShipper(store, quietLogger())
	got, err := s.Handle(context.Background(), []byte(`{"awslogs":{"data":"!!!"}}`))
	var de *decoder.DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected *decoder.DecodeError, got %v", err)
	}
	if got != "" || len(store.bodies) != 0 {
		t.Fatalf("decode failure must not write or succeed: %q", got)
	}
}

func TestHandleWriteFailure(t *testing.T) {
	store := &fakeStore{err: &client.WriteError{StatusCode: 429, Body: "too many requests"}}
	s := newShipper(store, quietLogger())
	got, err := s.Handle(context.Background(), rawEvent(t, dataBatch()))
	var we *client.WriteError
	if !errors.As(err, &we) || we.StatusCode != 429 {
		t.Fatalf("expected *client.WriteError, got %v", err)
	}
	if got == Success {
		t.Fatalf("failed write returned the success token")
	}
}

func TestShipLogsPartialFailureAsSuccess(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	store := &fakeStore{res: &client.BulkResult{StatusCode: 200, Body: `{"errors":true}`, Errors: true, Items: 2, Failed: 1}}
	s := newShipper(store, logger)
	if err := s.Ship(context.Background(), dataBatch()); err != nil {
		t.Fatalf("partial failure must not fail the write: %v", err)
	}
	if !strings.Contains(buf.String(), "bulk write accepted with item errors") || !strings.Contains(buf.String(), "failed=1") {
		t.Fatalf("expected a warning for item errors, got %q", buf.String())
	}
}

func TestShipEmptyBatch(t *testing.T) {
	store := &fakeStore{}
	s := newShipper(store, quietLogger())
	if err := s.Ship(context.Background(), &model.LogBatch{MessageType: model.MessageTypeData}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.bodies) != 0 {
		t.Fatalf("empty batch must not be written")
	}
}
