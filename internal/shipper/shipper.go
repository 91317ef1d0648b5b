package shipper

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/Nao-Mk2/cwlogs-to-es/internal/bulk"
	"github.com/Nao-Mk2/cwlogs-to-es/internal/client"
	"github.com/Nao-Mk2/cwlogs-to-es/internal/decoder"
	"github.com/Nao-Mk2/cwlogs-to-es/internal/logging"
	"github.com/Nao-Mk2/cwlogs-to-es/internal/model"
)

// Success is returned by Handle when the batch was written or ignored.
const Success = "Success"

// BulkWriter is the subset of the store used by the write path.
type BulkWriter interface {
	Bulk(ctx context.Context, body []byte) (*client.BulkResult, error)
}

// Shipper forwards subscription batches to the store.
type Shipper struct {
	store       BulkWriter
	builder     *bulk.Builder
	payloadPath string
	logger      *slog.Logger
}

// New creates a Shipper. payloadPath is the JMESPath of the compressed
// payload inside an invocation event.
func New(store BulkWriter, builder *bulk.Builder, payloadPath string, logger *slog.Logger) *Shipper {
	return &Shipper{
		store:       store,
		builder:     builder,
		payloadPath: payloadPath,
		logger:      logging.OrDefault(logger),
	}
}

// Handle decodes a raw invocation event and ships its batch. Control
// messages are acknowledged without writing anything.
func (s *Shipper) Handle(ctx context.Context, raw json.RawMessage) (string, error) {
	batch, err := decoder.DecodeEvent(raw, s.payloadPath)
	if err != nil {
		s.logger.Error("failed to decode log batch", "error", err)
		return "", err
	}
	if !batch.IsData() {
		s.logger.Info("ignoring non-data message", "messageType", batch.MessageType, "logGroup", batch.LogGroup)
		return Success, nil
	}
	if err := s.Ship(ctx, batch); err != nil {
		return "", err
	}
	return Success, nil
}

// Ship normalizes batch and writes it with a single bulk request.
func (s *Shipper) Ship(ctx context.Context, batch *model.LogBatch) error {
	if len(batch.LogEvents) == 0 {
		s.logger.Info("no log events to send", "logGroup", batch.LogGroup, "logStream", batch.LogStream)
		return nil
	}
	body, err := s.builder.BuildBatch(batch)
	if err != nil {
		s.logger.Error("failed to build bulk body", "logGroup", batch.LogGroup, "error", err)
		return err
	}
	s.logger.Debug("sending logs to store", "events", len(batch.LogEvents), "body", string(body))

	res, err := s.store.Bulk(ctx, body)
	if err != nil {
		s.logger.Error("failed to send logs to store",
			"logGroup", batch.LogGroup,
			"logStream", batch.LogStream,
			"events", len(batch.LogEvents),
			"error", err)
		return err
	}
	if res.Errors {
		s.logger.Warn("bulk write accepted with item errors",
			"logGroup", batch.LogGroup,
			"items", res.Items,
			"failed", res.Failed,
			"response", res.Body)
	}
	s.logger.Info("logs sent to store",
		"logGroup", batch.LogGroup,
		"logStream", batch.LogStream,
		"events", len(batch.LogEvents),
		"status", res.StatusCode,
		"response", res.Body)
	return nil
}
