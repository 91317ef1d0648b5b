package bulk

import (
	"bytes"
	"fmt"

	"github.com/Nao-Mk2/cwlogs-to-es/internal/model"
	"github.com/Nao-Mk2/cwlogs-to-es/internal/normalizer"
	"github.com/Nao-Mk2/cwlogs-to-es/internal/pattern"
)

// Action is the routing line that precedes each document in a bulk body.
type Action struct {
	Index ActionMeta `json:"index"`
}

// ActionMeta names the destination of a single document.
type ActionMeta struct {
	Index string `json:"_index"`
	Type  string `json:"_type,omitempty"`
	ID    string `json:"_id"`
}

// Builder renders batches into newline-delimited bulk bodies.
type Builder struct {
	pattern *pattern.Pattern
	docType string
}

// New creates a Builder. An empty docType omits _type from action lines.
func New(p *pattern.Pattern, docType string) *Builder {
	return &Builder{pattern: p, docType: docType}
}

// IndexName returns the index an event with the given epoch millisecond
// timestamp is written to.
func (b *Builder) IndexName(event model.LogEvent) string {
	return b.pattern.Format(event.Time())
}

// Build renders one action line and one document line per event, in event
// order. records[i] is the document for batch.LogEvents[i].
func (b *Builder) Build(batch *model.LogBatch, records []model.NormalizedRecord) ([]byte, error) {
	if len(records) != len(batch.LogEvents) {
		return nil, fmt.Errorf("bulk: %d records for %d events", len(records), len(batch.LogEvents))
	}
	var buf bytes.Buffer
	for i, ev := range batch.LogEvents {
		action, err := normalizer.Marshal(Action{Index: ActionMeta{
			Index: b.IndexName(ev),
			Type:  b.docType,
			ID:    ev.ID,
		}})
		if err != nil {
			return nil, fmt.Errorf("bulk: encode action for event %s: %w", ev.ID, err)
		}
		doc, err := normalizer.Marshal(records[i])
		if err != nil {
			return nil, fmt.Errorf("bulk: encode document for event %s: %w", ev.ID, err)
		}
		buf.Write(action)
		buf.WriteByte('\n')
		buf.Write(doc)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// BuildBatch normalizes every event of batch and renders the bulk body.
func (b *Builder) BuildBatch(batch *model.LogBatch) ([]byte, error) {
	records := make([]model.NormalizedRecord, len(batch.LogEvents))
	for i, ev := range batch.LogEvents {
		records[i] = normalizer.Normalize(batch, ev)
	}
	return b.Build(batch, records)
}
