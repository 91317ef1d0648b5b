package model

import "time"

// Message types carried by a CloudWatch Logs subscription envelope.
const (
	MessageTypeData    = "DATA_MESSAGE"
	MessageTypeControl = "CONTROL_MESSAGE"
)

// LogBatch is the decompressed subscription envelope.
type LogBatch struct {
	MessageType         string     `json:"messageType"`
	Owner               string     `json:"owner"`
	LogGroup            string     `json:"logGroup"`
	LogStream           string     `json:"logStream"`
	SubscriptionFilters []string   `json:"subscriptionFilters,omitempty"`
	LogEvents           []LogEvent `json:"logEvents"`
}

// IsData reports whether the envelope carries log data. Control messages,
// such as subscription confirmations, do not.
func (b *LogBatch) IsData() bool {
	return b.MessageType == MessageTypeData
}

// LogEvent is a single raw log line inside a batch.
type LogEvent struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"timestamp"`
	Message   string `json:"message"`
}

// Time returns the event timestamp in UTC.
func (e LogEvent) Time() time.Time {
	return time.UnixMilli(e.Timestamp).UTC()
}

// NormalizedRecord is the document indexed for a single event.
type NormalizedRecord map[string]any

// IndexDescriptor is one entry of the store's index catalog.
type IndexDescriptor struct {
	Index string `json:"index"`
}

// DeletionOutcome is the result of deleting a single index.
type DeletionOutcome struct {
	Index string
	Err   error
}

// OK reports whether the deletion succeeded.
func (o DeletionOutcome) OK() bool { return o.Err == nil }
