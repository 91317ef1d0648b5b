package model

import "time"

// LogRecord represents a single log entry fetched from a CloudWatch Logs group.
type LogRecord struct {
	ID        string
	Timestamp time.Time
	LogGroup  string
	LogStream string
	Message   string
}

// Event converts the record into the event shape carried by a subscription envelope.
func (r LogRecord) Event() LogEvent {
	return LogEvent{
		ID:        r.ID,
		Timestamp: r.Timestamp.UnixMilli(),
		Message:   r.Message,
	}
}
