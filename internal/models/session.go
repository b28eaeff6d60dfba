package models

import "time"

// SessionStatus represents the status of an ingestion session.
type SessionStatus string

const (
	SessionStatusPending  SessionStatus = "pending"
	SessionStatusParsing  SessionStatus = "parsing"
	SessionStatusComplete SessionStatus = "complete"
	SessionStatusError    SessionStatus = "error"
)

// IngestSession describes one browser session: the file it uploaded and
// the state of the parsed table derived from it.
type IngestSession struct {
	ID               string        `json:"id"`
	File             *FileInfo     `json:"file,omitempty"`
	Delimiter        string        `json:"delimiter"`
	Status           SessionStatus `json:"status"`
	Advisory         string        `json:"advisory,omitempty"`
	Columns          []string      `json:"columns,omitempty"`
	NumericColumns   []string      `json:"numericColumns,omitempty"`
	RowCount         int           `json:"rowCount"`
	ProcessingTimeMs int64         `json:"processingTimeMs,omitempty"`
	ParserName       string        `json:"parserName,omitempty"`
	FromCache        bool          `json:"fromCache,omitempty"`
	Error            string        `json:"error,omitempty"`
	ErrorKind        string        `json:"errorKind,omitempty"`
	CreatedAt        time.Time     `json:"createdAt"`
}

// NewIngestSession creates a new IngestSession in pending status.
func NewIngestSession(id string) *IngestSession {
	return &IngestSession{
		ID:        id,
		Delimiter: ",",
		Status:    SessionStatusPending,
		CreatedAt: time.Now(),
	}
}
