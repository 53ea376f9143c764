// Package audit keeps the in-memory message audit log: one append-only record
// per application message received from or sent to a client. High-frequency
// administrative queries (LIST_USERS, LIST_GROUPS) are excluded by the caller.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Direction marks whether the server received or sent the message.
type Direction string

const (
	DirectionReceived Direction = "received"
	DirectionSent     Direction = "sent"
)

// Record is one audit entry.
type Record struct {
	Timestamp  string    `json:"timestamp"`
	ClientID   string    `json:"client_id"`
	ClientName string    `json:"client_name"`
	Direction  Direction `json:"direction"`
	Message    string    `json:"message"`
}

// Timestamp formats t the way audit records expect.
func Timestamp(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

// Log is a goroutine-safe append-only record list.
type Log struct {
	mu      sync.Mutex
	records []Record
}

// NewLog creates an empty audit log.
func NewLog() *Log {
	return &Log{}
}

// Append adds one record.
func (l *Log) Append(r Record) {
	l.mu.Lock()
	l.records = append(l.records, r)
	l.mu.Unlock()
}

// Len returns the number of records.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// Counts returns how many records were received from clients and how many
// were sent to them.
func (l *Log) Counts() (received, sent int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, r := range l.records {
		switch r.Direction {
		case DirectionReceived:
			received++
		case DirectionSent:
			sent++
		}
	}
	return received, sent
}

// Records returns a snapshot of all records in append order.
func (l *Log) Records() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}

// ExportJSON serializes the log as an indented JSON array.
func (l *Log) ExportJSON() ([]byte, error) {
	records := l.Records()
	if records == nil {
		records = []Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("audit: failed to marshal records: %w", err)
	}
	return data, nil
}

// ExportFile writes the JSON export to path.
func (l *Log) ExportFile(path string) error {
	data, err := l.ExportJSON()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("audit: failed to write %s: %w", path, err)
	}
	return nil
}

// ExportFilename returns the default export filename for time t, matching the
// server_logs_YYYYMMDD_HHMMSS.json convention.
func ExportFilename(t time.Time) string {
	return fmt.Sprintf("server_logs_%s.json", t.Format("20060102_150405"))
}
