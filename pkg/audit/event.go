// Package audit records port configuration changes as JSON lines.
package audit

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/newtron-network/portmgr/pkg/util"
)

// Operations recorded by the port tables.
const (
	OpPortAdd    = "port.add"
	OpPortModify = "port.modify"
	OpPortDelete = "port.delete"
	OpPortClear  = "port.clear"
	OpStatsClear = "stats.clear"
)

// Event is one audited write.
type Event struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	User      string            `json:"user"`
	Device    string            `json:"device"`
	Port      string            `json:"port,omitempty"`
	Operation string            `json:"operation"`
	Fields    map[string]string `json:"fields,omitempty"`
	Skipped   []string          `json:"skipped,omitempty"` // field groups not applied
	Success   bool              `json:"success"`
	Status    string            `json:"status,omitempty"`
	Error     string            `json:"error,omitempty"`
	Duration  time.Duration     `json:"duration"`
}

// Filter selects events in Query. Zero values match everything.
type Filter struct {
	Device      string
	Port        string
	User        string
	Operation   string
	StartTime   time.Time
	EndTime     time.Time
	SuccessOnly bool
	FailureOnly bool
	Limit       int
	Offset      int
}

// Matches reports whether e passes every set criterion of f.
func (f Filter) Matches(e *Event) bool {
	switch {
	case f.Device != "" && e.Device != f.Device,
		f.Port != "" && e.Port != f.Port,
		f.User != "" && e.User != f.User,
		f.Operation != "" && e.Operation != f.Operation,
		!f.StartTime.IsZero() && e.Timestamp.Before(f.StartTime),
		!f.EndTime.IsZero() && e.Timestamp.After(f.EndTime),
		f.SuccessOnly && !e.Success,
		f.FailureOnly && e.Success:
		return false
	}
	return true
}

// page applies Offset and Limit.
func (f Filter) page(events []*Event) []*Event {
	if f.Offset > 0 {
		if f.Offset >= len(events) {
			return nil
		}
		events = events[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(events) {
		events = events[:f.Limit]
	}
	return events
}

// NewEvent creates an event stamped with a fresh ID and the current time.
func NewEvent(user, device, operation string) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		User:      user,
		Device:    device,
		Operation: operation,
	}
}

// WithPort sets the device port
func (e *Event) WithPort(port string) *Event {
	e.Port = port
	return e
}

// WithFields records the field values the operation wrote
func (e *Event) WithFields(fields map[string]string) *Event {
	if len(fields) > 0 {
		e.Fields = fields
	}
	return e
}

// WithSkipped records field groups that were not applied
func (e *Event) WithSkipped(groups []string) *Event {
	if len(groups) > 0 {
		e.Skipped = append([]string(nil), groups...)
		sort.Strings(e.Skipped)
	}
	return e
}

// WithSuccess marks the event as successful
func (e *Event) WithSuccess() *Event {
	e.Success = true
	e.Status = util.StatusName(nil)
	e.Error = ""
	return e
}

// WithError marks the event as failed
func (e *Event) WithError(err error) *Event {
	e.Success = false
	if err != nil {
		e.Status = util.StatusName(err)
		e.Error = err.Error()
	}
	return e
}

// WithResult is WithSuccess for a nil err and WithError otherwise.
func (e *Event) WithResult(err error) *Event {
	if err == nil {
		return e.WithSuccess()
	}
	return e.WithError(err)
}

// WithDuration sets the operation duration
func (e *Event) WithDuration(d time.Duration) *Event {
	e.Duration = d
	return e
}
