package types

import (
	"fmt"
	"strings"
)

// ScanStatus is the lifecycle state of a scan job.
// Transitions are monotonic: Queued -> Running -> Completed|Error.
type ScanStatus int

const (
	StatusQueued ScanStatus = iota
	StatusRunning
	StatusCompleted
	StatusError
)

func (s ScanStatus) String() string {
	switch s {
	case StatusQueued:
		return "Queued"
	case StatusRunning:
		return "Running"
	case StatusCompleted:
		return "Completed"
	case StatusError:
		return "Error"
	default:
		return fmt.Sprintf("ScanStatus(%d)", int(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s ScanStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// MarshalText implements encoding.TextMarshaler
func (s ScanStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (s *ScanStatus) UnmarshalText(text []byte) error {
	for _, v := range []ScanStatus{StatusQueued, StatusRunning, StatusCompleted, StatusError} {
		if strings.EqualFold(v.String(), string(text)) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("unknown scan status %q", text)
}

// StatusUpdate is emitted on every scan job transition. Consumers rebuild
// queue state by upserting on ScanID.
type StatusUpdate struct {
	ScanID         string     `json:"scanId"`
	Status         ScanStatus `json:"status"`
	BaseRequestID  string     `json:"baseRequestId"`
	BaseRequestURL string     `json:"baseRequestUrl,omitempty"`
}
