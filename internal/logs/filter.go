package logs

import (
	"encoding/json"
	"strings"

	"framealign/internal/logging"
)

// Filter selects log lines. The zero value matches everything; any set
// field restricts matching to JSON lines carrying that field.
type Filter struct {
	Frame         *int
	RunID         string // prefix match
	DecisionsOnly bool
	Level         string // minimum level: debug, info, warn or error
}

var levelRank = map[string]int{"debug": 0, "info": 1, "warn": 2, "error": 3}

// IsZero reports whether f matches every line.
func (f Filter) IsZero() bool {
	return f.Frame == nil && f.RunID == "" && !f.DecisionsOnly && f.Level == ""
}

// Match reports whether line passes f.
func (f Filter) Match(line string) bool {
	if f.IsZero() {
		return true
	}
	var record map[string]any
	if err := json.Unmarshal([]byte(line), &record); err != nil {
		return false
	}
	if f.Frame != nil {
		frame, ok := record[logging.FieldFrame].(float64)
		if !ok || int(frame) != *f.Frame {
			return false
		}
	}
	if f.RunID != "" {
		id, _ := record[logging.FieldRunID].(string)
		if !strings.HasPrefix(id, f.RunID) {
			return false
		}
	}
	if f.DecisionsOnly {
		if _, ok := record[logging.FieldDecisionType]; !ok {
			return false
		}
	}
	if f.Level != "" {
		level, _ := record["level"].(string)
		have, ok := levelRank[level]
		if !ok || have < levelRank[strings.ToLower(f.Level)] {
			return false
		}
	}
	return true
}
