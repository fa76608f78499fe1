package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/blockc/internal/ir"
)

// timeLayout is the text form of built_at. Times are stored in UTC.
const timeLayout = time.RFC3339Nano

// marshalWarnings converts warnings to canonical JSON TEXT for storage.
func marshalWarnings(warnings []string) (string, error) {
	if warnings == nil {
		warnings = []string{}
	}
	data, err := ir.MarshalCanonical(warnings)
	if err != nil {
		return "", fmt.Errorf("marshal warnings: %w", err)
	}
	return string(data), nil
}

func unmarshalWarnings(data string) ([]string, error) {
	if data == "" || data == "[]" {
		return []string{}, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return nil, fmt.Errorf("unmarshal warnings: %w", err)
	}
	return out, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse built_at: %w", err)
	}
	return t, nil
}
