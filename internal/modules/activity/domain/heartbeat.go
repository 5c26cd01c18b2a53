package domain

import (
	"fmt"
	"strings"

	apperrors "worktally/internal/platform/errors"
)

type ActivityType string

const (
	ActivityCoding   ActivityType = "coding"
	ActivityPlanning ActivityType = "planning"
)

func ParseActivityType(raw string) (ActivityType, error) {
	switch ActivityType(strings.ToLower(strings.TrimSpace(raw))) {
	case ActivityCoding:
		return ActivityCoding, nil
	case ActivityPlanning:
		return ActivityPlanning, nil
	default:
		return "", fmt.Errorf("%w: unknown activity type %q", apperrors.ErrInvalidInput, raw)
	}
}

// Heartbeat is one fixed-interval activity sample. ID is assigned by
// storage and only serves as a freshness watermark.
type Heartbeat struct {
	ID        string       `json:"id"`
	Timestamp int64        `json:"timestamp"`
	Project   string       `json:"project,omitempty"`
	Type      ActivityType `json:"activityType"`
}

func (h Heartbeat) IsPlanning() bool {
	return h.Type == ActivityPlanning
}

func (h Heartbeat) Validate() error {
	if h.Timestamp <= 0 {
		return fmt.Errorf("%w: heartbeat timestamp must be positive", apperrors.ErrInvalidInput)
	}
	if _, err := ParseActivityType(string(h.Type)); err != nil {
		return err
	}
	return nil
}
