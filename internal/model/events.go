package model

import (
	"fmt"
	"time"
)

// EventType identifies the type of event
type EventType string

const (
	EventRecordInitialized      EventType = "record_initialized"
	EventLessonCompleted        EventType = "lesson_completed"
	EventLessonAlreadyCompleted EventType = "lesson_already_completed"
)

// Event is an informational notification about a progress record.
// Nothing in the core depends on an event being delivered.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Owner     Identity  `json:"owner"`

	// Set for completion events
	LessonID LessonID `json:"lesson_id,omitempty"`
	Points   uint32   `json:"points,omitempty"`
	Reward   uint64   `json:"reward,omitempty"`

	// Record totals after the operation
	TotalPoints      uint32 `json:"total_points"`
	AllocatedBalance uint64 `json:"allocated_balance"`
	LessonCount      int    `json:"lesson_count"`
}

// Message renders the event as a human-readable line
func (e Event) Message() string {
	switch e.Type {
	case EventRecordInitialized:
		return fmt.Sprintf("user initialized: %s", e.Owner)
	case EventLessonCompleted:
		if e.Reward > 0 {
			return fmt.Sprintf("lesson completed: %s, points awarded: %d, reward allocated: %d", e.LessonID, e.Points, e.Reward)
		}
		return fmt.Sprintf("lesson completed: %s, points awarded: %d", e.LessonID, e.Points)
	case EventLessonAlreadyCompleted:
		return fmt.Sprintf("lesson %s already completed", e.LessonID)
	default:
		return string(e.Type)
	}
}
