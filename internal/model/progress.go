package model

import (
	"fmt"
	"math"
	"slices"
	"unicode/utf8"
)

// LessonID identifies a lesson within the curriculum
type LessonID string

// Award is the caller-supplied credit for a newly completed lesson
type Award struct {
	Points uint32
	Reward uint64 // only meaningful when the layout has rewards enabled
}

// Outcome reports whether a completion attempt granted new credit
type Outcome string

const (
	OutcomeApplied Outcome = "applied"
	OutcomeNoOp    Outcome = "noop"
)

// ProgressRecord is the durable per-user state: which lessons were
// completed, in what order, and what they accumulated.
//
// Fields are only written by NewProgressRecord and CompleteLesson.
type ProgressRecord struct {
	owner            Identity
	completedLessons []LessonID
	points           uint32
	allocatedBalance uint64
	layoutTag        uint8

	layout Layout // capacity reserved at allocation, not serialized
}

// NewProgressRecord allocates an empty record for owner
func NewProgressRecord(owner Identity, layout Layout) *ProgressRecord {
	return &ProgressRecord{
		owner:            owner,
		completedLessons: make([]LessonID, 0, layout.Capacity),
		layoutTag:        layout.Tag(),
		layout:           layout,
	}
}

// Owner returns the identity the record was created for
func (r *ProgressRecord) Owner() Identity {
	return r.owner
}

// CompletedLessons returns a copy of the completed lessons in completion order
func (r *ProgressRecord) CompletedLessons() []LessonID {
	return slices.Clone(r.completedLessons)
}

// LessonCount returns the number of completed lessons
func (r *ProgressRecord) LessonCount() int {
	return len(r.completedLessons)
}

// Points returns the accumulated points
func (r *ProgressRecord) Points() uint32 {
	return r.points
}

// AllocatedBalance returns the reward amount reserved but not yet transferred
func (r *ProgressRecord) AllocatedBalance() uint64 {
	return r.allocatedBalance
}

// LayoutTag returns the layout variant tag stored with the record
func (r *ProgressRecord) LayoutTag() uint8 {
	return r.layoutTag
}

// Layout returns the layout the record was allocated with
func (r *ProgressRecord) Layout() Layout {
	return r.layout
}

// RemainingCapacity returns how many more lessons the record can hold
func (r *ProgressRecord) RemainingCapacity() int {
	return r.layout.Capacity - len(r.completedLessons)
}

// HasCompleted reports whether id is already in the completed set
func (r *ProgressRecord) HasCompleted(id LessonID) bool {
	return slices.Contains(r.completedLessons, id)
}

// Clone returns a deep copy
func (r *ProgressRecord) Clone() *ProgressRecord {
	clone := *r
	clone.completedLessons = make([]LessonID, len(r.completedLessons), max(r.layout.Capacity, len(r.completedLessons)))
	copy(clone.completedLessons, r.completedLessons)
	return &clone
}

// CompleteLesson credits id to the record if it has not been completed yet.
// A repeated lesson is a no-op regardless of the award passed. Every check
// runs before the first write, so a returned error means nothing changed.
func (r *ProgressRecord) CompleteLesson(id LessonID, award Award) (Outcome, error) {
	if err := r.layout.ValidateLessonID(id); err != nil {
		return "", err
	}
	if !r.layout.Rewards && award.Reward > 0 {
		return "", ErrRewardsDisabled
	}

	if r.HasCompleted(id) {
		return OutcomeNoOp, nil
	}

	if len(r.completedLessons) >= r.layout.Capacity {
		return "", fmt.Errorf("%w: %d of %d lessons used", ErrOutOfCapacity, len(r.completedLessons), r.layout.Capacity)
	}
	if award.Points > math.MaxUint32-r.points {
		return "", fmt.Errorf("%w: points", ErrAccumulatorOverflow)
	}
	if award.Reward > math.MaxUint64-r.allocatedBalance {
		return "", fmt.Errorf("%w: allocated balance", ErrAccumulatorOverflow)
	}

	r.completedLessons = append(r.completedLessons, id)
	r.points += award.Points
	r.allocatedBalance += award.Reward
	return OutcomeApplied, nil
}

// ValidateLessonID checks id is non-empty UTF-8 within the maximum length
func (l Layout) ValidateLessonID(id LessonID) error {
	if id == "" {
		return fmt.Errorf("%w: empty", ErrInvalidLessonID)
	}
	if len(id) > l.MaxLessonIDLength {
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidLessonID, l.MaxLessonIDLength)
	}
	if !utf8.ValidString(string(id)) {
		return fmt.Errorf("%w: not valid UTF-8", ErrInvalidLessonID)
	}
	return nil
}
