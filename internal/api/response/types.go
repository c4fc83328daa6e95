package response

import (
	"time"

	"github.com/mcoot/lessonprogress/internal/model"
	"github.com/mcoot/lessonprogress/internal/services/auth"
	"github.com/mcoot/lessonprogress/internal/services/progress"
)

// Account represents an account in API responses
type Account struct {
	Identity    string    `json:"identity"`
	DisplayName string    `json:"display_name"`
	Username    string    `json:"username,omitempty"`
	IsGuest     bool      `json:"is_guest"`
	CreatedAt   time.Time `json:"created_at"`
}

// AccountFromModel converts a model.Account to a response Account
func AccountFromModel(a *model.Account) Account {
	return Account{
		Identity:    a.Identity.String(),
		DisplayName: a.DisplayName,
		Username:    a.Username,
		IsGuest:     a.IsGuest,
		CreatedAt:   a.CreatedAt,
	}
}

// AuthResponse is the response for authentication endpoints
type AuthResponse struct {
	Account      Account   `json:"account"`
	SessionToken string    `json:"session_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// AuthResponseFromSession creates an AuthResponse from a session
func AuthResponseFromSession(s *auth.Session) AuthResponse {
	return AuthResponse{
		Account:      AccountFromModel(&s.Account),
		SessionToken: s.Token,
		ExpiresAt:    s.ExpiresAt,
	}
}

// ProgressRecord represents a progress record in API responses
type ProgressRecord struct {
	Owner             string   `json:"owner"`
	CompletedLessons  []string `json:"completed_lessons"`
	Points            uint32   `json:"points"`
	AllocatedBalance  uint64   `json:"allocated_balance"`
	LayoutTag         uint8    `json:"layout_tag"`
	RemainingCapacity int      `json:"remaining_capacity"`
}

// ProgressRecordFromModel converts a model.ProgressRecord
func ProgressRecordFromModel(r *model.ProgressRecord) ProgressRecord {
	lessons := r.CompletedLessons()
	ids := make([]string, len(lessons))
	for i, id := range lessons {
		ids[i] = string(id)
	}
	return ProgressRecord{
		Owner:             r.Owner().String(),
		CompletedLessons:  ids,
		Points:            r.Points(),
		AllocatedBalance:  r.AllocatedBalance(),
		LayoutTag:         r.LayoutTag(),
		RemainingCapacity: r.RemainingCapacity(),
	}
}

// CompletionResponse is the response for completing a lesson
type CompletionResponse struct {
	Outcome string         `json:"outcome"`
	Record  ProgressRecord `json:"record"`
}

// CompletionResponseFromService converts a progress.Completion
func CompletionResponseFromService(c *progress.Completion) CompletionResponse {
	return CompletionResponse{
		Outcome: string(c.Outcome),
		Record:  ProgressRecordFromModel(c.Record),
	}
}

// Layout describes the record layout new records are allocated with
type Layout struct {
	Capacity          int   `json:"capacity"`
	MaxLessonIDLength int   `json:"max_lesson_id_length"`
	RecordSize        int   `json:"record_size"`
	Rewards           bool  `json:"rewards"`
	Tag               uint8 `json:"tag"`
}

// LayoutFromModel converts a model.Layout
func LayoutFromModel(l model.Layout) Layout {
	return Layout{
		Capacity:          l.Capacity,
		MaxLessonIDLength: l.MaxLessonIDLength,
		RecordSize:        l.Size(),
		Rewards:           l.Rewards,
		Tag:               l.Tag(),
	}
}

// Health is the response for the health endpoint
type Health struct {
	Status string `json:"status"`
}
