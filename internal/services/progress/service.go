package progress

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/mcoot/lessonprogress/internal/dependencies/clock"
	"github.com/mcoot/lessonprogress/internal/events"
	"github.com/mcoot/lessonprogress/internal/model"
	"github.com/mcoot/lessonprogress/internal/storage"
)

// Completion is the result of a lesson completion request
type Completion struct {
	Outcome model.Outcome
	Record  *model.ProgressRecord
}

// Service creates progress records and credits completed lessons.
// Callers pass an identity that has already been verified; the service only
// compares it with the record owner.
type Service struct {
	storage storage.Storage
	layout  model.Layout
	clock   clock.Clock
	sink    events.Sink
	logger  *slog.Logger
}

// New creates a new progress Service. A nil sink discards events.
func New(
	storage storage.Storage,
	layout model.Layout,
	clock clock.Clock,
	sink events.Sink,
	logger *slog.Logger,
) *Service {
	if sink == nil {
		sink = events.Discard{}
	}
	return &Service{
		storage: storage,
		layout:  layout,
		clock:   clock,
		sink:    sink,
		logger:  logger.With(slog.String("component", "progress")),
	}
}

// Layout returns the layout new records are allocated with
func (s *Service) Layout() model.Layout {
	return s.layout
}

// Initialize creates the empty progress record for owner. Only the owner
// may create their own record, and only once.
func (s *Service) Initialize(ctx context.Context, caller, owner model.Identity) (*model.ProgressRecord, error) {
	if owner.IsZero() {
		return nil, model.ErrInvalidIdentity
	}
	if caller != owner {
		return nil, model.ErrIdentityMismatch
	}

	record := model.NewProgressRecord(owner, s.layout)
	if err := s.storage.CreateRecord(ctx, record); err != nil {
		if errors.Is(err, model.ErrAlreadyInitialized) {
			s.logger.Info("record already initialized", slog.String("owner", owner.String()))
		}
		return nil, err
	}

	s.logger.Info("user initialized", slog.String("owner", owner.String()))
	s.notify(ctx, model.EventRecordInitialized, record, "", model.Award{})
	return record, nil
}

// CompleteLesson credits lesson id to owner's record. A lesson that is
// already recorded is reported as a no-op and grants nothing, whatever
// award is passed. On error the stored record is unchanged.
func (s *Service) CompleteLesson(
	ctx context.Context,
	caller, owner model.Identity,
	id model.LessonID,
	award model.Award,
) (*Completion, error) {
	var outcome model.Outcome
	record, err := s.storage.UpdateRecord(ctx, owner, func(r *model.ProgressRecord) (bool, error) {
		if r.Owner() != caller {
			return false, model.ErrIdentityMismatch
		}
		var err error
		outcome, err = r.CompleteLesson(id, award)
		if err != nil {
			return false, err
		}
		return outcome == model.OutcomeApplied, nil
	})
	if err != nil {
		s.logger.Warn("lesson completion rejected",
			slog.String("owner", owner.String()),
			slog.String("lesson_id", string(id)),
			slog.Any("error", err))
		return nil, err
	}

	switch outcome {
	case model.OutcomeApplied:
		s.logger.Info("lesson completed",
			slog.String("owner", owner.String()),
			slog.String("lesson_id", string(id)),
			slog.Any("points", award.Points),
			slog.Any("reward", award.Reward),
			slog.Any("total_points", record.Points()))
		s.notify(ctx, model.EventLessonCompleted, record, id, award)
	case model.OutcomeNoOp:
		s.logger.Info("lesson already completed",
			slog.String("owner", owner.String()),
			slog.String("lesson_id", string(id)))
		s.notify(ctx, model.EventLessonAlreadyCompleted, record, id, model.Award{})
	}

	return &Completion{Outcome: outcome, Record: record}, nil
}

// GetRecord returns owner's record. Reads are not restricted to the owner.
func (s *Service) GetRecord(ctx context.Context, owner model.Identity) (*model.ProgressRecord, error) {
	return s.storage.GetRecord(ctx, owner)
}

func (s *Service) notify(ctx context.Context, typ model.EventType, record *model.ProgressRecord, id model.LessonID, award model.Award) {
	s.sink.Notify(ctx, model.Event{
		ID:               uuid.NewString(),
		Type:             typ,
		Timestamp:        s.clock.Now(),
		Owner:            record.Owner(),
		LessonID:         id,
		Points:           award.Points,
		Reward:           award.Reward,
		TotalPoints:      record.Points(),
		AllocatedBalance: record.AllocatedBalance(),
		LessonCount:      record.LessonCount(),
	})
}
