package model

import (
	"crypto/sha256"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"
)

func testIdentity(seed string) Identity {
	return Identity(sha256.Sum256([]byte(seed)))
}

type ProgressRecordSuite struct {
	suite.Suite
	alice  Identity
	record *ProgressRecord
}

func TestProgressRecordSuite(t *testing.T) {
	suite.Run(t, new(ProgressRecordSuite))
}

func (s *ProgressRecordSuite) SetupTest() {
	s.alice = testIdentity("alice")
	s.record = NewProgressRecord(s.alice, DefaultLayout())
}

// NewProgressRecord tests

func (s *ProgressRecordSuite) TestNewRecordIsEmpty() {
	s.Equal(s.alice, s.record.Owner())
	s.Empty(s.record.CompletedLessons())
	s.Equal(uint32(0), s.record.Points())
	s.Equal(uint64(0), s.record.AllocatedBalance())
	s.Equal(LayoutTagRewards, s.record.LayoutTag())
	s.Equal(DefaultCapacity, s.record.RemainingCapacity())
}

func (s *ProgressRecordSuite) TestNewRecordWithoutRewardsUsesPointsTag() {
	layout := DefaultLayout()
	layout.Rewards = false
	record := NewProgressRecord(s.alice, layout)
	s.Equal(LayoutTagPoints, record.LayoutTag())
}

// CompleteLesson tests

func (s *ProgressRecordSuite) TestCompleteLessonApplies() {
	outcome, err := s.record.CompleteLesson("intro-1", Award{Points: 10})
	s.Require().NoError(err)

	s.Equal(OutcomeApplied, outcome)
	s.Equal([]LessonID{"intro-1"}, s.record.CompletedLessons())
	s.Equal(uint32(10), s.record.Points())
}

func (s *ProgressRecordSuite) TestCompleteLessonIsIdempotent() {
	_, err := s.record.CompleteLesson("intro-1", Award{Points: 10, Reward: 100})
	s.Require().NoError(err)

	outcome, err := s.record.CompleteLesson("intro-1", Award{Points: 10, Reward: 100})
	s.Require().NoError(err)

	s.Equal(OutcomeNoOp, outcome)
	s.Equal([]LessonID{"intro-1"}, s.record.CompletedLessons())
	s.Equal(uint32(10), s.record.Points())
	s.Equal(uint64(100), s.record.AllocatedBalance())
}

func (s *ProgressRecordSuite) TestRepeatWithDifferentAwardIsStillNoOp() {
	_, _ = s.record.CompleteLesson("intro-1", Award{Points: 10})

	outcome, err := s.record.CompleteLesson("intro-1", Award{Points: 999, Reward: 5})
	s.Require().NoError(err)

	s.Equal(OutcomeNoOp, outcome)
	s.Equal(uint32(10), s.record.Points())
	s.Equal(uint64(0), s.record.AllocatedBalance())
}

func (s *ProgressRecordSuite) TestRewardAccumulatesIndependently() {
	_, _ = s.record.CompleteLesson("intro-1", Award{Points: 10})
	outcome, err := s.record.CompleteLesson("intro-2", Award{Points: 5, Reward: 100})
	s.Require().NoError(err)

	s.Equal(OutcomeApplied, outcome)
	s.Equal(uint32(15), s.record.Points())
	s.Equal(uint64(100), s.record.AllocatedBalance())
}

func (s *ProgressRecordSuite) TestPreservesCompletionOrder() {
	ids := []LessonID{"c", "a", "b"}
	for _, id := range ids {
		_, err := s.record.CompleteLesson(id, Award{Points: 1})
		s.Require().NoError(err)
	}
	_, _ = s.record.CompleteLesson("a", Award{Points: 1})

	s.Equal(ids, s.record.CompletedLessons())
}

func (s *ProgressRecordSuite) TestLessonMatchingIsExact() {
	_, _ = s.record.CompleteLesson("Intro", Award{Points: 1})

	outcome, err := s.record.CompleteLesson("intro", Award{Points: 1})
	s.Require().NoError(err)
	s.Equal(OutcomeApplied, outcome)
	s.Equal(2, s.record.LessonCount())
}

func (s *ProgressRecordSuite) TestInvalidLessonID() {
	_, err := s.record.CompleteLesson("", Award{Points: 1})
	s.ErrorIs(err, ErrInvalidLessonID)

	_, err = s.record.CompleteLesson(LessonID(strings.Repeat("x", DefaultMaxLessonIDLength+1)), Award{Points: 1})
	s.ErrorIs(err, ErrInvalidLessonID)

	_, err = s.record.CompleteLesson(LessonID([]byte{0xff, 0xfe}), Award{Points: 1})
	s.ErrorIs(err, ErrInvalidLessonID)

	s.Equal(0, s.record.LessonCount())
	s.Equal(uint32(0), s.record.Points())
}

func (s *ProgressRecordSuite) TestMaxLengthLessonIDAccepted() {
	outcome, err := s.record.CompleteLesson(LessonID(strings.Repeat("x", DefaultMaxLessonIDLength)), Award{Points: 1})
	s.Require().NoError(err)
	s.Equal(OutcomeApplied, outcome)
}

func (s *ProgressRecordSuite) TestRewardRejectedWhenRewardsDisabled() {
	layout := DefaultLayout()
	layout.Rewards = false
	record := NewProgressRecord(s.alice, layout)

	_, err := record.CompleteLesson("intro-1", Award{Points: 10, Reward: 1})
	s.ErrorIs(err, ErrRewardsDisabled)
	s.Equal(0, record.LessonCount())

	outcome, err := record.CompleteLesson("intro-1", Award{Points: 10})
	s.Require().NoError(err)
	s.Equal(OutcomeApplied, outcome)
	s.Equal(uint64(0), record.AllocatedBalance())
}

func (s *ProgressRecordSuite) TestCapacityBoundary() {
	for i := 0; i < DefaultCapacity; i++ {
		outcome, err := s.record.CompleteLesson(LessonID(fmt.Sprintf("lesson-%d", i)), Award{Points: 1, Reward: 2})
		s.Require().NoError(err)
		s.Equal(OutcomeApplied, outcome)
	}
	s.Equal(DefaultCapacity, s.record.LessonCount())
	s.Equal(0, s.record.RemainingCapacity())

	_, err := s.record.CompleteLesson("one-too-many", Award{Points: 1, Reward: 2})
	s.ErrorIs(err, ErrOutOfCapacity)

	s.Equal(DefaultCapacity, s.record.LessonCount())
	s.Equal(uint32(DefaultCapacity), s.record.Points())
	s.Equal(uint64(2*DefaultCapacity), s.record.AllocatedBalance())
	s.False(s.record.HasCompleted("one-too-many"))
}

func (s *ProgressRecordSuite) TestDuplicateAtFullCapacityIsNoOp() {
	for i := 0; i < DefaultCapacity; i++ {
		_, _ = s.record.CompleteLesson(LessonID(fmt.Sprintf("lesson-%d", i)), Award{Points: 1})
	}

	outcome, err := s.record.CompleteLesson("lesson-0", Award{Points: 1})
	s.Require().NoError(err)
	s.Equal(OutcomeNoOp, outcome)
}

func (s *ProgressRecordSuite) TestPointsOverflowLeavesRecordUnchanged() {
	_, err := s.record.CompleteLesson("big", Award{Points: math.MaxUint32})
	s.Require().NoError(err)

	_, err = s.record.CompleteLesson("one-more", Award{Points: 1, Reward: 5})
	s.ErrorIs(err, ErrAccumulatorOverflow)

	s.Equal([]LessonID{"big"}, s.record.CompletedLessons())
	s.Equal(uint32(math.MaxUint32), s.record.Points())
	s.Equal(uint64(0), s.record.AllocatedBalance())
}

func (s *ProgressRecordSuite) TestRewardOverflowLeavesRecordUnchanged() {
	_, err := s.record.CompleteLesson("big", Award{Reward: math.MaxUint64})
	s.Require().NoError(err)

	_, err = s.record.CompleteLesson("one-more", Award{Points: 3, Reward: 1})
	s.ErrorIs(err, ErrAccumulatorOverflow)

	s.Equal(1, s.record.LessonCount())
	s.Equal(uint32(0), s.record.Points())
}

func (s *ProgressRecordSuite) TestAccumulatorsNeverDecrease() {
	awards := []Award{{Points: 3}, {Points: 0, Reward: 7}, {Points: 1, Reward: 1}, {}, {Points: 9}}
	lessons := []LessonID{"a", "b", "a", "c", "d", "b", "e"}

	var lastPoints uint32
	var lastBalance uint64
	for i, id := range lessons {
		_, _ = s.record.CompleteLesson(id, awards[i%len(awards)])
		s.GreaterOrEqual(s.record.Points(), lastPoints)
		s.GreaterOrEqual(s.record.AllocatedBalance(), lastBalance)
		lastPoints = s.record.Points()
		lastBalance = s.record.AllocatedBalance()
	}

	seen := map[LessonID]bool{}
	for _, id := range s.record.CompletedLessons() {
		s.False(seen[id], "duplicate lesson %s", id)
		seen[id] = true
	}
}

// Clone tests

func (s *ProgressRecordSuite) TestCloneIsIndependent() {
	_, _ = s.record.CompleteLesson("intro-1", Award{Points: 10})
	clone := s.record.Clone()

	_, _ = clone.CompleteLesson("intro-2", Award{Points: 5})

	s.Equal(1, s.record.LessonCount())
	s.Equal(uint32(10), s.record.Points())
	s.Equal(2, clone.LessonCount())
}

func (s *ProgressRecordSuite) TestCompletedLessonsReturnsCopy() {
	_, _ = s.record.CompleteLesson("intro-1", Award{Points: 10})

	lessons := s.record.CompletedLessons()
	lessons[0] = "tampered"

	s.True(s.record.HasCompleted("intro-1"))
	s.False(s.record.HasCompleted("tampered"))
}
