// Package storagetest holds the behaviour every storage backend must share.
// Backend test files embed Suite and fill in Storage during SetupTest.
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/lessonprogress/internal/model"
	"github.com/mcoot/lessonprogress/internal/storage"
	"github.com/mcoot/lessonprogress/internal/testutil"
)

// Suite runs the storage contract against Storage
type Suite struct {
	suite.Suite
	Storage storage.Storage
	Layout  model.Layout
	Ctx     context.Context
}

func (s *Suite) newRecord(seed string) *model.ProgressRecord {
	return model.NewProgressRecord(testutil.Identity(seed), s.Layout)
}

func completeFn(id model.LessonID, award model.Award) storage.UpdateFunc {
	return func(r *model.ProgressRecord) (bool, error) {
		outcome, err := r.CompleteLesson(id, award)
		if err != nil {
			return false, err
		}
		return outcome == model.OutcomeApplied, nil
	}
}

// Progress record tests

func (s *Suite) TestCreateAndGetRecord() {
	record := s.newRecord("alice")

	err := s.Storage.CreateRecord(s.Ctx, record)
	s.Require().NoError(err)

	retrieved, err := s.Storage.GetRecord(s.Ctx, record.Owner())
	s.Require().NoError(err)
	s.Equal(record.Owner(), retrieved.Owner())
	s.Empty(retrieved.CompletedLessons())
	s.Equal(uint32(0), retrieved.Points())
	s.Equal(uint64(0), retrieved.AllocatedBalance())
	s.Equal(s.Layout.Tag(), retrieved.LayoutTag())
}

func (s *Suite) TestGetRecordNotFound() {
	_, err := s.Storage.GetRecord(s.Ctx, testutil.Identity("nobody"))
	s.ErrorIs(err, model.ErrRecordNotFound)
}

func (s *Suite) TestRecordExists() {
	record := s.newRecord("alice")

	exists, err := s.Storage.RecordExists(s.Ctx, record.Owner())
	s.Require().NoError(err)
	s.False(exists)

	_ = s.Storage.CreateRecord(s.Ctx, record)

	exists, err = s.Storage.RecordExists(s.Ctx, record.Owner())
	s.Require().NoError(err)
	s.True(exists)
}

func (s *Suite) TestCreateRecordTwiceFails() {
	record := s.newRecord("alice")
	s.Require().NoError(s.Storage.CreateRecord(s.Ctx, record))

	_, err := s.Storage.UpdateRecord(s.Ctx, record.Owner(), completeFn("intro-1", model.Award{Points: 10}))
	s.Require().NoError(err)

	err = s.Storage.CreateRecord(s.Ctx, s.newRecord("alice"))
	s.ErrorIs(err, model.ErrAlreadyInitialized)

	// existing record untouched
	retrieved, err := s.Storage.GetRecord(s.Ctx, record.Owner())
	s.Require().NoError(err)
	s.Equal([]model.LessonID{"intro-1"}, retrieved.CompletedLessons())
	s.Equal(uint32(10), retrieved.Points())
}

func (s *Suite) TestUpdateRecordPersists() {
	record := s.newRecord("alice")
	s.Require().NoError(s.Storage.CreateRecord(s.Ctx, record))

	updated, err := s.Storage.UpdateRecord(s.Ctx, record.Owner(), completeFn("intro-1", model.Award{Points: 10}))
	s.Require().NoError(err)
	s.Equal(uint32(10), updated.Points())

	var reward uint64
	if s.Layout.Rewards {
		reward = 100
	}
	_, err = s.Storage.UpdateRecord(s.Ctx, record.Owner(), completeFn("intro-2", model.Award{Points: 5, Reward: reward}))
	s.Require().NoError(err)

	retrieved, err := s.Storage.GetRecord(s.Ctx, record.Owner())
	s.Require().NoError(err)
	s.Equal([]model.LessonID{"intro-1", "intro-2"}, retrieved.CompletedLessons())
	s.Equal(uint32(15), retrieved.Points())
	s.Equal(reward, retrieved.AllocatedBalance())
}

func (s *Suite) TestUpdateRecordNotFound() {
	_, err := s.Storage.UpdateRecord(s.Ctx, testutil.Identity("nobody"), completeFn("intro-1", model.Award{Points: 1}))
	s.ErrorIs(err, model.ErrRecordNotFound)
}

func (s *Suite) TestUpdateRecordErrorWritesNothing() {
	record := s.newRecord("alice")
	s.Require().NoError(s.Storage.CreateRecord(s.Ctx, record))

	_, err := s.Storage.UpdateRecord(s.Ctx, record.Owner(), func(r *model.ProgressRecord) (bool, error) {
		_, _ = r.CompleteLesson("intro-1", model.Award{Points: 10})
		return false, model.ErrOutOfCapacity
	})
	s.ErrorIs(err, model.ErrOutOfCapacity)

	retrieved, err := s.Storage.GetRecord(s.Ctx, record.Owner())
	s.Require().NoError(err)
	s.Empty(retrieved.CompletedLessons())
	s.Equal(uint32(0), retrieved.Points())
}

func (s *Suite) TestUpdateRecordCapacityBoundary() {
	record := s.newRecord("alice")
	s.Require().NoError(s.Storage.CreateRecord(s.Ctx, record))

	for i := 0; i < s.Layout.Capacity; i++ {
		_, err := s.Storage.UpdateRecord(s.Ctx, record.Owner(), completeFn(model.LessonID(fmt.Sprintf("lesson-%d", i)), model.Award{Points: 1}))
		s.Require().NoError(err)
	}

	_, err := s.Storage.UpdateRecord(s.Ctx, record.Owner(), completeFn("overflow", model.Award{Points: 1}))
	s.ErrorIs(err, model.ErrOutOfCapacity)

	retrieved, err := s.Storage.GetRecord(s.Ctx, record.Owner())
	s.Require().NoError(err)
	s.Equal(s.Layout.Capacity, retrieved.LessonCount())
	s.Equal(uint32(s.Layout.Capacity), retrieved.Points())
}

func (s *Suite) TestGetRecordReturnsCopy() {
	record := s.newRecord("alice")
	s.Require().NoError(s.Storage.CreateRecord(s.Ctx, record))

	retrieved, err := s.Storage.GetRecord(s.Ctx, record.Owner())
	s.Require().NoError(err)
	_, _ = retrieved.CompleteLesson("local-only", model.Award{Points: 99})

	again, err := s.Storage.GetRecord(s.Ctx, record.Owner())
	s.Require().NoError(err)
	s.Empty(again.CompletedLessons())
}

func (s *Suite) TestConcurrentCreateOnlyOneSucceeds() {
	const writers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		created   int
		conflicts int
	)

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Storage.CreateRecord(s.Ctx, s.newRecord("alice"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, model.ErrAlreadyInitialized):
				conflicts++
			}
		}()
	}
	wg.Wait()

	s.Equal(1, created)
	s.Equal(writers-1, conflicts)
}

func (s *Suite) TestConcurrentDistinctCompletionsAllApply() {
	record := s.newRecord("alice")
	s.Require().NoError(s.Storage.CreateRecord(s.Ctx, record))

	writers := s.Layout.Capacity
	errs := make(chan error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Storage.UpdateRecord(s.Ctx, record.Owner(), completeFn(model.LessonID(fmt.Sprintf("lesson-%d", i)), model.Award{Points: 1}))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		s.Require().NoError(err)
	}

	retrieved, err := s.Storage.GetRecord(s.Ctx, record.Owner())
	s.Require().NoError(err)
	s.Equal(writers, retrieved.LessonCount())
	s.Equal(uint32(writers), retrieved.Points())
}

func (s *Suite) TestConcurrentDuplicateCompletionAppliesOnce() {
	record := s.newRecord("alice")
	s.Require().NoError(s.Storage.CreateRecord(s.Ctx, record))

	const writers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		applied int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var outcome model.Outcome
			_, err := s.Storage.UpdateRecord(s.Ctx, record.Owner(), func(r *model.ProgressRecord) (bool, error) {
				var err error
				outcome, err = r.CompleteLesson("intro-1", model.Award{Points: 10})
				return outcome == model.OutcomeApplied, err
			})
			if err == nil && outcome == model.OutcomeApplied {
				mu.Lock()
				applied++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	s.Equal(1, applied)

	retrieved, err := s.Storage.GetRecord(s.Ctx, record.Owner())
	s.Require().NoError(err)
	s.Equal(1, retrieved.LessonCount())
	s.Equal(uint32(10), retrieved.Points())
}

// Account tests

func (s *Suite) newAccount(seed, username string) *model.Account {
	return &model.Account{
		Identity:    testutil.Identity(seed),
		DisplayName: seed,
		Username:    username,
		IsGuest:     username == "",
		CreatedAt:   time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (s *Suite) TestSaveAndGetAccount() {
	account := s.newAccount("alice", "alice")
	account.PasswordHash = "hash"

	s.Require().NoError(s.Storage.SaveAccount(s.Ctx, account))

	retrieved, err := s.Storage.GetAccount(s.Ctx, account.Identity)
	s.Require().NoError(err)
	s.Equal(account.Identity, retrieved.Identity)
	s.Equal("alice", retrieved.DisplayName)
	s.Equal("alice", retrieved.Username)
	s.Equal("hash", retrieved.PasswordHash)
	s.False(retrieved.IsGuest)
	s.True(account.CreatedAt.Equal(retrieved.CreatedAt))
}

func (s *Suite) TestSaveGuestAccount() {
	account := s.newAccount("guest", "")
	s.Require().NoError(s.Storage.SaveAccount(s.Ctx, account))

	retrieved, err := s.Storage.GetAccount(s.Ctx, account.Identity)
	s.Require().NoError(err)
	s.True(retrieved.IsGuest)
	s.Empty(retrieved.Username)
}

func (s *Suite) TestGetAccountNotFound() {
	_, err := s.Storage.GetAccount(s.Ctx, testutil.Identity("nobody"))
	s.ErrorIs(err, model.ErrAccountNotFound)
}

func (s *Suite) TestGetAccountByUsername() {
	account := s.newAccount("alice", "alice")
	s.Require().NoError(s.Storage.SaveAccount(s.Ctx, account))

	retrieved, err := s.Storage.GetAccountByUsername(s.Ctx, "alice")
	s.Require().NoError(err)
	s.Equal(account.Identity, retrieved.Identity)
}

func (s *Suite) TestGetAccountByUsernameNotFound() {
	_, err := s.Storage.GetAccountByUsername(s.Ctx, "nobody")
	s.ErrorIs(err, model.ErrAccountNotFound)
}

func (s *Suite) TestUsernameIsUnique() {
	s.Require().NoError(s.Storage.SaveAccount(s.Ctx, s.newAccount("alice", "shared")))

	err := s.Storage.SaveAccount(s.Ctx, s.newAccount("bob", "shared"))
	s.ErrorIs(err, model.ErrUsernameTaken)

	retrieved, err := s.Storage.GetAccountByUsername(s.Ctx, "shared")
	s.Require().NoError(err)
	s.Equal(testutil.Identity("alice"), retrieved.Identity)
}

func (s *Suite) TestSaveAccountAgainUpdates() {
	account := s.newAccount("alice", "alice")
	s.Require().NoError(s.Storage.SaveAccount(s.Ctx, account))

	account.DisplayName = "Alice Cooper"
	s.Require().NoError(s.Storage.SaveAccount(s.Ctx, account))

	retrieved, err := s.Storage.GetAccount(s.Ctx, account.Identity)
	s.Require().NoError(err)
	s.Equal("Alice Cooper", retrieved.DisplayName)
}
