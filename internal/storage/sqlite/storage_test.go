package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/lessonprogress/internal/model"
	"github.com/mcoot/lessonprogress/internal/storage/storagetest"
	"github.com/mcoot/lessonprogress/internal/testutil"
)

type StorageSuite struct {
	storagetest.Suite
	storage *Storage
}

func TestStorageSuite(t *testing.T) {
	suite.Run(t, new(StorageSuite))
}

func (s *StorageSuite) SetupTest() {
	s.Layout = model.DefaultLayout()
	s.Ctx = context.Background()

	var err error
	s.storage, err = New(MemoryPath, s.Layout)
	s.Require().NoError(err)
	s.Storage = s.storage
}

func (s *StorageSuite) TearDownTest() {
	if s.storage != nil {
		_ = s.storage.Close()
	}
}

func (s *StorageSuite) TestRecordStoredAtFixedSize() {
	owner := testutil.Identity("alice")
	s.Require().NoError(s.storage.CreateRecord(s.Ctx, model.NewProgressRecord(owner, s.Layout)))

	var size int
	err := s.storage.db.Get(&size, `SELECT length(data) FROM progress_records WHERE owner = ?`, owner[:])
	s.Require().NoError(err)
	s.Equal(s.Layout.Size(), size)
}

func (s *StorageSuite) TestDataSurvivesReopen() {
	path := filepath.Join(s.T().TempDir(), "data", "progress.db")
	owner := testutil.Identity("alice")

	first, err := New(path, s.Layout)
	s.Require().NoError(err)
	s.Require().NoError(first.CreateRecord(s.Ctx, model.NewProgressRecord(owner, s.Layout)))
	_, err = first.UpdateRecord(s.Ctx, owner, func(r *model.ProgressRecord) (bool, error) {
		_, err := r.CompleteLesson("rpc-privacy", model.Award{Points: 30, Reward: 30})
		return true, err
	})
	s.Require().NoError(err)
	s.Require().NoError(first.Close())

	second, err := New(path, s.Layout)
	s.Require().NoError(err)
	defer func() { _ = second.Close() }()

	record, err := second.GetRecord(s.Ctx, owner)
	s.Require().NoError(err)
	s.Equal([]model.LessonID{"rpc-privacy"}, record.CompletedLessons())
	s.Equal(uint64(30), record.AllocatedBalance())
}
