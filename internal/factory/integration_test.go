package factory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/lessonprogress/internal/events"
	"github.com/mcoot/lessonprogress/internal/events/sse"
	"github.com/mcoot/lessonprogress/internal/model"
	"github.com/mcoot/lessonprogress/internal/services/auth"
	"github.com/mcoot/lessonprogress/internal/storage/memory"
	redisstorage "github.com/mcoot/lessonprogress/internal/storage/redis"
	"github.com/mcoot/lessonprogress/internal/testutil"
)

type IntegrationSuite struct {
	suite.Suite
	app *TestApp
	ctx context.Context
}

func TestIntegrationSuite(t *testing.T) {
	suite.Run(t, new(IntegrationSuite))
}

func (s *IntegrationSuite) SetupTest() {
	s.app = NewTestApp()
	s.ctx = context.Background()
}

func (s *IntegrationSuite) guest(name string) *auth.Session {
	s.app.MockRandom.QueueIdentity(testutil.Identity(name))
	session, err := s.app.AuthService.CreateGuest(s.ctx, name)
	s.Require().NoError(err)
	return session
}

// Test: the alice walkthrough from account creation to a rejected re-initialization
func (s *IntegrationSuite) TestAliceWalkthrough() {
	alice := s.guest("alice").Identity

	// Step 1: initialize
	record, err := s.app.ProgressService.Initialize(s.ctx, alice, alice)
	s.Require().NoError(err)
	s.Equal(alice, record.Owner())
	s.Empty(record.CompletedLessons())
	s.Equal(uint32(0), record.Points())

	// Step 2: first completion
	c, err := s.app.ProgressService.CompleteLesson(s.ctx, alice, alice, "intro-1", model.Award{Points: 10})
	s.Require().NoError(err)
	s.Equal(model.OutcomeApplied, c.Outcome)
	s.Equal([]model.LessonID{"intro-1"}, c.Record.CompletedLessons())
	s.Equal(uint32(10), c.Record.Points())

	// Step 3: identical repeat
	c, err = s.app.ProgressService.CompleteLesson(s.ctx, alice, alice, "intro-1", model.Award{Points: 10})
	s.Require().NoError(err)
	s.Equal(model.OutcomeNoOp, c.Outcome)
	s.Equal(uint32(10), c.Record.Points())

	// Step 4: completion with reward
	c, err = s.app.ProgressService.CompleteLesson(s.ctx, alice, alice, "intro-2", model.Award{Points: 5, Reward: 100})
	s.Require().NoError(err)
	s.Equal(model.OutcomeApplied, c.Outcome)
	s.Equal(uint32(15), c.Record.Points())
	s.Equal(uint64(100), c.Record.AllocatedBalance())

	// Step 5: second initialize
	_, err = s.app.ProgressService.Initialize(s.ctx, alice, alice)
	s.ErrorIs(err, model.ErrAlreadyInitialized)

	stored, err := s.app.Storage.GetRecord(s.ctx, alice)
	s.Require().NoError(err)
	s.Equal([]model.LessonID{"intro-1", "intro-2"}, stored.CompletedLessons())
	s.Equal(uint32(15), stored.Points())
}

// Test: a session for one account cannot mutate another account's record
func (s *IntegrationSuite) TestSessionsCannotCrossRecords() {
	alice := s.guest("alice")
	bob := s.guest("bob")

	_, err := s.app.ProgressService.Initialize(s.ctx, alice.Identity, alice.Identity)
	s.Require().NoError(err)

	_, err = s.app.ProgressService.Initialize(s.ctx, bob.Identity, alice.Identity)
	s.ErrorIs(err, model.ErrIdentityMismatch)

	_, err = s.app.ProgressService.CompleteLesson(s.ctx, bob.Identity, alice.Identity, "intro-1", model.Award{Points: 10})
	s.ErrorIs(err, model.ErrIdentityMismatch)

	// reads are open
	record, err := s.app.ProgressService.GetRecord(s.ctx, alice.Identity)
	s.Require().NoError(err)
	s.Equal(0, record.LessonCount())
}

// Test: a registered account keeps its identity across logins
func (s *IntegrationSuite) TestRegisteredAccountKeepsRecordAcrossLogins() {
	s.app.MockRandom.QueueIdentity(testutil.Identity("carol"))
	registered, err := s.app.AuthService.Register(s.ctx, "carol", "hunter22", "Carol")
	s.Require().NoError(err)

	_, err = s.app.ProgressService.Initialize(s.ctx, registered.Identity, registered.Identity)
	s.Require().NoError(err)
	_, err = s.app.ProgressService.CompleteLesson(s.ctx, registered.Identity, registered.Identity, "intro-1", model.Award{Points: 3})
	s.Require().NoError(err)

	s.app.AuthService.InvalidateSession(registered.Token)

	loggedIn, err := s.app.AuthService.Login(s.ctx, "carol", "hunter22")
	s.Require().NoError(err)
	s.Equal(registered.Identity, loggedIn.Identity)

	c, err := s.app.ProgressService.CompleteLesson(s.ctx, loggedIn.Identity, loggedIn.Identity, "intro-1", model.Award{Points: 3})
	s.Require().NoError(err)
	s.Equal(model.OutcomeNoOp, c.Outcome)
	s.Equal(uint32(3), c.Record.Points())
}

// Test: events reach the owner's SSE hub
func (s *IntegrationSuite) TestEventsReachOwnerHub() {
	alice := s.guest("alice").Identity

	hub := s.app.HubManager.GetOrCreateHub(alice)
	client := sse.NewClient()
	s.Require().True(hub.Register(client))
	s.Eventually(func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	_, err := s.app.ProgressService.Initialize(s.ctx, alice, alice)
	s.Require().NoError(err)

	select {
	case msg := <-client.Send():
		s.Contains(string(msg), "event: "+string(model.EventRecordInitialized))
	case <-time.After(time.Second):
		s.Fail("no event delivered")
	}
}

// Test: concurrent completions of distinct lessons are all recorded
func (s *IntegrationSuite) TestConcurrentCompletions() {
	alice := s.guest("alice").Identity
	_, err := s.app.ProgressService.Initialize(s.ctx, alice, alice)
	s.Require().NoError(err)

	var wg sync.WaitGroup
	for i := 0; i < model.DefaultCapacity; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.app.ProgressService.CompleteLesson(s.ctx, alice, alice,
				model.LessonID(fmt.Sprintf("lesson-%d", i)), model.Award{Points: 1})
			s.NoError(err)
		}(i)
	}
	wg.Wait()

	record, err := s.app.ProgressService.GetRecord(s.ctx, alice)
	s.Require().NoError(err)
	s.Equal(model.DefaultCapacity, record.LessonCount())
	s.Equal(uint32(model.DefaultCapacity), record.Points())

	_, err = s.app.ProgressService.CompleteLesson(s.ctx, alice, alice, "overflow", model.Award{Points: 1})
	s.ErrorIs(err, model.ErrOutOfCapacity)
}

// Test: maintenance jobs are registered and sessions expire
func (s *IntegrationSuite) TestMaintenanceJobs() {
	s.Require().NoError(s.app.scheduleMaintenance(Config{}))
	s.Equal(2, s.app.Scheduler.JobCount())

	s.guest("alice")
	s.Equal(1, s.app.AuthService.SessionCount())

	s.app.MockClock.Advance(48 * time.Hour)
	s.Equal(1, s.app.AuthService.CleanExpiredSessions())
	s.Equal(0, s.app.AuthService.SessionCount())
}

func TestPointsOnlyApp(t *testing.T) {
	app := NewTestAppWithLayout(model.Layout{Capacity: 2, MaxLessonIDLength: 8})
	ctx := context.Background()
	owner := testutil.Identity("dave")

	_, err := app.ProgressService.Initialize(ctx, owner, owner)
	require.NoError(t, err)

	_, err = app.ProgressService.CompleteLesson(ctx, owner, owner, "intro-1", model.Award{Points: 1, Reward: 1})
	assert.ErrorIs(t, err, model.ErrRewardsDisabled)

	_, err = app.ProgressService.CompleteLesson(ctx, owner, owner, "too-long-id", model.Award{Points: 1})
	assert.ErrorIs(t, err, model.ErrInvalidLessonID)

	record, err := app.ProgressService.GetRecord(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, model.LayoutTagPoints, record.LayoutTag())
	assert.Equal(t, 0, record.LessonCount())
}

func TestNewDefaultsToMemory(t *testing.T) {
	app, err := New(context.Background(), Config{})
	require.NoError(t, err)
	defer func() { _ = app.Close() }()

	assert.IsType(t, &memory.Storage{}, app.Storage)
	assert.Nil(t, app.Publisher)
	assert.Equal(t, model.DefaultLayout(), app.ProgressService.Layout())
	assert.Equal(t, 2, app.Scheduler.JobCount())
}

func TestNewRejectsBadConfig(t *testing.T) {
	ctx := context.Background()

	_, err := New(ctx, Config{StorageType: "cassandra"})
	assert.Error(t, err)

	_, err = New(ctx, Config{StorageType: StorageTypeRedis})
	assert.Error(t, err)

	_, err = New(ctx, Config{StorageType: StorageTypePostgres})
	assert.Error(t, err)

	_, err = New(ctx, Config{StorageType: StorageTypeSQLite})
	assert.Error(t, err)

	_, err = New(ctx, Config{Layout: model.Layout{Capacity: 0, MaxLessonIDLength: 4}})
	assert.ErrorIs(t, err, model.ErrInvalidLayout)
}

func TestNewWithSQLite(t *testing.T) {
	app, err := New(context.Background(), Config{StorageType: StorageTypeSQLite, SQLitePath: ":memory:"})
	require.NoError(t, err)
	defer func() { _ = app.Close() }()

	owner := testutil.Identity("erin")
	_, err = app.ProgressService.Initialize(context.Background(), owner, owner)
	require.NoError(t, err)

	exists, err := app.Storage.RecordExists(context.Background(), owner)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestNewWithRedisPublishesEvents(t *testing.T) {
	mr := miniredis.RunT(t)

	redisCfg := redisstorage.DefaultConfig()
	redisCfg.URL = "redis://" + mr.Addr()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := New(ctx, Config{
		StorageType:   StorageTypeRedis,
		RedisConfig:   &redisCfg,
		EventsChannel: "test-events",
	})
	require.NoError(t, err)
	defer func() { _ = app.Close() }()

	require.NotNil(t, app.Publisher)
	assert.Equal(t, "test-events", app.Publisher.Channel())

	received, err := app.Publisher.Subscribe(ctx)
	require.NoError(t, err)

	owner := testutil.Identity("frank")
	_, err = app.ProgressService.Initialize(ctx, owner, owner)
	require.NoError(t, err)

	select {
	case event := <-received:
		assert.Equal(t, model.EventRecordInitialized, event.Type)
		assert.Equal(t, owner, event.Owner)
	case <-time.After(2 * time.Second):
		t.Fatal("no event published")
	}
}

var _ events.Sink = events.Fanout{}
