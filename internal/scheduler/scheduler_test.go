package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/lessonprogress/internal/testutil"
)

func TestSchedulerRunsJobs(t *testing.T) {
	s := New(testutil.NopLogger())

	var runs atomic.Int32
	require.NoError(t, s.Every("count", 10*time.Millisecond, func() { runs.Add(1) }))
	assert.Equal(t, 1, s.JobCount())

	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
}

func TestSchedulerRejectsNonPositiveInterval(t *testing.T) {
	s := New(testutil.NopLogger())

	assert.Error(t, s.Every("bad", 0, func() {}))
	assert.Equal(t, 0, s.JobCount())
}
