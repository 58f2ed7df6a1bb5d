package scheduler

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/gridiron-edge/internal/calibration"
)

type fakeJobs struct {
	mu       sync.Mutex
	replays  int
	leagues  []string
	persists int
	since    time.Time
	failFor  string
}

func (f *fakeJobs) ReplayDeferred(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replays++
	return 1, nil
}

func (f *fakeJobs) GetCalibrationReport(_ context.Context, league string, _ time.Duration) (*calibration.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leagues = append(f.leagues, league)
	if league == f.failFor {
		return nil, errors.New("boom")
	}
	return &calibration.Report{League: league}, nil
}

func (f *fakeJobs) Persist(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.persists++
	return nil
}

func (f *fakeJobs) SweepCompleted(_ context.Context, _ string, since time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.since = since
	return 0, nil
}

func newScheduler() *Scheduler {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewScheduler(log)
}

func TestScheduleAndRunJobs(t *testing.T) {
	s := newScheduler()
	now := time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	jobs := &fakeJobs{failFor: "ncaaf"}

	require.NoError(t, s.ScheduleDeferredReplay("@every 5m", jobs))
	require.NoError(t, s.ScheduleCalibrationSweep("0 6 * * *", []string{"nfl", "ncaaf"}, 24*time.Hour, jobs))
	require.NoError(t, s.ScheduleSourceSnapshot("@every 15m", jobs))
	require.NoError(t, s.ScheduleCompletedGames("@every 10m", []string{"nfl"}, 48*time.Hour, jobs))
	assert.ElementsMatch(t, []string{"deferred_replay", "calibration_sweep", "source_snapshot", "completed_games"}, s.Jobs())

	require.NoError(t, s.RunNow("deferred_replay"))
	require.NoError(t, s.RunNow("calibration_sweep"))
	require.NoError(t, s.RunNow("source_snapshot"))
	require.NoError(t, s.RunNow("completed_games"))
	assert.Error(t, s.RunNow("nope"))

	assert.Equal(t, 1, jobs.replays)
	assert.Equal(t, []string{"nfl", "ncaaf"}, jobs.leagues)
	assert.Equal(t, 1, jobs.persists)
	assert.Equal(t, now.Add(-48*time.Hour), jobs.since)
}

func TestScheduleRejectsBadInput(t *testing.T) {
	s := newScheduler()
	jobs := &fakeJobs{}

	assert.Error(t, s.ScheduleDeferredReplay("not a cron", jobs))
	require.NoError(t, s.ScheduleDeferredReplay("@every 1m", jobs))
	assert.Error(t, s.ScheduleDeferredReplay("@every 1m", jobs))
}

func TestStartStop(t *testing.T) {
	s := newScheduler()
	assert.Error(t, s.Start())

	require.NoError(t, s.ScheduleSourceSnapshot("@every 1h", &fakeJobs{}))
	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())
	assert.False(t, s.GetNextRun().IsZero())
	assert.Error(t, s.ScheduleDeferredReplay("@every 1m", &fakeJobs{}))

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
}
