package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirphl/measurement-reporting/app/services"
	"github.com/amirphl/measurement-reporting/config"
)

// fakeJob records its runs; when block is set each run waits for it to close
type fakeJob struct {
	lane      string
	runs      atomic.Int32
	block     chan struct{}
	started   chan struct{}
	failWith  string
	cancelled atomic.Bool

	mu    sync.Mutex
	start time.Time
	end   time.Time
}

func newFakeJob(lane string) *fakeJob {
	return &fakeJob{lane: lane, started: make(chan struct{}, 16)}
}

func (j *fakeJob) Lane() string { return j.lane }

func (j *fakeJob) Run(ctx context.Context, start, end time.Time) RunSummary {
	j.runs.Add(1)
	j.mu.Lock()
	j.start, j.end = start, end
	j.mu.Unlock()
	select {
	case j.started <- struct{}{}:
	default:
	}
	if j.failWith != "" {
		return RunSummary{Lane: j.lane, Error: j.failWith}
	}
	if j.block != nil {
		select {
		case <-j.block:
		case <-ctx.Done():
			j.cancelled.Store(true)
		}
	}
	return RunSummary{Lane: j.lane, Candidates: 1, Succeeded: 1}
}

func (j *fakeJob) DeliverReport(context.Context, string) ReportingStatusCode {
	return ReportingStatusSuccess
}

type schedulerFixture struct {
	event, aggregate, debugEvent, debugAggregate, verbose *fakeJob
	scheduler                                             *ReportingScheduler
}

func newSchedulerFixture(cfg config.ReportingConfig) *schedulerFixture {
	f := &schedulerFixture{
		event:          newFakeJob(LaneEvent),
		aggregate:      newFakeJob(LaneAggregate),
		debugEvent:     newFakeJob(LaneDebugEvent),
		debugAggregate: newFakeJob(LaneDebugAggregate),
		verbose:        newFakeJob(LaneVerboseDebug),
	}
	registry := NewRegistry(f.event, f.aggregate, f.debugEvent, f.debugAggregate, f.verbose)
	f.scheduler = NewReportingScheduler(registry, cfg, nil, "test:", discardLogger())
	return f
}

func idleReportingConfig() config.ReportingConfig {
	return config.ReportingConfig{
		EventReportingInterval:     time.Hour,
		AggregateReportingInterval: time.Hour,
		DebugReportingInterval:     time.Hour,
		RunRequestPollInterval:     time.Hour,
		MaxUploadRetryWindow:       24 * time.Hour,
	}
}

func TestRegistry_Job(t *testing.T) {
	f := newSchedulerFixture(idleReportingConfig())
	registry := f.scheduler.Registry()

	for _, lane := range LaneNames {
		job, ok := registry.Job(lane)
		require.True(t, ok, lane)
		assert.Equal(t, lane, job.Lane())
	}
	_, ok := registry.Job("unknown")
	assert.False(t, ok)
	assert.Len(t, registry[services.JobKindDebugReporting], 3)
}

func TestReportingScheduler_RunExecutesEveryLaneOfKind(t *testing.T) {
	f := newSchedulerFixture(idleReportingConfig())

	summaries, err := f.scheduler.Run(context.Background(), services.JobKindDebugReporting, windowStart, windowEnd)

	require.NoError(t, err)
	require.Len(t, summaries, 3)
	assert.Equal(t, LaneDebugEvent, summaries[0].Lane)
	assert.Equal(t, LaneDebugAggregate, summaries[1].Lane)
	assert.Equal(t, LaneVerboseDebug, summaries[2].Lane)
	assert.Equal(t, int32(1), f.debugEvent.runs.Load())
	assert.Equal(t, int32(1), f.verbose.runs.Load())
	assert.Zero(t, f.event.runs.Load())
}

func TestReportingScheduler_FailedLaneDoesNotCancelSiblings(t *testing.T) {
	f := newSchedulerFixture(idleReportingConfig())
	f.debugEvent.failWith = "store unavailable"
	f.debugAggregate.block = make(chan struct{})

	end := time.Now().UTC()
	type result struct {
		summaries []RunSummary
		err       error
	}
	done := make(chan result, 1)
	go func() {
		summaries, err := f.scheduler.Run(context.Background(), services.JobKindDebugReporting, end.Add(-time.Hour), end)
		done <- result{summaries, err}
	}()

	for _, job := range []*fakeJob{f.debugEvent, f.debugAggregate} {
		select {
		case <-job.started:
		case <-time.After(5 * time.Second):
			t.Fatalf("lane %s did not start", job.lane)
		}
	}
	time.Sleep(50 * time.Millisecond)
	close(f.debugAggregate.block)

	res := <-done
	require.NoError(t, res.err)
	require.Len(t, res.summaries, 3)
	assert.False(t, f.debugAggregate.cancelled.Load())

	byLane := make(map[string]RunSummary, len(res.summaries))
	for _, summary := range res.summaries {
		byLane[summary.Lane] = summary
	}
	assert.Equal(t, "store unavailable", byLane[LaneDebugEvent].Error)
	assert.Equal(t, 1, byLane[LaneDebugAggregate].Succeeded)
	assert.Equal(t, 1, byLane[LaneVerboseDebug].Succeeded)
}

func TestReportingScheduler_RunUnknownKind(t *testing.T) {
	f := newSchedulerFixture(idleReportingConfig())

	_, err := f.scheduler.Run(context.Background(), services.JobKind("nope"), windowStart, windowEnd)

	assert.ErrorIs(t, err, ErrUnknownJobKind)
}

func TestReportingScheduler_OverlappingRunsAreRejected(t *testing.T) {
	f := newSchedulerFixture(idleReportingConfig())
	f.event.block = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := f.scheduler.Run(context.Background(), services.JobKindEventReporting, windowStart, windowEnd)
		done <- err
	}()
	<-f.event.started

	_, err := f.scheduler.Run(context.Background(), services.JobKindEventReporting, windowStart, windowEnd)
	assert.ErrorIs(t, err, ErrRunInProgress)

	_, err = f.scheduler.Run(context.Background(), services.JobKindAggregateReporting, windowStart, windowEnd)
	assert.NoError(t, err)

	close(f.event.block)
	assert.NoError(t, <-done)

	_, err = f.scheduler.Run(context.Background(), services.JobKindEventReporting, windowStart, windowEnd)
	assert.NoError(t, err)
}

func TestReportingScheduler_RequestRun(t *testing.T) {
	f := newSchedulerFixture(idleReportingConfig())
	ctx := context.Background()

	assert.ErrorIs(t, f.scheduler.RequestRun(ctx, services.JobKind("nope"), true), ErrUnknownJobKind)

	require.NoError(t, f.scheduler.RequestRun(ctx, services.JobKindDebugReporting, false))
	require.NoError(t, f.scheduler.RequestRun(ctx, services.JobKindDebugReporting, false))

	assert.True(t, f.scheduler.consumeRunRequest(ctx, services.JobKindDebugReporting))
	assert.False(t, f.scheduler.consumeRunRequest(ctx, services.JobKindDebugReporting))
	assert.False(t, f.scheduler.consumeRunRequest(ctx, services.JobKindEventReporting))
}

func TestReportingScheduler_ForcedRequestWakesLoop(t *testing.T) {
	f := newSchedulerFixture(idleReportingConfig())
	now := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	f.scheduler.now = func() time.Time { return now }

	stop := f.scheduler.Start(context.Background())
	defer stop()

	require.NoError(t, f.scheduler.RequestRun(context.Background(), services.JobKindDebugReporting, true))

	assert.Eventually(t, func() bool {
		return f.debugEvent.runs.Load() == 1 && f.verbose.runs.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Zero(t, f.event.runs.Load())

	f.debugEvent.mu.Lock()
	defer f.debugEvent.mu.Unlock()
	assert.Equal(t, now, f.debugEvent.end)
	assert.Equal(t, now.Add(-24*time.Hour), f.debugEvent.start)
}

func TestReportingScheduler_NonForcedRequestWaitsForPoll(t *testing.T) {
	cfg := idleReportingConfig()
	cfg.RunRequestPollInterval = 20 * time.Millisecond
	f := newSchedulerFixture(cfg)

	require.NoError(t, f.scheduler.RequestRun(context.Background(), services.JobKindEventReporting, false))
	stop := f.scheduler.Start(context.Background())
	defer stop()

	assert.Eventually(t, func() bool { return f.event.runs.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), f.event.runs.Load())
}

func TestReportingScheduler_TickerRunsWithoutRequests(t *testing.T) {
	cfg := idleReportingConfig()
	cfg.AggregateReportingInterval = 20 * time.Millisecond
	f := newSchedulerFixture(cfg)

	stop := f.scheduler.Start(context.Background())

	assert.Eventually(t, func() bool { return f.aggregate.runs.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)
	stop()
	runs := f.aggregate.runs.Load()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, runs, f.aggregate.runs.Load())
}
