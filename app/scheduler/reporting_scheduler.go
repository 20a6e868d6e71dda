package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/amirphl/measurement-reporting/app/services"
	"github.com/amirphl/measurement-reporting/config"
	"github.com/amirphl/measurement-reporting/utils"
)

var (
	ErrUnknownJobKind = errors.New("unknown reporting job kind")
	ErrRunInProgress  = errors.New("reporting job run already in progress")
)

// Registry maps each job kind to the lanes it runs
type Registry map[services.JobKind][]ReportingJob

// NewRegistry wires the delivery lanes to their job kinds
func NewRegistry(event, aggregate, debugEvent, debugAggregate, verboseDebug ReportingJob) Registry {
	return Registry{
		services.JobKindEventReporting:     {event},
		services.JobKindAggregateReporting: {aggregate},
		services.JobKindDebugReporting:     {debugEvent, debugAggregate, verboseDebug},
	}
}

// Job resolves a lane by name
func (r Registry) Job(lane string) (ReportingJob, bool) {
	for _, jobs := range r {
		for _, job := range jobs {
			if job.Lane() == lane {
				return job, true
			}
		}
	}
	return nil, false
}

// releaseLockScript deletes the lock only while it is still held by the caller
var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// ReportingScheduler runs every job kind on its own ticker and on request
type ReportingScheduler struct {
	registry     Registry
	intervals    map[services.JobKind]time.Duration
	pollInterval time.Duration
	retryWindow  time.Duration
	lockTTL      time.Duration
	requestTTL   time.Duration

	rc     *redis.Client
	prefix string
	owner  string
	logger *log.Logger
	now    func() time.Time

	mu      sync.Mutex
	intents map[services.JobKind]bool
	running map[services.JobKind]bool
	wake    map[services.JobKind]chan struct{}
}

var _ services.JobScheduler = (*ReportingScheduler)(nil)

// NewReportingScheduler creates a scheduler. A nil redis client keeps run requests and locks in process.
func NewReportingScheduler(registry Registry, cfg config.ReportingConfig, rc *redis.Client, redisPrefix string, logger *log.Logger) *ReportingScheduler {
	if logger == nil {
		logger = log.Default()
	}
	if cfg.RunRequestPollInterval <= 0 {
		cfg.RunRequestPollInterval = time.Minute
	}
	if cfg.MaxUploadRetryWindow <= 0 {
		cfg.MaxUploadRetryWindow = utils.MaxUploadRetryWindow
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Minute
	}
	if cfg.RunRequestTTL <= 0 {
		cfg.RunRequestTTL = 24 * time.Hour
	}

	s := &ReportingScheduler{
		registry: registry,
		intervals: map[services.JobKind]time.Duration{
			services.JobKindEventReporting:     cfg.EventReportingInterval,
			services.JobKindAggregateReporting: cfg.AggregateReportingInterval,
			services.JobKindDebugReporting:     cfg.DebugReportingInterval,
		},
		pollInterval: cfg.RunRequestPollInterval,
		retryWindow:  cfg.MaxUploadRetryWindow,
		lockTTL:      cfg.LockTTL,
		requestTTL:   cfg.RunRequestTTL,
		rc:           rc,
		prefix:       redisPrefix,
		owner:        uuid.NewString(),
		logger:       logger,
		now:          utils.UTCNow,
		intents:      make(map[services.JobKind]bool),
		running:      make(map[services.JobKind]bool),
		wake:         make(map[services.JobKind]chan struct{}),
	}
	for kind := range registry {
		s.wake[kind] = make(chan struct{}, 1)
	}
	return s
}

// Registry returns the lanes the scheduler runs
func (s *ReportingScheduler) Registry() Registry { return s.registry }

// Start launches one loop per job kind and returns a stop function that waits for them
func (s *ReportingScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	var wg sync.WaitGroup
	for kind := range s.registry {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.loop(ctx, kind)
		}()
	}

	return func() {
		cancel()
		wg.Wait()
	}
}

func (s *ReportingScheduler) loop(ctx context.Context, kind services.JobKind) {
	interval := s.intervals[kind]
	if interval <= 0 {
		interval = utils.DefaultReportingJobInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	poll := time.NewTicker(s.pollInterval)
	defer poll.Stop()

	s.logger.Printf("scheduler: %s loop started interval=%s", kind, interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.consumeRunRequest(ctx, kind)
			s.runScheduled(ctx, kind)
		case <-poll.C:
			if s.consumeRunRequest(ctx, kind) {
				s.runScheduled(ctx, kind)
			}
		case <-s.wake[kind]:
			if s.consumeRunRequest(ctx, kind) {
				s.runScheduled(ctx, kind)
			}
		}
	}
}

func (s *ReportingScheduler) runScheduled(ctx context.Context, kind services.JobKind) {
	end := s.now()
	start := end.Add(-s.retryWindow)
	if _, err := s.Run(ctx, kind, start, end); err != nil {
		if errors.Is(err, ErrRunInProgress) {
			s.logger.Printf("scheduler: %s run skipped: %v", kind, err)
			return
		}
		s.logger.Printf("scheduler: %s run failed: %v", kind, err)
	}
}

// RequestRun records that kind should run soon. A forced request also wakes the local loop.
// Requests are idempotent; several requests before a run collapse into one.
func (s *ReportingScheduler) RequestRun(ctx context.Context, kind services.JobKind, force bool) error {
	if _, ok := s.registry[kind]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJobKind, kind)
	}

	stored := false
	if s.rc != nil {
		key := redisKey(s.prefix, "run", string(kind))
		value := s.now().Format(time.RFC3339Nano)
		var err error
		if force {
			err = s.rc.Set(ctx, key, value, s.requestTTL).Err()
		} else {
			err = s.rc.SetNX(ctx, key, value, s.requestTTL).Err()
		}
		if err != nil {
			s.logger.Printf("scheduler: store run request for %s failed, keeping it in process: %v", kind, err)
		} else {
			stored = true
		}
	}
	if !stored {
		s.mu.Lock()
		s.intents[kind] = true
		s.mu.Unlock()
	}

	if force {
		select {
		case s.wake[kind] <- struct{}{}:
		default:
		}
	}
	return nil
}

// consumeRunRequest clears a pending run request of kind and reports whether there was one
func (s *ReportingScheduler) consumeRunRequest(ctx context.Context, kind services.JobKind) bool {
	s.mu.Lock()
	requested := s.intents[kind]
	delete(s.intents, kind)
	s.mu.Unlock()

	if s.rc != nil {
		err := s.rc.GetDel(ctx, redisKey(s.prefix, "run", string(kind))).Err()
		switch {
		case err == nil:
			requested = true
		case !errors.Is(err, redis.Nil):
			s.logger.Printf("scheduler: read run request for %s failed: %v", kind, err)
		}
	}
	return requested
}

// Run executes every lane of kind over [start, end]. Lanes run concurrently; each lane
// delivers its reports sequentially.
func (s *ReportingScheduler) Run(ctx context.Context, kind services.JobKind, start, end time.Time) ([]RunSummary, error) {
	jobs, ok := s.registry[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJobKind, kind)
	}

	release, err := s.acquire(ctx, kind)
	if err != nil {
		reportingJobRunsTotal.WithLabelValues(string(kind), "skipped").Inc()
		return nil, err
	}
	defer release()

	// Lanes of a kind are independent: a failed lane reports through its summary and
	// never cancels its siblings.
	summaries := make([]RunSummary, len(jobs))
	var g errgroup.Group
	for i, job := range jobs {
		g.Go(func() error {
			summaries[i] = job.Run(ctx, start, end)
			return nil
		})
	}
	_ = g.Wait()

	reportingJobRunsTotal.WithLabelValues(string(kind), "ran").Inc()
	return summaries, nil
}

// acquire takes the per-kind run lock in process and, when redis is configured, across processes
func (s *ReportingScheduler) acquire(ctx context.Context, kind services.JobKind) (func(), error) {
	s.mu.Lock()
	if s.running[kind] {
		s.mu.Unlock()
		return nil, ErrRunInProgress
	}
	s.running[kind] = true
	s.mu.Unlock()

	releaseLocal := func() {
		s.mu.Lock()
		delete(s.running, kind)
		s.mu.Unlock()
	}

	if s.rc == nil {
		return releaseLocal, nil
	}

	key := redisKey(s.prefix, "lock", string(kind))
	acquired, err := s.rc.SetNX(ctx, key, s.owner, s.lockTTL).Result()
	if err != nil {
		s.logger.Printf("scheduler: take %s lock failed, running with the local lock only: %v", kind, err)
		return releaseLocal, nil
	}
	if !acquired {
		releaseLocal()
		return nil, ErrRunInProgress
	}

	return func() {
		if err := releaseLockScript.Run(context.WithoutCancel(ctx), s.rc, []string{key}, s.owner).Err(); err != nil && !errors.Is(err, redis.Nil) {
			s.logger.Printf("scheduler: release %s lock failed: %v", kind, err)
		}
		releaseLocal()
	}, nil
}
