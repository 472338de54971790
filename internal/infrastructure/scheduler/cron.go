package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"LandScout/internal/ports"
)

// CronScheduler runs named jobs on standard five-field cron expressions.
type CronScheduler struct {
	cron     *cron.Cron
	parser   cron.Parser
	location *time.Location
	logger   *slog.Logger

	mu      sync.Mutex
	jobs    map[string]cron.EntryID
	started bool
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler builds a scheduler evaluating expressions in loc (UTC when nil).
// A job still running when its next tick fires is skipped.
func NewCronScheduler(loc *time.Location, logger *slog.Logger) *CronScheduler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	cronLogger := slogAdapter{logger: logger}
	c := cron.New(
		cron.WithParser(parser),
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	return &CronScheduler{
		cron:     c,
		parser:   parser,
		location: loc,
		logger:   logger,
		jobs:     make(map[string]cron.EntryID),
	}
}

// AddJob registers or replaces the job with the given name.
func (c *CronScheduler) AddJob(name, spec string, job func(time.Time)) error {
	if name == "" {
		return fmt.Errorf("job name is empty")
	}
	if job == nil {
		return fmt.Errorf("job %s: nil function", name)
	}
	if _, err := c.parser.Parse(spec); err != nil {
		return fmt.Errorf("job %s: parse schedule %q: %w", name, spec, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.jobs[name]; ok {
		c.cron.Remove(existing)
	}

	loc := c.location
	id, err := c.cron.AddFunc(spec, func() {
		job(time.Now().In(loc))
	})
	if err != nil {
		return fmt.Errorf("job %s: %w", name, err)
	}
	c.jobs[name] = id
	c.logger.Debug("job scheduled", "job", name, "schedule", spec, "location", loc.String())
	return nil
}

// Jobs lists scheduled jobs with their next activation, ordered by name.
func (c *CronScheduler) Jobs() []JobInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	infos := make([]JobInfo, 0, len(c.jobs))
	for name, id := range c.jobs {
		entry := c.cron.Entry(id)
		infos = append(infos, JobInfo{Name: name, Next: entry.Next})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// JobInfo describes a scheduled job.
type JobInfo struct {
	Name string
	Next time.Time
}

// Start begins dispatching. Calling it twice is a no-op.
func (c *CronScheduler) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return nil
	}
	c.cron.Start()
	c.started = true
	c.logger.Info("scheduler started", "jobs", len(c.jobs))
	return nil
}

// Stop prevents new activations and waits for running jobs or ctx expiry.
func (c *CronScheduler) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = false
	c.mu.Unlock()

	done := c.cron.Stop()
	select {
	case <-done.Done():
		c.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for running jobs: %w", ctx.Err())
	}
}

type slogAdapter struct {
	logger *slog.Logger
}

func (a slogAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Debug(msg, keysAndValues...)
}

func (a slogAdapter) Error(err error, msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, append([]interface{}{"err", err}, keysAndValues...)...)
}
