package schedule

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	rcron "github.com/robfig/cron/v3"

	"github.com/lumenworks/ideaengine/internal/config"
)

const maxExecutionLogs = 50

// Service owns the single recurring generation schedule. The schedule
// record and its execution log persist as one JSON file; every mutation
// rewrites the whole file.
type Service struct {
	storePath string
	cfg       config.ScheduleConfig

	// OnRun performs one scheduled generation. A non-nil error marks
	// the attempt failed and triggers a retry up to MaxAttempts.
	OnRun func(ctx context.Context) error

	mu         sync.Mutex
	schedule   Schedule
	executions []ExecutionLog
	cron       *rcron.Cron
	entryID    rcron.EntryID
	loc        *time.Location
	cancel     context.CancelFunc
	runCtx     context.Context

	now        func() time.Time
	retryDelay time.Duration
}

func NewService(cfg config.ScheduleConfig, storePath string) *Service {
	return &Service{
		storePath:  storePath,
		cfg:        cfg,
		now:        time.Now,
		retryDelay: 30 * time.Second,
	}
}

// Start loads the persisted schedule (or seeds it from the config),
// registers it with the cron runner, and begins ticking.
func (s *Service) Start(ctx context.Context) error {
	loc, err := time.LoadLocation(s.cfg.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone %q: %w", s.cfg.Timezone, err)
	}

	runCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.loc = loc
	s.cancel = cancel
	s.runCtx = runCtx

	if err := s.load(); err != nil {
		log.Printf("[schedule] warning: failed to load schedule store: %v", err)
		s.schedule = s.seed()
		s.executions = nil
	}

	s.cron = rcron.New(rcron.WithLocation(loc))
	if s.schedule.IsActive {
		if err := s.register(); err != nil {
			s.mu.Unlock()
			cancel()
			return err
		}
	}
	s.mu.Unlock()

	s.cron.Start()
	log.Printf("[schedule] started: %s (%s, %s)", s.schedule.ID, s.schedule.CronExpression, s.cfg.Timezone)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

func (s *Service) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	cron := s.cron
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if cron != nil {
		stopCtx := cron.Stop()
		select {
		case <-stopCtx.Done():
		case <-time.After(5 * time.Second):
			log.Printf("[schedule] stop timeout waiting for running job")
		}
	}
	log.Printf("[schedule] stopped")
}

// register adds the schedule to the cron runner and refreshes the
// stored next-run time. Caller holds s.mu.
func (s *Service) register() error {
	id, err := s.cron.AddFunc(s.schedule.CronExpression, s.runScheduled)
	if err != nil {
		return fmt.Errorf("register schedule %q: %w", s.schedule.CronExpression, err)
	}
	s.entryID = id
	s.refreshNextRun()
	_ = s.save()
	return nil
}

// refreshNextRun recomputes next_run_time from the cron expression.
// Caller holds s.mu.
func (s *Service) refreshNextRun() {
	if !s.schedule.IsActive {
		s.schedule.NextRunTime = ""
		return
	}
	spec, err := rcron.ParseStandard(s.schedule.CronExpression)
	if err != nil {
		s.schedule.NextRunTime = ""
		return
	}
	s.schedule.NextRunTime = spec.Next(s.now().In(s.loc)).Format(time.RFC3339)
}

func (s *Service) runScheduled() {
	s.mu.Lock()
	ctx := s.runCtx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	s.execute(ctx)
}

// execute runs one generation with retries, appending one execution
// log entry per attempt.
func (s *Service) execute(ctx context.Context) {
	s.mu.Lock()
	maxAttempts := s.schedule.MaxAttempts
	s.mu.Unlock()
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if s.OnRun == nil {
			log.Printf("[schedule] no OnRun handler set")
			return
		}
		lastErr = s.OnRun(ctx)

		entry := ExecutionLog{
			ID:          newExecutionID(),
			ExecutedAt:  s.now().In(s.loc).Format(time.RFC3339),
			Success:     lastErr == nil,
			Attempt:     attempt,
			MaxAttempts: maxAttempts,
		}
		if lastErr != nil {
			entry.ErrorMessage = lastErr.Error()
			log.Printf("[schedule] run attempt %d/%d failed: %v", attempt, maxAttempts, lastErr)
		} else {
			log.Printf("[schedule] run attempt %d/%d succeeded", attempt, maxAttempts)
		}

		s.mu.Lock()
		s.appendExecution(entry)
		s.mu.Unlock()

		if lastErr == nil {
			break
		}
		if attempt < maxAttempts {
			select {
			case <-time.After(s.retryDelay):
			case <-ctx.Done():
				attempt = maxAttempts
			}
		}
	}

	success := lastErr == nil
	s.mu.Lock()
	s.schedule.LastRunAt = s.now().In(s.loc).Format(time.RFC3339)
	s.schedule.LastRunSuccess = &success
	s.refreshNextRun()
	_ = s.save()
	s.mu.Unlock()
}

// appendExecution prepends the entry, capping the log. Caller holds s.mu.
func (s *Service) appendExecution(entry ExecutionLog) {
	s.executions = append([]ExecutionLog{entry}, s.executions...)
	if len(s.executions) > maxExecutionLogs {
		s.executions = s.executions[:maxExecutionLogs]
	}
	_ = s.save()
}

// Get returns a snapshot of the schedule record.
func (s *Service) Get() Schedule {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.schedule
}

// ListExecutions returns the newest-first execution log, at most limit
// entries (all of them when limit <= 0).
func (s *Service) ListExecutions(limit int) []ExecutionLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.executions)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]ExecutionLog, n)
	copy(out, s.executions[:n])
	return out
}

// Pause deactivates the schedule and removes it from the cron runner.
func (s *Service) Pause() Schedule {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.schedule.IsActive {
		s.schedule.IsActive = false
		if s.cron != nil && s.entryID != 0 {
			s.cron.Remove(s.entryID)
			s.entryID = 0
		}
		s.refreshNextRun()
		_ = s.save()
		log.Printf("[schedule] paused: %s", s.schedule.ID)
	}
	return s.schedule
}

// Resume reactivates the schedule.
func (s *Service) Resume() (Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.schedule.IsActive {
		s.schedule.IsActive = true
		if s.cron != nil {
			if err := s.register(); err != nil {
				s.schedule.IsActive = false
				return s.schedule, err
			}
		} else {
			s.refreshNextRun()
			_ = s.save()
		}
		log.Printf("[schedule] resumed: %s", s.schedule.ID)
	}
	return s.schedule, nil
}

// TriggerNow runs the schedule immediately, regardless of whether it
// is active. The run executes synchronously with the usual retries.
func (s *Service) TriggerNow(ctx context.Context) Schedule {
	log.Printf("[schedule] manual trigger: %s", s.Get().ID)
	s.execute(ctx)
	return s.Get()
}

func (s *Service) seed() Schedule {
	return Schedule{
		ID:             s.cfg.ID,
		Name:           "Daily idea generation",
		CronExpression: s.cfg.CronExpr,
		Timezone:       s.cfg.Timezone,
		IsActive:       true,
		MaxAttempts:    s.cfg.MaxAttempts,
	}
}

func (s *Service) load() error {
	data, err := os.ReadFile(s.storePath)
	if err != nil {
		if os.IsNotExist(err) {
			s.schedule = s.seed()
			s.executions = nil
			return nil
		}
		return err
	}
	var p persisted
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	s.schedule = p.Schedule
	s.executions = p.Executions

	// Config-level cron/timezone overrides win over the stored copy.
	if s.cfg.CronExpr != "" && s.schedule.CronExpression != s.cfg.CronExpr {
		s.schedule.CronExpression = s.cfg.CronExpr
	}
	if s.schedule.MaxAttempts <= 0 {
		s.schedule.MaxAttempts = s.cfg.MaxAttempts
	}
	s.schedule.Timezone = s.cfg.Timezone
	return nil
}

func (s *Service) save() error {
	dir := filepath.Dir(s.storePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(persisted{Schedule: s.schedule, Executions: s.executions}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.storePath, data, 0644)
}
