// Package scheduler runs the scan pass on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	appLog "partywatch/internal/log"
)

// SpecFor returns cronSpec when set, else a fixed-interval spec.
func SpecFor(cronSpec string, every time.Duration) string {
	if cronSpec != "" {
		return cronSpec
	}
	return fmt.Sprintf("@every %s", every)
}

var parser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Scheduler wraps a cron runner holding a single job. Runs never overlap: a
// tick that arrives while the previous run is still going is skipped, and a
// panicking run is recovered and logged.
type Scheduler struct {
	cron *cron.Cron
	job  func(context.Context)

	// manual tracks RunNow goroutines, which cron does not wait for.
	manual sync.WaitGroup

	mu    sync.Mutex
	ctx   context.Context
	entry cron.EntryID
	spec  string
}

func New(job func(context.Context)) *Scheduler {
	logger := appLog.CronLogger()
	c := cron.New(
		cron.WithParser(parser),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	return &Scheduler{cron: c, job: job, ctx: context.Background()}
}

// Start schedules the job with spec, starts the runner and triggers one
// run immediately. ctx is passed to every run.
func (s *Scheduler) Start(ctx context.Context, spec string) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	if err := s.Reschedule(spec); err != nil {
		return err
	}
	s.cron.Start()
	appLog.Info("scheduler started", "spec", spec)
	s.RunNow()
	return nil
}

// Reschedule replaces the schedule. An unchanged spec is a no-op.
func (s *Scheduler) Reschedule(spec string) error {
	if _, err := parser.Parse(spec); err != nil {
		return fmt.Errorf("scheduler: invalid spec %q: %w", spec, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entry != 0 && spec == s.spec {
		return nil
	}

	id, err := s.cron.AddFunc(spec, s.run)
	if err != nil {
		return fmt.Errorf("scheduler: add job: %w", err)
	}
	if s.entry != 0 {
		s.cron.Remove(s.entry)
		appLog.Info("scheduler rescheduled", "from", s.spec, "to", spec)
	}
	s.entry = id
	s.spec = spec
	return nil
}

// RunNow triggers a run in the background through the same chain as
// scheduled runs, so it is skipped while another run is in progress.
func (s *Scheduler) RunNow() {
	s.mu.Lock()
	id := s.entry
	s.mu.Unlock()

	entry := s.cron.Entry(id)
	if !entry.Valid() {
		appLog.Warn("scheduler: run requested before a schedule was set")
		return
	}
	s.manual.Add(1)
	go func() {
		defer s.manual.Done()
		entry.WrappedJob.Run()
	}()
}

func (s *Scheduler) Spec() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spec
}

// Stop stops scheduling and waits for a running job to finish, up to
// timeout.
func (s *Scheduler) Stop(timeout time.Duration) error {
	stopped := s.cron.Stop()
	done := make(chan struct{})
	go func() {
		<-stopped.Done()
		s.manual.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return errors.New("scheduler: timed out waiting for running job")
	}
}

func (s *Scheduler) run() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	s.job(ctx)
}
