package scheduler

import (
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Job represents a scheduled job
type Job interface {
	Run() error
	Name() string
}

// Scheduler manages background jobs
type Scheduler struct {
	cron *cron.Cron
	log  *logrus.Entry
}

// New creates a new scheduler. A run still in progress when its next
// tick fires is skipped rather than overlapped.
func New(log *logrus.Logger) *Scheduler {
	cronLog := cron.PrintfLogger(log)
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		log: log.WithField("component", "scheduler"),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("Scheduler started")
}

// Stop stops the scheduler and waits for running jobs
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("Scheduler stopped")
}

// AddJob registers a job with a cron schedule such as "@every 1m" or "*/5 * * * *"
func (s *Scheduler) AddJob(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() {
		entry := s.log.WithField("job", job.Name())
		entry.Debug("Running job")
		if err := job.Run(); err != nil {
			entry.Errorf("Job failed: %v", err)
			return
		}
		entry.Debug("Job completed")
	})
	if err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{"schedule": schedule, "job": job.Name()}).Info("Job registered")
	return nil
}

// RunNow executes a job immediately, outside its schedule
func (s *Scheduler) RunNow(job Job) error {
	s.log.WithField("job", job.Name()).Info("Running job immediately")
	return job.Run()
}
