package scheduler

import (
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"leadmatch/server/internal/processor"
)

// JobType represents different types of matchmaking jobs
type JobType int

const (
	JobTypeSweep JobType = iota
	JobTypeBackfill
)

// String returns the string representation of a JobType
func (j JobType) String() string {
	switch j {
	case JobTypeSweep:
		return "sweep"
	case JobTypeBackfill:
		return "backfill"
	default:
		return "unknown"
	}
}

// Scheduler periodically re-runs matchmaking so that leads registered
// after a property was ingested still get matched to it.
type Scheduler struct {
	matchmaker   *processor.Matchmaker
	logger       *logrus.Logger
	stopChan     chan struct{}
	wg           sync.WaitGroup
	jobMutex     sync.Mutex // Ensures sequential job execution
	isStartupRun bool       // Tracks whether we're in startup run
}

// NewScheduler creates a new scheduler
func NewScheduler(matchmaker *processor.Matchmaker, logger *logrus.Logger) *Scheduler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
		logger.SetLevel(logrus.InfoLevel)
	}

	return &Scheduler{
		matchmaker:   matchmaker,
		logger:       logger,
		stopChan:     make(chan struct{}),
		isStartupRun: true, // Initialize as true for startup
	}
}

// Start begins the scheduled tasks
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.runScheduler()
}

// runScheduler handles all scheduled tasks
func (s *Scheduler) runScheduler() {
	defer s.wg.Done()

	// Run the startup sweep in a separate goroutine
	go func() {
		s.jobMutex.Lock()
		defer s.jobMutex.Unlock()
		s.logger.Info("Running startup rematch sweep")
		s.runJob(JobTypeSweep)
		s.isStartupRun = false // Mark startup as complete
		s.logger.Info("Startup rematch sweep completed")
	}()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case t := <-ticker.C:
			s.executeScheduledJobs(t)
		}
	}
}

// executeScheduledJobs runs all jobs that are scheduled for the given time
func (s *Scheduler) executeScheduledJobs(t time.Time) {
	// Skip if we're still running the startup sweep
	if s.isStartupRun {
		s.logger.Debug("Skipping scheduled jobs while startup is in progress")
		return
	}

	s.jobMutex.Lock()
	defer s.jobMutex.Unlock()

	s.logger.WithFields(logrus.Fields{
		"hour":   t.Hour(),
		"minute": t.Minute(),
	}).Debug("Checking scheduled jobs")

	// Hourly sweep over recently ingested properties
	if t.Minute() == 0 {
		s.runJob(JobTypeSweep)
	}

	// Nightly backfill at 03:00 catches anything the hourly sweeps
	// missed during downtime
	if t.Hour() == 3 && t.Minute() == 0 {
		s.runJob(JobTypeBackfill)
	}
}

// runJob executes a single matchmaking job
func (s *Scheduler) runJob(job JobType) {
	log := s.logger.WithField("job_type", job.String())
	log.Info("Starting matchmaking job")

	var err error
	switch job {
	case JobTypeBackfill:
		err = s.matchmaker.RematchSince(time.Now().AddDate(0, 0, -7))
	default:
		err = s.matchmaker.RematchRecent()
	}
	if err != nil {
		log.WithError(err).Error("Matchmaking job failed")
		return
	}

	log.Info("Matchmaking job completed successfully")
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	close(s.stopChan)
	s.wg.Wait()
}
