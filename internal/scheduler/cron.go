package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/mlefebvre/suggestarr/internal/models"
)

// ErrJobNotFound is returned when a trigger names an unknown job
var ErrJobNotFound = errors.New("job not found")

// JobFunc is a schedulable pipeline entry point
type JobFunc func(ctx context.Context, schedule *models.Schedule) error

// Scheduler runs persisted schedules through a cron runner. Each job is
// keyed by its JobID; reloading replaces live triggers instead of
// stacking duplicates, and a job still running when its next fire
// arrives is skipped.
type Scheduler struct {
	cron   *cron.Cron
	db     *models.Database
	logger *logrus.Logger

	mu      sync.Mutex
	entries map[string]cron.EntryID
	running map[string]bool
	funcs   map[string]JobFunc
}

// NewScheduler creates a new scheduler
func NewScheduler(db *models.Database, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		db:      db,
		logger:  logger,
		entries: make(map[string]cron.EntryID),
		running: make(map[string]bool),
		funcs:   make(map[string]JobFunc),
	}
}

// RegisterFunc binds a function name used in schedule rows to its
// implementation
func (s *Scheduler) RegisterFunc(name string, fn JobFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.funcs[name] = fn
}

// Start starts the cron runner
func (s *Scheduler) Start() {
	s.logger.Info("Starting scheduler")
	s.cron.Start()
}

// Stop stops the cron runner and waits for running jobs
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler")
	<-s.cron.Stop().Done()
}

// LoadSchedules replaces all live triggers with the enabled schedule
// rows from the database
func (s *Scheduler) LoadSchedules() error {
	schedules, err := s.db.GetEnabledSchedules()
	if err != nil {
		return fmt.Errorf("failed to load schedules: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for jobID, entryID := range s.entries {
		s.cron.Remove(entryID)
		delete(s.entries, jobID)
	}

	for _, schedule := range schedules {
		if err := s.register(schedule); err != nil {
			s.logger.WithFields(logrus.Fields{
				"job_id": schedule.JobID,
				"spec":   schedule.CronSpec(),
			}).WithError(err).Error("Failed to register schedule")
			continue
		}
	}

	s.logger.WithField("count", len(s.entries)).Info("Schedules loaded")
	return nil
}

// JobIDs returns the live job ids, for inspection
func (s *Scheduler) JobIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	return ids
}

// register must be called with the mutex held
func (s *Scheduler) register(schedule *models.Schedule) error {
	if old, ok := s.entries[schedule.JobID]; ok {
		s.cron.Remove(old)
		delete(s.entries, schedule.JobID)
	}

	jobID := schedule.JobID
	scheduleID := schedule.ID
	entryID, err := s.cron.AddFunc(schedule.CronSpec(), func() {
		s.runJob(jobID, scheduleID)
	})
	if err != nil {
		return err
	}
	s.entries[schedule.JobID] = entryID
	return nil
}

// TriggerJob fires a live job immediately, outside its cron times. Jobs
// not in the live registry, disabled ones included, are not found.
func (s *Scheduler) TriggerJob(jobID string) error {
	s.mu.Lock()
	_, live := s.entries[jobID]
	s.mu.Unlock()
	if !live {
		return ErrJobNotFound
	}

	schedule, err := s.db.GetScheduleByJobID(jobID)
	if err != nil {
		return ErrJobNotFound
	}
	go s.runJob(schedule.JobID, schedule.ID)
	return nil
}

func (s *Scheduler) runJob(jobID string, scheduleID uint64) {
	s.mu.Lock()
	if s.running[jobID] {
		s.mu.Unlock()
		s.logger.WithField("job_id", jobID).Warn("Previous run still in progress, skipping")
		return
	}
	s.running[jobID] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.running, jobID)
		s.mu.Unlock()
	}()

	schedule, err := s.db.GetScheduleByID(scheduleID)
	if err != nil {
		s.logger.WithField("job_id", jobID).WithError(err).Error("Schedule row vanished")
		return
	}
	if !schedule.Enabled {
		s.logger.WithField("job_id", jobID).Debug("Schedule disabled, skipping")
		return
	}
	if !yearMatches(schedule.Year, time.Now()) {
		// Cron specs have no year field, so it is enforced at fire time
		s.logger.WithFields(logrus.Fields{
			"job_id": jobID,
			"year":   schedule.Year,
		}).Debug("Year does not match, skipping")
		return
	}

	s.mu.Lock()
	fn, ok := s.funcs[schedule.FuncName]
	s.mu.Unlock()
	if !ok {
		s.logger.WithFields(logrus.Fields{
			"job_id": jobID,
			"func":   schedule.FuncName,
		}).Error("Schedule references unknown function")
		return
	}

	s.logger.WithField("job_id", jobID).Info("Running scheduled job")
	if err := fn(context.Background(), schedule); err != nil {
		s.logger.WithField("job_id", jobID).WithError(err).Error("Scheduled job failed")
		return
	}
	s.logger.WithField("job_id", jobID).Info("Scheduled job completed")
}

func yearMatches(year string, now time.Time) bool {
	if year == "" || year == "*" {
		return true
	}
	y, err := strconv.Atoi(year)
	if err != nil {
		return false
	}
	return y == now.Year()
}
