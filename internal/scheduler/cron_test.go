package scheduler

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mlefebvre/suggestarr/internal/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func testDB(t *testing.T) *models.Database {
	t.Helper()
	db, err := models.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testSchedule(jobID string) *models.Schedule {
	return &models.Schedule{
		JobID:     jobID,
		FuncName:  "run_recommendation_cycle",
		Year:      "*",
		Month:     "*",
		Day:       "*",
		Hour:      "2",
		Minute:    "0",
		DayOfWeek: "*",
		Enabled:   true,
	}
}

func TestLoadSchedulesIsIdempotent(t *testing.T) {
	db := testDB(t)
	if err := db.CreateSchedule(testSchedule("job-a")); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := db.CreateSchedule(testSchedule("job-b")); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	s := NewScheduler(db, testLogger())
	for i := 0; i < 3; i++ {
		if err := s.LoadSchedules(); err != nil {
			t.Fatalf("load %d failed: %v", i, err)
		}
	}

	if ids := s.JobIDs(); len(ids) != 2 {
		t.Errorf("reloading must replace triggers, not stack them: got %v", ids)
	}
}

func TestDuplicateJobIDLeavesOneLiveJob(t *testing.T) {
	db := testDB(t)
	if err := db.CreateSchedule(testSchedule("job-a")); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	dup := testSchedule("job-a")
	dup.Hour = "4"
	if err := db.CreateSchedule(dup); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	s := NewScheduler(db, testLogger())
	if err := s.LoadSchedules(); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if ids := s.JobIDs(); len(ids) != 1 || ids[0] != "job-a" {
		t.Errorf("duplicate job ids must collapse to one live job, got %v", ids)
	}
}

func TestLoadSchedulesSkipsDisabled(t *testing.T) {
	db := testDB(t)
	enabled := testSchedule("job-on")
	disabled := testSchedule("job-off")
	disabled.Enabled = false
	if err := db.CreateSchedule(enabled); err != nil {
		t.Fatal(err)
	}
	if err := db.CreateSchedule(disabled); err != nil {
		t.Fatal(err)
	}

	s := NewScheduler(db, testLogger())
	if err := s.LoadSchedules(); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	ids := s.JobIDs()
	if len(ids) != 1 || ids[0] != "job-on" {
		t.Errorf("expected only the enabled job, got %v", ids)
	}
}

func TestTriggerJobNotFound(t *testing.T) {
	s := NewScheduler(testDB(t), testLogger())
	if err := s.TriggerJob("nope"); err != ErrJobNotFound {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func TestTriggerDisabledJobNotFound(t *testing.T) {
	db := testDB(t)
	disabled := testSchedule("job-off")
	disabled.Enabled = false
	if err := db.CreateSchedule(disabled); err != nil {
		t.Fatal(err)
	}

	s := NewScheduler(db, testLogger())
	if err := s.LoadSchedules(); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	// The row exists but the job is not live, so triggering it must
	// surface not-found rather than silently doing nothing
	if err := s.TriggerJob("job-off"); err != ErrJobNotFound {
		t.Errorf("expected ErrJobNotFound for a disabled schedule, got %v", err)
	}
}

func TestTriggerJobRunsFunc(t *testing.T) {
	db := testDB(t)
	if err := db.CreateSchedule(testSchedule("job-a")); err != nil {
		t.Fatal(err)
	}

	s := NewScheduler(db, testLogger())
	done := make(chan string, 1)
	s.RegisterFunc("run_recommendation_cycle", func(ctx context.Context, schedule *models.Schedule) error {
		done <- schedule.JobID
		return nil
	})
	if err := s.LoadSchedules(); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if err := s.TriggerJob("job-a"); err != nil {
		t.Fatalf("trigger failed: %v", err)
	}
	select {
	case jobID := <-done:
		if jobID != "job-a" {
			t.Errorf("wrong schedule passed: %q", jobID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("job never ran")
	}
}

func TestOverlappingRunIsSkipped(t *testing.T) {
	db := testDB(t)
	if err := db.CreateSchedule(testSchedule("job-a")); err != nil {
		t.Fatal(err)
	}

	s := NewScheduler(db, testLogger())
	var mu sync.Mutex
	runs := 0
	block := make(chan struct{})
	started := make(chan struct{})
	s.RegisterFunc("run_recommendation_cycle", func(ctx context.Context, schedule *models.Schedule) error {
		mu.Lock()
		runs++
		mu.Unlock()
		started <- struct{}{}
		<-block
		return nil
	})
	if err := s.LoadSchedules(); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if err := s.TriggerJob("job-a"); err != nil {
		t.Fatalf("trigger failed: %v", err)
	}
	<-started

	// Second trigger while the first is still running must be dropped
	if err := s.TriggerJob("job-a"); err != nil {
		t.Fatalf("trigger failed: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	close(block)

	mu.Lock()
	defer mu.Unlock()
	if runs != 1 {
		t.Errorf("expected the overlapping run to be skipped, got %d runs", runs)
	}
}

func TestYearGuard(t *testing.T) {
	db := testDB(t)
	schedule := testSchedule("job-past")
	schedule.Year = "1999"
	if err := db.CreateSchedule(schedule); err != nil {
		t.Fatal(err)
	}

	s := NewScheduler(db, testLogger())
	ran := make(chan struct{}, 1)
	s.RegisterFunc("run_recommendation_cycle", func(ctx context.Context, sch *models.Schedule) error {
		ran <- struct{}{}
		return nil
	})
	if err := s.LoadSchedules(); err != nil {
		t.Fatal(err)
	}

	if err := s.TriggerJob("job-past"); err != nil {
		t.Fatalf("trigger failed: %v", err)
	}
	select {
	case <-ran:
		t.Error("job for another year must not run")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestYearMatches(t *testing.T) {
	now := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		year string
		want bool
	}{
		{"*", true},
		{"", true},
		{"2026", true},
		{"2025", false},
		{"soon", false},
	}
	for _, tc := range cases {
		if got := yearMatches(tc.year, now); got != tc.want {
			t.Errorf("yearMatches(%q) = %v, want %v", tc.year, got, tc.want)
		}
	}
}
