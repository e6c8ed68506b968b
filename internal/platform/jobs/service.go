package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"workhours/internal/platform/alert"
	"workhours/internal/platform/clock"
)

const (
	JobWeeklyReport   = "weekly_report"
	JobRepairProjects = "repair_projects"
	JobRetention      = "retention"

	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

type RunFunc func(context.Context) (any, error)

type Service struct {
	Runs   RunStore
	Alerts alert.Notifier
	Clock  clock.Clock
	queue  chan job
}

type job struct {
	Type string
	Run  RunFunc
}

func New(runs RunStore, alerts alert.Notifier, clk clock.Clock) *Service {
	if alerts == nil {
		alerts = alert.LogOnly{}
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &Service{
		Runs:   runs,
		Alerts: alerts,
		Clock:  clk,
		queue:  make(chan job, 32),
	}
}

func (s *Service) Start(ctx context.Context) {
	go s.worker(ctx)
}

func (s *Service) Enqueue(jobType string, run RunFunc) {
	select {
	case s.queue <- job{Type: jobType, Run: run}:
	default:
		slog.Warn("job queue full", "jobType", jobType)
	}
}

// RunNow executes run synchronously with the same bookkeeping and alerting as
// queued jobs.
func (s *Service) RunNow(ctx context.Context, jobType string, run RunFunc) (any, error) {
	return s.runJob(ctx, job{Type: jobType, Run: run})
}

// Schedule enqueues run every time schedule comes due until ctx ends.
func (s *Service) Schedule(ctx context.Context, jobType string, schedule Schedule, run RunFunc) {
	go func() {
		for {
			now := s.Clock.Now()
			next := schedule.Next(now)
			slog.Info("job scheduled", "jobType", jobType, "next", next.Format(time.RFC3339))
			timer := time.NewTimer(next.Sub(now))
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
				s.Enqueue(jobType, run)
			}
		}
	}()
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			if _, err := s.runJob(ctx, j); err != nil {
				slog.Warn("job run failed", "jobType", j.Type, "err", err)
			}
		}
	}
}

func (s *Service) runJob(ctx context.Context, j job) (any, error) {
	runID := ""
	if s.Runs != nil {
		id, err := s.Runs.Start(ctx, j.Type)
		if err != nil {
			slog.Warn("job run insert failed", "jobType", j.Type, "err", err)
		}
		runID = id
	}

	details, err := j.Run(ctx)
	status := StatusCompleted
	if err != nil {
		status = StatusFailed
		if alertErr := s.Alerts.Error(ctx, fmt.Sprintf("job %s failed: %v", j.Type, err)); alertErr != nil {
			slog.Warn("job failure alert failed", "jobType", j.Type, "err", alertErr)
		}
	}

	detailsJSON, marshalErr := json.Marshal(details)
	if marshalErr != nil {
		slog.Warn("job details marshal failed", "err", marshalErr)
		detailsJSON = []byte("{}")
	}
	if runID != "" {
		if updErr := s.Runs.Finish(ctx, runID, status, detailsJSON); updErr != nil {
			slog.Warn("job run update failed", "err", updErr)
		}
	}
	return details, err
}
