package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// SchedulerService runs the periodic integrity audit on cron.
type SchedulerService struct {
	cron    *cron.Cron
	timeout time.Duration
}

func NewSchedulerService(loc *time.Location, jobTimeout time.Duration) *SchedulerService {
	if jobTimeout <= 0 {
		jobTimeout = 30 * time.Second
	}
	return &SchedulerService{
		cron:    cron.New(cron.WithLocation(loc), cron.WithSeconds()),
		timeout: jobTimeout,
	}
}

// ScheduleAudit registers job every interval (when positive) and daily at
// dailyAt (HH:MM, when set). It returns how many entries were added.
func (s *SchedulerService) ScheduleAudit(interval time.Duration, dailyAt string, job func(ctx context.Context) error) (int, error) {
	run := s.wrap(job)
	added := 0
	if interval > 0 {
		spec, err := buildIntervalSpec(interval)
		if err != nil {
			return added, err
		}
		if _, err := s.cron.AddFunc(spec, run); err != nil {
			return added, fmt.Errorf("schedule audit every %s: %w", interval, err)
		}
		added++
	}
	if strings.TrimSpace(dailyAt) != "" {
		spec, err := buildDailySpec(strings.TrimSpace(dailyAt))
		if err != nil {
			return added, err
		}
		if _, err := s.cron.AddFunc(spec, run); err != nil {
			return added, fmt.Errorf("schedule audit at %s: %w", dailyAt, err)
		}
		added++
	}
	return added, nil
}

// wrap gives each run its own deadline and logs failures.
func (s *SchedulerService) wrap(job func(ctx context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := job(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("[warn] scheduled audit: %v", err)
		}
	}
}

func (s *SchedulerService) Start() {
	s.cron.Start()
}

func (s *SchedulerService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// Entries reports how many jobs are registered.
func (s *SchedulerService) Entries() int {
	return len(s.cron.Entries())
}

func buildIntervalSpec(interval time.Duration) (string, error) {
	if interval <= 0 {
		return "", fmt.Errorf("interval must be positive")
	}
	seconds := int(interval.Seconds())
	if seconds <= 0 {
		seconds = 1
	}
	return fmt.Sprintf("@every %ds", seconds), nil
}

func buildDailySpec(timeStr string) (string, error) {
	parts := strings.Split(timeStr, ":")
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid time %q, expected HH:MM", timeStr)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("invalid hour in %q", timeStr)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("invalid minute in %q", timeStr)
	}
	// cron format: second minute hour dom month dow
	return fmt.Sprintf("0 %d %d * * *", minute, hour), nil
}
