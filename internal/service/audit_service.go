package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"tasky/internal/model"
	"tasky/internal/store"
)

// AuditReport lists the partial states left behind by interrupted
// multi-step operations.
type AuditReport struct {
	CheckedAt time.Time
	Tasks     int
	Users     int
	// Unassigned are tasks without any assignment: an orphan from a failed
	// creation or a task stripped by a partial replacement.
	Unassigned []model.Task
	// Dangling are assignments whose task or user no longer exists.
	Dangling []model.Assignment
}

// Clean reports whether nothing needs manual attention.
func (r AuditReport) Clean() bool {
	return len(r.Unassigned) == 0 && len(r.Dangling) == 0
}

// AuditService finds inconsistencies. It never repairs them.
type AuditService struct {
	store store.Client
}

func NewAuditService(client store.Client) *AuditService {
	return &AuditService{store: client}
}

func (s *AuditService) Scan(ctx context.Context, now time.Time) (*AuditReport, error) {
	const op = "audit"
	var tasks []model.Task
	if err := s.store.Select(ctx, store.Tasks, &tasks, store.Query{Order: []store.Order{store.Asc("id")}}); err != nil {
		return nil, storeError(op, err)
	}
	var users []model.User
	if err := s.store.Select(ctx, store.Users, &users, store.Query{Columns: []string{"id"}}); err != nil {
		return nil, storeError(op, err)
	}
	var assignments []model.Assignment
	if err := s.store.Select(ctx, store.Assignments, &assignments, store.Query{Order: []store.Order{store.Asc("id")}}); err != nil {
		return nil, storeError(op, err)
	}

	taskIDs := make(map[uint]struct{}, len(tasks))
	for _, t := range tasks {
		taskIDs[t.ID] = struct{}{}
	}
	userIDs := make(map[uint]struct{}, len(users))
	for _, u := range users {
		userIDs[u.ID] = struct{}{}
	}

	report := &AuditReport{CheckedAt: now, Tasks: len(tasks), Users: len(users)}
	assigned := make(map[uint]struct{}, len(assignments))
	for _, a := range assignments {
		_, taskOK := taskIDs[a.TaskID]
		_, userOK := userIDs[a.UserID]
		if !taskOK || !userOK {
			report.Dangling = append(report.Dangling, a)
			continue
		}
		assigned[a.TaskID] = struct{}{}
	}
	for _, t := range tasks {
		if _, ok := assigned[t.ID]; !ok {
			report.Unassigned = append(report.Unassigned, t)
		}
	}
	return report, nil
}

// Summary renders the report as plain text.
func (s *AuditService) Summary(report *AuditReport) string {
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("Integrity report %s\n", report.CheckedAt.Format("2006-01-02 15:04")))
	builder.WriteString(fmt.Sprintf("%d task(s), %d user(s) checked\n", report.Tasks, report.Users))

	if report.Clean() {
		builder.WriteString("No inconsistencies found.")
		return builder.String()
	}

	if len(report.Unassigned) > 0 {
		builder.WriteString(fmt.Sprintf("\nTasks without assignees (%d):\n", len(report.Unassigned)))
		for _, t := range report.Unassigned {
			builder.WriteString(fmt.Sprintf("  #%d %s\n", t.ID, strings.TrimSpace(t.Title)))
		}
	}

	if len(report.Dangling) > 0 {
		dangling := append([]model.Assignment(nil), report.Dangling...)
		sort.SliceStable(dangling, func(i, j int) bool {
			if dangling[i].TaskID != dangling[j].TaskID {
				return dangling[i].TaskID < dangling[j].TaskID
			}
			return dangling[i].ID < dangling[j].ID
		})
		builder.WriteString(fmt.Sprintf("\nAssignments pointing at missing rows (%d):\n", len(dangling)))
		for _, a := range dangling {
			builder.WriteString(fmt.Sprintf("  #%d task=%d user=%d status=%s\n", a.ID, a.TaskID, a.UserID, a.Status))
		}
	}

	builder.WriteString("\n" + manualCheck)
	return builder.String()
}
