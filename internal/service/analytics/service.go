// Package analytics computes the dashboard snapshot for a user from the
// tasks reachable through their workspace memberships.
package analytics

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"tasknexus/internal/model"
	"tasknexus/pkg/logger"
	"tasknexus/pkg/metrics"
)

// WeeklyWindow 周进度统计窗口，下界包含在内
const WeeklyWindow = 7 * 24 * time.Hour

// 日期按 UTC 切分
const dateLayout = "2006-01-02"

type MembershipFinder interface {
	FindMembershipsByUser(ctx context.Context, userID int64) ([]model.WorkspaceMember, error)
}

type ProjectFinder interface {
	FindByWorkspaces(ctx context.Context, workspaceIDs []int64) ([]model.Project, error)
}

type TaskFinder interface {
	FindByProjects(ctx context.Context, projectIDs []int64) ([]model.Task, error)
}

type Service struct {
	members  MembershipFinder
	projects ProjectFinder
	tasks    TaskFinder
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(members MembershipFinder, projects ProjectFinder, tasks TaskFinder, logger *zap.Logger) *Service {
	return &Service{
		members:  members,
		projects: projects,
		tasks:    tasks,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock 替换时钟（测试用）
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Dashboard 计算用户的 dashboard 快照。userID 为 0 视为无数据。
// 三次查询之间不加事务，快照可能不对应同一时刻。
func (s *Service) Dashboard(ctx context.Context, userID int64) (model.DashboardSnapshot, error) {
	start := time.Now()
	log := logger.WithTrace(ctx, s.logger).With(zap.Int64("user_id", userID))

	snap, result, err := s.compute(ctx, userID)
	metrics.RecordDashboardDuration(result, time.Since(start))
	if err != nil {
		log.Error("Failed to compute dashboard", zap.Error(err))
		return model.DashboardSnapshot{}, err
	}

	log.Debug("Dashboard computed",
		zap.Int("total_tasks", snap.TotalTasks),
		zap.Int("total_projects", snap.TotalProjects),
		zap.Int("total_workspaces", snap.TotalWorkspaces),
		zap.Duration("took", time.Since(start)),
	)
	return snap, nil
}

func (s *Service) compute(ctx context.Context, userID int64) (model.DashboardSnapshot, string, error) {
	if userID <= 0 {
		return model.EmptySnapshot(), "empty", nil
	}

	memberships, err := s.members.FindMembershipsByUser(ctx, userID)
	if err != nil {
		return model.DashboardSnapshot{}, "error", err
	}
	workspaceIDs := distinctWorkspaceIDs(memberships)
	if len(workspaceIDs) == 0 {
		return model.EmptySnapshot(), "empty", nil
	}

	projects, err := s.projects.FindByWorkspaces(ctx, workspaceIDs)
	if err != nil {
		return model.DashboardSnapshot{}, "error", err
	}
	if len(projects) == 0 {
		snap := model.EmptySnapshot()
		snap.TotalWorkspaces = len(workspaceIDs)
		return snap, "empty", nil
	}

	projectIDs := make([]int64, 0, len(projects))
	for _, p := range projects {
		projectIDs = append(projectIDs, p.ID)
	}

	tasks, err := s.tasks.FindByProjects(ctx, projectIDs)
	if err != nil {
		return model.DashboardSnapshot{}, "error", err
	}

	snap := Summarize(tasks, s.now())
	snap.TotalProjects = len(projects)
	snap.TotalWorkspaces = len(workspaceIDs)
	return snap, "ok", nil
}

// Summarize 对任务做计数，不涉及项目和工作区数量。
// 分组结果按首次出现的顺序排列，只包含出现过的值。
func Summarize(tasks []model.Task, now time.Time) model.DashboardSnapshot {
	snap := model.EmptySnapshot()
	snap.TotalTasks = len(tasks)

	statusIdx := map[string]int{}
	priorityIdx := map[string]int{}
	weekly := map[string]int{}
	weekStart := now.Add(-WeeklyWindow)

	for _, t := range tasks {
		switch t.Status {
		case model.StatusDone:
			snap.CompletedTasks++
		case model.StatusInProgress:
			snap.InProgressTasks++
		}
		if isOverdue(t, now) {
			snap.OverdueTasks++
		}

		if i, ok := statusIdx[t.Status]; ok {
			snap.TasksByStatus[i].Count++
		} else {
			statusIdx[t.Status] = len(snap.TasksByStatus)
			snap.TasksByStatus = append(snap.TasksByStatus, model.StatusCount{Status: t.Status, Count: 1})
		}
		if i, ok := priorityIdx[t.Priority]; ok {
			snap.TasksByPriority[i].Count++
		} else {
			priorityIdx[t.Priority] = len(snap.TasksByPriority)
			snap.TasksByPriority = append(snap.TasksByPriority, model.PriorityCount{Priority: t.Priority, Count: 1})
		}

		if t.Status == model.StatusDone && !t.UpdatedAt.Before(weekStart) && !t.UpdatedAt.After(now) {
			weekly[t.UpdatedAt.UTC().Format(dateLayout)]++
		}
	}

	for date, count := range weekly {
		snap.WeeklyProgress = append(snap.WeeklyProgress, model.DayCount{Date: date, Count: count})
	}
	sort.Slice(snap.WeeklyProgress, func(i, j int) bool {
		return snap.WeeklyProgress[i].Date < snap.WeeklyProgress[j].Date
	})
	return snap
}

func isOverdue(t model.Task, now time.Time) bool {
	return t.DueDate != nil && t.DueDate.Before(now) && t.Status != model.StatusDone
}

func distinctWorkspaceIDs(memberships []model.WorkspaceMember) []int64 {
	seen := make(map[int64]struct{}, len(memberships))
	ids := make([]int64, 0, len(memberships))
	for _, m := range memberships {
		if _, ok := seen[m.WorkspaceID]; ok {
			continue
		}
		seen[m.WorkspaceID] = struct{}{}
		ids = append(ids, m.WorkspaceID)
	}
	return ids
}
