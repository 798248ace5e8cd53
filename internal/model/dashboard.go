package model

type StatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

type PriorityCount struct {
	Priority string `json:"priority"`
	Count    int    `json:"count"`
}

type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// DashboardSnapshot 某一时刻的 dashboard 统计
type DashboardSnapshot struct {
	TotalTasks      int             `json:"totalTasks"`
	CompletedTasks  int             `json:"completedTasks"`
	InProgressTasks int             `json:"inProgressTasks"`
	OverdueTasks    int             `json:"overdueTasks"`
	TotalProjects   int             `json:"totalProjects"`
	TotalWorkspaces int             `json:"totalWorkspaces"`
	TasksByStatus   []StatusCount   `json:"tasksByStatus"`
	TasksByPriority []PriorityCount `json:"tasksByPriority"`
	WeeklyProgress  []DayCount      `json:"weeklyProgress"`
	RecentActivity  []any           `json:"recentActivity"`
}

// EmptySnapshot 所有计数为 0、列表为空（非 nil，序列化为 []）。
// RecentActivity 总是空列表
func EmptySnapshot() DashboardSnapshot {
	return DashboardSnapshot{
		TasksByStatus:   []StatusCount{},
		TasksByPriority: []PriorityCount{},
		WeeklyProgress:  []DayCount{},
		RecentActivity:  []any{},
	}
}
