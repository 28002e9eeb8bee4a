package models

import "time"

// DashboardStats is the aggregate snapshot served on the overview screen.
// Every section is computed server-side and cached as a unit.
type DashboardStats struct {
	Totals             DashboardTotals      `json:"totals"`
	StatusDistribution []StatusCount        `json:"status_distribution"`
	DepartmentVolume   []DepartmentCount    `json:"department_volume"`
	TopResponsible     []ResponsibleRanking `json:"top_responsible"`
	DailyVolume        []DailyCount         `json:"daily_volume"`
	GeneratedAt        time.Time            `json:"generated_at"`
}

// DashboardTotals carries the headline counters.
type DashboardTotals struct {
	TotalCases    int `json:"total_cases"`
	TotalStudents int `json:"total_students"`
	PendingReview int `json:"pending_review"`
	Resolved      int `json:"resolved"`
}

// StatusCount is one slice of the status distribution.
type StatusCount struct {
	Status Status `json:"status"`
	Count  int    `json:"count"`
}

// DepartmentCount is one slice of the per-department volume.
type DepartmentCount struct {
	Department Department `json:"department"`
	Count      int        `json:"count"`
}

// ResponsibleRanking ranks staff initials by handled cases.
type ResponsibleRanking struct {
	Responsible string `json:"responsible"`
	Count       int    `json:"count"`
}

// DailyCount is one day of intake volume.
type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}
