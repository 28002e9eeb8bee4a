package models

// StudentSummary groups every observation sharing a student id. It is derived
// on each fetch/filter change and never persisted.
type StudentSummary struct {
	StudentID          string        `json:"student_id"`
	StudentName        string        `json:"student_name"`
	Semester           string        `json:"semester"`
	GPA                float64       `json:"gpa"`
	TotalCredits       int           `json:"total_credits"`
	Email              string        `json:"email"`
	TotalRequests      int           `json:"total_requests"`
	PendingReviewCount int           `json:"pending_review_count"`
	Requests           []Observation `json:"requests"`
}
