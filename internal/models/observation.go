package models

import "time"

// Status represents the review lifecycle of an observation. The wire values
// are the Spanish labels stored in the observaciones table.
type Status string

const (
	StatusPendingReview Status = "POR REVISAR"
	StatusInReview      Status = "EN REVISIÓN"
	StatusReviewed      Status = "REVISADO"
	StatusResolved      Status = "SOLUCIONADO"
	StatusRejected      Status = "NO PROCEDE"
	StatusDuplicate     Status = "REPETIDO"
	StatusIgnored       Status = "IGNORADO"
)

// Statuses lists every valid status in presentation order.
var Statuses = []Status{
	StatusPendingReview,
	StatusInReview,
	StatusReviewed,
	StatusResolved,
	StatusRejected,
	StatusDuplicate,
	StatusIgnored,
}

// Valid reports whether the status is one of the known labels.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// Pending reports whether the status still counts toward the unreviewed pool.
func (s Status) Pending() bool {
	return s == StatusPendingReview || s == StatusInReview
}

// Department is the classification code assigned to an observation.
type Department string

const (
	DeptGeneral          Department = "GE"
	DeptDecisionSupport  Department = "AT"
	DeptTelematics       Department = "TE"
	DeptSoftware         Department = "IS"
	DeptEnglish          Department = "IN"
	DeptLogicProgramming Department = "LP"
	DeptCommonSubjects   Department = "MC"
	DeptInternships      Department = "PP"
)

// Departments lists the known classification codes.
var Departments = []Department{
	DeptGeneral,
	DeptDecisionSupport,
	DeptTelematics,
	DeptSoftware,
	DeptEnglish,
	DeptLogicProgramming,
	DeptCommonSubjects,
	DeptInternships,
}

// Action values match the acción column.
const (
	ActionAdd  = "Agregar"
	ActionDrop = "Eliminar"
)

// Observation is a single enrollment-exception case from the observaciones
// table. Created by the upstream intake process; this service only mutates
// the review fields and never deletes rows.
type Observation struct {
	ID               int64      `json:"id"`
	CaseNumber       string     `json:"case_number"`
	Status           Status     `json:"status"`
	Classification   Department `json:"classification"`
	Date             time.Time  `json:"date"`
	StudentID        string     `json:"student_id"`
	StudentName      string     `json:"student_name"`
	Semester         string     `json:"semester"`
	GPA              float64    `json:"gpa"`
	Credits          int        `json:"credits"`
	Authorized       string     `json:"authorized,omitempty"`
	Action           string     `json:"action"`
	Subject          string     `json:"subject"`
	NRC              string     `json:"nrc"`
	Comments         string     `json:"comments"`
	Contact          string     `json:"contact,omitempty"`
	Responsible      string     `json:"responsible"`
	InternalResponse string     `json:"internal_response"`
	StudentResponse  string     `json:"student_response"`
}

// ObservationFilter captures filtering criteria for listing observations.
type ObservationFilter struct {
	Departments []Department
	Status      *Status
	Semester    string
	StudentID   string
	Search      string
	Page        int
	PageSize    int
}

// PendingChange carries the fields a staff member edited before saving.
// Nil fields are left untouched; the merge against the persisted row happens
// at save time.
type PendingChange struct {
	Status           *Status `json:"status,omitempty"`
	InternalResponse *string `json:"internal_response,omitempty"`
	StudentResponse  *string `json:"student_response,omitempty"`
}

// Empty reports whether the change carries no edits at all.
func (p PendingChange) Empty() bool {
	return p.Status == nil && p.InternalResponse == nil && p.StudentResponse == nil
}

// FieldUpdate records an old/new pair for the audit changes map.
type FieldUpdate struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
