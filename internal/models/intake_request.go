package models

import (
	"time"

	"gorm.io/datatypes"
)

// Канонический набор статусов заявки. Единый для всех эндпоинтов обновления.
var AllowedStatuses = []string{
	"New",
	"Triage Review",
	"Prioritized",
	"Sent to Epic",
	"In Progress",
	"Complete",
	"Blocked",
	"Cancelled",
}

const StatusNew = "New"

func IsAllowedStatus(status string) bool {
	for _, s := range AllowedStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// IntakeRequest — одна заявка, одна строка в intake_requests.
// PriorityScore считается один раз при создании и не пересчитывается.
// UpdatedAt остаётся NULL до первого мутирующего обновления,
// автообновление gorm отключено.
type IntakeRequest struct {
	ID                     string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	RequestTitle           string         `gorm:"type:varchar(255);not null" json:"request_title"`
	RequestorName          string         `gorm:"not null" json:"requestor_name"`
	RequestorTeam          string         `gorm:"not null;index" json:"requestor_team"`
	ProblemStatement       string         `gorm:"type:text;not null" json:"problem_statement"`
	ExpectedOutcome        string         `gorm:"type:text;not null" json:"expected_outcome"`
	RevenueImpact          string         `gorm:"type:varchar(50)" json:"revenue_impact"`
	AuditRisk              string         `gorm:"type:varchar(50)" json:"audit_risk"`
	CustomerImpact         string         `json:"customer_impact"`
	SystemsTouched         string         `gorm:"type:text" json:"systems_touched"`
	DataObjects            string         `gorm:"type:text" json:"data_objects"`
	RequiredChanges        string         `gorm:"type:text" json:"required_changes"`
	Complexity             string         `gorm:"type:varchar(50)" json:"complexity"`
	CrossFunctionalEffort  string         `gorm:"type:varchar(50)" json:"cross_functional_effort"`
	TimelinePressure       string         `gorm:"type:varchar(50)" json:"timeline_pressure"`
	ControlImpact          string         `json:"control_impact"`
	DownstreamDependencies string         `gorm:"type:text" json:"downstream_dependencies"`
	Tags                   string         `gorm:"type:text" json:"tags"`
	PriorityScore          float64        `gorm:"not null;index" json:"priority_score"`
	IsQuickWin             bool           `gorm:"not null;default:false" json:"is_quick_win"`
	Status                 string         `gorm:"type:varchar(50);not null;index" json:"status"`
	TriageOwner            string         `json:"triage_owner"`
	TriageNotes            string         `gorm:"type:text" json:"triage_notes"`
	JiraKey                *string        `gorm:"type:varchar(50)" json:"jira_key"`
	Raw                    datatypes.JSON `gorm:"type:jsonb" json:"-"`
	CreatedAt              time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt              *time.Time     `gorm:"autoUpdateTime:false" json:"updated_at"`
}

func (IntakeRequest) TableName() string {
	return "intake_requests"
}

// BacklogItem — серверная проекция заявки для бэклог-вью.
type BacklogItem struct {
	ID                  string  `json:"id"`
	Name                string  `json:"name"`
	Source              string  `json:"source"`
	Type                string  `json:"type"`
	Status              string  `json:"status"`
	PainPoints          string  `json:"pain_points"`
	SystemsTouched      string  `json:"systems_touched"`
	RevenueFlowImpacted string  `json:"revenue_flow_impacted"`
	AuditCritical       string  `json:"audit_critical"`
	PriorityScore       float64 `json:"priority_score"`
}
