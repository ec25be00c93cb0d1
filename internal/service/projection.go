package service

import (
	"strconv"
	"strings"

	"revintake/internal/models"
)

// PainPoints склеивает ключевой контекст заявки в один текстовый блок.
// Порядок секций фиксированный, пустые поля дают пустое значение после метки.
func PainPoints(rec *models.IntakeRequest) string {
	sections := []struct {
		label string
		value string
	}{
		{"Problem", rec.ProblemStatement},
		{"Expected Outcome", rec.ExpectedOutcome},
		{"Revenue Impact", rec.RevenueImpact},
		{"Customer Impact", rec.CustomerImpact},
		{"Required Changes", rec.RequiredChanges},
		{"Timeline Pressure", rec.TimelinePressure},
		{"Downstream Dependencies", rec.DownstreamDependencies},
	}

	parts := make([]string, 0, len(sections))
	for _, s := range sections {
		parts = append(parts, s.label+": "+s.value)
	}

	return strings.Join(parts, "\n\n")
}

// AuditCritical — "Yes", если в аудит-риске встречается "high"
// в любом регистре, иначе "No".
func AuditCritical(auditRisk string) string {
	if strings.Contains(strings.ToLower(auditRisk), "high") {
		return "Yes"
	}
	return "No"
}

// ToBacklogItem строит бэклог-проекцию записи.
func ToBacklogItem(rec *models.IntakeRequest) models.BacklogItem {
	return models.BacklogItem{
		ID:                  rec.ID,
		Name:                rec.RequestTitle,
		Source:              rec.RequestorTeam,
		Type:                rec.Tags,
		Status:              rec.Status,
		PainPoints:          PainPoints(rec),
		SystemsTouched:      rec.SystemsTouched,
		RevenueFlowImpacted: rec.RevenueImpact,
		AuditCritical:       AuditCritical(rec.AuditRisk),
		PriorityScore:       rec.PriorityScore,
	}
}

// JiraDescription — текстовое описание задачи в Jira-разметке.
func JiraDescription(rec *models.IntakeRequest) string {
	parts := []string{
		"*Requestor:* " + rec.RequestorName + " (" + rec.RequestorTeam + ")",
		"",
		"*Problem Statement*",
		orDash(rec.ProblemStatement),
		"",
		"*Expected Outcome*",
		orDash(rec.ExpectedOutcome),
		"",
		"*Systems Touched*",
		orDash(rec.SystemsTouched),
		"",
		"*Tags*",
		orDash(rec.Tags),
		"",
		"*Priority Score:* " + strconv.FormatFloat(rec.PriorityScore, 'f', -1, 64),
	}

	return strings.Join(parts, "\n")
}

func orDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}
