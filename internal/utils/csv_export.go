package utils

import (
	"strconv"
	"strings"
	"time"

	"revintake/internal/models"
)

// ExportColumns — порядок колонок экспорта, совпадает со схемой таблицы.
var ExportColumns = []string{
	"id",
	"request_title",
	"requestor_name",
	"requestor_team",
	"problem_statement",
	"expected_outcome",
	"revenue_impact",
	"audit_risk",
	"customer_impact",
	"systems_touched",
	"data_objects",
	"required_changes",
	"complexity",
	"cross_functional_effort",
	"timeline_pressure",
	"control_impact",
	"downstream_dependencies",
	"tags",
	"priority_score",
	"is_quick_win",
	"status",
	"triage_owner",
	"triage_notes",
	"jira_key",
	"created_at",
	"updated_at",
}

// RecordRow раскладывает запись в ячейки в порядке ExportColumns.
func RecordRow(rec models.IntakeRequest) []string {
	jiraKey := ""
	if rec.JiraKey != nil {
		jiraKey = *rec.JiraKey
	}
	updatedAt := ""
	if rec.UpdatedAt != nil {
		updatedAt = rec.UpdatedAt.UTC().Format(time.RFC3339)
	}

	return []string{
		rec.ID,
		rec.RequestTitle,
		rec.RequestorName,
		rec.RequestorTeam,
		rec.ProblemStatement,
		rec.ExpectedOutcome,
		rec.RevenueImpact,
		rec.AuditRisk,
		rec.CustomerImpact,
		rec.SystemsTouched,
		rec.DataObjects,
		rec.RequiredChanges,
		rec.Complexity,
		rec.CrossFunctionalEffort,
		rec.TimelinePressure,
		rec.ControlImpact,
		rec.DownstreamDependencies,
		rec.Tags,
		strconv.FormatFloat(rec.PriorityScore, 'f', -1, 64),
		strconv.FormatBool(rec.IsQuickWin),
		rec.Status,
		rec.TriageOwner,
		rec.TriageNotes,
		jiraKey,
		rec.CreatedAt.UTC().Format(time.RFC3339),
		updatedAt,
	}
}

// RenderCSV собирает CSV: заголовок без кавычек, каждая ячейка данных
// в двойных кавычках, внутренние кавычки удваиваются.
func RenderCSV(columns []string, rows [][]string) string {
	var b strings.Builder
	b.WriteString(strings.Join(columns, ","))

	for _, row := range rows {
		b.WriteByte('\n')
		for i, cell := range row {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(escapeCell(cell))
		}
	}

	return b.String()
}

func escapeCell(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}
