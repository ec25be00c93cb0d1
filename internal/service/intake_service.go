package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"revintake/internal/clients"
	"revintake/internal/models"
	"revintake/internal/repository"
	"revintake/internal/scoring"
	"revintake/internal/storage"
	"revintake/internal/utils"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrInvalidStatus = errors.New("invalid status")
	ErrNoData        = errors.New("no data to export")
)

// ValidationError — ошибка входных данных формы, маппится на 400.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

const (
	cachePrefix     = "intake:"
	backlogCacheKey = "intake:backlog"
	backlogCacheTTL = 30 * time.Second
)

// UploadedFile — один файл из multipart-формы.
type UploadedFile struct {
	Filename string
	Data     []byte
}

// Submission — распарсенные поля формы /submit.
type Submission struct {
	RequestTitle           string
	RequestorName          string
	RequestorTeam          string
	ProblemStatement       string
	ExpectedOutcome        string
	RevenueImpact          string
	AuditRisk              string
	CustomerImpact         string
	SystemsTouched         []string
	DataObjects            string
	RequiredChanges        string
	Complexity             string
	CrossFunctionalEffort  string
	TimelinePressure       string
	ControlImpact          string
	DownstreamDependencies string
	Tags                   []string
	Files                  []UploadedFile
}

// SubmitResult — итог приёма заявки. Warnings собирают сбои
// необязательных шагов (Jira, вложения), они не ломают сабмит.
type SubmitResult struct {
	Record      *models.IntakeRequest
	Attachments []string
	JiraKey     string
	Warnings    []string
	Message     string
}

// TriageResult — итог расширенного обновления статуса.
type TriageResult struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	TriageOwner string `json:"triage_owner"`
	TriageNotes string `json:"triage_notes"`
}

type IntakeService interface {
	Submit(ctx context.Context, sub Submission) (*SubmitResult, error)
	Get(ctx context.Context, id string) (*models.IntakeRequest, error)
	List(ctx context.Context, filter repository.ListFilter) ([]models.IntakeRequest, error)
	UpdateStatus(ctx context.Context, id, status string) error
	UpdateTriage(ctx context.Context, id, status string, triageOwner, triageNotes *string) (*TriageResult, error)
	Delete(ctx context.Context, id string) error
	Backlog(ctx context.Context) ([]models.BacklogItem, error)
	ExportCSV(ctx context.Context) (string, error)
	ExportWorkbook(ctx context.Context) (*excelize.File, error)
	Count(ctx context.Context) (int64, error)
}

type intakeService struct {
	repo  repository.IntakeRepository
	cache repository.CacheRepository
	jira  clients.JiraClient
	blobs storage.BlobStore
}

func NewIntakeService(
	repo repository.IntakeRepository,
	cache repository.CacheRepository,
	jira clients.JiraClient,
	blobs storage.BlobStore,
) IntakeService {
	return &intakeService{
		repo:  repo,
		cache: cache,
		jira:  jira,
		blobs: blobs,
	}
}

// Submit выполняет приём заявки строго последовательно: валидация,
// скоринг, авторитетная запись в БД, затем best-effort побочные
// эффекты. Единственный шаг, чей сбой прерывает операцию — вставка.
func (s *intakeService) Submit(ctx context.Context, sub Submission) (*SubmitResult, error) {
	if err := validateSubmission(sub); err != nil {
		return nil, err
	}

	score := scoring.Score(
		sub.RevenueImpact,
		sub.AuditRisk,
		sub.Complexity,
		sub.CrossFunctionalEffort,
		sub.TimelinePressure,
	)
	quickWin := scoring.IsQuickWin(score, sub.Complexity, sub.CrossFunctionalEffort, sub.TimelinePressure)

	record := &models.IntakeRequest{
		ID:                     uuid.NewString(),
		RequestTitle:           sub.RequestTitle,
		RequestorName:          sub.RequestorName,
		RequestorTeam:          sub.RequestorTeam,
		ProblemStatement:       sub.ProblemStatement,
		ExpectedOutcome:        sub.ExpectedOutcome,
		RevenueImpact:          sub.RevenueImpact,
		AuditRisk:              sub.AuditRisk,
		CustomerImpact:         sub.CustomerImpact,
		SystemsTouched:         strings.Join(sub.SystemsTouched, ";"),
		DataObjects:            sub.DataObjects,
		RequiredChanges:        sub.RequiredChanges,
		Complexity:             sub.Complexity,
		CrossFunctionalEffort:  sub.CrossFunctionalEffort,
		TimelinePressure:       sub.TimelinePressure,
		ControlImpact:          sub.ControlImpact,
		DownstreamDependencies: sub.DownstreamDependencies,
		Tags:                   strings.Join(sub.Tags, ";"),
		PriorityScore:          score,
		IsQuickWin:             quickWin,
		Status:                 models.StatusNew,
		CreatedAt:              time.Now().UTC(),
	}

	if raw, err := json.Marshal(rawSnapshot(sub)); err == nil {
		record.Raw = raw
	}

	if err := s.repo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to insert intake request: %w", err)
	}
	s.invalidateCache(ctx)

	result := &SubmitResult{Record: record}

	// Тикет в Jira — best-effort, сбой не распространяется
	if s.jira != nil && s.jira.Enabled() {
		jiraKey, err := s.jira.CreateIssue(ctx, record.RequestTitle, JiraDescription(record))
		if err != nil {
			log.Printf("Failed to create Jira issue for %s: %v", record.ID, err)
			result.Warnings = append(result.Warnings, "jira issue not created: "+err.Error())
		} else {
			if err := s.repo.SetJiraKey(ctx, record.ID, jiraKey); err != nil {
				log.Printf("Failed to backfill jira_key for %s: %v", record.ID, err)
				result.Warnings = append(result.Warnings, "jira key not saved: "+err.Error())
			} else {
				record.JiraKey = &jiraKey
			}
			result.JiraKey = jiraKey
		}
	}

	// Вложения: сначала блоб-хранилище, потом best-effort в Jira
	for _, file := range sub.Files {
		if file.Filename == "" {
			continue
		}

		key := record.ID + "_" + filepath.Base(file.Filename)
		if _, err := s.blobs.Put(ctx, key, bytes.NewReader(file.Data)); err != nil {
			log.Printf("Failed to store attachment %s: %v", key, err)
			result.Warnings = append(result.Warnings, "attachment not stored: "+key)
			continue
		}
		result.Attachments = append(result.Attachments, key)

		if result.JiraKey != "" {
			data, err := s.blobs.Get(ctx, key)
			if err != nil {
				log.Printf("Failed to read back attachment %s: %v", key, err)
				continue
			}
			if err := s.jira.AttachFile(ctx, result.JiraKey, key, data); err != nil {
				log.Printf("Failed to attach %s to %s: %v", key, result.JiraKey, err)
				result.Warnings = append(result.Warnings, "jira attachment failed: "+key)
			}
		}
	}

	result.Message = submitMessage(record, result)
	return result, nil
}

func submitMessage(record *models.IntakeRequest, result *SubmitResult) string {
	msg := "Request submitted. Priority score: " +
		strconv.FormatFloat(record.PriorityScore, 'f', -1, 64)
	if record.IsQuickWin {
		msg += " • Marked as QUICK WIN"
	}
	if len(result.Attachments) > 0 {
		msg += fmt.Sprintf(" • %d attachment(s)", len(result.Attachments))
	}
	if result.JiraKey != "" {
		msg += " • Jira Task: " + result.JiraKey
	}
	return msg
}

func validateSubmission(sub Submission) error {
	required := []struct {
		name  string
		value string
	}{
		{"request_title", sub.RequestTitle},
		{"requestor_name", sub.RequestorName},
		{"requestor_team", sub.RequestorTeam},
		{"problem_statement", sub.ProblemStatement},
		{"expected_outcome", sub.ExpectedOutcome},
	}

	for _, field := range required {
		if field.value == "" {
			return &ValidationError{Message: "Missing " + field.name}
		}
	}

	if len(sub.RequestTitle) > 255 {
		return &ValidationError{Message: "Title too long"}
	}

	return nil
}

func rawSnapshot(sub Submission) map[string]string {
	return map[string]string{
		"request_title":           sub.RequestTitle,
		"requestor_name":          sub.RequestorName,
		"requestor_team":          sub.RequestorTeam,
		"problem_statement":       sub.ProblemStatement,
		"expected_outcome":        sub.ExpectedOutcome,
		"revenue_impact":          sub.RevenueImpact,
		"audit_risk":              sub.AuditRisk,
		"customer_impact":         sub.CustomerImpact,
		"systems_touched":         strings.Join(sub.SystemsTouched, ";"),
		"data_objects":            sub.DataObjects,
		"required_changes":        sub.RequiredChanges,
		"complexity":              sub.Complexity,
		"cross_functional_effort": sub.CrossFunctionalEffort,
		"timeline_pressure":       sub.TimelinePressure,
		"control_impact":          sub.ControlImpact,
		"downstream_dependencies": sub.DownstreamDependencies,
		"tags":                    strings.Join(sub.Tags, ";"),
	}
}

func (s *intakeService) Get(ctx context.Context, id string) (*models.IntakeRequest, error) {
	record, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get intake request: %w", err)
	}
	return record, nil
}

func (s *intakeService) List(ctx context.Context, filter repository.ListFilter) ([]models.IntakeRequest, error) {
	return s.repo.List(ctx, filter)
}

// UpdateStatus — узкий вариант: только статус и updated_at.
func (s *intakeService) UpdateStatus(ctx context.Context, id, status string) error {
	if !models.IsAllowedStatus(status) {
		return ErrInvalidStatus
	}

	if _, err := s.Get(ctx, id); err != nil {
		return err
	}

	err := s.repo.UpdateFields(ctx, id, map[string]interface{}{
		"status":     status,
		"updated_at": time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}

	s.invalidateCache(ctx)
	return nil
}

// UpdateTriage — широкий вариант: статус плюс необязательные
// triage-поля. Отсутствующее поле (nil) сохраняет прежнее значение.
// Чтение и запись не атомарны, гонка двух обновлений одного id
// допускается.
func (s *intakeService) UpdateTriage(ctx context.Context, id, status string, triageOwner, triageNotes *string) (*TriageResult, error) {
	if !models.IsAllowedStatus(status) {
		return nil, ErrInvalidStatus
	}

	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	owner := existing.TriageOwner
	if triageOwner != nil {
		owner = *triageOwner
	}
	notes := existing.TriageNotes
	if triageNotes != nil {
		notes = *triageNotes
	}

	err = s.repo.UpdateFields(ctx, id, map[string]interface{}{
		"status":       status,
		"triage_owner": owner,
		"triage_notes": notes,
		"updated_at":   time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update triage fields: %w", err)
	}

	s.invalidateCache(ctx)

	return &TriageResult{
		ID:          id,
		Status:      status,
		TriageOwner: owner,
		TriageNotes: notes,
	}, nil
}

// Delete безусловен: отсутствие записи не считается ошибкой.
// Осиротевшие вложения в блоб-хранилище не подчищаются.
func (s *intakeService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete intake request: %w", err)
	}
	s.invalidateCache(ctx)
	return nil
}

func (s *intakeService) Backlog(ctx context.Context) ([]models.BacklogItem, error) {
	if s.cache != nil {
		var cached []models.BacklogItem
		if hit, err := s.cache.GetJSON(ctx, backlogCacheKey, &cached); err == nil && hit {
			return cached, nil
		}
	}

	records, err := s.repo.AllByPriority(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load backlog: %w", err)
	}

	items := make([]models.BacklogItem, 0, len(records))
	for i := range records {
		items = append(items, ToBacklogItem(&records[i]))
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, backlogCacheKey, items, backlogCacheTTL); err != nil {
			log.Printf("Failed to cache backlog view: %v", err)
		}
	}

	return items, nil
}

func (s *intakeService) ExportCSV(ctx context.Context) (string, error) {
	records, err := s.repo.AllByCreated(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load records for export: %w", err)
	}
	if len(records) == 0 {
		return "", ErrNoData
	}

	rows := make([][]string, 0, len(records))
	for _, record := range records {
		rows = append(rows, utils.RecordRow(record))
	}

	return utils.RenderCSV(utils.ExportColumns, rows), nil
}

func (s *intakeService) ExportWorkbook(ctx context.Context) (*excelize.File, error) {
	records, err := s.repo.AllByCreated(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load records for export: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrNoData
	}

	return utils.CreateIntakeWorkbook(records)
}

func (s *intakeService) Count(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx)
}

func (s *intakeService) invalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeletePrefix(ctx, cachePrefix); err != nil {
		log.Printf("Failed to invalidate intake cache: %v", err)
	}
}
