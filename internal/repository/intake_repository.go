package repository

import (
	"context"

	"revintake/internal/models"

	"gorm.io/gorm"
)

// ListFilter — фильтры списка заявок.
type ListFilter struct {
	Team   string
	Status string
	Search string
	Limit  int
}

type IntakeRepository interface {
	Create(ctx context.Context, record *models.IntakeRequest) error
	GetByID(ctx context.Context, id string) (*models.IntakeRequest, error)
	List(ctx context.Context, filter ListFilter) ([]models.IntakeRequest, error)
	AllByCreated(ctx context.Context) ([]models.IntakeRequest, error)
	AllByPriority(ctx context.Context) ([]models.IntakeRequest, error)
	UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error
	SetJiraKey(ctx context.Context, id, jiraKey string) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
}

type intakeRepository struct {
	db *gorm.DB
}

func NewIntakeRepository(db *gorm.DB) IntakeRepository {
	return &intakeRepository{db: db}
}

func (r *intakeRepository) Create(ctx context.Context, record *models.IntakeRequest) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *intakeRepository) GetByID(ctx context.Context, id string) (*models.IntakeRequest, error) {
	var record models.IntakeRequest
	err := r.db.WithContext(ctx).First(&record, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *intakeRepository) List(ctx context.Context, filter ListFilter) ([]models.IntakeRequest, error) {
	if filter.Limit < 1 || filter.Limit > 100 {
		filter.Limit = 100
	}

	query := r.db.WithContext(ctx).Model(&models.IntakeRequest{})

	if filter.Team != "" {
		query = query.Where("requestor_team = ?", filter.Team)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		query = query.Where(
			"LOWER(request_title) LIKE LOWER(?) OR LOWER(requestor_name) LIKE LOWER(?)",
			pattern, pattern,
		)
	}

	var records []models.IntakeRequest
	err := query.
		Order("priority_score DESC, created_at DESC").
		Limit(filter.Limit).
		Find(&records).
		Error
	return records, err
}

func (r *intakeRepository) AllByCreated(ctx context.Context) ([]models.IntakeRequest, error) {
	var records []models.IntakeRequest
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Find(&records).
		Error
	return records, err
}

func (r *intakeRepository) AllByPriority(ctx context.Context) ([]models.IntakeRequest, error) {
	var records []models.IntakeRequest
	err := r.db.WithContext(ctx).
		Order("priority_score DESC, created_at DESC").
		Find(&records).
		Error
	return records, err
}

// UpdateFields обновляет частичный набор колонок одной записи.
// Вызывающая сторона сама кладёт updated_at в fields.
func (r *intakeRepository) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).
		Model(&models.IntakeRequest{}).
		Where("id = ?", id).
		Updates(fields).
		Error
}

func (r *intakeRepository) SetJiraKey(ctx context.Context, id, jiraKey string) error {
	return r.db.WithContext(ctx).
		Model(&models.IntakeRequest{}).
		Where("id = ?", id).
		Update("jira_key", jiraKey).
		Error
}

func (r *intakeRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&models.IntakeRequest{}, "id = ?", id).Error
}

func (r *intakeRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.IntakeRequest{}).
		Count(&count).
		Error
	return count, err
}
