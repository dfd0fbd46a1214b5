package experiment

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

var ErrRecordNotFound = errors.New("experiment record not found")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&Record{})
}

// Create inserts a record. The training worker is the usual writer; the
// orchestrator only needs this for tooling and tests.
func (r *Repository) Create(ctx context.Context, record *Record) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *Repository) FindByID(ctx context.Context, id string) (*Record, error) {
	var record Record
	result := r.db.WithContext(ctx).First(&record, "id = ?", id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrRecordNotFound
	}
	return &record, result.Error
}

func (r *Repository) FindByTaskID(ctx context.Context, taskID string) (*Record, error) {
	var record Record
	result := r.db.WithContext(ctx).First(&record, "task_id = ?", taskID)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrRecordNotFound
	}
	return &record, result.Error
}

func (r *Repository) ListOrderedByCreatedDesc(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	var records []Record
	result := r.db.WithContext(ctx).Order("created_at desc").Limit(limit).Find(&records)
	return records, result.Error
}
