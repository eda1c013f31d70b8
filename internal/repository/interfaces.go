package repository

import (
	"sentinelvision/internal/dto"
	"sentinelvision/internal/model"
)

// KeyFrameRepository defines catalog operations for stored key frames.
type KeyFrameRepository interface {
	// Create operations
	Insert(kf *model.KeyFrame) (int64, error)
	InsertBatch(frames []model.KeyFrame) (int, error)

	// Read operations
	GetByID(id int64) (*model.KeyFrame, error)
	GetByFilename(filename string) (*model.KeyFrame, error)
	GetAll(filter *dto.KeyFrameFilters) ([]model.KeyFrame, error)
	GetTotalCount(filter *dto.KeyFrameFilters) (int, error)
	GetTotalSize() (int64, error)
	GetStats() (*model.KeyFrameStats, error)
}

// AlertRepository defines catalog operations for raised alerts.
type AlertRepository interface {
	Insert(alert *model.Alert) (int64, error)
	GetRecent(limit int) ([]model.Alert, error)
	Count() (int, error)
}
