package worker

import (
	"gorm.io/gorm"

	"certimail/models"
)

// GormBatchStore persists batch progress on the send_batches table.
type GormBatchStore struct {
	DB *gorm.DB
}

func NewGormBatchStore(db *gorm.DB) *GormBatchStore {
	return &GormBatchStore{DB: db}
}

func (s *GormBatchStore) UpdateStatus(batchID, status, errMsg string) error {
	updates := map[string]interface{}{"status": status}
	if errMsg != "" {
		updates["error"] = errMsg
	}
	return s.DB.Model(&models.SendBatch{}).
		Where("batch_uuid = ?", batchID).
		Updates(updates).Error
}

func (s *GormBatchStore) UpdateProgress(batchID string, cursor, sent, failed int) error {
	return s.DB.Model(&models.SendBatch{}).
		Where("batch_uuid = ?", batchID).
		Updates(map[string]interface{}{
			"cursor": cursor,
			"sent":   sent,
			"failed": failed,
		}).Error
}
