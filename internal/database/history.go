package database

import (
	"campaign-console/internal/models"

	"gorm.io/gorm"
)

// History is the session dispatch log.
type History struct {
	db *gorm.DB
}

func NewHistory(db *gorm.DB) *History {
	return &History{db: db}
}

func (h *History) RecordMessage(m *models.Message) error {
	return h.db.Create(m).Error
}

func (h *History) RecordCall(c *models.CallRecord) error {
	return h.db.Create(c).Error
}

// Messages returns the most recent SMS attempts, optionally for one run.
func (h *History) Messages(runID string, limit int) ([]models.Message, error) {
	q := h.db.Order("id DESC")
	if runID != "" {
		q = q.Where("run_id = ?", runID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var messages []models.Message
	if err := q.Find(&messages).Error; err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []models.Message{}
	}
	return messages, nil
}

// Calls returns the most recent call records, optionally for one run.
func (h *History) Calls(runID string, limit int) ([]models.CallRecord, error) {
	q := h.db.Order("id DESC")
	if runID != "" {
		q = q.Where("run_id = ?", runID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var calls []models.CallRecord
	if err := q.Find(&calls).Error; err != nil {
		return nil, err
	}
	if calls == nil {
		calls = []models.CallRecord{}
	}
	return calls, nil
}
