package models

import (
	"time"
)

// Message is one SMS dispatch attempt of a campaign run
type Message struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	RunID             string    `gorm:"type:varchar(64);index" json:"run_id"`
	ContactID         int64     `gorm:"index" json:"contact_id"`
	ContactLabel      string    `gorm:"type:varchar(255)" json:"contact_label"`
	Recipient         string    `gorm:"type:varchar(50)" json:"recipient"`
	Body              string    `gorm:"type:text" json:"body"`
	Sender            string    `gorm:"type:varchar(50)" json:"sender"`
	Provider          string    `gorm:"type:varchar(50)" json:"provider"`
	Status            string    `gorm:"type:varchar(20);index" json:"status"` // sent, failed
	ProviderMessageID string    `gorm:"type:varchar(255)" json:"provider_message_id"`
	Error             string    `gorm:"type:text" json:"error"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Message) TableName() string {
	return "messages"
}

// CallRecord is the terminal outcome of one voice call
type CallRecord struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	RunID       string    `gorm:"type:varchar(64);index" json:"run_id"`
	ContactID   int64     `gorm:"index" json:"contact_id"`
	CallID      string    `gorm:"type:varchar(255);index" json:"call_id"`
	PhoneNumber string    `gorm:"type:varchar(50)" json:"phone_number"`
	Status      string    `gorm:"type:varchar(20);index" json:"status"` // completed, failed, no-answer
	EndedReason string    `gorm:"type:varchar(100)" json:"ended_reason"`
	DurationSec int       `json:"duration_sec"`
	Transcript  string    `gorm:"type:text" json:"transcript"`
	Sentiment   string    `gorm:"type:varchar(20)" json:"sentiment"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (CallRecord) TableName() string {
	return "call_records"
}
