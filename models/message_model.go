package models

import "time"

// Message rows are append-only; Read is the only field that mutates
// after creation.
type Message struct {
	ID             uint   `gorm:"primaryKey" json:"id"`
	ConversationID uint   `gorm:"not null;index" json:"conversation_id"`
	SenderID       uint   `gorm:"not null" json:"sender_id"`
	Body           string `gorm:"type:text;not null" json:"body"`

	SentAt time.Time `json:"sent_at"`
	Read   bool      `gorm:"default:false" json:"read"`

	Sender       User         `gorm:"foreignKey:SenderID" json:"-"`
	Conversation Conversation `gorm:"foreignKey:ConversationID" json:"-"`
}
