package models

import "time"

// Conversation is the single ongoing thread between a client and a root
// company. Party ids are canonical: ClientID always holds a client
// account and CompanyID always holds a root company, never an employee
// or child-company id.
type Conversation struct {
	ID        uint `gorm:"primaryKey" json:"id"`
	ClientID  uint `gorm:"not null;uniqueIndex:idx_conversation_pair" json:"client_id"`
	CompanyID uint `gorm:"not null;uniqueIndex:idx_conversation_pair" json:"company_id"`

	LastMessageAt time.Time `json:"last_message_at"`

	Client  User `gorm:"foreignKey:ClientID" json:"-"`
	Company User `gorm:"foreignKey:CompanyID" json:"-"`

	Messages []Message `gorm:"constraint:OnDelete:CASCADE" json:"-"`

	CreatedAt time.Time `json:"created_at"`
}
