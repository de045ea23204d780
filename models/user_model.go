package models

import "time"

type User struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Role     Role   `gorm:"size:20;not null" json:"role"`
	Name     string `gorm:"size:255;not null" json:"name"`
	Email    string `gorm:"size:255;not null;unique" json:"email"`
	Phone    string `gorm:"size:30" json:"phone"`
	Password string `gorm:"not null" json:"-"`

	ProfilePictureURL *string `gorm:"type:text" json:"profile_picture_url"`

	// ParentCompanyID links employee and child-company accounts to their
	// root company. Root companies and clients keep it nil.
	ParentCompanyID *uint `json:"parent_company_id,omitempty"`
	ParentCompany   *User `gorm:"foreignKey:ParentCompanyID" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Profile is the public summary embedded in conversation responses.
type Profile struct {
	ID                uint    `json:"id"`
	Name              string  `json:"name"`
	Email             string  `json:"email"`
	Role              Role    `json:"role"`
	ProfilePictureURL *string `json:"profile_picture_url"`
}

func (u *User) PublicProfile() Profile {
	return Profile{
		ID:                u.ID,
		Name:              u.Name,
		Email:             u.Email,
		Role:              u.Role,
		ProfilePictureURL: u.ProfilePictureURL,
	}
}
