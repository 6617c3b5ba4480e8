package storage

import (
	"time"

	"gorm.io/datatypes"
)

// Admin is the authenticated principal for the CMS.
//
// The password column holds only the bcrypt hash and is never serialized in
// API responses. PasswordChangedAt is the revocation cutoff: tokens issued
// before it are invalid on refresh.
type Admin struct {
	ID                uint       `gorm:"primaryKey"                          json:"id"`
	Email             string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Username          string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"username"`
	Password          string     `gorm:"not null"                            json:"-"`
	Role              string     `gorm:"type:varchar(32);default:'user'"     json:"role"`
	PasswordChangedAt *time.Time `                                           json:"-"`
	CreatedAt         time.Time  `                                           json:"created_at"`
	UpdatedAt         time.Time  `                                           json:"updated_at"`
}

// Story is a published community story with optional media attachments.
type Story struct {
	ID        uint           `gorm:"primaryKey"                             json:"id"`
	Title     string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"title"`
	Content   string         `gorm:"type:text;not null"                     json:"content"`
	Media     datatypes.JSON `                                              json:"media,omitempty"`
	MediaKeys datatypes.JSON `                                              json:"-"`
	CreatedAt time.Time      `                                              json:"created_at"`
	UpdatedAt time.Time      `                                              json:"updated_at"`
}

// Partner is a partner organization shown on the public site.
type Partner struct {
	ID        uint      `gorm:"primaryKey"                             json:"id"`
	Name      string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"name"`
	Media     string    `gorm:"type:varchar(512)"                      json:"media,omitempty"`
	MediaKey  string    `gorm:"type:varchar(255)"                      json:"-"`
	CreatedAt time.Time `                                              json:"created_at"`
	UpdatedAt time.Time `                                              json:"updated_at"`
}

// Document is an uploaded file (report, policy, minutes) hosted on the
// media store and listed on the public documents page.
type Document struct {
	ID        uint      `gorm:"primaryKey"                json:"id"`
	Title     string    `gorm:"type:varchar(255);not null" json:"title"`
	FileName  string    `gorm:"type:varchar(255);not null" json:"file_name"`
	Mimetype  string    `gorm:"type:varchar(128);not null" json:"mimetype"`
	Size      int64     `gorm:"not null"                  json:"size"`
	URL       string    `gorm:"type:varchar(512);not null" json:"url"`
	Key       string    `gorm:"type:varchar(255);not null" json:"-"`
	CreatedAt time.Time `gorm:"index"                     json:"upload_date"`
}
