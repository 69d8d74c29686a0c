package model

import "time"

// Account status flag: 1 active, 0 disabled. Disabled accounts fail every
// authorization check.
const (
	StatusActive   = 1
	StatusDisabled = 0
)

// Admin can log in with either the admin number or the username.
type Admin struct {
	ID           int64     `gorm:"primaryKey" json:"id"`
	AdminNo      string    `gorm:"type:varchar(32);uniqueIndex;not null" json:"admin_no"`
	Username     string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"username"`
	PasswordHash string    `gorm:"type:varchar(255);not null" json:"-"`
	Name         string    `gorm:"type:varchar(64)" json:"name"`
	Email        string    `gorm:"type:varchar(128)" json:"email,omitempty"`
	Status       int       `gorm:"default:1" json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Teacher logs in with the staff number.
type Teacher struct {
	ID           int64     `gorm:"primaryKey" json:"id"`
	TeacherNo    string    `gorm:"type:varchar(32);uniqueIndex;not null" json:"teacher_no"`
	PasswordHash string    `gorm:"type:varchar(255);not null" json:"-"`
	Name         string    `gorm:"type:varchar(64);not null" json:"name"`
	Email        string    `gorm:"type:varchar(128)" json:"email,omitempty"`
	Status       int       `gorm:"default:1" json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	Classes []Class `gorm:"foreignKey:TeacherID" json:"classes,omitempty"`
}

// Student logs in with the student number and belongs to exactly one class.
type Student struct {
	ID           int64     `gorm:"primaryKey" json:"id"`
	StudentNo    string    `gorm:"type:varchar(32);uniqueIndex;not null" json:"student_no"`
	ClassID      int64     `gorm:"index;not null" json:"class_id"`
	PasswordHash string    `gorm:"type:varchar(255);not null" json:"-"`
	Name         string    `gorm:"type:varchar(64);not null" json:"name"`
	Email        string    `gorm:"type:varchar(128)" json:"email,omitempty"`
	Status       int       `gorm:"default:1" json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	Class *Class `gorm:"foreignKey:ClassID" json:"class,omitempty"`
}
