package model

import "time"

// SearchLog records one retrieval query for usage statistics. Exactly one of
// the two actor columns is set.
type SearchLog struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	TeacherID   *int64    `gorm:"index" json:"teacher_id,omitempty"`
	StudentID   *int64    `gorm:"index" json:"student_id,omitempty"`
	KBID        int64     `gorm:"column:kb_id;index;not null" json:"kb_id"`
	Query       string    `gorm:"type:text;not null" json:"query"`
	TopK        int       `gorm:"not null" json:"top_k"`
	ResultCount int       `gorm:"not null" json:"result_count"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}
