package model

import "time"

// Class is taught by exactly one teacher; a teacher may own several classes.
type Class struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	ClassCode string    `gorm:"type:varchar(32);uniqueIndex;not null" json:"class_code"`
	ClassName string    `gorm:"type:varchar(64);not null" json:"class_name"`
	TeacherID int64     `gorm:"index;not null" json:"teacher_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Teacher       *Teacher       `gorm:"foreignKey:TeacherID" json:"teacher,omitempty"`
	Students      []Student      `gorm:"foreignKey:ClassID" json:"students,omitempty"`
	KnowledgeBase *KnowledgeBase `gorm:"foreignKey:ClassID" json:"knowledge_base,omitempty"`
}

// KnowledgeBase maps a class 1:1 to a RAGFlow dataset. The unique index on
// ClassID enforces one knowledge base per class.
type KnowledgeBase struct {
	ID               int64     `gorm:"primaryKey" json:"id"`
	ClassID          int64     `gorm:"uniqueIndex;not null" json:"class_id"`
	Name             string    `gorm:"type:varchar(128);not null" json:"name"`
	Description      string    `gorm:"type:text" json:"description,omitempty"`
	RagflowDatasetID string    `gorm:"type:varchar(64);not null" json:"ragflow_dataset_id"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`

	Class     *Class     `gorm:"foreignKey:ClassID" json:"class,omitempty"`
	Documents []Document `gorm:"foreignKey:KBID" json:"documents,omitempty"`
}
