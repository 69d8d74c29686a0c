package services

import (
	"time"

	"gorm.io/gorm"

	"github.com/casehub/casehub/model"
	"github.com/casehub/casehub/utils/apperr"
	"github.com/casehub/casehub/utils/response"
)

// LogFilter narrows a search log listing. From and To are date bounds; To is
// inclusive of the whole day.
type LogFilter struct {
	KBID     int64
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

// LogResult is one page of search logs.
type LogResult struct {
	Logs       []model.SearchLog       `json:"logs"`
	Pagination response.PaginationMeta `json:"pagination"`
}

// Logs returns search history. Admins see everything; teachers and students
// see only their own queries.
func (s *SearchService) Logs(actor *Actor, filter LogFilter) (*LogResult, error) {
	query := s.db.Model(&model.SearchLog{})

	switch actor.Role {
	case model.RoleAdmin:
	case model.RoleTeacher:
		query = query.Where("teacher_id = ?", actor.ID)
	case model.RoleStudent:
		query = query.Where("student_id = ?", actor.ID)
	default:
		return nil, apperr.Forbidden("")
	}

	if filter.KBID != 0 {
		query = query.Where("kb_id = ?", filter.KBID)
	}
	if filter.From != nil {
		query = query.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		// Date-only upper bound: include the whole final day.
		query = query.Where("created_at < ?", filter.To.AddDate(0, 0, 1))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, apperr.Internal("", err)
	}

	meta := response.CalculatePagination(filter.Page, filter.PageSize, total)
	var logs []model.SearchLog
	err := query.Order("created_at DESC").
		Offset((meta.CurrentPage - 1) * meta.PerPage).
		Limit(meta.PerPage).
		Find(&logs).Error
	if err != nil {
		return nil, apperr.Internal("", err)
	}
	return &LogResult{Logs: logs, Pagination: meta}, nil
}

// QueryCount is one entry in the top-query ranking.
type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// DailyCount is the number of searches on one day.
type DailyCount struct {
	Day   string `json:"day"`
	Count int64  `json:"count"`
}

// SearchStats summarizes usage over a window.
type SearchStats struct {
	Since          time.Time    `json:"since"`
	TotalSearches  int64        `json:"total_searches"`
	ActiveTeachers int64        `json:"active_teachers"`
	ActiveStudents int64        `json:"active_students"`
	TopQueries     []QueryCount `json:"top_queries"`
	Daily          []DailyCount `json:"daily"`
}

// Stats aggregates search usage for admins over the last windowDays days
// (default 30).
func (s *SearchService) Stats(actor *Actor, kbID int64, windowDays int) (*SearchStats, error) {
	if actor.Role != model.RoleAdmin {
		return nil, apperr.Forbidden("only admins can view search statistics")
	}
	if windowDays <= 0 {
		windowDays = 30
	}
	since := time.Now().AddDate(0, 0, -windowDays)

	base := s.db.Model(&model.SearchLog{}).Where("created_at >= ?", since)
	if kbID != 0 {
		base = base.Where("kb_id = ?", kbID)
	}

	stats := &SearchStats{Since: since}
	if err := base.Session(&gorm.Session{}).Count(&stats.TotalSearches).Error; err != nil {
		return nil, apperr.Internal("", err)
	}
	if err := base.Session(&gorm.Session{}).Where("teacher_id IS NOT NULL").
		Distinct("teacher_id").Count(&stats.ActiveTeachers).Error; err != nil {
		return nil, apperr.Internal("", err)
	}
	if err := base.Session(&gorm.Session{}).Where("student_id IS NOT NULL").
		Distinct("student_id").Count(&stats.ActiveStudents).Error; err != nil {
		return nil, apperr.Internal("", err)
	}

	err := base.Session(&gorm.Session{}).
		Select("query, COUNT(*) AS count").
		Group("query").
		Order("count DESC").
		Limit(defaultStatsTop).
		Scan(&stats.TopQueries).Error
	if err != nil {
		return nil, apperr.Internal("", err)
	}

	err = base.Session(&gorm.Session{}).
		Select("DATE(created_at) AS day, COUNT(*) AS count").
		Group("DATE(created_at)").
		Order("day ASC").
		Scan(&stats.Daily).Error
	if err != nil {
		return nil, apperr.Internal("", err)
	}

	return stats, nil
}
