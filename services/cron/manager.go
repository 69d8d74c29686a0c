// Package cron runs the background maintenance jobs.
package cron

import (
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/casehub/casehub/model"
)

// staleTaskAge is how long an embedding task may sit in running before it is
// presumed dead. Indexing normally finishes in minutes.
const staleTaskAge = time.Hour

// CronManager schedules background jobs.
type CronManager struct {
	cron *cron.Cron
	db   *gorm.DB
}

// NewCronManager creates a manager with all jobs registered but not started.
func NewCronManager(db *gorm.DB) *CronManager {
	return &CronManager{
		cron: cron.New(),
		db:   db,
	}
}

// Start registers and launches the scheduled jobs.
func (m *CronManager) Start() error {
	// Sweep stale embedding tasks every 15 minutes. A task stuck in
	// running means the process died mid-index; the document stays
	// approved and can be re-run.
	_, err := m.cron.AddFunc("*/15 * * * *", m.sweepStaleEmbeddingTasks)
	if err != nil {
		return err
	}

	m.cron.Start()
	log.Println("Cron manager started")
	return nil
}

// Stop halts the scheduler and waits for running jobs.
func (m *CronManager) Stop() {
	ctx := m.cron.Stop()
	<-ctx.Done()
	log.Println("Cron manager stopped")
}

// sweepStaleEmbeddingTasks fails running tasks older than staleTaskAge.
func (m *CronManager) sweepStaleEmbeddingTasks() {
	cutoff := time.Now().Add(-staleTaskAge)
	now := time.Now()

	result := m.db.Model(&model.EmbeddingTask{}).
		Where("status = ? AND started_at < ?", model.EmbeddingTaskRunning, cutoff).
		Updates(map[string]interface{}{
			"status":      model.EmbeddingTaskFailed,
			"finished_at": now,
			"message":     "task exceeded maximum runtime and was marked failed",
		})
	if result.Error != nil {
		log.Printf("stale task sweep failed: %v", result.Error)
		return
	}
	if result.RowsAffected > 0 {
		log.Printf("stale task sweep: marked %d tasks failed", result.RowsAffected)
	}
}
