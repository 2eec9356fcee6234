package services

import (
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/jaehyun/paperflow/internal/models"
	"github.com/jaehyun/paperflow/pkg/logger"
)

// pendingStaleAfter is how long a review may sit pending before the monitor
// considers it stuck. A crashed worker leaves pending rows behind, and the
// ledger is the only place that shows it.
const pendingStaleAfter = 30 * time.Minute

// PendingMonitor periodically reports review requests stuck in pending. It
// only observes; stuck rows are resolved by operators rerunning the review.
type PendingMonitor struct {
	db   *gorm.DB
	cron *cron.Cron
}

// StartPendingMonitor begins the periodic stale-pending sweep.
func StartPendingMonitor(db *gorm.DB) *PendingMonitor {
	m := &PendingMonitor{
		db:   db,
		cron: cron.New(),
	}

	if _, err := m.cron.AddFunc("@every 10m", m.sweep); err != nil {
		logger.Errorf("[PendingMonitor] Failed to register sweep: %v", err)
		return m
	}
	m.cron.Start()
	logger.Infof("[PendingMonitor] Started, reporting reviews pending longer than %s", pendingStaleAfter)
	return m
}

// Stop halts the sweep schedule.
func (m *PendingMonitor) Stop() {
	m.cron.Stop()
}

func (m *PendingMonitor) sweep() {
	cutoff := time.Now().UTC().Add(-pendingStaleAfter)

	var stale []models.ReviewRequest
	err := m.db.Select("id, manuscript_id, created_at").
		Where("status = ? AND created_at < ?", models.ReviewStatusPending, cutoff).
		Order("created_at ASC").
		Limit(50).
		Find(&stale).Error
	if err != nil {
		logger.Errorf("[PendingMonitor] Sweep failed: %v", err)
		return
	}
	if len(stale) == 0 {
		return
	}

	oldest := time.Since(stale[0].CreatedAt).Round(time.Minute)
	logger.Warnf("[PendingMonitor] %d review(s) pending longer than %s, oldest is review %d (manuscript %d, age %s)",
		len(stale), pendingStaleAfter, stale[0].ID, stale[0].ManuscriptID, oldest)
}
