package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"shortvid-saver/pkg/models"
)

// SQLite implements the Storage interface using SQLite
type SQLite struct {
	db *gorm.DB
}

// NewSQLite creates a new SQLite storage
func NewSQLite(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("error creating database directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	if err := db.AutoMigrate(
		&models.HistoryRecord{},
		&models.User{},
		&models.Session{},
	); err != nil {
		return nil, fmt.Errorf("error migrating database: %w", err)
	}

	return &SQLite{db: db}, nil
}

// UpsertRecord creates or merges a history record by record id and trims
// retained history to the cap, most-recent-first
func (s *SQLite) UpsertRecord(record *models.HistoryRecord) error {
	if err := s.db.Save(record).Error; err != nil {
		return err
	}
	return s.trim()
}

// trim deletes everything older than the newest MaxHistoryRecords entries
func (s *SQLite) trim() error {
	var ids []string
	err := s.db.Model(&models.HistoryRecord{}).
		Order("created_at DESC").
		Limit(models.MaxHistoryRecords).
		Pluck("record_id", &ids).Error
	if err != nil {
		return err
	}
	if len(ids) < models.MaxHistoryRecords {
		return nil
	}
	return s.db.Where("record_id NOT IN ?", ids).
		Delete(&models.HistoryRecord{}).Error
}

// PatchRecord applies partial updates to a record by record id
func (s *SQLite) PatchRecord(recordID string, patch map[string]interface{}) error {
	return s.db.Model(&models.HistoryRecord{}).
		Where("record_id = ?", recordID).
		Updates(patch).Error
}

// PatchRecordByDownloadID applies partial updates by download id
func (s *SQLite) PatchRecordByDownloadID(downloadID int64, patch map[string]interface{}) error {
	return s.db.Model(&models.HistoryRecord{}).
		Where("download_id = ?", downloadID).
		Updates(patch).Error
}

// GetRecord retrieves a record by record id, nil when absent
func (s *SQLite) GetRecord(recordID string) (*models.HistoryRecord, error) {
	var record models.HistoryRecord
	if err := s.db.Where("record_id = ?", recordID).First(&record).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// ListRecords returns up to limit records, most-recent-first
func (s *SQLite) ListRecords(limit int) ([]*models.HistoryRecord, error) {
	if limit <= 0 || limit > models.MaxHistoryRecords {
		limit = models.MaxHistoryRecords
	}
	var records []*models.HistoryRecord
	err := s.db.Order("created_at DESC").Limit(limit).Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// DeleteRecord removes a record by record id
func (s *SQLite) DeleteRecord(recordID string) error {
	return s.db.Where("record_id = ?", recordID).
		Delete(&models.HistoryRecord{}).Error
}

// ClearRecords removes all history records
func (s *SQLite) ClearRecords() error {
	return s.db.Where("1 = 1").Delete(&models.HistoryRecord{}).Error
}

// GetStats returns aggregate history statistics
func (s *SQLite) GetStats() (*models.Stats, error) {
	stats := &models.Stats{}

	if err := s.db.Model(&models.HistoryRecord{}).Count(&stats.TotalRecords).Error; err != nil {
		return nil, err
	}
	s.db.Model(&models.HistoryRecord{}).
		Where("status = ?", models.DownloadComplete).Count(&stats.Completed)
	s.db.Model(&models.HistoryRecord{}).
		Where("status = ?", models.DownloadInterrupted).Count(&stats.Interrupted)
	s.db.Model(&models.HistoryRecord{}).
		Where("status = ?", models.DownloadInProgress).Count(&stats.InProgress)
	s.db.Model(&models.HistoryRecord{}).
		Where("status = ?", models.DownloadComplete).
		Select("COALESCE(SUM(total_bytes), 0)").Scan(&stats.TotalBytes)

	today := time.Now().Truncate(24 * time.Hour)
	s.db.Model(&models.HistoryRecord{}).
		Where("created_at >= ?", today).Count(&stats.RecordsToday)
	s.db.Model(&models.HistoryRecord{}).
		Where("created_at >= ?", today.AddDate(0, 0, -7)).Count(&stats.RecordsThisWeek)

	if stats.Completed+stats.Interrupted > 0 {
		stats.SuccessRate = float64(stats.Completed) / float64(stats.Completed+stats.Interrupted) * 100
	}

	return stats, nil
}

// SaveUser persists an API user
func (s *SQLite) SaveUser(user *models.User) error {
	return s.db.Save(user).Error
}

// GetUserByUsername retrieves an API user
func (s *SQLite) GetUserByUsername(username string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("username = ?", username).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// SaveSession persists an API session
func (s *SQLite) SaveSession(session *models.Session) error {
	return s.db.Save(session).Error
}

// GetSessionByToken retrieves an active session by token
func (s *SQLite) GetSessionByToken(token string) (*models.Session, error) {
	var session models.Session
	err := s.db.Where("token = ? AND active = ?", token, true).First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// InvalidateSession deactivates a session
func (s *SQLite) InvalidateSession(sessionID string) error {
	return s.db.Model(&models.Session{}).
		Where("id = ?", sessionID).
		Update("active", false).Error
}

// CleanupExpiredSessions deactivates sessions past their expiry
func (s *SQLite) CleanupExpiredSessions() error {
	return s.db.Model(&models.Session{}).
		Where("expires_at < ?", time.Now()).
		Update("active", false).Error
}

// Close closes the storage connection
func (s *SQLite) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
