package services

import (
	"encoding/json"
	"errors"

	"gorm.io/gorm"

	"ttss_backend/models"
)

// Watchlist errors
var (
	ErrAlreadyWatched = errors.New("stock already on watchlist")
	ErrNotWatched     = errors.New("stock not on watchlist")
)

// WatchlistService manages per-user observation pools
type WatchlistService struct {
	db *gorm.DB
}

var watchlistService *WatchlistService

// InitWatchlistService creates the global watchlist service
func InitWatchlistService(db *gorm.DB) *WatchlistService {
	watchlistService = &WatchlistService{db: db}
	return watchlistService
}

// GetWatchlistService returns the global watchlist service
func GetWatchlistService() *WatchlistService {
	return watchlistService
}

// List returns the user's active watchlist entries, newest first
func (s *WatchlistService) List(userID uint) ([]models.ObservationEntry, error) {
	var entries []models.ObservationEntry
	err := s.db.Where("user_id = ? AND is_active = ?", userID, true).
		Order("created_at DESC").
		Find(&entries).Error
	return entries, err
}

// Add puts a stock on the user's watchlist with a snapshot of its latest
// signal factors. Duplicate codes are rejected.
func (s *WatchlistService) Add(userID uint, code, note string) (*models.ObservationEntry, error) {
	var existing models.ObservationEntry
	err := s.db.Where("user_id = ? AND ts_code = ?", userID, code).First(&existing).Error
	if err == nil {
		if existing.IsActive {
			return nil, ErrAlreadyWatched
		}
		// re-activate a previously removed entry
		existing.IsActive = true
		existing.Note = note
		s.snapshotFactors(&existing)
		if err := s.db.Save(&existing).Error; err != nil {
			return nil, err
		}
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	entry := models.ObservationEntry{
		UserID:   userID,
		TsCode:   code,
		Note:     note,
		IsActive: true,
	}
	s.snapshotFactors(&entry)

	if err := s.db.Create(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

// snapshotFactors fills the entry with the stock's latest price and
// matched tags. Missing data leaves the snapshot empty, not an error.
func (s *WatchlistService) snapshotFactors(entry *models.ObservationEntry) {
	var bar models.DailyBar
	err := s.db.Where("ts_code = ?", entry.TsCode).
		Order("trade_date DESC").
		First(&bar).Error
	if err != nil {
		return
	}
	entry.StockName = bar.StockName
	entry.AddedPrice = bar.Close
	entry.AddedDate = bar.TradeDate

	var summary models.SignalSummary
	err = s.db.Where("ts_code = ? AND trade_date = ? AND strategy_type = ?",
		entry.TsCode, bar.TradeDate, models.StrategyB1).
		First(&summary).Error
	if err == nil && summary.MatchedTagNames != "" {
		entry.FactorSnapshot = summary.MatchedTagNames
	} else {
		b, _ := json.Marshal([]string{})
		entry.FactorSnapshot = string(b)
	}
}

// Remove deactivates a watchlist entry, keeping history
func (s *WatchlistService) Remove(userID uint, code string) error {
	res := s.db.Model(&models.ObservationEntry{}).
		Where("user_id = ? AND ts_code = ? AND is_active = ?", userID, code, true).
		Update("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotWatched
	}
	return nil
}

// UpdateNote changes the note on an active entry
func (s *WatchlistService) UpdateNote(userID uint, code, note string) (*models.ObservationEntry, error) {
	var entry models.ObservationEntry
	err := s.db.Where("user_id = ? AND ts_code = ? AND is_active = ?", userID, code, true).
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotWatched
		}
		return nil, err
	}
	entry.Note = note
	if err := s.db.Save(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}
