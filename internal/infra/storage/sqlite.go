package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"mango_go/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Storage persists the token/market registry and event cursors
type Storage struct {
	db *gorm.DB
}

// NewStorage creates a new SQLite storage instance. An empty path uses the
// per-user default location.
func NewStorage(path string) (*Storage, error) {
	dbPath := path
	if dbPath == "" {
		var err error
		dbPath, err = getDBPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve DB path: %w", err)
		}
	}

	// Ensure directory exists
	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	// Connect to SQLite (Pure Go)
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return newStorage(db)
}

func newStorage(db *gorm.DB) (*Storage, error) {
	if err := db.AutoMigrate(&domain.TokenInfo{}, &domain.MarketInfo{}, &domain.EventCursor{}, &domain.AppConfig{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &Storage{db: db}, nil
}

// getDBPath resolves the database file path based on OS
func getDBPath() (string, error) {
	var configDir string
	var err error

	if runtime.GOOS == "windows" {
		configDir = os.Getenv("LOCALAPPDATA")
		if configDir == "" {
			configDir, err = os.UserConfigDir()
		}
	} else {
		configDir, err = os.UserConfigDir()
	}

	if err != nil {
		return "", err
	}

	return filepath.Join(configDir, "MangoGo", "data", "mango.db"), nil
}

// Close releases the underlying connection pool.
func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ======================================================================================
// Token Operations
// ======================================================================================

// UpsertToken creates or updates token metadata
func (s *Storage) UpsertToken(token *domain.TokenInfo) error {
	return s.db.Save(token).Error
}

// GetToken retrieves token metadata by symbol
func (s *Storage) GetToken(symbol string) (*domain.TokenInfo, error) {
	var token domain.TokenInfo
	err := s.db.First(&token, "symbol = ?", symbol).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil // Not found is not an error
	}
	return &token, err
}

// GetAllTokens retrieves all tokens
func (s *Storage) GetAllTokens() ([]domain.TokenInfo, error) {
	var tokens []domain.TokenInfo
	err := s.db.Order("symbol").Find(&tokens).Error
	return tokens, err
}

// SetTokenIcon records a downloaded icon path
func (s *Storage) SetTokenIcon(symbol, iconPath string) error {
	return s.db.Model(&domain.TokenInfo{}).
		Where("symbol = ?", symbol).
		Updates(map[string]any{"icon_path": iconPath, "last_synced_at": time.Now()}).Error
}

// ======================================================================================
// Market Operations
// ======================================================================================

// UpsertMarket creates or updates a market registry entry
func (s *Storage) UpsertMarket(market *domain.MarketInfo) error {
	return s.db.Save(market).Error
}

// GetMarket retrieves a market by symbol
func (s *Storage) GetMarket(symbol string) (*domain.MarketInfo, error) {
	var market domain.MarketInfo
	err := s.db.First(&market, "symbol = ?", symbol).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &market, err
}

// GetActiveMarkets retrieves every active market ordered by symbol
func (s *Storage) GetActiveMarkets() ([]domain.MarketInfo, error) {
	var markets []domain.MarketInfo
	err := s.db.Where("is_active = ?", true).Order("symbol").Find(&markets).Error
	return markets, err
}

// DeactivateMarketsExcept marks every market not in addresses inactive
func (s *Storage) DeactivateMarketsExcept(addresses []string) error {
	q := s.db.Model(&domain.MarketInfo{})
	if len(addresses) > 0 {
		q = q.Where("address NOT IN ?", addresses)
	} else {
		q = q.Where("1 = 1")
	}
	return q.Update("is_active", false).Error
}

// ======================================================================================
// Cursor Operations
// ======================================================================================

// LoadCursor returns the next unhandled sequence number of a consumer, and
// false when the consumer has never saved one for the market.
func (s *Storage) LoadCursor(consumer, marketAddress string) (uint64, bool, error) {
	var cursor domain.EventCursor
	err := s.db.First(&cursor, "consumer = ? AND market_address = ?", consumer, marketAddress).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return cursor.NextSeq, true, nil
}

// SaveCursor stores the next unhandled sequence number of a consumer.
func (s *Storage) SaveCursor(consumer, marketAddress string, nextSeq uint64) error {
	cursor := domain.EventCursor{
		Consumer:      consumer,
		MarketAddress: marketAddress,
		NextSeq:       nextSeq,
		UpdatedAt:     time.Now(),
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "consumer"}, {Name: "market_address"}},
		DoUpdates: clause.AssignmentColumns([]string{"next_seq", "updated_at"}),
	}).Create(&cursor).Error
}

// ======================================================================================
// Config Operations
// ======================================================================================

// SaveConfig saves a user configuration
func (s *Storage) SaveConfig(key, value string) error {
	config := domain.AppConfig{
		Key:   key,
		Value: value,
	}
	return s.db.Save(&config).Error
}

// LoadConfigMap loads all user configurations as a map
func (s *Storage) LoadConfigMap() (map[string]string, error) {
	var configs []domain.AppConfig
	if err := s.db.Find(&configs).Error; err != nil {
		return nil, err
	}

	result := make(map[string]string)
	for _, cfg := range configs {
		result[cfg.Key] = cfg.Value
	}
	return result, nil
}
