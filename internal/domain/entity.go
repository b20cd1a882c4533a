package domain

import (
	"time"
)

// TokenInfo is the persisted registry entry for a token
type TokenInfo struct {
	Symbol       string    `gorm:"primaryKey" json:"symbol"`
	Name         string    `json:"name"`
	Mint         string    `json:"mint" gorm:"index"`
	Decimals     int32     `json:"decimals"`
	LogoURI      string    `json:"logo_uri"`
	IconPath     string    `json:"icon_path"`
	LastSyncedAt time.Time `json:"last_synced_at"` // Last icon sync time
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// MarketInfo is the persisted registry entry for a spot market
type MarketInfo struct {
	Address         string    `gorm:"primaryKey" json:"address"`
	Symbol          string    `json:"symbol" gorm:"index"`
	BaseSymbol      string    `json:"base_symbol"`
	QuoteSymbol     string    `json:"quote_symbol"`
	GroupAddress    string    `json:"group_address"`
	InventorySource string    `json:"inventory_source"`
	IsActive        bool      `json:"is_active" gorm:"index"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// EventCursor records the next event sequence number a consumer has not yet
// acted on for one market's event queue.
type EventCursor struct {
	Consumer      string    `gorm:"primaryKey" json:"consumer"`
	MarketAddress string    `gorm:"primaryKey" json:"market_address"`
	NextSeq       uint64    `json:"next_seq"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// AppConfig represents user-specific configuration (Key-Value)
type AppConfig struct {
	Key       string    `gorm:"primaryKey" json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
