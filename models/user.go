package models

import (
	"log"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// User roles
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User statuses
const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)

// User represents a dashboard account
type User struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Phone        string     `gorm:"type:varchar(20);uniqueIndex" json:"phone"`
	Username     string     `gorm:"type:varchar(50)" json:"username"`
	PasswordHash string     `gorm:"type:varchar(255)" json:"-"`
	Role         string     `gorm:"type:varchar(20);default:'user'" json:"role"`
	Status       string     `gorm:"type:varchar(20);default:'active'" json:"status"`
	LastLoginAt  *time.Time `json:"last_login_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// SetPassword hashes and stores the password
func (u *User) SetPassword(plain string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return nil
}

// CheckPassword verifies a plaintext password against the stored hash
func (u *User) CheckPassword(plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(plain)) == nil
}

// UserConfig holds per-user strategy thresholds and preferences.
// One row per user, created with defaults on first access, updated in
// place, never deleted.
type UserConfig struct {
	ID                 uint            `gorm:"primaryKey" json:"id"`
	UserID             uint            `gorm:"uniqueIndex" json:"user_id"`
	B1JThreshold       decimal.Decimal `gorm:"type:decimal(10,4);default:13" json:"b1_j_threshold"`
	B1MacdDifThreshold decimal.Decimal `gorm:"type:decimal(10,4);default:0" json:"b1_macd_dif_threshold"`
	S1JHighThreshold   decimal.Decimal `gorm:"type:decimal(10,4);default:90" json:"s1_j_high_threshold"`
	ExcludedIndustries string          `gorm:"type:text" json:"excluded_industries"` // JSON array
	BacktestPoolCodes  string          `gorm:"type:text" json:"backtest_pool_codes"` // JSON array
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// DefaultUserConfig returns the config values a new user starts with
func DefaultUserConfig(userID uint) UserConfig {
	return UserConfig{
		UserID:             userID,
		B1JThreshold:       decimal.NewFromInt(13),
		B1MacdDifThreshold: decimal.NewFromInt(0),
		S1JHighThreshold:   decimal.NewFromInt(90),
		ExcludedIndustries: "[]",
		BacktestPoolCodes:  "[]",
	}
}

// TableName overrides the default table name
func (UserConfig) TableName() string {
	return "user_configs"
}

// ObservationEntry is one stock on a user's watchlist, with a snapshot of
// the signal factors at the time it was added.
type ObservationEntry struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	UserID         uint            `gorm:"uniqueIndex:uk_watch_user_code;index" json:"user_id"`
	TsCode         string          `gorm:"type:varchar(20);uniqueIndex:uk_watch_user_code" json:"ts_code"`
	StockName      string          `gorm:"type:varchar(100)" json:"stock_name"`
	AddedPrice     decimal.Decimal `gorm:"type:decimal(15,2)" json:"added_price"`
	AddedDate      string          `gorm:"type:varchar(8)" json:"added_date"`
	FactorSnapshot string          `gorm:"type:text" json:"factor_snapshot"` // JSON matched tag names at add time
	Note           string          `gorm:"type:varchar(500)" json:"note"`
	IsActive       bool            `gorm:"default:true" json:"is_active"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// TableName overrides the default table name
func (ObservationEntry) TableName() string {
	return "user_watchlist"
}

// MigrateUserModels runs database migrations for user models and seeds the
// default admin account when no admin exists.
func MigrateUserModels(db *gorm.DB) error {
	err := db.AutoMigrate(
		&User{},
		&UserConfig{},
		&ObservationEntry{},
	)
	if err != nil {
		return err
	}

	var count int64
	db.Model(&User{}).Where("role = ?", RoleAdmin).Count(&count)
	if count == 0 {
		admin := User{
			Phone:    "13800000000",
			Username: "admin",
			Role:     RoleAdmin,
			Status:   UserStatusActive,
		}
		if err := admin.SetPassword("admin123"); err != nil {
			return err
		}
		if err := db.Create(&admin).Error; err != nil {
			return err
		}
		log.Println("Seeded default admin user, change the password after first login")
	}

	return nil
}
