package types

import "time"

// DefaultAccrualWindow caps how much offline income a business or property
// accumulates before it must be collected.
const DefaultAccrualWindow = 24 * time.Hour

// AccruedIncome is the accrual function: rate per hour times the hours
// elapsed since last, clamped to [0, window]. A zero window means uncapped.
// The result is truncated toward zero.
func AccruedIncome(rate int64, last Timestamp, now time.Time, window time.Duration) int64 {
	if rate <= 0 || !last.Valid() {
		return 0
	}
	elapsed := now.Sub(last.Time)
	if elapsed < 0 {
		elapsed = 0
	}
	if window > 0 && elapsed > window {
		elapsed = window
	}
	return int64(float64(rate) * elapsed.Hours())
}

// Business is a passive-income venture owned by a player.
type Business struct {
	BusinessID     int64     `db:"business_id" json:"business_id"`
	OwnerID        EntityID  `db:"owner_id" json:"owner_id"`
	Name           string    `db:"name" json:"name"`
	BusinessType   string    `db:"type" json:"business_type"`
	Level          int64     `db:"level" json:"level"`
	Balance        int64     `db:"balance" json:"balance"`
	RevenuePerHour int64     `db:"revenue_rate" json:"revenue_per_hour"`
	LastCollected  Timestamp `db:"last_collection" json:"last_collected"`
	Employees      int64     `db:"employees" json:"employees"`
	Active         bool      `db:"active" json:"active"`
}

// AccruedAmount returns the uncollected revenue at now.
func (b Business) AccruedAmount(now time.Time, window time.Duration) int64 {
	return AccruedIncome(b.RevenuePerHour, b.LastCollected, now, window)
}

// BusinessFields maps caller-facing field names to businesses columns.
var BusinessFields = map[string]string{
	"name":             "name",
	"business_type":    "type",
	"type":             "type",
	"level":            "level",
	"balance":          "balance",
	"revenue_per_hour": "revenue_rate",
	"revenue_rate":     "revenue_rate",
	"last_collected":   "last_collection",
	"last_collection":  "last_collection",
	"employees":        "employees",
	"active":           "active",
}

// Property is a rent-producing real-estate holding owned by a player.
type Property struct {
	PropertyID    int64     `db:"property_id" json:"property_id"`
	OwnerID       EntityID  `db:"owner_id" json:"owner_id"`
	PropertyType  string    `db:"property_type" json:"property_type"`
	Name          string    `db:"name" json:"name"`
	Level         int64     `db:"level" json:"level"`
	RentPerHour   int64     `db:"rent_per_hour" json:"rent_per_hour"`
	LastCollected Timestamp `db:"last_collected" json:"last_collected"`
	Active        bool      `db:"active" json:"active"`
}

// AccruedAmount returns the uncollected rent at now.
func (p Property) AccruedAmount(now time.Time, window time.Duration) int64 {
	return AccruedIncome(p.RentPerHour, p.LastCollected, now, window)
}

// PropertyFields maps caller-facing field names to properties columns.
var PropertyFields = map[string]string{
	"property_type":  "property_type",
	"name":           "name",
	"level":          "level",
	"rent_per_hour":  "rent_per_hour",
	"last_collected": "last_collected",
	"active":         "active",
}

// Pet is a companion owned by a player.
type Pet struct {
	PetID     int64     `db:"pet_id" json:"pet_id"`
	OwnerID   EntityID  `db:"owner_id" json:"owner_id"`
	Name      string    `db:"name" json:"name"`
	PetType   string    `db:"type" json:"pet_type"`
	Skin      string    `db:"skin" json:"skin"`
	Level     int64     `db:"level" json:"level"`
	XP        int64     `db:"xp" json:"xp"`
	Hunger    int64     `db:"hunger" json:"hunger"`
	Energy    int64     `db:"energy" json:"energy"`
	Happiness int64     `db:"happiness" json:"happiness"`
	LastFed   Timestamp `db:"last_fed" json:"last_fed"`
	Active    bool      `db:"active" json:"active"`
}

// PetFields maps caller-facing field names to pets columns.
var PetFields = map[string]string{
	"name":      "name",
	"pet_type":  "type",
	"type":      "type",
	"skin":      "skin",
	"level":     "level",
	"xp":        "xp",
	"hunger":    "hunger",
	"energy":    "energy",
	"happiness": "happiness",
	"last_fed":  "last_fed",
	"active":    "active",
}
