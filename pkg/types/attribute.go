package types

import (
	"sort"
	"strings"
)

// AttributeKind says where an attribute key lives physically. The set is
// closed: every key resolves to exactly one kind through ClassifyAttribute.
type AttributeKind int

const (
	KindOverflow     AttributeKind = iota // generic (player_id, key, value) row
	KindInventory                         // quantity-map rows
	KindAchievements                      // membership-set rows
	KindSkill                             // skill ledger row
	KindGuild                             // guild membership row
	KindCore                              // column of players
	KindVitals                            // column of player_vitals
	KindDocument                          // JSON document in the overflow table
)

var kindNames = [...]string{
	KindOverflow:     "overflow",
	KindInventory:    "inventory",
	KindAchievements: "achievements",
	KindSkill:        "skill",
	KindGuild:        "guild",
	KindCore:         "core",
	KindVitals:       "vitals",
	KindDocument:     "document",
}

func (k AttributeKind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// Composite and relation keys.
const (
	KeyInventory    = "inventory"
	KeyAchievements = "achievements"
	KeyGuildID      = "guild_id"
	KeyGuildRole    = "guild_role"
	KeyNetWorth     = "net_worth"
	KeyBalance      = "balance"
	KeyBank         = "bank"
	KeySpouse       = "spouse"
	KeyFamilyBank   = "family_bank"

	// SkillPrefix marks the skill ledger key family (skill_strength, ...).
	SkillPrefix = "skill_"
)

// CoreColumns lists the players columns addressable as attributes.
var CoreColumns = []string{
	"balance",
	"bank",
	"bank_limit",
	"net_worth",
	"last_daily",
	"daily_streak",
	"bio",
	"reputation",
	"username",
	"favorite_color",
	"discord_id",
	"prestige",
}

// VitalsColumns lists the player_vitals columns addressable as attributes.
var VitalsColumns = []string{
	"level",
	"xp",
	"health",
	"energy",
	"hunger",
	"happiness",
	"fame",
	"total_work_count",
	"crimes_committed",
	"times_jailed",
	"casino_total_bet",
	"casino_total_won",
	"last_work",
	"last_sleep",
	"last_rob",
	"last_crime",
	"hospital_until",
	"jail_until",
}

// JobKeys are vitals-like keys kept in the overflow table because the job
// system versions them separately from the vitals row.
var JobKeys = []string{"job_level", "job_xp", "current_job"}

// DocumentKeys are composite attributes stored as JSON documents.
var DocumentKeys = []string{
	"crypto_portfolio",
	"active_daily_quests",
	"completed_quests_today",
	"kids",
}

// BaseSkills always appear in the entity view, defaulting to level 1.
var BaseSkills = []string{"strength", "intelligence", "charisma", "luck"}

// NetWorthColumns participate in net_worth = balance + bank.
var NetWorthColumns = map[string]bool{
	KeyBalance: true,
	KeyBank:    true,
}

// ReadOnlyAttributes are derived and cannot be written directly.
var ReadOnlyAttributes = map[string]bool{
	KeyNetWorth: true,
}

// CounterColumns are vitals columns that IncrementCounter updates in place.
var CounterColumns = map[string]bool{
	"total_work_count": true,
	"crimes_committed": true,
	"times_jailed":     true,
	"casino_total_bet": true,
	"casino_total_won": true,
	"fame":             true,
}

// LeaderboardFields lists the fields TopN may rank by, per source table.
var LeaderboardFields = map[string]AttributeKind{
	"balance":          KindCore,
	"bank":             KindCore,
	"net_worth":        KindCore,
	"reputation":       KindCore,
	"daily_streak":     KindCore,
	"prestige":         KindCore,
	"level":            KindVitals,
	"xp":               KindVitals,
	"health":           KindVitals,
	"energy":           KindVitals,
	"hunger":           KindVitals,
	"happiness":        KindVitals,
	"fame":             KindVitals,
	"total_work_count": KindVitals,
	"crimes_committed": KindVitals,
	"casino_total_bet": KindVitals,
	"casino_total_won": KindVitals,
}

// attributeKinds is the static name→kind table. Prefix families (skill_)
// are handled in ClassifyAttribute.
var attributeKinds = func() map[string]AttributeKind {
	m := map[string]AttributeKind{
		KeyInventory:    KindInventory,
		KeyAchievements: KindAchievements,
		KeyGuildID:      KindGuild,
		KeyGuildRole:    KindGuild,
	}
	for _, c := range CoreColumns {
		m[c] = KindCore
	}
	for _, c := range VitalsColumns {
		m[c] = KindVitals
	}
	for _, k := range JobKeys {
		m[k] = KindOverflow
	}
	for _, k := range DocumentKeys {
		m[k] = KindDocument
	}
	return m
}()

// ClassifyAttribute resolves key to its kind. The second result reports
// whether the key is part of the known key space; unknown keys classify as
// KindOverflow.
func ClassifyAttribute(key string) (AttributeKind, bool) {
	if kind, ok := attributeKinds[key]; ok {
		return kind, true
	}
	if name, ok := SkillName(key); ok && name != "" {
		return KindSkill, true
	}
	return KindOverflow, false
}

// SkillName extracts the skill name from a skill_<name> key.
func SkillName(key string) (string, bool) {
	if !strings.HasPrefix(key, SkillPrefix) {
		return "", false
	}
	return strings.TrimPrefix(key, SkillPrefix), true
}

// KnownAttributes returns every fixed key of the key space, sorted.
func KnownAttributes() []string {
	keys := make([]string, 0, len(attributeKinds))
	for k := range attributeKinds {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
