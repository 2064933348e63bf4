package types

import "math"

// Skill progression: level 1 spans 0-99 xp and every further level needs 15%
// more xp than the previous one, up to MaxSkillLevel.
const (
	skillBaseXP      = 100
	skillMultiplier  = 1.15
	MaxSkillLevel    = 100
	skillLevelCapXP  = 50000
	playerXPPerLevel = 100
	MaxPlayerLevel   = 10000
)

// SkillLevel returns the level reached with xp accumulated skill experience.
// It is monotonic non-decreasing in xp.
func SkillLevel(xp int64) int64 {
	if xp < 0 {
		xp = 0
	}
	if xp >= skillLevelCapXP {
		return MaxSkillLevel
	}
	var level, total int64 = 1, 0
	for level < MaxSkillLevel {
		next := int64(skillBaseXP * math.Pow(skillMultiplier, float64(level-1)))
		if total+next > xp {
			return level
		}
		total += next
		level++
	}
	return MaxSkillLevel
}

// ApplyPlayerXP adds gained xp to a player's (level, xp) pair, carrying over
// into new levels. Each level costs level*100 xp.
func ApplyPlayerXP(level, xp, gained int64) (int64, int64) {
	if level < 1 {
		level = 1
	}
	xp += gained
	if xp < 0 {
		xp = 0
	}
	for xp >= level*playerXPPerLevel && level < MaxPlayerLevel {
		xp -= level * playerXPPerLevel
		level++
	}
	return level, xp
}
