package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSkillLevel(t *testing.T) {
	tests := []struct {
		xp   int64
		want int64
	}{
		{xp: -10, want: 1},
		{xp: 0, want: 1},
		{xp: 20, want: 1},
		{xp: 99, want: 1},
		{xp: 100, want: 2},
		{xp: 50000, want: MaxSkillLevel},
		{xp: 1 << 40, want: MaxSkillLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SkillLevel(tt.xp), "xp=%d", tt.xp)
	}
}

func TestSkillLevelMonotonic(t *testing.T) {
	prev := SkillLevel(0)
	for xp := int64(1); xp <= 60000; xp += 37 {
		got := SkillLevel(xp)
		assert.GreaterOrEqual(t, got, prev, "xp=%d", xp)
		prev = got
	}
}

func TestApplyPlayerXP(t *testing.T) {
	tests := []struct {
		name            string
		level, xp, gain int64
		wantLvl, wantXP int64
	}{
		{name: "no level up", level: 1, xp: 0, gain: 50, wantLvl: 1, wantXP: 50},
		{name: "exact level up", level: 1, xp: 50, gain: 50, wantLvl: 2, wantXP: 0},
		{name: "carry over two levels", level: 1, xp: 0, gain: 350, wantLvl: 3, wantXP: 50},
		{name: "zero level treated as one", level: 0, xp: 0, gain: 10, wantLvl: 1, wantXP: 10},
		{name: "negative clamps to zero", level: 3, xp: 10, gain: -50, wantLvl: 3, wantXP: 0},
		{name: "cap stops leveling", level: MaxPlayerLevel, xp: 0, gain: 1 << 40, wantLvl: MaxPlayerLevel, wantXP: 1 << 40},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lvl, xp := ApplyPlayerXP(tt.level, tt.xp, tt.gain)
			assert.Equal(t, tt.wantLvl, lvl)
			assert.Equal(t, tt.wantXP, xp)
		})
	}
}
