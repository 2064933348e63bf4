package types

// Guild roles.
const (
	GuildRoleLeader = "leader"
	GuildRoleMember = "member"
)

// Guild is a player-run group with a shared bank.
type Guild struct {
	GuildID     string    `db:"guild_id" json:"guild_id"`
	Name        string    `db:"name" json:"name"`
	OwnerID     EntityID  `db:"owner_id" json:"owner_id"`
	CreatedAt   Timestamp `db:"created_at" json:"created_at"`
	Level       int64     `db:"level" json:"level"`
	XP          int64     `db:"xp" json:"xp"`
	Bank        int64     `db:"bank" json:"bank"`
	Perks       string    `db:"perks" json:"perks"`
	Description string    `db:"description" json:"description"`
	Icon        string    `db:"icon" json:"icon"`
	MemberCount int64     `db:"member_count" json:"member_count"`
}

// GuildFields maps caller-facing field names to guilds columns. The member
// count is derived and not writable.
var GuildFields = map[string]string{
	"name":        "name",
	"owner_id":    "owner_id",
	"level":       "level",
	"xp":          "xp",
	"bank":        "bank",
	"perks":       "perks",
	"description": "description",
	"icon":        "icon",
}

// GuildMember is one player's membership row.
type GuildMember struct {
	PlayerID     EntityID  `db:"player_id" json:"player_id"`
	GuildID      string    `db:"guild_id" json:"guild_id"`
	Role         string    `db:"guild_role" json:"guild_role"`
	JoinedAt     Timestamp `db:"joined_at" json:"joined_at"`
	Contribution int64     `db:"contribution" json:"contribution"`
}

// Relationship statuses.
const (
	RelationshipStranger = "stranger"
)

// Relationship is the directional bond from UserID toward TargetID. The
// reverse direction is a separate row.
type Relationship struct {
	UserID            EntityID  `db:"user_id" json:"user_id"`
	TargetID          EntityID  `db:"target_id" json:"target_id"`
	Affection         int64     `db:"affection" json:"affection"`
	Status            string    `db:"status" json:"status"`
	RelationshipType  string    `db:"relationship_type" json:"relationship_type"`
	RelationshipLevel int64     `db:"relationship_level" json:"relationship_level"`
	LastInteraction   Timestamp `db:"last_interaction" json:"last_interaction"`
	CreatedAt         Timestamp `db:"created_at" json:"created_at"`
}

// LeaderboardEntry is one ranked row returned by TopN.
type LeaderboardEntry struct {
	PlayerID EntityID `db:"player_id" json:"player_id"`
	Value    int64    `db:"value" json:"value"`
}
