package sqlite

// Schema DDL. Every statement is idempotent so Initialize can run on every
// attach. Timestamps are TEXT in types.TimeLayout.
const (
	createPlayers = `CREATE TABLE IF NOT EXISTS players (
    player_id INTEGER PRIMARY KEY,
    username TEXT,
    discord_id TEXT,
    balance INTEGER NOT NULL DEFAULT 0,
    bank INTEGER NOT NULL DEFAULT 0,
    bank_limit INTEGER NOT NULL DEFAULT 5000,
    net_worth INTEGER NOT NULL DEFAULT 0,
    last_daily TEXT,
    daily_streak INTEGER NOT NULL DEFAULT 0,
    bio TEXT,
    reputation INTEGER NOT NULL DEFAULT 0,
    favorite_color TEXT,
    prestige INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL
);`

	createPlayerVitals = `CREATE TABLE IF NOT EXISTS player_vitals (
    player_id INTEGER PRIMARY KEY REFERENCES players(player_id) ON DELETE CASCADE,
    level INTEGER NOT NULL DEFAULT 1,
    xp INTEGER NOT NULL DEFAULT 0,
    health INTEGER NOT NULL DEFAULT 100,
    energy INTEGER NOT NULL DEFAULT 100,
    hunger INTEGER NOT NULL DEFAULT 100,
    happiness INTEGER NOT NULL DEFAULT 100,
    fame INTEGER NOT NULL DEFAULT 0,
    total_work_count INTEGER NOT NULL DEFAULT 0,
    crimes_committed INTEGER NOT NULL DEFAULT 0,
    times_jailed INTEGER NOT NULL DEFAULT 0,
    casino_total_bet INTEGER NOT NULL DEFAULT 0,
    casino_total_won INTEGER NOT NULL DEFAULT 0,
    last_work TEXT,
    last_sleep TEXT,
    last_rob TEXT,
    last_crime TEXT,
    hospital_until TEXT,
    jail_until TEXT
);`

	createPlayerAttributes = `CREATE TABLE IF NOT EXISTS player_attributes (
    player_id INTEGER NOT NULL REFERENCES players(player_id) ON DELETE CASCADE,
    key TEXT NOT NULL,
    value TEXT,
    PRIMARY KEY (player_id, key)
);`

	createPlayerSkills = `CREATE TABLE IF NOT EXISTS player_skills (
    player_id INTEGER NOT NULL REFERENCES players(player_id) ON DELETE CASCADE,
    skill_name TEXT NOT NULL,
    xp INTEGER NOT NULL DEFAULT 0,
    level INTEGER NOT NULL DEFAULT 1,
    PRIMARY KEY (player_id, skill_name)
);`

	createItemCatalog = `CREATE TABLE IF NOT EXISTS item_catalog (
    item_id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    category TEXT NOT NULL DEFAULT 'misc',
    price INTEGER NOT NULL DEFAULT 0,
    description TEXT NOT NULL DEFAULT ''
);`

	createPlayerInventory = `CREATE TABLE IF NOT EXISTS player_inventory (
    player_id INTEGER NOT NULL REFERENCES players(player_id) ON DELETE CASCADE,
    item_id TEXT NOT NULL REFERENCES item_catalog(item_id),
    quantity INTEGER NOT NULL CHECK (quantity > 0),
    PRIMARY KEY (player_id, item_id)
);`

	createAchievementCatalog = `CREATE TABLE IF NOT EXISTS achievement_catalog (
    achievement_id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    reward INTEGER NOT NULL DEFAULT 0
);`

	createPlayerAchievements = `CREATE TABLE IF NOT EXISTS player_achievements (
    player_id INTEGER NOT NULL REFERENCES players(player_id) ON DELETE CASCADE,
    achievement_id TEXT NOT NULL REFERENCES achievement_catalog(achievement_id),
    unlocked_at TEXT NOT NULL,
    PRIMARY KEY (player_id, achievement_id)
);`

	createBusinesses = `CREATE TABLE IF NOT EXISTS businesses (
    business_id INTEGER PRIMARY KEY AUTOINCREMENT,
    owner_id INTEGER NOT NULL REFERENCES players(player_id) ON DELETE CASCADE,
    name TEXT NOT NULL DEFAULT '',
    type TEXT NOT NULL DEFAULT '',
    level INTEGER NOT NULL DEFAULT 1,
    balance INTEGER NOT NULL DEFAULT 0,
    revenue_rate INTEGER NOT NULL DEFAULT 0,
    last_collection TEXT,
    employees INTEGER NOT NULL DEFAULT 0,
    active INTEGER NOT NULL DEFAULT 1,
    created_at TEXT NOT NULL
);`

	createProperties = `CREATE TABLE IF NOT EXISTS properties (
    property_id INTEGER PRIMARY KEY AUTOINCREMENT,
    owner_id INTEGER NOT NULL REFERENCES players(player_id) ON DELETE CASCADE,
    property_type TEXT NOT NULL DEFAULT '',
    name TEXT NOT NULL DEFAULT '',
    level INTEGER NOT NULL DEFAULT 1,
    rent_per_hour INTEGER NOT NULL DEFAULT 0,
    last_collected TEXT,
    active INTEGER NOT NULL DEFAULT 1,
    created_at TEXT NOT NULL
);`

	createPets = `CREATE TABLE IF NOT EXISTS pets (
    pet_id INTEGER PRIMARY KEY AUTOINCREMENT,
    owner_id INTEGER NOT NULL REFERENCES players(player_id) ON DELETE CASCADE,
    name TEXT NOT NULL DEFAULT '',
    type TEXT NOT NULL DEFAULT '',
    skin TEXT NOT NULL DEFAULT 'default',
    level INTEGER NOT NULL DEFAULT 1,
    xp INTEGER NOT NULL DEFAULT 0,
    hunger INTEGER NOT NULL DEFAULT 100,
    energy INTEGER NOT NULL DEFAULT 100,
    happiness INTEGER NOT NULL DEFAULT 100,
    last_fed TEXT,
    active INTEGER NOT NULL DEFAULT 1,
    created_at TEXT NOT NULL
);`

	createGuilds = `CREATE TABLE IF NOT EXISTS guilds (
    guild_id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    owner_id INTEGER NOT NULL,
    created_at TEXT NOT NULL,
    level INTEGER NOT NULL DEFAULT 1,
    xp INTEGER NOT NULL DEFAULT 0,
    bank INTEGER NOT NULL DEFAULT 0,
    perks TEXT NOT NULL DEFAULT '[]',
    description TEXT NOT NULL DEFAULT '',
    icon TEXT NOT NULL DEFAULT ''
);`

	createGuildMembers = `CREATE TABLE IF NOT EXISTS guild_members (
    player_id INTEGER PRIMARY KEY REFERENCES players(player_id) ON DELETE CASCADE,
    guild_id TEXT NOT NULL REFERENCES guilds(guild_id) ON DELETE CASCADE,
    guild_role TEXT NOT NULL DEFAULT 'member',
    joined_at TEXT NOT NULL,
    contribution INTEGER NOT NULL DEFAULT 0
);`

	createRelationships = `CREATE TABLE IF NOT EXISTS relationships (
    user_id INTEGER NOT NULL,
    target_id INTEGER NOT NULL,
    affection INTEGER NOT NULL DEFAULT 0,
    status TEXT NOT NULL DEFAULT 'stranger',
    relationship_type TEXT NOT NULL DEFAULT '',
    relationship_level INTEGER NOT NULL DEFAULT 0,
    last_interaction TEXT,
    created_at TEXT NOT NULL,
    PRIMARY KEY (user_id, target_id)
);`

	createQuarantines = `CREATE TABLE IF NOT EXISTS quarantines (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    guild_id INTEGER NOT NULL,
    user_id INTEGER NOT NULL,
    moderator_id INTEGER NOT NULL DEFAULT 0,
    reason TEXT NOT NULL DEFAULT '',
    roles_backup TEXT NOT NULL DEFAULT '[]',
    created_at TEXT NOT NULL,
    expires_at TEXT,
    released_at TEXT,
    active INTEGER NOT NULL DEFAULT 1
);`
)

// Index DDL.
const (
	createIndexBusinessesOwner     = `CREATE INDEX IF NOT EXISTS idx_businesses_owner ON businesses(owner_id);`
	createIndexPropertiesOwner     = `CREATE INDEX IF NOT EXISTS idx_properties_owner ON properties(owner_id);`
	createIndexPetsOwner           = `CREATE INDEX IF NOT EXISTS idx_pets_owner ON pets(owner_id);`
	createIndexGuildMembersGuild   = `CREATE INDEX IF NOT EXISTS idx_guild_members_guild ON guild_members(guild_id);`
	createIndexRelationshipsTarget = `CREATE INDEX IF NOT EXISTS idx_relationships_target ON relationships(target_id);`
	createIndexQuarantinesActive   = `CREATE INDEX IF NOT EXISTS idx_quarantines_active ON quarantines(active, expires_at);`
	createIndexQuarantinesMember   = `CREATE INDEX IF NOT EXISTS idx_quarantines_member ON quarantines(guild_id, user_id);`
	createIndexVitalsLevel         = `CREATE INDEX IF NOT EXISTS idx_player_vitals_level ON player_vitals(level);`
	createIndexPlayersNetWorth     = `CREATE INDEX IF NOT EXISTS idx_players_net_worth ON players(net_worth);`
)

// schemaStatements is the ordered DDL Initialize runs. Parents come before
// the tables that reference them.
var schemaStatements = []string{
	createPlayers,
	createPlayerVitals,
	createPlayerAttributes,
	createPlayerSkills,
	createItemCatalog,
	createPlayerInventory,
	createAchievementCatalog,
	createPlayerAchievements,
	createBusinesses,
	createProperties,
	createPets,
	createGuilds,
	createGuildMembers,
	createRelationships,
	createQuarantines,
	createIndexBusinessesOwner,
	createIndexPropertiesOwner,
	createIndexPetsOwner,
	createIndexGuildMembersGuild,
	createIndexRelationshipsTarget,
	createIndexQuarantinesActive,
	createIndexQuarantinesMember,
	createIndexVitalsLevel,
	createIndexPlayersNetWorth,
}

// requiredColumns lists, per migratable table, the columns the current code
// reads and writes. A table missing any of them is renamed aside.
var requiredColumns = []struct {
	table   string
	columns []string
}{
	{"relationships", []string{"user_id", "target_id", "affection", "status", "relationship_type", "relationship_level", "last_interaction", "created_at"}},
	{"guilds", []string{"guild_id", "name", "owner_id", "created_at", "level", "xp", "bank", "perks", "description", "icon"}},
	{"guild_members", []string{"player_id", "guild_id", "guild_role", "joined_at", "contribution"}},
	{"player_skills", []string{"player_id", "skill_name", "xp", "level"}},
	{"quarantines", []string{"id", "guild_id", "user_id", "moderator_id", "reason", "roles_backup", "created_at", "expires_at", "released_at", "active"}},
}

// colType is the storage class a column's values are coerced to on write.
type colType int

const (
	colInt colType = iota
	colText
	colTime
	colBool
	colJSON
)

// columnTypes describes every writable column, keyed "table.column".
var columnTypes = map[string]colType{
	"players.username":       colText,
	"players.discord_id":     colText,
	"players.balance":        colInt,
	"players.bank":           colInt,
	"players.bank_limit":     colInt,
	"players.net_worth":      colInt,
	"players.last_daily":     colTime,
	"players.daily_streak":   colInt,
	"players.bio":            colText,
	"players.reputation":     colInt,
	"players.favorite_color": colText,
	"players.prestige":       colInt,

	"player_vitals.level":            colInt,
	"player_vitals.xp":               colInt,
	"player_vitals.health":           colInt,
	"player_vitals.energy":           colInt,
	"player_vitals.hunger":           colInt,
	"player_vitals.happiness":        colInt,
	"player_vitals.fame":             colInt,
	"player_vitals.total_work_count": colInt,
	"player_vitals.crimes_committed": colInt,
	"player_vitals.times_jailed":     colInt,
	"player_vitals.casino_total_bet": colInt,
	"player_vitals.casino_total_won": colInt,
	"player_vitals.last_work":        colTime,
	"player_vitals.last_sleep":       colTime,
	"player_vitals.last_rob":         colTime,
	"player_vitals.last_crime":       colTime,
	"player_vitals.hospital_until":   colTime,
	"player_vitals.jail_until":       colTime,

	"businesses.name":            colText,
	"businesses.type":            colText,
	"businesses.level":           colInt,
	"businesses.balance":         colInt,
	"businesses.revenue_rate":    colInt,
	"businesses.last_collection": colTime,
	"businesses.employees":       colInt,
	"businesses.active":          colBool,

	"properties.property_type":  colText,
	"properties.name":           colText,
	"properties.level":          colInt,
	"properties.rent_per_hour":  colInt,
	"properties.last_collected": colTime,
	"properties.active":         colBool,

	"pets.name":      colText,
	"pets.type":      colText,
	"pets.skin":      colText,
	"pets.level":     colInt,
	"pets.xp":        colInt,
	"pets.hunger":    colInt,
	"pets.energy":    colInt,
	"pets.happiness": colInt,
	"pets.last_fed":  colTime,
	"pets.active":    colBool,

	"guilds.name":        colText,
	"guilds.owner_id":    colInt,
	"guilds.level":       colInt,
	"guilds.xp":          colInt,
	"guilds.bank":        colInt,
	"guilds.perks":       colJSON,
	"guilds.description": colText,
	"guilds.icon":        colText,
}

// notNullText lists text columns declared NOT NULL; a nil write stores ''.
var notNullText = map[string]bool{
	"businesses.name":          true,
	"businesses.type":          true,
	"properties.property_type": true,
	"properties.name":          true,
	"pets.name":                true,
	"pets.type":                true,
	"pets.skin":                true,
	"guilds.description":       true,
	"guilds.icon":              true,
}
