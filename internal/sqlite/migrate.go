// This file implements schema reconciliation on attach: tables whose column
// set no longer matches what the code needs are renamed aside, then the
// idempotent DDL recreates them empty and the catalogs are seeded.
package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// RenamedTable records one rename-aside.
type RenamedTable struct {
	Table   string   `json:"table"`
	Legacy  string   `json:"legacy"`
	Missing []string `json:"missing"`
}

// MigrationReport lists the tables Initialize renamed aside.
type MigrationReport struct {
	Renamed []RenamedTable `json:"renamed"`
}

// initialize runs migration, DDL and seeding. The caller holds b.mu.
func (b *Backend) initialize(ctx context.Context) (MigrationReport, error) {
	var report MigrationReport
	for _, req := range requiredColumns {
		renamed, err := b.migrateIfIncompatible(ctx, req.table, req.columns)
		if err != nil {
			b.logger.Warn("rename-aside failed, continuing with existing table",
				zap.String("table", req.table), zap.Error(err))
			continue
		}
		if renamed != nil {
			report.Renamed = append(report.Renamed, *renamed)
		}
	}

	for _, stmt := range schemaStatements {
		if _, err := b.db.ExecContext(ctx, stmt); err != nil {
			return report, fmt.Errorf("executing DDL: %w", err)
		}
	}

	if err := seedCatalogs(ctx, b.db); err != nil {
		b.logger.Warn("seeding catalogs failed", zap.Error(err))
	}
	return report, nil
}

// tableColumns returns the column names of table, empty when the table does
// not exist.
func tableColumns(ctx context.Context, q sqlx.QueryerContext, table string) (map[string]bool, error) {
	rows, err := q.QueryxContext(ctx, "SELECT name FROM pragma_table_info(?)", table)
	if err != nil {
		return nil, fmt.Errorf("reading columns of %s: %w", table, err)
	}
	defer rows.Close()

	cols := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning column of %s: %w", table, err)
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

func tableExists(ctx context.Context, q sqlx.QueryerContext, name string) (bool, error) {
	var n int
	err := sqlx.GetContext(ctx, q, &n,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name)
	if err != nil {
		return false, fmt.Errorf("checking table %s: %w", name, err)
	}
	return n > 0, nil
}

// migrateIfIncompatible moves table aside when it exists but lacks one of
// the required columns. Old rows are copied into a constraint-free legacy
// table and are never forward-migrated. Indexes go with the dropped table.
func (b *Backend) migrateIfIncompatible(ctx context.Context, table string, required []string) (*RenamedTable, error) {
	cols, err := tableColumns(ctx, b.db, table)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, nil
	}
	var missing []string
	for _, c := range required {
		if !cols[c] {
			missing = append(missing, c)
		}
	}
	if len(missing) == 0 {
		return nil, nil
	}

	legacy, err := b.legacyName(ctx, table)
	if err != nil {
		return nil, err
	}

	// The legacy copy is built with CREATE TABLE AS, which carries no
	// constraints, so later deletes on players or guilds never reach it.
	// The drop runs on one pinned connection with foreign_keys off (the
	// pragma is per-connection) so it neither cascades into child tables
	// nor fails on their references, which keep the canonical name.
	conn, err := b.db.Connx(ctx)
	if err != nil {
		return nil, fmt.Errorf("pinning connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
		return nil, fmt.Errorf("disabling foreign keys: %w", err)
	}
	defer conn.ExecContext(context.WithoutCancel(ctx), "PRAGMA foreign_keys = ON")

	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning rename: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE %s AS SELECT * FROM %s`, quoteIdent(legacy), quoteIdent(table))); err != nil {
		return nil, fmt.Errorf("copying %s to %s: %w", table, legacy, err)
	}
	if _, err := tx.ExecContext(ctx, "DROP TABLE "+quoteIdent(table)); err != nil {
		return nil, fmt.Errorf("dropping %s: %w", table, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing rename of %s: %w", table, err)
	}

	b.logger.Warn("incompatible table renamed aside",
		zap.String("table", table),
		zap.String("legacy", legacy),
		zap.Strings("missing_columns", missing),
	)
	return &RenamedTable{Table: table, Legacy: legacy, Missing: missing}, nil
}

// legacyName picks <table>_legacy_<unix>, suffixed _<n> when taken.
func (b *Backend) legacyName(ctx context.Context, table string) (string, error) {
	base := fmt.Sprintf("%s_legacy_%d", table, b.now().Unix())
	name := base
	for n := 1; ; n++ {
		exists, err := tableExists(ctx, b.db, name)
		if err != nil {
			return "", err
		}
		if !exists {
			return name, nil
		}
		name = fmt.Sprintf("%s_%d", base, n)
	}
}

// quoteIdent quotes an SQL identifier.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
