// This file implements built-in catalog seeding on attach. Seeding uses
// INSERT OR IGNORE so rows edited by operators are never overwritten.
package sqlite

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jmoiron/sqlx"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

type catalogItem struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Category    string `yaml:"category"`
	Price       int64  `yaml:"price"`
	Description string `yaml:"description"`
}

type catalogAchievement struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Reward      int64  `yaml:"reward"`
}

type catalog struct {
	Items        []catalogItem        `yaml:"items"`
	Achievements []catalogAchievement `yaml:"achievements"`
}

// loadCatalog parses the embedded catalog.
func loadCatalog() (catalog, error) {
	var c catalog
	if err := yaml.Unmarshal(catalogYAML, &c); err != nil {
		return catalog{}, fmt.Errorf("parsing catalog: %w", err)
	}
	return c, nil
}

// seedCatalogs inserts the built-in items and achievements in one
// transaction.
func seedCatalogs(ctx context.Context, db *sqlx.DB) error {
	c, err := loadCatalog()
	if err != nil {
		return err
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning seed: %w", err)
	}
	defer tx.Rollback()

	for _, it := range c.Items {
		category := it.Category
		if category == "" {
			category = "misc"
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO item_catalog (item_id, name, category, price, description)
			 VALUES (?, ?, ?, ?, ?)`,
			it.ID, it.Name, category, it.Price, it.Description,
		); err != nil {
			return fmt.Errorf("seeding item %s: %w", it.ID, err)
		}
	}
	for _, a := range c.Achievements {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO achievement_catalog (achievement_id, name, description, reward)
			 VALUES (?, ?, ?, ?)`,
			a.ID, a.Name, a.Description, a.Reward,
		); err != nil {
			return fmt.Errorf("seeding achievement %s: %w", a.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing seed: %w", err)
	}
	return nil
}

// registerItem adds an item id to the catalog when it is not there yet, so
// inventory rows can reference ids the catalog has never seen.
func registerItem(ctx context.Context, q exec, item string) error {
	if _, err := q.ExecContext(ctx,
		"INSERT OR IGNORE INTO item_catalog (item_id, name) VALUES (?, ?)", item, item,
	); err != nil {
		return fmt.Errorf("registering item %s: %w", item, err)
	}
	return nil
}

// registerAchievement is registerItem for the achievement catalog.
func registerAchievement(ctx context.Context, q exec, id string) error {
	if _, err := q.ExecContext(ctx,
		"INSERT OR IGNORE INTO achievement_catalog (achievement_id, name) VALUES (?, ?)", id, id,
	); err != nil {
		return fmt.Errorf("registering achievement %s: %w", id, err)
	}
	return nil
}
