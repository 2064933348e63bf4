// This file implements the pets accessor.
package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/mesh-intelligence/playerdb/pkg/types"
)

const petColumns = `pet_id, owner_id, name, type, skin, level, xp, hunger, energy, happiness,
	last_fed, active`

// CreatePet inserts a pet for owner and returns its id. Stats default to a
// fresh, fully fed pet.
func (b *Backend) CreatePet(ctx context.Context, owner types.EntityID, p types.Pet) (int64, error) {
	if strings.TrimSpace(p.PetType) == "" {
		return 0, fmt.Errorf("pet type: %w", types.ErrInvalidName)
	}
	if p.Name == "" {
		p.Name = p.PetType
	}
	if p.Skin == "" {
		p.Skin = "default"
	}
	if p.Level < 1 {
		p.Level = 1
	}
	for _, stat := range []*int64{&p.Hunger, &p.Energy, &p.Happiness} {
		if *stat == 0 {
			*stat = 100
		}
	}
	if !p.LastFed.Valid() {
		p.LastFed = types.NewTimestamp(b.now())
	}

	var id int64
	err := b.withTx(ctx, func(o *ops) error {
		if err := o.ensurePlayer(ctx, owner); err != nil {
			return err
		}
		if err := o.q.QueryRowxContext(ctx,
			`INSERT INTO pets (owner_id, name, type, skin, level, xp, hunger, energy, happiness, last_fed, active, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?) RETURNING pet_id`,
			int64(owner), p.Name, p.PetType, p.Skin, p.Level, p.XP, p.Hunger, p.Energy, p.Happiness,
			p.LastFed, o.b.timestamp(),
		).Scan(&id); err != nil {
			return fmt.Errorf("inserting pet: %w", err)
		}
		return nil
	})
	return id, err
}

// GetPet returns one pet, active or not.
func (b *Backend) GetPet(ctx context.Context, id int64) (types.Pet, error) {
	var p types.Pet
	err := b.withDB(func(o *ops) error {
		if err := sqlx.GetContext(ctx, o.q, &p,
			"SELECT "+petColumns+" FROM pets WHERE pet_id = ?", id,
		); err != nil {
			return notFound(err, fmt.Sprintf("pet %d", id))
		}
		return nil
	})
	return p, err
}

// ListPets returns the owner's active pets.
func (b *Backend) ListPets(ctx context.Context, owner types.EntityID) ([]types.Pet, error) {
	if err := validID(owner); err != nil {
		return nil, err
	}
	list := []types.Pet{}
	err := b.withDB(func(o *ops) error {
		if err := sqlx.SelectContext(ctx, o.q, &list,
			"SELECT "+petColumns+" FROM pets WHERE owner_id = ? AND active = 1 ORDER BY pet_id",
			int64(owner),
		); err != nil {
			return fmt.Errorf("listing pets of %s: %w", owner, err)
		}
		return nil
	})
	return list, err
}

// UpdatePetField writes one field named in types.PetFields.
func (b *Backend) UpdatePetField(ctx context.Context, id int64, field string, value any) error {
	return b.updateField(ctx, petsTable, id, field, value)
}

// DeactivatePet marks a pet inactive (released or lost).
func (b *Backend) DeactivatePet(ctx context.Context, id int64) error {
	return b.deactivate(ctx, petsTable, id)
}
