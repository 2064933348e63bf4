// This file implements the accessor plumbing shared by the owned
// sub-entity tables (businesses, properties, pets): field allow-listing,
// single-field updates and deactivation.
package sqlite

import (
	"context"
	"fmt"

	"github.com/mesh-intelligence/playerdb/pkg/types"
)

// subTable describes one owned sub-entity table.
type subTable struct {
	name   string
	idCol  string
	fields map[string]string
}

var (
	businessesTable = subTable{name: "businesses", idCol: "business_id", fields: types.BusinessFields}
	propertiesTable = subTable{name: "properties", idCol: "property_id", fields: types.PropertyFields}
	petsTable       = subTable{name: "pets", idCol: "pet_id", fields: types.PetFields}
)

// column maps a caller field name to its column, or ErrUnknownField.
func (t subTable) column(field string) (string, error) {
	col, ok := t.fields[field]
	if !ok {
		return "", fmt.Errorf("%s field %q: %w", t.name, field, types.ErrUnknownField)
	}
	return col, nil
}

// updateField writes one allow-listed field. Returns ErrNotFound when no row
// has the id.
func (b *Backend) updateField(ctx context.Context, t subTable, id int64, field string, value any) error {
	col, err := t.column(field)
	if err != nil {
		return err
	}
	v, err := coerceColumn(t.name, col, value)
	if err != nil {
		return err
	}
	return b.withDB(func(o *ops) error {
		res, err := o.q.ExecContext(ctx,
			fmt.Sprintf("UPDATE %s SET %s = ? WHERE %s = ?", t.name, quoteIdent(col), t.idCol),
			v, id)
		if err != nil {
			return fmt.Errorf("updating %s %d %s: %w", t.name, id, field, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%s %d: %w", t.name, id, types.ErrNotFound)
		}
		return nil
	})
}

// deactivate clears the active flag. Rows are never hard deleted.
func (b *Backend) deactivate(ctx context.Context, t subTable, id int64) error {
	return b.updateField(ctx, t, id, "active", false)
}
