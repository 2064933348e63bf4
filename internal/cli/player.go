package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/playerdb/internal/sqlite"
	"github.com/mesh-intelligence/playerdb/pkg/types"
)

func (a *app) newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <player-id> [key...]",
		Short: "Print a player's entity view",
		Long: `Get prints the merged attribute view of a player as JSON. With keys,
only those attributes are printed. Unknown players are created with
default values.

Example:
  playerdb get 123456789012345678
  playerdb get 123456789012345678 balance inventory`,
		Args: cobra.MinimumNArgs(1),
		RunE: a.runGet,
	}
}

func (a *app) runGet(cmd *cobra.Command, args []string) error {
	id, err := parsePlayer(args[0])
	if err != nil {
		return err
	}
	return a.withBackend(cmd.Context(), func(b *sqlite.Backend) error {
		e, err := b.GetEntity(cmd.Context(), id)
		if err != nil {
			return err
		}
		if len(args) == 1 {
			return printJSON(cmd, e)
		}
		subset := make(map[string]any, len(args)-1)
		for _, key := range args[1:] {
			subset[key] = e[key]
		}
		return printJSON(cmd, subset)
	})
}

func (a *app) newSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <player-id> <key=value>...",
		Short: "Set player attributes",
		Long: `Set writes one or more attributes in a single transaction. Values are
parsed as JSON when they are valid JSON and taken as plain text otherwise.

Example:
  playerdb set 123456789012345678 balance=500 username=alice
  playerdb set 123456789012345678 'inventory={"apple":3}'`,
		Args: cobra.MinimumNArgs(2),
		RunE: a.runSet,
	}
}

func (a *app) runSet(cmd *cobra.Command, args []string) error {
	id, err := parsePlayer(args[0])
	if err != nil {
		return err
	}
	attrs, err := parseAssignments(args[1:])
	if err != nil {
		return err
	}
	return a.withBackend(cmd.Context(), func(b *sqlite.Backend) error {
		if err := b.SetAttributes(cmd.Context(), id, attrs); err != nil {
			return err
		}
		e, err := b.GetEntity(cmd.Context(), id)
		if err != nil {
			return err
		}
		return printJSON(cmd, e)
	})
}

func (a *app) newTopCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "top <field>",
		Short: "Print the leaderboard for a field",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withBackend(cmd.Context(), func(b *sqlite.Backend) error {
				rows, err := b.TopN(cmd.Context(), args[0], limit)
				if err != nil {
					return err
				}
				return printJSON(cmd, rows)
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of players to list")
	return cmd
}

func parsePlayer(s string) (types.EntityID, error) {
	id, err := types.ParseEntityID(s)
	if err != nil {
		return 0, fmt.Errorf("player id %q: %w", s, err)
	}
	return id, nil
}

// parseAssignments turns key=value arguments into an attribute map.
func parseAssignments(args []string) (map[string]any, error) {
	attrs := make(map[string]any, len(args))
	for _, arg := range args {
		key, raw, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: expected key=value, got %q", errUsage, arg)
		}
		attrs[key] = parseValue(raw)
	}
	return attrs, nil
}

// parseValue decodes raw as JSON, keeping numbers exact, and falls back to
// the raw text. "null" clears the attribute.
func parseValue(raw string) any {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil || dec.More() {
		return raw
	}
	return v
}
