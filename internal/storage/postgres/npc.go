package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/gridmud/internal/game/npc"
	"github.com/cory-johannsen/gridmud/internal/i18n"
)

// NPCRepository persists NPC definitions.
type NPCRepository struct {
	db *pgxpool.Pool
}

// NewNPCRepository creates an NPCRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewNPCRepository(db *pgxpool.Pool) *NPCRepository {
	return &NPCRepository{db: db}
}

// Save upserts an NPC by id.
func (r *NPCRepository) Save(ctx context.Context, n *npc.NPC) error {
	nameBlob, err := json.Marshal(n.Names)
	if err != nil {
		return fmt.Errorf("encoding names: %w", err)
	}
	descBlob, err := json.Marshal(n.Descriptions)
	if err != nil {
		return fmt.Errorf("encoding descriptions: %w", err)
	}
	dialogueBlob, err := json.Marshal(n.Dialogue)
	if err != nil {
		return fmt.Errorf("encoding dialogue: %w", err)
	}
	shopBlob, err := json.Marshal(n.Shop)
	if err != nil {
		return fmt.Errorf("encoding shop: %w", err)
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO npcs (id, name_blob, description_blob, npc_type, x, y,
		    dialogue_blob, shop_inventory_blob, script, faction_id, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (id) DO UPDATE SET
		   name_blob = EXCLUDED.name_blob,
		   description_blob = EXCLUDED.description_blob,
		   npc_type = EXCLUDED.npc_type,
		   x = EXCLUDED.x, y = EXCLUDED.y,
		   dialogue_blob = EXCLUDED.dialogue_blob,
		   shop_inventory_blob = EXCLUDED.shop_inventory_blob,
		   script = EXCLUDED.script,
		   faction_id = EXCLUDED.faction_id,
		   is_active = EXCLUDED.is_active`,
		n.ID, nameBlob, descBlob, n.Type, n.X, n.Y,
		dialogueBlob, shopBlob, n.Script, n.FactionID, n.Active,
	)
	if err != nil {
		return fmt.Errorf("upserting npc: %w", err)
	}
	return nil
}

// LoadAll reads every NPC.
func (r *NPCRepository) LoadAll(ctx context.Context) ([]*npc.NPC, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, name_blob, description_blob, npc_type, x, y,
		    dialogue_blob, shop_inventory_blob, script, faction_id, is_active
		 FROM npcs`)
	if err != nil {
		return nil, fmt.Errorf("querying npcs: %w", err)
	}
	defer rows.Close()

	var out []*npc.NPC
	for rows.Next() {
		var (
			n                                          npc.NPC
			nameBlob, descBlob, dialogueBlob, shopBlob []byte
		)
		if err := rows.Scan(&n.ID, &nameBlob, &descBlob, &n.Type, &n.X, &n.Y,
			&dialogueBlob, &shopBlob, &n.Script, &n.FactionID, &n.Active); err != nil {
			return nil, fmt.Errorf("scanning npc: %w", err)
		}
		n.Names = make(i18n.Strings)
		if err := json.Unmarshal(nameBlob, &n.Names); err != nil {
			return nil, fmt.Errorf("decoding names for npc %q: %w", n.ID, err)
		}
		n.Descriptions = make(i18n.Strings)
		if err := json.Unmarshal(descBlob, &n.Descriptions); err != nil {
			return nil, fmt.Errorf("decoding descriptions for npc %q: %w", n.ID, err)
		}
		n.Dialogue = make(map[string]i18n.Strings)
		if len(dialogueBlob) > 0 {
			if err := json.Unmarshal(dialogueBlob, &n.Dialogue); err != nil {
				return nil, fmt.Errorf("decoding dialogue for npc %q: %w", n.ID, err)
			}
		}
		if len(shopBlob) > 0 {
			if err := json.Unmarshal(shopBlob, &n.Shop); err != nil {
				return nil, fmt.Errorf("decoding shop for npc %q: %w", n.ID, err)
			}
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}
