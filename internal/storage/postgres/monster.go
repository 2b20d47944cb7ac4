package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/gridmud/internal/game/monster"
	"github.com/cory-johannsen/gridmud/internal/i18n"
)

// MonsterRepository persists monster instances.
type MonsterRepository struct {
	db *pgxpool.Pool
}

// NewMonsterRepository creates a MonsterRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewMonsterRepository(db *pgxpool.Pool) *MonsterRepository {
	return &MonsterRepository{db: db}
}

// monsterBlob carries the JSON-encoded columns of a row.
type monsterBlob struct {
	Names        i18n.Strings           `json:"names"`
	Descriptions i18n.Strings           `json:"descriptions"`
	Stats        monster.Stats          `json:"stats"`
	Drops        []monster.DropEntry    `json:"drops"`
	Roaming      *monster.RoamingConfig `json:"roaming,omitempty"`
	Gold         int                    `json:"gold"`
	FactionID    string                 `json:"faction_id,omitempty"`
}

// Save upserts a monster instance by id.
func (r *MonsterRepository) Save(ctx context.Context, m *monster.Instance) error {
	blob, err := json.Marshal(monsterBlob{
		Names:        m.Names,
		Descriptions: m.Descriptions,
		Stats:        m.Stats,
		Drops:        m.Drops,
		Roaming:      m.Roaming,
		Gold:         m.Gold,
		FactionID:    m.FactionID,
	})
	if err != nil {
		return fmt.Errorf("encoding monster: %w", err)
	}

	var diedAt *time.Time
	if !m.DiedAt.IsZero() {
		diedAt = &m.DiedAt
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO monsters (id, template_id, monster_type, behavior, x, y,
		    spawn_x, spawn_y, hp, is_alive, died_at, respawn_delay_seconds,
		    properties_blob, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 ON CONFLICT (id) DO UPDATE SET
		   x = EXCLUDED.x, y = EXCLUDED.y,
		   hp = EXCLUDED.hp, is_alive = EXCLUDED.is_alive,
		   died_at = EXCLUDED.died_at,
		   properties_blob = EXCLUDED.properties_blob`,
		m.ID, m.TemplateID, string(m.Type), string(m.Behavior), m.Coord.X, m.Coord.Y,
		m.SpawnCoord.X, m.SpawnCoord.Y, m.HP, m.Alive, diedAt,
		int(m.RespawnDelay.Seconds()), blob, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting monster: %w", err)
	}
	return nil
}

// Delete removes a monster row.
func (r *MonsterRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM monsters WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting monster: %w", err)
	}
	return nil
}

// LoadAll reads every monster instance, alive or dead.
func (r *MonsterRepository) LoadAll(ctx context.Context) ([]*monster.Instance, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, template_id, monster_type, behavior, x, y, spawn_x, spawn_y,
		    hp, is_alive, died_at, respawn_delay_seconds, properties_blob, created_at
		 FROM monsters`)
	if err != nil {
		return nil, fmt.Errorf("querying monsters: %w", err)
	}
	defer rows.Close()

	var out []*monster.Instance
	for rows.Next() {
		var (
			inst           monster.Instance
			mType, mBehav  string
			diedAt         *time.Time
			respawnSeconds int
			blob           []byte
		)
		if err := rows.Scan(&inst.ID, &inst.TemplateID, &mType, &mBehav,
			&inst.Coord.X, &inst.Coord.Y, &inst.SpawnCoord.X, &inst.SpawnCoord.Y,
			&inst.HP, &inst.Alive, &diedAt, &respawnSeconds, &blob, &inst.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning monster: %w", err)
		}
		var decoded monsterBlob
		if err := json.Unmarshal(blob, &decoded); err != nil {
			return nil, fmt.Errorf("decoding monster %q: %w", inst.ID, err)
		}
		inst.Type = monster.Type(mType)
		inst.Behavior = monster.Behavior(mBehav)
		inst.Names = decoded.Names
		inst.Descriptions = decoded.Descriptions
		inst.Stats = decoded.Stats
		inst.Drops = decoded.Drops
		inst.Roaming = decoded.Roaming
		inst.Gold = decoded.Gold
		inst.FactionID = decoded.FactionID
		inst.RespawnDelay = time.Duration(respawnSeconds) * time.Second
		if diedAt != nil {
			inst.DiedAt = *diedAt
		}
		out = append(out, &inst)
	}
	return out, rows.Err()
}
