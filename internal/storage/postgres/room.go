package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/gridmud/internal/game/world"
	"github.com/cory-johannsen/gridmud/internal/i18n"
)

// RoomRepository persists rooms and their portal connections.
type RoomRepository struct {
	db *pgxpool.Pool
}

// NewRoomRepository creates a RoomRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewRoomRepository(db *pgxpool.Pool) *RoomRepository {
	return &RoomRepository{db: db}
}

// Save upserts a room by id.
func (r *RoomRepository) Save(ctx context.Context, room *world.Room) error {
	blob, err := json.Marshal(room.Descriptions)
	if err != nil {
		return fmt.Errorf("encoding descriptions: %w", err)
	}
	_, err = r.db.Exec(ctx,
		`INSERT INTO rooms (id, x, y, descriptions_blob, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET
		   x = EXCLUDED.x, y = EXCLUDED.y,
		   descriptions_blob = EXCLUDED.descriptions_blob,
		   updated_at = EXCLUDED.updated_at`,
		room.ID, room.Coord.X, room.Coord.Y, blob, room.CreatedAt, room.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting room: %w", err)
	}
	return nil
}

// Delete removes a room row.
//
// Postcondition: Returns ErrNotFound when the row does not exist.
func (r *RoomRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM rooms WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting room: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// LoadAll reads every room.
func (r *RoomRepository) LoadAll(ctx context.Context) ([]*world.Room, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, x, y, descriptions_blob, created_at, updated_at FROM rooms`)
	if err != nil {
		return nil, fmt.Errorf("querying rooms: %w", err)
	}
	defer rows.Close()

	var out []*world.Room
	for rows.Next() {
		var (
			room world.Room
			blob []byte
		)
		if err := rows.Scan(&room.ID, &room.Coord.X, &room.Coord.Y, &blob,
			&room.CreatedAt, &room.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning room: %w", err)
		}
		room.Descriptions = make(i18n.Strings)
		if err := json.Unmarshal(blob, &room.Descriptions); err != nil {
			return nil, fmt.Errorf("decoding descriptions for room %q: %w", room.ID, err)
		}
		out = append(out, &room)
	}
	return out, rows.Err()
}

// SavePortal upserts an enter-connection keyed by its origin coordinate.
func (r *RoomRepository) SavePortal(ctx context.Context, from, to world.Coord) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO room_connections (from_x, from_y, to_x, to_y)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (from_x, from_y) DO UPDATE SET
		   to_x = EXCLUDED.to_x, to_y = EXCLUDED.to_y`,
		from.X, from.Y, to.X, to.Y,
	)
	if err != nil {
		return fmt.Errorf("upserting portal: %w", err)
	}
	return nil
}

// DeletePortal removes the enter-connection at an origin coordinate.
func (r *RoomRepository) DeletePortal(ctx context.Context, from world.Coord) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM room_connections WHERE from_x = $1 AND from_y = $2`,
		from.X, from.Y,
	)
	if err != nil {
		return fmt.Errorf("deleting portal: %w", err)
	}
	return nil
}

// LoadPortals reads the whole portal table as origin→destination pairs.
func (r *RoomRepository) LoadPortals(ctx context.Context) (map[world.Coord]world.Coord, error) {
	rows, err := r.db.Query(ctx,
		`SELECT from_x, from_y, to_x, to_y FROM room_connections`)
	if err != nil {
		return nil, fmt.Errorf("querying portals: %w", err)
	}
	defer rows.Close()

	out := make(map[world.Coord]world.Coord)
	for rows.Next() {
		var from, to world.Coord
		if err := rows.Scan(&from.X, &from.Y, &to.X, &to.Y); err != nil {
			return nil, fmt.Errorf("scanning portal: %w", err)
		}
		out[from] = to
	}
	return out, rows.Err()
}
