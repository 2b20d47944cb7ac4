package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/gridmud/internal/game/object"
	"github.com/cory-johannsen/gridmud/internal/i18n"
)

// ObjectRepository persists game object instances.
type ObjectRepository struct {
	db *pgxpool.Pool
}

// NewObjectRepository creates an ObjectRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewObjectRepository(db *pgxpool.Pool) *ObjectRepository {
	return &ObjectRepository{db: db}
}

// Save upserts an object instance by id.
func (r *ObjectRepository) Save(ctx context.Context, obj *object.Instance) error {
	nameBlob, err := json.Marshal(obj.Names)
	if err != nil {
		return fmt.Errorf("encoding names: %w", err)
	}
	descBlob, err := json.Marshal(obj.Descriptions)
	if err != nil {
		return fmt.Errorf("encoding descriptions: %w", err)
	}
	propsBlob, err := json.Marshal(obj.Properties)
	if err != nil {
		return fmt.Errorf("encoding properties: %w", err)
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO game_objects (id, template_id, name_blob, description_blob, category,
		    weight, equipment_slot, is_equipped, stackable, max_stack, quantity,
		    properties_blob, location_type, location_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		 ON CONFLICT (id) DO UPDATE SET
		   is_equipped = EXCLUDED.is_equipped,
		   quantity = EXCLUDED.quantity,
		   properties_blob = EXCLUDED.properties_blob,
		   location_type = EXCLUDED.location_type,
		   location_id = EXCLUDED.location_id`,
		obj.ID, obj.TemplateID, nameBlob, descBlob, string(obj.Category),
		obj.Weight, obj.Slot, obj.Equipped, obj.Stackable, obj.MaxStack, obj.Quantity,
		propsBlob, string(obj.Location.Type), obj.Location.ID, obj.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting object: %w", err)
	}
	return nil
}

// Delete removes an object row.
func (r *ObjectRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM game_objects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting object: %w", err)
	}
	return nil
}

// LoadAll reads every object instance.
func (r *ObjectRepository) LoadAll(ctx context.Context) ([]*object.Instance, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, template_id, name_blob, description_blob, category, weight,
		    equipment_slot, is_equipped, stackable, max_stack, quantity,
		    properties_blob, location_type, location_id, created_at
		 FROM game_objects`)
	if err != nil {
		return nil, fmt.Errorf("querying objects: %w", err)
	}
	defer rows.Close()

	var out []*object.Instance
	for rows.Next() {
		var (
			obj                           object.Instance
			category, locType             string
			nameBlob, descBlob, propsBlob []byte
		)
		if err := rows.Scan(&obj.ID, &obj.TemplateID, &nameBlob, &descBlob, &category,
			&obj.Weight, &obj.Slot, &obj.Equipped, &obj.Stackable, &obj.MaxStack,
			&obj.Quantity, &propsBlob, &locType, &obj.Location.ID, &obj.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning object: %w", err)
		}
		obj.Category = object.Category(category)
		obj.Location.Type = object.LocationType(locType)
		obj.Names = make(i18n.Strings)
		if err := json.Unmarshal(nameBlob, &obj.Names); err != nil {
			return nil, fmt.Errorf("decoding names for object %q: %w", obj.ID, err)
		}
		obj.Descriptions = make(i18n.Strings)
		if err := json.Unmarshal(descBlob, &obj.Descriptions); err != nil {
			return nil, fmt.Errorf("decoding descriptions for object %q: %w", obj.ID, err)
		}
		obj.Properties = make(map[string]string)
		if len(propsBlob) > 0 {
			if err := json.Unmarshal(propsBlob, &obj.Properties); err != nil {
				return nil, fmt.Errorf("decoding properties for object %q: %w", obj.ID, err)
			}
		}
		out = append(out, &obj)
	}
	return out, rows.Err()
}
