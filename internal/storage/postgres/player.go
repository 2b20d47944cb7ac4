package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/cory-johannsen/gridmud/internal/game/session"
	"github.com/cory-johannsen/gridmud/internal/i18n"
)

// ErrPlayerExists is returned when registering a taken username.
var ErrPlayerExists = errors.New("player already exists")

// ErrInvalidCredentials is returned when authentication fails.
var ErrInvalidCredentials = errors.New("invalid credentials")

// PlayerRepository provides player persistence operations.
type PlayerRepository struct {
	db *pgxpool.Pool
}

// NewPlayerRepository creates a PlayerRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewPlayerRepository(db *pgxpool.Pool) *PlayerRepository {
	return &PlayerRepository{db: db}
}

const playerColumns = `id, username, display_name, last_name_change,
	 preferred_locale, is_admin, last_room_id, stats_blob, quest_progress_blob,
	 completed_quests_blob, faction_id`

// Create registers a new player with a bcrypt-hashed password and
// default stats.
//
// Precondition: username and password must be non-empty.
// Postcondition: Returns the created player or ErrPlayerExists if the
// username is taken.
func (r *PlayerRepository) Create(ctx context.Context, username, password string, locale i18n.Locale) (*session.Player, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	p := &session.Player{
		ID:            uuid.New().String(),
		Username:      username,
		DisplayName:   username,
		Locale:        locale,
		Stats:         session.DefaultStats(),
		QuestProgress: make(map[string]int),
		QuestsDone:    make(map[string]bool),
	}
	statsBlob, progressBlob, doneBlob, err := marshalPlayerBlobs(p)
	if err != nil {
		return nil, err
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO players (id, username, password_hash, display_name, preferred_locale,
		    stats_blob, quest_progress_blob, completed_quests_blob)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, username, hash, p.DisplayName, string(locale), statsBlob, progressBlob, doneBlob,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, ErrPlayerExists
		}
		return nil, fmt.Errorf("inserting player: %w", err)
	}
	return p, nil
}

// Authenticate verifies credentials and returns the matching player.
//
// Postcondition: Returns the player if credentials are valid, ErrNotFound
// if the username is unknown, or ErrInvalidCredentials on a wrong password.
func (r *PlayerRepository) Authenticate(ctx context.Context, username, password string) (*session.Player, error) {
	var hash string
	p, err := r.scanPlayer(r.db.QueryRow(ctx,
		`SELECT `+playerColumns+`, password_hash FROM players WHERE username = $1`,
		username,
	), &hash)
	if err != nil {
		return nil, err
	}
	if !CheckPassword(password, hash) {
		return nil, ErrInvalidCredentials
	}
	return p, nil
}

// Exists reports whether a player row exists for id.
func (r *PlayerRepository) Exists(ctx context.Context, id string) (bool, error) {
	var found bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM players WHERE id = $1)`, id,
	).Scan(&found)
	if err != nil {
		return false, fmt.Errorf("checking player %q: %w", id, err)
	}
	return found, nil
}

// GetByUsername retrieves a player by username.
//
// Postcondition: Returns the player or ErrNotFound.
func (r *PlayerRepository) GetByUsername(ctx context.Context, username string) (*session.Player, error) {
	return r.scanPlayer(r.db.QueryRow(ctx,
		`SELECT `+playerColumns+`, password_hash FROM players WHERE username = $1`,
		username,
	), new(string))
}

// Save writes a player's mutable state back: display name, locale,
// admin flag, last room, stats, and quest blobs.
//
// Postcondition: Returns ErrNotFound if the player row is gone.
func (r *PlayerRepository) Save(ctx context.Context, p *session.Player) error {
	statsBlob, progressBlob, doneBlob, err := marshalPlayerBlobs(p)
	if err != nil {
		return err
	}

	var lastNameChange *time.Time
	if !p.LastNameChange.IsZero() {
		lastNameChange = &p.LastNameChange
	}
	var lastRoomID *string
	if p.LastRoomID != "" {
		lastRoomID = &p.LastRoomID
	}
	var factionID *string
	if p.FactionID != "" {
		factionID = &p.FactionID
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE players SET display_name = $2, last_name_change = $3, preferred_locale = $4,
		    is_admin = $5, last_room_id = $6, stats_blob = $7, quest_progress_blob = $8,
		    completed_quests_blob = $9, faction_id = $10
		 WHERE id = $1`,
		p.ID, p.DisplayName, lastNameChange, string(p.Locale), p.IsAdmin, lastRoomID,
		statsBlob, progressBlob, doneBlob, factionID,
	)
	if err != nil {
		return fmt.Errorf("updating player: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// scanPlayer reads one player row plus the password hash column.
func (r *PlayerRepository) scanPlayer(row pgx.Row, hash *string) (*session.Player, error) {
	var (
		p              session.Player
		locale         string
		lastNameChange *time.Time
		lastRoomID     *string
		factionID      *string
		statsBlob      []byte
		progressBlob   []byte
		doneBlob       []byte
	)
	err := row.Scan(&p.ID, &p.Username, &p.DisplayName, &lastNameChange,
		&locale, &p.IsAdmin, &lastRoomID, &statsBlob, &progressBlob, &doneBlob, &factionID, hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying player: %w", err)
	}

	p.Locale = i18n.Locale(locale)
	if lastNameChange != nil {
		p.LastNameChange = *lastNameChange
	}
	if lastRoomID != nil {
		p.LastRoomID = *lastRoomID
	}
	if factionID != nil {
		p.FactionID = *factionID
	}
	if err := json.Unmarshal(statsBlob, &p.Stats); err != nil {
		return nil, fmt.Errorf("decoding stats: %w", err)
	}
	p.QuestProgress = make(map[string]int)
	if len(progressBlob) > 0 {
		if err := json.Unmarshal(progressBlob, &p.QuestProgress); err != nil {
			return nil, fmt.Errorf("decoding quest progress: %w", err)
		}
	}
	p.QuestsDone = make(map[string]bool)
	if len(doneBlob) > 0 {
		if err := json.Unmarshal(doneBlob, &p.QuestsDone); err != nil {
			return nil, fmt.Errorf("decoding completed quests: %w", err)
		}
	}
	return &p, nil
}

func marshalPlayerBlobs(p *session.Player) (stats, progress, done []byte, err error) {
	if stats, err = json.Marshal(p.Stats); err != nil {
		return nil, nil, nil, fmt.Errorf("encoding stats: %w", err)
	}
	if progress, err = json.Marshal(p.QuestProgress); err != nil {
		return nil, nil, nil, fmt.Errorf("encoding quest progress: %w", err)
	}
	if done, err = json.Marshal(p.QuestsDone); err != nil {
		return nil, nil, nil, fmt.Errorf("encoding completed quests: %w", err)
	}
	return stats, progress, done, nil
}

// HashPassword creates a bcrypt hash of the given password.
//
// Precondition: password must be non-empty.
// Postcondition: Returns a bcrypt hash string.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword compares a plaintext password against a bcrypt hash.
//
// Postcondition: Returns true if password matches the hash.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
