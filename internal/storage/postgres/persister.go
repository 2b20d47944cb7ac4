package postgres

import (
	"context"
	"time"

	"github.com/cory-johannsen/gridmud/internal/game/monster"
	"github.com/cory-johannsen/gridmud/internal/game/object"
	"github.com/cory-johannsen/gridmud/internal/game/world"
)

// persistTimeout bounds each write-through call so a slow database never
// stalls a game-loop goroutine indefinitely.
const persistTimeout = 5 * time.Second

// RoomPersister adapts RoomRepository to the world store's write-through
// interface.
type RoomPersister struct {
	repo *RoomRepository
}

// NewRoomPersister wraps a RoomRepository.
func NewRoomPersister(repo *RoomRepository) *RoomPersister {
	return &RoomPersister{repo: repo}
}

func (p *RoomPersister) SaveRoom(room *world.Room) error {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	return p.repo.Save(ctx, room)
}

func (p *RoomPersister) DeleteRoom(id string) error {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	return p.repo.Delete(ctx, id)
}

func (p *RoomPersister) SavePortal(from, to world.Coord) error {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	return p.repo.SavePortal(ctx, from, to)
}

func (p *RoomPersister) DeletePortal(from world.Coord) error {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	return p.repo.DeletePortal(ctx, from)
}

// ObjectPersister adapts ObjectRepository to the object manager's
// write-through interface.
type ObjectPersister struct {
	repo *ObjectRepository
}

// NewObjectPersister wraps an ObjectRepository.
func NewObjectPersister(repo *ObjectRepository) *ObjectPersister {
	return &ObjectPersister{repo: repo}
}

func (p *ObjectPersister) SaveObject(obj *object.Instance) error {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	return p.repo.Save(ctx, obj)
}

func (p *ObjectPersister) DeleteObject(id string) error {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	return p.repo.Delete(ctx, id)
}

// MonsterPersister adapts MonsterRepository to the monster manager's
// write-through interface.
type MonsterPersister struct {
	repo *MonsterRepository
}

// NewMonsterPersister wraps a MonsterRepository.
func NewMonsterPersister(repo *MonsterRepository) *MonsterPersister {
	return &MonsterPersister{repo: repo}
}

func (p *MonsterPersister) SaveMonster(m *monster.Instance) error {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	return p.repo.Save(ctx, m)
}

func (p *MonsterPersister) DeleteMonster(id string) error {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	return p.repo.Delete(ctx, id)
}
