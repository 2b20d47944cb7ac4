// Package main provides the game server binary: the Telnet frontend
// over the grid world, backed by PostgreSQL persistence.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/gridmud/internal/config"
	"github.com/cory-johannsen/gridmud/internal/event"
	"github.com/cory-johannsen/gridmud/internal/game/broadcast"
	"github.com/cory-johannsen/gridmud/internal/game/combat"
	"github.com/cory-johannsen/gridmud/internal/game/command"
	"github.com/cory-johannsen/gridmud/internal/game/dice"
	"github.com/cory-johannsen/gridmud/internal/game/monster"
	"github.com/cory-johannsen/gridmud/internal/game/npc"
	"github.com/cory-johannsen/gridmud/internal/game/object"
	"github.com/cory-johannsen/gridmud/internal/game/scheduler"
	"github.com/cory-johannsen/gridmud/internal/game/session"
	"github.com/cory-johannsen/gridmud/internal/game/world"
	"github.com/cory-johannsen/gridmud/internal/gameserver"
	"github.com/cory-johannsen/gridmud/internal/i18n"
	"github.com/cory-johannsen/gridmud/internal/observability"
	"github.com/cory-johannsen/gridmud/internal/scripting"
	"github.com/cory-johannsen/gridmud/internal/server"
	"github.com/cory-johannsen/gridmud/internal/storage/postgres"
	"github.com/cory-johannsen/gridmud/internal/telnet"
)

// playerExister is the slice of the player repository the boot-time
// resolver needs.
type playerExister interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// bootResolver resolves object locations against the database during
// the boot integrity pass, when no sessions exist yet. A storage error
// must not strand an offline inventory, so failures resolve as present.
type bootResolver struct {
	ctx     context.Context
	rooms   *world.Store
	players playerExister
	logger  *zap.Logger
}

func (r *bootResolver) RoomExists(roomID string) bool {
	_, ok := r.rooms.GetRoom(roomID)
	return ok
}

func (r *bootResolver) PlayerExists(playerID string) bool {
	found, err := r.players.Exists(r.ctx, playerID)
	if err != nil {
		r.logger.Warn("player existence check failed; keeping object in place",
			zap.String("player_id", playerID),
			zap.Error(err),
		)
		return true
	}
	return found
}

// runIntegrityPass repairs persisted state after loading: orphaned
// objects move to the default room and over-cap monster populations are
// culled oldest-first.
func runIntegrityPass(objects *object.Manager, monsters *monster.Manager, resolver object.LocationResolver, defaultRoomID string, logger *zap.Logger) {
	moved := objects.SweepOrphans(resolver, defaultRoomID)
	culled := monsters.CullOverCap()
	logger.Info("boot integrity pass complete",
		zap.Int("objects_relocated", moved),
		zap.Int("monsters_culled", len(culled)),
	)
}

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting game server",
		zap.String("telnet_addr", cfg.Telnet.Addr()),
		zap.String("content_dir", cfg.Game.ContentDir),
	)

	// Localized strings, needed before anything can talk to a player.
	catalogStart := time.Now()
	catalog, err := i18n.LoadCatalog(filepath.Join(cfg.Game.ContentDir, "locales"))
	if err != nil {
		logger.Fatal("loading locale catalog", zap.Error(err))
	}
	logger.Info("locale catalog loaded", zap.Duration("elapsed", time.Since(catalogStart)))

	// Connect to PostgreSQL for world, player, and entity persistence.
	dbStart := time.Now()
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("connecting to database", zap.Error(err))
	}
	logger.Info("database connected",
		zap.String("host", cfg.Database.Host),
		zap.Duration("elapsed", time.Since(dbStart)),
	)

	playerRepo := postgres.NewPlayerRepository(pool.DB())
	roomRepo := postgres.NewRoomRepository(pool.DB())
	objectRepo := postgres.NewObjectRepository(pool.DB())
	monsterRepo := postgres.NewMonsterRepository(pool.DB())
	npcRepo := postgres.NewNPCRepository(pool.DB())

	bus := event.NewBus(logger)
	bus.Start()

	sessions := session.NewManager(logger)

	// World grid: load persisted rooms, seed from content when the
	// database is empty.
	worldStart := time.Now()
	rooms := world.NewStore(cfg.Game.DefaultRoomID, postgres.NewRoomPersister(roomRepo), logger)
	persisted, err := roomRepo.LoadAll(ctx)
	if err != nil {
		logger.Fatal("loading rooms", zap.Error(err))
	}
	for _, room := range persisted {
		if err := rooms.CreateRoom(room); err != nil {
			logger.Fatal("restoring room", zap.String("room", room.ID), zap.Error(err))
		}
	}
	portals, err := roomRepo.LoadPortals(ctx)
	if err != nil {
		logger.Fatal("loading portals", zap.Error(err))
	}
	for from, to := range portals {
		if err := rooms.SetPortal(from, to); err != nil {
			logger.Fatal("restoring portal", zap.String("from", from.String()), zap.Error(err))
		}
	}
	if rooms.Count() == 0 {
		seedPath := filepath.Join(cfg.Game.ContentDir, "world", "world.yaml")
		wf, err := world.LoadWorldFile(seedPath)
		if err != nil {
			logger.Fatal("loading world seed", zap.String("path", seedPath), zap.Error(err))
		}
		if err := wf.Seed(rooms); err != nil {
			logger.Fatal("seeding world", zap.Error(err))
		}
		logger.Info("seeded world from content", zap.String("path", seedPath))
	}
	logger.Info("world loaded",
		zap.Int("rooms", rooms.Count()),
		zap.Duration("elapsed", time.Since(worldStart)),
	)

	// Object templates and persisted instances.
	objects := object.NewManager(postgres.NewObjectPersister(objectRepo), logger)
	objectTemplates, err := object.LoadTemplates(filepath.Join(cfg.Game.ContentDir, "items"))
	if err != nil {
		logger.Fatal("loading object templates", zap.Error(err))
	}
	for _, tpl := range objectTemplates {
		objects.RegisterTemplate(tpl)
	}
	logger.Info("loaded object templates", zap.Int("count", len(objectTemplates)))

	objInstances, err := objectRepo.LoadAll(ctx)
	if err != nil {
		logger.Fatal("loading objects", zap.Error(err))
	}
	for _, obj := range objInstances {
		if err := objects.Add(obj); err != nil {
			logger.Fatal("restoring object", zap.String("object", obj.ID), zap.Error(err))
		}
	}
	logger.Info("restored object instances", zap.Int("count", len(objInstances)))

	// Monster templates, population caps, spawn points, and persisted
	// instances.
	monsters := monster.NewManager(postgres.NewMonsterPersister(monsterRepo), logger)
	monsterTemplates, caps, err := monster.LoadTemplates(filepath.Join(cfg.Game.ContentDir, "monsters"))
	if err != nil {
		logger.Fatal("loading monster templates", zap.Error(err))
	}
	for _, tpl := range monsterTemplates {
		monsters.RegisterTemplate(tpl)
	}
	for templateID, limit := range caps {
		monsters.SetGlobalCap(templateID, limit)
	}
	logger.Info("loaded monster templates", zap.Int("count", len(monsterTemplates)))

	spawnPoints, err := monster.LoadSpawnPoints(filepath.Join(cfg.Game.ContentDir, "monsters", "spawns.yaml"))
	if err != nil {
		logger.Fatal("loading spawn points", zap.Error(err))
	}

	monsterInstances, err := monsterRepo.LoadAll(ctx)
	if err != nil {
		logger.Fatal("loading monsters", zap.Error(err))
	}
	for _, inst := range monsterInstances {
		if err := monsters.Add(inst); err != nil {
			logger.Fatal("restoring monster", zap.String("monster", inst.ID), zap.Error(err))
		}
	}
	logger.Info("restored monster instances", zap.Int("count", len(monsterInstances)))

	// NPCs: the database is authoritative; content seeds it on first run.
	npcs := npc.NewManager(logger)
	persistedNPCs, err := npcRepo.LoadAll(ctx)
	if err != nil {
		logger.Fatal("loading npcs", zap.Error(err))
	}
	if len(persistedNPCs) == 0 {
		seeded, err := npc.LoadNPCs(filepath.Join(cfg.Game.ContentDir, "npcs"))
		if err != nil {
			logger.Fatal("loading npc content", zap.Error(err))
		}
		for _, n := range seeded {
			if err := npcRepo.Save(ctx, n); err != nil {
				logger.Fatal("seeding npc", zap.String("npc", n.ID), zap.Error(err))
			}
		}
		persistedNPCs = seeded
		logger.Info("seeded npcs from content", zap.Int("count", len(seeded)))
	}
	for _, n := range persistedNPCs {
		if err := npcs.Add(n); err != nil {
			logger.Fatal("registering npc", zap.String("npc", n.ID), zap.Error(err))
		}
	}
	logger.Info("npcs loaded", zap.Int("count", len(persistedNPCs)))

	// Repair what persistence left behind before anyone connects: objects
	// whose location no longer resolves and monster populations over cap.
	rooms.SetRelocator(objects)
	resolver := &bootResolver{ctx: ctx, rooms: rooms, players: playerRepo, logger: logger}
	runIntegrityPass(objects, monsters, resolver, cfg.Game.DefaultRoomID, logger)

	router := broadcast.NewRouter(sessions, rooms, catalog, bus, logger)

	cryptoSrc := dice.NewCryptoSource()
	roller := dice.NewLoggedRoller(cryptoSrc, logger)

	engine := combat.NewEngine(combat.Config{
		TurnTimeout:    cfg.Game.CombatTurnTimeout,
		FleeBaseChance: cfg.Game.FleeBaseChance,
		RespawnRoomID:  cfg.Game.RespawnRoomID,
	}, sessions, monsters, objects, rooms, roller, router, logger)

	registry := command.NewRegistry(logger)
	dispatcher := command.NewDispatcher(registry, bus, nil, logger)

	// Day/night narration fans out to every connected player.
	daynight := scheduler.NewDayNight(logger)
	daynight.OnTransition(func(phase scheduler.Phase) {
		if phase == scheduler.PhaseDay {
			router.BroadcastToAllColored(i18n.T("time.day"), telnet.BrightYellow)
		} else {
			router.BroadcastToAllColored(i18n.T("time.night"), telnet.BrightBlue)
		}
	})

	sched := scheduler.New(bus, logger)
	lifecycle := monster.NewLifecycle(monsters, rooms, router, cryptoSrc, logger)
	lifecycle.SetSpawnPoints(spawnPoints)
	if err := sched.Register("monster-lifecycle", []int{0, 30}, lifecycle.Tick); err != nil {
		logger.Fatal("registering monster lifecycle", zap.Error(err))
	}

	// Dialogue scripts are optional; a missing directory just means table
	// dialogue everywhere.
	scriptDir := filepath.Join(cfg.Game.ContentDir, "scripts")
	var scripts *scripting.Engine
	if entries, err := os.ReadDir(scriptDir); err == nil {
		scripts = scripting.NewEngine(scriptDir, logger)
		loaded := 0
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".lua") {
				continue
			}
			name := strings.TrimSuffix(entry.Name(), ".lua")
			if err := scripts.Load(name); err != nil {
				logger.Fatal("loading dialogue script", zap.String("script", name), zap.Error(err))
			}
			loaded++
		}
		logger.Info("loaded dialogue scripts", zap.Int("count", loaded))
	} else {
		logger.Info("no script directory; dialogue scripts disabled", zap.String("dir", scriptDir))
	}

	game, err := gameserver.NewGameServer(
		cfg.Game, cfg.Telnet,
		playerRepo, sessions, rooms, objects, monsters, npcs,
		engine, dispatcher, router, bus, daynight, sched, scripts, logger,
	)
	if err != nil {
		logger.Fatal("creating game server", zap.Error(err))
	}

	acceptor := telnet.NewAcceptor(cfg.Telnet, game, logger)

	// Wire lifecycle
	lc := server.NewLifecycle(logger)

	daynightQuit := make(chan struct{})
	lc.Add("daynight", &server.FuncService{
		StartFn: func() error {
			if err := daynight.Start(); err != nil {
				return err
			}
			<-daynightQuit
			return nil
		},
		StopFn: func() {
			daynight.Stop()
			close(daynightQuit)
		},
	})

	schedQuit := make(chan struct{})
	lc.Add("scheduler", &server.FuncService{
		StartFn: func() error {
			if err := sched.Start(); err != nil {
				return err
			}
			<-schedQuit
			return nil
		},
		StopFn: func() {
			sched.Stop()
			close(schedQuit)
		},
	})

	lc.Add("reaper", &server.FuncService{
		StartFn: game.RunIdleReaper,
		StopFn:  game.StopIdleReaper,
	})

	lc.Add("telnet", &server.FuncService{
		StartFn: acceptor.ListenAndServe,
		StopFn: func() {
			router.BroadcastToAll(i18n.T("server.shutting_down"))
			engine.Stop()
			acceptor.Stop()
		},
	})

	lc.Add("postgres", &server.FuncService{
		StartFn: func() error {
			for {
				time.Sleep(30 * time.Second)
				if err := pool.Health(ctx, 5*time.Second); err != nil {
					logger.Warn("database health check failed", zap.Error(err))
				}
			}
		},
		StopFn: func() {
			// The bus stops with the pool: nothing publishes once the
			// frontend and scheduler are down.
			bus.Stop()
			pool.Close()
		},
	})

	bus.Publish(event.New(event.ServerStarted))
	logger.Info("game server initialized",
		zap.Duration("startup", time.Since(start)),
		zap.String("telnet_addr", cfg.Telnet.Addr()),
	)

	if err := lc.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
