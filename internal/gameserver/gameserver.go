// Package gameserver is the Telnet frontend: the welcome and
// authentication flow, the per-connection game loop, and the command
// handlers wired over the world, combat, and broadcast subsystems.
package gameserver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/gridmud/internal/config"
	"github.com/cory-johannsen/gridmud/internal/event"
	"github.com/cory-johannsen/gridmud/internal/game/broadcast"
	"github.com/cory-johannsen/gridmud/internal/game/combat"
	"github.com/cory-johannsen/gridmud/internal/game/command"
	"github.com/cory-johannsen/gridmud/internal/game/monster"
	"github.com/cory-johannsen/gridmud/internal/game/npc"
	"github.com/cory-johannsen/gridmud/internal/game/object"
	"github.com/cory-johannsen/gridmud/internal/game/scheduler"
	"github.com/cory-johannsen/gridmud/internal/game/session"
	"github.com/cory-johannsen/gridmud/internal/game/world"
	"github.com/cory-johannsen/gridmud/internal/i18n"
	"github.com/cory-johannsen/gridmud/internal/scripting"
	"github.com/cory-johannsen/gridmud/internal/storage/postgres"
	"github.com/cory-johannsen/gridmud/internal/telnet"
)

// PlayerStore defines the player persistence operations the frontend
// needs. The postgres player repository implements it; tests substitute
// an in-memory store.
type PlayerStore interface {
	Create(ctx context.Context, username, password string, locale i18n.Locale) (*session.Player, error)
	Authenticate(ctx context.Context, username, password string) (*session.Player, error)
	Save(ctx context.Context, p *session.Player) error
}

// maxAuthAttempts caps failed menu choices before the connection closes.
const maxAuthAttempts = 3

// saveTimeout bounds background player saves.
const saveTimeout = 5 * time.Second

const welcomeBanner = `
` + telnet.Bold + telnet.BrightCyan + `
   ██████╗ ██████╗ ██╗██████╗ ███╗   ███╗██╗   ██╗██████╗
  ██╔════╝ ██╔══██╗██║██╔══██╗████╗ ████║██║   ██║██╔══██╗
  ██║  ███╗██████╔╝██║██║  ██║██╔████╔██║██║   ██║██║  ██║
  ██║   ██║██╔══██╗██║██║  ██║██║╚██╔╝██║██║   ██║██║  ██║
  ╚██████╔╝██║  ██║██║██████╔╝██║ ╚═╝ ██║╚██████╔╝██████╔╝
   ╚═════╝ ╚═╝  ╚═╝╚═╝╚═════╝ ╚═╝     ╚═╝ ╚═════╝ ╚═════╝ ` + telnet.Reset + `
`

// GameServer implements telnet.SessionHandler. One instance serves every
// connection; per-connection state lives on the session.
type GameServer struct {
	cfg       config.GameConfig
	telnetCfg config.TelnetConfig

	players    PlayerStore
	sessions   *session.Manager
	rooms      *world.Store
	objects    *object.Manager
	monsters   *monster.Manager
	npcs       *npc.Manager
	combat     *combat.Engine
	dispatcher *command.Dispatcher
	router     *broadcast.Router
	bus        *event.Bus
	daynight   *scheduler.DayNight
	sched      *scheduler.Scheduler
	scripts    *scripting.Engine
	logger     *zap.Logger

	reaperQuit chan struct{}
	reaperDone chan struct{}
	reaperOnce sync.Once
}

// NewGameServer creates the frontend and registers its command table on
// the dispatcher. scripts and sched may be nil.
//
// Precondition: all other collaborators must be non-nil.
func NewGameServer(
	cfg config.GameConfig,
	telnetCfg config.TelnetConfig,
	players PlayerStore,
	sessions *session.Manager,
	rooms *world.Store,
	objects *object.Manager,
	monsters *monster.Manager,
	npcs *npc.Manager,
	engine *combat.Engine,
	dispatcher *command.Dispatcher,
	router *broadcast.Router,
	bus *event.Bus,
	daynight *scheduler.DayNight,
	sched *scheduler.Scheduler,
	scripts *scripting.Engine,
	logger *zap.Logger,
) (*GameServer, error) {
	g := &GameServer{
		cfg:        cfg,
		telnetCfg:  telnetCfg,
		players:    players,
		sessions:   sessions,
		rooms:      rooms,
		objects:    objects,
		monsters:   monsters,
		npcs:       npcs,
		combat:     engine,
		dispatcher: dispatcher,
		router:     router,
		bus:        bus,
		daynight:   daynight,
		sched:      sched,
		scripts:    scripts,
		logger:     logger,
		reaperQuit: make(chan struct{}),
		reaperDone: make(chan struct{}),
	}
	if err := g.registerCommands(); err != nil {
		return nil, fmt.Errorf("registering commands: %w", err)
	}
	engine.SetViewPusher(g)
	dispatcher.SetCombatResolver(engine)
	return g, nil
}

// marker prefixes a reply line according to the result type.
func marker(t command.ResultType) string {
	switch t {
	case command.ResultSuccess:
		return "✅ "
	case command.ResultError:
		return "❌ "
	default:
		return "ℹ️ "
	}
}

// connWriter adapts a telnet connection to the session Writer.
type connWriter struct {
	conn *telnet.Conn
}

func (w *connWriter) WriteLine(line string) error {
	return w.conn.WriteLine(line)
}

// HandleSession implements telnet.SessionHandler: banner, auth menu,
// then the game loop until quit, eviction, or disconnect.
//
// Postcondition: The session is unregistered and the player saved when
// this method returns.
func (g *GameServer) HandleSession(ctx context.Context, conn *telnet.Conn) error {
	sess := session.New(&connWriter{conn: conn}, i18n.Locale(g.cfg.DefaultLocale))
	if err := g.sessions.Add(sess); err != nil {
		return fmt.Errorf("registering session: %w", err)
	}
	defer g.cleanup(sess)

	// Evictions and kicks land while the game loop is blocked reading, so
	// the notice and the connection close happen from the closing
	// goroutine.
	sess.SetCloseHook(func(reason string) {
		_ = conn.WriteLine("ℹ️ " + g.closeNotice(sess, reason))
		_ = conn.Close()
	})

	g.bus.Publish(event.New(event.PlayerConnected).WithSource(sess.ID))

	if err := conn.Write([]byte(welcomeBanner)); err != nil {
		return fmt.Errorf("sending welcome: %w", err)
	}

	authed, err := g.authLoop(ctx, conn, sess)
	if err != nil || !authed {
		return err
	}

	return g.gameLoop(ctx, conn, sess)
}

// authLoop presents the 1=login / 2=register / 3=quit menu until the
// player authenticates, quits, or exhausts the attempt cap.
//
// Postcondition: Returns (true, nil) with the session authenticated and
// positioned, or (false, err-or-nil) when the connection should close.
func (g *GameServer) authLoop(ctx context.Context, conn *telnet.Conn, sess *session.Session) (bool, error) {
	attempts := 0
	for attempts < maxAuthAttempts {
		select {
		case <-ctx.Done():
			_ = conn.WriteLine(g.render(sess, i18n.T("server.shutting_down")))
			return false, ctx.Err()
		default:
		}

		g.showMenu(conn, sess)
		if err := conn.WritePrompt(telnet.Colorize(telnet.BrightWhite, "> ")); err != nil {
			return false, fmt.Errorf("writing prompt: %w", err)
		}

		line, err := conn.ReadLine(g.telnetCfg.ReadTimeout)
		if err != nil {
			if errors.Is(err, telnet.ErrReadTimeout) {
				continue
			}
			return false, fmt.Errorf("reading menu choice: %w", err)
		}

		switch strings.ToLower(strings.TrimSpace(line)) {
		case "1", "login":
			ok, err := g.handleLogin(ctx, conn, sess)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
			attempts++

		case "2", "register":
			ok, err := g.handleRegister(ctx, conn, sess)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
			attempts++

		case "3", "quit", "exit":
			_ = conn.WriteLine(g.render(sess, i18n.T("auth.goodbye")))
			return false, nil

		case "":
			continue

		default:
			_ = conn.WriteLine("❌ " + g.render(sess, i18n.T("auth.bad_choice")))
			attempts++
		}
	}

	_ = conn.WriteLine("❌ " + g.render(sess, i18n.T("auth.too_many_attempts")))
	g.logger.Info("auth attempts exhausted", zap.String("remote_addr", conn.RemoteAddr().String()))
	return false, nil
}

func (g *GameServer) showMenu(conn *telnet.Conn, sess *session.Session) {
	_ = conn.WriteLine("")
	_ = conn.WriteLine(g.render(sess, i18n.T("auth.menu_login")))
	_ = conn.WriteLine(g.render(sess, i18n.T("auth.menu_register")))
	_ = conn.WriteLine(g.render(sess, i18n.T("auth.menu_quit")))
}

// handleLogin prompts for credentials and authenticates.
//
// Postcondition: Returns (true, nil) on success, (false, nil) when the
// failure was shown to the user, or (false, err) on a dead connection.
func (g *GameServer) handleLogin(ctx context.Context, conn *telnet.Conn, sess *session.Session) (bool, error) {
	username, err := g.prompt(conn, sess, "auth.username")
	if err != nil {
		return false, err
	}
	password, err := g.promptPassword(conn, sess, "auth.password")
	if err != nil {
		return false, err
	}

	player, err := g.players.Authenticate(ctx, username, password)
	if err != nil {
		switch {
		case errors.Is(err, postgres.ErrNotFound):
			_ = conn.WriteLine("❌ " + g.render(sess, i18n.T("auth.no_such_account")))
		case errors.Is(err, postgres.ErrInvalidCredentials):
			_ = conn.WriteLine("❌ " + g.render(sess, i18n.T("auth.bad_password")))
		default:
			g.logger.Error("authentication error", zap.Error(err))
			_ = conn.WriteLine("❌ " + g.render(sess, i18n.T("auth.internal_error")))
		}
		return false, nil
	}

	g.enterWorld(conn, sess, player)
	return true, nil
}

// handleRegister prompts for a username, password, and confirmation.
func (g *GameServer) handleRegister(ctx context.Context, conn *telnet.Conn, sess *session.Session) (bool, error) {
	username, err := g.prompt(conn, sess, "auth.username")
	if err != nil {
		return false, err
	}
	if len(username) < 3 || len(username) > 32 {
		_ = conn.WriteLine("❌ " + g.render(sess, i18n.T("auth.bad_username")))
		return false, nil
	}
	password, err := g.promptPassword(conn, sess, "auth.password")
	if err != nil {
		return false, err
	}
	if len(password) < 6 {
		_ = conn.WriteLine("❌ " + g.render(sess, i18n.T("auth.short_password")))
		return false, nil
	}
	confirm, err := g.promptPassword(conn, sess, "auth.confirm_password")
	if err != nil {
		return false, err
	}
	if confirm != password {
		_ = conn.WriteLine("❌ " + g.render(sess, i18n.T("auth.password_mismatch")))
		return false, nil
	}

	player, err := g.players.Create(ctx, username, password, sess.Locale())
	if err != nil {
		if errors.Is(err, postgres.ErrPlayerExists) {
			_ = conn.WriteLine("❌ " + g.render(sess, i18n.T("auth.username_taken")))
			return false, nil
		}
		g.logger.Error("registration error", zap.Error(err))
		_ = conn.WriteLine("❌ " + g.render(sess, i18n.T("auth.internal_error")))
		return false, nil
	}

	g.enterWorld(conn, sess, player)
	return true, nil
}

// enterWorld binds the player, evicts any duplicate login, restores the
// last-known position, and renders the first room view.
func (g *GameServer) enterWorld(conn *telnet.Conn, sess *session.Session, player *session.Player) {
	evicted := g.sessions.Authenticate(sess, player)
	if evicted != nil {
		g.logger.Info("evicted duplicate session",
			zap.String("player", player.Username),
			zap.String("evicted_session", evicted.ID),
		)
	}

	coord, ok := g.restoreCoord(player)
	if !ok {
		g.logger.Error("no default room; player placed at origin",
			zap.String("player", player.Username),
		)
	}
	sess.SetCoord(coord)

	g.bus.Publish(event.New(event.PlayerLogin).
		WithSource(sess.ID).
		WithCoord(coord.X, coord.Y).
		WithData("player", player.Username))

	_ = conn.WriteLine("✅ " + g.render(sess, i18n.T("auth.welcome", "name", player.DisplayName)))
	g.PushRoomView(sess)
}

// restoreCoord resolves the player's last room, falling back to the
// default room when it is missing or no longer exists.
func (g *GameServer) restoreCoord(player *session.Player) (world.Coord, bool) {
	if player.LastRoomID != "" {
		if room, ok := g.rooms.GetRoom(player.LastRoomID); ok {
			return room.Coord, true
		}
	}
	if room, ok := g.rooms.DefaultRoom(); ok {
		player.LastRoomID = room.ID
		return room.Coord, true
	}
	return world.Coord{}, false
}

// gameLoop reads lines and dispatches them until the session ends.
func (g *GameServer) gameLoop(ctx context.Context, conn *telnet.Conn, sess *session.Session) error {
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteLine(g.render(sess, i18n.T("server.shutting_down")))
			return ctx.Err()
		default:
		}
		if closed, _ := sess.Closed(); closed {
			// The close hook already delivered the notice.
			return nil
		}

		if err := conn.WritePrompt(telnet.Colorize(telnet.BrightWhite, "> ")); err != nil {
			return fmt.Errorf("writing prompt: %w", err)
		}

		line, err := conn.ReadLine(g.telnetCfg.ReadTimeout)
		if err != nil {
			if errors.Is(err, telnet.ErrReadTimeout) {
				continue
			}
			// A close hook shutting the connection surfaces here as a
			// read error; not a fault.
			if closed, _ := sess.Closed(); closed {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		sess.Touch()
		result := g.dispatcher.Dispatch(sess, line)
		g.route(sess, result)

		if result.Disconnect {
			return nil
		}
	}
}

// closeNotice maps a close reason to its localized line.
func (g *GameServer) closeNotice(sess *session.Session, reason string) string {
	switch reason {
	case session.EvictNotice:
		return g.render(sess, i18n.T("auth.evicted"))
	case "":
		return g.render(sess, i18n.T("session.closed"))
	default:
		return g.render(sess, i18n.T("session.closed_reason", "reason", reason))
	}
}

// route delivers a handler result: reply to the issuer, then the
// requested fan-out. Broadcasts are suppressed on error results.
func (g *GameServer) route(sess *session.Session, result command.Result) {
	if result.Message.Key != "" {
		_ = sess.WriteLine(marker(result.Type) + g.render(sess, result.Message))
	}
	if result.Broadcast && result.Type != command.ResultError {
		if result.RoomOnly {
			g.router.BroadcastAt(sess.Coord(), result.BroadcastMessage, sess.ID)
		} else {
			g.router.BroadcastToAll(result.BroadcastMessage, sess.ID)
		}
	}
}

// render localizes a message for one session.
func (g *GameServer) render(sess *session.Session, msg i18n.Text) string {
	return g.router.Render(sess, msg)
}

// prompt writes a localized prompt and reads one trimmed line.
func (g *GameServer) prompt(conn *telnet.Conn, sess *session.Session, key string) (string, error) {
	if err := conn.WritePrompt(g.render(sess, i18n.T(key)) + " "); err != nil {
		return "", err
	}
	line, err := conn.ReadLine(g.telnetCfg.ReadTimeout)
	if err != nil {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// promptPassword is prompt with client echo suppressed.
func (g *GameServer) promptPassword(conn *telnet.Conn, sess *session.Session, key string) (string, error) {
	if err := conn.WritePrompt(g.render(sess, i18n.T(key)) + " "); err != nil {
		return "", err
	}
	line, err := conn.ReadPassword(g.telnetCfg.ReadTimeout)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// cleanup unregisters a session, aborting any combat it left running,
// and saves the bound player.
func (g *GameServer) cleanup(sess *session.Session) {
	if player := sess.Player(); player != nil {
		if g.combat.Abort(player.ID) {
			g.logger.Info("combat aborted on disconnect",
				zap.String("player", player.Username),
				zap.String("session_id", sess.ID),
			)
		}
		g.savePlayer(player)
		g.bus.Publish(event.New(event.PlayerLogout).
			WithSource(sess.ID).
			WithData("player", player.Username))
	}
	g.bus.Publish(event.New(event.PlayerDisconnected).WithSource(sess.ID))
	g.sessions.Remove(sess.ID)
}

// savePlayer writes a player's state through to storage, logging rather
// than surfacing failures.
func (g *GameServer) savePlayer(player *session.Player) {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := g.players.Save(ctx, player); err != nil {
		g.logger.Error("saving player failed",
			zap.String("player", player.Username),
			zap.Error(err),
		)
	}
}

// RunIdleReaper closes sessions idle past the configured timeout. Blocks
// until StopIdleReaper is called; run it as a lifecycle service.
func (g *GameServer) RunIdleReaper() error {
	interval := g.telnetCfg.ReaperInterval
	timeout := g.telnetCfg.IdleTimeout
	if interval <= 0 || timeout <= 0 {
		<-g.reaperQuit
		close(g.reaperDone)
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-g.reaperQuit:
			close(g.reaperDone)
			return nil
		case now := <-ticker.C:
			for _, sess := range g.sessions.All() {
				if now.Sub(sess.LastActive()) < timeout {
					continue
				}
				g.logger.Info("reaping idle session",
					zap.String("session_id", sess.ID),
					zap.String("player", sess.PlayerName()),
					zap.Duration("idle", now.Sub(sess.LastActive())),
				)
				sess.Close("idle timeout")
			}
		}
	}
}

// StopIdleReaper stops the reaper loop and waits for it to exit.
func (g *GameServer) StopIdleReaper() {
	g.reaperOnce.Do(func() { close(g.reaperQuit) })
	<-g.reaperDone
}
