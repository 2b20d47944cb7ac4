package gameserver

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/cory-johannsen/gridmud/internal/event"
	"github.com/cory-johannsen/gridmud/internal/game/command"
	"github.com/cory-johannsen/gridmud/internal/game/monster"
	"github.com/cory-johannsen/gridmud/internal/game/npc"
	"github.com/cory-johannsen/gridmud/internal/game/object"
	"github.com/cory-johannsen/gridmud/internal/game/session"
	"github.com/cory-johannsen/gridmud/internal/game/world"
	"github.com/cory-johannsen/gridmud/internal/i18n"
)

// displayNamePattern is the allowed rename character set: alphanumeric,
// space, and Hangul syllables.
var displayNamePattern = regexp.MustCompile(`^[a-zA-Z0-9가-힣 ]+$`)

// RoomExists implements object.LocationResolver.
func (g *GameServer) RoomExists(roomID string) bool {
	_, ok := g.rooms.GetRoom(roomID)
	return ok
}

// PlayerExists implements object.LocationResolver. Only online players
// resolve; offline inventories are repaired by the integrity sweep.
func (g *GameServer) PlayerExists(playerID string) bool {
	_, ok := g.sessions.ByPlayerID(playerID)
	return ok
}

// registerCommands fills the dispatcher's registry with the player and
// admin command tables.
func (g *GameServer) registerCommands() error {
	registry := g.dispatcher.Registry()

	cmds := []*command.Command{
		{Name: "north", Aliases: []string{"n"}, HelpKey: "help.north", Handler: g.handleMove(world.North)},
		{Name: "south", Aliases: []string{"s"}, HelpKey: "help.south", Handler: g.handleMove(world.South)},
		{Name: "east", Aliases: []string{"e"}, HelpKey: "help.east", Handler: g.handleMove(world.East)},
		{Name: "west", Aliases: []string{"w"}, HelpKey: "help.west", Handler: g.handleMove(world.West)},
		{Name: "enter", HelpKey: "help.enter", Handler: g.handleMove(world.Enter)},

		{Name: "look", Aliases: []string{"l"}, HelpKey: "help.look", Handler: g.handleLook},
		{Name: "say", Aliases: []string{"'"}, HelpKey: "help.say", Handler: g.handleSay},
		{Name: "whisper", Aliases: []string{"tell"}, HelpKey: "help.whisper", Handler: g.handleWhisper},
		{Name: "emote", Aliases: []string{"em", "me"}, HelpKey: "help.emote", Handler: g.handleEmote},
		{Name: "who", HelpKey: "help.who", Handler: g.handleWho},
		{Name: "players", Aliases: []string{"here"}, HelpKey: "help.players", Handler: g.handlePlayers},

		{Name: "inventory", Aliases: []string{"i", "inv"}, HelpKey: "help.inventory", Handler: g.handleInventory},
		{Name: "get", Aliases: []string{"take"}, HelpKey: "help.get", Handler: g.handleGet},
		{Name: "drop", HelpKey: "help.drop", Handler: g.handleDrop},
		{Name: "equip", Aliases: []string{"wield", "wear"}, HelpKey: "help.equip", Handler: g.handleEquip},
		{Name: "unequip", Aliases: []string{"remove"}, HelpKey: "help.unequip", Handler: g.handleUnequip},
		{Name: "unequipall", HelpKey: "help.unequipall", Handler: g.handleUnequipAll},

		{Name: "talk", HelpKey: "help.talk", Handler: g.handleTalk},
		{Name: "shop", HelpKey: "help.shop", Handler: g.handleShop},
		{Name: "trade", Aliases: []string{"give"}, HelpKey: "help.trade", Handler: g.handleTrade},
		{Name: "inspect", Aliases: []string{"examine", "x"}, HelpKey: "help.inspect", Handler: g.handleInspect},
		{Name: "follow", HelpKey: "help.follow", Handler: g.handleFollow},
		{Name: "attack", Aliases: []string{"a", "kill"}, HelpKey: "help.attack", Handler: g.handleAttack},

		{Name: "stats", HelpKey: "help.stats", Handler: g.handleStats},
		{Name: "help", Aliases: []string{"?"}, HelpKey: "help.help", Handler: g.handleHelp},
		{Name: "language", Aliases: []string{"lang"}, HelpKey: "help.language", Handler: g.handleLanguage},
		{Name: "changename", HelpKey: "help.changename", Handler: g.handleChangeName},
		{Name: "quit", Aliases: []string{"exit"}, HelpKey: "help.quit", Handler: g.handleQuit},
	}
	cmds = append(cmds, g.adminCommands()...)

	for _, cmd := range cmds {
		if err := registry.Register(cmd); err != nil {
			return err
		}
	}
	return nil
}

// handleByNumber resolves a numeric argument through the session's
// handle table.
func handleByNumber(sess *session.Session, arg string) (session.Handle, bool) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return session.Handle{}, false
	}
	return sess.Handle(n)
}

func (g *GameServer) handleLook(ctx *command.Context) command.Result {
	arg := ctx.ArgsFrom(0)
	if arg == "" {
		g.PushRoomView(ctx.Session)
		return command.Result{Type: command.ResultSuccess}
	}
	return g.describeTarget(ctx.Session, arg)
}

func (g *GameServer) handleInspect(ctx *command.Context) command.Result {
	arg := ctx.ArgsFrom(0)
	if arg == "" {
		return command.Errorf(i18n.T("inspect.usage"))
	}
	return g.describeTarget(ctx.Session, arg)
}

// describeTarget resolves a handle number or a name against the room
// and the player's inventory.
func (g *GameServer) describeTarget(sess *session.Session, arg string) command.Result {
	if h, ok := handleByNumber(sess, arg); ok {
		return command.Info(g.describeHandle(sess, h))
	}

	loc := sess.Locale()
	c := sess.Coord()
	if m, ok := g.monsters.FindAliveAt(c, arg, loc); ok {
		return command.Info(i18n.T("look.monster",
			"description", m.Description(loc),
			"hp", fmt.Sprintf("%d", m.HP),
			"max_hp", fmt.Sprintf("%d", m.Stats.MaxHP)))
	}
	if n, ok := g.npcs.FindActiveAt(c, arg, loc); ok {
		return command.Info(i18n.Raw(n.Description(loc)))
	}
	if room, ok := g.rooms.GetRoomAt(c); ok {
		if obj, ok := g.objects.FindIn(object.RoomLocation(room.ID), arg, loc); ok {
			return command.Info(i18n.Raw(obj.Description(loc)))
		}
	}
	if obj, ok := g.objects.FindIn(object.InventoryLocation(sess.PlayerID()), arg, loc); ok {
		return command.Info(i18n.Raw(obj.Description(loc)))
	}
	return command.Errorf(i18n.T("look.not_found", "target", arg))
}

func (g *GameServer) handleSay(ctx *command.Context) command.Result {
	text := ctx.ArgsFrom(0)
	if text == "" {
		return command.Errorf(i18n.T("say.usage"))
	}
	return command.Result{
		Type:             command.ResultSuccess,
		Message:          i18n.T("say.you", "text", text),
		Broadcast:        true,
		RoomOnly:         true,
		BroadcastMessage: i18n.T("say.other", "player", ctx.Session.PlayerName(), "text", text),
	}
}

func (g *GameServer) handleWhisper(ctx *command.Context) command.Result {
	target := ctx.Arg(0)
	text := ctx.ArgsFrom(1)
	if target == "" || text == "" {
		return command.Errorf(i18n.T("whisper.usage"))
	}
	other, ok := g.sessions.ByPlayerName(target)
	if !ok || other.ID == ctx.Session.ID {
		return command.Errorf(i18n.T("whisper.not_found", "target", target))
	}
	g.router.Send(other, i18n.T("whisper.from", "player", ctx.Session.PlayerName(), "text", text))
	return command.Success(i18n.T("whisper.to", "target", other.PlayerName(), "text", text))
}

func (g *GameServer) handleEmote(ctx *command.Context) command.Result {
	text := ctx.ArgsFrom(0)
	if text == "" {
		return command.Errorf(i18n.T("emote.usage"))
	}
	g.bus.Publish(event.New(event.PlayerEmote).
		WithSource(ctx.Session.ID).
		WithData("text", text))
	return command.Result{
		Type:             command.ResultSuccess,
		Message:          i18n.T("emote.you", "player", ctx.Session.PlayerName(), "text", text),
		Broadcast:        true,
		RoomOnly:         true,
		BroadcastMessage: i18n.T("emote.other", "player", ctx.Session.PlayerName(), "text", text),
	}
}

func (g *GameServer) handleWho(ctx *command.Context) command.Result {
	sessions := g.sessions.Authenticated()
	names := make([]string, 0, len(sessions))
	for _, s := range sessions {
		names = append(names, s.PlayerName())
	}
	return command.Info(i18n.T("who.list",
		"count", fmt.Sprintf("%d", len(names)),
		"names", strings.Join(names, ", ")))
}

func (g *GameServer) handlePlayers(ctx *command.Context) command.Result {
	var names []string
	for _, s := range g.sessions.AtCoord(ctx.Session.Coord()) {
		if s.ID == ctx.Session.ID {
			continue
		}
		names = append(names, s.PlayerName())
	}
	if len(names) == 0 {
		return command.Info(i18n.T("players.alone"))
	}
	return command.Info(i18n.T("players.here", "names", strings.Join(names, ", ")))
}

func (g *GameServer) handleInventory(ctx *command.Context) command.Result {
	loc := ctx.Session.Locale()
	items := g.objects.GetObjectsIn(object.InventoryLocation(ctx.Session.PlayerID()))
	if len(items) == 0 {
		return command.Info(i18n.T("inventory.empty"))
	}

	_ = ctx.Session.WriteLine(g.render(ctx.Session, i18n.T("inventory.header")))
	for _, obj := range items {
		line := "  " + obj.Name(loc)
		if obj.Quantity > 1 {
			line += fmt.Sprintf(" x%d", obj.Quantity)
		}
		if obj.Equipped {
			line += " " + g.render(ctx.Session, i18n.T("inventory.equipped_tag"))
		}
		_ = ctx.Session.WriteLine(line)
	}
	return command.Result{Type: command.ResultInfo}
}

// findRoomObject resolves a handle number or name to an object lying in
// the session's current room.
func (g *GameServer) findRoomObject(sess *session.Session, arg string) (*object.Instance, bool) {
	if h, ok := handleByNumber(sess, arg); ok {
		if h.Kind != session.HandleObject {
			return nil, false
		}
		obj, ok := g.objects.Get(h.ID)
		return obj, ok
	}
	room, ok := g.rooms.GetRoomAt(sess.Coord())
	if !ok {
		return nil, false
	}
	return g.objects.FindIn(object.RoomLocation(room.ID), arg, sess.Locale())
}

func (g *GameServer) handleGet(ctx *command.Context) command.Result {
	arg := ctx.ArgsFrom(0)
	if arg == "" {
		return command.Errorf(i18n.T("item.get_usage"))
	}
	obj, ok := g.findRoomObject(ctx.Session, arg)
	if !ok {
		return command.Errorf(i18n.T("item.not_here", "target", arg))
	}

	// Stackables merge into an existing stack; with every stack full the
	// item stays where it lies.
	overflow := obj.Location
	got, err := g.objects.StackInto(obj.ID, ctx.Session.PlayerID(), overflow, g)
	if err != nil {
		g.logger.Warn("pickup failed", zap.String("object_id", obj.ID), zap.Error(err))
		return command.Errorf(i18n.T("item.cannot_take").WithName("item", obj.Names))
	}
	if got.Location.Type == object.LocationRoom {
		return command.Errorf(i18n.T("item.stack_full").WithName("item", obj.Names))
	}

	g.bus.Publish(event.New(event.ObjectPickedUp).
		WithSource(ctx.Session.ID).
		WithTarget(obj.ID))
	return command.Result{
		Type:             command.ResultSuccess,
		Message:          i18n.T("item.taken").WithName("item", obj.Names),
		Broadcast:        true,
		RoomOnly:         true,
		BroadcastMessage: i18n.T("item.taken_other", "player", ctx.Session.PlayerName()).WithName("item", obj.Names),
	}
}

func (g *GameServer) handleDrop(ctx *command.Context) command.Result {
	arg := ctx.ArgsFrom(0)
	if arg == "" {
		return command.Errorf(i18n.T("item.drop_usage"))
	}
	obj, ok := g.objects.FindIn(object.InventoryLocation(ctx.Session.PlayerID()), arg, ctx.Session.Locale())
	if !ok {
		return command.Errorf(i18n.T("item.not_carried", "target", arg))
	}
	room, ok := g.rooms.GetRoomAt(ctx.Session.Coord())
	if !ok {
		return command.Errorf(i18n.T("view.nowhere"))
	}

	if err := g.objects.MoveObject(obj.ID, object.RoomLocation(room.ID), g); err != nil {
		g.logger.Warn("drop failed", zap.String("object_id", obj.ID), zap.Error(err))
		return command.Errorf(i18n.T("item.cannot_drop").WithName("item", obj.Names))
	}

	g.bus.Publish(event.New(event.ObjectDropped).
		WithSource(ctx.Session.ID).
		WithRoom(room.ID).
		WithTarget(obj.ID))
	return command.Result{
		Type:             command.ResultSuccess,
		Message:          i18n.T("item.dropped").WithName("item", obj.Names),
		Broadcast:        true,
		RoomOnly:         true,
		BroadcastMessage: i18n.T("item.dropped_other", "player", ctx.Session.PlayerName()).WithName("item", obj.Names),
	}
}

func (g *GameServer) handleEquip(ctx *command.Context) command.Result {
	arg := ctx.ArgsFrom(0)
	if arg == "" {
		return command.Errorf(i18n.T("item.equip_usage"))
	}
	playerID := ctx.Session.PlayerID()
	obj, ok := g.objects.FindIn(object.InventoryLocation(playerID), arg, ctx.Session.Locale())
	if !ok {
		return command.Errorf(i18n.T("item.not_carried", "target", arg))
	}
	if obj.Slot == "" {
		return command.Errorf(i18n.T("item.not_equippable").WithName("item", obj.Names))
	}

	// One item per slot: displace whatever occupies it.
	for _, worn := range g.objects.EquippedIn(playerID) {
		if worn.Slot == obj.Slot && worn.ID != obj.ID {
			if err := g.objects.SetEquipped(worn.ID, false); err != nil {
				g.logger.Warn("unequip failed", zap.String("object_id", worn.ID), zap.Error(err))
			}
		}
	}
	if err := g.objects.SetEquipped(obj.ID, true); err != nil {
		return command.Errorf(i18n.T("item.cannot_equip").WithName("item", obj.Names))
	}
	return command.Success(i18n.T("item.equipped").WithName("item", obj.Names))
}

func (g *GameServer) handleUnequip(ctx *command.Context) command.Result {
	arg := ctx.ArgsFrom(0)
	if arg == "" {
		return command.Errorf(i18n.T("item.unequip_usage"))
	}
	obj, ok := g.objects.FindIn(object.InventoryLocation(ctx.Session.PlayerID()), arg, ctx.Session.Locale())
	if !ok || !obj.Equipped {
		return command.Errorf(i18n.T("item.not_equipped", "target", arg))
	}
	if err := g.objects.SetEquipped(obj.ID, false); err != nil {
		return command.Errorf(i18n.T("item.cannot_unequip").WithName("item", obj.Names))
	}
	return command.Success(i18n.T("item.unequipped").WithName("item", obj.Names))
}

func (g *GameServer) handleUnequipAll(ctx *command.Context) command.Result {
	worn := g.objects.EquippedIn(ctx.Session.PlayerID())
	if len(worn) == 0 {
		return command.Info(i18n.T("item.nothing_equipped"))
	}
	for _, obj := range worn {
		if err := g.objects.SetEquipped(obj.ID, false); err != nil {
			g.logger.Warn("unequip failed", zap.String("object_id", obj.ID), zap.Error(err))
		}
	}
	return command.Success(i18n.T("item.unequipped_all", "count", fmt.Sprintf("%d", len(worn))))
}

// findNPC resolves a handle number or name to an active NPC in the room.
func (g *GameServer) findNPC(sess *session.Session, arg string) (*npc.NPC, bool) {
	if h, ok := handleByNumber(sess, arg); ok {
		if h.Kind != session.HandleNPC {
			return nil, false
		}
		n, ok := g.npcs.Get(h.ID)
		return n, ok
	}
	return g.npcs.FindActiveAt(sess.Coord(), arg, sess.Locale())
}

func (g *GameServer) handleTalk(ctx *command.Context) command.Result {
	arg := ctx.Arg(0)
	if arg == "" {
		return command.Errorf(i18n.T("talk.usage"))
	}
	n, ok := g.findNPC(ctx.Session, arg)
	if !ok {
		return command.Errorf(i18n.T("talk.not_found", "target", arg))
	}

	loc := ctx.Session.Locale()
	topic := ctx.ArgsFrom(1)

	if n.Script != "" && g.scripts != nil {
		scriptTopic := topic
		if scriptTopic == "" {
			scriptTopic = "default"
		}
		line, err := g.scripts.Respond(n.Script, ctx.Session.PlayerName(), scriptTopic)
		if err == nil {
			return command.Info(i18n.T("talk.says", "npc", n.Name(loc), "line", line))
		}
		g.logger.Warn("dialogue script failed",
			zap.String("npc_id", n.ID),
			zap.String("script", n.Script),
			zap.Error(err),
		)
	}

	line, ok := n.Respond(topic, loc)
	if !ok {
		return command.Info(i18n.T("talk.silent", "npc", n.Name(loc)))
	}
	return command.Info(i18n.T("talk.says", "npc", n.Name(loc), "line", line))
}

// findMerchant returns the first NPC at the coordinate with shop stock.
func (g *GameServer) findMerchant(c world.Coord) (*npc.NPC, bool) {
	for _, n := range g.npcs.ActiveAt(c) {
		if len(n.Shop) > 0 {
			return n, true
		}
	}
	return nil, false
}

func (g *GameServer) handleShop(ctx *command.Context) command.Result {
	merchant, ok := g.findMerchant(ctx.Session.Coord())
	if !ok {
		return command.Errorf(i18n.T("shop.no_merchant"))
	}

	sub := strings.ToLower(ctx.Arg(0))
	switch sub {
	case "", "list":
		return g.shopList(ctx.Session, merchant)
	case "buy":
		return g.shopBuy(ctx, merchant)
	default:
		return command.Errorf(i18n.T("shop.usage"))
	}
}

func (g *GameServer) shopList(sess *session.Session, merchant *npc.NPC) command.Result {
	loc := sess.Locale()
	_ = sess.WriteLine(g.render(sess, i18n.T("shop.header", "npc", merchant.Name(loc))))
	for _, entry := range merchant.Shop {
		name := entry.TemplateID
		if tpl, ok := g.objects.Template(entry.TemplateID); ok {
			name = tpl.Names.Get(loc)
		}
		_ = sess.WriteLine(fmt.Sprintf("  %s — %d %s", name, entry.Price, entry.Currency))
	}
	return command.Result{Type: command.ResultInfo}
}

func (g *GameServer) shopBuy(ctx *command.Context, merchant *npc.NPC) command.Result {
	want := strings.ToLower(ctx.ArgsFrom(1))
	if want == "" {
		return command.Errorf(i18n.T("shop.usage"))
	}
	loc := ctx.Session.Locale()

	for _, entry := range merchant.Shop {
		tpl, ok := g.objects.Template(entry.TemplateID)
		if !ok {
			continue
		}
		if !matchesTemplateName(tpl, want) {
			continue
		}

		player := ctx.Session.Player()
		if player.Stats.Gold < entry.Price {
			return command.Errorf(i18n.T("shop.cannot_afford",
				"price", fmt.Sprintf("%d", entry.Price),
				"gold", fmt.Sprintf("%d", player.Stats.Gold)))
		}
		obj, err := g.objects.Instantiate(entry.TemplateID, object.InventoryLocation(player.ID))
		if err != nil {
			g.logger.Error("shop purchase failed", zap.String("template_id", entry.TemplateID), zap.Error(err))
			return command.Errorf(i18n.T("shop.error"))
		}
		player.Stats.Gold -= entry.Price
		g.savePlayer(player)
		return command.Success(i18n.T("shop.bought",
			"price", fmt.Sprintf("%d", entry.Price),
			"currency", entry.Currency,
		).WithName("item", obj.Names))
	}
	return command.Errorf(i18n.T("shop.not_stocked", "target", want))
}

// matchesTemplateName reports whether any localized template name (or
// the id itself) contains the wanted substring.
func matchesTemplateName(tpl *object.Template, want string) bool {
	if strings.Contains(strings.ToLower(tpl.ID), want) {
		return true
	}
	for _, name := range tpl.Names {
		if strings.Contains(strings.ToLower(name), want) {
			return true
		}
	}
	return false
}

func (g *GameServer) handleTrade(ctx *command.Context) command.Result {
	itemArg := ctx.Arg(0)
	npcArg := ctx.ArgsFrom(1)
	if itemArg == "" || npcArg == "" {
		return command.Errorf(i18n.T("trade.usage"))
	}
	obj, ok := g.objects.FindIn(object.InventoryLocation(ctx.Session.PlayerID()), itemArg, ctx.Session.Locale())
	if !ok {
		return command.Errorf(i18n.T("item.not_carried", "target", itemArg))
	}
	n, ok := g.findNPC(ctx.Session, npcArg)
	if !ok {
		return command.Errorf(i18n.T("talk.not_found", "target", npcArg))
	}

	if err := g.objects.Remove(obj.ID); err != nil {
		g.logger.Warn("trade removal failed", zap.String("object_id", obj.ID), zap.Error(err))
		return command.Errorf(i18n.T("trade.error"))
	}
	g.bus.Publish(event.New(event.PlayerGive).
		WithSource(ctx.Session.ID).
		WithTarget(n.ID).
		WithData("object_id", obj.ID))
	return command.Success(i18n.T("trade.given", "npc", n.Name(ctx.Session.Locale())).WithName("item", obj.Names))
}

func (g *GameServer) handleFollow(ctx *command.Context) command.Result {
	arg := ctx.ArgsFrom(0)
	switch {
	case arg == "":
		return command.Errorf(i18n.T("follow.usage"))

	case strings.EqualFold(arg, "stop"):
		if ctx.Session.Following() == "" {
			return command.Info(i18n.T("follow.not_following"))
		}
		ctx.Session.SetFollowing("")
		return command.Success(i18n.T("follow.stopped"))
	}

	target, ok := g.sessions.ByPlayerName(arg)
	if !ok {
		return command.Errorf(i18n.T("follow.not_found", "target", arg))
	}
	if target.ID == ctx.Session.ID {
		return command.Errorf(i18n.T("follow.self"))
	}

	ctx.Session.SetFollowing(target.PlayerName())
	g.bus.Publish(event.New(event.PlayerFollow).
		WithSource(ctx.Session.ID).
		WithTarget(target.ID))
	return command.Success(i18n.T("follow.started", "leader", target.PlayerName()))
}

// resolveMonster turns a handle number or a name into a living monster
// in the session's room.
func (g *GameServer) resolveMonster(sess *session.Session, arg string) (*monster.Instance, bool) {
	if h, ok := handleByNumber(sess, arg); ok {
		if h.Kind != session.HandleMonster {
			return nil, false
		}
		m, ok := g.monsters.Get(h.ID)
		if !ok || !m.Alive {
			return nil, false
		}
		return m, true
	}
	return g.monsters.FindAliveAt(sess.Coord(), arg, sess.Locale())
}

func (g *GameServer) handleAttack(ctx *command.Context) command.Result {
	arg := ctx.ArgsFrom(0)
	if arg == "" {
		return command.Errorf(i18n.T("combat.attack_usage"))
	}
	target, ok := g.resolveMonster(ctx.Session, arg)
	if !ok {
		return command.Errorf(i18n.T("combat.no_target"))
	}
	if _, err := g.combat.Start(ctx.Session, target); err != nil {
		g.logger.Debug("combat start refused",
			zap.String("monster_id", target.ID),
			zap.Error(err),
		)
		return command.Errorf(i18n.T("combat.cannot_start"))
	}
	return command.Result{Type: command.ResultSuccess}
}

func (g *GameServer) handleStats(ctx *command.Context) command.Result {
	player := ctx.Session.Player()
	sess := ctx.Session
	s := player.Stats

	_ = sess.WriteLine(g.render(sess, i18n.T("stats.header", "name", player.DisplayName)))
	_ = sess.WriteLine(g.render(sess, i18n.T("stats.level_hp",
		"level", fmt.Sprintf("%d", s.Level),
		"hp", fmt.Sprintf("%d", s.HP),
		"max_hp", fmt.Sprintf("%d", s.MaxHP),
		"gold", fmt.Sprintf("%d", s.Gold))))
	_ = sess.WriteLine(fmt.Sprintf("  STR %d  DEX %d  CON %d  INT %d  WIS %d  CHA %d",
		s.Strength, s.Dexterity, s.Constitution, s.Intelligence, s.Wisdom, s.Charisma))
	if len(player.QuestProgress) > 0 || len(player.QuestsDone) > 0 {
		_ = sess.WriteLine(g.render(sess, i18n.T("stats.quests",
			"active", fmt.Sprintf("%d", len(player.QuestProgress)),
			"done", fmt.Sprintf("%d", len(player.QuestsDone)))))
	}
	return command.Result{Type: command.ResultInfo}
}

func (g *GameServer) handleHelp(ctx *command.Context) command.Result {
	if verb := strings.ToLower(ctx.Arg(0)); verb != "" {
		cmd, ok := g.dispatcher.Registry().Lookup(verb)
		if !ok || (cmd.Admin && !ctx.Session.IsAdmin()) {
			return command.Errorf(i18n.T("command.unknown", "verb", verb))
		}
		if cmd.HelpKey == "" {
			return command.Info(i18n.T("help.no_detail", "verb", cmd.Name))
		}
		return command.Info(i18n.T(cmd.HelpKey))
	}

	verbs := g.dispatcher.HelpVerbs(ctx.Session)
	return command.Info(i18n.T("help.list", "verbs", strings.Join(verbs, ", ")))
}

func (g *GameServer) handleLanguage(ctx *command.Context) command.Result {
	arg := strings.ToLower(ctx.Arg(0))
	if arg == "" {
		return command.Info(i18n.T("language.current", "locale", string(ctx.Session.Locale())))
	}
	loc, ok := i18n.ParseLocale(arg)
	if !ok {
		return command.Errorf(i18n.T("language.unsupported", "locale", arg))
	}
	ctx.Session.SetLocale(loc)
	if player := ctx.Session.Player(); player != nil {
		g.savePlayer(player)
	}
	return command.Success(i18n.T("language.changed", "locale", string(loc)))
}

func (g *GameServer) handleChangeName(ctx *command.Context) command.Result {
	name := strings.TrimSpace(ctx.ArgsFrom(0))
	if name == "" {
		return command.Errorf(i18n.T("rename.usage"))
	}
	if n := utf8.RuneCountInString(name); n < 3 || n > 20 {
		return command.Errorf(i18n.T("rename.bad_length"))
	}
	if !displayNamePattern.MatchString(name) {
		return command.Errorf(i18n.T("rename.bad_characters"))
	}

	player := ctx.Session.Player()

	// Admins skip the cooldown but not the name rules, and their rename
	// never advances the stamp.
	if !player.IsAdmin && !player.LastNameChange.IsZero() {
		elapsed := time.Since(player.LastNameChange)
		if elapsed < g.cfg.RenameCooldown {
			remaining := (g.cfg.RenameCooldown - elapsed).Truncate(time.Minute)
			return command.Errorf(i18n.T("rename.wait", "remaining", remaining.String()))
		}
	}

	old := player.DisplayName
	player.DisplayName = name
	if !player.IsAdmin {
		player.LastNameChange = time.Now()
	}
	g.savePlayer(player)

	g.logger.Info("player renamed",
		zap.String("player_id", player.ID),
		zap.String("old_name", old),
		zap.String("new_name", name),
	)
	return command.Success(i18n.T("rename.done", "name", name))
}

func (g *GameServer) handleQuit(ctx *command.Context) command.Result {
	return command.Result{
		Type:       command.ResultSuccess,
		Message:    i18n.T("quit.bye"),
		Disconnect: true,
	}
}
