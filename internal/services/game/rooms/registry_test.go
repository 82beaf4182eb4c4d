package rooms

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	apperrors "github.com/louisbranch/ruleshift/internal/platform/errors"
	"github.com/louisbranch/ruleshift/internal/services/game/domain/board"
	"github.com/louisbranch/ruleshift/internal/services/game/domain/engine"
	"github.com/louisbranch/ruleshift/internal/services/game/domain/rule"
	"github.com/louisbranch/ruleshift/internal/services/game/storage"
	"github.com/louisbranch/ruleshift/internal/services/game/storage/sqlite"
)

type notifierSpy struct {
	updates int
	lastID  string
	lastLog []string
}

func (n *notifierSpy) RoomUpdated(roomID string, _ board.GameState, logs []string) {
	n.updates++
	n.lastID = roomID
	n.lastLog = logs
}

func newTestRegistry(t *testing.T) (*Registry, *notifierSpy) {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "rooms.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	counter := 0
	spy := &notifierSpy{}
	registry := New(store, zerolog.Nop(),
		WithNotifier(spy),
		WithProcessor(engine.Processor{
			Now: func() time.Time {
				return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
			},
		}),
		WithIDGenerator(func() (string, error) {
			counter++
			return fmt.Sprintf("room-%d", counter), nil
		}),
	)
	return registry, spy
}

// startedRoom creates a two-player room and starts the game.
func startedRoom(t *testing.T, registry *Registry) string {
	t.Helper()
	ctx := context.Background()
	state, err := registry.CreateRoom(ctx, "Test Room", nil)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	roomID := state.RoomID
	if _, err := registry.Join(ctx, roomID, "p1", "Ada"); err != nil {
		t.Fatalf("join p1: %v", err)
	}
	if _, err := registry.Join(ctx, roomID, "p2", "Lin"); err != nil {
		t.Fatalf("join p2: %v", err)
	}
	if _, err := registry.Start(ctx, roomID); err != nil {
		t.Fatalf("start: %v", err)
	}
	return roomID
}

func TestCreateRoom(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	state, err := registry.CreateRoom(ctx, "Friday Night", nil)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if state.RoomID != "room-1" || state.RoomName != "Friday Night" {
		t.Fatalf("state = %s/%s", state.RoomID, state.RoomName)
	}
	if state.Status != board.StatusWaiting {
		t.Fatalf("status = %s, want waiting", state.Status)
	}

	page, err := registry.ListRooms(ctx, 10, "")
	if err != nil {
		t.Fatalf("list rooms: %v", err)
	}
	if len(page.Rooms) != 1 || page.Rooms[0].RoomID != "room-1" {
		t.Fatalf("lobby = %+v", page.Rooms)
	}

	if _, err := registry.CreateRoom(ctx, "", nil); apperrors.CodeOf(err) != apperrors.CodeRoomNameEmpty {
		t.Fatalf("empty name error = %v", err)
	}
}

func TestCreateRoomSeedsPackRules(t *testing.T) {
	registry, _ := newTestRegistry(t)

	extra := []rule.Rule{{
		Title:   "Lucky eight",
		Trigger: rule.TriggerSpec{Type: rule.TriggerDiceRoll},
		Effects: []rule.Effect{{Type: rule.EffectScoreDelta, Value: 3, Target: rule.TargetSelf}},
	}}
	state, err := registry.CreateRoom(context.Background(), "Packed", extra)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if len(state.ActiveRules) != 1 {
		t.Fatalf("active rules = %d, want 1", len(state.ActiveRules))
	}
	seeded := state.ActiveRules[0]
	if seeded.ID == "" || seeded.CreatedAt.IsZero() {
		t.Fatalf("seeded rule identity missing: %+v", seeded)
	}
}

func TestStateUnknownRoom(t *testing.T) {
	registry, _ := newTestRegistry(t)
	if _, err := registry.State(context.Background(), "nope"); apperrors.CodeOf(err) != apperrors.CodeRoomNotFound {
		t.Fatalf("error = %v, want room not found", err)
	}
}

func TestRollFlow(t *testing.T) {
	registry, spy := newTestRegistry(t)
	ctx := context.Background()
	roomID := startedRoom(t, registry)
	updatesBefore := spy.updates

	outcome, err := registry.Roll(ctx, roomID, "p1", 3)
	if err != nil {
		t.Fatalf("roll: %v", err)
	}
	player, _ := outcome.State.PlayerByID("p1")
	if player.Position != 3 {
		t.Fatalf("position = %d, want 3", player.Position)
	}
	if !player.HasPlayedThisTurn {
		t.Fatal("turn flag not set")
	}
	if outcome.RawDice != 3 {
		t.Fatalf("raw dice = %d", outcome.RawDice)
	}
	if spy.updates != updatesBefore+1 || spy.lastID != roomID {
		t.Fatalf("notifier updates = %d last %q", spy.updates, spy.lastID)
	}

	history, err := registry.RollHistory(ctx, roomID, 10, "")
	if err != nil {
		t.Fatalf("roll history: %v", err)
	}
	if len(history.Rolls) != 1 {
		t.Fatalf("journal = %d entries, want 1", len(history.Rolls))
	}
	record := history.Rolls[0]
	if record.PlayerID != "p1" || record.RawDice != 3 || record.EffectiveDice != 3 {
		t.Fatalf("journal record = %+v", record)
	}
	if record.Seed == 0 {
		t.Fatal("journal record has no seed")
	}
	if len(record.Logs) == 0 {
		t.Fatal("journal record has no logs")
	}
}

func TestRollGates(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	state, err := registry.CreateRoom(ctx, "Waiting Room", nil)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if _, err := registry.Join(ctx, state.RoomID, "p1", "Ada"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := registry.Roll(ctx, state.RoomID, "p1", 3); apperrors.CodeOf(err) != apperrors.CodeCommandInvalidPayload {
		t.Fatalf("roll before start = %v", err)
	}

	roomID := startedRoom(t, registry)
	if _, err := registry.Roll(ctx, roomID, "p2", 3); apperrors.CodeOf(err) != apperrors.CodeCommandInvalidPayload {
		t.Fatalf("out-of-turn roll = %v", err)
	}
	if _, err := registry.Roll(ctx, roomID, "ghost", 3); apperrors.CodeOf(err) != apperrors.CodePlayerNotFound {
		t.Fatalf("unknown player roll = %v", err)
	}
	if _, err := registry.Roll(ctx, roomID, "p1", 9); apperrors.CodeOf(err) != apperrors.CodeDiceOutOfRange {
		t.Fatalf("out-of-range roll = %v", err)
	}

	if _, err := registry.Roll(ctx, roomID, "p1", 3); err != nil {
		t.Fatalf("roll: %v", err)
	}
	if _, err := registry.Roll(ctx, roomID, "p1", 3); apperrors.CodeOf(err) != apperrors.CodeCommandInvalidPayload {
		t.Fatalf("second roll = %v", err)
	}
}

func TestServerRolledDiceStaysLegal(t *testing.T) {
	registry, _ := newTestRegistry(t)
	roomID := startedRoom(t, registry)

	outcome, err := registry.Roll(context.Background(), roomID, "p1", 0)
	if err != nil {
		t.Fatalf("roll: %v", err)
	}
	if outcome.RawDice < 1 || outcome.RawDice > 6 {
		t.Fatalf("server-rolled dice = %d, want 1..6", outcome.RawDice)
	}
}

func TestEndTurn(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()
	roomID := startedRoom(t, registry)

	if _, err := registry.EndTurn(ctx, roomID, "p2"); apperrors.CodeOf(err) != apperrors.CodeCommandInvalidPayload {
		t.Fatalf("out-of-turn end = %v", err)
	}
	if _, err := registry.EndTurn(ctx, roomID, "p1"); apperrors.CodeOf(err) != apperrors.CodeCommandInvalidPayload {
		t.Fatalf("end before roll = %v", err)
	}

	if _, err := registry.Roll(ctx, roomID, "p1", 3); err != nil {
		t.Fatalf("roll: %v", err)
	}
	state, err := registry.EndTurn(ctx, roomID, "p1")
	if err != nil {
		t.Fatalf("end turn: %v", err)
	}
	if state.CurrentTurn != "p2" {
		t.Fatalf("current turn = %s, want p2", state.CurrentTurn)
	}
	if state.TurnCount != 2 {
		t.Fatalf("turn count = %d, want 2", state.TurnCount)
	}
}

func TestModifyRuleFlow(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()
	roomID := startedRoom(t, registry)

	mod := engine.RuleModification{
		Type: engine.ModificationAdd,
		Rule: &rule.Rule{
			Title:   "Tax",
			Trigger: rule.TriggerSpec{Type: rule.TriggerLand},
			Effects: []rule.Effect{{Type: rule.EffectScoreDelta, Value: -1, Target: rule.TargetSelf}},
		},
	}

	// Before rolling the turn gate refuses, without error.
	state, ok, message, err := registry.ModifyRule(ctx, roomID, "p1", mod)
	if err != nil {
		t.Fatalf("modify: %v", err)
	}
	if ok || message != "You must roll the dice first" {
		t.Fatalf("gate = %v %q", ok, message)
	}
	if len(state.ActiveRules) != 0 {
		t.Fatal("refused modification changed state")
	}

	if _, err := registry.Roll(ctx, roomID, "p1", 3); err != nil {
		t.Fatalf("roll: %v", err)
	}
	state, ok, _, err = registry.ModifyRule(ctx, roomID, "p1", mod)
	if err != nil {
		t.Fatalf("modify: %v", err)
	}
	if !ok || len(state.ActiveRules) != 1 {
		t.Fatalf("modification = %v rules %d", ok, len(state.ActiveRules))
	}

	// Malformed rules are refused before the engine sees them.
	bad := engine.RuleModification{
		Type: engine.ModificationAdd,
		Rule: &rule.Rule{Title: "Broken", Trigger: rule.TriggerSpec{Type: "on_full_moon"}},
	}
	_, ok, message, err = registry.ModifyRule(ctx, roomID, "p1", bad)
	if err != nil {
		t.Fatalf("modify: %v", err)
	}
	if ok || message == "" {
		t.Fatalf("bad rule accepted: %v %q", ok, message)
	}
}

func TestModifyTileFlow(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()
	roomID := startedRoom(t, registry)

	if _, err := registry.Roll(ctx, roomID, "p1", 3); err != nil {
		t.Fatalf("roll: %v", err)
	}
	state, ok, _, err := registry.ModifyTile(ctx, roomID, "p1", engine.TileModification{
		Type:  engine.ModificationAdd,
		Coord: &board.Coord{X: 99, Y: 0},
	})
	if err != nil {
		t.Fatalf("modify tile: %v", err)
	}
	if !ok || len(state.Tiles) != engine.DefaultTileCount+1 {
		t.Fatalf("tile add = %v tiles %d", ok, len(state.Tiles))
	}
}

func TestRulesForTile(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()
	roomID := startedRoom(t, registry)

	if _, err := registry.Roll(ctx, roomID, "p1", 3); err != nil {
		t.Fatalf("roll: %v", err)
	}
	if _, _, _, err := registry.ModifyRule(ctx, roomID, "p1", engine.RuleModification{
		Type: engine.ModificationAdd,
		Rule: &rule.Rule{
			Title:   "Trap five",
			Trigger: rule.TriggerSpec{Type: rule.TriggerLand, Value: intPtr(5)},
			Effects: []rule.Effect{{Type: rule.EffectBackToStart, Target: rule.TargetSelf}},
		},
	}); err != nil {
		t.Fatalf("modify: %v", err)
	}

	matched, err := registry.RulesForTile(ctx, roomID, 5)
	if err != nil {
		t.Fatalf("rules for tile: %v", err)
	}
	if len(matched) != 1 || matched[0].Title != "Trap five" {
		t.Fatalf("matched = %+v", matched)
	}

	matched, err = registry.RulesForTile(ctx, roomID, 6)
	if err != nil {
		t.Fatalf("rules for tile: %v", err)
	}
	if len(matched) != 0 {
		t.Fatalf("matched = %+v, want none", matched)
	}
}

// faultStore wraps a real store and fails writes on demand.
type faultStore struct {
	storage.Store
	failPut    bool
	failAppend bool
}

func (s *faultStore) PutSnapshot(ctx context.Context, record storage.SnapshotRecord) error {
	if s.failPut {
		return errors.New("disk full")
	}
	return s.Store.PutSnapshot(ctx, record)
}

func (s *faultStore) AppendRoll(ctx context.Context, record storage.RollRecord) error {
	if s.failAppend {
		return errors.New("disk full")
	}
	return s.Store.AppendRoll(ctx, record)
}

func TestFailedPersistLeavesRoomUnchanged(t *testing.T) {
	real, err := sqlite.Open(filepath.Join(t.TempDir(), "rooms.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = real.Close() })
	store := &faultStore{Store: real}

	counter := 0
	spy := &notifierSpy{}
	registry := New(store, zerolog.Nop(),
		WithNotifier(spy),
		WithProcessor(engine.Processor{
			Now: func() time.Time {
				return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
			},
		}),
		WithIDGenerator(func() (string, error) {
			counter++
			return fmt.Sprintf("room-%d", counter), nil
		}),
	)
	ctx := context.Background()
	roomID := startedRoom(t, registry)
	updatesBefore := spy.updates

	store.failPut = true
	if _, err := registry.Roll(ctx, roomID, "p1", 3); err == nil {
		t.Fatal("roll succeeded despite failed snapshot write")
	}
	state, err := registry.State(ctx, roomID)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	player, _ := state.PlayerByID("p1")
	if player.Position != 0 || player.HasPlayedThisTurn {
		t.Fatalf("failed roll advanced state: position=%d played=%v", player.Position, player.HasPlayedThisTurn)
	}
	if spy.updates != updatesBefore {
		t.Fatalf("notifier fired on failed roll: updates = %d", spy.updates)
	}

	// A failed journal append must roll back the same way.
	store.failPut = false
	store.failAppend = true
	if _, err := registry.Roll(ctx, roomID, "p1", 3); err == nil {
		t.Fatal("roll succeeded despite failed journal write")
	}
	state, err = registry.State(ctx, roomID)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if player, _ := state.PlayerByID("p1"); player.HasPlayedThisTurn {
		t.Fatal("failed journal write still consumed the turn")
	}

	// With the store healthy again the retry goes through.
	store.failAppend = false
	outcome, err := registry.Roll(ctx, roomID, "p1", 3)
	if err != nil {
		t.Fatalf("retry roll: %v", err)
	}
	if outcome.Seq != 5 {
		t.Fatalf("seq = %d, want 5", outcome.Seq)
	}
	history, err := registry.RollHistory(ctx, roomID, 10, "")
	if err != nil {
		t.Fatalf("roll history: %v", err)
	}
	if len(history.Rolls) != 1 {
		t.Fatalf("journal = %d entries, want 1", len(history.Rolls))
	}

	store.failPut = true
	if _, err := registry.EndTurn(ctx, roomID, "p1"); err == nil {
		t.Fatal("end turn succeeded despite failed snapshot write")
	}
	state, err = registry.State(ctx, roomID)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if state.CurrentTurn != "p1" {
		t.Fatalf("failed end turn advanced the turn to %s", state.CurrentTurn)
	}

	if _, ok, _, err := registry.ModifyRule(ctx, roomID, "p1", engine.RuleModification{
		Type: engine.ModificationAdd,
		Rule: &rule.Rule{
			Title:   "Tax",
			Trigger: rule.TriggerSpec{Type: rule.TriggerLand},
			Effects: []rule.Effect{{Type: rule.EffectScoreDelta, Value: -1, Target: rule.TargetSelf}},
		},
	}); err == nil || ok {
		t.Fatalf("modify despite failed write = ok %v err %v", ok, err)
	}
	state, err = registry.State(ctx, roomID)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if len(state.ActiveRules) != 0 {
		t.Fatal("failed modification changed the rule list")
	}
}

func TestRehydrate(t *testing.T) {
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "rooms.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()

	first := New(store, zerolog.Nop())
	state, err := first.CreateRoom(ctx, "Survivor", nil)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if _, err := first.Join(ctx, state.RoomID, "p1", "Ada"); err != nil {
		t.Fatalf("join: %v", err)
	}

	second := New(store, zerolog.Nop())
	if err := second.Rehydrate(ctx); err != nil {
		t.Fatalf("rehydrate: %v", err)
	}
	loaded, err := second.State(ctx, state.RoomID)
	if err != nil {
		t.Fatalf("state after rehydrate: %v", err)
	}
	if len(loaded.Players) != 1 || loaded.Players[0].Name != "Ada" {
		t.Fatalf("players = %+v", loaded.Players)
	}
}

func TestCloseRoom(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()
	roomID := startedRoom(t, registry)

	if err := registry.CloseRoom(ctx, roomID); err != nil {
		t.Fatalf("close room: %v", err)
	}
	if _, err := registry.State(ctx, roomID); apperrors.CodeOf(err) != apperrors.CodeRoomNotFound {
		t.Fatalf("state after close = %v", err)
	}
	page, err := registry.ListRooms(ctx, 10, "")
	if err != nil {
		t.Fatalf("list rooms: %v", err)
	}
	if len(page.Rooms) != 0 {
		t.Fatalf("lobby = %+v, want empty", page.Rooms)
	}
}

func intPtr(v int) *int { return &v }
