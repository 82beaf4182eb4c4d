// Package rooms holds the authoritative in-memory state of every active
// room and serializes the commands that mutate it.
//
// Each room processes one command at a time; different rooms proceed in
// parallel. Accepted commands bump the room's sequence number and write
// the new snapshot through to storage before the result is returned, so a
// crashed server rehydrates to the last accepted command.
package rooms

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	apperrors "github.com/louisbranch/ruleshift/internal/platform/errors"
	"github.com/louisbranch/ruleshift/internal/platform/id"
	"github.com/louisbranch/ruleshift/internal/services/game/dice"
	"github.com/louisbranch/ruleshift/internal/services/game/domain/board"
	"github.com/louisbranch/ruleshift/internal/services/game/domain/effects"
	"github.com/louisbranch/ruleshift/internal/services/game/domain/engine"
	"github.com/louisbranch/ruleshift/internal/services/game/domain/evaluator"
	"github.com/louisbranch/ruleshift/internal/services/game/domain/rule"
	"github.com/louisbranch/ruleshift/internal/services/game/storage"
)

// Notifier receives the new state and log trail after every accepted
// command. The websocket hub implements it to fan updates out to clients.
type Notifier interface {
	RoomUpdated(roomID string, state board.GameState, logs []string)
}

type room struct {
	mu    sync.Mutex
	state board.GameState
	seq   int64
}

// Registry is the room registry. The zero value is not usable; construct
// with New.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*room

	store     storage.Store
	processor engine.Processor
	notifier  Notifier
	log       zerolog.Logger
	newID     func() (string, error)
}

// Option configures a Registry.
type Option func(*Registry)

// WithNotifier wires the broadcast sink invoked after accepted commands.
func WithNotifier(notifier Notifier) Option {
	return func(r *Registry) { r.notifier = notifier }
}

// WithProcessor overrides the engine processor, used by tests to pin time
// and id generation.
func WithProcessor(processor engine.Processor) Option {
	return func(r *Registry) { r.processor = processor }
}

// WithIDGenerator overrides room id generation.
func WithIDGenerator(generator func() (string, error)) Option {
	return func(r *Registry) { r.newID = generator }
}

// New constructs a registry backed by the given store.
func New(store storage.Store, logger zerolog.Logger, opts ...Option) *Registry {
	registry := &Registry{
		rooms: make(map[string]*room),
		store: store,
		log:   logger,
		newID: id.NewID,
	}
	for _, opt := range opts {
		opt(registry)
	}
	return registry
}

// Rehydrate loads every persisted room snapshot into memory. Called once
// at startup before the transport accepts traffic.
func (r *Registry) Rehydrate(ctx context.Context) error {
	pageToken := ""
	loaded := 0
	for {
		page, err := r.store.ListRooms(ctx, 0, pageToken)
		if err != nil {
			return err
		}
		for _, summary := range page.Rooms {
			record, err := r.store.GetSnapshot(ctx, summary.RoomID)
			if err != nil {
				return err
			}
			r.mu.Lock()
			r.rooms[record.RoomID] = &room{state: record.State, seq: record.Seq}
			r.mu.Unlock()
			loaded++
		}
		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}
	r.log.Info().Int("rooms", loaded).Msg("rehydrated rooms")
	return nil
}

// CreateRoom seeds a new room. Extra rules (from templates or loaded rule
// packs) join the active rule list with identities assigned.
func (r *Registry) CreateRoom(ctx context.Context, name string, extraRules []rule.Rule) (board.GameState, error) {
	if name == "" {
		return board.GameState{}, apperrors.New(apperrors.CodeRoomNameEmpty, "room name is required")
	}
	roomID, err := r.newID()
	if err != nil {
		return board.GameState{}, apperrors.Wrap(apperrors.CodeUnknown, "generate room id", err)
	}

	state := r.processor.NewInitialState(roomID, name)
	now := r.now()
	for _, extra := range extraRules {
		seeded := extra.Clone()
		if seeded.ID == "" {
			ruleID, err := r.newID()
			if err != nil {
				return board.GameState{}, apperrors.Wrap(apperrors.CodeUnknown, "generate rule id", err)
			}
			seeded.ID = ruleID
		}
		if seeded.CreatedAt.IsZero() {
			seeded.CreatedAt = now
		}
		state.ActiveRules = append(state.ActiveRules, seeded)
	}

	if err := r.persist(ctx, state, 1); err != nil {
		return board.GameState{}, err
	}
	entry := &room{state: state, seq: 1}

	r.mu.Lock()
	r.rooms[roomID] = entry
	r.mu.Unlock()

	r.log.Info().Str("room", roomID).Str("name", name).
		Int("seeded_rules", len(extraRules)).Msg("room created")
	return state.Clone(), nil
}

// CloseRoom drops a room from memory and storage.
func (r *Registry) CloseRoom(ctx context.Context, roomID string) error {
	r.mu.Lock()
	delete(r.rooms, roomID)
	r.mu.Unlock()

	if err := r.store.DeleteSnapshot(ctx, roomID); err != nil {
		return err
	}
	r.log.Info().Str("room", roomID).Msg("room closed")
	return nil
}

// State returns a copy of a room's current state.
func (r *Registry) State(_ context.Context, roomID string) (board.GameState, error) {
	entry, err := r.room(roomID)
	if err != nil {
		return board.GameState{}, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.state.Clone(), nil
}

// ListRooms returns a lobby page from storage.
func (r *Registry) ListRooms(ctx context.Context, pageSize int, pageToken string) (storage.RoomPage, error) {
	return r.store.ListRooms(ctx, pageSize, pageToken)
}

// RollHistory returns a page of the room's roll journal.
func (r *Registry) RollHistory(ctx context.Context, roomID string, pageSize int, pageToken string) (storage.RollPage, error) {
	if _, err := r.room(roomID); err != nil {
		return storage.RollPage{}, err
	}
	return r.store.ListRolls(ctx, roomID, pageSize, pageToken)
}

// VerifyJournal checks the hash chain of a room's persisted roll history.
func (r *Registry) VerifyJournal(ctx context.Context, roomID string) error {
	if _, err := r.room(roomID); err != nil {
		return err
	}
	return r.store.VerifyJournal(ctx, roomID)
}

// Join adds a player to a room.
func (r *Registry) Join(ctx context.Context, roomID, playerID, name string) (board.GameState, error) {
	return r.update(ctx, roomID, func(state board.GameState) (board.GameState, []string, error) {
		next, err := r.processor.JoinPlayer(state, playerID, name)
		if err != nil {
			return state, nil, err
		}
		return next, []string{name + " joined the room"}, nil
	})
}

// Leave removes a player from a room.
func (r *Registry) Leave(ctx context.Context, roomID, playerID string) (board.GameState, error) {
	return r.update(ctx, roomID, func(state board.GameState) (board.GameState, []string, error) {
		player, ok := state.PlayerByID(playerID)
		if !ok {
			return state, nil, apperrors.New(apperrors.CodePlayerNotFound, "player not found")
		}
		next, logs := engine.RemovePlayer(state, playerID)
		return next, append(logs, player.Name+" left the room"), nil
	})
}

// Start transitions a waiting room to playing.
func (r *Registry) Start(ctx context.Context, roomID string) (board.GameState, error) {
	return r.update(ctx, roomID, func(state board.GameState) (board.GameState, []string, error) {
		next, err := engine.StartGame(state)
		if err != nil {
			return state, nil, err
		}
		return next, []string{"The game begins"}, nil
	})
}

// RollOutcome is the result of an accepted roll.
type RollOutcome struct {
	State   board.GameState
	Logs    []string
	RawDice int
	Seq     int64
}

// Roll processes a movement roll for the acting player. When rawDice is
// zero the registry rolls a seeded d6 itself; a non-zero value must be a
// legal d6 roll (clients with physical dice report what they rolled).
func (r *Registry) Roll(ctx context.Context, roomID, playerID string, rawDice int) (RollOutcome, error) {
	entry, err := r.room(roomID)
	if err != nil {
		return RollOutcome{}, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	state := entry.state
	if state.Status != board.StatusPlaying {
		return RollOutcome{}, apperrors.New(apperrors.CodeCommandInvalidPayload, "game is not in progress")
	}
	player, ok := state.PlayerByID(playerID)
	if !ok {
		return RollOutcome{}, apperrors.New(apperrors.CodePlayerNotFound, "player not found")
	}
	if state.CurrentTurn != playerID {
		return RollOutcome{}, apperrors.New(apperrors.CodeCommandInvalidPayload, "it is not your turn")
	}
	if player.HasPlayedThisTurn {
		return RollOutcome{}, apperrors.New(apperrors.CodeCommandInvalidPayload, "you already rolled this turn")
	}

	if rawDice == 0 {
		rawDice = dice.RollMovement(time.Now().UnixNano())
	}
	if !dice.InRange(rawDice) {
		return RollOutcome{}, apperrors.New(apperrors.CodeDiceOutOfRange, "dice value must be between 1 and 6")
	}

	seed := engine.RollSeed(state, playerID, rawDice)
	effectiveDice, _ := r.effectiveDice(player, rawDice)

	next, logs := r.processor.ProcessDiceRoll(state, playerID, rawDice)
	seq := entry.seq + 1

	if err := r.persist(ctx, next, seq); err != nil {
		return RollOutcome{}, err
	}
	if err := r.store.AppendRoll(ctx, storage.RollRecord{
		RoomID:        roomID,
		Seq:           seq,
		PlayerID:      playerID,
		RawDice:       rawDice,
		EffectiveDice: effectiveDice,
		Seed:          seed,
		Logs:          logs,
		CreatedAt:     r.now(),
	}); err != nil {
		return RollOutcome{}, err
	}
	entry.state = next
	entry.seq = seq

	r.log.Info().Str("room", roomID).Str("player", playerID).
		Int("raw", rawDice).Int("effective", effectiveDice).
		Int64("seq", seq).Msg("roll processed")
	r.broadcast(roomID, entry.state, logs)

	return RollOutcome{
		State:   entry.state.Clone(),
		Logs:    append([]string(nil), logs...),
		RawDice: rawDice,
		Seq:     seq,
	}, nil
}

// EndTurn passes the turn to the next player. Only the acting player may
// end their turn, and only after rolling.
func (r *Registry) EndTurn(ctx context.Context, roomID, playerID string) (board.GameState, error) {
	return r.update(ctx, roomID, func(state board.GameState) (board.GameState, []string, error) {
		player, ok := state.PlayerByID(playerID)
		if !ok {
			return state, nil, apperrors.New(apperrors.CodePlayerNotFound, "player not found")
		}
		if state.CurrentTurn != playerID {
			return state, nil, apperrors.New(apperrors.CodeCommandInvalidPayload, "it is not your turn")
		}
		if !player.HasPlayedThisTurn {
			return state, nil, apperrors.New(apperrors.CodeCommandInvalidPayload, "roll before ending your turn")
		}
		next, logs := engine.AdvanceTurn(state)
		return next, logs, nil
	})
}

// ModifyRule applies a turn-gated rule modification. Gate refusals come
// back as (state, false, message) with no state change.
func (r *Registry) ModifyRule(ctx context.Context, roomID, playerID string, mod engine.RuleModification) (board.GameState, bool, string, error) {
	if mod.Rule != nil {
		if err := mod.Rule.Validate(); err != nil {
			return board.GameState{}, false, err.Error(), nil
		}
	}
	return r.modify(ctx, roomID, func(state board.GameState) (board.GameState, bool, string) {
		return r.processor.ProcessRuleModification(state, playerID, mod)
	})
}

// ModifyTile applies a turn-gated tile modification.
func (r *Registry) ModifyTile(ctx context.Context, roomID, playerID string, mod engine.TileModification) (board.GameState, bool, string, error) {
	return r.modify(ctx, roomID, func(state board.GameState) (board.GameState, bool, string) {
		return r.processor.ProcessTileModification(state, playerID, mod)
	})
}

// RulesForTile returns the rules bound to a tile, in execution order.
func (r *Registry) RulesForTile(_ context.Context, roomID string, tileIndex int) ([]rule.Rule, error) {
	entry, err := r.room(roomID)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return rule.Sort(evaluator.RulesForTile(entry.state, tileIndex)), nil
}

func (r *Registry) room(roomID string) (*room, error) {
	r.mu.RLock()
	entry, ok := r.rooms[roomID]
	r.mu.RUnlock()
	if !ok {
		return nil, apperrors.New(apperrors.CodeRoomNotFound, "room not found")
	}
	return entry, nil
}

// update runs a state transition under the room lock, persisting and
// broadcasting when it succeeds.
func (r *Registry) update(ctx context.Context, roomID string, fn func(board.GameState) (board.GameState, []string, error)) (board.GameState, error) {
	entry, err := r.room(roomID)
	if err != nil {
		return board.GameState{}, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	next, logs, err := fn(entry.state)
	if err != nil {
		return board.GameState{}, err
	}
	seq := entry.seq + 1
	if err := r.persist(ctx, next, seq); err != nil {
		return board.GameState{}, err
	}
	entry.state = next
	entry.seq = seq
	r.broadcast(roomID, entry.state, logs)
	return entry.state.Clone(), nil
}

// modify runs a turn-gated modification under the room lock. Refused
// modifications do not bump the sequence or touch storage.
func (r *Registry) modify(ctx context.Context, roomID string, fn func(board.GameState) (board.GameState, bool, string)) (board.GameState, bool, string, error) {
	entry, err := r.room(roomID)
	if err != nil {
		return board.GameState{}, false, "", err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	next, ok, message := fn(entry.state)
	if !ok {
		return entry.state.Clone(), false, message, nil
	}
	seq := entry.seq + 1
	if err := r.persist(ctx, next, seq); err != nil {
		return board.GameState{}, false, "", err
	}
	entry.state = next
	entry.seq = seq
	r.log.Info().Str("room", roomID).Str("result", message).Msg("modification accepted")
	r.broadcast(roomID, entry.state, []string{message})
	return entry.state.Clone(), true, message, nil
}

func (r *Registry) persist(ctx context.Context, state board.GameState, seq int64) error {
	return r.store.PutSnapshot(ctx, storage.SnapshotRecord{
		RoomID:    state.RoomID,
		Seq:       seq,
		State:     state,
		UpdatedAt: r.now(),
	})
}

func (r *Registry) broadcast(roomID string, state board.GameState, logs []string) {
	if r.notifier == nil {
		return
	}
	r.notifier.RoomUpdated(roomID, state.Clone(), append([]string(nil), logs...))
}

func (r *Registry) effectiveDice(player board.Player, rawDice int) (int, []string) {
	manager := effects.Manager{Now: r.processor.Now}
	return manager.DiceValue(player, rawDice)
}

func (r *Registry) now() time.Time {
	if r.processor.Now != nil {
		return r.processor.Now()
	}
	return time.Now()
}
