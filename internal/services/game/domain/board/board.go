// Package board models the shared mutable game state: the tile graph, the
// players standing on it, and the rule lists evaluated against it.
//
// GameState is a plain value. Every mutator in the domain packages operates
// on a deep copy obtained from Clone, so callers holding a reference to the
// pre-call state never observe partial mutation.
package board

import (
	"fmt"

	"github.com/louisbranch/ruleshift/internal/services/game/domain/rule"
)

// Status is the lifecycle state of a room's game.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusPaused   Status = "paused"
	StatusFinished Status = "finished"
)

// TileType classifies a board tile.
type TileType string

const (
	TileStart   TileType = "start"
	TileEnd     TileType = "end"
	TileSpecial TileType = "special"
	TileNormal  TileType = "normal"
)

// Coord is a tile's 2D layout position, used by clients for rendering and
// by tile modification to reject duplicate placements.
type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Tile is a single board space.
type Tile struct {
	ID          string   `json:"id"`
	Type        TileType `json:"type"`
	Index       int      `json:"index"`
	Coord       Coord    `json:"coord"`
	Connections []string `json:"connections,omitempty"`
	Directions  []string `json:"directions,omitempty"`
	IsEndTile   bool     `json:"is_end_tile,omitempty"`
}

// Colors is the fixed palette players pick from; colors are unique per room.
var Colors = []string{"red", "blue", "green", "yellow", "purple", "orange"}

// Player is a participant in a room.
type Player struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
	// Position indexes the linearized tile list and is never negative.
	Position int                    `json:"position"`
	Score    int                    `json:"score"`
	Effects  []rule.TemporaryEffect `json:"effects,omitempty"`

	// Turn-scoped flags, reset exactly once per turn hand-off.
	HasPlayedThisTurn   bool `json:"has_played_this_turn"`
	HasModifiedThisTurn bool `json:"has_modified_this_turn"`
	SkipNextTurn        bool `json:"skip_next_turn"`
	ExtraTurns          int  `json:"extra_turns"`

	// ConsecutiveSixes counts back-to-back rolls of six by this player,
	// feeding the consecutive-roll trigger.
	ConsecutiveSixes int `json:"consecutive_sixes,omitempty"`

	IsHost      bool `json:"is_host"`
	IsConnected bool `json:"is_connected"`
}

// ActiveEffect returns the player's unexpired temporary effect of the given
// type, if any.
func (p Player) ActiveEffect(t rule.EffectType) (rule.TemporaryEffect, bool) {
	for _, effect := range p.Effects {
		if effect.Type == t && effect.Active() {
			return effect, true
		}
	}
	return rule.TemporaryEffect{}, false
}

// HasActiveEffect reports whether the player holds an unexpired effect of
// the given type.
func (p Player) HasActiveEffect(t rule.EffectType) bool {
	_, ok := p.ActiveEffect(t)
	return ok
}

// Config bounds what players may change about the board and rules.
type Config struct {
	MinTiles              int  `json:"min_tiles"`
	MaxTiles              int  `json:"max_tiles"`
	AllowRuleModification bool `json:"allow_rule_modification"`
	AllowTileModification bool `json:"allow_tile_modification"`
	ModificationsPerTurn  int  `json:"modifications_per_turn"`
}

// LastEffect remembers the most recently executed effect. The copy and
// reverse meta-actions replay it. This is a single global slot, not
// per-player history; that constraint is part of the game design.
type LastEffect struct {
	Type     rule.EffectType `json:"type"`
	Value    int             `json:"value"`
	PlayerID string          `json:"player_id"`
	RuleID   string          `json:"rule_id"`
}

// GameState is the complete per-room game state.
type GameState struct {
	RoomID      string      `json:"room_id"`
	RoomName    string      `json:"room_name,omitempty"`
	Tiles       []Tile      `json:"tiles"`
	Players     []Player    `json:"players"`
	CurrentTurn string      `json:"current_turn,omitempty"`
	Status      Status      `json:"status"`
	WinnerID    string      `json:"winner_id,omitempty"`
	ActiveRules []rule.Rule `json:"active_rules,omitempty"`
	CoreRules   []rule.Rule `json:"core_rules,omitempty"`
	TurnCount   int         `json:"turn_count"`
	Config      Config      `json:"config"`
	LastEffect  *LastEffect `json:"last_effect,omitempty"`
}

// Clone returns a deep copy of the state. No slice or pointer is shared
// with the receiver.
func (s GameState) Clone() GameState {
	cloned := s
	if s.Tiles != nil {
		cloned.Tiles = make([]Tile, len(s.Tiles))
		for i, tile := range s.Tiles {
			copied := tile
			if tile.Connections != nil {
				copied.Connections = append([]string(nil), tile.Connections...)
			}
			if tile.Directions != nil {
				copied.Directions = append([]string(nil), tile.Directions...)
			}
			cloned.Tiles[i] = copied
		}
	}
	if s.Players != nil {
		cloned.Players = make([]Player, len(s.Players))
		for i, player := range s.Players {
			copied := player
			if player.Effects != nil {
				copied.Effects = append([]rule.TemporaryEffect(nil), player.Effects...)
			}
			cloned.Players[i] = copied
		}
	}
	if s.ActiveRules != nil {
		cloned.ActiveRules = make([]rule.Rule, len(s.ActiveRules))
		for i, r := range s.ActiveRules {
			cloned.ActiveRules[i] = r.Clone()
		}
	}
	if s.CoreRules != nil {
		cloned.CoreRules = make([]rule.Rule, len(s.CoreRules))
		for i, r := range s.CoreRules {
			cloned.CoreRules[i] = r.Clone()
		}
	}
	if s.LastEffect != nil {
		last := *s.LastEffect
		cloned.LastEffect = &last
	}
	return cloned
}

// PlayerIndex returns the index of the player with the given id, or -1.
func (s GameState) PlayerIndex(id string) int {
	for i, player := range s.Players {
		if player.ID == id {
			return i
		}
	}
	return -1
}

// PlayerByID returns the player with the given id.
func (s GameState) PlayerByID(id string) (Player, bool) {
	if i := s.PlayerIndex(id); i >= 0 {
		return s.Players[i], true
	}
	return Player{}, false
}

// TileAt returns the tile with the given board index.
func (s GameState) TileAt(index int) (Tile, bool) {
	for _, tile := range s.Tiles {
		if tile.Index == index {
			return tile, true
		}
	}
	return Tile{}, false
}

// TileByID returns the tile with the given id.
func (s GameState) TileByID(id string) (Tile, bool) {
	for _, tile := range s.Tiles {
		if tile.ID == id {
			return tile, true
		}
	}
	return Tile{}, false
}

// PlayersOnTile returns the ids of players standing on the given tile
// index, excluding excludeID when non-empty.
func (s GameState) PlayersOnTile(index int, excludeID string) []string {
	var ids []string
	for _, player := range s.Players {
		if player.Position == index && player.ID != excludeID {
			ids = append(ids, player.ID)
		}
	}
	return ids
}

// ranksBefore reports whether a outranks b: further position wins, ties
// break by higher score.
func ranksBefore(a, b Player) bool {
	if a.Position != b.Position {
		return a.Position > b.Position
	}
	return a.Score > b.Score
}

// Leader returns the single highest-ranked player, excluding excludeID when
// non-empty.
func (s GameState) Leader(excludeID string) (Player, bool) {
	var leader Player
	found := false
	for _, player := range s.Players {
		if player.ID == excludeID {
			continue
		}
		if !found || ranksBefore(player, leader) {
			leader = player
			found = true
		}
	}
	return leader, found
}

// LastPlace returns the single lowest-ranked player.
func (s GameState) LastPlace() (Player, bool) {
	var last Player
	found := false
	for _, player := range s.Players {
		if !found || ranksBefore(last, player) {
			last = player
			found = true
		}
	}
	return last, found
}

// Rank returns the 1-based rank of the player: rank 1 is the furthest
// position, ties broken by higher score. Unknown players rank 0.
func (s GameState) Rank(playerID string) int {
	target, ok := s.PlayerByID(playerID)
	if !ok {
		return 0
	}
	rank := 1
	for _, player := range s.Players {
		if player.ID == playerID {
			continue
		}
		if ranksBefore(player, target) {
			rank++
		}
	}
	return rank
}

// EndTileIndex returns the board index of the victory tile: the first tile
// flagged as an end tile, falling back to the last tile index.
func (s GameState) EndTileIndex() int {
	for _, tile := range s.Tiles {
		if tile.IsEndTile || tile.Type == TileEnd {
			return tile.Index
		}
	}
	if len(s.Tiles) == 0 {
		return 0
	}
	return len(s.Tiles) - 1
}

// ResolveTargets maps a rule target to an ordered list of player ids.
// An empty target means the acting player. Random targets are resolved by
// the caller, which owns the RNG; here they fall back to the "others" pool
// for the caller to choose from.
func (s GameState) ResolveTargets(actorID string, target rule.Target) []string {
	switch target {
	case rule.TargetSelf, "":
		if _, ok := s.PlayerByID(actorID); ok {
			return []string{actorID}
		}
		return nil
	case rule.TargetOthers, rule.TargetRandom:
		var ids []string
		for _, player := range s.Players {
			if player.ID != actorID {
				ids = append(ids, player.ID)
			}
		}
		return ids
	case rule.TargetAll, rule.TargetAny:
		ids := make([]string, 0, len(s.Players))
		for _, player := range s.Players {
			ids = append(ids, player.ID)
		}
		return ids
	case rule.TargetLeader:
		if leader, ok := s.Leader(""); ok {
			return []string{leader.ID}
		}
		return nil
	case rule.TargetLast:
		if last, ok := s.LastPlace(); ok {
			return []string{last.ID}
		}
		return nil
	default:
		return nil
	}
}

// Validate checks the structural invariants that every stored or received
// state must satisfy.
func (s GameState) Validate() error {
	starts := 0
	for _, tile := range s.Tiles {
		if tile.Type == TileStart {
			starts++
		}
	}
	if len(s.Tiles) > 0 && starts != 1 {
		return fmt.Errorf("board must have exactly one start tile, found %d", starts)
	}
	if s.Config.MaxTiles > 0 && len(s.Tiles) > s.Config.MaxTiles {
		return fmt.Errorf("board has %d tiles, max is %d", len(s.Tiles), s.Config.MaxTiles)
	}
	for _, player := range s.Players {
		if player.Position < 0 {
			return fmt.Errorf("player %s has negative position %d", player.ID, player.Position)
		}
	}
	if s.Status != StatusWaiting && len(s.Players) == 0 {
		return fmt.Errorf("status %s requires at least one player", s.Status)
	}
	if s.Status == StatusPlaying && s.PlayerIndex(s.CurrentTurn) < 0 {
		return fmt.Errorf("current turn %q does not reference a player", s.CurrentTurn)
	}
	return nil
}
