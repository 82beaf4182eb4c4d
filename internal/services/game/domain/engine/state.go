package engine

import (
	"fmt"

	"github.com/louisbranch/ruleshift/internal/platform/errors"
	"github.com/louisbranch/ruleshift/internal/services/game/domain/board"
	"github.com/louisbranch/ruleshift/internal/services/game/domain/rule"
)

// DefaultTileCount is the board length seeded for new rooms.
const DefaultTileCount = 20

// Core rule ids. Core rules are system-seeded and can be modified but
// never removed.
const (
	CoreRuleVictory  = "core-victory"
	CoreRuleRuleMods = "core-rule-modification"
	CoreRuleTileMods = "core-tile-modification"
)

// NewInitialState seeds a room: a linear board with bidirectional
// adjacency, an empty player list, and the three core rules.
//
// Tile layout: index 0 is the start, the last index is the end tile, and
// every fifth tile in between is special. Victory is itself rule-driven:
// removing the declare-victory effect from the core victory rule turns the
// end tile into a plain tile.
func (p Processor) NewInitialState(roomID, roomName string) board.GameState {
	now := p.now()

	tiles := make([]board.Tile, DefaultTileCount)
	for i := range tiles {
		tile := board.Tile{
			ID:    fmt.Sprintf("tile-%d", i),
			Type:  board.TileNormal,
			Index: i,
			Coord: board.Coord{X: i, Y: 0},
		}
		switch {
		case i == 0:
			tile.Type = board.TileStart
		case i == DefaultTileCount-1:
			tile.Type = board.TileEnd
			tile.IsEndTile = true
		case i%5 == 0:
			tile.Type = board.TileSpecial
		}
		if i > 0 {
			tile.Connections = append(tile.Connections, fmt.Sprintf("tile-%d", i-1))
			tile.Directions = append(tile.Directions, "backward")
		}
		if i < DefaultTileCount-1 {
			tile.Connections = append(tile.Connections, fmt.Sprintf("tile-%d", i+1))
			tile.Directions = append(tile.Directions, "forward")
		}
		tiles[i] = tile
	}

	coreRules := []rule.Rule{
		{
			ID:        CoreRuleVictory,
			Title:     "Reach the end to win",
			Trigger:   rule.TriggerSpec{Type: rule.TriggerReachEnd},
			Effects:   []rule.Effect{{Type: rule.EffectDeclareVictory, Target: rule.TargetSelf}},
			Priority:  1,
			CreatedAt: now,
		},
		{
			ID:        CoreRuleRuleMods,
			Title:     "Rule changes unlock after rolling",
			Trigger:   rule.TriggerSpec{Type: rule.TriggerTurnEnd},
			Effects:   []rule.Effect{{Type: rule.EffectAllowRuleChanges, Target: rule.TargetSelf}},
			CreatedAt: now,
		},
		{
			ID:        CoreRuleTileMods,
			Title:     "Tile changes unlock after rolling",
			Trigger:   rule.TriggerSpec{Type: rule.TriggerTurnEnd},
			Effects:   []rule.Effect{{Type: rule.EffectAllowTileChanges, Target: rule.TargetSelf}},
			CreatedAt: now,
		},
	}

	return board.GameState{
		RoomID:    roomID,
		RoomName:  roomName,
		Tiles:     tiles,
		Status:    board.StatusWaiting,
		CoreRules: coreRules,
		Config: board.Config{
			MinTiles:              5,
			MaxTiles:              30,
			AllowRuleModification: true,
			AllowTileModification: true,
			ModificationsPerTurn:  1,
		},
	}
}

// JoinPlayer adds a player at the start tile, assigning the next free
// color from the palette. The first player to join becomes the host.
func (p Processor) JoinPlayer(state board.GameState, playerID, name string) (board.GameState, error) {
	next := state.Clone()

	if playerID == "" || name == "" {
		return next, errors.New(errors.CodePlayerEmptyDisplayName, "player id and name are required")
	}
	if next.PlayerIndex(playerID) >= 0 {
		return next, errors.New(errors.CodePlayerAlreadyJoined, "player already joined")
	}

	taken := make(map[string]bool, len(next.Players))
	for _, player := range next.Players {
		taken[player.Color] = true
	}
	color := ""
	for _, candidate := range board.Colors {
		if !taken[candidate] {
			color = candidate
			break
		}
	}
	if color == "" {
		return next, errors.New(errors.CodeRoomFull, "no colors left in the palette")
	}

	next.Players = append(next.Players, board.Player{
		ID:          playerID,
		Name:        name,
		Color:       color,
		IsHost:      len(next.Players) == 0,
		IsConnected: true,
	})
	return next, nil
}

// RemovePlayer drops a player from the room. If it was their turn the
// turn advances first so CurrentTurn never dangles.
func RemovePlayer(state board.GameState, playerID string) (board.GameState, []string) {
	next := state.Clone()
	var logs []string

	idx := next.PlayerIndex(playerID)
	if idx < 0 {
		return next, logs
	}
	if next.CurrentTurn == playerID && len(next.Players) > 1 {
		next, logs = AdvanceTurn(next)
	}

	wasHost := next.Players[idx].IsHost
	idx = next.PlayerIndex(playerID)
	next.Players = append(next.Players[:idx], next.Players[idx+1:]...)
	if wasHost && len(next.Players) > 0 {
		next.Players[0].IsHost = true
	}
	if len(next.Players) == 0 {
		next.Status = board.StatusWaiting
		next.CurrentTurn = ""
	}
	return next, logs
}

// StartGame transitions a waiting room to playing, handing the first turn
// to the host.
func StartGame(state board.GameState) (board.GameState, error) {
	next := state.Clone()
	if len(next.Players) == 0 {
		return next, errors.New(errors.CodePlayerNotFound, "cannot start with no players")
	}
	if next.Status != board.StatusWaiting {
		return next, errors.New(errors.CodeCommandInvalidPayload, "game already started")
	}
	next.Status = board.StatusPlaying
	next.CurrentTurn = next.Players[0].ID
	next.TurnCount = 1
	return next, nil
}
