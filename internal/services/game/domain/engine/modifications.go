package engine

import (
	"fmt"

	"github.com/louisbranch/ruleshift/internal/services/game/domain/board"
	"github.com/louisbranch/ruleshift/internal/services/game/domain/rule"
)

// ModificationType identifies what a modification command does.
type ModificationType string

const (
	ModificationAdd    ModificationType = "add"
	ModificationUpdate ModificationType = "update"
	ModificationRemove ModificationType = "remove"
)

// RuleModification describes a requested change to the rule lists.
type RuleModification struct {
	Type   ModificationType `json:"type"`
	RuleID string           `json:"rule_id,omitempty"`
	Rule   *rule.Rule       `json:"rule,omitempty"`
}

// TileModification describes a requested change to the board.
type TileModification struct {
	Type        ModificationType `json:"type"`
	TileID      string           `json:"tile_id,omitempty"`
	Coord       *board.Coord     `json:"coord,omitempty"`
	ConnectedTo string           `json:"connected_to,omitempty"`
	TileType    board.TileType   `json:"tile_type,omitempty"`
}

// modificationGate checks the shared turn-gate preconditions. It returns
// a failure message, or "" when the modification may proceed.
func modificationGate(state board.GameState, playerID string, allowed bool, kind string) string {
	player, ok := state.PlayerByID(playerID)
	if !ok {
		return "Player not found"
	}
	if state.CurrentTurn != playerID {
		return "It's not your turn"
	}
	if !player.HasPlayedThisTurn {
		return "You must roll the dice first"
	}
	if player.HasModifiedThisTurn {
		return "You have already modified this turn"
	}
	if !allowed {
		return fmt.Sprintf("%s modification is not allowed in this room", kind)
	}
	return ""
}

// ProcessRuleModification applies a turn-gated rule change. Failures are
// returned as messages with the state unchanged, never as panics or
// errors: a declined modification is a normal game-flow outcome.
func (p Processor) ProcessRuleModification(state board.GameState, playerID string, mod RuleModification) (board.GameState, bool, string) {
	next := state.Clone()

	if message := modificationGate(next, playerID, next.Config.AllowRuleModification, "Rule"); message != "" {
		return next, false, message
	}

	var message string
	switch mod.Type {
	case ModificationAdd:
		if mod.Rule == nil {
			return next, false, "A rule is required"
		}
		added := mod.Rule.Clone()
		if added.ID == "" {
			added.ID = p.newID()
		}
		if added.CreatedAt.IsZero() {
			added.CreatedAt = p.now()
		}
		next.ActiveRules = append(next.ActiveRules, added)
		message = fmt.Sprintf("Rule %q added", added.Title)

	case ModificationUpdate:
		if mod.Rule == nil {
			return next, false, "A rule is required"
		}
		targetID := mod.RuleID
		if targetID == "" {
			targetID = mod.Rule.ID
		}
		updated := mod.Rule.Clone()
		updated.ID = targetID
		replaced := false
		for i, existing := range next.ActiveRules {
			if existing.ID == targetID {
				if updated.CreatedAt.IsZero() {
					updated.CreatedAt = existing.CreatedAt
				}
				next.ActiveRules[i] = updated
				replaced = true
				break
			}
		}
		if !replaced {
			// Core rules may be modified in place, never deleted.
			for i, existing := range next.CoreRules {
				if existing.ID == targetID {
					if updated.CreatedAt.IsZero() {
						updated.CreatedAt = existing.CreatedAt
					}
					next.CoreRules[i] = updated
					replaced = true
					break
				}
			}
		}
		if !replaced {
			return next, false, "Rule not found"
		}
		message = fmt.Sprintf("Rule %q updated", updated.Title)

	case ModificationRemove:
		targetID := mod.RuleID
		if targetID == "" {
			return next, false, "A rule id is required"
		}
		for _, core := range next.CoreRules {
			if core.ID == targetID {
				return next, false, "Core rules cannot be removed"
			}
		}
		removed := -1
		for i, existing := range next.ActiveRules {
			if existing.ID == targetID {
				removed = i
				break
			}
		}
		if removed < 0 {
			return next, false, "Rule not found"
		}
		title := next.ActiveRules[removed].Title
		next.ActiveRules = append(next.ActiveRules[:removed], next.ActiveRules[removed+1:]...)
		message = fmt.Sprintf("Rule %q removed", title)

	default:
		return next, false, fmt.Sprintf("Unknown modification type %q", mod.Type)
	}

	if i := next.PlayerIndex(playerID); i >= 0 {
		next.Players[i].HasModifiedThisTurn = true
	}
	return next, true, message
}

// ProcessTileModification applies a turn-gated board change.
func (p Processor) ProcessTileModification(state board.GameState, playerID string, mod TileModification) (board.GameState, bool, string) {
	next := state.Clone()

	if message := modificationGate(next, playerID, next.Config.AllowTileModification, "Tile"); message != "" {
		return next, false, message
	}

	var message string
	switch mod.Type {
	case ModificationAdd:
		if next.Config.MaxTiles > 0 && len(next.Tiles) >= next.Config.MaxTiles {
			return next, false, "Tile limit reached"
		}
		if mod.Coord == nil {
			return next, false, "A tile position is required"
		}
		for _, tile := range next.Tiles {
			if tile.Coord == *mod.Coord {
				return next, false, "A tile already occupies that position"
			}
		}
		tileType := mod.TileType
		if tileType == "" {
			tileType = board.TileNormal
		}
		if tileType == board.TileStart {
			return next, false, "The board already has a start tile"
		}
		added := board.Tile{
			ID:    "tile-" + p.newID(),
			Type:  tileType,
			Index: len(next.Tiles),
			Coord: *mod.Coord,
		}
		if mod.ConnectedTo != "" {
			if neighbor, ok := next.TileByID(mod.ConnectedTo); ok {
				added.Connections = append(added.Connections, neighbor.ID)
				for i := range next.Tiles {
					if next.Tiles[i].ID == neighbor.ID {
						next.Tiles[i].Connections = append(next.Tiles[i].Connections, added.ID)
					}
				}
			}
		}
		next.Tiles = append(next.Tiles, added)
		message = fmt.Sprintf("Tile added at index %d", added.Index)

	case ModificationRemove:
		if mod.TileID == "" {
			return next, false, "A tile id is required"
		}
		tile, ok := next.TileByID(mod.TileID)
		if !ok {
			return next, false, "Tile not found"
		}
		if tile.Type == board.TileStart {
			return next, false, "The start tile cannot be removed"
		}
		if next.Config.MinTiles > 0 && len(next.Tiles) <= next.Config.MinTiles {
			return next, false, "Tile minimum reached"
		}
		if len(next.PlayersOnTile(tile.Index, "")) > 0 {
			return next, false, "Players are standing on that tile"
		}
		next = removeTile(next, tile)
		message = fmt.Sprintf("Tile %s removed", tile.ID)

	case ModificationUpdate:
		if mod.TileID == "" {
			return next, false, "A tile id is required"
		}
		if mod.TileType == "" {
			return next, false, "A tile type is required"
		}
		if mod.TileType == board.TileStart {
			return next, false, "The board already has a start tile"
		}
		updated := false
		for i := range next.Tiles {
			if next.Tiles[i].ID == mod.TileID {
				if next.Tiles[i].Type == board.TileStart {
					return next, false, "The start tile cannot be changed"
				}
				next.Tiles[i].Type = mod.TileType
				next.Tiles[i].IsEndTile = mod.TileType == board.TileEnd
				updated = true
				break
			}
		}
		if !updated {
			return next, false, "Tile not found"
		}
		message = fmt.Sprintf("Tile %s is now %s", mod.TileID, mod.TileType)

	default:
		return next, false, fmt.Sprintf("Unknown modification type %q", mod.Type)
	}

	if i := next.PlayerIndex(playerID); i >= 0 {
		next.Players[i].HasModifiedThisTurn = true
	}
	return next, true, message
}

// removeTile deletes a tile, reindexes the remaining tiles, prunes
// dangling connections, and shifts players standing past the removed
// index down so everyone stays on the tile they occupied.
func removeTile(state board.GameState, removed board.Tile) board.GameState {
	kept := state.Tiles[:0]
	for _, tile := range state.Tiles {
		if tile.ID == removed.ID {
			continue
		}
		connections := tile.Connections[:0]
		for _, connection := range tile.Connections {
			if connection != removed.ID {
				connections = append(connections, connection)
			}
		}
		tile.Connections = connections
		if tile.Index > removed.Index {
			tile.Index--
		}
		kept = append(kept, tile)
	}
	state.Tiles = kept

	for i := range state.Players {
		if state.Players[i].Position > removed.Index {
			state.Players[i].Position--
		}
	}
	return state
}
