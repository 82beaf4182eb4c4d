// Package engine sequences the per-roll trigger phases and exposes the
// turn-gated rule and tile modification operations.
//
// The processor is the only component that folds state forward across
// phases: it asks the evaluator for applicable rules per phase, executes
// them, and carries the resulting state into the next phase. Every
// operation is a synchronous pure transform; the surrounding room registry
// serializes calls per room.
package engine

import (
	"fmt"
	"hash/fnv"
	"math/rand"
	"time"

	"github.com/louisbranch/ruleshift/internal/platform/id"
	"github.com/louisbranch/ruleshift/internal/services/game/domain/board"
	"github.com/louisbranch/ruleshift/internal/services/game/domain/effects"
	"github.com/louisbranch/ruleshift/internal/services/game/domain/evaluator"
	"github.com/louisbranch/ruleshift/internal/services/game/domain/rule"
)

// Processor orchestrates dice rolls and modification commands.
//
// Now stamps rule and effect creation times; NewID names entities created
// by modifications. Both default to real implementations and are pinned in
// tests for reproducible output.
type Processor struct {
	Now   func() time.Time
	NewID func() (string, error)
}

func (p Processor) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p Processor) newID() string {
	if p.NewID != nil {
		if generated, err := p.NewID(); err == nil {
			return generated
		}
	}
	generated, err := id.NewID()
	if err != nil {
		// crypto/rand failing is a programmer-environment error; fall back
		// to a clock-derived id rather than abort a turn.
		return fmt.Sprintf("id-%d", time.Now().UnixNano())
	}
	return generated
}

// rollSeed derives the deterministic RNG seed for a roll. Identical state,
// player, and dice inputs replay with identical random outcomes.
func rollSeed(roomID string, turnCount int, playerID string, rawDice int) int64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%d|%s|%d", roomID, turnCount, playerID, rawDice)
	return int64(h.Sum64())
}

// RollSeed exposes the seed a roll will use so callers can journal it.
func RollSeed(state board.GameState, playerID string, rawDice int) int64 {
	return rollSeed(state.RoomID, state.TurnCount, playerID, rawDice)
}

// ProcessDiceRoll runs the fixed per-roll phase pipeline and returns the
// new state plus the ordered log trail for broadcast.
//
// Phases, in order: guards, dice modifiers, turn-start rules, move-start
// rules, dice-roll rules (plus consecutive-six tracking), movement,
// pass-over rules for each crossed tile, landing rules, score-threshold
// and near-victory rules, the victory check, same-tile rules, and finally
// effect expiration, turn-flag bookkeeping, and turn-end rules.
func (p Processor) ProcessDiceRoll(state board.GameState, playerID string, rawDice int) (board.GameState, []string) {
	next := state.Clone()
	var logs []string

	if next.Status == board.StatusFinished {
		return next, append(logs, "Game is already finished")
	}
	actorIdx := next.PlayerIndex(playerID)
	if actorIdx < 0 {
		return next, append(logs, fmt.Sprintf("Unknown player %q", playerID))
	}

	manager := effects.Manager{Now: p.Now}
	ctx := evaluator.Context{
		ActorID: playerID,
		Rand:    rand.New(rand.NewSource(rollSeed(next.RoomID, next.TurnCount, playerID, rawDice))),
		Effects: manager,
	}

	run := func(trigger rule.Trigger, contextValue int) {
		applicable := evaluator.ApplicableRules(next, trigger, contextValue, ctx)
		if len(applicable) == 0 {
			return
		}
		var chainLogs []string
		next, chainLogs = evaluator.ExecuteChain(next, ctx, applicable)
		logs = append(logs, chainLogs...)
	}
	position := func() int {
		if i := next.PlayerIndex(playerID); i >= 0 {
			return next.Players[i].Position
		}
		return 0
	}

	logs = append(logs, fmt.Sprintf("%s rolled a %d", next.Players[actorIdx].Name, rawDice))

	effective, diceLogs := manager.DiceValue(next.Players[actorIdx], rawDice)
	logs = append(logs, diceLogs...)
	ctx.DiceValue = effective

	run(rule.TriggerTurnStart, position())
	// Re-read the position: a turn-start rule may have moved the player.
	run(rule.TriggerMoveStart, position())

	run(rule.TriggerDiceRoll, effective)
	if i := next.PlayerIndex(playerID); i >= 0 {
		if rawDice == 6 {
			next.Players[i].ConsecutiveSixes++
		} else {
			next.Players[i].ConsecutiveSixes = 0
		}
		if count := next.Players[i].ConsecutiveSixes; count > 0 {
			run(rule.TriggerConsecutiveSixes, count)
		}
	}

	// Movement.
	moverIdx := next.PlayerIndex(playerID)
	movement := manager.Movement(next.Players[moverIdx], effective)
	previous := next.Players[moverIdx].Position
	landing := previous + movement
	if landing < 0 {
		landing = 0
	}
	if len(next.Tiles) > 0 && landing > len(next.Tiles)-1 {
		landing = len(next.Tiles) - 1
	}
	next.Players[moverIdx].Position = landing
	logs = append(logs, fmt.Sprintf("Moved: %d -> %d", previous, landing))

	// Pass-over fires for every tile strictly between the previous and
	// landing positions, forward moves only. The bound is captured here:
	// a pass-over rule that moves the player does not extend or re-run
	// the sweep.
	if landing > previous {
		for crossed := previous + 1; crossed < landing; crossed++ {
			run(rule.TriggerPassOver, crossed)
		}
	}

	final := position()
	run(rule.TriggerLand, final)
	run(rule.TriggerReachPosition, final)

	if i := next.PlayerIndex(playerID); i >= 0 {
		run(rule.TriggerScoreThreshold, next.Players[i].Score)
		if distance := next.EndTileIndex() - next.Players[i].Position; distance >= 0 {
			run(rule.TriggerNearVictory, distance)
		}
	}

	// Victory: only end tiles qualify, and only when a reach-end rule with
	// a victory-declaration effect fires. Reaching the end tile without
	// such a rule leaves the game in progress; that flexibility is part of
	// the game design.
	final = position()
	if tile, ok := next.TileAt(final); ok && (tile.IsEndTile || tile.Type == board.TileEnd) {
		reachEnd := evaluator.ApplicableRules(next, rule.TriggerReachEnd, final, ctx)
		declares := false
		for _, r := range reachEnd {
			for _, effect := range r.Effects {
				if effect.Type == rule.EffectDeclareVictory {
					declares = true
				}
			}
		}
		if len(reachEnd) > 0 {
			var chainLogs []string
			next, chainLogs = evaluator.ExecuteChain(next, ctx, reachEnd)
			logs = append(logs, chainLogs...)
		}
		if declares {
			next.Status = board.StatusFinished
			next.WinnerID = playerID
			if i := next.PlayerIndex(playerID); i >= 0 {
				logs = append(logs, fmt.Sprintf("%s wins!", next.Players[i].Name))
			}
		}
	}

	final = position()
	if len(next.PlayersOnTile(final, playerID)) > 0 {
		run(rule.TriggerSameTile, final)
	}

	// Expiration runs once, for the acting player only, then the turn
	// flags flip before turn-end rules fire.
	var expiryLogs []string
	next, expiryLogs = manager.ProcessTurnEnd(next, playerID)
	logs = append(logs, expiryLogs...)
	if i := next.PlayerIndex(playerID); i >= 0 {
		next.Players[i].HasPlayedThisTurn = true
		next.Players[i].HasModifiedThisTurn = false
	}
	run(rule.TriggerTurnEnd, position())

	return next, logs
}

// ResetPlayerTurnState clears a player's turn-scoped flags. The registry
// calls it exactly once per turn hand-off.
func ResetPlayerTurnState(state board.GameState, playerID string) board.GameState {
	next := state.Clone()
	if i := next.PlayerIndex(playerID); i >= 0 {
		next.Players[i].HasPlayedThisTurn = false
		next.Players[i].HasModifiedThisTurn = false
	}
	return next
}

// AdvanceTurn hands the turn to the next eligible player. Extra turns keep
// the current player in place; skip flags are consumed as they pass.
func AdvanceTurn(state board.GameState) (board.GameState, []string) {
	next := state.Clone()
	var logs []string
	if len(next.Players) == 0 {
		return next, logs
	}

	current := next.PlayerIndex(next.CurrentTurn)
	if current >= 0 && next.Players[current].ExtraTurns > 0 {
		next.Players[current].ExtraTurns--
		next = ResetPlayerTurnState(next, next.CurrentTurn)
		next.TurnCount++
		logs = append(logs, fmt.Sprintf("%s takes an extra turn", next.Players[current].Name))
		return next, logs
	}

	start := 0
	if current >= 0 {
		start = current
	}
	chosen := (start + 1) % len(next.Players)
	for step := 0; step < len(next.Players); step++ {
		candidate := (start + 1 + step) % len(next.Players)
		if next.Players[candidate].SkipNextTurn {
			next.Players[candidate].SkipNextTurn = false
			logs = append(logs, fmt.Sprintf("%s skips this turn", next.Players[candidate].Name))
			continue
		}
		chosen = candidate
		break
	}

	next.CurrentTurn = next.Players[chosen].ID
	next.TurnCount++
	next = ResetPlayerTurnState(next, next.CurrentTurn)
	logs = append(logs, fmt.Sprintf("It is %s's turn", next.Players[chosen].Name))
	return next, logs
}
