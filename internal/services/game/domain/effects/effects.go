// Package effects owns the lifecycle of durational temporary effects:
// application with shield and invisibility interception, per-turn
// expiration, and the derived dice and movement computations.
//
// Every mutator takes a deep copy of the input state and returns the new
// value; callers never observe partial mutation.
package effects

import (
	"fmt"
	"time"

	"github.com/louisbranch/ruleshift/internal/services/game/domain/board"
	"github.com/louisbranch/ruleshift/internal/services/game/domain/rule"
)

// Manager applies and expires temporary effects.
//
// Now is the clock used for effect creation timestamps; tests pin it for
// reproducible output. A nil Now falls back to time.Now.
type Manager struct {
	Now func() time.Time
}

func (m Manager) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// effectID derives a stable identifier for a player's effect. A player
// holds at most one effect per type (same-type applications replace), so
// the pair is unique and keeps dice-roll processing deterministic.
func effectID(playerID string, t rule.EffectType) string {
	return playerID + ":" + string(t)
}

// ApplyTemporary applies a durational effect to a player.
//
// A shield on the target blocks effects in the fixed negative set. An
// invisibility on the target blocks effects applied by anyone but the
// target. Blocked applications are successful no-ops with an explanatory
// log, not errors. When the target already holds an effect of the same
// type it is replaced in place, refreshing value and duration, rather than
// stacked.
//
// The returned slice lists the effects actually applied (empty when
// blocked or the player is unknown).
func (m Manager) ApplyTemporary(state board.GameState, playerID string, effectType rule.EffectType, value, duration int, sourceRuleID, appliedBy string) (board.GameState, []string, []rule.TemporaryEffect) {
	next := state.Clone()
	var logs []string

	idx := next.PlayerIndex(playerID)
	if idx < 0 {
		return next, []string{fmt.Sprintf("Cannot apply %s: player %s not found", effectType, playerID)}, nil
	}
	player := &next.Players[idx]

	if player.HasActiveEffect(rule.EffectShield) && rule.IsNegative(effectType) {
		logs = append(logs, fmt.Sprintf("Shield blocked %s on %s", effectType, player.Name))
		return next, logs, nil
	}
	if player.HasActiveEffect(rule.EffectInvisibility) && appliedBy != "" && appliedBy != playerID {
		logs = append(logs, fmt.Sprintf("Invisibility protected %s from %s", player.Name, effectType))
		return next, logs, nil
	}

	if duration <= 0 {
		duration = 1
	}
	applied := rule.TemporaryEffect{
		ID:             effectID(playerID, effectType),
		Type:           effectType,
		Value:          value,
		TurnsRemaining: duration,
		SourceRuleID:   sourceRuleID,
		AppliedBy:      appliedBy,
		CreatedAt:      m.now(),
	}

	replaced := false
	for i, existing := range player.Effects {
		if existing.Type == effectType {
			player.Effects[i] = applied
			replaced = true
			break
		}
	}
	if !replaced {
		player.Effects = append(player.Effects, applied)
	}

	if replaced {
		logs = append(logs, fmt.Sprintf("%s refreshed on %s (%d turns)", effectType, player.Name, duration))
	} else {
		logs = append(logs, fmt.Sprintf("%s applied to %s (%d turns)", effectType, player.Name, duration))
	}

	next.LastEffect = &board.LastEffect{
		Type:     effectType,
		Value:    value,
		PlayerID: playerID,
		RuleID:   sourceRuleID,
	}
	return next, logs, []rule.TemporaryEffect{applied}
}

// ProcessTurnEnd decrements every effect owned by the player by exactly
// one turn and removes effects that reach zero. It runs once per roll, at
// the end of the acting player's own move, and never touches other
// players' effects.
func (m Manager) ProcessTurnEnd(state board.GameState, playerID string) (board.GameState, []string) {
	next := state.Clone()
	var logs []string

	idx := next.PlayerIndex(playerID)
	if idx < 0 {
		return next, logs
	}
	player := &next.Players[idx]

	remaining := player.Effects[:0]
	for _, effect := range player.Effects {
		effect.TurnsRemaining--
		if effect.TurnsRemaining <= 0 {
			logs = append(logs, fmt.Sprintf("%s expired on %s", effect.Type, player.Name))
			continue
		}
		remaining = append(remaining, effect)
	}
	player.Effects = remaining
	return next, logs
}

// DiceValue computes the effective dice value for a player: double-dice
// doubles the raw roll first, then an active dice minimum raises low
// values, then an active dice maximum lowers high values, in that fixed
// order. The returned logs name each modifier that fired.
func (m Manager) DiceValue(player board.Player, rawDice int) (int, []string) {
	value := rawDice
	var logs []string

	if player.HasActiveEffect(rule.EffectDoubleDice) {
		value *= 2
		logs = append(logs, fmt.Sprintf("Dice: %d -> %d (double dice)", rawDice, value))
	}
	if min, ok := player.ActiveEffect(rule.EffectSetDiceMin); ok && value < min.Value {
		before := value
		value = min.Value
		logs = append(logs, fmt.Sprintf("Dice: %d -> %d (minimum %d)", before, value, min.Value))
	}
	if max, ok := player.ActiveEffect(rule.EffectSetDiceMax); ok && value > max.Value {
		before := value
		value = max.Value
		logs = append(logs, fmt.Sprintf("Dice: %d -> %d (maximum %d)", before, value, max.Value))
	}
	return value, logs
}

// Movement computes how many tiles the player actually moves for an
// effective dice value: speed boosts add, slows subtract, and the result
// never goes below zero.
func (m Manager) Movement(player board.Player, diceValue int) int {
	movement := diceValue
	if boost, ok := player.ActiveEffect(rule.EffectSpeedBoost); ok {
		movement += boost.Value
	}
	if slow, ok := player.ActiveEffect(rule.EffectSlow); ok {
		movement -= slow.Value
	}
	if movement < 0 {
		movement = 0
	}
	return movement
}

// StealPoints transfers up to amount points from target to stealer. The
// steal is capped at the target's current score and blocked entirely by a
// shield or invisibility on the target.
func (m Manager) StealPoints(state board.GameState, stealerID, targetID string, amount int) (board.GameState, []string) {
	next := state.Clone()
	var logs []string

	stealerIdx := next.PlayerIndex(stealerID)
	targetIdx := next.PlayerIndex(targetID)
	if stealerIdx < 0 || targetIdx < 0 {
		return next, []string{"Steal failed: player not found"}
	}
	stealer := &next.Players[stealerIdx]
	target := &next.Players[targetIdx]

	if target.HasActiveEffect(rule.EffectShield) {
		logs = append(logs, fmt.Sprintf("Shield blocked steal from %s", target.Name))
		return next, logs
	}
	if target.HasActiveEffect(rule.EffectInvisibility) {
		logs = append(logs, fmt.Sprintf("Invisibility protected %s from steal", target.Name))
		return next, logs
	}

	stolen := amount
	if stolen > target.Score {
		stolen = target.Score
	}
	if stolen < 0 {
		stolen = 0
	}
	target.Score -= stolen
	stealer.Score += stolen
	logs = append(logs, fmt.Sprintf("%s stole %d points from %s", stealer.Name, stolen, target.Name))
	return next, logs
}
