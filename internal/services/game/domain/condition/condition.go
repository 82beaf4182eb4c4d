// Package condition evaluates rule conditions against a read-only snapshot
// of game state plus trigger context. Evaluation has no side effects.
package condition

import (
	"log"

	"github.com/louisbranch/ruleshift/internal/services/game/domain/board"
	"github.com/louisbranch/ruleshift/internal/services/game/domain/rule"
)

// Context carries the trigger-time values conditions compare against.
type Context struct {
	State board.GameState
	// ActorID is the player whose action triggered evaluation.
	ActorID string
	// DiceValue is the effective dice value for the current roll, after
	// modifiers.
	DiceValue int
}

// EvaluateAll reports whether every condition passes. Conditions are
// conjunctive; a rule with zero conditions always passes.
func EvaluateAll(conditions []rule.Condition, ctx Context) bool {
	for _, cond := range conditions {
		if !Evaluate(cond, ctx) {
			return false
		}
	}
	return true
}

// Evaluate reports whether a single condition holds. Unknown condition
// types log a warning and evaluate to false, so forward-compatible rule
// packs degrade to non-firing rules instead of breaking a turn.
func Evaluate(cond rule.Condition, ctx Context) bool {
	switch cond.Type {
	case rule.ConditionScore:
		return someTarget(cond, ctx, func(p board.Player) bool {
			return rule.Compare(cond.Operator, p.Score, cond.Value)
		})
	case rule.ConditionPosition:
		return someTarget(cond, ctx, func(p board.Player) bool {
			return rule.Compare(cond.Operator, p.Position, cond.Value)
		})
	case rule.ConditionDiceValue:
		return rule.Compare(cond.Operator, ctx.DiceValue, cond.Value)
	case rule.ConditionTurnCount:
		return rule.Compare(cond.Operator, ctx.State.TurnCount, cond.Value)
	case rule.ConditionPlayerCount:
		return rule.Compare(cond.Operator, len(ctx.State.Players), cond.Value)
	case rule.ConditionEffectActive, rule.ConditionHasPowerUp:
		return evaluatePresence(cond, ctx)
	case rule.ConditionPlayerRank:
		return someTarget(cond, ctx, func(p board.Player) bool {
			return rule.Compare(cond.Operator, ctx.State.Rank(p.ID), cond.Value)
		})
	case rule.ConditionTilesFromEnd:
		end := ctx.State.EndTileIndex()
		return someTarget(cond, ctx, func(p board.Player) bool {
			return rule.Compare(cond.Operator, end-p.Position, cond.Value)
		})
	default:
		log.Printf("condition: unknown type %q, evaluating to false", cond.Type)
		return false
	}
}

// someTarget resolves the condition's targets and reports whether any
// resolved player satisfies the predicate.
func someTarget(cond rule.Condition, ctx Context, predicate func(board.Player) bool) bool {
	for _, id := range ctx.State.ResolveTargets(ctx.ActorID, cond.Target) {
		player, ok := ctx.State.PlayerByID(id)
		if !ok {
			continue
		}
		if predicate(player) {
			return true
		}
	}
	return false
}

// evaluatePresence handles effect_active and has_power_up conditions.
// The eq operator passes when some target holds the named effect; neq
// passes when every target lacks it.
func evaluatePresence(cond rule.Condition, ctx Context) bool {
	targets := ctx.State.ResolveTargets(ctx.ActorID, cond.Target)
	switch cond.Operator {
	case rule.OpNeq:
		for _, id := range targets {
			player, ok := ctx.State.PlayerByID(id)
			if !ok {
				continue
			}
			if player.HasActiveEffect(cond.Effect) {
				return false
			}
		}
		return true
	default:
		for _, id := range targets {
			player, ok := ctx.State.PlayerByID(id)
			if !ok {
				continue
			}
			if player.HasActiveEffect(cond.Effect) {
				return true
			}
		}
		return false
	}
}
