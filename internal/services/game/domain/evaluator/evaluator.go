// Package evaluator selects the rules that apply to a trigger, orders them
// deterministically, and executes their effect lists against a state
// snapshot, producing a new state and a human-readable log trail.
package evaluator

import (
	"fmt"
	"math/rand"

	"github.com/louisbranch/ruleshift/internal/services/game/domain/board"
	"github.com/louisbranch/ruleshift/internal/services/game/domain/condition"
	"github.com/louisbranch/ruleshift/internal/services/game/domain/effects"
	"github.com/louisbranch/ruleshift/internal/services/game/domain/rule"
)

// Context carries the trigger-time inputs for rule selection and effect
// execution.
type Context struct {
	// ActorID is the player whose action is being processed.
	ActorID string
	// DiceValue is the effective dice value for the current roll.
	DiceValue int
	// Rand drives random target selection and random teleports. The
	// processor seeds it deterministically from the roll inputs so
	// identical inputs replay identically.
	Rand *rand.Rand
	// Effects applies durational effects and steals.
	Effects effects.Manager
}

// ApplicableRules unions active and core rules, keeps enabled rules whose
// trigger matches the context value, and filters by rule conditions.
//
// Trigger matching is exact for tile and dice triggers (a rule with no
// stored value is a wildcard), and a threshold comparison for score,
// consecutive-roll, and near-victory triggers.
func ApplicableRules(state board.GameState, trigger rule.Trigger, contextValue int, ctx Context) []rule.Rule {
	merged := make([]rule.Rule, 0, len(state.ActiveRules)+len(state.CoreRules))
	merged = append(merged, state.ActiveRules...)
	merged = append(merged, state.CoreRules...)

	var applicable []rule.Rule
	for _, r := range merged {
		if r.Disabled {
			continue
		}
		if !matchesTrigger(r.Trigger, trigger, contextValue) {
			continue
		}
		if len(r.Conditions) > 0 {
			passes := condition.EvaluateAll(r.Conditions, condition.Context{
				State:     state,
				ActorID:   ctx.ActorID,
				DiceValue: ctx.DiceValue,
			})
			if !passes {
				continue
			}
		}
		applicable = append(applicable, r)
	}
	return applicable
}

func matchesTrigger(spec rule.TriggerSpec, trigger rule.Trigger, contextValue int) bool {
	if spec.Type != trigger {
		return false
	}
	if spec.Value == nil {
		return true
	}
	switch trigger {
	case rule.TriggerScoreThreshold, rule.TriggerConsecutiveSixes:
		return contextValue >= *spec.Value
	case rule.TriggerNearVictory:
		return contextValue <= *spec.Value
	default:
		return contextValue == *spec.Value
	}
}

// RulesForTile returns the rules whose tile-bound triggers apply to the
// given tile index. Read-only, for inspection surfaces.
func RulesForTile(state board.GameState, tileIndex int) []rule.Rule {
	merged := append(append([]rule.Rule(nil), state.ActiveRules...), state.CoreRules...)
	var matched []rule.Rule
	for _, r := range merged {
		if r.Disabled {
			continue
		}
		switch r.Trigger.Type {
		case rule.TriggerLand, rule.TriggerPassOver, rule.TriggerReachPosition:
			if r.Trigger.Value == nil || *r.Trigger.Value == tileIndex {
				matched = append(matched, r)
			}
		}
	}
	return matched
}

// GlobalRules returns the rules bound to non-tile triggers. Read-only, for
// inspection surfaces.
func GlobalRules(state board.GameState) []rule.Rule {
	merged := append(append([]rule.Rule(nil), state.ActiveRules...), state.CoreRules...)
	var matched []rule.Rule
	for _, r := range merged {
		if r.Disabled {
			continue
		}
		switch r.Trigger.Type {
		case rule.TriggerLand, rule.TriggerPassOver, rule.TriggerReachPosition:
		default:
			matched = append(matched, r)
		}
	}
	return matched
}

// ExecuteChain sorts the rules and executes each rule's effects in declared
// order against a running snapshot. One log line is appended per rule title
// and one per effect outcome.
func ExecuteChain(state board.GameState, ctx Context, rules []rule.Rule) (board.GameState, []string) {
	next := state.Clone()
	var logs []string
	for _, r := range rule.Sort(rules) {
		logs = append(logs, fmt.Sprintf("Rule: %s", r.Title))
		for _, effect := range r.Effects {
			var effectLogs []string
			next, effectLogs = executeEffect(next, ctx, r, effect)
			logs = append(logs, effectLogs...)
		}
	}
	return next, logs
}

// resolveEffectTargets resolves an effect target to player ids, handling
// the random target by picking one uniformly from "others".
func resolveEffectTargets(state board.GameState, ctx Context, target rule.Target) []string {
	ids := state.ResolveTargets(ctx.ActorID, target)
	if target == rule.TargetRandom && len(ids) > 0 {
		if ctx.Rand == nil {
			return ids[:1]
		}
		return []string{ids[ctx.Rand.Intn(len(ids))]}
	}
	return ids
}

// executeEffect applies one effect to its resolved targets.
//
// For negative effects the shield check short-circuits the whole effect,
// not just the shielded target: the first shielded player found among the
// resolved targets blocks the effect for everyone. This protect-by-proxy
// behavior is deliberate.
func executeEffect(state board.GameState, ctx Context, r rule.Rule, effect rule.Effect) (board.GameState, []string) {
	targets := resolveEffectTargets(state, ctx, effect.Target)

	negative := rule.IsNegative(effect.Type) ||
		((effect.Type == rule.EffectMoveRelative || effect.Type == rule.EffectScoreDelta) && effect.Value < 0)
	if negative {
		for _, id := range targets {
			if player, ok := state.PlayerByID(id); ok && player.HasActiveEffect(rule.EffectShield) {
				return state, []string{fmt.Sprintf("Shield blocked %s (%s)", effect.Type, player.Name)}
			}
		}
	}

	if rule.IsDurational(effect.Type) {
		duration := effect.Duration
		if duration == 0 {
			duration = effect.Value
		}
		if duration == 0 {
			duration = 1
		}
		var logs []string
		for _, id := range targets {
			var applyLogs []string
			state, applyLogs, _ = ctx.Effects.ApplyTemporary(state, id, effect.Type, effect.Value, duration, r.ID, ctx.ActorID)
			logs = append(logs, applyLogs...)
		}
		return state, logs
	}

	var logs []string
	switch effect.Type {
	case rule.EffectMoveRelative:
		for _, id := range targets {
			idx := state.PlayerIndex(id)
			if idx < 0 {
				continue
			}
			player := &state.Players[idx]
			from := player.Position
			to := from + effect.Value
			if to < 0 {
				to = 0
			}
			player.Position = to
			logs = append(logs, fmt.Sprintf("Move: %d -> %d (%s)", from, to, player.Name))
		}
		recordLast(&state, effect.Type, effect.Value, targets, r.ID)

	case rule.EffectMoveToTile:
		to := clampIndex(effect.Value, len(state.Tiles))
		for _, id := range targets {
			idx := state.PlayerIndex(id)
			if idx < 0 {
				continue
			}
			state.Players[idx].Position = to
			logs = append(logs, fmt.Sprintf("Teleport: %s to tile %d", state.Players[idx].Name, to))
		}
		recordLast(&state, effect.Type, effect.Value, targets, r.ID)

	case rule.EffectBackToStart:
		for _, id := range targets {
			idx := state.PlayerIndex(id)
			if idx < 0 {
				continue
			}
			state.Players[idx].Position = 0
			logs = append(logs, fmt.Sprintf("%s sent back to start", state.Players[idx].Name))
		}
		recordLast(&state, effect.Type, effect.Value, targets, r.ID)

	case rule.EffectSwapPositions:
		if len(targets) < 2 {
			logs = append(logs, "Swap needs two players, skipped")
			break
		}
		a, b := state.PlayerIndex(targets[0]), state.PlayerIndex(targets[1])
		if a < 0 || b < 0 {
			break
		}
		state.Players[a].Position, state.Players[b].Position = state.Players[b].Position, state.Players[a].Position
		logs = append(logs, fmt.Sprintf("Swapped positions: %s <-> %s", state.Players[a].Name, state.Players[b].Name))
		recordLast(&state, effect.Type, effect.Value, targets, r.ID)

	case rule.EffectMoveToNearestPlayer, rule.EffectMoveToFurthestPlayer:
		for _, id := range targets {
			idx := state.PlayerIndex(id)
			if idx < 0 {
				continue
			}
			otherPos, found := otherPlayerPosition(state, id, effect.Type == rule.EffectMoveToNearestPlayer)
			if !found {
				logs = append(logs, fmt.Sprintf("No other player to move %s to", state.Players[idx].Name))
				continue
			}
			from := state.Players[idx].Position
			state.Players[idx].Position = otherPos
			logs = append(logs, fmt.Sprintf("Move: %d -> %d (%s)", from, otherPos, state.Players[idx].Name))
		}
		recordLast(&state, effect.Type, effect.Value, targets, r.ID)

	case rule.EffectRandomTeleport:
		for _, id := range targets {
			idx := state.PlayerIndex(id)
			if idx < 0 || len(state.Tiles) == 0 {
				continue
			}
			to := 0
			if ctx.Rand != nil {
				to = ctx.Rand.Intn(len(state.Tiles))
			}
			state.Players[idx].Position = to
			logs = append(logs, fmt.Sprintf("Teleport: %s to tile %d", state.Players[idx].Name, to))
		}
		recordLast(&state, effect.Type, effect.Value, targets, r.ID)

	case rule.EffectScoreDelta:
		for _, id := range targets {
			idx := state.PlayerIndex(id)
			if idx < 0 {
				continue
			}
			state.Players[idx].Score += effect.Value
			logs = append(logs, fmt.Sprintf("Score: %+d for %s", effect.Value, state.Players[idx].Name))
		}
		recordLast(&state, effect.Type, effect.Value, targets, r.ID)

	case rule.EffectStealPoints:
		victim, ok := state.Leader(ctx.ActorID)
		if !ok {
			logs = append(logs, "No one to steal from")
			break
		}
		var stealLogs []string
		state, stealLogs = ctx.Effects.StealPoints(state, ctx.ActorID, victim.ID, effect.Value)
		logs = append(logs, stealLogs...)
		recordLast(&state, effect.Type, effect.Value, []string{victim.ID}, r.ID)

	case rule.EffectSkipTurn:
		for _, id := range targets {
			idx := state.PlayerIndex(id)
			if idx < 0 {
				continue
			}
			state.Players[idx].SkipNextTurn = true
			logs = append(logs, fmt.Sprintf("%s skips their next turn", state.Players[idx].Name))
		}
		recordLast(&state, effect.Type, effect.Value, targets, r.ID)

	case rule.EffectExtraTurn:
		for _, id := range targets {
			idx := state.PlayerIndex(id)
			if idx < 0 {
				continue
			}
			state.Players[idx].ExtraTurns++
			logs = append(logs, fmt.Sprintf("%s earns an extra turn", state.Players[idx].Name))
		}
		recordLast(&state, effect.Type, effect.Value, targets, r.ID)

	case rule.EffectDeclareVictory:
		// The status transition happens in the processor's victory phase;
		// the effect itself only marks the log trail.
		logs = append(logs, fmt.Sprintf("Victory declared by rule %q", r.Title))

	case rule.EffectAllowRuleChanges, rule.EffectAllowTileChanges:
		// Permission markers; enforcement lives in the processor's
		// modification gates.
		logs = append(logs, fmt.Sprintf("Permission marker: %s", effect.Type))

	case rule.EffectCopyLastEffect, rule.EffectReverseLastEffect:
		last := state.LastEffect
		if last == nil {
			logs = append(logs, "No previous effect to replay")
			break
		}
		if last.Type == rule.EffectCopyLastEffect || last.Type == rule.EffectReverseLastEffect {
			logs = append(logs, "Previous effect cannot be replayed")
			break
		}
		value := last.Value
		if effect.Type == rule.EffectReverseLastEffect {
			value = -value
		}
		replay := rule.Effect{
			Type:   last.Type,
			Value:  value,
			Target: effect.Target,
		}
		logs = append(logs, fmt.Sprintf("Replaying %s (value %d)", replay.Type, replay.Value))
		var replayLogs []string
		state, replayLogs = executeEffect(state, ctx, r, replay)
		logs = append(logs, replayLogs...)

	default:
		logs = append(logs, fmt.Sprintf("Unknown effect: %s", effect.Type))
	}

	return state, logs
}

// recordLast stores the executed effect in the single lastEffect slot.
func recordLast(state *board.GameState, effectType rule.EffectType, value int, targets []string, ruleID string) {
	playerID := ""
	if len(targets) > 0 {
		playerID = targets[0]
	}
	state.LastEffect = &board.LastEffect{
		Type:     effectType,
		Value:    value,
		PlayerID: playerID,
		RuleID:   ruleID,
	}
}

func clampIndex(index, length int) int {
	if index < 0 {
		return 0
	}
	if length > 0 && index > length-1 {
		return length - 1
	}
	return index
}

// otherPlayerPosition finds the position of the nearest or furthest other
// player by absolute tile distance. Ties resolve to the earliest player in
// list order, which keeps replays stable.
func otherPlayerPosition(state board.GameState, playerID string, nearest bool) (int, bool) {
	self, ok := state.PlayerByID(playerID)
	if !ok {
		return 0, false
	}
	best, bestDistance := 0, -1
	found := false
	for _, other := range state.Players {
		if other.ID == playerID {
			continue
		}
		distance := other.Position - self.Position
		if distance < 0 {
			distance = -distance
		}
		better := !found ||
			(nearest && distance < bestDistance) ||
			(!nearest && distance > bestDistance)
		if better {
			best, bestDistance = other.Position, distance
			found = true
		}
	}
	return best, found
}
