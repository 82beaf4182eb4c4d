// Package rule defines the mutable rule vocabulary: triggers, conditions,
// effects, and durational temporary effects.
//
// Rules are plain data. Player-authored rule packs, the seeded core rules,
// and the built-in template catalog all produce the same Rule shape, so the
// evaluator never distinguishes where a rule came from beyond which list it
// lives in.
package rule

import (
	"sort"
	"time"
)

// Trigger identifies the game event a rule listens for.
type Trigger string

const (
	TriggerTurnStart        Trigger = "on_turn_start"
	TriggerMoveStart        Trigger = "on_move_start"
	TriggerDiceRoll         Trigger = "on_dice_roll"
	TriggerPassOver         Trigger = "on_pass_over"
	TriggerLand             Trigger = "on_land"
	TriggerReachPosition    Trigger = "on_reach_position"
	TriggerReachEnd         Trigger = "on_reach_end"
	TriggerSameTile         Trigger = "on_same_tile"
	TriggerTurnEnd          Trigger = "on_turn_end"
	TriggerScoreThreshold   Trigger = "on_score_threshold"
	TriggerConsecutiveSixes Trigger = "on_consecutive_six"
	TriggerNearVictory      Trigger = "on_near_victory"
)

// TriggerSpec pairs a trigger with an optional exact-match value.
//
// The meaning of Value depends on the trigger: a tile index for land,
// pass-over, and reach-position triggers, a dice face for dice-roll
// triggers, and a threshold for score, consecutive-roll, and near-victory
// triggers. A nil Value is a wildcard and matches every context.
type TriggerSpec struct {
	Type  Trigger `json:"type"`
	Value *int    `json:"value,omitempty"`
}

// Operator is a comparison operator used by rule conditions.
type Operator string

const (
	OpEq  Operator = "eq"
	OpNeq Operator = "neq"
	OpGt  Operator = "gt"
	OpGte Operator = "gte"
	OpLt  Operator = "lt"
	OpLte Operator = "lte"
)

// Target selects which players a condition or effect resolves against.
type Target string

const (
	TargetSelf   Target = "self"
	TargetOthers Target = "others"
	TargetAll    Target = "all"
	TargetLeader Target = "leader"
	TargetLast   Target = "last"
	TargetAny    Target = "any"
	// TargetRandom picks one player uniformly from "others". It is only
	// meaningful on effects; conditions never use it.
	TargetRandom Target = "random"
)

// ConditionType identifies what a rule condition inspects.
type ConditionType string

const (
	ConditionScore        ConditionType = "score"
	ConditionPosition     ConditionType = "position"
	ConditionDiceValue    ConditionType = "dice_value"
	ConditionTurnCount    ConditionType = "turn_count"
	ConditionPlayerCount  ConditionType = "player_count"
	ConditionEffectActive ConditionType = "effect_active"
	ConditionHasPowerUp   ConditionType = "has_power_up"
	ConditionPlayerRank   ConditionType = "player_rank"
	ConditionTilesFromEnd ConditionType = "tiles_from_end"
)

// Condition is a boolean predicate narrowing when a matched-trigger rule
// actually fires. Conditions on a rule are AND-combined.
type Condition struct {
	Type     ConditionType `json:"type"`
	Operator Operator      `json:"operator"`
	Value    int           `json:"value"`
	// Effect names the temporary-effect type checked by effect_active and
	// has_power_up conditions. Unused by the numeric condition types.
	Effect EffectType `json:"effect,omitempty"`
	Target Target     `json:"target"`
}

// EffectType identifies an action a firing rule performs.
type EffectType string

const (
	EffectMoveRelative         EffectType = "move_relative"
	EffectMoveToTile           EffectType = "move_to_tile"
	EffectBackToStart          EffectType = "back_to_start"
	EffectSwapPositions        EffectType = "swap_positions"
	EffectMoveToNearestPlayer  EffectType = "move_to_nearest_player"
	EffectMoveToFurthestPlayer EffectType = "move_to_furthest_player"
	EffectRandomTeleport       EffectType = "random_teleport"
	EffectScoreDelta           EffectType = "score_delta"
	EffectStealPoints          EffectType = "steal_points"
	EffectSkipTurn             EffectType = "skip_turn"
	EffectExtraTurn            EffectType = "extra_turn"
	EffectShield               EffectType = "shield"
	EffectInvisibility         EffectType = "invisibility"
	EffectDoubleDice           EffectType = "double_dice"
	EffectSetDiceMin           EffectType = "set_dice_min"
	EffectSetDiceMax           EffectType = "set_dice_max"
	EffectSpeedBoost           EffectType = "speed_boost"
	EffectSlow                 EffectType = "slow"
	EffectDeclareVictory       EffectType = "declare_victory"
	EffectAllowRuleChanges     EffectType = "allow_rule_modification"
	EffectAllowTileChanges     EffectType = "allow_tile_modification"
	EffectCopyLastEffect       EffectType = "copy_last_effect"
	EffectReverseLastEffect    EffectType = "reverse_last_effect"
)

// Effect is a single action in a rule's ordered effect list.
type Effect struct {
	Type   EffectType `json:"type"`
	Value  int        `json:"value,omitempty"`
	Target Target     `json:"target"`
	// Duration overrides the turn count for durational effect types.
	// When zero the value field is used, and when that is also zero the
	// effect lasts one turn.
	Duration int `json:"duration,omitempty"`
}

// DefaultPriority is assigned to rules that do not set a priority.
const DefaultPriority = 5

// Rule is a player-authored or system-seeded rule. Lower priority runs
// earlier; ties break by creation time, oldest first.
type Rule struct {
	ID         string      `json:"id"`
	Title      string      `json:"title"`
	Trigger    TriggerSpec `json:"trigger"`
	Conditions []Condition `json:"conditions,omitempty"`
	Effects    []Effect    `json:"effects"`
	Priority   int         `json:"priority,omitempty"`
	Disabled   bool        `json:"disabled,omitempty"`
	CreatedAt  time.Time   `json:"created_at,omitempty"`
}

// EffectivePriority returns the rule priority, defaulting when unset.
func (r Rule) EffectivePriority() int {
	if r.Priority == 0 {
		return DefaultPriority
	}
	return r.Priority
}

// Clone returns a deep copy of the rule.
func (r Rule) Clone() Rule {
	cloned := r
	if r.Conditions != nil {
		cloned.Conditions = append([]Condition(nil), r.Conditions...)
	}
	if r.Effects != nil {
		cloned.Effects = append([]Effect(nil), r.Effects...)
	}
	if r.Trigger.Value != nil {
		value := *r.Trigger.Value
		cloned.Trigger.Value = &value
	}
	return cloned
}

// Sort orders rules ascending by effective priority, ties broken by
// ascending creation time with the zero time treated as the epoch. The sort
// is stable: the original order is the final tie-break, which keeps rule
// execution reproducible across identical inputs.
func Sort(rules []Rule) []Rule {
	sorted := append([]Rule(nil), rules...)
	sort.SliceStable(sorted, func(i, j int) bool {
		pi, pj := sorted[i].EffectivePriority(), sorted[j].EffectivePriority()
		if pi != pj {
			return pi < pj
		}
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})
	return sorted
}

// TemporaryEffect is a durational status applied to a player. It decrements
// once per owner turn end and expires at zero.
type TemporaryEffect struct {
	ID             string     `json:"id"`
	Type           EffectType `json:"type"`
	Value          int        `json:"value"`
	TurnsRemaining int        `json:"turns_remaining"`
	SourceRuleID   string     `json:"source_rule_id,omitempty"`
	AppliedBy      string     `json:"applied_by,omitempty"`
	CreatedAt      time.Time  `json:"created_at,omitempty"`
}

// Active reports whether the effect has turns remaining.
func (e TemporaryEffect) Active() bool {
	return e.TurnsRemaining > 0
}

// negativeEffects is the fixed set of effect types a shield intercepts.
var negativeEffects = map[EffectType]bool{
	EffectSlow:        true,
	EffectSkipTurn:    true,
	EffectBackToStart: true,
	EffectStealPoints: true,
}

// IsNegative reports whether the effect type belongs to the fixed negative
// set blocked by shields.
func IsNegative(t EffectType) bool {
	return negativeEffects[t]
}

// durationalEffects are the effect types applied as temporary effects
// rather than executed immediately.
var durationalEffects = map[EffectType]bool{
	EffectShield:       true,
	EffectInvisibility: true,
	EffectDoubleDice:   true,
	EffectSetDiceMin:   true,
	EffectSetDiceMax:   true,
	EffectSpeedBoost:   true,
	EffectSlow:         true,
}

// IsDurational reports whether the effect type is applied as a
// TemporaryEffect with a turn lifetime.
func IsDurational(t EffectType) bool {
	return durationalEffects[t]
}

// Compare applies a comparison operator to two integers. Unknown operators
// evaluate to false so malformed rules degrade to no-ops.
func Compare(op Operator, left, right int) bool {
	switch op {
	case OpEq:
		return left == right
	case OpNeq:
		return left != right
	case OpGt:
		return left > right
	case OpGte:
		return left >= right
	case OpLt:
		return left < right
	case OpLte:
		return left <= right
	default:
		return false
	}
}
