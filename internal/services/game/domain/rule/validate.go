package rule

import "fmt"

var knownTriggers = map[Trigger]bool{
	TriggerTurnStart:        true,
	TriggerMoveStart:        true,
	TriggerDiceRoll:         true,
	TriggerPassOver:         true,
	TriggerLand:             true,
	TriggerReachPosition:    true,
	TriggerReachEnd:         true,
	TriggerSameTile:         true,
	TriggerTurnEnd:          true,
	TriggerScoreThreshold:   true,
	TriggerConsecutiveSixes: true,
	TriggerNearVictory:      true,
}

var knownOperators = map[Operator]bool{
	OpEq:  true,
	OpNeq: true,
	OpGt:  true,
	OpGte: true,
	OpLt:  true,
	OpLte: true,
}

var knownTargets = map[Target]bool{
	TargetSelf:   true,
	TargetOthers: true,
	TargetAll:    true,
	TargetLeader: true,
	TargetLast:   true,
	TargetAny:    true,
	TargetRandom: true,
}

var knownConditions = map[ConditionType]bool{
	ConditionScore:        true,
	ConditionPosition:     true,
	ConditionDiceValue:    true,
	ConditionTurnCount:    true,
	ConditionPlayerCount:  true,
	ConditionEffectActive: true,
	ConditionHasPowerUp:   true,
	ConditionPlayerRank:   true,
	ConditionTilesFromEnd: true,
}

var knownEffects = map[EffectType]bool{
	EffectMoveRelative:         true,
	EffectMoveToTile:           true,
	EffectBackToStart:          true,
	EffectSwapPositions:        true,
	EffectMoveToNearestPlayer:  true,
	EffectMoveToFurthestPlayer: true,
	EffectRandomTeleport:       true,
	EffectScoreDelta:           true,
	EffectStealPoints:          true,
	EffectSkipTurn:             true,
	EffectExtraTurn:            true,
	EffectShield:               true,
	EffectInvisibility:         true,
	EffectDoubleDice:           true,
	EffectSetDiceMin:           true,
	EffectSetDiceMax:           true,
	EffectSpeedBoost:           true,
	EffectSlow:                 true,
	EffectDeclareVictory:       true,
	EffectAllowRuleChanges:     true,
	EffectAllowTileChanges:     true,
	EffectCopyLastEffect:       true,
	EffectReverseLastEffect:    true,
}

// KnownTrigger reports whether t is a recognized trigger type.
func KnownTrigger(t Trigger) bool { return knownTriggers[t] }

// KnownEffect reports whether t is a recognized effect type.
func KnownEffect(t EffectType) bool { return knownEffects[t] }

// KnownTarget reports whether t is a recognized target selector.
func KnownTarget(t Target) bool { return knownTargets[t] }

// Validate checks that a rule is well formed: a title, a known trigger,
// at least one effect, and known types throughout. The engine tolerates
// unknown types at execution time, but rejecting them at intake gives the
// author a usable error instead of a silent no-op.
func (r Rule) Validate() error {
	if r.Title == "" {
		return fmt.Errorf("rule title is required")
	}
	if !knownTriggers[r.Trigger.Type] {
		return fmt.Errorf("unknown trigger %q", r.Trigger.Type)
	}
	if len(r.Effects) == 0 {
		return fmt.Errorf("rule %q has no effects", r.Title)
	}
	for i, condition := range r.Conditions {
		if !knownConditions[condition.Type] {
			return fmt.Errorf("condition %d: unknown type %q", i, condition.Type)
		}
		if condition.Operator != "" && !knownOperators[condition.Operator] {
			return fmt.Errorf("condition %d: unknown operator %q", i, condition.Operator)
		}
		if condition.Target != "" && !knownTargets[condition.Target] {
			return fmt.Errorf("condition %d: unknown target %q", i, condition.Target)
		}
		if condition.Effect != "" && !knownEffects[condition.Effect] {
			return fmt.Errorf("condition %d: unknown effect %q", i, condition.Effect)
		}
	}
	for i, effect := range r.Effects {
		if !knownEffects[effect.Type] {
			return fmt.Errorf("effect %d: unknown type %q", i, effect.Type)
		}
		if effect.Target != "" && !knownTargets[effect.Target] {
			return fmt.Errorf("effect %d: unknown target %q", i, effect.Target)
		}
	}
	return nil
}
