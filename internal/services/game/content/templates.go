// Package content holds the built-in rule template catalog and the Lua
// rule-pack loader. Templates and loaded packs both produce plain rules;
// the engine never knows where a rule came from.
package content

import "github.com/louisbranch/ruleshift/internal/services/game/domain/rule"

func intptr(v int) *int { return &v }

// templates is the built-in catalog offered to players as starting points.
// Entries have no ID or CreatedAt; those are assigned when a template is
// added to a room.
var templates = []rule.Rule{
	{
		Title:   "Speed demon",
		Trigger: rule.TriggerSpec{Type: rule.TriggerDiceRoll, Value: intptr(6)},
		Effects: []rule.Effect{
			{Type: rule.EffectSpeedBoost, Value: 2, Target: rule.TargetSelf, Duration: 2},
		},
	},
	{
		Title:   "Snake pit",
		Trigger: rule.TriggerSpec{Type: rule.TriggerLand, Value: intptr(13)},
		Effects: []rule.Effect{
			{Type: rule.EffectBackToStart, Target: rule.TargetSelf},
		},
	},
	{
		Title:   "Toll bridge",
		Trigger: rule.TriggerSpec{Type: rule.TriggerPassOver, Value: intptr(10)},
		Effects: []rule.Effect{
			{Type: rule.EffectScoreDelta, Value: -2, Target: rule.TargetSelf},
		},
	},
	{
		Title:   "Treasure tile",
		Trigger: rule.TriggerSpec{Type: rule.TriggerLand, Value: intptr(7)},
		Effects: []rule.Effect{
			{Type: rule.EffectScoreDelta, Value: 3, Target: rule.TargetSelf},
		},
	},
	{
		Title:   "Highway robbery",
		Trigger: rule.TriggerSpec{Type: rule.TriggerSameTile},
		Effects: []rule.Effect{
			{Type: rule.EffectStealPoints, Value: 2, Target: rule.TargetLeader},
		},
	},
	{
		Title:   "Guardian angel",
		Trigger: rule.TriggerSpec{Type: rule.TriggerLand, Value: intptr(5)},
		Effects: []rule.Effect{
			{Type: rule.EffectShield, Target: rule.TargetSelf, Duration: 3},
		},
	},
	{
		Title:   "Underdog rally",
		Trigger: rule.TriggerSpec{Type: rule.TriggerTurnStart},
		Conditions: []rule.Condition{
			{Type: rule.ConditionPlayerRank, Operator: rule.OpGte, Value: 3, Target: rule.TargetSelf},
		},
		Effects: []rule.Effect{
			{Type: rule.EffectSpeedBoost, Value: 1, Target: rule.TargetSelf, Duration: 1},
		},
	},
	{
		Title:   "Hot streak",
		Trigger: rule.TriggerSpec{Type: rule.TriggerConsecutiveSixes, Value: intptr(2)},
		Effects: []rule.Effect{
			{Type: rule.EffectExtraTurn, Target: rule.TargetSelf},
		},
	},
	{
		Title:   "Photo finish",
		Trigger: rule.TriggerSpec{Type: rule.TriggerNearVictory, Value: intptr(3)},
		Effects: []rule.Effect{
			{Type: rule.EffectSlow, Value: 1, Target: rule.TargetSelf, Duration: 1},
		},
	},
	{
		Title:   "Echo chamber",
		Trigger: rule.TriggerSpec{Type: rule.TriggerLand, Value: intptr(15)},
		Effects: []rule.Effect{
			{Type: rule.EffectCopyLastEffect, Target: rule.TargetSelf},
		},
	},
}

// Templates returns deep copies of the built-in rule templates.
func Templates() []rule.Rule {
	out := make([]rule.Rule, len(templates))
	for i, template := range templates {
		out[i] = template.Clone()
	}
	return out
}

// TemplateByTitle looks a template up by its display title.
func TemplateByTitle(title string) (rule.Rule, bool) {
	for _, template := range templates {
		if template.Title == title {
			return template.Clone(), true
		}
	}
	return rule.Rule{}, false
}
