package content

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/louisbranch/ruleshift/internal/platform/errors"
	"github.com/louisbranch/ruleshift/internal/services/game/domain/rule"
)

func TestTemplatesAreValid(t *testing.T) {
	catalog := Templates()
	if len(catalog) == 0 {
		t.Fatal("template catalog is empty")
	}
	for _, template := range catalog {
		if err := template.Validate(); err != nil {
			t.Fatalf("template %q invalid: %v", template.Title, err)
		}
		if template.ID != "" {
			t.Fatalf("template %q carries an id", template.Title)
		}
	}
}

func TestTemplatesReturnsCopies(t *testing.T) {
	first := Templates()
	first[0].Title = "mutated"
	first[0].Effects[0].Value = 999

	second := Templates()
	if second[0].Title == "mutated" || second[0].Effects[0].Value == 999 {
		t.Fatal("catalog shares memory with returned templates")
	}
}

func TestTemplateByTitle(t *testing.T) {
	template, ok := TemplateByTitle("Snake pit")
	if !ok {
		t.Fatal("known template not found")
	}
	if template.Trigger.Type != rule.TriggerLand {
		t.Fatalf("trigger = %s, want land", template.Trigger.Type)
	}
	if _, ok := TemplateByTitle("No such thing"); ok {
		t.Fatal("unknown template found")
	}
}

const chaosPack = `
local pack = Pack.new("chaos mode")
pack:rule{
    title = "Lucky eight",
    trigger = "on_dice_roll",
    trigger_value = 8,
    priority = 3,
    effects = {
        {type = "score_delta", value = 3, target = "self"},
    },
}
pack:rule{
    title = "Rich get robbed",
    trigger = "on_land",
    conditions = {
        {type = "score", op = "gte", value = 10, target = "leader"},
    },
    effects = {
        {type = "steal_points", value = 2, target = "leader"},
        {type = "shield", target = "self", duration = 2},
    },
}
return pack
`

func TestLoadPackScript(t *testing.T) {
	pack, err := LoadPackScript("fallback", chaosPack)
	if err != nil {
		t.Fatalf("LoadPackScript: %v", err)
	}
	if pack.Name != "chaos mode" {
		t.Fatalf("pack name = %q, want script-declared name", pack.Name)
	}
	if len(pack.Rules) != 2 {
		t.Fatalf("rules = %d, want 2", len(pack.Rules))
	}

	lucky := pack.Rules[0]
	if lucky.Title != "Lucky eight" || lucky.Priority != 3 {
		t.Fatalf("first rule = %+v", lucky)
	}
	if lucky.Trigger.Type != rule.TriggerDiceRoll {
		t.Fatalf("first trigger = %s", lucky.Trigger.Type)
	}
	if lucky.Trigger.Value == nil || *lucky.Trigger.Value != 8 {
		t.Fatalf("first trigger value = %v, want 8", lucky.Trigger.Value)
	}
	if len(lucky.Effects) != 1 || lucky.Effects[0].Type != rule.EffectScoreDelta {
		t.Fatalf("first effects = %+v", lucky.Effects)
	}

	robbed := pack.Rules[1]
	if robbed.Trigger.Value != nil {
		t.Fatalf("second trigger value = %v, want wildcard", robbed.Trigger.Value)
	}
	if len(robbed.Conditions) != 1 {
		t.Fatalf("second conditions = %+v", robbed.Conditions)
	}
	condition := robbed.Conditions[0]
	if condition.Type != rule.ConditionScore || condition.Operator != rule.OpGte || condition.Value != 10 {
		t.Fatalf("condition = %+v", condition)
	}
	if len(robbed.Effects) != 2 || robbed.Effects[1].Duration != 2 {
		t.Fatalf("second effects = %+v", robbed.Effects)
	}
}

func TestLoadPackScriptUsesFallbackName(t *testing.T) {
	pack, err := LoadPackScript("anonymous", `
local pack = Pack.new()
pack:rule{
    title = "Noop shield",
    trigger = "on_turn_start",
    effects = {{type = "shield", target = "self", duration = 1}},
}
return pack
`)
	if err != nil {
		t.Fatalf("LoadPackScript: %v", err)
	}
	if pack.Name != "anonymous" {
		t.Fatalf("pack name = %q, want fallback", pack.Name)
	}
}

func TestLoadPackScriptRejections(t *testing.T) {
	cases := []struct {
		name   string
		source string
		code   errors.Code
	}{
		{
			name:   "syntax error",
			source: `this is not lua`,
			code:   errors.CodeRulePackLoadFailed,
		},
		{
			name:   "runtime error",
			source: `error("boom")`,
			code:   errors.CodeRulePackLoadFailed,
		},
		{
			name:   "wrong return type",
			source: `return 42`,
			code:   errors.CodeRulePackInvalid,
		},
		{
			name: "invalid rule",
			source: `
local pack = Pack.new("bad")
pack:rule{title = "Ghost", trigger = "on_full_moon", effects = {{type = "shield", target = "self"}}}
return pack
`,
			code: errors.CodeRulePackInvalid,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadPackScript("test", tc.source)
			if err == nil {
				t.Fatal("LoadPackScript = nil error")
			}
			if errors.CodeOf(err) != tc.code {
				t.Fatalf("code = %s, want %s (%v)", errors.CodeOf(err), tc.code, err)
			}
		})
	}
}

func TestLoadPackFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "weekend.lua")
	if err := os.WriteFile(path, []byte(chaosPack), 0o600); err != nil {
		t.Fatalf("write pack: %v", err)
	}

	pack, err := LoadPackFile(path)
	if err != nil {
		t.Fatalf("LoadPackFile: %v", err)
	}
	if pack.Name != "chaos mode" || len(pack.Rules) != 2 {
		t.Fatalf("pack = %+v", pack)
	}

	if _, err := LoadPackFile(filepath.Join(dir, "missing.lua")); errors.CodeOf(err) != errors.CodeRulePackLoadFailed {
		t.Fatalf("missing file error = %v", err)
	}
}
