package content

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Shopify/go-lua"

	"github.com/louisbranch/ruleshift/internal/platform/errors"
	"github.com/louisbranch/ruleshift/internal/services/game/domain/rule"
)

const packTypeName = "rule_pack"

// Pack is a named bundle of rules produced by a Lua script. Scripts build
// a pack with the registered Pack constructor and return it:
//
//	local pack = Pack.new("chaos mode")
//	pack:rule{
//	    title = "Lucky eight",
//	    trigger = "on_dice_roll",
//	    trigger_value = 8,
//	    effects = {
//	        {type = "score_delta", value = 3, target = "self"},
//	    },
//	}
//	return pack
type Pack struct {
	Name  string
	Rules []rule.Rule
}

// LoadPackFile loads and runs a Lua rule-pack script from disk.
func LoadPackFile(path string) (*Pack, error) {
	state := newPackState()
	if err := lua.LoadFile(state, path, ""); err != nil {
		return nil, errors.Wrap(errors.CodeRulePackLoadFailed, "load pack script", err)
	}
	pack, err := runPack(state)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(pack.Name) == "" {
		pack.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return pack, nil
}

// LoadPackScript loads a Lua rule-pack from an in-memory script.
func LoadPackScript(name, source string) (*Pack, error) {
	state := newPackState()
	if err := lua.LoadString(state, source); err != nil {
		return nil, errors.Wrap(errors.CodeRulePackLoadFailed, "load pack script", err)
	}
	pack, err := runPack(state)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(pack.Name) == "" {
		pack.Name = name
	}
	return pack, nil
}

func newPackState() *lua.State {
	state := lua.NewState()
	lua.OpenLibraries(state)
	registerPackType(state)
	registerPackConstructor(state)
	return state
}

func runPack(state *lua.State) (*Pack, error) {
	if err := state.ProtectedCall(0, 1, 0); err != nil {
		return nil, errors.Wrap(errors.CodeRulePackLoadFailed, "run pack script", err)
	}
	if state.TypeOf(-1) != lua.TypeUserData {
		state.Pop(1)
		return nil, errors.New(errors.CodeRulePackInvalid, "pack script must return a Pack")
	}
	ud := state.ToUserData(-1)
	state.Pop(1)
	pack, ok := ud.(*Pack)
	if !ok || pack == nil {
		return nil, errors.New(errors.CodeRulePackInvalid, "pack script returned an invalid Pack")
	}
	for i, r := range pack.Rules {
		if err := r.Validate(); err != nil {
			return nil, errors.Wrap(errors.CodeRulePackInvalid,
				fmt.Sprintf("rule %d of pack %q", i, pack.Name), err)
		}
	}
	return pack, nil
}

func registerPackType(state *lua.State) {
	lua.NewMetaTable(state, packTypeName)
	state.NewTable()
	lua.SetFunctions(state, packMethods, 0)
	state.SetField(-2, "__index")
	state.Pop(1)
}

func registerPackConstructor(state *lua.State) {
	state.NewTable()
	lua.SetFunctions(state, packConstructor, 0)
	state.SetGlobal("Pack")
}

var packConstructor = []lua.RegistryFunction{
	{Name: "new", Function: packNew},
}

var packMethods = []lua.RegistryFunction{
	{Name: "rule", Function: packRule},
}

func packNew(state *lua.State) int {
	name := lua.OptString(state, 1, "")
	pack := &Pack{Name: name}
	state.PushUserData(pack)
	lua.SetMetaTableNamed(state, packTypeName)
	return 1
}

func packRule(state *lua.State) int {
	pack := checkPack(state)
	lua.CheckType(state, 2, lua.TypeTable)
	data := tableToMap(state, 2)
	pack.Rules = append(pack.Rules, ruleFromMap(data))
	return 0
}

func checkPack(state *lua.State) *Pack {
	ud := lua.CheckUserData(state, 1, packTypeName)
	if pack, ok := ud.(*Pack); ok && pack != nil {
		return pack
	}
	lua.ArgumentError(state, 1, "pack expected")
	return nil
}

// ruleFromMap converts a Lua rule table into a rule value. Validation
// happens after the script finishes so a script error carries the pack
// name and rule index.
func ruleFromMap(data map[string]any) rule.Rule {
	r := rule.Rule{
		Title:    stringField(data, "title"),
		Priority: intField(data, "priority"),
		Trigger: rule.TriggerSpec{
			Type: rule.Trigger(stringField(data, "trigger")),
		},
	}
	if value, ok := optionalIntField(data, "trigger_value"); ok {
		r.Trigger.Value = &value
	}
	for _, entry := range listField(data, "conditions") {
		r.Conditions = append(r.Conditions, rule.Condition{
			Type:     rule.ConditionType(stringField(entry, "type")),
			Operator: rule.Operator(stringField(entry, "op")),
			Value:    intField(entry, "value"),
			Effect:   rule.EffectType(stringField(entry, "effect")),
			Target:   rule.Target(stringField(entry, "target")),
		})
	}
	for _, entry := range listField(data, "effects") {
		r.Effects = append(r.Effects, rule.Effect{
			Type:     rule.EffectType(stringField(entry, "type")),
			Value:    intField(entry, "value"),
			Target:   rule.Target(stringField(entry, "target")),
			Duration: intField(entry, "duration"),
		})
	}
	return r
}

func stringField(data map[string]any, key string) string {
	value, _ := data[key].(string)
	return value
}

func intField(data map[string]any, key string) int {
	value, _ := optionalIntField(data, key)
	return value
}

func optionalIntField(data map[string]any, key string) (int, bool) {
	switch value := data[key].(type) {
	case int:
		return value, true
	case float64:
		return int(value), true
	default:
		return 0, false
	}
}

func listField(data map[string]any, key string) []map[string]any {
	raw, ok := data[key].([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(raw))
	for _, entry := range raw {
		if m, ok := entry.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func tableToMap(state *lua.State, index int) map[string]any {
	output := map[string]any{}
	if state.TypeOf(index) != lua.TypeTable {
		return output
	}

	index = state.AbsIndex(index)
	state.PushNil()
	for state.Next(index) {
		if state.TypeOf(-2) == lua.TypeString {
			key, _ := state.ToString(-2)
			output[key] = luaToGo(state, -1)
		}
		state.Pop(1)
	}
	return output
}

func luaToGo(state *lua.State, index int) any {
	switch state.TypeOf(index) {
	case lua.TypeString:
		value, _ := state.ToString(index)
		return value
	case lua.TypeNumber:
		value, _ := state.ToNumber(index)
		return value
	case lua.TypeBoolean:
		return state.ToBoolean(index)
	case lua.TypeTable:
		return tableToGo(state, index)
	default:
		return nil
	}
}

// tableToGo converts a table to a slice when it is a pure array, and to a
// map otherwise.
func tableToGo(state *lua.State, index int) any {
	index = state.AbsIndex(index)
	isArray := true
	maxIndex := 0
	count := 0
	state.PushNil()
	for state.Next(index) {
		if isArray {
			if state.TypeOf(-2) != lua.TypeNumber {
				isArray = false
			} else if idx, ok := state.ToInteger(-2); ok && idx > 0 {
				count++
				if idx > maxIndex {
					maxIndex = idx
				}
			} else {
				isArray = false
			}
		}
		state.Pop(1)
	}

	if isArray && count > 0 && maxIndex == count {
		result := make([]any, 0, maxIndex)
		for i := 1; i <= maxIndex; i++ {
			state.RawGetInt(index, i)
			result = append(result, luaToGo(state, -1))
			state.Pop(1)
		}
		return result
	}

	return tableToMap(state, index)
}
