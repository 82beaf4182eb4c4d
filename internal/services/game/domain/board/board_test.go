package board

import (
	"testing"

	"github.com/louisbranch/ruleshift/internal/services/game/domain/rule"
)

func testState() GameState {
	return GameState{
		RoomID: "room-1",
		Status: StatusPlaying,
		Tiles: []Tile{
			{ID: "tile-0", Type: TileStart, Index: 0, Connections: []string{"tile-1"}},
			{ID: "tile-1", Type: TileNormal, Index: 1, Connections: []string{"tile-0", "tile-2"}},
			{ID: "tile-2", Type: TileEnd, Index: 2, IsEndTile: true, Connections: []string{"tile-1"}},
		},
		Players: []Player{
			{ID: "p1", Name: "Ada", Position: 2, Score: 5},
			{ID: "p2", Name: "Lin", Position: 2, Score: 3},
			{ID: "p3", Name: "Sam", Position: 0, Score: 9},
		},
		CurrentTurn: "p1",
	}
}

func TestCloneIsDeep(t *testing.T) {
	state := testState()
	state.ActiveRules = []rule.Rule{{ID: "r1", Effects: []rule.Effect{{Type: rule.EffectMoveRelative, Value: 1}}}}
	state.Players[0].Effects = []rule.TemporaryEffect{{ID: "e1", Type: rule.EffectShield, TurnsRemaining: 2}}
	state.LastEffect = &LastEffect{Type: rule.EffectScoreDelta, Value: 3}

	cloned := state.Clone()
	cloned.Tiles[0].Connections[0] = "mutated"
	cloned.Players[0].Effects[0].TurnsRemaining = 0
	cloned.ActiveRules[0].Effects[0].Value = 99
	cloned.LastEffect.Value = 99

	if state.Tiles[0].Connections[0] != "tile-1" {
		t.Fatal("clone shares tile connections")
	}
	if state.Players[0].Effects[0].TurnsRemaining != 2 {
		t.Fatal("clone shares player effects")
	}
	if state.ActiveRules[0].Effects[0].Value != 1 {
		t.Fatal("clone shares rule effects")
	}
	if state.LastEffect.Value != 3 {
		t.Fatal("clone shares last effect")
	}
}

func TestLeaderAndLastPlaceTieBreakByScore(t *testing.T) {
	state := testState()

	leader, ok := state.Leader("")
	if !ok || leader.ID != "p1" {
		t.Fatalf("leader = %v %v, want p1", leader.ID, ok)
	}

	// Excluding the leader promotes the next-ranked player.
	leader, ok = state.Leader("p1")
	if !ok || leader.ID != "p2" {
		t.Fatalf("leader excluding p1 = %v, want p2", leader.ID)
	}

	last, ok := state.LastPlace()
	if !ok || last.ID != "p3" {
		t.Fatalf("last place = %v, want p3", last.ID)
	}
}

func TestRank(t *testing.T) {
	state := testState()
	if got := state.Rank("p1"); got != 1 {
		t.Fatalf("rank p1 = %d, want 1", got)
	}
	if got := state.Rank("p2"); got != 2 {
		t.Fatalf("rank p2 = %d, want 2", got)
	}
	if got := state.Rank("p3"); got != 3 {
		t.Fatalf("rank p3 = %d, want 3", got)
	}
	if got := state.Rank("missing"); got != 0 {
		t.Fatalf("rank missing = %d, want 0", got)
	}
}

func TestResolveTargets(t *testing.T) {
	state := testState()

	cases := []struct {
		target rule.Target
		want   []string
	}{
		{rule.TargetSelf, []string{"p2"}},
		{rule.Target(""), []string{"p2"}},
		{rule.TargetOthers, []string{"p1", "p3"}},
		{rule.TargetAll, []string{"p1", "p2", "p3"}},
		{rule.TargetAny, []string{"p1", "p2", "p3"}},
		{rule.TargetLeader, []string{"p1"}},
		{rule.TargetLast, []string{"p3"}},
	}
	for _, tc := range cases {
		got := state.ResolveTargets("p2", tc.target)
		if len(got) != len(tc.want) {
			t.Fatalf("%s resolved %v, want %v", tc.target, got, tc.want)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Fatalf("%s resolved %v, want %v", tc.target, got, tc.want)
			}
		}
	}
}

func TestPlayersOnTile(t *testing.T) {
	state := testState()
	ids := state.PlayersOnTile(2, "p1")
	if len(ids) != 1 || ids[0] != "p2" {
		t.Fatalf("players on tile 2 excluding p1 = %v, want [p2]", ids)
	}
	if got := state.PlayersOnTile(1, ""); got != nil {
		t.Fatalf("players on empty tile = %v, want none", got)
	}
}

func TestActiveEffectIgnoresExpired(t *testing.T) {
	player := Player{Effects: []rule.TemporaryEffect{
		{Type: rule.EffectShield, TurnsRemaining: 0},
		{Type: rule.EffectDoubleDice, TurnsRemaining: 1},
	}}
	if player.HasActiveEffect(rule.EffectShield) {
		t.Fatal("expired shield reported active")
	}
	if !player.HasActiveEffect(rule.EffectDoubleDice) {
		t.Fatal("active double dice not reported")
	}
}

func TestValidate(t *testing.T) {
	state := testState()
	if err := state.Validate(); err != nil {
		t.Fatalf("valid state rejected: %v", err)
	}

	broken := testState()
	broken.Players[0].Position = -1
	if err := broken.Validate(); err == nil {
		t.Fatal("expected negative position to fail validation")
	}

	broken = testState()
	broken.CurrentTurn = "ghost"
	if err := broken.Validate(); err == nil {
		t.Fatal("expected dangling current turn to fail validation")
	}

	broken = testState()
	broken.Tiles[0].Type = TileNormal
	if err := broken.Validate(); err == nil {
		t.Fatal("expected missing start tile to fail validation")
	}
}
