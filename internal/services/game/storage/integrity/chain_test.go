package integrity

import (
	"testing"

	"github.com/louisbranch/ruleshift/internal/services/game/storage"
)

func sampleRoll() storage.RollRecord {
	return storage.RollRecord{
		RoomID:        "room-1",
		Seq:           2,
		PlayerID:      "p1",
		RawDice:       4,
		EffectiveDice: 8,
		Seed:          12345,
		Logs:          []string{"Dice: 4 -> 8 (double dice)", "Moved: 0 -> 8"},
	}
}

func TestRollHashIsDeterministic(t *testing.T) {
	record := sampleRoll()
	if RollHash(record) != RollHash(record) {
		t.Fatal("expected identical hashes for identical records")
	}
}

func TestRollHashCoversFields(t *testing.T) {
	base := RollHash(sampleRoll())

	tampered := sampleRoll()
	tampered.EffectiveDice = 4
	if RollHash(tampered) == base {
		t.Fatal("expected hash to change when effective dice changes")
	}

	tampered = sampleRoll()
	tampered.Logs = []string{"Moved: 0 -> 8"}
	if RollHash(tampered) == base {
		t.Fatal("expected hash to change when logs change")
	}
}

func TestChainHashLinksToPrevious(t *testing.T) {
	record := sampleRoll()
	first := ChainHash(record, "")
	second := ChainHash(record, first)
	if first == second {
		t.Fatal("expected chain hash to depend on predecessor")
	}
}
