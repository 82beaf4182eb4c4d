package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/louisbranch/ruleshift/internal/services/game/storage"
)

// RollHash computes the content hash for a single journaled roll. The
// canonical envelope is a fixed field order joined with unit separators so
// the encoding cannot drift between writers.
func RollHash(record storage.RollRecord) string {
	fields := []string{
		record.RoomID,
		strconv.FormatInt(record.Seq, 10),
		record.PlayerID,
		strconv.Itoa(record.RawDice),
		strconv.Itoa(record.EffectiveDice),
		strconv.FormatInt(record.Seed, 10),
		strings.Join(record.Logs, "\x1f"),
	}
	sum := sha256.Sum256([]byte(strings.Join(fields, "\x1e")))
	return hex.EncodeToString(sum[:])
}

// ChainHash computes the SHA-256 hash that links a roll to its predecessor.
// The first roll of a room chains from the empty string.
func ChainHash(record storage.RollRecord, prevHash string) string {
	sum := sha256.Sum256([]byte(prevHash + "\x1e" + RollHash(record)))
	return hex.EncodeToString(sum[:])
}
