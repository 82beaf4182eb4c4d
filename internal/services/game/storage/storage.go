package storage

import (
	"context"
	"time"

	apperrors "github.com/louisbranch/ruleshift/internal/platform/errors"
	"github.com/louisbranch/ruleshift/internal/services/game/domain/board"
)

// ErrNotFound indicates a requested persistence record is missing. Callers
// use this to differentiate a legitimate "no such room" from transport or
// data corruption failures.
var ErrNotFound = apperrors.New(apperrors.CodeNotFound, "record not found")

// SnapshotRecord is the latest persisted state of one room. Seq counts
// accepted commands and increases by one per write; a stale write with a
// lower Seq is a bug in the caller, not something the store resolves.
type SnapshotRecord struct {
	RoomID    string
	Seq       int64
	State     board.GameState
	UpdatedAt time.Time
}

// RoomSummary is the lobby-facing view of a room.
type RoomSummary struct {
	RoomID      string
	Name        string
	Status      board.Status
	PlayerCount int
	Seq         int64
	UpdatedAt   time.Time
}

// RollRecord is one journaled dice roll: the raw and post-modifier dice,
// the seed the engine derived, and the log lines the turn produced.
// Replaying the journal against the engine reproduces the game.
type RollRecord struct {
	RoomID        string
	Seq           int64
	PlayerID      string
	RawDice       int
	EffectiveDice int
	Seed          int64
	Logs          []string
	CreatedAt     time.Time

	// ChainHash links this roll to its predecessor for tamper detection.
	// Signature and KeyID are set when the store signs chain hashes.
	ChainHash string
	Signature string
	KeyID     string
}

// RoomPage describes a page of room summaries.
type RoomPage struct {
	Rooms         []RoomSummary
	NextPageToken string
}

// RollPage describes a page of journaled rolls.
type RollPage struct {
	Rolls         []RollRecord
	NextPageToken string
}

// SnapshotStore owns the per-room state snapshots used for rehydration and
// the lobby listing.
type SnapshotStore interface {
	PutSnapshot(ctx context.Context, record SnapshotRecord) error
	GetSnapshot(ctx context.Context, roomID string) (SnapshotRecord, error)
	DeleteSnapshot(ctx context.Context, roomID string) error
	// ListRooms returns a page of room summaries ordered by last update,
	// newest first.
	ListRooms(ctx context.Context, pageSize int, pageToken string) (RoomPage, error)
}

// JournalStore owns the append-only roll journal.
type JournalStore interface {
	AppendRoll(ctx context.Context, record RollRecord) error
	// ListRolls returns a page of rolls for a room in ascending seq order.
	ListRolls(ctx context.Context, roomID string, pageSize int, pageToken string) (RollPage, error)
	// VerifyJournal walks a room's journal and checks the hash chain and
	// any signatures.
	VerifyJournal(ctx context.Context, roomID string) error
}

// Store bundles the stores a running server needs.
type Store interface {
	SnapshotStore
	JournalStore
	Close() error
}
