// Package sqlite implements the room stores on a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/louisbranch/ruleshift/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/ruleshift/internal/services/game/domain/board"
	"github.com/louisbranch/ruleshift/internal/services/game/storage"
	"github.com/louisbranch/ruleshift/internal/services/game/storage/cursor"
	"github.com/louisbranch/ruleshift/internal/services/game/storage/integrity"
	"github.com/louisbranch/ruleshift/internal/services/game/storage/sqlite/migrations"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200

	roomOrderClause = "updated_at desc"
	rollOrderClause = "seq asc"
)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// fromMillis reverses toMillis for persisted millisecond timestamps.
func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Store provides a SQLite-backed store implementing the room storage
// interfaces.
type Store struct {
	sqlDB   *sql.DB
	keyring *integrity.Keyring
}

var _ storage.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithKeyring enables HMAC signing of journal chain hashes.
func WithKeyring(keyring *integrity.Keyring) Option {
	return func(s *Store) {
		s.keyring = keyring
	}
}

// Open opens a SQLite room store at the provided path and applies embedded
// migrations before handing the store to higher layers.
func Open(path string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.RoomsFS, "rooms"); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	store := &Store{sqlDB: sqlDB}
	for _, opt := range opts {
		opt(store)
	}
	return store, nil
}

// Close closes the underlying SQLite database.
//
// Close is intentionally nil-safe so callers can defer it in all startup
// paths.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// PutSnapshot upserts the latest state of a room.
func (s *Store) PutSnapshot(ctx context.Context, record storage.SnapshotRecord) error {
	if record.RoomID == "" {
		return fmt.Errorf("room id is required")
	}
	encoded, err := json.Marshal(record.State)
	if err != nil {
		return fmt.Errorf("encode room state: %w", err)
	}
	updatedAt := record.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO room_snapshots (room_id, seq, name, status, player_count, state, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (room_id) DO UPDATE SET
    seq = excluded.seq,
    name = excluded.name,
    status = excluded.status,
    player_count = excluded.player_count,
    state = excluded.state,
    updated_at = excluded.updated_at
`,
		record.RoomID,
		record.Seq,
		record.State.RoomName,
		string(record.State.Status),
		len(record.State.Players),
		string(encoded),
		toMillis(updatedAt),
	)
	if err != nil {
		return fmt.Errorf("put snapshot: %w", err)
	}
	return nil
}

// GetSnapshot loads the latest state of a room.
func (s *Store) GetSnapshot(ctx context.Context, roomID string) (storage.SnapshotRecord, error) {
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT room_id, seq, state, updated_at
FROM room_snapshots
WHERE room_id = ?
`, roomID)

	var record storage.SnapshotRecord
	var encoded string
	var updatedAt int64
	if err := row.Scan(&record.RoomID, &record.Seq, &encoded, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.SnapshotRecord{}, storage.ErrNotFound
		}
		return storage.SnapshotRecord{}, fmt.Errorf("get snapshot: %w", err)
	}

	var state board.GameState
	if err := json.Unmarshal([]byte(encoded), &state); err != nil {
		return storage.SnapshotRecord{}, fmt.Errorf("decode room state: %w", err)
	}
	record.State = state
	record.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}

// DeleteSnapshot removes a room's snapshot and journal.
func (s *Store) DeleteSnapshot(ctx context.Context, roomID string) error {
	result, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM room_snapshots WHERE room_id = ?`, roomID)
	if err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	if _, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM roll_journal WHERE room_id = ?`, roomID); err != nil {
		return fmt.Errorf("delete journal: %w", err)
	}
	return nil
}

// ListRooms pages room summaries by last update, newest first. The page
// token boundary is the updated_at of the last returned room.
func (s *Store) ListRooms(ctx context.Context, pageSize int, pageToken string) (storage.RoomPage, error) {
	pageSize = clampPageSize(pageSize)

	boundary := int64(0)
	if pageToken != "" {
		c, err := cursor.Decode(pageToken)
		if err != nil {
			return storage.RoomPage{}, err
		}
		if err := cursor.ValidateOrderHash(c, roomOrderClause); err != nil {
			return storage.RoomPage{}, err
		}
		boundary = c.Seq
	}

	query := `
SELECT room_id, seq, name, status, player_count, updated_at
FROM room_snapshots
`
	args := []any{}
	if boundary > 0 {
		query += "WHERE updated_at < ?\n"
		args = append(args, boundary)
	}
	query += "ORDER BY updated_at DESC, room_id\nLIMIT ?"
	args = append(args, pageSize+1)

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return storage.RoomPage{}, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	var page storage.RoomPage
	for rows.Next() {
		var summary storage.RoomSummary
		var status string
		var updatedAt int64
		if err := rows.Scan(&summary.RoomID, &summary.Seq, &summary.Name,
			&status, &summary.PlayerCount, &updatedAt); err != nil {
			return storage.RoomPage{}, fmt.Errorf("scan room summary: %w", err)
		}
		summary.Status = board.Status(status)
		summary.UpdatedAt = fromMillis(updatedAt)
		page.Rooms = append(page.Rooms, summary)
	}
	if err := rows.Err(); err != nil {
		return storage.RoomPage{}, fmt.Errorf("list rooms: %w", err)
	}

	if len(page.Rooms) > pageSize {
		page.Rooms = page.Rooms[:pageSize]
		last := page.Rooms[len(page.Rooms)-1]
		token, err := cursor.Encode(cursor.NewNextPageCursor(
			toMillis(last.UpdatedAt), true, "", roomOrderClause))
		if err != nil {
			return storage.RoomPage{}, err
		}
		page.NextPageToken = token
	}
	return page, nil
}

// AppendRoll journals one processed roll. (room_id, seq) is the primary
// key, so replaying the same command twice surfaces as a constraint error
// instead of a duplicated history line. Each roll is linked to its
// predecessor through a chain hash, signed when a keyring is configured.
func (s *Store) AppendRoll(ctx context.Context, record storage.RollRecord) error {
	if record.RoomID == "" {
		return fmt.Errorf("room id is required")
	}
	logs, err := json.Marshal(record.Logs)
	if err != nil {
		return fmt.Errorf("encode roll logs: %w", err)
	}
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	prevHash, err := s.lastChainHash(ctx, record.RoomID)
	if err != nil {
		return err
	}
	chainHash := integrity.ChainHash(record, prevHash)

	var signature, keyID string
	if s.keyring != nil {
		signature, keyID, err = s.keyring.SignChainHash(record.RoomID, chainHash)
		if err != nil {
			return fmt.Errorf("sign chain hash: %w", err)
		}
	}

	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO roll_journal (room_id, seq, player_id, raw_dice, effective_dice, seed, logs, created_at, chain_hash, signature, key_id)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		record.RoomID,
		record.Seq,
		record.PlayerID,
		record.RawDice,
		record.EffectiveDice,
		record.Seed,
		string(logs),
		toMillis(createdAt),
		chainHash,
		signature,
		keyID,
	)
	if err != nil {
		return fmt.Errorf("append roll: %w", err)
	}
	return nil
}

// lastChainHash returns the chain hash of the highest-seq roll in a room's
// journal, or the empty string for the first roll.
func (s *Store) lastChainHash(ctx context.Context, roomID string) (string, error) {
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT chain_hash
FROM roll_journal
WHERE room_id = ?
ORDER BY seq DESC
LIMIT 1
`, roomID)

	var hash string
	if err := row.Scan(&hash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("load chain head: %w", err)
	}
	return hash, nil
}

// ListRolls pages a room's journal in ascending seq order.
func (s *Store) ListRolls(ctx context.Context, roomID string, pageSize int, pageToken string) (storage.RollPage, error) {
	pageSize = clampPageSize(pageSize)

	boundary := int64(-1)
	if pageToken != "" {
		c, err := cursor.Decode(pageToken)
		if err != nil {
			return storage.RollPage{}, err
		}
		if err := cursor.ValidateFilterHash(c, roomID); err != nil {
			return storage.RollPage{}, err
		}
		if err := cursor.ValidateOrderHash(c, rollOrderClause); err != nil {
			return storage.RollPage{}, err
		}
		boundary = c.Seq
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT room_id, seq, player_id, raw_dice, effective_dice, seed, logs, created_at, chain_hash, signature, key_id
FROM roll_journal
WHERE room_id = ? AND seq > ?
ORDER BY seq
LIMIT ?
`, roomID, boundary, pageSize+1)
	if err != nil {
		return storage.RollPage{}, fmt.Errorf("list rolls: %w", err)
	}
	defer rows.Close()

	var page storage.RollPage
	for rows.Next() {
		var record storage.RollRecord
		var logs string
		var createdAt int64
		if err := rows.Scan(&record.RoomID, &record.Seq, &record.PlayerID,
			&record.RawDice, &record.EffectiveDice, &record.Seed,
			&logs, &createdAt, &record.ChainHash, &record.Signature,
			&record.KeyID); err != nil {
			return storage.RollPage{}, fmt.Errorf("scan roll: %w", err)
		}
		if err := json.Unmarshal([]byte(logs), &record.Logs); err != nil {
			return storage.RollPage{}, fmt.Errorf("decode roll logs: %w", err)
		}
		record.CreatedAt = fromMillis(createdAt)
		page.Rolls = append(page.Rolls, record)
	}
	if err := rows.Err(); err != nil {
		return storage.RollPage{}, fmt.Errorf("list rolls: %w", err)
	}

	if len(page.Rolls) > pageSize {
		page.Rolls = page.Rolls[:pageSize]
		last := page.Rolls[len(page.Rolls)-1]
		token, err := cursor.Encode(cursor.Cursor{
			Seq:        last.Seq,
			Dir:        cursor.DirectionForward,
			FilterHash: cursor.HashFilter(roomID),
			OrderHash:  cursor.HashFilter(rollOrderClause),
		})
		if err != nil {
			return storage.RollPage{}, err
		}
		page.NextPageToken = token
	}
	return page, nil
}

// VerifyJournal walks a room's journal in seq order, recomputing the hash
// chain and checking signatures where present. It reports the first broken
// link it finds.
func (s *Store) VerifyJournal(ctx context.Context, roomID string) error {
	prevHash := ""
	pageToken := ""
	for {
		page, err := s.ListRolls(ctx, roomID, maxPageSize, pageToken)
		if err != nil {
			return err
		}
		for _, record := range page.Rolls {
			expected := integrity.ChainHash(record, prevHash)
			if record.ChainHash != expected {
				return fmt.Errorf("journal chain broken at seq %d", record.Seq)
			}
			if record.Signature != "" {
				if s.keyring == nil {
					return fmt.Errorf("journal seq %d is signed but no keyring is configured", record.Seq)
				}
				if err := s.keyring.VerifyChainHash(roomID, record.ChainHash, record.Signature, record.KeyID); err != nil {
					return fmt.Errorf("journal signature invalid at seq %d: %w", record.Seq, err)
				}
			}
			prevHash = record.ChainHash
		}
		if page.NextPageToken == "" {
			return nil
		}
		pageToken = page.NextPageToken
	}
}

func clampPageSize(pageSize int) int {
	if pageSize <= 0 {
		return defaultPageSize
	}
	if pageSize > maxPageSize {
		return maxPageSize
	}
	return pageSize
}
