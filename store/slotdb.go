package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/chazu/sigvm/vm"
	"github.com/chazu/sigvm/vm/savestate"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

var stampEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("store: failed to create CBOR enc mode: %v", err))
	}
	stampEncMode = em
}

// stampRecord is the CBOR form of a slot stamp column.
type stampRecord struct {
	Year        int32 `cbor:"1,keyasint"`
	Month       int32 `cbor:"2,keyasint"`
	Day         int32 `cbor:"3,keyasint"`
	Weekday     int32 `cbor:"4,keyasint"`
	Hour        int32 `cbor:"5,keyasint"`
	Minute      int32 `cbor:"6,keyasint"`
	Second      int32 `cbor:"7,keyasint"`
	Millisecond int32 `cbor:"8,keyasint"`
}

func marshalStamp(s savestate.Stamp) ([]byte, error) {
	return stampEncMode.Marshal(stampRecord(s))
}

func unmarshalStamp(data []byte) (savestate.Stamp, error) {
	var r stampRecord
	if err := cbor.Unmarshal(data, &r); err != nil {
		return savestate.Stamp{}, fmt.Errorf("store: unmarshal stamp: %w", err)
	}
	return savestate.Stamp(r), nil
}

// SlotInfo is a slot row without its state payload.
type SlotInfo struct {
	ID      string
	Kind    vm.SlotKind
	No      int32
	Stamp   savestate.Stamp
	Title   string
	Message string
}

// SlotDB stores save slots of every kind in a SQLite database.
type SlotDB struct {
	db     *sql.DB
	path   string
	limits savestate.Limits
	mu     sync.Mutex
}

// OpenSlotDB opens or creates the slot database at path. Use ":memory:"
// for a private in-memory database.
func OpenSlotDB(path string, limits savestate.Limits) (*SlotDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// one connection so an in-memory database is shared by every query
	db.SetMaxOpenConns(1)

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS slots (
		id      TEXT NOT NULL,
		kind    INTEGER NOT NULL,
		no      INTEGER NOT NULL,
		stamp   BLOB NOT NULL,
		title   TEXT NOT NULL,
		message TEXT NOT NULL,
		state   BLOB,
		PRIMARY KEY (kind, no)
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}
	log.Infof("opened slot database %s", path)
	return &SlotDB{db: db, path: path, limits: limits}, nil
}

// Close closes the database connection.
func (s *SlotDB) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func putSlot(ctx context.Context, x execer, kind vm.SlotKind, no int32, slot *savestate.Slot) error {
	stamp, err := marshalStamp(slot.Stamp)
	if err != nil {
		return err
	}
	var state []byte
	if slot.State != nil {
		state = savestate.EncodeLocal(slot.State)
	}
	_, err = x.ExecContext(ctx,
		"INSERT OR REPLACE INTO slots (id, kind, no, stamp, title, message, state) VALUES (?, ?, ?, ?, ?, ?, ?)",
		uuid.NewString(), int(kind), no, stamp, slot.Title, slot.Message, state,
	)
	if err != nil {
		return fmt.Errorf("saving %s slot %d: %w", kind, no, err)
	}
	return nil
}

// Put stores a slot, replacing what was there.
func (s *SlotDB) Put(ctx context.Context, kind vm.SlotKind, no int32, slot *savestate.Slot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return putSlot(ctx, s.db, kind, no, slot)
}

// Get loads a slot with its decoded state.
func (s *SlotDB) Get(ctx context.Context, kind vm.SlotKind, no int32) (*savestate.Slot, error) {
	var stamp, state []byte
	slot := &savestate.Slot{}
	err := s.db.QueryRowContext(ctx,
		"SELECT stamp, title, message, state FROM slots WHERE kind = ? AND no = ?", int(kind), no,
	).Scan(&stamp, &slot.Title, &slot.Message, &state)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s slot %d: %w", kind, no, ErrSlotNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying %s slot %d: %w", kind, no, err)
	}
	return s.decodeRow(kind, no, slot, stamp, state)
}

func (s *SlotDB) decodeRow(kind vm.SlotKind, no int32, slot *savestate.Slot, stamp, state []byte) (*savestate.Slot, error) {
	var err error
	if slot.Stamp, err = unmarshalStamp(stamp); err != nil {
		return nil, err
	}
	if len(state) > 0 {
		if slot.State, err = savestate.DecodeLocal(state, s.limits); err != nil {
			return nil, fmt.Errorf("%s slot %d: %w", kind, no, err)
		}
	}
	return slot, nil
}

// Delete removes a slot.
func (s *SlotDB) Delete(ctx context.Context, kind vm.SlotKind, no int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, "DELETE FROM slots WHERE kind = ? AND no = ?", int(kind), no)
	if err != nil {
		return fmt.Errorf("deleting %s slot %d: %w", kind, no, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s slot %d: %w", kind, no, ErrSlotNotFound)
	}
	return nil
}

// List returns the slots of a kind, ordered by number.
func (s *SlotDB) List(ctx context.Context, kind vm.SlotKind) ([]SlotInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, no, stamp, title, message FROM slots WHERE kind = ? ORDER BY no", int(kind))
	if err != nil {
		return nil, fmt.Errorf("listing %s slots: %w", kind, err)
	}
	defer rows.Close()

	var out []SlotInfo
	for rows.Next() {
		info := SlotInfo{Kind: kind}
		var stamp []byte
		if err := rows.Scan(&info.ID, &info.No, &stamp, &info.Title, &info.Message); err != nil {
			return nil, err
		}
		if info.Stamp, err = unmarshalStamp(stamp); err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// SyncFrom replaces every stored slot of m's kind with the contents of m
// in one transaction.
func (s *SlotDB) SyncFrom(ctx context.Context, m *vm.SlotMap) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM slots WHERE kind = ?", int(m.Kind())); err != nil {
		return fmt.Errorf("clearing %s slots: %w", m.Kind(), err)
	}
	for _, no := range m.Numbers() {
		slot, _ := m.Get(no)
		if err := putSlot(ctx, tx, m.Kind(), no, slot); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	log.Debugf("synced %d %s slots", m.Len(), m.Kind())
	return nil
}

// LoadInto replaces the contents of m with the stored slots of its kind.
// Rows outside m's capacity are skipped.
func (s *SlotDB) LoadInto(ctx context.Context, m *vm.SlotMap) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT no, stamp, title, message, state FROM slots WHERE kind = ? ORDER BY no", int(m.Kind()))
	if err != nil {
		return fmt.Errorf("loading %s slots: %w", m.Kind(), err)
	}
	defer rows.Close()

	loaded := make(map[int32]*savestate.Slot)
	for rows.Next() {
		var (
			no           int32
			stamp, state []byte
		)
		slot := &savestate.Slot{}
		if err := rows.Scan(&no, &stamp, &slot.Title, &slot.Message, &state); err != nil {
			return err
		}
		if slot, err = s.decodeRow(m.Kind(), no, slot, stamp, state); err != nil {
			return err
		}
		loaded[no] = slot
	}
	if err := rows.Err(); err != nil {
		return err
	}

	m.Clear()
	for no, slot := range loaded {
		if !m.Save(no, slot) {
			log.Warningf("dropping %s slot %d beyond capacity %d", m.Kind(), no, m.Capacity())
		}
	}
	return nil
}
