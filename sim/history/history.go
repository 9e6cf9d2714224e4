// Package history keeps an append-only record of simulation runs in an
// in-memory SQLite database. Nothing outlives the process.
package history

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/combat-sim/combat-sim/sim"
)

// ErrNotFound is returned by Load for an unknown run id.
var ErrNotFound = errors.New("history: run not found")

// Entry summarizes one stored run.
type Entry struct {
	ID          string
	CreatedAt   time.Time
	Monsters    int
	Dungeons    int
	Strongholds int
	Depths      int
	Slayer      int
}

// Store is the run history. It implements sim.Recorder.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ sim.Recorder = (*Store)(nil)

// Open creates an empty in-memory history.
func Open() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	// Every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

// Close closes the database; the history is discarded.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT UNIQUE NOT NULL,
			created_at INTEGER NOT NULL,
			settings BLOB NOT NULL,
			monsters TEXT NOT NULL,
			dungeons TEXT NOT NULL,
			strongholds TEXT NOT NULL,
			depths TEXT NOT NULL,
			slayer TEXT NOT NULL,
			slayer_members TEXT NOT NULL DEFAULT '{}',
			slayer_exclusions TEXT NOT NULL DEFAULT '{}'
		)`,
	}
	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

// Append stores a snapshot and returns its new run id.
func (s *Store) Append(snap *sim.Snapshot) (string, error) {
	if snap == nil {
		return "", errors.New("history: nil snapshot")
	}
	cols := make([][]byte, 0, 7)
	for _, v := range []any{snap.Monsters, snap.Dungeons, snap.Strongholds, snap.Depths, snap.Slayer, snap.SlayerMembers, snap.SlayerExclusions} {
		data, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("history: encoding snapshot: %w", err)
		}
		cols = append(cols, data)
	}
	settings := []byte(snap.Settings)
	if settings == nil {
		settings = []byte{}
	}

	id := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO runs (id, created_at, settings, monsters, dungeons, strongholds, depths, slayer, slayer_members, slayer_exclusions)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, s.now().UnixNano(), settings,
		string(cols[0]), string(cols[1]), string(cols[2]), string(cols[3]), string(cols[4]), string(cols[5]), string(cols[6]),
	)
	if err != nil {
		return "", fmt.Errorf("history: inserting run: %w", err)
	}
	return id, nil
}

// List returns the stored runs, oldest first.
func (s *Store) List() ([]Entry, error) {
	rows, err := s.db.Query(`SELECT id, created_at, monsters, dungeons, strongholds, depths, slayer FROM runs ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("history: listing runs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var created int64
		var cols [5]string
		if err := rows.Scan(&e.ID, &created, &cols[0], &cols[1], &cols[2], &cols[3], &cols[4]); err != nil {
			return nil, fmt.Errorf("history: scanning run: %w", err)
		}
		e.CreatedAt = time.Unix(0, created)
		counts := []*int{&e.Monsters, &e.Dungeons, &e.Strongholds, &e.Depths, &e.Slayer}
		for i, c := range cols {
			var m map[string]json.RawMessage
			if err := json.Unmarshal([]byte(c), &m); err != nil {
				return nil, fmt.Errorf("history: decoding run %s: %w", e.ID, err)
			}
			*counts[i] = len(m)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Load returns the snapshot of run id.
func (s *Store) Load(id string) (*sim.Snapshot, error) {
	var settings []byte
	var cols [7]string
	err := s.db.QueryRow(
		`SELECT settings, monsters, dungeons, strongholds, depths, slayer, slayer_members, slayer_exclusions FROM runs WHERE id = ?`, id,
	).Scan(&settings, &cols[0], &cols[1], &cols[2], &cols[3], &cols[4], &cols[5], &cols[6])
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("history: loading run %s: %w", id, err)
	}

	snap := &sim.Snapshot{Settings: json.RawMessage(settings)}
	targets := []any{&snap.Monsters, &snap.Dungeons, &snap.Strongholds, &snap.Depths, &snap.Slayer, &snap.SlayerMembers, &snap.SlayerExclusions}
	for i, c := range cols {
		if err := json.Unmarshal([]byte(c), targets[i]); err != nil {
			return nil, fmt.Errorf("history: decoding run %s: %w", id, err)
		}
	}
	return snap, nil
}

// Len returns the number of stored runs.
func (s *Store) Len() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("history: counting runs: %w", err)
	}
	return n, nil
}
