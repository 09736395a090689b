package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"placesweep/internal/here"
	"placesweep/internal/logging"
)

// Record is one saved place: its id and the decoded JSON object,
// including the "scraped" timestamp added at insert time.
type Record struct {
	ID   string
	Data json.RawMessage
}

// Place decodes the record into the typed place view.
func (r Record) Place() (here.Place, error) {
	var p here.Place
	if err := json.Unmarshal(r.Data, &p); err != nil {
		return here.Place{}, fmt.Errorf("failed to decode place %s: %w", r.ID, err)
	}
	return p, nil
}

// Map decodes the record into a generic JSON object.
func (r Record) Map() (map[string]any, error) {
	m := make(map[string]any)
	dec := json.NewDecoder(bytes.NewReader(r.Data))
	dec.UseNumber()
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to decode place %s: %w", r.ID, err)
	}
	return m, nil
}

// InsertPlaces stores items, stamping each with "scraped" (unix seconds, null
// for the zero time). Items whose id is already stored are ignored. Returns
// how many items were new.
func (s *Store) InsertPlaces(ctx context.Context, items []json.RawMessage, scrapedAt time.Time) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	var scraped any
	if !scrapedAt.IsZero() {
		scraped = float64(scrapedAt.Unix()) + float64(scrapedAt.Nanosecond())/1e9
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO places (place_id, data, inserted_at) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	inserted := 0
	for _, raw := range items {
		obj := make(map[string]any)
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&obj); err != nil {
			logging.StoreWarn("Skipping undecodable item: %v", err)
			continue
		}
		id, _ := obj["id"].(string)
		if id == "" {
			logging.StoreWarn("Skipping item without id")
			continue
		}
		obj["scraped"] = scraped

		data, err := json.Marshal(obj)
		if err != nil {
			return 0, fmt.Errorf("failed to encode place %s: %w", id, err)
		}
		blob, err := compress(data)
		if err != nil {
			return 0, err
		}

		res, err := stmt.ExecContext(ctx, id, blob, now)
		if err != nil {
			return 0, fmt.Errorf("failed to insert place %s: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to read rows affected: %w", err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}

	logging.StoreDebug("Inserted %d/%d places", inserted, len(items))
	return inserted, nil
}

// Count returns the number of stored places.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM places`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count places: %w", err)
	}
	return n, nil
}

// Get returns the place with the given id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM places WHERE place_id = ?`, id).Scan(&blob)
	if isNoRows(err) {
		return Record{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Record{}, fmt.Errorf("failed to query place: %w", err)
	}
	data, err := decompress(blob)
	if err != nil {
		return Record{}, err
	}
	return Record{ID: id, Data: data}, nil
}

// List returns up to limit places ordered by rowid, starting at offset.
func (s *Store) List(ctx context.Context, limit, offset int) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT place_id, data FROM places ORDER BY rowid LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list places: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Each calls fn for every stored place in insertion order. Iteration stops at
// the first error returned by fn.
func (s *Store) Each(ctx context.Context, fn func(Record) error) error {
	rows, err := s.db.QueryContext(ctx, `SELECT place_id, data FROM places ORDER BY rowid`)
	if err != nil {
		return fmt.Errorf("failed to query places: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return rows.Err()
}

func scanRecord(rows *sql.Rows) (Record, error) {
	var id string
	var blob []byte
	if err := rows.Scan(&id, &blob); err != nil {
		return Record{}, fmt.Errorf("failed to scan place: %w", err)
	}
	data, err := decompress(blob)
	if err != nil {
		return Record{}, fmt.Errorf("place %s: %w", id, err)
	}
	return Record{ID: id, Data: data}, nil
}
