package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/lyricflow/internal/lyrics"
)

// Put replaces the stored frequency table for dataset.
func (s *SQLiteStore) Put(ctx context.Context, dataset string, freq lyrics.Frequency) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO datasets (name, total_words, unique_words, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(name) DO UPDATE SET
			total_words = excluded.total_words,
			unique_words = excluded.unique_words,
			updated_at = CURRENT_TIMESTAMP
	`, dataset, freq.Total(), len(freq))
	if err != nil {
		return fmt.Errorf("failed to upsert dataset %q: %w", dataset, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM word_counts WHERE dataset = ?`, dataset); err != nil {
		return fmt.Errorf("failed to clear word counts for %q: %w", dataset, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO word_counts (dataset, word, count) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for word, count := range freq {
		if _, err := stmt.ExecContext(ctx, dataset, word, count); err != nil {
			return fmt.Errorf("failed to insert %q for %q: %w", word, dataset, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Get loads the frequency table for dataset. Returns a wrapped
// lyrics.ErrNotFound if the dataset was never stored.
func (s *SQLiteStore) Get(ctx context.Context, dataset string) (lyrics.Frequency, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var unique int
	err := s.db.QueryRowContext(ctx, `SELECT unique_words FROM datasets WHERE name = ?`, dataset).Scan(&unique)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", lyrics.ErrNotFound, dataset)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query dataset %q: %w", dataset, err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT word, count FROM word_counts WHERE dataset = ?`, dataset)
	if err != nil {
		return nil, fmt.Errorf("failed to query word counts for %q: %w", dataset, err)
	}
	defer rows.Close()

	freq := make(lyrics.Frequency, unique)
	for rows.Next() {
		var word string
		var count int
		if err := rows.Scan(&word, &count); err != nil {
			return nil, fmt.Errorf("failed to scan word count: %w", err)
		}
		freq[word] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating word counts: %w", err)
	}
	return freq, nil
}

// Datasets returns the stored dataset names, sorted.
func (s *SQLiteStore) Datasets(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM datasets ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query datasets: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan dataset: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
