package store

import (
	"context"
	"fmt"
)

// RoundTrip is the outcome of converting a plan to an expression tree and
// back.
type RoundTrip struct {
	Seq         int64  `json:"seq"`
	ID          string `json:"id"`
	Name        string `json:"name"`
	Fingerprint string `json:"fingerprint"`
	OK          bool   `json:"ok"`
	Diff        string `json:"diff,omitempty"`
	Error       string `json:"error,omitempty"`
}

// RecordRoundTrip appends rt and returns its seq. Recording an ID twice is
// an error.
func (s *Store) RecordRoundTrip(ctx context.Context, rt RoundTrip) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO roundtrips (id, name, fingerprint, ok, diff, error)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rt.ID, rt.Name, rt.Fingerprint, rt.OK, rt.Diff, rt.Error)
	if err != nil {
		return 0, fmt.Errorf("record round trip %s: %w", rt.ID, err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("record round trip %s: %w", rt.ID, err)
	}
	return seq, nil
}

// RoundTrips lists recorded round trips oldest first. A non-empty
// fingerprint restricts the list to that plan.
func (s *Store) RoundTrips(ctx context.Context, fingerprint string) ([]RoundTrip, error) {
	query := `SELECT seq, id, name, fingerprint, ok, diff, error FROM roundtrips`
	var args []any
	if fingerprint != "" {
		query += ` WHERE fingerprint = ?`
		args = append(args, fingerprint)
	}
	query += ` ORDER BY seq ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list round trips: %w", err)
	}
	defer rows.Close()

	var out []RoundTrip
	for rows.Next() {
		var rt RoundTrip
		if err := rows.Scan(&rt.Seq, &rt.ID, &rt.Name, &rt.Fingerprint, &rt.OK, &rt.Diff, &rt.Error); err != nil {
			return nil, fmt.Errorf("list round trips: %w", err)
		}
		out = append(out, rt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list round trips: %w", err)
	}
	return out, nil
}
