package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/relbridge/internal/extension"
)

// SaveCollection writes every declaration of coll. A declaration already
// stored under the same key is replaced in place and keeps its seq.
func (s *Store) SaveCollection(ctx context.Context, coll *extension.Collection) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save collection: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for _, d := range coll.All() {
		body, err := marshalDeclaration(d)
		if err != nil {
			return fmt.Errorf("save collection: %w", err)
		}
		k := d.Key()
		_, err = tx.ExecContext(ctx, `
			INSERT INTO declarations (namespace, name, signature, class, body)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(namespace, name, signature) DO UPDATE SET
				class = excluded.class,
				body = excluded.body
		`, k.Namespace, k.Name, k.Signature, d.Class.String(), body)
		if err != nil {
			return fmt.Errorf("save collection: %s: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save collection: %w", err)
	}
	return nil
}

// LoadCollection reads the declarations of the given namespaces, or of all
// namespaces when none are given, in the order they were first saved.
func (s *Store) LoadCollection(ctx context.Context, namespaces ...string) (*extension.Collection, error) {
	query := `SELECT body FROM declarations`
	args := make([]any, len(namespaces))
	if len(namespaces) > 0 {
		placeholders := make([]string, len(namespaces))
		for i, ns := range namespaces {
			placeholders[i] = "?"
			args[i] = ns
		}
		query += ` WHERE namespace IN (` + strings.Join(placeholders, ", ") + `)`
	}
	query += ` ORDER BY seq ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load collection: %w", err)
	}
	defer rows.Close()

	var decls []extension.Declaration
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("load collection: %w", err)
		}
		d, err := unmarshalDeclaration(body)
		if err != nil {
			return nil, fmt.Errorf("load collection: %w", err)
		}
		decls = append(decls, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load collection: %w", err)
	}

	coll, err := extension.NewCollection(decls...)
	if err != nil {
		return nil, fmt.Errorf("load collection: %w", err)
	}
	return coll, nil
}

// NamespaceSummary counts the stored declarations of one namespace.
type NamespaceSummary struct {
	Namespace string `json:"namespace"`
	Scalar    int    `json:"scalar"`
	Aggregate int    `json:"aggregate"`
	Window    int    `json:"window"`
}

// Namespaces summarizes the stored namespaces, sorted by name.
func (s *Store) Namespaces(ctx context.Context) ([]NamespaceSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT namespace,
			SUM(class = 'scalar'),
			SUM(class = 'aggregate'),
			SUM(class = 'window')
		FROM declarations
		GROUP BY namespace
		ORDER BY namespace ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list namespaces: %w", err)
	}
	defer rows.Close()

	var out []NamespaceSummary
	for rows.Next() {
		var ns NamespaceSummary
		if err := rows.Scan(&ns.Namespace, &ns.Scalar, &ns.Aggregate, &ns.Window); err != nil {
			return nil, fmt.Errorf("list namespaces: %w", err)
		}
		out = append(out, ns)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list namespaces: %w", err)
	}
	return out, nil
}

// DeleteNamespace removes every declaration of namespace and reports how
// many were removed.
func (s *Store) DeleteNamespace(ctx context.Context, namespace string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM declarations WHERE namespace = ?`, namespace)
	if err != nil {
		return 0, fmt.Errorf("delete namespace: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete namespace: %w", err)
	}
	return n, nil
}
