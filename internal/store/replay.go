package store

import (
	"context"
	"fmt"
)

// Replay streams every mutation in apply order (seq ASC, id ASC) to fn.
// Returning an error from fn stops the stream and propagates the error.
//
// This is the restore path: replaying the structural log against an
// empty graph rebuilds the durable state exactly. Lifecycle state is
// not logged, so restored nodes start Cold.
func (s *Store) Replay(ctx context.Context, fn func(Mutation) error) error {
	rows, err := s.db.QueryContext(ctx, selectMutations+` ORDER BY seq ASC, id COLLATE BINARY ASC`)
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		m, err := scanMutation(rows)
		if err != nil {
			return err
		}
		if err := fn(m); err != nil {
			return fmt.Errorf("replay %s: %w", m.ID, err)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("replay: iterate: %w", err)
	}

	return nil
}
