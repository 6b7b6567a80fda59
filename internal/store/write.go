package store

import (
	"context"
	"fmt"
)

// AppendMutation inserts one mutation record into the log.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - the id is
// content-addressed, so re-appending the same applied intent
// (crash recovery, restore replay) is silently ignored.
// Returns whether a new row was inserted.
func (s *Store) AppendMutation(ctx context.Context, m Mutation) (inserted bool, err error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO mutations
		(id, seq, tick, kind, node, payload, source, peer, clock)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		m.ID,
		m.Seq,
		m.Tick,
		m.Kind,
		m.Node,
		m.Payload,
		m.Source,
		m.Peer,
		m.Clock,
	)
	if err != nil {
		return false, fmt.Errorf("append mutation: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("append mutation: rows affected: %w", err)
	}

	return affected > 0, nil
}

// AppendBatch inserts a slice of mutations in a single transaction.
// Each insert keeps the per-row ON CONFLICT(id) DO NOTHING semantics,
// so a batch that overlaps already-logged mutations still succeeds.
func (s *Store) AppendBatch(ctx context.Context, batch []Mutation) error {
	if len(batch) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append batch: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO mutations
		(id, seq, tick, kind, node, payload, source, peer, clock)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("append batch: prepare: %w", err)
	}
	defer stmt.Close()

	for _, m := range batch {
		if _, err := stmt.ExecContext(ctx, m.ID, m.Seq, m.Tick, m.Kind, m.Node, m.Payload, m.Source, m.Peer, m.Clock); err != nil {
			return fmt.Errorf("append batch: insert %s: %w", m.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("append batch: commit: %w", err)
	}

	return nil
}
