package store

import (
	"context"
	"fmt"
	"strings"
)

// Filter narrows log reads. Zero-valued fields are ignored.
type Filter struct {
	Node     string // only mutations targeting this node id
	Kind     string // only mutations of this kind
	Source   string // only mutations from this producer
	AfterSeq uint64 // only mutations with seq > AfterSeq
	Limit    int    // cap on returned rows, 0 = unlimited
}

const selectMutations = `
	SELECT id, seq, tick, kind, node, payload, source, peer, clock
	FROM mutations
`

// ReadMutations returns log rows matching the filter in apply order
// (seq ASC, id ASC as a total-order tiebreak).
func (s *Store) ReadMutations(ctx context.Context, f Filter) ([]Mutation, error) {
	query, args := buildQuery(f)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("read mutations: %w", err)
	}
	defer rows.Close()

	muts := []Mutation{}
	for rows.Next() {
		m, err := scanMutation(rows)
		if err != nil {
			return nil, err
		}
		muts = append(muts, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mutations: %w", err)
	}

	return muts, nil
}

// NodeTrace returns the full mutation history of one node, oldest first.
func (s *Store) NodeTrace(ctx context.Context, nodeID string) ([]Mutation, error) {
	return s.ReadMutations(ctx, Filter{Node: nodeID})
}

// LastSeq returns the highest apply sequence in the log.
// Used on restore to resume the sequence counter.
func (s *Store) LastSeq(ctx context.Context) (uint64, error) {
	var seq uint64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM mutations
	`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("get last seq: %w", err)
	}
	return seq, nil
}

// LastClock returns the highest remote logical clock in the log.
// Used on restore to seed the local clock past everything observed.
func (s *Store) LastClock(ctx context.Context) (uint64, error) {
	var clock uint64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(clock), 0) FROM mutations
	`).Scan(&clock)
	if err != nil {
		return 0, fmt.Errorf("get last clock: %w", err)
	}
	return clock, nil
}

// MutationCount returns the number of rows in the log.
func (s *Store) MutationCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM mutations`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count mutations: %w", err)
	}
	return n, nil
}

// buildQuery renders a Filter into SQL with positional args.
func buildQuery(f Filter) (string, []any) {
	var (
		where []string
		args  []any
	)

	if f.Node != "" {
		where = append(where, "node = ?")
		args = append(args, f.Node)
	}
	if f.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, f.Kind)
	}
	if f.Source != "" {
		where = append(where, "source = ?")
		args = append(args, f.Source)
	}
	if f.AfterSeq > 0 {
		where = append(where, "seq > ?")
		args = append(args, f.AfterSeq)
	}

	var b strings.Builder
	b.WriteString(selectMutations)
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY seq ASC, id COLLATE BINARY ASC")
	if f.Limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, f.Limit)
	}

	return b.String(), args
}
