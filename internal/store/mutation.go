package store

import (
	"database/sql"
	"fmt"
)

// Mutation is one row of the structural log: a single applied intent
// with enough context to rebuild the graph on restore.
//
// ID is the content-addressed mutation hash, Seq the global apply
// sequence. Payload holds the intent's fields as canonical JSON so
// identical intents serialize identically across runs.
type Mutation struct {
	ID      string
	Seq     uint64
	Tick    uint64
	Kind    string
	Node    string
	Payload string
	Source  string
	Peer    string
	Clock   uint64
}

// rowScanner abstracts sql.Row and sql.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanMutation(row rowScanner) (Mutation, error) {
	var m Mutation
	err := row.Scan(&m.ID, &m.Seq, &m.Tick, &m.Kind, &m.Node, &m.Payload, &m.Source, &m.Peer, &m.Clock)
	if err == sql.ErrNoRows {
		return m, err
	}
	if err != nil {
		return m, fmt.Errorf("scan mutation: %w", err)
	}
	return m, nil
}
