package cli

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loomshell/loom/internal/engine"
	"github.com/loomshell/loom/internal/graph"
	"github.com/loomshell/loom/internal/intent"
	"github.com/loomshell/loom/internal/store"
)

// seedLog writes a small structural log through a real reducer and
// returns the database path.
func seedLog(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "loom.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()

	model := graph.NewModel()
	reducer := engine.NewReducer(model, st, engine.NewClock(), "self", nil)

	batch := []intent.Queued{
		{Intent: intent.Intent{Kind: intent.KindCreateNode, Node: "node-a", Name: "Alpha", URL: "https://a.example"}, Seq: 1, Source: intent.SourceLocalInput},
		{Intent: intent.Intent{Kind: intent.KindCreateNode, Node: "node-b", Name: "Beta", URL: "https://b.example"}, Seq: 2, Source: intent.SourceLocalInput},
		{Intent: intent.Intent{Kind: intent.KindCreateEdge, From: "node-a", To: "node-b", EdgeType: graph.EdgeHyperlink}, Seq: 3, Source: intent.SourceLocalInput},
		{Intent: intent.Intent{Kind: intent.KindTagNode, Node: "node-a", Tag: "work"}, Seq: 4, Source: intent.SourceLocalInput},
		{Intent: intent.Intent{Kind: intent.KindSetNodeName, Node: "node-b", Name: "Beta Renamed", Remote: &intent.RemoteMeta{Peer: "peer-2", Clock: 7}}, Seq: 5, Source: intent.SourceRemotePeer},
	}
	reducer.Apply(context.Background(), batch, 0)

	return path
}

// seedEmptyLog creates a schema-initialized database with no mutations.
func seedEmptyLog(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "loom.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	require.NoError(t, st.Close())
	return path
}
