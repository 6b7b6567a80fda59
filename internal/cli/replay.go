package cli

import (
	"context"
	"fmt"
	"reflect"
	"sort"

	"github.com/spf13/cobra"

	"github.com/loomshell/loom/internal/engine"
	"github.com/loomshell/loom/internal/graph"
	"github.com/loomshell/loom/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
}

// ReplayNode is the settled view of one node after replay.
type ReplayNode struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	URL         string   `json:"url"`
	Tags        []string `json:"tags,omitempty"`
	History     int      `json:"history"`
	Placeholder bool     `json:"placeholder,omitempty"`
}

// ReplayEdge is one settled edge after replay.
type ReplayEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
	Type string `json:"type"`
}

// ReplayResult holds the settled model rebuilt from the structural log.
type ReplayResult struct {
	Mutations     int          `json:"mutations"`
	LastSeq       uint64       `json:"last_seq"`
	LastClock     uint64       `json:"last_clock"`
	Nodes         []ReplayNode `json:"nodes"`
	Edges         []ReplayEdge `json:"edges"`
	Deterministic bool         `json:"deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Rebuild the model from the structural log",
		Long: `Rebuild the graph from the structural log and print the settled model.

The log replays twice into independent models; a mismatch between the
two means replay is non-deterministic and exits with status 1.

Exit codes:
  0 - Replay succeeded and is deterministic
  1 - Replay produced diverging models
  2 - Command error (database not found, etc.)

Examples:
  loom replay --db ./loom.db
  loom replay --db ./loom.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite structural log (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open structural log", err)
	}
	defer st.Close()

	first, err := replayOnce(ctx, st)
	if err != nil {
		return WrapExitError(ExitCommandError, "replay failed", err)
	}
	second, err := replayOnce(ctx, st)
	if err != nil {
		return WrapExitError(ExitCommandError, "replay failed", err)
	}

	first.Deterministic = reflect.DeepEqual(first.Nodes, second.Nodes) &&
		reflect.DeepEqual(first.Edges, second.Edges)

	count, err := st.MutationCount(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to count mutations", err)
	}
	first.Mutations = count

	if opts.Format == "json" {
		if err := writeJSON(cmd.OutOrStdout(), first); err != nil {
			return err
		}
	} else {
		printReplayText(cmd, first)
	}

	if !first.Deterministic {
		return NewExitError(ExitFailure, "replay diverged between runs")
	}
	return nil
}

// replayOnce rebuilds a fresh model from the log and summarizes it.
func replayOnce(ctx context.Context, st *store.Store) (ReplayResult, error) {
	model := graph.NewModel()
	reducer := engine.NewReducer(model, nil, engine.NewClock(), "", nil)
	if err := reducer.Restore(ctx, st); err != nil {
		return ReplayResult{}, err
	}

	result := ReplayResult{
		LastSeq: reducer.ApplySeq(),
	}

	clock, err := st.LastClock(ctx)
	if err != nil {
		return ReplayResult{}, err
	}
	result.LastClock = clock

	g := model.Graph
	for _, h := range g.Handles() {
		n, ok := g.Node(h)
		if !ok {
			continue
		}
		result.Nodes = append(result.Nodes, ReplayNode{
			ID:          string(n.ID),
			Name:        n.Name,
			URL:         n.URL,
			Tags:        n.SortedTags(),
			History:     len(n.History),
			Placeholder: n.Placeholder,
		})
	}
	sort.Slice(result.Nodes, func(i, j int) bool { return result.Nodes[i].ID < result.Nodes[j].ID })

	for _, e := range g.Edges() {
		from, ok := g.Node(e.From)
		if !ok {
			continue
		}
		to, ok := g.Node(e.To)
		if !ok {
			continue
		}
		result.Edges = append(result.Edges, ReplayEdge{
			From: string(from.ID),
			To:   string(to.ID),
			Type: e.Type.String(),
		})
	}
	sort.Slice(result.Edges, func(i, j int) bool {
		if result.Edges[i].From != result.Edges[j].From {
			return result.Edges[i].From < result.Edges[j].From
		}
		if result.Edges[i].To != result.Edges[j].To {
			return result.Edges[i].To < result.Edges[j].To
		}
		return result.Edges[i].Type < result.Edges[j].Type
	})

	return result, nil
}

func printReplayText(cmd *cobra.Command, r ReplayResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Mutations: %d (last seq %d, last clock %d)\n", r.Mutations, r.LastSeq, r.LastClock)
	fmt.Fprintf(out, "Nodes: %d\n", len(r.Nodes))
	for _, n := range r.Nodes {
		marker := ""
		if n.Placeholder {
			marker = " [placeholder]"
		}
		fmt.Fprintf(out, "  %s  %q  %s%s\n", n.ID, n.Name, n.URL, marker)
		if len(n.Tags) > 0 {
			fmt.Fprintf(out, "    tags: %v\n", n.Tags)
		}
	}
	fmt.Fprintf(out, "Edges: %d\n", len(r.Edges))
	for _, e := range r.Edges {
		fmt.Fprintf(out, "  %s -> %s (%s)\n", e.From, e.To, e.Type)
	}
	if r.Deterministic {
		fmt.Fprintln(out, "Replay: deterministic")
	} else {
		fmt.Fprintln(out, "Replay: DIVERGED")
	}
}
