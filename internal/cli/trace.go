package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loomshell/loom/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Node     string
	Kind     string
	Source   string
	Since    uint64
	Limit    int
}

// TraceRow is one structural log row in trace output.
type TraceRow struct {
	Seq     uint64 `json:"seq"`
	Tick    uint64 `json:"tick"`
	Kind    string `json:"kind"`
	Node    string `json:"node"`
	Source  string `json:"source"`
	Peer    string `json:"peer,omitempty"`
	Clock   uint64 `json:"clock,omitempty"`
	Payload string `json:"payload"`
	ID      string `json:"id"`
}

// TraceResult holds the filtered trace output.
type TraceResult struct {
	Rows  []TraceRow `json:"rows"`
	Total int        `json:"total"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "List structural log mutations",
		Long: `List structural log mutations in apply order.

Filters narrow the listing by node, mutation kind, producer source, or
sequence range. Remote-origin rows carry the peer id and logical clock
they arrived with.

Examples:
  loom trace --db ./loom.db
  loom trace --db ./loom.db --node 0190a5e2-... --kind set_node_name
  loom trace --db ./loom.db --source remote_peer --since 100 --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite structural log (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Node, "node", "", "filter to one node id")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "filter to one mutation kind")
	cmd.Flags().StringVar(&opts.Source, "source", "", "filter to one producer source")
	cmd.Flags().Uint64Var(&opts.Since, "since", 0, "only mutations with seq greater than this")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "cap on returned rows (0 = unlimited)")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open structural log", err)
	}
	defer st.Close()

	muts, err := st.ReadMutations(ctx, store.Filter{
		Node:     opts.Node,
		Kind:     opts.Kind,
		Source:   opts.Source,
		AfterSeq: opts.Since,
		Limit:    opts.Limit,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read mutations", err)
	}

	result := TraceResult{Rows: make([]TraceRow, 0, len(muts)), Total: len(muts)}
	for _, m := range muts {
		result.Rows = append(result.Rows, TraceRow{
			Seq:     m.Seq,
			Tick:    m.Tick,
			Kind:    m.Kind,
			Node:    m.Node,
			Source:  m.Source,
			Peer:    m.Peer,
			Clock:   m.Clock,
			Payload: m.Payload,
			ID:      m.ID,
		})
	}

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), result)
	}

	out := cmd.OutOrStdout()
	if len(result.Rows) == 0 {
		fmt.Fprintln(out, "No mutations match.")
		return nil
	}
	for _, r := range result.Rows {
		origin := r.Source
		if r.Peer != "" {
			origin = fmt.Sprintf("%s(%s@%d)", r.Source, r.Peer, r.Clock)
		}
		fmt.Fprintf(out, "%6d  t%-5d %-20s %-38s %s\n", r.Seq, r.Tick, r.Kind, r.Node, origin)
		if opts.Verbose {
			fmt.Fprintf(out, "        %s\n", r.Payload)
		}
	}
	fmt.Fprintf(out, "%d mutations\n", result.Total)
	return nil
}
