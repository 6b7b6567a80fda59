package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// goldenScenarios lists the scenarios pinned by golden snapshots.
// advisory_overflow is excluded: 236 drop events would bloat its golden
// without pinning anything the counter assertions don't already cover.
var goldenScenarios = []string{
	"promote_then_remote_rename",
	"retry_exhaustion",
	"delete_edit_conflict",
}

func TestScenarioGoldens(t *testing.T) {
	for _, name := range goldenScenarios {
		t.Run(name, func(t *testing.T) {
			s, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
			require.NoError(t, err)

			result := RunWithGolden(t, s)
			require.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}
