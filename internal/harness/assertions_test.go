package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// assertionScenario builds a settled run with one tagged, promoted node
// and one plain node to assert against.
func assertionScenario() *Scenario {
	return &Scenario{
		Name: "assertion_fixture",
		Ticks: []TickStep{
			{Local: []IntentStep{
				{Kind: "create_node", Node: "node-a", Name: "Alpha", URL: "https://a.example"},
				{Kind: "create_node", Node: "node-b", Name: "Beta", URL: "https://b.example"},
				{Kind: "tag_node", Node: "node-a", Tag: "work"},
				{Kind: "tag_node", Node: "node-a", Tag: "pinned"},
				{Kind: "promote", Node: "node-a"},
			}},
		},
	}
}

func TestAssertionsPassing(t *testing.T) {
	s := assertionScenario()
	s.Assertions = []Assertion{
		{Type: AssertTier, Node: "node-a", Tier: "active"},
		{Type: AssertTier, Node: "node-b", Tier: "cold"},
		{Type: AssertName, Node: "node-b", Value: "Beta"},
		{Type: AssertURL, Node: "node-a", Value: "https://a.example"},
		{Type: AssertTags, Node: "node-a", Tags: []string{"pinned", "work"}},
		{Type: AssertTags, Node: "node-b"},
		{Type: AssertPlaceholder, Node: "node-a", Value: "false"},
		{Type: AssertNodeAbsent, Node: "node-c"},
		{Type: AssertMappings, Count: 1},
		{Type: AssertDropped, Count: 0},
		{Type: AssertMutations, Count: 4},
		{Type: AssertCreateCalls, Count: 1},
		{Type: AssertLiveResources, Count: 1},
		{Type: AssertEventCount, Event: "resource_created", Count: 1},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestAssertionsFailing(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		wantErr   string
	}{
		{"wrong tier", Assertion{Type: AssertTier, Node: "node-b", Tier: "active"}, "tier"},
		{"wrong name", Assertion{Type: AssertName, Node: "node-a", Value: "Nope"}, "name"},
		{"wrong url", Assertion{Type: AssertURL, Node: "node-a", Value: "https://x"}, "url"},
		{"wrong tags", Assertion{Type: AssertTags, Node: "node-a", Tags: []string{"other"}}, "tags"},
		{"missing node", Assertion{Type: AssertName, Node: "node-z", Value: "x"}, "does not exist"},
		{"node not absent", Assertion{Type: AssertNodeAbsent, Node: "node-a"}, "still exists"},
		{"wrong mappings", Assertion{Type: AssertMappings, Count: 9}, "mappings"},
		{"wrong mutation count", Assertion{Type: AssertMutations, Count: 0}, "mutations"},
		{"wrong event count", Assertion{Type: AssertEventCount, Event: "forced_demotion", Count: 2}, "event_count"},
		{"unknown type", Assertion{Type: "telepathy"}, "unknown assertion type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := assertionScenario()
			s.Assertions = []Assertion{tt.assertion}

			result, err := Run(s)
			require.NoError(t, err)
			assert.False(t, result.Pass)
			require.NotEmpty(t, result.Errors)
			assert.Contains(t, result.Errors[0], tt.wantErr)
		})
	}
}
