package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/loomshell/loom/internal/graph"
	"github.com/loomshell/loom/internal/intent"
)

// Scenario scripts one conformance run against the kernel.
type Scenario struct {
	// Name uniquely identifies the scenario; golden files key on it.
	Name string `yaml:"name"`

	// Description explains what the scenario validates.
	Description string `yaml:"description"`

	// Config overrides kernel policy constants for this run.
	Config ScenarioConfig `yaml:"config,omitempty"`

	// FailCreates scripts resource creation failures per node.
	FailCreates []FailCreate `yaml:"fail_creates,omitempty"`

	// Ticks lists the scripted input for each consumer tick, in order.
	// An empty entry runs a tick with no new input.
	Ticks []TickStep `yaml:"ticks"`

	// Assertions validate the settled model and trace after the last tick.
	Assertions []Assertion `yaml:"assertions"`
}

// ScenarioConfig overrides policy constants. Zero values keep the
// kernel defaults.
type ScenarioConfig struct {
	QueueCapacity  int `yaml:"queue_capacity,omitempty"`
	RetryThreshold int `yaml:"retry_threshold,omitempty"`
	ActiveLimit    int `yaml:"active_limit,omitempty"`
}

// FailCreate scripts the next Times creation attempts for Node to fail.
type FailCreate struct {
	Node  string `yaml:"node"`
	Times int    `yaml:"times"`
}

// TickStep is the scripted input for one tick.
type TickStep struct {
	// Local intents are captured synchronously, as user input would be.
	Local []IntentStep `yaml:"local,omitempty"`

	// Remote deltas are enqueued durably, as the peer-sync worker would.
	Remote []IntentStep `yaml:"remote,omitempty"`

	// Advisory intents are enqueued non-blockingly, as the pressure
	// monitor and prefetch scheduler would; a full queue drops them.
	Advisory []IntentStep `yaml:"advisory,omitempty"`
}

// IntentStep describes one scripted intent.
type IntentStep struct {
	Kind     string `yaml:"kind"`
	Node     string `yaml:"node,omitempty"`
	From     string `yaml:"from,omitempty"`
	To       string `yaml:"to,omitempty"`
	Name     string `yaml:"name,omitempty"`
	URL      string `yaml:"url,omitempty"`
	Tag      string `yaml:"tag,omitempty"`
	Entry    string `yaml:"entry,omitempty"`
	Edge     string `yaml:"edge,omitempty"`
	Resource string `yaml:"resource,omitempty"`

	// Peer and Clock stamp remote deltas.
	Peer  string `yaml:"peer,omitempty"`
	Clock uint64 `yaml:"clock,omitempty"`

	// Source overrides the default producer attribution.
	Source string `yaml:"source,omitempty"`

	// Repeat enqueues the step N times (default 1). Used to script
	// bursts against a bounded queue.
	Repeat int `yaml:"repeat,omitempty"`
}

// Assertion validates the settled run. Type selects which fields apply.
type Assertion struct {
	// Type is one of: tier, name, url, tags, placeholder, node_absent,
	// mappings, dropped, mutations, create_calls, live_resources,
	// event_count.
	Type string `yaml:"type"`

	Node  string   `yaml:"node,omitempty"`
	Tier  string   `yaml:"tier,omitempty"`
	Value string   `yaml:"value,omitempty"`
	Tags  []string `yaml:"tags,omitempty"`
	Event string   `yaml:"event,omitempty"`
	Count int      `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertTier          = "tier"
	AssertName          = "name"
	AssertURL           = "url"
	AssertTags          = "tags"
	AssertPlaceholder   = "placeholder"
	AssertNodeAbsent    = "node_absent"
	AssertMappings      = "mappings"
	AssertDropped       = "dropped"
	AssertMutations     = "mutations"
	AssertCreateCalls   = "create_calls"
	AssertLiveResources = "live_resources"
	AssertEventCount    = "event_count"
)

// LoadScenario reads and validates one scenario file.
func LoadScenario(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}

	var s Scenario
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return &s, nil
}

// LoadScenarioDir loads every *.yaml scenario in dir, sorted by name.
func LoadScenarioDir(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read scenario dir: %w", err)
	}

	var scenarios []*Scenario
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".yaml" {
			continue
		}
		s, err := LoadScenario(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}
	sort.Slice(scenarios, func(i, j int) bool { return scenarios[i].Name < scenarios[j].Name })
	return scenarios, nil
}

// Validate checks structural well-formedness before a run.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("scenario name is required")
	}
	if len(s.Ticks) == 0 {
		return fmt.Errorf("scenario needs at least one tick")
	}
	for ti, tick := range s.Ticks {
		for _, step := range tick.Local {
			if err := step.validate(false); err != nil {
				return fmt.Errorf("tick %d local: %w", ti, err)
			}
		}
		for _, step := range tick.Remote {
			if err := step.validate(true); err != nil {
				return fmt.Errorf("tick %d remote: %w", ti, err)
			}
		}
		for _, step := range tick.Advisory {
			if err := step.validate(false); err != nil {
				return fmt.Errorf("tick %d advisory: %w", ti, err)
			}
		}
	}
	for ai, a := range s.Assertions {
		if a.Type == "" {
			return fmt.Errorf("assertion %d: type is required", ai)
		}
	}
	return nil
}

func (st IntentStep) validate(remote bool) error {
	if intent.KindFromString(st.Kind) == 0 {
		return fmt.Errorf("unknown intent kind %q", st.Kind)
	}
	if remote && st.Clock == 0 {
		return fmt.Errorf("remote %s needs a logical clock", st.Kind)
	}
	if remote && st.Peer == "" {
		return fmt.Errorf("remote %s needs a peer id", st.Kind)
	}
	return nil
}

// build converts the step into a kernel intent.
func (st IntentStep) build(remote bool) intent.Intent {
	in := intent.Intent{
		Kind:     intent.KindFromString(st.Kind),
		Node:     graph.NodeID(st.Node),
		From:     graph.NodeID(st.From),
		To:       graph.NodeID(st.To),
		Name:     st.Name,
		URL:      st.URL,
		Tag:      st.Tag,
		Entry:    st.Entry,
		EdgeType: graph.EdgeTypeFromString(st.Edge),
		Resource: graph.ResourceID(st.Resource),
	}
	if remote {
		in.Remote = &intent.RemoteMeta{Peer: st.Peer, Clock: st.Clock}
	}
	return in
}

// source resolves the producer attribution for the step.
func (st IntentStep) source(fallback intent.Source) intent.Source {
	switch st.Source {
	case "local_input":
		return intent.SourceLocalInput
	case "engine_callback":
		return intent.SourceEngineCallback
	case "memory_monitor":
		return intent.SourceMemoryMonitor
	case "plugin_loader":
		return intent.SourcePluginLoader
	case "prefetch":
		return intent.SourcePrefetch
	case "remote_peer":
		return intent.SourceRemotePeer
	default:
		return fallback
	}
}
