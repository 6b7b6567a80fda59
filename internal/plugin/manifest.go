// Package plugin parses plugin manifests and resolves their activation
// order. A manifest is a YAML file validated against an embedded CUE
// schema; activation order is a deterministic topological sort of the
// declared requires edges.
package plugin

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueyaml "cuelang.org/go/encoding/yaml"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// Manifest describes one plugin.
type Manifest struct {
	Name        string   `yaml:"name"`
	Version     string   `yaml:"version"`
	Requires    []string `yaml:"requires"`
	Entry       string   `yaml:"entry"`
	Description string   `yaml:"description"`

	// Path is the manifest file the plugin was loaded from.
	Path string `yaml:"-"`
}

// LoadError is a manifest that could not be activated, with the reason
// reported in diagnostics and the durable log.
type LoadError struct {
	Name   string
	Path   string
	Reason string
}

func (e LoadError) Error() string {
	name := e.Name
	if name == "" {
		name = e.Path
	}
	return fmt.Sprintf("plugin %s: %s", name, e.Reason)
}

// ParseManifest validates and unmarshals one manifest file's contents.
func ParseManifest(raw []byte) (Manifest, error) {
	if err := validateManifest(raw); err != nil {
		return Manifest{}, err
	}
	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return Manifest{}, fmt.Errorf("unmarshal: %w", err)
	}
	return m, nil
}

// validateManifest unifies raw YAML against the embedded #Manifest schema.
func validateManifest(raw []byte) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Manifest"))

	file, err := cueyaml.Extract("manifest.yaml", raw)
	if err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	doc := ctx.BuildFile(file)
	if err := doc.Err(); err != nil {
		return fmt.Errorf("parse: %w", err)
	}

	if err := def.Unify(doc).Validate(cue.Concrete(false)); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	return nil
}

// IsManifestFile reports whether a directory entry looks like a plugin
// manifest. The loader ignores everything else in the directory.
func IsManifestFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

// ScanDir parses every manifest file in dir. Files that fail to parse
// or validate become load errors; the rest are returned sorted by name
// so the result is independent of directory iteration order. Duplicate
// plugin names keep the lexically first path and fail the rest.
func ScanDir(dir string) ([]Manifest, []LoadError) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, []LoadError{{Path: dir, Reason: fmt.Sprintf("read dir: %v", err)}}
	}

	var (
		manifests []Manifest
		failures  []LoadError
		paths     []string
	)
	for _, entry := range entries {
		if entry.IsDir() || !IsManifestFile(entry.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(paths)

	seen := make(map[string]string)
	for _, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			failures = append(failures, LoadError{Path: path, Reason: fmt.Sprintf("read: %v", err)})
			continue
		}
		m, err := ParseManifest(raw)
		if err != nil {
			failures = append(failures, LoadError{Path: path, Reason: err.Error()})
			continue
		}
		if prev, dup := seen[m.Name]; dup {
			failures = append(failures, LoadError{
				Name:   m.Name,
				Path:   path,
				Reason: fmt.Sprintf("duplicate of %s", prev),
			})
			continue
		}
		seen[m.Name] = path
		m.Path = path
		manifests = append(manifests, m)
	}

	sort.Slice(manifests, func(i, j int) bool { return manifests[i].Name < manifests[j].Name })
	return manifests, failures
}
