package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TaskSpec is one entry of a hook-kind's task mapping: a task's enablement,
// its registry key ("module.function" in the source's terms — here just the
// registry key a task subpackage registers itself under), and its
// task-specific config blob.
type TaskSpec struct {
	Name     string
	Enabled  bool
	Module   string
	Function string
	Config   map[string]any
}

// HooksConfig is the full hooks-config document: for each hook kind, an
// ordered list of task specs. Order is read directly off the YAML mapping
// node rather than through Go's unordered map[string]T, because the
// response merger's later-task-wins tiebreak (§4.2) depends on it.
type HooksConfig struct {
	byKind map[string][]TaskSpec
}

// TasksFor returns the ordered task specs configured for hookKind, or nil if
// the kind has no entry at all.
func (h *HooksConfig) TasksFor(hookKind string) ([]TaskSpec, bool) {
	tasks, ok := h.byKind[hookKind]
	return tasks, ok
}

// LoadHooksConfig reads a hooks-config YAML document, preserving the
// declared order of task names within each hook kind.
func LoadHooksConfig(path string) (*HooksConfig, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &HooksConfig{byKind: map[string][]TaskSpec{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: reading hooks config %s: %w", path, err)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("config: parsing hooks config %s: %w", path, err)
	}
	if len(root.Content) == 0 {
		return &HooksConfig{byKind: map[string][]TaskSpec{}}, nil
	}

	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("config: hooks config %s must be a mapping at the top level", path)
	}

	hc := &HooksConfig{byKind: map[string][]TaskSpec{}}
	for i := 0; i < len(doc.Content); i += 2 {
		kindNode := doc.Content[i]
		tasksNode := doc.Content[i+1]
		if tasksNode.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("config: hooks config %s.%s must be a mapping of task name to task spec", path, kindNode.Value)
		}

		var tasks []TaskSpec
		for j := 0; j < len(tasksNode.Content); j += 2 {
			nameNode := tasksNode.Content[j]
			specNode := tasksNode.Content[j+1]

			var spec struct {
				Enabled  bool           `yaml:"enabled"`
				Module   string         `yaml:"module"`
				Function string         `yaml:"function"`
				Config   map[string]any `yaml:"config"`
			}
			if err := specNode.Decode(&spec); err != nil {
				return nil, fmt.Errorf("config: hooks config %s.%s.%s: %w", path, kindNode.Value, nameNode.Value, err)
			}
			tasks = append(tasks, TaskSpec{
				Name: nameNode.Value, Enabled: spec.Enabled, Module: spec.Module,
				Function: spec.Function, Config: spec.Config,
			})
		}
		hc.byKind[kindNode.Value] = tasks
	}
	return hc, nil
}
