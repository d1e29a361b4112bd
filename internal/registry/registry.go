// Package registry implements the task registry called for by SPEC_FULL.md
// §9: the source dispatches tasks by reflectively importing a Python module
// and calling a named function; this is the explicit, build-time substitute
// — a stable string key mapped to a Task implementation.
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/victorarias/policy-hook-runner/internal/config"
	"github.com/victorarias/policy-hook-runner/internal/event"
)

// Task is the interface every registered decision-producing unit
// implements.
type Task interface {
	Run(ctx context.Context, evt *event.Event, global *config.GlobalConfig, taskConfig map[string]any) (*event.TaskResponse, error)
}

// TaskFunc adapts a plain function to the Task interface.
type TaskFunc func(ctx context.Context, evt *event.Event, global *config.GlobalConfig, taskConfig map[string]any) (*event.TaskResponse, error)

// Run calls f.
func (f TaskFunc) Run(ctx context.Context, evt *event.Event, global *config.GlobalConfig, taskConfig map[string]any) (*event.TaskResponse, error) {
	return f(ctx, evt, global, taskConfig)
}

var (
	mu    sync.RWMutex
	tasks = map[string]Task{}
)

// Register adds t under key, intended to be called from a task subpackage's
// init(). A second registration under the same key replaces the first.
func Register(key string, t Task) {
	mu.Lock()
	defer mu.Unlock()
	tasks[key] = t
}

// ErrNotRegistered is returned by Lookup (and surfaced by the dispatcher as
// a systemMessage) when a hooks-config entry names a module/function that
// no task subpackage registered.
var ErrNotRegistered = fmt.Errorf("registry: task not registered")

// Lookup resolves key (conventionally "module.function") to a Task.
func Lookup(key string) (Task, error) {
	mu.RLock()
	defer mu.RUnlock()
	t, ok := tasks[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, key)
	}
	return t, nil
}

// Key builds the stable registry key a hooks-config task spec's
// module+function pair resolves to.
func Key(module, function string) string {
	return module + "." + function
}
