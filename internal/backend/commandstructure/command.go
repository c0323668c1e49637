package commandstructure

import (
	"fmt"
	"sort"
	"sync"
)

// Command transforms encoded image bytes into new encoded image bytes.
type Command interface {
	Name() string
	Execute(imageData []byte) ([]byte, error)
}

// CommandFactory builds a command from its configuration parameters
type CommandFactory func(params map[string]any) (Command, error)

// CommandConfig names a registered command together with its parameters
type CommandConfig struct {
	Name   string         `yaml:"name"`
	Params map[string]any `yaml:",inline"`
}

// CommandRegistry maps command names to factories
type CommandRegistry struct {
	mu        sync.RWMutex
	factories map[string]CommandFactory
}

// NewCommandRegistry creates an empty registry
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		factories: make(map[string]CommandFactory),
	}
}

// Register adds a factory under name. Names are unique.
func (r *CommandRegistry) Register(name string, factory CommandFactory) error {
	if name == "" {
		return fmt.Errorf("command name cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("factory for command %s cannot be nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("command %s is already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// Create instantiates the named command
func (r *CommandRegistry) Create(name string, params map[string]any) (Command, error) {
	r.mu.RLock()
	factory, exists := r.factories[name]
	r.mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("unknown command: %s", name)
	}

	if params == nil {
		params = map[string]any{}
	}
	command, err := factory(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create command %s: %w", name, err)
	}
	return command, nil
}

// IsRegistered reports whether name has a factory
func (r *CommandRegistry) IsRegistered(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.factories[name]
	return exists
}

// RegisteredNames returns all registered names in sorted order
func (r *CommandRegistry) RegisteredNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry is populated by the init functions of the commands package
var DefaultRegistry = NewCommandRegistry()

// BuildCommands instantiates every config against the registry, preserving order
func (r *CommandRegistry) BuildCommands(configs []CommandConfig) ([]Command, error) {
	commands := make([]Command, 0, len(configs))
	for i, cfg := range configs {
		command, err := r.Create(cfg.Name, cfg.Params)
		if err != nil {
			return nil, fmt.Errorf("command at index %d: %w", i, err)
		}
		commands = append(commands, command)
	}
	return commands, nil
}
