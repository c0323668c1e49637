package commandstructure

import (
	"fmt"
	"log/slog"
	"time"
)

// CommandInvoker runs a fixed chain of commands, feeding each output into the next
type CommandInvoker struct {
	commands []Command
}

func NewCommandInvoker(commands []Command) *CommandInvoker {
	return &CommandInvoker{commands: commands}
}

// NewCommandInvokerFromConfig builds the chain from DefaultRegistry
func NewCommandInvokerFromConfig(configs []CommandConfig) (*CommandInvoker, error) {
	commands, err := DefaultRegistry.BuildCommands(configs)
	if err != nil {
		return nil, err
	}
	return NewCommandInvoker(commands), nil
}

// Names lists the chain in execution order
func (i *CommandInvoker) Names() []string {
	names := make([]string, len(i.commands))
	for idx, command := range i.commands {
		names[idx] = command.Name()
	}
	return names
}

// Execute applies the chain. An empty chain returns the input unchanged.
func (i *CommandInvoker) Execute(imageData []byte) ([]byte, error) {
	if len(i.commands) == 0 {
		return imageData, nil
	}

	start := time.Now()
	current := imageData
	for idx, command := range i.commands {
		stepStart := time.Now()
		out, err := command.Execute(current)
		if err != nil {
			slog.Debug("image command failed",
				"index", idx,
				"command_name", command.Name(),
				"input_size_bytes", len(current),
				"error", err)
			return nil, fmt.Errorf("command %s (index %d) failed: %w", command.Name(), idx, err)
		}
		slog.Debug("image command completed",
			"index", idx,
			"command_name", command.Name(),
			"duration_ms", time.Since(stepStart).Milliseconds(),
			"input_size_bytes", len(current),
			"output_size_bytes", len(out))
		current = out
	}

	slog.Debug("image command chain completed",
		"command_count", len(i.commands),
		"total_duration_ms", time.Since(start).Milliseconds(),
		"final_size_bytes", len(current))
	return current, nil
}
