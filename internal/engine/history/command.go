package history

import "fmt"

// Command represents an undoable unit of work with a forward and an inverse
// action. The engine does not interpret a command's contents; concrete
// commands live next to the stores they mutate.
type Command interface {
	// Execute performs the command and returns an error if it fails.
	Execute() error

	// Undo reverses the command and returns an error if it fails.
	Undo() error

	// Description returns a human-readable description of the command.
	Description() string
}

// Group runs an ordered list of commands as a single undo/redo unit:
// Execute replays the list forward, Undo replays it backward.
type Group struct {
	Name     string
	Commands []Command
}

// NewGroup creates a group from the given commands.
func NewGroup(name string, commands ...Command) *Group {
	return &Group{Name: name, Commands: commands}
}

// Execute runs all commands in order.
func (g *Group) Execute() error {
	for i, cmd := range g.Commands {
		if err := cmd.Execute(); err != nil {
			return fmt.Errorf("group %q step %d: %w", g.Name, i, err)
		}
	}
	return nil
}

// Undo reverses all commands in reverse order.
func (g *Group) Undo() error {
	for i := len(g.Commands) - 1; i >= 0; i-- {
		if err := g.Commands[i].Undo(); err != nil {
			return fmt.Errorf("undo group %q step %d: %w", g.Name, i, err)
		}
	}
	return nil
}

// Description returns the group's name.
func (g *Group) Description() string {
	if g.Name != "" {
		return g.Name
	}
	if len(g.Commands) == 1 {
		return g.Commands[0].Description()
	}
	return fmt.Sprintf("%d operations", len(g.Commands))
}

// Add appends a command to the group.
func (g *Group) Add(cmd Command) {
	g.Commands = append(g.Commands, cmd)
}

// IsEmpty returns true if the group has no commands.
func (g *Group) IsEmpty() bool {
	return len(g.Commands) == 0
}
