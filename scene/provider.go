package scene

import (
	"fmt"
	"strings"
	"sync"
)

// Provider supplies decoded scenes and the tables shared across scenes.
type Provider interface {
	// Scene returns the program for name, or an error wrapping
	// ErrSceneNotFound.
	Scene(name string) (*Program, error)

	// IncludedCommand returns the shared user command with the given id.
	IncludedCommand(id int32) (IncludedCommand, bool)

	// IncludedCommandCount returns the number of shared user commands. User
	// command ids below this count are shared; the rest are scene-local.
	IncludedCommandCount() int

	// IncludedCommandByName looks a shared user command up by name.
	IncludedCommandByName(name string) (int32, bool)

	// IncludedProps returns the schema of the shared user properties.
	IncludedProps() []PropDecl
}

// MapProvider is an in-memory Provider. It is safe for concurrent use.
type MapProvider struct {
	mu          sync.RWMutex
	scenes      map[string]*Program
	incCommands []IncludedCommand
	incProps    []PropDecl
}

// NewMapProvider creates a provider holding the given programs.
func NewMapProvider(programs ...*Program) *MapProvider {
	p := &MapProvider{scenes: make(map[string]*Program)}
	for _, prog := range programs {
		p.scenes[strings.ToLower(prog.Name)] = prog
	}
	return p
}

// Add registers or replaces a program.
func (p *MapProvider) Add(prog *Program) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scenes[strings.ToLower(prog.Name)] = prog
}

// SetIncludedCommands replaces the shared command table.
func (p *MapProvider) SetIncludedCommands(cmds []IncludedCommand) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.incCommands = append([]IncludedCommand(nil), cmds...)
}

// SetIncludedProps replaces the shared property schema.
func (p *MapProvider) SetIncludedProps(props []PropDecl) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.incProps = append([]PropDecl(nil), props...)
}

// Names returns the registered scene names.
func (p *MapProvider) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.scenes))
	for _, prog := range p.scenes {
		names = append(names, prog.Name)
	}
	return names
}

func (p *MapProvider) Scene(name string) (*Program, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	prog, ok := p.scenes[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSceneNotFound, name)
	}
	return prog, nil
}

func (p *MapProvider) IncludedCommand(id int32) (IncludedCommand, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if id < 0 || int(id) >= len(p.incCommands) {
		return IncludedCommand{}, false
	}
	return p.incCommands[id], true
}

func (p *MapProvider) IncludedCommandCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.incCommands)
}

func (p *MapProvider) IncludedCommandByName(name string) (int32, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for i, c := range p.incCommands {
		if c.Name == name {
			return int32(i), true
		}
	}
	return 0, false
}

func (p *MapProvider) IncludedProps() []PropDecl {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.incProps
}
