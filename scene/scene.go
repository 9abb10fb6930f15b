// Package scene is the registry of behaviours the render and physics systems
// drive each frame or tick.
package scene

import (
	"sync"
	"time"
)

// Behaviour is per-object game logic.
type Behaviour interface {
	// Start runs once, on the render loop's first frame.
	Start()
	// Update runs every render frame with the frame-to-frame time.
	Update(dt time.Duration)
	// LateUpdate runs every render frame after every Update has finished.
	LateUpdate(dt time.Duration)
	// FixedUpdate runs every physics tick with the tick duration.
	FixedUpdate(dt time.Duration)
}

// Funcs adapts plain funcs to a Behaviour. Nil fields are no-ops.
type Funcs struct {
	OnStart       func()
	OnUpdate      func(dt time.Duration)
	OnLateUpdate  func(dt time.Duration)
	OnFixedUpdate func(dt time.Duration)
}

func (f Funcs) Start() {
	if f.OnStart != nil {
		f.OnStart()
	}
}

func (f Funcs) Update(dt time.Duration) {
	if f.OnUpdate != nil {
		f.OnUpdate(dt)
	}
}

func (f Funcs) LateUpdate(dt time.Duration) {
	if f.OnLateUpdate != nil {
		f.OnLateUpdate(dt)
	}
}

func (f Funcs) FixedUpdate(dt time.Duration) {
	if f.OnFixedUpdate != nil {
		f.OnFixedUpdate(dt)
	}
}

// Scene holds named behaviours in insertion order. It is safe for concurrent
// use; loops read snapshots while callers add and remove.
type Scene struct {
	lock  sync.RWMutex
	names []string
	items map[string]Behaviour
}

func New() *Scene {
	return &Scene{
		items: make(map[string]Behaviour),
	}
}

// Add registers b under name, replacing any behaviour already there without
// changing its position.
func (s *Scene) Add(name string, b Behaviour) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if _, ok := s.items[name]; !ok {
		s.names = append(s.names, name)
	}
	s.items[name] = b
}

// Remove reports whether name was registered.
func (s *Scene) Remove(name string) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	if _, ok := s.items[name]; !ok {
		return false
	}
	delete(s.items, name)
	for i, n := range s.names {
		if n == name {
			s.names = append(s.names[:i], s.names[i+1:]...)
			break
		}
	}
	return true
}

// Behaviours returns a snapshot in insertion order.
func (s *Scene) Behaviours() []Behaviour {
	s.lock.RLock()
	defer s.lock.RUnlock()
	out := make([]Behaviour, 0, len(s.names))
	for _, n := range s.names {
		out = append(out, s.items[n])
	}
	return out
}

func (s *Scene) Len() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return len(s.names)
}
