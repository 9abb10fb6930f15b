// Package input turns raw key and mouse events into callbacks. Events are fed
// from any goroutine; a 1000 Hz fixed loop drains them, tracks key state, and
// dispatches callbacks as fire-and-forget jobs.
package input

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"

	"github.com/gaohao-creator/turbojob/logging"
	"github.com/gaohao-creator/turbojob/loop"
)

const (
	Name = "input"

	DefaultTick        = time.Millisecond // 1000 Hz
	DefaultCatchUp     = 5
	DefaultBuffer      = 1024
	DoubleClickTimeout = 300 * time.Millisecond
)

// Key identifies a keyboard key or mouse button.
type Key int

const (
	KeyUnknown Key = iota
	KeyEscape
	KeySpace
	KeyEnter
	KeyTab
	KeyArrowUp
	KeyArrowDown
	KeyArrowLeft
	KeyArrowRight
	KeyLeftShift
	KeyRightShift
	KeyLeftCtrl
	KeyRightCtrl
	KeyLeftAlt
	KeyRightAlt
	MouseLeft
	MouseRight
	MouseMiddle
)

// KeyRune maps a letter or digit to a Key outside the named range.
func KeyRune(r rune) Key {
	return Key(1000 + int(r))
}

type Action int

const (
	Press Action = iota
	Release
	Hold
	DoubleClick
)

type EventKind int

const (
	KeyDown EventKind = iota
	KeyUp
	MouseMove
	MouseWheel
)

// Event is one raw input sample. X and Y carry the cursor position for
// MouseMove and the scroll offsets for MouseWheel.
type Event struct {
	Kind EventKind
	Key  Key
	X, Y float64
	// Time stamps the event; Feed fills it in when zero.
	Time time.Time
}

// Spawner runs a callback without tracking it.
type Spawner interface {
	Spawn(fn func()) error
}

type keyState struct {
	held      bool
	lastPress time.Time
}

type combination struct {
	keys     []Key
	callback func()
}

// System is a loop.Policy.
type System struct {
	spawner Spawner
	driver  *loop.Fixed
	logger  logr.Logger
	events  chan Event

	mu        sync.RWMutex
	callbacks map[Action]map[Key]func()
	combos    []combination
	moves     []func(x, y float64)
	wheels    []func(x, y float64)
	states    map[Key]*keyState

	overflow   atomic.Uint64 // Feed丢弃的事件数
	dispatched atomic.Uint64
}

// New creates an input system. buffer bounds how many events may wait between
// ticks; a non-positive buffer uses DefaultBuffer.
func New(spawner Spawner, driver *loop.Fixed, buffer int, logger logr.Logger) *System {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &System{
		spawner: spawner,
		driver:  driver,
		logger:  logger.WithValues("system", Name),
		events:  make(chan Event, buffer),
		callbacks: map[Action]map[Key]func(){
			Press:       {},
			Release:     {},
			Hold:        {},
			DoubleClick: {},
		},
		states: make(map[Key]*keyState),
	}
}

func (s *System) Driver() *loop.Fixed { return s.driver }

// Feed queues e for the next tick without blocking. It reports false, and
// drops the event, when the buffer is full.
func (s *System) Feed(e Event) bool {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	select {
	case s.events <- e:
		return true
	default:
		s.overflow.Add(1)
		return false
	}
}

// On registers fn for action on key, replacing any earlier callback.
func (s *System) On(key Key, action Action, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.callbacks[action]; ok {
		m[key] = fn
	}
}

// OnCombination registers fn to fire whenever a key goes down while every key
// in keys is held.
func (s *System) OnCombination(keys []Key, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.combos = append(s.combos, combination{
		keys:     append([]Key(nil), keys...),
		callback: fn,
	})
}

func (s *System) OnMouseMove(fn func(x, y float64)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.moves = append(s.moves, fn)
}

func (s *System) OnMouseWheel(fn func(x, y float64)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wheels = append(s.wheels, fn)
}

// Held reports whether key is down as of the last tick.
func (s *System) Held(key Key) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[key]
	return ok && st.held
}

// Overflow counts events dropped by Feed.
func (s *System) Overflow() uint64 { return s.overflow.Load() }

// Dispatched counts callbacks handed to the scheduler.
func (s *System) Dispatched() uint64 { return s.dispatched.Load() }

func (s *System) OnBegin() error { return nil }

func (s *System) OnIteration(loop.Step) error {
	for drained := false; !drained; {
		select {
		case e := <-s.events:
			s.handle(e)
		default:
			drained = true
		}
	}

	s.mu.RLock()
	var held []func()
	for key, st := range s.states {
		if fn, ok := s.callbacks[Hold][key]; ok && st.held {
			held = append(held, fn)
		}
	}
	s.mu.RUnlock()
	for _, fn := range held {
		s.dispatch(fn)
	}
	return nil
}

// OnEnd releases every key so a restarted loop begins from a clean state.
func (s *System) OnEnd() {
	s.mu.Lock()
	s.states = make(map[Key]*keyState)
	s.mu.Unlock()
	s.logger.V(logging.VERBOSE).Info("input system stopped", "dispatched", s.dispatched.Load(), "overflow", s.overflow.Load())
}

func (s *System) handle(e Event) {
	var fire []func()

	s.mu.Lock()
	switch e.Kind {
	case KeyDown:
		st := s.state(e.Key)
		if fn, ok := s.callbacks[DoubleClick][e.Key]; ok && !st.lastPress.IsZero() && e.Time.Sub(st.lastPress) < DoubleClickTimeout {
			fire = append(fire, fn)
		}
		if !st.held {
			st.lastPress = e.Time
			if fn, ok := s.callbacks[Press][e.Key]; ok {
				fire = append(fire, fn)
			}
		}
		st.held = true
		for _, c := range s.combos {
			if s.allHeld(c.keys) {
				fire = append(fire, c.callback)
			}
		}
	case KeyUp:
		st := s.state(e.Key)
		st.held = false
		if fn, ok := s.callbacks[Release][e.Key]; ok {
			fire = append(fire, fn)
		}
	case MouseMove:
		fire = bind(fire, s.moves, e.X, e.Y)
	case MouseWheel:
		fire = bind(fire, s.wheels, e.X, e.Y)
	}
	s.mu.Unlock()

	for _, fn := range fire {
		s.dispatch(fn)
	}
}

func (s *System) state(key Key) *keyState {
	st, ok := s.states[key]
	if !ok {
		st = &keyState{}
		s.states[key] = st
	}
	return st
}

func (s *System) allHeld(keys []Key) bool {
	for _, k := range keys {
		st, ok := s.states[k]
		if !ok || !st.held {
			return false
		}
	}
	return len(keys) > 0
}

func (s *System) dispatch(fn func()) {
	if err := s.spawner.Spawn(fn); err != nil {
		s.logger.V(logging.DEBUG).Info("dropping input callback", "err", err)
		return
	}
	s.dispatched.Add(1)
}

func bind(dst []func(), fns []func(x, y float64), x, y float64) []func() {
	for _, fn := range fns {
		dst = append(dst, func() { fn(x, y) })
	}
	return dst
}
