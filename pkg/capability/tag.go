package capability

import (
	"errors"
	"sync"
)

// Capability errors.
var (
	ErrNotSupported = errors.New("capability not supported")
	ErrUnknownTag   = errors.New("unknown capability tag")
	ErrTypeMismatch = errors.New("implementation does not satisfy capability interface")
)

// Tag identifies one capability interface.
type Tag uint8

const (
	TagLauncher Tag = iota + 1
	TagMediaPlayer
	TagMediaControl
	TagVolumeControl
	TagKeyControl
	TagPowerControl
	TagToastControl
	TagTVControl
)

// Tags lists every known tag.
var Tags = []Tag{
	TagLauncher,
	TagMediaPlayer,
	TagMediaControl,
	TagVolumeControl,
	TagKeyControl,
	TagPowerControl,
	TagToastControl,
	TagTVControl,
}

// String returns the interface name for the tag.
func (t Tag) String() string {
	switch t {
	case TagLauncher:
		return "Launcher"
	case TagMediaPlayer:
		return "MediaPlayer"
	case TagMediaControl:
		return "MediaControl"
	case TagVolumeControl:
		return "VolumeControl"
	case TagKeyControl:
		return "KeyControl"
	case TagPowerControl:
		return "PowerControl"
	case TagToastControl:
		return "ToastControl"
	case TagTVControl:
		return "TVControl"
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether t is one of the known tags.
func (t Tag) Valid() bool {
	return t >= TagLauncher && t <= TagTVControl
}

// Priority ranks services that implement the same interface.
// Higher wins.
type Priority int

const (
	PriorityNotSupported Priority = 0
	PriorityVeryLow      Priority = 1
	PriorityLow          Priority = 25
	PriorityNormal       Priority = 50
	PriorityHigh         Priority = 75
	PriorityVeryHigh     Priority = 100
)

// String returns a readable priority name.
func (p Priority) String() string {
	switch p {
	case PriorityNotSupported:
		return "NOT_SUPPORTED"
	case PriorityVeryLow:
		return "VERY_LOW"
	case PriorityLow:
		return "LOW"
	case PriorityNormal:
		return "NORMAL"
	case PriorityHigh:
		return "HIGH"
	case PriorityVeryHigh:
		return "VERY_HIGH"
	default:
		return "CUSTOM"
	}
}

type registration struct {
	impl     any
	priority Priority
}

// Registry maps capability tags to the implementation a service provides.
// Services fill it at construction; lookups never type-switch on the
// service itself.
type Registry struct {
	mu      sync.RWMutex
	entries map[Tag]registration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[Tag]registration)}
}

// Register binds impl to tag. impl must satisfy the tag's interface.
func (r *Registry) Register(tag Tag, impl any, priority Priority) error {
	if !tag.Valid() {
		return ErrUnknownTag
	}
	if !implements(tag, impl) {
		return ErrTypeMismatch
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[tag] = registration{impl: impl, priority: priority}
	return nil
}

// Unregister removes the binding for tag.
func (r *Registry) Unregister(tag Tag) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, tag)
}

// Lookup returns the implementation bound to tag.
func (r *Registry) Lookup(tag Tag) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[tag]
	if !ok {
		return nil, false
	}
	return e.impl, true
}

// Priority returns the declared priority for tag, PriorityNotSupported
// when nothing is registered.
func (r *Registry) Priority(tag Tag) Priority {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[tag]
	if !ok {
		return PriorityNotSupported
	}
	return e.priority
}

// Tags returns the registered tags in declaration order.
func (r *Registry) Tags() []Tag {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tag, 0, len(r.entries))
	for _, t := range Tags {
		if _, ok := r.entries[t]; ok {
			out = append(out, t)
		}
	}
	return out
}

func implements(tag Tag, impl any) bool {
	switch tag {
	case TagLauncher:
		_, ok := impl.(Launcher)
		return ok
	case TagMediaPlayer:
		_, ok := impl.(MediaPlayer)
		return ok
	case TagMediaControl:
		_, ok := impl.(MediaControl)
		return ok
	case TagVolumeControl:
		_, ok := impl.(VolumeControl)
		return ok
	case TagKeyControl:
		_, ok := impl.(KeyControl)
		return ok
	case TagPowerControl:
		_, ok := impl.(PowerControl)
		return ok
	case TagToastControl:
		_, ok := impl.(ToastControl)
		return ok
	case TagTVControl:
		_, ok := impl.(TVControl)
		return ok
	}
	return false
}
