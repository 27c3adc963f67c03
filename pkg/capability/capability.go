package capability

import (
	"sort"
	"strings"
	"sync"
)

// Wildcard suffixes accepted by Match. "MediaControl.Any" matches every
// capability under "MediaControl.".
const (
	AnySuffix  = ".Any"
	StarSuffix = ".*"
)

// Capability names. A capability is "<Interface>.<Operation>[.<Detail>]".
const (
	LauncherApp       = "Launcher.App"
	LauncherAppParams = "Launcher.App.Params"
	LauncherAppClose  = "Launcher.App.Close"
	LauncherAppList   = "Launcher.App.List"
	LauncherBrowser   = "Launcher.Browser"
	LauncherYouTube   = "Launcher.YouTube"
	LauncherNetflix   = "Launcher.Netflix"
	LauncherAny       = "Launcher.Any"

	MediaPlayerPlayVideo    = "MediaPlayer.Play.Video"
	MediaPlayerPlayAudio    = "MediaPlayer.Play.Audio"
	MediaPlayerDisplayImage = "MediaPlayer.Display.Image"
	MediaPlayerClose        = "MediaPlayer.Close"
	MediaPlayerAny          = "MediaPlayer.Any"

	MediaControlPlay  = "MediaControl.Play"
	MediaControlPause = "MediaControl.Pause"
	MediaControlStop  = "MediaControl.Stop"
	MediaControlAny   = "MediaControl.Any"

	VolumeControlGet       = "VolumeControl.Get"
	VolumeControlSet       = "VolumeControl.Set"
	VolumeControlUpDown    = "VolumeControl.UpDown"
	VolumeControlMuteGet   = "VolumeControl.Mute.Get"
	VolumeControlMuteSet   = "VolumeControl.Mute.Set"
	VolumeControlSubscribe = "VolumeControl.Subscribe"
	VolumeControlAny       = "VolumeControl.Any"

	KeyControlSend = "KeyControl.Send"
	KeyControlAny  = "KeyControl.Any"

	PowerControlOff = "PowerControl.Off"
	PowerControlAny = "PowerControl.Any"

	ToastControlShow = "ToastControl.Show"
	ToastControlAny  = "ToastControl.Any"

	TVControlChannelUp   = "TVControl.Channel.Up"
	TVControlChannelDown = "TVControl.Channel.Down"
	TVControlAny         = "TVControl.Any"
)

// Match reports whether capability satisfies pattern. A pattern ending in
// ".Any" or ".*" matches any capability that starts with the prefix before
// the wildcard segment; "*" alone matches everything.
func Match(pattern, capability string) bool {
	if pattern == "*" {
		return capability != ""
	}
	for _, suffix := range []string{AnySuffix, StarSuffix} {
		if strings.HasSuffix(pattern, suffix) {
			prefix := strings.TrimSuffix(pattern, suffix) + "."
			return strings.HasPrefix(capability, prefix)
		}
	}
	return pattern == capability
}

// Set is a concurrency-safe set of capability names.
// The zero value is ready to use.
type Set struct {
	mu    sync.RWMutex
	items map[string]struct{}
}

// NewSet creates a set holding the given capabilities.
func NewSet(capabilities ...string) *Set {
	s := &Set{}
	s.Add(capabilities...)
	return s
}

// Add inserts capabilities and returns the ones that were not present.
func (s *Set) Add(capabilities ...string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.items == nil {
		s.items = make(map[string]struct{}, len(capabilities))
	}
	var added []string
	for _, c := range capabilities {
		if c == "" {
			continue
		}
		if _, ok := s.items[c]; ok {
			continue
		}
		s.items[c] = struct{}{}
		added = append(added, c)
	}
	return added
}

// Remove deletes capabilities and returns the ones that were present.
func (s *Set) Remove(capabilities ...string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []string
	for _, c := range capabilities {
		if _, ok := s.items[c]; !ok {
			continue
		}
		delete(s.items, c)
		removed = append(removed, c)
	}
	return removed
}

// Has reports whether any member satisfies the (possibly wildcard) name.
func (s *Set) Has(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.items[name]; ok {
		return true
	}
	if !isWildcard(name) {
		return false
	}
	for c := range s.items {
		if Match(name, c) {
			return true
		}
	}
	return false
}

// HasAll reports whether every name is satisfied.
func (s *Set) HasAll(names ...string) bool {
	for _, n := range names {
		if !s.Has(n) {
			return false
		}
	}
	return true
}

// HasAny reports whether at least one name is satisfied.
func (s *Set) HasAny(names ...string) bool {
	for _, n := range names {
		if s.Has(n) {
			return true
		}
	}
	return false
}

// List returns the members in sorted order.
func (s *Set) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.items))
	for c := range s.items {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of members.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Diff returns the members of next not in prev (added) and the members of
// prev not in next (removed). Both results are sorted; nil when empty.
func Diff(prev, next []string) (added, removed []string) {
	p := make(map[string]struct{}, len(prev))
	for _, c := range prev {
		p[c] = struct{}{}
	}
	n := make(map[string]struct{}, len(next))
	for _, c := range next {
		n[c] = struct{}{}
		if _, ok := p[c]; !ok {
			added = append(added, c)
		}
	}
	for _, c := range prev {
		if _, ok := n[c]; !ok {
			removed = append(removed, c)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	return added, removed
}

func isWildcard(name string) bool {
	return name == "*" || strings.HasSuffix(name, AnySuffix) || strings.HasSuffix(name, StarSuffix)
}

// Filter selects devices that provide every listed capability.
type Filter struct {
	Capabilities []string
}

// NewFilter creates a filter from capability names.
func NewFilter(capabilities ...string) Filter {
	return Filter{Capabilities: capabilities}
}

// Matches reports whether has satisfies every capability of the filter.
// An empty filter matches nothing.
func (f Filter) Matches(has func(name string) bool) bool {
	if len(f.Capabilities) == 0 {
		return false
	}
	for _, c := range f.Capabilities {
		if !has(c) {
			return false
		}
	}
	return true
}
