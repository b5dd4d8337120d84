// SPDX-License-Identifier: GPL-3.0-or-later

package suggestions

import (
	"slices"
	"sync"
)

// OptionsTarget is anything whose configuration an [*OptionsSpy] can
// drive. [*Provider] implements it.
type OptionsTarget interface {
	UpdateOptions(opts Options)
}

// Transform rewrites options. It receives the options as transformed by
// the subscribers registered before it and returns a patch merged on
// top, or nil to leave them unchanged. A Transform must not modify its
// argument and must not call back into the spy that runs it.
type Transform func(opts Options) *Options

type subscriber struct {
	id        string
	transform Transform
}

// OptionsSpy sits in front of an [OptionsTarget] and threads every
// options update through an ordered chain of [Transform] subscribers.
//
// The spy keeps the untransformed base options: they reflect the
// latest calls to [OptionsSpy.SetOptions] and are never replaced by
// subscriber output. The options delivered to the target are always a
// fresh left fold of the chain over the base, so running the chain
// again over unchanged base options yields the same result.
//
// An OptionsSpy is safe for concurrent use.
type OptionsSpy struct {
	mu          sync.Mutex
	target      OptionsTarget
	base        Options
	subscribers []subscriber
}

// NewOptionsSpy returns a spy driving target, starting from base. The
// target is expected to be already configured with base.
func NewOptionsSpy(target OptionsTarget, base Options) *OptionsSpy {
	return &OptionsSpy{target: target, base: base.clone()}
}

// SetOptions merges patch into the base options and delivers the
// transformed result to the target.
func (s *OptionsSpy) SetOptions(patch Options) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.base = s.base.Merge(patch)
	s.target.UpdateOptions(s.foldLocked(len(s.subscribers)))
}

// Subscribe registers transform under id and delivers the transformed
// options to the target. A new id is appended to the chain; an existing
// id keeps its position and has its transform replaced.
func (s *OptionsSpy) Subscribe(id string, transform Transform) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx := s.indexLocked(id); idx >= 0 {
		s.subscribers[idx].transform = transform
	} else {
		s.subscribers = append(s.subscribers, subscriber{id: id, transform: transform})
	}
	s.target.UpdateOptions(s.foldLocked(len(s.subscribers)))
}

// Unsubscribe removes the subscriber registered under id and delivers
// the options computed without it. It reports whether id was found.
func (s *OptionsSpy) Unsubscribe(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexLocked(id)
	if idx < 0 {
		return false
	}
	s.subscribers = slices.Delete(s.subscribers, idx, idx+1)
	s.target.UpdateOptions(s.foldLocked(len(s.subscribers)))
	return true
}

// Refresh runs the chain again and delivers the result to the target.
// Transforms that read external state use it when that state changes.
func (s *OptionsSpy) Refresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.target.UpdateOptions(s.foldLocked(len(s.subscribers)))
}

// Options returns the options as transformed by the subscribers
// registered before id. An empty or unknown id uses every subscriber.
// The target is not touched.
func (s *OptionsSpy) Options(id string) Options {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.subscribers)
	if idx := s.indexLocked(id); id != "" && idx >= 0 {
		n = idx
	}
	return s.foldLocked(n)
}

// BaseOptions returns the untransformed options.
func (s *OptionsSpy) BaseOptions() Options {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.base.clone()
}

// Subscribers returns the subscriber ids in chain order.
func (s *OptionsSpy) Subscribers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.subscribers))
	for _, sub := range s.subscribers {
		ids = append(ids, sub.id)
	}
	return ids
}

func (s *OptionsSpy) indexLocked(id string) int {
	return slices.IndexFunc(s.subscribers, func(sub subscriber) bool {
		return sub.id == id
	})
}

// foldLocked applies the first n subscribers to a copy of the base.
func (s *OptionsSpy) foldLocked(n int) Options {
	current := s.base.clone()
	for _, sub := range s.subscribers[:n] {
		if patch := sub.transform(current.clone()); patch != nil {
			current = current.Merge(*patch)
		}
	}
	return current
}
