// Copyright (c) 2021-2026 Rustam Gilyazov and Contributors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package resolver

// In this file: channel resolution state shared between the resolver and
// the request handlers.

import (
	"sync/atomic"
)

// Status is the outcome of the channel resolution.
type Status uint8

//go:generate stringer -type=Status -linecomment
const (
	Pending  Status = iota // pending
	Resolved               // resolved
	Failed                 // failed
)

// Snapshot is an immutable view of the resolution state.
type Snapshot struct {
	// Name is the configured channel name.
	Name string `json:"name"`
	// ID is the channel ID, set only when Status is Resolved.
	ID     string `json:"id,omitempty"`
	Status Status `json:"-"`
	// Err is the cause of the failure, set only when Status is Failed.
	Err error `json:"-"`
}

// State holds the channel resolution state.  It starts as Pending and is
// transitioned exactly once, to Resolved or Failed.  Reads are safe for
// concurrent use and always observe a complete Snapshot.
type State struct {
	initial *Snapshot
	v       atomic.Pointer[Snapshot]
}

// NewState returns the pending state for the channel name.
func NewState(name string) *State {
	s := &State{initial: &Snapshot{Name: name, Status: Pending}}
	s.v.Store(s.initial)
	return s
}

// Snapshot returns the current state.
func (s *State) Snapshot() Snapshot {
	return *s.v.Load()
}

// Name returns the configured channel name.
func (s *State) Name() string {
	return s.initial.Name
}

// resolve marks the state resolved with the id.  It returns false if the
// state has already left Pending.
func (s *State) resolve(id string) bool {
	return s.v.CompareAndSwap(s.initial, &Snapshot{Name: s.initial.Name, ID: id, Status: Resolved})
}

// fail marks the state failed with err.  It returns false if the state has
// already left Pending.
func (s *State) fail(err error) bool {
	return s.v.CompareAndSwap(s.initial, &Snapshot{Name: s.initial.Name, Status: Failed, Err: err})
}
