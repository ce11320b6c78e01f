// Copyright (c) 2024-present TaskFlow, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package call

import (
	"sort"
	"sync"
)

// PeerState is the read-only rendering view of a peer entry.
type PeerState struct {
	PeerID              string
	DisplayName         string
	RemoteStreamPresent bool
	AudioMuted          bool
	VideoOff            bool
}

// peerEntry ties a remote participant identity to its connection handle.
// The registry exclusively owns the handle; nothing else mutates it.
type peerEntry struct {
	peerID       string
	displayName  string
	conn         Conn
	remoteStream bool
	audioMuted   bool
	videoOff     bool
}

func (e *peerEntry) state() PeerState {
	return PeerState{
		PeerID:              e.peerID,
		DisplayName:         e.displayName,
		RemoteStreamPresent: e.remoteStream,
		AudioMuted:          e.audioMuted,
		VideoOff:            e.videoOff,
	}
}

// registry is the single source of truth for the set of active peer
// connections in a call, keyed by the stable join-time peer identity.
type registry struct {
	mut   sync.RWMutex
	peers map[string]*peerEntry
}

func newRegistry() *registry {
	return &registry{
		peers: map[string]*peerEntry{},
	}
}

// ensure inserts an entry for peerID, constructing the connection through
// create. Insertion is idempotent: a roster message and a late-join signal
// referencing the same participant resolve to one entry. Returns the entry
// and whether it was newly created.
func (r *registry) ensure(peerID, displayName string, create func() (Conn, error)) (*peerEntry, bool, error) {
	r.mut.Lock()
	defer r.mut.Unlock()

	if e, ok := r.peers[peerID]; ok {
		if displayName != "" && e.displayName == "" {
			e.displayName = displayName
		}
		return e, false, nil
	}

	conn, err := create()
	if err != nil {
		return nil, false, err
	}

	e := &peerEntry{
		peerID:      peerID,
		displayName: displayName,
		conn:        conn,
	}
	r.peers[peerID] = e

	return e, true, nil
}

func (r *registry) get(peerID string) *peerEntry {
	r.mut.RLock()
	defer r.mut.RUnlock()
	return r.peers[peerID]
}

// remove detaches the entry for peerID, returning it so the caller can close
// the connection handle outside the lock.
func (r *registry) remove(peerID string) *peerEntry {
	r.mut.Lock()
	defer r.mut.Unlock()
	e := r.peers[peerID]
	delete(r.peers, peerID)
	return e
}

// removeAll clears the set, returning the detached entries for teardown.
func (r *registry) removeAll() []*peerEntry {
	r.mut.Lock()
	defer r.mut.Unlock()
	entries := make([]*peerEntry, 0, len(r.peers))
	for _, e := range r.peers {
		entries = append(entries, e)
	}
	r.peers = map[string]*peerEntry{}
	return entries
}

func (r *registry) size() int {
	r.mut.RLock()
	defer r.mut.RUnlock()
	return len(r.peers)
}

func (r *registry) forEach(cb func(e *peerEntry)) {
	r.mut.RLock()
	entries := make([]*peerEntry, 0, len(r.peers))
	for _, e := range r.peers {
		entries = append(entries, e)
	}
	r.mut.RUnlock()
	for _, e := range entries {
		cb(e)
	}
}

func (r *registry) setRemoteStream(peerID string) bool {
	r.mut.Lock()
	defer r.mut.Unlock()
	e := r.peers[peerID]
	if e == nil {
		return false
	}
	e.remoteStream = true
	return true
}

func (r *registry) setRemoteToggle(peerID string, kind TrackKind, enabled bool) bool {
	r.mut.Lock()
	defer r.mut.Unlock()
	e := r.peers[peerID]
	if e == nil {
		return false
	}
	switch kind {
	case TrackKindAudio:
		e.audioMuted = !enabled
	case TrackKindVideo:
		e.videoOff = !enabled
	}
	return true
}

// snapshot returns a stable, read-only view for the rendering layer.
func (r *registry) snapshot() []PeerState {
	r.mut.RLock()
	defer r.mut.RUnlock()
	states := make([]PeerState, 0, len(r.peers))
	for _, e := range r.peers {
		states = append(states, e.state())
	}
	sort.Slice(states, func(i, j int) bool {
		return states[i].PeerID < states[j].PeerID
	})
	return states
}
