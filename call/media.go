// Copyright (c) 2024-present TaskFlow, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package call

import (
	"context"
	"fmt"
	"sync"

	"github.com/mattermost/mattermost/server/public/shared/mlog"
)

// LocalMediaState is a snapshot of the local track set for the UI layer.
type LocalMediaState struct {
	HasAudioTrack     bool
	HasVideoTrack     bool
	AudioEnabled      bool
	VideoEnabled      bool
	ScreenShareActive bool
}

// mediaManager owns the local track set and arbitrates it across every peer
// connection. Invariant: screenShareActive implies savedCameraTrack is set,
// so the camera can always be restored.
type mediaManager struct {
	log mlog.LoggerIFace
	src MediaSource

	mut               sync.Mutex
	audioTrack        Track
	videoTrack        Track
	audioEnabled      bool
	videoEnabled      bool
	screenShareActive bool
	savedCameraTrack  Track
}

func newMediaManager(src MediaSource, log mlog.LoggerIFace) *mediaManager {
	return &mediaManager{
		log: log,
		src: src,
	}
}

// acquire requests microphone and camera jointly, even for audio-only joins:
// the camera track is kept but disabled so a later upgrade is a flag flip
// rather than a new permission prompt. This requiring-both-then-disabling
// behavior is the defined contract, which means "joined audio-only" and
// "joined video but muted" are indistinguishable on the wire.
//
// The valid callback, when non-nil, is consulted under the lock right before
// the merge: the device prompt can outlive the session it was opened for, in
// which case the fresh tracks are stopped and discarded.
func (m *mediaManager) acquire(ctx context.Context, wantVideo bool, valid func() bool) ([]Track, error) {
	tracks, err := m.src.UserMedia(ctx, wantVideo)
	if err != nil {
		return nil, err
	}

	m.mut.Lock()
	defer m.mut.Unlock()

	if valid != nil && !valid() {
		for _, t := range tracks {
			t.Stop()
		}
		return nil, nil
	}

	var merged []Track
	for _, t := range tracks {
		switch t.Kind() {
		case TrackKindAudio:
			if m.audioTrack != nil {
				t.Stop()
				continue
			}
			t.SetEnabled(true)
			m.audioTrack = t
			m.audioEnabled = true
			merged = append(merged, t)
		case TrackKindVideo:
			if m.videoTrack != nil {
				t.Stop()
				continue
			}
			t.SetEnabled(wantVideo)
			m.videoTrack = t
			m.videoEnabled = wantVideo
			merged = append(merged, t)
		}
	}

	return merged, nil
}

// toggleAudio flips the audio track's enabled flag when one exists; this is
// synchronous and never touches the device. When no track exists it performs
// exactly one acquisition attempt.
func (m *mediaManager) toggleAudio(ctx context.Context) (enabled bool, acquired Track, err error) {
	return m.toggle(ctx, TrackKindAudio)
}

// toggleVideo is symmetric to toggleAudio for the camera track.
func (m *mediaManager) toggleVideo(ctx context.Context) (enabled bool, acquired Track, err error) {
	return m.toggle(ctx, TrackKindVideo)
}

func (m *mediaManager) toggle(ctx context.Context, kind TrackKind) (bool, Track, error) {
	m.mut.Lock()

	track := m.audioTrack
	if kind == TrackKindVideo {
		track = m.videoTrack
	}

	if track != nil {
		var enabled bool
		if kind == TrackKindAudio {
			m.audioEnabled = !m.audioEnabled
			enabled = m.audioEnabled
		} else {
			m.videoEnabled = !m.videoEnabled
			enabled = m.videoEnabled
		}
		track.SetEnabled(enabled)
		m.mut.Unlock()
		return enabled, nil, nil
	}
	m.mut.Unlock()

	t, err := m.src.TrackFor(ctx, kind)
	if err != nil {
		return false, nil, err
	}

	m.mut.Lock()
	defer m.mut.Unlock()

	// A concurrent acquisition may have filled the slot while the device
	// prompt was pending.
	if kind == TrackKindAudio {
		if m.audioTrack != nil {
			t.Stop()
			return m.audioEnabled, nil, nil
		}
		t.SetEnabled(true)
		m.audioTrack = t
		m.audioEnabled = true
	} else {
		if m.videoTrack != nil {
			t.Stop()
			return m.videoEnabled, nil, nil
		}
		t.SetEnabled(true)
		m.videoTrack = t
		m.videoEnabled = true
	}

	return true, t, nil
}

// startScreenShare acquires a screen capture track and returns it along with
// the ID of the camera track it should replace on every peer. The camera
// track is preserved for restoration.
func (m *mediaManager) startScreenShare(ctx context.Context) (screen Track, oldTrackID string, err error) {
	m.mut.Lock()
	if m.screenShareActive {
		m.mut.Unlock()
		return nil, "", fmt.Errorf("screen share is already active")
	}
	if m.videoTrack == nil {
		m.mut.Unlock()
		return nil, "", ErrNoVideoTrack
	}
	m.mut.Unlock()

	t, err := m.src.DisplayMedia(ctx)
	if err != nil {
		return nil, "", err
	}

	m.mut.Lock()

	if m.screenShareActive || m.videoTrack == nil {
		m.mut.Unlock()
		t.Stop()
		return nil, "", fmt.Errorf("media state changed during screen acquisition")
	}

	oldTrackID = m.videoTrack.ID()
	m.savedCameraTrack = m.videoTrack
	m.videoTrack = t
	m.videoEnabled = true
	m.screenShareActive = true
	t.SetEnabled(true)
	m.mut.Unlock()

	return t, oldTrackID, nil
}

// stopScreenShare stops the screen track and returns the saved camera track
// plus the screen track ID so the caller can reverse the substitution on
// every peer.
func (m *mediaManager) stopScreenShare() (camera Track, screenTrackID string, err error) {
	m.mut.Lock()
	defer m.mut.Unlock()

	if !m.screenShareActive {
		return nil, "", fmt.Errorf("screen share is not active")
	}

	screen := m.videoTrack
	screenTrackID = screen.ID()
	screen.Stop()

	camera = m.savedCameraTrack
	m.videoTrack = camera
	m.savedCameraTrack = nil
	m.screenShareActive = false

	return camera, screenTrackID, nil
}

// isScreenTrack reports whether the given track ID is the currently active
// screen capture. Used to discriminate stale OnEnded callbacks.
func (m *mediaManager) isScreenTrack(trackID string) bool {
	m.mut.Lock()
	defer m.mut.Unlock()
	return m.screenShareActive && m.videoTrack != nil && m.videoTrack.ID() == trackID
}

// tracks returns the current local tracks to publish on a new connection.
func (m *mediaManager) tracks() []Track {
	m.mut.Lock()
	defer m.mut.Unlock()
	var out []Track
	if m.audioTrack != nil {
		out = append(out, m.audioTrack)
	}
	if m.videoTrack != nil {
		out = append(out, m.videoTrack)
	}
	return out
}

// stopAll stops every held track and clears the state.
func (m *mediaManager) stopAll() {
	m.mut.Lock()
	defer m.mut.Unlock()

	for _, t := range []Track{m.audioTrack, m.videoTrack, m.savedCameraTrack} {
		if t != nil {
			t.Stop()
		}
	}

	m.audioTrack = nil
	m.videoTrack = nil
	m.savedCameraTrack = nil
	m.audioEnabled = false
	m.videoEnabled = false
	m.screenShareActive = false
}

func (m *mediaManager) state() LocalMediaState {
	m.mut.Lock()
	defer m.mut.Unlock()
	return LocalMediaState{
		HasAudioTrack:     m.audioTrack != nil,
		HasVideoTrack:     m.videoTrack != nil,
		AudioEnabled:      m.audioEnabled,
		VideoEnabled:      m.videoEnabled,
		ScreenShareActive: m.screenShareActive,
	}
}
