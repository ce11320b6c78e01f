// Copyright (c) 2024-present TaskFlow, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package call

import (
	"context"
	"fmt"
)

type TrackKind string

const (
	TrackKindAudio TrackKind = "audio"
	TrackKindVideo TrackKind = "video"
)

// Track is a single local capture track (microphone, camera or screen).
// SetEnabled flips presentation state only: it is cheap, synchronous and
// never touches the capture device.
type Track interface {
	ID() string
	Kind() TrackKind
	Enabled() bool
	SetEnabled(enabled bool)
	// OnEnded registers a handler invoked when the underlying capture stops
	// externally (e.g. the OS level "stop sharing" affordance). A track that
	// already ended invokes the handler immediately, so an end racing the
	// registration is never lost.
	OnEnded(handler func())
	Stop()
}

// MediaSource abstracts the local capture devices.
type MediaSource interface {
	// UserMedia acquires microphone and camera jointly. The camera track is
	// requested even when video is false so the session can upgrade later
	// without a new permission round-trip; the caller disables it instead.
	UserMedia(ctx context.Context, video bool) ([]Track, error)
	// TrackFor acquires a single device track of the given kind. Used when a
	// toggle finds no track to flip.
	TrackFor(ctx context.Context, kind TrackKind) (Track, error)
	// DisplayMedia acquires a screen capture video track.
	DisplayMedia(ctx context.Context) (Track, error)
}

// Conn is one negotiated media connection with a single remote participant.
// Implementations wrap the actual ICE/DTLS/SRTP machinery; the session
// manager only orchestrates on top of this surface.
type Conn interface {
	// Signal feeds an opaque negotiation blob received from the remote side.
	Signal(data []byte) error
	// AddTrack attaches a new local track, renegotiating as needed.
	AddTrack(t Track) error
	// ReplaceTrack substitutes the media source feeding the connection
	// without a new handshake round, preserving stream identity.
	ReplaceTrack(oldTrackID string, t Track) error
	Close() error
}

// ConnConfig carries the identity and callbacks wired into a new Conn.
// Callbacks may fire from connection internal goroutines.
type ConnConfig struct {
	// PeerID is the stable join-time identity of the remote participant.
	PeerID string
	// Tracks are the local tracks to publish at construction time. May be
	// empty for listener-only participation.
	Tracks []Track
	// OnSignal receives each locally generated negotiation blob; the
	// orchestrator relays it to the remote side.
	OnSignal func(data []byte)
	// OnRemoteStream fires once remote media becomes available.
	OnRemoteStream func()
	// OnError reports a terminal per-connection failure.
	OnError func(err error)
}

func (c ConnConfig) IsValid() error {
	if c.PeerID == "" {
		return fmt.Errorf("invalid PeerID value: should not be empty")
	}
	if c.OnSignal == nil {
		return fmt.Errorf("invalid OnSignal value: should not be nil")
	}
	return nil
}

// ConnFactory constructs peer connections in one of the two negotiation
// roles. Exactly one side initiates per pair.
type ConnFactory interface {
	// NewInitiator originates a connection towards a participant known from
	// the roster. The connection emits its first signal spontaneously.
	NewInitiator(cfg ConnConfig) (Conn, error)
	// NewResponder answers an inbound signal from a previously unknown peer.
	// The signal is fed to the connection before it is returned.
	NewResponder(cfg ConnConfig, signal []byte) (Conn, error)
}
