// Copyright (c) 2024-present TaskFlow, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

// Package media implements local device capture (microphone, camera, screen)
// on top of pion/mediadevices.
package media

import (
	"context"
	"fmt"
	"sync"

	"github.com/taskflow/calls/call"

	"github.com/mattermost/mattermost/server/public/shared/mlog"
	"github.com/pion/mediadevices"
	"github.com/pion/webrtc/v4"
)

type Config struct {
	// VideoWidth and VideoHeight cap the capture resolution. Higher
	// resolutions increase encoding latency.
	VideoWidth  int `toml:"video_width"`
	VideoHeight int `toml:"video_height"`
	// VideoBitRate is the target encoder bitrate in bps.
	VideoBitRate int `toml:"video_bit_rate"`
}

func (c *Config) SetDefaults() {
	if c.VideoWidth == 0 {
		c.VideoWidth = 640
	}
	if c.VideoHeight == 0 {
		c.VideoHeight = 480
	}
	if c.VideoBitRate == 0 {
		c.VideoBitRate = 1_500_000
	}
}

func (c Config) IsValid() error {
	if c.VideoWidth <= 0 {
		return fmt.Errorf("invalid VideoWidth value: should be greater than 0")
	}
	if c.VideoHeight <= 0 {
		return fmt.Errorf("invalid VideoHeight value: should be greater than 0")
	}
	if c.VideoBitRate <= 0 {
		return fmt.Errorf("invalid VideoBitRate value: should be greater than 0")
	}
	return nil
}

// Source implements call.MediaSource against the local capture devices.
type Source struct {
	cfg           Config
	log           mlog.LoggerIFace
	codecSelector *mediadevices.CodecSelector
}

func NewSource(cfg Config, log mlog.LoggerIFace) (*Source, error) {
	if log == nil {
		return nil, fmt.Errorf("log should not be nil")
	}
	cfg.SetDefaults()
	if err := cfg.IsValid(); err != nil {
		return nil, fmt.Errorf("failed to validate config: %w", err)
	}

	selector, err := newCodecSelector(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create codec selector: %w", err)
	}

	return &Source{
		cfg:           cfg,
		log:           log,
		codecSelector: selector,
	}, nil
}

// PopulateEngine registers the codecs the capture pipeline encodes to. Meant
// to be passed as the peer factory's engine setup.
func (s *Source) PopulateEngine(engine *webrtc.MediaEngine) error {
	s.codecSelector.Populate(engine)
	return nil
}

// UserMedia acquires microphone and camera jointly. Both devices are always
// requested; the session layer disables the camera track for audio-only
// participation.
func (s *Source) UserMedia(ctx context.Context, _ bool) ([]call.Track, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stream, err := s.getUserMedia(true, true)
	if err != nil {
		return nil, fmt.Errorf("failed to get user media: %w", err)
	}

	return s.wrapTracks(stream.GetTracks()), nil
}

// TrackFor acquires a single device track of the given kind.
func (s *Source) TrackFor(ctx context.Context, kind call.TrackKind) (call.Track, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stream, err := s.getUserMedia(kind == call.TrackKindAudio, kind == call.TrackKindVideo)
	if err != nil {
		return nil, fmt.Errorf("failed to get user media: %w", err)
	}

	tracks := s.wrapTracks(stream.GetTracks())
	if len(tracks) == 0 {
		return nil, fmt.Errorf("no %s track acquired", kind)
	}

	return tracks[0], nil
}

// DisplayMedia acquires a screen capture video track.
func (s *Source) DisplayMedia(ctx context.Context) (call.Track, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stream, err := s.getDisplayMedia()
	if err != nil {
		return nil, fmt.Errorf("failed to get display media: %w", err)
	}

	tracks := s.wrapTracks(stream.GetTracks())
	if len(tracks) == 0 {
		return nil, fmt.Errorf("no screen track acquired")
	}

	return tracks[0], nil
}

func (s *Source) wrapTracks(mediaTracks []mediadevices.Track) []call.Track {
	tracks := make([]call.Track, 0, len(mediaTracks))
	for _, mt := range mediaTracks {
		kind := call.TrackKindAudio
		if mt.Kind() == webrtc.RTPCodecTypeVideo {
			kind = call.TrackKindVideo
		}
		t := &track{
			t:       mt,
			kind:    kind,
			enabled: true,
		}
		mt.OnEnded(func(err error) {
			if err != nil {
				s.log.Debug("capture track ended", mlog.String("trackID", mt.ID()), mlog.Err(err))
			}
			t.fireEnded()
		})
		tracks = append(tracks, t)
	}
	return tracks
}

// track adapts a mediadevices capture track to the call.Track surface. The
// enabled flag is presentation state only and never touches the device.
type track struct {
	t    mediadevices.Track
	kind call.TrackKind

	mut     sync.Mutex
	enabled bool
	stopped bool
	ended   bool
	onEnded func()
}

func (t *track) ID() string {
	return t.t.ID()
}

func (t *track) Kind() call.TrackKind {
	return t.kind
}

func (t *track) Enabled() bool {
	t.mut.Lock()
	defer t.mut.Unlock()
	return t.enabled
}

func (t *track) SetEnabled(enabled bool) {
	t.mut.Lock()
	defer t.mut.Unlock()
	t.enabled = enabled
}

// OnEnded replays a missed end: a handler registered after the capture
// already stopped is invoked right away.
func (t *track) OnEnded(handler func()) {
	t.mut.Lock()
	t.onEnded = handler
	ended := t.ended
	t.mut.Unlock()
	if ended && handler != nil {
		handler()
	}
}

func (t *track) fireEnded() {
	t.mut.Lock()
	t.ended = true
	handler := t.onEnded
	t.mut.Unlock()
	if handler != nil {
		handler()
	}
}

func (t *track) Stop() {
	t.mut.Lock()
	if t.stopped {
		t.mut.Unlock()
		return
	}
	t.stopped = true
	t.mut.Unlock()

	_ = t.t.Close()
}

// WebRTCTrack exposes the underlying local track for the peer layer.
func (t *track) WebRTCTrack() webrtc.TrackLocal {
	return t.t
}
