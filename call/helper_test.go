// Copyright (c) 2024-present TaskFlow, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package call

import (
	"context"
	"sync"
	"testing"

	"github.com/taskflow/calls/ws"

	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	mut       sync.Mutex
	sent      []ClientMessage
	sendErr   error
	receiveCh chan ws.Message
	errorCh   chan error
	closed    bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		receiveCh: make(chan ws.Message, 32),
		errorCh:   make(chan error, 8),
	}
}

func (t *fakeTransport) Send(_ ws.MessageType, data []byte) error {
	t.mut.Lock()
	defer t.mut.Unlock()
	if t.sendErr != nil {
		return t.sendErr
	}
	var cm ClientMessage
	if err := cm.Unpack(data); err != nil {
		return err
	}
	t.sent = append(t.sent, cm)
	return nil
}

func (t *fakeTransport) ReceiveCh() <-chan ws.Message {
	return t.receiveCh
}

func (t *fakeTransport) ErrorCh() <-chan error {
	return t.errorCh
}

func (t *fakeTransport) Close() error {
	t.mut.Lock()
	defer t.mut.Unlock()
	if !t.closed {
		t.closed = true
		close(t.receiveCh)
		close(t.errorCh)
	}
	return nil
}

// deliver packs an envelope and pushes it as an inbound transport message.
func (t *fakeTransport) deliver(tb testing.TB, msgType string, data interface{}) {
	tb.Helper()
	packed, err := NewClientMessage(msgType, data).Pack()
	require.NoError(tb, err)
	t.receiveCh <- ws.Message{Type: ws.BinaryMessage, Data: packed}
}

func (t *fakeTransport) sentMsgs(msgType string) []ClientMessage {
	t.mut.Lock()
	defer t.mut.Unlock()
	var out []ClientMessage
	for _, cm := range t.sent {
		if cm.Type == msgType {
			out = append(out, cm)
		}
	}
	return out
}

type fakeTrack struct {
	mut     sync.Mutex
	id      string
	kind    TrackKind
	enabled bool
	stopped bool
	ended   bool
	onEnded func()
}

func newFakeTrack(id string, kind TrackKind) *fakeTrack {
	return &fakeTrack{id: id, kind: kind}
}

func (t *fakeTrack) ID() string {
	return t.id
}

func (t *fakeTrack) Kind() TrackKind {
	return t.kind
}

func (t *fakeTrack) Enabled() bool {
	t.mut.Lock()
	defer t.mut.Unlock()
	return t.enabled
}

func (t *fakeTrack) SetEnabled(enabled bool) {
	t.mut.Lock()
	defer t.mut.Unlock()
	t.enabled = enabled
}

func (t *fakeTrack) OnEnded(handler func()) {
	t.mut.Lock()
	t.onEnded = handler
	ended := t.ended
	t.mut.Unlock()
	if ended && handler != nil {
		handler()
	}
}

func (t *fakeTrack) end() {
	t.mut.Lock()
	t.ended = true
	handler := t.onEnded
	t.mut.Unlock()
	if handler != nil {
		handler()
	}
}

func (t *fakeTrack) Stop() {
	t.mut.Lock()
	defer t.mut.Unlock()
	t.stopped = true
}

func (t *fakeTrack) isStopped() bool {
	t.mut.Lock()
	defer t.mut.Unlock()
	return t.stopped
}

type fakeSource struct {
	mut             sync.Mutex
	userMediaCalls  int
	trackForCalls   int
	displayCalls    int
	userMediaErr    error
	trackForErr     error
	displayErr      error
	displayEnded    bool
	userMediaBlock  chan struct{}
	acquiredTracks  []*fakeTrack
	nextTrackSuffix int
}

func (s *fakeSource) nextID(prefix string) string {
	s.nextTrackSuffix++
	return prefix + string(rune('0'+s.nextTrackSuffix))
}

func (s *fakeSource) UserMedia(ctx context.Context, _ bool) ([]Track, error) {
	s.mut.Lock()
	block := s.userMediaBlock
	s.mut.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.mut.Lock()
	defer s.mut.Unlock()
	s.userMediaCalls++
	if s.userMediaErr != nil {
		return nil, s.userMediaErr
	}
	audio := newFakeTrack(s.nextID("audio"), TrackKindAudio)
	video := newFakeTrack(s.nextID("video"), TrackKindVideo)
	s.acquiredTracks = append(s.acquiredTracks, audio, video)
	return []Track{audio, video}, nil
}

func (s *fakeSource) TrackFor(_ context.Context, kind TrackKind) (Track, error) {
	s.mut.Lock()
	defer s.mut.Unlock()
	s.trackForCalls++
	if s.trackForErr != nil {
		return nil, s.trackForErr
	}
	t := newFakeTrack(s.nextID(string(kind)), kind)
	s.acquiredTracks = append(s.acquiredTracks, t)
	return t, nil
}

func (s *fakeSource) DisplayMedia(_ context.Context) (Track, error) {
	s.mut.Lock()
	defer s.mut.Unlock()
	s.displayCalls++
	if s.displayErr != nil {
		return nil, s.displayErr
	}
	t := newFakeTrack(s.nextID("screen"), TrackKindVideo)
	s.acquiredTracks = append(s.acquiredTracks, t)
	if s.displayEnded {
		// The capture stops before anyone had a chance to register a handler.
		t.ended = true
	}
	return t, nil
}

func (s *fakeSource) calls() (userMedia, trackFor, display int) {
	s.mut.Lock()
	defer s.mut.Unlock()
	return s.userMediaCalls, s.trackForCalls, s.displayCalls
}

type fakeConn struct {
	mut       sync.Mutex
	cfg       ConnConfig
	initiator bool
	signals   [][]byte
	added     []Track
	replaced  []struct {
		oldID string
		track Track
	}
	signalErr error
	closed    bool
}

func (c *fakeConn) Signal(data []byte) error {
	c.mut.Lock()
	defer c.mut.Unlock()
	if c.signalErr != nil {
		return c.signalErr
	}
	c.signals = append(c.signals, data)
	return nil
}

func (c *fakeConn) AddTrack(t Track) error {
	c.mut.Lock()
	defer c.mut.Unlock()
	c.added = append(c.added, t)
	return nil
}

func (c *fakeConn) ReplaceTrack(oldTrackID string, t Track) error {
	c.mut.Lock()
	defer c.mut.Unlock()
	c.replaced = append(c.replaced, struct {
		oldID string
		track Track
	}{oldTrackID, t})
	return nil
}

func (c *fakeConn) Close() error {
	c.mut.Lock()
	defer c.mut.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) addedTracks() []Track {
	c.mut.Lock()
	defer c.mut.Unlock()
	return append([]Track(nil), c.added...)
}

func (c *fakeConn) replacements() []struct {
	oldID string
	track Track
} {
	c.mut.Lock()
	defer c.mut.Unlock()
	return append([]struct {
		oldID string
		track Track
	}(nil), c.replaced...)
}

type fakeFactory struct {
	mut        sync.Mutex
	conns      map[string]*fakeConn
	initiators int
	responders int
	createErr  error
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{
		conns: map[string]*fakeConn{},
	}
}

func (f *fakeFactory) NewInitiator(cfg ConnConfig) (Conn, error) {
	f.mut.Lock()
	defer f.mut.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.initiators++
	c := &fakeConn{cfg: cfg, initiator: true}
	f.conns[cfg.PeerID] = c
	return c, nil
}

func (f *fakeFactory) NewResponder(cfg ConnConfig, signal []byte) (Conn, error) {
	f.mut.Lock()
	defer f.mut.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.responders++
	c := &fakeConn{cfg: cfg}
	c.signals = append(c.signals, signal)
	f.conns[cfg.PeerID] = c
	return c, nil
}

func (f *fakeFactory) conn(peerID string) *fakeConn {
	f.mut.Lock()
	defer f.mut.Unlock()
	return f.conns[peerID]
}

func (f *fakeFactory) counts() (initiators, responders int) {
	f.mut.Lock()
	defer f.mut.Unlock()
	return f.initiators, f.responders
}

type testEnv struct {
	manager   *Manager
	transport *fakeTransport
	factory   *fakeFactory
	source    *fakeSource
}

func setupManager(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	return setupManagerCfg(t, Config{
		SiteURL:     "http://localhost:8065",
		AuthToken:   "authToken",
		UserID:      "userA",
		DisplayName: "User A",
	}, opts...)
}

func setupManagerCfg(t *testing.T, cfg Config, opts ...Option) *testEnv {
	t.Helper()

	transport := newFakeTransport()
	factory := newFakeFactory()
	source := &fakeSource{}

	m, err := NewManager(cfg, transport, factory, source, opts...)
	require.NoError(t, err)
	require.NoError(t, m.Start())

	t.Cleanup(func() {
		require.NoError(t, m.Close())
	})

	return &testEnv{
		manager:   m,
		transport: transport,
		factory:   factory,
		source:    source,
	}
}
