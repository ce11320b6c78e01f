// Copyright (c) 2024-present TaskFlow, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

// Package call implements the client-side session manager for real-time,
// multi-party calls: full-mesh peer negotiation, per-peer connection
// lifecycle, local media arbitration and the end-of-call summary record.
package call

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/taskflow/calls/ws"

	"github.com/mattermost/mattermost/server/public/shared/mlog"
	"golang.org/x/time/rate"
)

// Phase is the lifecycle state of the call session.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseRinging
	PhaseJoining
	PhaseActive
	PhaseEnded
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRinging:
		return "ringing"
	case PhaseJoining:
		return "joining"
	case PhaseActive:
		return "active"
	case PhaseEnded:
		return "ended"
	default:
		return "unknown"
	}
}

type EventType string

const (
	RingingEvent      EventType = "ringing"
	ActiveEvent       EventType = "active"
	EndedEvent        EventType = "ended"
	PeerJoinedEvent   EventType = "peer_joined"
	PeerLeftEvent     EventType = "peer_left"
	PeerStreamEvent   EventType = "peer_stream"
	PeerStateEvent    EventType = "peer_state"
	MediaBlockedEvent EventType = "media_blocked"
	ErrorEvent        EventType = "error"
	CloseEvent        EventType = "close"
)

func (e EventType) IsValid() bool {
	switch e {
	case RingingEvent, ActiveEvent, EndedEvent,
		PeerJoinedEvent, PeerLeftEvent, PeerStreamEvent, PeerStateEvent,
		MediaBlockedEvent, ErrorEvent, CloseEvent:
		return true
	default:
		return false
	}
}

type EventHandler func(ctx any) error

// CallSession is the single explicit object describing the call the local
// participant is in. It exists from Join/Answer until Leave completes.
type CallSession struct {
	RoomID        string
	IsVideo       bool
	Initiated     bool
	StartAt       time.Time
	ReachedActive bool
}

// IncomingCallRequest describes a ring received while idle.
type IncomingCallRequest struct {
	RoomID     string
	CallerName string
	IsVideo    bool
	From       string
}

// Transport is the signaling channel the manager exchanges envelopes over.
// *ws.Client satisfies it.
type Transport interface {
	Send(mt ws.MessageType, data []byte) error
	ReceiveCh() <-chan ws.Message
	ErrorCh() <-chan error
	Close() error
}

const (
	managerNew int32 = iota
	managerStarted
	managerClosed
)

const (
	acquireTimeout = 20 * time.Second
)

type Manager struct {
	cfg      Config
	log      mlog.LoggerIFace
	metrics  Metrics
	client   Transport
	factory  ConnFactory
	media    *mediaManager
	registry *registry
	reporter *reporter

	// acqLimiter bounds how often device acquisition can be re-attempted
	// through toggles.
	acqLimiter *rate.Limiter

	handlersMut sync.RWMutex
	handlers    map[EventType]EventHandler

	mut      sync.Mutex
	phase    Phase
	session  *CallSession
	incoming *IncomingCallRequest
	// generation is bumped on every teardown so late-completing device
	// acquisitions can detect they belong to a dead session.
	generation int

	state int32
	wg    sync.WaitGroup
}

type Option func(m *Manager) error

func WithLogger(log mlog.LoggerIFace) Option {
	return func(m *Manager) error {
		m.log = log
		return nil
	}
}

func WithMetrics(metrics Metrics) Option {
	return func(m *Manager) error {
		m.metrics = metrics
		return nil
	}
}

// NewManager initializes a session manager. The transport must be connected;
// Start begins consuming it.
func NewManager(cfg Config, client Transport, factory ConnFactory, src MediaSource, opts ...Option) (*Manager, error) {
	if err := cfg.Parse(); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("invalid client: should not be nil")
	}
	if factory == nil {
		return nil, fmt.Errorf("invalid factory: should not be nil")
	}
	if src == nil {
		return nil, fmt.Errorf("invalid media source: should not be nil")
	}

	m := &Manager{
		cfg:        cfg,
		client:     client,
		factory:    factory,
		registry:   newRegistry(),
		metrics:    noopMetrics{},
		acqLimiter: rate.NewLimiter(1, 5),
		handlers:   map[EventType]EventHandler{},
	}

	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if m.log == nil {
		log, err := mlog.NewLogger()
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
		m.log = log
	}

	m.media = newMediaManager(src, m.log)
	m.reporter = newReporter(cfg.SiteURL, cfg.AuthToken, m.log, m.metrics)

	return m, nil
}

// On registers a handler for the given event type. Handlers run on the
// manager's dispatch goroutine and should not block.
func (m *Manager) On(eventType EventType, handler EventHandler) {
	m.handlersMut.Lock()
	defer m.handlersMut.Unlock()
	m.handlers[eventType] = handler
}

func (m *Manager) emit(eventType EventType, ctx any) {
	m.handlersMut.RLock()
	handler := m.handlers[eventType]
	m.handlersMut.RUnlock()
	if handler == nil {
		return
	}
	if err := handler(ctx); err != nil {
		m.log.Error("event handler failed", mlog.String("event", string(eventType)), mlog.Err(err))
	}
}

// Start begins consuming the signaling transport.
func (m *Manager) Start() error {
	if !atomic.CompareAndSwapInt32(&m.state, managerNew, managerStarted) {
		return fmt.Errorf("manager has already been started")
	}
	m.wg.Add(1)
	go m.msgReader()
	return nil
}

// Close tears down any in-progress call and shuts the transport down.
func (m *Manager) Close() error {
	if !atomic.CompareAndSwapInt32(&m.state, managerStarted, managerClosed) {
		atomic.StoreInt32(&m.state, managerClosed)
		return m.client.Close()
	}

	if err := m.Leave(); err != nil && err != ErrNoCallInProgress {
		m.log.Error("failed to leave call on close", mlog.Err(err))
	}

	err := m.client.Close()
	m.wg.Wait()
	return err
}

// Phase returns the current lifecycle phase.
func (m *Manager) Phase() Phase {
	m.mut.Lock()
	defer m.mut.Unlock()
	return m.phase
}

// Peers returns the read-only rendering view of the peer set.
func (m *Manager) Peers() []PeerState {
	return m.registry.snapshot()
}

// LocalMedia returns a snapshot of the local track set.
func (m *Manager) LocalMedia() LocalMediaState {
	return m.media.state()
}

// Session returns a copy of the active call session, if any.
func (m *Manager) Session() (CallSession, bool) {
	m.mut.Lock()
	defer m.mut.Unlock()
	if m.session == nil {
		return CallSession{}, false
	}
	return *m.session, true
}

// Join starts an outbound call: announce membership, ring the room and kick
// off device acquisition. The announcement never waits on the devices; a
// participant with zero local tracks is a valid (listen-only) member.
func (m *Manager) Join(roomID string, wantsVideo bool) error {
	if roomID == "" {
		return fmt.Errorf("invalid roomID value: should not be empty")
	}

	m.mut.Lock()
	if m.phase != PhaseIdle {
		m.mut.Unlock()
		return ErrCallInProgress
	}
	m.phase = PhaseJoining
	m.session = &CallSession{
		RoomID:    roomID,
		IsVideo:   wantsVideo,
		Initiated: true,
		StartAt:   time.Now(),
	}
	gen := m.generation
	m.mut.Unlock()

	if err := m.sendMsg(ClientMessageJoinRoom, JoinRoomData{
		RoomID:  roomID,
		UserID:  m.cfg.UserID,
		Name:    m.cfg.DisplayName,
		IsVideo: wantsVideo,
	}); err != nil {
		m.abortJoin()
		return fmt.Errorf("failed to send join message: %w", err)
	}

	if err := m.sendMsg(ClientMessageRingRoom, RingRoomData{
		RoomID:     roomID,
		CallerName: m.cfg.DisplayName,
		IsVideo:    wantsVideo,
	}); err != nil {
		m.log.Error("failed to ring room", mlog.Err(err), mlog.String("roomID", roomID))
	}

	m.activate()

	go m.acquireMedia(gen, wantsVideo)

	return nil
}

// Answer accepts the pending incoming call.
func (m *Manager) Answer() error {
	m.mut.Lock()
	if m.phase != PhaseRinging || m.incoming == nil {
		m.mut.Unlock()
		return ErrNotRinging
	}
	req := *m.incoming
	m.incoming = nil
	m.phase = PhaseJoining
	m.session = &CallSession{
		RoomID:  req.RoomID,
		IsVideo: req.IsVideo,
		StartAt: time.Now(),
	}
	gen := m.generation
	m.mut.Unlock()

	if err := m.sendMsg(ClientMessageJoinRoom, JoinRoomData{
		RoomID:  req.RoomID,
		UserID:  m.cfg.UserID,
		Name:    m.cfg.DisplayName,
		IsVideo: req.IsVideo,
	}); err != nil {
		m.abortJoin()
		return fmt.Errorf("failed to send join message: %w", err)
	}

	m.activate()

	go m.acquireMedia(gen, req.IsVideo)

	return nil
}

// Reject dismisses the pending incoming call and returns to idle.
func (m *Manager) Reject() error {
	m.mut.Lock()
	if m.phase != PhaseRinging {
		m.mut.Unlock()
		return ErrNotRinging
	}
	m.incoming = nil
	m.phase = PhaseIdle
	m.mut.Unlock()

	m.emit(EndedEvent, nil)

	return nil
}

// Leave tears the session down: every peer connection is closed, every local
// track stopped, and, if the call ever became active, the summary record is
// submitted. The manager always returns to idle, whatever failed on the way.
// Leaving during a ring dismisses it: no session, peers or tracks exist yet,
// so there is nothing to tear down and no record to submit.
func (m *Manager) Leave() error {
	m.mut.Lock()
	if m.phase == PhaseRinging {
		m.incoming = nil
		m.phase = PhaseIdle
		m.mut.Unlock()
		m.emit(EndedEvent, nil)
		return nil
	}
	if m.phase != PhaseJoining && m.phase != PhaseActive {
		m.mut.Unlock()
		return ErrNoCallInProgress
	}
	m.phase = PhaseEnded
	sess := *m.session
	m.session = nil
	m.generation++
	m.mut.Unlock()

	if err := m.sendMsg(ClientMessageUserLeft, UserLeftData{UserID: m.cfg.UserID}); err != nil {
		m.log.Debug("failed to announce departure", mlog.Err(err))
	}

	for _, e := range m.registry.removeAll() {
		if err := e.conn.Close(); err != nil {
			m.log.Error("failed to close peer connection", mlog.Err(err), mlog.String("peerID", e.peerID))
		}
	}
	m.metrics.SetPeers(0)

	m.media.stopAll()

	if sess.ReachedActive {
		duration := time.Since(sess.StartAt)
		m.metrics.ObserveCallDuration(duration.Seconds())
		go m.reporter.submit(sess.RoomID, duration)
	}

	m.mut.Lock()
	m.phase = PhaseIdle
	m.mut.Unlock()

	m.emit(EndedEvent, sess)

	return nil
}

// ToggleAudio flips the local microphone. With a live track this is a pure
// flag flip; with none it performs a single acquisition attempt and, on
// success, publishes the new track to every peer.
func (m *Manager) ToggleAudio() (bool, error) {
	return m.toggleTrack(TrackKindAudio)
}

// ToggleVideo is ToggleAudio for the camera.
func (m *Manager) ToggleVideo() (bool, error) {
	return m.toggleTrack(TrackKindVideo)
}

func (m *Manager) toggleTrack(kind TrackKind) (bool, error) {
	if !m.inCall() {
		return false, ErrNoCallInProgress
	}

	op := "toggle audio"
	msgType := ClientMessageToggleAudio
	if kind == TrackKindVideo {
		op = "toggle video"
		msgType = ClientMessageToggleVideo
	}

	st := m.media.state()
	hasTrack := st.HasAudioTrack
	if kind == TrackKindVideo {
		hasTrack = st.HasVideoTrack
	}
	if !hasTrack && !m.acqLimiter.Allow() {
		err := newMediaError(op, fmt.Errorf("device acquisition attempted too frequently"), func() error {
			_, err := m.toggleTrack(kind)
			return err
		})
		m.metrics.IncMediaErrors(string(err.Code))
		m.emit(MediaBlockedEvent, err)
		return false, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), acquireTimeout)
	defer cancel()

	var enabled bool
	var acquired Track
	var err error
	if kind == TrackKindAudio {
		enabled, acquired, err = m.media.toggleAudio(ctx)
	} else {
		enabled, acquired, err = m.media.toggleVideo(ctx)
	}
	if err != nil {
		mediaErr := newMediaError(op, err, func() error {
			_, err := m.toggleTrack(kind)
			return err
		})
		m.log.Error("failed to toggle track", mlog.String("kind", string(kind)), mlog.Err(err))
		m.metrics.IncMediaErrors(string(mediaErr.Code))
		m.emit(MediaBlockedEvent, mediaErr)
		return false, mediaErr
	}

	if acquired != nil {
		m.registry.forEach(func(e *peerEntry) {
			if err := e.conn.AddTrack(acquired); err != nil {
				m.handlePeerFailure(e.peerID, fmt.Errorf("failed to add track: %w", err))
			}
		})
	}

	if err := m.sendMsg(msgType, ToggleData{UserID: m.cfg.UserID, Enabled: enabled}); err != nil {
		m.log.Debug("failed to broadcast toggle", mlog.Err(err))
	}

	return enabled, nil
}

// StartScreenShare substitutes the outgoing camera track with a screen
// capture on every peer, preserving stream identity. The camera track is kept
// aside for restoration; a video track must exist first.
func (m *Manager) StartScreenShare() error {
	if !m.inCall() {
		return ErrNoCallInProgress
	}

	ctx, cancel := context.WithTimeout(context.Background(), acquireTimeout)
	defer cancel()

	screen, oldTrackID, err := m.media.startScreenShare(ctx)
	if err != nil {
		if err == ErrNoVideoTrack {
			return err
		}
		mediaErr := newMediaError("start screen share", err, func() error {
			return m.StartScreenShare()
		})
		m.metrics.IncMediaErrors(string(mediaErr.Code))
		m.emit(MediaBlockedEvent, mediaErr)
		return mediaErr
	}

	m.replaceOnPeers(oldTrackID, screen)

	// The OS level capture surface can end the track on its own ("stop
	// sharing"); mirror that through the normal stop path. Registered after
	// the peer substitution: a track that already ended replays the handler
	// right here, so the share is unwound instead of lingering, and the
	// restore always substitutes a track the peers actually carry.
	screenID := screen.ID()
	screen.OnEnded(func() {
		if m.media.isScreenTrack(screenID) {
			if err := m.StopScreenShare(); err != nil {
				m.log.Error("failed to stop screen share on track end", mlog.Err(err))
			}
		}
	})

	return nil
}

// StopScreenShare stops the capture and restores the saved camera track on
// every peer.
func (m *Manager) StopScreenShare() error {
	if !m.inCall() {
		return ErrNoCallInProgress
	}

	camera, screenTrackID, err := m.media.stopScreenShare()
	if err != nil {
		return err
	}

	m.replaceOnPeers(screenTrackID, camera)

	return nil
}

// replaceOnPeers performs the track substitution independently per peer. A
// failure on one peer never prevents the substitution on the others.
func (m *Manager) replaceOnPeers(oldTrackID string, t Track) {
	m.registry.forEach(func(e *peerEntry) {
		if err := e.conn.ReplaceTrack(oldTrackID, t); err != nil {
			m.handlePeerFailure(e.peerID, fmt.Errorf("failed to replace track: %w", err))
		}
	})
}

func (m *Manager) inCall() bool {
	m.mut.Lock()
	defer m.mut.Unlock()
	return m.phase == PhaseJoining || m.phase == PhaseActive
}

func (m *Manager) activate() {
	m.mut.Lock()
	if m.session == nil {
		m.mut.Unlock()
		return
	}
	m.phase = PhaseActive
	m.session.ReachedActive = true
	sess := *m.session
	m.mut.Unlock()
	m.emit(ActiveEvent, sess)
}

func (m *Manager) abortJoin() {
	m.mut.Lock()
	m.phase = PhaseIdle
	m.session = nil
	m.generation++
	m.mut.Unlock()
}

// acquireMedia runs device acquisition off the join path. If the session was
// torn down while the permission prompt was pending, the freshly acquired
// tracks are stopped and discarded.
func (m *Manager) acquireMedia(gen int, wantVideo bool) {
	ctx, cancel := context.WithTimeout(context.Background(), acquireTimeout)
	defer cancel()

	tracks, err := m.media.acquire(ctx, wantVideo, func() bool {
		m.mut.Lock()
		defer m.mut.Unlock()
		return gen == m.generation && (m.phase == PhaseJoining || m.phase == PhaseActive)
	})
	if err != nil {
		mediaErr := newMediaError("acquire media", err, func() error {
			m.acquireMedia(gen, wantVideo)
			return nil
		})
		m.log.Error("failed to acquire media", mlog.Err(err))
		m.metrics.IncMediaErrors(string(mediaErr.Code))
		m.emit(MediaBlockedEvent, mediaErr)
		return
	}

	for _, t := range tracks {
		track := t
		m.registry.forEach(func(e *peerEntry) {
			if err := e.conn.AddTrack(track); err != nil {
				m.handlePeerFailure(e.peerID, fmt.Errorf("failed to add track: %w", err))
			}
		})
	}
}

func (m *Manager) msgReader() {
	defer m.wg.Done()

	receiveCh := m.client.ReceiveCh()
	errorCh := m.client.ErrorCh()

	for {
		select {
		case msg, ok := <-receiveCh:
			if !ok {
				m.emit(CloseEvent, nil)
				return
			}
			m.handleWSMsg(msg)
		case err, ok := <-errorCh:
			if !ok {
				errorCh = nil
				continue
			}
			m.log.Error("transport error", mlog.Err(err))
			m.emit(ErrorEvent, err)
		}
	}
}

func (m *Manager) handleWSMsg(msg ws.Message) {
	var cm ClientMessage
	if err := cm.Unpack(msg.Data); err != nil {
		m.log.Error("failed to unpack message", mlog.Err(err))
		return
	}

	m.metrics.IncWSMessages(cm.Type, "in")

	switch data := cm.Data.(type) {
	case IncomingCallData:
		m.handleIncomingNotification(data)
	case AllUsersData:
		m.handleAllUsers(data)
	case UserJoinedSignalData:
		m.handleUserJoined(data)
	case ReturnedSignalData:
		m.handleReturnedSignal(data)
	case UserLeftData:
		m.handleUserLeft(data)
	case ToggleData:
		kind := TrackKindAudio
		if cm.Type == ClientMessageToggleVideo {
			kind = TrackKindVideo
		}
		m.handleRemoteToggle(data, kind)
	default:
		m.log.Debug("unexpected message type", mlog.String("type", cm.Type))
	}
}

// handleIncomingNotification transitions Idle to Ringing. A ring arriving in
// any other phase is dropped: there is no call-waiting.
func (m *Manager) handleIncomingNotification(data IncomingCallData) {
	if err := data.IsValid(); err != nil {
		m.log.Error("invalid incoming call notification", mlog.Err(err))
		return
	}

	m.mut.Lock()
	if m.phase != PhaseIdle {
		phase := m.phase
		m.mut.Unlock()
		m.log.Debug("dropping incoming call notification", mlog.String("phase", phase.String()),
			mlog.String("roomID", data.RoomID))
		return
	}
	m.phase = PhaseRinging
	req := &IncomingCallRequest{
		RoomID:     data.RoomID,
		CallerName: data.CallerName,
		IsVideo:    data.IsVideo,
		From:       data.From,
	}
	m.incoming = req
	m.mut.Unlock()

	m.emit(RingingEvent, *req)
}

// handleAllUsers is the roster reply to join_room: initiate a connection to
// every participant already present.
func (m *Manager) handleAllUsers(data AllUsersData) {
	if !m.inCall() {
		m.log.Debug("dropping roster outside of call")
		return
	}

	for _, userID := range data.Users {
		if userID == m.cfg.UserID {
			continue
		}
		m.ensureInitiator(userID)
	}
}

// handleUserJoined answers an inbound signal from a (usually new) peer as the
// responder. Roster and signal arrival can interleave; the registry resolves
// both paths to a single entry and an existing entry just consumes the
// signal.
func (m *Manager) handleUserJoined(data UserJoinedSignalData) {
	if err := data.IsValid(); err != nil {
		m.log.Error("invalid user joined signal", mlog.Err(err))
		return
	}
	if !m.inCall() {
		m.log.Debug("dropping peer signal outside of call", mlog.String("peerID", data.CallerID))
		return
	}

	entry, created, err := m.registry.ensure(data.CallerID, data.Name, func() (Conn, error) {
		return m.factory.NewResponder(m.connConfig(data.CallerID, false), data.Signal)
	})
	if err != nil {
		m.log.Error("failed to create responder", mlog.Err(err), mlog.String("peerID", data.CallerID))
		m.metrics.IncNegotiationErrors()
		return
	}

	if !created {
		if err := entry.conn.Signal(data.Signal); err != nil {
			m.handlePeerFailure(data.CallerID, fmt.Errorf("failed to signal peer: %w", err))
		}
		return
	}

	m.metrics.SetPeers(m.registry.size())
	m.emit(PeerJoinedEvent, entry.state())
}

// handleReturnedSignal routes a responder's answer back into the initiating
// entry. An unknown ID means the peer was torn down while the signal was in
// flight; that is a silent no-op.
func (m *Manager) handleReturnedSignal(data ReturnedSignalData) {
	entry := m.registry.get(data.ID)
	if entry == nil {
		m.metrics.IncSignalRoutingMisses()
		m.log.Debug("no peer for returned signal", mlog.String("peerID", data.ID))
		return
	}
	if err := entry.conn.Signal(data.Signal); err != nil {
		m.handlePeerFailure(data.ID, fmt.Errorf("failed to signal peer: %w", err))
	}
}

func (m *Manager) handleUserLeft(data UserLeftData) {
	entry := m.registry.remove(data.UserID)
	if entry == nil {
		return
	}
	if err := entry.conn.Close(); err != nil {
		m.log.Error("failed to close peer connection", mlog.Err(err), mlog.String("peerID", data.UserID))
	}
	m.metrics.SetPeers(m.registry.size())
	m.emit(PeerLeftEvent, entry.state())
}

func (m *Manager) handleRemoteToggle(data ToggleData, kind TrackKind) {
	if !m.registry.setRemoteToggle(data.UserID, kind, data.Enabled) {
		return
	}
	if entry := m.registry.get(data.UserID); entry != nil {
		m.emit(PeerStateEvent, entry.state())
	}
}

// ensureInitiator inserts a peer entry originating the connection to userID.
// Duplicate roster entries resolve to the existing entry.
func (m *Manager) ensureInitiator(userID string) {
	entry, created, err := m.registry.ensure(userID, "", func() (Conn, error) {
		return m.factory.NewInitiator(m.connConfig(userID, true))
	})
	if err != nil {
		m.log.Error("failed to create initiator", mlog.Err(err), mlog.String("peerID", userID))
		m.metrics.IncNegotiationErrors()
		return
	}
	if !created {
		return
	}

	m.metrics.SetPeers(m.registry.size())
	m.emit(PeerJoinedEvent, entry.state())
}

func (m *Manager) connConfig(peerID string, initiator bool) ConnConfig {
	onSignal := func(data []byte) {
		var err error
		if initiator {
			err = m.sendMsg(ClientMessageSendingSignal, SendingSignalData{
				UserToSignal: peerID,
				CallerID:     m.cfg.UserID,
				Signal:       data,
				Name:         m.cfg.DisplayName,
				IsVideo:      m.sessionIsVideo(),
			})
		} else {
			err = m.sendMsg(ClientMessageReturningSignal, ReturningSignalData{
				Signal:   data,
				CallerID: peerID,
			})
		}
		if err != nil {
			m.log.Error("failed to relay signal", mlog.Err(err), mlog.String("peerID", peerID))
		}
	}

	return ConnConfig{
		PeerID:   peerID,
		Tracks:   m.media.tracks(),
		OnSignal: onSignal,
		OnRemoteStream: func() {
			if m.registry.setRemoteStream(peerID) {
				if entry := m.registry.get(peerID); entry != nil {
					m.emit(PeerStreamEvent, entry.state())
				}
			}
		},
		OnError: func(err error) {
			m.handlePeerFailure(peerID, err)
		},
	}
}

// handlePeerFailure drops the failed peer. Failures are isolated: the
// siblings and the session itself are unaffected.
func (m *Manager) handlePeerFailure(peerID string, err error) {
	m.log.Error("peer connection failure", mlog.Err(err), mlog.String("peerID", peerID))
	m.metrics.IncNegotiationErrors()

	entry := m.registry.remove(peerID)
	if entry == nil {
		return
	}
	if err := entry.conn.Close(); err != nil {
		m.log.Error("failed to close peer connection", mlog.Err(err), mlog.String("peerID", peerID))
	}
	m.metrics.SetPeers(m.registry.size())
	m.emit(PeerLeftEvent, entry.state())
}

func (m *Manager) sessionIsVideo() bool {
	m.mut.Lock()
	defer m.mut.Unlock()
	return m.session != nil && m.session.IsVideo
}

func (m *Manager) sendMsg(msgType string, data interface{}) error {
	cm := NewClientMessage(msgType, data)
	packed, err := cm.Pack()
	if err != nil {
		return fmt.Errorf("failed to pack message: %w", err)
	}
	m.metrics.IncWSMessages(msgType, "out")
	return m.client.Send(ws.BinaryMessage, packed)
}
