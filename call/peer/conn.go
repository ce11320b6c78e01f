// Copyright (c) 2024-present TaskFlow, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package peer

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/taskflow/calls/call"

	"github.com/mattermost/mattermost/server/public/shared/mlog"
	"github.com/pion/webrtc/v4"
)

const (
	signalMsgCandidate = "candidate"
	signalMsgOffer     = "offer"
	signalMsgAnswer    = "answer"

	iceChSize  = 20
	receiveMTU = 1460
)

// signalMsg is the wire format of the opaque negotiation blobs relayed by the
// session layer.
type signalMsg struct {
	Type      string                   `json:"type"`
	SDP       string                   `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit `json:"candidate,omitempty"`
}

// LocalTrackProvider is implemented by capture tracks backed by a webrtc
// local track. AddTrack requires it.
type LocalTrackProvider interface {
	WebRTCTrack() webrtc.TrackLocal
}

// Conn wraps a single webrtc.PeerConnection towards one remote participant.
type Conn struct {
	peerID string
	cfg    call.ConnConfig
	log    mlog.LoggerIFace
	pc     *webrtc.PeerConnection

	// Remote candidates cannot be added until the remote description is set,
	// so they queue here until then.
	iceCh chan webrtc.ICECandidateInit

	mut    sync.Mutex
	sndrs  map[string]*webrtc.RTPSender
	closed bool

	remoteStreamOnce sync.Once
}

func (c *Conn) setupHandlers(initiator bool) {
	c.pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate == nil {
			c.log.Debug("local ICE gathering completed", mlog.String("peerID", c.peerID))
			return
		}
		init := candidate.ToJSON()
		c.sendSignal(signalMsg{
			Type:      signalMsgCandidate,
			Candidate: &init,
		})
	})

	c.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		c.log.Debug("remote track received", mlog.String("peerID", c.peerID),
			mlog.String("kind", track.Kind().String()))

		c.remoteStreamOnce.Do(func() {
			if c.cfg.OnRemoteStream != nil {
				c.cfg.OnRemoteStream()
			}
		})

		// Media consumption is out of scope here; the track still has to be
		// drained to keep the interceptor pipeline flowing.
		go func() {
			buf := make([]byte, receiveMTU)
			for {
				if _, _, err := track.Read(buf); err != nil {
					if err != io.EOF {
						c.log.Debug("remote track read ended", mlog.String("peerID", c.peerID), mlog.Err(err))
					}
					return
				}
			}
		}()
	})

	c.pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		c.log.Debug("connection state changed", mlog.String("peerID", c.peerID),
			mlog.String("state", state.String()))
		if state == webrtc.PeerConnectionStateFailed {
			c.handleError(fmt.Errorf("peer connection failed"))
		}
	})

	if initiator {
		c.pc.OnNegotiationNeeded(func() {
			offer, err := c.pc.CreateOffer(nil)
			if err != nil {
				c.handleError(fmt.Errorf("failed to create offer: %w", err))
				return
			}
			if err := c.pc.SetLocalDescription(offer); err != nil {
				c.handleError(fmt.Errorf("failed to set local description: %w", err))
				return
			}
			c.sendSignal(signalMsg{
				Type: signalMsgOffer,
				SDP:  offer.SDP,
			})
		})
	}
}

// Signal feeds a negotiation blob received from the remote side.
func (c *Conn) Signal(data []byte) error {
	var msg signalMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("failed to unmarshal signal: %w", err)
	}

	switch msg.Type {
	case signalMsgCandidate:
		if msg.Candidate == nil {
			return fmt.Errorf("invalid candidate format found")
		}
		if c.pc.RemoteDescription() != nil {
			if err := c.pc.AddICECandidate(*msg.Candidate); err != nil {
				return fmt.Errorf("failed to add remote candidate: %w", err)
			}
			return nil
		}
		select {
		case c.iceCh <- *msg.Candidate:
		default:
			return fmt.Errorf("failed to queue candidate")
		}
	case signalMsgOffer:
		if err := c.pc.SetRemoteDescription(webrtc.SessionDescription{
			Type: webrtc.SDPTypeOffer,
			SDP:  msg.SDP,
		}); err != nil {
			return fmt.Errorf("failed to set remote description: %w", err)
		}

		if err := c.flushCandidates(); err != nil {
			return err
		}

		answer, err := c.pc.CreateAnswer(nil)
		if err != nil {
			return fmt.Errorf("failed to create answer: %w", err)
		}
		if err := c.pc.SetLocalDescription(answer); err != nil {
			return fmt.Errorf("failed to set local description: %w", err)
		}

		c.sendSignal(signalMsg{
			Type: signalMsgAnswer,
			SDP:  answer.SDP,
		})
	case signalMsgAnswer:
		if err := c.pc.SetRemoteDescription(webrtc.SessionDescription{
			Type: webrtc.SDPTypeAnswer,
			SDP:  msg.SDP,
		}); err != nil {
			return fmt.Errorf("failed to set remote description: %w", err)
		}

		if err := c.flushCandidates(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("invalid signaling msg type %q", msg.Type)
	}

	return nil
}

func (c *Conn) flushCandidates() error {
	for i := 0; i < len(c.iceCh); i++ {
		if err := c.pc.AddICECandidate(<-c.iceCh); err != nil {
			return fmt.Errorf("failed to add remote candidate: %w", err)
		}
	}
	return nil
}

// AddTrack attaches a local capture track, renegotiating as needed.
func (c *Conn) AddTrack(t call.Track) error {
	provider, ok := t.(LocalTrackProvider)
	if !ok {
		return fmt.Errorf("track %q does not provide a webrtc local track", t.ID())
	}

	sender, err := c.pc.AddTrack(provider.WebRTCTrack())
	if err != nil {
		return fmt.Errorf("failed to add track: %w", err)
	}

	c.mut.Lock()
	c.sndrs[t.ID()] = sender
	c.mut.Unlock()

	// Sent RTCP has to be drained as well.
	go func() {
		buf := make([]byte, receiveMTU)
		for {
			if _, _, err := sender.Read(buf); err != nil {
				return
			}
		}
	}()

	return nil
}

// ReplaceTrack substitutes the media source feeding the sender that currently
// carries oldTrackID, without a new handshake round. Stream identity towards
// the remote side is preserved.
func (c *Conn) ReplaceTrack(oldTrackID string, t call.Track) error {
	provider, ok := t.(LocalTrackProvider)
	if !ok {
		return fmt.Errorf("track %q does not provide a webrtc local track", t.ID())
	}

	c.mut.Lock()
	sender, ok := c.sndrs[oldTrackID]
	if !ok {
		c.mut.Unlock()
		return fmt.Errorf("no sender found for track %q", oldTrackID)
	}
	delete(c.sndrs, oldTrackID)
	c.sndrs[t.ID()] = sender
	c.mut.Unlock()

	if err := sender.ReplaceTrack(provider.WebRTCTrack()); err != nil {
		return fmt.Errorf("failed to replace track: %w", err)
	}

	return nil
}

func (c *Conn) Close() error {
	c.mut.Lock()
	if c.closed {
		c.mut.Unlock()
		return nil
	}
	c.closed = true
	c.mut.Unlock()

	return c.pc.Close()
}

func (c *Conn) sendSignal(msg signalMsg) {
	data, err := json.Marshal(&msg)
	if err != nil {
		c.handleError(fmt.Errorf("failed to marshal signal: %w", err))
		return
	}
	c.cfg.OnSignal(data)
}

func (c *Conn) handleError(err error) {
	c.mut.Lock()
	closed := c.closed
	c.mut.Unlock()
	if closed {
		return
	}

	c.log.Error("peer connection error", mlog.String("peerID", c.peerID), mlog.Err(err))
	if c.cfg.OnError != nil {
		c.cfg.OnError(err)
	}
}
