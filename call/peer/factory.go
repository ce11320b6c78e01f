// Copyright (c) 2024-present TaskFlow, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

// Package peer implements the media connection capability on top of
// pion/webrtc. The session layer drives it exclusively through the call.Conn
// and call.ConnFactory contracts and never sees SDP or ICE internals.
package peer

import (
	"fmt"
	"time"

	"github.com/taskflow/calls/call"

	"github.com/mattermost/mattermost/server/public/shared/mlog"
	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"
)

type FactoryConfig struct {
	// ICEServers are the STUN/TURN urls used for connectivity establishment.
	ICEServers []string
	// EngineSetup registers the codecs the local capture pipeline encodes to.
	// When nil the default codec set is registered instead.
	EngineSetup func(*webrtc.MediaEngine) error
}

func (c *FactoryConfig) SetDefaults() {
	if len(c.ICEServers) == 0 {
		c.ICEServers = []string{"stun:stun.l.google.com:19302"}
	}
}

// Factory creates peer connections off a single shared API object. Sharing
// the API is required to manage multiple connections in one application.
type Factory struct {
	cfg FactoryConfig
	log mlog.LoggerIFace
	api *webrtc.API
}

func NewFactory(cfg FactoryConfig, log mlog.LoggerIFace) (*Factory, error) {
	if log == nil {
		return nil, fmt.Errorf("log should not be nil")
	}
	cfg.SetDefaults()

	mediaEngine := &webrtc.MediaEngine{}
	if cfg.EngineSetup != nil {
		if err := cfg.EngineSetup(mediaEngine); err != nil {
			return nil, fmt.Errorf("failed to setup media engine: %w", err)
		}
	} else {
		if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
			return nil, fmt.Errorf("failed to register codecs: %w", err)
		}
	}

	interceptorRegistry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, interceptorRegistry); err != nil {
		return nil, fmt.Errorf("failed to register interceptors: %w", err)
	}

	// The default disconnectedTimeout is too aggressive for relay paths that
	// can have short outages during re-keying or failover.
	settingEngine := webrtc.SettingEngine{}
	settingEngine.SetICETimeouts(30*time.Second, 120*time.Second, 2*time.Second)

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(mediaEngine),
		webrtc.WithInterceptorRegistry(interceptorRegistry),
		webrtc.WithSettingEngine(settingEngine),
	)

	return &Factory{
		cfg: cfg,
		log: log,
		api: api,
	}, nil
}

// NewInitiator originates a connection. The first offer is generated as soon
// as negotiation is needed and handed to cfg.OnSignal.
func (f *Factory) NewInitiator(cfg call.ConnConfig) (call.Conn, error) {
	return f.newConn(cfg, true, nil)
}

// NewResponder answers an inbound offer from a remote initiator.
func (f *Factory) NewResponder(cfg call.ConnConfig, signal []byte) (call.Conn, error) {
	c, err := f.newConn(cfg, false, signal)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (f *Factory) newConn(cfg call.ConnConfig, initiator bool, signal []byte) (call.Conn, error) {
	if err := cfg.IsValid(); err != nil {
		return nil, fmt.Errorf("failed to validate config: %w", err)
	}

	iceServers := make([]webrtc.ICEServer, 0, len(f.cfg.ICEServers))
	for _, u := range f.cfg.ICEServers {
		iceServers = append(iceServers, webrtc.ICEServer{URLs: []string{u}})
	}

	pc, err := f.api.NewPeerConnection(webrtc.Configuration{
		ICEServers: iceServers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	c := &Conn{
		peerID: cfg.PeerID,
		cfg:    cfg,
		log:    f.log,
		pc:     pc,
		iceCh:  make(chan webrtc.ICECandidateInit, iceChSize),
		sndrs:  map[string]*webrtc.RTPSender{},
	}

	c.setupHandlers(initiator)

	for _, t := range cfg.Tracks {
		if err := c.AddTrack(t); err != nil {
			_ = pc.Close()
			return nil, fmt.Errorf("failed to add track: %w", err)
		}
	}

	if initiator && len(cfg.Tracks) == 0 {
		// A listener-only initiator still needs transceivers, both to receive
		// remote media and to have something to negotiate at all.
		for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeAudio, webrtc.RTPCodecTypeVideo} {
			if _, err := pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
				Direction: webrtc.RTPTransceiverDirectionRecvonly,
			}); err != nil {
				_ = pc.Close()
				return nil, fmt.Errorf("failed to add transceiver: %w", err)
			}
		}
	}

	if !initiator {
		if err := c.Signal(signal); err != nil {
			_ = pc.Close()
			return nil, fmt.Errorf("failed to process initial signal: %w", err)
		}
	}

	return c, nil
}
