// Copyright (c) 2024-present TaskFlow, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

// callagent is a headless call participant: it connects to the signaling
// relay, joins a room (or waits for incoming calls) and takes part in the
// media mesh like any other client.
package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/taskflow/calls/call"
	"github.com/taskflow/calls/call/media"
	"github.com/taskflow/calls/call/peer"
	"github.com/taskflow/calls/logger"
	"github.com/taskflow/calls/perf"
	"github.com/taskflow/calls/ws"

	"github.com/mattermost/mattermost/server/public/shared/mlog"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config/config.toml", "Path to the configuration file for the call agent.")
	flag.Parse()

	cfg, err := loadConfig(configPath)
	if err != nil {
		log.Fatalf("callagent: failed to load config: %s", err.Error())
	}
	cfg.SetDefaults()
	if err := cfg.IsValid(); err != nil {
		log.Fatalf("callagent: failed to validate config: %s", err.Error())
	}

	logr, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("callagent: failed to create logger: %s", err.Error())
	}
	defer func() {
		if err := logr.Shutdown(); err != nil {
			log.Printf("callagent: failed to shutdown logger: %s", err.Error())
		}
	}()

	metrics := perf.NewMetrics("callagent", nil)
	if cfg.MetricsAddr != "" {
		go func() {
			if err := http.ListenAndServe(cfg.MetricsAddr, metrics.Handler()); err != nil {
				logr.Error("metrics server failed", mlog.Err(err))
			}
		}()
	}

	src, err := media.NewSource(cfg.Media, logr)
	if err != nil {
		logr.Fatal("failed to create media source", mlog.Err(err))
	}

	factory, err := peer.NewFactory(peer.FactoryConfig{
		ICEServers:  cfg.ICEServers,
		EngineSetup: src.PopulateEngine,
	}, logr)
	if err != nil {
		logr.Fatal("failed to create peer factory", mlog.Err(err))
	}

	wsClient, err := ws.NewClient(ws.ClientConfig{
		URL:       cfg.WSURL,
		AuthToken: cfg.AuthToken,
		AuthType:  ws.BearerClientAuthType,
	})
	if err != nil {
		logr.Fatal("failed to create ws client", mlog.Err(err))
	}

	manager, err := call.NewManager(call.Config{
		SiteURL:     cfg.SiteURL,
		AuthToken:   cfg.AuthToken,
		UserID:      cfg.UserID,
		DisplayName: cfg.DisplayName,
	}, wsClient, factory, src, call.WithLogger(logr), call.WithMetrics(metrics))
	if err != nil {
		logr.Fatal("failed to create session manager", mlog.Err(err))
	}

	manager.On(call.RingingEvent, func(ctx any) error {
		req, _ := ctx.(call.IncomingCallRequest)
		logr.Info("incoming call", mlog.String("roomID", req.RoomID), mlog.String("caller", req.CallerName))
		if cfg.AutoAnswer {
			return manager.Answer()
		}
		return nil
	})

	manager.On(call.ActiveEvent, func(ctx any) error {
		sess, _ := ctx.(call.CallSession)
		logr.Info("call is active", mlog.String("roomID", sess.RoomID))
		return nil
	})

	manager.On(call.EndedEvent, func(_ any) error {
		logr.Info("call ended")
		return nil
	})

	manager.On(call.MediaBlockedEvent, func(ctx any) error {
		if mediaErr, ok := ctx.(*call.MediaError); ok {
			logr.Warn("media blocked", mlog.String("code", string(mediaErr.Code)), mlog.Err(mediaErr))
		}
		return nil
	})

	if err := manager.Start(); err != nil {
		logr.Fatal("failed to start session manager", mlog.Err(err))
	}

	if cfg.RoomID != "" {
		if err := manager.Join(cfg.RoomID, cfg.Video); err != nil {
			logr.Fatal("failed to join room", mlog.Err(err), mlog.String("roomID", cfg.RoomID))
		}
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	if err := manager.Close(); err != nil {
		logr.Error("failed to close session manager", mlog.Err(err))
	}
}
