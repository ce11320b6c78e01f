// Copyright (c) 2024-present TaskFlow, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package main

import (
	"fmt"
	"strings"

	"github.com/taskflow/calls/call/media"
	"github.com/taskflow/calls/logger"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
)

type config struct {
	// SiteURL is the URL of the backend the agent authenticates against and
	// posts call records to.
	SiteURL string `toml:"site_url"`
	// WSURL is the signaling endpoint. Derived from SiteURL when empty.
	WSURL string `toml:"ws_url"`
	// AuthToken is a valid session token for the agent's user.
	AuthToken string `toml:"auth_token"`
	// UserID is the agent's participant identity.
	UserID string `toml:"user_id"`
	// DisplayName is the name announced to other participants.
	DisplayName string `toml:"display_name"`
	// RoomID makes the agent join the given room at startup. When empty the
	// agent idles and answers incoming calls instead.
	RoomID string `toml:"room_id"`
	// Video enables camera capture when joining.
	Video bool `toml:"video"`
	// AutoAnswer makes the agent accept incoming calls while idle.
	AutoAnswer bool `toml:"auto_answer"`
	// ICEServers are the STUN/TURN urls handed to the peer layer.
	ICEServers []string `toml:"ice_servers"`
	// MetricsAddr, when set, exposes Prometheus metrics on that address.
	MetricsAddr string `toml:"metrics_addr"`

	Media  media.Config  `toml:"media"`
	Logger logger.Config `toml:"logger"`
}

func (c *config) SetDefaults() {
	if c.WSURL == "" && c.SiteURL != "" {
		wsURL := strings.TrimRight(strings.TrimSpace(c.SiteURL), "/")
		wsURL = strings.Replace(wsURL, "https://", "wss://", 1)
		wsURL = strings.Replace(wsURL, "http://", "ws://", 1)
		c.WSURL = wsURL + "/ws"
	}
	if c.DisplayName == "" {
		c.DisplayName = "Call Agent"
	}
	c.Media.SetDefaults()
	if c.Logger == (logger.Config{}) {
		c.Logger.SetDefaults()
	}
}

func (c config) IsValid() error {
	if c.SiteURL == "" {
		return fmt.Errorf("invalid SiteURL value: should not be empty")
	}
	if c.WSURL == "" {
		return fmt.Errorf("invalid WSURL value: should not be empty")
	}
	if c.AuthToken == "" {
		return fmt.Errorf("invalid AuthToken value: should not be empty")
	}
	if c.UserID == "" {
		return fmt.Errorf("invalid UserID value: should not be empty")
	}
	if err := c.Media.IsValid(); err != nil {
		return fmt.Errorf("failed to validate media config: %w", err)
	}
	if err := c.Logger.IsValid(); err != nil {
		return fmt.Errorf("failed to validate logger config: %w", err)
	}
	return nil
}

// loadConfig reads the config file and overrides values with any
// corresponding environment variables.
func loadConfig(path string) (config, error) {
	var cfg config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to decode config file: %w", err)
	}
	if err := envconfig.Process("callagent", &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
