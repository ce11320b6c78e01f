// Copyright (c) 2024-present TaskFlow, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

// Package logger builds the process logger from config: a console target, a
// rotating file target, or both.
package logger

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mattermost/mattermost/server/public/shared/mlog"
)

const targetMaxQueueSize = 1000

// levelsUpTo returns every standard level at or above the given severity. An
// unknown name enables everything.
func levelsUpTo(level string) []mlog.Level {
	var levels []mlog.Level
	for _, l := range mlog.StdAll {
		levels = append(levels, l)
		if l.Name == strings.ToLower(level) {
			break
		}
	}
	return levels
}

func encoding(jsonFormat, color bool) (format string, opts json.RawMessage) {
	if jsonFormat {
		return "json", json.RawMessage(`{"enable_caller": true}`)
	}
	return "plain", json.RawMessage(fmt.Sprintf(
		`{"delim": " ", "min_level_len": 5, "min_msg_len": 45, "enable_color": %t, "enable_caller": true}`, color))
}

func consoleTarget(cfg Config) mlog.TargetCfg {
	format, formatOpts := encoding(cfg.ConsoleJSON, cfg.EnableColor)
	return mlog.TargetCfg{
		Type:          "console",
		Levels:        levelsUpTo(cfg.ConsoleLevel),
		Options:       json.RawMessage(`{"out": "stdout"}`),
		Format:        format,
		FormatOptions: formatOpts,
		MaxQueueSize:  targetMaxQueueSize,
	}
}

func fileTarget(cfg Config) (mlog.TargetCfg, error) {
	opts, err := json.Marshal(struct {
		Filename   string `json:"filename"`
		MaxSizeMB  int    `json:"max_size"`
		MaxAgeDays int    `json:"max_age"`
		MaxBackups int    `json:"max_backups"`
		Compress   bool   `json:"compress"`
	}{
		Filename:  cfg.FileLocation,
		MaxSizeMB: 100,
		Compress:  true,
	})
	if err != nil {
		return mlog.TargetCfg{}, err
	}

	format, formatOpts := encoding(cfg.FileJSON, false)
	return mlog.TargetCfg{
		Type:          "file",
		Levels:        levelsUpTo(cfg.FileLevel),
		Options:       opts,
		Format:        format,
		FormatOptions: formatOpts,
		MaxQueueSize:  targetMaxQueueSize,
	}, nil
}

// New returns a logger configured with the targets cfg enables.
func New(config Config) (*mlog.Logger, error) {
	if err := config.IsValid(); err != nil {
		return nil, err
	}

	targets := mlog.LoggerConfiguration{}
	if config.EnableConsole {
		targets["console"] = consoleTarget(config)
	}
	if config.EnableFile {
		target, err := fileTarget(config)
		if err != nil {
			return nil, fmt.Errorf("failed to build file target: %w", err)
		}
		targets["file"] = target
	}

	logger, err := mlog.NewLogger()
	if err != nil {
		return nil, err
	}
	if err := logger.ConfigureTargets(targets, nil); err != nil {
		return nil, err
	}

	return logger, nil
}
