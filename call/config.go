// Copyright (c) 2024-present TaskFlow, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package call

import (
	"fmt"
	"net/url"
	"strings"
)

type Config struct {
	// SiteURL is the URL of the backend the end-of-call record is posted to.
	SiteURL string
	// AuthToken is a valid user session authentication token.
	AuthToken string
	// UserID is the local participant identity.
	UserID string
	// DisplayName is the name announced to remote participants.
	DisplayName string
}

func (c *Config) Parse() error {
	if c.SiteURL == "" {
		return fmt.Errorf("invalid SiteURL value: should not be empty")
	}
	c.SiteURL = strings.TrimRight(strings.TrimSpace(c.SiteURL), "/")
	u, err := url.Parse(c.SiteURL)
	if err != nil {
		return fmt.Errorf("failed to parse SiteURL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid SiteURL scheme %q", u.Scheme)
	}

	if c.AuthToken == "" {
		return fmt.Errorf("invalid AuthToken value: should not be empty")
	}

	if c.UserID == "" {
		return fmt.Errorf("invalid UserID value: should not be empty")
	}

	return nil
}
