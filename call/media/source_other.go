// Copyright (c) 2024-present TaskFlow, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

//go:build !linux || !cgo

package media

import (
	"fmt"

	"github.com/pion/mediadevices"
)

func newCodecSelector(_ Config) (*mediadevices.CodecSelector, error) {
	return mediadevices.NewCodecSelector(), nil
}

func (s *Source) getUserMedia(_, _ bool) (mediadevices.MediaStream, error) {
	return nil, fmt.Errorf("media capture is not supported on this platform")
}

func (s *Source) getDisplayMedia() (mediadevices.MediaStream, error) {
	return nil, fmt.Errorf("media capture is not supported on this platform")
}
