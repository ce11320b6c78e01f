// Copyright (c) 2024-present TaskFlow, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package call

import (
	"errors"
	"fmt"
)

var (
	// ErrPermissionDenied marks a device permission refusal. MediaSource
	// implementations wrap it so the session can classify the failure.
	ErrPermissionDenied = errors.New("media permission denied")

	ErrNoCallInProgress = errors.New("no call in progress")
	ErrCallInProgress   = errors.New("a call is already in progress")
	ErrNotRinging       = errors.New("no incoming call to act on")
	ErrNoVideoTrack     = errors.New("no video track to substitute")
)

type MediaErrorCode string

const (
	// MediaPermissionDenied: device permission refused. Recoverable, the
	// session continues with reduced or no media.
	MediaPermissionDenied MediaErrorCode = "MediaPermissionDenied"
	// MediaDeviceError: device unavailable or hardware failure.
	MediaDeviceError MediaErrorCode = "MediaDeviceError"
)

// MediaError is the recoverable condition surfaced to the UI layer when a
// capture attempt fails. Retry is bound to the exact operation that failed;
// invoking it reproduces the identical attempt.
type MediaError struct {
	Code  MediaErrorCode
	Op    string
	Cause error
	Retry func() error
}

func (e *MediaError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, e.Cause.Error())
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Code)
}

func (e *MediaError) Unwrap() error {
	return e.Cause
}

func newMediaError(op string, cause error, retry func() error) *MediaError {
	code := MediaDeviceError
	if errors.Is(cause, ErrPermissionDenied) {
		code = MediaPermissionDenied
	}
	return &MediaError{
		Code:  code,
		Op:    op,
		Cause: cause,
		Retry: retry,
	}
}
