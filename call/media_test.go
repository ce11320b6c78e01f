// Copyright (c) 2024-present TaskFlow, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package call

import (
	"context"
	"testing"

	"github.com/mattermost/mattermost/server/public/shared/mlog"
	"github.com/stretchr/testify/require"
)

func setupMediaManager(t *testing.T) (*mediaManager, *fakeSource) {
	t.Helper()
	log, err := mlog.NewLogger()
	require.NoError(t, err)
	src := &fakeSource{}
	return newMediaManager(src, log), src
}

func TestMediaManagerAcquire(t *testing.T) {
	t.Run("video join enables both tracks", func(t *testing.T) {
		mm, _ := setupMediaManager(t)

		tracks, err := mm.acquire(context.Background(), true, nil)
		require.NoError(t, err)
		require.Len(t, tracks, 2)

		st := mm.state()
		require.True(t, st.HasAudioTrack)
		require.True(t, st.HasVideoTrack)
		require.True(t, st.AudioEnabled)
		require.True(t, st.VideoEnabled)
	})

	t.Run("audio join keeps the camera track disabled", func(t *testing.T) {
		mm, _ := setupMediaManager(t)

		tracks, err := mm.acquire(context.Background(), false, nil)
		require.NoError(t, err)
		require.Len(t, tracks, 2)

		st := mm.state()
		require.True(t, st.HasVideoTrack)
		require.False(t, st.VideoEnabled)

		for _, tr := range tracks {
			if tr.Kind() == TrackKindVideo {
				require.False(t, tr.Enabled())
			}
		}
	})

	t.Run("invalid result is stopped and dropped", func(t *testing.T) {
		mm, src := setupMediaManager(t)

		tracks, err := mm.acquire(context.Background(), true, func() bool { return false })
		require.NoError(t, err)
		require.Empty(t, tracks)

		st := mm.state()
		require.False(t, st.HasAudioTrack)
		require.False(t, st.HasVideoTrack)

		src.mut.Lock()
		defer src.mut.Unlock()
		for _, tr := range src.acquiredTracks {
			require.True(t, tr.isStopped())
		}
	})

	t.Run("repeat acquisition discards duplicates", func(t *testing.T) {
		mm, src := setupMediaManager(t)

		first, err := mm.acquire(context.Background(), true, nil)
		require.NoError(t, err)
		tracks, err := mm.acquire(context.Background(), true, nil)
		require.NoError(t, err)
		require.Empty(t, tracks)

		src.mut.Lock()
		defer src.mut.Unlock()
		require.Len(t, src.acquiredTracks, 4)
		for _, tr := range src.acquiredTracks[2:] {
			require.True(t, tr.isStopped())
		}
		_ = first
	})
}

func TestMediaManagerToggle(t *testing.T) {
	t.Run("flip is synchronous", func(t *testing.T) {
		mm, src := setupMediaManager(t)
		_, err := mm.acquire(context.Background(), false, nil)
		require.NoError(t, err)

		enabled, acquired, err := mm.toggleAudio(context.Background())
		require.NoError(t, err)
		require.Nil(t, acquired)
		require.False(t, enabled)

		enabled, _, err = mm.toggleVideo(context.Background())
		require.NoError(t, err)
		require.True(t, enabled)

		userMedia, trackFor, _ := src.calls()
		require.Equal(t, 1, userMedia)
		require.Zero(t, trackFor)
	})

	t.Run("missing track acquires once", func(t *testing.T) {
		mm, src := setupMediaManager(t)

		enabled, acquired, err := mm.toggleAudio(context.Background())
		require.NoError(t, err)
		require.True(t, enabled)
		require.NotNil(t, acquired)
		require.Equal(t, TrackKindAudio, acquired.Kind())

		_, trackFor, _ := src.calls()
		require.Equal(t, 1, trackFor)
	})

	t.Run("acquisition failure propagates", func(t *testing.T) {
		mm, src := setupMediaManager(t)
		src.trackForErr = ErrPermissionDenied

		_, _, err := mm.toggleVideo(context.Background())
		require.ErrorIs(t, err, ErrPermissionDenied)
		require.False(t, mm.state().HasVideoTrack)
	})
}

func TestMediaManagerScreenShare(t *testing.T) {
	t.Run("requires a video track", func(t *testing.T) {
		mm, _ := setupMediaManager(t)

		_, _, err := mm.startScreenShare(context.Background())
		require.ErrorIs(t, err, ErrNoVideoTrack)
	})

	t.Run("save and restore round trip", func(t *testing.T) {
		mm, _ := setupMediaManager(t)
		_, err := mm.acquire(context.Background(), true, nil)
		require.NoError(t, err)

		camBefore := mm.tracks()[1]

		screen, oldID, err := mm.startScreenShare(context.Background())
		require.NoError(t, err)
		require.Equal(t, camBefore.ID(), oldID)
		require.True(t, mm.state().ScreenShareActive)

		// Double start is rejected while a share is active.
		_, _, err = mm.startScreenShare(context.Background())
		require.Error(t, err)

		camera, screenID, err := mm.stopScreenShare()
		require.NoError(t, err)
		require.Equal(t, screen.ID(), screenID)
		require.Equal(t, camBefore.ID(), camera.ID())
		require.False(t, mm.state().ScreenShareActive)
		require.True(t, screen.(*fakeTrack).isStopped())
		require.False(t, camera.(*fakeTrack).isStopped())

		_, _, err = mm.stopScreenShare()
		require.Error(t, err)
	})

	t.Run("track end before registration is replayed", func(t *testing.T) {
		mm, src := setupMediaManager(t)
		_, err := mm.acquire(context.Background(), true, nil)
		require.NoError(t, err)

		src.mut.Lock()
		src.displayEnded = true
		src.mut.Unlock()

		screen, _, err := mm.startScreenShare(context.Background())
		require.NoError(t, err)

		// The capture stopped before anyone could register a handler; the
		// registration replays the end instead of losing it.
		var fired int
		screen.OnEnded(func() {
			fired++
		})
		require.Equal(t, 1, fired)
	})
}

func TestMediaManagerStopAll(t *testing.T) {
	mm, src := setupMediaManager(t)
	_, err := mm.acquire(context.Background(), true, nil)
	require.NoError(t, err)
	_, _, err = mm.startScreenShare(context.Background())
	require.NoError(t, err)

	mm.stopAll()

	st := mm.state()
	require.False(t, st.HasAudioTrack)
	require.False(t, st.HasVideoTrack)
	require.False(t, st.ScreenShareActive)

	src.mut.Lock()
	defer src.mut.Unlock()
	for _, tr := range src.acquiredTracks {
		require.True(t, tr.isStopped())
	}
}
