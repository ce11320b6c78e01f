// Copyright (c) 2024-present TaskFlow, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// echoServer upgrades incoming requests and echoes every message back.
func echoServer(t *testing.T, authToken string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if authToken != "" {
			fields := strings.Fields(r.Header.Get("Authorization"))
			if len(fields) != 2 || fields[1] != authToken {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
		}
		c, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer c.Close()
		for {
			mt, data, err := c.ReadMessage()
			if err != nil {
				return
			}
			if err := c.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
}

func wsURL(s *httptest.Server) string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func TestNewClient(t *testing.T) {
	s := echoServer(t, "")
	defer s.Close()

	t.Run("invalid config", func(t *testing.T) {
		c, err := NewClient(ClientConfig{})
		require.Error(t, err)
		require.Nil(t, c)
	})

	t.Run("valid config", func(t *testing.T) {
		c, err := NewClient(ClientConfig{URL: wsURL(s)})
		require.NoError(t, err)
		require.NotNil(t, c)
		require.NoError(t, c.Close())
	})

	t.Run("dial failure", func(t *testing.T) {
		c, err := NewClient(ClientConfig{URL: "ws://127.0.0.1:1/ws"})
		require.Error(t, err)
		require.Nil(t, c)
	})
}

func TestClientAuth(t *testing.T) {
	s := echoServer(t, "topsecret")
	defer s.Close()

	t.Run("auth failure", func(t *testing.T) {
		c, err := NewClient(ClientConfig{
			URL:       wsURL(s),
			AuthToken: "invalid",
			AuthType:  BearerClientAuthType,
		})
		require.Error(t, err)
		require.Nil(t, c)
	})

	t.Run("auth success", func(t *testing.T) {
		c, err := NewClient(ClientConfig{
			URL:       wsURL(s),
			AuthToken: "topsecret",
			AuthType:  BearerClientAuthType,
		})
		require.NoError(t, err)
		require.NotNil(t, c)
		require.NoError(t, c.Close())
	})
}

func TestClientSendReceive(t *testing.T) {
	s := echoServer(t, "")
	defer s.Close()

	c, err := NewClient(ClientConfig{URL: wsURL(s)})
	require.NoError(t, err)
	defer c.Close()

	err = c.Send(BinaryMessage, []byte("signaling data"))
	require.NoError(t, err)

	select {
	case msg, ok := <-c.ReceiveCh():
		require.True(t, ok)
		require.Equal(t, BinaryMessage, msg.Type)
		require.Equal(t, []byte("signaling data"), msg.Data)
	case <-time.After(2 * time.Second):
		require.FailNow(t, "timed out waiting for message")
	}
}

func TestClientSendOnClosed(t *testing.T) {
	s := echoServer(t, "")

	c, err := NewClient(ClientConfig{URL: wsURL(s)})
	require.NoError(t, err)
	require.NoError(t, c.Close())
	s.Close()

	err = c.Send(TextMessage, []byte("data"))
	require.Error(t, err)
}

func TestClientConfigIsValid(t *testing.T) {
	tcs := []struct {
		name string
		cfg  ClientConfig
		err  string
	}{
		{
			name: "empty URL",
			cfg:  ClientConfig{},
			err:  "invalid URL value: should not be empty",
		},
		{
			name: "bad scheme",
			cfg:  ClientConfig{URL: "http://localhost/ws"},
			err:  `invalid URL value: should start with "ws://" or "wss://"`,
		},
		{
			name: "bad conn id",
			cfg:  ClientConfig{URL: "ws://localhost/ws", ConnID: "short"},
			err:  "invalid ConnID value: should be 26 characters long",
		},
		{
			name: "missing auth type",
			cfg:  ClientConfig{URL: "ws://localhost/ws", AuthToken: "token"},
			err:  "invalid AuthType value",
		},
		{
			name: "valid",
			cfg:  ClientConfig{URL: "wss://localhost/ws", AuthToken: "token", AuthType: BearerClientAuthType},
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.IsValid()
			if tc.err != "" {
				require.EqualError(t, err, tc.err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
