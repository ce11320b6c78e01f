// Copyright (c) 2024-present TaskFlow, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package ws

import (
	"github.com/gorilla/websocket"
)

const (
	connMaxReadBytes = 1024 * 1024 // 1MB
)

type conn struct {
	id      string
	ws      *websocket.Conn
	closeCh chan struct{}
}

func newConn(id string, ws *websocket.Conn) *conn {
	return &conn{
		id:      id,
		ws:      ws,
		closeCh: make(chan struct{}),
	}
}

func (c *conn) close() error {
	return c.ws.Close()
}
