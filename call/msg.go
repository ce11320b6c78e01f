// Copyright (c) 2024-present TaskFlow, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package call

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Signaling message types relayed through the room channel. The relay routes
// them by name; payloads are typed below.
const (
	ClientMessageJoinRoom        = "join_room"
	ClientMessageRingRoom        = "ring_room"
	ClientMessageAllUsers        = "all_users"
	ClientMessageSendingSignal   = "sending_signal"
	ClientMessageUserJoined      = "user_joined_signal"
	ClientMessageReturningSignal = "returning_signal"
	ClientMessageReturnedSignal  = "receiving_returned_signal"
	ClientMessageIncomingCall    = "incoming_call_notification"
	ClientMessageUserLeft        = "user_left"
	ClientMessageToggleAudio     = "user_toggle_audio"
	ClientMessageToggleVideo     = "user_toggle_video"
)

type ClientMessage struct {
	Type string      `msgpack:"type"`
	Data interface{} `msgpack:"data,omitempty"`
}

// JoinRoomData announces mesh membership for the local participant.
type JoinRoomData struct {
	RoomID  string `msgpack:"room_id"`
	UserID  string `msgpack:"user_id"`
	Name    string `msgpack:"name"`
	IsVideo bool   `msgpack:"is_video"`
}

func (d JoinRoomData) IsValid() error {
	if d.RoomID == "" {
		return fmt.Errorf("invalid RoomID value: should not be empty")
	}
	if d.UserID == "" {
		return fmt.Errorf("invalid UserID value: should not be empty")
	}
	return nil
}

// RingRoomData notifies participants that are not yet in the room.
type RingRoomData struct {
	RoomID     string `msgpack:"room_id"`
	CallerName string `msgpack:"caller_name"`
	IsVideo    bool   `msgpack:"is_video"`
}

// AllUsersData carries the roster of participants already present at join
// time. The local participant initiates a connection to each of them.
type AllUsersData struct {
	Users []string `msgpack:"users"`
}

// SendingSignalData is an initiator's negotiation signal addressed to a
// specific remote participant.
type SendingSignalData struct {
	UserToSignal string `msgpack:"user_to_signal"`
	CallerID     string `msgpack:"caller_id"`
	Signal       []byte `msgpack:"signal"`
	Name         string `msgpack:"name"`
	IsVideo      bool   `msgpack:"is_video"`
}

func (d SendingSignalData) IsValid() error {
	if d.UserToSignal == "" {
		return fmt.Errorf("invalid UserToSignal value: should not be empty")
	}
	if d.CallerID == "" {
		return fmt.Errorf("invalid CallerID value: should not be empty")
	}
	if len(d.Signal) == 0 {
		return fmt.Errorf("invalid Signal value: should not be empty")
	}
	return nil
}

// UserJoinedSignalData is received when a remote initiator signals us:
// we become the responder for that peer.
type UserJoinedSignalData struct {
	Signal   []byte `msgpack:"signal"`
	CallerID string `msgpack:"caller_id"`
	Name     string `msgpack:"name"`
	IsVideo  bool   `msgpack:"is_video"`
}

func (d UserJoinedSignalData) IsValid() error {
	if d.CallerID == "" {
		return fmt.Errorf("invalid CallerID value: should not be empty")
	}
	if len(d.Signal) == 0 {
		return fmt.Errorf("invalid Signal value: should not be empty")
	}
	return nil
}

// ReturningSignalData is the responder's signal relayed back to the
// originating initiator.
type ReturningSignalData struct {
	Signal   []byte `msgpack:"signal"`
	CallerID string `msgpack:"caller_id"`
}

// ReturnedSignalData delivers a responder's signal to the initiator's
// existing peer entry.
type ReturnedSignalData struct {
	ID     string `msgpack:"id"`
	Signal []byte `msgpack:"signal"`
}

// IncomingCallData is an out-of-room ring notification.
type IncomingCallData struct {
	RoomID     string `msgpack:"room_id"`
	CallerName string `msgpack:"caller_name"`
	IsVideo    bool   `msgpack:"is_video"`
	From       string `msgpack:"from"`
}

func (d IncomingCallData) IsValid() error {
	if d.RoomID == "" {
		return fmt.Errorf("invalid RoomID value: should not be empty")
	}
	if d.From == "" {
		return fmt.Errorf("invalid From value: should not be empty")
	}
	return nil
}

// UserLeftData announces that a single participant left the room.
type UserLeftData struct {
	UserID string `msgpack:"user_id"`
}

// ToggleData broadcasts the local mute/camera state to the room.
type ToggleData struct {
	UserID  string `msgpack:"user_id"`
	Enabled bool   `msgpack:"enabled"`
}

var _ msgpack.CustomEncoder = (*ClientMessage)(nil)

func (cm *ClientMessage) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.EncodeMulti(cm.Type, cm.Data)
}

var _ msgpack.CustomDecoder = (*ClientMessage)(nil)

func (cm *ClientMessage) DecodeMsgpack(dec *msgpack.Decoder) error {
	msgType, err := dec.DecodeString()
	if err != nil {
		return fmt.Errorf("failed to decode msg.Type: %w", err)
	}
	cm.Type = msgType

	decodeInto := func(data interface{}) error {
		if err := dec.Decode(data); err != nil {
			return fmt.Errorf("failed to decode msg.Data: %w", err)
		}
		return nil
	}

	switch cm.Type {
	case ClientMessageJoinRoom:
		var data JoinRoomData
		if err := decodeInto(&data); err != nil {
			return err
		}
		cm.Data = data
	case ClientMessageRingRoom:
		var data RingRoomData
		if err := decodeInto(&data); err != nil {
			return err
		}
		cm.Data = data
	case ClientMessageAllUsers:
		var data AllUsersData
		if err := decodeInto(&data); err != nil {
			return err
		}
		cm.Data = data
	case ClientMessageSendingSignal:
		var data SendingSignalData
		if err := decodeInto(&data); err != nil {
			return err
		}
		cm.Data = data
	case ClientMessageUserJoined:
		var data UserJoinedSignalData
		if err := decodeInto(&data); err != nil {
			return err
		}
		cm.Data = data
	case ClientMessageReturningSignal:
		var data ReturningSignalData
		if err := decodeInto(&data); err != nil {
			return err
		}
		cm.Data = data
	case ClientMessageReturnedSignal:
		var data ReturnedSignalData
		if err := decodeInto(&data); err != nil {
			return err
		}
		cm.Data = data
	case ClientMessageIncomingCall:
		var data IncomingCallData
		if err := decodeInto(&data); err != nil {
			return err
		}
		cm.Data = data
	case ClientMessageUserLeft:
		var data UserLeftData
		if err := decodeInto(&data); err != nil {
			return err
		}
		cm.Data = data
	case ClientMessageToggleAudio, ClientMessageToggleVideo:
		var data ToggleData
		if err := decodeInto(&data); err != nil {
			return err
		}
		cm.Data = data
	default:
		data, err := dec.DecodeInterface()
		if err != nil {
			return fmt.Errorf("failed to decode msg.Data: %w", err)
		}
		cm.Data = data
	}

	return nil
}

func NewClientMessage(msgType string, data interface{}) *ClientMessage {
	return &ClientMessage{
		Type: msgType,
		Data: data,
	}
}

func (cm *ClientMessage) Pack() ([]byte, error) {
	return msgpack.Marshal(&cm)
}

func (cm *ClientMessage) Unpack(data []byte) error {
	return msgpack.Unmarshal(data, &cm)
}
