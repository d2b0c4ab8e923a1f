package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
)

// WebSocket message types from client.
const (
	MsgTypeJoin       = "join"
	MsgTypeLeave      = "leave"
	MsgTypeStart      = "start"
	MsgTypeStop       = "stop"
	MsgTypeVideoFrame = "video_frame"
	MsgTypeAudioChunk = "audio_chunk"
	MsgTypeAudioPCM   = "audio_pcm_chunk"
	MsgTypeReaction   = "reaction"
)

// WebSocket message types to client.
const (
	MsgTypeHeaderReplay  = "header_replay"
	MsgTypeStreamStarted = "stream_started"
	MsgTypeStreamStopped = "stream_stopped"
	MsgTypeAudioAck      = "audio_ack"
	MsgTypeError         = "error"
)

// Error codes
const (
	ErrCodeBadRequest    = "BAD_REQUEST"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// Ack statuses
const (
	AckStatusSuccess = "success"
	AckStatusError   = "error"
)

// DefaultAudioMimeType is assumed when a chunk declares no mime type.
const DefaultAudioMimeType = "audio/webm"

// EventID is an event identifier on the wire. Clients send it either as a
// JSON string or as a number; both decode to the string form the hub keys
// rooms by.
type EventID string

func (id *EventID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = EventID(s)
		return nil
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return errors.New("event_id must be a string or integer")
	}
	*id = EventID(strconv.FormatInt(n, 10))
	return nil
}

func (id EventID) String() string { return string(id) }

// BaseMessage is the base structure for all WebSocket messages.
type BaseMessage struct {
	Type string `json:"type"`
}

// Client -> Server messages

type JoinMessage struct {
	Type    string  `json:"type"`
	EventID EventID `json:"event_id"`
}

type LeaveMessage struct {
	Type    string  `json:"type"`
	EventID EventID `json:"event_id"`
}

type StartMessage struct {
	Type    string  `json:"type"`
	EventID EventID `json:"event_id"`
}

type StopMessage struct {
	Type    string  `json:"type"`
	EventID EventID `json:"event_id"`
}

type VideoFrameMessage struct {
	Type    string  `json:"type"`
	EventID EventID `json:"event_id"`
	Image   string  `json:"image"`
}

type AudioChunkMessage struct {
	Type      string  `json:"type"`
	EventID   EventID `json:"event_id"`
	Audio     string  `json:"audio"`
	MimeType  string  `json:"mime_type"`
	Timestamp int64   `json:"timestamp"`
}

// AudioPCMMessage carries raw uncompressed samples. The sample payload is
// relayed verbatim, so it stays an opaque JSON value.
type AudioPCMMessage struct {
	Type    string          `json:"type"`
	EventID EventID         `json:"event_id"`
	Samples json.RawMessage `json:"samples"`
}

type ReactionMessage struct {
	Type    string  `json:"type"`
	EventID EventID `json:"event_id"`
	Emoji   string  `json:"emoji"`
}

// Server -> Client messages

type AudioChunkOut struct {
	Type      string  `json:"type"`
	EventID   EventID `json:"event_id"`
	Audio     string  `json:"audio"`
	MimeType  string  `json:"mime_type"`
	Timestamp int64   `json:"timestamp"`
}

// HeaderReplayMessage carries the cached first chunk of a stream to a
// connection that joined mid-stream.
type HeaderReplayMessage struct {
	Type      string  `json:"type"`
	EventID   EventID `json:"event_id"`
	Audio     string  `json:"audio"`
	MimeType  string  `json:"mime_type"`
	Timestamp int64   `json:"timestamp"`
	IsHeader  bool    `json:"is_header"`
}

type VideoFrameOut struct {
	Type    string  `json:"type"`
	EventID EventID `json:"event_id"`
	Image   string  `json:"image"`
}

type AudioPCMOut struct {
	Type    string          `json:"type"`
	EventID EventID         `json:"event_id"`
	Samples json.RawMessage `json:"samples"`
}

type ReactionOut struct {
	Type    string  `json:"type"`
	EventID EventID `json:"event_id"`
	Emoji   string  `json:"emoji"`
}

type StreamStartedMessage struct {
	Type    string  `json:"type"`
	EventID EventID `json:"event_id"`
}

type StreamStoppedMessage struct {
	Type    string  `json:"type"`
	EventID EventID `json:"event_id"`
}

// AckMessage is the point-to-point acknowledgement returned to the sender of
// an audio chunk. It is never broadcast.
type AckMessage struct {
	Type    string `json:"type"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

func NewAck() *AckMessage {
	return &AckMessage{Type: MsgTypeAudioAck, Status: AckStatusSuccess}
}

func NewAckError(message string) *AckMessage {
	return &AckMessage{Type: MsgTypeAudioAck, Status: AckStatusError, Message: message}
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewErrorMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{
		Type:    MsgTypeError,
		Code:    code,
		Message: message,
	}
}
