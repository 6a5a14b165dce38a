package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType names both commands and responses on the wire.
type MessageType string

// Commands.
const (
	ListAuctions  MessageType = "LIST_AUCTIONS"
	PlaceBid      MessageType = "PLACE_BID"
	CreateAuction MessageType = "CREATE_AUCTION"
)

// Responses. LIST_AUCTIONS doubles as the pushed broadcast.
const (
	AuctionList             MessageType = "LIST_AUCTIONS"
	ErrorListAuctions       MessageType = "ERROR_LIST_AUCTIONS"
	BidAccepted             MessageType = "BID_ACCEPTED"
	BidRejected             MessageType = "BID_REJECTED"
	AuctionCreationAccepted MessageType = "AUCTION_CREATION_ACCEPTED"
	AuctionCreationRejected MessageType = "AUCTION_CREATION_REJECTED"
	Error                   MessageType = "ERROR"
)

var ErrEmptyMessage = errors.New("empty message")

// Envelope wraps every line (TCP) or text frame (WebSocket).
type Envelope struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope encodes data as the envelope body.
func NewEnvelope(t MessageType, data any) (Envelope, error) {
	if data == nil {
		return Envelope{Type: t}, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s body: %w", t, err)
	}
	return Envelope{Type: t, Data: raw}, nil
}

// TextEnvelope builds an envelope whose body is a bare JSON string.
func TextEnvelope(t MessageType, text string) Envelope {
	raw, _ := json.Marshal(text) // a string always encodes
	return Envelope{Type: t, Data: raw}
}

// Text returns the body when it is a JSON string.
func (e Envelope) Text() (string, bool) {
	var s string
	if err := json.Unmarshal(e.Data, &s); err != nil {
		return "", false
	}
	return s, true
}

// Decode parses one inbound line.
func Decode(line []byte) (Envelope, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return Envelope{}, ErrEmptyMessage
	}
	var env Envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return Envelope{}, fmt.Errorf("malformed message: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, errors.New("malformed message: missing type")
	}
	return env, nil
}

// Encode renders env without a trailing line break.
func Encode(env Envelope) ([]byte, error) {
	return json.Marshal(env)
}
