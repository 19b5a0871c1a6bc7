package provider

import (
	"errors"
	"fmt"
)

// ReadFile reply status, the first byte of every ReadFile reply.
const (
	StatusFound          byte = 0x00
	StatusNotFound       byte = 0x01
	StatusInvalidAddress byte = 0x02
	StatusStorageFailure byte = 0x03
)

// WriteFile acknowledgements.
var (
	AckOK  = []byte("OK")
	AckErr = []byte("ERR")
)

var (
	ErrUnknownOperation  = errors.New("provider: unknown operation")
	ErrMissingReplyToken = errors.New("provider: missing reply token")
	// ErrClientReported wraps the payload of an error response from the mix
	// network client.
	ErrClientReported = errors.New("provider: mix network client error")
)

// ReadReply is a decoded ReadFile reply.
type ReadReply struct {
	Status  byte
	Content []byte
}

// EncodeReadReply returns status || content.
func EncodeReadReply(status byte, content []byte) []byte {
	out := make([]byte, 0, 1+len(content))
	out = append(out, status)
	return append(out, content...)
}

// DecodeReadReply splits a ReadFile reply. Only StatusFound may carry content.
func DecodeReadReply(body []byte) (ReadReply, error) {
	if len(body) == 0 {
		return ReadReply{}, errors.New("provider: empty read reply")
	}
	r := ReadReply{Status: body[0], Content: body[1:]}
	switch r.Status {
	case StatusFound:
		return r, nil
	case StatusNotFound, StatusInvalidAddress, StatusStorageFailure:
		if len(r.Content) != 0 {
			return ReadReply{}, fmt.Errorf("provider: read reply status 0x%02x carries %d bytes", r.Status, len(r.Content))
		}
		r.Content = nil
		return r, nil
	default:
		return ReadReply{}, fmt.Errorf("provider: unknown read reply status 0x%02x", r.Status)
	}
}
