package wire

import "fmt"

// Request is an outbound frame: one of SelfAddressRequest, SendRequest or
// ReplyRequest.
type Request interface {
	// Encode returns the complete frame.
	Encode() []byte
	isRequest()
}

// SelfAddressRequest asks the mix network client for the provider's own address.
type SelfAddressRequest struct{}

// SendRequest sends Message to Recipient, optionally attaching a reply token
// so the recipient can answer anonymously.
type SendRequest struct {
	Recipient Recipient
	WithReply bool
	Message   []byte
}

// ReplyRequest answers a previously received message using its reply token.
type ReplyRequest struct {
	ReplyToken []byte
	Message    []byte
}

func (SelfAddressRequest) isRequest() {}
func (SendRequest) isRequest()        {}
func (ReplyRequest) isRequest()       {}

func (SelfAddressRequest) Encode() []byte { return EncodeSelfAddressRequest() }

func (r SendRequest) Encode() []byte {
	return EncodeSendRequest(r.Recipient[:], r.Message, r.WithReply)
}

func (r ReplyRequest) Encode() []byte { return EncodeReplyRequest(r.Message, r.ReplyToken) }

// EncodeSelfAddressRequest returns the one-byte self-address request frame.
func EncodeSelfAddressRequest() []byte {
	return []byte{TagSelfAddressRequest}
}

// EncodeSendRequest returns tag || reply flag || recipient || len(message) || message.
//
// recipient must be exactly AddressSize bytes; anything else is a caller bug
// and panics.
func EncodeSendRequest(recipient []byte, message []byte, withReply bool) []byte {
	if len(recipient) != AddressSize {
		panic(fmt.Sprintf("wire: recipient is %d bytes, want %d", len(recipient), AddressSize))
	}
	out := make([]byte, 0, 1+1+AddressSize+lengthSize+len(message))
	out = append(out, TagSendRequest, boolByte(withReply))
	out = append(out, recipient...)
	out = appendLength(out, len(message))
	return append(out, message...)
}

// EncodeReplyRequest returns tag || len(token) || token || len(message) || message.
func EncodeReplyRequest(message []byte, replyToken []byte) []byte {
	out := make([]byte, 0, 1+lengthSize+len(replyToken)+lengthSize+len(message))
	out = append(out, TagReplyRequest)
	out = appendLength(out, len(replyToken))
	out = append(out, replyToken...)
	out = appendLength(out, len(message))
	return append(out, message...)
}

// DecodeRequest parses an outbound frame. The provider never needs this; it
// is the mix network client's side of the protocol, used by in-process
// transports and tests.
func DecodeRequest(frame []byte) (Request, error) {
	r := reader{buf: frame}
	tag, err := r.u8("tag")
	if err != nil {
		return nil, err
	}
	switch tag {
	case TagSelfAddressRequest:
		if r.remaining() != 0 {
			return nil, malformed("self address request carries %d trailing bytes", r.remaining())
		}
		return SelfAddressRequest{}, nil

	case TagSendRequest:
		flag, err := r.u8("reply flag")
		if err != nil {
			return nil, err
		}
		withReply, err := flagBool(flag)
		if err != nil {
			return nil, err
		}
		rcpt, err := r.take(AddressSize, "recipient")
		if err != nil {
			return nil, err
		}
		n, err := r.length("message length")
		if err != nil {
			return nil, err
		}
		msg, err := r.rest(n, "message")
		if err != nil {
			return nil, err
		}
		req := SendRequest{WithReply: withReply, Message: msg}
		copy(req.Recipient[:], rcpt)
		return req, nil

	case TagReplyRequest:
		tn, err := r.length("reply token length")
		if err != nil {
			return nil, err
		}
		token, err := r.take(tn, "reply token")
		if err != nil {
			return nil, err
		}
		n, err := r.length("message length")
		if err != nil {
			return nil, err
		}
		msg, err := r.rest(n, "message")
		if err != nil {
			return nil, err
		}
		return ReplyRequest{ReplyToken: token, Message: msg}, nil

	default:
		return nil, malformed("unknown request tag 0x%02x", tag)
	}
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func flagBool(flag byte) (bool, error) {
	switch flag {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, malformed("presence flag is 0x%02x, want 0 or 1", flag)
	}
}
