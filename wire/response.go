package wire

import "bytes"

// Response is an inbound frame: one of ErrorResponse, ReceivedMessage or
// SelfAddressResponse.
type Response interface {
	isResponse()
}

// ErrorResponse is reported by the mix network client when it could not
// serve a request. Its payload is kept verbatim and carries no structure.
type ErrorResponse struct {
	Payload []byte
}

// SelfAddressResponse carries the provider's own mix network address.
type SelfAddressResponse struct {
	Address Recipient
}

// ReceivedMessage is an application message delivered to the provider.
//
// ReplyToken is nil when the sender attached no reply token; when one was
// attached it is non-nil, even if empty.
type ReceivedMessage struct {
	Operation  Operation
	Payload    []byte
	ReplyToken []byte
}

// HasReplyToken reports whether the sender attached a reply token.
func (m ReceivedMessage) HasReplyToken() bool { return m.ReplyToken != nil }

// Received is a received frame before the application opcode is split off.
// Replies routed back to a client take this shape: their body does not start
// with an Operation.
type Received struct {
	Message    []byte
	ReplyToken []byte
}

func (ErrorResponse) isResponse()       {}
func (SelfAddressResponse) isResponse() {}
func (ReceivedMessage) isResponse()     {}

// DecodeResponse dispatches on the tag byte and decodes any inbound frame.
func DecodeResponse(frame []byte) (Response, error) {
	if len(frame) == 0 {
		return nil, malformed("empty frame")
	}
	switch frame[0] {
	case TagErrorResponse:
		return ErrorResponse{Payload: frame[1:]}, nil
	case TagReceivedResponse:
		return DecodeReceived(frame)
	case TagSelfAddressResponse:
		return DecodeSelfAddressResponse(frame)
	default:
		return nil, malformed("unknown response tag 0x%02x", frame[0])
	}
}

// DecodeSelfAddressResponse accepts exactly SelfAddressResponseSize bytes
// starting with TagSelfAddressResponse.
func DecodeSelfAddressResponse(frame []byte) (SelfAddressResponse, error) {
	var resp SelfAddressResponse
	if len(frame) != SelfAddressResponseSize {
		return resp, malformed("self address response is %d bytes, want %d", len(frame), SelfAddressResponseSize)
	}
	if frame[0] != TagSelfAddressResponse {
		return resp, malformed("unexpected tag 0x%02x, want self address response", frame[0])
	}
	copy(resp.Address[:], frame[1:])
	return resp, nil
}

// DecodeReceived decodes a received frame and splits the leading operation
// byte from the payload.
func DecodeReceived(frame []byte) (ReceivedMessage, error) {
	rx, err := DecodeReceivedData(frame)
	if err != nil {
		return ReceivedMessage{}, err
	}
	if len(rx.Message) == 0 {
		return ReceivedMessage{}, malformed("received message has no operation byte")
	}
	return ReceivedMessage{
		Operation:  Operation(rx.Message[0]),
		Payload:    rx.Message[1:],
		ReplyToken: rx.ReplyToken,
	}, nil
}

// DecodeReceivedData decodes a received frame without interpreting its message.
func DecodeReceivedData(frame []byte) (Received, error) {
	r := reader{buf: frame}
	tag, err := r.u8("tag")
	if err != nil {
		return Received{}, err
	}
	if tag != TagReceivedResponse {
		return Received{}, malformed("unexpected tag 0x%02x, want received", tag)
	}
	flag, err := r.u8("presence flag")
	if err != nil {
		return Received{}, err
	}
	hasToken, err := flagBool(flag)
	if err != nil {
		return Received{}, err
	}

	var out Received
	if hasToken {
		n, err := r.length("reply token length")
		if err != nil {
			return Received{}, err
		}
		if out.ReplyToken, err = r.take(n, "reply token"); err != nil {
			return Received{}, err
		}
	}
	n, err := r.length("message length")
	if err != nil {
		return Received{}, err
	}
	if out.Message, err = r.rest(n, "message"); err != nil {
		return Received{}, err
	}
	return out, nil
}

// EncodeReceived builds the inbound frame the mix network client produces
// for an application message. A nil replyToken clears the presence flag.
func EncodeReceived(op Operation, payload []byte, replyToken []byte) []byte {
	msg := make([]byte, 0, 1+len(payload))
	msg = append(msg, byte(op))
	msg = append(msg, payload...)
	return EncodeReceivedData(msg, replyToken)
}

// EncodeReceivedData builds a received frame around an opaque message.
func EncodeReceivedData(message []byte, replyToken []byte) []byte {
	out := make([]byte, 0, 2+lengthSize+len(replyToken)+lengthSize+len(message))
	out = append(out, TagReceivedResponse)
	if replyToken == nil {
		out = append(out, 0)
	} else {
		out = append(out, 1)
		out = appendLength(out, len(replyToken))
		out = append(out, replyToken...)
	}
	out = appendLength(out, len(message))
	return append(out, message...)
}

// EncodeSelfAddressResponse builds the 33-byte self address frame.
func EncodeSelfAddressResponse(addr Recipient) []byte {
	out := make([]byte, 0, SelfAddressResponseSize)
	out = append(out, TagSelfAddressResponse)
	return append(out, addr[:]...)
}

// EncodeErrorResponse builds an error frame carrying payload verbatim.
func EncodeErrorResponse(payload []byte) []byte {
	return append([]byte{TagErrorResponse}, payload...)
}

// Equal reports whether two received messages carry the same operation,
// payload and reply token, treating a nil token as distinct from an empty one.
func (m ReceivedMessage) Equal(o ReceivedMessage) bool {
	if m.Operation != o.Operation || !bytes.Equal(m.Payload, o.Payload) {
		return false
	}
	if m.HasReplyToken() != o.HasReplyToken() {
		return false
	}
	return bytes.Equal(m.ReplyToken, o.ReplyToken)
}
