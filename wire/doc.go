// Package wire implements the binary framing exchanged with the mix network client.
//
// A frame is one complete message, prefixed by a single tag byte. Outbound
// frames (requests sent by the provider to its local client) and inbound
// frames (responses delivered by the client) use separate tag spaces.
//
// Outbound:
//
//	self address  [0x02]
//	send          [0x00][reply_flag:1][recipient:32][len:8][message:len]
//	reply         [0x01][token_len:8][token:token_len][len:8][message:len]
//
// Inbound:
//
//	error         [0x00] + unstructured payload
//	received      [0x01][flag:1]{flag=1: [token_len:8][token]}[len:8][message:len]
//	self address  [0x02][address:32]   (exactly 33 bytes)
//
// All length fields are unsigned 64-bit big-endian and must describe the
// following bytes exactly. Decoding never tolerates truncation or trailing
// bytes: a declared length that disagrees with the bytes present is
// reported as KindLengthMismatch, any other structural defect as
// KindMalformedFrame.
//
// The package is pure: no I/O, no state. Decoded slices alias the input frame.
package wire
