package wire

import "fmt"

// Request tags (provider -> mix network client).
const (
	TagSendRequest        byte = 0x00
	TagReplyRequest       byte = 0x01
	TagSelfAddressRequest byte = 0x02
)

// Response tags (mix network client -> provider).
const (
	TagErrorResponse       byte = 0x00
	TagReceivedResponse    byte = 0x01
	TagSelfAddressResponse byte = 0x02
)

const (
	// AddressSize is the width of a mix network address (recipient or self address).
	AddressSize = 32

	// SelfAddressResponseSize is the only valid length of a self-address response frame.
	SelfAddressResponseSize = 1 + AddressSize

	lengthSize = 8
)

// Operation is the single-byte application opcode leading every message
// delivered to the provider.
type Operation byte

const (
	OpWriteFile  Operation = 0x00
	OpReadFile   Operation = 0x01
	OpDeleteFile Operation = 0x02
)

func (o Operation) String() string {
	switch o {
	case OpWriteFile:
		return "WriteFile"
	case OpReadFile:
		return "ReadFile"
	case OpDeleteFile:
		return "DeleteFile"
	default:
		return fmt.Sprintf("Operation(0x%02x)", byte(o))
	}
}

// Known reports whether o is one of the defined operations.
func (o Operation) Known() bool {
	switch o {
	case OpWriteFile, OpReadFile, OpDeleteFile:
		return true
	default:
		return false
	}
}

// Recipient is a fixed-width mix network address.
type Recipient [AddressSize]byte

// ParseRecipient copies b into a Recipient. It fails unless b is exactly
// AddressSize bytes.
func ParseRecipient(b []byte) (Recipient, error) {
	var r Recipient
	if len(b) != AddressSize {
		return r, fmt.Errorf("wire: recipient is %d bytes, want %d", len(b), AddressSize)
	}
	copy(r[:], b)
	return r, nil
}
