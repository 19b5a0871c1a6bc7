package storage

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// AddressSize is the digest width of a content address in bytes.
const AddressSize = 16

// AddressHexLen is the length of the textual form of an Address.
const AddressHexLen = 2 * AddressSize

// Address is the content address of a blob: the MD5 digest of its bytes.
//
// The zero value is undefined and never names a blob. Address is comparable
// and may be used as a map key.
type Address struct {
	sum     [AddressSize]byte
	defined bool
}

// AddressOf derives the address of content. It is pure and deterministic.
func AddressOf(content []byte) Address {
	mh, err := multihash.Sum(content, multihash.MD5, -1)
	if err != nil {
		// MD5 is registered by go-multihash itself; Sum only fails for
		// unregistered codes.
		panic(fmt.Sprintf("storage: md5 multihash: %v", err))
	}
	dec, err := multihash.Decode(mh)
	if err != nil {
		panic(fmt.Sprintf("storage: decode md5 multihash: %v", err))
	}
	var a Address
	copy(a.sum[:], dec.Digest)
	a.defined = true
	return a
}

// ParseAddress parses the 32-character hex form of an address.
func ParseAddress(s string) (Address, error) {
	if len(s) != AddressHexLen {
		return Address{}, fmt.Errorf("%w: %d characters, want %d", ErrInvalidAddress, len(s), AddressHexLen)
	}
	var a Address
	if _, err := hex.Decode(a.sum[:], []byte(strings.ToLower(s))); err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	a.defined = true
	return a, nil
}

// ParseAddressBytes parses an address carried as raw message bytes
// (the ASCII hex form, as clients send it).
func ParseAddressBytes(b []byte) (Address, error) {
	return ParseAddress(string(b))
}

// Defined reports whether a names a blob.
func (a Address) Defined() bool { return a.defined }

// String returns the lowercase hex form, or "" for an undefined address.
func (a Address) String() string {
	if !a.defined {
		return ""
	}
	return hex.EncodeToString(a.sum[:])
}

// Digest returns a copy of the raw digest bytes.
func (a Address) Digest() []byte {
	out := make([]byte, AddressSize)
	copy(out, a.sum[:])
	return out
}

// CID renders the address as a CIDv1 with the raw codec and an md5 multihash.
func (a Address) CID() cid.Cid {
	if !a.defined {
		return cid.Undef
	}
	mh, err := multihash.Encode(a.sum[:], multihash.MD5)
	if err != nil {
		return cid.Undef
	}
	return cid.NewCidV1(cid.Raw, mh)
}

// Matches reports whether content hashes to a.
func (a Address) Matches(content []byte) bool {
	return a.defined && AddressOf(content) == a
}
