package wire

import "encoding/binary"

// reader walks a frame front to back. Every accessor fails with
// KindMalformedFrame rather than reading past the end.
type reader struct {
	buf []byte
	off int
}

func (r *reader) remaining() int { return len(r.buf) - r.off }

func (r *reader) u8(what string) (byte, error) {
	if r.remaining() < 1 {
		return 0, malformed("frame ends before %s", what)
	}
	b := r.buf[r.off]
	r.off++
	return b, nil
}

func (r *reader) length(what string) (uint64, error) {
	if r.remaining() < lengthSize {
		return 0, malformed("frame ends before %s (need %d bytes, have %d)", what, lengthSize, r.remaining())
	}
	n := binary.BigEndian.Uint64(r.buf[r.off:])
	r.off += lengthSize
	return n, nil
}

// take returns the next n bytes. The result is never nil, so an empty
// field read from the frame is distinguishable from an absent one.
func (r *reader) take(n uint64, what string) ([]byte, error) {
	if n > uint64(r.remaining()) {
		return nil, malformed("%s declares %d bytes, only %d remain", what, n, r.remaining())
	}
	end := r.off + int(n)
	b := r.buf[r.off:end:end]
	r.off = end
	return b, nil
}

// rest consumes the remaining bytes after checking they number exactly n.
func (r *reader) rest(n uint64, what string) ([]byte, error) {
	if n != uint64(r.remaining()) {
		return nil, lengthMismatch("%s declares %d bytes, frame carries %d", what, n, r.remaining())
	}
	return r.take(n, what)
}

func appendLength(dst []byte, n int) []byte {
	return binary.BigEndian.AppendUint64(dst, uint64(n))
}
