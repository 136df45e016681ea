// Package cursor implements the rewindable byte cursor (C1) that every other
// RTMP ingest component reads from. It wraps a growable buffer with a single
// read position and never blocks: a read that runs past the buffered bytes
// reports itself as short instead of erroring, so callers can rewind and wait
// for more bytes from the next Feed.
package cursor

import (
	"encoding/binary"
	"fmt"
)

// ErrShortRead describes a read that wanted more bytes than remain. The
// primitive reads on Cursor do not return it: they report a short read through
// their bool result and leave the position unchanged.
type ErrShortRead struct {
	Want int
	Have int
}

func (e *ErrShortRead) Error() string {
	return fmt.Sprintf("cursor: short read: want %d bytes, have %d", e.Want, e.Have)
}

// Cursor is a rewindable reader over an append-only byte buffer. It is not
// safe for concurrent use; each RTMP connection owns exactly one.
type Cursor struct {
	buf []byte
	pos int
}

// New creates an empty cursor.
func New() *Cursor { return &Cursor{} }

// Feed appends newly-received bytes to the cursor's backing buffer.
func (c *Cursor) Feed(b []byte) {
	if len(b) == 0 {
		return
	}
	c.buf = append(c.buf, b...)
}

// Len returns the total number of bytes currently buffered (read + unread).
func (c *Cursor) Len() int { return len(c.buf) }

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int { return len(c.buf) - c.pos }

// Position returns the current read offset.
func (c *Cursor) Position() int { return c.pos }

// SetPosition rewinds or fast-forwards the read offset. Used by callers that
// detected a short read and need to retry a whole packet from its start.
func (c *Cursor) SetPosition(p int) {
	if p < 0 {
		p = 0
	}
	if p > len(c.buf) {
		p = len(c.buf)
	}
	c.pos = p
}

// Compact discards every byte before the current position, so the backing
// array does not grow without bound across a long-lived connection.
func (c *Cursor) Compact() {
	if c.pos == 0 {
		return
	}
	n := copy(c.buf, c.buf[c.pos:])
	c.buf = c.buf[:n]
	c.pos = 0
}

// Peek returns exactly n unread bytes without advancing the position, or
// false when fewer than n remain. The
// returned slice aliases the cursor's internal buffer and must not be
// retained past the next Feed/Compact call.
func (c *Cursor) Peek(n int) ([]byte, bool) {
	if c.Remaining() < n {
		return nil, false
	}
	return c.buf[c.pos : c.pos+n], true
}

// PeekByte returns the next unread byte without consuming it.
func (c *Cursor) PeekByte() (byte, bool) {
	if c.Remaining() < 1 {
		return 0, false
	}
	return c.buf[c.pos], true
}

// Skip advances the position by n bytes. Reports false (without moving) if
// fewer than n bytes remain.
func (c *Cursor) Skip(n int) bool {
	if c.Remaining() < n {
		return false
	}
	c.pos += n
	return true
}

// ReadU8 reads a single unsigned byte.
func (c *Cursor) ReadU8() (byte, bool) {
	if c.Remaining() < 1 {
		return 0, false
	}
	v := c.buf[c.pos]
	c.pos++
	return v, true
}

// ReadU16BE reads a big-endian 16-bit unsigned integer.
func (c *Cursor) ReadU16BE() (uint16, bool) {
	if c.Remaining() < 2 {
		return 0, false
	}
	v := binary.BigEndian.Uint16(c.buf[c.pos:])
	c.pos += 2
	return v, true
}

// ReadU24BE reads a big-endian 24-bit unsigned integer (as used by RTMP
// chunk timestamps and message lengths).
func (c *Cursor) ReadU24BE() (uint32, bool) {
	if c.Remaining() < 3 {
		return 0, false
	}
	v := uint32(c.buf[c.pos])<<16 | uint32(c.buf[c.pos+1])<<8 | uint32(c.buf[c.pos+2])
	c.pos += 3
	return v, true
}

// ReadI32BE reads a big-endian signed 32-bit integer.
func (c *Cursor) ReadI32BE() (int32, bool) {
	v, ok := c.ReadU32BE()
	return int32(v), ok
}

// ReadU32BE reads a big-endian unsigned 32-bit integer.
func (c *Cursor) ReadU32BE() (uint32, bool) {
	if c.Remaining() < 4 {
		return 0, false
	}
	v := binary.BigEndian.Uint32(c.buf[c.pos:])
	c.pos += 4
	return v, true
}

// ReadU32LE reads a little-endian unsigned 32-bit integer. RTMP calls this
// the "reverse int" encoding and uses it exclusively for message stream ids.
func (c *Cursor) ReadU32LE() (uint32, bool) {
	if c.Remaining() < 4 {
		return 0, false
	}
	v := binary.LittleEndian.Uint32(c.buf[c.pos:])
	c.pos += 4
	return v, true
}

// ReadBytes reads n raw bytes and returns an owned copy (never an alias into
// the cursor's backing buffer) so callers may retain the result past the
// next Feed/Compact.
func (c *Cursor) ReadBytes(n int) ([]byte, bool) {
	if n == 0 {
		return []byte{}, true
	}
	if c.Remaining() < n {
		return nil, false
	}
	out := make([]byte, n)
	copy(out, c.buf[c.pos:c.pos+n])
	c.pos += n
	return out, true
}

// Mark returns a token that Reset can rewind to; equivalent to Position but
// named for call-site clarity around save/restore pairs.
func (c *Cursor) Mark() int { return c.pos }

// Reset rewinds the position to a mark previously returned by Mark/Position.
func (c *Cursor) Reset(mark int) { c.SetPosition(mark) }
