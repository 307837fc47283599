/*
Package jsonfast offers a minimal JSON builder for the event wire format.
Builders are reusable: Reset keeps the buffer, so a pooled builder encodes
without growing once warmed up.
*/
package jsonfast

import (
	"encoding/base64"
	"strconv"
)

// Builder is a minimal JSON builder that operates on a reusable byte slice.
// It appends directly into the buffer and only supports flat objects with
// known field sets, which is all the event wire format needs.
type Builder struct {
	buf    []byte
	opened bool
	first  bool
}

// New creates a new builder with initial capacity.
func New(capacity int) *Builder {
	if capacity <= 0 {
		capacity = 256
	}
	return &Builder{
		buf:   make([]byte, 0, capacity),
		first: true,
	}
}

// Reset clears the builder for reuse.
func (b *Builder) Reset() {
	b.buf = b.buf[:0]
	b.opened = false
	b.first = true
}

// Bytes returns the underlying buffer (do not modify after use).
func (b *Builder) Bytes() []byte {
	return b.buf
}

// Len returns the number of bytes written so far.
func (b *Builder) Len() int {
	return len(b.buf)
}

// Copy returns a copy of the buffer that stays valid after Reset.
func (b *Builder) Copy() []byte {
	out := make([]byte, len(b.buf))
	copy(out, b.buf)
	return out
}

// BeginObject starts a JSON object.
func (b *Builder) BeginObject() {
	b.buf = append(b.buf, '{')
	b.opened = true
	b.first = true
}

// EndObject ends a JSON object.
func (b *Builder) EndObject() {
	b.buf = append(b.buf, '}')
	b.opened = false
}

// AddStringField adds a "name":"value" string field with escaping.
func (b *Builder) AddStringField(name, value string) {
	b.key(name)
	b.buf = append(b.buf, '"')
	b.escapeString(value)
	b.buf = append(b.buf, '"')
}

// AddInt64Field adds a "name":int field.
func (b *Builder) AddInt64Field(name string, v int64) {
	b.key(name)
	b.buf = strconv.AppendInt(b.buf, v, 10)
}

// AddBoolField adds a "name":true|false field.
func (b *Builder) AddBoolField(name string, v bool) {
	b.key(name)
	b.buf = strconv.AppendBool(b.buf, v)
}

// AddBase64Field adds a "name":"<std base64>" field, the same representation
// encoding/json uses for []byte.
func (b *Builder) AddBase64Field(name string, data []byte) {
	b.key(name)
	b.buf = append(b.buf, '"')
	b.buf = base64.StdEncoding.AppendEncode(b.buf, data)
	b.buf = append(b.buf, '"')
}

func (b *Builder) key(name string) {
	b.sep()
	b.buf = append(b.buf, '"')
	b.escapeString(name)
	b.buf = append(b.buf, '"', ':')
}

func (b *Builder) sep() {
	if !b.opened {
		b.BeginObject()
		b.first = false
		return
	}
	if b.first {
		b.first = false
		return
	}
	b.buf = append(b.buf, ',')
}

// escapeString escapes JSON special characters.
func (b *Builder) escapeString(s string) {
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\', '"':
			b.buf = append(b.buf, '\\', c)
		case '\b':
			b.buf = append(b.buf, '\\', 'b')
		case '\f':
			b.buf = append(b.buf, '\\', 'f')
		case '\n':
			b.buf = append(b.buf, '\\', 'n')
		case '\r':
			b.buf = append(b.buf, '\\', 'r')
		case '\t':
			b.buf = append(b.buf, '\\', 't')
		default:
			if c < 0x20 {
				b.buf = append(b.buf, '\\', 'u', '0', '0', hex[c>>4], hex[c&0x0f])
			} else {
				b.buf = append(b.buf, c)
			}
		}
	}
}

var hex = "0123456789abcdef"
