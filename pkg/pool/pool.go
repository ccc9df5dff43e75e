// Object pools for the G-code output path
//
// Every emitted line is assembled in a pooled byte buffer and copied into a
// string once complete, so the per-line scratch space is reused across the
// whole job.
//
// Usage:
//
//	b := pool.GetByteBuffer()
//	defer pool.PutByteBuffer(b)
//	b.WriteString("G1")
//	b.AppendWord('X', 10.5)
//	line := b.String()
//
// Copyright (C) 2026 Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package pool

import (
	"strconv"
	"sync"
)

// maxPooledBuffer bounds the capacity kept in the pool.
const maxPooledBuffer = 4096

// ByteBuffer is a growable line buffer
type ByteBuffer struct {
	buf []byte
}

var byteBufferPool = sync.Pool{
	New: func() any {
		return &ByteBuffer{
			buf: make([]byte, 0, 64), // a typical G1 line with comment
		}
	},
}

// GetByteBuffer gets an empty byte buffer from the pool
func GetByteBuffer() *ByteBuffer {
	b := byteBufferPool.Get().(*ByteBuffer)
	b.buf = b.buf[:0]
	return b
}

// PutByteBuffer returns a byte buffer to the pool
func PutByteBuffer(b *ByteBuffer) {
	if b == nil {
		return
	}
	if cap(b.buf) > maxPooledBuffer {
		return
	}
	byteBufferPool.Put(b)
}

// String copies the buffer contents into a new string
func (b *ByteBuffer) String() string {
	return string(b.buf)
}

// WriteByte appends a single byte
func (b *ByteBuffer) WriteByte(c byte) error {
	b.buf = append(b.buf, c)
	return nil
}

// WriteString appends a string
func (b *ByteBuffer) WriteString(s string) (int, error) {
	b.buf = append(b.buf, s...)
	return len(s), nil
}

// AppendFloat appends v with three decimals, the fixed G-code precision
func (b *ByteBuffer) AppendFloat(v float64) {
	b.buf = strconv.AppendFloat(b.buf, v, 'f', 3, 64)
}

// AppendWord appends " <letter><value>" with three decimals
func (b *ByteBuffer) AppendWord(letter byte, v float64) {
	b.buf = append(b.buf, ' ', letter)
	b.AppendFloat(v)
}

// AppendAxisWord is AppendWord for a multi-character axis name
func (b *ByteBuffer) AppendAxisWord(axis string, v float64) {
	b.buf = append(b.buf, ' ')
	b.buf = append(b.buf, axis...)
	b.AppendFloat(v)
}
