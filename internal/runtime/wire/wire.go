// Package wire implements the framing shared by the stream transports. A
// frame is a uint32 little-endian length prefix followed by a JSON body, the
// same shape the native messaging host speaks on stdio.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/supportcompanion/companion/internal/runtime/errors"
	"github.com/supportcompanion/companion/internal/runtime/jsoncodec"
)

// MaxFrameSize caps a single frame body. Native messaging hosts reject
// messages above 1MB in the host-bound direction; the same limit is applied
// everywhere for symmetry.
const MaxFrameSize = 1024 * 1024

// Conn moves opaque frames across a channel. Implementations must allow one
// concurrent reader and one concurrent writer.
type Conn interface {
	ReadFrame() ([]byte, error)
	WriteFrame(data []byte) error
	Close() error
}

// WriteJSON encodes v and writes it as a single frame.
func WriteJSON(c Conn, v any) error {
	data, err := jsoncodec.Marshal(v)
	if err != nil {
		return err
	}
	return c.WriteFrame(data)
}

// ReadJSON reads a single frame and decodes it into v.
func ReadJSON(c Conn, v any) error {
	data, err := c.ReadFrame()
	if err != nil {
		return err
	}
	return jsoncodec.Unmarshal(data, v)
}

type streamConn struct {
	rwc     io.ReadWriteCloser
	readMu  sync.Mutex
	writeMu sync.Mutex
}

// NewStreamConn wraps a byte stream (a socket, a subprocess stdio pair) with
// length-prefixed framing.
func NewStreamConn(rwc io.ReadWriteCloser) Conn {
	return &streamConn{rwc: rwc}
}

func (s *streamConn) ReadFrame() ([]byte, error) {
	s.readMu.Lock()
	defer s.readMu.Unlock()

	var header [4]byte
	if _, err := io.ReadFull(s.rwc, header[:]); err != nil {
		return nil, err
	}
	size := binary.LittleEndian.Uint32(header[:])
	if size > MaxFrameSize {
		return nil, fmt.Errorf("%w: %d bytes", errors.ErrFrameTooLarge, size)
	}
	body := make([]byte, size)
	if _, err := io.ReadFull(s.rwc, body); err != nil {
		return nil, err
	}
	return body, nil
}

func (s *streamConn) WriteFrame(data []byte) error {
	if len(data) > MaxFrameSize {
		return fmt.Errorf("%w: %d bytes", errors.ErrFrameTooLarge, len(data))
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var header [4]byte
	binary.LittleEndian.PutUint32(header[:], uint32(len(data)))
	if _, err := s.rwc.Write(header[:]); err != nil {
		return err
	}
	_, err := s.rwc.Write(data)
	return err
}

func (s *streamConn) Close() error {
	return s.rwc.Close()
}

type pipeConn struct {
	in   <-chan []byte
	out  chan<- []byte
	done chan struct{}
	once *sync.Once
}

// Pipe returns two in-memory connections wired back to back. Frames written
// on one side are read on the other, in order. Used by tests and by the
// in-process channel transport.
func Pipe() (Conn, Conn) {
	ab := make(chan []byte, 16)
	ba := make(chan []byte, 16)
	done := make(chan struct{})
	once := new(sync.Once)
	a := &pipeConn{in: ba, out: ab, done: done, once: once}
	b := &pipeConn{in: ab, out: ba, done: done, once: once}
	return a, b
}

func (p *pipeConn) ReadFrame() ([]byte, error) {
	select {
	case data, ok := <-p.in:
		if !ok {
			return nil, errors.ErrConnClosed
		}
		return data, nil
	case <-p.done:
		return nil, errors.ErrConnClosed
	}
}

func (p *pipeConn) WriteFrame(data []byte) error {
	buf := make([]byte, len(data))
	copy(buf, data)
	select {
	case <-p.done:
		return errors.ErrConnClosed
	default:
	}
	select {
	case p.out <- buf:
		return nil
	case <-p.done:
		return errors.ErrConnClosed
	}
}

func (p *pipeConn) Close() error {
	p.once.Do(func() { close(p.done) })
	return nil
}
