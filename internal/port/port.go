// Package port implements the worker's command boundary: a
// bidirectional stream of length-delimited UTF-8 JSON messages. Each
// frame is a 4-byte big-endian payload length followed by the payload.
package port

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
)

// maxFrameSize bounds a single message; anything larger is a protocol
// violation, not data.
const maxFrameSize = 8 << 20

var ErrClosed = errors.New("port: closed")

// Port frames messages over a reader/writer pair. Writes are serialized
// so events leave in the order the controller produced them.
type Port struct {
	r *bufio.Reader

	wmu sync.Mutex
	w   io.Writer
}

func New(r io.Reader, w io.Writer) *Port {
	return &Port{r: bufio.NewReader(r), w: w}
}

// ReadCommand blocks for the next inbound frame. io.EOF surfaces as
// ErrClosed; an undecodable payload returns a *BadPayloadError, and no
// req_id is recovered from it.
func (p *Port) ReadCommand() (Command, error) {
	payload, err := p.readFrame()
	if err != nil {
		return Command{}, err
	}

	var cmd Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return Command{}, &BadPayloadError{cause: err}
	}
	return cmd, nil
}

// WriteEvent frames one outbound event.
func (p *Port) WriteEvent(ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("port: marshal event: %w", err)
	}

	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))

	p.wmu.Lock()
	defer p.wmu.Unlock()
	if _, err := p.w.Write(header[:]); err != nil {
		return fmt.Errorf("port: write header: %w", err)
	}
	if _, err := p.w.Write(payload); err != nil {
		return fmt.Errorf("port: write payload: %w", err)
	}
	return nil
}

func (p *Port) readFrame() ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(p.r, header[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrClosed
		}
		return nil, fmt.Errorf("port: read header: %w", err)
	}

	size := binary.BigEndian.Uint32(header[:])
	if size > maxFrameSize {
		return nil, fmt.Errorf("port: frame of %d bytes exceeds limit", size)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(p.r, payload); err != nil {
		return nil, fmt.Errorf("port: read payload: %w", err)
	}
	return payload, nil
}

// BadPayloadError marks an inbound frame that was not valid JSON.
type BadPayloadError struct {
	cause error
}

func (e *BadPayloadError) Error() string { return "port: bad payload: " + e.cause.Error() }
func (e *BadPayloadError) Unwrap() error { return e.cause }
