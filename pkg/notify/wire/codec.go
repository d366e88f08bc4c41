// Copyright 2026 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
package wire

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// MaxFrameSize bounds a single encoded frame, newline included.
const MaxFrameSize = 64 * 1024

// room for a handful of descriptors per read
const oobSize = 4 * 64

var (
	ErrFrameTooLarge  = errors.New("frame exceeds maximum size")
	ErrMalformedFrame = errors.New("malformed frame")
)

// Encoder writes frames, one per line. Safe for concurrent use.
type Encoder struct {
	mu   sync.Mutex
	conn io.Writer
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{conn: w}
}

// Encode writes v as a single line.
func (e *Encoder) Encode(v interface{}) error {
	line, err := marshalLine(v)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	_, err = e.conn.Write(line)
	return errors.Wrap(err, "cannot write frame")
}

// EncodeWithRights writes v as a single line carrying fds as SCM_RIGHTS.
// The underlying writer must be a *net.UnixConn.
func (e *Encoder) EncodeWithRights(v interface{}, fds ...int) error {
	conn, ok := e.conn.(*net.UnixConn)
	if !ok {
		return errors.New("descriptor passing requires a unix connection")
	}
	line, err := marshalLine(v)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	n, oobn, err := conn.WriteMsgUnix(line, unix.UnixRights(fds...), nil)
	if err != nil {
		return errors.Wrap(err, "cannot write frame with rights")
	}
	if n != len(line) || oobn == 0 {
		return errors.Errorf("short write: %d/%d bytes, %d oob", n, len(line), oobn)
	}
	return nil
}

func marshalLine(v interface{}) ([]byte, error) {
	line, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "cannot encode frame")
	}
	line = append(line, '\n')
	if len(line) > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}
	return line, nil
}

// Decoder reads frames written by an Encoder. Not safe for concurrent use.
type Decoder struct {
	r *bufio.Reader
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReaderSize(r, 4096)}
}

// Decode reads the next line into v. io.EOF is returned unwrapped.
func (d *Decoder) Decode(v interface{}) error {
	line, err := readLine(d.r)
	if err != nil {
		return err
	}
	return errors.Wrap(json.Unmarshal(line, v), "cannot decode frame")
}

func readLine(r *bufio.Reader) ([]byte, error) {
	var line []byte
	for {
		chunk, isPrefix, err := r.ReadLine()
		if err != nil {
			if err == io.EOF && len(line) > 0 {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
		line = append(line, chunk...)
		if len(line) >= MaxFrameSize {
			return nil, ErrFrameTooLarge
		}
		if !isPrefix {
			return line, nil
		}
	}
}

// RequestReader reads requests from a Unix connection, collecting descriptors
// passed alongside them. Rights always arrive no later than the bytes of the
// request they were sent with, so popping descriptors in request order pairs
// each descriptor with its register request.
type RequestReader struct {
	conn *net.UnixConn
	buf  []byte
	fds  []int
}

func NewRequestReader(conn *net.UnixConn) *RequestReader {
	return &RequestReader{conn: conn}
}

// Next returns the next request. io.EOF signals an orderly close.
func (rr *RequestReader) Next() (Request, error) {
	var req Request
	for {
		if i := bytes.IndexByte(rr.buf, '\n'); i >= 0 {
			line := rr.buf[:i]
			rr.buf = rr.buf[i+1:]
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}
			if err := json.Unmarshal(line, &req); err != nil {
				return req, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
			}
			return req, nil
		}
		if len(rr.buf) >= MaxFrameSize {
			return req, ErrFrameTooLarge
		}
		if err := rr.fill(); err != nil {
			if err == io.EOF && len(rr.buf) > 0 {
				return req, io.ErrUnexpectedEOF
			}
			return req, err
		}
	}
}

func (rr *RequestReader) fill() error {
	data := make([]byte, 4096)
	oob := make([]byte, unix.CmsgSpace(oobSize))
	n, oobn, _, _, err := rr.conn.ReadMsgUnix(data, oob)
	if oobn > 0 {
		rr.fds = append(rr.fds, parseRights(oob[:oobn])...)
	}
	if n > 0 {
		rr.buf = append(rr.buf, data[:n]...)
		return nil
	}
	if err != nil {
		return err
	}
	return io.EOF
}

func parseRights(oob []byte) []int {
	msgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return nil
	}
	var fds []int
	for _, msg := range msgs {
		rights, err := unix.ParseUnixRights(&msg)
		if err != nil {
			continue
		}
		fds = append(fds, rights...)
	}
	return fds
}

// TakeFD pops the oldest descriptor received and not yet claimed.
func (rr *RequestReader) TakeFD() (int, bool) {
	if len(rr.fds) == 0 {
		return -1, false
	}
	fd := rr.fds[0]
	rr.fds = rr.fds[1:]
	return fd, true
}

// Close releases descriptors nobody claimed.
func (rr *RequestReader) Close() {
	for _, fd := range rr.fds {
		_ = unix.Close(fd)
	}
	rr.fds = nil
}
