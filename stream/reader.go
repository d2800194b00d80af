package stream

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"
)

// MaxLineSize bounds a single line of the stream.
const MaxLineSize = 1 << 20

type readerState int

const (
	// between records
	stateIdle readerState = iota
	// "event:" seen, collecting data lines
	stateNamed
)

// Reader is a line-oriented state machine over an event stream.
type Reader struct {
	br   *bufio.Reader
	line int

	state readerState
	name  string
	data  []string

	// a CR ended the previous line; a following LF belongs to it
	skipLF bool
	eof    bool
}

// NewReader returns a Reader decoding events from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReader(r)}
}

// Next returns the next complete event. It returns io.EOF once the stream is
// exhausted and a *ProtocolError for malformed input. A record still open at
// end of stream is returned as if it had been terminated.
func (r *Reader) Next() (Event, error) {
	for {
		if r.eof {
			if r.state == stateNamed {
				return r.emit(), nil
			}
			return Event{}, io.EOF
		}

		line, err := r.readLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				r.eof = true
				if line == "" {
					continue
				}
			} else {
				return Event{}, err
			}
		}

		ev, ok, perr := r.feed(line)
		if perr != nil {
			return Event{}, perr
		}
		if ok {
			return ev, nil
		}
	}
}

// feed advances the state machine by one line.
func (r *Reader) feed(line string) (Event, bool, error) {
	if line == "" {
		if r.state == stateNamed {
			return r.emit(), true, nil
		}
		return Event{}, false, nil
	}

	// comments carry keep-alive pings
	if strings.HasPrefix(line, ":") {
		return Event{}, false, nil
	}

	field, value, found := strings.Cut(line, ":")
	if !found {
		return Event{}, false, r.protocolError("line has no field separator")
	}
	value = strings.TrimPrefix(value, " ")

	switch field {
	case "event":
		name := strings.TrimSpace(value)
		if name == "" {
			return Event{}, false, r.protocolError("empty event name")
		}
		// a new name without a blank line first closes the open record
		if r.state == stateNamed {
			ev := r.emit()
			r.name = name
			r.state = stateNamed
			return ev, true, nil
		}
		r.name = name
		r.state = stateNamed
	case "data":
		if r.state != stateNamed {
			return Event{}, false, r.protocolError("data before event name")
		}
		r.data = append(r.data, value)
	case "id", "retry":
		// accepted and ignored
	default:
		return Event{}, false, r.protocolError("unknown field " + quote(field))
	}
	return Event{}, false, nil
}

func (r *Reader) emit() Event {
	ev := Event{Name: r.name, Data: strings.Join(r.data, "\n")}
	r.state = stateIdle
	r.name = ""
	r.data = nil
	return ev
}

func (r *Reader) protocolError(reason string) *ProtocolError {
	return &ProtocolError{Line: r.line, Event: r.name, Reason: reason}
}

// readLine reads up to the next LF, CRLF or CR. The terminator is dropped.
// At end of stream it returns the partial line together with io.EOF.
func (r *Reader) readLine() (string, error) {
	var buf bytes.Buffer
	for {
		b, err := r.br.ReadByte()
		if err != nil {
			if buf.Len() > 0 {
				r.line++
			}
			return buf.String(), err
		}
		if r.skipLF {
			r.skipLF = false
			if b == '\n' {
				continue
			}
		}
		switch b {
		case '\n':
			r.line++
			return buf.String(), nil
		case '\r':
			r.skipLF = true
			r.line++
			return buf.String(), nil
		}
		if buf.Len() >= MaxLineSize {
			r.line++
			return "", &ProtocolError{Line: r.line, Event: r.name, Reason: "line exceeds maximum size"}
		}
		buf.WriteByte(b)
	}
}

func quote(s string) string {
	if len(s) > 32 {
		s = s[:32] + "..."
	}
	return "\"" + s + "\""
}
