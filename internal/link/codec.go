package link

import "bytes"

// maxLine bounds a partial envelope; longer garbage is discarded.
const maxLine = 128

// Encode returns the wire form of m: "K:id\n", "K\n" without an id, or the
// bare kind byte in legacy mode.
func Encode(m Message, legacy bool) []byte {
	if legacy {
		return []byte{byte(m.Kind)}
	}
	if m.ID == "" {
		return []byte{byte(m.Kind), '\n'}
	}
	out := make([]byte, 0, len(m.ID)+3)
	out = append(out, byte(m.Kind), ':')
	out = append(out, m.ID...)
	return append(out, '\n')
}

// Decoder turns a byte stream back into messages. Unknown bytes and
// malformed lines are skipped.
type Decoder struct {
	legacy bool
	buf    []byte
}

// NewDecoder creates a decoder for the given wire mode.
func NewDecoder(legacy bool) *Decoder {
	return &Decoder{legacy: legacy}
}

// Feed consumes p and returns every complete message in it.
func (d *Decoder) Feed(p []byte) []Message {
	if d.legacy {
		var out []Message
		for _, b := range p {
			if k := Kind(b); k.valid() {
				out = append(out, Message{Kind: k})
			}
		}
		return out
	}

	d.buf = append(d.buf, p...)
	var out []Message
	for {
		i := bytes.IndexByte(d.buf, '\n')
		if i < 0 {
			break
		}
		line := bytes.TrimRight(d.buf[:i], "\r")
		d.buf = d.buf[i+1:]
		if m, ok := parseLine(line); ok {
			out = append(out, m)
		}
	}
	if len(d.buf) > maxLine {
		d.buf = d.buf[:0]
	}
	return out
}

func parseLine(line []byte) (Message, bool) {
	if len(line) == 0 {
		return Message{}, false
	}
	k := Kind(line[0])
	if !k.valid() {
		return Message{}, false
	}
	if len(line) == 1 {
		return Message{Kind: k}, true
	}
	if line[1] != ':' || len(line) == 2 {
		return Message{}, false
	}
	return Message{Kind: k, ID: string(line[2:])}, true
}
