package link

import (
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"go.bug.st/serial"
)

// Port is a Link over a byte stream such as a UART. Reads must return
// promptly (a serial read timeout) for TryRecv to stay non-blocking.
type Port struct {
	rw     io.ReadWriter
	legacy bool
	dec    *Decoder
	queue  []Message
	buf    []byte
}

// NewPort wraps rw.
func NewPort(rw io.ReadWriter, legacy bool) *Port {
	return &Port{
		rw:     rw,
		legacy: legacy,
		dec:    NewDecoder(legacy),
		buf:    make([]byte, 256),
	}
}

// Send writes one message. A nil error only means the bytes reached the wire.
func (p *Port) Send(m Message) error {
	if _, err := p.rw.Write(Encode(m, p.legacy)); err != nil {
		return fmt.Errorf("link write %s: %w", m.Kind, err)
	}
	return nil
}

// TryRecv returns a queued message, reading once from the stream if the
// queue is empty.
func (p *Port) TryRecv() (Message, bool) {
	if len(p.queue) == 0 {
		n, err := p.rw.Read(p.buf)
		if n > 0 {
			p.queue = append(p.queue, p.dec.Feed(p.buf[:n])...)
		}
		if err != nil && !errors.Is(err, io.EOF) {
			log.Printf("link: read error: %v", err)
		}
	}
	if len(p.queue) == 0 {
		return Message{}, false
	}
	m := p.queue[0]
	p.queue = p.queue[1:]
	return m, true
}

// SerialPort is an open UART carrying a Port.
type SerialPort struct {
	*Port
	port serial.Port
}

// OpenSerial opens a UART at 8N1 with a short read timeout.
func OpenSerial(name string, baud int, legacy bool, readTimeout time.Duration) (*SerialPort, error) {
	sp, err := serial.Open(name, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", name, err)
	}
	if err := sp.SetReadTimeout(readTimeout); err != nil {
		sp.Close()
		return nil, fmt.Errorf("set read timeout: %w", err)
	}
	return &SerialPort{Port: NewPort(sp, legacy), port: sp}, nil
}

// Close releases the UART.
func (s *SerialPort) Close() error {
	return s.port.Close()
}
