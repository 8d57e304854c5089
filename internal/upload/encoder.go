// Package upload encodes a captured frame and its metadata as a single
// multipart/form-data body and posts it to the backend.
package upload

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNoFrame means there were no image bytes to send.
	ErrNoFrame = errors.New("no frame")
	// ErrFrameTooLarge means the image exceeds the configured maximum.
	ErrFrameTooLarge = errors.New("frame too large")
)

// Metadata is the text part of an upload.
type Metadata struct {
	Serial    string
	EventType string
	FileType  string
	Timestamp time.Time
}

func (m Metadata) fields() [][2]string {
	return [][2]string{
		{"serial_number", m.Serial},
		{"event_type", m.EventType},
		{"file_type", m.FileType},
		{"timestamp", m.Timestamp.UTC().Format(time.RFC3339)},
	}
}

// Encoder builds multipart bodies with a fixed boundary.
type Encoder struct {
	Boundary string
	Filename string
	MaxFrame int
}

// Payload is an encoded upload body. Body is exactly head, image, tail.
type Payload struct {
	Body        []byte
	ContentType string
	HeadLen     int
	ImageLen    int
	TailLen     int
}

// Head returns the metadata parts and the file part header.
func (e Encoder) Head(meta Metadata) string {
	var b strings.Builder
	for _, f := range meta.fields() {
		fmt.Fprintf(&b, "--%s\r\nContent-Disposition: form-data; name=\"%s\"\r\n\r\n%s\r\n", e.Boundary, f[0], f[1])
	}
	fmt.Fprintf(&b, "--%s\r\nContent-Disposition: form-data; name=\"file\"; filename=\"%s\"\r\nContent-Type: image/jpeg\r\n\r\n", e.Boundary, e.Filename)
	return b.String()
}

// Tail closes the file part and the body.
func (e Encoder) Tail() string {
	return "\r\n--" + e.Boundary + "--\r\n"
}

// ContentType is the request Content-Type for bodies from this encoder.
func (e Encoder) ContentType() string {
	return "multipart/form-data; boundary=" + e.Boundary
}

// Encode copies head, image and tail into one buffer of exactly their
// combined length. Oversized or empty frames are rejected before allocating.
func (e Encoder) Encode(meta Metadata, image []byte) (*Payload, error) {
	if len(image) == 0 {
		return nil, ErrNoFrame
	}
	if e.MaxFrame > 0 && len(image) > e.MaxFrame {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrFrameTooLarge, len(image), e.MaxFrame)
	}

	head := e.Head(meta)
	tail := e.Tail()
	total := len(head) + len(image) + len(tail)

	body := make([]byte, 0, total)
	body = append(body, head...)
	body = append(body, image...)
	body = append(body, tail...)

	return &Payload{
		Body:        body,
		ContentType: e.ContentType(),
		HeadLen:     len(head),
		ImageLen:    len(image),
		TailLen:     len(tail),
	}, nil
}
