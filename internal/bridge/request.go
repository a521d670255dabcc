package bridge

import (
	"fmt"
	"strconv"
)

// Kind names an operation of the external binary.
type Kind string

const (
	KindResize Kind = "resize"
	KindQRCode Kind = "qrcode"
)

// Operation is a single request translated into one process invocation.
type Operation interface {
	Kind() Kind
	// Validate reports ErrInvalidArgument for malformed requests.
	Validate() error
	// Args is the argument list passed to the binary.
	Args() []string
	// Payload is written to stdin. Nil means no input stream.
	Payload() []byte
}

// ResizeRequest scales Input to Width pixels wide.
type ResizeRequest struct {
	Input []byte
	Width int
}

func (r ResizeRequest) Kind() Kind { return KindResize }

func (r ResizeRequest) Validate() error {
	if r.Width <= 0 {
		return fmt.Errorf("%w: width must be positive, got %d", ErrInvalidArgument, r.Width)
	}
	if len(r.Input) == 0 {
		return fmt.Errorf("%w: resize input is empty", ErrInvalidArgument)
	}
	return nil
}

func (r ResizeRequest) Args() []string {
	return []string{"--type", string(KindResize), "--width", strconv.Itoa(r.Width)}
}

func (r ResizeRequest) Payload() []byte { return r.Input }

// QRCodeRequest encodes Content as a QR image with Code printed beneath it.
type QRCodeRequest struct {
	Content string
	Code    string
}

func (q QRCodeRequest) Kind() Kind { return KindQRCode }

func (q QRCodeRequest) Validate() error {
	if q.Content == "" {
		return fmt.Errorf("%w: qrcode content is empty", ErrInvalidArgument)
	}
	if q.Code == "" {
		return fmt.Errorf("%w: qrcode code is empty", ErrInvalidArgument)
	}
	return nil
}

func (q QRCodeRequest) Args() []string {
	return []string{"--type", string(KindQRCode), "--content", q.Content, "--code", q.Code}
}

func (q QRCodeRequest) Payload() []byte { return nil }
