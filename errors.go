package tcpsub

import (
	"context"
	"io"
	"net"
	"syscall"

	"github.com/pkg/errors"
)

// Error kinds returned by Reader operations. Match them with errors.Is.
var (
	// ErrConnect is returned when the target cannot be dialed.
	ErrConnect = errors.New("connect failed")
	// ErrStreamClosed is returned when the peer ends the stream before a read completes.
	ErrStreamClosed = errors.New("stream closed by peer")
	// ErrIO wraps any other transport fault.
	ErrIO = errors.New("i/o error")
	// ErrUnsupportedType is returned when the codec cannot decode into the requested type.
	// No bytes are read from the stream.
	ErrUnsupportedType = errors.New("unsupported decode type")
	// ErrDecode is returned when a frame was read but its payload does not decode.
	// The frame is consumed.
	ErrDecode = errors.New("decode failed")
	// ErrClosed is returned when operating on a closed Reader.
	ErrClosed = errors.New("reader closed")
	// ErrFrameTooLarge is returned when a payload does not fit a 16-bit length header.
	ErrFrameTooLarge = errors.New("frame too large")
)

// OpError describes a failed operation. Kind is one of the error kinds above
// (nil for context cancellation) and Err is the underlying cause.
type OpError struct {
	Op   string
	Kind error
	Err  error
}

func (e *OpError) Error() string {
	s := "tcpsub: " + e.Op
	if e.Kind != nil {
		s += ": " + e.Kind.Error()
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *OpError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Cause returns the underlying error, for github.com/pkg/errors.Cause.
func (e *OpError) Cause() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

func opError(op string, kind, err error) error {
	return &OpError{Op: op, Kind: kind, Err: err}
}

// readError classifies a failed read. closed reports whether the Reader was
// closed when the read returned.
func readError(op string, err error, closed bool) error {
	switch {
	case closed || errors.Is(err, net.ErrClosed):
		return opError(op, ErrClosed, nil)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return opError(op, nil, err)
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.EPIPE):
		return opError(op, ErrStreamClosed, err)
	default:
		return opError(op, ErrIO, err)
	}
}
