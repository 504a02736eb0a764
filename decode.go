package tcpsub

import (
	"context"
	"reflect"

	"github.com/pkg/errors"
)

// ReadDecoded reads one header-driven frame and decodes it into a T with the
// Reader's codec.
//
// If the codec cannot decode into T at all, ReadDecoded fails with
// ErrUnsupportedType before touching the stream. If the payload does not
// decode, it fails with ErrDecode and the frame is consumed.
func ReadDecoded[T any](r *Reader) (T, error) {
	return ReadDecodedContext[T](context.Background(), r)
}

// ReadDecodedContext is like ReadDecoded but returns ctx.Err() when ctx is done first.
func ReadDecodedContext[T any](ctx context.Context, r *Reader) (T, error) {
	var zero T
	typ := reflect.TypeOf((*T)(nil)).Elem()
	if err := checkType(r.opts.codec, typ); err != nil {
		return zero, opError("decode", ErrUnsupportedType, err)
	}

	data, err := r.ReadFrameContext(ctx)
	if err != nil {
		return zero, err
	}

	var v T
	if err := r.opts.codec.Unmarshal(data, &v); err != nil {
		return zero, opError("decode", ErrDecode,
			errors.Wrapf(err, "%s payload into %s", r.opts.codec.Name(), typ))
	}
	return v, nil
}

// ReadDecodedAsync starts ReadDecodedContext and returns immediately.
func ReadDecodedAsync[T any](ctx context.Context, r *Reader) <-chan Result[T] {
	return async(ctx, func(ctx context.Context) (T, error) {
		return ReadDecodedContext[T](ctx, r)
	})
}
