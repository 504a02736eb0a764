package tcpsub

import (
	"errors"
	"net"
	"testing"
	"time"
)

func TestCustomCodecOption(t *testing.T) {
	opt := CustomCodecOption(CBOR)

	var opts options
	opt(&opts)

	if opts.codec != CBOR {
		t.Error("codec not set correctly")
	}
}

func TestDialTimeoutOption(t *testing.T) {
	opt := DialTimeoutOption(3 * time.Second)

	var opts options
	opt(&opts)

	if opts.dialTimeout != 3*time.Second {
		t.Errorf("dialTimeout = %v, want %v", opts.dialTimeout, 3*time.Second)
	}
}

func TestReadBufferSizeOption(t *testing.T) {
	opt := ReadBufferSizeOption(8192)

	var opts options
	opt(&opts)

	if opts.readBufferSize != 8192 {
		t.Errorf("readBufferSize = %d, want 8192", opts.readBufferSize)
	}
}

func TestLoggerOption(t *testing.T) {
	logger := &mockLogger{}
	opt := LoggerOption(logger)

	var opts options
	opt(&opts)

	if opts.logger != logger {
		t.Error("logger not set correctly")
	}
}

func TestCheckOptions_DefaultValues(t *testing.T) {
	var opts options
	checkOptions(&opts)

	if opts.codec != JSON {
		t.Errorf("codec = %s, want json", opts.codec.Name())
	}

	if opts.readBufferSize != defaultReadBufferSize {
		t.Errorf("readBufferSize = %d, want %d", opts.readBufferSize, defaultReadBufferSize)
	}

	if opts.logger == nil {
		t.Error("logger should have default value")
	}

	if opts.dialTimeout != 0 {
		t.Errorf("dialTimeout = %v, want 0", opts.dialTimeout)
	}
}

func TestCheckOptions_KeepsValues(t *testing.T) {
	logger := &mockLogger{}
	opts := options{codec: TOML, logger: logger, readBufferSize: 64}
	checkOptions(&opts)

	if opts.codec != TOML || opts.logger != logger || opts.readBufferSize != 64 {
		t.Errorf("checkOptions overwrote explicit values: %+v", opts)
	}
}

func TestCheckPublisherOptions_DefaultValues(t *testing.T) {
	var opts publisherOptions
	checkPublisherOptions(&opts)

	if opts.codec != JSON {
		t.Errorf("codec = %s, want json", opts.codec.Name())
	}

	if opts.bufferSize != defaultQueueSize {
		t.Errorf("bufferSize = %d, want %d", opts.bufferSize, defaultQueueSize)
	}

	if opts.writeDeadline != defaultWriteDeadline {
		t.Errorf("writeDeadline = %v, want %v", opts.writeDeadline, defaultWriteDeadline)
	}

	if opts.onError == nil {
		t.Fatal("onError should have default value")
	}

	// Default onError should return Disconnect
	if opts.onError(errors.New("test")) != Disconnect {
		t.Error("default onError should return Disconnect")
	}
}

func TestPublisherOptions_MultipleOptions(t *testing.T) {
	logger := &mockLogger{}
	onError := func(err error) ErrorAction { return Continue }
	subscribed := false
	onSubscribe := func(id string, addr net.Addr) { subscribed = true }

	var opts publisherOptions
	for _, opt := range []PublisherOption{
		PublisherCodecOption(YAML),
		PublisherLoggerOption(logger),
		BufferSizeOption(50),
		WriteDeadlineOption(45 * time.Second),
		OnErrorOption(onError),
		OnSubscribeOption(onSubscribe),
		ShutdownTimeoutOption(time.Second),
	} {
		opt(&opts)
	}

	if opts.codec != YAML {
		t.Error("codec not set")
	}
	if opts.logger != logger {
		t.Error("logger not set")
	}
	if opts.bufferSize != 50 {
		t.Errorf("bufferSize = %d, want 50", opts.bufferSize)
	}
	if opts.writeDeadline != 45*time.Second {
		t.Errorf("writeDeadline = %v, want %v", opts.writeDeadline, 45*time.Second)
	}
	if opts.onError == nil || opts.onError(nil) != Continue {
		t.Error("onError not set")
	}
	if opts.onSubscribe == nil {
		t.Fatal("onSubscribe not set")
	}
	opts.onSubscribe("id", nil)
	if !subscribed {
		t.Error("onSubscribe callback not called")
	}
	if opts.shutdownTimeout != time.Second {
		t.Errorf("shutdownTimeout = %v, want %v", opts.shutdownTimeout, time.Second)
	}
}

func TestErrorAction(t *testing.T) {
	// Test Disconnect constant
	if Disconnect != 0 {
		t.Errorf("Disconnect = %d, want 0", Disconnect)
	}

	// Test Continue constant
	if Continue != 1 {
		t.Errorf("Continue = %d, want 1", Continue)
	}
}
