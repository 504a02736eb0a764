package tcpsub

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Publisher listens for Readers and writes frames to every connected one.
type Publisher struct {
	listener *net.TCPListener
	logger   Logger
	opts     publisherOptions

	// Subscribers run under ctx rather than the Serve context, so they
	// outlive its cancellation for the shutdown timeout.
	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	shutdown    bool
	closed      chan struct{} // closed by Close, bypassing the shutdown timeout
	closeOnce   sync.Once
	subscribers map[string]*subscriber
	handlers    sync.WaitGroup
}

// Listen creates a Publisher bound to addr.
// Returns an error if the address cannot be bound.
func Listen(addr *net.TCPAddr, opt ...PublisherOption) (*Publisher, error) {
	var opts publisherOptions
	for _, o := range opt {
		o(&opts)
	}
	checkPublisherOptions(&opts)

	listener, err := net.ListenTCP(addr.Network(), addr)
	if err != nil {
		return nil, errors.Wrapf(err, "listen %s", addr)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Publisher{
		listener:    listener,
		logger:      opts.logger,
		opts:        opts,
		ctx:         ctx,
		cancel:      cancel,
		closed:      make(chan struct{}),
		subscribers: make(map[string]*subscriber),
	}, nil
}

// Serve accepts subscribers until ctx is canceled or Close is called.
// When the context is canceled it stops accepting new subscribers; if
// ShutdownTimeoutOption is set, it first keeps serving for up to that
// duration, which Close bypasses. Serve returns after every subscriber has
// flushed its queued frames and been released.
func (p *Publisher) Serve(ctx context.Context) error {
	p.logger.Info("publisher started", "addr", p.listener.Addr())

	stopped := make(chan struct{})
	var watcher sync.WaitGroup
	watcher.Add(1)
	go func() {
		defer watcher.Done()
		p.watch(ctx, stopped)
	}()

	defer func() {
		close(stopped)
		watcher.Wait()
		p.stopSubscribers()
		p.handlers.Wait()
		p.cancel()
	}()

	for {
		conn, err := p.listener.AcceptTCP()
		if err != nil {
			p.mu.Lock()
			isShutdown := p.shutdown
			p.mu.Unlock()

			if isShutdown {
				p.logger.Info("publisher stopped", "addr", p.listener.Addr())
				return ctx.Err()
			}

			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			p.logger.Error("accept error", "error", err)
			return err
		}

		_ = conn.SetNoDelay(true)
		sub := newSubscriber(uuid.NewString(), conn, &p.opts)
		if !p.addSubscriber(sub) {
			sub.close()
			continue
		}

		go p.handle(sub)
	}
}

// watch stops the accept loop once ctx is done and the shutdown timeout,
// if any, has passed. It returns early when Close is called or Serve exits.
func (p *Publisher) watch(ctx context.Context, stopped <-chan struct{}) {
	select {
	case <-ctx.Done():
	case <-p.closed:
		return
	case <-stopped:
		return
	}

	if p.opts.shutdownTimeout > 0 {
		p.logger.Info("graceful shutdown initiated", "timeout", p.opts.shutdownTimeout)
		select {
		case <-time.After(p.opts.shutdownTimeout):
		case <-p.closed:
			p.logger.Debug("shutdown timeout bypassed via Close()")
			return
		case <-stopped:
			return
		}
	}

	p.mu.Lock()
	p.shutdown = true
	p.mu.Unlock()
	// Set a deadline to unblock Accept
	_ = p.listener.SetDeadline(time.Now())
}

func (p *Publisher) handle(sub *subscriber) {
	defer p.handlers.Done()

	addr := sub.rawConn.RemoteAddr()
	p.logger.Debug("subscriber connected", "subscriber", sub.id, "addr", addr)
	if p.opts.onSubscribe != nil {
		p.opts.onSubscribe(sub.id, addr)
	}

	err := sub.run(p.ctx)
	p.removeSubscriber(sub.id)

	if err != nil && !errors.Is(err, context.Canceled) {
		p.logger.Debug("subscriber disconnected", "subscriber", sub.id, "addr", addr, "error", err)
	} else {
		p.logger.Debug("subscriber disconnected", "subscriber", sub.id, "addr", addr)
	}
}

// Publish sends payload as one header-driven frame to every subscriber.
// It never blocks: a subscriber whose queue is full is handled by the
// OnErrorOption callback (dropped by default).
func (p *Publisher) Publish(payload []byte) error {
	frame, err := EncodeFrame(payload)
	if err != nil {
		return err
	}
	p.broadcast(frame)
	return nil
}

// PublishRaw sends payload without a length header, for subscribers that
// read it with ReadExact.
func (p *Publisher) PublishRaw(payload []byte) error {
	data := make([]byte, len(payload))
	copy(data, payload)
	p.broadcast(data)
	return nil
}

// PublishValue encodes v with the publisher's codec and publishes it as one frame.
func (p *Publisher) PublishValue(v any) error {
	payload, err := p.opts.codec.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "%s encode %T", p.opts.codec.Name(), v)
	}
	return p.Publish(payload)
}

// PublishContext is like Publish but waits for queue space on each
// subscriber until ctx is done.
func (p *Publisher) PublishContext(ctx context.Context, payload []byte) error {
	frame, err := EncodeFrame(payload)
	if err != nil {
		return err
	}
	for _, sub := range p.snapshot() {
		if err := sub.enqueueContext(ctx, frame); err != nil {
			if errors.Is(err, ErrConnectionClosed) {
				continue
			}
			return err
		}
	}
	return nil
}

func (p *Publisher) broadcast(data []byte) {
	for _, sub := range p.snapshot() {
		err := sub.enqueue(data)
		if err == nil || errors.Is(err, ErrConnectionClosed) {
			continue
		}
		p.logger.Debug("publish error", "subscriber", sub.id, "error", err)
		if p.opts.onError(err) == Disconnect {
			sub.close()
		}
	}
}

// Subscribers returns the number of connected subscribers.
func (p *Publisher) Subscribers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subscribers)
}

// Close stops the publisher and disconnects every subscriber once the
// frames already queued for it are written, each flush bounded by the
// write deadline. If a shutdown timeout is configured, Close bypasses the
// remaining timeout.
func (p *Publisher) Close() error {
	p.mu.Lock()
	p.shutdown = true
	p.mu.Unlock()

	p.closeOnce.Do(func() { close(p.closed) })

	err := p.listener.Close()
	p.stopSubscribers()
	p.handlers.Wait()
	p.cancel()
	return err
}

// Addr returns the listener's network address.
func (p *Publisher) Addr() net.Addr {
	return p.listener.Addr()
}

func (p *Publisher) addSubscriber(sub *subscriber) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.shutdown {
		return false
	}
	p.subscribers[sub.id] = sub
	// Added under mu so that a handler never starts after Close has begun waiting.
	p.handlers.Add(1)
	return true
}

func (p *Publisher) removeSubscriber(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.subscribers, id)
}

func (p *Publisher) snapshot() []*subscriber {
	p.mu.Lock()
	defer p.mu.Unlock()
	subs := make([]*subscriber, 0, len(p.subscribers))
	for _, sub := range p.subscribers {
		subs = append(subs, sub)
	}
	return subs
}

func (p *Publisher) stopSubscribers() {
	for _, sub := range p.snapshot() {
		sub.stop()
	}
}
