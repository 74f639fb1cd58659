package events

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/vk/gridmake/internal/ctxlog"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// SocketIOOptions configures the socket.io notifier.
type SocketIOOptions struct {
	URL                string
	Namespace          string
	RunID              string
	InsecureSkipVerify bool
	ConnectTimeout     time.Duration
}

// SocketIO forwards build events to a socket.io server. Each event is emitted
// under its Type name with a single object payload.
type SocketIO struct {
	mu    sync.Mutex
	io    *socket.Socket
	runID string
}

// DialSocketIO connects to the server and waits for the handshake.
func DialSocketIO(ctx context.Context, opts SocketIOOptions) (*SocketIO, error) {
	logger := ctxlog.FromContext(ctx).With("notifier", "socketio", "url", opts.URL)
	logger.Info("Connecting build event notifier...")

	parsedURL, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse events URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("events URL %q must include scheme and host", opts.URL)
	}

	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	sockOpts := socket.DefaultOptions()
	if parsedURL.Path != "" {
		sockOpts.SetPath(parsedURL.Path)
	}
	if opts.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		sockOpts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	sockOpts.SetTransports(types.NewSet(transports.WebSocket))

	connectChan := make(chan error, 1)

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, sockOpts)
	io := manager.Socket(opts.Namespace, sockOpts)

	io.Once(types.EventName("connect"), func(...any) {
		logger.Debug("Notifier connected.", "sid", io.Id())
		select {
		case connectChan <- nil:
		default:
		}
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		err := errors.New("connect_error")
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = e
			}
		}
		select {
		case connectChan <- err:
		default:
		}
	})

	io.Connect()

	select {
	case err := <-connectChan:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("context cancelled while waiting for socket.io connection")
	case <-time.After(timeout):
		io.Disconnect()
		return nil, fmt.Errorf("timed out after %s waiting for socket.io connection", timeout)
	}

	logger.Info("Build event notifier connected.")
	return &SocketIO{io: io, runID: opts.RunID}, nil
}

// Notify emits the event. Delivery failures are logged and never fail the build.
func (s *SocketIO) Notify(ctx context.Context, ev Event) {
	payload := map[string]any{
		"run_id": s.runID,
		"type":   string(ev.Type),
		"time":   ev.Time.Format(time.RFC3339Nano),
	}
	if ev.Rule != "" {
		payload["rule"] = ev.Rule
	}
	if len(ev.Input) > 0 {
		payload["input"] = ev.Input
	}
	if len(ev.Output) > 0 {
		payload["output"] = ev.Output
	}
	if len(ev.Wildcards) > 0 {
		payload["wildcards"] = ev.Wildcards
	}
	if ev.Message != "" {
		payload["message"] = ev.Message
	}
	if ev.Error != "" {
		payload["error"] = ev.Error
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.io.Emit(string(ev.Type), payload); err != nil {
		ctxlog.FromContext(ctx).Warn("Failed to emit build event.", "type", ev.Type, "error", err)
	}
}

// Close disconnects from the server.
func (s *SocketIO) Close(ctx context.Context) error {
	ctxlog.FromContext(ctx).Debug("Disconnecting build event notifier.", "sid", s.io.Id())
	s.mu.Lock()
	defer s.mu.Unlock()
	s.io.Disconnect()
	return nil
}
