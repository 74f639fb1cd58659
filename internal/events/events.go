// Package events is the reporting side of a build. The engine describes what
// it plans and does as Events and hands them to an Observer; observers print
// progress for the user or forward it to a socket.io server.
package events

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Type names a build event.
type Type string

const (
	JobPlanned  Type = "job:planned"
	JobStarted  Type = "job:started"
	JobFinished Type = "job:finished"
	JobFailed   Type = "job:failed"
	RunFinished Type = "run:finished"
)

// Event describes one step of a build.
type Event struct {
	Type      Type              `json:"type"`
	Rule      string            `json:"rule,omitempty"`
	Input     []string          `json:"input,omitempty"`
	Output    []string          `json:"output,omitempty"`
	Wildcards map[string]string `json:"wildcards,omitempty"`
	Message   string            `json:"message,omitempty"`
	Error     string            `json:"error,omitempty"`
	Time      time.Time         `json:"time"`
}

// Observer receives events. Implementations must be safe for concurrent use;
// workers report from their own goroutines.
type Observer interface {
	Notify(ctx context.Context, ev Event)
}

// Nop drops every event.
type Nop struct{}

func (Nop) Notify(context.Context, Event) {}

// Multi fans an event out to several observers in order.
type Multi []Observer

func (m Multi) Notify(ctx context.Context, ev Event) {
	for _, o := range m {
		if o != nil {
			o.Notify(ctx, ev)
		}
	}
}

// Printer writes the human-readable message of planned and started jobs,
// one per line.
type Printer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewPrinter creates a Printer writing to w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

func (p *Printer) Notify(_ context.Context, ev Event) {
	if ev.Type != JobPlanned && ev.Type != JobStarted {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, strings.TrimRight(ev.Message, "\n"))
}
