// Package notify surfaces the first root-cause failure of a run to operators.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/lysyi3m/rss-triage/app/errkind"
)

const maxDetailLength = 1000

type Notice struct {
	Event       string
	Kind        errkind.Kind
	Detail      string
	Plain       string
	TriggeredAt time.Time
}

type Sink interface {
	Send(ctx context.Context, notice Notice) error
}

// PlainNotice is a short operator-facing explanation of a failure kind.
func PlainNotice(kind errkind.Kind) string {
	switch kind {
	case errkind.Auth:
		return "Authentication failed: the API key is invalid, expired or lacks permission. Update it and retry."
	case errkind.RateLimit:
		return "Rate limited or out of quota: lower the request rate or check the quota."
	case errkind.Server:
		return "The upstream service is failing: retry later."
	case errkind.Timeout:
		return "Network timeout: check connectivity and proxy settings."
	case errkind.Parse:
		return "Unexpected output format: check the prompt or switch models."
	case errkind.Config:
		return "Required configuration is missing: check the environment and flags."
	default:
		return "Unknown error: see the detail and check the configuration."
	}
}

// Event names the failure the way it is shown in notifications.
func Event(service string, kind errkind.Kind) string {
	if service == "" {
		service = "pipeline"
	}
	switch kind {
	case errkind.Auth:
		return service + " authentication failed"
	case errkind.RateLimit, errkind.Server, errkind.Timeout, errkind.HTTP:
		return service + " request failed"
	case errkind.Parse:
		return service + " output parse failed"
	case errkind.Config:
		return "required configuration missing"
	default:
		return service + " failed"
	}
}

func truncateDetail(detail string) string {
	runes := []rune(detail)
	if len(runes) <= maxDetailLength {
		return detail
	}
	return string(runes[:maxDetailLength-3]) + "..."
}

// RunNotifier delivers at most one notice per run: the first reported failure
// wins and every later report is dropped.
type RunNotifier struct {
	sinks []Sink
	now   func() time.Time

	mu    sync.Mutex
	first *Notice
}

func NewRunNotifier(sinks ...Sink) *RunNotifier {
	return &RunNotifier{sinks: sinks, now: time.Now}
}

// Notify reports a failure. It returns true only for the call that claimed
// the run's notification.
func (n *RunNotifier) Notify(ctx context.Context, event string, kind errkind.Kind, detail string) bool {
	detail = strings.TrimSpace(detail)
	if detail == "" {
		detail = event
	}
	notice := Notice{
		Event:       event,
		Kind:        kind,
		Detail:      truncateDetail(detail),
		Plain:       PlainNotice(kind),
		TriggeredAt: n.now(),
	}

	n.mu.Lock()
	if n.first != nil {
		n.mu.Unlock()
		return false
	}
	n.first = &notice
	n.mu.Unlock()

	for _, sink := range n.sinks {
		if err := sink.Send(ctx, notice); err != nil {
			slog.Warn("Failed to deliver notification", "sink", fmt.Sprintf("%T", sink), "error", err)
		}
	}
	return true
}

// NotifyError classifies err and reports it on behalf of service.
func (n *RunNotifier) NotifyError(ctx context.Context, service string, err error) bool {
	if err == nil {
		return false
	}
	kind := errkind.KindOf(err)
	var ke *errkind.Error
	if errors.As(err, &ke) && ke.Service != "" && service == "" {
		service = ke.Service
	}
	return n.Notify(ctx, Event(service, kind), kind, err.Error())
}

func (n *RunNotifier) First() (Notice, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.first == nil {
		return Notice{}, false
	}
	return *n.first, true
}
