package testutil

import (
	"context"
	"errors"
	"io"
	"sync"

	"smartcity/internal/model"
)

// Uploader records uploads and returns deterministic URLs. Filenames listed
// in Fail are rejected.
type Uploader struct {
	mu      sync.Mutex
	Fail    map[string]bool
	Uploads []string
}

func (u *Uploader) Upload(_ context.Context, r io.Reader, filename, folder string) (string, error) {
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.Fail[filename] {
		return "", errors.New("upload rejected")
	}
	url := "https://media.test/" + folder + "/" + filename
	u.Uploads = append(u.Uploads, url)
	return url, nil
}

// Limiter allows Limit hits per key. Err, when set, is returned from every call.
type Limiter struct {
	mu    sync.Mutex
	Limit int
	Err   error
	hits  map[string]int
}

func (l *Limiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Err != nil {
		return false, l.Err
	}
	if l.hits == nil {
		l.hits = make(map[string]int)
	}
	l.hits[key]++
	return l.hits[key] <= l.Limit, nil
}

type SentEvent struct {
	Event    model.NotificationEvent
	Audience model.Audience
}

// Notifier records events instead of delivering them.
type Notifier struct {
	mu     sync.Mutex
	Err    error
	events []SentEvent
}

func (n *Notifier) Notify(_ context.Context, event model.NotificationEvent, audience model.Audience) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, SentEvent{Event: event, Audience: audience})
	return n.Err
}

func (n *Notifier) Events() []SentEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]SentEvent(nil), n.events...)
}
