// Package tracker owns the task lifecycle and the focus/break session state
// machine for one family namespace. All state lives in the injected store;
// the tracker itself never starts timers or background work.
package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ldi/homeroom/internal/clock"
	"github.com/ldi/homeroom/internal/notify"
	"github.com/ldi/homeroom/internal/store"
)

const (
	collTasks    = "tasks"
	collSessions = "sessions"
	collActive   = "active_session"
	collSettings = "settings"

	activeDocID   = "current"
	settingsDocID = "global"
)

// GeneralSubjectID is the sentinel subject for sessions not tied to a task
// or an explicit subject.
const GeneralSubjectID = "general"

var ErrTaskNotFound = errors.New("task not found")

type Tracker struct {
	store     store.Store
	clock     clock.Clock
	notifier  notify.Notifier
	namespace string
}

// New creates a tracker bound to one family namespace. A nil clock defaults
// to the system clock; a nil notifier drops events.
func New(s store.Store, c clock.Clock, n notify.Notifier, namespace string) *Tracker {
	if c == nil {
		c = clock.System()
	}
	if n == nil {
		n = notify.Discard{}
	}
	return &Tracker{store: s, clock: c, notifier: n, namespace: namespace}
}

func (tr *Tracker) Namespace() string { return tr.namespace }

func (tr *Tracker) emit(ctx context.Context, ev notify.Event) {
	tr.notifier.Send(ctx, ev)
}

func (tr *Tracker) getDoc(ctx context.Context, collection, id string, v any) (bool, error) {
	data, err := tr.store.Get(ctx, tr.namespace, collection, id)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to decode %s document: %w", collection, err)
	}
	return true, nil
}

func (tr *Tracker) putDoc(ctx context.Context, collection, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s document: %w", collection, err)
	}
	return tr.store.Set(ctx, tr.namespace, collection, id, data)
}
