package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/ldi/homeroom/internal/clock"
	"github.com/ldi/homeroom/internal/notify"
	"github.com/ldi/homeroom/internal/store"
	"github.com/ldi/homeroom/pkg/models"
)

type captureNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (c *captureNotifier) Send(ctx context.Context, ev notify.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *captureNotifier) kinds() []notify.Kind {
	c.mu.Lock()
	defer c.mu.Unlock()
	kinds := make([]notify.Kind, len(c.events))
	for i, ev := range c.events {
		kinds[i] = ev.Kind
	}
	return kinds
}

func (c *captureNotifier) last() *notify.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.events) == 0 {
		return nil
	}
	ev := c.events[len(c.events)-1]
	return &ev
}

type fixture struct {
	tracker  *Tracker
	store    *store.Memory
	clock    *clock.Fake
	notifier *captureNotifier
}

func newFixture() *fixture {
	st := store.NewMemory()
	clk := clock.NewFake(time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC))
	n := &captureNotifier{}
	return &fixture{
		tracker:  New(st, clk, n, "fam1"),
		store:    st,
		clock:    clk,
		notifier: n,
	}
}

func (f *fixture) addTask(ctx context.Context, id, title string, status models.TaskStatus) *models.Task {
	t := &models.Task{
		ID:        id,
		SubjectID: "math",
		Title:     title,
		DueDate:   f.clock.Now().Add(3 * time.Hour),
		Status:    status,
		Checklist: []models.ChecklistItem{},
	}
	if err := f.tracker.AddTask(ctx, t); err != nil {
		panic(err)
	}
	return t
}

func (f *fixture) activeCount(ctx context.Context) int {
	records, err := f.store.List(ctx, "fam1", collActive)
	if err != nil {
		panic(err)
	}
	return len(records)
}
