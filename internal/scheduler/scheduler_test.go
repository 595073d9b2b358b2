package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"indibot/internal/config"
	"indibot/internal/indico"
	"indibot/internal/timewindow"
	"indibot/pkg/logx"
)

var fixtureBots = map[string]config.BotConfig{
	"bot_1": {Nickname: "one", Categories: []string{"1"}, TimeDelta: "1h", Channels: []string{"c"}},
	"bot_2": {Nickname: "two", Categories: []string{"2"}, TimeDelta: "1d", Channels: []string{"c"}},
}

func fixtureEvent(id int, date, clock string, notHappening bool) indico.Event {
	room := "Room 1"
	evt := indico.Event{
		ID:    json.Number(fmt.Sprint(id)),
		Title: fmt.Sprintf("Event %d", id),
		URL:   fmt.Sprintf("https://events/%d", id),
		Room:  &room,
		StartDate: indico.EventTime{
			Date: date,
			Time: clock,
			TZ:   "Europe/Zurich",
		},
	}
	if notHappening {
		evt.Label = &indico.EventLabel{IsEventNotHappening: true}
	}
	return evt
}

var fixtureCategories = map[string][]indico.Event{
	"1": {
		fixtureEvent(1, "2022-06-07", "10:00:00", false),
		fixtureEvent(2, "2022-06-07", "10:30:00", false),
	},
	"2": {
		fixtureEvent(3, "2022-06-08", "17:00:00", false),
		fixtureEvent(4, "2022-06-08", "17:30:00", false),
		fixtureEvent(5, "2022-06-07", "17:30:00", true),
	},
}

// fixtureFetcher applies the server-side window the upstream would: events in
// (now, now+delta] for forward windows, and in [now+delta, now) for backward
// ones.
type fixtureFetcher struct {
	failCategories map[string]bool
}

func (f *fixtureFetcher) FetchEvents(ctx context.Context, categories []string, now time.Time, delta timewindow.Delta, debug bool) ([]indico.Event, error) {
	var res []indico.Event
	for _, cat := range categories {
		if f.failCategories[cat] {
			return nil, errors.New("category fetch failed")
		}
		for _, evt := range fixtureCategories[cat] {
			start, err := evt.StartDate.Resolve()
			if err != nil {
				return nil, err
			}
			edge := now.Add(delta.Duration())
			if (now.Before(start) && !start.After(edge)) ||
				(now.After(start) && !start.Before(edge)) {
				res = append(res, evt)
			}
		}
	}
	return res, nil
}

// recordingDispatcher collects dispatched (bot, event) pairs.
type recordingDispatcher struct {
	mu    sync.Mutex
	pairs []string
	err   error
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, botID string, bot config.BotConfig, evt indico.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pairs = append(d.pairs, botID+"/"+evt.ID.String())
	return d.err
}

func (d *recordingDispatcher) eventIDs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := make([]string, 0, len(d.pairs))
	for _, p := range d.pairs {
		for i := len(p) - 1; i >= 0; i-- {
			if p[i] == '/' {
				ids = append(ids, p[i+1:])
				break
			}
		}
	}
	sort.Strings(ids)
	return ids
}

// memStore is a throwaway in-memory dedup store.
type memStore struct {
	mu      sync.Mutex
	data    map[string]bool
	hasErr  error
	addErr  error
	saveErr error
}

func newMemStore() *memStore { return &memStore{data: map[string]bool{}} }

func (m *memStore) Load(ctx context.Context) error { return nil }
func (m *memStore) Save(ctx context.Context) error { return m.saveErr }
func (m *memStore) Close() error                   { return nil }

func (m *memStore) Has(ctx context.Context, eventID, botID string) (bool, error) {
	if m.hasErr != nil {
		return false, m.hasErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[eventID+"|"+botID], nil
}

func (m *memStore) Add(ctx context.Context, eventID, botID string) error {
	if m.addErr != nil {
		return m.addErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[eventID+"|"+botID] = true
	return nil
}

func at(t *testing.T, stamp string) time.Time {
	t.Helper()
	ts, err := time.Parse("2006-01-02 15:04", stamp)
	if err != nil {
		t.Fatalf("parse %q: %v", stamp, err)
	}
	return ts.UTC()
}

func TestTickDueTransitions(t *testing.T) {
	t.Parallel()
	tests := []struct {
		now  string
		want []string
	}{
		{"2022-06-07 06:59", nil},
		{"2022-06-07 07:00", []string{"1"}},
		{"2022-06-07 07:30", []string{"1", "2"}},
		{"2022-06-07 15:00", []string{"3"}},
		{"2022-06-07 15:30", []string{"3", "4"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.now, func(t *testing.T) {
			disp := &recordingDispatcher{}
			svc := New(fixtureBots, &fixtureFetcher{}, newMemStore(), disp, false, logx.Nop())
			if err := svc.Tick(context.Background(), at(t, tt.now)); err != nil {
				t.Fatalf("Tick error: %v", err)
			}

			got := disp.eventIDs()
			if len(got) != len(tt.want) {
				t.Fatalf("due events = %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Fatalf("due events = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestTickIdempotentWithSharedStore(t *testing.T) {
	t.Parallel()
	store := newMemStore()
	now := at(t, "2022-06-07 07:30")

	first := &recordingDispatcher{}
	svc := New(fixtureBots, &fixtureFetcher{}, store, first, false, logx.Nop())
	if err := svc.Tick(context.Background(), now); err != nil {
		t.Fatalf("first Tick error: %v", err)
	}
	if len(first.eventIDs()) != 2 {
		t.Fatalf("first run dispatched %v, want 2 events", first.eventIDs())
	}

	second := &recordingDispatcher{}
	svc = New(fixtureBots, &fixtureFetcher{}, store, second, false, logx.Nop())
	if err := svc.Tick(context.Background(), now); err != nil {
		t.Fatalf("second Tick error: %v", err)
	}
	if len(second.eventIDs()) != 0 {
		t.Fatalf("second run dispatched %v, want none", second.eventIDs())
	}
}

func TestTickIsolatesFetchFailures(t *testing.T) {
	t.Parallel()
	disp := &recordingDispatcher{}
	fetch := &fixtureFetcher{failCategories: map[string]bool{"1": true}}
	svc := New(fixtureBots, fetch, newMemStore(), disp, false, logx.Nop())

	// bot_1's fetch fails; bot_2 must still be processed.
	if err := svc.Tick(context.Background(), at(t, "2022-06-07 15:00")); err != nil {
		t.Fatalf("Tick error: %v", err)
	}
	got := disp.eventIDs()
	if len(got) != 1 || got[0] != "3" {
		t.Fatalf("due events = %v, want [3]", got)
	}
}

func TestTickStorageErrorsAreTerminal(t *testing.T) {
	t.Parallel()
	store := newMemStore()
	store.hasErr = errors.New("backend down")

	svc := New(fixtureBots, &fixtureFetcher{}, store, &recordingDispatcher{}, false, logx.Nop())
	err := svc.Tick(context.Background(), at(t, "2022-06-07 07:00"))
	if !errors.Is(err, ErrStorage) {
		t.Fatalf("Tick error = %v, want ErrStorage", err)
	}
}

// gatedFetcher blocks fetches until released, to hold a tick in flight.
type gatedFetcher struct {
	inner     fixtureFetcher
	started   chan struct{}
	release   chan struct{}
	startOnce sync.Once
}

func (f *gatedFetcher) FetchEvents(ctx context.Context, categories []string, now time.Time, delta timewindow.Delta, debug bool) ([]indico.Event, error) {
	f.startOnce.Do(func() { close(f.started) })
	<-f.release
	return f.inner.FetchEvents(ctx, categories, now, delta, debug)
}

func TestTickSkipsWhileStillRunning(t *testing.T) {
	t.Parallel()
	fetch := &gatedFetcher{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	disp := &recordingDispatcher{}
	svc := New(fixtureBots, fetch, newMemStore(), disp, false, logx.Nop())
	now := at(t, "2022-06-07 07:30")

	firstDone := make(chan error, 1)
	go func() { firstDone <- svc.Tick(context.Background(), now) }()
	<-fetch.started

	// A tick arriving while the first is mid-fetch must return without
	// touching any bot; otherwise both could see the same events as
	// unnotified and double-send.
	if err := svc.Tick(context.Background(), now); err != nil {
		t.Fatalf("overlapping Tick error: %v", err)
	}
	if got := disp.eventIDs(); len(got) != 0 {
		t.Fatalf("overlapping Tick dispatched %v, want none", got)
	}

	close(fetch.release)
	if err := <-firstDone; err != nil {
		t.Fatalf("first Tick error: %v", err)
	}
	if got := disp.eventIDs(); len(got) != 2 {
		t.Fatalf("events dispatched once = %v, want 2 total", got)
	}
}

func TestTickFlushFailureIsTerminal(t *testing.T) {
	t.Parallel()
	store := newMemStore()
	store.saveErr = errors.New("disk full")

	svc := New(fixtureBots, &fixtureFetcher{}, store, &recordingDispatcher{}, false, logx.Nop())
	err := svc.Tick(context.Background(), at(t, "2022-06-07 06:59"))
	if !errors.Is(err, ErrStorage) {
		t.Fatalf("Tick error = %v, want ErrStorage", err)
	}
}

func TestTickRecordsDespiteDispatchError(t *testing.T) {
	t.Parallel()
	store := newMemStore()
	disp := &recordingDispatcher{err: errors.New("webhook rejected")}

	svc := New(fixtureBots, &fixtureFetcher{}, store, disp, false, logx.Nop())
	if err := svc.Tick(context.Background(), at(t, "2022-06-07 07:00")); err != nil {
		t.Fatalf("Tick error: %v", err)
	}

	// At-most-once: the record is committed even though delivery failed.
	known, err := store.Has(context.Background(), "1", "bot_1")
	if err != nil || !known {
		t.Fatalf("Has = (%v, %v), want (true, nil)", known, err)
	}
}

func TestTickSkipsCancelledEvents(t *testing.T) {
	t.Parallel()
	disp := &recordingDispatcher{}
	svc := New(fixtureBots, &fixtureFetcher{}, newMemStore(), disp, false, logx.Nop())

	// Event 5 (17:30 local on the same day) is inside bot_2's window at this
	// instant but flagged not happening.
	if err := svc.Tick(context.Background(), at(t, "2022-06-07 15:00")); err != nil {
		t.Fatalf("Tick error: %v", err)
	}
	for _, id := range disp.eventIDs() {
		if id == "5" {
			t.Fatal("cancelled event must not be dispatched")
		}
	}
}
