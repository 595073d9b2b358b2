// Package scheduler runs one polling cycle at a time: per bot it computes the
// alert window, fetches matching events, filters them through the window rule
// and the dedup store, and hands newly-due events to the dispatcher.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"indibot/internal/config"
	"indibot/internal/indico"
	"indibot/internal/storage"
	"indibot/internal/timewindow"
	"indibot/pkg/logx"
)

// ErrStorage marks dedup-store failures. They are terminal for the run:
// continuing past one risks double-notifying or silently dropping events.
var ErrStorage = errors.New("dedup store failure")

// Fetcher returns the raw event records for one bot's categories and window.
type Fetcher interface {
	FetchEvents(ctx context.Context, categories []string, now time.Time, delta timewindow.Delta, debug bool) ([]indico.Event, error)
}

// Dispatcher delivers one due event to all of a bot's channels.
type Dispatcher interface {
	Dispatch(ctx context.Context, botID string, bot config.BotConfig, evt indico.Event) error
}

// Service holds the per-run collaborators. It keeps no state across ticks
// beyond what lives in the dedup store.
type Service struct {
	log      logx.Logger
	bots     map[string]config.BotConfig
	botOrder []string

	fetch    Fetcher
	store    storage.Store
	dispatch Dispatcher
	debug    bool

	inFlight atomic.Bool
}

func New(bots map[string]config.BotConfig, fetch Fetcher, store storage.Store, dispatch Dispatcher, debug bool, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}

	// Config maps carry no declaration order; iterate bots in sorted-id order
	// so runs are deterministic.
	order := make([]string, 0, len(bots))
	for id := range bots {
		order = append(order, id)
	}
	sort.Strings(order)

	return &Service{
		log:      log,
		bots:     bots,
		botOrder: order,
		fetch:    fetch,
		store:    store,
		dispatch: dispatch,
		debug:    debug,
	}
}

// Tick runs one polling cycle over all bots against the single instant now.
//
// At most one tick runs at a time: a call arriving while a previous tick is
// still in flight is skipped. The dedup Has/Add pair is not atomic, so two
// concurrent ticks could both see an event as unnotified and double-send.
//
// Per-bot failures (fetch, decode, bad event data) are logged and isolated:
// the remaining bots still run. Dedup-store failures abort the tick and are
// returned to the caller.
func (s *Service) Tick(ctx context.Context, now time.Time) error {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.log.Warn("previous tick still running, skipping")
		return nil
	}
	defer s.inFlight.Store(false)

	for _, botID := range s.botOrder {
		if err := s.checkBot(ctx, now, botID, s.bots[botID]); err != nil {
			if errors.Is(err, ErrStorage) {
				return err
			}
			s.log.Error("bot check failed", logx.String("bot", botID), logx.Err(err))
		}
	}
	// Flush so a crash between ticks cannot lose records already handed off.
	if err := s.store.Save(ctx); err != nil {
		return fmt.Errorf("%w: save: %w", ErrStorage, err)
	}
	return nil
}

func (s *Service) checkBot(ctx context.Context, now time.Time, botID string, bot config.BotConfig) error {
	delta, err := timewindow.Parse(bot.TimeDelta)
	if err != nil {
		// Config is validated upfront, so this only fires if validation was
		// bypassed.
		return fmt.Errorf("time delta %q: %w", bot.TimeDelta, err)
	}

	events, err := s.fetch.FetchEvents(ctx, bot.Categories, now, delta, s.debug)
	if err != nil {
		return fmt.Errorf("fetch events: %w", err)
	}
	s.log.Debug("events fetched", logx.String("bot", botID), logx.Int("count", len(events)))

	for _, evt := range events {
		if evt.NotHappening() {
			continue
		}
		start, err := evt.StartDate.Resolve()
		if err != nil {
			return fmt.Errorf("event %s: %w", evt.ID.String(), err)
		}
		if !delta.IsDue(now, start) {
			continue
		}

		eventID := evt.ID.String()
		known, err := s.store.Has(ctx, eventID, botID)
		if err != nil {
			return fmt.Errorf("%w: has(%s, %s): %w", ErrStorage, eventID, botID, err)
		}
		if known {
			continue
		}

		// Hand off first, then record. Delivery is at-most-once per storage
		// commit: the record is written even if some channel failed, so the
		// next tick never re-sends.
		if err := s.dispatch.Dispatch(ctx, botID, bot, evt); err != nil {
			s.log.Error("dispatch failed",
				logx.String("bot", botID),
				logx.String("event", eventID),
				logx.Err(err))
		}
		if err := s.store.Add(ctx, eventID, botID); err != nil {
			return fmt.Errorf("%w: add(%s, %s): %w", ErrStorage, eventID, botID, err)
		}
		s.log.Info("notified",
			logx.String("bot", botID),
			logx.String("event", eventID),
			logx.Time("start", start))
	}
	return nil
}
