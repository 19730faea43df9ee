package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/sourcegraph/conc"

	"showvault/models"
	"showvault/services/events"
	"showvault/services/shows"
)

// SettingsSource is the view of the shows service the scheduler needs.
type SettingsSource interface {
	LoadForShow(ctx context.Context, showID int64) (*models.ShowSettings, error)
	ListShows(ctx context.Context) ([]*models.ShowSettings, error)
}

// SearchIntent is a queued backlog search for one episode. It becomes due
// once the episode's air date plus the show's search delay has passed.
type SearchIntent struct {
	ShowID   int64
	Season   int
	Episode  int
	AirDate  time.Time
	QueuedAt time.Time
}

func (i SearchIntent) String() string {
	return fmt.Sprintf("show %d S%02dE%02d", i.ShowID, i.Season, i.Episode)
}

// Service queues backlog searches for unpaused shows and reacts to
// settings-changed events: pausing a show drops its queued searches and
// blocks new ones until it is resumed.
type Service struct {
	shows    SettingsSource
	bus      *events.Bus
	interval time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      conc.WaitGroup
	sub     chan events.SettingsChanged
	paused  map[int64]bool
	pending []SearchIntent
}

// NewService creates the search scheduler.
func NewService(source SettingsSource, bus *events.Bus) *Service {
	return &Service{
		shows:    source,
		bus:      bus,
		interval: time.Minute,
		paused:   make(map[int64]bool),
	}
}

// Start begins the scheduler background loops.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true

	// Seed the pause set from the stored library so restarts keep paused
	// shows paused.
	if all, err := s.shows.ListShows(runCtx); err != nil {
		log.Printf("[scheduler] failed to load shows: %v", err)
	} else {
		for _, show := range all {
			if show.Paused {
				s.paused[show.ShowID] = true
			}
		}
	}

	s.sub = s.bus.Subscribe()
	s.wg.Go(func() { s.eventLoop(runCtx) })
	s.wg.Go(func() { s.sweepLoop(runCtx) })

	log.Printf("[scheduler] started (%d show(s) paused)", len(s.paused))
	return nil
}

// Stop stops the background loops and waits for them to finish.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	sub := s.sub
	s.mu.Unlock()

	s.bus.Unsubscribe(sub)
	s.wg.Wait()
	log.Printf("[scheduler] stopped")
}

// Submit queues a backlog search intent. Intents for paused shows are
// dropped immediately.
func (s *Service) Submit(intent SearchIntent) {
	intent.QueuedAt = time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.paused[intent.ShowID] {
		log.Printf("[scheduler] not queuing %s, show is paused", intent)
		return
	}
	s.pending = append(s.pending, intent)
}

// Pending returns a snapshot of the queued intents.
func (s *Service) Pending() []SearchIntent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SearchIntent, len(s.pending))
	copy(out, s.pending)
	return out
}

// IsPaused reports the scheduler's view of the show's pause state.
func (s *Service) IsPaused(showID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused[showID]
}

// TakeDue removes and returns every queued intent whose air date plus the
// show's search delay has passed. Intents for shows that became paused or
// were removed are dropped from the queue; the rest stay queued.
func (s *Service) TakeDue(ctx context.Context, now time.Time) []SearchIntent {
	s.mu.Lock()
	queued := s.pending
	s.pending = nil
	s.mu.Unlock()

	var due, kept []SearchIntent
	delays := make(map[int64]int)

	for _, intent := range queued {
		if s.IsPaused(intent.ShowID) {
			log.Printf("[scheduler] dropping %s, show is paused", intent)
			continue
		}

		delay, ok := delays[intent.ShowID]
		if !ok {
			settings, err := s.shows.LoadForShow(ctx, intent.ShowID)
			if errors.Is(err, shows.ErrShowNotFound) {
				continue
			}
			if err != nil {
				kept = append(kept, intent)
				continue
			}
			delay = settings.SearchDelayDays
			delays[intent.ShowID] = delay
		}

		if now.Before(intent.AirDate.AddDate(0, 0, delay)) {
			kept = append(kept, intent)
			continue
		}
		due = append(due, intent)
	}

	s.mu.Lock()
	s.pending = append(kept, s.pending...)
	s.mu.Unlock()

	return due
}

func (s *Service) eventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-s.sub:
			if !ok {
				return
			}
			s.handleEvent(e)
		}
	}
}

func (s *Service) handleEvent(e events.SettingsChanged) {
	if !e.Changed("paused") {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if e.Paused {
		s.paused[e.ShowID] = true
		dropped := 0
		kept := s.pending[:0]
		for _, intent := range s.pending {
			if intent.ShowID == e.ShowID {
				dropped++
				continue
			}
			kept = append(kept, intent)
		}
		s.pending = kept
		log.Printf("[scheduler] show %d paused, dropped %d queued search(es)", e.ShowID, dropped)
		return
	}

	delete(s.paused, e.ShowID)
	log.Printf("[scheduler] show %d resumed, searches may queue again", e.ShowID)
}

func (s *Service) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, intent := range s.TakeDue(ctx, time.Now().UTC()) {
				// Search execution lives outside this service; the sweep
				// records the intent becoming actionable.
				log.Printf("[scheduler] %s is due for backlog search", intent)
			}
		}
	}
}
