package frame

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/provide-io/einkframe/internal/assets"
	"github.com/provide-io/einkframe/internal/store"
	ferrors "github.com/provide-io/einkframe/pkg/errors"
	"github.com/provide-io/einkframe/pkg/logging"
)

// Store is the part of the local cache the sync loop drives.
type Store interface {
	Reconcile(ctx context.Context, manifest assets.Manifest) error
	ConvertPending(ctx context.Context) error
	ListProcessed() ([]string, error)
	Stats() store.Stats
}

// SyncState is the sync loop's current step.
type SyncState string

const (
	StateIdle        SyncState = "idle"
	StateFetching    SyncState = "fetching"
	StateReconciling SyncState = "reconciling"
	StateConverting  SyncState = "converting"
	StatePublishing  SyncState = "publishing"
)

// SyncStatus describes the sync loop for the status endpoint.
type SyncStatus struct {
	State     SyncState `json:"state"`
	Cycles    int       `json:"cycles"`
	LastStart time.Time `json:"last_start"`
	LastEnd   time.Time `json:"last_end"`
	LastError string    `json:"last_error,omitempty"`
	Manifest  int       `json:"manifest"`
}

// SyncLoop periodically pulls the album manifest, reconciles the store,
// converts new originals and publishes the bitmaps to the playlist.
type SyncLoop struct {
	search   assets.SearchHandler
	source   assets.Source
	store    Store
	playlist *Playlist
	interval time.Duration
	trigger  chan struct{}
	logger   hclog.Logger

	mu     sync.Mutex
	status SyncStatus
}

// NewSyncLoop creates a SyncLoop running every interval.
func NewSyncLoop(search assets.SearchHandler, source assets.Source, st Store, playlist *Playlist, interval time.Duration, logger hclog.Logger) *SyncLoop {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &SyncLoop{
		search:   search,
		source:   source,
		store:    st,
		playlist: playlist,
		interval: interval,
		trigger:  make(chan struct{}, 1),
		logger:   logging.OrNull(logger).Named("sync"),
		status:   SyncStatus{State: StateIdle},
	}
}

// Trigger requests a cycle as soon as the current one finishes. It never
// blocks; requests made while one is pending are merged.
func (s *SyncLoop) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Status returns a copy of the loop status.
func (s *SyncLoop) Status() SyncStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Run cycles until ctx is cancelled. The first cycle starts immediately and
// each following one starts interval after the previous start. Errors of an
// expected class abandon the cycle; anything else is returned.
func (s *SyncLoop) Run(ctx context.Context) error {
	s.logger.Info("🔄 Sync loop started", "interval", s.interval)
	defer s.logger.Info("🛑 Sync loop stopped")

	for {
		start := time.Now()
		err := s.cycle(ctx)
		s.finish(err)

		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			if !ferrors.Expected(err) {
				s.logger.Error("❌ Sync cycle failed with unexpected error", "error", err)
				return fmt.Errorf("sync cycle: %w", err)
			}
			s.logger.Warn("⚠️ Sync cycle abandoned", "error", err)
		}

		wait := s.interval - time.Since(start)
		if wait <= 0 {
			s.logger.Warn("⏱️ Sync cycle overran interval", "elapsed", time.Since(start).Round(time.Millisecond), "interval", s.interval)
			wait = 0
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-s.trigger:
			timer.Stop()
			s.logger.Debug("⚡ Sync triggered")
		case <-timer.C:
		}
	}
}

func (s *SyncLoop) cycle(ctx context.Context) error {
	s.setState(StateFetching)
	manifest, err := s.search.Search(ctx, s.source)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.status.Manifest = len(manifest)
	s.mu.Unlock()

	s.setState(StateReconciling)
	if err := s.store.Reconcile(ctx, manifest); err != nil {
		return err
	}

	s.setState(StateConverting)
	if err := s.store.ConvertPending(ctx); err != nil {
		return err
	}

	s.setState(StatePublishing)
	paths, err := s.store.ListProcessed()
	if err != nil {
		return err
	}
	s.playlist.Replace(paths)
	s.logger.Info("📋 Playlist updated", "images", len(paths))
	return nil
}

func (s *SyncLoop) setState(state SyncState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state == StateFetching {
		s.status.LastStart = time.Now()
	}
	s.status.State = state
}

func (s *SyncLoop) finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.State = StateIdle
	s.status.Cycles++
	s.status.LastEnd = time.Now()
	s.status.LastError = ""
	if err != nil {
		s.status.LastError = err.Error()
	}
}
