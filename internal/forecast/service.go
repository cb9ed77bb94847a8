package forecast

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/maximepiton/raspit/pkg/logger"
)

// UpdateListener is called with each newly fetched dataset
type UpdateListener func(ds *Dataset)

// Service keeps the forecast dataset fresh
type Service struct {
	config SourceConfig
	source Source
	cache  *Cache
	logger *logger.Logger

	listeners  []UpdateListener
	listenerMu sync.RWMutex

	// Service lifecycle; ctx is created on each Start
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	mu      sync.RWMutex

	// Initial data readiness
	initialDataReady chan struct{}
	initialDataOnce  sync.Once
}

// NewService creates a forecast service for the configured source kind
func NewService(config SourceConfig, logger *logger.Logger) (*Service, error) {
	var (
		source Source
		err    error
	)
	switch config.Kind {
	case "", SourceKindDocument:
		source, err = NewClient(config, logger)
	case SourceKindOpenMeteo:
		source, err = NewOpenMeteoSource(config, logger)
	default:
		err = fmt.Errorf("unknown source kind: %q", config.Kind)
	}
	if err != nil {
		return nil, err
	}
	return NewServiceWithSource(config, source, logger), nil
}

// NewServiceWithSource creates a forecast service over any source
func NewServiceWithSource(config SourceConfig, source Source, logger *logger.Logger) *Service {
	return &Service{
		config:           config,
		source:           source,
		cache:            NewCache(config, logger),
		logger:           logger.Named("forecast-service"),
		initialDataReady: make(chan struct{}),
	}
}

// OnUpdate registers a listener for new datasets
func (s *Service) OnUpdate(listener UpdateListener) {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	s.listeners = append(s.listeners, listener)
}

// Start begins the background refresh
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil // Already started
	}

	s.logger.Info("Starting forecast service",
		logger.String("source_url", s.config.SourceURL),
		logger.Int("refresh_interval_minutes", s.config.RefreshIntervalMinutes),
		logger.Int("history_days", s.historyDays()))

	s.ctx, s.cancel = context.WithCancel(context.Background())
	ctx := s.ctx

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.performInitialFetch(ctx)
		s.backgroundRefresh(ctx)
	}()

	s.started = true
	return nil
}

// Stop gracefully shuts down the service
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.logger.Info("Stopping forecast service")
	s.cancel()
	s.wg.Wait()

	s.started = false
	s.logger.Info("Forecast service stopped")
	return nil
}

// IsStarted returns whether the service is currently running
func (s *Service) IsStarted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// GetDataset returns the current dataset. Right after start it waits for the
// initial fetch, bounded by ctx.
func (s *Service) GetDataset(ctx context.Context) (*Dataset, error) {
	select {
	case <-s.initialDataReady:
	case <-ctx.Done():
		s.logger.Warn("Gave up waiting for initial forecast data")
		return nil, ErrNoData
	}

	ds := s.cache.Get()
	if ds == nil {
		return nil, ErrNoData
	}
	return ds, nil
}

// GetHistory returns the cached datasets, latest day first. It waits for the
// initial fetch like GetDataset.
func (s *Service) GetHistory(ctx context.Context) ([]*Dataset, error) {
	if _, err := s.GetDataset(ctx); err != nil {
		return nil, err
	}
	days := s.cache.Days()
	if len(days) == 0 {
		return nil, ErrNoData
	}
	return days, nil
}

// Refresh fetches the forecast now and updates the cache
func (s *Service) Refresh(ctx context.Context) error {
	startTime := time.Now()

	days, err := s.fetch(ctx)
	if err != nil {
		s.cache.RecordError(err)
		return err
	}

	s.cache.SetDays(days)
	s.notify(days[0])

	s.logger.Info("Forecast fetch completed",
		logger.Int("hours", len(days[0].Hours)),
		logger.Int("days", len(days)),
		logger.Duration("duration", time.Since(startTime)))
	return nil
}

// fetch asks the source for the configured number of days when it keeps a history
func (s *Service) fetch(ctx context.Context) ([]*Dataset, error) {
	if hs, ok := s.source.(HistorySource); ok && s.historyDays() > 1 {
		days, err := hs.FetchHistory(ctx, s.historyDays())
		if err != nil {
			return nil, err
		}
		if len(days) == 0 {
			return nil, ErrNoData
		}
		return days, nil
	}

	ds, err := s.source.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return []*Dataset{ds}, nil
}

func (s *Service) historyDays() int {
	if s.config.HistoryDays < 1 {
		return 1
	}
	return s.config.HistoryDays
}

// RefreshNow triggers an asynchronous refresh. It does nothing unless the
// service is running.
func (s *Service) RefreshNow() {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		s.logger.Warn("Manual forecast refresh ignored, service not running")
		return
	}

	s.logger.Info("Manual forecast refresh triggered")
	ctx := s.ctx
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_ = s.Refresh(ctx)
	}()
}

// GetCacheStats returns cache statistics
func (s *Service) GetCacheStats() map[string]interface{} {
	return s.cache.GetStats()
}

// LastUpdated returns when the dataset was last refreshed
func (s *Service) LastUpdated() time.Time {
	return s.cache.LastUpdated()
}

// IsStale reports whether the cached dataset is missing or past its expiry
func (s *Service) IsStale() bool {
	return s.cache.IsExpired()
}

func (s *Service) notify(ds *Dataset) {
	s.listenerMu.RLock()
	listeners := append([]UpdateListener(nil), s.listeners...)
	s.listenerMu.RUnlock()

	for _, l := range listeners {
		l(ds)
	}
}

// performInitialFetch performs the first fetch and releases waiting readers
func (s *Service) performInitialFetch(ctx context.Context) {
	s.logger.Info("Performing initial forecast fetch")

	_ = s.Refresh(ctx)

	s.initialDataOnce.Do(func() {
		close(s.initialDataReady)
		s.logger.Info("Initial forecast fetch completed")
	})
}

// backgroundRefresh runs the periodic refresh until the service stops
func (s *Service) backgroundRefresh(ctx context.Context) {
	refreshInterval := time.Duration(s.config.RefreshIntervalMinutes) * time.Minute
	if refreshInterval < time.Minute {
		refreshInterval = 30 * time.Minute
	}

	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	s.logger.Info("Background forecast refresh started",
		logger.String("interval", refreshInterval.String()))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Background forecast refresh stopped")
			return
		case <-ticker.C:
			s.logger.Debug("Periodic forecast refresh triggered")
			_ = s.Refresh(ctx)
		}
	}
}
