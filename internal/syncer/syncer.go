// Package syncer persists store changes: synchronously to local storage and,
// debounced, to the remote store when a site and configuration name are selected.
// Persistence failures are logged and never reach the caller that made the edit.
package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"racksum/internal/catalog"
	"racksum/internal/metrics"
	"racksum/internal/models"
	"racksum/internal/rack"
	"racksum/internal/storage"
)

// Local storage keys
const (
	KeyConfig        = "racksum-config"
	KeyProviders     = "racker-resource-providers"
	KeySite          = "racksum-current-site"
	KeyConfigName    = "racksum-current-rack-name"
	KeyCustomDevices = "racksum-custom-devices"
)

// DefaultDebounce is the quiet period before a remote write
const DefaultDebounce = 2 * time.Second

// RemoteStore saves a configuration under (siteID, name), overwriting any existing one
type RemoteStore interface {
	SaveConfiguration(ctx context.Context, siteID int64, name string, configData json.RawMessage, description string) error
}

// Session is the selected remote slot. Remote writes need both fields set.
type Session struct {
	SiteID     int64  `json:"siteId"`
	ConfigName string `json:"configName"`
}

// Active reports whether remote writes are enabled
func (s Session) Active() bool {
	return s.SiteID > 0 && s.ConfigName != ""
}

// Syncer observes a store and persists its changes
type Syncer struct {
	store   *rack.Store
	local   storage.Store
	remote  RemoteStore
	timeout time.Duration
	delay   time.Duration
	log     zerolog.Logger

	debounce *Debouncer
	inflight *semaphore.Weighted

	mu          sync.Mutex
	session     Session
	unsubscribe func()
}

// Option configures a Syncer
type Option func(*Syncer)

// WithRemote enables remote writes through r
func WithRemote(r RemoteStore) Option {
	return func(s *Syncer) {
		s.remote = r
	}
}

// WithDebounce sets the quiet period before a remote write
func WithDebounce(d time.Duration) Option {
	return func(s *Syncer) {
		s.delay = d
	}
}

// WithTimeout bounds each remote write
func WithTimeout(d time.Duration) Option {
	return func(s *Syncer) {
		s.timeout = d
	}
}

// WithLogger replaces the global logger
func WithLogger(l zerolog.Logger) Option {
	return func(s *Syncer) {
		s.log = l
	}
}

// New creates a syncer for store persisting to local. Call Restore, then Start.
func New(store *rack.Store, local storage.Store, opts ...Option) *Syncer {
	s := &Syncer{
		store:    store,
		local:    local,
		timeout:  10 * time.Second,
		delay:    DefaultDebounce,
		log:      log.Logger,
		inflight: semaphore.NewWeighted(1),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With().Str("component", "syncer").Logger()
	s.debounce = NewDebouncer(s.delay, s.remoteWrite, metrics.RemoteSuperseded.Inc)
	return s
}

// Restore loads the configuration, providers and session from local storage.
// Missing keys are skipped; corrupt entries are logged and ignored.
func (s *Syncer) Restore() {
	if data, ok := s.read(KeyConfig); ok {
		if err := s.store.LoadConfiguration([]byte(data)); err != nil {
			s.log.Warn().Err(err).Str("key", KeyConfig).Msg("ignoring stored configuration")
		}
	}

	if data, ok := s.read(KeyProviders); ok {
		var providers []models.ResourceProvider
		err := json.Unmarshal([]byte(data), &providers)
		if err == nil {
			err = s.store.Registry().ReplaceAll(providers)
		}
		if err != nil {
			s.log.Warn().Err(err).Str("key", KeyProviders).Msg("ignoring stored providers")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.read(KeySite); ok {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			s.log.Warn().Err(err).Str("key", KeySite).Msg("ignoring stored site")
		} else {
			s.session.SiteID = id
		}
	}
	if v, ok := s.read(KeyConfigName); ok {
		s.session.ConfigName = v
	}
}

func (s *Syncer) read(key string) (string, bool) {
	v, err := s.local.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return "", false
	}
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("local storage read failed")
		return "", false
	}
	return v, true
}

// Start subscribes to store changes. It is a no-op when already started.
func (s *Syncer) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unsubscribe != nil {
		return
	}
	s.unsubscribe = s.store.Subscribe(s.handle)
}

func (s *Syncer) handle(c rack.Change) {
	switch c.Kind {
	case rack.ChangeConfig:
		s.persistConfig()
		if s.Session().Active() && s.remote != nil {
			s.debounce.Trigger()
		}
	case rack.ChangeProviders:
		s.persistProviders()
	}
}

func (s *Syncer) persistConfig() {
	data, err := json.Marshal(s.store.Configuration())
	if err != nil {
		s.log.Error().Err(err).Msg("encode configuration")
		return
	}
	s.write(KeyConfig, string(data))
}

func (s *Syncer) persistProviders() {
	data, err := json.Marshal(s.store.Registry().List())
	if err != nil {
		s.log.Error().Err(err).Msg("encode providers")
		return
	}
	s.write(KeyProviders, string(data))
}

// write is best-effort: failures are logged and counted, state is not rolled back
func (s *Syncer) write(key, value string) {
	if err := s.local.Set(key, value); err != nil {
		metrics.LocalWrites.WithLabelValues(key, "error").Inc()
		s.log.Error().Err(err).Str("key", key).Msg("local storage write failed")
		return
	}
	metrics.LocalWrites.WithLabelValues(key, "ok").Inc()
}

func (s *Syncer) remoteWrite() {
	if err := s.push(context.Background()); err != nil {
		s.log.Warn().Err(err).Msg("remote save failed")
	}
}

// push sends the latest configuration to the remote store. Only one push runs
// at a time; a push that waited for another reads the configuration afterwards.
func (s *Syncer) push(ctx context.Context) error {
	if s.remote == nil {
		return nil
	}
	if err := s.inflight.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.inflight.Release(1)

	sess := s.Session()
	if !sess.Active() {
		return nil
	}

	cfg := s.store.Configuration()
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode configuration: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	err = s.remote.SaveConfiguration(ctx, sess.SiteID, sess.ConfigName, data, cfg.Metadata.Description)
	if err != nil {
		metrics.RemoteWrites.WithLabelValues("error").Inc()
		return fmt.Errorf("save %q to site %d: %w", sess.ConfigName, sess.SiteID, err)
	}
	metrics.RemoteWrites.WithLabelValues("ok").Inc()
	s.log.Debug().
		Int64("site_id", sess.SiteID).
		Str("name", sess.ConfigName).
		Dur("took", time.Since(start)).
		Msg("configuration saved remotely")
	return nil
}

// Save writes the configuration to the remote store now, cancelling any pending
// debounced write, and returns the outcome.
func (s *Syncer) Save(ctx context.Context) error {
	s.debounce.Cancel()
	if s.remote == nil {
		return errors.New("remote store not configured")
	}
	if !s.Session().Active() {
		return errors.New("no site and configuration name selected")
	}
	return s.push(ctx)
}

// Flush sends a pending debounced write immediately. Without one it does nothing.
func (s *Syncer) Flush(ctx context.Context) error {
	if !s.debounce.Cancel() {
		return nil
	}
	return s.push(ctx)
}

// Pending reports whether a remote write is scheduled
func (s *Syncer) Pending() bool {
	return s.debounce.Pending()
}

// Close unsubscribes from the store, drops a pending remote write and waits for
// a running one.
func (s *Syncer) Close() {
	s.mu.Lock()
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.mu.Unlock()

	s.debounce.Stop()
}

// Session returns the selected remote slot
func (s *Syncer) Session() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// SetSite selects a site. Selecting no site (0) also clears the configuration name.
func (s *Syncer) SetSite(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id <= 0 {
		s.session = Session{}
		s.remove(KeySite)
		s.remove(KeyConfigName)
		return
	}
	s.session.SiteID = id
	s.write(KeySite, strconv.FormatInt(id, 10))
}

// SetConfigName selects the configuration slot within the current site
func (s *Syncer) SetConfigName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.session.ConfigName = name
	if name == "" {
		s.remove(KeyConfigName)
		return
	}
	s.write(KeyConfigName, name)
}

// ClearSession deselects site and configuration name
func (s *Syncer) ClearSession() {
	s.SetSite(0)
}

func (s *Syncer) remove(key string) {
	if err := s.local.Delete(key); err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("local storage delete failed")
	}
}

// CustomCategories returns the locally authored catalog categories
func (s *Syncer) CustomCategories() []catalog.Category {
	data, ok := s.read(KeyCustomDevices)
	if !ok {
		return nil
	}
	var custom []catalog.Category
	if err := json.Unmarshal([]byte(data), &custom); err != nil {
		s.log.Warn().Err(err).Str("key", KeyCustomDevices).Msg("ignoring stored custom devices")
		return nil
	}
	return custom
}

// SetCustomCategories persists the locally authored catalog categories
func (s *Syncer) SetCustomCategories(custom []catalog.Category) error {
	data, err := json.Marshal(custom)
	if err != nil {
		return err
	}
	s.write(KeyCustomDevices, string(data))
	return nil
}
