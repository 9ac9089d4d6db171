// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package bridge is the host-facing ad module. It owns the instance
// registry, the delegate router and the event dispatcher for one native
// SDK, and exposes the SDK, privacy, targeting and ad operations the host
// application calls by identifier.
package bridge

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/crypto/sha3"

	"github.com/luxfi/adbridge/pkg/ads"
	"github.com/luxfi/adbridge/pkg/bannerview"
	"github.com/luxfi/adbridge/pkg/log"
	"github.com/luxfi/adbridge/pkg/metric"
	"github.com/luxfi/adbridge/pkg/native"
	"github.com/luxfi/adbridge/pkg/registry"
	"github.com/luxfi/adbridge/pkg/router"
)

var (
	ErrMissingAppKey    = errors.New("app key is required")
	ErrMissingPlacement = errors.New("placement is required")
)

// Options configures a Module
type Options struct {
	Dispatcher router.DispatcherConfig
	Metrics    *metric.Metrics

	// Level, when set, is adjusted by SetMinLogLevel
	Level *zap.AtomicLevel
}

// InitConfig is the host's initialisation request
type InitConfig struct {
	AppKey       string `json:"appKey"`
	HashedUserID string `json:"hashedUserId,omitempty"`
}

// Module is one bridge instance. All state that a mobile bridge keeps
// process-wide lives here, so tests and servers can run several side by side.
type Module struct {
	sdk     native.SDK
	log     log.Logger
	metrics *metric.Metrics
	level   *zap.AtomicLevel

	reg    *registry.Registry
	router *router.Router
	disp   *router.Dispatcher
	views  *bannerview.Manager

	// privacyMu orders privacy forwards so the SDK sees the last update
	privacyMu sync.Mutex

	mu          sync.RWMutex
	initialized bool
	closed      bool
	env         native.Environment
	logging     bool
	minLevel    string
	privacy     native.Privacy
	userID      string
	hashedUser  string
}

// New creates a module around sdk
func New(sdk native.SDK, logger log.Logger, opts Options) *Module {
	m := &Module{
		sdk:      sdk,
		log:      logger,
		metrics:  opts.Metrics,
		level:    opts.Level,
		env:      native.Production,
		minLevel: "DEBUG",
	}

	m.disp = router.NewDispatcher(opts.Dispatcher, logger.With(log.String("component", "dispatcher")), opts.Metrics)
	m.reg = registry.New(registry.FactoryFunc(m.newNative), logger.With(log.String("component", "registry")))
	m.router = router.New(m.reg, m.disp, logger.With(log.String("component", "router")), opts.Metrics)
	m.views = bannerview.NewManager(sdk, logger.With(log.String("component", "bannerview")))
	return m
}

// newNative is the registry factory. Every native instance gets the router
// as its delegate and revenue listener.
func (m *Module) newNative(t ads.Type, cfg registry.Config) (native.Ad, error) {
	switch t {
	case ads.Interstitial:
		return m.sdk.CreateInterstitial(cfg.Placement, m.router, m.router)
	case ads.Rewarded:
		return m.sdk.CreateRewarded(cfg.Placement, m.router, m.router)
	case ads.Banner:
		size := cfg.Size
		if size == "" {
			size = ads.SizeBanner
		}
		return m.sdk.CreateBanner(cfg.Placement, size, m.router, m.router)
	}
	return nil, ads.ErrInvalidAdType
}

// Initialize initialises the native SDK once. Later calls succeed without
// touching the SDK again.
func (m *Module) Initialize(ctx context.Context, cfg InitConfig) error {
	if cfg.AppKey == "" {
		return ErrMissingAppKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ads.ErrClosed
	}
	if m.initialized {
		m.log.Debug("sdk already initialized")
		return nil
	}

	hashed := cfg.HashedUserID
	if hashed == "" {
		hashed = m.hashedUser
	}
	params := native.InitParams{
		AppKey:      cfg.AppKey,
		Environment: m.env,
		HashedUser:  hashed,
	}
	if err := m.sdk.Initialize(ctx, params); err != nil {
		m.log.Error("sdk initialization failed", log.Error(err))
		return fmt.Errorf("initialize sdk: %w", err)
	}

	m.initialized = true
	m.hashedUser = hashed
	m.log.Info("sdk initialized",
		log.String("environment", string(m.env)),
		log.String("version", m.sdk.Version()),
	)
	return nil
}

// IsInitialized reports whether Initialize has succeeded
func (m *Module) IsInitialized() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.initialized
}

// Version returns the native SDK version
func (m *Module) Version() string {
	return m.sdk.Version()
}

// Environment returns the environment used by the next initialisation
func (m *Module) Environment() native.Environment {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.env
}

// SetEnvironment selects the initialisation server. Unknown names fall
// back to production.
func (m *Module) SetEnvironment(name string) native.Environment {
	env, ok := ParseEnvironment(name)
	if !ok {
		m.log.Warn("unknown environment, defaulting to production", log.String("environment", name))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.env = env
	return env
}

// ParseEnvironment maps an environment name to its value. The second
// result is false when name is not recognised.
func ParseEnvironment(name string) (native.Environment, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "dev", "development":
		return native.Development, true
	case "staging":
		return native.Staging, true
	case "production", "prod":
		return native.Production, true
	}
	return native.Production, false
}

func (m *Module) SetLoggingEnabled(enabled bool) {
	m.mu.Lock()
	m.logging = enabled
	m.mu.Unlock()

	m.sdk.SetLoggingEnabled(enabled)
}

// LoggingEnabled reports the last value passed to SetLoggingEnabled
func (m *Module) LoggingEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.logging
}

// SetMinLogLevel sets the minimum level for SDK and bridge logs. Accepted
// names are VERBOSE, DEBUG, INFO, WARN and ERROR; anything else is DEBUG.
func (m *Module) SetMinLogLevel(name string) string {
	level := strings.ToUpper(strings.TrimSpace(name))
	zl := zapcore.DebugLevel
	switch level {
	case "VERBOSE", "DEBUG":
	case "INFO":
		zl = zapcore.InfoLevel
	case "WARN":
		zl = zapcore.WarnLevel
	case "ERROR":
		zl = zapcore.ErrorLevel
	default:
		m.log.Warn("unknown log level, defaulting to DEBUG", log.String("level", name))
		level = "DEBUG"
	}

	m.mu.Lock()
	m.minLevel = level
	m.mu.Unlock()

	if m.level != nil {
		m.level.SetLevel(zl)
	}
	return level
}

// MinLogLevel returns the level set by SetMinLogLevel
func (m *Module) MinLogLevel() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.minLevel
}

// Subscribe returns a stream of routed events matching filter
func (m *Module) Subscribe(filter router.Filter) (*router.Subscription, error) {
	return m.disp.Subscribe(filter)
}

// Subscribers returns the number of open subscriptions
func (m *Module) Subscribers() int {
	return m.disp.Subscribers()
}

// Views returns the banner view manager
func (m *Module) Views() *bannerview.Manager {
	return m.views
}

// Placement returns the placement of a live instance
func (m *Module) Placement(key ads.Key) (string, bool) {
	return m.reg.Placement(key)
}

// Instances lists the live ad instances
func (m *Module) Instances() []registry.Entry {
	return m.reg.Entries()
}

// Close destroys every live instance and mounted banner view and stops
// event delivery. Events already queued are delivered before subscriber
// channels close.
func (m *Module) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()

	entries := m.reg.Drain()
	for _, e := range entries {
		release(e.Ad)
	}
	for _, t := range ads.Types {
		m.observeLive(t)
	}
	m.views.Close()
	m.disp.Close()

	m.log.Info("bridge closed", log.Int("destroyed", len(entries)))
}

func (m *Module) requireReady() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return ads.ErrClosed
	}
	if !m.initialized {
		return ads.ErrNotInitialized
	}
	return nil
}

func (m *Module) observeLive(t ads.Type) {
	if m.metrics == nil {
		return
	}
	m.metrics.LiveInstances.WithLabelValues(t.String()).Set(float64(m.reg.Len(t)))
}

// release tears down a native instance that is no longer registered
func release(ad native.Ad) {
	if b, ok := ad.(native.Banner); ok {
		b.StopAutoRefresh()
	}
	ad.Destroy()
}

// hashUserID returns the hex SHA3-256 digest of id
func hashUserID(id string) string {
	sum := sha3.Sum256([]byte(id))
	return hex.EncodeToString(sum[:])
}
