package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/CourseFox/internal/pkg/env"
)

// Config controls the in-process tickers. Intervals of zero disable a job.
type Config struct {
	ReconcileInterval    time.Duration
	RetryInterval        time.Duration
	RunTimeout           time.Duration
	BatchLimit           int
	RetryMaxAttempts     int
	ReconcileMaxAttempts int
}

func ConfigFromEnv() Config {
	retryMax := env.GetEnvInt("NOTIFICATION_MAX_ATTEMPTS", 5)
	return Config{
		ReconcileInterval:    time.Duration(env.GetEnvInt("SCHEDULER_RECONCILE_INTERVAL_MINUTES", 5)) * time.Minute,
		RetryInterval:        time.Duration(env.GetEnvInt("SCHEDULER_RETRY_INTERVAL_MINUTES", 10)) * time.Minute,
		RunTimeout:           env.GetEnvSeconds("CRON_MAX_DURATION_SECONDS", 60*time.Second),
		BatchLimit:           env.GetEnvInt("WEBHOOK_REPROCESS_BATCH_LIMIT", 10),
		RetryMaxAttempts:     retryMax,
		ReconcileMaxAttempts: env.GetEnvInt("RECONCILE_NOTIFICATION_MAX_ATTEMPTS", retryMax),
	}
}

// Manager runs the reconciliation and notification retry sweeps on tickers.
// All mutual exclusion lives in the database, so it can run next to
// external cron callers.
type Manager struct {
	events  EventReconciler
	retrier NotificationRetrier
	cfg     Config

	reconcileTicker *time.Ticker
	retryTicker     *time.Ticker
	stopCh          chan struct{}
	wg              sync.WaitGroup
	mu              sync.Mutex
	running         bool
}

func NewManager(events EventReconciler, retrier NotificationRetrier, cfg Config) *Manager {
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 60 * time.Second
	}
	return &Manager{
		events:  events,
		retrier: retrier,
		cfg:     cfg,
		stopCh:  make(chan struct{}),
	}
}

// Start launches the tickers. Calling it twice is a no-op.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}
	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[Scheduler] Starting background sweeps")

	if m.cfg.ReconcileInterval > 0 {
		m.reconcileTicker = time.NewTicker(m.cfg.ReconcileInterval)
		m.wg.Add(1)
		go m.loop("reconcile", m.reconcileTicker.C, m.stopCh, m.runReconcile)
	}
	if m.cfg.RetryInterval > 0 {
		m.retryTicker = time.NewTicker(m.cfg.RetryInterval)
		m.wg.Add(1)
		go m.loop("notification retry", m.retryTicker.C, m.stopCh, m.runRetry)
	}

	log.Infof("[Scheduler] Started (reconcile every %s, retry every %s)", m.cfg.ReconcileInterval, m.cfg.RetryInterval)
}

// Stop halts the tickers and waits for a running sweep to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	log.Info("[Scheduler] Stopping background sweeps...")

	if m.reconcileTicker != nil {
		m.reconcileTicker.Stop()
	}
	if m.retryTicker != nil {
		m.retryTicker.Stop()
	}
	close(m.stopCh)
	m.running = false
	m.wg.Wait()

	log.Info("[Scheduler] Stopped")
}

func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Manager) loop(name string, tick <-chan time.Time, stop <-chan struct{}, run func()) {
	defer m.wg.Done()
	for {
		select {
		case <-stop:
			log.Infof("[Scheduler] %s worker stopping", name)
			return
		case <-tick:
			run()
		}
	}
}

func (m *Manager) runReconcile() {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.RunTimeout)
	defer cancel()
	res, err := RunReconciliation(ctx, m.events, m.retrier, m.cfg.BatchLimit, m.cfg.ReconcileMaxAttempts)
	if err != nil {
		return
	}
	if res.WebhooksProcessed > 0 || res.NotificationsRetried > 0 {
		log.Infow("[Scheduler] reconcile run",
			"webhooks_processed", res.WebhooksProcessed,
			"notifications_retried", res.NotificationsRetried,
			"notifications_failed", res.NotificationsFailed)
	}
}

func (m *Manager) runRetry() {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.RunTimeout)
	defer cancel()
	if _, err := m.retrier.ProcessRetryNotifications(ctx, m.cfg.RetryMaxAttempts); err != nil {
		log.Errorf("[Scheduler] notification retry failed: %v", err)
	}
}
