package watch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Registrar registers the mailbox for push notifications on a topic
type Registrar interface {
	Watch(ctx context.Context, topicName string) (time.Time, error)
}

// Renewer keeps the Gmail watch registration alive. A registration
// expires after roughly seven days, so it is re-registered daily.
type Renewer struct {
	cron      *cron.Cron
	entryID   cron.EntryID
	registrar Registrar
	topicName string
	ctx       context.Context
	cancel    context.CancelFunc
	isRunning bool
	mu        sync.RWMutex
}

// NewRenewer creates a watch renewer for the given topic
func NewRenewer(registrar Registrar, topicName string) *Renewer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Renewer{
		cron:      cron.New(),
		registrar: registrar,
		topicName: topicName,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Register performs the initial watch registration. Failure here is
// startup-fatal for the caller: without a registration no notifications
// will ever arrive.
func (r *Renewer) Register(ctx context.Context) (time.Time, error) {
	expiration, err := r.registrar.Watch(ctx, r.topicName)
	if err != nil {
		return time.Time{}, err
	}
	logrus.Infof("Gmail watch started, expires %s", expiration.Format("2006-01-02 15:04:05"))
	return expiration, nil
}

// Start schedules the daily renewal
func (r *Renewer) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.isRunning {
		return fmt.Errorf("watch renewer is already running")
	}

	entryID, err := r.cron.AddFunc("@daily", r.renew)
	if err != nil {
		return fmt.Errorf("failed to add renewal job: %w", err)
	}

	r.entryID = entryID
	r.cron.Start()
	r.isRunning = true

	logrus.Info("Watch renewer started with daily schedule")
	return nil
}

// Stop stops the renewal schedule
func (r *Renewer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.isRunning {
		return nil
	}

	r.cancel()
	stopCtx := r.cron.Stop()

	select {
	case <-stopCtx.Done():
		logrus.Info("Watch renewer stopped")
	case <-time.After(10 * time.Second):
		logrus.Warn("Watch renewer stop timeout, forcing shutdown")
	}

	r.isRunning = false
	return nil
}

// IsRunning returns whether the renewer is running
func (r *Renewer) IsRunning() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.isRunning
}

// renew re-registers the watch; failure here is retried on the next tick
func (r *Renewer) renew() {
	expiration, err := r.registrar.Watch(r.ctx, r.topicName)
	if err != nil {
		logrus.Errorf("Failed to renew Gmail watch: %v", err)
		return
	}
	logrus.Infof("Gmail watch renewed, expires %s", expiration.Format("2006-01-02 15:04:05"))
}
