package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gitlab.com/nevasik7/alerting/logger"
)

type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// Consumer runs until ctx is done; ready is closed once it receives events
type Consumer interface {
	Run(ctx context.Context, ready chan<- struct{}) error
}

type App struct {
	log      logger.Logger
	httpSrv  HTTPServer
	consumer Consumer

	cancel context.CancelFunc
	wg     sync.WaitGroup
	errCh  chan error
}

func New(log logger.Logger, httpSrv HTTPServer, consumer Consumer) *App {
	return &App{log: log, httpSrv: httpSrv, consumer: consumer, errCh: make(chan error, 2)}
}

// Start returns once the consumer is subscribed; later failures arrive on Errors
func (a *App) Start(ctx context.Context) error {
	a.log.Debug("App started begin...")

	runCtx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	ready := make(chan struct{})
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.consumer.Run(runCtx, ready); err != nil {
			a.errCh <- fmt.Errorf("consumer: %w", err)
		}
	}()

	select {
	case <-ready:
	case err := <-a.errCh:
		cancel()
		a.wg.Wait()
		return err
	case <-ctx.Done():
		cancel()
		a.wg.Wait()
		return ctx.Err()
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.httpSrv.ListenAndServe(); err != nil {
			a.errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	a.log.Info("App started")
	return nil
}

func (a *App) Errors() <-chan error { return a.errCh }

// Shutdown stops HTTP first, then the consumer after its current event
func (a *App) Shutdown(ctx context.Context) error {
	a.log.Debug("App stopped begin...")

	var errs []error
	if err := a.httpSrv.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if a.cancel != nil {
		a.cancel()
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("wait for workers: %w", ctx.Err()))
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}
	a.log.Info("App stopped")
	return nil
}
