package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"dexanalytics/internal/config"
	"dexanalytics/internal/domain"

	"github.com/nats-io/nats.go"
	"gitlab.com/nevasik7/alerting/logger"
)

const DefaultSubjectPrefix = "clmm.events"

// EventHandler applies one event; it is called from a single goroutine
type EventHandler interface {
	Handle(ctx context.Context, env *domain.Envelope) error
}

// Subscriber reads every event kind from one wildcard subscription, so the
// publisher's order is kept across kinds, and hands them to the handler one
// at a time.
type Subscriber struct {
	log     logger.Logger
	client  *Client
	handler EventHandler
	subject string
	buffer  int
}

func NewSubscriber(log logger.Logger, client *Client, cfg *config.IngestConfig, handler EventHandler) (*Subscriber, error) {
	if client == nil {
		return nil, errors.New("nats client is required to the subscriber")
	}
	if handler == nil {
		return nil, errors.New("event handler is required to the subscriber")
	}

	prefix := DefaultSubjectPrefix
	buffer := 4096
	if cfg != nil {
		if p := strings.TrimSuffix(cfg.SubjectPrefix, "."); p != "" {
			prefix = p
		}
		if cfg.Buffer > 0 {
			buffer = cfg.Buffer
		}
	}

	return &Subscriber{
		log:     log,
		client:  client,
		handler: handler,
		subject: prefix + ".>",
		buffer:  buffer,
	}, nil
}

func (s *Subscriber) Subject() string { return s.subject }

// Run blocks until ctx is done. ready, if not nil, is closed once the
// subscription is registered on the server.
func (s *Subscriber) Run(ctx context.Context, ready chan<- struct{}) error {
	if !s.client.Ready() {
		return ErrNotConnected
	}

	msgs := make(chan *nats.Msg, s.buffer)
	sub, err := s.client.nc.ChanSubscribe(s.subject, msgs)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", s.subject, err)
	}
	defer func() {
		if err := sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			s.log.Warnf("Unsubscribe %s, error=%v", s.subject, err)
		}
	}()

	if err = s.client.nc.Flush(); err != nil {
		return fmt.Errorf("flush subscription %s: %w", s.subject, err)
	}
	s.log.Infof("Subscribed to %s", s.subject)
	if ready != nil {
		close(ready)
	}

	for {
		select {
		case <-ctx.Done():
			s.log.Infof("Subscriber for %s stopped", s.subject)
			return nil
		case msg := <-msgs:
			s.dispatch(ctx, msg)
		}
	}
}

func (s *Subscriber) dispatch(ctx context.Context, msg *nats.Msg) {
	env, err := DecodeEnvelope(msg.Subject, msg.Data)
	if err != nil {
		s.log.Errorf("Skip malformed event on %s: %v", msg.Subject, err)
		return
	}

	if err = s.handler.Handle(ctx, env); err != nil {
		s.log.Errorf("Failed to handle %s event %s: %v", env.Kind, env.EventID(), err)
	}
}

// DecodeEnvelope parses a message; a missing kind is taken from the last subject token
func DecodeEnvelope(subject string, data []byte) (*domain.Envelope, error) {
	var env domain.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	if env.Kind == "" {
		if i := strings.LastIndexByte(subject, '.'); i >= 0 && i < len(subject)-1 {
			env.Kind = domain.EventKind(subject[i+1:])
		}
	}
	if env.Kind == "" {
		return nil, errors.New("envelope without kind")
	}
	if env.TxHash == "" {
		return nil, errors.New("envelope without tx_hash")
	}

	return &env, nil
}
