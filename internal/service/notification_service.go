package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"yield-ledger/internal/core/domain"
	"yield-ledger/internal/core/ports"
	"yield-ledger/pkg/logger"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// notifyRetryIntervals is the wait before each redelivery attempt.
var notifyRetryIntervals = []time.Duration{
	15 * time.Second,
	60 * time.Second,
	2 * time.Minute,
	5 * time.Minute,
}

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// NotificationServiceImpl implements ports.Notifier by posting signed JSON
// envelopes to a single webhook endpoint. Delivery happens in the
// background and failures are only logged.
type NotificationServiceImpl struct {
	url            string
	secret         string
	sigSvc         ports.SignatureService
	httpClient     HTTPClient
	retryIntervals []time.Duration
	attemptTimeout time.Duration
	log            zerolog.Logger
	now            func() time.Time
}

// NewNotificationService creates a notifier. An empty url disables delivery;
// events are then only logged.
func NewNotificationService(url, secret string, timeout time.Duration, sigSvc ports.SignatureService, httpClient HTTPClient, log zerolog.Logger) *NotificationServiceImpl {
	return &NotificationServiceImpl{
		url:            url,
		secret:         secret,
		sigSvc:         sigSvc,
		httpClient:     httpClient,
		retryIntervals: notifyRetryIntervals,
		attemptTimeout: timeout,
		log:            logger.Component(log, "notifier"),
		now:            time.Now,
	}
}

// Notify enqueues event for userID. It never blocks on the network.
func (s *NotificationServiceImpl) Notify(ctx context.Context, userID uuid.UUID, event domain.EventKind, payload map[string]any) {
	n := domain.Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Event:     event,
		Payload:   payload,
		CreatedAt: s.now().UTC(),
	}

	if s.url == "" {
		s.log.Info().
			Str("notification_id", n.ID.String()).
			Str("user_id", userID.String()).
			Str("event", string(event)).
			Msg("notification recorded, no endpoint configured")
		return
	}

	body, err := json.Marshal(n)
	if err != nil {
		s.log.Warn().Err(err).Str("event", string(event)).Msg("notify: failed to marshal payload")
		return
	}

	go s.deliverWithRetries(context.WithoutCancel(ctx), n, body)
}

func (s *NotificationServiceImpl) deliverWithRetries(ctx context.Context, n domain.Notification, body []byte) {
	ts := strconv.FormatInt(n.CreatedAt.Unix(), 10)
	signature := s.sigSvc.Sign(s.secret, ts+"."+string(body))
	log := s.log.With().
		Str("notification_id", n.ID.String()).
		Str("event", string(n.Event)).
		Logger()

	for attempt := 0; attempt <= len(s.retryIntervals); attempt++ {
		if attempt > 0 {
			time.Sleep(s.retryIntervals[attempt-1])
		}

		status, err := s.post(ctx, body, ts, signature)
		if err != nil {
			log.Warn().Err(err).Int("attempt", attempt+1).Msg("notify: delivery failed")
			continue
		}
		if status >= 200 && status < 300 {
			log.Info().Int("attempt", attempt+1).Int("status", status).Msg("notify: delivered")
			return
		}
		log.Warn().Int("attempt", attempt+1).Int("status", status).Msg("notify: non-2xx response, retrying")
	}

	log.Warn().Msg("notify: all retry attempts exhausted")
}

func (s *NotificationServiceImpl) post(ctx context.Context, body []byte, ts, signature string) (int, error) {
	if s.attemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.attemptTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Timestamp", ts)
	req.Header.Set("X-Signature", signature)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}
