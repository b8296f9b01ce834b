// Package delivery turns a user's request into relayed media: it resolves the
// username, fetches and scans the public page, then downloads and relays each
// item in order.
package delivery

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"snapbot/pkg/config"
	"snapbot/pkg/extractor"
	"snapbot/pkg/logger"
	"snapbot/pkg/metrics"
	"snapbot/pkg/models"
	"snapbot/pkg/retry"
	"snapbot/pkg/snapchat"
)

// DefaultSignature is appended to media captions
const DefaultSignature = "Via SnapBot"

// Service orchestrates deliveries
type Service struct {
	pages     PageSource
	fetcher   MediaFetcher
	extract   func(html string) []models.MediaItem
	maxItems  int
	sendDelay time.Duration
	signature string
	now       func() time.Time
	logger    logger.Logger

	// batches numbers deliveries so asset names stay unique within a second
	batches atomic.Uint64
}

// Option customises a Service
type Option func(*Service)

// WithExtractor replaces the page extractor
func WithExtractor(fn func(html string) []models.MediaItem) Option {
	return func(s *Service) { s.extract = fn }
}

// WithClock replaces the time source used for asset names
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithSignature sets the caption suffix. Empty disables it.
func WithSignature(sig string) Option {
	return func(s *Service) { s.signature = sig }
}

// NewService creates a delivery service
func NewService(pages PageSource, fetcher MediaFetcher, cfg config.DownloadConfig, log logger.Logger, opts ...Option) *Service {
	if log == nil {
		log = logger.GetLogger()
	}
	maxItems := cfg.MaxItems
	if maxItems <= 0 {
		maxItems = 10
	}

	s := &Service{
		pages:     pages,
		fetcher:   fetcher,
		extract:   extractor.Extract,
		maxItems:  maxItems,
		sendDelay: cfg.SendDelay,
		signature: DefaultSignature,
		now:       time.Now,
		logger:    log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Deliver handles one request. A missing identifier or an empty page is
// reported to the user and is not an error; the only error returned is
// cancellation of ctx.
func (s *Service) Deliver(ctx context.Context, text string, requesterID int64, m Messenger) (models.Summary, error) {
	start := time.Now()
	metrics.ActiveDeliveries.Inc()
	defer metrics.ActiveDeliveries.Dec()

	log := s.logger.WithFields(map[string]interface{}{
		"delivery_id":  uuid.NewString(),
		"requester_id": requesterID,
	})

	summary, err := s.deliver(ctx, text, requesterID, m, log)

	metrics.DeliveriesTotal.WithLabelValues(string(summary.Outcome)).Inc()
	metrics.DeliveryDuration.Observe(time.Since(start).Seconds())
	log.InfoWithFields("Delivery finished", map[string]interface{}{
		"username":  summary.Username,
		"found":     summary.Found,
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed,
		"outcome":   string(summary.Outcome),
		"duration":  time.Since(start),
	})
	return summary, err
}

func (s *Service) deliver(ctx context.Context, text string, requesterID int64, m Messenger, log logger.Logger) (models.Summary, error) {
	username, ok := snapchat.ParseIdentifier(text)
	if !ok {
		s.reply(ctx, m, log, invalidInputText)
		return models.Summary{Outcome: models.OutcomeInvalidInput}, nil
	}

	summary := models.Summary{Username: username}
	log = log.WithFields(map[string]interface{}{
		"username": username,
		"profile":  snapchat.ShareURL(username),
	})

	s.reply(ctx, m, log, searchingText(username))

	html, err := s.pages.FetchProfilePage(ctx, username)
	if err != nil {
		if ctx.Err() != nil {
			summary.Outcome = models.OutcomeCancelled
			return summary, ctx.Err()
		}
		log.WithError(err).Warn("Profile page unavailable")
		html = ""
	}

	items := s.extract(html)
	summary.Found = len(items)
	for _, item := range items {
		metrics.ItemsExtractedTotal.WithLabelValues(item.Source).Inc()
	}

	if len(items) == 0 {
		summary.Outcome = models.OutcomeNotFound
		s.status(ctx, m, log, notFoundText(username))
		return summary, nil
	}
	s.status(ctx, m, log, foundText(len(items)))

	summary.Outcome = models.OutcomeDelivered
	prefix := fmt.Sprintf("%d_%d_%d", requesterID, s.now().Unix(), s.batches.Add(1))
	limit := min(len(items), s.maxItems)
	for idx := 0; idx < limit; idx++ {
		if ctx.Err() != nil {
			summary.Outcome = models.OutcomeCancelled
			break
		}
		summary.Attempted++

		relayed, err := s.relayItem(ctx, items[idx], idx, username, prefix, m)
		logger.LogDelivery(log, username, idx, string(items[idx].Kind), err)
		if err != nil {
			metrics.ItemsRelayedTotal.WithLabelValues("failed").Inc()
		} else {
			metrics.ItemsRelayedTotal.WithLabelValues("sent").Inc()
			summary.Succeeded++
		}

		if relayed && idx < limit-1 {
			if err := retry.Wait(ctx, s.sendDelay); err != nil {
				summary.Outcome = models.OutcomeCancelled
				break
			}
		}
	}
	summary.Failed = summary.Attempted - summary.Succeeded

	// The summary is still sent after cancellation, so it must not inherit ctx.
	s.status(context.WithoutCancel(ctx), m, log, summaryText(summary))

	if summary.Outcome == models.OutcomeCancelled {
		return summary, ctx.Err()
	}
	return summary, nil
}

// relayItem fetches one item and relays it. relayed reports whether a send
// was attempted, which is what the inter-item delay paces.
func (s *Service) relayItem(ctx context.Context, item models.MediaItem, idx int, username, prefix string, m Messenger) (relayed bool, err error) {
	name := fmt.Sprintf("%s_%d", prefix, idx)
	assetPath, ok := s.fetcher.Fetch(ctx, item.URL, name)
	if !ok {
		return false, fmt.Errorf("fetch failed for item %d", idx)
	}
	defer s.fetcher.Release(assetPath)

	c := caption(item, username, s.signature)
	if item.IsVideo() {
		err = m.ReplyVideo(ctx, assetPath, c)
	} else {
		err = m.ReplyPhoto(ctx, assetPath, c)
	}
	if err != nil {
		return true, fmt.Errorf("relay failed: %w", err)
	}
	return true, nil
}

func (s *Service) reply(ctx context.Context, m Messenger, log logger.Logger, text string) {
	if err := m.ReplyText(ctx, text); err != nil {
		log.WithError(err).Warn("Failed to send message")
	}
}

func (s *Service) status(ctx context.Context, m Messenger, log logger.Logger, text string) {
	if editor, ok := m.(StatusEditor); ok {
		if err := editor.EditStatus(ctx, text); err == nil {
			return
		}
	}
	s.reply(ctx, m, log, text)
}
