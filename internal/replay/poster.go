package replay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/fightlog/internal/domain/model"
	"github.com/okian/fightlog/pkg/logger"
)

const (
	defaultBatchSize  = 500
	defaultTimeout    = 10 * time.Second
	defaultMaxRetries = 5
	retryBackoff      = 100 * time.Millisecond
	idempotencyHeader = "Idempotency-Key"
)

// Poster sends event streams to a running server's /events endpoint.
type Poster struct {
	cfg    PostConfig
	client *http.Client
	log    logger.Logger
}

// NewPoster creates a Poster, filling zero config fields with defaults.
func NewPoster(cfg PostConfig, l logger.Logger) *Poster {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	} else if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if l == nil {
		l = logger.OrDiscard("poster")
	}
	return &Poster{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}, log: l}
}

// CheckHealth verifies the server answers /healthz.
func (p *Poster) CheckHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+"/healthz", http.NoBody)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, resp.StatusCode)
	}
	return nil
}

// Post sends events in order, one batch at a time. A batch refused for
// backpressure is retried with a growing delay; any other refusal stops
// the post.
func (p *Poster) Post(ctx context.Context, events []model.Event) (PostStats, error) {
	var stats PostStats
	for start := 0; start < len(events); start += p.cfg.BatchSize {
		batch := events[start:min(start+p.cfg.BatchSize, len(events))]
		body, err := encodeBatch(batch)
		if err != nil {
			return stats, err
		}
		n, retries, err := p.send(ctx, uuid.NewString(), body, len(batch))
		stats.Retries += retries
		if err != nil {
			return stats, fmt.Errorf("batch at event %d: %w", start, err)
		}
		stats.Batches++
		stats.Accepted += n
		p.log.Debug(ctx, "batch accepted",
			logger.Int("batch", stats.Batches),
			logger.Int("accepted", stats.Accepted),
			logger.Int("total", len(events)),
		)
	}
	return stats, nil
}

type ackResponse struct {
	Status   string `json:"status"`
	Accepted int    `json:"accepted"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// send posts one batch under key, reusing the key for every retry so the
// server accepts the batch at most once.
func (p *Poster) send(ctx context.Context, key string, body []byte, count int) (accepted, retries int, err error) {
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/events", bytes.NewReader(body))
		if err != nil {
			return 0, retries, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(idempotencyHeader, key)
		resp, err := p.client.Do(req)
		if err != nil {
			return 0, retries, fmt.Errorf("post events: %w", err)
		}
		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return 0, retries, fmt.Errorf("read response: %w", err)
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			// An earlier attempt of this batch was accepted.
			return count, retries, nil
		case resp.StatusCode == http.StatusAccepted:
			var ack ackResponse
			if err := json.Unmarshal(data, &ack); err != nil {
				return 0, retries, fmt.Errorf("decode ack: %w", err)
			}
			return ack.Accepted, retries, nil
		case resp.StatusCode == http.StatusTooManyRequests && attempt < p.cfg.MaxRetries:
			retries++
			select {
			case <-ctx.Done():
				return 0, retries, ctx.Err()
			case <-time.After(retryBackoff * time.Duration(attempt+1)):
			}
		default:
			var e errorResponse
			_ = json.Unmarshal(data, &e)
			return 0, retries, fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, e.Message)
		}
	}
}

func encodeBatch(events []model.Event) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, ev := range events {
		data, err := model.Encode(ev)
		if err != nil {
			return nil, err
		}
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(data)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}
