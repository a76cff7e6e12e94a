package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/728jm2pczg-glitch/bid-aggregator/internal/logger"
)

const slackTimeout = 30 * time.Second

// SlackSender delivers messages to incoming webhooks. The recipient is
// the webhook URL itself.
type SlackSender struct {
	httpClient *http.Client
	log        logger.Interface
}

// NewSlackSender creates a SlackSender.
func NewSlackSender(log logger.Interface) *SlackSender {
	return &SlackSender{
		httpClient: &http.Client{Timeout: slackTimeout},
		log:        log.WithComponent("slack"),
	}
}

// Channel returns the channel identifier.
func (s *SlackSender) Channel() string { return ChannelSlack }

// Send posts the Block Kit payload to the webhook.
func (s *SlackSender) Send(ctx context.Context, webhookURL string, msg Message) error {
	payload, err := json.Marshal(formatSlack(msg))
	if err != nil {
		return fmt.Errorf("failed to encode slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("slack webhook unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("slack webhook returned %d: %s", resp.StatusCode, string(body))
	}

	s.log.Debug("slack notification delivered", "items", len(msg.Items))
	return nil
}
