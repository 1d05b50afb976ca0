package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/utafrali/storefront/pkg/httpclient"
)

// DefaultTwilioBaseURL is the public Twilio REST endpoint.
const DefaultTwilioBaseURL = "https://api.twilio.com"

// TwilioConfig holds the Messages API credentials.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	From       string
	BaseURL    string
}

// TwilioNotifier sends SMS through the Twilio Messages API. While the
// circuit breaker is open messages go to the fallback notifier.
type TwilioNotifier struct {
	cfg      TwilioConfig
	client   *httpclient.CircuitBreakerClient
	fallback Notifier
	logger   *slog.Logger
}

// NewTwilioNotifier creates a Twilio notifier. fallback may be nil.
func NewTwilioNotifier(cfg TwilioConfig, client *httpclient.CircuitBreakerClient, fallback Notifier, logger *slog.Logger) *TwilioNotifier {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultTwilioBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TwilioNotifier{cfg: cfg, client: client, fallback: fallback, logger: logger}
}

func (n *TwilioNotifier) Name() string { return "twilio" }

func (n *TwilioNotifier) endpoint() string {
	return fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", n.cfg.BaseURL, url.PathEscape(n.cfg.AccountSID))
}

// Send posts msg to Twilio. Non-2xx answers are translated with
// httpclient.ParseResponseError.
func (n *TwilioNotifier) Send(ctx context.Context, msg SMS) error {
	form := url.Values{
		"To":   {msg.To},
		"From": {n.cfg.From},
		"Body": {msg.Body},
	}

	resp, err := n.client.PostForm(ctx, n.endpoint(), n.cfg.AccountSID, n.cfg.AuthToken, form)
	if err != nil {
		if errors.Is(err, httpclient.ErrCircuitOpen) && n.fallback != nil {
			n.logger.WarnContext(ctx, "twilio breaker open, using fallback notifier",
				slog.String("fallback", n.fallback.Name()),
			)
			return n.fallback.Send(ctx, msg)
		}
		return fmt.Errorf("send sms: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return httpclient.ParseResponseError(resp, "twilio")
	}
	_ = resp.Body.Close()
	return nil
}
