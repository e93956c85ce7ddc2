package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/naosaki/naowatt-backend/pkg/config"
	"github.com/naosaki/naowatt-backend/pkg/enums"
	"github.com/naosaki/naowatt-backend/pkg/logger"
)

var errRecipientRequired = errors.New("recipient email is required")

// Mailer delivers templated transactional email. Callers treat delivery as
// fire-and-forget: a failed send is logged and retried by the mail provider,
// never rolled into the caller's transaction.
type Mailer interface {
	SendTemplated(ctx context.Context, template enums.MailTemplate, recipient string, variables map[string]string) error
}

// Client talks to the mail provider's HTTP API.
type Client struct {
	baseURL string
	apiKey  string
	from    string
	http    *http.Client
	logger  *logger.Logger
}

// NewClient initializes the mail client and validates the configuration.
func NewClient(ctx context.Context, cfg config.MailerConfig, logg *logger.Logger) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("mailer api base url is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := &Client{
		baseURL: baseURL,
		apiKey:  strings.TrimSpace(cfg.APIKey),
		from:    strings.TrimSpace(cfg.DefaultFrom),
		http:    &http.Client{Timeout: timeout},
		logger:  logg,
	}

	if logg != nil {
		logg.Info(ctx, "mailer client initialized")
	}
	return c, nil
}

type sendRequest struct {
	From       string            `json:"from"`
	To         string            `json:"to"`
	TemplateID string            `json:"template_id"`
	Variables  map[string]string `json:"variables,omitempty"`
}

// SendTemplated posts a templated message to the provider.
func (c *Client) SendTemplated(ctx context.Context, template enums.MailTemplate, recipient string, variables map[string]string) error {
	if !template.IsValid() {
		return fmt.Errorf("invalid mail template %q", template)
	}
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return errRecipientRequired
	}

	payload, err := json.Marshal(sendRequest{
		From:       c.from,
		To:         recipient,
		TemplateID: string(template),
		Variables:  variables,
	})
	if err != nil {
		return fmt.Errorf("marshal mail payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v3/mail/send", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build mail request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("mail provider returned status %d", resp.StatusCode)
	}
	return nil
}

// LogOnly is a Mailer for dev environments that records sends without
// talking to a provider.
type LogOnly struct {
	Logger *logger.Logger
}

// SendTemplated logs the would-be delivery.
func (l LogOnly) SendTemplated(ctx context.Context, template enums.MailTemplate, recipient string, variables map[string]string) error {
	if l.Logger != nil {
		ctx = l.Logger.WithFields(ctx, map[string]any{
			"template":  string(template),
			"recipient": recipient,
		})
		l.Logger.Info(ctx, "mail send skipped (log-only mailer)")
	}
	return nil
}
