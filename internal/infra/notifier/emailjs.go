package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"parkwise/internal/pkg/config"
	"parkwise/internal/pkg/errs"
)

type sendRequest struct {
	ServiceID      string            `json:"service_id"`
	TemplateID     string            `json:"template_id"`
	UserID         string            `json:"user_id"`
	AccessToken    string            `json:"accessToken,omitempty"`
	TemplateParams map[string]string `json:"template_params"`
}

// EmailJS sends templated mail through the EmailJS REST API.
type EmailJS struct {
	client *http.Client
	cfg    config.NotifierConfig
	logger *slog.Logger
}

func NewEmailJS(client *http.Client, cfg config.NotifierConfig, logger *slog.Logger) *EmailJS {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EmailJS{client: client, cfg: cfg, logger: logger}
}

// Deliver posts params to the send endpoint and returns the response status. Transport
// failures return status 0 with the error; non-200 responses are not errors here.
func (e *EmailJS) Deliver(ctx context.Context, recipient string, params map[string]string) (int, error) {
	body, err := json.Marshal(sendRequest{
		ServiceID:      e.cfg.ServiceID,
		TemplateID:     e.cfg.TemplateID,
		UserID:         e.cfg.PublicKey,
		AccessToken:    e.cfg.AccessToken,
		TemplateParams: params,
	})
	if err != nil {
		return 0, errs.Wrap(err, "failed to encode notification")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, errs.Wrap(err, "failed to build notification request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return 0, errs.Wrap(err, "notification request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		e.logger.Warn("notification rejected",
			"recipient", recipient, "status", resp.StatusCode, "body", string(text))
	}
	return resp.StatusCode, nil
}
