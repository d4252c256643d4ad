package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const graphAPIBase = "https://graph.facebook.com/v19.0"

// WhatsAppConfig holds WhatsApp Cloud API credentials
type WhatsAppConfig struct {
	PhoneNumberID string
	AccessToken   string
	APITimeout    time.Duration
}

// WhatsAppClient talks to the WhatsApp Cloud API (Meta Graph API).
// It implements Messenger and also downloads inbound media.
type WhatsAppClient struct {
	cfg        WhatsAppConfig
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewWhatsAppClient creates a WhatsApp Cloud API client
func NewWhatsAppClient(cfg WhatsAppConfig, logger *zap.Logger) *WhatsAppClient {
	timeout := cfg.APITimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &WhatsAppClient{
		cfg:        cfg,
		baseURL:    graphAPIBase,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// WithBaseURL points the client at a different API host. Test hook.
func (c *WhatsAppClient) WithBaseURL(url string) *WhatsAppClient {
	c.baseURL = url
	return c
}

type textPayload struct {
	Body string `json:"body"`
}

type interactivePayload struct {
	Type   string          `json:"type"`
	Body   *textBody       `json:"body,omitempty"`
	Action *actionPayload  `json:"action,omitempty"`
	Header json.RawMessage `json:"header,omitempty"`
}

type textBody struct {
	Text string `json:"text"`
}

type actionPayload struct {
	Buttons  []buttonPayload  `json:"buttons,omitempty"`
	Button   string           `json:"button,omitempty"`
	Sections []sectionPayload `json:"sections,omitempty"`
}

type buttonPayload struct {
	Type  string       `json:"type"`
	Reply replyPayload `json:"reply"`
}

type replyPayload struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type sectionPayload struct {
	Title string       `json:"title,omitempty"`
	Rows  []rowPayload `json:"rows"`
}

type rowPayload struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type messageRequest struct {
	MessagingProduct string              `json:"messaging_product"`
	To               string              `json:"to"`
	Type             string              `json:"type"`
	Text             *textPayload        `json:"text,omitempty"`
	Interactive      *interactivePayload `json:"interactive,omitempty"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// SendText sends a plain text message
func (c *WhatsAppClient) SendText(ctx context.Context, to, body string) error {
	return c.send(ctx, &messageRequest{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text:             &textPayload{Body: body},
	})
}

// SendButtons sends an interactive reply-button message. The Cloud API
// caps reply buttons at three.
func (c *WhatsAppClient) SendButtons(ctx context.Context, to, body string, buttons []Button) error {
	if len(buttons) == 0 || len(buttons) > 3 {
		return fmt.Errorf("whatsapp allows 1-3 reply buttons, got %d", len(buttons))
	}

	payload := make([]buttonPayload, 0, len(buttons))
	for _, b := range buttons {
		payload = append(payload, buttonPayload{
			Type:  "reply",
			Reply: replyPayload{ID: b.ID, Title: b.Title},
		})
	}

	return c.send(ctx, &messageRequest{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "interactive",
		Interactive: &interactivePayload{
			Type:   "button",
			Body:   &textBody{Text: body},
			Action: &actionPayload{Buttons: payload},
		},
	})
}

// SendList sends an interactive list message
func (c *WhatsAppClient) SendList(ctx context.Context, to, body, buttonLabel string, sections []ListSection) error {
	if len(sections) == 0 {
		return fmt.Errorf("whatsapp list requires at least one section")
	}

	payload := make([]sectionPayload, 0, len(sections))
	for _, s := range sections {
		rows := make([]rowPayload, 0, len(s.Rows))
		for _, r := range s.Rows {
			rows = append(rows, rowPayload{ID: r.ID, Title: r.Title, Description: r.Description})
		}
		payload = append(payload, sectionPayload{Title: s.Title, Rows: rows})
	}

	return c.send(ctx, &messageRequest{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "interactive",
		Interactive: &interactivePayload{
			Type:   "list",
			Body:   &textBody{Text: body},
			Action: &actionPayload{Button: buttonLabel, Sections: payload},
		},
	})
}

func (c *WhatsAppClient) send(ctx context.Context, msg *messageRequest) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.baseURL, c.cfg.PhoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Failed to send message",
			zap.String("to", msg.To),
			zap.Error(err))
		return fmt.Errorf("failed to send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		var apiErr apiError
		_ = json.Unmarshal(raw, &apiErr)
		c.logger.Error("WhatsApp API returned failure",
			zap.String("to", msg.To),
			zap.Int("status", resp.StatusCode),
			zap.String("message", apiErr.Error.Message))
		return fmt.Errorf("whatsapp API error: status=%d, msg=%s", resp.StatusCode, apiErr.Error.Message)
	}

	c.logger.Info("Message sent",
		zap.String("to", msg.To),
		zap.String("type", msg.Type))
	return nil
}

type mediaInfo struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
}

// DownloadMedia fetches an inbound attachment by media id. The Cloud API
// resolves the id to a short-lived URL which is then fetched with the same
// bearer token.
func (c *WhatsAppClient) DownloadMedia(ctx context.Context, mediaID string) ([]byte, string, error) {
	infoURL := fmt.Sprintf("%s/%s", c.baseURL, mediaID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, infoURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to build media request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to resolve media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("media lookup failed: status=%d", resp.StatusCode)
	}

	var info mediaInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, "", fmt.Errorf("failed to decode media info: %w", err)
	}

	dlReq, err := http.NewRequestWithContext(ctx, http.MethodGet, info.URL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to build download request: %w", err)
	}
	dlReq.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)

	dlResp, err := c.httpClient.Do(dlReq)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download media: %w", err)
	}
	defer dlResp.Body.Close()

	if dlResp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("media download failed: status=%d", dlResp.StatusCode)
	}

	content, err := io.ReadAll(dlResp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read media body: %w", err)
	}

	c.logger.Debug("Media downloaded",
		zap.String("media_id", mediaID),
		zap.String("mime_type", info.MimeType),
		zap.Int("size", len(content)))
	return content, info.MimeType, nil
}
