// Package webhook receives WhatsApp Cloud API callbacks and feeds them
// into the conversation engine.
package webhook

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/condominio/pagobot/internal/conversation"
)

// defaultLocale is the hint passed to extraction for receipts submitted
// without an explicit language
const defaultLocale = "es"

// handleTimeout bounds the background processing of one inbound message
const handleTimeout = 2 * time.Minute

// MediaDownloader fetches an inbound attachment by its WhatsApp media id
type MediaDownloader interface {
	DownloadMedia(ctx context.Context, mediaID string) ([]byte, string, error)
}

// Engine is the conversation entry point the webhook feeds
type Engine interface {
	HandleArtifact(ctx context.Context, from string, content []byte, filename, locale string)
	HandleReply(ctx context.Context, from string, reply conversation.Reply)
}

// Handler handles WhatsApp webhook requests
type Handler struct {
	engine      Engine
	media       MediaDownloader
	verifyToken string
	logger      *zap.Logger
}

// NewHandler creates a new webhook handler
func NewHandler(engine Engine, media MediaDownloader, verifyToken string, logger *zap.Logger) *Handler {
	return &Handler{
		engine:      engine,
		media:       media,
		verifyToken: verifyToken,
		logger:      logger,
	}
}

// Verify answers the Cloud API subscription handshake
func (h *Handler) Verify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode != "subscribe" || token != h.verifyToken {
		h.logger.Warn("Webhook verification rejected", zap.String("mode", mode))
		c.String(http.StatusForbidden, "verification failed")
		return
	}

	h.logger.Info("Webhook verified")
	c.String(http.StatusOK, challenge)
}

// notification mirrors the Cloud API webhook envelope, reduced to the
// fields this bot consumes
type notification struct {
	Object string `json:"object"`
	Entry  []struct {
		Changes []struct {
			Value struct {
				Messages []inboundMessage `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type inboundMessage struct {
	From string `json:"from"`
	ID   string `json:"id"`
	Type string `json:"type"`

	Text *struct {
		Body string `json:"body"`
	} `json:"text"`

	Image *struct {
		ID       string `json:"id"`
		MimeType string `json:"mime_type"`
	} `json:"image"`

	Document *struct {
		ID       string `json:"id"`
		Filename string `json:"filename"`
		MimeType string `json:"mime_type"`
	} `json:"document"`

	Interactive *struct {
		Type        string `json:"type"`
		ButtonReply *struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"button_reply"`
		ListReply *struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"list_reply"`
	} `json:"interactive"`
}

// Receive acknowledges the callback immediately and processes each message
// in the background. The Cloud API redelivers on non-200 responses, so the
// acknowledgment never waits on extraction or the database.
func (h *Handler) Receive(c *gin.Context) {
	var payload notification
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.logger.Error("Malformed webhook payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed payload"})
		return
	}

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				go h.process(msg)
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "received"})
}

// process routes one inbound message to the conversation engine
func (h *Handler) process(msg inboundMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()

	h.logger.Info("Inbound message",
		zap.String("from", msg.From),
		zap.String("type", msg.Type),
		zap.String("message_id", msg.ID))

	switch msg.Type {
	case "text":
		if msg.Text == nil {
			return
		}
		h.engine.HandleReply(ctx, msg.From, conversation.Reply{Text: msg.Text.Body})

	case "interactive":
		if msg.Interactive == nil {
			return
		}
		reply, ok := interactiveReply(msg)
		if !ok {
			h.logger.Warn("Interactive message without a reply payload",
				zap.String("message_id", msg.ID))
			return
		}
		h.engine.HandleReply(ctx, msg.From, reply)

	case "image":
		if msg.Image == nil {
			return
		}
		h.handleAttachment(ctx, msg.From, msg.Image.ID, attachmentFilename(msg.ID, msg.Image.MimeType))

	case "document":
		if msg.Document == nil {
			return
		}
		filename := msg.Document.Filename
		if filename == "" {
			filename = attachmentFilename(msg.ID, msg.Document.MimeType)
		}
		h.handleAttachment(ctx, msg.From, msg.Document.ID, filename)

	default:
		h.logger.Info("Ignoring unsupported message type",
			zap.String("type", msg.Type),
			zap.String("from", msg.From))
	}
}

// handleAttachment downloads the media and submits it as a receipt
func (h *Handler) handleAttachment(ctx context.Context, from, mediaID, filename string) {
	content, _, err := h.media.DownloadMedia(ctx, mediaID)
	if err != nil {
		h.logger.Error("Failed to download media",
			zap.String("media_id", mediaID),
			zap.String("from", from),
			zap.Error(err))
		return
	}

	h.engine.HandleArtifact(ctx, from, content, filename, defaultLocale)
}

func interactiveReply(msg inboundMessage) (conversation.Reply, bool) {
	switch {
	case msg.Interactive.ButtonReply != nil:
		return conversation.Reply{
			OptionID: msg.Interactive.ButtonReply.ID,
			Text:     msg.Interactive.ButtonReply.Title,
		}, true
	case msg.Interactive.ListReply != nil:
		return conversation.Reply{
			OptionID: msg.Interactive.ListReply.ID,
			Text:     msg.Interactive.ListReply.Title,
		}, true
	}
	return conversation.Reply{}, false
}

// attachmentFilename derives a stable filename for media that arrive
// without one
func attachmentFilename(messageID, mimeType string) string {
	ext := ".bin"
	switch mimeType {
	case "image/jpeg":
		ext = ".jpg"
	case "image/png":
		ext = ".png"
	case "image/webp":
		ext = ".webp"
	case "application/pdf":
		ext = ".pdf"
	}
	return fmt.Sprintf("receipt-%s%s", messageID, ext)
}
