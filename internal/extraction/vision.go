package extraction

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image/jpeg"
	"path/filepath"
	"strings"

	"github.com/condominio/pagobot/internal/fields"
	"github.com/condominio/pagobot/internal/storage"
	"github.com/gen2brain/go-fitz"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// VisionExtractor reads receipts with the OpenAI vision API. PDFs are
// rasterized page by page with mupdf first; images go straight through.
// The house-number heuristic runs here, on the extracted amount, so the
// draft leaves this package with the house already attributed when the
// cents allow it.
type VisionExtractor struct {
	client    *openai.Client
	model     string
	artifacts storage.ArtifactStore
	fieldsCfg fields.ValidatorConfig
	logger    *zap.Logger
}

// NewVisionExtractor creates a vision-based receipt extractor
func NewVisionExtractor(apiKey, model string, artifacts storage.ArtifactStore, fieldsCfg fields.ValidatorConfig, logger *zap.Logger) *VisionExtractor {
	return &VisionExtractor{
		client:    openai.NewClient(apiKey),
		model:     model,
		artifacts: artifacts,
		fieldsCfg: fieldsCfg,
		logger:    logger,
	}
}

// extractedFields mirrors the JSON shape the model is instructed to return
type extractedFields struct {
	Amount        string `json:"amount"`
	PaymentDate   string `json:"payment_date"`
	PaymentTime   string `json:"payment_time"`
	BankReference string `json:"bank_reference"`
	Incomplete    bool   `json:"incomplete"`
	MissingPrompt string `json:"missing_prompt"`
}

// Extract stores the artifact, rasterizes it if needed and asks the model
// for the receipt fields
func (e *VisionExtractor) Extract(ctx context.Context, content []byte, filename, locale string) (*Result, error) {
	e.logger.Info("Extracting receipt fields",
		zap.String("filename", filename),
		zap.Int("size", len(content)))

	artifactPath, err := e.artifacts.Save(filename, content)
	if err != nil {
		return nil, fmt.Errorf("failed to store artifact: %w", err)
	}

	images, err := e.toImages(content, filename)
	if err != nil {
		e.logger.Error("Failed to prepare receipt images", zap.Error(err))
		return nil, fmt.Errorf("failed to prepare receipt: %w", err)
	}

	extracted, err := e.extractWithVision(ctx, images, locale)
	if err != nil {
		return nil, err
	}

	result := &Result{ArtifactPath: artifactPath}
	result.Draft.Amount = strings.TrimSpace(extracted.Amount)
	result.Draft.PaymentDate = strings.TrimSpace(extracted.PaymentDate)
	result.Draft.PaymentTime = strings.TrimSpace(extracted.PaymentTime)
	result.Draft.BankReference = strings.TrimSpace(extracted.BankReference)
	result.Draft.FieldsIncomplete = extracted.Incomplete
	result.Draft.MissingPrompt = extracted.MissingPrompt

	if result.Draft.Amount != "" {
		if n, ok := e.fieldsCfg.DecodeHouseNumber(result.Draft.Amount); ok {
			result.Draft.HouseNumber = n
		}
	}

	e.logger.Info("Receipt fields extracted",
		zap.String("amount", result.Draft.Amount),
		zap.String("payment_date", result.Draft.PaymentDate),
		zap.Bool("incomplete", result.Draft.FieldsIncomplete))
	return result, nil
}

// toImages converts the upload to one or more JPEG pages
func (e *VisionExtractor) toImages(content []byte, filename string) ([][]byte, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext != ".pdf" {
		// channel already delivers images as JPEG/PNG; pass through
		return [][]byte{content}, nil
	}

	doc, err := fitz.NewFromMemory(content)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	var images [][]byte
	pageCount := doc.NumPage()
	// receipts are single-page; cap at 2 to control token cost
	if pageCount > 2 {
		pageCount = 2
	}

	for pageNum := 0; pageNum < pageCount; pageNum++ {
		img, err := doc.Image(pageNum)
		if err != nil {
			e.logger.Warn("Failed to rasterize page",
				zap.Int("page", pageNum), zap.Error(err))
			continue
		}

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
			e.logger.Warn("Failed to encode page",
				zap.Int("page", pageNum), zap.Error(err))
			continue
		}
		images = append(images, buf.Bytes())
	}

	if len(images) == 0 {
		return nil, fmt.Errorf("no pages rasterized from PDF")
	}
	return images, nil
}

func (e *VisionExtractor) extractWithVision(ctx context.Context, images [][]byte, locale string) (*extractedFields, error) {
	contentParts := []openai.ChatMessagePart{{
		Type: openai.ChatMessagePartTypeText,
		Text: buildPrompt(locale),
	}}

	for _, imgData := range images {
		contentParts = append(contentParts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    fmt.Sprintf("data:image/jpeg;base64,%s", base64.StdEncoding.EncodeToString(imgData)),
				Detail: openai.ImageURLDetailHigh,
			},
		})
	}

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       e.model,
		MaxTokens:   1024,
		Temperature: 0.1,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You read bank transfer receipts and return the payment fields as JSON. Always respond with valid JSON.",
			},
			{
				Role:         openai.ChatMessageRoleUser,
				MultiContent: contentParts,
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		e.logger.Error("Vision API call failed", zap.Error(err))
		return nil, fmt.Errorf("failed to extract receipt fields: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from vision API")
	}

	var out extractedFields
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &out); err != nil {
		e.logger.Error("Failed to parse extraction result",
			zap.String("content", resp.Choices[0].Message.Content),
			zap.Error(err))
		return nil, fmt.Errorf("failed to parse extraction result: %w", err)
	}

	return &out, nil
}

func buildPrompt(locale string) string {
	return fmt.Sprintf(`Extract the following fields from this bank transfer receipt (locale hint: %s):
- amount: the transferred amount, digits and decimal separator only (e.g. "500.15")
- payment_date: the date of the transfer as printed
- payment_time: the time of the transfer as printed
- bank_reference: the bank's reference or folio text, empty string if absent
- incomplete: true if amount, date or time could not be read
- missing_prompt: when incomplete, a short sentence naming what is unreadable

Respond with a single JSON object using exactly those keys.`, locale)
}
