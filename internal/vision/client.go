package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"huishoudboek/internal/config"
	"huishoudboek/internal/core"
)

// Receipt is the structured result of interpreting a receipt image.
type Receipt struct {
	Amount      core.Money
	Date        core.Date
	Category    string
	Description string
	// CategoryMatched reports whether the model's category was found in the
	// permitted list. When false, Category holds the fallback label.
	CategoryMatched bool
}

// Client calls a generative vision endpoint to extract expense fields from
// a receipt photo. One request per scan, no retries; failures surface as
// *InterpretationError with the raw reason.
type Client struct {
	endpoint         string
	apiKey           string
	model            string
	timeout          time.Duration
	fallbackCategory string
	httpClient       *http.Client
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		endpoint:         strings.TrimRight(cfg.VisionEndpoint, "/"),
		apiKey:           cfg.VisionAPIKey,
		model:            cfg.VisionModel,
		timeout:          cfg.VisionTimeout,
		fallbackCategory: cfg.VisionFallbackCategory,
		httpClient:       newHTTPClientWithPooling(),
	}
}

// newHTTPClientWithPooling creates an HTTP client with connection pooling
// and per-phase timeouts. The overall deadline is applied per request from
// the configured interpretation timeout.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext: dialer.DialContext,

		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     50,
		IdleConnTimeout:     90 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		DisableKeepAlives: false,
		ForceAttemptHTTP2: true,
	}

	return &http.Client{Transport: transport}
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generationConfig struct {
	ResponseMimeType string `json:"response_mime_type,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type receiptPayload struct {
	Amount      json.Number `json:"amount"`
	Date        string      `json:"date"`
	Category    string      `json:"category"`
	Description string      `json:"description"`
}

// Interpret extracts expense fields from a receipt image. The returned
// category is always one of the permitted categories or the fallback label.
func (c *Client) Interpret(ctx context.Context, image []byte, mediaType string, categories []string) (Receipt, error) {
	if len(image) == 0 {
		return Receipt{}, interpretationErr("empty image", nil)
	}
	if c.apiKey == "" {
		return Receipt{}, interpretationErr("missing api key", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	reqBody := generateRequest{
		Contents: []content{{
			Parts: []part{
				{InlineData: &inlineData{
					MimeType: mediaType,
					Data:     base64.StdEncoding.EncodeToString(image),
				}},
				{Text: buildPrompt(categories)},
			},
		}},
		GenerationConfig: &generationConfig{ResponseMimeType: "application/json"},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return Receipt{}, interpretationErr("encode request", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.endpoint, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Receipt{}, interpretationErr("build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Receipt{}, interpretationErr("call vision service", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Receipt{}, interpretationErr("read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Receipt{}, interpretationErr(fmt.Sprintf("vision service returned status %d", resp.StatusCode),
			errors.New(strings.TrimSpace(string(respBody))))
	}

	var gr generateResponse
	if err := json.Unmarshal(respBody, &gr); err != nil {
		return Receipt{}, interpretationErr("parse response", err)
	}
	if gr.Error != nil {
		return Receipt{}, interpretationErr("vision service error", errors.New(gr.Error.Message))
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return Receipt{}, interpretationErr("empty response", nil)
	}

	text := strings.TrimSpace(gr.Candidates[0].Content.Parts[0].Text)
	if text == "" {
		return Receipt{}, interpretationErr("empty response", nil)
	}

	receipt, err := c.parseReceipt(ctx, text, categories)
	if err != nil {
		return Receipt{}, err
	}

	slog.InfoContext(ctx, "Receipt interpreted",
		"duration", time.Since(start),
		"category", receipt.Category,
		"category_matched", receipt.CategoryMatched,
		"amount_cents", receipt.Amount.Cents)
	return receipt, nil
}

func (c *Client) parseReceipt(ctx context.Context, text string, categories []string) (Receipt, error) {
	var payload receiptPayload
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return Receipt{}, interpretationErr("parse extraction", err)
	}

	cents, err := core.ParseDecimalToCents(payload.Amount.String())
	if err != nil {
		return Receipt{}, interpretationErr(fmt.Sprintf("invalid amount %q", payload.Amount.String()), err)
	}

	date, err := core.ParseDate(payload.Date)
	if err != nil {
		return Receipt{}, interpretationErr(fmt.Sprintf("invalid date %q", payload.Date), err)
	}

	set := core.NewCategorySet(categories)
	category, matched := set.Resolve(payload.Category)
	if !matched {
		slog.WarnContext(ctx, "Unknown category from vision service, using fallback",
			"returned", payload.Category,
			"fallback", c.fallbackCategory)
		category = c.fallbackCategory
	}

	return Receipt{
		Amount:          core.Money{Cents: cents},
		Date:            date,
		Category:        category,
		Description:     strings.TrimSpace(payload.Description),
		CategoryMatched: matched,
	}, nil
}

func buildPrompt(categories []string) string {
	var b strings.Builder
	b.WriteString("Extract the following fields from this receipt photo and answer with a single JSON object, nothing else: ")
	b.WriteString(`{"amount": <total amount as decimal number>, "date": "<purchase date as YYYY-MM-DD>", "category": "<one category>", "description": "<short merchant or purchase description>"}. `)
	b.WriteString("Pick the category from this list: ")
	b.WriteString(strings.Join(categories, ", "))
	b.WriteString(".")
	return b.String()
}
