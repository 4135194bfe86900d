// Package webhook posts enriched expense rows to the spreadsheet URL a
// tenant configured. The receiving end is typically an Apps Script or
// automation endpoint that writes the rows into the actual sheet; the
// response body is ignored, only the status code matters.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"huishoudboek/internal/core"
	ports "huishoudboek/internal/export"
)

type Client struct {
	httpClient *http.Client
}

var _ ports.RowAppender = (*Client)(nil)

func New() *Client {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &Client{
		httpClient: &http.Client{
			Transport: &http.Transport{
				DialContext:         dialer.DialContext,
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
			Timeout: 30 * time.Second,
		},
	}
}

type exportRow struct {
	ID          string  `json:"id"`
	Date        string  `json:"date"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Amount      float64 `json:"amount"`
	Remaining   float64 `json:"remaining_budget"`
	UserName    string  `json:"user_name"`
}

type exportPayload struct {
	TenantID string      `json:"tenant_id"`
	Rows     []exportRow `json:"rows"`
}

// AppendRows posts the rows to the tenant's sheet URL as one JSON batch.
func (c *Client) AppendRows(ctx context.Context, tenant core.Tenant, rows []core.ExportRow) error {
	if len(rows) == 0 {
		return nil
	}
	if tenant.SheetURL == "" {
		return errors.New("tenant has no sheet url configured")
	}
	if _, err := url.ParseRequestURI(tenant.SheetURL); err != nil {
		return fmt.Errorf("invalid sheet url: %w", err)
	}

	payload := exportPayload{TenantID: tenant.ID, Rows: make([]exportRow, 0, len(rows))}
	for _, r := range rows {
		payload.Rows = append(payload.Rows, exportRow{
			ID:          r.ID,
			Date:        r.Date.ISO(),
			Description: r.Description,
			Category:    r.Category,
			Amount:      r.Amount.Euros(),
			Remaining:   r.RemainingAfter.Euros(),
			UserName:    r.UserName,
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode export payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tenant.SheetURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build export request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post export rows: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sheet endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
