package vision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"huishoudboek/internal/config"
)

func newTestClient(endpoint string) *Client {
	return NewClient(&config.Config{
		VisionEndpoint:         endpoint,
		VisionAPIKey:           "test-key",
		VisionModel:            "test-model",
		VisionTimeout:          5 * time.Second,
		VisionFallbackCategory: "Overig",
	})
}

func visionResponse(text string) string {
	body, _ := json.Marshal(map[string]any{
		"candidates": []map[string]any{{
			"content": map[string]any{
				"parts": []map[string]any{{"text": text}},
			},
		}},
	})
	return string(body)
}

func TestInterpret(t *testing.T) {
	categories := []string{"Boodschappen", "Vervoer", "Overig"}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-goog-api-key") != "test-key" {
			t.Errorf("expected api key header, got %q", r.Header.Get("x-goog-api-key"))
		}
		if !strings.Contains(r.URL.Path, "test-model") {
			t.Errorf("expected model in path, got %s", r.URL.Path)
		}
		fmt.Fprint(w, visionResponse(`{"amount": 12.50, "date": "2025-06-15", "category": "Boodschappen", "description": "Albert Heijn"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	receipt, err := client.Interpret(context.Background(), []byte("fake-image"), "image/jpeg", categories)
	if err != nil {
		t.Fatalf("Interpret failed: %v", err)
	}
	if receipt.Amount.Cents != 1250 {
		t.Errorf("expected 1250 cents, got %d", receipt.Amount.Cents)
	}
	if receipt.Date.ISO() != "2025-06-15" {
		t.Errorf("expected date 2025-06-15, got %s", receipt.Date.ISO())
	}
	if receipt.Category != "Boodschappen" || !receipt.CategoryMatched {
		t.Errorf("expected matched category Boodschappen, got %q matched=%v", receipt.Category, receipt.CategoryMatched)
	}
	if receipt.Description != "Albert Heijn" {
		t.Errorf("unexpected description %q", receipt.Description)
	}
}

func TestInterpretCategoryNormalization(t *testing.T) {
	categories := []string{"Boodschappen", "Vervoer", "Overig"}

	tests := []struct {
		returned    string
		expected    string
		wantMatched bool
	}{
		{"Boodschappen", "Boodschappen", true},
		{"  boodschappen ", "Boodschappen", true},
		{"VERVOER", "Vervoer", true},
		{"Groceries", "Overig", false},
		{"", "Overig", false},
	}

	for i, tt := range tests {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, visionResponse(fmt.Sprintf(`{"amount": 5, "date": "2025-01-02", "category": %q, "description": "x"}`, tt.returned)))
		}))

		client := newTestClient(server.URL)
		receipt, err := client.Interpret(context.Background(), []byte("img"), "image/jpeg", categories)
		server.Close()
		if err != nil {
			t.Fatalf("case %d: Interpret failed: %v", i, err)
		}
		if receipt.Category != tt.expected {
			t.Errorf("case %d: expected category %q, got %q", i, tt.expected, receipt.Category)
		}
		if receipt.CategoryMatched != tt.wantMatched {
			t.Errorf("case %d: expected matched=%v, got %v", i, tt.wantMatched, receipt.CategoryMatched)
		}
	}
}

func TestInterpretFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"remote error status", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "quota exceeded", http.StatusTooManyRequests)
		}},
		{"empty candidates", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"candidates": []}`)
		}},
		{"empty text", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, visionResponse("  "))
		}},
		{"unparseable extraction", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, visionResponse("not json at all"))
		}},
		{"invalid amount", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, visionResponse(`{"amount": "abc", "date": "2025-01-02", "category": "Overig", "description": "x"}`))
		}},
		{"invalid date", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, visionResponse(`{"amount": 5, "date": "15-06-2025", "category": "Overig", "description": "x"}`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			client := newTestClient(server.URL)
			_, err := client.Interpret(context.Background(), []byte("img"), "image/jpeg", []string{"Overig"})
			if err == nil {
				t.Fatal("expected error")
			}
			var ie *InterpretationError
			if !errors.As(err, &ie) {
				t.Errorf("expected InterpretationError, got %T: %v", err, err)
			}
		})
	}
}

func TestInterpretEmptyImage(t *testing.T) {
	client := newTestClient("http://unused")
	_, err := client.Interpret(context.Background(), nil, "image/jpeg", []string{"Overig"})
	var ie *InterpretationError
	if !errors.As(err, &ie) {
		t.Fatalf("expected InterpretationError, got %v", err)
	}
}

func TestInterpretTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server notices the client disconnect and
		// cancels the request context; otherwise Close deadlocks.
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	client.timeout = 50 * time.Millisecond

	_, err := client.Interpret(context.Background(), []byte("img"), "image/jpeg", []string{"Overig"})
	if err == nil {
		t.Fatal("expected timeout error")
	}
}
