package http

import (
	"context"
	"errors"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/hexastack/agentic/runtime"
)

func TestFlattenToFormData(t *testing.T) {
	tests := []struct {
		name     string
		input    map[string]any
		expected map[string]string
	}{
		{
			name: "simple values",
			input: map[string]any{
				"amount":   1099,
				"currency": "usd",
			},
			expected: map[string]string{
				"amount":   "1099",
				"currency": "usd",
			},
		},
		{
			name: "nested map",
			input: map[string]any{
				"amount": 1099,
				"metadata": map[string]any{
					"order_id": "12345",
					"user":     "john",
				},
			},
			expected: map[string]string{
				"amount":             "1099",
				"metadata[order_id]": "12345",
				"metadata[user]":     "john",
			},
		},
		{
			name: "deeply nested",
			input: map[string]any{
				"shipping": map[string]any{
					"address": map[string]any{
						"city":    "NYC",
						"country": "US",
					},
				},
			},
			expected: map[string]string{
				"shipping[address][city]":    "NYC",
				"shipping[address][country]": "US",
			},
		},
		{
			name: "array values",
			input: map[string]any{
				"items": []any{"item1", "item2"},
			},
			expected: map[string]string{
				"items[0]": "item1",
				"items[1]": "item2",
			},
		},
		{
			name: "array of objects",
			input: map[string]any{
				"line_items": []any{
					map[string]any{"price": "price_123", "quantity": 2},
					map[string]any{"price": "price_456", "quantity": 1},
				},
			},
			expected: map[string]string{
				"line_items[0][price]":    "price_123",
				"line_items[0][quantity]": "2",
				"line_items[1][price]":    "price_456",
				"line_items[1][quantity]": "1",
			},
		},
		{
			name: "stripe payment intent example",
			input: map[string]any{
				"amount":               1099,
				"currency":             "usd",
				"payment_method_types": []any{"card"},
				"metadata": map[string]any{
					"order_id": "order_123",
				},
			},
			expected: map[string]string{
				"amount":                  "1099",
				"currency":                "usd",
				"payment_method_types[0]": "card",
				"metadata[order_id]":      "order_123",
			},
		},
		{
			name:     "empty map",
			input:    map[string]any{},
			expected: map[string]string{},
		},
		{
			name: "boolean and float",
			input: map[string]any{
				"enabled": true,
				"rate":    0.15,
			},
			expected: map[string]string{
				"enabled": "true",
				"rate":    "0.15",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := flattenToFormData(tt.input, "")

			if len(result) != len(tt.expected) {
				t.Errorf("length mismatch: got %d, want %d\ngot: %v\nwant: %v",
					len(result), len(tt.expected), result, tt.expected)
				return
			}

			for key, expectedVal := range tt.expected {
				if gotVal, ok := result[key]; !ok {
					t.Errorf("missing key %q", key)
				} else if gotVal != expectedVal {
					t.Errorf("key %q: got %q, want %q", key, gotVal, expectedVal)
				}
			}
		})
	}
}

func newAction(t *testing.T) *Action {
	t.Helper()
	a, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	r := runtime.NewRegistry()
	if err := r.Register(a, runtime.WithSettings(map[string]any{"max_retries": 0, "retry_wait_ms": 1})); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := a.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	t.Cleanup(func() { a.Shutdown(context.Background()) })
	return a
}

func TestAction_Request(t *testing.T) {
	var gotMethod, gotQuery, gotPage, gotTrace, gotContentType, gotBody string
	srv := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		gotMethod = r.Method
		gotQuery = r.URL.Query().Get("lang")
		gotPage = r.URL.Query().Get("page")
		gotTrace = r.Header.Get("X-Trace")
		gotContentType = r.Header.Get("Content-Type")
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)

		switch r.URL.Path {
		case "/missing":
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(nethttp.StatusNotFound)
			w.Write([]byte(`{"error":"not found"}`))
		case "/text":
			w.Write([]byte("plain answer"))
		default:
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"answer":"42","items":[1,2]}`))
		}
	}))
	defer srv.Close()

	a := newAction(t)

	t.Run("json body", func(t *testing.T) {
		out, err := a.Execute(context.Background(), runtime.ActionArgs{Input: map[string]any{
			"url":              srv.URL + "/ask",
			"method":           "POST",
			"query_parameters": map[string]any{"lang": "en"},
			"body":             map[string]any{"question": "meaning of life"},
		}})
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if gotMethod != "POST" || gotQuery != "en" || !strings.Contains(gotContentType, "application/json") {
			t.Errorf("request = %s ?lang=%s %s", gotMethod, gotQuery, gotContentType)
		}
		if !strings.Contains(gotBody, `"question":"meaning of life"`) {
			t.Errorf("body = %s", gotBody)
		}
		body := out["body"].(map[string]any)
		if out["status_code"] != float64(200) || body["answer"] != "42" {
			t.Errorf("output = %v", out)
		}
	})

	t.Run("scalar headers and query values", func(t *testing.T) {
		_, err := a.Execute(context.Background(), runtime.ActionArgs{Input: map[string]any{
			"url":              srv.URL + "/ask",
			"method":           "GET",
			"headers":          map[string]any{"X-Trace": 7, "Accept": "application/json"},
			"query_parameters": map[string]any{"page": float64(2), "lang": true},
		}})
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if gotTrace != "7" || gotPage != "2" || gotQuery != "true" {
			t.Errorf("X-Trace = %q page = %q lang = %q, want 7 2 true", gotTrace, gotPage, gotQuery)
		}
	})

	t.Run("lowercase method", func(t *testing.T) {
		_, err := a.Execute(context.Background(), runtime.ActionArgs{Input: map[string]any{
			"url":    srv.URL + "/ask",
			"method": "get",
		}})
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if gotMethod != "GET" {
			t.Errorf("method = %s, want GET", gotMethod)
		}
	})

	t.Run("form body", func(t *testing.T) {
		_, err := a.Execute(context.Background(), runtime.ActionArgs{Input: map[string]any{
			"url":    srv.URL + "/form",
			"method": "post",
			"form":   true,
			"body":   map[string]any{"amount": float64(1099), "metadata": map[string]any{"order_id": "o1"}},
		}})
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if !strings.Contains(gotContentType, "application/x-www-form-urlencoded") {
			t.Errorf("Content-Type = %s", gotContentType)
		}
		values, _ := url.ParseQuery(gotBody)
		if values.Get("amount") != "1099" || values.Get("metadata[order_id]") != "o1" {
			t.Errorf("form = %v", values)
		}
	})

	t.Run("error status is reported, not raised", func(t *testing.T) {
		out, err := a.Execute(context.Background(), runtime.ActionArgs{Input: map[string]any{
			"url":    srv.URL + "/missing",
			"method": "GET",
		}})
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if out["is_error"] != true || out["status_code"] != float64(404) {
			t.Errorf("output = %v", out)
		}
	})

	t.Run("non json response", func(t *testing.T) {
		out, err := a.Execute(context.Background(), runtime.ActionArgs{Input: map[string]any{
			"url":    srv.URL + "/text",
			"method": "GET",
		}})
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if out["body"] != "plain answer" {
			t.Errorf("body = %v", out["body"])
		}
	})
}

func TestAction_TransportFailureIsRetryable(t *testing.T) {
	a := newAction(t)
	_, err := a.Execute(context.Background(), runtime.ActionArgs{Input: map[string]any{
		"url":    "http://127.0.0.1:1/unreachable",
		"method": "GET",
	}})
	var actionErr *runtime.ActionError
	if !errors.As(err, &actionErr) {
		t.Fatalf("error = %v, want *runtime.ActionError", err)
	}
	if !actionErr.IsRetryable() {
		t.Error("transport failure should carry a retry hint")
	}
}

func TestAction_UnknownMethod(t *testing.T) {
	a := newAction(t)
	err := a.ValidateInput(map[string]any{"url": "https://example.com", "method": "fetch"})
	var sve *runtime.StructValidationError
	if !errors.As(err, &sve) || sve.Field() != "method" {
		t.Errorf("ValidateInput() error = %v, want method violation", err)
	}
}

func TestAction_Settings(t *testing.T) {
	tests := []struct {
		name    string
		raw     map[string]any
		want    Config
		wantErr bool
	}{
		{
			name: "defaults",
			want: Config{Timeout: 30 * time.Second, MaxRetries: 3, RetryWaitMS: 100},
		},
		{
			name: "configured",
			raw:  map[string]any{"timeout": "5s", "max_retries": 1, "debug": true},
			want: Config{Timeout: 5 * time.Second, MaxRetries: 1, Debug: true, RetryWaitMS: 100},
		},
		{name: "timeout below minimum", raw: map[string]any{"timeout": "1ms"}, wantErr: true},
		{name: "unknown key", raw: map[string]any{"base_url": "https://example.com"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := New()
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			r := runtime.NewRegistry()
			err = r.Register(a, runtime.WithSettings(tt.raw))
			if tt.wantErr {
				if err == nil {
					t.Fatal("Register() error = nil, want settings rejected")
				}
				return
			}
			if err != nil {
				t.Fatalf("Register() error = %v", err)
			}
			if a.config != tt.want {
				t.Errorf("config = %+v, want %+v", a.config, tt.want)
			}
			stored, _ := r.Settings(ActionName)
			if stored["max_retries"] != float64(tt.want.MaxRetries) {
				t.Errorf("stored settings = %v", stored)
			}
		})
	}
}
