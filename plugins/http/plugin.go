// Package http provides the http_request action for calling external APIs
// from a workflow.
package http

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Jeffail/gabs/v2"
	"github.com/go-playground/validator/v10"
	"github.com/go-resty/resty/v2"

	"github.com/hexastack/agentic/runtime"
	"github.com/hexastack/agentic/runtime/plugin"
)

const ActionName = "http_request"

// Config is the settings of http_request, read from actions.http_request in
// the project config. It configures the client shared by every request.
type Config struct {
	Timeout     time.Duration `yaml:"timeout" json:"timeout" default:"30s" validate:"gte=1s"`
	MaxRetries  int           `yaml:"max_retries" json:"max_retries" default:"3" validate:"gte=0,lte=10"`
	Debug       bool          `yaml:"debug" json:"debug" default:"false"`
	RetryWaitMS int           `yaml:"retry_wait_ms" json:"retry_wait_ms" default:"100" validate:"gte=0,lte=10000"`
}

// RequestInput defines the typed input for HTTP requests. Body is sent as
// JSON unless Form is set, in which case it is flattened into
// application/x-www-form-urlencoded fields.
type RequestInput struct {
	URL         string         `json:"url" validate:"required,url"`
	Method      string         `json:"method" validate:"required,http_method"`
	Headers     map[string]any `json:"headers,omitempty"`
	QueryParams map[string]any `json:"query_parameters,omitempty"`
	Body        map[string]any `json:"body,omitempty"`
	Form        bool           `json:"form,omitempty"`
}

var methods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "PATCH": true,
	"DELETE": true, "HEAD": true, "OPTIONS": true,
}

func init() {
	// Methods are matched case-insensitively and sent upper-cased.
	err := runtime.RegisterCustomValidator("http_method", func(fl validator.FieldLevel) bool {
		return methods[strings.ToUpper(fl.Field().String())]
	})
	if err != nil {
		panic(err)
	}
}

// RequestOutput defines the typed output for HTTP requests. Body holds the
// decoded JSON response, or the raw text when it is not JSON.
type RequestOutput struct {
	Status     string `json:"status"`
	StatusCode int    `json:"status_code"`
	IsError    bool   `json:"is_error"`
	Body       any    `json:"body,omitempty"`
}

// Action is the http_request action. The client is built by Initialize and
// released by Shutdown.
type Action struct {
	*plugin.TypedAction[RequestInput, RequestOutput, Config]

	config Config
	client *resty.Client
}

var (
	_ runtime.SettingsPreparer = (*Action)(nil)
	_ runtime.Initializer      = (*Action)(nil)
	_ runtime.Shutdowner       = (*Action)(nil)
)

// New defines the action. Its client settings arrive when it is registered.
func New() (*Action, error) {
	a := &Action{}
	typed, err := plugin.Define(ActionName, "Performs an HTTP request and returns the decoded response", a.request)
	if err != nil {
		return nil, err
	}
	a.TypedAction = typed
	return a, nil
}

// PrepareSettings validates the settings like any typed action and keeps
// them for Initialize.
func (a *Action) PrepareSettings(raw map[string]any) (map[string]any, error) {
	settings, err := a.TypedAction.PrepareSettings(raw)
	if err != nil {
		return nil, err
	}
	var config Config
	if err := runtime.DecodeMap(settings, &config); err != nil {
		return nil, fmt.Errorf("http plugin: %w", err)
	}
	a.config = config
	return settings, nil
}

// Initialize implements runtime.Initializer.
func (a *Action) Initialize(context.Context) error {
	a.client = resty.New().
		SetTimeout(a.config.Timeout).
		SetRetryCount(a.config.MaxRetries).
		SetRetryWaitTime(time.Duration(a.config.RetryWaitMS) * time.Millisecond).
		SetDebug(a.config.Debug)
	return nil
}

// Shutdown implements runtime.Shutdowner.
func (a *Action) Shutdown(context.Context) error {
	a.client = nil
	return nil
}

func (a *Action) request(ctx context.Context, input RequestInput, _ Config, _ plugin.Context) (RequestOutput, error) {
	if a.client == nil {
		return RequestOutput{}, fmt.Errorf("http client is not initialized")
	}

	req := a.client.R().
		SetContext(ctx).
		SetHeaders(runtime.ToStringValueMap(input.Headers)).
		SetQueryParams(runtime.ToStringValueMap(input.QueryParams))

	if len(input.Body) > 0 {
		if input.Form {
			req.SetFormData(flattenToFormData(input.Body, ""))
		} else {
			req.SetHeader("Content-Type", "application/json").SetBody(input.Body)
		}
	}

	resp, err := req.Execute(strings.ToUpper(input.Method), input.URL)
	if err != nil {
		return RequestOutput{}, runtime.NewActionError(fmt.Errorf("HTTP request failed: %w", err)).
			WithRetryHint(true)
	}

	return RequestOutput{
		Status:     resp.Status(),
		StatusCode: resp.StatusCode(),
		IsError:    resp.IsError(),
		Body:       decodeBody(resp.Body()),
	}, nil
}

func decodeBody(data []byte) any {
	if len(data) == 0 {
		return nil
	}
	parsed, err := gabs.ParseJSON(data)
	if err != nil {
		return string(data)
	}
	return parsed.Data()
}

// flattenToFormData turns a nested body into bracketed form keys:
// {"metadata": {"id": 1}} becomes metadata[id]=1 and lists become items[0].
func flattenToFormData(data map[string]any, prefix string) map[string]string {
	out := make(map[string]string)
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		key := k
		if prefix != "" {
			key = prefix + "[" + k + "]"
		}
		flattenValue(out, key, data[k])
	}
	return out
}

func flattenValue(out map[string]string, key string, v any) {
	switch val := v.(type) {
	case map[string]any:
		for k, s := range flattenToFormData(val, key) {
			out[k] = s
		}
	case []any:
		for i, item := range val {
			flattenValue(out, key+"["+strconv.Itoa(i)+"]", item)
		}
	case nil:
		out[key] = ""
	case string:
		out[key] = val
	case float64:
		out[key] = strconv.FormatFloat(val, 'f', -1, 64)
	default:
		out[key] = fmt.Sprint(val)
	}
}
