// Package upstream is the HTTP client for the external AI backend that does
// all model work: file analysis, chat completion, account validation, course
// prompt generation, topic generation and per-subtopic content generation.
//
// Two hosts are involved. BaseURL serves the /api/analyze, /api/chat and
// /api/generate-* routes; ServerURL serves /api/valid and /api/prompt.
//
// Every call is traced, counted in upstream_requests_total{endpoint,outcome}
// and, on failure, returned as *Error so callers can inspect the endpoint and
// HTTP status with errors.As.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-tutor-backend/internal/config"
	"github.com/tbourn/go-tutor-backend/internal/domain"
)

// Endpoint names used in errors, spans and metric labels.
const (
	EndpointAnalyze         = "analyze"
	EndpointChat            = "chat"
	EndpointValid           = "valid"
	EndpointPrompt          = "prompt"
	EndpointGenerateTopics  = "generate_topics"
	EndpointGenerateContent = "generate_content"
)

// maxErrorBody bounds how much of a failed response body ends up in errors.
const maxErrorBody = 2 << 10

// Client talks to the AI backend. It is safe for concurrent use.
type Client struct {
	baseURL    string
	serverURL  string
	apiKey     string
	httpClient *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New builds a Client from the upstream configuration section.
func New(cfg config.UpstreamConfig, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		serverURL:  strings.TrimRight(cfg.ServerURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Analyze uploads one file for analysis in the given mode.
func (c *Client) Analyze(ctx context.Context, in AnalyzeRequest) (*AnalysisResult, error) {
	if in.File == nil {
		return nil, &Error{Endpoint: EndpointAnalyze, Err: errors.New("no file to analyze")}
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreatePart(filePartHeader(in.FileName, in.ContentType))
	if err != nil {
		return nil, &Error{Endpoint: EndpointAnalyze, Err: fmt.Errorf("create form file: %w", err)}
	}
	if _, err := io.Copy(fw, in.File); err != nil {
		return nil, &Error{Endpoint: EndpointAnalyze, Err: fmt.Errorf("copy file: %w", err)}
	}
	_ = mw.WriteField("mode", in.Mode)
	if strings.TrimSpace(in.Prompt) != "" {
		_ = mw.WriteField("prompt", in.Prompt)
	}
	_ = mw.WriteField("userId", in.UserID)
	if err := mw.Close(); err != nil {
		return nil, &Error{Endpoint: EndpointAnalyze, Err: fmt.Errorf("close multipart: %w", err)}
	}

	var out analyzeResponse
	check := func() error {
		if !out.Success || out.AnalysisResult == nil {
			return unsuccessful(EndpointAnalyze, out.Error)
		}
		return nil
	}
	err = c.do(ctx, EndpointAnalyze, c.baseURL+"/api/analyze", mw.FormDataContentType(), &body, &out, check,
		attribute.String("file.name", in.FileName),
		attribute.String("chat.mode", in.Mode),
	)
	if err != nil {
		return nil, err
	}
	return out.AnalysisResult, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// filePartHeader is CreateFormFile's header with the file's own content type.
func filePartHeader(name, contentType string) textproto.MIMEHeader {
	if strings.TrimSpace(contentType) == "" {
		contentType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(name)))
	h.Set("Content-Type", contentType)
	return h
}

// Chat sends the ordered conversation history and returns the reply text.
func (c *Client) Chat(ctx context.Context, in ChatRequest) (string, error) {
	var out chatResponse
	check := func() error { return nonEmpty(EndpointChat, out.Content) }
	if err := c.postJSON(ctx, EndpointChat, c.baseURL+"/api/chat", in, &out, check,
		attribute.String("chat.mode", in.Mode),
		attribute.Int("chat.history_len", len(in.Messages)),
	); err != nil {
		return "", err
	}
	return out.Content, nil
}

// Validate asks the account server whether user may access the app and
// returns its message. An empty message counts as a rejection.
func (c *Client) Validate(ctx context.Context, user string) (string, error) {
	var out validResponse
	check := func() error { return nonEmpty(EndpointValid, out.Message) }
	if err := c.postJSON(ctx, EndpointValid, c.serverURL+"/api/valid", validRequest{User: user}, &out, check); err != nil {
		return "", err
	}
	return out.Message, nil
}

// GeneratePrompt sends a course description and returns the generated text,
// usually a fenced JSON document.
func (c *Client) GeneratePrompt(ctx context.Context, prompt string) (string, error) {
	var out promptResponse
	check := func() error { return nonEmpty(EndpointPrompt, out.GeneratedText) }
	if err := c.postJSON(ctx, EndpointPrompt, c.serverURL+"/api/prompt", promptRequest{Prompt: prompt}, &out, check); err != nil {
		return "", err
	}
	return out.GeneratedText, nil
}

// GenerateTopics returns the main topics generated for a subject.
func (c *Client) GenerateTopics(ctx context.Context, in TopicsRequest) ([]domain.Topic, error) {
	var out topicsResponse
	check := func() error {
		if !out.Success {
			return unsuccessful(EndpointGenerateTopics, out.Error)
		}
		if len(out.Data.Topics) == 0 {
			return &Error{Endpoint: EndpointGenerateTopics, Status: http.StatusOK, Err: ErrEmptyResponse}
		}
		return nil
	}
	if err := c.postJSON(ctx, EndpointGenerateTopics, c.baseURL+"/api/generate-topics", in, &out, check,
		attribute.String("topic.subject", in.Subject),
		attribute.Int("topic.count", in.Count),
	); err != nil {
		return nil, err
	}
	return out.Data.Topics, nil
}

// GenerateContent returns the material generated for one subtopic.
func (c *Client) GenerateContent(ctx context.Context, in ContentRequest) (string, error) {
	var out contentResponse
	check := func() error {
		if !out.Success {
			return unsuccessful(EndpointGenerateContent, out.Error)
		}
		return nonEmpty(EndpointGenerateContent, out.Content)
	}
	if err := c.postJSON(ctx, EndpointGenerateContent, c.baseURL+"/api/generate-content", in, &out, check,
		attribute.String("topic.main", in.MainTopic),
		attribute.String("topic.subtopic", in.SubtopicTitle),
		attribute.String("content.type", in.ContentType),
	); err != nil {
		return "", err
	}
	return out.Content, nil
}

func (c *Client) postJSON(ctx context.Context, endpoint, url string, in, out any, check func() error, attrs ...attribute.KeyValue) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return &Error{Endpoint: endpoint, Err: fmt.Errorf("marshal request: %w", err)}
	}
	return c.do(ctx, endpoint, url, "application/json", bytes.NewReader(payload), out, check, attrs...)
}

// do performs one POST, decodes a 2xx JSON body into out and runs check on
// the decoded value. It records the span, the latency histogram and exactly
// one outcome per call.
func (c *Client) do(ctx context.Context, endpoint, url, contentType string, body io.Reader, out any, check func() error, attrs ...attribute.KeyValue) (err error) {
	tr := otel.Tracer("upstream/Client")
	ctx, span := tr.Start(ctx, endpoint,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(append(attrs, attribute.String("http.url", url))...),
	)
	defer span.End()

	start := time.Now()
	outcome := outcomeOK
	defer func() {
		upstreamLat.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		upstreamReqs.WithLabelValues(endpoint, outcome).Inc()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		outcome = outcomeTransport
		return &Error{Endpoint: endpoint, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		outcome = outcomeTransport
		return &Error{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		outcome = outcomeHTTP
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		msg := strings.TrimSpace(string(snippet))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &Error{Endpoint: endpoint, Status: resp.StatusCode, Err: errors.New(msg)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		outcome = outcomeDecode
		return &Error{Endpoint: endpoint, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	if check != nil {
		if err := check(); err != nil {
			outcome = outcomeUnsuccessful
			return err
		}
	}
	return nil
}

func unsuccessful(endpoint, detail string) error {
	if detail = strings.TrimSpace(detail); detail != "" {
		return &Error{Endpoint: endpoint, Status: http.StatusOK, Err: fmt.Errorf("%w: %s", ErrUnsuccessful, detail)}
	}
	return &Error{Endpoint: endpoint, Status: http.StatusOK, Err: ErrUnsuccessful}
}

func nonEmpty(endpoint, s string) error {
	if strings.TrimSpace(s) == "" {
		return &Error{Endpoint: endpoint, Status: http.StatusOK, Err: ErrEmptyResponse}
	}
	return nil
}
