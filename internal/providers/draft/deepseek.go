package draft

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const deepSeekDefaultTimeout = 20 * time.Second

const defaultDeepSeekModel = "deepseek-chat"

type DeepSeekOptions struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
	Fallback   Drafter
	OnFallback func(reason string, err error)
}

// DeepSeekDrafter enhances the base template through the DeepSeek
// chat-completions API (OpenAI wire format). Every failure path falls back
// to the template drafter; a draft request never fails because the LLM did.
type DeepSeekDrafter struct {
	apiKey     string
	model      string
	baseURL    string
	client     *http.Client
	fallback   Drafter
	onFallback func(reason string, err error)
}

type deepSeekChatRequest struct {
	Model          string            `json:"model"`
	Messages       []deepSeekMessage `json:"messages"`
	Temperature    float64           `json:"temperature,omitempty"`
	ResponseFormat *deepSeekFormat   `json:"response_format,omitempty"`
}

type deepSeekMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type deepSeekFormat struct {
	Type string `json:"type"`
}

type deepSeekChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type modelDraftPayload struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func NewDeepSeekDrafter(opts DeepSeekOptions) (*DeepSeekDrafter, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("deepseek api key is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.deepseek.com/v1"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultDeepSeekModel
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: deepSeekDefaultTimeout}
	}
	fallback := opts.Fallback
	if fallback == nil {
		fallback = NewTemplateDrafter("")
	}
	return &DeepSeekDrafter{
		apiKey:     strings.TrimSpace(opts.APIKey),
		model:      model,
		baseURL:    baseURL,
		client:     client,
		fallback:   fallback,
		onFallback: opts.OnFallback,
	}, nil
}

func (d *DeepSeekDrafter) Draft(ctx context.Context, req Request) (*Draft, error) {
	if !validKind(req.Kind) {
		// Validation failures are the caller's mistake, not a provider
		// outage; no fallback.
		return d.fallback.Draft(ctx, req)
	}
	base, err := d.fallback.Draft(ctx, req)
	if err != nil {
		return nil, err
	}

	payload := deepSeekChatRequest{
		Model:       d.model,
		Temperature: 0.6,
		ResponseFormat: &deepSeekFormat{
			Type: "json_object",
		},
		Messages: []deepSeekMessage{
			{Role: "system", Content: "You are a fundraising assistant for a non-profit. Improve the given email draft for the specific donor. Respond only with valid JSON of the form {\"subject\": string, \"body\": string}. Keep the professional register and do not invent facts about the donor."},
			{Role: "user", Content: buildDraftPrompt(req, base)},
		},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return d.useFallback(req, base, "encode_request", err)
	}
	endpoint := fmt.Sprintf("%s/chat/completions", d.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return d.useFallback(req, base, "build_request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+d.apiKey)
	resp, err := d.client.Do(httpReq)
	if err != nil {
		return d.useFallback(req, base, "http_request", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 300 {
		return d.useFallback(req, base, fmt.Sprintf("http_%d", resp.StatusCode), fmt.Errorf("deepseek status %d", resp.StatusCode))
	}
	var out deepSeekChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return d.useFallback(req, base, "decode_response", err)
	}
	if len(out.Choices) == 0 {
		return d.useFallback(req, base, "empty_choices", errors.New("no choices"))
	}
	text := strings.TrimSpace(out.Choices[0].Message.Content)
	if text == "" {
		return d.useFallback(req, base, "empty_response", errors.New("empty response"))
	}
	var parsed modelDraftPayload
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &parsed); err != nil {
		return d.useFallback(req, base, "parse_payload", err)
	}
	if strings.TrimSpace(parsed.Body) == "" {
		return d.useFallback(req, base, "empty_body", errors.New("model returned empty body"))
	}
	subject := strings.TrimSpace(parsed.Subject)
	if subject == "" {
		subject = base.Subject
	}
	return &Draft{
		Subject:  subject,
		Body:     strings.TrimSpace(parsed.Body),
		Provider: deepseekProviderName,
		Metadata: map[string]string{"kind": strings.ToLower(req.Kind), "model": d.model},
	}, nil
}

func (d *DeepSeekDrafter) useFallback(req Request, base *Draft, reason string, cause error) (*Draft, error) {
	if d.onFallback != nil {
		d.onFallback(reason, cause)
	}
	out := *base
	if out.Metadata == nil {
		out.Metadata = map[string]string{}
	}
	out.Metadata["fallback_reason"] = reason
	return &out, nil
}

func buildDraftPrompt(req Request, base *Draft) string {
	var b strings.Builder
	rec := req.Record
	fmt.Fprintf(&b, "Draft kind: %s\n", strings.ToLower(req.Kind))
	fmt.Fprintf(&b, "Donor organization: %s\n", rec.OrganizationName)
	if rec.ContactPerson != "" {
		fmt.Fprintf(&b, "Contact person: %s (%s)\n", rec.ContactPerson, coalesce(rec.ContactRole, "role unknown"))
	}
	fmt.Fprintf(&b, "Pipeline stage: %s\n", rec.CurrentStage)
	if rec.SectorTags != "" {
		fmt.Fprintf(&b, "Sectors: %s\n", rec.SectorTags)
	}
	if rec.Geography != "" {
		fmt.Fprintf(&b, "Geography: %s\n", rec.Geography)
	}
	if rec.Notes != "" {
		fmt.Fprintf(&b, "Relationship notes: %s\n", rec.Notes)
	}
	if req.ProjectName != "" {
		fmt.Fprintf(&b, "Project: %s\n", req.ProjectName)
	}
	if req.MeetingDate != "" {
		fmt.Fprintf(&b, "Proposed meeting date: %s\n", req.MeetingDate)
	}
	fmt.Fprintf(&b, "\nBase subject: %s\n\nBase body:\n%s\n", base.Subject, base.Body)
	return b.String()
}

// stripCodeFence tolerates models that wrap the JSON in a ```json fence.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

var _ Drafter = (*DeepSeekDrafter)(nil)
