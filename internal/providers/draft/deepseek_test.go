package draft

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func chatResponse(t *testing.T, content string) []byte {
	t.Helper()
	out, err := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"content": content}},
		},
	})
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	return out
}

func newDeepSeek(t *testing.T, baseURL string, onFallback func(reason string, err error)) *DeepSeekDrafter {
	t.Helper()
	d, err := NewDeepSeekDrafter(DeepSeekOptions{
		APIKey:     "test-key",
		BaseURL:    baseURL,
		Fallback:   NewTemplateDrafter("Diksha Foundation"),
		OnFallback: onFallback,
	})
	if err != nil {
		t.Fatalf("NewDeepSeekDrafter() error: %v", err)
	}
	return d
}

func TestDeepSeekDrafterEnhances(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Write(chatResponse(t, `{"subject":"A better subject","body":"A better body."}`))
	}))
	defer server.Close()

	d := newDeepSeek(t, server.URL, nil)
	out, err := d.Draft(context.Background(), Request{Kind: "intro", Record: testRecord()})
	if err != nil {
		t.Fatalf("Draft() error: %v", err)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
	if out.Provider != "deepseek" {
		t.Fatalf("Provider = %q, want deepseek", out.Provider)
	}
	if out.Subject != "A better subject" || out.Body != "A better body." {
		t.Fatalf("Draft = %+v", out)
	}
}

func TestDeepSeekDrafterToleratesCodeFence(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(chatResponse(t, "```json\n{\"subject\":\"Fenced\",\"body\":\"Still parsed.\"}\n```"))
	}))
	defer server.Close()

	d := newDeepSeek(t, server.URL, nil)
	out, err := d.Draft(context.Background(), Request{Kind: "intro", Record: testRecord()})
	if err != nil {
		t.Fatalf("Draft() error: %v", err)
	}
	if out.Subject != "Fenced" || out.Body != "Still parsed." {
		t.Fatalf("Draft = %+v", out)
	}
}

func TestDeepSeekDrafterFallsBackOnServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	var reason string
	d := newDeepSeek(t, server.URL, func(r string, err error) { reason = r })
	out, err := d.Draft(context.Background(), Request{Kind: "intro", Record: testRecord()})
	if err != nil {
		t.Fatalf("Draft() error: %v", err)
	}
	if out.Provider != "template" {
		t.Fatalf("Provider = %q, want template fallback", out.Provider)
	}
	if out.Metadata["fallback_reason"] != "http_502" || reason != "http_502" {
		t.Fatalf("fallback_reason = %q, callback reason = %q", out.Metadata["fallback_reason"], reason)
	}
	if !strings.Contains(out.Body, "Wipro Foundation") {
		t.Fatalf("fallback draft not filled:\n%s", out.Body)
	}
}

func TestDeepSeekDrafterFallsBackOnGarbage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(chatResponse(t, "Sure! Here is an improved draft for you:"))
	}))
	defer server.Close()

	d := newDeepSeek(t, server.URL, nil)
	out, err := d.Draft(context.Background(), Request{Kind: "intro", Record: testRecord()})
	if err != nil {
		t.Fatalf("Draft() error: %v", err)
	}
	if out.Provider != "template" || out.Metadata["fallback_reason"] != "parse_payload" {
		t.Fatalf("Draft = %+v, want parse_payload fallback", out)
	}
}

func TestDeepSeekDrafterUnknownKindErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("LLM must not be called for an invalid kind")
	}))
	defer server.Close()

	d := newDeepSeek(t, server.URL, nil)
	if _, err := d.Draft(context.Background(), Request{Kind: "ransom", Record: testRecord()}); err == nil {
		t.Fatalf("Draft() expected error for unknown kind")
	}
}

func TestNewDeepSeekDrafterRequiresKey(t *testing.T) {
	if _, err := NewDeepSeekDrafter(DeepSeekOptions{}); err == nil {
		t.Fatalf("NewDeepSeekDrafter() expected error without api key")
	}
}
