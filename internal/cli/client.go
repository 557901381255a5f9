package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a thin wrapper over the dashboard API for the pipectl tool.
type Client struct {
	baseURL string
	http    *http.Client
	actor   string
}

func NewClient(baseURL, actor string) *Client {
	if actor == "" {
		actor = "pipectl"
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		actor:   actor,
	}
}

type apiError struct {
	Kind       string   `json:"error"`
	Message    string   `json:"message"`
	Candidates []string `json:"candidates"`
}

func (e *apiError) Error() string {
	if len(e.Candidates) > 0 {
		return fmt.Sprintf("%s: candidates %s", e.Message, strings.Join(e.Candidates, ", "))
	}
	return e.Message
}

// Record mirrors the API's donor payload.
type Record struct {
	OrganizationName string `json:"organization_name"`
	ContactPerson    string `json:"contact_person"`
	ContactEmail     string `json:"contact_email"`
	CurrentStage     string `json:"current_stage"`
	PreviousStage    string `json:"previous_stage"`
	AssignedTo       string `json:"assigned_to"`
	NextAction       string `json:"next_action"`
	NextActionDate   string `json:"next_action_date"`
	SectorTags       string `json:"sector_tags"`
	Geography        string `json:"geography"`
	Notes            string `json:"notes"`
	Token            string `json:"token"`
}

// Activity mirrors the API's audit payload.
type Activity struct {
	ID         int64             `json:"id"`
	RecordKey  string            `json:"record_key"`
	Actor      string            `json:"actor"`
	Action     string            `json:"action"`
	Before     map[string]string `json:"before"`
	After      map[string]string `json:"after"`
	OutOfOrder bool              `json:"out_of_order"`
	Timestamp  string            `json:"timestamp"`
}

// Draft mirrors the API's draft payload.
type Draft struct {
	Subject  string            `json:"subject"`
	Body     string            `json:"body"`
	Provider string            `json:"provider"`
	Metadata map[string]string `json:"metadata"`
}

type mutationResponse struct {
	Record  Record `json:"record"`
	Warning string `json:"warning"`
}

func (c *Client) Get(ctx context.Context, org string) (*Record, error) {
	var out struct {
		Record Record `json:"record"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/orgs/"+url.PathEscape(org), nil, &out); err != nil {
		return nil, err
	}
	return &out.Record, nil
}

func (c *Client) List(ctx context.Context, query string) ([]Record, error) {
	path := "/v1/orgs"
	if query != "" {
		path += "?q=" + url.QueryEscape(query)
	}
	var out struct {
		Items []Record `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c *Client) TransitionStage(ctx context.Context, org, stage string) (*Record, string, error) {
	return c.mutate(ctx, org, "stage", map[string]any{"stage": stage})
}

func (c *Client) AssignOwner(ctx context.Context, org, owner string) (*Record, string, error) {
	return c.mutate(ctx, org, "owner", map[string]any{"owner": owner})
}

func (c *Client) SetNextAction(ctx context.Context, org, action, date string) (*Record, string, error) {
	return c.mutate(ctx, org, "next-action", map[string]any{"action": action, "date": date})
}

func (c *Client) AppendNote(ctx context.Context, org, note string) (*Record, string, error) {
	return c.mutate(ctx, org, "notes", map[string]any{"notes": note, "append": true})
}

func (c *Client) AddOrganization(ctx context.Context, name, stage string) (*Record, string, error) {
	payload := map[string]any{"organization_name": name, "actor": c.actor}
	if stage != "" {
		payload["stage"] = stage
	}
	var out mutationResponse
	if err := c.do(ctx, http.MethodPost, "/v1/orgs", payload, &out); err != nil {
		return nil, "", err
	}
	return &out.Record, out.Warning, nil
}

func (c *Client) History(ctx context.Context, org string) ([]Activity, error) {
	var out struct {
		Items []Activity `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/orgs/"+url.PathEscape(org)+"/activity", nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c *Client) CreateDraft(ctx context.Context, org, kind, project, meetingDate string) (*Draft, error) {
	var out struct {
		Draft Draft `json:"draft"`
	}
	payload := map[string]any{
		"organization": org,
		"kind":         kind,
		"project_name": project,
		"meeting_date": meetingDate,
		"sender":       c.actor,
	}
	if err := c.do(ctx, http.MethodPost, "/v1/drafts", payload, &out); err != nil {
		return nil, err
	}
	return &out.Draft, nil
}

func (c *Client) mutate(ctx context.Context, org, field string, payload map[string]any) (*Record, string, error) {
	payload["actor"] = c.actor
	var out mutationResponse
	path := "/v1/orgs/" + url.PathEscape(org) + "/" + field
	if err := c.do(ctx, http.MethodPatch, path, payload, &out); err != nil {
		return nil, "", err
	}
	return &out.Record, out.Warning, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		buf := new(bytes.Buffer)
		if err := json.NewEncoder(buf).Encode(payload); err != nil {
			return err
		}
		body = buf
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 300 {
		var apiErr apiError
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil || apiErr.Message == "" {
			return fmt.Errorf("api returned status %d", resp.StatusCode)
		}
		return &apiErr
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
