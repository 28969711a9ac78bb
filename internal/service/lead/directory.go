// Package lead looks up whether a sender is a known user or lead and which
// persona should greet them.
package lead

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Persona identifiers recommended for each situation.
const (
	AgentSupport    = "DOUBT"
	AgentSales      = "SALES"
	AgentOnboarding = "GREETING_WITHOUT_MEMORY"
)

// Status describes a sender.
type Status struct {
	IsLead              bool   `json:"is_lead"`
	IsUser              bool   `json:"is_user"`
	IsFirstMessage      bool   `json:"is_first_message"`
	OnboardingCompleted bool   `json:"onboarding_completed"`
	NeedsOnboarding     bool   `json:"needs_onboarding"`
	RecommendedAgent    string `json:"recommended_agent"`
	RecordID            string `json:"record_id,omitempty"`
}

// FirstContact is the status assumed for unknown senders and on lookup errors.
func FirstContact() Status {
	return Status{
		IsLead:           true,
		IsFirstMessage:   true,
		NeedsOnboarding:  true,
		RecommendedAgent: AgentOnboarding,
	}
}

// Directory resolves a sender's status.
type Directory interface {
	Status(ctx context.Context, phone string) Status
}

// CleanPhone strips the WhatsApp suffix and every non-digit.
func CleanPhone(phone string) string {
	phone = strings.TrimSuffix(phone, "@s.whatsapp.net")
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)
}

type userRow struct {
	ID   json.RawMessage `json:"id"`
	Name string          `json:"name"`
}

type leadRow struct {
	ID                  json.RawMessage `json:"id"`
	Name                string          `json:"name"`
	OnboardingConcluido bool            `json:"onboarding_concluido"`
}

// SupabaseDirectory checks the users table, then the leads table, and
// registers unknown senders as new leads.
type SupabaseDirectory struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

func NewSupabaseDirectory(baseURL, apiKey string, logger *slog.Logger) *SupabaseDirectory {
	if logger == nil {
		logger = slog.Default()
	}
	return &SupabaseDirectory{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger.With("component", "lead_directory"),
	}
}

// Status never fails: lookup errors are logged and reported as first contact.
func (d *SupabaseDirectory) Status(ctx context.Context, phone string) Status {
	clean := CleanPhone(phone)
	logger := d.logger.With("phone", clean)

	var users []userRow
	if err := d.query(ctx, "users", clean, &users); err != nil {
		logger.Error("user lookup failed", "error", err)
		return FirstContact()
	}
	if len(users) > 0 {
		logger.Info("sender is a user", "name", users[0].Name)
		return Status{
			IsUser:              true,
			OnboardingCompleted: true,
			RecommendedAgent:    AgentSupport,
			RecordID:            rawID(users[0].ID),
		}
	}

	var leads []leadRow
	if err := d.query(ctx, "leads", clean, &leads); err != nil {
		logger.Error("lead lookup failed", "error", err)
		return FirstContact()
	}
	if len(leads) > 0 {
		l := leads[0]
		agent := AgentOnboarding
		if l.OnboardingConcluido {
			agent = AgentSales
		}
		logger.Info("sender is a lead", "onboarding_completed", l.OnboardingConcluido)
		return Status{
			IsLead:              true,
			OnboardingCompleted: l.OnboardingConcluido,
			NeedsOnboarding:     !l.OnboardingConcluido,
			RecommendedAgent:    agent,
			RecordID:            rawID(l.ID),
		}
	}

	status := FirstContact()
	id, err := d.createLead(ctx, clean)
	if err != nil {
		logger.Error("lead creation failed", "error", err)
		return status
	}
	logger.Info("new lead created", "lead_id", id)
	status.RecordID = id
	return status
}

func (d *SupabaseDirectory) query(ctx context.Context, table, phone string, out any) error {
	endpoint := fmt.Sprintf("%s/rest/v1/%s?select=*&phone=eq.%s&limit=1", d.baseURL, table, url.QueryEscape(phone))
	resp, err := d.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return statusError("query "+table, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", table, err)
	}
	return nil
}

func (d *SupabaseDirectory) createLead(ctx context.Context, phone string) (string, error) {
	body, err := json.Marshal(map[string]any{"phone": phone, "onboarding_concluido": false})
	if err != nil {
		return "", fmt.Errorf("encode lead: %w", err)
	}
	resp, err := d.do(ctx, http.MethodPost, d.baseURL+"/rest/v1/leads", body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", statusError("insert leads", resp)
	}

	var rows []leadRow
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return "", fmt.Errorf("decode inserted lead: %w", err)
	}
	if len(rows) == 0 {
		return "", nil
	}
	return rawID(rows[0].ID), nil
}

func (d *SupabaseDirectory) do(ctx context.Context, method, endpoint string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("apikey", d.apiKey)
	req.Header.Set("Authorization", "Bearer "+d.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Prefer", "return=representation")
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, req.URL.Path, err)
	}
	return resp, nil
}

func statusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("%s: status %d: %s", op, resp.StatusCode, strings.TrimSpace(string(body)))
}

// rawID renders a numeric or string primary key.
func rawID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}
