package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

type restCRMClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewRESTCRMClient talks to a CRM exposing a small REST surface
// (GET /leads, PATCH /leads/{id}) with bearer auth. Both amoCRM and
// Bitrix24 installs are fronted by this shape through a connector.
func NewRESTCRMClient(baseURL, apiKey string) (CRMClient, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	apiKey = strings.TrimSpace(apiKey)
	if baseURL == "" || apiKey == "" {
		return nil, fmt.Errorf("crm base url and api key are required")
	}
	return &restCRMClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: defaultClientTimeout},
	}, nil
}

func (c *restCRMClient) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxClientResponseSize))
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return ErrAuthExpired
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("crm api status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse crm response: %w", err)
	}
	return nil
}

func (c *restCRMClient) LeadsList(ctx context.Context, status string, limit int) ([]Lead, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	if status != "" {
		params.Set("status", status)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/leads?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Leads []Lead `json:"leads"`
	}
	if err := c.do(req, &payload); err != nil {
		return nil, err
	}
	return payload.Leads, nil
}

func (c *restCRMClient) UpdateLeadStatus(ctx context.Context, leadID, status string) (Lead, error) {
	body, err := json.Marshal(map[string]string{"status": status})
	if err != nil {
		return Lead{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, c.baseURL+"/leads/"+url.PathEscape(leadID), bytes.NewReader(body))
	if err != nil {
		return Lead{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	var lead Lead
	if err := c.do(req, &lead); err != nil {
		return Lead{}, err
	}
	return lead, nil
}
