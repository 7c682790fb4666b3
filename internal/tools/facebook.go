package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultGraphEndpoint  = "https://graph.facebook.com/v19.0"
	defaultClientTimeout  = 20 * time.Second
	maxClientResponseSize = 1024 * 1024
)

type facebookAdsClient struct {
	accessToken string
	adAccountID string
	endpoint    string
	client      *http.Client
}

// NewFacebookAdsClient talks to the Marketing API for one ad account.
// Campaigns are surfaced as directions.
func NewFacebookAdsClient(accessToken, adAccountID string) (AdsClient, error) {
	accessToken = strings.TrimSpace(accessToken)
	adAccountID = strings.TrimSpace(adAccountID)
	if accessToken == "" || adAccountID == "" {
		return nil, fmt.Errorf("facebook access token and ad account id are required")
	}
	if !strings.HasPrefix(adAccountID, "act_") {
		adAccountID = "act_" + adAccountID
	}
	return &facebookAdsClient{
		accessToken: accessToken,
		adAccountID: adAccountID,
		endpoint:    defaultGraphEndpoint,
		client:      &http.Client{Timeout: defaultClientTimeout},
	}, nil
}

func (c *facebookAdsClient) get(ctx context.Context, path string, params url.Values, out any) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("access_token", c.accessToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+path+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *facebookAdsClient) post(ctx context.Context, path string, params url.Values, out any) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("access_token", c.accessToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, strings.NewReader(params.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, out)
}

func (c *facebookAdsClient) do(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxClientResponseSize))
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrAuthExpired
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error struct {
				Message string `json:"message"`
				Code    int    `json:"code"`
			} `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Code == 190 {
			return ErrAuthExpired
		}
		if apiErr.Error.Message != "" {
			return fmt.Errorf("graph api status %d: %s", resp.StatusCode, apiErr.Error.Message)
		}
		return fmt.Errorf("graph api status %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse graph api response: %w", err)
	}
	return nil
}

// graphDatePreset maps the internal period token to a Marketing API preset.
// Arbitrary day counts fall back to the closest preset.
func graphDatePreset(period string) string {
	switch {
	case period == "today":
		return "today"
	case period == "yesterday":
		return "yesterday"
	case period == "last_7_days":
		return "last_7d"
	case period == "last_30_days":
		return "last_30d"
	case strings.HasPrefix(period, "last_n_days:"):
		n, err := strconv.Atoi(strings.TrimPrefix(period, "last_n_days:"))
		if err == nil && n <= 7 {
			return "last_7d"
		}
		return "last_30d"
	default:
		return "last_7d"
	}
}

type graphInsightRow struct {
	CampaignID   string `json:"campaign_id"`
	CampaignName string `json:"campaign_name"`
	Spend        string `json:"spend"`
	Impressions  string `json:"impressions"`
	Clicks       string `json:"clicks"`
	Actions      []struct {
		ActionType string `json:"action_type"`
		Value      string `json:"value"`
	} `json:"actions"`
}

func (c *facebookAdsClient) SpendReport(ctx context.Context, period string) (SpendReport, error) {
	params := url.Values{}
	params.Set("level", "campaign")
	params.Set("fields", "campaign_id,campaign_name,spend,impressions,clicks,actions")
	params.Set("date_preset", graphDatePreset(period))

	var payload struct {
		Data []graphInsightRow `json:"data"`
	}
	if err := c.get(ctx, "/"+c.adAccountID+"/insights", params, &payload); err != nil {
		return SpendReport{}, err
	}

	report := SpendReport{Period: period, Rows: make([]SpendRow, 0, len(payload.Data))}
	for _, row := range payload.Data {
		spend, _ := strconv.ParseFloat(row.Spend, 64)
		impressions, _ := strconv.ParseInt(row.Impressions, 10, 64)
		clicks, _ := strconv.ParseInt(row.Clicks, 10, 64)
		var leads int64
		for _, a := range row.Actions {
			if a.ActionType == "lead" {
				leads, _ = strconv.ParseInt(a.Value, 10, 64)
			}
		}
		report.Total += spend
		report.Rows = append(report.Rows, SpendRow{
			DirectionID: row.CampaignID,
			Direction:   row.CampaignName,
			Spend:       spend,
			Impressions: impressions,
			Clicks:      clicks,
			Leads:       leads,
		})
	}
	return report, nil
}

type graphCampaign struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Status      string `json:"status"`
	DailyBudget string `json:"daily_budget"`
}

func (g graphCampaign) direction() Direction {
	// daily_budget comes back in minor currency units
	budget, _ := strconv.ParseFloat(g.DailyBudget, 64)
	return Direction{
		ID:          g.ID,
		Name:        g.Name,
		Status:      strings.ToLower(g.Status),
		DailyBudget: budget / 100,
	}
}

func (c *facebookAdsClient) DirectionsOverview(ctx context.Context) ([]Direction, error) {
	params := url.Values{}
	params.Set("fields", "id,name,status,daily_budget")

	var payload struct {
		Data []graphCampaign `json:"data"`
	}
	if err := c.get(ctx, "/"+c.adAccountID+"/campaigns", params, &payload); err != nil {
		return nil, err
	}

	directions := make([]Direction, 0, len(payload.Data))
	for _, campaign := range payload.Data {
		directions = append(directions, campaign.direction())
	}
	return directions, nil
}

func (c *facebookAdsClient) ROIReport(ctx context.Context, period string) (ROIReport, error) {
	params := url.Values{}
	params.Set("level", "campaign")
	params.Set("fields", "campaign_id,campaign_name,spend,action_values")
	params.Set("date_preset", graphDatePreset(period))

	var payload struct {
		Data []struct {
			CampaignID   string `json:"campaign_id"`
			CampaignName string `json:"campaign_name"`
			Spend        string `json:"spend"`
			ActionValues []struct {
				ActionType string `json:"action_type"`
				Value      string `json:"value"`
			} `json:"action_values"`
		} `json:"data"`
	}
	if err := c.get(ctx, "/"+c.adAccountID+"/insights", params, &payload); err != nil {
		return ROIReport{}, err
	}

	report := ROIReport{Period: period, Rows: make([]ROIRow, 0, len(payload.Data))}
	for _, row := range payload.Data {
		spend, _ := strconv.ParseFloat(row.Spend, 64)
		var revenue float64
		for _, v := range row.ActionValues {
			if v.ActionType == "purchase" || v.ActionType == "lead" {
				value, _ := strconv.ParseFloat(v.Value, 64)
				revenue += value
			}
		}
		roi := 0.0
		if spend > 0 {
			roi = revenue / spend
		}
		report.Rows = append(report.Rows, ROIRow{
			DirectionID: row.CampaignID,
			Direction:   row.CampaignName,
			Spend:       spend,
			Revenue:     revenue,
			ROI:         roi,
		})
	}
	return report, nil
}

func (c *facebookAdsClient) setStatus(ctx context.Context, directionID, status string) (Direction, error) {
	params := url.Values{}
	params.Set("status", status)
	if err := c.post(ctx, "/"+directionID, params, nil); err != nil {
		return Direction{}, err
	}

	var campaign graphCampaign
	getParams := url.Values{}
	getParams.Set("fields", "id,name,status,daily_budget")
	if err := c.get(ctx, "/"+directionID, getParams, &campaign); err != nil {
		return Direction{}, err
	}
	return campaign.direction(), nil
}

func (c *facebookAdsClient) PauseDirection(ctx context.Context, directionID string) (Direction, error) {
	return c.setStatus(ctx, directionID, "PAUSED")
}

func (c *facebookAdsClient) ResumeDirection(ctx context.Context, directionID string) (Direction, error) {
	return c.setStatus(ctx, directionID, "ACTIVE")
}

func (c *facebookAdsClient) UpdateBudget(ctx context.Context, change BudgetChange) (Direction, error) {
	current, err := c.directionByID(ctx, change.DirectionID)
	if err != nil {
		return Direction{}, err
	}

	target := change.Value
	if change.Relative {
		target = current.DailyBudget * (1 + float64(change.Percent)/100)
	}
	if target <= 0 {
		return Direction{}, fmt.Errorf("resulting budget must be > 0")
	}

	params := url.Values{}
	params.Set("daily_budget", strconv.FormatInt(int64(target*100), 10))
	if err := c.post(ctx, "/"+change.DirectionID, params, nil); err != nil {
		return Direction{}, err
	}

	current.DailyBudget = target
	return current, nil
}

func (c *facebookAdsClient) directionByID(ctx context.Context, directionID string) (Direction, error) {
	var campaign graphCampaign
	params := url.Values{}
	params.Set("fields", "id,name,status,daily_budget")
	if err := c.get(ctx, "/"+directionID, params, &campaign); err != nil {
		return Direction{}, err
	}
	return campaign.direction(), nil
}
