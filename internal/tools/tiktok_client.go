package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTikTokEndpoint = "https://business-api.tiktok.com/open_api/v1.3"

type tiktokAdsClient struct {
	accessToken  string
	advertiserID string
	endpoint     string
	client       *http.Client
}

// NewTikTokAdsClient talks to the TikTok Business API for one advertiser.
func NewTikTokAdsClient(accessToken, advertiserID string) (TikTokClient, error) {
	accessToken = strings.TrimSpace(accessToken)
	advertiserID = strings.TrimSpace(advertiserID)
	if accessToken == "" || advertiserID == "" {
		return nil, fmt.Errorf("tiktok access token and advertiser id are required")
	}
	return &tiktokAdsClient{
		accessToken:  accessToken,
		advertiserID: advertiserID,
		endpoint:     defaultTikTokEndpoint,
		client:       &http.Client{Timeout: defaultClientTimeout},
	}, nil
}

func tiktokDateRange(period string, now time.Time) (string, string) {
	end := now
	start := now
	switch {
	case period == "today":
	case period == "yesterday":
		start = now.AddDate(0, 0, -1)
		end = start
	case period == "last_30_days":
		start = now.AddDate(0, 0, -30)
	case strings.HasPrefix(period, "last_n_days:"):
		var n int
		fmt.Sscanf(strings.TrimPrefix(period, "last_n_days:"), "%d", &n)
		if n <= 0 {
			n = 7
		}
		start = now.AddDate(0, 0, -n)
	default:
		start = now.AddDate(0, 0, -7)
	}
	return start.Format("2006-01-02"), end.Format("2006-01-02")
}

func (c *tiktokAdsClient) SpendReport(ctx context.Context, period string) (SpendReport, error) {
	startDate, endDate := tiktokDateRange(period, time.Now())

	params := url.Values{}
	params.Set("advertiser_id", c.advertiserID)
	params.Set("report_type", "BASIC")
	params.Set("data_level", "AUCTION_CAMPAIGN")
	params.Set("dimensions", `["campaign_id"]`)
	params.Set("metrics", `["spend","impressions","clicks","campaign_name"]`)
	params.Set("start_date", startDate)
	params.Set("end_date", endDate)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/report/integrated/get/?"+params.Encode(), nil)
	if err != nil {
		return SpendReport{}, err
	}
	req.Header.Set("Access-Token", c.accessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return SpendReport{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxClientResponseSize))
	if err != nil {
		return SpendReport{}, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return SpendReport{}, ErrAuthExpired
	}
	if resp.StatusCode != http.StatusOK {
		return SpendReport{}, fmt.Errorf("tiktok api status %d", resp.StatusCode)
	}

	var payload struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Data    struct {
			List []struct {
				Dimensions struct {
					CampaignID string `json:"campaign_id"`
				} `json:"dimensions"`
				Metrics struct {
					CampaignName string `json:"campaign_name"`
					Spend        string `json:"spend"`
					Impressions  string `json:"impressions"`
					Clicks       string `json:"clicks"`
				} `json:"metrics"`
			} `json:"list"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return SpendReport{}, fmt.Errorf("failed to parse tiktok response: %w", err)
	}
	// code 40105 is the access token expiry code
	if payload.Code == 40105 {
		return SpendReport{}, ErrAuthExpired
	}
	if payload.Code != 0 {
		return SpendReport{}, fmt.Errorf("tiktok api error %d: %s", payload.Code, payload.Message)
	}

	report := SpendReport{Period: period, Rows: make([]SpendRow, 0, len(payload.Data.List))}
	for _, item := range payload.Data.List {
		var spend float64
		var impressions, clicks int64
		fmt.Sscanf(item.Metrics.Spend, "%f", &spend)
		fmt.Sscanf(item.Metrics.Impressions, "%d", &impressions)
		fmt.Sscanf(item.Metrics.Clicks, "%d", &clicks)
		report.Total += spend
		report.Rows = append(report.Rows, SpendRow{
			DirectionID: item.Dimensions.CampaignID,
			Direction:   item.Metrics.CampaignName,
			Spend:       spend,
			Impressions: impressions,
			Clicks:      clicks,
		})
	}
	return report, nil
}
