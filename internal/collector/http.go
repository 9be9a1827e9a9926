package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"compgrid/internal/model"
)

// HTTPQuerier posts row queries to a query API that answers with one JSON
// object per day.
type HTTPQuerier struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewHTTPQuerier creates a querier with optional proxy support.
func NewHTTPQuerier(baseURL, apiKey, proxyURL string) *HTTPQuerier {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &HTTPQuerier{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client: &http.Client{
			Timeout:   60 * time.Second,
			Transport: transport,
		},
	}
}

// dayRow is the expected JSON shape of one day.
type dayRow struct {
	Date  string   `json:"date"`
	Total *float64 `json:"total"`
	Over  *float64 `json:"over"`
}

func (q *HTTPQuerier) QuerySeries(ctx context.Context, query string) (model.DailySeries, error) {
	body, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return model.DailySeries{}, fmt.Errorf("marshal query: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, q.BaseURL, bytes.NewReader(body))
	if err != nil {
		return model.DailySeries{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if q.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+q.APIKey)
	}

	resp, err := q.Client.Do(req)
	if err != nil {
		return model.DailySeries{}, fmt.Errorf("run query: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return model.DailySeries{}, fmt.Errorf("run query: status %d, body: %s", resp.StatusCode, string(respBody))
	}

	var days []dayRow
	if err := json.NewDecoder(resp.Body).Decode(&days); err != nil {
		return model.DailySeries{}, fmt.Errorf("decode rows: %w", err)
	}
	obs := make([]model.Observation, 0, len(days))
	for _, d := range days {
		date, err := parseDateText(d.Date)
		if err != nil {
			return model.DailySeries{}, err
		}
		if d.Total == nil {
			continue
		}
		m := model.Measurement{Total: *d.Total}
		if d.Over != nil {
			m = model.Fraction(*d.Total, *d.Over)
		}
		obs = append(obs, model.Observation{Date: date, Measurement: m})
	}
	return model.NewDailySeries(obs)
}
