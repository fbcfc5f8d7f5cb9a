package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/craigmmills/enviroagent/internal/article"
	"github.com/craigmmills/enviroagent/internal/config"
)

const userAgent = "enviroagent/1.0"

// GDELT GeoJSON response structures

type geoResponse struct {
	Features []geoFeature `json:"features"`
}

type geoFeature struct {
	Properties geoProperties   `json:"properties"`
	Geometry   json.RawMessage `json:"geometry"`
}

type geoProperties struct {
	Title      string `json:"title"`
	Name       string `json:"name"`
	Count      any    `json:"count"`
	ShareImage string `json:"shareimage"`
	HTML       string `json:"html"`
}

// GDELT fetches geographically tagged news items from the GDELT geo API.
// It is a boundary component: any failure degrades to an empty batch so
// the pipeline never aborts on an upstream hiccup.
type GDELT struct {
	client   *http.Client
	endpoint string
	params   config.FetchConfig
}

func NewGDELT(cfg config.FetchConfig) *GDELT {
	return &GDELT{
		client:   &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		endpoint: cfg.Endpoint,
		params:   cfg,
	}
}

// FetchDay queries the source and returns the day's raw records, capped at
// the configured record limit. Transport failures, non-success statuses,
// and unparseable payloads all yield an empty slice. The query is never
// retried: the next scheduled run is the retry.
func (g *GDELT) FetchDay(ctx context.Context) []article.Raw {
	query := url.Values{}
	query.Set("query", g.params.Query)
	query.Set("mode", g.params.Mode)
	query.Set("timespan", g.params.Timespan)
	query.Set("format", g.params.Format)
	query.Set("maxrecords", fmt.Sprintf("%d", g.params.MaxRecords))

	reqURL := fmt.Sprintf("%s?%s", g.endpoint, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		log.Printf("GDELT: failed to create request: %v", err)
		return nil
	}
	req.Header.Set("User-Agent", userAgent)

	log.Printf("Querying GDELT with query %q", g.params.Query)
	resp, err := g.client.Do(req)
	if err != nil {
		log.Printf("GDELT: request failed: %v", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("GDELT: unexpected status %d", resp.StatusCode)
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Printf("GDELT: failed to read response: %v", err)
		return nil
	}

	var geo geoResponse
	if err := json.Unmarshal(body, &geo); err != nil {
		log.Printf("GDELT: failed to parse GeoJSON: %v", err)
		return nil
	}

	if len(geo.Features) == 0 {
		log.Printf("GDELT: no features in response")
		return nil
	}

	features := geo.Features
	if len(features) > g.params.MaxRecords {
		features = features[:g.params.MaxRecords]
	}

	records := make([]article.Raw, 0, len(features))
	for _, f := range features {
		records = append(records, toRaw(f))
	}
	log.Printf("Processed %d articles", len(records))
	return records
}

// toRaw normalizes one GeoJSON feature. A missing title is recovered from
// the record's HTML fragment, then from the place name, then the sentinel.
func toRaw(f geoFeature) article.Raw {
	title := f.Properties.Title
	if title == "" {
		title = article.TitleFromHTML(f.Properties.HTML)
	}
	if title == "" {
		title = f.Properties.Name
	}
	if title == "" {
		title = "N/A"
	}

	name := f.Properties.Name
	if name == "" {
		name = "N/A"
	}
	count := f.Properties.Count
	if count == nil {
		count = "N/A"
	}
	shareImage := f.Properties.ShareImage
	if shareImage == "" {
		shareImage = "N/A"
	}

	return article.Raw{
		Title:      title,
		Name:       name,
		Count:      count,
		ShareImage: shareImage,
		HTML:       f.Properties.HTML,
		Geometry:   f.Geometry,
	}
}
