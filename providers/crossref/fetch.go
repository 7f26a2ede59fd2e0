package crossref

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"rpmt/config"
	"rpmt/providers"

	"go.uber.org/zap"
)

const defaultBaseURL = "https://api.crossref.org"

// Client implementiert providers.CitationSource für Crossref.
type Client struct {
	BaseURL    string
	Mailto     string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// NewClient erstellt einen neuen Crossref-Client.
func NewClient(cfg *config.Config, logger *zap.Logger) *Client {
	base := cfg.CrossrefBaseURL
	if base == "" {
		base = defaultBaseURL
	}
	return &Client{
		BaseURL:    strings.TrimRight(base, "/"),
		Mailto:     cfg.CrossrefMailto,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		Logger:     logger,
	}
}

// Name gibt den Namen des Providers zurück.
func (c *Client) Name() string {
	return "crossref"
}

// CitationCount fragt is-referenced-by-count für doi ab.
func (c *Client) CitationCount(ctx context.Context, doi string) (int, error) {
	norm := providers.NormalizeDOI(doi)
	if norm == "" {
		return 0, fmt.Errorf("%q is not a DOI", doi)
	}

	segments := strings.Split(norm, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	u := fmt.Sprintf("%s/works/%s", c.BaseURL, strings.Join(segments, "/"))
	if c.Mailto != "" {
		u += "?mailto=" + url.QueryEscape(c.Mailto)
	}
	log := c.Logger.With(zap.String("doi", norm))
	log.Debug("Rufe Crossref API auf", zap.String("url", u))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, err
	}
	ua := "rpmt/1.0"
	if c.Mailto != "" {
		ua += " (mailto:" + c.Mailto + ")"
	}
	req.Header.Set("User-Agent", ua)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return 0, fmt.Errorf("crossref %s: %w", norm, providers.ErrUnknownDOI)
	case resp.StatusCode != http.StatusOK:
		return 0, fmt.Errorf("crossref request failed with status: %d", resp.StatusCode)
	}

	var wr WorkResponse
	if err := json.NewDecoder(resp.Body).Decode(&wr); err != nil {
		return 0, fmt.Errorf("decode crossref response: %w", err)
	}
	log.Debug("Crossref-Zitationen gelesen", zap.Int("count", wr.Message.IsReferencedByCount))
	return wr.Message.IsReferencedByCount, nil
}
