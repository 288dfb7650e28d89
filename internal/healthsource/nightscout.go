package healthsource

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Nightscout reads sensor glucose entries from a Nightscout server.
type Nightscout struct {
	BaseURL   string       // e.g. "https://my.nightscout.host"
	Secret    string       // API secret in plain text; sent hashed
	Token     string       // access token, sent as ?token=
	HTTP      *http.Client // injected for testability (may be nil -> default client)
	Log       *zap.Logger
	UserAgent string
}

// nightscoutEntry is the subset of /api/v1/entries we use.
type nightscoutEntry struct {
	ID   string  `json:"_id"`
	Type string  `json:"type"`
	SGV  float64 `json:"sgv"`
	Date int64   `json:"date"` // ms since epoch
}

// NewNightscout returns a client with a 10 second timeout.
func NewNightscout(baseURL, secret, token string, log *zap.Logger) *Nightscout {
	if log == nil {
		log = zap.NewNop()
	}
	return &Nightscout{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		Secret:    secret,
		Token:     token,
		HTTP:      &http.Client{Timeout: 10 * time.Second},
		Log:       log,
		UserAgent: "glyco/0.1",
	}
}

func (n *Nightscout) Name() string { return "nightscout" }

// RequestAuthorization probes the status endpoint. 401 and 403 are a denial.
func (n *Nightscout) RequestAuthorization(ctx context.Context) (bool, error) {
	resp, err := n.get(ctx, "/api/v1/status.json", nil)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusOK:
		return true, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return false, nil
	default:
		return false, fmt.Errorf("nightscout status returned %d", resp.StatusCode)
	}
}

// FetchLatest returns the newest sgv entry.
func (n *Nightscout) FetchLatest(ctx context.Context) (*Sample, error) {
	samples, err := n.FetchHistory(ctx, 1)
	if err != nil || len(samples) == 0 {
		return nil, err
	}
	return &samples[0], nil
}

// FetchHistory returns up to limit sgv entries, newest first.
func (n *Nightscout) FetchHistory(ctx context.Context, limit int) ([]Sample, error) {
	if limit <= 0 {
		return nil, nil
	}
	q := url.Values{}
	q.Set("count", strconv.Itoa(limit))

	resp, err := n.get(ctx, "/api/v1/entries/sgv.json", q)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("nightscout returned %d: %s", resp.StatusCode, string(b))
	}

	var entries []nightscoutEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("failed to decode nightscout entries: %w", err)
	}

	samples := make([]Sample, 0, len(entries))
	for _, e := range entries {
		if e.ID == "" || e.SGV <= 0 || e.Date <= 0 {
			n.Log.Debug("skipping nightscout entry", zap.String("id", e.ID), zap.Float64("sgv", e.SGV))
			continue
		}
		samples = append(samples, Sample{
			ID:    e.ID,
			Value: e.SGV,
			Date:  time.UnixMilli(e.Date),
		})
	}
	return newestFirst(samples, limit), nil
}

func (n *Nightscout) get(ctx context.Context, path string, q url.Values) (*http.Response, error) {
	u, err := url.Parse(n.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid nightscout base url: %s", err)
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	if q == nil {
		q = url.Values{}
	}
	if n.Token != "" {
		q.Set("token", n.Token)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if n.UserAgent != "" {
		req.Header.Set("User-Agent", n.UserAgent)
	}
	if n.Secret != "" {
		req.Header.Set("API-SECRET", hashSecret(n.Secret))
	}

	client := n.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nightscout request error: %w", err)
	}
	return resp, nil
}

// hashSecret is the lowercase hex SHA-1 Nightscout compares API-SECRET against.
func hashSecret(secret string) string {
	sum := sha1.Sum([]byte(secret))
	return hex.EncodeToString(sum[:])
}
