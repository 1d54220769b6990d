package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	defaultTimeout = 10 * time.Second
	maxRetries     = 3
)

// Client talks to a Blockfrost-compatible API. Every call carries an
// explicit timeout and a bounded exponential-backoff retry; timeouts
// surface as ErrTimeout, other failures as ErrUpstream.
type Client struct {
	baseURL string
	key     string
	http    *http.Client
	timeout time.Duration
}

// NewClient builds a client. Base URL and project key are required.
func NewClient(baseURL, key string, timeout time.Duration) (*Client, error) {
	if baseURL == "" || key == "" {
		return nil, ErrNotConfigured
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		key:     key,
		http:    &http.Client{Timeout: timeout},
		timeout: timeout,
	}, nil
}

type assetRow struct {
	Asset    string `json:"asset"`
	Quantity string `json:"quantity"`
}

type assetDetail struct {
	Asset         string         `json:"asset"`
	PolicyID      string         `json:"policy_id"`
	AssetName     string         `json:"asset_name"`
	Quantity      string         `json:"quantity"`
	OnchainModata map[string]any `json:"onchain_metadata"`
}

// FetchLatestAssets lists the n most recent assets.
func (c *Client) FetchLatestAssets(ctx context.Context, n int) ([]Asset, error) {
	if n <= 0 {
		n = 5
	}
	if n > 20 {
		n = 20
	}
	var rows []assetRow
	q := url.Values{"count": {strconv.Itoa(n)}, "order": {"desc"}}
	if err := c.getJSON(ctx, "/assets?"+q.Encode(), &rows); err != nil {
		return nil, err
	}
	assets := make([]Asset, 0, len(rows))
	for _, row := range rows {
		assets = append(assets, Asset{
			ID:       row.Asset,
			Name:     row.Asset,
			Quantity: row.Quantity,
			Source:   "blockfrost",
		})
	}
	return assets, nil
}

// FetchAsset loads one asset with its metadata.
func (c *Client) FetchAsset(ctx context.Context, id string) (Asset, error) {
	var detail assetDetail
	if err := c.getJSON(ctx, "/assets/"+url.PathEscape(id), &detail); err != nil {
		return Asset{}, err
	}
	name := detail.AssetName
	if name == "" {
		name = detail.Asset
	}
	return Asset{
		ID:       detail.Asset,
		Name:     name,
		Symbol:   detail.AssetName,
		PolicyID: detail.PolicyID,
		Quantity: detail.Quantity,
		Metadata: detail.OnchainModata,
		Source:   "blockfrost",
	}, nil
}

// HealthCheck probes the API root.
func (c *Client) HealthCheck(ctx context.Context) error {
	var out map[string]any
	return c.getJSON(ctx, "/health", &out)
}

// FetchMetadata satisfies the registry's provenance contract: the asset
// blob keyed the way the provenance column stores it.
func (c *Client) FetchMetadata(ctx context.Context, policyID string) (map[string]any, string, error) {
	asset, err := c.FetchAsset(ctx, policyID)
	if err != nil {
		return nil, "", err
	}
	blob := map[string]any{
		"asset":     asset.ID,
		"policy_id": asset.PolicyID,
		"quantity":  asset.Quantity,
	}
	if asset.Metadata != nil {
		blob["onchain_metadata"] = asset.Metadata
	}
	return blob, asset.Source, nil
}

func (c *Client) getJSON(ctx context.Context, path string, dst any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	op := func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		req.Header.Set("project_id", c.key)

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return nil, backoff.Permanent(ErrAssetNotFound)
		case resp.StatusCode >= 500:
			return nil, fmt.Errorf("status %d", resp.StatusCode)
		case resp.StatusCode != http.StatusOK:
			return nil, backoff.Permanent(fmt.Errorf("status %d", resp.StatusCode))
		}
		return io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	}

	body, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(maxRetries),
	)
	if err != nil {
		return classify(err)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrUpstream, err)
	}
	return nil
}

func classify(err error) error {
	if errors.Is(err, ErrAssetNotFound) {
		return ErrAssetNotFound
	}
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUpstream, err)
}

var _ Provider = (*Client)(nil)
