package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tokenwatch.org/internal/chain"
)

const defaultAdvisorTimeout = 15 * time.Second

// Gemini calls a Gemini-style generateContent endpoint and expects the
// model to answer with a single JSON object matching Analysis.
type Gemini struct {
	baseURL string
	key     string
	model   string
	http    *http.Client
}

// NewGemini builds the upstream advisor. Base URL and key are required.
func NewGemini(baseURL, key string, timeout time.Duration) (*Gemini, error) {
	if baseURL == "" || key == "" {
		return nil, ErrUnavailable
	}
	if timeout <= 0 {
		timeout = defaultAdvisorTimeout
	}
	return &Gemini{
		baseURL: strings.TrimRight(baseURL, "/"),
		key:     key,
		model:   "gemini-1.5-flash",
		http:    &http.Client{Timeout: timeout},
	}, nil
}

type generateRequest struct {
	Contents []struct {
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (g *Gemini) ExplainRisk(ctx context.Context, asset chain.Asset) (Analysis, error) {
	prompt := fmt.Sprintf(
		"You are a token risk auditor. Assess the rug-pull risk of this asset and answer "+
			"with ONLY a JSON object with keys explanation, rug_probability (0-100 integer), "+
			"risk_level (low|medium|high|critical), suggested_action (monitor|caution|avoid), "+
			"confidence (0-1 float).\nAsset: name=%s symbol=%s policy=%s quantity=%s metadata=%v",
		asset.Name, asset.Symbol, asset.PolicyID, asset.Quantity, asset.Metadata)

	var req generateRequest
	req.Contents = make([]struct {
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	}, 1)
	req.Contents[0].Parts = []struct {
		Text string `json:"text"`
	}{{Text: prompt}}

	text, err := g.generate(ctx, req)
	if err != nil {
		return Analysis{}, err
	}
	var a Analysis
	if err := json.Unmarshal([]byte(extractJSON(text)), &a); err != nil {
		return Analysis{}, fmt.Errorf("%w: malformed model output: %v", ErrUnavailable, err)
	}
	if a.RugProbability < 0 || a.RugProbability > 100 {
		return Analysis{}, fmt.Errorf("%w: rug_probability out of range", ErrUnavailable)
	}
	if a.RiskLevel == "" {
		a.RiskLevel = riskLevelFor(a.RugProbability)
	}
	if a.SuggestedAction == "" {
		a.SuggestedAction = actionFor(a.RugProbability)
	}
	return a, nil
}

func (g *Gemini) generate(ctx context.Context, payload any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", g.baseURL, g.model, g.key)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var out generateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("%w: empty response", ErrUnavailable)
	}
	return out.Candidates[0].Content.Parts[0].Text, nil
}

// extractJSON strips markdown fences and surrounding prose the model
// sometimes wraps around the object.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return s
	}
	return s[start : end+1]
}

var _ Advisor = (*Gemini)(nil)
