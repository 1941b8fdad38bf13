// Package explorer retrieves verified contract source from Etherscan-compatible APIs.
package explorer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/aescanero/mythgate/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Config holds explorer client configuration
type Config struct {
	BaseURL   string
	APIKey    string
	ChainID   int64
	Timeout   time.Duration
	RateLimit float64
	Logger    *zap.Logger
}

// Client is an Etherscan-compatible source code client
type Client struct {
	baseURL    string
	apiKey     string
	chainID    int64
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewClient creates a new explorer client
func NewClient(cfg *Config) *Client {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		chainID: cfg.ChainID,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				DialContext:           dialer.DialContext,
				ForceAttemptHTTP2:     true,
				MaxIdleConnsPerHost:   10,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   5 * time.Second,
				ResponseHeaderTimeout: cfg.Timeout,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
		logger:  cfg.Logger,
	}
}

// apiResponse is the common explorer envelope. Result is an array on success
// and an error string otherwise.
type apiResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

type sourceResult struct {
	SourceCode      string `json:"SourceCode"`
	ContractName    string `json:"ContractName"`
	CompilerVersion string `json:"CompilerVersion"`
	Proxy           string `json:"Proxy"`
	Implementation  string `json:"Implementation"`
}

// GetSourceCode fetches and decodes the verified source of address
func (c *Client) GetSourceCode(ctx context.Context, address string) (*domain.ContractSource, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %v", domain.ErrExplorer, err)
	}

	q := url.Values{}
	if c.chainID > 0 {
		q.Set("chainid", strconv.FormatInt(c.chainID, 10))
	}
	q.Set("module", "contract")
	q.Set("action", "getsourcecode")
	q.Set("address", address)
	if c.apiKey != "" {
		q.Set("apikey", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrExplorer, err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrExplorer, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", domain.ErrExplorer, err)
	}

	c.logger.Debug("explorer response",
		zap.String("address", address),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
		zap.Duration("duration", time.Since(start)))

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d", domain.ErrExplorer, resp.StatusCode)
	}

	var env apiResponse
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", domain.ErrExplorer, err)
	}
	if env.Status != "1" {
		var msg string
		if json.Unmarshal(env.Result, &msg) != nil || msg == "" {
			msg = env.Message
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrExplorer, msg)
	}

	var results []sourceResult
	if err := json.Unmarshal(env.Result, &results); err != nil {
		return nil, fmt.Errorf("%w: decode result: %v", domain.ErrExplorer, err)
	}
	if len(results) == 0 || results[0].SourceCode == "" {
		return nil, fmt.Errorf("%w: %s", domain.ErrSourceNotVerified, address)
	}

	r := results[0]
	files, remappings, err := ParseSourceCode(r.SourceCode, r.ContractName)
	if err != nil {
		return nil, err
	}

	return &domain.ContractSource{
		Address:         address,
		ContractName:    r.ContractName,
		CompilerVersion: r.CompilerVersion,
		Files:           files,
		Remappings:      remappings,
		Proxy:           r.Proxy == "1",
		Implementation:  r.Implementation,
	}, nil
}
