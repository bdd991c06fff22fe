// Package stream is the client for the external streaming provider
// (Cloudflare Stream style API: direct-upload tickets, asset status,
// signed webhooks).
package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/danribes/mystic-ecom-sub009/config"
)

// ErrAssetNotFound is returned when the provider has no asset for the given id.
var ErrAssetNotFound = errors.New("stream: asset not found")

// TicketOptions controls an upload ticket request.
type TicketOptions struct {
	MaxDurationSeconds int
	Expiry             time.Time
	Creator            string
	Meta               map[string]string // round-tripped by the provider in webhooks
}

// UploadTicket is a time-boxed, single-use resumable-upload authorization.
type UploadTicket struct {
	URL             string    // TUS endpoint the client uploads to
	ProviderVideoID string    // provider-issued asset id
	ExpiresAt       time.Time
}

// Asset is the provider-side view of an uploaded video.
type Asset struct {
	UID          string
	State        string // pendingupload | downloading | queued | inprogress | ready | error
	PctComplete  int
	Duration     float64
	Thumbnail    string
	PlaybackHLS  string
	PlaybackDASH string
	ErrorCode    string
	ErrorText    string
}

// Client calls the provider HTTP API with a fixed per-request timeout.
type Client struct {
	apiBase   string
	accountID string
	token     string
	http      *http.Client
	logger    *zap.Logger
}

// NewClient creates a provider API client from config.
func NewClient(cfg config.ProviderConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := time.Duration(cfg.RequestTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		apiBase:   strings.TrimRight(cfg.APIBase, "/"),
		accountID: cfg.AccountID,
		token:     cfg.APIToken,
		http:      &http.Client{Timeout: timeout},
		logger:    logger,
	}
}

type apiEnvelope struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result"`
	Errors  []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

type directUploadResult struct {
	UploadURL string `json:"uploadURL"`
	UID       string `json:"uid"`
}

type assetResult struct {
	UID    string `json:"uid"`
	Status struct {
		State       string `json:"state"`
		PctComplete string `json:"pctComplete"`
		ErrReason   string `json:"errorReasonText"`
		ErrCode     string `json:"errorReasonCode"`
	} `json:"status"`
	Duration  float64 `json:"duration"`
	Thumbnail string  `json:"thumbnail"`
	Playback  struct {
		HLS  string `json:"hls"`
		Dash string `json:"dash"`
	} `json:"playback"`
}

type downloadResult struct {
	Default struct {
		URL string `json:"url"`
	} `json:"default"`
}

// IssueUploadTicket requests a time-boxed direct-upload ticket from the provider.
func (c *Client) IssueUploadTicket(ctx context.Context, opts TicketOptions) (*UploadTicket, error) {
	body := map[string]interface{}{
		"maxDurationSeconds": opts.MaxDurationSeconds,
		"expiry":             opts.Expiry.UTC().Format(time.RFC3339),
	}
	if opts.Creator != "" {
		body["creator"] = opts.Creator
	}
	if len(opts.Meta) > 0 {
		body["meta"] = opts.Meta
	}

	var result directUploadResult
	if err := c.do(ctx, http.MethodPost, c.streamURL("direct_upload"), body, &result); err != nil {
		return nil, err
	}
	if result.UploadURL == "" || result.UID == "" {
		return nil, fmt.Errorf("stream: direct_upload response missing uploadURL/uid")
	}
	return &UploadTicket{
		URL:             result.UploadURL,
		ProviderVideoID: result.UID,
		ExpiresAt:       opts.Expiry,
	}, nil
}

// GetAsset fetches the provider-side status of an asset.
func (c *Client) GetAsset(ctx context.Context, uid string) (*Asset, error) {
	var result assetResult
	if err := c.do(ctx, http.MethodGet, c.streamURL(uid), nil, &result); err != nil {
		return nil, err
	}
	pct := 0
	fmt.Sscanf(result.Status.PctComplete, "%d", &pct)
	return &Asset{
		UID:          result.UID,
		State:        result.Status.State,
		PctComplete:  pct,
		Duration:     result.Duration,
		Thumbnail:    result.Thumbnail,
		PlaybackHLS:  result.Playback.HLS,
		PlaybackDASH: result.Playback.Dash,
		ErrorCode:    result.Status.ErrCode,
		ErrorText:    result.Status.ErrReason,
	}, nil
}

// DeleteAsset removes the asset from the provider.
func (c *Client) DeleteAsset(ctx context.Context, uid string) error {
	return c.do(ctx, http.MethodDelete, c.streamURL(uid), nil, nil)
}

// CreateDownload asks the provider to make the source file downloadable and
// returns the download URL. The provider prepares downloads asynchronously;
// the returned URL may 404 until preparation completes, callers retry.
func (c *Client) CreateDownload(ctx context.Context, uid string) (string, error) {
	var result downloadResult
	if err := c.do(ctx, http.MethodPost, c.streamURL(uid+"/downloads"), nil, &result); err != nil {
		return "", err
	}
	if result.Default.URL == "" {
		return "", fmt.Errorf("stream: downloads response missing url")
	}
	return result.Default.URL, nil
}

func (c *Client) streamURL(suffix string) string {
	return fmt.Sprintf("%s/accounts/%s/stream/%s", c.apiBase, c.accountID, suffix)
}

func (c *Client) do(ctx context.Context, method, url string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("provider request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrAssetNotFound
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("provider status %d: %s", resp.StatusCode, truncate(string(raw), 256))
	}
	if out == nil {
		return nil
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if !envelope.Success {
		msg := "unknown error"
		if len(envelope.Errors) > 0 {
			msg = envelope.Errors[0].Message
		}
		return fmt.Errorf("provider rejected request: %s", msg)
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
