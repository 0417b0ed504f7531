// Package immich is a minimal client for the parts of the Immich server API
// a photo frame needs: finding an album by name, listing its assets and
// downloading originals.
//
// A client may carry a backup base URL (for example the same server reached
// through a VPN). The backup is tried only when the primary cannot be
// reached at all; an HTTP error response from the primary is final.
package immich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/provide-io/einkframe/internal/assets"
	ferrors "github.com/provide-io/einkframe/pkg/errors"
	"github.com/provide-io/einkframe/pkg/logging"
)

// Config configures the client.
type Config struct {
	// ServerURL is the primary server address, without the /api suffix.
	ServerURL string
	// BackupURL is tried when ServerURL is unreachable. Optional.
	BackupURL string
	// APIKey is sent as the x-api-key header.
	APIKey string
	// Timeout bounds each HTTP request. Default: 60s.
	Timeout time.Duration
	// MaxBytes caps a downloaded original. Default: 200MB.
	MaxBytes int64
	// UserAgent sent with requests.
	UserAgent string
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 200 * 1024 * 1024
	}
	if c.UserAgent == "" {
		c.UserAgent = "einkframe/1.0"
	}
}

// Album is the subset of the album resource the frame uses.
type Album struct {
	ID         string      `json:"id"`
	AlbumName  string      `json:"albumName"`
	AssetCount int         `json:"assetCount"`
	Assets     []AssetInfo `json:"assets"`
}

// AssetInfo is the subset of the asset resource the frame uses.
type AssetInfo struct {
	ID               string `json:"id"`
	OriginalPath     string `json:"originalPath"`
	OriginalFileName string `json:"originalFileName"`
	Type             string `json:"type"`
}

// StatusError is returned for non-200 responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request failed. %d: %s", e.StatusCode, e.Body)
}

// Client talks to an Immich server.
type Client struct {
	http    *http.Client
	primary string
	backup  string
	config  Config
	logger  hclog.Logger
}

// New creates a Client.
func New(cfg Config, logger hclog.Logger) (*Client, error) {
	cfg.defaults()

	primary, err := apiBase(cfg.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("%w: server address: %v", ferrors.ErrConfig, err)
	}
	var backup string
	if cfg.BackupURL != "" {
		backup, err = apiBase(cfg.BackupURL)
		if err != nil {
			return nil, fmt.Errorf("%w: backup address: %v", ferrors.ErrConfig, err)
		}
	}

	c := &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		primary: primary,
		backup:  backup,
		config:  cfg,
		logger:  logging.OrNull(logger).Named("immich"),
	}
	c.logger.Info("🔌 Immich client ready", "server", primary, "backup", backup != "")
	return c, nil
}

func apiBase(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q in %q", u.Scheme, raw)
	}
	if u.Host == "" {
		return "", fmt.Errorf("missing host in %q", raw)
	}
	return strings.TrimRight(u.String(), "/") + "/api", nil
}

// do sends the request to the primary server and falls back to the backup
// only on transport-level failures.
func (c *Client) do(ctx context.Context, endpoint, accept string) (*http.Response, error) {
	resp, err := c.send(ctx, c.primary+endpoint, accept)
	if err == nil {
		return resp, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}
	if c.backup == "" {
		c.logger.Error("❌ Server unreachable, check the network connection", "error", err)
		return nil, err
	}

	c.logger.Warn("⚠️ Server unreachable, trying backup address", "error", err)
	resp, err = c.send(ctx, c.backup+endpoint, accept)
	if err != nil {
		c.logger.Error("❌ Backup server unreachable, check the network connection", "error", err)
		return nil, err
	}
	return resp, nil
}

func (c *Client) send(ctx context.Context, target, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("x-api-key", c.config.APIKey)
	req.Header.Set("User-Agent", c.config.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	return resp, nil
}

// checkStatus consumes and closes the body of a failed response.
func (c *Client) checkStatus(resp *http.Response, endpoint string) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode == http.StatusUnauthorized {
		c.logger.Error("🔑 Unauthorized (401), check the API key")
	}
	err := &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	c.logger.Error("❌ Request failed", "endpoint", endpoint, "status", resp.StatusCode)
	return err
}

func (c *Client) getJSON(ctx context.Context, endpoint string, v any) error {
	resp, err := c.do(ctx, endpoint, "application/json")
	if err != nil {
		return err
	}
	if err := c.checkStatus(resp, endpoint); err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", endpoint, err)
	}
	c.logger.Debug("✅ Request succeeded", "endpoint", endpoint)
	return nil
}

// Albums lists every album visible to the API key.
func (c *Client) Albums(ctx context.Context) ([]Album, error) {
	var albums []Album
	if err := c.getJSON(ctx, "/albums", &albums); err != nil {
		return nil, err
	}
	return albums, nil
}

// Album fetches one album including its assets.
func (c *Client) Album(ctx context.Context, id string) (*Album, error) {
	var album Album
	if err := c.getJSON(ctx, "/albums/"+url.PathEscape(id), &album); err != nil {
		return nil, err
	}
	return &album, nil
}

// AlbumByName finds an album by exact name and fetches it.
func (c *Client) AlbumByName(ctx context.Context, name string) (*Album, error) {
	albums, err := c.Albums(ctx)
	if err != nil {
		return nil, err
	}
	for _, a := range albums {
		if a.AlbumName == name {
			return c.Album(ctx, a.ID)
		}
	}
	return nil, fmt.Errorf("album %q not found", name)
}

// ListAlbumAssets implements assets.Source.
func (c *Client) ListAlbumAssets(ctx context.Context, album string) ([]assets.Asset, error) {
	a, err := c.AlbumByName(ctx, album)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ferrors.ErrManifestFetch, err)
	}

	list := make([]assets.Asset, 0, len(a.Assets))
	for _, info := range a.Assets {
		list = append(list, assets.Asset{ID: info.ID, OriginalPath: info.OriginalPath})
	}
	return list, nil
}

// DownloadAsset implements assets.Source.
func (c *Client) DownloadAsset(ctx context.Context, id string) ([]byte, error) {
	endpoint := "/assets/" + url.PathEscape(id) + "/original"

	resp, err := c.do(ctx, endpoint, "application/octet-stream")
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ferrors.ErrAssetDownload, id, err)
	}
	if err := c.checkStatus(resp, endpoint); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ferrors.ErrAssetDownload, id, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: read body: %v", ferrors.ErrAssetDownload, id, err)
	}
	if int64(len(data)) > c.config.MaxBytes {
		return nil, fmt.Errorf("%w: %s: larger than %d bytes", ferrors.ErrAssetDownload, id, c.config.MaxBytes)
	}

	c.logger.Info("📥 Asset downloaded", "id", id, "bytes", len(data))
	return data, nil
}
