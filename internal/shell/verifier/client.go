// Package verifier submits deployed artifacts to a Blockscout-compatible
// source verification service and polls until the service confirms them.
package verifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/artpar/chainforge/internal/core/verification"
	"github.com/hashicorp/go-retryablehttp"
)

// Client talks to the verification service's HTTP API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *retryablehttp.Client
	logger     *slog.Logger
}

// Config holds verification client configuration.
type Config struct {
	BaseURL string // Explorer base URL, e.g., "https://eth-sepolia.blockscout.com"
	APIKey  string // Optional API key, sent as the apikey query parameter
	Timeout time.Duration
	// TransportRetries retries connection errors and 5xx responses. These
	// are independent of the verification poll attempts.
	TransportRetries int
}

// NewClient creates a new verification client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "verifier-http")

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.TransportRetries
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	rc.HTTPClient.Timeout = timeout
	rc.Logger = logger

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: rc,
		logger:     logger,
	}
}

// =============================================================================
// Response Types
// =============================================================================

// contractResponse is the subset of GET /api/v2/smart-contracts/{address}.
type contractResponse struct {
	IsVerified          bool   `json:"is_verified"`
	IsPartiallyVerified bool   `json:"is_partially_verified"`
	Name                string `json:"name"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// =============================================================================
// Operations
// =============================================================================

// Submit starts verification of address with a standard-JSON input.
// Verification itself is asynchronous; use Status to observe the result.
func (c *Client) Submit(ctx context.Context, address string, bundle verification.SourceBundle) error {
	body, contentType, err := standardInputForm(bundle)
	if err != nil {
		return err
	}

	endpoint := c.endpoint("/api/v2/smart-contracts/" + address + "/verification/via/standard-input")
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var msg messageResponse
	_ = json.NewDecoder(resp.Body).Decode(&msg)
	c.logger.Info("verification submitted", "address", address, "contract", bundle.ContractName, "message", msg.Message)
	return nil
}

// Status returns the verification state of address. An address the
// service has not indexed yet reports as unverified.
func (c *Client) Status(ctx context.Context, address string) (verification.Status, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/api/v2/smart-contracts/"+address), nil)
	if err != nil {
		return verification.Status{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return verification.Status{}, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return verification.Status{}, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return verification.Status{}, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var result contractResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return verification.Status{}, fmt.Errorf("decode response: %w", err)
	}
	return verification.Status{
		Verified:          result.IsVerified,
		PartiallyVerified: result.IsPartiallyVerified,
		Name:              result.Name,
	}, nil
}

func (c *Client) endpoint(path string) string {
	u := c.baseURL + path
	if c.apiKey != "" {
		u += "?apikey=" + url.QueryEscape(c.apiKey)
	}
	return u
}

// standardInputForm encodes the multipart body of a standard-input
// submission. The body is returned as bytes so retries can resend it.
func standardInputForm(bundle verification.SourceBundle) ([]byte, string, error) {
	input, err := json.Marshal(bundle.Input)
	if err != nil {
		return nil, "", fmt.Errorf("marshal standard input: %w", err)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	name := bundle.ContractName
	if i := strings.LastIndex(name, ":"); i >= 0 {
		name = name[i+1:]
	}
	license := bundle.LicenseType
	if license == "" {
		license = "none"
	}
	fields := [][2]string{
		{"compiler_version", bundle.CompilerVersion},
		{"contract_name", name},
		{"license_type", license},
		{"autodetect_constructor_args", "true"},
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", f[0], err)
		}
	}

	part, err := w.CreateFormFile("files[0]", "input.json")
	if err != nil {
		return nil, "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(input); err != nil {
		return nil, "", fmt.Errorf("write file part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
