// Package sheets appends rows to a Google Sheets spreadsheet through the
// values:append REST endpoint, authenticating with a service-account JWT.
// It is the primary tabular sink: errors propagate to the caller, who decides
// whether to block session completion on them.
package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/fieldwork-labs/intake/pkg/sheet"
	"github.com/fieldwork-labs/intake/pkg/sink"
)

const (
	defaultBaseURL = "https://sheets.googleapis.com/v4"
	scope          = "https://www.googleapis.com/auth/spreadsheets"
)

// Credentials is the subset of a Google service-account key file the client
// needs.
type Credentials struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
	TokenURI    string `json:"token_uri"`
}

// Config configures the Sheets client.
type Config struct {
	SpreadsheetID   string
	WorksheetName   string
	CredentialsJSON string // raw service-account key JSON

	BaseURL    string       // test override
	HTTPClient *http.Client // test override
}

// Client appends fixed-width rows to one spreadsheet.
type Client struct {
	cfg     Config
	creds   Credentials
	http    *http.Client
	baseURL string
	limiter *rate.Limiter

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
	headerDone  map[string]bool
}

// New builds a Sheets client. Missing spreadsheet ID or credentials map to
// sink.ErrBackendUnavailable so the dispatcher can skip this backend cleanly.
func New(cfg Config) (*Client, error) {
	if cfg.SpreadsheetID == "" || cfg.CredentialsJSON == "" {
		return nil, fmt.Errorf("sheets: spreadsheet id and credentials required: %w", sink.ErrBackendUnavailable)
	}

	var creds Credentials
	if err := json.Unmarshal([]byte(cfg.CredentialsJSON), &creds); err != nil {
		return nil, fmt.Errorf("sheets: invalid credentials json: %w", err)
	}
	if creds.ClientEmail == "" || creds.PrivateKey == "" {
		return nil, fmt.Errorf("sheets: credentials missing client_email or private_key: %w", sink.ErrBackendUnavailable)
	}
	if creds.TokenURI == "" {
		creds.TokenURI = "https://oauth2.googleapis.com/token"
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Client{
		cfg:     cfg,
		creds:   creds,
		http:    httpClient,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		// Sheets write quota is 60 requests/min/user; stay well under it.
		limiter:    rate.NewLimiter(rate.Limit(1), 2),
		headerDone: make(map[string]bool),
	}, nil
}

// Append writes one row to the destination worksheet (falling back to the
// configured worksheet name). The first append to a worksheet in this
// process's lifetime also writes the header row when the sheet is empty.
func (c *Client) Append(ctx context.Context, row []string, destination string) error {
	if len(row) != len(sheet.Columns) {
		return fmt.Errorf("sheets: row has %d cells, schema has %d: %w",
			len(row), len(sheet.Columns), sink.ErrSchemaMismatch)
	}

	ws := destination
	if ws == "" {
		ws = c.cfg.WorksheetName
	}
	if ws == "" {
		ws = "responses"
	}

	if err := c.ensureHeader(ctx, ws); err != nil {
		return err
	}
	return c.appendValues(ctx, ws, row)
}

// ensureHeader writes sheet.Columns as the first row when the worksheet is
// still empty. Checked once per worksheet per process.
func (c *Client) ensureHeader(ctx context.Context, worksheet string) error {
	c.mu.Lock()
	done := c.headerDone[worksheet]
	c.mu.Unlock()
	if done {
		return nil
	}

	empty, err := c.firstRowEmpty(ctx, worksheet)
	if err != nil {
		return err
	}
	if empty {
		if err := c.appendValues(ctx, worksheet, sheet.Columns); err != nil {
			return fmt.Errorf("sheets: header write failed: %w", err)
		}
	}

	c.mu.Lock()
	c.headerDone[worksheet] = true
	c.mu.Unlock()
	return nil
}

func (c *Client) firstRowEmpty(ctx context.Context, worksheet string) (bool, error) {
	endpoint := fmt.Sprintf("%s/spreadsheets/%s/values/%s",
		c.baseURL, url.PathEscape(c.cfg.SpreadsheetID), url.PathEscape(worksheet+"!1:1"))

	body, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, err
	}

	var parsed struct {
		Values [][]any `json:"values"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return false, fmt.Errorf("sheets: range response parse failed: %w", err)
	}
	return len(parsed.Values) == 0, nil
}

func (c *Client) appendValues(ctx context.Context, worksheet string, row []string) error {
	endpoint := fmt.Sprintf("%s/spreadsheets/%s/values/%s:append?valueInputOption=RAW&insertDataOption=INSERT_ROWS",
		c.baseURL, url.PathEscape(c.cfg.SpreadsheetID), url.PathEscape(worksheet+"!A1"))

	cells := make([]any, len(row))
	for i, cell := range row {
		cells[i] = cell
	}
	payload, err := json.Marshal(map[string]any{"values": [][]any{cells}})
	if err != nil {
		return fmt.Errorf("sheets: request encode failed: %w", err)
	}

	_, err = c.do(ctx, http.MethodPost, endpoint, payload)
	return err
}

// do performs one authenticated, rate-limited API call.
func (c *Client) do(ctx context.Context, method, endpoint string, body []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("sheets: rate limiter: %w", err)
	}

	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("sheets: request build failed: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sheets: api call failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("sheets: response read failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("sheets: api returned %d: %s", resp.StatusCode, truncate(string(out), 200))
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
