package pumapi

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// API actions understood by the facility-management billing source.
const (
	actionGetInvoice        = "getinvoice"
	actionGetInvoiceDetails = "getinvoicedetails"
	actionGetGroup          = "getgroup"
)

// ExternalCallError reports an unreachable billing source or a non-success
// response. The orchestrator treats it as "no data for this call" and skips
// the affected group instead of aborting the batch.
type ExternalCallError struct {
	Action string
	Status int
	Err    error
}

func (e *ExternalCallError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("billing source %s: %v", e.Action, e.Err)
	}
	return fmt.Sprintf("billing source %s: unexpected status %d", e.Action, e.Status)
}

func (e *ExternalCallError) Unwrap() error { return e.Err }

// HTTPDoer defines http.Client interface subset.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Client talks to the billing source over form-encoded POST requests.
type Client struct {
	baseURL string
	apiKey  string
	client  HTTPDoer
	logger  *zap.Logger
}

// NewClient builds a billing-source client.
func NewClient(baseURL, apiKey string, client HTTPDoer, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  client,
		logger:  logger,
	}
}

// NewDefaultHTTPClient returns *http.Client with timeout.
func NewDefaultHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// RosterEntry is one (grant code, total) pair of an invoice roster.
type RosterEntry struct {
	Code  string
	Total float64
}

// GetInvoice returns the roster of grant codes and totals for one invoice,
// in billing-source order.
func (c *Client) GetInvoice(ctx context.Context, invoiceRef string) ([]RosterEntry, error) {
	body, err := c.call(ctx, actionGetInvoice, map[string]string{"invoiceid": invoiceRef})
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(strings.NewReader(body))
	reader.FieldsPerRecord = -1

	var roster []RosterEntry
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &ExternalCallError{Action: actionGetInvoice, Err: err}
		}
		if len(record) < 2 {
			continue
		}
		total, err := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
		if err != nil {
			c.logger.Warn("skipping malformed roster line",
				zap.String("code", record[0]),
				zap.String("total", record[1]),
			)
			continue
		}
		roster = append(roster, RosterEntry{
			Code:  strings.TrimSpace(record[0]),
			Total: total,
		})
	}
	return roster, nil
}

// GetInvoiceDetails returns the raw per-session detail text for one invoice,
// optionally narrowed to a single grant code.
func (c *Client) GetInvoiceDetails(ctx context.Context, invoiceRef, code string) (string, error) {
	params := map[string]string{"invoiceid": invoiceRef}
	if code != "" {
		params["bcode"] = code
	}
	return c.call(ctx, actionGetInvoiceDetails, params)
}

// GetGroup returns the raw two-line group-directory record for a group code.
func (c *Client) GetGroup(ctx context.Context, groupRef string) (string, error) {
	return c.call(ctx, actionGetGroup, map[string]string{"unitlogin": groupRef})
}

func (c *Client) call(ctx context.Context, action string, params map[string]string) (string, error) {
	form := url.Values{}
	form.Set("action", action)
	form.Set("apikey", c.apiKey)
	for k, v := range params {
		form.Set(k, v)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", &ExternalCallError{Action: action, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("billing source request failed", zap.String("action", action), zap.Error(err))
		return "", &ExternalCallError{Action: action, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &ExternalCallError{Action: action, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("billing source returned non-success",
			zap.String("action", action),
			zap.Int("status", resp.StatusCode),
		)
		return "", &ExternalCallError{Action: action, Status: resp.StatusCode}
	}
	return string(body), nil
}
