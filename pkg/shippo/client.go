package shippo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/canvasly/canvasly-backend/pkg/config"
	pkgerrors "github.com/canvasly/canvasly-backend/pkg/errors"
	"github.com/canvasly/canvasly-backend/pkg/logger"
)

const (
	defaultTimeout = 15 * time.Second

	transactionSuccess = "SUCCESS"
	transactionError   = "ERROR"
)

var (
	errAPITokenRequired = errors.New("shippo api token is required")
	errLoggerRequired   = errors.New("shippo logger is required")
)

// Client is a thin REST wrapper over the Shippo API with centralized
// auth, logging, and error mapping. Shippo has no maintained Go SDK,
// so requests are issued directly.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiToken   string
	logger     *logger.Logger
}

// NewClient validates the configuration and builds the HTTP client.
func NewClient(ctx context.Context, cfg config.ShippoConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	token := strings.TrimSpace(cfg.APIToken)
	if token == "" {
		return nil, errAPITokenRequired
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.goshippo.com"
	}
	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiToken:   token,
		logger:     logg,
	}

	logg.Info(ctx, "shippo client initialized")
	return c, nil
}

// GetRates creates a synchronous shipment and returns its rate quote.
// Carrier diagnostics ride along so callers can filter flagged rates.
func (c *Client) GetRates(ctx context.Context, from, to AddressInput, parcels []ParcelInput) (*RateQuote, error) {
	req := shipmentRequest{
		AddressFrom: from,
		AddressTo:   to,
		Parcels:     parcels,
		Async:       false,
	}
	c.log(ctx, "request", "get_rates", map[string]any{"parcels": len(parcels)})

	var quote RateQuote
	if err := c.do(ctx, http.MethodPost, "/shipments/", req, &quote); err != nil {
		c.log(ctx, "error", "get_rates", map[string]any{"error": err.Error()})
		return nil, err
	}
	if len(quote.Rates) == 0 {
		msg := firstMessage(quote.Messages)
		c.log(ctx, "error", "get_rates", map[string]any{"error": msg})
		return nil, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("shippo returned no rates: %s", msg))
	}

	c.log(ctx, "response", "get_rates", map[string]any{
		"shipment_id": quote.ObjectID,
		"rates":       len(quote.Rates),
	})
	return &quote, nil
}

// BuyLabel purchases a label for the given rate.
func (c *Client) BuyLabel(ctx context.Context, rateID string) (*Transaction, error) {
	req := transactionRequest{
		Rate:          rateID,
		LabelFileType: "PDF",
		Async:         false,
	}
	c.log(ctx, "request", "buy_label", map[string]any{"rate_id": rateID})

	var txn Transaction
	if err := c.do(ctx, http.MethodPost, "/transactions/", req, &txn); err != nil {
		c.log(ctx, "error", "buy_label", map[string]any{"error": err.Error()})
		return nil, err
	}
	if txn.Status != transactionSuccess {
		msg := firstMessage(txn.Messages)
		c.log(ctx, "error", "buy_label", map[string]any{"error": msg, "status": txn.Status})
		return nil, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("shippo label purchase failed: %s", msg))
	}

	c.log(ctx, "response", "buy_label", map[string]any{
		"transaction_id":  txn.ObjectID,
		"tracking_number": txn.TrackingNumber,
	})
	return &txn, nil
}

// GetTrack fetches live tracking state for a carrier and tracking number.
func (c *Client) GetTrack(ctx context.Context, carrier, trackingNumber string) (*Track, error) {
	path := fmt.Sprintf("/tracks/%s/%s", url.PathEscape(carrier), url.PathEscape(trackingNumber))
	c.log(ctx, "request", "get_track", map[string]any{"carrier": carrier})

	var track Track
	if err := c.do(ctx, http.MethodGet, path, nil, &track); err != nil {
		c.log(ctx, "error", "get_track", map[string]any{"error": err.Error()})
		return nil, err
	}

	status := ""
	if track.TrackingStatus != nil {
		status = track.TrackingStatus.Status
	}
	c.log(ctx, "response", "get_track", map[string]any{"status": status})
	return &track, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding shippo request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building shippo request")
	}
	req.Header.Set("Authorization", "ShippoToken "+c.apiToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "calling shippo")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading shippo response")
	}
	if resp.StatusCode >= 400 {
		return mapStatusError(resp.StatusCode, raw)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decoding shippo response")
	}
	return nil
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = v
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("shippo %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("shippo %s", phase))
	}
}

func mapStatusError(status int, raw []byte) error {
	detail := strings.TrimSpace(string(raw))
	if len(detail) > 512 {
		detail = detail[:512]
	}
	msg := fmt.Sprintf("shippo responded %d: %s", status, detail)
	switch status {
	case http.StatusUnauthorized:
		return pkgerrors.New(pkgerrors.CodeUnauthorized, msg)
	case http.StatusForbidden:
		return pkgerrors.New(pkgerrors.CodeForbidden, msg)
	case http.StatusNotFound:
		return pkgerrors.New(pkgerrors.CodeNotFound, msg)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return pkgerrors.New(pkgerrors.CodeValidation, msg)
	default:
		return pkgerrors.New(pkgerrors.CodeDependency, msg)
	}
}

func firstMessage(messages []Message) string {
	for _, m := range messages {
		if strings.TrimSpace(m.Text) != "" {
			return m.Text
		}
	}
	return "no details provided"
}
