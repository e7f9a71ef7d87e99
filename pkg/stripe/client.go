package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/checkout/session"
	"github.com/stripe/stripe-go/v74/paymentintent"
	"github.com/stripe/stripe-go/v74/transfer"

	"github.com/canvasly/canvasly-backend/pkg/config"
	pkgerrors "github.com/canvasly/canvasly-backend/pkg/errors"
	"github.com/canvasly/canvasly-backend/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"
)

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errInvalidStripeEnv = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)
	errLoggerRequired   = errors.New("stripe logger is required")
)

// Client exposes the Stripe primitives the pipeline needs with
// centralized logging and error mapping.
type Client struct {
	environment string
	logger      *logger.Logger
}

// NewClient validates the configured secrets and sets the package key once.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	if err := validateAPIKey(env, apiKey); err != nil {
		return nil, err
	}

	stripe.Key = apiKey

	logg.Info(ctx, fmt.Sprintf("stripe client initialized (%s)", env))
	return &Client{environment: env, logger: logg}, nil
}

// Environment reports the normalized Stripe environment in use.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// GetCheckoutSession fetches a checkout session with its subscription
// and payment intent expanded.
func (c *Client) GetCheckoutSession(ctx context.Context, sessionID string) (*stripe.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Params: stripe.Params{Context: ctx},
	}
	params.AddExpand("subscription")
	params.AddExpand("payment_intent")
	c.log(ctx, "request", "get_checkout_session", map[string]any{"session_id": sessionID})

	sess, err := session.Get(sessionID, params)
	if err != nil {
		c.log(ctx, "error", "get_checkout_session", map[string]any{"error": err.Error()})
		return nil, c.mapStripeError(err, "get checkout session")
	}

	c.log(ctx, "response", "get_checkout_session", map[string]any{
		"session_id":     sess.ID,
		"payment_status": string(sess.PaymentStatus),
		"mode":           string(sess.Mode),
	})
	return sess, nil
}

// GetPaymentIntent fetches the payment intent by ID.
func (c *Client) GetPaymentIntent(ctx context.Context, intentID string) (*stripe.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Params: stripe.Params{Context: ctx},
	}
	c.log(ctx, "request", "get_payment_intent", map[string]any{"payment_intent_id": intentID})

	pi, err := paymentintent.Get(intentID, params)
	if err != nil {
		c.log(ctx, "error", "get_payment_intent", map[string]any{"error": err.Error()})
		return nil, c.mapStripeError(err, "get payment intent")
	}

	c.log(ctx, "response", "get_payment_intent", map[string]any{
		"payment_intent_id": pi.ID,
		"status":            string(pi.Status),
	})
	return pi, nil
}

// CapturePaymentIntent captures a previously authorized payment intent.
// Stripe treats capture as idempotent for already-captured intents
// only via error, so callers decide how to handle the mapped conflict.
func (c *Client) CapturePaymentIntent(ctx context.Context, intentID string) (*stripe.PaymentIntent, error) {
	params := &stripe.PaymentIntentCaptureParams{
		Params: stripe.Params{Context: ctx},
	}
	c.log(ctx, "request", "capture_payment_intent", map[string]any{"payment_intent_id": intentID})

	pi, err := paymentintent.Capture(intentID, params)
	if err != nil {
		c.log(ctx, "error", "capture_payment_intent", map[string]any{"error": err.Error()})
		return nil, c.mapStripeError(err, "capture payment intent")
	}

	c.log(ctx, "response", "capture_payment_intent", map[string]any{
		"payment_intent_id": pi.ID,
		"status":            string(pi.Status),
	})
	return pi, nil
}

// TransferParams carries the inputs for a seller payout transfer.
type TransferParams struct {
	AmountCents    int64
	Currency       string
	Destination    string
	TransferGroup  string
	IdempotencyKey string
}

// CreateTransfer moves funds to a connected account.
func (c *Client) CreateTransfer(ctx context.Context, p TransferParams) (*stripe.Transfer, error) {
	params := &stripe.TransferParams{
		Params:        stripe.Params{Context: ctx},
		Amount:        stripe.Int64(p.AmountCents),
		Currency:      stripe.String(p.Currency),
		Destination:   stripe.String(p.Destination),
		TransferGroup: stripe.String(p.TransferGroup),
	}
	if strings.TrimSpace(p.IdempotencyKey) != "" {
		params.SetIdempotencyKey(p.IdempotencyKey)
	}
	c.log(ctx, "request", "create_transfer", map[string]any{
		"amount":         p.AmountCents,
		"currency":       p.Currency,
		"transfer_group": p.TransferGroup,
	})

	tr, err := transfer.New(params)
	if err != nil {
		c.log(ctx, "error", "create_transfer", map[string]any{"error": err.Error()})
		return nil, c.mapStripeError(err, "create transfer")
	}

	c.log(ctx, "response", "create_transfer", map[string]any{"transfer_id": tr.ID})
	return tr, nil
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
		logFields[k] = c.redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("stripe %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("stripe %s", phase))
	}
}

func (c *Client) redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"card", "token", "secret", "email", "phone", "account"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}

func (c *Client) mapStripeError(err error, op string) error {
	if err == nil {
		return nil
	}
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		code := domainCodeForStatus(stripeErr.HTTPStatusCode)
		if stripeErr.Code == stripe.ErrorCodeIdempotencyKeyInUse {
			code = pkgerrors.CodeIdempotency
		}
		return pkgerrors.Wrap(code, err, fmt.Sprintf("stripe %s failed", op))
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("stripe %s failed", op))
}

func domainCodeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusUnauthorized:
		return pkgerrors.CodeUnauthorized
	case http.StatusForbidden:
		return pkgerrors.CodeForbidden
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusConflict:
		return pkgerrors.CodeConflict
	case http.StatusBadRequest:
		return pkgerrors.CodeValidation
	case http.StatusUnprocessableEntity:
		return pkgerrors.CodeStateConflict
	default:
		if status >= 400 && status < 500 {
			return pkgerrors.CodeValidation
		}
		return pkgerrors.CodeDependency
	}
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = testEnv
	}
	switch env {
	case testEnv, liveEnv:
		return env, nil
	default:
		return "", errInvalidStripeEnv
	}
}

func validateAPIKey(env, key string) error {
	switch env {
	case testEnv:
		if strings.HasPrefix(key, "sk_test") || strings.HasPrefix(key, "rk_test") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a test secret key (sk_test/rk_test)", testEnv)
	case liveEnv:
		if strings.HasPrefix(key, "sk_live") || strings.HasPrefix(key, "rk_live") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a live secret key (sk_live/rk_live)", liveEnv)
	default:
		return errInvalidStripeEnv
	}
}
