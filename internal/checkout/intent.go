package checkout

import (
	"encoding/json"

	"github.com/google/uuid"
	stripesdk "github.com/stripe/stripe-go/v74"

	"github.com/canvasly/canvasly-backend/pkg/enums"
)

// Session metadata keys written by the frontend when a hosted checkout
// session is created. Parsing happens once, here; the rest of the
// pipeline dispatches on the resulting Intent tag.
const (
	metaPurchaseType   = "purchase_type"
	metaExternalUserID = "external_user_id"
	metaPlanID         = "plan_id"
	metaBillingPeriod  = "billing_period"
	metaCartItems      = "cart_items"
	metaShippingAddr   = "shipping_address"

	purchaseTypeSubscription = "subscription"
	purchaseTypeCart         = "cart"
)

// IntentKind tags the parsed session metadata.
type IntentKind string

const (
	IntentSubscription IntentKind = "subscription"
	IntentCart         IntentKind = "cart"
	IntentUnknown      IntentKind = "unknown"
)

// SubscriptionIntent is a plan selection extracted from session metadata.
type SubscriptionIntent struct {
	ExternalUserID string              `json:"external_user_id"`
	PlanID         string              `json:"plan_id"`
	BillingPeriod  enums.BillingPeriod `json:"billing_period"`
}

// CartLine is one listing purchase within a cart session.
type CartLine struct {
	ListingID uuid.UUID `json:"listing_id"`
	Quantity  int       `json:"quantity"`
}

// CartIntent is a cart-of-listings purchase extracted from session metadata.
type CartIntent struct {
	ExternalUserID  string
	ShippingAddress string
	Lines           []CartLine
}

// Intent is the tagged union the reconciler branches on. Exactly one of
// Subscription or Cart is set, matching Kind.
type Intent struct {
	Kind         IntentKind
	Subscription *SubscriptionIntent
	Cart         *CartIntent
}

// parseIntent turns the loosely-typed session metadata bag into an
// Intent. Anything malformed or incomplete comes back as IntentUnknown;
// no downstream code inspects the raw metadata again.
func parseIntent(session *stripesdk.CheckoutSession) Intent {
	if session == nil || len(session.Metadata) == 0 {
		return Intent{Kind: IntentUnknown}
	}

	externalUserID := session.Metadata[metaExternalUserID]
	if externalUserID == "" {
		return Intent{Kind: IntentUnknown}
	}

	purchaseType := session.Metadata[metaPurchaseType]
	if purchaseType == "" {
		// Older session creators omit the type and rely on mode.
		if session.Mode == stripesdk.CheckoutSessionModeSubscription {
			purchaseType = purchaseTypeSubscription
		} else {
			purchaseType = purchaseTypeCart
		}
	}

	switch purchaseType {
	case purchaseTypeSubscription:
		period := enums.BillingPeriod(session.Metadata[metaBillingPeriod])
		if session.Metadata[metaPlanID] == "" || !period.IsValid() {
			return Intent{Kind: IntentUnknown}
		}
		return Intent{
			Kind: IntentSubscription,
			Subscription: &SubscriptionIntent{
				ExternalUserID: externalUserID,
				PlanID:         session.Metadata[metaPlanID],
				BillingPeriod:  period,
			},
		}
	case purchaseTypeCart:
		var lines []CartLine
		if err := json.Unmarshal([]byte(session.Metadata[metaCartItems]), &lines); err != nil {
			return Intent{Kind: IntentUnknown}
		}
		if len(lines) == 0 {
			return Intent{Kind: IntentUnknown}
		}
		for _, line := range lines {
			if line.ListingID == uuid.Nil || line.Quantity <= 0 {
				return Intent{Kind: IntentUnknown}
			}
		}
		return Intent{
			Kind: IntentCart,
			Cart: &CartIntent{
				ExternalUserID:  externalUserID,
				ShippingAddress: session.Metadata[metaShippingAddr],
				Lines:           lines,
			},
		}
	default:
		return Intent{Kind: IntentUnknown}
	}
}
