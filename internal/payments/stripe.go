package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"
)

// StripeGateway implements checkout-session creation and webhook
// verification against the real Stripe API.
type StripeGateway struct {
	api           *client.API
	webhookSecret string
}

func NewStripeGateway(secretKey, webhookSecret string) *StripeGateway {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeGateway{api: api, webhookSecret: webhookSecret}
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, args SessionArgs) (*Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(string(stripe.CurrencyJPY)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(args.ProductName),
						Description: stripe.String(args.Description),
					},
					UnitAmount: stripe.Int64(args.AmountJPY),
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(args.SuccessURL),
		CancelURL:  stripe.String(args.CancelURL),
	}
	params.Context = ctx
	params.AddMetadata("purchase_id", args.PurchaseID.String())
	params.AddMetadata("user_id", args.AccountID.String())
	params.AddMetadata("coin_amount", strconv.FormatInt(args.CoinAmount, 10))

	sess, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return &Session{ID: sess.ID, URL: sess.URL}, nil
}

// VerifyEvent checks the signature and parses a checkout.session.completed
// event into its typed form. It returns (nil, nil) for verified events of
// other types, which the caller simply acknowledges.
func (g *StripeGateway) VerifyEvent(payload []byte, sigHeader string) (*CheckoutCompleted, error) {
	event, err := webhook.ConstructEvent(payload, sigHeader, g.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if event.Type != "checkout.session.completed" {
		return nil, nil
	}
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return parseMetadata(sess.Metadata)
}

func parseMetadata(meta map[string]string) (*CheckoutCompleted, error) {
	purchaseID, err := uuid.Parse(meta["purchase_id"])
	if err != nil {
		return nil, fmt.Errorf("%w: bad purchase_id %q", ErrMalformedEvent, meta["purchase_id"])
	}
	accountID, err := uuid.Parse(meta["user_id"])
	if err != nil {
		return nil, fmt.Errorf("%w: bad user_id %q", ErrMalformedEvent, meta["user_id"])
	}
	coins, err := strconv.ParseInt(meta["coin_amount"], 10, 64)
	if err != nil || coins <= 0 {
		return nil, fmt.Errorf("%w: bad coin_amount %q", ErrMalformedEvent, meta["coin_amount"])
	}
	return &CheckoutCompleted{PurchaseID: purchaseID, AccountID: accountID, CoinAmount: coins}, nil
}
