package checkout

import (
	"context"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"

	apperrors "github.com/angelmondragon/openshelf-backend/pkg/errors"
	pkgstripe "github.com/angelmondragon/openshelf-backend/pkg/stripe"
)

// SessionRequest carries everything the gateway needs to open a checkout session.
type SessionRequest struct {
	ProductName string
	AmountCents int64
	Reference   string
}

// Session is the gateway-neutral view of a created checkout session.
type Session struct {
	ID     string
	URL    string
	Status string
	Paid   bool
}

// Gateway abstracts the payment provider so services and tests can swap it out.
type Gateway interface {
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
	RetrieveSession(ctx context.Context, sessionID string) (*Session, error)
}

type stripeGateway struct {
	api        *stripe.Client
	successURL string
	cancelURL  string
}

// NewStripeGateway builds a Gateway backed by Stripe Checkout. All provider
// calls go through the injected client; no package-global credentials.
func NewStripeGateway(client *pkgstripe.Client) (Gateway, error) {
	if client == nil || client.API() == nil {
		return nil, fmt.Errorf("stripe client is required")
	}
	if client.SuccessURL() == "" || client.CancelURL() == "" {
		return nil, fmt.Errorf("stripe success and cancel urls are required")
	}
	return &stripeGateway{
		api:        client.API(),
		successURL: client.SuccessURL(),
		cancelURL:  client.CancelURL(),
	}, nil
}

func (g *stripeGateway) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	if strings.TrimSpace(req.ProductName) == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "checkout product name is required")
	}
	if req.AmountCents <= 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "checkout amount must be positive")
	}

	params := &stripe.CheckoutSessionCreateParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		SuccessURL:         stripe.String(g.successURL),
		CancelURL:          stripe.String(g.cancelURL),
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionCreateLineItemPriceDataParams{
					Currency:   stripe.String(string(stripe.CurrencyUSD)),
					UnitAmount: stripe.Int64(req.AmountCents),
					ProductData: &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
						Name: stripe.String(req.ProductName),
					},
				},
			},
		},
	}
	if req.Reference != "" {
		params.ClientReferenceID = stripe.String(req.Reference)
	}

	created, err := g.api.V1CheckoutSessions.Create(ctx, params)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDependency, err, "creating checkout session")
	}
	return fromStripeSession(created), nil
}

func (g *stripeGateway) RetrieveSession(ctx context.Context, sessionID string) (*Session, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "session id is required")
	}

	found, err := g.api.V1CheckoutSessions.Retrieve(ctx, sessionID, &stripe.CheckoutSessionRetrieveParams{})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDependency, err, "retrieving checkout session")
	}
	return fromStripeSession(found), nil
}

func fromStripeSession(s *stripe.CheckoutSession) *Session {
	if s == nil {
		return nil
	}
	return &Session{
		ID:     s.ID,
		URL:    s.URL,
		Status: string(s.Status),
		Paid:   s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
	}
}
