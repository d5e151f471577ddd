// Package payments wraps the Mercado Pago SDK behind the deposit gateway
// used by the booking flow.
package payments

import (
	"context"
	"fmt"
	"strconv"
	"time"

	appservice "tireshop_backend/internal/appointments/service"
	appconfig "tireshop_backend/platform/config"
	"tireshop_backend/platform/logger"

	mpconfig "github.com/mercadopago/sdk-go/pkg/config"
	"github.com/mercadopago/sdk-go/pkg/payment"
)

// Gateway creates deposit payments through Mercado Pago. In mock mode every
// charge is approved locally without touching the provider, which keeps
// local development and tests offline.
type Gateway struct {
	client   payment.Client
	log      *logger.Logger
	mockMode bool
}

// New builds the gateway from configuration. Returns an error when the
// access token is missing outside mock mode.
func New(cfg appconfig.PaymentConfig, log *logger.Logger) (*Gateway, error) {
	if cfg.IsPaymentMockEnabled() {
		log.Info("payment gateway running in mock mode")
		return &Gateway{log: log, mockMode: true}, nil
	}

	token := cfg.GetMercadoPagoAccessToken()
	if token == "" {
		return nil, fmt.Errorf("MERCADOPAGO_ACCESS_TOKEN is required when payments are enabled")
	}

	sdkCfg, err := mpconfig.New(token)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize payment sdk: %w", err)
	}

	return &Gateway{client: payment.NewClient(sdkCfg), log: log}, nil
}

// Charge creates a payment for the requested deposit.
func (g *Gateway) Charge(ctx context.Context, req appservice.PaymentCharge) (*appservice.PaymentOutcome, error) {
	if g.mockMode {
		id := strconv.FormatInt(time.Now().UTC().UnixNano(), 10)
		g.log.Info("mock payment approved", "provider_payment_id", id, "amount_cents", req.AmountCents)
		return &appservice.PaymentOutcome{ProviderPaymentID: id, Status: "approved"}, nil
	}

	resp, err := g.client.Create(ctx, payment.Request{
		TransactionAmount: float64(req.AmountCents) / 100,
		Description:       req.Description,
		PaymentMethodID:   req.Method,
		ExternalReference: req.Reference,
		Payer: &payment.PayerRequest{
			Email: req.PayerEmail,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("payment create failed: %w", err)
	}

	g.log.Info("payment created",
		"provider_payment_id", resp.ID,
		"provider_status", resp.Status,
		"reference", req.Reference)

	return &appservice.PaymentOutcome{
		ProviderPaymentID: fmt.Sprintf("%d", resp.ID),
		Status:            resp.Status,
	}, nil
}

// Compile-time check that Gateway satisfies the booking flow's interface.
var _ appservice.PaymentGateway = (*Gateway)(nil)
