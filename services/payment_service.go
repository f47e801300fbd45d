package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	appConfig "github.com/kendall-kelly/taller-reparaciones/config"
	"github.com/kendall-kelly/taller-reparaciones/models"
	"github.com/mercadopago/sdk-go/pkg/config"
	"github.com/mercadopago/sdk-go/pkg/preference"
	"go.uber.org/zap"
)

var ErrMissingMercadoPagoAccessToken = errors.New("missing MERCADOPAGO_ACCESS_TOKEN")

// DepositRequest asks for a checkout link covering the deposit of a quote.
type DepositRequest struct {
	QuoteID  uint
	RepairID uint
	Title    string
	Amount   float64
	Currency models.Currency
}

// PaymentGateway creates deposit (seña) checkout links.
type PaymentGateway interface {
	CreateDepositLink(ctx context.Context, req DepositRequest) (string, error)
}

var paymentGatewayInstance PaymentGateway

// GetPaymentGateway returns the configured gateway, nil when payments are off
func GetPaymentGateway() PaymentGateway {
	return paymentGatewayInstance
}

// SetPaymentGateway sets the gateway (primarily for testing)
func SetPaymentGateway(g PaymentGateway) {
	paymentGatewayInstance = g
}

// InitPaymentGateway installs a Mercado Pago gateway when payments are
// enabled and leaves the gateway unset otherwise.
func InitPaymentGateway(cfg *appConfig.Config) (PaymentGateway, error) {
	if !cfg.PaymentsEnabled() {
		paymentGatewayInstance = nil
		return nil, nil
	}
	g, err := NewMercadoPagoGateway(cfg)
	if err != nil {
		return nil, err
	}
	paymentGatewayInstance = g
	return g, nil
}

// MercadoPagoGateway creates checkout preferences through the Mercado Pago SDK.
type MercadoPagoGateway struct {
	client   preference.Client
	mockMode bool
	baseURL  string
}

func NewMercadoPagoGateway(cfg *appConfig.Config) (*MercadoPagoGateway, error) {
	if cfg.PaymentGatewayMock {
		zap.L().Info("payment gateway mock mode enabled")
		return &MercadoPagoGateway{mockMode: true, baseURL: cfg.PublicBaseURL}, nil
	}
	if cfg.MercadoPagoAccessToken == "" {
		return nil, ErrMissingMercadoPagoAccessToken
	}

	mpCfg, err := config.New(cfg.MercadoPagoAccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed creating mercado pago config: %w", err)
	}
	zap.L().Info("mercado pago client initialized")

	return &MercadoPagoGateway{client: preference.NewClient(mpCfg), baseURL: cfg.PublicBaseURL}, nil
}

func (g *MercadoPagoGateway) CreateDepositLink(ctx context.Context, req DepositRequest) (string, error) {
	if req.Amount <= 0 {
		return "", fmt.Errorf("deposit amount must be positive")
	}
	ref := "presupuesto-" + strconv.FormatUint(uint64(req.QuoteID), 10)

	if g.mockMode {
		link := fmt.Sprintf("%s/pagos/mock/%s?monto=%.2f&t=%d", g.baseURL, ref, req.Amount, time.Now().Unix())
		zap.L().Info("mock deposit link created", zap.String("reference", ref), zap.Float64("amount", req.Amount))
		return link, nil
	}

	resp, err := g.client.Create(ctx, preference.Request{
		Items: []preference.ItemRequest{
			{
				ID:          ref,
				Title:       req.Title,
				Description: "Seña de reparación",
				CurrencyID:  string(req.Currency),
				Quantity:    1,
				UnitPrice:   req.Amount,
			},
		},
		ExternalReference: ref,
		BackURLs: &preference.BackURLsRequest{
			Success: g.baseURL + "/",
			Pending: g.baseURL + "/",
			Failure: g.baseURL + "/",
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create checkout preference: %w", err)
	}

	zap.L().Info("deposit preference created", zap.String("reference", ref), zap.String("preference_id", resp.ID))
	return resp.InitPoint, nil
}

// DepositAmount returns percent of amount rounded to cents.
func DepositAmount(amount, percent float64) float64 {
	return math.Round(amount*percent) / 100
}
