package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/zerno-shop/api/internal/notifications"
	"github.com/zerno-shop/api/internal/payments"
	"github.com/zerno-shop/api/internal/platform/auth"
	"github.com/zerno-shop/api/internal/platform/config"
	"github.com/zerno-shop/api/internal/platform/requestctx"
	"github.com/zerno-shop/api/internal/repositories"
	"github.com/zerno-shop/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Users    services.UserService
	Orders   services.OrderService
	Payments services.PaymentService
}

// Container wires repositories, services, and platform infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
	Verifier     auth.TokenVerifier
}

// NewContainer constructs the runtime dependencies. Production wiring provides the CMS-backed
// registry, while tests can supply in-memory implementations.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, logger *zap.Logger) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}
	if logger == nil {
		logger = requestctx.NoopLogger()
	}

	verifier, err := auth.NewHMACVerifier(cfg.Security.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("build token verifier: %w", err)
	}

	svc, err := buildServices(cfg, reg, logger)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
		Verifier:     verifier,
	}, nil
}

// Close releases resources such as repository clients.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(cfg config.Config, reg repositories.Registry, logger *zap.Logger) (Services, error) {
	var svc Services

	events := eventLogger(logger)

	signer, err := payments.NewSigner(cfg.Merchant.Secret)
	if err != nil {
		return Services{}, fmt.Errorf("build signer: %w", err)
	}

	gateway, err := payments.NewWayForPayClient(payments.WayForPayConfig{
		MerchantAccount: cfg.Merchant.Account,
		MerchantDomain:  cfg.Merchant.Domain,
		Signer:          signer,
		Language:        cfg.Merchant.Language,
		PayURL:          cfg.Merchant.PayURL,
		APIURL:          cfg.Merchant.StatusURL,
		Timeout:         cfg.Merchant.Timeout,
		RetryDelay:      cfg.Merchant.StatusRetryDelay,
		Logger:          payments.WayForPayLogger(events),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build payment gateway: %w", err)
	}

	mailer, err := notifications.NewHTTPMailer(notifications.HTTPMailerConfig{
		Endpoint: cfg.Mail.Endpoint,
		Token:    cfg.Mail.Token,
		Sender:   cfg.Mail.Sender,
		Timeout:  cfg.Mail.Timeout,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build mailer: %w", err)
	}

	notifier, err := notifications.NewNotifier(notifications.NotifierDeps{
		Mailer: mailer,
		Logger: events,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build notifier: %w", err)
	}

	userSvc, err := services.NewUserService(services.UserServiceDeps{
		Users:  reg.Users(),
		Logger: events,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build user service: %w", err)
	}
	svc.Users = userSvc

	orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
		Users:     reg.Users(),
		Orders:    reg.Orders(),
		Catalog:   reg.Catalog(),
		Gateway:   gateway,
		Notifier:  notifier,
		Clock:     time.Now,
		Logger:    events,
		Currency:  cfg.Merchant.Currency,
		ReturnURL: cfg.Merchant.ReturnURL,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}
	svc.Orders = orderSvc

	paymentSvc, err := services.NewPaymentService(services.PaymentServiceDeps{
		Users:    reg.Users(),
		Orders:   reg.Orders(),
		Gateway:  gateway,
		Notifier: notifier,
		Logger:   events,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build payment service: %w", err)
	}
	svc.Payments = paymentSvc

	return svc, nil
}

// eventLogger adapts the request-scoped zap logger to the event callback the
// services accept, falling back to the process logger outside request scope.
func eventLogger(base *zap.Logger) func(ctx context.Context, event string, fields map[string]any) {
	return func(ctx context.Context, event string, fields map[string]any) {
		logger := requestctx.Logger(ctx)
		if logger == requestctx.NoopLogger() && base != nil {
			logger = base
		}
		zapFields := make([]zap.Field, 0, len(fields))
		for key, value := range fields {
			zapFields = append(zapFields, zap.Any(key, value))
		}
		logger.Info(event, zapFields...)
	}
}
