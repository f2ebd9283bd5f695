package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/adraryacine/adel-computer-sub000/internal/domain"
	"github.com/adraryacine/adel-computer-sub000/internal/platform/config"
	"github.com/adraryacine/adel-computer-sub000/internal/repositories"
	"github.com/adraryacine/adel-computer-sub000/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Cart       services.CartService
	Checkout   services.CheckoutService
	Orders     services.OrderService
	Promotions services.PromotionService
	Catalog    services.CatalogService
	OTP        services.OTPService
	System     services.SystemService
}

// Deps carries collaborators the registry cannot provide itself.
type Deps struct {
	Notifications services.NotificationPublisher
	Logger        func(ctx context.Context, event string, fields map[string]any)
	Build         services.BuildInfo
}

// Container wires repositories, services, and background infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// NewContainer constructs the runtime dependencies. Production wiring provides real
// implementations, while tests can supply in-memory registries.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, deps Deps) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}

	svc, err := buildServices(ctx, reg, cfg, deps)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
	}, nil
}

// Close releases resources such as repository clients, background workers, or caches.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(ctx context.Context, reg repositories.Registry, cfg config.Config, deps Deps) (Services, error) {
	var svc Services
	if reg == nil {
		return svc, nil
	}

	var promotionsRepo repositories.PromotionRepository
	if cfg.Features.EnablePromotions {
		promotionsRepo = reg.Promotions()
	}

	if promotionsRepo != nil {
		promotionSvc, err := services.NewPromotionService(services.PromotionServiceDeps{
			Promotions: promotionsRepo,
			Clock:      time.Now,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build promotion service: %w", err)
		}
		svc.Promotions = promotionSvc
	}

	if productsRepo := reg.Products(); productsRepo != nil {
		catalogSvc, err := services.NewCatalogService(services.CatalogServiceDeps{
			Products:   productsRepo,
			Categories: reg.Categories(),
			Promotions: promotionsRepo,
			Clock:      time.Now,
			Logger:     deps.Logger,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build catalog service: %w", err)
		}
		svc.Catalog = catalogSvc

		cartSvc, err := services.NewCartService(services.CartServiceDeps{
			Repository: reg.Carts(),
			Products:   productsRepo,
			Clock:      time.Now,
			Logger:     deps.Logger,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build cart service: %w", err)
		}
		svc.Cart = cartSvc
	}

	if healthRepo := reg.Health(); healthRepo != nil {
		systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
			HealthRepository: healthRepo,
			Clock:            time.Now,
			Build:            deps.Build,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build system service: %w", err)
		}
		svc.System = systemSvc
	}

	if ordersRepo := reg.Orders(); ordersRepo != nil {
		orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
			Orders:     ordersRepo,
			Counters:   reg.Counters(),
			UnitOfWork: reg,
			Clock:      time.Now,
			Logger:     deps.Logger,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build order service: %w", err)
		}
		svc.Orders = orderSvc
	}

	if otpRepo := reg.OTPChallenges(); otpRepo != nil && deps.Notifications != nil {
		otpSvc, err := services.NewOTPService(services.OTPServiceDeps{
			Repository:  otpRepo,
			Publisher:   deps.Notifications,
			Clock:       time.Now,
			TTL:         cfg.Checkout.OTPCodeTTL,
			MaxAttempts: cfg.Checkout.OTPMaxAttempts,
			Pepper:      cfg.Checkout.OTPPepper,
			Logger:      deps.Logger,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build otp service: %w", err)
		}
		svc.OTP = otpSvc
	}

	if svc.Cart != nil && svc.Orders != nil && svc.OTP != nil {
		checkoutSvc, err := services.NewCheckoutService(services.CheckoutServiceDeps{
			Carts:         svc.Cart,
			Orders:        svc.Orders,
			OTP:           svc.OTP,
			Promotions:    svc.Promotions,
			Notifications: deps.Notifications,
			DeliveryFees:  domain.NewDeliveryFeeTable(cfg.Delivery.MajorWilayaFee, cfg.Delivery.StandardWilayaFee),
			Clock:         time.Now,
			Logger:        deps.Logger,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build checkout service: %w", err)
		}
		svc.Checkout = checkoutSvc
	}

	return svc, nil
}
