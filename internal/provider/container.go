package provider

import (
	"github.com/csform-next/internal/cache"
	"github.com/csform-next/internal/config"
	"github.com/csform-next/internal/gateway/mmio"
	"github.com/csform-next/internal/logger"
	"github.com/csform-next/internal/models"
	"github.com/csform-next/internal/queue"
	"github.com/csform-next/internal/repository"
	"github.com/csform-next/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client
	Gateway     *mmio.Client

	// Repositories
	DraftRepo   repository.FormDraftRepository
	VerdictRepo repository.ContactVerdictRepository

	// Services
	PromoService       *service.PromoService
	PricingService     *service.PricingService
	UpsellService      *service.UpsellService
	ContactService     *service.ContactService
	OTPService         *service.OTPService
	AttributionService *service.AttributionService
	SubmissionService  *service.SubmissionService
	SessionService     *service.SessionService
	LocationService    *service.LocationService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	gateway, err := mmio.NewClient(mmio.Config{
		APIHost:            cfg.API.Host,
		ConversionEndpoint: cfg.API.ConversionEndpoint,
		ValidationHost:     cfg.API.ValidationHost,
		TimeoutSeconds:     cfg.API.TimeoutSeconds,
	})
	if err != nil {
		logger.Errorw("provider_init_gateway_failed", "error", err)
		panic(err)
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
		Gateway:     gateway,
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.DraftRepo = repository.NewFormDraftRepository(db)
	c.VerdictRepo = repository.NewContactVerdictRepository(db)
}

func (c *Container) initServices() {
	c.PromoService = service.NewPromoService(c.Config.Promos, nil)
	c.PricingService = service.NewPricingService(c.Config.Catalog, c.PromoService)

	upsellService, err := service.NewUpsellService(c.Config.Upsells)
	if err != nil {
		logger.Errorw("provider_init_upsell_failed", "error", err)
		panic(err)
	}
	c.UpsellService = upsellService

	c.ContactService = service.NewContactService(c.Gateway, c.VerdictRepo, c.Config.Checkout.ValidationCacheTTLHours, nil)
	c.OTPService = service.NewOTPService(c.Gateway, c.Config.Site, c.Config.Checkout.OTP, nil)
	c.AttributionService = service.NewAttributionService(nil)
	c.SubmissionService = service.NewSubmissionService(
		c.PricingService,
		c.UpsellService,
		c.ContactService,
		c.AttributionService,
		c.Gateway,
		c.DraftRepo,
		c.QueueClient,
		c.Config.Site,
		c.Config.Checkout,
	)
	c.SessionService = service.NewSessionService(c.DraftRepo, c.Config.Checkout)
	c.LocationService = service.NewLocationService(c.Config.Search)
}
