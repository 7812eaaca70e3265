package bootstrap

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"ems-analytics-be/internal/config"
	"ems-analytics-be/internal/controller"
	"ems-analytics-be/internal/pkg/logger"
	"ems-analytics-be/internal/repository/cache"
	"ems-analytics-be/internal/repository/contract"
	"ems-analytics-be/internal/repository/implementation"
	"ems-analytics-be/internal/repository/memory"
	"ems-analytics-be/internal/service"
	"ems-analytics-be/pkg/events"
	"ems-analytics-be/pkg/refine"
	"ems-analytics-be/pkg/refine/catalog"
	"ems-analytics-be/pkg/refine/scope"

	pktNats "ems-analytics-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const queryResultTopic = "query.results"

type Container struct {
	// Controllers
	ChatController   controller.IChatController
	ReviewController controller.IReviewController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService

	Logger logger.ILogger
}

// repoCatalog adapts the repository layer to the catalog port the
// refinement engine resolves entity names against.
type repoCatalog struct {
	repo contract.CatalogRepository
}

func (c *repoCatalog) Lookup(ctx context.Context, entityType scope.EntityType) ([]string, error) {
	return c.repo.ListNames(ctx, entityType)
}

func (c *repoCatalog) WarehousesIn(ctx context.Context, city string) ([]string, error) {
	return c.repo.ListWarehousesInCity(ctx, city)
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// Redis
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
		rdb = nil
	}

	// 2. Catalog (DB-backed, Redis-cached, single retry on failure)
	catalogRepo := implementation.NewCatalogRepository(db)
	cachedRepo := cache.NewCachedCatalogRepository(
		catalogRepo,
		rdb,
		time.Duration(cfg.Catalog.CacheTTLSeconds)*time.Second,
		sysLogger,
	)
	cat := catalog.NewRetrying(&repoCatalog{repo: cachedRepo})

	// Initialize In-Memory Session Storage
	sessionRepo := memory.NewSessionRepository()

	// 2.5 Infrastructure
	// NATS
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		natsPub = nil
	}
	natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
		natsSub = nil
	}

	// Watermill in-process queue
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermill.NewStdLogger(false, false),
	)

	// 3. Services
	refiner := refine.NewRefiner(cat, sysLogger)

	publisherService := service.NewPublisherService(queryResultTopic, pubSub)
	chatService := service.NewChatService(sessionRepo, refiner, publisherService, natsPub)
	consumerService := service.NewConsumerService(pubSub, queryResultTopic, chatService)

	// Bridge NATS query-execution events onto the in-process queue so
	// both ingress paths (HTTP and bus) take the same consumer path.
	if natsSub != nil {
		err := natsSub.Subscribe("events.query.executed", "refiner-query-results", func(ctx context.Context, evt events.Event) error {
			payload, err := json.Marshal(evt.Payload())
			if err != nil {
				return err
			}
			return publisherService.Publish(ctx, payload)
		})
		if err != nil {
			log.Printf("[WARN] Failed to subscribe to query execution events: %v", err)
		}
	}

	// 4. Controllers
	return &Container{
		ChatController:   controller.NewChatController(chatService),
		ReviewController: controller.NewReviewController(sysLogger),
		ConsumerService:  consumerService,
		Logger:           sysLogger,
	}
}
