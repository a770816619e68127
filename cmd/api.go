package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"example.com/backstage/services/fulfillment/config"
	"example.com/backstage/services/fulfillment/internal/api"
	"example.com/backstage/services/fulfillment/internal/cache"
	"example.com/backstage/services/fulfillment/internal/database"
	"example.com/backstage/services/fulfillment/internal/messaging"
	"example.com/backstage/services/fulfillment/internal/metrics"
	"example.com/backstage/services/fulfillment/internal/repositories"
	"example.com/backstage/services/fulfillment/internal/search"
	"example.com/backstage/services/fulfillment/internal/services"
	"example.com/backstage/services/fulfillment/internal/tracing"

	"gorm.io/gorm"
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long:  `Start the HTTP API server for orders, work orders, deliveries and inventory`,
	RunE:  runAPI,
}

func init() {
	rootCmd.AddCommand(apiCmd)
}

func runAPI(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return err
	}

	// Configure logging
	if cfg.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// Set up signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// Initialize database connections
	db, readOnlyDB, err := database.Connect(cfg.DB)
	if err != nil {
		return err
	}

	// Initialize cache
	redisCache, err := cache.NewRedisCache(cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Redis cache, continuing without caching")
	}

	// Initialize tracer
	tracer, err := tracing.NewTracer(cfg.Tracing)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
		tracer = tracing.Disabled()
	}

	// Initialize Elasticsearch client
	elasticClient, err := search.NewElasticClient(cfg.Elastic)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Elasticsearch client, continuing without search functionality")
	}

	// Initialize metrics
	metricsCollector := metrics.NewMetrics()
	metricsCollector.SetHealth("database", true)
	metricsCollector.SetHealth("cache", redisCache != nil)

	// Initialize Azure Service Bus for outbound events; the API can run
	// without it
	var events services.EventPublisher
	azureBus, err := messaging.NewAzureServiceBus(cfg.Azure, tracer)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Service Bus, continuing without event publishing")
	} else {
		events = azureBus
		defer azureBus.Close()
	}

	// Initialize services
	svcs := buildServices(db, readOnlyDB, redisCache, elasticClient, metricsCollector, tracer, events)

	// Initialize and start the server
	server := api.NewServer(cfg, svcs, metricsCollector, tracer)

	// Start the server in a goroutine
	go func() {
		if err := server.Start(); err != nil {
			log.Error().Err(err).Msg("Server error")
		}
	}()

	// Wait for termination signal
	<-ctx.Done()

	// Shutdown the server
	if err := server.Shutdown(context.Background()); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}

	log.Info().Msg("Shutting down API server")
	return nil
}

// buildServices wires repositories into the service layer. Shared by the API
// and worker commands.
func buildServices(
	db *gorm.DB,
	readOnlyDB *gorm.DB,
	redisCache *cache.RedisCache,
	elasticClient *search.ElasticClient,
	metricsCollector *metrics.Metrics,
	tracer tracing.Tracer,
	events services.EventPublisher,
) api.Services {
	txManager := database.NewTxManager(db)

	materialRepo := repositories.NewRawMaterialRepository(db, readOnlyDB)
	productRepo := repositories.NewProductRepository(db, readOnlyDB)
	orderRepo := repositories.NewOrderRepository(db, readOnlyDB)
	usageRepo := repositories.NewUsageRepository(db, readOnlyDB)
	workOrderRepo := repositories.NewWorkOrderRepository(db, readOnlyDB)
	deliveryRepo := repositories.NewDeliveryOrderRepository(db, readOnlyDB)

	inventoryService := services.NewInventoryService(materialRepo, usageRepo, txManager, metricsCollector, tracer)
	recipeService := services.NewRecipeService(productRepo, redisCache)
	orderService := services.NewOrderService(
		orderRepo, productRepo, materialRepo, usageRepo,
		inventoryService, txManager, elasticClient, metricsCollector, tracer,
	)
	workOrderService := services.NewWorkOrderService(workOrderRepo, orderRepo, metricsCollector)
	deliveryService := services.NewDeliveryService(
		workOrderRepo, deliveryRepo, txManager,
		redisCache, elasticClient, metricsCollector, tracer, events,
	)

	return api.Services{
		Inventory: inventoryService,
		Recipes:   recipeService,
		Orders:    orderService,
		WorkOrder: workOrderService,
		Delivery:  deliveryService,
	}
}
