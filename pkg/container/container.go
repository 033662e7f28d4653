package container

import (
	"context"
	"fmt"
	"log"
	"time"

	"identity-registry/internal/config"
	infraCache "identity-registry/internal/infrastructure/cache"
	"identity-registry/internal/infrastructure/database"
	"identity-registry/internal/infrastructure/queue"
	"identity-registry/internal/shared/utils"
	"identity-registry/pkg/cache"
	"identity-registry/pkg/jwt"

	"identity-registry/internal/domains/admin"
	adminHandler "identity-registry/internal/domains/admin/handler"
	adminService "identity-registry/internal/domains/admin/service"
	"identity-registry/internal/domains/issuance"
	issuanceHandler "identity-registry/internal/domains/issuance/handler"
	issuanceRepo "identity-registry/internal/domains/issuance/repository"
	issuanceService "identity-registry/internal/domains/issuance/service"
	"identity-registry/internal/domains/registry"
	registryHandler "identity-registry/internal/domains/registry/handler"
	registryRepo "identity-registry/internal/domains/registry/repository"
	registryService "identity-registry/internal/domains/registry/service"
)

// schemaEnsurer is satisfied by the Postgres repositories; the container
// type-asserts to it so schema creation stays out of the interfaces.
type schemaEnsurer interface {
	EnsureSchema(ctx context.Context) error
}

// ========================================
// CONTAINER STRUCT
// ========================================

// Container holds every dependency of the application and is the root of
// the dependency graph. Everything in it is a singleton.
type Container struct {
	// Infrastructure layer - shared across all domains
	Config      *config.Config
	DB          *database.PostgresDB
	Cache       cache.Cache
	QueueClient *queue.Client
	JWTManager  *jwt.Manager

	// Repository layer
	RegistryRepo registry.Repository
	IssuanceRepo issuance.Repository

	// Service layer
	RegistryService registry.Service
	IssuanceService issuance.Service
	AdminService    admin.Service

	// Handler layer
	RegistryHandler *registryHandler.RegistryHandler
	IssuanceHandler *issuanceHandler.IssuanceHandler
	AdminHandler    *adminHandler.AdminHandler
}

// ========================================
// CONSTRUCTOR: BUILD CONTAINER
// ========================================

// NewContainer initializes the whole dependency graph in order:
// config, infrastructure, repositories, services, handlers. Wrong order
// means nil dereferences, so the steps are explicit.
func NewContainer() (*Container, error) {
	log.Println("🔧 Initializing DI Container...")

	c := &Container{}

	// ========================================
	// STEP 1: LOAD CONFIGURATION
	// ========================================
	log.Println("📋 Loading configuration...")

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	c.Config = cfg
	log.Printf("✅ Config loaded (Environment: %s)", cfg.App.Environment)

	// ========================================
	// STEP 2: INITIALIZE DATABASE
	// ========================================
	log.Println("🗄️  Connecting to PostgreSQL...")

	dbConfig, err := config.LoadDatabaseConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load database config: %w", err)
	}

	db := database.NewPostgresDB(dbConfig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.HealthCheck(context.Background()); err != nil {
		return nil, fmt.Errorf("database health check failed: %w", err)
	}

	c.DB = db
	log.Println("✅ Database connected")

	// ========================================
	// STEP 3: INITIALIZE CACHE
	// ========================================
	log.Println("🔴 Connecting to Redis...")

	redisCache := infraCache.NewRedisCache(
		cfg.Redis.Host,
		cfg.Redis.Password,
		cfg.Redis.DB,
	)

	// Type assertion to reach Connect, which is not on the interface.
	if rc, ok := redisCache.(*infraCache.RedisCache); ok {
		if err := rc.Connect(context.Background()); err != nil {
			// Redis failure is non-critical; lookups fall through to Postgres.
			log.Printf("⚠️  Redis connection failed (non-critical): %v", err)
		} else {
			log.Println("✅ Redis connected")
		}
	}

	c.Cache = redisCache

	// ========================================
	// STEP 4: INITIALIZE QUEUE CLIENT
	// ========================================
	log.Println("📮 Initializing queue client...")

	c.QueueClient = queue.NewClient(cfg.Redis.Host, cfg.Redis.Password, cfg.Redis.DB)
	log.Println("✅ Queue client initialized")

	c.JWTManager = jwt.NewManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpiry)

	// ========================================
	// STEP 5: INITIALIZE REPOSITORIES
	// ========================================
	log.Println("📦 Initializing repositories...")

	if err := c.initRepositories(); err != nil {
		return nil, fmt.Errorf("failed to init repositories: %w", err)
	}
	log.Println("✅ Repositories initialized")

	// ========================================
	// STEP 6: INITIALIZE SERVICES
	// ========================================
	log.Println("⚙️  Initializing services...")

	if err := c.initServices(); err != nil {
		return nil, fmt.Errorf("failed to init services: %w", err)
	}
	log.Println("✅ Services initialized")

	// ========================================
	// STEP 7: INITIALIZE HANDLERS
	// ========================================
	log.Println("🎯 Initializing handlers...")

	if err := c.initHandlers(); err != nil {
		return nil, fmt.Errorf("failed to init handlers: %w", err)
	}
	log.Println("✅ Handlers initialized")

	log.Println("🎉 DI Container initialized successfully")
	return c, nil
}

// ========================================
// PRIVATE INITIALIZATION METHODS
// ========================================

// initRepositories wires the Postgres repositories, creates their schemas
// and seeds the singleton settings rows from config. Seeding only applies
// on first boot; after that the database copy is authoritative.
func (c *Container) initRepositories() error {
	pool := c.DB.Pool
	ctx := context.Background()

	c.RegistryRepo = registryRepo.NewPostgresRepository(pool, c.Cache)
	c.IssuanceRepo = issuanceRepo.NewPostgresRepository(pool)

	for _, repo := range []interface{}{c.RegistryRepo, c.IssuanceRepo} {
		if ensurer, ok := repo.(schemaEnsurer); ok {
			if err := ensurer.EnsureSchema(ctx); err != nil {
				return err
			}
		}
	}

	if err := c.RegistryRepo.EnsureSettings(ctx, registry.Settings{
		Controller:           c.Config.Controller.CallerID,
		RegistrationDuration: time.Duration(c.Config.Registry.DurationDays) * 24 * time.Hour,
		ExpiryEnforcement:    c.Config.Registry.ExpiryEnforcement,
		MetadataBase:         c.Config.Registry.MetadataBase,
		UpdatedAt:            time.Now(),
	}); err != nil {
		return fmt.Errorf("seed registry settings: %w", err)
	}

	mintFee, err := utils.ParseDecimal(c.Config.Controller.MintFee)
	if err != nil {
		return fmt.Errorf("invalid CONTROLLER_MINT_FEE: %w", err)
	}
	renewalFee, err := utils.ParseDecimal(c.Config.Controller.RenewalFeePerYear)
	if err != nil {
		return fmt.Errorf("invalid CONTROLLER_RENEWAL_FEE_PER_YEAR: %w", err)
	}

	if err := c.IssuanceRepo.EnsureState(ctx, issuance.ControllerState{
		Signer:            c.Config.Controller.SignerPublicKey,
		MintFee:           mintFee,
		RenewalFeePerYear: renewalFee,
		UpdatedAt:         time.Now(),
	}); err != nil {
		return fmt.Errorf("seed controller state: %w", err)
	}

	return nil
}

func (c *Container) initServices() error {
	c.RegistryService = registryService.NewRegistryService(
		c.RegistryRepo,
		c.QueueClient,
	)

	c.IssuanceService = issuanceService.NewIssuanceService(
		c.IssuanceRepo,
		c.RegistryService,
		c.QueueClient,
		registry.Caller(c.Config.Controller.CallerID),
		c.Config.Controller.ChainID,
	)

	c.AdminService = adminService.NewAdminService(
		c.Config.Owner.Email,
		c.Config.Owner.PasswordHash,
		c.JWTManager,
	)

	return nil
}

func (c *Container) initHandlers() error {
	c.RegistryHandler = registryHandler.NewRegistryHandler(c.RegistryService)
	c.IssuanceHandler = issuanceHandler.NewIssuanceHandler(c.IssuanceService)
	c.AdminHandler = adminHandler.NewAdminHandler(c.AdminService)
	return nil
}

// ========================================
// HELPER METHODS
// ========================================

// Cleanup releases container resources; called during graceful shutdown.
func (c *Container) Cleanup() {
	log.Println("🧹 Cleaning up container resources...")

	if c.QueueClient != nil {
		if err := c.QueueClient.Close(); err != nil {
			log.Printf("⚠️  Failed to close queue client: %v", err)
		} else {
			log.Println("✅ Queue client closed")
		}
	}

	if c.DB != nil && c.DB.Pool != nil {
		c.DB.Pool.Close()
		log.Println("✅ Database connections closed")
	}

	if c.Cache != nil {
		if rc, ok := c.Cache.(*infraCache.RedisCache); ok {
			if err := rc.Close(); err != nil {
				log.Printf("⚠️  Failed to close Redis: %v", err)
			} else {
				log.Println("✅ Redis connections closed")
			}
		}
	}

	log.Println("✅ Container cleanup completed")
}
