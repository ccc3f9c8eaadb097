package server

import (
	"context"
	"math/big"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/spigotlabs/spigot-api/internal/config"
	"github.com/spigotlabs/spigot-api/internal/engine"
	"github.com/spigotlabs/spigot-api/internal/handlers"
	"github.com/spigotlabs/spigot-api/internal/ledger"
	"github.com/spigotlabs/spigot-api/internal/logger"
	"github.com/spigotlabs/spigot-api/internal/store"
)

// Handler Definitions
var (
	claimHandler   *handlers.ClaimHandler
	fundingHandler *handlers.FundingHandler
	poolHandler    *handlers.PoolHandler
	adminHandler   *handlers.AdminHandler

	eng       *engine.Engine
	memEvents *store.MemoryEvents
	pgPool    *pgxpool.Pool
)

// InitializeHandlers builds the ledger, stores, engine, and handlers from
// the runtime configuration.
func InitializeHandlers(cfg *config.Config) {
	led := buildLedger(cfg)
	eligibility, sink := buildStores(cfg)

	policy := engine.Policy{
		Mode:       engine.PolicyMode(cfg.PolicyMode),
		MinPercent: cfg.MinPercent,
		MaxPercent: cfg.MaxPercent,
		Cooldown:   cfg.Cooldown,
	}

	var err error
	eng, err = engine.New(engine.Config{
		Owner:       cfg.OwnerAddress,
		Agent:       cfg.AgentAddress,
		PoolAddress: cfg.PoolAddress,
		Policy:      policy,
		Ledger:      led,
		Eligibility: eligibility,
		Events:      sink,
	})
	if err != nil {
		logger.Fatal("Unable to build engine", zap.Error(err))
	}

	common := handlers.NewCommonServices(eng, memEvents)
	claimHandler = handlers.NewClaimHandler(common)
	fundingHandler = handlers.NewFundingHandler(common)
	poolHandler = handlers.NewPoolHandler(common)
	adminHandler = handlers.NewAdminHandler(common)
}

func buildLedger(cfg *config.Config) ledger.Ledger {
	if cfg.EthRPCURL == "" {
		mem := ledger.NewMemory(cfg.PoolAddress)
		if cfg.SeedPoolAmount != "" {
			seed, ok := new(big.Int).SetString(cfg.SeedPoolAmount, 10)
			if !ok {
				logger.Fatal("SEED_POOL_AMOUNT is not a valid integer",
					zap.String("value", cfg.SeedPoolAmount))
			}
			mem.SetBalance(cfg.PoolAddress, seed)
		}
		logger.Info("Using in-memory ledger", zap.String("pool", cfg.PoolAddress))
		return mem
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.EthPrivateKey, "0x"))
	if err != nil {
		logger.Fatal("Unable to parse ETH_PRIVATE_KEY", zap.Error(err))
	}
	opts, err := bind.NewKeyedTransactorWithChainID(key, big.NewInt(cfg.EthChainID))
	if err != nil {
		logger.Fatal("Unable to build transactor", zap.Error(err))
	}
	erc20, err := ledger.NewERC20(cfg.EthRPCURL, cfg.TokenAddress, opts)
	if err != nil {
		logger.Fatal("Unable to connect to token ledger", zap.Error(err))
	}
	logger.Info("Using ERC-20 ledger",
		zap.String("token", cfg.TokenAddress),
		zap.Int64("chain_id", cfg.EthChainID),
	)
	return erc20
}

func buildStores(cfg *config.Config) (engine.EligibilityStore, engine.EventSink) {
	memEvents = store.NewMemoryEvents(cfg.EventLogEntries)

	if cfg.DatabaseURL == "" {
		logger.Info("Using in-memory stores")
		return store.NewMemoryEligibility(), memEvents
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Unable to parse database connection string", zap.Error(err))
	}

	// Configure the connection pool
	poolConfig.MaxConns = 20
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = time.Minute * 30

	pgPool, err = pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		logger.Fatal("Unable to create connection pool", zap.Error(err))
	}
	if err := store.Migrate(context.Background(), pgPool); err != nil {
		logger.Fatal("Unable to apply schema", zap.Error(err))
	}

	logger.Info("Using postgres stores")
	return store.NewPostgresEligibility(pgPool),
		store.FanoutEvents{memEvents, store.NewPostgresEvents(pgPool)}
}

// InitializeRoutes registers every route on the router.
func InitializeRoutes(router *gin.Engine) {
	router.Use(configureCORS())

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Public observability
		v1.GET("/pool", poolHandler.GetPool)
		v1.GET("/pool/cooldown/:address", poolHandler.GetCooldown)
		v1.GET("/events", poolHandler.ListEvents)

		// Identity-bearing routes; role checks live in the engine
		identified := v1.Group("/")
		identified.Use(handlers.IdentityRequired())
		{
			identified.POST("/claims", claimHandler.CreateClaim)
			identified.POST("/claims/for", claimHandler.CreateClaimFor)
			identified.POST("/deposits", fundingHandler.CreateDeposit)

			admin := identified.Group("/admin")
			{
				admin.PUT("/policy/bounds", adminHandler.UpdateBounds)
				admin.PUT("/policy/cooldown", adminHandler.UpdateCooldown)
				admin.PUT("/roles/agent", adminHandler.UpdateAgent)
				admin.POST("/roles/owner/transfer", adminHandler.TransferOwnership)
				admin.POST("/withdrawals/emergency", fundingHandler.EmergencyWithdraw)
			}
		}
	}
}

// Close releases server-held resources.
func Close() {
	if pgPool != nil {
		pgPool.Close()
	}
}

func configureCORS() gin.HandlerFunc {
	corsConfig := cors.DefaultConfig()

	// Get allowed origins from environment variable
	originsEnv := os.Getenv("CORS_ALLOWED_ORIGINS")
	if originsEnv == "" {
		// Default to localhost if not set
		corsConfig.AllowOrigins = []string{"http://localhost:3000"}
	} else {
		// Split and trim the origins
		origins := strings.Split(originsEnv, ",")
		for i, origin := range origins {
			origins[i] = strings.TrimSpace(origin)
		}
		corsConfig.AllowOrigins = origins
	}

	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", handlers.IdentityHeader}

	return cors.New(corsConfig)
}
