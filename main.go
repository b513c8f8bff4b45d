package main

import (
	"log"

	"remit/bridge"
	"remit/config"
	bankController "remit/controllers/bank"
	transferController "remit/controllers/transfer"
	walletController "remit/controllers/wallet"
	webhookController "remit/controllers/webhook"
	"remit/database"
	"remit/ledger"
	"remit/middleware"
	"remit/rails"
	"remit/rates"
	authRoutes "remit/routers/authRoutes"
	bankRoutes "remit/routers/bankRoutes"
	transferRoutes "remit/routers/transferRoutes"
	walletRoutes "remit/routers/walletRoutes"
	webhookRoutes "remit/routers/webhookRoutes"
	"remit/settlement"
	"remit/utils"

	authController "remit/controllers/auth"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
)

func main() {
	cfg := config.Load()
	logr := utils.InitLogger()

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Core services
	converter := rates.NewConverter(db, cfg, logr)
	pool := bridge.NewPool(db, converter, cfg, logr)
	if err := pool.Ensure(); err != nil {
		log.Fatalf("Failed to initialize bridge pool: %v", err)
	}
	ledgerSvc := ledger.NewService(db, converter, pool, cfg, logr)

	// External rails
	custody := rails.NewCustodyClient(cfg)
	onramp := rails.NewOnrampClient(cfg)
	orchestrator := settlement.NewOrchestrator(custody, onramp, ledgerSvc, cfg, logr)

	app := fiber.New()

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,PATCH,DELETE",
		AllowHeaders: "Content-Type,Authorization,X-Webhook-Signature",
	}))

	// Enable the built-in logger middleware to log all requests
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${ip} ${method} ${path} ${status} ${latency}\n",
	}))

	jwt := middleware.JWT(cfg.JWTKey)

	authRoutes.SetupAuthRoutes(app, authController.New(db, cfg))
	walletRoutes.SetupWalletRoutes(app, jwt, walletController.New(db, ledgerSvc))
	transferRoutes.SetupTransferRoutes(app, jwt, transferController.New(db, ledgerSvc, orchestrator, pool))
	bankRoutes.SetupBankRoutes(app, jwt, bankController.New(db, ledgerSvc, orchestrator))
	webhookRoutes.SetupWebhookRoutes(app, webhookController.New(db, ledgerSvc, cfg, logr))

	// Background reconciliation against the custody rail
	reconciler := settlement.NewReconciler(custody, ledgerSvc, pool, cfg, logr)
	reconciler.Start()
	defer reconciler.Stop()

	logr.Infof("Server is running on port %s", cfg.Port)
	log.Fatal(app.Listen(":" + cfg.Port))
}
