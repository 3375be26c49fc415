package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	fsession "github.com/gofiber/fiber/v2/middleware/session"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/handlers"
	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/internal/services"
	"storefront/pkg/gateway"
	"storefront/pkg/oauth"
	"storefront/pkg/rabbitmq"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := config.New()
	var configFile string

	load := func() (*config.Config, error) {
		return config.Load(v, configFile)
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the storefront HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return runServe(cfg)
		},
	}

	root := &cobra.Command{
		Use:          "storefront",
		Short:        "Storefront checkout and payment service",
		SilenceUsage: true,
		RunE:         serve.RunE,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to a YAML config file")
	root.PersistentFlags().String("port", "", "listen address, e.g. :8080")
	_ = v.BindPFlag("app.port", root.PersistentFlags().Lookup("port"))

	root.AddCommand(
		serve,
		&cobra.Command{
			Use:   "migrate",
			Short: "Create or update the database schema",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := load()
				if err != nil {
					return err
				}
				db, err := database.Open(cfg.Database.Driver, cfg.Database.DSN)
				if err != nil {
					return err
				}
				return database.Migrate(db)
			},
		},
		&cobra.Command{
			Use:   "seed",
			Short: "Load demo categories and products",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := load()
				if err != nil {
					return err
				}
				db, err := openAndMigrate(cfg)
				if err != nil {
					return err
				}
				return seedProducts(services.NewProductService(
					repositories.NewGORMProductRepository(db),
					repositories.NewGORMCategoryRepository(db),
				))
			},
		},
		createStaffCmd(load),
	)
	return root
}

func createStaffCmd(load func() (*config.Config, error)) *cobra.Command {
	var user models.User
	cmd := &cobra.Command{
		Use:   "create-staff",
		Short: "Create a staff account for the admin order views",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			db, err := openAndMigrate(cfg)
			if err != nil {
				return err
			}
			authService := services.NewAuthService(repositories.NewGORMUserRepository(db), cfg.JWT.Secret)
			if err := authService.RegisterStaff(&user); err != nil {
				return err
			}
			log.Printf("Created staff user %s (ID: %s)", user.Username, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&user.Username, "username", "", "staff username")
	cmd.Flags().StringVar(&user.Email, "email", "", "staff email")
	cmd.Flags().StringVar(&user.Password, "password", "", "staff password")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func openAndMigrate(cfg *config.Config) (*gorm.DB, error) {
	db, err := database.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func runServe(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := openAndMigrate(cfg)
	if err != nil {
		return err
	}

	// --- Initialize RabbitMQ Client ---
	var (
		mqClient  *rabbitmq.Client
		publisher services.EventPublisher
	)
	if cfg.RabbitMQ.URL != "" {
		mqClient, err = rabbitmq.NewClient(rabbitmq.Config{
			URL:          cfg.RabbitMQ.URL,
			Exchange:     cfg.RabbitMQ.Exchange,
			PaymentQueue: cfg.RabbitMQ.PaymentQueue,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize RabbitMQ client: %w", err)
		}
		defer mqClient.Close()
		publisher = mqClient
	} else {
		log.Println("RabbitMQ URL not set, order events are disabled")
	}

	// --- Gateway access token ---
	tokenCache := oauth.NewCache()
	if cfg.OAuth.Enabled() {
		refresher := oauth.NewClientCredentialsRefresher(ctx, oauth.ClientCredentials{
			ClientID:     cfg.OAuth.ClientID,
			ClientSecret: cfg.OAuth.ClientSecret,
			TokenURL:     cfg.OAuth.TokenURL,
			Scopes:       cfg.OAuth.Scopes,
		}, tokenCache)
		go refresher.Run(ctx, cfg.OAuth.RefreshInterval)
	} else {
		log.Println("OAuth client credentials not set, gateway calls will have no access token")
	}

	// --- Initialize Repositories ---
	productRepo := repositories.NewGORMProductRepository(db)
	orderRepo := repositories.NewGORMOrderRepository(db)

	// --- Initialize Services ---
	productService := services.NewProductService(productRepo, repositories.NewGORMCategoryRepository(db))
	orderService := services.NewOrderService(orderRepo, productRepo, publisher)
	paymentService := services.NewPaymentService(
		orderService,
		gateway.NewClient(gateway.Config{
			BaseURL:            cfg.Gateway.BaseURL,
			Timeout:            cfg.Gateway.Timeout,
			InsecureSkipVerify: cfg.Gateway.InsecureSkipVerify,
		}),
		oauth.NewProvider(tokenCache, oauth.AccessTokenKey),
		cfg.Gateway.AllowAnonymous,
	)
	authService := services.NewAuthService(repositories.NewGORMUserRepository(db), cfg.JWT.Secret)

	app := newApp(handlers.Dependencies{
		Sessions: newSessionStore(cfg.Session),
		Products: productService,
		Orders:   orderService,
		Payments: paymentService,
		Auth:     authService,
	}, mqClient != nil)

	// --- Start RabbitMQ Consumer ---
	if mqClient != nil {
		log.Println("Starting RabbitMQ consumer for payment events...")
		if err := mqClient.ConsumePaymentEvents(orderService.HandlePaymentEvent); err != nil {
			log.Printf("Failed to start RabbitMQ consumer: %v", err)
		}
	}

	// --- Start HTTP Server ---
	log.Printf("Starting server on port %s", cfg.App.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := app.Listen(cfg.App.Port); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	<-quit
	log.Println("Shutting down server...")
	cancel()

	if err := app.Shutdown(); err != nil {
		log.Printf("Error during Fiber shutdown: %v", err)
	}
	log.Println("Server gracefully stopped")
	return nil
}

func newSessionStore(cfg config.SessionConfig) *fsession.Store {
	return fsession.New(fsession.Config{
		KeyLookup:      "cookie:" + cfg.CookieName,
		Expiration:     cfg.Expiration,
		CookieHTTPOnly: true,
		CookieSameSite: "Lax",
	})
}

// newApp builds the Fiber app with middleware, the health check and every
// route.
func newApp(deps handlers.Dependencies, mqConnected bool) *fiber.App {
	app := fiber.New()

	app.Use(recover.New())
	app.Use(logger.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		mqStatus := "disabled"
		if mqConnected {
			mqStatus = "connected"
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"rabbitMQ": mqStatus,
		})
	})

	handlers.Register(app, deps)
	return app
}

// seedProducts populates the catalog with demo data. It does nothing when
// products already exist.
func seedProducts(service *services.ProductService) error {
	existing, err := service.GetAllProducts()
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		log.Printf("Catalog already holds %d products, skipping seed", len(existing))
		return nil
	}

	electronics := &models.Category{Name: "Electronics"}
	if err := service.CreateCategory(electronics); err != nil {
		return fmt.Errorf("failed to seed category: %w", err)
	}
	accessories := &models.Category{Name: "Accessories", ParentID: &electronics.ID}
	if err := service.CreateCategory(accessories); err != nil {
		return fmt.Errorf("failed to seed category: %w", err)
	}

	products := []models.Product{
		{Name: "Laptop", Description: "High performance laptop", Price: decimal.RequireFromString("1200.00"), QuantityAvailable: 10, CategoryID: &electronics.ID},
		{Name: "Keyboard", Description: "Mechanical keyboard", Price: decimal.RequireFromString("75.00"), QuantityAvailable: 25, CategoryID: &accessories.ID},
		{Name: "Mouse", Description: "Ergonomic wireless mouse", Price: decimal.RequireFromString("25.00"), QuantityAvailable: 50, CategoryID: &accessories.ID},
		{Name: "Sticker", Description: "Free with every order", Price: decimal.Zero, QuantityAvailable: 1000, CategoryID: &accessories.ID},
	}

	for i := range products {
		if err := service.CreateProduct(&products[i]); err != nil {
			log.Printf("Error seeding product %s: %v", products[i].Name, err)
			continue
		}
		log.Printf("Seeded product: %s (ID: %s)", products[i].Name, products[i].ID)
	}
	return nil
}
