package main

import (
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/meetread/meetread/internal/config"
	"github.com/meetread/meetread/internal/database"
	"github.com/meetread/meetread/internal/handler"
	"github.com/meetread/meetread/internal/queue"
	"github.com/meetread/meetread/internal/repository"
	"github.com/meetread/meetread/internal/router"
	"github.com/meetread/meetread/internal/service/borrow"
	"github.com/meetread/meetread/internal/service/queuepub"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if cfg.Env == "dev" {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()
	if err := database.Migrate(db); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}

	rdb := config.NewRedisClient()

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	books := repository.NewBookRepo(db)
	requests := repository.NewRequestRepo(db)
	notifications := repository.NewNotificationRepo(db)

	lifecycle := borrow.New(repository.NewBorrowTxRunner(db))
	publisher := queuepub.New(cfg.AMQPURL, logger)

	authH := handler.NewAuthHandler(cfg, users, tokens)
	publicH := handler.NewPublicHandler(books)
	bookH := handler.NewBookHandler(books)
	borrowH := handler.NewBorrowHandler(lifecycle, requests, books, publisher)
	notifH := handler.NewNotificationHandler(notifications)
	adminH := handler.NewAdminHandler(books, users)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())

	router.RegisterRoutes(e)
	router.RegisterAuth(e, authH, cfg.JWTSecret)
	router.RegisterPublic(e, publicH, rdb)
	router.RegisterUser(e, bookH, borrowH, notifH, cfg.JWTSecret, rdb)
	router.RegisterAdmin(e, adminH, cfg.JWTSecret)

	// The consumer keeps its own reconnect loop and never blocks
	// startup; events are best effort when the broker is down.
	go queue.StartBorrowConsumer(cfg.AMQPURL, logger.Named("borrow-consumer"))

	addr := ":" + cfg.Port
	logger.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
	if err := e.Start(addr); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
