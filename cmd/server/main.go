package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Skotchmaster/blog_platform/internal/config"
	"github.com/Skotchmaster/blog_platform/internal/es"
	"github.com/Skotchmaster/blog_platform/internal/events"
	"github.com/Skotchmaster/blog_platform/internal/handlers"
	adminhdl "github.com/Skotchmaster/blog_platform/internal/handlers/admin"
	authhdl "github.com/Skotchmaster/blog_platform/internal/handlers/auth"
	notifhdl "github.com/Skotchmaster/blog_platform/internal/handlers/notification"
	"github.com/Skotchmaster/blog_platform/internal/logging"
	authmw "github.com/Skotchmaster/blog_platform/internal/middleware/auth"
	"github.com/Skotchmaster/blog_platform/internal/notify"
	"github.com/Skotchmaster/blog_platform/internal/realtime"
	"github.com/Skotchmaster/blog_platform/internal/token"
	httpserver "github.com/Skotchmaster/blog_platform/internal/transport/http"
)

const postsIndex = "posts"

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(configuration.LOG_LEVEL)

	db, err := config.InitDB(configuration)
	if err != nil {
		log.Fatalf("database init error: %v", err)
	}

	var producer *events.Producer
	if configuration.KAFKA_ADDRESS != "" {
		producer = events.NewProducer([]string{configuration.KAFKA_ADDRESS})
	} else {
		logger.Warn("KAFKA_ADDRESS not set, domain events disabled")
	}

	var esClient *elasticsearch.Client
	if configuration.ES_URL != "" {
		esClient, err = es.NewClient(configuration, logger)
		if err != nil {
			log.Fatalf("elasticsearch init error: %v", err)
		}
	} else {
		logger.Warn("ES_URL not set, search disabled")
	}

	tokens := &token.Service{
		DB:            db,
		JWTSecret:     []byte(configuration.JWT_SECRET),
		RefreshSecret: []byte(configuration.REFRESH_SECRET),
		AccessTTL:     configuration.ACCESS_TTL,
		RefreshTTL:    configuration.REFRESH_TTL,
	}

	hub := realtime.NewHub(logger)
	go hub.Run()

	notifications := &notify.Service{DB: db, Hub: hub, Producer: producer}

	e := echo.New()
	e.HideBanner = true
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			l := logger.With("request_id", c.Response().Header().Get(echo.HeaderXRequestID))
			ctx := logging.IntoContext(c.Request().Context(), l)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	})

	deps := httpserver.Deps{
		Auth:        &authmw.Middleware{DB: db, Tokens: tokens},
		Hub:         hub,
		AuthHandler: &authhdl.AuthHandler{DB: db, Tokens: tokens, Producer: producer},
		PostHandler: &handlers.PostHandler{
			DB: db, Producer: producer, Notifications: notifications,
			ES: esClient, ESIndex: postsIndex,
		},
		CommentHandler:      &handlers.CommentHandler{DB: db, Producer: producer, Notifications: notifications},
		CategoryHandler:     &handlers.CategoryHandler{DB: db},
		SearchHandler:       &handlers.SearchHandler{ES: esClient, Index: postsIndex},
		NotificationHandler: &notifhdl.NotificationHandler{Service: notifications},
		AdminHandler:        &adminhdl.AdminHandler{DB: db, Tokens: tokens},
	}

	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         configuration.HTTP_ADDR,
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Info("server starting", "addr", configuration.HTTP_ADDR)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	}

	if err := producer.Close(); err != nil {
		log.Printf("kafka close error: %v", err)
	}

	logger.Info("shutdown complete")
}
