package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/collab/internal/activity"
	"github.com/MarcoPoloResearchLab/collab/internal/auth"
	"github.com/MarcoPoloResearchLab/collab/internal/collab"
	"github.com/MarcoPoloResearchLab/collab/internal/config"
	"github.com/MarcoPoloResearchLab/collab/internal/database"
	"github.com/MarcoPoloResearchLab/collab/internal/logging"
	"github.com/MarcoPoloResearchLab/collab/internal/metrics"
	"github.com/MarcoPoloResearchLab/collab/internal/notes"
	"github.com/MarcoPoloResearchLab/collab/internal/realtime"
	"github.com/MarcoPoloResearchLab/collab/internal/server"
	"github.com/MarcoPoloResearchLab/collab/internal/team"
	"github.com/MarcoPoloResearchLab/collab/internal/teamapi"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const loadTimeout = 15 * time.Second

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.Open(database.Config{Driver: appConfig.DatabaseDriver, DSN: appConfig.DatabaseDSN}, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	memberRepository, err := team.NewRepository(team.RepositoryConfig{Database: db, Logger: logger})
	if err != nil {
		return err
	}
	activityRepository, err := activity.NewRepository(db)
	if err != nil {
		return err
	}
	noteRepository, err := notes.NewRepository(notes.RepositoryConfig{Database: db, Logger: logger})
	if err != nil {
		return err
	}

	source, err := buildSource(appConfig, memberRepository, activityRepository)
	if err != nil {
		return err
	}

	broker, err := buildBroker(signalCtx, appConfig, logger)
	if err != nil {
		return err
	}

	appMetrics := metrics.New()
	store := collab.NewStore(collab.StoreConfig{
		Source:        source,
		Activities:    activityRepository,
		Statuses:      memberRepository,
		Broker:        broker,
		Observer:      appMetrics,
		Logger:        logger,
		ActivityLimit: appConfig.TeamActivityLimit,
	})
	loadCtx, cancelLoad := context.WithTimeout(signalCtx, loadTimeout)
	store.Load(loadCtx)
	cancelLoad()

	boards, err := notes.NewRegistry(notes.RegistryConfig{
		Roster:  store,
		Events:  notes.FanOut{collab.NewNoteActivityBridge(store), appMetrics},
		Storage: noteRepository,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	sessionValidator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(appConfig.SessionSigningSecret),
		Issuer:        appConfig.SessionIssuer,
		CookieName:    appConfig.SessionCookieName,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		SessionValidator: sessionValidator,
		Members:          memberRepository,
		Store:            store,
		Boards:           boards,
		Broker:           broker,
		Metrics:          appMetrics,
		Logger:           logger,
		AllowedOrigins:   appConfig.AllowedOrigins,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              appConfig.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// buildSource prefers the external team API when one is configured.
func buildSource(appConfig config.AppConfig, members *team.Repository, activities *activity.Repository) (collab.Source, error) {
	if appConfig.TeamSourceURL != "" {
		client, err := teamapi.NewClient(teamapi.Config{BaseURL: appConfig.TeamSourceURL})
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	databaseSource, err := collab.NewDatabaseSource(members, activities)
	if err != nil {
		return nil, err
	}
	return databaseSource, nil
}

// buildBroker relays realtime messages through redis when an address is
// configured and stays in-process otherwise.
func buildBroker(ctx context.Context, appConfig config.AppConfig, logger *zap.Logger) (realtime.Broker, error) {
	if !appConfig.RedisEnabled() {
		return realtime.NewDispatcher(), nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     appConfig.RedisAddress,
		Password: appConfig.RedisPassword,
		DB:       appConfig.RedisDB,
	})
	relay, err := realtime.NewRedisRelay(realtime.RelayConfig{
		Client:  client,
		Channel: appConfig.RedisChannel,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}
	go func() {
		defer client.Close()
		if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("realtime relay stopped", zap.Error(err))
		}
	}()
	return relay, nil
}

// openDatabase is shared by the maintenance commands, which need no session secret.
func openDatabase(logger *zap.Logger) (*gorm.DB, func(), error) {
	db, err := database.Open(database.Config{
		Driver: viper.GetString("database.driver"),
		DSN:    viper.GetString("database.dsn"),
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, err
	}
	return db, func() { _ = sqlDB.Close() }, nil
}
