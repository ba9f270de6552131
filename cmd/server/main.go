package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"memo-server/internal/config"
	"memo-server/internal/handler"
	"memo-server/internal/logging"
	"memo-server/internal/middleware"
	"memo-server/internal/repository"
	"memo-server/internal/service"
	"memo-server/internal/view"
	"memo-server/internal/websocket"

	_ "github.com/go-kivik/kivik/v4/couchdb"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/go-kivik/kivik/v4"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Server.Env, cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	memoRepo, backupRepo, closeStorage, err := openStorage(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open storage", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
	}
	defer closeStorage()

	var events service.MemoEventPublisher
	var wsHandler *handler.WebSocketHandler
	var wsManager *websocket.Manager
	if cfg.WebSocket.Enabled {
		wsManager = websocket.NewManager(
			cfg.WebSocket.MaxConns,
			cfg.WebSocket.WriteWait,
			cfg.WebSocket.PongWait,
			cfg.WebSocket.PingPeriod,
			logger,
		)
		go wsManager.Run()

		wsManager.SetMessageHandler(handler.NewWebSocketMessageHandler(wsManager, logger))
		wsHandler = handler.NewWebSocketHandler(wsManager, cfg.WebSocket.ReadBufferSize, cfg.WebSocket.WriteBufferSize, logger)
		events = wsManager
	}

	memoService := service.NewMemoService(memoRepo, backupRepo, events, logger)

	views, err := view.New()
	if err != nil {
		logger.Fatal("Failed to parse templates", zap.Error(err))
	}

	router := handler.NewRouter(handler.RouterConfig{
		Memos:     handler.NewMemoHandler(memoService, views, logger),
		API:       handler.NewMemoAPIHandler(memoService, logger),
		WebSocket: wsHandler,
		CORS: middleware.CORSMiddleware(
			cfg.CORS.AllowedOrigins,
			cfg.CORS.AllowedMethods,
			cfg.CORS.AllowedHeaders,
		),
		Logger: logger,
	})

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)

	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Starting memo server",
			zap.String("addr", addr),
			zap.String("env", cfg.Server.Env),
			zap.String("storage", cfg.Storage.Driver),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	if wsManager != nil {
		wsManager.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
		return
	}

	logger.Info("Server stopped gracefully")
}

// openStorage builds the memo and backup repositories for the configured
// driver. The returned close func releases any database handle.
func openStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.MemoRepository, repository.BackupRepository, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Storage.Driver {
	case config.DriverFile:
		memos, err := repository.NewFileMemoRepository(cfg.Storage.MemoDir)
		if err != nil {
			return nil, nil, nil, err
		}
		backups, err := repository.NewFileBackupRepository(cfg.Storage.BackupDir, cfg.Storage.BackupSuffix)
		if err != nil {
			return nil, nil, nil, err
		}
		logger.Info("Using file storage",
			zap.String("memo_dir", cfg.Storage.MemoDir),
			zap.String("backup_dir", cfg.Storage.BackupDir),
		)
		return memos, backups, noop, nil

	case config.DriverPostgres, config.DriverSQLite:
		dsn := cfg.Database.SQLitePath
		if cfg.Storage.Driver == config.DriverPostgres {
			dsn = cfg.Database.PostgresDSN()
		}

		db, err := sql.Open(cfg.Storage.Driver, dsn)
		if err != nil {
			return nil, nil, nil, err
		}
		if cfg.Storage.Driver == config.DriverSQLite {
			// sqlite3 allows a single writer
			db.SetMaxOpenConns(1)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, nil, nil, fmt.Errorf("failed to connect to %s: %w", cfg.Storage.Driver, err)
		}
		if err := repository.EnsureSchema(ctx, db); err != nil {
			db.Close()
			return nil, nil, nil, err
		}
		logger.Info("Using SQL storage", zap.String("driver", cfg.Storage.Driver))
		return repository.NewSQLMemoRepository(db), repository.NewSQLBackupRepository(db), db.Close, nil

	case config.DriverCouchDB:
		client, err := kivik.New("couch", cfg.Database.CouchURL())
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to connect to CouchDB: %w", err)
		}
		if err := repository.EnsureCouchDB(ctx, client, cfg.Database.Name); err != nil {
			client.Close()
			return nil, nil, nil, err
		}
		logger.Info("Connected to CouchDB",
			zap.String("host", cfg.Database.Host),
			zap.String("port", cfg.Database.Port),
			zap.String("database", cfg.Database.Name),
		)
		return repository.NewCouchMemoRepository(client, cfg.Database.Name),
			repository.NewCouchBackupRepository(client, cfg.Database.Name),
			client.Close,
			nil
	}

	return nil, nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}
