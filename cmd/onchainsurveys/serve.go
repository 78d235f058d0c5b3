package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/ggurbet/onchainsurveys/adapters/casper"
	"github.com/ggurbet/onchainsurveys/adapters/events"
	"github.com/ggurbet/onchainsurveys/adapters/store"
	"github.com/ggurbet/onchainsurveys/adapters/tokenizer"
	"github.com/ggurbet/onchainsurveys/config"
	"github.com/ggurbet/onchainsurveys/ports"
	"github.com/ggurbet/onchainsurveys/service"
	transport "github.com/ggurbet/onchainsurveys/transport/http"
)

func serveCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the auth server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg.Server, logger)
		},
	}
}

type backends struct {
	revocations ports.Store
	users       ports.UserStore
	publisher   message.Publisher
	closers     []func()
}

func (b *backends) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// openBackends picks Redis and MongoDB when configured and in-memory stores otherwise.
func openBackends(ctx context.Context, cfg config.Server, logger *slog.Logger) (*backends, error) {
	b := &backends{}
	wmLogger := watermill.NewSlogLogger(logger)

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		redisClient := redis.NewClient(opts)
		b.closers = append(b.closers, func() { redisClient.Close() })

		if err := redisClient.Ping(ctx).Err(); err != nil {
			b.close()
			return nil, fmt.Errorf("failed to reach Redis: %w", err)
		}

		publisher, err := redisstream.NewPublisher(redisstream.PublisherConfig{Client: redisClient}, wmLogger)
		if err != nil {
			b.close()
			return nil, fmt.Errorf("failed to create Redis publisher: %w", err)
		}
		b.closers = append(b.closers, func() { publisher.Close() })

		b.revocations = store.NewRedisStore(redisClient)
		b.users = store.NewRedisUserStore(redisClient)
		b.publisher = publisher
	} else {
		logger.Warn("REDIS_URL not set, using in-memory stores and an in-process event bus")
		pubSub := gochannel.NewGoChannel(gochannel.Config{}, wmLogger)
		b.closers = append(b.closers, func() { pubSub.Close() })

		b.revocations = store.NewMemoryStore()
		b.users = store.NewMemoryUserStore()
		b.publisher = pubSub
	}

	if cfg.MongoURL != "" {
		client, err := mongo.Connect(options.Client().ApplyURI(cfg.MongoURL))
		if err != nil {
			b.close()
			return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		b.closers = append(b.closers, func() { client.Disconnect(context.Background()) })

		if err := client.Ping(ctx, readpref.Primary()); err != nil {
			b.close()
			return nil, fmt.Errorf("failed to reach MongoDB: %w", err)
		}

		users, err := store.NewMongoUserStore(ctx, client.Database(cfg.MongoDatabase))
		if err != nil {
			b.close()
			return nil, err
		}
		b.users = users
	}

	return b, nil
}

func serve(ctx context.Context, cfg config.Server, logger *slog.Logger) error {
	signKey, err := tokenizer.LoadSigningKey(cfg.JWTKeyFile)
	if err != nil {
		return err
	}
	if cfg.JWTKeyFile == "" {
		logger.Warn("JWT_PRIVATE_KEY_FILE not set, tokens will not survive a restart")
	}

	b, err := openBackends(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.close()

	verifier := casper.Verifier{}
	authService := service.NewAuthService(
		tokenizer.NewJWTTokenizer(signKey),
		b.revocations,
		b.users,
		events.NewWatermillPublisher(b.publisher, cfg.EventsTopic),
		verifier,
		service.WithTokenTTL(cfg.TokenTTL),
		service.WithSignatureVerification(verifier, cfg.RequireSignature),
		service.WithLogger(logger),
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           transport.SetupRouter(authService, reg, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("auth server listening", slog.String("addr", cfg.HTTPAddr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
