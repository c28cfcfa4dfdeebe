package container

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	_ "github.com/danielgtaylor/huma/v2/formats/cbor" // CBOR format support for huma
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jaevor/go-nanoid"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/serroba/page-votes/internal/audit"
	"github.com/serroba/page-votes/internal/handlers"
	"github.com/serroba/page-votes/internal/health"
	"github.com/serroba/page-votes/internal/messaging"
	"github.com/serroba/page-votes/internal/middleware"
	"github.com/serroba/page-votes/internal/pow"
	"github.com/serroba/page-votes/internal/ratelimit"
	"github.com/serroba/page-votes/internal/store"
	"github.com/serroba/page-votes/internal/votes"
	"go.uber.org/zap"
)

const (
	storeMailbox       = 64
	auditConsumerGroup = "vote-audit"
	requestIDLength    = 16
)

// RedisClient is the shared Redis connection, closed on shutdown.
type RedisClient struct {
	*redis.Client
}

func (c *RedisClient) Shutdown() error {
	return c.Close()
}

// PostgresPool is the shared PostgreSQL pool, closed on shutdown.
type PostgresPool struct {
	*pgxpool.Pool
}

func (p *PostgresPool) Shutdown() error {
	p.Close()

	return nil
}

// IDGenerator returns random url-safe ids.
type IDGenerator func() string

// LoggerPackage provides *zap.Logger in the configured format.
func LoggerPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*zap.Logger, error) {
		opts := do.MustInvoke[*Options](i)

		if opts.LogFormat == "json" {
			return zap.NewProduction()
		}

		return zap.NewDevelopment()
	})

	do.Provide(i, func(i *do.Injector) (watermill.LoggerAdapter, error) {
		return messaging.NewZapLogger(do.MustInvoke[*zap.Logger](i)), nil
	})
}

// IDPackage provides the nanoid generator used for request and rate limit ids.
func IDPackage(i *do.Injector) {
	do.Provide(i, func(_ *do.Injector) (IDGenerator, error) {
		gen, err := nanoid.Standard(requestIDLength)
		if err != nil {
			return nil, fmt.Errorf("create id generator: %w", err)
		}

		return gen, nil
	})
}

// RedisPackage provides the Redis client. It only connects when a component asks for it.
func RedisPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*RedisClient, error) {
		opts := do.MustInvoke[*Options](i)

		return &RedisClient{Client: redis.NewClient(&redis.Options{Addr: opts.RedisAddr})}, nil
	})
}

// PostgresPackage provides the PostgreSQL pool.
func PostgresPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*PostgresPool, error) {
		opts := do.MustInvoke[*Options](i)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		pool, err := pgxpool.New(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}

		if err := pool.Ping(ctx); err != nil {
			pool.Close()

			return nil, fmt.Errorf("ping postgres: %w", err)
		}

		return &PostgresPool{Pool: pool}, nil
	})
}

// StorePackage provides the vote store for the configured backend and its health checker.
func StorePackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (votes.Store, error) {
		opts := do.MustInvoke[*Options](i)

		switch opts.Backend {
		case "redis":
			return store.NewRedisStore(do.MustInvoke[*RedisClient](i).Client), nil
		case "postgres":
			pg := store.NewPostgresStore(do.MustInvoke[*PostgresPool](i).Pool, opts.Partitions)

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if err := pg.EnsureSchema(ctx); err != nil {
				return nil, fmt.Errorf("ensure schema: %w", err)
			}

			if opts.CacheTTL > 0 {
				return store.NewRedisCacheStore(pg, do.MustInvoke[*RedisClient](i).Client, opts.cacheTTL()), nil
			}

			return pg, nil
		default:
			return store.NewShardedMemoryStore(storeMailbox), nil
		}
	})

	do.Provide(i, func(i *do.Injector) (health.Checker, error) {
		s := do.MustInvoke[votes.Store](i)

		checker, ok := s.(health.Checker)
		if !ok {
			return nil, fmt.Errorf("store %T cannot be health checked", s)
		}

		return checker, nil
	})
}

// PowPackage provides the challenge issuer and verifier.
func PowPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (pow.Config, error) {
		opts := do.MustInvoke[*Options](i)
		if err := opts.Validate(); err != nil {
			return pow.Config{}, err
		}

		return pow.Config{
			Secret:     []byte(opts.Secret),
			Difficulty: opts.Difficulty,
			TTL:        opts.challengeTTL(),
		}, nil
	})

	do.Provide(i, func(i *do.Injector) (*pow.Issuer, error) {
		return pow.NewIssuer(do.MustInvoke[pow.Config](i), nil), nil
	})

	do.Provide(i, func(i *do.Injector) (*pow.Verifier, error) {
		return pow.NewVerifier(do.MustInvoke[pow.Config](i), nil), nil
	})
}

// ReplayPackage provides the replay guard. "off" keeps tokens reusable until expiry.
func ReplayPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (pow.ReplayGuard, error) {
		switch do.MustInvoke[*Options](i).ReplayGuard {
		case "memory":
			return store.NewReplayMemoryStore(), nil
		case "redis":
			return store.NewReplayRedisStore(do.MustInvoke[*RedisClient](i).Client), nil
		default:
			return pow.NoReplayGuard{}, nil
		}
	})
}

// VotePackage provides the vote service.
func VotePackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*votes.Service, error) {
		return votes.NewService(
			do.MustInvoke[votes.Store](i),
			do.MustInvoke[*pow.Verifier](i),
			do.MustInvoke[pow.ReplayGuard](i),
		), nil
	})
}

// RateLimitPackage provides the policy limiter. It is not provided when rate limiting is off.
func RateLimitPackage(i *do.Injector) {
	opts := do.MustInvoke[*Options](i)
	if opts.RateLimit == "off" {
		return
	}

	do.Provide(i, func(i *do.Injector) (ratelimit.Store, error) {
		if opts.RateLimit == "redis" {
			return store.NewRateLimitRedisStore(do.MustInvoke[*RedisClient](i).Client, do.MustInvoke[IDGenerator](i)), nil
		}

		return store.NewRateLimitMemoryStore(), nil
	})

	do.Provide(i, func(i *do.Injector) (*ratelimit.PolicyLimiter, error) {
		return ratelimit.NewPolicyLimiter(do.MustInvoke[ratelimit.Store](i), ratelimit.DefaultPolicy()), nil
	})
}

// PublisherGroupPackage provides the event publisher for the configured transport.
// In memory mode the same in-process channel also serves as the subscriber.
func PublisherGroupPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*gochannel.GoChannel, error) {
		return messaging.NewGoChannel(do.MustInvoke[watermill.LoggerAdapter](i)), nil
	})

	do.Provide(i, func(i *do.Injector) (*messaging.PublisherGroup, error) {
		opts := do.MustInvoke[*Options](i)

		if opts.Events == "redis" {
			publisher, err := messaging.NewRedisStreamPublisher(
				do.MustInvoke[*RedisClient](i).Client,
				do.MustInvoke[watermill.LoggerAdapter](i),
			)
			if err != nil {
				return nil, err
			}

			return messaging.NewPublisherGroup(publisher), nil
		}

		return messaging.NewPublisherGroup(do.MustInvoke[*gochannel.GoChannel](i)), nil
	})
}

// ConsumerGroupPackage provides the audit consumers. With redis events the consumers
// join a shared consumer group so several processes split the stream.
func ConsumerGroupPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*messaging.ConsumerGroup, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		var subscriber message.Subscriber

		if opts.Events == "redis" {
			sub, err := messaging.NewRedisStreamSubscriber(
				do.MustInvoke[*RedisClient](i).Client,
				auditConsumerGroup,
				do.MustInvoke[watermill.LoggerAdapter](i),
			)
			if err != nil {
				return nil, err
			}

			subscriber = sub
		} else {
			subscriber = do.MustInvoke[*gochannel.GoChannel](i)
		}

		group := messaging.NewConsumerGroup(subscriber, logger)
		group.Add(audit.NewVoteConsumer(subscriber, audit.NewLogSink(logger.Named("audit")), logger))

		return group, nil
	})
}

// HTTPPackage provides the router and the huma API with every route registered.
func HTTPPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*chi.Mux, error) {
		router := chi.NewMux()
		router.Use(
			middleware.RequestID(do.MustInvoke[IDGenerator](i)),
			middleware.AccessLog(do.MustInvoke[*zap.Logger](i)),
			chimw.Recoverer,
			middleware.CORS,
		)

		return router, nil
	})

	do.Provide(i, func(i *do.Injector) (huma.API, error) {
		logger := do.MustInvoke[*zap.Logger](i)
		router := do.MustInvoke[*chi.Mux](i)

		api := humachi.New(router, handlers.NewAPIConfig())
		api.UseMiddleware(middleware.RequestMeta(api))

		if limiter, err := do.Invoke[*ratelimit.PolicyLimiter](i); err == nil {
			api.UseMiddleware(middleware.PolicyRateLimiter(api, limiter, ratelimit.NewOperationScopeResolver(), logger))
		}

		publisher := do.MustInvoke[*messaging.PublisherGroup](i).Publisher()

		handlers.RegisterRoutes(api, handlers.NewVoteHandler(
			do.MustInvoke[*pow.Issuer](i),
			do.MustInvoke[*votes.Service](i),
			messaging.NewPublishFunc[audit.VoteRecordedEvent](publisher, audit.TopicVoteRecorded),
			logger,
		))
		health.RegisterRoutes(api, health.NewHandler(do.MustInvoke[health.Checker](i), logger))

		return api, nil
	})
}

// ServerPackages registers everything the HTTP server needs.
func ServerPackages(i *do.Injector) {
	LoggerPackage(i)
	IDPackage(i)
	RedisPackage(i)
	PostgresPackage(i)
	StorePackage(i)
	PowPackage(i)
	ReplayPackage(i)
	VotePackage(i)
	RateLimitPackage(i)
	PublisherGroupPackage(i)
	ConsumerGroupPackage(i)
	HTTPPackage(i)
}
