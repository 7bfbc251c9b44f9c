// Package app wires configuration into the stores and services shared by
// the API server and the scrape command.
package app

import (
	"context"

	goredis "github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"example.com/campusevents/internal/claim"
	"example.com/campusevents/internal/config"
	"example.com/campusevents/internal/domain"
	"example.com/campusevents/internal/feed"
	"example.com/campusevents/internal/ingest"
	"example.com/campusevents/internal/location"
	"example.com/campusevents/internal/notify"
	"example.com/campusevents/internal/rabbitmq"
	"example.com/campusevents/internal/reconcile"
	"example.com/campusevents/internal/recurrence"
	"example.com/campusevents/internal/storage"
	"example.com/campusevents/internal/storage/memory"
	spg "example.com/campusevents/internal/storage/postgres"
	"example.com/campusevents/internal/storage/redis"
	"example.com/campusevents/internal/tags"
)

type App struct {
	DB        *spg.DB
	Moderator *domain.User
	Resolver  *location.Resolver
	Tags      *tags.Applier
	Chain     *recurrence.Chain
	Runner    *ingest.Runner
	Claims    *claim.Service

	producer *rabbitmq.Producer
	redis    *goredis.Client
	logger   *zap.Logger
}

// NewLogger returns a production logger when ENVIRONMENT is production.
func NewLogger(cfg config.Config) (*zap.Logger, error) {
	if cfg.Production() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// Build connects to Postgres, applies migrations and assembles every
// service. Redis, RabbitMQ and Mailjet are used only when configured.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	a := &App{logger: logger}

	db, err := spg.Connect(ctx, cfg.PostgresDSN, logger.Named("postgres"))
	if err != nil {
		return nil, errors.Wrap(err, "db connect")
	}
	a.DB = db
	if err := db.Migrate(ctx); err != nil {
		a.Close()
		return nil, errors.Wrap(err, "migration")
	}
	logger.Info("db ready")

	if a.Moderator, err = moderator(ctx, db, cfg.ModeratorEmail); err != nil {
		a.Close()
		return nil, err
	}

	places := location.DefaultPlaces
	if cfg.LocationsFile != "" {
		if places, err = location.LoadPlaces(cfg.LocationsFile); err != nil {
			a.Close()
			return nil, err
		}
	}
	a.Resolver = location.NewResolver(places)
	a.Tags = tags.NewApplier(db, tags.NewNormalizer(cfg.TagAmpReplacement))
	a.Chain = recurrence.NewChain(db, a.Tags, a.Resolver, cfg.MaxOccurrences)

	policy, err := feed.ParseEndPolicy(cfg.FeedEndPolicy)
	if err != nil {
		a.Close()
		return nil, err
	}
	client := feed.NewClient(cfg.FeedURL, cfg.FeedTimeout, logger.Named("feed"))
	engine := reconcile.NewEngine(db, a.Tags, a.Moderator.ID)

	var pub ingest.Publisher
	if cfg.AMQPURL != "" {
		a.producer = rabbitmq.NewProducer(cfg.AMQPURL, cfg.AMQPExchange)
		if err := a.producer.Open(); err != nil {
			a.Close()
			return nil, err
		}
		pub = a.producer
		logger.Info("publishing event notices", zap.String("exchange", cfg.AMQPExchange))
	}
	a.Runner = ingest.NewRunner(client, feed.NewParser(a.Resolver, policy), engine, pub, logger.Named("ingest"), cfg.FeedPageSize)

	if a.Claims, err = a.claims(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) claims(ctx context.Context, cfg config.Config) (*claim.Service, error) {
	var tokens storage.ClaimStore = memory.NewClaims()
	if cfg.RedisAddr != "" {
		client, err := redis.Connect(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, err
		}
		a.redis = client
		tokens = redis.NewClaims(client)
	} else {
		a.logger.Warn("REDIS_ADDR not set, claim tokens are kept in memory")
	}

	opts := []notify.Option{notify.WithLogger(a.logger.Named("notify"))}
	if cfg.MailSender != "" {
		opts = append(opts, notify.WithSender(cfg.MailSender))
	}
	if cfg.MailjetPublicKey != "" || cfg.MailjetPrivateKey != "" {
		opts = append(opts, notify.WithSecrets(cfg.MailjetPublicKey, cfg.MailjetPrivateKey))
	}
	mail, err := notify.New(opts...)
	if err != nil {
		return nil, errors.Wrap(err, "notifier")
	}

	return &claim.Service{
		Events:     a.DB,
		Users:      a.DB,
		Tokens:     tokens,
		Mail:       mail,
		Moderator:  a.Moderator.ID,
		TTL:        cfg.ClaimTokenTTL,
		ConfirmURL: cfg.ClaimURL,
		Logger:     a.logger.Named("claim"),
	}, nil
}

// moderator returns the account that owns imported events, creating it
// on first start.
func moderator(ctx context.Context, users storage.UserStore, email string) (*domain.User, error) {
	u, err := users.UserByEmail(ctx, email)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, errors.Wrap(err, "lookup moderator")
	}
	u = &domain.User{Email: email, FirstName: "Events", LastName: "Moderator", Type: domain.UserCommunity}
	if err := users.CreateUser(ctx, u); err != nil {
		return nil, errors.Wrap(err, "create moderator")
	}
	return u, nil
}

func (a *App) Close() {
	if a.producer != nil {
		a.producer.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
