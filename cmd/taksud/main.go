package main

import (
	"os"

	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/layer-3/taksu/adapters/challenge"
	"github.com/layer-3/taksu/adapters/events"
	"github.com/layer-3/taksu/adapters/store"
	"github.com/layer-3/taksu/ports"
	"github.com/layer-3/taksu/transport/http"
	"github.com/layer-3/taksu/verifier"
)

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		With().Timestamp().Logger()

	cfg, err := loadConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	ttl, err := cfg.challengeTTL()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid challenge lifetime")
	}

	var (
		nonceStore ports.NonceStore
		publisher  message.Publisher
	)
	wmLogger := watermill.NewStdLogger(false, false)

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to parse Redis URL")
		}
		redisClient := redis.NewClient(opts)

		publisher, err = redisstream.NewPublisher(
			redisstream.PublisherConfig{
				Client: redisClient,
			},
			wmLogger,
		)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create Redis publisher")
		}
		nonceStore = store.NewRedisStore(redisClient)
	} else {
		// Without Redis every nonce and event lives in this process only.
		publisher = gochannel.NewGoChannel(gochannel.Config{}, wmLogger)
		nonceStore = store.NewMemoryStore()
		logger.Info().Msg("REDIS_URL not set, using in-memory nonce store")
	}

	var issuer ports.ChallengeIssuer
	if cfg.JWTChallenges {
		// Challenges only need to outlive one login attempt, so a fresh
		// signing key per boot is enough.
		signKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to generate signing key")
		}
		issuer = challenge.NewJWTIssuer(signKey, nonceStore, ttl)
	} else {
		issuer = challenge.NewRandomIssuer(nonceStore, ttl)
	}

	eventPub := events.NewWatermillPublisher(publisher)
	svc := verifier.NewService(issuer, eventPub, logger)

	gin.SetMode(gin.ReleaseMode)
	router := http.SetupRouter(svc, logger)

	logger.Info().Str("addr", cfg.ListenAddr).Msg("starting verifier")
	if err := router.Run(cfg.ListenAddr); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}
