package main

import (
	"github.com/alphabatem/common/context"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/answerhive/answerhive_api/middleware"
	"github.com/answerhive/answerhive_api/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("No .env file loaded")
	}

	ctx, err := context.NewCtx(
		&services.RedisService{},
		&services.PostgresService{},
		&services.JWTService{},
		&services.EmailService{},
		&services.JobService{},
		&services.AssistantService{},

		&services.ThrottleService{},
		&services.BlocklistService{},
		&services.AutoBlockService{},

		&services.ChatService{},
		&services.AuthService{},
		&services.BillingService{},
		&services.DocumentService{},

		&middleware.AuthMiddleware{},
		&services.MonitoringService{},

		&services.HttpService{},
	)
	if err != nil {
		log.Fatal().Err(err)
		return
	}

	err = ctx.Run()
	if err != nil {
		log.Fatal().Err(err)
		return
	}
}
