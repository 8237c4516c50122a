package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	pkg "git.solsynth.dev/hypernet/chatcore/pkg/internal"
	"git.solsynth.dev/hypernet/chatcore/pkg/internal/cache"
	"git.solsynth.dev/hypernet/chatcore/pkg/internal/database"
	"git.solsynth.dev/hypernet/chatcore/pkg/internal/dispatch"
	"git.solsynth.dev/hypernet/chatcore/pkg/internal/feed"
	"git.solsynth.dev/hypernet/chatcore/pkg/internal/grpc"
	"git.solsynth.dev/hypernet/chatcore/pkg/internal/http"
	"git.solsynth.dev/hypernet/chatcore/pkg/internal/queue"
	"git.solsynth.dev/hypernet/chatcore/pkg/internal/services"
	"git.solsynth.dev/hypernet/chatcore/pkg/internal/storage"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
}

func main() {
	// Configure settings
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.SetConfigName("settings")
	viper.SetConfigType("toml")

	// Load settings
	if err := viper.ReadInConfig(); err != nil {
		log.Panic().Err(err).Msg("An error occurred when loading settings.")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to database
	if err := database.NewSource(); err != nil {
		log.Fatal().Err(err).Msg("An error occurred when connect to database.")
	} else if err := database.RunMigration(database.C); err != nil {
		log.Fatal().Err(err).Msg("An error occurred when running database auto migration.")
	}

	// Initialize cache
	if err := cache.NewCache(); err != nil {
		log.Fatal().Err(err).Msg("An error occurred when initializing cache.")
	}

	// Change feed
	if viper.GetString("feed.driver") == "redis" {
		if cache.R == nil {
			if err := cache.NewRedis(); err != nil {
				log.Fatal().Err(err).Msg("An error occurred when connecting to redis.")
			}
		}
		bus, err := feed.NewRedisBus(ctx, cache.R, viper.GetString("feed.channel"))
		if err != nil {
			log.Fatal().Err(err).Msg("An error occurred when subscribing to change feed.")
		}
		feed.B = bus
	}

	// Connect other services
	if err := storage.NewStorage(ctx); err != nil {
		log.Error().Err(err).Msg("An error occurred when connecting to object storage, uploads are disabled...")
	}
	queue.NewQueue()
	dispatch.D = dispatch.New(dispatch.ReadConfig())

	// Server
	server := http.NewServer()
	go server.Listen()

	grpcServer := grpc.NewGrpc()
	go func() {
		if err := grpcServer.Listen(); err != nil {
			log.Fatal().Err(err).Msg("An error occurred when starting grpc server...")
		}
	}()

	// Configure timed tasks
	quartz := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(&log.Logger)))
	quartz.AddFunc("@every 60m", services.DoAutoDatabaseCleanup)
	quartz.AddFunc("@every 60s", services.FlushReadMarkers)
	quartz.Start()

	// Messages
	log.Info().Msgf("ChatCore v%s is started...", pkg.AppVersion)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msgf("ChatCore v%s is quitting...", pkg.AppVersion)

	quartz.Stop()
	services.FlushReadMarkers()

	_ = server.Shutdown()
	grpcServer.Stop()
	_ = feed.B.Close()
	if queue.W != nil {
		_ = queue.W.Close()
	}
}
