// Command find-that-song runs the Find That Song web application.
package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/justestif/go-find-that-song/internal/config"
	"github.com/justestif/go-find-that-song/internal/db"
	"github.com/justestif/go-find-that-song/internal/lastfm"
	"github.com/justestif/go-find-that-song/internal/logger"
	"github.com/justestif/go-find-that-song/internal/web"
	webfs "github.com/justestif/go-find-that-song/web"
)

var (
	app        = kingpin.New("find-that-song", "Explore your Spotify listening and generate playlists")
	configPath = app.Flag("config", "Path to config file").Default("config.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()
	migrate    = app.Flag("migrate", "Apply the database schema before serving").Bool()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	kingpin.MustParse(app.Parse(os.Args[1:]))

	bootLog, err := logger.Init(loggerConfig("info", "stdout"))
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	appLog, err := logger.Init(loggerConfig(cfg.Log.Level, cfg.Log.Output))
	if err != nil {
		zlog.Fatal().Msgf("Failed to initialize logger: %v", err)
	}
	// The configured logger has replaced the bootstrap one
	_ = bootLog.Close()

	err = run(cfg)
	if err != nil {
		zlog.Error().Msgf("Server error: %v", err)
	}
	_ = appLog.Close()
	if err != nil {
		os.Exit(1)
	}
}

// loggerConfig applies the command line overrides to the configured values.
func loggerConfig(level, output string) logger.Config {
	lc := logger.Config{Level: level, Output: output}
	if *verbose {
		lc.Level = "debug"
	}
	if *logfile != "" {
		lc.Output = *logfile
	}
	return lc
}

// run executes the main server logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	ctx := context.Background()

	templates, err := fs.Sub(webfs.TemplatesFS, "templates")
	if err != nil {
		return errors.Wrap(err, "creating templates filesystem")
	}

	static, err := fs.Sub(webfs.StaticFS, "static")
	if err != nil {
		return errors.Wrap(err, "creating static filesystem")
	}

	serverCfg := web.ServerConfig{
		Config:      cfg,
		TemplatesFS: templates,
		StaticFS:    static,
	}

	if cfg.HasDatabase() {
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		database, err := db.New(connectCtx, cfg.Database.URL)
		cancel()
		if err != nil {
			return errors.Wrap(err, "connecting to database")
		}
		defer database.Close()

		if *migrate {
			if err := database.Migrate(ctx); err != nil {
				return err
			}
			zlog.Info().Msg("Database schema applied")
		}
		serverCfg.Database = database
	} else {
		zlog.Warn().Msg("DATABASE_URL not set, sessions are kept in memory and history is disabled")
	}

	if cfg.HasLastFM() {
		client, err := lastfm.NewClient(cfg.LastFM.APIKey)
		if err != nil {
			return errors.Wrap(err, "creating Last.fm client")
		}
		serverCfg.LastFM = client
		zlog.Info().Msg("Last.fm tag charts enabled")
	}

	server, err := web.NewServer(serverCfg)
	if err != nil {
		return errors.Wrap(err, "creating server")
	}

	zlog.Info().
		Str("env", cfg.Env).
		Str("redirect_uri", cfg.Spotify.RedirectURI).
		Msg("Find That Song ready")

	return server.Run()
}
