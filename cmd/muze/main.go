// Package main provides the Muze CLI application entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"

	"muze/internal/auth"
	"muze/internal/channel"
	"muze/internal/core"
	"muze/internal/device"
	"muze/internal/flood"
	httpserver "muze/internal/http"
	"muze/internal/i18n"
	"muze/internal/playlist"
	"muze/internal/spotify"
	"muze/internal/store"
)

const (
	defaultServerHost = "0.0.0.0"
	envPrefix         = "MUZE"
)

var (
	cfgFile string
	config  *core.Config
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "muze",
	Short: "Muze - steerable music streaming session",
	Long: `Muze plays recommendations from a remote recommendation server on a Spotify
device and lets listeners steer the session by button or by voice.`,
	RunE: runMuze,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "log format (json, console)")
	rootCmd.PersistentFlags().String("log-file", "", "also write logs to this rotating file")
	rootCmd.PersistentFlags().String("spotify-client-id", "", "Spotify client ID")
	rootCmd.PersistentFlags().String("spotify-redirect-url", "", "OAuth redirect URL (default derived from server host and port)")
	rootCmd.PersistentFlags().String("spotify-playlist-id", "", "Playlist that 'add song' writes to")
	rootCmd.PersistentFlags().String("spotify-device-name", core.DefaultDeviceName, "Name of the playback device to use")
	rootCmd.PersistentFlags().String("spotify-api-base-url", "https://api.spotify.com/v1", "Spotify Web API base URL")
	rootCmd.PersistentFlags().String("spotify-token", "", "Pre-seeded bearer token, skips the login redirect")
	rootCmd.PersistentFlags().String("channel-url", "ws://127.0.0.1:5000/ws", "Recommendation server websocket URL")
	rootCmd.PersistentFlags().Int("channel-write-timeout-secs", core.DefaultChannelTimeoutSecs, "Recommendation channel send timeout in seconds")
	rootCmd.PersistentFlags().Int("channel-reconnect-delay-secs", core.DefaultReconnectDelaySecs, "Delay between recommendation channel reconnects in seconds")
	rootCmd.PersistentFlags().String("server-host", defaultServerHost, "HTTP server host")
	rootCmd.PersistentFlags().Int("server-port", core.DefaultServerPort, "HTTP server port")
	supportedLangs := strings.Join(i18n.GetSupportedLanguages(), ", ")
	rootCmd.PersistentFlags().String("language", i18n.DefaultLanguage, fmt.Sprintf("Listener language (%s)", supportedLangs))
	rootCmd.PersistentFlags().Int("poll-interval-ms", core.DefaultPollIntervalMs, "Player state poll interval in milliseconds")
	rootCmd.PersistentFlags().Int("device-timeout-secs", core.DefaultDeviceTimeoutSecs, "Playback device call timeout in seconds")
	rootCmd.PersistentFlags().Int("flood-limit-per-minute", core.DefaultFloodLimitPerMinute, "Maximum intents per client per minute (0 disables)")
	rootCmd.PersistentFlags().Int("saved-tracks-capacity", core.DefaultSavedTracksCapacity, "Number of saved track URIs remembered for duplicate detection")
	rootCmd.PersistentFlags().Bool("generate-env-example", false, "Generate .env.example file from current configuration and exit")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bind flags: %v\n", err)
		os.Exit(1)
	}
}

func initConfig() {
	envFile := ".env"
	if cfgFile != "" {
		envFile = cfgFile
	}

	if err := gotenv.Load(envFile); err != nil {
		// A missing .env is fine
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Error loading .env file: %v\n", err)
		}
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	config = buildConfig()
	logger = buildLogger(&config.Log)
}

func buildConfig() *core.Config {
	cfg := core.DefaultConfig()

	configureServer(cfg)
	configureSpotify(cfg)
	configureChannel(cfg)
	configureApp(cfg)

	return cfg
}

func configureServer(cfg *core.Config) {
	cfg.Server.Host = viper.GetString("server-host")
	if cfg.Server.Host == "" {
		cfg.Server.Host = defaultServerHost
	}
	cfg.Server.Port = viper.GetInt("server-port")

	cfg.Log.Level = viper.GetString("log-level")
	cfg.Log.Format = viper.GetString("log-format")
	cfg.Log.FilePath = viper.GetString("log-file")
}

func configureSpotify(cfg *core.Config) {
	cfg.Spotify.ClientID = viper.GetString("spotify-client-id")
	cfg.Spotify.RedirectURL = viper.GetString("spotify-redirect-url")
	cfg.Spotify.PlaylistID = viper.GetString("spotify-playlist-id")
	cfg.Spotify.DeviceName = viper.GetString("spotify-device-name")
	cfg.Spotify.APIBaseURL = strings.TrimSuffix(viper.GetString("spotify-api-base-url"), "/")
	cfg.Spotify.Token = viper.GetString("spotify-token")

	if cfg.Spotify.RedirectURL == "" {
		serverHost := cfg.Server.Host
		if serverHost == defaultServerHost {
			serverHost = "127.0.0.1"
		}
		cfg.Spotify.RedirectURL = fmt.Sprintf("http://%s:%d/callback", serverHost, cfg.Server.Port)
	}
}

func configureChannel(cfg *core.Config) {
	cfg.Channel.URL = viper.GetString("channel-url")
	cfg.Channel.WriteTimeout = secondsOrDefault("channel-write-timeout-secs", core.DefaultChannelTimeoutSecs)
	cfg.Channel.ReconnectDelay = secondsOrDefault("channel-reconnect-delay-secs", core.DefaultReconnectDelaySecs)
}

func configureApp(cfg *core.Config) {
	cfg.App.Language = viper.GetString("language")
	if !i18n.IsSupported(cfg.App.Language) {
		fmt.Fprintf(os.Stderr, "Warning: Unsupported language '%s', falling back to '%s'. Supported languages: %s\n",
			cfg.App.Language, i18n.DefaultLanguage, strings.Join(i18n.GetSupportedLanguages(), ", "))
		cfg.App.Language = i18n.DefaultLanguage
	}

	pollMs := viper.GetInt("poll-interval-ms")
	if pollMs <= 0 {
		pollMs = core.DefaultPollIntervalMs
	}
	cfg.App.PollInterval = time.Duration(pollMs) * time.Millisecond
	cfg.App.DeviceTimeout = secondsOrDefault("device-timeout-secs", core.DefaultDeviceTimeoutSecs)

	cfg.App.FloodLimitPerMinute = viper.GetInt("flood-limit-per-minute")
	if cfg.App.FloodLimitPerMinute < 0 {
		cfg.App.FloodLimitPerMinute = core.DefaultFloodLimitPerMinute
	}

	cfg.App.SavedTracksCapacity = viper.GetInt("saved-tracks-capacity")
	if cfg.App.SavedTracksCapacity <= 0 {
		cfg.App.SavedTracksCapacity = core.DefaultSavedTracksCapacity
	}
}

func secondsOrDefault(key string, fallback int) time.Duration {
	secs := viper.GetInt(key)
	if secs <= 0 {
		fmt.Printf("Warning: Invalid %s (%d), using default (%d)\n", key, secs, fallback)
		secs = fallback
	}
	return time.Duration(secs) * time.Second
}

func buildLogger(cfg *core.LogConfig) *zap.Logger {
	var zapLevel zapcore.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if strings.EqualFold(cfg.Format, "console") {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	logCore := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), zapLevel)
	if cfg.FilePath != "" {
		fileCore := zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderConfig),
			zapcore.AddSync(&lumberjack.Logger{
				Filename:   cfg.FilePath,
				MaxSize:    100, // MB
				MaxBackups: 3,
				MaxAge:     28, // days
				Compress:   true,
			}),
			zapLevel,
		)
		logCore = zapcore.NewTee(logCore, fileCore)
	}

	return zap.New(logCore, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
}

func runMuze(cmd *cobra.Command, _ []string) error {
	if viper.GetBool("generate-env-example") {
		return generateEnvExample(cmd)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting Muze",
		zap.String("deviceName", config.Spotify.DeviceName),
		zap.String("channelURL", config.Channel.URL),
		zap.String("language", config.App.Language),
		zap.Bool("playlistEnabled", config.Spotify.PlaylistID != ""))

	if err := validateConfig(config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	svcs := initializeServices()
	return runServices(ctx, svcs)
}

type services struct {
	hub          *httpserver.Hub
	httpServer   *httpserver.Server
	channel      *channel.Client
	orchestrator *core.Orchestrator
	floodgate    *flood.Floodgate
}

func initializeServices() *services {
	sessionID := uuid.NewString()

	tokens := auth.NewStore(&config.Spotify, logger.Named("auth"))
	sdk := spotify.NewClient(&config.Spotify, config.App.PollInterval, logger.Named("spotify"))
	playbackDevice := device.NewAdapter(sdk, config.App.DeviceTimeout, config.App.PollInterval, logger.Named("device"))
	recommendations := channel.NewClient(&config.Channel, sessionID, logger.Named("channel"))
	mutator := playlist.NewMutator(config.Spotify.APIBaseURL, tokens, config.App.DeviceTimeout, logger.Named("playlist"))
	saved := store.NewSavedTracks(config.App.SavedTracksCapacity, store.DefaultFalsePositiveRate)
	floodgate := flood.New(config.App.FloodLimitPerMinute)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := httpserver.NewMetrics(registry)
	httpserver.RegisterSavedTracks(registry, saved.Size)

	localizer := i18n.NewLocalizer(config.App.Language)
	logger.Info("Listener language", zap.String("language", localizer.Language()))
	hub := httpserver.NewHub(sessionID, localizer, floodgate, metrics, logger.Named("hub"))
	httpServer := httpserver.NewServer(&config.Server, tokens, hub, registry, logger.Named("http"))

	orchestrator := core.NewOrchestrator(config, core.NewSession(sessionID), tokens, playbackDevice,
		recommendations, mutator, hub, saved, logger.Named("orchestrator"))
	orchestrator.SetMetrics(metrics)

	return &services{
		hub:          hub,
		httpServer:   httpServer,
		channel:      recommendations,
		orchestrator: orchestrator,
		floodgate:    floodgate,
	}
}

func runServices(ctx context.Context, svcs *services) error {
	defer svcs.floodgate.Stop()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return svcs.httpServer.Start(gCtx)
	})

	g.Go(func() error {
		return svcs.hub.Run(gCtx)
	})

	g.Go(func() error {
		return svcs.channel.Run(gCtx)
	})

	g.Go(func() error {
		return svcs.orchestrator.Run(gCtx, svcs.hub.Intents())
	})

	logger.Info("Muze started successfully",
		zap.String("httpAddr", fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)))

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Muze stopped with error", zap.Error(err))
		return err
	}

	logger.Info("Muze stopped gracefully")
	return nil
}

func validateConfig(cfg *core.Config) error {
	if err := validateSpotifyConfig(cfg); err != nil {
		return err
	}

	return validateChannelConfig(cfg)
}

func validateSpotifyConfig(cfg *core.Config) error {
	if cfg.Spotify.ClientID == "" && cfg.Spotify.Token == "" {
		return fmt.Errorf("spotify client ID is required unless a token is provided")
	}

	if _, err := url.ParseRequestURI(cfg.Spotify.RedirectURL); err != nil {
		return fmt.Errorf("invalid spotify redirect URL %q: %w", cfg.Spotify.RedirectURL, err)
	}

	if cfg.Spotify.PlaylistID == "" {
		logger.Warn("No playlist configured, 'add song' will be unavailable")
	}

	return nil
}

func validateChannelConfig(cfg *core.Config) error {
	u, err := url.Parse(cfg.Channel.URL)
	if err != nil {
		return fmt.Errorf("invalid channel URL %q: %w", cfg.Channel.URL, err)
	}

	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("channel URL must use ws or wss, got %q", u.Scheme)
	}

	return nil
}
