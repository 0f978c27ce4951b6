package core

import (
	"time"

	"muze/internal/i18n"
)

// Configuration defaults shared by the CLI and tests.
const (
	DefaultServerPort          = 8080
	DefaultPollIntervalMs      = 1000
	DefaultDeviceTimeoutSecs   = 10
	DefaultChannelTimeoutSecs  = 10
	DefaultReconnectDelaySecs  = 3
	DefaultFloodLimitPerMinute = 30
	DefaultSavedTracksCapacity = 1000
	DefaultDeviceName          = "Muze"
)

// DefaultScopes are the authorization scopes requested at login.
var DefaultScopes = []string{
	"streaming",
	"user-read-playback-state",
	"user-modify-playback-state",
	"user-read-email",
	"user-read-private",
	"playlist-modify-public",
	"playlist-modify-private",
}

type Config struct {
	Spotify SpotifyConfig
	Channel ChannelConfig
	Server  ServerConfig
	Log     LogConfig
	App     AppConfig
}

type SpotifyConfig struct {
	ClientID    string
	RedirectURL string
	Scopes      []string
	PlaylistID  string
	DeviceName  string
	APIBaseURL  string
	// Token pre-seeds the token store, skipping the login redirect.
	Token string
}

type ChannelConfig struct {
	URL            string
	WriteTimeout   time.Duration
	ReconnectDelay time.Duration
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type LogConfig struct {
	Level    string
	Format   string
	FilePath string
}

type AppConfig struct {
	Language            string
	PollInterval        time.Duration
	DeviceTimeout       time.Duration
	FloodLimitPerMinute int
	SavedTracksCapacity int
}

func DefaultConfig() *Config {
	return &Config{
		Spotify: SpotifyConfig{
			RedirectURL: "http://127.0.0.1:8080/callback",
			Scopes:      append([]string(nil), DefaultScopes...),
			DeviceName:  DefaultDeviceName,
			APIBaseURL:  "https://api.spotify.com/v1",
		},
		Channel: ChannelConfig{
			URL:            "ws://127.0.0.1:5000/ws",
			WriteTimeout:   DefaultChannelTimeoutSecs * time.Second,
			ReconnectDelay: DefaultReconnectDelaySecs * time.Second,
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         DefaultServerPort,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		App: AppConfig{
			Language:            i18n.DefaultLanguage,
			PollInterval:        DefaultPollIntervalMs * time.Millisecond,
			DeviceTimeout:       DefaultDeviceTimeoutSecs * time.Second,
			FloodLimitPerMinute: DefaultFloodLimitPerMinute,
			SavedTracksCapacity: DefaultSavedTracksCapacity,
		},
	}
}
