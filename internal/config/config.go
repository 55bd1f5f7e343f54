package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	ServerURL   string
	ChannelURL  string
	InspectAddr string
	LogLevel    zapcore.Level
	PlayerName  string

	RequestTimeout    time.Duration
	LobbyInterval     time.Duration
	PlacementInterval time.Duration
	BattleInterval    time.Duration
	PollMax           time.Duration

	ReconnectAttempts int
	Heartbeat         time.Duration
	BackoffInitial    time.Duration
	BackoffMax        time.Duration
}

// Load reads an optional .env file from the working directory, then the
// environment. Variables already set in the environment win over the file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from a lookup function shaped like os.LookupEnv.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	p := parser{lookup: lookup}
	cfg := Config{
		ServerURL:   strings.TrimRight(p.str("SEABATTLE_SERVER_URL", "http://localhost:5000"), "/"),
		InspectAddr: "127.0.0.1:8090",
		PlayerName:  p.str("SEABATTLE_PLAYER_NAME", ""),

		RequestTimeout:    p.duration("SEABATTLE_REQUEST_TIMEOUT", 8*time.Second),
		LobbyInterval:     p.duration("SEABATTLE_POLL_LOBBY", 2*time.Second),
		PlacementInterval: p.duration("SEABATTLE_POLL_PLACEMENT", 2*time.Second),
		BattleInterval:    p.duration("SEABATTLE_POLL_BATTLE", time.Second),
		PollMax:           p.duration("SEABATTLE_POLL_MAX", 30*time.Second),

		ReconnectAttempts: p.integer("SEABATTLE_RECONNECT_ATTEMPTS", 5),
		Heartbeat:         p.duration("SEABATTLE_HEARTBEAT", 30*time.Second),
		BackoffInitial:    p.duration("SEABATTLE_BACKOFF_INITIAL", time.Second),
		BackoffMax:        p.duration("SEABATTLE_BACKOFF_MAX", 5*time.Second),
	}
	// an explicitly empty address turns the inspector off
	if v, ok := lookup("SEABATTLE_INSPECT_ADDR"); ok {
		cfg.InspectAddr = strings.TrimSpace(v)
	}

	if lvl := p.str("SEABATTLE_LOG_LEVEL", "info"); lvl != "" {
		l, err := zapcore.ParseLevel(lvl)
		if err != nil {
			p.fail("SEABATTLE_LOG_LEVEL", lvl, err)
		}
		cfg.LogLevel = l
	}

	if _, err := url.ParseRequestURI(cfg.ServerURL); err != nil {
		p.fail("SEABATTLE_SERVER_URL", cfg.ServerURL, err)
	}
	cfg.ChannelURL = p.str("SEABATTLE_CHANNEL_URL", "")
	if cfg.ChannelURL == "" {
		u, err := ChannelURLFor(cfg.ServerURL)
		if err != nil {
			p.fail("SEABATTLE_SERVER_URL", cfg.ServerURL, err)
		}
		cfg.ChannelURL = u
	}

	if cfg.ReconnectAttempts < 1 {
		p.fail("SEABATTLE_RECONNECT_ATTEMPTS", strconv.Itoa(cfg.ReconnectAttempts), errors.New("must be at least 1"))
	}
	if cfg.BackoffMax < cfg.BackoffInitial {
		p.fail("SEABATTLE_BACKOFF_MAX", cfg.BackoffMax.String(), errors.New("below SEABATTLE_BACKOFF_INITIAL"))
	}

	if len(p.errs) > 0 {
		return Config{}, errors.Join(p.errs...)
	}
	return cfg, nil
}

// ChannelURLFor derives the push endpoint from the REST base URL.
func ChannelURLFor(server string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String(), nil
}

func NewLogger(level zapcore.Level) (*zap.Logger, error) {
	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	// stdout belongs to the terminal driver
	zc.OutputPaths = []string{"stderr"}
	zc.DisableStacktrace = level > zapcore.DebugLevel
	return zc.Build()
}

type parser struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (p *parser) fail(key, val string, err error) {
	p.errs = append(p.errs, fmt.Errorf("%s=%q: %w", key, val, err))
}

func (p *parser) str(key, def string) string {
	if v, ok := p.lookup(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	if d <= 0 {
		p.fail(key, v, errors.New("must be positive"))
		return def
	}
	return d
}

func (p *parser) integer(key string, def int) int {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return n
}
