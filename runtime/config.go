package runtime

import (
	"os"

	"go.uber.org/zap"
)

// Config collects the handful of knobs a host sets when constructing a
// Runtime. There is deliberately no config-file format (YAML/TOML/etc):
// host process configuration is a plain environment-variable read, not a
// parsed file.
type Config struct {
	Logger *zap.Logger

	// HTTPAddr, if non-empty, is where httpapi.New's engine should
	// listen when the embedding cmd wires it up. Runtime itself never
	// starts a listener.
	HTTPAddr string

	// AdminToken gates the admin HTTP surface's BearerAuth middleware.
	// An empty token disables auth entirely — only acceptable for local
	// development, never production.
	AdminToken string

	// RedisAddr holds an optional Redis address for a
	// queuebackend/redisqueue.Backend. Nothing in this module reads it,
	// cmd/pnixd included; the Runtime has no Redis dependency unless a
	// caller builds a Backend and wires it in with
	// Kernel().Queues.CreateDistributed.
	RedisAddr string
}

// Option mutates a Config being built up by New.
type Option func(*Config)

// WithLogger overrides the default zap.NewDevelopment-backed logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *Config) { c.Logger = log }
}

// WithHTTPAddr sets the admin HTTP listen address.
func WithHTTPAddr(addr string) Option {
	return func(c *Config) { c.HTTPAddr = addr }
}

// WithAdminToken sets the admin API bearer token.
func WithAdminToken(token string) Option {
	return func(c *Config) { c.AdminToken = token }
}

// WithRedisAddr sets the optional distributed queue backend address.
func WithRedisAddr(addr string) Option {
	return func(c *Config) { c.RedisAddr = addr }
}

// envDefaults folds PNIX_HTTP_ADDR / PNIX_ADMIN_TOKEN / PNIX_REDIS_ADDR
// into cfg wherever the field hasn't already been set by an Option. New
// calls this for every Runtime it builds; there is no option to skip it.
func envDefaults(cfg *Config) {
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = os.Getenv("PNIX_HTTP_ADDR")
	}
	if cfg.AdminToken == "" {
		cfg.AdminToken = os.Getenv("PNIX_ADMIN_TOKEN")
	}
	if cfg.RedisAddr == "" {
		cfg.RedisAddr = os.Getenv("PNIX_REDIS_ADDR")
	}
}
