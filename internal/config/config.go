// Package config provides configuration types for the bridge.
//
// The bridge is deliberately stateless: there is no session store, no
// persistence, and no policy engine to configure. Configuration covers the
// HTTP listener, the call correlation bounds, and the upstream the
// downstream handler forwards to.
package config

// Config is the top-level configuration for the bridge.
type Config struct {
	// Server configures the HTTP listener and the call lifecycle bounds.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Upstream configures the JSON-RPC server the bridge forwards to.
	// Exactly one of HTTP URL or subprocess command must be specified.
	Upstream UpstreamConfig `yaml:"upstream" mapstructure:"upstream"`

	// DevMode enables development features (verbose logging, etc).
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// ServerConfig configures the HTTP server.
// Only plain HTTP is supported (use a reverse proxy for TLS).
type ServerConfig struct {
	// HTTPAddr is the address to listen on (e.g., "127.0.0.1:8080", "0.0.0.0:8080").
	// Defaults to "127.0.0.1:8080" (localhost only) if empty.
	HTTPAddr string `yaml:"http_addr" mapstructure:"http_addr" validate:"omitempty,hostname_port"`

	// Path is the URL path the RPC endpoint is served on.
	// Defaults to "/rpc" if empty.
	Path string `yaml:"path" mapstructure:"path" validate:"omitempty,rpc_path"`

	// CallTimeout bounds how long a request-bearing call waits for its
	// responses before answering with what it has (e.g., "30s", "1m").
	// Defaults to "30s" if not specified.
	CallTimeout string `yaml:"call_timeout" mapstructure:"call_timeout" validate:"omitempty"`

	// MaxBodyBytes caps the request payload size in bytes.
	// Defaults to 4194304 (4 MiB) if not specified.
	MaxBodyBytes int64 `yaml:"max_body_bytes" mapstructure:"max_body_bytes" validate:"omitempty,min=1"`

	// LogLevel sets the minimum log level.
	// Valid values: "debug", "info", "warn", "error".
	// Defaults to "info" if empty. DevMode=true overrides to "debug".
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	// AllowedOrigins lists origins allowed past DNS rebinding protection.
	// When empty, all requests carrying an Origin header are blocked.
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// UpstreamConfig configures the upstream JSON-RPC server.
// Exactly one of HTTP or Command must be specified (mutually exclusive).
type UpstreamConfig struct {
	// HTTP is the URL of a remote JSON-RPC server (e.g., "http://localhost:3000/rpc").
	HTTP string `yaml:"http" mapstructure:"http" validate:"omitempty,url"`

	// Command is the path to a JSON-RPC server executable to spawn as a subprocess.
	Command string `yaml:"command" mapstructure:"command"`

	// Args are the arguments to pass to the subprocess command.
	Args []string `yaml:"args" mapstructure:"args"`

	// HTTPTimeout is the timeout for HTTP requests to upstream (e.g., "30s", "1m").
	// Defaults to "30s" if not specified.
	HTTPTimeout string `yaml:"http_timeout" mapstructure:"http_timeout" validate:"omitempty"`

	// AuthTokenName is the name of the credential resolved through the
	// lookup chain (CLI arguments, then environment) and attached as a
	// bearer token to upstream HTTP requests. Empty means no credential.
	AuthTokenName string `yaml:"auth_token_name" mapstructure:"auth_token_name"`
}

// SetDefaults applies sensible default values to the configuration.
func (c *Config) SetDefaults() {
	// Server defaults — bind to localhost only for security.
	// Users who need network access must explicitly set http_addr: ":8080" or "0.0.0.0:8080".
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = "127.0.0.1:8080"
	}
	if c.Server.Path == "" {
		c.Server.Path = "/rpc"
	}
	if c.Server.CallTimeout == "" {
		c.Server.CallTimeout = "30s"
	}
	if c.Server.MaxBodyBytes == 0 {
		c.Server.MaxBodyBytes = 4 << 20
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}

	// Upstream defaults
	if c.Upstream.HTTPTimeout == "" {
		c.Upstream.HTTPTimeout = "30s"
	}
}
