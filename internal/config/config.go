// Package config defines the fully-populated configuration the edge server
// core consumes. Reading flags or environment variables is not this
// package's job; cmd/edge-server is the only place that actually touches
// os.Getenv, and it does so before constructing a Config value.
package config

// Config is handed to the core, already populated, at startup.
type Config struct {
	// HTTPPort is the listen port for plain HTTP. Default 8080.
	HTTPPort int
	// HTTPSPort is the listen port for TLS HTTP. Default 58080.
	HTTPSPort int
	// WSPort is the listen port for plain WebSocket. Default 33334.
	WSPort int
	// WSSPort is the listen port for TLS WebSocket.
	WSSPort int

	// CertPath and KeyPath locate the TLS material. If either is empty,
	// the matching TLS listener (HTTPS, WSS) is not started.
	CertPath string
	KeyPath  string

	// Threads is the reactor worker count. 0 means hardware concurrency.
	Threads int

	// PlacesAPIKey is the upstream Places credential. If empty, the Places
	// routes respond 400.
	PlacesAPIKey string

	// HistoryDir is the root for append-only chat logs. If empty, history
	// is disabled (append and read become no-ops).
	HistoryDir string

	// RequireAuth is reserved; unused by the current protocol.
	RequireAuth bool

	// LogLevel and LogPretty configure the zerolog sink (e.g. "debug",
	// "info"; pretty console output vs JSON).
	LogLevel  string
	LogPretty bool
}

// Default returns a Config populated with the core's baseline defaults.
func Default() Config {
	return Config{
		HTTPPort:  8080,
		HTTPSPort: 58080,
		WSPort:    33334,
		WSSPort:   0,
		Threads:   0,
		LogLevel:  "info",
	}
}

// HistoryEnabled reports whether the history subsystem should persist
// anything at all.
func (c Config) HistoryEnabled() bool {
	return c.HistoryDir != ""
}

// PlacesEnabled reports whether the Places proxy routes should be served.
func (c Config) PlacesEnabled() bool {
	return c.PlacesAPIKey != ""
}

// TLSEnabled reports whether cert/key material has been configured, i.e.
// whether the HTTPS and WSS listeners should be started at all.
func (c Config) TLSEnabled() bool {
	return c.CertPath != "" && c.KeyPath != ""
}
