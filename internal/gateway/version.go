package gateway

// Build information, injected at link time via
// -ldflags "-X .../internal/gateway.Version=v1.2.3".
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)
