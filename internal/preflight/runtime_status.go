package preflight

import (
	"context"
	"net"
	"strings"

	"emotrack/internal/config"
)

// APIBaseURL derives the client URL for the configured bind address. Wildcard
// hosts are rewritten to loopback.
func APIBaseURL(cfg *config.Config) string {
	if cfg == nil {
		return ""
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return ""
	}
	host, port, err := net.SplitHostPort(bind)
	if err != nil {
		return ""
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

// CheckDaemonFromConfig evaluates daemon API status from config and connectivity.
func CheckDaemonFromConfig(ctx context.Context, cfg *config.Config) Result {
	const name = "Daemon API"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	base := APIBaseURL(cfg)
	if base == "" {
		return Result{Name: name, Detail: "Disabled (api_bind is empty)"}
	}
	return CheckDaemonAPI(ctx, base, cfg.Paths.APIToken)
}
