package config

import (
	"fmt"
	"strings"
)

// Validate rejects configurations the daemon cannot start with.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil")
	}
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		return fmt.Errorf("config: RPCAddress must not be empty")
	}
	if cfg.RPCRequestsPerMinute < 0 || cfg.RPCBurst < 0 {
		return fmt.Errorf("config: RPC rate limits must not be negative")
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		return fmt.Errorf("config: DataDir must not be empty")
	}
	if prefix := strings.TrimSpace(cfg.AddressPrefix); prefix != "" {
		if len(prefix) > 83 {
			return fmt.Errorf("config: AddressPrefix too long")
		}
		for _, r := range prefix {
			if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
				return fmt.Errorf("config: AddressPrefix %q must be lower-case alphanumeric", prefix)
			}
		}
	}
	if cfg.LogFile.MaxSizeMB < 0 || cfg.LogFile.MaxBackups < 0 || cfg.LogFile.MaxAgeDays < 0 {
		return fmt.Errorf("config: LogFile limits must not be negative")
	}
	if cfg.JWT.ClockSkewSeconds < 0 {
		return fmt.Errorf("config: JWT.ClockSkewSeconds must not be negative")
	}
	if (cfg.Telemetry.Traces || cfg.Telemetry.Metrics) && strings.TrimSpace(cfg.Telemetry.Endpoint) == "" {
		return fmt.Errorf("config: Telemetry.Endpoint required when exporting traces or metrics")
	}
	return nil
}
