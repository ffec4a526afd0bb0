package session

import (
	"fmt"

	"github.com/matheus3301/tradechat/internal/config"
)

const DefaultSessionName = "main"

// Resolve picks the session name and validates it. The --session flag wins,
// then TCHAT_DEFAULT_SESSION or default_session from config.toml, then
// DefaultSessionName.
func Resolve(flagOverride string) (string, error) {
	name, source := DefaultSessionName, "default"
	if flagOverride != "" {
		name, source = flagOverride, "--session"
	} else if cfg, err := config.LoadEffective(ConfigPath()); err == nil && cfg.DefaultSession != "" {
		name, source = cfg.DefaultSession, "default_session"
	}
	if err := ValidateName(name); err != nil {
		return "", fmt.Errorf("%s: %w", source, err)
	}
	return name, nil
}
