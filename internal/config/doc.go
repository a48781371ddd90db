// Package config loads and validates the wsecho server configuration.
//
// Settings are layered; each source overrides the one before it:
//
//	defaults -> config.yaml -> .env -> WSECHO_* environment -> command-line flags
//
// Flags are applied by the cmd package after Load returns, and only for flags
// the user actually set.
//
// # Configuration File Location
//
// Without --config the file is looked up in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/wsecho/config.yaml or $HOME/.config/wsecho/config.yaml
//   - macOS: $HOME/.config/wsecho/config.yaml
//   - Windows: %LOCALAPPDATA%\wsecho\config.yaml
//
// A missing default file is not an error.
//
// # Environment Variables
//
// Variable names are the env tags on Config prefixed with WSECHO_, for example
// WSECHO_ENGINE, WSECHO_MAX_MESSAGE_BYTES, WSECHO_FEED_URL, WSECHO_MDNS_ENABLED
// and WSECHO_LOG_LEVEL. List values such as WSECHO_ALLOWED_ORIGINS are
// comma-separated; durations use Go syntax ("90s", "2m").
//
// # Usage Example
//
//	cfg, err := config.Load(configPath)
//	if err != nil {
//	    return err
//	}
//	if err := cfg.Validate(); err != nil {
//	    return fmt.Errorf("invalid configuration:\n%w", err)
//	}
package config
