// Package config handles configuration loading for wanotify.
//
// # Overview
//
// Configuration is loaded from a YAML file with environment variable
// expansion. A missing file is fine; every field has a default that
// matches the original deployment.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from WANOTIFY_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/wanotify/config.yaml
//  3. ~/.config/wanotify/config.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	notifier:
//	  default_recipient: "${WHATSAPP_NUMBER}"
//
// Syntax: ${VAR_NAME}
//
// Two variables additionally override the file after parsing, for
// compatibility with existing process managers: WHATSAPP_PORT (listen
// port) and WHATSAPP_NUMBER (default recipient).
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	notifier:
//	  reconnect_delay: "10s"
//	  retry_delay_unknown: "15s"
//	  logout_grace: "1s"
//	  logout_restart_delay: "3s"
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "localhost:3001"
//
// Session storage:
//
//	session:
//	  dir: "whatsapp_auth"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
package config
