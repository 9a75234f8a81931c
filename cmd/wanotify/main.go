// ABOUTME: Entry point for the wanotify WhatsApp notification server.
// ABOUTME: Runs the session manager and HTTP surface for the booking backend.

package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/mdp/qrterminal/v3"

	"github.com/raissanails/wanotify/internal/config"
	"github.com/raissanails/wanotify/internal/gateway"
	"github.com/raissanails/wanotify/internal/notifier"
	"github.com/raissanails/wanotify/internal/session"
	"github.com/raissanails/wanotify/internal/transport"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                             _   _  __
 __      ____ _ _ __   ___ | |_(_)/ _|_   _
 \ \ /\ / / _' | '_ \ / _ \| __| | |_| | | |
  \ V  V / (_| | | | | (_) | |_| |  _| |_| |
   \_/\_/ \__,_|_| |_|\___/ \__|_|_|  \__, |
                                      |___/
`

// getConfigPath returns the path to the config file.
// Priority: WANOTIFY_CONFIG env var > XDG_CONFIG_HOME/wanotify/config.yaml > ~/.config/wanotify/config.yaml
func getConfigPath() string {
	if envPath := os.Getenv("WANOTIFY_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "wanotify", "config.yaml")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: wanotify <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve                      Start the notification server")
		fmt.Println("  init                       Create a new config file interactively")
		fmt.Println("  health                     Check server health")
		fmt.Println("  status                     Show WhatsApp session status")
		fmt.Println("  send --to NUM MESSAGE      Send a message through a running server")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "health":
		err = runHealth(ctx)
	case "status":
		err = runStatus(ctx)
	case "send":
		err = runSend(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	// Version info
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)

	// Startup info
	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:   %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:     %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Session:  %s\n", cfg.Session.Dir)
	fmt.Println()

	logger.Info("starting wanotify",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"session_dir", cfg.Session.Dir,
	)

	st, err := session.NewStore(cfg.Session.Dir)
	if err != nil {
		return fmt.Errorf("opening session store: %w", err)
	}

	tr, err := transport.NewMeow(ctx, st, logger.With("component", "transport"), cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("creating transport: %w", err)
	}

	mgr := notifier.New(notifier.Options{
		Store:     st,
		Transport: tr,
		Policy: notifier.Policy{
			ReconnectDelay:     cfg.Notifier.ReconnectDelay,
			RetryDelayUnknown:  cfg.Notifier.RetryDelayUnknown,
			LogoutGrace:        cfg.Notifier.LogoutGrace,
			LogoutRestartDelay: cfg.Notifier.LogoutRestartDelay,
		},
		Logger:            logger.With("component", "notifier"),
		SendTimeout:       cfg.Notifier.SendTimeout,
		SendRatePerMinute: cfg.Notifier.SendRatePerMinute,
	})

	gw := gateway.New(cfg, mgr, logger)

	go renderTerminalQR(ctx, mgr)

	errCh := make(chan error, 2)
	go func() { errCh <- mgr.Run(ctx) }()
	go func() { errCh <- gw.Run(ctx) }()

	// Both components exit on ctx cancel; the first hard failure wins.
	var firstErr error
	for i := 0; i < 2; i++ {
		if err := <-errCh; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// renderTerminalQR mirrors the live pairing challenge onto the terminal so
// headless-but-attached operators can pair without opening /qrcode.
func renderTerminalQR(ctx context.Context, mgr *notifier.Manager) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var last string
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			code, ok := mgr.PairingChallenge()
			if !ok || code == last {
				continue
			}
			last = code
			fmt.Println()
			fmt.Println("  Scan with WhatsApp (Linked Devices):")
			qrterminal.GenerateHalfBlock(code, qrterminal.L, os.Stdout)
			fmt.Println()
		}
	}
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	// Format timestamp
	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	// Colorize level
	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	// Print message
	buf.WriteString(r.Message)

	// Print handler-level attrs first (from WithAttrs)
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	// Print record attrs
	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}

func runHealth(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/health", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}

func runStatus(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/status", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("status check failed: %w", err)
	}
	defer resp.Body.Close()

	var status gateway.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return fmt.Errorf("decoding status: %w", err)
	}

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	switch {
	case status.Connected:
		green.Println("connected")
	case status.HasQR:
		yellow.Println("waiting for QR scan")
		fmt.Printf("open http://%s/qrcode to pair\n", cfg.Server.HTTPAddr)
	default:
		yellow.Println("not connected")
	}
	fmt.Println(status.Message)
	return nil
}

// runSend dispatches one message through a running server. Supports both
// "--to value" and "--to=value"; the recipient defaults to the configured
// notification number.
func runSend(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	recipient := cfg.Notifier.DefaultRecipient
	var parts []string
	args := os.Args[2:]
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--to" || arg == "-t":
			if i+1 >= len(args) {
				return fmt.Errorf("--to requires a value")
			}
			recipient = args[i+1]
			i++
		case strings.HasPrefix(arg, "--to="):
			recipient = strings.TrimPrefix(arg, "--to=")
		case strings.HasPrefix(arg, "-"):
			return fmt.Errorf("unknown flag: %s", arg)
		default:
			parts = append(parts, arg)
		}
	}

	if recipient == "" {
		return fmt.Errorf("--to flag is required (no default recipient configured)")
	}
	message := strings.TrimSpace(strings.Join(parts, " "))
	if message == "" {
		return fmt.Errorf("message text is required")
	}

	body, err := json.Marshal(gateway.SendMessageRequest{PhoneNumber: recipient, Message: message})
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	url := fmt.Sprintf("http://%s/send-message", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("send failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr gateway.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("send rejected: %s", apiErr.Error)
		}
		return fmt.Errorf("send rejected: status %d", resp.StatusCode)
	}

	var result gateway.SendMessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("  ✓ Sent to %s (id %s)\n", result.PhoneNumber, result.MessageID)
	return nil
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("wanotify configuration setup")
	fmt.Println("============================")
	fmt.Println()

	defaultConfigPath := getConfigPath()

	// Output filename
	outputFile := prompt(reader, "Config file path", defaultConfigPath)

	// Check if file exists
	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if strings.ToLower(overwrite) != "yes" && strings.ToLower(overwrite) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	// Server configuration
	fmt.Println("\n--- Server Configuration ---")
	httpAddr := prompt(reader, "HTTP address", "localhost:3001")

	// Session
	fmt.Println("\n--- Session Configuration ---")
	sessionDir := prompt(reader, "Credential directory", "whatsapp_auth")

	// Notifier
	fmt.Println("\n--- Notifier Configuration ---")
	defaultRecipient := prompt(reader, "Default notification number (optional)", "")

	// Logging
	fmt.Println("\n--- Logging Configuration ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	// Generate config
	var cfg strings.Builder
	cfg.WriteString("# wanotify configuration\n")
	cfg.WriteString("# Generated by wanotify init\n\n")

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  http_addr: \"%s\"\n", httpAddr))
	cfg.WriteString("\n")

	cfg.WriteString("session:\n")
	cfg.WriteString(fmt.Sprintf("  dir: \"%s\"\n", sessionDir))
	cfg.WriteString("\n")

	cfg.WriteString("notifier:\n")
	if defaultRecipient != "" {
		cfg.WriteString(fmt.Sprintf("  default_recipient: \"%s\"\n", defaultRecipient))
	}
	cfg.WriteString("  reconnect_delay: \"10s\"\n")
	cfg.WriteString("  retry_delay_unknown: \"15s\"\n")
	cfg.WriteString("  logout_grace: \"1s\"\n")
	cfg.WriteString("  logout_restart_delay: \"3s\"\n")
	cfg.WriteString("  send_timeout: \"30s\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: \"%s\"\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: \"%s\"\n", logFormat))

	// Ensure config directory exists
	configDir := filepath.Dir(outputFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	// Write config file
	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Println("\nTo start the server:")
	fmt.Printf("  wanotify serve\n")

	return nil
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
