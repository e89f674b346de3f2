// arkwatch - remote console session manager for ARK servers
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/ernie/arkwatch/internal/api"
	"github.com/ernie/arkwatch/internal/auth"
	"github.com/ernie/arkwatch/internal/collector"
	"github.com/ernie/arkwatch/internal/config"
	"github.com/ernie/arkwatch/internal/notify"
	"github.com/ernie/arkwatch/internal/playerdata"
	"github.com/ernie/arkwatch/internal/profile"
	"github.com/ernie/arkwatch/internal/rcon"
	"github.com/ernie/arkwatch/internal/sessionlog"
	"github.com/ernie/arkwatch/internal/storage"
	flag "github.com/spf13/pflag"
	"golang.org/x/term"
)

var version = "dev"

const defaultConfigPath = "/etc/arkwatch/config.yml"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		cmdServe(os.Args[2:])
	case "rcon":
		cmdRcon(os.Args[2:])
	case "status":
		cmdStatus(os.Args[2:])
	case "players":
		cmdPlayers(os.Args[2:])
	case "hash-password":
		cmdHashPassword(os.Args[2:])
	case "version":
		fmt.Printf("arkwatch %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: arkwatch <command> [options] [args]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve                    Run the RCON session, web UI and API")
	fmt.Println("  rcon <command...>        Send one command to the game server and print the reply")
	fmt.Println("  status                   Show connection status of a running arkwatch")
	fmt.Println("  players                  List players known to a running arkwatch")
	fmt.Println("  hash-password            Hash a password for auth.users in the config file")
	fmt.Println("  version                  Show version information")
	fmt.Println("  help                     Show this help message")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --config <path>          Path to config file (default: " + defaultConfigPath + ")")
	fmt.Println("  --url <url>              Base URL of the arkwatch server (status, players)")
	fmt.Println()
	fmt.Println("Players options:")
	fmt.Println("  --online                 Show only players currently online")
}

// resolveConfigPath falls back to the default location when --config is empty
func resolveConfigPath(configPath string) string {
	if configPath != "" {
		return configPath
	}
	if _, err := os.Stat(defaultConfigPath); err != nil {
		log.Fatalf("No config file found at %s. Use --config to specify a config file.", defaultConfigPath)
	}
	return defaultConfigPath
}

func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	fs.Parse(args)

	cfg, err := config.Load(resolveConfigPath(*configPath))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	log.Printf("arkwatch %s starting...", version)

	logs, err := sessionlog.Open(cfg.Logging.Dir)
	if err != nil {
		log.Fatalf("Failed to open session logs: %v", err)
	}
	defer logs.Close()
	if cfg.Logging.Dir != "" {
		log.Printf("Session logs in %s", cfg.Logging.Dir)
	}

	store, err := storage.New(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()
	log.Printf("Database initialized at %s", cfg.Database.Path)

	// sessions left open by an unclean exit can never see their leave event
	if n, err := store.EndOpenSessions(context.Background(), time.Now()); err != nil {
		log.Printf("Error closing stale player sessions: %v", err)
	} else if n > 0 {
		log.Printf("Closed %d stale player sessions", n)
	}

	conn := rcon.NewConn(cfg.Rcon.Address(), cfg.Rcon.Password, cfg.Rcon.DialTimeout)
	session := collector.NewSession(conn, collector.Options{
		RetryDelay:          cfg.Rcon.RetryDelay,
		PlayerListInterval:  cfg.Rcon.PlayerListInterval,
		ChatInterval:        cfg.Rcon.ChatInterval,
		DisablePlayerPoller: cfg.Rcon.DisablePlayerPoller,
		DisableChatPoller:   cfg.Rcon.DisableChatPoller,
		ErrorLog:            logs,
	})

	authService := auth.NewService(cfg.Auth.JWTSecret, cfg.Auth.TokenDuration, authUsers(cfg.Auth.Users))
	if cfg.Auth.JWTSecret == "" {
		log.Printf("Warning: No JWT secret configured. Login is disabled.")
	}

	router := api.NewRouter(session, store, logs, authService, cfg.Server.StaticDir)

	session.Subscribe(logs.Record)
	session.Subscribe(store.Listener())
	session.Subscribe(router.Hub().Publish)

	var publisher *notify.Publisher
	if cfg.NATS.URL != "" {
		publisher, err = notify.Connect(cfg.NATS.URL, cfg.NATS.SubjectPrefix)
		if err != nil {
			session.Close()
			log.Fatalf("Failed to connect to NATS: %v", err)
		}
		session.Subscribe(publisher.Publish)
		log.Printf("Publishing events to %s under %s.>", cfg.NATS.URL, cfg.NATS.SubjectPrefix)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var reconciler *collector.Reconciler
	if cfg.Profile.SaveDir != "" {
		lookup, err := playerdata.NewSteamLookup(cfg.Steam.APIKey, cfg.Steam.CacheTTL)
		if err != nil {
			session.Close()
			if publisher != nil {
				publisher.Close()
			}
			log.Fatalf("Failed to set up Steam lookups: %v", err)
		}
		lists := profile.NewLists(cfg.Profile.SaveDir, cfg.Profile.AdminListPath, cfg.Profile.WhitelistPath)
		reconciler = collector.NewReconciler(session, playerdata.NewProfileDir(cfg.Profile.SaveDir), lookup, lists, cfg.Profile.ReconcileInterval)
	}

	router.StartWebSocketHub(ctx)
	session.Start()
	log.Printf("RCON session started for %s", conn.Addr())

	if reconciler != nil {
		session.RunReconciler(reconciler)
		log.Printf("Reconciling players from %s every %v", cfg.Profile.SaveDir, cfg.Profile.ReconcileInterval)
	} else {
		log.Printf("No profile.save_dir configured; player reconciliation disabled")
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.ListenAddr, cfg.Server.HTTPPort)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		log.Printf("HTTP server listening on %s", addr)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case sig := <-sigCh:
		log.Printf("Received signal %v, shutting down...", sig)
	case err := <-serverErr:
		log.Printf("HTTP server error: %v", err)
		if err := session.Close(); err != nil {
			log.Printf("RCON session close error: %v", err)
		}
		if publisher != nil {
			publisher.Close()
		}
		os.Exit(1)
	}

	// Sequential shutdown
	log.Println("Shutting down HTTP server...")
	httpCtx, httpCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer httpCancel()
	if err := server.Shutdown(httpCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	log.Println("Closing RCON session...")
	if err := session.Close(); err != nil {
		log.Printf("RCON session close error: %v", err)
	}

	if publisher != nil {
		if err := publisher.Close(); err != nil {
			log.Printf("NATS drain error: %v", err)
		}
	}

	if _, err := store.EndOpenSessions(context.Background(), time.Now()); err != nil {
		log.Printf("Error closing player sessions: %v", err)
	}

	cancel()
	log.Println("Shutdown complete")
}

func authUsers(users []config.User) []auth.User {
	out := make([]auth.User, 0, len(users))
	for _, u := range users {
		out = append(out, auth.User{Username: u.Username, PasswordHash: u.PasswordHash, IsAdmin: u.IsAdmin})
	}
	return out
}

// cmdRcon runs a single command through a session with the standing pollers off,
// so it gets the same retry and response handling as the server.
func cmdRcon(args []string) {
	fs := flag.NewFlagSet("rcon", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	timeout := fs.Duration("timeout", 30*time.Second, "how long to wait for the reply")
	fs.Parse(args)

	command := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if command == "" {
		fmt.Fprintln(os.Stderr, "Usage: arkwatch rcon [--config <path>] <command...>")
		os.Exit(1)
	}

	cfg, err := config.Load(resolveConfigPath(*configPath))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	// keep retry noise off stdout
	logs, err := sessionlog.Open("")
	if err != nil {
		log.Fatalf("Failed to open session logs: %v", err)
	}
	defer logs.Close()

	conn := rcon.NewConn(cfg.Rcon.Address(), cfg.Rcon.Password, cfg.Rcon.DialTimeout)
	session := collector.NewSession(conn, collector.Options{
		RetryDelay:          cfg.Rcon.RetryDelay,
		DisablePlayerPoller: true,
		DisableChatPoller:   true,
		ErrorLog:            logs,
	})
	session.Start()
	defer session.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	cmd, err := session.Execute(ctx, command)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		session.Close()
		os.Exit(1)
	}
	for _, line := range cmd.Lines {
		fmt.Println(line)
	}
}

// CLI helper variables
var baseURL = "http://localhost:8080"

// loadCLIConfigFromFlags derives baseURL from the config, letting --url override it
func loadCLIConfigFromFlags(configPath, url string) *config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config from %s: %v\n", configPath, err)
		if url != "" {
			baseURL = url
		}
		return nil
	}

	if url != "" {
		baseURL = url
	} else {
		baseURL = fmt.Sprintf("http://%s:%d", cfg.Server.ListenAddr, cfg.Server.HTTPPort)
	}
	return cfg
}

func cmdStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "path to configuration file")
	url := fs.String("url", "", "base URL of the arkwatch server")
	fs.Parse(args)

	loadCLIConfigFromFlags(*configPath, *url)

	var status struct {
		Status    string    `json:"status"`
		Online    int       `json:"online"`
		Known     int       `json:"known"`
		WSClients int       `json:"ws_clients"`
		CheckedAt time.Time `json:"checked_at"`
	}
	if err := getJSON("/api/status", &status); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RCON\tONLINE\tKNOWN\tWATCHERS\tCHECKED")
	fmt.Fprintln(w, "----\t------\t-----\t--------\t-------")
	fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%s\n",
		strings.ToUpper(status.Status), status.Online, status.Known, status.WSClients,
		status.CheckedAt.Local().Format(time.DateTime))
	w.Flush()
}

func cmdPlayers(args []string) {
	fs := flag.NewFlagSet("players", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "path to configuration file")
	url := fs.String("url", "", "base URL of the arkwatch server")
	onlineOnly := fs.Bool("online", false, "show only players currently online")
	fs.Parse(args)

	loadCLIConfigFromFlags(*configPath, *url)

	var snap struct {
		Players []struct {
			ID            string    `json:"id"`
			DisplayName   string    `json:"display_name"`
			PlatformName  string    `json:"platform_name"`
			IsOnline      bool      `json:"is_online"`
			IsValid       bool      `json:"is_valid"`
			IsAdmin       bool      `json:"is_admin"`
			IsWhitelisted bool      `json:"is_whitelisted"`
			LastActive    time.Time `json:"last_active"`
		} `json:"players"`
		OnlineCount int `json:"online_count"`
	}
	if err := getJSON("/api/players", &snap); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STEAM ID\tNAME\tSTEAM NAME\tONLINE\tFLAGS\tLAST ACTIVE")
	fmt.Fprintln(w, "--------\t----\t----------\t------\t-----\t-----------")

	for _, p := range snap.Players {
		if *onlineOnly && !p.IsOnline {
			continue
		}

		var flags []string
		if p.IsAdmin {
			flags = append(flags, "admin")
		}
		if p.IsWhitelisted {
			flags = append(flags, "whitelist")
		}
		if !p.IsValid {
			flags = append(flags, "no-save")
		}
		flagStr := strings.Join(flags, ",")
		if flagStr == "" {
			flagStr = "-"
		}

		online := "no"
		if p.IsOnline {
			online = "yes"
		}

		lastActive := "-"
		if !p.LastActive.IsZero() {
			lastActive = p.LastActive.Local().Format(time.DateTime)
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			p.ID, orDash(p.DisplayName), orDash(p.PlatformName), online, flagStr, lastActive)
	}

	w.Flush()
	fmt.Printf("\n%d online, %d known\n", snap.OnlineCount, len(snap.Players))
}

func cmdHashPassword(args []string) {
	fs := flag.NewFlagSet("hash-password", flag.ExitOnError)
	fs.Parse(args)

	hash, err := readNewPassword()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(hash)
}

func readNewPassword() (string, error) {
	fmt.Fprint(os.Stderr, "Enter password: ")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	if len(password) < 8 {
		return "", fmt.Errorf("password must be at least 8 characters")
	}

	fmt.Fprint(os.Stderr, "Confirm password: ")
	confirm, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	if string(password) != string(confirm) {
		return "", fmt.Errorf("passwords do not match")
	}

	hash, err := auth.HashPassword(string(password))
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return hash, nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func getJSON(path string, target interface{}) error {
	url := baseURL + path
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
	}

	return json.NewDecoder(resp.Body).Decode(target)
}
