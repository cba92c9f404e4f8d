package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/sessiongate/backend/internal/banlist"
	"github.com/sessiongate/backend/internal/config"
	"github.com/sessiongate/backend/internal/mock"
	"github.com/sessiongate/backend/internal/notify"
	"github.com/sessiongate/backend/internal/session"
	"github.com/sessiongate/backend/internal/stats"
	"github.com/sessiongate/backend/internal/ws"
)

func main() {
	mockMode := flag.Bool("mock", false, "Generate synthetic visitor traffic")
	configPath := flag.String("config", "config.yaml", "Path to config file")
	port := flag.Int("port", 0, "Override server port")
	flag.Parse()

	// Optional .env next to the binary; absence is fine.
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	bans, err := newBanStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize ban store: %v", err)
	}
	defer bans.Close()

	stages := session.NewStageSet(cfg.Stages)

	// The hub is the registry's event sink, and its init snapshot reads
	// back through the registry; wire the cycle up front.
	var reg *session.Registry
	hub := ws.NewHub(func() ws.InitPayload {
		ctx := context.Background()
		banned, err := bans.All(ctx)
		if err != nil {
			log.Printf("Listing bans for snapshot failed: %v", err)
		}
		return ws.InitPayload{
			Sessions:  reg.VerifiedSessions(),
			Settings:  reg.Settings(),
			BannedIPs: banned,
			Stages:    stages.Names(),
			Stats:     stats.Collect(ctx),
		}
	})
	reg = session.NewRegistry(cfg.SessionSettings(), stages, cfg.Settings, hub)
	reg.UseBanList(bans)

	gateway := ws.NewGateway()
	notifier := notify.Log{}
	server := ws.NewServer(reg, hub, gateway, bans, ws.Collaborators{
		Notifier: notifier,
	}, ws.Options{
		AuthToken:      cfg.Admin.Token,
		AllowedOrigins: cfg.Admin.AllowedOrigins,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go session.NewSweeper(reg).Run(ctx)

	if *mockMode {
		mock.NewGenerator(reg).Start(ctx)
	}

	mux := http.NewServeMux()
	server.SetupRoutes(mux)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Shutting down...")
		notifier.Notify("status", map[string]any{"online": false})
		cancel()
		os.Exit(0)
	}()

	notifier.Notify("status", map[string]any{"online": true, "port": cfg.Server.Port})
	if err := ws.ListenAndServe(cfg.Server.Host, cfg.Server.Port, mux); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func newBanStore(cfg *config.Config) (banlist.Store, error) {
	if cfg.Redis.Addr == "" {
		return banlist.NewMemoryStore(), nil
	}
	log.Printf("Using Redis ban store at %s", cfg.Redis.Addr)
	return banlist.NewRedisStore(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
}
