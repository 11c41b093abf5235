package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	adapthttp "attendance/internal/adapter/http"
	"attendance/internal/adapter/memory"
	"attendance/internal/adapter/postgres"
	"attendance/internal/app"
	"attendance/internal/config"
	"attendance/internal/domain"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	var (
		users       domain.UserRepository
		ledger      domain.AttendanceLedger
		sessionRepo domain.SessionRepository
		groupRepo   domain.GroupRepository
	)
	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db open: %v", err)
		}
		defer func() { _ = db.Close() }()
		users = db
		ledger = db
		sessionRepo = postgres.NewSessionRepo(db)
		groupRepo = postgres.NewGroupRepo(db)
	} else {
		log.Print("DATABASE_URL not set, using in-memory storage")
		mem := memory.New()
		users = mem
		ledger = mem
		sessionRepo = mem.NewSessionRepo()
		groupRepo = mem
	}

	creds, err := app.NewCredentialService(cfg.QRSecret, cfg.QRExpirationMinutes)
	if err != nil {
		log.Fatalf("credentials: %v", err)
	}
	authSvc, err := app.NewAuthService(users, cfg.JWTSecret, time.Duration(cfg.JWTTTLHours)*time.Hour)
	if err != nil {
		log.Fatalf("auth: %v", err)
	}

	var cache *redis.Client
	if cfg.RedisAddr != "" {
		cache = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		log.Printf("leaderboard cache enabled at %s", cfg.RedisAddr)
	}
	leaderboardSvc := app.NewLeaderboardService(users, cache)

	attendanceSvc := app.NewAttendanceService(creds, sessionRepo, ledger, leaderboardSvc)
	sessionSvc := app.NewSessionService(sessionRepo, creds)
	groupSvc := app.NewGroupService(groupRepo)

	ctx := context.Background()
	if cfg.AdminEmail != "" && cfg.AdminPIN != "" {
		if err := authSvc.CreateInitialAdmin(ctx, cfg.AdminEmail, cfg.AdminPIN); err != nil {
			log.Fatalf("bootstrap admin: %v", err)
		}
	}

	var oidcCfg adapthttp.OIDCConfig
	if cfg.OIDCEnabled() {
		provider, err := oidc.NewProvider(ctx, cfg.OIDCIssuer)
		if err != nil {
			log.Fatalf("oidc provider: %v", err)
		}
		oidcCfg = adapthttp.OIDCConfig{
			Enabled:  true,
			Provider: provider,
			OAuth2Config: oauth2.Config{
				ClientID:     cfg.OIDCClientID,
				ClientSecret: cfg.OIDCClientSecret,
				RedirectURL:  cfg.OIDCRedirectURL,
				Endpoint:     provider.Endpoint(),
				Scopes:       []string{oidc.ScopeOpenID, "email"},
			},
		}
	}

	h := adapthttp.New(attendanceSvc, sessionSvc, authSvc, groupSvc, leaderboardSvc, oidcCfg).Handler()
	log.Printf("listening on %s", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, h); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}
