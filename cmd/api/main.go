package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"userhub.org/internal/auth"
	"userhub.org/internal/config"
	"userhub.org/internal/httpapi"
	"userhub.org/internal/i18n"
	"userhub.org/internal/mail"
	"userhub.org/internal/obs"
	"userhub.org/internal/store/pg"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	cfg := config.MustLoad()

	obs.Init()
	obs.InitBuildInfo(version, commit)

	store, err := pg.Open(cfg.DB.DSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	translator, err := i18n.New()
	if err != nil {
		log.Fatalf("init i18n: %v", err)
	}

	resolver, err := auth.NewResolver(store)
	if err != nil {
		log.Fatalf("init rbac: %v", err)
	}

	opts := []auth.Option{
		auth.WithTokenTTL(cfg.Auth.TokenTTL),
		auth.WithResetTokenTTL(cfg.Auth.ResetTokenTTL),
		auth.WithSeedAdmin(cfg.Auth.SeedAdminEmail, cfg.Auth.SeedAdminPassword),
	}
	if cfg.SMTP.Host != "" {
		mailer, err := mail.New(mail.Config{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
			ResetURL: cfg.Reset.URL,
		}, translator)
		if err != nil {
			log.Fatalf("init mailer: %v", err)
		}
		opts = append(opts, auth.WithMailer(mailer))
	}

	svc, err := auth.NewService(store, resolver, cfg.Auth.Secret, opts...)
	if err != nil {
		log.Fatalf("init auth service: %v", err)
	}

	seedCtx, cancelSeed := context.WithTimeout(context.Background(), 30*time.Second)
	if err := svc.EnsureSeed(seedCtx); err != nil {
		cancelSeed()
		log.Fatalf("seed: %v", err)
	}
	cancelSeed()

	api := httpapi.New(svc, resolver, translator, httpapi.ReadyProbe{DB: store.DB()}, version)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting userhub-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	log.Println("Stopped")
}
