package main

import (
	"context"
	"database/sql"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"google.golang.org/grpc"

	"rfphub.org/internal/auth"
	"rfphub.org/internal/config"
	"rfphub.org/internal/httpapi"
	"rfphub.org/internal/mail"
	"rfphub.org/internal/obs"
	"rfphub.org/internal/otp"
	"rfphub.org/internal/rfp"
	"rfphub.org/internal/stream"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	log.Printf("starting rfphub-api %s %s", version, cfg)

	// User directory: Postgres when configured, in-memory otherwise.
	var (
		db        *sql.DB
		userStore auth.UserStore = auth.NewMemoryStore()
	)
	if cfg.PGDSN != "" {
		db, err = sql.Open("pgx", cfg.PGDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db.SetMaxOpenConns(50)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(15 * time.Minute)
		userStore = auth.NewPGStore(db)
	}
	users, err := auth.NewService(userStore, auth.WithAccessTTL(cfg.AccessTTL))
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	// RFP pipeline shares the pool when Postgres is up.
	var rfps rfp.Service = rfp.NewInMemory()
	if db != nil {
		rfps = rfp.NewPGStore(db)
	}

	// Verification codes: Redis when configured, in-process otherwise.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		codeStore otp.Store
		redisPing func(context.Context) error
	)
	if cfg.RedisURL != "" {
		rs, err := otp.OpenRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("open redis: %v", err)
		}
		defer rs.Close()
		codeStore = rs
		redisPing = rs.Ping
	} else {
		ms := otp.NewMemoryStore()
		go ms.Janitor(ctx, time.Minute)
		codeStore = ms
	}

	// Mail: real SMTP when configured, log-only locally.
	var mailer otp.Mailer = mail.LogMailer{}
	if cfg.SMTPHost != "" {
		smtp, err := mail.NewSMTPMailer(mail.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
		if err != nil {
			log.Fatalf("smtp mailer: %v", err)
		}
		mailer = smtp
	}

	otpOpts := []otp.VerifierOption{otp.WithTTL(cfg.OTPTTL)}
	if len(cfg.OTPDomains) > 0 {
		otpOpts = append(otpOpts, otp.WithAllowedDomains(cfg.OTPDomains))
	}
	codes, err := otp.NewVerifier(codeStore, mailer, otpOpts...)
	if err != nil {
		log.Fatalf("otp verifier: %v", err)
	}

	probe := httpapi.ReadyProbe{DB: db, Ping: redisPing}
	api := httpapi.New(probe, version, users, codes, rfps, stream.New(),
		httpapi.WithRateLimit(cfg.RateLimitBurst, cfg.RateLimitRPS))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      0, // SSE connections stay open
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	var grpcSrv *grpc.Server
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			log.Fatalf("grpc listen: %v", err)
		}
		grpcSrv = grpc.NewServer()
		httpapi.NewGRPCHealthServer(probe).Register(grpcSrv)
		go func() {
			if err := grpcSrv.Serve(lis); err != nil {
				obs.LogError("grpc serve stopped", err, nil)
			}
		}()
	}

	<-ctx.Done()
	log.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(shutdownCtx)
	if grpcSrv != nil {
		grpcSrv.GracefulStop()
	}
	if db != nil {
		_ = db.Close()
	}
	log.Println("stopped")
}
