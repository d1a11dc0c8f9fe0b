// Package main, voxi backend uygulamasının giriş noktasıdır.
//
// Bu dosyanın görevi — Dependency Injection "wire-up":
//   1.  Config'i yükle
//   2.  Database'i başlat (embedded migration'larla)
//   3.  Süresi geçmiş session'ları temizle
//   4.  Medya motorunu başlat (mediasoup-worker)
//   5.  WebSocket Hub'ı başlat
//   6.  Repository → Service → Handler katmanlarını kur
//   7.  Hub callback'lerini RTCService'e bağla
//   8.  HTTP router + CORS
//   9.  Arka plan görevlerini başlat (AFK sweep, snapshot)
//  10.  Graceful shutdown
//
// Global değişken YOK — her şey bu fonksiyonda oluşturulup birbirine bağlanıyor.
package main

import (
	"context"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"

	"github.com/akinalp/voxi/config"
	"github.com/akinalp/voxi/database"
	"github.com/akinalp/voxi/rtc"
	"github.com/akinalp/voxi/ws"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("[main] voxi server starting...")

	// ─── 1. Config ───
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[main] failed to load config: %v", err)
	}
	log.Printf("[main] config loaded (port=%d)", cfg.Server.Port)

	// ─── 2. Database ───
	migrationsFS, err := fs.Sub(database.EmbeddedMigrations, "migrations")
	if err != nil {
		log.Fatalf("[main] failed to access embedded migrations: %v", err)
	}

	db, err := database.New(cfg.Database.Path, migrationsFS)
	if err != nil {
		log.Fatalf("[main] failed to initialize database: %v", err)
	}
	defer db.Close()

	// ─── 3. Repository Layer ───
	repos := initRepositories(db.Conn)

	// Başlangıçta süresi geçmiş session'ları temizle — düzenli çalışan
	// bir cron yok, her restart'ta bir kez yeterli.
	if err := repos.Session.DeleteExpired(context.Background()); err != nil {
		log.Printf("[main] session cleanup failed: %v", err)
	}

	// ─── 4. Medya Motoru ───
	//
	// mediasoup-worker başlatılamazsa uygulama YİNE DE ayağa kalkar:
	// registry nil kalır, tüm rtc_* istekleri ROUTING_UNAVAILABLE ile
	// reddedilir ama auth, presence sorguları ve AFK config çalışmaya
	// devam eder. Medya, chat'in üstüne eklenen bir katmandır — motorun
	// çökmesi tüm uygulamayı indirmemelidir.
	var registry *rtc.Registry
	engine, err := rtc.NewMediasoupEngine(cfg.Media.WorkerBin, cfg.Media.ListenIP, cfg.Media.AnnouncedIP)
	if err != nil {
		log.Printf("[main] media engine unavailable, voice disabled: %v", err)
	} else {
		registry = rtc.NewRegistry(engine)
		log.Println("[main] media engine ready")
	}

	// ─── 5. WebSocket Hub ───
	//
	// Hub, tüm WebSocket bağlantılarını yöneten merkezi yapıdır.
	// `go hub.Run()` ayrı bir goroutine'de event loop başlatır.
	// Hub aynı zamanda EventPublisher interface'ini implement eder —
	// service'ler hub'a doğrudan bağımlı olmak yerine interface üzerinden erişir.
	hub := ws.NewHub()

	// ─── 6. Service + Handler Layer ───
	svcs, limiters := initServices(repos, hub, registry, cfg)
	h := initHandlers(svcs, limiters, hub)

	// ─── 7. Hub Callback'leri ───
	registerHubCallbacks(hub, svcs.RTC)

	go hub.Run()

	// ─── 8. HTTP Router + CORS ───
	mux := http.NewServeMux()
	initRoutes(mux, h, svcs.Auth, repos.User)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:1420", "tauri://localhost"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      corsHandler.Handler(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// ─── 9. Arka Plan Görevleri ───
	svcs.Afk.Start()
	svcs.RTC.StartSnapshots(cfg.Voice.SnapshotIntervalSeconds)

	// ─── 10. Graceful Shutdown ───
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("[main] server listening on %s", cfg.Server.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[main] server error: %v", err)
		}
	}()

	<-done
	log.Println("[main] shutting down...")

	// Önce arka plan görevleri durur, sonra WS bağlantıları kapanır,
	// en son HTTP server yeni request kabul etmeyi bırakır.
	svcs.RTC.Stop()
	svcs.Afk.Stop()
	hub.Shutdown()
	if engine != nil {
		engine.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("[main] forced shutdown: %v", err)
	}

	log.Println("[main] server stopped gracefully")
}
