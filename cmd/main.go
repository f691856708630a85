package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"echostudio/internal/auth"
	"echostudio/internal/config"
	"echostudio/internal/handler"
	"echostudio/internal/provider"
	"echostudio/internal/repository"
	"echostudio/internal/service"
	"echostudio/internal/storage"
	"echostudio/internal/storage/s3"
	"echostudio/internal/thumbnail"
)

// newBlobStorage выбирает бэкенд хранения файлов по конфигурации
func newBlobStorage(cfg *config.Config) (storage.Storage, error) {
	if cfg.Storage.Backend == "s3" {
		s3Config, err := s3.NewConfig(".s3.env")
		if err != nil {
			return nil, fmt.Errorf("failed to load S3 config: %w", err)
		}
		client, err := s3.NewClient(s3Config)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	local, err := storage.NewLocalStorage(cfg.Storage.AssetsDir)
	if err != nil {
		return nil, err
	}
	return local, nil
}

func main() {
	// Загружаем конфигурацию
	appConfig, err := config.NewConfig(".app.env")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Хранилище файлов изображений
	blobs, err := newBlobStorage(appConfig)
	if err != nil {
		log.Fatalf("Failed to initialize blob storage: %v", err)
	}

	// Хранилище метаданных
	assetRepo, err := repository.NewAssetRepository(appConfig.Storage.DataDir)
	if err != nil {
		log.Fatalf("Failed to open asset repository: %v", err)
	}

	// Инициализация сервисов
	thumbs := thumbnail.NewGenerator()
	assetService := service.NewAssetService(assetRepo, blobs, thumbs, appConfig.Server.BaseURL)
	editor, err := provider.NewClient(
		appConfig.Editor.Endpoint,
		appConfig.Editor.APIKey,
		time.Duration(appConfig.Editor.TimeoutSeconds)*time.Second,
	)
	if err != nil {
		log.Fatalf("Failed to create image edit client: %v", err)
	}
	editService := service.NewEditService(assetService, editor, thumbs)

	// Инициализация хендлеров
	assetHandler := handler.NewAssetHandler(assetService, editService)

	// Настройка HTTP роутера
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Access-Code"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// HTTP маршруты
	r.Route("/assets", func(r chi.Router) {
		r.Use(auth.Middleware(appConfig.Auth.AccessCode))
		assetHandler.Routes(r)
	})

	// Раздача изображений и миниатюр возможна только с локального бэкенда
	if local, ok := blobs.(*storage.LocalStorage); ok {
		fileServer := http.StripPrefix("/files/", http.FileServer(http.Dir(local.Root())))
		r.Get("/files/*", func(w http.ResponseWriter, req *http.Request) {
			fileServer.ServeHTTP(w, req)
		})
	}

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","assets":%d}`, assetRepo.Count(req.Context()))
	})

	// Создаем HTTP сервер
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", appConfig.Server.Port),
		Handler: r,
	}

	// Канал для сигналов завершения. Фоновые горутины слушают отдельный
	// done-канал, чтобы не перехватить единственный доставленный сигнал.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	// Запускаем HTTP сервер
	go func() {
		log.Printf("Starting HTTP server on port %s", appConfig.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	// Периодическая проверка согласованности метаданных и файлов
	sweepTicker := time.NewTicker(1 * time.Hour)
	go func() {
		for {
			select {
			case <-sweepTicker.C:
				assetService.SweepOrphans(context.Background())
			case <-done:
				sweepTicker.Stop()
				return
			}
		}
	}()

	// Ожидаем сигнал завершения
	<-quit
	close(done)
	log.Println("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server forced to shutdown: %v", err)
	}

	log.Println("Server exited properly")
}
