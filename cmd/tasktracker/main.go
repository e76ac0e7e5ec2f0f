package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"task-tracker/internal/api"
	"task-tracker/internal/blob"
	"task-tracker/internal/config"
	"task-tracker/internal/notify"
	"task-tracker/internal/repository"
	"task-tracker/internal/service"
)

const taskAttachmentMaxSize = 10 << 20

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := log.StandardLogger()
	if cfg.Debug {
		logger.SetLevel(log.DebugLevel)
	}

	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	userRepo := repository.NewUserRepository(db)
	taskRepo := repository.NewTaskRepository(db)

	var rc *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("invalid REDIS_URL: %v", err)
		}
		rc = redis.NewClient(opts)
		defer rc.Close()
	}
	tasks := repository.NewCache(taskRepo, rc, cfg.CacheTTL)

	files := blob.NewFSStore(cfg.UploadDir, blob.DefaultMaxSize)
	attachments := blob.NewFSStore(filepath.Join(cfg.UploadDir, "tasks"), taskAttachmentMaxSize)

	notifier := buildNotifier(cfg, logger)
	taskSvc := service.NewTaskService(tasks, attachments, notifier, logger, service.TaskOptions{
		BaseURL:       cfg.BaseURL,
		NotifyTimeout: cfg.NotifyTimeout,
	})
	accountSvc := service.NewAccountService(userRepo, cfg.JWTSecret, cfg.TokenTTL, logger)
	reminderSvc := service.NewReminderService(taskRepo, notifier, logger, cfg.ReminderWindow)

	scheduler := service.NewSchedulerService(time.Local, logger, cfg.NotifyTimeout*4)
	if _, err := scheduler.ScheduleDaily(cfg.ReminderTime, "due-soon-reminders", func(ctx context.Context) error {
		_, err := reminderSvc.SendDueSoon(ctx)
		return err
	}); err != nil {
		log.Fatalf("schedule reminders: %v", err)
	}
	scheduler.Start()

	var jwks *keyfunc.JWKS
	if cfg.JWKSURL != "" {
		jwks, err = keyfunc.Get(cfg.JWKSURL, keyfunc.Options{
			RefreshInterval: time.Hour,
			RefreshErrorHandler: func(err error) {
				logger.WithError(err).Warn("jwks refresh failed")
			},
			RefreshUnknownKID: true,
		})
		if err != nil {
			log.Fatalf("jwks: %v", err)
		}
		defer jwks.EndBackground()
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("60M"))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	api.Register(e, api.Deps{
		Tasks:     taskSvc,
		Accounts:  accountSvc,
		Files:     files,
		Auth:      api.NewAuth(cfg.JWTSecret, jwks),
		Logger:    logger,
		UploadDir: cfg.UploadDir,
		BaseURL:   cfg.BaseURL,
	})

	go func() {
		logger.WithField("addr", cfg.ListenAddr).Info("task tracker started")
		if err := e.Start(cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("http shutdown")
	}
	scheduler.Stop(shutdownCtx)
	taskSvc.Wait()
	logger.Info("shutdown complete")
}

func buildNotifier(cfg config.Config, logger *log.Logger) notify.Notifier {
	var multi notify.Multi
	if cfg.MailEnabled() {
		multi = append(multi, notify.NewMailer(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
			Timeout:  cfg.NotifyTimeout,
		}))
	}
	if cfg.TelegramEnabled() {
		tg, err := notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			logger.WithError(err).Warn("telegram notifier disabled")
		} else {
			multi = append(multi, tg)
		}
	}
	switch len(multi) {
	case 0:
		logger.Info("no notifier configured, notifications are logged only")
		return notify.Discard{Logger: logger}
	case 1:
		return multi[0]
	default:
		return multi
	}
}
