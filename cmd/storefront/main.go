package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/vladislavdragonenkov/storefront/internal/app"
	"github.com/vladislavdragonenkov/storefront/internal/version"
)

// configureLogger настраивает формат, уровень и вывод логов по секции log.
// Возвращает io.Closer ротируемого файла (nil, если запись в файл выключена).
func configureLogger(logger *log.Logger, cfg app.Config) (io.Closer, error) {
	switch strings.ToLower(cfg.Log.Format) {
	case "json":
		logger.SetFormatter(&log.JSONFormatter{})
	case "", "text":
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("unsupported log format %q", cfg.Log.Format)
	}

	level := log.InfoLevel
	if cfg.Log.Level != "" {
		parsed, err := log.ParseLevel(cfg.Log.Level)
		if err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
		level = parsed
	}
	logger.SetLevel(level)

	if cfg.Log.File == "" {
		logger.SetOutput(os.Stdout)
		return nil, nil
	}

	rotating := &lumberjack.Logger{
		Filename:   cfg.Log.File,
		MaxSize:    100,
		MaxBackups: 5,
		MaxAge:     14,
		Compress:   true,
	}
	logger.SetOutput(io.MultiWriter(os.Stdout, rotating))
	return rotating, nil
}

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		log.WithError(err).Fatal("не удалось загрузить конфигурацию")
	}

	rotating, err := configureLogger(log.StandardLogger(), cfg)
	if err != nil {
		log.WithError(err).Fatal("не удалось настроить логирование")
	}
	if rotating != nil {
		defer rotating.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"version":     version.GetVersion(),
		"environment": cfg.Environment,
		"http_addr":   cfg.HTTP.Addr,
		"ops_addr":    cfg.Ops.Addr,
		"grpc_addr":   cfg.GRPC.Addr,
		"storage":     cfg.Storage.Driver,
		"sessions":    cfg.Sessions.Driver,
		"kafka":       cfg.KafkaEnabled(),
	}).Info("запускаем storefront")

	if err := app.Run(ctx, cfg, log.WithField("component", "app")); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Error("приложение завершилось с ошибкой")
		if rotating != nil {
			_ = rotating.Close()
		}
		os.Exit(1)
	}

	log.Info("storefront остановлен")
}
