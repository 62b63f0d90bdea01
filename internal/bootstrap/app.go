package bootstrap

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"docuchat/internal/config"
	"docuchat/internal/gemini"
	"docuchat/internal/model"
	mysqlClient "docuchat/internal/platform/mysql"
	rabbitmqClient "docuchat/internal/platform/rabbitmq"
	redisClient "docuchat/internal/platform/redis"
	"docuchat/internal/session"
	"docuchat/internal/transport/telegram"
	"docuchat/internal/worker"
)

type App struct {
	Config         *config.Config
	MySQL          *gorm.DB
	Redis          *redis.Client
	MQConn         *amqp.Connection
	Gemini         *gemini.Client
	Registry       *session.Registry
	DeliveryWorker *worker.DeliveryWorker

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	initLogging(cfg)

	mysqlDB, err := mysqlClient.New(ctx, cfg.MySQLDSN())
	if err != nil {
		return nil, err
	}
	if err := mysqlDB.AutoMigrate(&model.Document{}, &model.Message{}); err != nil {
		return nil, fmt.Errorf("auto migrate tables failed: %w", err)
	}

	redisCli, err := redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, err
	}

	mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
	if err != nil {
		return nil, err
	}

	geminiCli, err := gemini.NewClient(ctx, cfg.Gemini.APIKey, gemini.GenerationParams{
		Temperature:     float32(cfg.Gemini.Temperature),
		MaxOutputTokens: int32(cfg.Gemini.MaxOutputTokens),
	})
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:    cfg,
		MySQL:     mysqlDB,
		Redis:     redisCli,
		MQConn:    mqConn,
		Gemini:    geminiCli,
		Registry:  session.NewRegistry(),
		StartedAt: time.Now(),
	}

	if cfg.Telegram.BotToken != "" {
		sender := telegram.NewSender(cfg.Telegram.BotToken)
		app.DeliveryWorker = worker.NewDeliveryWorker(mqConn, sender, cfg.RabbitMQ.DeliveryQueue)
		if err := app.DeliveryWorker.Start(ctx); err != nil {
			return nil, fmt.Errorf("start delivery worker failed: %w", err)
		}
	} else {
		logrus.Warn("telegram bot token not configured, reply delivery worker disabled")
	}

	return app, nil
}

func initLogging(cfg *config.Config) {
	logrus.SetFormatter(&logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})
	if cfg.App.Env == "dev" {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}
}

func (a *App) Close() error {
	var closeErr error
	if a.DeliveryWorker != nil {
		a.DeliveryWorker.Close()
	}
	if a.Gemini != nil {
		if err := a.Gemini.Close(); err != nil {
			closeErr = err
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}
