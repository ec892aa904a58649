package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	hertzadapter "github.com/hertz-contrib/logger/zerolog"
	"github.com/spf13/pflag"

	"resume-rag-go/internal/api/handler"
	"resume-rag-go/internal/api/router"
	"resume-rag-go/internal/config"
	"resume-rag-go/internal/guard"
	appLogger "resume-rag-go/internal/logger"
	"resume-rag-go/internal/parser"
	"resume-rag-go/internal/processor"
	"resume-rag-go/internal/storage"
	"resume-rag-go/internal/tracing"
)

func main() {
	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "internal/config/config.yaml", "配置文件路径")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		appLogger.Fatal().Err(err).Msg("加载配置失败")
	}

	initLogger(cfg)
	glog.Info("配置加载成功")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTimeout := config.GetDuration(cfg.Server.ShutdownTimeout, 5*time.Second)

	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing.ServiceName, cfg.Tracing.Endpoint, cfg.Tracing.SampleRatio, cfg.Tracing.Enabled)
	if err != nil {
		glog.Fatalf("初始化链路追踪失败: %v", err)
	}
	defer func() {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelShutdown()
		if err := shutdownTracing(shutdownCtx); err != nil {
			glog.Warnf("链路追踪关闭失败: %v", err)
		}
	}()

	storageManager, err := storage.NewStorage(cfg)
	if err != nil {
		glog.Fatalf("初始化存储失败: %v", err)
	}
	defer storageManager.Close()
	glog.Info("存储服务初始化成功")

	textExtractor, err := parser.NewTextExtractor(ctx)
	if err != nil {
		glog.Fatalf("初始化文档解析器失败: %v", err)
	}
	profileExtractor := parser.NewProfileExtractor()

	embedder := parser.NewOpenAIEmbedder(cfg.OpenAI)
	if embedder.Available() {
		glog.Infof("Embedding服务已启用, model=%s, dimensions=%d", cfg.OpenAI.Model, cfg.OpenAI.Dimensions)
	} else {
		glog.Warn("未配置OpenAI API Key，语义搜索停用，摄入走降级路径")
	}

	var events processor.EventPublisher
	if storageManager.RabbitMQ != nil {
		events = storageManager.RabbitMQ
	}

	ingestor := processor.NewIngestor(
		textExtractor,
		profileExtractor,
		embedder,
		storageManager.MySQL,
		storageManager.Qdrant,
		storageManager.MinIO,
		events,
		cfg.RabbitMQ.IngestEventsExchange,
		cfg.RabbitMQ.IngestedRoutingKey,
	)
	searcher := processor.NewSearcher(embedder, storageManager.MySQL, storageManager.Qdrant)
	matcher := processor.NewMatcher(storageManager.MySQL)
	glog.Info("处理流水线初始化成功")

	idemGuard := guard.NewGuard(guard.NewRedisEntryStore(storageManager.Redis.Client))
	limiter := guard.NewRateLimiter(guard.NewRedisCounterStore(storageManager.Redis.Client))

	handlers := router.Handlers{
		Resume: handler.NewResumeHandler(ingestor, storageManager.MySQL, idemGuard),
		Job:    handler.NewJobHandler(ingestor, matcher, storageManager.MySQL, idemGuard),
		Search: handler.NewSearchHandler(searcher),
	}

	h := server.New(
		server.WithHostPorts(cfg.Server.Address),
		server.WithHandleMethodNotAllowed(true),
	)
	router.RegisterRoutes(h, cfg, limiter, handlers)
	glog.Info("HTTP路由注册成功")

	glog.Infof("HTTP 服务器启动中，监听地址: %s", cfg.Server.Address)
	go func() {
		if err := h.Run(); err != nil {
			glog.Fatalf("启动HTTP服务器失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	glog.Info("接收到终止信号，正在优雅退出...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil {
		glog.Fatalf("服务器关闭失败: %v", err)
	}
	glog.Info("优雅退出完成")
}

// initLogger 初始化zerolog并把Hertz的hlog桥接到同一个输出
func initLogger(cfg *config.Config) {
	appLogger.Init(appLogger.Config{
		Level:        cfg.Logger.Level,
		Format:       cfg.Logger.Format,
		TimeFormat:   cfg.Logger.TimeFormat,
		ReportCaller: cfg.Logger.ReportCaller,
	})

	glog.SetLogger(hertzadapter.From(appLogger.Logger))
	switch cfg.Logger.Level {
	case "debug":
		glog.SetLevel(glog.LevelDebug)
	case "warn":
		glog.SetLevel(glog.LevelWarn)
	case "error":
		glog.SetLevel(glog.LevelError)
	default:
		glog.SetLevel(glog.LevelInfo)
	}
}
