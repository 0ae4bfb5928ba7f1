package main

import (
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/nodca/shorturl/internal/app/shorturl"
	urlcache "github.com/nodca/shorturl/internal/app/shorturl/cache"
	"github.com/nodca/shorturl/internal/app/shorturl/clicks"
	shorturlhttpapi "github.com/nodca/shorturl/internal/app/shorturl/httpapi"
	"github.com/nodca/shorturl/internal/app/shorturl/repo"
	"github.com/nodca/shorturl/internal/app/shorturl/session"
	"github.com/nodca/shorturl/internal/app/shorturl/stats"
	platformcache "github.com/nodca/shorturl/internal/platform/cache"
	"github.com/nodca/shorturl/internal/platform/config"
	"github.com/nodca/shorturl/internal/platform/db"
	"github.com/nodca/shorturl/internal/platform/httpmiddleware"
	"github.com/nodca/shorturl/internal/platform/httpserver"
	"github.com/nodca/shorturl/internal/platform/metrics"
	"github.com/nodca/shorturl/internal/platform/migrate"
	"github.com/nodca/shorturl/internal/platform/ratelimit"
	"github.com/nodca/shorturl/internal/platform/trace"
)

var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	cfg := config.Load()

	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	})
	slog.SetDefault(slog.New(h))
	//DB
	dbCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	dbPool, errDB := db.New(dbCtx, cfg.DBDSN)
	if errDB != nil {
		log.Fatal(errDB)
	}
	defer dbPool.Close()
	if err := dbPool.Ping(dbCtx); err != nil {
		log.Fatal(err)
	}
	slog.Info("数据库连接成功")

	if cfg.MigrateOnStart {
		migCtx, migCancel := context.WithTimeout(context.Background(), 30*time.Second)
		res, errMig := migrate.Up(migCtx, dbPool, migrate.Options{Dir: cfg.MigrationsDir})
		migCancel()
		if errMig != nil {
			log.Fatal(errMig)
		}
		slog.Info("数据库迁移完成", "dir", res.Dir, "applied", len(res.AppliedFiles), "skipped", len(res.SkippedFiles))
	}

	usersRepo := repo.NewUsersRepo(dbPool)

	//Redis
	redisClient, errRedis := platformcache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if errRedis != nil {
		log.Fatal(errRedis)
	}
	defer redisClient.Close()
	//限流器
	var limiter *ratelimit.Limiter
	if cfg.RateLimitEnabled {
		limiter = ratelimit.NewLimiter(redisClient)
	} else {
		slog.Warn("RateLimit disabled by config", "RATELIMIT_ENABLED", false)
	}
	//短链缓存
	localCache, errLocal := urlcache.NewLocalCache(100000, 1<<24) // 10万条目，16MB
	if errLocal != nil {
		log.Fatal(errLocal)
	}
	urlCache := urlcache.NewURLCache(redisClient, localCache)
	defer urlCache.Close()
	//创建布隆过滤器 预期 100 万短码，1% 误判率
	bloomFilter := urlcache.NewBloomFilter(1_000_000, 0.01)

	//雪花发号器，槽位冲突会造成短码重复，必须每实例唯一
	gen, errGen := shorturl.NewGenerator(cfg.GeneratorSlot)
	if errGen != nil {
		log.Fatal(errGen)
	}

	urlsRepo := repo.NewURLsRepo(dbPool, urlCache, bloomFilter, gen)

	warmCtx, warmCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if n, err := urlsRepo.WarmBloom(warmCtx); err != nil {
		slog.Warn("布隆过滤器预热失败，冷启动期间会多打一些库", "err", err)
	} else {
		slog.Info("布隆过滤器预热完成", "codes", n)
	}
	warmCancel()

	//点击计数：Redis 缓冲，攒够阈值再落库
	clicksRepo := repo.NewClicksRepo(dbPool)
	clickBuffer := clicks.NewBuffer(redisClient)
	recorder := clicks.NewRecorder(clickBuffer, clicksRepo, cfg.ClickFlushThreshold)

	//会话：Postgres 为准，Redis 做旁路缓存
	sessionsRepo := repo.NewSessionsRepo(dbPool)
	sessionCache := urlcache.NewSessionCache(redisClient)
	sm := session.NewManager(sessionsRepo, sessionCache, cfg.SessionIdleLifetime, cfg.SessionAbsoluteLifetime)

	cookie := shorturlhttpapi.CookieOptions{
		Name:   cfg.SessionCookieName,
		Secure: cfg.SessionCookieSecure,
		MaxAge: cfg.SessionAbsoluteLifetime,
	}

	//初始化统计收集器（根据配置选择 Channel 或 Kafka）
	var collector stats.Collector
	var kafkaConsumer *stats.KafkaConsumer
	var channelConsumer *stats.Consumer
	if cfg.KafkaEnabled {
		slog.Info("使用 Kafka 收集点击统计", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
		collector = stats.NewKafkaCollector(cfg.KafkaBrokers, cfg.KafkaTopic)
		kafkaConsumer = stats.NewKafkaConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, dbPool)
	} else {
		slog.Info("使用 Channel 收集点击统计")
		channelCollector := stats.NewChannelCollector(10000)
		collector = channelCollector
		channelConsumer = stats.NewConsumer(dbPool, channelCollector)
	}

	metrics.Init()

	var shutdown func(context.Context) error
	if cfg.TracingEnabled {
		shutdown = trace.InitTrace(cfg.OtlpGrpcEndpoint, cfg.OtlpServiceName)
		if shutdown == nil {
			slog.Error("Trace init failed")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					slog.Error(err.Error())
				}
			}()
		}
	} else {
		slog.Warn("Tracing disabled by config", "TRACING_ENABLED", false)
	}

	// 对外业务
	r := gin.New()
	r.Use(gin.Recovery(), httpmiddleware.RequestID(), httpmiddleware.AccessLog(), httpmiddleware.Metrics(), httpmiddleware.TraceName())

	api := r.Group("/api/v1")

	shorturlhttpapi.RegisterPublicRoutes(r, urlsRepo, recorder, collector, limiter)
	shorturlhttpapi.RegisterAPIRoutes(api, urlsRepo, usersRepo, sm, recorder, collector, limiter, cookie)

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	publicHandler := http.Handler(r)
	if cfg.TracingEnabled {
		publicHandler = otelhttp.NewHandler(r, "http")
	}
	publicSrv := httpserver.New(cfg, publicHandler)

	// 仅本机/内网
	adminMux := http.NewServeMux()
	adminMux.Handle("/metrics", promhttp.Handler())
	// 数据库连接状态检测
	adminMux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		dbCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := dbPool.Ping(dbCtx); err != nil {
			w.WriteHeader(500)
			w.Write([]byte("DB Ping Err"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("DB ready"))
	})

	adminMux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"service_name": cfg.ServiceName,
			"version":      version,
			"commit":       commit,
			"build_time":   buildTime,
			"go_version":   runtime.Version(),
		})
	})

	if cfg.PprofEnabled {
		adminMux.HandleFunc("/debug/pprof/", pprof.Index)
		adminMux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		adminMux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		adminMux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		adminMux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	adminSrv := &http.Server{
		Addr:              cfg.AdminAddr, // 推荐：127.0.0.1:6060
		Handler:           adminMux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errch := make(chan error, 2)

	go func() {
		errch <- httpserver.RunWithGracefulShutdownContext(publicSrv, cfg.ShutdownTimeout, stopCtx)
	}()
	go func() {
		errch <- httpserver.RunWithGracefulShutdownContext(adminSrv, cfg.ShutdownTimeout, stopCtx)
	}()

	// 启动 Kafka consumer（如果启用）
	if kafkaConsumer != nil {
		go kafkaConsumer.Run(stopCtx)
		defer kafkaConsumer.Close()
	}
	// 启动 Channel consumer（如果启用）
	if channelConsumer != nil {
		go channelConsumer.Run(stopCtx)
	}
	defer collector.Close()

	err := <-errch
	if err != nil {
		stop()
		select {
		case <-errch:
		case <-time.After(cfg.ShutdownTimeout + time.Second):
		}
		log.Fatal(err)
	}

	stop()
	<-errch
}
