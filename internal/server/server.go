package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/spinwisely/kbase/config"
	"github.com/spinwisely/kbase/internal/answer"
	"github.com/spinwisely/kbase/internal/index/pinecone"
	"github.com/spinwisely/kbase/internal/ingest"
	"github.com/spinwisely/kbase/internal/provider/huggingface"
	"github.com/spinwisely/kbase/internal/store"
)

// Run wires the full service and blocks serving HTTP until the listener
// fails. Dependencies are built once here and handed to the handlers.
func Run(cfgPath, addr string) error {
	cfg := appconfig.LoadConfig(cfgPath)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	// Unified HTTP error handler with structured JSON and logging
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })
	registerDocs(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	dsn, err := cfg.Databases.Postgres.DSN()
	if err != nil {
		return err
	}
	if err := Migrate("file://migrations", dsn, "up", 0); err != nil {
		log.Printf("migrate: %v", err)
	}

	ctx := context.Background()
	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		return err
	}

	var rdb *redis.Client
	if redisAddr := cfg.Databases.Redis.Addr(); redisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: redisAddr, Password: cfg.Databases.Redis.Pass, DB: cfg.Databases.Redis.DB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Printf("redis unreachable (%s), running without locks: %v", redisAddr, err)
			rdb = nil
		}
	}

	prov := huggingface.New(cfg.Providers.HuggingFace)
	ix := pinecone.New(cfg.Vector.Pinecone)
	ing := ingest.New(prov, ix, st, rdb, cfg.Ingest, nil)
	ans := answer.New(prov, ix, st, cfg.Retrieval, nil)

	api := e.Group("/api")
	dh := &DocumentsHandler{Ingestor: ing, Store: st, MaxUploadMB: cfg.Ingest.MaxUploadMB}
	dh.Register(api.Group("/documents"))
	ch := &ChatHandler{Answerer: ans}
	ch.Register(api.Group("/chat"))
	ah := &AdminHandler{Store: st, Index: ix}
	ah.Register(api.Group("/admin"))
	e.GET("/api/debug/index-stats", ah.indexStats)

	if cfg.Cleanup.Enabled {
		cleaner := &Cleaner{Store: st, Rdb: rdb, Cfg: cfg.Cleanup, Stop: make(chan struct{})}
		cleaner.Start()
		defer cleaner.Close()
	}

	if addr == "" {
		addr = cfg.General.Listen
		if addr != "" && addr[0] != ':' {
			addr = ":" + addr
		}
		if addr == "" {
			addr = ":8080"
		}
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}
