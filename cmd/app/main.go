package main

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pdcgo/procurement_service"
	"github.com/pdcgo/procurement_service/common"
	"github.com/pdcgo/procurement_service/configs"
	"github.com/pdcgo/procurement_service/escalation"
	"github.com/pdcgo/procurement_service/notification"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func NewLogger() (*zap.Logger, error) {
	return zap.NewProduction()
}

func NewDatabase(cfg *configs.AppConfig) (*gorm.DB, error) {
	switch cfg.Database.Driver {
	case "sqlite":
		return gorm.Open(sqlite.Open(cfg.Database.DSN))
	default:
		return gorm.Open(postgres.Open(cfg.Database.DSN))
	}
}

func NewEngine() *gin.Engine {
	return gin.New()
}

func NewSweeper(cfg *configs.AppConfig, db *gorm.DB, log *zap.Logger) *escalation.Sweeper {
	return escalation.NewSweeper(db, common.NewUnitService(db), log, cfg.Sweeper.Interval)
}

func NewHook(cfg *configs.AppConfig, log *zap.Logger) *notification.Hook {
	dispatch := notification.NopDispatcher
	if cfg.Notification.WebhookURL != "" {
		dispatch = notification.WebhookDispatcher(cfg.Notification.WebhookURL, cfg.Notification.Timeout)
	}
	return notification.NewHook(log, dispatch)
}

func withCors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Headers", "Referer, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, Accept, Origin, Cache-Control, X-Requested-With, X-User-ID")
		w.Header().Set("Access-Control-Allow-Methods", "HEAD,PATCH,OPTIONS,GET,POST,PUT,DELETE")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

type App struct {
	Run func() error
}

func NewApp(
	cfg *configs.AppConfig,
	engine *gin.Engine,
	register procurement_service.RegisterHandler,
	sweeper *escalation.Sweeper,
	hook *notification.Hook,
	log *zap.Logger,
) *App {
	return &App{
		Run: func() error {
			register()
			hook.Register("notification")
			defer hook.Close()

			listen := cfg.Listen()
			log.Info("listening", zap.String("addr", listen))

			// h2c keeps HTTP/2 available without TLS behind the gateway.
			server := &http.Server{
				Addr: listen,
				Handler: h2c.NewHandler(
					withCors(engine),
					&http2.Server{}),
			}

			group, ctx := errgroup.WithContext(context.Background())
			group.Go(server.ListenAndServe)
			group.Go(func() error {
				return sweeper.Run(ctx)
			})

			return group.Wait()
		},
	}
}

func main() {
	app, err := InitializeApp()
	if err != nil {
		panic(err)
	}

	err = app.Run()
	if err != nil {
		panic(err)
	}
}
