package app

import (
	"os"
	"runtime/debug"
	"time"
	_ "time/tzdata"

	"github.com/asaskevich/EventBus"
	"github.com/panjf2000/ants/v2"
	"github.com/robfig/cron/v3"
	"github.com/talkincode/storefront/config"
	"github.com/talkincode/storefront/internal/auth"
	"github.com/talkincode/storefront/internal/catalog"
	"github.com/talkincode/storefront/internal/domain"
	"github.com/talkincode/storefront/internal/notify"
	"github.com/talkincode/storefront/internal/orders"
	"github.com/talkincode/storefront/internal/repository"
	"github.com/talkincode/storefront/pkg/metrics"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/gorm"
)

const mailWorkers = 4

type Application struct {
	appConfig *config.AppConfig
	gormDB    *gorm.DB
	store     repository.Store
	sched     *cron.Cron
	bus       EventBus.Bus
	mailPool  *ants.Pool
	catalog   *catalog.Service
	orders    *orders.Workflow
	auth      *auth.Service
}

// Ensure Application implements all interfaces
var (
	_ DBProvider        = (*Application)(nil)
	_ ConfigProvider    = (*Application)(nil)
	_ StoreProvider     = (*Application)(nil)
	_ CatalogProvider   = (*Application)(nil)
	_ OrdersProvider    = (*Application)(nil)
	_ AuthProvider      = (*Application)(nil)
	_ SchedulerProvider = (*Application)(nil)
	_ BusProvider       = (*Application)(nil)
	_ AppContext        = (*Application)(nil)
)

func NewApplication(appConfig *config.AppConfig) *Application {
	return &Application{appConfig: appConfig}
}

func (a *Application) Config() *config.AppConfig {
	return a.appConfig
}

func (a *Application) DB() *gorm.DB {
	return a.gormDB
}

// OverrideDB replaces the application's database handle and rebuilds the
// services on top of it (used in tests).
func (a *Application) OverrideDB(db *gorm.DB) {
	a.gormDB = db
	a.buildServices()
}

func (a *Application) Store() repository.Store {
	return a.store
}

func (a *Application) Catalog() *catalog.Service {
	return a.catalog
}

func (a *Application) Orders() *orders.Workflow {
	return a.orders
}

func (a *Application) Auth() *auth.Service {
	return a.auth
}

func (a *Application) Bus() EventBus.Bus {
	return a.bus
}

// Scheduler returns the cron scheduler
func (a *Application) Scheduler() *cron.Cron {
	return a.sched
}

func (a *Application) Init(cfg *config.AppConfig) {
	loc, err := time.LoadLocation(cfg.System.Location)
	if err != nil {
		zap.S().Error("timezone config error")
	} else {
		time.Local = loc
	}

	initLogger(cfg)

	if replaced, err := cfg.EnsureSecret(); err != nil {
		zap.S().Fatalf("web secret: %v", err)
	} else if replaced {
		zap.S().Warn("web.secret is not configured, using a random secret; tokens and sessions end with this process")
	}

	// Initialize metrics with workdir convention
	err = metrics.InitMetrics(cfg.System.Workdir)
	if err != nil {
		zap.S().Warn("Failed to initialize metrics:", err)
	}

	if cfg.Database.Type == "" {
		cfg.Database.Type = "postgres"
	}
	a.gormDB = getDatabase(cfg.Database, cfg.System.Workdir)
	zap.S().Infof("Database connection successful, type: %s", cfg.Database.Type)

	if err := a.MigrateDB(false); err != nil {
		zap.S().Errorf("database migration failed: %v", err)
	}

	a.buildServices()
	a.checkSuper()
	a.checkProducts()
	a.initJob()
}

func initLogger(cfg *config.AppConfig) {
	var zapConfig zap.Config
	if cfg.Logger.Mode == "production" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}
	zapConfig.OutputPaths = []string{"stdout"}

	var logger *zap.Logger
	var err error
	if cfg.Logger.FileEnable {
		lumberJackLogger := &lumberjack.Logger{
			Filename:   cfg.Logger.Filename,
			MaxSize:    64,
			MaxBackups: 7,
			MaxAge:     7,
			Compress:   false,
		}

		core := zapcore.NewTee(
			zapcore.NewCore(
				zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
				zapcore.AddSync(lumberJackLogger),
				zapConfig.Level,
			),
			zapcore.NewCore(
				zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
				zapcore.AddSync(os.Stdout),
				zapConfig.Level,
			),
		)
		logger = zap.New(core, zap.AddCaller())
	} else {
		logger, err = zapConfig.Build(zap.AddCaller())
		if err != nil {
			panic(err)
		}
	}
	zap.ReplaceGlobals(logger)
}

// buildServices wires the store, event bus and domain services around gormDB.
func (a *Application) buildServices() {
	a.store = repository.NewGormStore(a.gormDB)
	a.bus = EventBus.New()
	tokenTTL := time.Duration(a.appConfig.Web.TokenTTL) * time.Hour
	a.catalog = catalog.NewService(a.store)
	a.orders = orders.NewWorkflow(a.store, a.bus)
	a.auth = auth.NewService(a.store.Users(), auth.NewTokenMaker(a.appConfig.Web.Secret, tokenTTL))

	var mailer notify.Mailer
	if a.appConfig.Smtp.Enabled {
		mailer = notify.NewSMTPMailer(a.appConfig.Smtp)
		if a.mailPool == nil {
			pool, err := ants.NewPool(mailWorkers)
			if err != nil {
				zap.S().Errorf("mail worker pool: %v", err)
			} else {
				a.mailPool = pool
			}
		}
	}
	sub := notify.NewSubscriber(a.store.AuditLogs(), a.store.Users(), mailer)
	if a.mailPool != nil {
		sub.UsePool(a.mailPool)
	}
	if err := sub.Subscribe(a.bus); err != nil {
		zap.S().Errorf("subscribe order events: %v", err)
	}
}

func (a *Application) MigrateDB(track bool) (err error) {
	defer func() {
		if err1 := recover(); err1 != nil {
			if os.Getenv("GO_DEGUB_TRACE") != "" {
				debug.PrintStack()
			}
			err2, ok := err1.(error)
			if ok {
				err = err2
				zap.S().Error(err2.Error())
			}
		}
	}()
	db := a.gormDB
	if track {
		db = db.Debug()
	}
	if err := db.Migrator().AutoMigrate(domain.Tables...); err != nil {
		zap.S().Error(err)
		return err
	}
	return nil
}

func (a *Application) DropAll() error {
	return a.gormDB.Migrator().DropTable(domain.Tables...)
}

// InitDb drops every table and migrates the schema again.
func (a *Application) InitDb() {
	if err := a.DropAll(); err != nil {
		zap.S().Errorf("drop tables: %v", err)
	}
	_ = a.MigrateDB(false)
}

// Release releases application resources
func (a *Application) Release() {
	if a.sched != nil {
		a.sched.Stop()
	}
	if a.bus != nil {
		a.bus.WaitAsync()
	}
	if a.mailPool != nil {
		a.mailPool.Release()
	}
	_ = metrics.Close()
	_ = zap.L().Sync()
}
