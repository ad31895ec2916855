package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/talkincode/storefront/config"
	"github.com/talkincode/storefront/internal/api"
	"github.com/talkincode/storefront/internal/app"
	"github.com/talkincode/storefront/internal/webserver"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	h         = flag.Bool("h", false, "help usage")
	showVer   = flag.Bool("v", false, "show version")
	conffile  = flag.String("c", "", "config yaml file")
	initdb    = flag.Bool("initdb", false, "drop and recreate all tables, then exit")
	printConf = flag.Bool("printconf", false, "print the effective config and exit")
)

// @title Storefront API
// @version 1.0
// @description Catalog, orders and accounts of the storefront backend.
func main() {
	flag.Parse()

	if *h {
		flag.Usage()
		return
	}

	cfg, err := config.LoadConfig(*conffile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	if *showVer {
		fmt.Println(cfg.System.Appid, cfg.System.Version)
		return
	}

	if *printConf {
		fmt.Printf("%+v\n", *cfg)
		return
	}

	cfg.InitDirs()
	application := app.NewApplication(cfg)
	application.Init(cfg)
	defer application.Release()

	if *initdb {
		application.InitDb()
		zap.S().Info("database tables recreated")
		return
	}

	api.Init()
	srv := webserver.NewWebServer(cfg, application)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		zap.S().Info("shutting down web server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		zap.S().Errorf("storefront stopped: %v", err)
	}
}
