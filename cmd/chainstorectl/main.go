// Command chainstorectl is an interactive operator shell around a
// chainstore.Store: open or create a store, inspect chains, append test
// blocks, and watch feed/error events.
package main

import (
	"context"
	"flag"
	"fmt"
	"os/user"
	"path/filepath"

	"github.com/nullbyte-labs/chainstore"
	"github.com/nullbyte-labs/chainstore/chain/memchain"
	"github.com/nullbyte-labs/chainstore/config"
	"github.com/nullbyte-labs/chainstore/internal/telemetry"
	"github.com/nullbyte-labs/chainstore/internal/webhook"
	"github.com/nullbyte-labs/chainstore/log"
)

var cfgDir = flag.String("c", "", "Configuration directory path")
var debugLog = flag.Bool("debug", false, "Enable debug output")
var versionFlag = flag.Bool("v", false, "Show version")

const version = "0.1.0"

func main() {
	flag.Parse()

	if *versionFlag {
		log.Info("version: %s", version)
		return
	}

	if *cfgDir == "" {
		usr, err := user.Current()
		if err != nil {
			log.Fatal("%v", err)
			return
		}
		*cfgDir = filepath.Join(usr.HomeDir, ".chainstorectl")
	}

	cfgPath := filepath.Join(*cfgDir, "chainstorectl.yaml")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatal("config: %v", err)
		return
	}
	log.Info("loaded configuration from: %s", cfgPath)

	level := cfg.LogLevel
	if *debugLog {
		level = "debug"
	}
	zlog, err := telemetry.New(level)
	if err != nil {
		log.Fatal("telemetry: %v", err)
		return
	}
	defer zlog.Sync()

	store, err := chainstore.New(cfg.StorageDir, chainstore.Options{
		CacheSize: cfg.CacheSize,
		NewChain:  memchain.New,
		Logger:    zlog,
	})
	if err != nil {
		log.Fatal("chainstore: %v", err)
		return
	}
	if err := store.Ready(context.Background()); err != nil {
		log.Fatal("chainstore: %v", err)
		return
	}

	if cfg.WebhookURL != "" {
		notifier := webhook.New(cfg.WebhookURL)
		go notifier.Watch(store.Feed(), store.Errors())
		log.Info("forwarding events to: %s", cfg.WebhookURL)
	}

	diag := newDiagnosticsServer(store, cfg.ListenAddr)
	go func() {
		if err := diag.ListenAndServe(); err != nil {
			log.Warning("diagnostics server stopped: %v", err)
		}
	}()
	log.Info("diagnostics listening on: %s", cfg.ListenAddr)

	fmt.Println()
	t, err := newRepl(store, cfg)
	if err != nil {
		log.Fatal("%v", err)
		return
	}
	t.run()
}
