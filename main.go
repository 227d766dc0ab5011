package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"sort"
	"sync"
	"syscall"

	"github.com/olekukonko/tablewriter"

	"github.com/katmoor/dmscout/browser"
	"github.com/katmoor/dmscout/config"
	"github.com/katmoor/dmscout/control"
	"github.com/katmoor/dmscout/date"
	"github.com/katmoor/dmscout/detect"
	"github.com/katmoor/dmscout/log"
	"github.com/katmoor/dmscout/output"
	"github.com/katmoor/dmscout/reel"
	"github.com/katmoor/dmscout/session"
	"github.com/katmoor/dmscout/store"
	"github.com/katmoor/dmscout/types"
	"github.com/katmoor/dmscout/watch"
)

var version = "dev"

func printStats(stats map[string]detect.Stats) {
	slog.Info("printing detection summary")
	entities := make([]string, 0, len(stats))
	for e := range stats {
		entities = append(entities, e)
	}
	sort.Strings(entities)

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Entity", "Attempts", "Hits", "Cache hits")
	for _, e := range entities {
		s := stats[e]
		table.Append(e, fmt.Sprintf("%d", s.Attempts), fmt.Sprintf("%d", s.Hits), fmt.Sprintf("%d", s.CacheHits))
	}
	table.Render()
}

func main() {
	configLoc := flag.String("c", "", "The location of the configuration file. If empty, configuration is read from environment variables only.")
	toStdout := flag.Bool("stdout", false, "If set to true the detected reels will be written to stdout despite any other existing writer configurations.")
	months := flag.Int("months", 0, "Immediately start scrolling toward the date this many months back.")
	printVersion := flag.Bool("v", false, "The version of dmscout.")
	debugFlag := flag.Bool("debug", false, "Prints debug logs.")
	summaryFlag := flag.Bool("summary", false, "Print a detection summary at the end.")

	flag.Parse()

	if *printVersion {
		buildInfo, ok := debug.ReadBuildInfo()
		if ok {
			if buildInfo.Main.Version != "" && buildInfo.Main.Version != "(devel)" {
				fmt.Println(buildInfo.Main.Version)
				return
			}
		}
		fmt.Println(version)
		return
	}

	log.Debug = *debugFlag
	log.InitializeDefaultLogger()
	logger := slog.Default()

	cfg, err := config.NewConfig(*configLoc)
	if err != nil {
		logger.Error(fmt.Sprintf("%v", err))
		os.Exit(1)
	}
	if *toStdout {
		cfg.Writer.Type = output.STDOUT_WRITER_TYPE
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = log.ContextWithLogger(ctx, logger)

	st, err := store.New(cfg.Store)
	if err != nil {
		logger.Error(fmt.Sprintf("failed to open store: %v", err))
		os.Exit(1)
	}
	defer st.Close()

	tables, err := detect.LoadTables(cfg.StrategyFile)
	if err != nil {
		logger.Error(fmt.Sprintf("failed to load strategy tables: %v", err))
		os.Exit(1)
	}
	classifier := detect.NewClassifier(tables, store.NewLayeredCache(st, logger), logger)

	dates, err := date.NewResolver(cfg.DateLocation, cfg.DateLanguage)
	if err != nil {
		logger.Error(fmt.Sprintf("failed to build date resolver: %v", err))
		os.Exit(1)
	}

	writer, err := output.New(&cfg.Writer)
	if err != nil {
		logger.Error(fmt.Sprintf("%v", err))
		os.Exit(1)
	}
	records := make(chan types.ReelRecord, 64)
	var writerWg sync.WaitGroup
	writerWg.Add(1)
	go func() {
		defer writerWg.Done()
		writer.Write(records)
	}()

	bs := browser.NewSession(cfg)
	defer bs.Close()
	if err := bs.Start(ctx); err != nil {
		logger.Error(fmt.Sprintf("%v", err))
		os.Exit(1)
	}
	if err := bs.Navigate(ctx, cfg.ConversationURL); err != nil {
		logger.Error(fmt.Sprintf("failed to open conversation: %v", err))
		os.Exit(1)
	}

	watcher := watch.NewWatcher(watch.Config{Logger: logger})
	if err := watcher.Start(bs.TabContext()); err != nil {
		logger.Error(fmt.Sprintf("failed to start mutation watcher: %v", err))
		os.Exit(1)
	}

	sess := session.New(session.Options{
		Config:     cfg,
		Classifier: classifier,
		Detector:   reel.NewDetector(logger),
		Dates:      dates,
		Store:      st,
		Snapshot:   bs,
		Driver:     bs,
		Logger:     logger,
		Records:    records,
	})
	sess.Start(ctx, watcher)

	if err := sess.Activate(ctx); err != nil {
		logger.Error(fmt.Sprintf("%v", err))
		os.Exit(1)
	}
	if *months > 0 {
		if err := sess.ScrollToMonthsAgo(ctx, *months); err != nil {
			logger.Error(fmt.Sprintf("%v", err))
			os.Exit(1)
		}
	}

	srv := control.NewServer(cfg.Control, sess, logger)
	if err := srv.Run(ctx); err != nil {
		logger.Error(fmt.Sprintf("control api failed: %v", err))
	}

	// Close joins every in-flight detection pass, so nothing can send on
	// records once it is closed.
	sess.Close()
	close(records)
	writerWg.Wait()
	if *summaryFlag {
		printStats(classifier.Stats())
	}
}
