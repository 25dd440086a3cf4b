package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pollscribe/pollscribe/bus"
	"github.com/pollscribe/pollscribe/capture"
	"github.com/pollscribe/pollscribe/collector"
	"github.com/pollscribe/pollscribe/config"
	"github.com/pollscribe/pollscribe/quiz"
	"github.com/pollscribe/pollscribe/relay"
	"github.com/pollscribe/pollscribe/segment"
	"github.com/pollscribe/pollscribe/store"
	"github.com/pollscribe/pollscribe/syncq"
	"github.com/pollscribe/pollscribe/transcript"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML configuration file")
	serveMode := flag.Bool("serve", false, "Run the collector server")
	summaryFor := flag.String("summary", "", "Print the transcript summary for a meeting and exit")
	quizFor := flag.String("quiz", "", "Generate quiz questions for a meeting and exit")
	questions := flag.Int("questions", 0, "Number of questions to generate (0 = recommended)")
	meetingID := flag.String("meeting", "", "Meeting ID (overrides config)")
	relayURL := flag.String("relay", "", "ASR relay websocket URL (overrides config)")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			slog.Error("Failed to load configuration", "error", err, "path", *configPath)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *meetingID != "" {
		cfg.Meeting.ID = *meetingID
	}
	if *relayURL != "" {
		cfg.Relay.URL = *relayURL
	}

	level := parseLevel(cfg.LogLevel)
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		slog.Error("Failed to open store", "error", err, "path", cfg.Store.Path)
		os.Exit(1)
	}
	defer st.Close()

	if *summaryFor != "" {
		printSummary(st, *summaryFor)
		return
	}

	if *quizFor != "" {
		printQuiz(st, cfg, *quizFor, *questions)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Debug("Received shutdown signal")
		cancel()
	}()

	if *serveMode {
		runCollector(ctx, cfg, st)
	} else {
		runCapture(ctx, cfg, st)
	}

	slog.Debug("Program exiting")
}

func runCollector(ctx context.Context, cfg config.Config, st *store.Store) {
	service, err := collector.New(collector.Config{
		Addr:     cfg.Collector.Addr,
		Store:    st,
		SpoolDir: cfg.Collector.SpoolDir,
		Workers:  cfg.Collector.Workers,
	})
	if err != nil {
		slog.Error("Failed to initialize collector", "error", err)
		os.Exit(1)
	}

	go func() {
		if err := service.Start(ctx); err != nil {
			slog.Error("Collector service failed", "error", err)
		}
	}()

	<-ctx.Done()

	if err := service.Stop(context.Background()); err != nil {
		slog.Error("Failed to stop collector service", "error", err)
	}
}

func runCapture(ctx context.Context, cfg config.Config, st *store.Store) {
	if cfg.Meeting.ID == "" {
		slog.Error("Meeting ID must be provided for capture mode")
		flag.Usage()
		os.Exit(1)
	}
	if cfg.Relay.URL == "" {
		slog.Error("Relay URL must be provided for capture mode")
		flag.Usage()
		os.Exit(1)
	}

	b := bus.New()

	queue := syncq.New(syncq.Config{
		CollectorURL:  cfg.Collector.URL,
		FlushInterval: cfg.Sync.FlushInterval(),
	})
	go queue.Start(ctx)

	bridge := capture.New(cfg.Meeting.ID, b, st, queue)
	bridge.Attach()
	defer bridge.Detach()

	// Compatibility path for components that only log announcements
	// instead of publishing on the bus.
	restore := capture.Install(b)
	defer restore()

	engine := segment.New(segment.Config{
		MeetingID:        cfg.Meeting.ID,
		Hostmail:         cfg.Meeting.Hostmail,
		PauseThreshold:   cfg.Segmenter.PauseThreshold(),
		ActivityGrace:    cfg.Segmenter.ActivityGrace(),
		PollInterval:     cfg.Segmenter.PollInterval(),
		MinSegmentLength: cfg.Segmenter.MinSegmentLength,
		DuplicateScore:   cfg.Segmenter.DuplicateScore,
	}, func() []transcript.Fragment {
		fragments, err := st.List(cfg.Meeting.ID)
		if err != nil {
			slog.Error("Failed to list fragments", "error", err)
			return nil
		}
		return fragments
	}, segment.NewCollector(cfg.Collector.URL))

	engine.Start(ctx)
	defer engine.Stop()

	relayClient := relay.New(relay.Config{
		URL:       cfg.Relay.URL,
		MeetingID: cfg.Meeting.ID,
	}, b)
	go relayClient.Run(ctx)

	slog.Info("capture running",
		"meetingID", cfg.Meeting.ID,
		"relay", cfg.Relay.URL,
		"collector", cfg.Collector.URL)

	<-ctx.Done()
}

func printSummary(st *store.Store, meetingID string) {
	sum, err := st.Summarize(meetingID)
	if err != nil {
		slog.Error("Failed to summarize meeting", "error", err)
		os.Exit(1)
	}
	capability := store.QuestionCapability(sum)

	fmt.Printf("Meeting %s\n", meetingID)
	fmt.Printf("  Fragments:     %d\n", sum.TotalRecords)
	fmt.Printf("  Words:         %d\n", sum.TotalWords)
	fmt.Printf("  Duration:      %dms\n", sum.TotalDurationMs)
	fmt.Printf("  Participants:  %d\n", sum.UniqueParticipants)
	fmt.Printf("  Words/minute:  %.1f\n", sum.AvgWordsPerMinute)
	fmt.Printf("  Ready for AI:  %v\n", sum.ReadyForAI)
	fmt.Printf("  Questions:     %d-%d (recommended %d, confidence %s)\n",
		capability.MinQuestions, capability.MaxQuestions,
		capability.RecommendedQuestions, capability.Confidence)
}

func printQuiz(st *store.Store, cfg config.Config, meetingID string, count int) {
	g := quiz.New(quiz.Config{
		BaseURL: cfg.Quiz.BaseURL,
		Model:   cfg.Quiz.Model,
	}, st)

	generated, err := g.Generate(context.Background(), meetingID, count)
	if err != nil {
		slog.Error("Failed to generate questions", "error", err)
		os.Exit(1)
	}

	for i, q := range generated {
		fmt.Printf("%d. %s [%s]\n", i+1, q.Question, q.Source)
		for j, opt := range q.Options {
			fmt.Printf("   %c) %s\n", 'a'+j, opt)
		}
		fmt.Printf("   answer: %s\n\n", q.Answer)
	}
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
