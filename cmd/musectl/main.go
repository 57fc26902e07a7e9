package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/metamuses/musekit/internal/bus"
	"github.com/metamuses/musekit/internal/config"
	"github.com/metamuses/musekit/internal/emotion"
	"github.com/metamuses/musekit/internal/logging"
	"github.com/metamuses/musekit/internal/pipeline"
	"github.com/metamuses/musekit/internal/stream"
)

var (
	useStdin   bool
	streamURL  string
	showFrames bool
)

func main() {
	// .env is optional; env vars layer under the config file either way
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "musectl",
		Short: "Drive the muse avatar animation core from a chat stream",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline against the chat stream (or stdin)",
		RunE:  runPipeline,
	}
	runCmd.Flags().BoolVar(&useStdin, "stdin", false, "read chunks from stdin instead of the chat stream")
	runCmd.Flags().StringVar(&streamURL, "url", "", "chat stream URL (overrides config)")
	runCmd.Flags().BoolVar(&showFrames, "frames", false, "print parameter frames once per second")

	detectCmd := &cobra.Command{
		Use:   "detect [text]",
		Short: "Scan a complete text for emotion markers",
		Args:  cobra.ExactArgs(1),
		RunE:  runDetect,
	}

	root.AddCommand(runCmd, detectCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runDetect(cmd *cobra.Command, args []string) error {
	matches, err := emotion.Detect(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("found %d marker(s)\n", len(matches))
	for _, m := range matches {
		fmt.Printf("  %-10s offset %d\n", m.Emotion, m.Offset)
	}
	return nil
}

func runPipeline(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if streamURL != "" {
		cfg.Stream.URL = streamURL
	}

	logger, err := logging.New(&logging.Config{
		LogDir:  defaultLogDir(),
		Level:   logging.LogLevel(cfg.Log.Level),
		Console: cfg.Log.Console,
	})
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logger.Close()

	evbus := bus.NewEventBus()
	evbus.Subscribe(bus.KindUnknownMarker, func(e bus.Event) {
		ev := e.(bus.UnknownMarker)
		mlog := logger.Component("main")
		mlog.Warn().Str("token", ev.Token).Msg("Dropped unknown marker")
	})

	p, err := pipeline.New(pipeline.Options{
		Config: cfg,
		Logger: logger.Zerolog(),
		Bus:    evbus,
		OnLiteral: func(text string) {
			fmt.Print(text)
		},
		OnMotion: func(motion string) {
			mlog := logger.Component("main")
			mlog.Info().Str("motion", motion).Msg("Motion selected")
		},
	})
	if err != nil {
		return err
	}
	defer p.Close()

	config.Watch(p.ApplyConfig)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	go tick(ctx, p)

	if useStdin {
		return feedStdin(ctx, p)
	}
	return feedStream(ctx, cfg, p, logger)
}

// tick runs the frame loop at ~60fps.
func tick(ctx context.Context, p *pipeline.Pipeline) {
	ticker := time.NewTicker(16 * time.Millisecond)
	defer ticker.Stop()

	var lastPrint time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			frame := p.Update(now)
			if showFrames && now.Sub(lastPrint) >= time.Second {
				lastPrint = now
				fmt.Printf("\n[frame] %v\n", frame)
			}
		}
	}
}

func feedStdin(ctx context.Context, p *pipeline.Pipeline) error {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		if err := p.Feed(scanner.Text() + "\n"); err != nil {
			return err
		}
	}
	if err := p.EndStream(); err != nil {
		return err
	}
	p.WaitIdle()
	return scanner.Err()
}

func feedStream(ctx context.Context, cfg *config.Config, p *pipeline.Pipeline, logger *logging.Logger) error {
	client := stream.NewClient(cfg.Stream.URL, cfg.Stream.ReconnectDelay, cfg.Stream.MaxReconnects, logger.Zerolog())
	client.SetChunkCallback(func(text string) {
		if err := p.Feed(text); err != nil {
			mlog := logger.Component("main")
			mlog.Error().Err(err).Msg("Feed failed")
		}
	})
	client.SetDoneCallback(func() {
		if err := p.EndStream(); err != nil {
			mlog := logger.Component("main")
			mlog.Error().Err(err).Msg("End of stream flush failed")
		}
	})
	client.SetErrorCallback(func(err error) {
		p.Bus().Publish(bus.StreamClosed{Err: err})
	})

	if err := client.Connect(ctx); err != nil {
		return err
	}
	defer client.Disconnect()

	<-ctx.Done()
	return nil
}

func defaultLogDir() string {
	dir, err := config.GetConfigDir()
	if err != nil {
		return "logs"
	}
	return dir + "/logs"
}
