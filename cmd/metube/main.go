package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/AlexGustafsson/metube/internal/config"
	"github.com/AlexGustafsson/metube/internal/metrics"
	"github.com/AlexGustafsson/metube/internal/pipeline"
	"github.com/AlexGustafsson/metube/internal/thumbnail"
	"github.com/AlexGustafsson/metube/internal/youtube"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

const tickInterval = 50 * time.Millisecond

type searchOptions struct {
	configPath string
	sort       string
	media      string
	shorts     bool
	pages      int
	thumbnails time.Duration
}

func loadConfig(path string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if path != "" {
		var err error
		cfg, err = config.ReadConfig(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := cfg.PopulateFromEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to read config from environment: %w", err)
	}

	return cfg, cfg.Validate()
}

func serveMetrics(ctx context.Context, port uint16, m *metrics.Metrics) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(m)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}

	go func() {
		<-ctx.Done()
		server.Close()
	}()

	go func() {
		slog.Debug("Serving metrics", slog.Int("port", int(port)))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Failed to serve metrics", slog.Any("error", err))
		}
	}()
}

// tickUntil ticks p until done returns true or ctx is cancelled.
func tickUntil(ctx context.Context, p *pipeline.Pipeline, done func() bool) error {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		p.Tick()
		for _, result := range p.Results() {
			p.Touch(result.ID)
		}

		if done() {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func search(ctx context.Context, w io.Writer, cfg *config.Config, query youtube.Query, pages int, thumbnails time.Duration) error {
	m := metrics.New()
	if cfg.Prometheus != nil && cfg.Prometheus.Enabled {
		serveMetrics(ctx, cfg.Prometheus.Port, m)
	}

	p, err := pipeline.New(cfg, &pipeline.Options{Metrics: m})
	if err != nil {
		return err
	}
	defer p.Close()

	if err := p.Start(ctx); err != nil {
		return err
	}

	if err := p.Search(query); err != nil {
		return err
	}

	for page := 1; ; page++ {
		if err := tickUntil(ctx, p, func() bool { return !p.Status().SearchInProgress }); err != nil {
			return err
		}

		status := p.Status()
		if !status.LastSearchSucceeded {
			if status.Offline {
				return errors.New("offline")
			}
			if page == 1 {
				return errors.New("search failed")
			}
			break
		}

		if page >= pages || !p.HasMore() {
			break
		}

		if err := p.LoadMore(); err != nil {
			return err
		}
	}

	// Give thumbnails a chance to arrive
	if thumbnails > 0 {
		deadline := time.Now().Add(thumbnails)
		err := tickUntil(ctx, p, func() bool {
			if time.Now().After(deadline) {
				return true
			}
			for _, result := range p.Results() {
				if result.ThumbnailPath != "" && result.Thumbnail == nil {
					return false
				}
			}
			return true
		})
		if err != nil {
			return err
		}
	}

	return printResults(w, p.Results())
}

func printResults(w io.Writer, results []pipeline.Result) error {
	writer := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "KIND\tID\tTITLE\tAUTHOR\tINFO\tTHUMBNAIL")
	for _, result := range results {
		var info []string
		for _, field := range []string{result.Views, result.Published, result.Duration, result.Subscribers, result.VideoCount} {
			if field != "" {
				info = append(info, field)
			}
		}

		thumbnailInfo := "-"
		if image, ok := result.Thumbnail.(*thumbnail.Image); ok && image.Image() != nil {
			bounds := image.Image().Bounds()
			thumbnailInfo = fmt.Sprintf("%s %dx%d", image.Format(), bounds.Dx(), bounds.Dy())
		}

		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%s\n", result.Kind, result.ID, result.Title, result.Author, strings.Join(info, ", "), thumbnailInfo)
	}
	return writer.Flush()
}

func newSearchCmd(ctx context.Context) *cobra.Command {
	var options searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search YouTube",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(options.configPath)
			if err != nil {
				return err
			}

			slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
				Level: cfg.LogLevel,
			})))

			query := youtube.Query{
				Text:        strings.Join(args, " "),
				Sort:        cfg.Search.Sort,
				Media:       cfg.Search.Media,
				AllowShorts: cfg.Search.AllowShorts,
			}

			if cmd.Flags().Changed("sort") {
				query.Sort, err = youtube.ParseSort(options.sort)
				if err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("media") {
				query.Media, err = youtube.ParseMedia(options.media)
				if err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("shorts") {
				query.AllowShorts = options.shorts
			}

			return search(ctx, cmd.OutOrStdout(), cfg, query, options.pages, options.thumbnails)
		},
	}

	cmd.Flags().StringVarP(&options.configPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&options.sort, "sort", "relevance", "sort order (relevance, upload-date, view-count, rating)")
	cmd.Flags().StringVar(&options.media, "media", "any", "media type (any, video, channel, playlist, live)")
	cmd.Flags().BoolVar(&options.shorts, "shorts", false, "include shorts")
	cmd.Flags().IntVarP(&options.pages, "pages", "p", 1, "number of pages to fetch")
	cmd.Flags().DurationVar(&options.thumbnails, "thumbnails", 5*time.Second, "time to wait for thumbnails, zero to skip")

	return cmd
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "init <path>",
		Short: "Create a config file with default values unless it exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.CreateConfigIfNotExists(args[0])
		},
	})

	return cmd
}

func newRootCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "metube",
		Short:         "Search YouTube from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newSearchCmd(ctx))
	cmd.AddCommand(newConfigCmd())

	return cmd
}

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	// Exit on SIGINT or SIGTERM
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		abort := make(chan os.Signal, 1)
		signal.Notify(abort, syscall.SIGINT, syscall.SIGTERM)
		caught := 0
		for {
			<-abort
			caught++
			if caught == 1 {
				slog.Info("Caught signal, exiting gracefully")
				cancel()
			} else {
				slog.Info("Caught signal, exiting now")
				os.Exit(1)
			}
		}
	}()

	if err := newRootCmd(ctx).Execute(); err != nil {
		slog.Error("Program was unsuccessful", slog.Any("error", err))
		os.Exit(1)
	}
}
