package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"photogallery/internal/config"
	"photogallery/internal/gallery"
	"photogallery/internal/lightbox"
	"photogallery/internal/logging"
	"photogallery/internal/metrics"
	"photogallery/internal/server"
	"photogallery/internal/service"
	"photogallery/internal/store"
)

// backend is everything a command needs, opened once per invocation.
type backend struct {
	cfg      *config.Config
	log      *slog.Logger
	store    *store.Lazy
	gallery  *gallery.Model
	svc      *service.Service
	registry *prometheus.Registry
}

func (b *backend) Close() error {
	return b.store.Close()
}

func openBackend(cfg *config.Config, log *slog.Logger) (*backend, error) {
	st := store.New(cfg.Store, log)
	model := gallery.New(st, log)

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	model.Subscribe(collector)

	svc := service.NewService(model, service.NewImageCodec(), service.DirScanner{}, log)
	svc.Metrics = collector
	svc.Workers = cfg.Import.Workers

	return &backend{cfg: cfg, log: log, store: st, gallery: model, svc: svc, registry: reg}, nil
}

var (
	be         *backend
	countFlag  int
	startFlag  int
	green      = color.New(color.FgGreen).SprintFunc()
	yellow     = color.New(color.FgYellow).SprintFunc()
	red        = color.New(color.FgRed).SprintFunc()
	cyan       = color.New(color.FgHiCyan, color.Bold).SprintFunc()
	errNoAdded = errors.New("no images were added")
)

// NewRootCmd creates the root command for the CLI application.
// open builds the backend from the loaded configuration, so tests can
// inject their own.
func NewRootCmd(open func(cfg *config.Config, log *slog.Logger) (*backend, error)) *cobra.Command {
	var rootCmd = &cobra.Command{
		Use:           "photogallery-cli",
		Short:         "Photo gallery CLI - manage the gallery and run its slideshow",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(path, cmd.Flags())
			if err != nil {
				return err
			}
			log := logging.New(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())

			be, err = open(cfg, log)
			if err != nil {
				return fmt.Errorf("failed to open the gallery: %w", err)
			}
			if err := be.gallery.LoadFromStore(cmd.Context()); err != nil {
				cmd.PrintErrln(yellow("warning: image storage is unavailable, changes will not be kept"))
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			closeBackend()
		},
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "add [file...]",
		Short: "Add image files to the gallery",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printReport(cmd, be.svc.AddFiles(cmd.Context(), args))
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "import [directory]",
		Short: "Add every image found under a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := be.svc.ImportDirectory(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printReport(cmd, report)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the gallery in display order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			images := be.svc.List()
			if len(images) == 0 {
				cmd.Println("The gallery is empty.")
				return nil
			}
			for i, img := range images {
				_, mime, _ := service.DecodeDataURL(img.Data)
				cmd.Printf("%4d  %s  %-10s  %d bytes\n", i, img.ID, mime, len(img.Data))
			}
			return nil
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "delete [id...]",
		Short: "Remove images from the gallery",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var missing int
			for _, id := range args {
				removed, err := be.svc.DeleteByID(cmd.Context(), id)
				switch {
				case errors.Is(err, store.ErrStorageUnavailable):
					cmd.Printf("%s %s (storage unavailable, it may return)\n", yellow("removed"), id)
				case err != nil:
					return err
				case !removed:
					missing++
					cmd.Printf("%s %s\n", red("not found"), id)
				default:
					cmd.Printf("%s %s\n", green("removed"), id)
				}
			}
			if missing == len(args) {
				return errors.New("no matching images")
			}
			return nil
		},
	})

	slideshowCmd := &cobra.Command{
		Use:   "slideshow",
		Short: "Print the images in slideshow order at the configured period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runSlideshow(ctx, cmd, be)
		},
	}
	slideshowCmd.Flags().IntVar(&countFlag, "count", 0, "stop after this many images (0 runs until interrupted)")
	slideshowCmd.Flags().IntVar(&startFlag, "start", 0, "index of the first image")
	rootCmd.AddCommand(slideshowCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Serve the gallery over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := server.New(be.svc, be.registry, be.cfg.HTTP.BodyLimit, be.log)
			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start(be.cfg.HTTP.Addr) }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}
			return srv.Shutdown(context.Background())
		},
	})

	config.AddFlags(rootCmd.PersistentFlags())

	return rootCmd
}

// closeBackend releases the backend. Cobra skips post-run hooks when a
// command fails, so main calls it again after Execute.
func closeBackend() {
	if be == nil {
		return
	}
	if err := be.Close(); err != nil {
		be.log.Warn("closing image store", slog.Any("error", err))
	}
	be = nil
}

func printReport(cmd *cobra.Command, report service.AddReport) error {
	for _, r := range report.Results {
		switch {
		case r.Err == nil:
			cmd.Printf("%s %s as %s\n", green("added"), r.Name, r.Image.ID)
		case r.Added():
			cmd.Printf("%s %s as %s (not saved: %v)\n", yellow("added"), r.Name, r.Image.ID, r.Err)
		default:
			cmd.Printf("%s %s: %v\n", red("skipped"), r.Name, r.Err)
		}
	}
	cmd.Printf("%d added, %d skipped\n", report.Added, report.Skipped)
	if report.Added == 0 {
		return errNoAdded
	}
	return nil
}

// runSlideshow drives a lightbox with no screen attached and prints every
// image it shows.
func runSlideshow(ctx context.Context, cmd *cobra.Command, b *backend) error {
	shown := make(chan lightbox.Event, 16)
	ctl := lightbox.New(b.gallery,
		lightbox.WithLogger(b.log),
		lightbox.WithFadeDelay(0),
		lightbox.WithPeriod(b.cfg.Slideshow.PeriodSeconds),
		lightbox.WithListener(func(e lightbox.Event) {
			select {
			case shown <- e:
			default:
			}
		}),
	)
	defer ctl.Close()

	if err := ctl.Open(startFlag); err != nil {
		return err
	}

	count := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-shown:
			if e.Kind == lightbox.ClosedEvent {
				return nil
			}
			count++
			cmd.Printf("%s %s\n", cyan(fmt.Sprintf("[%d/%d]", e.Index+1, b.gallery.Len())), e.Image.ID)
			if countFlag > 0 && count >= countFlag {
				return nil
			}
		}
	}
}

func main() {
	rootCmd := NewRootCmd(openBackend)
	err := rootCmd.Execute()
	closeBackend()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
