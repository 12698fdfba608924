package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"music-librarian/internal/cache"
	"music-librarian/internal/catalog"
	"music-librarian/internal/config"
	"music-librarian/internal/fetcher"
	"music-librarian/internal/library"
	"music-librarian/internal/logging"
	"music-librarian/internal/matcher"
	"music-librarian/internal/models"
	"music-librarian/internal/pipeline"
	"music-librarian/internal/prompt"
)

type app struct {
	configPath string
	cfg        config.Config
	logger     *slog.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "music-librarian",
		Short:         "Cross reference a local music library with Spotify",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd.ErrOrStderr())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(newResolveCommand(a))
	rootCmd.AddCommand(newCacheCommand(a))
	rootCmd.AddCommand(newLibraryCommand(a))
	return rootCmd
}

func (a *app) init(logOut io.Writer) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format, logOut)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

func (a *app) openCache() (*cache.Cache, func(), error) {
	store, err := cache.Open(a.cfg.Cache.Backend, a.cfg.Cache.Path)
	if err != nil {
		return nil, nil, err
	}
	c := cache.Load(store, a.logger)
	return c, func() {
		if err := store.Close(); err != nil {
			a.logger.Warn("close cache store", logging.Error(err))
		}
	}, nil
}

// lockCache takes an exclusive lock next to the cache so two runs never
// rewrite the same cache concurrently.
func (a *app) lockCache() (*flock.Flock, error) {
	if err := os.MkdirAll(filepath.Dir(a.cfg.Cache.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	lock := flock.New(a.cfg.Cache.Path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock cache: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("cache %s is in use by another run", a.cfg.Cache.Path)
	}
	return lock, nil
}

func newResolveCommand(a *app) *cobra.Command {
	var (
		libraryPath    string
		nonInteractive bool
		retrySkipped   bool
	)

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Match every uncached library track against Spotify",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if libraryPath != "" {
				a.cfg.Library.Path = libraryPath
			}
			if err := a.cfg.RequireSpotify(); err != nil {
				return err
			}

			lib, err := library.Load(a.cfg.Library.Path, a.cfg.Library.Format)
			if err != nil {
				return &pipeline.StageError{Stage: pipeline.StageLoad, Err: err}
			}

			lock, err := a.lockCache()
			if err != nil {
				return &pipeline.StageError{Stage: pipeline.StageLoad, Err: err}
			}
			defer lock.Unlock() //nolint:errcheck

			c, closeCache, err := a.openCache()
			if err != nil {
				return &pipeline.StageError{Stage: pipeline.StageLoad, Err: err}
			}
			defer closeCache()

			client := catalog.NewClientCredentialsClient(ctx, a.cfg.Spotify.ClientID, a.cfg.Spotify.ClientSecret)
			f := fetcher.New(catalog.NewSpotify(client), fetcher.Options{
				Interval:    a.cfg.FetchInterval(),
				Limit:       a.cfg.Fetch.ResultLimit,
				MaxInFlight: a.cfg.Fetch.MaxInFlight,
				Retries:     a.cfg.Fetch.Retries,
			}, a.logger)

			mode := a.cfg.Resolve.Interactive
			if nonInteractive {
				mode = "never"
			}
			r := matcher.NewResolver(prompt.ForMode(mode), a.cfg.Resolve.MaxOptions, a.logger)

			o := pipeline.New(c, f, r, pipeline.Options{
				RememberSkips: a.cfg.Cache.RememberSkips,
				RetrySkipped:  retrySkipped,
			}, a.logger)

			report, runErr := o.Run(ctx, lib.Tracks())
			fmt.Fprintln(cmd.OutOrStdout(), renderReport(report))
			return runErr
		},
	}

	cmd.Flags().StringVar(&libraryPath, "library", "", "Library file (iTunes XML or CSV)")
	cmd.Flags().BoolVar(&nonInteractive, "non-interactive", false, "Decline every manual prompt")
	cmd.Flags().BoolVar(&retrySkipped, "retry-skipped", false, "Retry tracks previously marked as skipped")
	return cmd
}

func newCacheCommand(a *app) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the cross reference cache",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List every cached record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, closeCache, err := a.openCache()
			if err != nil {
				return err
			}
			defer closeCache()

			records := c.Records()
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Cache is empty")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderRecords(records))
			return nil
		},
	}

	var remoteID, localID string
	lookupCmd := &cobra.Command{
		Use:   "lookup",
		Short: "Look up a record by Spotify or library id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (remoteID == "") == (localID == "") {
				return errors.New("exactly one of --remote or --local is required")
			}
			c, closeCache, err := a.openCache()
			if err != nil {
				return err
			}
			defer closeCache()

			ns, id := models.Remote, remoteID
			if localID != "" {
				ns, id = models.Local, localID
			}
			r, ok := c.Lookup(ns, id)
			if !ok {
				fmt.Fprintf(cmd.OutOrStdout(), "%s id %s is not cached\n", ns, id)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderRecords([]models.Record{r}))
			return nil
		},
	}
	lookupCmd.Flags().StringVar(&remoteID, "remote", "", "Spotify track URI")
	lookupCmd.Flags().StringVar(&localID, "local", "", "Library persistent id")

	cacheCmd.AddCommand(listCmd, lookupCmd)
	return cacheCmd
}

func newLibraryCommand(a *app) *cobra.Command {
	var libraryPath string

	cmd := &cobra.Command{
		Use:   "library",
		Short: "Summarize the library and how much of it is cached",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if libraryPath != "" {
				a.cfg.Library.Path = libraryPath
			}
			lib, err := library.Load(a.cfg.Library.Path, a.cfg.Library.Format)
			if err != nil {
				return &pipeline.StageError{Stage: pipeline.StageLoad, Err: err}
			}
			c, closeCache, err := a.openCache()
			if err != nil {
				return err
			}
			defer closeCache()

			tracks := lib.Tracks()
			uncached := len(c.Uncached(tracks, false))
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]column{right("Tracks"), right("Cached"), right("Uncached"), right("Playlists")},
				[][]string{{
					strconv.Itoa(len(tracks)),
					strconv.Itoa(len(tracks) - uncached),
					strconv.Itoa(uncached),
					strconv.Itoa(len(lib.Playlists())),
				}},
			))

			if len(lib.Playlists()) > 0 {
				rows := make([][]string, 0, len(lib.Playlists()))
				for _, p := range lib.Playlists() {
					rows = append(rows, []string{p.Name, strconv.Itoa(len(p.TrackIDs)), p.Description})
				}
				fmt.Fprintln(out, renderTable([]column{left("Playlist"), right("Tracks"), left("Description")}, rows))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&libraryPath, "library", "", "Library file (iTunes XML or CSV)")
	return cmd
}
