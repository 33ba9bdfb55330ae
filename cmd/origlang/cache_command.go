package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"origlang/internal/api"
	"origlang/internal/filename"
	"origlang/internal/lookup"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the detection cache",
	}
	cacheCmd.AddCommand(newCacheStatsCommand(ctx))
	cacheCmd.AddCommand(newCacheCleanupCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))
	cacheCmd.AddCommand(newCacheDeleteCommand(ctx))
	return cacheCmd
}

func newCacheStatsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			det, err := ctx.newDetector()
			if err != nil {
				return err
			}
			defer det.Close()
			stats, err := api.NewDetectionService(det, 0).CacheStats(cmd.Context())
			if err != nil {
				return fmt.Errorf("cache stats: %w", err)
			}
			if jsonOutput {
				return writeJSON(cmd, stats)
			}
			pairs := [][2]string{
				{"Type", stats.Type},
				{"Enabled", yesNo(stats.Enabled)},
				{"Entries", strconv.Itoa(stats.TotalEntries)},
				{"Active", strconv.Itoa(stats.ActiveEntries)},
				{"Expired", strconv.Itoa(stats.ExpiredEntries)},
			}
			if stats.Location != "" {
				pairs = append(pairs, [2]string{"Location", stats.Location})
			}
			if stats.TTLSeconds > 0 {
				pairs = append(pairs, [2]string{"TTL", strconv.FormatFloat(stats.TTLSeconds, 'f', 0, 64) + "s"})
			}
			if stats.MaxSize > 0 {
				pairs = append(pairs, [2]string{"Max size", strconv.Itoa(stats.MaxSize)})
			}
			if stats.DiskUsageBytes > 0 {
				pairs = append(pairs, [2]string{"Disk usage", humanize.IBytes(uint64(stats.DiskUsageBytes))})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderKeyValues(pairs))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newCacheCleanupCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Remove expired entries and trim the cache to cache.max_size",
		RunE: func(cmd *cobra.Command, args []string) error {
			det, err := ctx.newDetector()
			if err != nil {
				return err
			}
			defer det.Close()
			removed, err := det.CleanupCache(cmd.Context())
			if err != nil {
				return fmt.Errorf("cache cleanup: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cache entries\n", removed)
			return nil
		},
	}
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cache entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			det, err := ctx.newDetector()
			if err != nil {
				return err
			}
			defer det.Close()
			removed, err := det.ClearCache(cmd.Context())
			if err != nil {
				return fmt.Errorf("cache clear: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cache entries\n", removed)
			return nil
		},
	}
}

func newCacheDeleteCommand(ctx *commandContext) *cobra.Command {
	var opts detectOptions
	cmd := &cobra.Command{
		Use:   "delete [file]",
		Short: "Remove the cached result for one title or file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := opts.query()
			if len(args) == 1 {
				q = filename.Parse(args[0]).Query()
			}
			if !q.HasID() && !q.HasTitle() {
				return errors.New("provide --title, --imdb-id, --tmdb-id, or a file")
			}
			det, err := ctx.newDetector()
			if err != nil {
				return err
			}
			defer det.Close()
			deleted, err := det.DeleteFromCache(cmd.Context(), q)
			if err != nil {
				return fmt.Errorf("cache delete: %w", err)
			}
			out := cmd.OutOrStdout()
			if !deleted {
				fmt.Fprintf(out, "No cache entry for %s\n", describeLookup(q))
				return nil
			}
			fmt.Fprintf(out, "Deleted cache entry for %s\n", describeLookup(q))
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&opts.title, "title", "t", "", "Title of the cached lookup")
	flags.IntVarP(&opts.year, "year", "y", 0, "Release year")
	flags.StringVar(&opts.imdbID, "imdb-id", "", "IMDb id (tt...)")
	flags.StringVar(&opts.tmdbID, "tmdb-id", "", "TMDb id")
	flags.BoolVar(&opts.tv, "tv", false, "The lookup was for a TV series")
	flags.IntVar(&opts.season, "season", 0, "Season number")
	flags.IntVar(&opts.episode, "episode", 0, "Episode number")
	return cmd
}

func describeLookup(q lookup.Query) string {
	return describeQuery(api.FromQuery(q))
}
