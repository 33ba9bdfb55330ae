package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/semaphore"

	"origlang/internal/api"
	"origlang/internal/filename"
	"origlang/internal/language"
	"origlang/internal/lookup"
)

type detectOptions struct {
	title         string
	year          int
	imdbID        string
	tmdbID        string
	tv            bool
	season        int
	episode       int
	exact         bool
	minConfidence float64
	jsonOutput    bool
	jobs          int
}

func newDetectCommand(ctx *commandContext) *cobra.Command {
	var opts detectOptions

	cmd := &cobra.Command{
		Use:   "detect [file...]",
		Short: "Detect the original language of a title or media files",
		Long: `Detect the original language of a title given by flags, or of each
media file named on the command line. File names are parsed for title, year,
season/episode and {imdb-tt...}/{tmdb-...} tags.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var minConfidence *float64
			if cmd.Flags().Changed("min-confidence") {
				if opts.minConfidence < 0 || opts.minConfidence > 1 {
					return errors.New("--min-confidence must be between 0 and 1")
				}
				minConfidence = &opts.minConfidence
			}

			det, err := ctx.newDetector()
			if err != nil {
				return err
			}
			defer det.Close()
			svc := api.NewDetectionService(det, det.Config().Detection.ConfidenceThreshold)

			var results []api.DetectResponse
			if len(args) > 0 {
				results, err = detectFiles(cmd.Context(), svc, args, opts.jobs, minConfidence)
				if err != nil {
					return err
				}
			} else {
				q := opts.query()
				if !q.HasID() && !q.HasTitle() {
					return errors.New("provide --title, --imdb-id, --tmdb-id, or one or more files")
				}
				results = []api.DetectResponse{svc.Detect(cmd.Context(), q, minConfidence)}
			}

			if opts.jsonOutput {
				if len(args) == 0 {
					return writeJSON(cmd, results[0])
				}
				return writeJSON(cmd, results)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderDetections(results))
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.title, "title", "t", "", "Title to look up")
	flags.IntVarP(&opts.year, "year", "y", 0, "Release year")
	flags.StringVar(&opts.imdbID, "imdb-id", "", "IMDb id (tt...)")
	flags.StringVar(&opts.tmdbID, "tmdb-id", "", "TMDb id")
	flags.BoolVar(&opts.tv, "tv", false, "Look up a TV series instead of a movie")
	flags.IntVar(&opts.season, "season", 0, "Season number (implies --tv)")
	flags.IntVar(&opts.episode, "episode", 0, "Episode number (implies --tv)")
	flags.BoolVar(&opts.exact, "exact", false, "Require an exact title match")
	flags.Float64Var(&opts.minConfidence, "min-confidence", 0, "Minimum confidence to accept (default detection.confidence_threshold)")
	flags.BoolVar(&opts.jsonOutput, "json", false, "Emit JSON instead of a table")
	flags.IntVarP(&opts.jobs, "jobs", "j", 4, "Files to look up concurrently")
	return cmd
}

func (o detectOptions) query() lookup.Query {
	q := lookup.Query{
		Title:      strings.TrimSpace(o.title),
		Year:       o.year,
		IMDbID:     strings.TrimSpace(o.imdbID),
		TMDbID:     strings.TrimSpace(o.tmdbID),
		MediaType:  lookup.MediaMovie,
		Season:     o.season,
		Episode:    o.episode,
		ExactTitle: o.exact,
	}
	if o.tv || o.season > 0 || o.episode > 0 {
		q.MediaType = lookup.MediaTV
	}
	return q
}

func detectFiles(ctx context.Context, svc *api.DetectionService, names []string, jobs int, minConfidence *float64) ([]api.DetectResponse, error) {
	if jobs < 1 {
		jobs = 1
	}
	results := make([]api.DetectResponse, len(names))
	sem := semaphore.NewWeighted(int64(jobs))
	for i, name := range names {
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		go func() {
			defer sem.Release(1)
			parsed := filename.Parse(name)
			if parsed.Empty() {
				results[i] = api.DetectResponse{File: name}
				return
			}
			results[i] = svc.DetectFile(ctx, name, parsed.Query(), minConfidence)
		}()
	}
	if err := sem.Acquire(ctx, int64(jobs)); err != nil {
		return nil, err
	}
	return results, nil
}

func renderDetections(results []api.DetectResponse) string {
	rows := make([][]string, 0, len(results))
	for _, res := range results {
		input := res.File
		if input == "" {
			input = describeQuery(res.Query)
		}
		d := res.Detection
		if d == nil {
			rows = append(rows, []string{input, "-", "-", "-", "not detected", "-"})
			continue
		}
		rows = append(rows, []string{
			input,
			fmt.Sprintf("%s (%s)", d.Language, language.DisplayName(d.Language)),
			strconv.FormatFloat(d.Confidence, 'f', 2, 64),
			yesNo(d.Reliable),
			d.Source + "/" + d.Method,
			strconv.FormatFloat(d.DetectionTimeMs, 'f', 0, 64) + "ms",
		})
	}
	return renderTable(
		[]string{"Input", "Language", "Confidence", "Reliable", "Source", "Time"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignRight},
	)
}

func describeQuery(q api.Query) string {
	var parts []string
	if q.Title != "" {
		parts = append(parts, q.Title)
	}
	if q.Year > 0 {
		parts = append(parts, fmt.Sprintf("(%d)", q.Year))
	}
	if q.Season > 0 || q.Episode > 0 {
		parts = append(parts, fmt.Sprintf("S%02dE%02d", q.Season, q.Episode))
	}
	if q.IMDbID != "" {
		parts = append(parts, q.IMDbID)
	}
	if q.TMDbID != "" {
		parts = append(parts, "tmdb:"+q.TMDbID)
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, " ")
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
