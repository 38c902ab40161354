package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jobmatch/jobmatch/internal/backend"
	"github.com/jobmatch/jobmatch/internal/filtering"
	"github.com/jobmatch/jobmatch/internal/matching"
)

const (
	PromptSortScore   = "Sort by match score"
	PromptSortDate    = "Sort by date"
	PromptSortCompany = "Sort by company"
	PromptDetails     = "Show job details"
	PromptRerun       = "Re-run last search"
	PromptClear       = "Clear results"
	PromptExit        = "Exit"
	PromptBack        = "back"
)

var errExit = errors.New("exit requested")

var browserPrompt = promptui.Select{
	Label: "What next?",
	Items: []string{PromptSortScore, PromptSortDate, PromptSortCompany, PromptDetails, PromptRerun, PromptClear, PromptExit},
}

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search jobs and match them against your resume",
	Run: func(cmd *cobra.Command, _ []string) {
		search(cmd)
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().StringP("keywords", "k", "", "search keywords")
	searchCmd.Flags().StringP("location", "l", "", "location name")
	searchCmd.Flags().StringSlice("experience", nil, "experience level codes (1-6)")
	searchCmd.Flags().StringSlice("job-type", nil, "job type codes (F,P,C,T,I,V)")
	searchCmd.Flags().StringSlice("remote", nil, "workplace codes (1 on-site, 2 remote, 3 hybrid)")
	searchCmd.Flags().Int("limit", 0, "number of jobs to fetch")
	searchCmd.Flags().StringP("sort", "s", string(matching.SortByScore), "sort key: score, date or company")
	searchCmd.Flags().Bool("rerun", false, "re-run the last saved search")
	searchCmd.Flags().Bool("clear", false, "forget the last search and exit")
	searchCmd.Flags().BoolP("no-interactive", "n", false, "print the results and exit")
	searchCmd.Flags().StringP("format", "o", formatTable, "output format: table or json")
}

// searcher runs searches against the board so late responses of superseded
// searches never replace newer results.
type searcher struct {
	*cli
	board   *matching.Board
	filters []filtering.Filter
}

func newSearcher(c *cli) *searcher {
	return &searcher{cli: c, board: matching.NewBoard(), filters: filtering.Default()}
}

// run searches, filters and commits the result. It returns false when a newer
// search superseded this one.
func (s *searcher) run(ctx context.Context, params *backend.SearchParams) (bool, error) {
	ticket := s.board.Begin()

	result, err := s.client.SearchAndMatch(ctx, params)
	if err != nil {
		return false, err
	}

	matches, err := filtering.Run(ctx, s.config.Filters, filtering.Deps{Logger: s.logger.Named("filtering")}, s.filters, result.Matches)
	if err != nil {
		return false, fmt.Errorf("filtering: %w", err)
	}

	if !s.board.Commit(ticket, params, matches, result.TotalJobs) {
		s.logger.Debug("dropping results of a superseded search")
		return false, nil
	}

	if err := s.store.SaveLastSearch(ctx, *params); err != nil {
		s.logger.Warn("saving last search", zap.Error(err))
	}

	s.logger.Info("search finished",
		zap.String("keywords", params.Keywords),
		zap.Int("total_jobs", result.TotalJobs),
		zap.Int("matches", len(result.Matches)),
		zap.Int("shown", len(matches)),
	)
	if msg := strings.TrimSpace(result.Message); msg != "" {
		s.logger.Debug("backend message", zap.String("message", msg))
	}

	return true, nil
}

func (s *searcher) clear(ctx context.Context) error {
	s.board.Clear()
	return s.store.ClearLastSearch(ctx)
}

func search(cmd *cobra.Command) {
	ctx := cmd.Context()
	c := setup(ctx)
	defer c.close()

	s := newSearcher(c)

	if clearFlag, _ := cmd.Flags().GetBool("clear"); clearFlag {
		if err := s.clear(ctx); err != nil {
			c.fatal("clearing last search", err)
		}
		c.logger.Info("last search cleared")
		return
	}

	sortFlag, _ := cmd.Flags().GetString("sort")
	key, err := matching.ParseSortKey(sortFlag)
	if err != nil {
		c.fatal("parsing sort key", err)
	}
	s.board.SetSort(key)

	format, _ := cmd.Flags().GetString("format")

	params, err := searchParams(ctx, cmd, c)
	if err != nil {
		c.fatal("preparing search", err)
	}

	userID, err := c.userID(ctx)
	if err != nil {
		c.fatal("getting current user", err)
	}
	params.UserID = userID

	if _, err := s.run(ctx, params); err != nil {
		c.fatal("searching jobs", err)
	}

	out := cmd.OutOrStdout()
	if err := renderViews(out, s.board.Views(c.config.Display), format); err != nil {
		c.fatal("rendering results", err)
	}

	if noInteractive, _ := cmd.Flags().GetBool("no-interactive"); noInteractive || format == formatJSON {
		return
	}

	if err := s.browse(ctx, out); err != nil && !errors.Is(err, errExit) {
		c.fatal("browsing results", err)
	}
}

// searchParams builds the parameters from --rerun, flags and configured defaults.
func searchParams(ctx context.Context, cmd *cobra.Command, c *cli) (*backend.SearchParams, error) {
	if rerun, _ := cmd.Flags().GetBool("rerun"); rerun {
		last, err := c.store.LoadLastSearch(ctx)
		if err != nil {
			return nil, err
		}
		if last == nil {
			return nil, errors.New("there is no saved search to re-run")
		}
		return last, nil
	}

	flags := cmd.Flags()
	params := &backend.SearchParams{}
	params.Keywords, _ = flags.GetString("keywords")
	params.LocationName, _ = flags.GetString("location")
	params.ExperienceLevel, _ = flags.GetStringSlice("experience")
	params.JobType, _ = flags.GetStringSlice("job-type")
	params.Remote, _ = flags.GetStringSlice("remote")
	params.Limit, _ = flags.GetInt("limit")

	params.Merge(c.config.Search)
	params.Merge(backend.DefaultSearchParams())

	if strings.TrimSpace(params.Keywords) == "" {
		keywords, err := (&promptui.Prompt{Label: "Keywords"}).Run()
		if err != nil {
			return nil, err
		}
		params.Keywords = strings.TrimSpace(keywords)
	}

	return params, nil
}

// browse lets the user re-sort, inspect, re-run or clear the results.
func (s *searcher) browse(ctx context.Context, out io.Writer) error {
	for {
		_, action, err := browserPrompt.Run()
		if err != nil {
			if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
				return errExit
			}
			return err
		}

		if err := s.handleAction(ctx, out, action); err != nil {
			return err
		}
	}
}

func (s *searcher) handleAction(ctx context.Context, out io.Writer, action string) error {
	switch action {
	case PromptSortScore, PromptSortDate, PromptSortCompany:
		s.board.SetSort(map[string]matching.SortKey{
			PromptSortScore:   matching.SortByScore,
			PromptSortDate:    matching.SortByDate,
			PromptSortCompany: matching.SortByCompany,
		}[action])
		return renderViews(out, s.board.Views(s.config.Display), formatTable)
	case PromptDetails:
		return s.details(out)
	case PromptRerun:
		last := s.board.LastSearch()
		if last == nil {
			s.logger.Info("nothing to re-run", zap.String("reason", "results were cleared"))
			return nil
		}
		if _, err := s.run(ctx, last); err != nil {
			return err
		}
		return renderViews(out, s.board.Views(s.config.Display), formatTable)
	case PromptClear:
		if err := s.clear(ctx); err != nil {
			return err
		}
		s.logger.Info("results cleared")
		return nil
	case PromptExit:
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func (s *searcher) details(out io.Writer) error {
	views := s.board.Views(s.config.Display)
	if len(views) == 0 {
		s.logger.Info("no results to show")
		return nil
	}

	items := make([]string, 0, len(views)+1)
	for _, v := range views {
		items = append(items, fmt.Sprintf("%s %3d%% %s / %s", v.Match.JobID, v.Score, v.Match.Job.Title, v.Match.Job.Company))
	}

	jobPrompt := promptui.Select{
		Label: "Choose a job and press ENTER",
		Items: append(items, PromptBack),
		Size:  10,
	}

	_, selected, err := jobPrompt.Run()
	if err != nil {
		return err
	}
	if selected == PromptBack {
		return nil
	}

	jobID := strings.Split(selected, " ")[0]
	match, ok := s.board.FindByJobID(jobID)
	if !ok {
		return fmt.Errorf("there is no such job id %s", jobID)
	}

	return renderDetail(out, matching.NewView(match, s.config.Display), false)
}
