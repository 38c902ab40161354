package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jobmatch/jobmatch/internal/ai"
	"github.com/jobmatch/jobmatch/internal/ai/gemini"
	"github.com/jobmatch/jobmatch/internal/secrets"
)

const geminiKeyEnv = "GEMINI_API_KEY"

var adviseCmd = &cobra.Command{
	Use:   "advise <job-id>",
	Short: "Ask Gemini how to close the skill gap to a job",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		c := setup(ctx)
		defer c.close()

		advisor, err := newAdvisor(ctx, c.config.AI, c.logger)
		if err != nil {
			c.fatal("building ai advisor", err)
		}

		detail, resume, err := c.jobDetail(ctx, args[0], false)
		if err != nil {
			c.fatal("getting job", err)
		}
		if detail.Provisional {
			c.logger.Warn("job is not in match history; advice is based on a provisional match")
		}

		advice, err := advisor.Advise(ctx, detail.Match, resume)
		if err != nil {
			c.fatal("getting advice", err)
		}

		if err := renderAdvice(cmd.OutOrStdout(), advice); err != nil {
			c.fatal("rendering advice", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(adviseCmd)
}

func newAdvisor(ctx context.Context, cfg *AIConfig, logger *zap.Logger) (ai.Advisor, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, errors.New("ai is disabled (set ai.enabled)")
	}
	if cfg.Gemini == nil {
		return nil, errors.New("gemini configuration is required when ai is enabled")
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name: "gemini api key",
		File: cfg.Gemini.APIKeyFile,
		Env:  geminiKeyEnv,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or %s)", err, geminiKeyEnv)
	}

	genLogger := logger.With(
		zap.String("provider", "gemini"),
		zap.String("model", cfg.Gemini.Model),
		zap.Int("ai_retry_attempts", cfg.Gemini.MaxRetries),
	)

	generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model, cfg.Gemini.MaxRetries, genLogger)
	if err != nil {
		return nil, err
	}

	advisor := gemini.NewAdvisor(generator, logger.With(zap.String("model", generator.Model())), cfg.Gemini.MaxLogLength)
	advisor.SetInstructions(cfg.Gemini.Instructions)

	return advisor, nil
}
