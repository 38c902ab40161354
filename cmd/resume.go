package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const defaultWaitTimeout = 2 * time.Minute

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Manage your resume",
}

var resumeUploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload a resume for processing",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		c := setup(ctx)
		defer c.close()

		wait, _ := cmd.Flags().GetBool("wait")
		timeout, _ := cmd.Flags().GetDuration("wait-timeout")

		userID, err := c.userID(ctx)
		if err != nil {
			c.fatal("getting current user", err)
		}

		result, err := c.client.UploadResume(ctx, userID, args[0])
		if err != nil {
			c.fatal("uploading resume", err)
		}

		if !wait || result.ResumeID == "" {
			c.logger.Info("resume uploaded", zap.String("resume_id", result.ResumeID), zap.String("status", result.Status))
			return
		}

		waitCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		status, err := c.client.WaitResumeProcessed(waitCtx, result.ResumeID, 0)
		if err != nil {
			c.fatal("waiting for resume processing", err)
		}

		c.logger.Info("resume processed", zap.String("resume_id", result.ResumeID), zap.String("status", status))
	},
}

var resumeShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the processed resume",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		c := setup(ctx)
		defer c.close()

		format, _ := cmd.Flags().GetString("format")

		userID, err := c.userID(ctx)
		if err != nil {
			c.fatal("getting current user", err)
		}

		resume, err := c.resume(ctx, userID)
		if err != nil {
			c.fatal("getting resume", err)
		}
		if resume == nil {
			c.logger.Info("no resume uploaded yet", zap.String("hint", "run `"+app+" resume upload <file>`"))
			return
		}

		out := cmd.OutOrStdout()
		if format == formatJSON {
			err = renderJSON(out, resume)
		} else {
			err = renderResume(out, resume)
		}
		if err != nil {
			c.fatal("rendering resume", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(resumeCmd)
	resumeCmd.AddCommand(resumeUploadCmd, resumeShowCmd)

	resumeUploadCmd.Flags().BoolP("wait", "w", false, "wait until the resume is processed")
	resumeUploadCmd.Flags().Duration("wait-timeout", defaultWaitTimeout, "how long to wait for processing")
	resumeShowCmd.Flags().StringP("format", "o", formatTable, "output format: table or json")
}
