package backend

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jobmatch/jobmatch/internal/apierr"
	"github.com/jobmatch/jobmatch/internal/utils"
)

const (
	ResumeStatusProcessing = "processing"

	defaultPollInterval = 2 * time.Second
)

// UploadResume sends a resume file for processing.
func (c *Client) UploadResume(ctx context.Context, userID, path string) (*UploadResult, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, &apierr.ValidationError{Field: "user_id", Reason: "is required"}
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, &apierr.ValidationError{Field: "file", Reason: err.Error()}
	}
	if info.IsDir() || info.Size() == 0 {
		return nil, &apierr.ValidationError{Field: "file", Reason: "must be a non-empty file"}
	}

	q := url.Values{}
	q.Set("user_id", userID)

	var raw map[string]any
	if err := c.postFile(ctx, resumeUploadPath, q, path, &raw); err != nil {
		return nil, fmt.Errorf("upload resume: %w", err)
	}

	// Some deployments wrap the payload in {"data": ...}.
	if data, ok := raw["data"].(map[string]any); ok {
		raw = data
	}

	var result UploadResult
	if err := decodeValue(raw, &result); err != nil {
		return nil, fmt.Errorf("upload resume: %w", err)
	}

	c.logger.Info("resume uploaded",
		zap.String("resume_id", result.ResumeID),
		zap.String("status", result.Status),
	)

	return &result, nil
}

// UserResume returns the latest processed resume of a user.
func (c *Client) UserResume(ctx context.Context, userID string) (*Resume, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, &apierr.ValidationError{Field: "user_id", Reason: "is required"}
	}

	q := url.Values{}
	q.Set("user_id", userID)

	var resume Resume
	if err := c.getJSON(ctx, resumeUserPath, q, &resume); err != nil {
		return nil, fmt.Errorf("get resume: %w", err)
	}

	resume.normalize()
	return &resume, nil
}

// ResumeStatus returns the processing status of an uploaded resume.
func (c *Client) ResumeStatus(ctx context.Context, resumeID string) (string, error) {
	resumeID = strings.TrimSpace(resumeID)
	if resumeID == "" {
		return "", &apierr.ValidationError{Field: "resume_id", Reason: "is required"}
	}

	var status struct {
		Status string `mapstructure:"status"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("%s/%s/status", resumesPath, url.PathEscape(resumeID)), nil, &status); err != nil {
		return "", fmt.Errorf("resume status: %w", err)
	}

	return status.Status, nil
}

// WaitResumeProcessed polls the resume status until it leaves "processing" or ctx is done.
func (c *Client) WaitResumeProcessed(ctx context.Context, resumeID string, interval time.Duration) (string, error) {
	if interval <= 0 {
		interval = defaultPollInterval
	}

	for {
		status, err := c.ResumeStatus(ctx, resumeID)
		if err != nil {
			return "", err
		}

		if !strings.EqualFold(status, ResumeStatusProcessing) {
			return status, nil
		}

		c.logger.Debug("resume is still processing", zap.String("resume_id", resumeID))

		if err := utils.WaitFor(ctx, interval); err != nil {
			return status, err
		}
	}
}
