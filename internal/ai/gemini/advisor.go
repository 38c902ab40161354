package gemini

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/jobmatch/jobmatch/internal/ai"
	"github.com/jobmatch/jobmatch/internal/backend"
	"github.com/jobmatch/jobmatch/internal/logger"
	"github.com/jobmatch/jobmatch/internal/matching"
	"github.com/jobmatch/jobmatch/internal/utils"
)

const (
	systemInstruction = "You are a career advisor. Answer strictly in the requested JSON schema."

	defaultMaxLogLength     = 200
	maxUserInstructionRunes = 500
)

//go:embed prompt.md
var promptTemplate string

type contentGenerator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
}

// Advisor asks Gemini for a skill-gap plan for one match.
type Advisor struct {
	generator    contentGenerator
	logger       *zap.Logger
	maxLogLen    int
	instructions string
}

var _ ai.Advisor = (*Advisor)(nil)

func NewAdvisor(generator contentGenerator, logger *zap.Logger, maxLogLength int) *Advisor {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Advisor{
		generator: generator,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

// SetInstructions adds free-form user guidance to the prompt.
func (a *Advisor) SetInstructions(s string) {
	a.instructions = s
}

func (a *Advisor) Advise(ctx context.Context, match backend.JobMatch, resume *backend.Resume) (*ai.Advice, error) {
	if match.JobID == "" {
		return nil, errors.New("match without job id")
	}

	view := matching.NewView(match, matching.DefaultDisplayCaps())
	matchPayload := map[string]any{
		"job_id":           match.JobID,
		"title":            match.Job.Title,
		"company":          match.Job.Company,
		"match_score":      view.Score,
		"skill_match":      view.SkillMatch,
		"experience_match": view.ExperienceMatch,
		"matched_skills":   match.MatchedSkills,
		"missing_skills":   match.MissingSkills,
		"required_years":   match.RequiredExperienceYears,
		"resume_years":     match.ResumeExperienceYears,
		"description":      match.Job.Description,
	}
	matchJSON, err := json.MarshalIndent(matchPayload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal match payload: %w", err)
	}

	resumeJSON := []byte("null")
	if resume != nil {
		resumeJSON, err = json.MarshalIndent(map[string]any{
			"skills":           resume.Features.Skills,
			"experience_years": resume.Features.WorkExperienceYears,
		}, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal resume payload: %w", err)
		}
	}

	prompt := buildPrompt(string(matchJSON), string(resumeJSON), a.instructions)
	log := logger.WithFields(a.logger, logger.MatchFields(match.JobID, match.Job.Company)...)

	log.Debug("gemini generate content request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.Preview(prompt, a.maxLogLen)),
	)

	raw, err := a.generator.GenerateContent(ctx, systemInstruction, prompt)
	if err != nil {
		return nil, err
	}

	log.Debug("gemini generate content response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.Preview(raw, a.maxLogLen)),
	)

	advice, err := parseResponse(raw)
	if err != nil {
		return nil, err
	}
	advice.Raw = raw

	return advice, nil
}

func buildPrompt(matchJSON, resumeJSON, instructions string) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Match:\n{{MATCH_JSON}}\n\nResume:\n{{RESUME_JSON}}\n\nJSON Response:"
	}

	prompt := strings.ReplaceAll(template, "{{USER_INSTRUCTIONS}}", sanitizeInstructions(instructions))
	prompt = strings.ReplaceAll(prompt, "{{MATCH_JSON}}", matchJSON)
	prompt = strings.ReplaceAll(prompt, "{{RESUME_JSON}}", resumeJSON)
	return prompt
}

// sanitizeInstructions renders user text as an indented list. Square brackets
// are replaced so the text cannot open a new prompt section.
func sanitizeInstructions(s string) string {
	s = strings.NewReplacer("[", "(", "]", ")", "\r", "").Replace(s)

	var lines []string
	budget := maxUserInstructionRunes
	for _, line := range strings.Split(s, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" || budget <= 0 {
			continue
		}
		if r := []rune(line); len(r) > budget {
			line = string(r[:budget])
		}
		budget -= utf8.RuneCountInString(line)
		lines = append(lines, "  - "+line)
	}

	if len(lines) == 0 {
		return "  - none"
	}
	return strings.Join(lines, "\n")
}

func parseResponse(raw string) (*ai.Advice, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(extractJSON(raw)), &data); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}

	advice := &ai.Advice{
		Summary:     coerceString(data["summary"]),
		FocusSkills: coerceStrings(data["focus_skills"]),
		Steps:       coerceStrings(data["steps"]),
	}
	if advice.Summary == "" && len(advice.Steps) == 0 {
		return nil, errors.New("gemini response has neither summary nor steps")
	}

	return advice, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case nil:
		return ""
	default:
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}

// coerceStrings accepts a list or a single comma separated string.
func coerceStrings(v any) []string {
	var out []string
	switch val := v.(type) {
	case []any:
		for _, item := range val {
			if s := coerceString(item); s != "" {
				out = append(out, s)
			}
		}
	case string:
		for _, item := range strings.Split(val, ",") {
			if s := strings.TrimSpace(item); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
