package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/agentops/sge/internal/finding"
	"github.com/agentops/sge/internal/guardrail"
	"github.com/agentops/sge/internal/worker"
)

const aiReviewSystemPrompt = `You are a code reviewer. Given a file's diff, respond with a JSON object of the form
{"issues":[{"line":int,"severity":"critical|high|medium|low","message":"string","category":"security|bug|performance|quality|documentation"}],"suggestions":["string"]}
and nothing else.`

// AICodeReviewScanner is the Post-phase, Warn-by-default scanner from
// spec §4.2.6: it sends each changed file's diff to an AI Model Provider
// and degrades to Skipped rather than failing the pipeline when the
// provider errors or returns unparseable output.
type AICodeReviewScanner struct {
	provider  AIModelProvider
	timeout   time.Duration
	maxTokens int
}

// NewAICodeReviewScanner wires an AIModelProvider (spec §6) into the
// scanner. timeout bounds each per-file completion call.
func NewAICodeReviewScanner(provider AIModelProvider, timeout time.Duration) *AICodeReviewScanner {
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &AICodeReviewScanner{provider: provider, timeout: timeout, maxTokens: 2048}
}

func (s *AICodeReviewScanner) ID() string                       { return "ai-code-review" }
func (s *AICodeReviewScanner) Name() string                     { return "AI Code Review" }
func (s *AICodeReviewScanner) Phase() finding.Phase             { return finding.PhasePostExecution }
func (s *AICodeReviewScanner) DefaultSeverity() finding.Severity { return finding.SeverityWarn }
func (s *AICodeReviewScanner) Description() string {
	return "Sends changed files to an AI model provider for review and surfaces critical/high issues it reports."
}

func (s *AICodeReviewScanner) Execute(ctx guardrail.Context, effectiveSeverity finding.Severity) finding.Finding {
	if ctx.Result == nil {
		return finding.Skipped(s.ID(), "no change set to scan (pre-execution context)")
	}
	if s.provider == nil {
		return finding.Skipped(s.ID(), "no AI model provider configured")
	}
	if len(ctx.Result.Changes) == 0 {
		return finding.Passed(s.ID(), "no changed files to review")
	}

	execCtx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	// Per-file review calls are independent I/O-bound requests to the
	// same provider; fan them out with the shared worker pool and
	// converge to a single Finding below, matching spec §5's "internal
	// parallelism must converge to a single Finding before returning".
	contentByPath := make(map[string]string, len(ctx.Result.Changes))
	paths := make([]string, 0, len(ctx.Result.Changes))
	for _, change := range ctx.Result.Changes {
		contentByPath[change.Path] = change.NewContent
		paths = append(paths, change.Path)
	}

	pool := worker.NewPool[ReviewResponse](len(paths))
	results := pool.Process(paths, func(path string) (ReviewResponse, error) {
		raw, err := s.provider.Complete(execCtx, AIModelRequest{
			SystemPrompt: aiReviewSystemPrompt,
			UserPrompt:   fmt.Sprintf("File: %s\n\n%s", path, contentByPath[path]),
			MaxTokens:    s.maxTokens,
		})
		if err != nil {
			return ReviewResponse{}, err
		}
		resp, ok := parseReviewResponse(raw)
		if !ok {
			return ReviewResponse{}, fmt.Errorf("unparseable review response")
		}
		return resp, nil
	})

	var allIssues []ReviewIssue
	var allSuggestions []string
	var parseFailures int
	for _, r := range results {
		if r.Err != nil {
			parseFailures++
			continue
		}
		allIssues = append(allIssues, r.Value.Issues...)
		allSuggestions = append(allSuggestions, r.Value.Suggestions...)
	}

	if len(allIssues) == 0 {
		if parseFailures == len(results) {
			return finding.Skipped(s.ID(), "AI model provider returned no parseable review for any changed file")
		}
		return finding.Passed(s.ID(), "AI code review raised no issues")
	}

	var critical, highOrMedium []string
	for _, issue := range allIssues {
		line := fmt.Sprintf("L%d [%s/%s] %s", issue.Line, issue.Severity, issue.Category, issue.Message)
		if issue.Severity == ReviewCritical {
			critical = append(critical, line)
		} else {
			highOrMedium = append(highOrMedium, line)
		}
	}

	all := append(append([]string{}, critical...), highOrMedium...)
	message := fmt.Sprintf("AI code review raised %d critical, %d high/medium issue(s)", len(critical), len(highOrMedium))

	if len(critical) > 0 && effectiveSeverity == finding.SeverityBlock {
		return finding.Failed(s.ID(), finding.SeverityBlock, message, all, allSuggestions)
	}
	return finding.Warning(s.ID(), message, all, allSuggestions)
}

// parseReviewResponse tolerantly extracts a ReviewResponse from raw,
// which may wrap the JSON object in prose or a markdown code fence
// (spec §4.2.6, §6: "SGE must tolerantly parse" the provider's output).
// It takes the first balanced top-level {...} block in raw.
func parseReviewResponse(raw string) (ReviewResponse, bool) {
	start := strings.IndexByte(raw, '{')
	if start == -1 {
		return ReviewResponse{}, false
	}

	depth := 0
	end := -1
	for i := start; i < len(raw); i++ {
		switch raw[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				end = i
			}
		}
		if end != -1 {
			break
		}
	}
	if end == -1 {
		return ReviewResponse{}, false
	}

	var wire struct {
		Issues []struct {
			Line     int    `json:"line"`
			Severity string `json:"severity"`
			Message  string `json:"message"`
			Category string `json:"category"`
		} `json:"issues"`
		Suggestions []string `json:"suggestions"`
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), &wire); err != nil {
		return ReviewResponse{}, false
	}

	resp := ReviewResponse{Suggestions: wire.Suggestions}
	for _, i := range wire.Issues {
		resp.Issues = append(resp.Issues, ReviewIssue{
			Line:     i.Line,
			Severity: ReviewSeverity(strings.ToLower(i.Severity)),
			Message:  i.Message,
			Category: ReviewCategory(strings.ToLower(i.Category)),
		})
	}
	return resp, true
}
