package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmatias/aigrader/core"
)

// similarityThreshold is the Jaccard score above which two submissions are
// considered suspiciously similar.
const similarityThreshold = 0.8

// summarySampleSize caps how many per-submission critiques feed the overall
// summary prompt.
const summarySampleSize = 5

// Standout reasons, in evaluation order. The order is part of the contract:
// a submission matching several rules reports them comma-joined in this order.
const (
	reasonExtremelyShort = "Extremely short response"
	reasonExtremelyLong  = "Exceptionally detailed response"
	reasonShortest       = "Shortest submission"
	reasonLongest        = "Longest submission"
)

type (
	// Completer is the text-completion capability the pipeline depends on.
	Completer interface {
		Complete(ctx context.Context, prompt string) (string, error)
	}

	Service struct {
		ai     Completer
		logger core.Logger
	}
)

func NewService(ai Completer, logger core.Logger) *Service {
	return &Service{ai: ai, logger: logger}
}

// Analyze runs the full pipeline over an assignment's submissions: statistics,
// per-submission critiques, standout detection, similarity grouping and an
// overall summary. Completion failures never abort the pipeline; they show up
// as in-band error text on the affected critique or summary.
func (svc *Service) Analyze(ctx context.Context, subs []SubmissionAnalysis, assignmentName string) OverallAnalysis {
	var result OverallAnalysis
	result.Statistics = CalculateStatistics(subs)

	analyzed := make([]SubmissionAnalysis, 0, len(subs))
	for _, sub := range subs {
		analyzed = append(analyzed, svc.analyzeSubmission(ctx, sub, assignmentName))
	}

	analyzed, standouts := findStandouts(analyzed, result.Statistics)
	result.Submissions = analyzed
	result.StandoutSubmissions = standouts
	result.SuspiciousSimilarities = findSimilarities(analyzed)
	result.Summary = svc.summarize(ctx, analyzed, assignmentName, result.Statistics)
	return result
}

func (svc *Service) analyzeSubmission(ctx context.Context, sub SubmissionAnalysis, assignmentName string) SubmissionAnalysis {
	prompt := fmt.Sprintf(`Analyze this student submission for assignment '%s'.

Student: %s
Submission: %s

Please provide:
1. A brief analysis of the quality and content
2. Any notable strengths or weaknesses
3. Overall assessment

Keep the analysis concise and constructive.`, assignmentName, sub.StudentName, sub.Content)

	sub.Critique = svc.complete(ctx, prompt)
	sub.WordCount = CountWords(sub.Content)
	return sub
}

// complete downgrades completion failures to in-band error text.
func (svc *Service) complete(ctx context.Context, prompt string) string {
	text, err := svc.ai.Complete(ctx, prompt)
	if err != nil {
		svc.logger.Warn("text completion failed", err)
		return fmt.Sprintf("Error analyzing submission: %v", err)
	}
	return text
}

// CalculateStatistics computes the word-count statistics; empty input yields
// all-zero statistics.
func CalculateStatistics(subs []SubmissionAnalysis) Statistics {
	if len(subs) == 0 {
		return Statistics{}
	}

	var stats Statistics
	stats.TotalSubmissions = len(subs)
	var sum int
	for i, sub := range subs {
		count := CountWords(sub.Content)
		sum += count
		if i == 0 || count < stats.ShortestSubmission {
			stats.ShortestSubmission = count
		}
		if count > stats.LongestSubmission {
			stats.LongestSubmission = count
		}
	}
	stats.AverageWordCount = float64(sum) / float64(len(subs))
	return stats
}

// findStandouts flags submissions whose length is extreme relative to the
// batch. Rules are evaluated in a fixed order so the combined reason string
// is deterministic.
func findStandouts(subs []SubmissionAnalysis, stats Statistics) (analyzed, standouts []SubmissionAnalysis) {
	analyzed = make([]SubmissionAnalysis, 0, len(subs))
	for _, sub := range subs {
		var reasons []string

		if float64(sub.WordCount) < stats.AverageWordCount*0.25 && sub.WordCount > 0 {
			reasons = append(reasons, reasonExtremelyShort)
		}
		if float64(sub.WordCount) > stats.AverageWordCount*2 {
			reasons = append(reasons, reasonExtremelyLong)
		}
		if sub.WordCount == stats.ShortestSubmission && stats.ShortestSubmission > 0 {
			reasons = append(reasons, reasonShortest)
		}
		if sub.WordCount == stats.LongestSubmission {
			reasons = append(reasons, reasonLongest)
		}

		if len(reasons) > 0 {
			sub.IsStandout = true
			sub.StandoutReason = strings.Join(reasons, ", ")
			standouts = append(standouts, sub)
		}
		analyzed = append(analyzed, sub)
	}
	return analyzed, standouts
}

// findSimilarities groups submissions whose pairwise Jaccard similarity
// exceeds the threshold. Single left-to-right sweep: submission j joins the
// first earlier ungrouped base i it exceeds the threshold with, so chains
// (A~B, B~C, A!~C) are not merged transitively.
func findSimilarities(subs []SubmissionAnalysis) []SimilarityGroup {
	var groups []SimilarityGroup
	processed := make(map[int]struct{}, len(subs))

	for i := range subs {
		if _, ok := processed[i]; ok {
			continue
		}
		group := []string{subs[i].StudentName}
		for j := i + 1; j < len(subs); j++ {
			if _, ok := processed[j]; ok {
				continue
			}
			if Jaccard(subs[i].Content, subs[j].Content) > similarityThreshold {
				group = append(group, subs[j].StudentName)
				processed[j] = struct{}{}
			}
		}
		if len(group) > 1 {
			groups = append(groups, SimilarityGroup{
				StudentNames:    group,
				SimilarityScore: similarityThreshold,
				Reason:          "High text similarity detected",
			})
			processed[i] = struct{}{}
		}
	}
	return groups
}

// Jaccard computes the similarity of the case-folded, space-tokenized word
// sets of two texts. Empty input scores 0 against anything.
func Jaccard(text1, text2 string) float64 {
	if text1 == "" || text2 == "" {
		return 0
	}
	words1 := wordSet(text1)
	words2 := wordSet(text2)

	var intersection, union int
	for w := range words1 {
		if _, ok := words2[w]; ok {
			intersection++
		}
	}
	union = len(words1) + len(words2) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func wordSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Split(strings.ToLower(text), " ") {
		if w != "" {
			set[w] = struct{}{}
		}
	}
	return set
}

func (svc *Service) summarize(ctx context.Context, subs []SubmissionAnalysis, assignmentName string, stats Statistics) string {
	sample := subs
	if len(sample) > summarySampleSize {
		sample = sample[:summarySampleSize]
	}
	lines := make([]string, 0, len(sample))
	for _, sub := range sample {
		lines = append(lines, fmt.Sprintf("- %s: %s", sub.StudentName, firstSentence(sub.Critique)))
	}

	prompt := fmt.Sprintf(`Generate an overall summary for assignment '%s' based on %d submissions.

Key Statistics:
- Total submissions: %d
- Average word count: %.0f
- Range: %d to %d words

Sample submission analyses:
%s

Please provide:
1. Overall quality assessment of the submissions
2. Common themes or patterns observed
3. General recommendations for the instructor

Keep it concise and professional.`,
		assignmentName, stats.TotalSubmissions, stats.TotalSubmissions,
		stats.AverageWordCount, stats.ShortestSubmission, stats.LongestSubmission,
		strings.Join(lines, "\n"))

	return svc.complete(ctx, prompt)
}

func firstSentence(s string) string {
	return strings.SplitN(s, ".", 2)[0]
}

// CountWords counts whitespace-separated words; blank text counts 0.
func CountWords(text string) int {
	return len(strings.Fields(text))
}
