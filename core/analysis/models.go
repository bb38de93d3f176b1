package analysis

type (
	// SubmissionAnalysis carries one submission through the pipeline: seeded
	// with the student name and submission content, filled in with the
	// critique, word count and standout flags.
	SubmissionAnalysis struct {
		StudentName    string `json:"student_name"`
		Content        string `json:"content"`
		Critique       string `json:"critique"`
		WordCount      int    `json:"word_count"`
		IsStandout     bool   `json:"is_standout"`
		StandoutReason string `json:"standout_reason"`
	}

	SimilarityGroup struct {
		StudentNames    []string `json:"student_names"`
		SimilarityScore float64  `json:"similarity_score"`
		Reason          string   `json:"reason"`
	}

	Statistics struct {
		TotalSubmissions   int     `json:"total_submissions"`
		AverageWordCount   float64 `json:"average_word_count"`
		ShortestSubmission int     `json:"shortest_submission"`
		LongestSubmission  int     `json:"longest_submission"`
	}

	OverallAnalysis struct {
		Summary                string               `json:"summary"`
		Submissions            []SubmissionAnalysis `json:"submissions"`
		StandoutSubmissions    []SubmissionAnalysis `json:"standout_submissions"`
		SuspiciousSimilarities []SimilarityGroup    `json:"suspicious_similarities"`
		Statistics             Statistics           `json:"statistics"`
	}
)
