package agent

import (
	"github.com/felixgeelhaar/taskflow/internal/plan"
)

// DebugReport is the Debugger's artifact.
type DebugReport struct {
	RootCause  string   `json:"rootCause"`
	Fixes      []string `json:"fixes"`
	Confidence float64  `json:"confidence"`
}

type rawDebugReport struct {
	RootCause  *string  `json:"rootCause"`
	Fixes      []string `json:"fixes"`
	Confidence *float64 `json:"confidence"`
}

func (r *DebugReport) overlay(raw rawDebugReport) {
	if raw.RootCause != nil && *raw.RootCause != "" {
		r.RootCause = *raw.RootCause
	}
	if raw.Fixes != nil {
		r.Fixes = raw.Fixes
	}
	if raw.Confidence != nil && *raw.Confidence >= 0 && *raw.Confidence <= 1 {
		r.Confidence = *raw.Confidence
	}
}

// RefactorChange is one file-level edit in a RefactorProposal.
type RefactorChange struct {
	File        string `json:"file"`
	Description string `json:"description"`
}

// RefactorProposal is the Refactorer's artifact.
type RefactorProposal struct {
	Summary string           `json:"summary"`
	Changes []RefactorChange `json:"changes"`
	Risk    plan.RiskLevel   `json:"risk"`
}

type rawRefactorProposal struct {
	Summary *string          `json:"summary"`
	Changes []RefactorChange `json:"changes"`
	Risk    *string          `json:"risk"`
}

func (r *RefactorProposal) overlay(raw rawRefactorProposal) {
	if raw.Summary != nil && *raw.Summary != "" {
		r.Summary = *raw.Summary
	}
	for _, c := range raw.Changes {
		if c.File != "" {
			r.Changes = append(r.Changes, c)
		}
	}
	if raw.Risk != nil {
		r.Risk = plan.ParseRisk(*raw.Risk)
	}
}

// LearningSummary is the Learner's artifact.
type LearningSummary struct {
	Concepts    []string `json:"concepts"`
	Explanation string   `json:"explanation"`
	NextSteps   []string `json:"nextSteps"`
}

type rawLearningSummary struct {
	Concepts    []string `json:"concepts"`
	Explanation *string  `json:"explanation"`
	NextSteps   []string `json:"nextSteps"`
}

func (r *LearningSummary) overlay(raw rawLearningSummary) {
	if raw.Concepts != nil {
		r.Concepts = raw.Concepts
	}
	if raw.Explanation != nil && *raw.Explanation != "" {
		r.Explanation = *raw.Explanation
	}
	if raw.NextSteps != nil {
		r.NextSteps = raw.NextSteps
	}
}

// ContextReport is the ContextGatherer's artifact.
type ContextReport struct {
	RelevantFiles []string `json:"relevantFiles"`
	Summary       string   `json:"summary"`
	OpenQuestions []string `json:"openQuestions"`
}

type rawContextReport struct {
	RelevantFiles []string `json:"relevantFiles"`
	Summary       *string  `json:"summary"`
	OpenQuestions []string `json:"openQuestions"`
}

func (r *ContextReport) overlay(raw rawContextReport) {
	if raw.RelevantFiles != nil {
		r.RelevantFiles = raw.RelevantFiles
	}
	if raw.Summary != nil && *raw.Summary != "" {
		r.Summary = *raw.Summary
	}
	if raw.OpenQuestions != nil {
		r.OpenQuestions = raw.OpenQuestions
	}
}
