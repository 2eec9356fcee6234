package services

import "strings"

// reviewPromptTemplate is the referee instruction sent to the model. The
// template itself stays in English regardless of the configured output
// language; only the requested summary language varies.
const reviewPromptTemplate = `You are an experienced academic referee performing a structured review of a submitted manuscript.

Read the manuscript below and produce a verdict as a single JSON object, with no surrounding prose and no markdown code fences, matching exactly this schema:

{
  "decision": "accept" | "minor_revision" | "major_revision" | "reject",
  "overall_score": <integer 1-5>,
  "novelty_score": <integer 1-5>,
  "methodology_score": <integer 1-5>,
  "clarity_score": <integer 1-5>,
  "citation_integrity_score": <integer 1-5>,
  "editorial_summary": "<2-4 sentences for the editor explaining the decision>",
  "peer_summary": "<2-4 sentences of constructive feedback addressed to the authors>",
  "major_issues": ["<issue>", ...],
  "minor_issues": ["<issue>", ...],
  "required_revisions": ["<concrete revision the authors must make>", ...],
  "strengths": ["<strength>", ...]
}

Scoring rubric (applies to every score, 1 is worst and 5 is best):
- 5: exceptional, publishable as-is on this dimension
- 4: strong, only cosmetic improvements possible
- 3: adequate, noticeable but fixable weaknesses
- 2: weak, substantial problems that undermine the contribution
- 1: unacceptable, fundamental flaws

Decision guidance:
- "accept": sound methodology, clear contribution, no major issues
- "minor_revision": publishable after small, well-defined fixes
- "major_revision": promising but needs significant rework before a new round
- "reject": fatal methodological flaws or no meaningful contribution

Write "editorial_summary" and "peer_summary" in {{language}}. The issue and revision lists may be empty arrays but must always be present.

Manuscript under review:

{{manuscript}}`

// BuildReviewPrompt renders the referee prompt for one assembled manuscript
// body.
func BuildReviewPrompt(manuscript, language string) string {
	if language == "" {
		language = "English"
	}
	prompt := strings.ReplaceAll(reviewPromptTemplate, "{{language}}", language)
	prompt = strings.ReplaceAll(prompt, "{{manuscript}}", manuscript)
	return prompt
}
