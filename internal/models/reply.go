package models

import "strings"

// Candidate is a social-network post found by keyword search.
type Candidate struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Author  string `json:"author"`
	URL     string `json:"url"`
}

// Judgment is the language model's assessment of one candidate post.
type Judgment struct {
	ResponseText     string  `json:"response_text"`
	IsCompanyRelated bool    `json:"is_company_related"`
	RelevanceScore   float64 `json:"relevance_score"`
	Reasoning        string  `json:"reasoning"`
}

// GeneratedReply pairs a candidate with its judgment and, when posted, the created reply.
type GeneratedReply struct {
	Candidate Candidate  `json:"candidate"`
	Judgment  Judgment   `json:"judgment"`
	Published *Published `json:"published,omitempty"`
}

// Publishable reports whether the reply clears minRelevance and has text to post.
func (r *GeneratedReply) Publishable(minRelevance float64) bool {
	return r.Judgment.RelevanceScore >= minRelevance && strings.TrimSpace(r.Judgment.ResponseText) != ""
}
