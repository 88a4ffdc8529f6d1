package models

import "testing"

func TestGeneratedReply_Publishable(t *testing.T) {
	tests := []struct {
		name  string
		reply GeneratedReply
		want  bool
	}{
		{"above threshold", GeneratedReply{Judgment: Judgment{ResponseText: "hi", RelevanceScore: 0.8}}, true},
		{"at threshold", GeneratedReply{Judgment: Judgment{ResponseText: "hi", RelevanceScore: 0.6}}, true},
		{"below threshold", GeneratedReply{Judgment: Judgment{ResponseText: "hi", RelevanceScore: 0.59}}, false},
		{"blank text", GeneratedReply{Judgment: Judgment{ResponseText: "  \n", RelevanceScore: 0.9}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.reply.Publishable(0.6); got != tt.want {
				t.Errorf("Publishable() = %v, want %v", got, tt.want)
			}
		})
	}
}
