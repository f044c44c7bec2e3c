package models

import "testing"

func TestValidMatchType(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{MatchExact, true},
		{MatchContains, true},
		{MatchRegex, true},
		{MatchScript, true},
		{"", false},
		{"fuzzy", false},
	}
	for _, tt := range tests {
		if got := ValidMatchType(tt.in); got != tt.want {
			t.Errorf("ValidMatchType(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestValidResponseType(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{ResponseFixed, true},
		{ResponseRandom, true},
		{ResponseScript, true},
		{"", false},
		{"echo", false},
	}
	for _, tt := range tests {
		if got := ValidResponseType(tt.in); got != tt.want {
			t.Errorf("ValidResponseType(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
