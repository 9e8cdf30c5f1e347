package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func rules(r PolicyReport) []string {
	out := make([]string, 0, len(r.Violations))
	for _, v := range r.Violations {
		out = append(out, v.Rule)
	}
	return out
}

func TestDefaultPolicy_Evaluate(t *testing.T) {
	p := NewDefaultPolicy()

	tests := []struct {
		name      string
		password  string
		ctx       PolicyContext
		wantValid bool
		wantRules []string
	}{
		{
			name:      "strong",
			password:  "Tr4il-Run!ner-2031",
			wantValid: true,
			wantRules: []string{},
		},
		{
			name:      "too short and missing classes",
			password:  "abc",
			wantRules: []string{"min_length", "uppercase", "digit", "special"},
		},
		{
			name:      "common password variant",
			password:  "Password123!",
			wantRules: []string{"common"},
		},
		{
			name:      "contains email local part",
			password:  "Xx!9nguyenvan",
			ctx:       PolicyContext{Email: "nguyenvan@uni.edu"},
			wantRules: []string{"personal_data"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := p.Evaluate(tc.password, tc.ctx)
			assert.Equal(t, tc.wantValid, r.Valid)
			assert.ElementsMatch(t, tc.wantRules, rules(r))
			assert.Equal(t, strengthLabels[r.Score], r.Strength)
		})
	}
}

func TestDefaultPolicy_Score(t *testing.T) {
	p := NewDefaultPolicy()

	assert.Equal(t, 0, p.Evaluate("password", PolicyContext{}).Score)
	assert.Equal(t, 4, p.Evaluate("Tr4il-Run!ner-2031", PolicyContext{}).Score)
	assert.Less(t, p.Evaluate("Abcdefg1", PolicyContext{}).Score, p.Evaluate("Abcdefghijkl1!", PolicyContext{}).Score)
}

func TestDefaultPolicy_MaxLengthCountsBytes(t *testing.T) {
	p := NewDefaultPolicy()

	atLimit := "Aa1!" + strings.Repeat("x", MaxPasswordBytes-4)
	assert.True(t, p.Evaluate(atLimit, PolicyContext{}).Valid)

	over := "Aa1!" + strings.Repeat("x", 76)
	r := p.Evaluate(over, PolicyContext{})
	assert.False(t, r.Valid)
	assert.Equal(t, []string{"max_length"}, rules(r))

	// 44 characters but 84 bytes
	wide := "Aa1!" + strings.Repeat("é", 40)
	assert.Contains(t, rules(p.Evaluate(wide, PolicyContext{})), "max_length")

	_, err := HashPassword(atLimit)
	assert.NoError(t, err)
}

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("S3cure!pass")
	assert.NoError(t, err)
	assert.NotEqual(t, "S3cure!pass", hash)
	assert.True(t, CheckPasswordHash("S3cure!pass", hash))
	assert.False(t, CheckPasswordHash("wrong", hash))

	_, err = HashPassword("")
	assert.Error(t, err)
}

func TestGenerateRandomToken(t *testing.T) {
	a, err := GenerateRandomToken(16)
	assert.NoError(t, err)
	assert.Len(t, a, 32)

	b, _ := GenerateRandomToken(16)
	assert.NotEqual(t, a, b)

	_, err = GenerateRandomToken(0)
	assert.Error(t, err)
}

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("a@b.edu"))
	assert.Error(t, ValidateEmail(""))
	assert.Error(t, ValidateEmail("nope"))
	assert.Equal(t, "a@b.edu", NormalizeEmail("  A@B.edu "))
}
