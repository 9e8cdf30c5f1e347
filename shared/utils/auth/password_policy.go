package utils

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// PasswordPolicy evaluates a candidate password.
type PasswordPolicy interface {
	Evaluate(password string, pc PolicyContext) PolicyReport
}

// PolicyContext carries the account data a password must not contain.
type PolicyContext struct {
	Email     string
	FirstName string
	LastName  string
}

// Violation is one failed rule, shaped for a 400 response body.
type Violation struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// PolicyReport is the outcome of Evaluate. Score runs from 0 (very weak) to 4
// (strong) and is computed even for passwords that fail the policy.
type PolicyReport struct {
	Valid      bool        `json:"valid"`
	Score      int         `json:"score"`
	Strength   string      `json:"strength"`
	Violations []Violation `json:"violations,omitempty"`
}

// MaxPasswordBytes is the longest password bcrypt accepts.
const MaxPasswordBytes = 72

// DefaultPolicy is the platform password policy. MinLength counts
// characters; MaxLength counts bytes, since that is what bcrypt limits.
type DefaultPolicy struct {
	MinLength      int
	MaxLength      int
	RequireUpper   bool
	RequireLower   bool
	RequireDigit   bool
	RequireSpecial bool
}

// NewDefaultPolicy returns the policy used by the auth service.
func NewDefaultPolicy() *DefaultPolicy {
	return &DefaultPolicy{
		MinLength:      8,
		MaxLength:      MaxPasswordBytes,
		RequireUpper:   true,
		RequireLower:   true,
		RequireDigit:   true,
		RequireSpecial: true,
	}
}

var strengthLabels = [...]string{"very_weak", "weak", "fair", "good", "strong"}

// commonPasswords is a short list of the most frequently breached passwords.
var commonPasswords = map[string]struct{}{
	"password": {}, "password1": {}, "password123": {}, "123456": {}, "12345678": {},
	"123456789": {}, "1234567890": {}, "qwerty": {}, "qwerty123": {}, "abc123": {},
	"111111": {}, "iloveyou": {}, "admin": {}, "admin123": {}, "welcome": {},
	"welcome1": {}, "letmein": {}, "monkey": {}, "dragon": {}, "football": {},
	"sunshine": {}, "princess": {}, "passw0rd": {}, "p@ssw0rd": {}, "p@ssword1": {},
	"changeme": {}, "student": {}, "student123": {}, "event2024": {}, "eventhub": {},
}

func (p *DefaultPolicy) Evaluate(password string, pc PolicyContext) PolicyReport {
	var violations []Violation
	add := func(rule, msg string) {
		violations = append(violations, Violation{Field: "password", Rule: rule, Message: msg})
	}

	length := utf8.RuneCountInString(password)
	if length < p.MinLength {
		add("min_length", "password must be at least "+strconv.Itoa(p.MinLength)+" characters")
	}
	if p.MaxLength > 0 && len(password) > p.MaxLength {
		add("max_length", "password must be at most "+strconv.Itoa(p.MaxLength)+" bytes")
	}

	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			special = true
		}
	}
	if p.RequireUpper && !upper {
		add("uppercase", "password must contain an uppercase letter")
	}
	if p.RequireLower && !lower {
		add("lowercase", "password must contain a lowercase letter")
	}
	if p.RequireDigit && !digit {
		add("digit", "password must contain a digit")
	}
	if p.RequireSpecial && !special {
		add("special", "password must contain a special character")
	}

	lowered := strings.ToLower(password)
	common := isCommon(lowered)
	if common {
		add("common", "password is too common")
	}
	if containsPersonalData(lowered, pc) {
		add("personal_data", "password must not contain your name or email")
	}

	score := strengthScore(length, upper, lower, digit, special, common)
	return PolicyReport{
		Valid:      len(violations) == 0,
		Score:      score,
		Strength:   strengthLabels[score],
		Violations: violations,
	}
}

func isCommon(lowered string) bool {
	if _, ok := commonPasswords[lowered]; ok {
		return true
	}
	// "Password1!" style variants of a listed word
	trimmed := strings.TrimRightFunc(lowered, func(r rune) bool {
		return unicode.IsDigit(r) || unicode.IsPunct(r) || unicode.IsSymbol(r)
	})
	_, ok := commonPasswords[trimmed]
	return ok && trimmed != ""
}

func containsPersonalData(lowered string, pc PolicyContext) bool {
	parts := []string{pc.FirstName, pc.LastName}
	if at := strings.IndexByte(pc.Email, '@'); at > 0 {
		parts = append(parts, pc.Email[:at])
	}
	for _, part := range parts {
		part = strings.ToLower(strings.TrimSpace(part))
		if len(part) >= 3 && strings.Contains(lowered, part) {
			return true
		}
	}
	return false
}

func strengthScore(length int, upper, lower, digit, special, common bool) int {
	if common || length < 6 {
		return 0
	}
	classes := 0
	for _, ok := range []bool{upper, lower, digit, special} {
		if ok {
			classes++
		}
	}

	s := 0
	switch {
	case length >= 16:
		s = 2
	case length >= 10:
		s = 1
	}
	switch {
	case classes == 4:
		s += 2
	case classes == 3:
		s++
	}
	if length < 8 && s > 1 {
		s = 1
	}
	if s > 4 {
		s = 4
	}
	return s
}
