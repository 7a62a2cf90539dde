// Package review implements the deterministic quality gate that every
// candidate comment must pass before injection.
//
// The reviewer runs three independent checks in a fixed order, cheapest and
// most decisive first, short-circuiting on the first failure:
//
//  1. language match between candidate and source item
//  2. quality scoring (length, spam patterns, meaningful tokens)
//  3. appropriateness keyword screening
//
// A verdict is a pure function of (candidate, item): no state, no I/O, safe
// to recompute on every call.
package review

import (
	"fmt"
	"regexp"
	"unicode"

	"feedpilot/pkg/proto"
)

// Quality check scoring constants.
const (
	qualityBase          = 100.0
	qualityPassThreshold = 60.0

	penaltyTooShort      = 30.0
	penaltyTooLong       = 20.0
	penaltySpamPattern   = 40.0
	penaltyFewMeaningful = 25.0

	minCommentRunes     = 10
	maxCommentRunes     = 500
	minMeaningfulTokens = 3
	meaningfulRuneCount = 3
)

// spamRunLength is the repeated-character run length that counts as spam.
const spamRunLength = 5

// Spam patterns checked by the quality gate. Each match costs
// penaltySpamPattern points. Repeated-character runs are detected by a rune
// scan because RE2 has no backreferences.
//
//nolint:gochecknoglobals // Compiled once; patterns are immutable
var spamPatterns = []func(string) bool{
	hasRepeatedRun,
	regexp.MustCompile(`[A-Z]{5,}`).MatchString,              // long all-caps runs
	regexp.MustCompile(`https?://\S+|www\.\S+`).MatchString,  // embedded URLs
	regexp.MustCompile(`(^|\s)@[A-Za-z0-9_]+\b`).MatchString, // bare @mentions
}

// hasRepeatedRun reports whether text contains spamRunLength or more
// consecutive identical runes.
func hasRepeatedRun(text string) bool {
	var prev rune
	run := 0
	for _, r := range text {
		if r == prev {
			run++
		} else {
			prev = r
			run = 1
		}
		if run >= spamRunLength {
			return true
		}
	}
	return false
}

// Appropriateness keyword families. Any match fails the candidate outright,
// regardless of its quality score. English keywords use word boundaries;
// Hebrew keywords are matched bare because RE2 word boundaries only apply to
// ASCII word characters.
//
//nolint:gochecknoglobals // Compiled once; patterns are immutable
var appropriatenessFamilies = []struct {
	name    string
	pattern *regexp.Regexp
}{
	{"spam", regexp.MustCompile(`(?i)\b(spam|scam|fake|bot)\b|ספאם|הונאה|מזויף`)},
	{"commercial", regexp.MustCompile(`(?i)\b(buy|sell|purchase|discount|offer)\b|קנו|מכרו|הנחה|מבצע|רכשו`)},
	{"solicitation", regexp.MustCompile(`(?i)\b(click|link|website|visit)\b|לחצו|קישור|בקרו`)},
}

// Reviewer scores candidate comments against their source items.
type Reviewer struct{}

// New creates a reviewer.
func New() *Reviewer {
	return &Reviewer{}
}

// Review runs the three checks and returns a verdict. Approval requires all
// checks to pass; the reported score is the mean of the three check scores
// and is only meaningful on approval.
func (r *Reviewer) Review(candidate *proto.CandidateComment, item *proto.ContentItem) proto.ReviewVerdict {
	langScore, langOK, langFeedback := checkLanguage(candidate.Text, item.Language)
	if !langOK {
		return proto.ReviewVerdict{
			Approved: false,
			Reason:   proto.ReasonLanguageMismatch,
			Feedback: langFeedback,
			Score:    0,
		}
	}

	qualityScore, qualityOK, qualityFeedback := checkQuality(candidate.Text)
	if !qualityOK {
		return proto.ReviewVerdict{
			Approved: false,
			Reason:   proto.ReasonLowQuality,
			Feedback: qualityFeedback,
			Score:    qualityScore,
		}
	}

	approScore, approOK, approFeedback := checkAppropriateness(candidate.Text)
	if !approOK {
		return proto.ReviewVerdict{
			Approved: false,
			Reason:   proto.ReasonInappropriate,
			Feedback: approFeedback,
			Score:    0,
		}
	}

	return proto.ReviewVerdict{
		Approved: true,
		Reason:   proto.ReasonApproved,
		Score:    (langScore + qualityScore + approScore) / 3,
	}
}

// checkLanguage compares the candidate's script against the item language.
// An exact match scores 100. An English comment on a Hebrew post is permitted
// at 80 (English replies are common on Hebrew feeds); the reverse is not.
func checkLanguage(text string, itemLang proto.Language) (score float64, ok bool, feedback string) {
	candidateLang := proto.DetectLanguage(text)

	switch {
	case candidateLang == itemLang:
		return 100, true, ""
	case candidateLang == proto.LangEnglish && itemLang == proto.LangHebrew:
		return 80, true, ""
	default:
		return 0, false, fmt.Sprintf("language mismatch: comment is %s but post is %s", candidateLang, itemLang)
	}
}

// checkQuality starts from a 100-point baseline and deducts for length
// violations, spam patterns, and a lack of meaningful tokens. The check
// passes when the remaining score is at least 60; the score floors at 0.
func checkQuality(text string) (score float64, ok bool, feedback string) {
	score = qualityBase
	runeCount := len([]rune(text))

	if runeCount < minCommentRunes {
		score -= penaltyTooShort
		feedback = "comment too short"
	}
	if runeCount > maxCommentRunes {
		score -= penaltyTooLong
		feedback = "comment too long"
	}

	for _, matches := range spamPatterns {
		if matches(text) {
			score -= penaltySpamPattern
			if feedback == "" {
				feedback = "comment matches spam pattern"
			}
		}
	}

	if meaningfulTokens(text) < minMeaningfulTokens {
		score -= penaltyFewMeaningful
		if feedback == "" {
			feedback = "comment lacks substance"
		}
	}

	if score < 0 {
		score = 0
	}
	if score >= qualityPassThreshold {
		return score, true, ""
	}
	return score, false, feedback
}

// checkAppropriateness screens for keyword families that should never appear
// in an auto-generated comment. Any hit is an immediate fail at score 0.
func checkAppropriateness(text string) (score float64, ok bool, feedback string) {
	for _, family := range appropriatenessFamilies {
		if family.pattern.MatchString(text) {
			return 0, false, fmt.Sprintf("contains %s keyword", family.name)
		}
	}
	return 100, true, ""
}

// meaningfulTokens counts whitespace-separated tokens containing at least
// three letter/digit runes.
func meaningfulTokens(text string) int {
	count := 0
	wordRunes := 0
	flush := func() {
		if wordRunes >= meaningfulRuneCount {
			count++
		}
		wordRunes = 0
	}

	for _, r := range text {
		if unicode.IsSpace(r) {
			flush()
			continue
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			wordRunes++
		}
	}
	flush()
	return count
}
