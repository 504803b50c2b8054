package filter

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/amishk599/jobdigest/internal/model"
)

// experiencePatterns catch entry-level phrasing that keyword lists miss.
// They run against lower-cased text with all whitespace folded to ASCII
// spaces (see foldSpace) and are not user-configurable.
var experiencePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b0\s*[-–]\s*6\s*months?\b`),
	regexp.MustCompile(`\b0\s*to\s*6\s*months?\b`),
	regexp.MustCompile(`\b0\s*[-–]\s*1\s*years?\b`),
	regexp.MustCompile(`\b0\s*to\s*1\s*years?\b`),
	regexp.MustCompile(`\b(up\s*to\s*)?6\s*months?\s*(of)?\s*experience\b`),
	regexp.MustCompile(`\bfresher(s)?\b`),
	regexp.MustCompile(`\bentry[-\s]?level\b`),
	regexp.MustCompile(`\bno\s+experience\b`),
	regexp.MustCompile(`\b0\+?\s*years?\b`),
}

// KeywordMatcher decides whether a job is a relevant, recent, entry-level
// listing. All keyword matching is case-insensitive substring matching.
type KeywordMatcher struct {
	roles      []string
	skills     []string
	experience []string
	maxAge     time.Duration
	now        func() time.Time
}

// NewKeywordMatcher returns a matcher over the given keyword lists. now is the
// clock used by the recency check; pass time.Now outside of tests.
func NewKeywordMatcher(roles, skills, experience []string, maxAge time.Duration, now func() time.Time) *KeywordMatcher {
	if now == nil {
		now = time.Now
	}
	return &KeywordMatcher{
		roles:      lowerAll(roles),
		skills:     lowerAll(skills),
		experience: lowerAll(experience),
		maxAge:     maxAge,
		now:        now,
	}
}

// Match runs role, skills, experience and recency checks in that order and
// returns false at the first one that fails.
func (m *KeywordMatcher) Match(job model.Job) bool {
	text := TextBlob(job)
	if !m.RoleOK(text) {
		return false
	}
	if !m.SkillsOK(text) {
		return false
	}
	if !m.ExperienceOK(text) {
		return false
	}
	return m.PostedRecent(job.PostedAtUTC, m.maxAge)
}

// RoleOK reports whether text mentions any configured role keyword.
func (m *KeywordMatcher) RoleOK(text string) bool {
	return containsAny(lower(text), m.roles)
}

// SkillsOK reports whether text mentions any configured skill keyword.
func (m *KeywordMatcher) SkillsOK(text string) bool {
	return containsAny(lower(text), m.skills)
}

// ExperienceOK reports whether text mentions an experience keyword or matches
// one of the built-in entry-level patterns.
func (m *KeywordMatcher) ExperienceOK(text string) bool {
	low := lower(text)
	if containsAny(low, m.experience) {
		return true
	}
	spaced := strings.Map(foldSpace, low)
	for _, p := range experiencePatterns {
		if p.MatchString(spaced) {
			return true
		}
	}
	return false
}

// PostedRecent reports whether postedTS is no older than maxAge. A zero
// timestamp means the posting time is unknown and is never recent.
func (m *KeywordMatcher) PostedRecent(postedTS int64, maxAge time.Duration) bool {
	if postedTS == 0 {
		return false
	}
	now := float64(m.now().UnixNano()) / float64(time.Second)
	ageHours := (now - float64(postedTS)) / 3600
	return ageHours <= maxAge.Hours()
}

// TextBlob joins the fields the matcher looks at.
func TextBlob(job model.Job) string {
	return strings.Join([]string{job.Title, job.Description, job.Company, job.Location}, " ")
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// foldSpace maps any Unicode whitespace (NBSP, thin space, U+0085, the
// \x1c-\x1f separators) to ' '. RE2's \s is ASCII-only, and scraped
// descriptions are full of non-breaking spaces.
func foldSpace(r rune) rune {
	if unicode.IsSpace(r) || (r >= 0x1c && r <= 0x1f) {
		return ' '
	}
	return r
}

func lower(s string) string {
	return cases.Lower(language.Und).String(s)
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = lower(s)
	}
	return out
}
