package usecase

import (
	"strings"

	"github.com/minhokang/evidence-engine/internal/core/domain"
)

// AuthorityScorer assigns credibility weights to source hosts and filters
// boilerplate snippets. Weights decay from official/government hosts down
// to a conservative default for unknown domains.
type AuthorityScorer struct {
	profiles map[string][]string
}

const (
	defaultAuthorityWeight = 0.40
	unknownAuthorityFloor  = 0.25
	defaultProfileName     = "official"
)

// Specific hosts come before generic TLD suffixes so wikipedia.org lands
// in the wiki tier, not the org tier.
var authorityTiers = []struct {
	suffixes []string
	weight   float64
}{
	{[]string{"news.naver.com", "zdnet.co.kr", "bbc.com", "cnn.com", "reuters.com"}, 0.7},
	{[]string{"wikipedia.org", "namu.wiki"}, 0.6},
	{[]string{"blog.naver.com", "tistory.com", "cafe.naver.com", "medium.com"}, 0.3},
	{[]string{"go.kr", "gov", "gov.uk", "europa.eu"}, 1.0},
	{[]string{"ac.kr", "edu", "ac.uk"}, 0.9},
	{[]string{"or.kr", "org", "int"}, 0.7},
}

var genericSnippetCues = []string{
	"로그인", "회원가입", "쿠키 정책", "privacy policy", "terms of service",
	"javascript를 활성화", "enable javascript", "all rights reserved",
	"공유하기", "구독하기", "광고문의",
}

func NewAuthorityScorer(profiles map[string][]string) *AuthorityScorer {
	copied := make(map[string][]string, len(profiles))
	for name, suffixes := range profiles {
		copied[strings.ToLower(name)] = suffixes
	}
	if _, ok := copied[defaultProfileName]; !ok {
		copied[defaultProfileName] = []string{"go.kr", "ac.kr", "gov", "edu"}
	}
	return &AuthorityScorer{profiles: copied}
}

// WeightFor returns the credibility weight for a source URL. Empty or
// unparseable URLs get the unknown floor rather than an error.
func (a *AuthorityScorer) WeightFor(rawURL string) float64 {
	host := hostOf(rawURL)
	if host == "" {
		return unknownAuthorityFloor
	}
	for _, tier := range authorityTiers {
		for _, suffix := range tier.suffixes {
			if host == suffix || strings.HasSuffix(host, "."+suffix) {
				return tier.weight
			}
		}
	}
	return defaultAuthorityWeight
}

// IsGenericSnippet reports whether the text looks like navigation chrome or
// boilerplate rather than content. Broad domains are exempt so wide queries
// are not over-filtered.
func (a *AuthorityScorer) IsGenericSnippet(text, queryDomain string) bool {
	if exemptDomain(queryDomain) {
		return false
	}
	lower := strings.ToLower(text)
	if len(tokenizeLower(lower)) < 4 {
		return true
	}
	for _, cue := range genericSnippetCues {
		if strings.Contains(lower, cue) {
			return true
		}
	}
	return false
}

// Penalty is the score deduction applied to generic snippets.
func (a *AuthorityScorer) Penalty(text, queryDomain string) float64 {
	if exemptDomain(queryDomain) {
		return 0
	}
	if a.IsGenericSnippet(text, queryDomain) {
		return 0.15
	}
	return 0
}

// IsAllowedByProfile checks a URL host against a named allow-list profile.
// Unknown profile names fall back to the default official profile.
func (a *AuthorityScorer) IsAllowedByProfile(rawURL, profileName string) bool {
	host := hostOf(rawURL)
	if host == "" {
		return false
	}
	suffixes, ok := a.profiles[strings.ToLower(strings.TrimSpace(profileName))]
	if !ok {
		suffixes = a.profiles[defaultProfileName]
	}
	for _, suffix := range suffixes {
		suffix = strings.ToLower(strings.TrimSpace(suffix))
		if suffix == "" {
			continue
		}
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return true
		}
	}
	return false
}

func exemptDomain(queryDomain string) bool {
	return strings.EqualFold(queryDomain, domain.DomainGeneral) ||
		strings.EqualFold(queryDomain, domain.DomainEducation)
}
