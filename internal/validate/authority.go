package validate

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/ppiankov/truthwire/internal/model"
)

// Tier ranks how authoritative a source is. Lower is stronger.
type Tier int

const (
	TierUnknown   Tier = 0 // URI could not be parsed
	TierPrimary   Tier = 1 // Official, governmental, academic
	TierSecondary Tier = 2 // Encyclopedias, wire services, fact-checkers
	TierTertiary  Tier = 3 // Everything else
)

func (t Tier) String() string {
	switch t {
	case TierPrimary:
		return "primary"
	case TierSecondary:
		return "secondary"
	case TierTertiary:
		return "tertiary"
	default:
		return "unknown"
	}
}

// AuthorityConfig lists domains and path patterns per tier
type AuthorityConfig struct {
	PrimaryDomains   []string
	SecondaryDomains []string
	PathPatterns     []PathPattern
	DomainMap        map[string]string // host -> tier name, checked first
}

// PathPattern assigns a tier to URLs whose path matches Pattern
type PathPattern struct {
	Pattern string
	Tier    string
}

// DefaultAuthorityConfig returns the built-in domain lists
func DefaultAuthorityConfig() AuthorityConfig {
	return AuthorityConfig{
		PrimaryDomains: []string{
			"gov.uk", "europa.eu", "who.int", "un.org", "nih.gov",
			"doi.org", "nature.com", "science.org", "arxiv.org",
		},
		SecondaryDomains: []string{
			"wikipedia.org", "britannica.com", "reuters.com", "apnews.com",
			"bbc.co.uk", "bbc.com", "snopes.com", "politifact.com", "factcheck.org",
		},
		PathPatterns: []PathPattern{
			{Pattern: `^/(legislation|statutes?|laws?)/`, Tier: "primary"},
			{Pattern: `\.pdf$`, Tier: "secondary"},
		},
	}
}

// AuthorityClassifier classifies source URIs into authority tiers
type AuthorityClassifier struct {
	domainMap    map[string]Tier
	primary      []string
	secondary    []string
	pathPatterns []compiledPattern
}

type compiledPattern struct {
	pattern *regexp.Regexp
	tier    Tier
}

// NewAuthorityClassifier creates a classifier; nil uses DefaultAuthorityConfig.
// Invalid path patterns are skipped.
func NewAuthorityClassifier(config *AuthorityConfig) *AuthorityClassifier {
	if config == nil {
		def := DefaultAuthorityConfig()
		config = &def
	}

	c := &AuthorityClassifier{
		domainMap: make(map[string]Tier, len(config.DomainMap)),
		primary:   lowerAll(config.PrimaryDomains),
		secondary: lowerAll(config.SecondaryDomains),
	}
	for host, tier := range config.DomainMap {
		c.domainMap[strings.ToLower(host)] = parseTier(tier)
	}
	for _, pp := range config.PathPatterns {
		re, err := regexp.Compile(pp.Pattern)
		if err != nil {
			continue
		}
		c.pathPatterns = append(c.pathPatterns, compiledPattern{pattern: re, tier: parseTier(pp.Tier)})
	}
	return c
}

// Classify returns the tier of rawURL
func (a *AuthorityClassifier) Classify(rawURL string) Tier {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return TierUnknown
	}
	host := strings.ToLower(parsed.Hostname())

	if tier, ok := a.domainMap[host]; ok {
		return tier
	}
	if matchesDomain(host, a.primary) {
		return TierPrimary
	}
	if matchesDomain(host, a.secondary) {
		return TierSecondary
	}
	for _, cp := range a.pathPatterns {
		if cp.pattern.MatchString(parsed.Path) {
			return cp.tier
		}
	}

	// Government and academic TLDs
	if strings.HasSuffix(host, ".gov") || strings.HasSuffix(host, ".edu") || strings.HasSuffix(host, ".ac.uk") {
		return TierPrimary
	}
	return TierTertiary
}

// RankedSource is a source with its tier
type RankedSource struct {
	model.Source
	Tier Tier
}

// Rank returns sources ordered from most to least authoritative. Sources of
// equal tier keep their original order; unparseable URIs go last.
func (a *AuthorityClassifier) Rank(sources []model.Source) []RankedSource {
	ranked := make([]RankedSource, len(sources))
	for i, src := range sources {
		ranked[i] = RankedSource{Source: src, Tier: a.Classify(src.URI)}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return sortKey(ranked[i].Tier) < sortKey(ranked[j].Tier)
	})
	return ranked
}

func sortKey(t Tier) int {
	if t == TierUnknown {
		return int(TierTertiary) + 1
	}
	return int(t)
}

// matchesDomain reports whether host equals a domain or is a subdomain of it
func matchesDomain(host string, domains []string) bool {
	for _, d := range domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func parseTier(tier string) Tier {
	switch strings.ToLower(tier) {
	case "primary", "1":
		return TierPrimary
	case "secondary", "2":
		return TierSecondary
	default:
		return TierTertiary
	}
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}
