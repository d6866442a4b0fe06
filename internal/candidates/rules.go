package candidates

import (
	"strings"

	"github.com/lamim/programforge/pkg/models"
)

// Tags is the normalised, lower-cased view of an exercise that rules are evaluated against
type Tags struct {
	Name        string
	Category    string
	Movement    string
	BodyRegions []string
}

// TagsFor normalises an exercise for rule evaluation
func TagsFor(e models.Exercise) Tags {
	regions := make([]string, 0, len(e.BodyRegions))
	for _, r := range e.BodyRegions {
		if n := normalize(r); n != "" {
			regions = append(regions, n)
		}
	}
	return Tags{
		Name:        normalize(e.Name),
		Category:    normalize(e.Category),
		Movement:    normalize(e.Movement),
		BodyRegions: regions,
	}
}

// Rule excludes exercises. A matching rule removes the exercise from the pool.
type Rule interface {
	Matches(tags Tags) bool
	String() string
}

// Scope selects which tag fields a rule inspects
type Scope int

const (
	// ScopeConflict inspects name, category, movement and body regions
	ScopeConflict Scope = iota
	// ScopeAversion inspects name and type tags (category, movement)
	ScopeAversion
)

func (s Scope) fields(tags Tags) []string {
	fields := []string{tags.Name, tags.Category, tags.Movement}
	if s == ScopeConflict {
		fields = append(fields, tags.BodyRegions...)
	}
	return fields
}

// Matcher builds a rule from a keyword. Swapping the matcher changes how
// strictly exclusions are applied without touching the filter.
type Matcher func(keyword string, scope Scope) Rule

// SubstringRule matches when the keyword and any inspected field contain one
// another, case-insensitively. It over-excludes rather than miss a conflict.
type SubstringRule struct {
	Keyword string
	Scope   Scope
}

// Substring is the default Matcher
func Substring(keyword string, scope Scope) Rule {
	return SubstringRule{Keyword: normalize(keyword), Scope: scope}
}

func (r SubstringRule) Matches(tags Tags) bool {
	if r.Keyword == "" {
		return false
	}
	for _, field := range r.Scope.fields(tags) {
		if field == "" {
			continue
		}
		if strings.Contains(field, r.Keyword) || strings.Contains(r.Keyword, field) {
			return true
		}
	}
	return false
}

func (r SubstringRule) String() string {
	return "substring:" + r.Keyword
}

// TagSetRule matches only on exact equality with an inspected field
type TagSetRule struct {
	Keyword string
	Scope   Scope
}

// TagSet is a stricter Matcher based on exact tag intersection
func TagSet(keyword string, scope Scope) Rule {
	return TagSetRule{Keyword: normalize(keyword), Scope: scope}
}

func (r TagSetRule) Matches(tags Tags) bool {
	if r.Keyword == "" {
		return false
	}
	for _, field := range r.Scope.fields(tags) {
		if field == r.Keyword {
			return true
		}
	}
	return false
}

func (r TagSetRule) String() string {
	return "tag:" + r.Keyword
}

// MatcherByName resolves a configured matcher name. Unknown names fall back to Substring.
func MatcherByName(name string) Matcher {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "tags", "tagset", "tag_set":
		return TagSet
	default:
		return Substring
	}
}

func buildRules(keywords []string, scope Scope, m Matcher) []Rule {
	rules := make([]Rule, 0, len(keywords))
	for _, kw := range keywords {
		if strings.TrimSpace(kw) == "" {
			continue
		}
		rules = append(rules, m(kw, scope))
	}
	return rules
}

func anyMatch(rules []Rule, tags Tags) (Rule, bool) {
	for _, r := range rules {
		if r.Matches(tags) {
			return r, true
		}
	}
	return nil, false
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("_", " ", "-", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}
