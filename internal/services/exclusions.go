package services

import (
	"strings"

	"github.com/samber/lo"
)

// ProcessExclusions is a case-insensitive set of process names that never
// receive foreground credit.
type ProcessExclusions struct {
	names map[string]struct{}
}

// NewProcessExclusions builds the set from configured names. Blank entries
// are dropped.
func NewProcessExclusions(names []string) ProcessExclusions {
	cleaned := lo.Compact(lo.Map(names, func(n string, _ int) string {
		return strings.ToLower(strings.TrimSpace(n))
	}))
	return ProcessExclusions{
		names: lo.SliceToMap(cleaned, func(n string) (string, struct{}) { return n, struct{}{} }),
	}
}

// Excluded reports whether name is a system process.
func (e ProcessExclusions) Excluded(name string) bool {
	_, ok := e.names[strings.ToLower(name)]
	return ok
}

// Len returns the number of distinct excluded names.
func (e ProcessExclusions) Len() int { return len(e.names) }

// DomainExclusions drops any domain containing one of its terms,
// ignoring case.
type DomainExclusions struct {
	terms []string
}

// NewDomainExclusions builds the matcher from configured substrings.
func NewDomainExclusions(terms []string) DomainExclusions {
	return DomainExclusions{
		terms: lo.Uniq(lo.Compact(lo.Map(terms, func(t string, _ int) string {
			return strings.ToLower(strings.TrimSpace(t))
		}))),
	}
}

// Excluded reports whether domain matches any term.
func (e DomainExclusions) Excluded(domain string) bool {
	d := strings.ToLower(domain)
	return lo.ContainsBy(e.terms, func(t string) bool { return strings.Contains(d, t) })
}

// NormalizeDomain reduces a resolved hostname to the name credited in the
// store: lower-cased, leading "www." removed, collapsed to its last two
// labels. Hosts with a single label are returned lower-cased as-is.
func NormalizeDomain(host string) string {
	h := strings.ToLower(strings.TrimSpace(host))
	h = strings.TrimPrefix(h, "www.")
	h = strings.TrimSuffix(h, ".")
	if h == "" {
		return ""
	}

	labels := strings.Split(h, ".")
	if len(labels) < 2 {
		return h
	}
	return labels[len(labels)-2] + "." + labels[len(labels)-1]
}
