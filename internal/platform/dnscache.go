package platform

import (
	"github.com/samber/lo"
)

// DNS record types kept from the resolver cache.
const (
	dnsTypeA    uint16 = 1
	dnsTypeAAAA uint16 = 28
)

// cacheRecord is one resolver cache entry: the queried name and record type.
type cacheRecord struct {
	Name string
	Type uint16
}

// resolvedNames keeps the distinct names of A and AAAA entries that resolved
// successfully. Negative cache entries (failed lookups) are dropped by
// resolved, matching the Status filter of the PowerShell query.
func resolvedNames(records []cacheRecord, resolved func(cacheRecord) bool) []string {
	kept := lo.Filter(records, func(r cacheRecord, _ int) bool {
		if r.Name == "" || (r.Type != dnsTypeA && r.Type != dnsTypeAAAA) {
			return false
		}
		return resolved(r)
	})
	return lo.Uniq(lo.Map(kept, func(r cacheRecord, _ int) string { return r.Name }))
}
