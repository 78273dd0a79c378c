package types

import (
	"fmt"
	"time"
)

// DateLayout is the on-disk format of DailyAggregate.Date.
const DateLayout = "2006-01-02"

// EntityKind distinguishes the two things the engine tracks.
type EntityKind int

const (
	EntityApplication EntityKind = iota + 1
	EntityDomain
)

// String returns a string representation of the entity kind
func (k EntityKind) String() string {
	switch k {
	case EntityApplication:
		return "application"
	case EntityDomain:
		return "domain"
	default:
		return fmt.Sprintf("EntityKind(%d)", int(k))
	}
}

// Valid reports whether k is one of the known kinds.
func (k EntityKind) Valid() bool {
	return k == EntityApplication || k == EntityDomain
}

// ParseEntityKind accepts the CLI spellings of a kind.
func ParseEntityKind(s string) (EntityKind, error) {
	switch s {
	case "app", "apps", "application", "applications":
		return EntityApplication, nil
	case "domain", "domains":
		return EntityDomain, nil
	default:
		return 0, fmt.Errorf("unknown entity kind %q (want apps or domains)", s)
	}
}

// AggregateKey identifies one DailyAggregate row: a day plus exactly one
// application or one domain.
type AggregateKey struct {
	Date     string
	Kind     EntityKind
	EntityID int64
}

// AppOnly keys an application row.
func AppOnly(date string, appID int64) AggregateKey {
	return AggregateKey{Date: date, Kind: EntityApplication, EntityID: appID}
}

// DomainOnly keys a domain row.
func DomainOnly(date string, domainID int64) AggregateKey {
	return AggregateKey{Date: date, Kind: EntityDomain, EntityID: domainID}
}

// ActivityTotal is one entity's summed seconds, as returned by queries.
type ActivityTotal struct {
	Name    string `json:"name"`
	Seconds int64  `json:"seconds"`
}

// Duration returns Seconds as a time.Duration.
func (a ActivityTotal) Duration() time.Duration {
	return time.Duration(a.Seconds) * time.Second
}

// DayOf formats the calendar day of t in t's own location.
func DayOf(t time.Time) string {
	return t.Format(DateLayout)
}

// StartOfDay returns local midnight of t's day.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// NextMidnight returns the first instant of the day after t. DST-safe since
// it goes through time.Date rather than adding 24h.
func NextMidnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, t.Location())
}

// Credit is a number of whole seconds owed to a named entity on a given day.
// It is the unit a flush hands to the store.
type Credit struct {
	Date    string
	Name    string
	Seconds int64
}
