package catalog

import (
	"strings"
	"time"
)

// IST is fixed at +05:30; India does not observe daylight saving time.
var IST = time.FixedZone("IST", 5*60*60+30*60)

// Item is something a user can buy. Prices are in minor units (paise).
type Item struct {
	ID       string
	Name     string
	Price    int64
	Currency string
	Live     bool
	// Weekly live session slot, interpreted in IST.
	Weekday time.Weekday
	Hour    int
	Minute  int
}

var items = map[string]Item{
	"live-masterclass": {
		ID: "live-masterclass", Name: "Live Masterclass", Price: 49900, Currency: "INR",
		Live: true, Weekday: time.Saturday, Hour: 11, Minute: 0,
	},
	"live-cohort": {
		ID: "live-cohort", Name: "Live Cohort Program", Price: 499900, Currency: "INR",
		Live: true, Weekday: time.Sunday, Hour: 19, Minute: 30,
	},
	"recorded-course": {
		ID: "recorded-course", Name: "Recorded Course Bundle", Price: 199900, Currency: "INR",
	},
}

// Lookup finds an item by id.
func Lookup(id string) (Item, bool) {
	it, ok := items[strings.TrimSpace(id)]
	return it, ok
}

// DisplayName falls back to the raw id for items no longer in the catalog.
func DisplayName(id string) string {
	if it, ok := Lookup(id); ok {
		return it.Name
	}
	if strings.TrimSpace(id) == "" {
		return "Course"
	}
	return id
}

// NextLiveClass returns the first weekly session strictly after paidAt, or
// false for items without live sessions.
func NextLiveClass(itemID string, paidAt time.Time) (time.Time, bool) {
	it, ok := Lookup(itemID)
	if !ok || !it.Live {
		return time.Time{}, false
	}
	local := paidAt.In(IST)
	days := (int(it.Weekday) - int(local.Weekday()) + 7) % 7
	candidate := time.Date(local.Year(), local.Month(), local.Day()+days, it.Hour, it.Minute, 0, 0, IST)
	if !candidate.After(local) {
		candidate = candidate.AddDate(0, 0, 7)
	}
	return candidate, true
}
