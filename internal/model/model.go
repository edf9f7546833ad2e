package model

import "time"

// AgeUnknown and PriceUnknown are shown when the listing leaves the cell empty.
const (
	AgeUnknown   = "TBA"
	PriceUnknown = "TBA"
)

// EventType is the closed set of classifications the enricher may assign.
type EventType string

const (
	TypePool     EventType = "pool"
	TypeOutdoor  EventType = "outdoor"
	TypeNight    EventType = "night"
	TypeFestival EventType = "festival"
	TypeCruise   EventType = "cruise"
)

// Valid reports whether t is one of the known event types.
func (t EventType) Valid() bool {
	switch t {
	case TypePool, TypeOutdoor, TypeNight, TypeFestival, TypeCruise:
		return true
	}
	return false
}

// Window is the inclusive calendar range of interest. Only the date part is used.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether d falls on or between Start and End.
func (w Window) Contains(d time.Time) bool {
	day := truncateDay(d)
	return !day.Before(truncateDay(w.Start)) && !day.After(truncateDay(w.End))
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// RawEvent is one listing row as scraped, before enrichment.
type RawEvent struct {
	Date      string   // YYYY-MM-DD of the start day
	Title     string   // brand and/or lineup, undecided
	Venue     string
	Area      string
	Genres    []string // lowercase, never nil
	PriceText string
	Age       string
	TimeText  string // contents of the parenthesized time range
	StartHour int    // 0-30, see listing.StartHour
	Link      string
}

// EnrichInput is what the enricher gets to see of a RawEvent.
type EnrichInput struct {
	Title  string   `json:"title"`
	Venue  string   `json:"venue"`
	Area   string   `json:"area"`
	Genres []string `json:"genres"`
}

// Input projects the fields the enricher needs.
func (r RawEvent) Input() EnrichInput {
	return EnrichInput{Title: r.Title, Venue: r.Venue, Area: r.Area, Genres: r.Genres}
}

// Classification is the enricher's verdict for one RawEvent. Zero fields mean
// the enricher had nothing usable for that slot.
type Classification struct {
	Name    string    `json:"name"`
	Artists string    `json:"artists"`
	Type    EventType `json:"type"`
}

// Event is the merged, persisted record.
type Event struct {
	Date      string    `json:"date"`
	Name      string    `json:"name"`
	Artists   string    `json:"artists"`
	Type      EventType `json:"type"`
	Title     string    `json:"title"`
	Venue     string    `json:"venue"`
	Area      string    `json:"area"`
	Genres    []string  `json:"genres"`
	Price     string    `json:"priceDisplay"`
	PriceRaw  int       `json:"priceRawNumeric"`
	Age       string    `json:"age"`
	Time      string    `json:"time"`
	StartHour int       `json:"startHour"`
	Link      string    `json:"link"`
}

// Artifact is the document written once per successful cycle.
type Artifact struct {
	UpdatedAt time.Time `json:"updatedAt"`
	CycleID   string    `json:"cycleId"`
	Count     int       `json:"count"`
	Events    []Event   `json:"events"`
}
