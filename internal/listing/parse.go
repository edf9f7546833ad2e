// Package listing turns the source's event table into RawEvent records.
//
// Parsing is lenient by construction: a row that does not look like an event
// is dropped and the rest of the table is still read. Parse never fails.
package listing

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/galois26/event-ingester/internal/model"
)

// Separator splits the description cell into title and venue block.
const Separator = " @ "

var (
	reMonthDay = regexp.MustCompile(`(?i)\b(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+(\d{1,2})\b`)
	reParen    = regexp.MustCompile(`\(([^)]*)\)`)
	reVenue    = regexp.MustCompile(`^(.*?)\s*\(([^)]*)\)\s*(.*)$`)
)

var months = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// Parse extracts every event row of page whose date falls inside w.
// The result is never nil.
func Parse(page string, w model.Window) []model.RawEvent {
	out := []model.RawEvent{}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return out
	}
	// <br> separates words visually but contributes no text node.
	doc.Find("br").Each(func(_ int, br *goquery.Selection) {
		br.ReplaceWithNodes(&html.Node{Type: html.TextNode, Data: " "})
	})

	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		if ev, ok := parseRow(row, w); ok {
			out = append(out, ev)
		}
	})
	return out
}

func parseRow(row *goquery.Selection, w model.Window) (model.RawEvent, bool) {
	cells := row.ChildrenFiltered("td")
	if cells.Length() < 4 {
		return model.RawEvent{}, false
	}

	when := cellText(cells.Eq(0))
	date, ok := resolveDate(when, w)
	if !ok {
		return model.RawEvent{}, false
	}

	ev := model.RawEvent{
		Date:   date.Format(time.DateOnly),
		Genres: []string{},
	}
	if m := reParen.FindStringSubmatch(when); m != nil {
		ev.TimeText = strings.TrimSpace(m[1])
	}
	ev.StartHour = StartHour(ev.TimeText)

	desc := cells.Eq(1)
	if href, ok := desc.Find("a[href]").First().Attr("href"); ok {
		ev.Link = strings.TrimSpace(href)
	}
	title, rest, found := strings.Cut(cellText(desc), Separator)
	ev.Title = strings.TrimSpace(title)
	if found {
		ev.Venue, ev.Area, ev.Genres = splitVenue(strings.TrimSpace(rest))
	}

	ev.PriceText = cellText(cells.Eq(2))
	ev.Age = cellText(cells.Eq(3))
	if ev.Age == "" {
		ev.Age = model.AgeUnknown
	}
	return ev, true
}

// resolveDate finds the month-day token in s and places it in the first year of
// the window that contains it.
func resolveDate(s string, w model.Window) (time.Time, bool) {
	m := reMonthDay.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	month := months[strings.ToLower(m[1])]
	day, err := strconv.Atoi(m[2])
	if err != nil || day < 1 || day > 31 {
		return time.Time{}, false
	}
	for y := w.Start.Year(); y <= w.End.Year(); y++ {
		d := time.Date(y, month, day, 0, 0, 0, 0, time.UTC)
		if d.Month() != month {
			// Feb 30 and friends roll over into the next month.
			continue
		}
		if w.Contains(d) {
			return d, true
		}
	}
	return time.Time{}, false
}

func splitVenue(s string) (venue, area string, genres []string) {
	genres = []string{}
	m := reVenue.FindStringSubmatch(s)
	if m == nil {
		return s, "", genres
	}
	for _, g := range strings.Split(m[3], ",") {
		if g = strings.ToLower(strings.TrimSpace(g)); g != "" {
			genres = append(genres, g)
		}
	}
	return strings.TrimSpace(m[1]), strings.TrimSpace(m[2]), genres
}

// cellText returns the visible text of s with whitespace runs collapsed.
func cellText(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}
