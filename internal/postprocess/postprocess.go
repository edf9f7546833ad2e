// Package postprocess combines scraped rows with their classifications into the
// records that get persisted.
package postprocess

import (
	"strings"

	"github.com/galois26/event-ingester/internal/model"
)

// Merge pairs raw[i] with classes[i]. classes may be shorter or longer than raw;
// missing or unusable fields fall back per field, never per batch:
// name to the scraped title, artists to "", type to night.
func Merge(raw []model.RawEvent, classes []model.Classification) []model.Event {
	out := make([]model.Event, 0, len(raw))
	for i, r := range raw {
		var c model.Classification
		if i < len(classes) {
			c = classes[i]
		}
		out = append(out, merge(r, c))
	}
	return out
}

func merge(r model.RawEvent, c model.Classification) model.Event {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		name = r.Title
	}
	typ := c.Type
	if !typ.Valid() {
		typ = model.TypeNight
	}
	genres := r.Genres
	if genres == nil {
		genres = []string{}
	}
	return model.Event{
		Date:      r.Date,
		Name:      name,
		Artists:   strings.TrimSpace(c.Artists),
		Type:      typ,
		Title:     r.Title,
		Venue:     r.Venue,
		Area:      r.Area,
		Genres:    genres,
		Price:     DisplayPrice(r.PriceText, model.PriceUnknown),
		PriceRaw:  NormalizePrice(r.PriceText),
		Age:       r.Age,
		Time:      r.TimeText,
		StartHour: r.StartHour,
		Link:      r.Link,
	}
}
