// Package feed decodes the USGS GeoJSON feature collection into event records.
//
// The feed is third-party and individual features may be partially populated:
// a feature missing properties.mag (number), properties.place (string),
// properties.time (integer) or properties.url (string) is skipped and counted
// in Result.Dropped. Only a broken envelope fails the whole decode.
package feed

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/Ripplz/QuakeReport/internal/model"
)

type Result struct {
	Records []model.EventRecord // feed order, duplicates kept
	Dropped int
}

// Decode parses raw as a feature collection. A missing or null "features"
// member decodes to an empty result.
func Decode(raw []byte) (Result, error) {
	if !gjson.ValidBytes(raw) {
		return Result{}, model.NewLoadError(model.MalformedFeed, errors.New("response is not valid JSON"))
	}
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return Result{}, model.NewLoadError(model.MalformedFeed, fmt.Errorf("expected object envelope, got %s", root.Type))
	}

	out := Result{Records: []model.EventRecord{}}
	features := root.Get("features")
	if !features.Exists() || features.Type == gjson.Null {
		return out, nil
	}
	if !features.IsArray() {
		return Result{}, model.NewLoadError(model.MalformedFeed, fmt.Errorf("features is %s, not an array", features.Type))
	}

	features.ForEach(func(_, f gjson.Result) bool {
		rec, ok := decodeFeature(f)
		if !ok {
			out.Dropped++
			return true
		}
		out.Records = append(out.Records, rec)
		return true
	})
	return out, nil
}

func decodeFeature(f gjson.Result) (model.EventRecord, bool) {
	if !f.IsObject() {
		return model.EventRecord{}, false
	}
	props := f.Get("properties")
	if !props.IsObject() {
		return model.EventRecord{}, false
	}
	mag := props.Get("mag")
	place := props.Get("place")
	ts := props.Get("time")
	link := props.Get("url")
	if mag.Type != gjson.Number || place.Type != gjson.String || ts.Type != gjson.Number || link.Type != gjson.String {
		return model.EventRecord{}, false
	}
	millis, err := strconv.ParseInt(ts.Raw, 10, 64)
	if err != nil {
		return model.EventRecord{}, false
	}
	return model.EventRecord{
		Magnitude:  mag.Float(),
		Location:   place.String(),
		TimeMillis: millis,
		URL:        link.String(),
	}, true
}
