package wikidata

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"anitgo/pkg/cache"
	"anitgo/pkg/model"
	"anitgo/pkg/request"
	"anitgo/pkg/tracker"
)

// EntityFetcher retrieves single entities through the wbgetentities API,
// used for targeted resyncs and backfill jobs where a full SPARQL page
// would be wasteful.
type EntityFetcher struct {
	request  *request.Client
	tracker  *tracker.Tracker
	labels   cache.LabelCache
	Endpoint string
	logger   *slog.Logger
}

// NewEntityFetcher creates an EntityFetcher. The label cache is shared
// with the hierarchy resolver so repeated place lookups stay local.
func NewEntityFetcher(r *request.Client, t *tracker.Tracker, labels cache.LabelCache, endpoint string, logger *slog.Logger) *EntityFetcher {
	return &EntityFetcher{
		request:  r,
		tracker:  t,
		labels:   labels,
		Endpoint: endpoint,
		logger:   logger,
	}
}

// Entity is a decoded Wikidata entity.
type Entity struct {
	ID           string                       `json:"id"`
	Labels       map[string]term              `json:"labels"`
	Descriptions map[string]term              `json:"descriptions"`
	Aliases      map[string][]term            `json:"aliases"`
	Sitelinks    map[string]sitelink          `json:"sitelinks"`
	Claims       map[string][]json.RawMessage `json:"claims"`
}

type term struct {
	Language string `json:"language"`
	Value    string `json:"value"`
}

type sitelink struct {
	Site  string `json:"site"`
	Title string `json:"title"`
}

// claimEnvelope covers the datavalue shapes we read: plain strings,
// entity references and globe coordinates.
type claimEnvelope struct {
	Mainsnak struct {
		Datavalue struct {
			Type  string          `json:"type"`
			Value json.RawMessage `json:"value"`
		} `json:"datavalue"`
	} `json:"mainsnak"`
}

// Label returns a localized label for an entity. The first language
// with a value wins; results are cached per (qid, language).
func (f *EntityFetcher) Label(ctx context.Context, qid, lang string) (string, error) {
	key := qid + ":" + lang
	if v, ok := f.labels.Get(key); ok {
		f.tracker.TrackLabelHit("wikidata")
		return v, nil
	}
	f.tracker.TrackLabelMiss("wikidata")

	e, err := f.GetEntity(ctx, qid)
	if err != nil {
		return "", err
	}
	v := e.Label(lang)
	if v != "" {
		f.labels.Put(key, v)
	}
	return v, nil
}

// GetEntity fetches one entity with labels, descriptions, aliases,
// claims and sitelinks restricted to the languages we store.
func (f *EntityFetcher) GetEntity(ctx context.Context, qid string) (*Entity, error) {
	if !qidPattern.MatchString(qid) {
		return nil, fmt.Errorf("invalid entity id %q", qid)
	}

	q := url.Values{}
	q.Set("action", "wbgetentities")
	q.Set("ids", qid)
	q.Set("props", "labels|descriptions|aliases|claims|sitelinks")
	q.Set("languages", "tr|en")
	q.Set("format", "json")

	body, err := f.request.Get(ctx, f.Endpoint+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("fetch entity %s: %w", qid, err)
	}

	var resp struct {
		Entities map[string]Entity `json:"entities"`
		Error    *struct {
			Code string `json:"code"`
			Info string `json:"info"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode entity %s: %w", qid, err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("api error for %s: %s", qid, resp.Error.Code)
	}

	for id, e := range resp.Entities {
		// Redirects come back under the canonical ID.
		e.ID = id
		return &e, nil
	}
	return nil, fmt.Errorf("entity %s not found", qid)
}

// Label returns the entity's label in the given language, or "".
func (e *Entity) Label(lang string) string {
	return e.Labels[lang].Value
}

// Description returns the entity's description in the given language, or "".
func (e *Entity) Description(lang string) string {
	return e.Descriptions[lang].Value
}

// FirstString returns the first string-valued claim for a property.
// Used for external IDs and Commons titles (P373, P18, P11729).
func (e *Entity) FirstString(prop string) *string {
	for _, raw := range e.Claims[prop] {
		var c claimEnvelope
		if err := json.Unmarshal(raw, &c); err != nil {
			continue
		}
		var s string
		if err := json.Unmarshal(c.Mainsnak.Datavalue.Value, &s); err != nil {
			continue
		}
		if s != "" {
			return &s
		}
	}
	return nil
}

// FirstItem returns the first entity-valued claim for a property as a QID.
func (e *Entity) FirstItem(prop string) string {
	for _, raw := range e.Claims[prop] {
		var c claimEnvelope
		if err := json.Unmarshal(raw, &c); err != nil {
			continue
		}
		var v struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(c.Mainsnak.Datavalue.Value, &v); err != nil {
			continue
		}
		if v.ID != "" {
			return v.ID
		}
	}
	return ""
}

// Coordinate returns the entity's P625 coordinate, or nils when absent.
func (e *Entity) Coordinate() (lat, lng *float64) {
	for _, raw := range e.Claims[propCoordinates] {
		var c claimEnvelope
		if err := json.Unmarshal(raw, &c); err != nil {
			continue
		}
		var v struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		}
		if err := json.Unmarshal(c.Mainsnak.Datavalue.Value, &v); err != nil {
			continue
		}
		return &v.Latitude, &v.Longitude
	}
	return nil, nil
}

// Patch converts the entity into a monument patch with the same field
// semantics as the bulk mapper, so targeted resyncs merge identically.
func (e *Entity) Patch() *model.MonumentPatch {
	p := &model.MonumentPatch{WikidataID: e.ID}

	p.NameTR = labelPtr(e.Label("tr"))
	p.NameEN = labelPtr(e.Label("en"))
	p.DescriptionTR = strPtr(e.Description("tr"))
	p.DescriptionEN = strPtr(e.Description("en"))

	if aliases := e.Aliases["tr"]; len(aliases) > 0 {
		joined := ""
		for i, a := range aliases {
			if i > 0 {
				joined += ", "
			}
			joined += a.Value
		}
		p.Aka = &joined
	}

	p.KulturEnvanteriID = e.FirstString(propKulturEnvanteri)
	p.Latitude, p.Longitude = e.Coordinate()

	if cat := e.FirstString(propCommonsCategory); cat != nil {
		p.CommonsCategory = cat
		u := "https://commons.wikimedia.org/wiki/Category:" + urlTitle(*cat)
		p.CommonsURL = &u
	}

	wdURL := "https://www.wikidata.org/wiki/" + e.ID
	p.WikidataURL = &wdURL

	props := map[string]string{}
	if inst := e.FirstItem(propInstanceOf); inst != "" {
		props["instance_of"] = inst
	}
	if img := e.FirstString(propImage); img != nil {
		name := *img
		if !strings.HasPrefix(name, "File:") {
			name = "File:" + name
		}
		props["image"] = name
	}
	if sl, ok := e.Sitelinks["trwiki"]; ok {
		u := "https://tr.wikipedia.org/wiki/" + urlTitle(sl.Title)
		p.WikipediaURL = &u
		props["wikipedia_tr"] = u
	}
	if sl, ok := e.Sitelinks["enwiki"]; ok {
		u := "https://en.wikipedia.org/wiki/" + urlTitle(sl.Title)
		if p.WikipediaURL == nil {
			p.WikipediaURL = &u
		}
		props["wikipedia_en"] = u
	}
	if len(props) > 0 {
		p.Properties = props
	}

	return p
}

// urlTitle converts a wiki page title to its URL form.
func urlTitle(title string) string {
	return url.PathEscape(strings.ReplaceAll(title, " ", "_"))
}
