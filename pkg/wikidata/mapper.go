package wikidata

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"anitgo/pkg/model"
	"anitgo/pkg/sparql"
)

var (
	qidPattern   = regexp.MustCompile(`(?i)^Q\d+$`)
	qidSuffix    = regexp.MustCompile(`(Q\d+)$`)
	pointPattern = regexp.MustCompile(`^Point\((-?\d+(?:\.\d+)?) (-?\d+(?:\.\d+)?)\)$`)
)

// ExtractQID pulls the trailing entity ID out of a Wikidata URI, or ""
// when the string carries none.
func ExtractQID(uri string) string {
	return qidSuffix.FindString(uri)
}

// ParsePoint decodes a WKT "Point(lon lat)" literal into latitude and
// longitude. Anything that does not match yields nils; a malformed
// coordinate must never abort a bulk row.
func ParsePoint(s string) (lat, lng *float64) {
	m := pointPattern.FindStringSubmatch(s)
	if m == nil {
		return nil, nil
	}
	lon, err1 := strconv.ParseFloat(m[1], 64)
	la, err2 := strconv.ParseFloat(m[2], 64)
	if err1 != nil || err2 != nil {
		return nil, nil
	}
	return &la, &lon
}

// MapBinding converts one bulk-query result row into a monument patch.
// Rows without a usable entity ID map to nil and are dropped by the
// caller. Absent or URI-shaped labels become nil fields rather than
// polluting the record with raw identifiers.
func MapBinding(b sparql.Binding) *model.MonumentPatch {
	qid := ExtractQID(b.Val("item"))
	if qid == "" {
		return nil
	}

	p := &model.MonumentPatch{
		WikidataID: qid,
		NameTR:     labelPtr(b.Val("nameTR")),
		NameEN:     labelPtr(b.Val("nameEN")),
	}

	p.DescriptionTR = strPtr(b.Val("descTR"))
	p.DescriptionEN = strPtr(b.Val("descEN"))
	p.Aka = strPtr(b.Val("aka"))
	p.KulturEnvanteriID = strPtr(b.Val("kulturenvanteriID"))

	p.Latitude, p.Longitude = ParsePoint(b.Val("coords"))

	if cat := b.Val("commonsCat"); cat != "" {
		p.CommonsCategory = &cat
		u := "https://commons.wikimedia.org/wiki/Category:" + strings.ReplaceAll(cat, " ", "_")
		p.CommonsURL = &u
	}

	wikiTR := b.Val("sitelinkTR")
	wikiEN := b.Val("sitelinkEN")
	// Turkish article preferred for a Turkish-first catalog.
	if wikiTR != "" {
		p.WikipediaURL = &wikiTR
	} else if wikiEN != "" {
		p.WikipediaURL = &wikiEN
	}

	wdURL := "https://www.wikidata.org/wiki/" + qid
	p.WikidataURL = &wdURL

	props := map[string]string{}
	if inst := ExtractQID(b.Val("instance")); inst != "" {
		props["instance_of"] = inst
	}
	if l := labelPtr(b.Val("instanceLabel")); l != nil {
		props["instance_of_label"] = *l
	}
	if img := imageFilename(b.Val("image")); img != "" {
		props["image"] = img
	}
	if wikiEN != "" {
		props["wikipedia_en"] = wikiEN
	}
	if wikiTR != "" {
		props["wikipedia_tr"] = wikiTR
	}
	if len(props) > 0 {
		p.Properties = props
	}

	return p
}

// imageFilename turns a Commons media URI into a "File:Name.jpg" title.
func imageFilename(uri string) string {
	if uri == "" {
		return ""
	}
	idx := strings.LastIndex(uri, "/")
	if idx < 0 || idx == len(uri)-1 {
		return ""
	}
	name := uri[idx+1:]
	if decoded, err := url.QueryUnescape(name); err == nil {
		name = decoded
	}
	if !strings.HasPrefix(name, "File:") {
		name = "File:" + name
	}
	return name
}

// labelPtr filters out values the endpoint could not localize: empty
// strings, bare QIDs and entity URIs all come back when no label exists
// in the requested languages.
func labelPtr(s string) *string {
	if s == "" || qidPattern.MatchString(s) || isURI(s) {
		return nil
	}
	return &s
}

func isURI(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
