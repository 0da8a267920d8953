package model

// MonumentPatch is an optional-field diff produced by the SPARQL binding
// mapper or an entity lookup. Nil fields mean "no information", never
// "clear the field" — applying a patch can only add or refresh data.
type MonumentPatch struct {
	WikidataID string

	NameTR        *string
	NameEN        *string
	DescriptionTR *string
	DescriptionEN *string
	Aka           *string

	KulturEnvanteriID *string
	CommonsCategory   *string
	CommonsURL        *string
	WikipediaURL      *string
	WikidataURL       *string

	Latitude  *float64
	Longitude *float64

	City                *string
	District            *string
	Province            *string
	LocationHierarchyTR *string

	Properties map[string]string
}

// Apply merges the patch into an existing record, incoming values winning
// wherever the patch carries one. A nil patch field never clobbers an
// existing value. Properties are a shallow union: incoming keys win on
// conflict, existing keys absent from the patch are preserved.
func (p *MonumentPatch) Apply(m *Monument) {
	applyStr(&m.NameTR, p.NameTR)
	applyStr(&m.NameEN, p.NameEN)
	applyStr(&m.DescriptionTR, p.DescriptionTR)
	applyStr(&m.DescriptionEN, p.DescriptionEN)
	applyStr(&m.Aka, p.Aka)
	applyStr(&m.KulturEnvanteriID, p.KulturEnvanteriID)
	applyStr(&m.CommonsCategory, p.CommonsCategory)
	applyStr(&m.CommonsURL, p.CommonsURL)
	applyStr(&m.WikipediaURL, p.WikipediaURL)
	applyStr(&m.WikidataURL, p.WikidataURL)
	applyStr(&m.City, p.City)
	applyStr(&m.District, p.District)
	applyStr(&m.Province, p.Province)
	applyStr(&m.LocationHierarchyTR, p.LocationHierarchyTR)

	// Coordinates move as a pair.
	if p.Latitude != nil && p.Longitude != nil {
		m.Latitude = ptrFloat(*p.Latitude)
		m.Longitude = ptrFloat(*p.Longitude)
	}

	if len(p.Properties) > 0 {
		if m.Properties == nil {
			m.Properties = make(map[string]string, len(p.Properties))
		}
		for k, v := range p.Properties {
			m.Properties[k] = v
		}
	}
}

// Heal fills only fields that are currently null on the record; a present
// value is never overwritten, even when the patch disagrees with it. It
// reports whether anything changed. This is the one-directional merge used
// by the backfill jobs.
func (p *MonumentPatch) Heal(m *Monument) bool {
	changed := false
	changed = healStr(&m.NameTR, p.NameTR) || changed
	changed = healStr(&m.NameEN, p.NameEN) || changed
	changed = healStr(&m.DescriptionTR, p.DescriptionTR) || changed
	changed = healStr(&m.DescriptionEN, p.DescriptionEN) || changed
	changed = healStr(&m.Aka, p.Aka) || changed
	changed = healStr(&m.KulturEnvanteriID, p.KulturEnvanteriID) || changed
	changed = healStr(&m.CommonsCategory, p.CommonsCategory) || changed
	changed = healStr(&m.CommonsURL, p.CommonsURL) || changed
	changed = healStr(&m.WikipediaURL, p.WikipediaURL) || changed
	changed = healStr(&m.WikidataURL, p.WikidataURL) || changed
	changed = healStr(&m.City, p.City) || changed
	changed = healStr(&m.District, p.District) || changed
	changed = healStr(&m.Province, p.Province) || changed
	changed = healStr(&m.LocationHierarchyTR, p.LocationHierarchyTR) || changed

	if m.Latitude == nil && m.Longitude == nil && p.Latitude != nil && p.Longitude != nil {
		m.Latitude = ptrFloat(*p.Latitude)
		m.Longitude = ptrFloat(*p.Longitude)
		changed = true
	}

	for k, v := range p.Properties {
		if m.Properties == nil {
			m.Properties = make(map[string]string)
		}
		if _, ok := m.Properties[k]; !ok {
			m.Properties[k] = v
			changed = true
		}
	}

	return changed
}

// NewMonument builds a fresh record from the patch.
func (p *MonumentPatch) NewMonument() *Monument {
	m := &Monument{WikidataID: p.WikidataID}
	p.Apply(m)
	return m
}

func applyStr(dst **string, src *string) {
	if src != nil {
		v := *src
		*dst = &v
	}
}

func healStr(dst **string, src *string) bool {
	if *dst == nil && src != nil {
		v := *src
		*dst = &v
		return true
	}
	return false
}

func ptrFloat(f float64) *float64 { return &f }
