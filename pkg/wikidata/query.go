package wikidata

import (
	"fmt"
	"strings"
)

// Wikidata property IDs used by the catalog queries.
const (
	propCountry         = "P17"
	propInstanceOf      = "P31"
	propAdminTerritory  = "P131"
	propCommonsCategory = "P373"
	propImage           = "P18"
	propCoordinates     = "P625"
	propKulturEnvanteri = "P11729" // Kültür Envanteri monument ID
)

// qidTurkey is the Wikidata item for Turkey.
const qidTurkey = "Q43"

// excludedClasses lists instance-of values that carry a Kültür Envanteri
// ID upstream but are not built monuments (people, settlements, natural
// features). The list is shared verbatim by the page, count and ID
// queries so the reconciliation pass compares identical filter semantics.
var excludedClasses = []string{
	"Q5",        // human
	"Q16521",    // taxon
	"Q532",      // village
	"Q123705",   // neighbourhood
	"Q15284",    // municipality
	"Q8502",     // mountain
	"Q4022",     // river
	"Q23397",    // lake
	"Q35509",    // cave
	"Q40080",    // beach
	"Q185113",   // cape
	"Q24529780", // spring
}

// monumentFilter is the shared WHERE block: monuments in Turkey carrying
// the external catalog ID, minus the excluded classifications.
func monumentFilter() string {
	var b strings.Builder
	fmt.Fprintf(&b, "  ?item wdt:%s wd:%s ;\n", propCountry, qidTurkey)
	fmt.Fprintf(&b, "        wdt:%s ?kulturID .\n", propKulturEnvanteri)
	b.WriteString("  MINUS {\n")
	fmt.Fprintf(&b, "    ?item wdt:%s ?banned .\n", propInstanceOf)
	b.WriteString("    VALUES ?banned { ")
	for _, q := range excludedClasses {
		b.WriteString("wd:" + q + " ")
	}
	b.WriteString("}\n  }\n")
	return b.String()
}

// BulkPageQuery builds one page of the bulk monument query. Optional
// fields use OPTIONAL/SAMPLE semantics so their absence never drops the
// row, and GROUP BY keeps one row per item.
func BulkPageQuery(offset, limit int) string {
	var b strings.Builder
	b.WriteString(`SELECT ?item
  (SAMPLE(?kulturID) AS ?kulturenvanteriID)
  (SAMPLE(?labelTR) AS ?nameTR)
  (SAMPLE(?labelEN) AS ?nameEN)
  (SAMPLE(?descriptionTR) AS ?descTR)
  (SAMPLE(?descriptionEN) AS ?descEN)
  (GROUP_CONCAT(DISTINCT ?altLabelTR; separator=", ") AS ?aka)
  (SAMPLE(?coordinates) AS ?coords)
  (SAMPLE(?commonsCategory) AS ?commonsCat)
  (SAMPLE(?img) AS ?image)
  (SAMPLE(?instanceOf) AS ?instance)
  (SAMPLE(?instanceOfLabelTR) AS ?instanceLabel)
  (SAMPLE(?articleTR) AS ?sitelinkTR)
  (SAMPLE(?articleEN) AS ?sitelinkEN)
WHERE {
`)
	b.WriteString(monumentFilter())
	b.WriteString(fmt.Sprintf(`  OPTIONAL { ?item rdfs:label ?labelTR . FILTER(LANG(?labelTR) = "tr") }
  OPTIONAL { ?item rdfs:label ?labelEN . FILTER(LANG(?labelEN) = "en") }
  OPTIONAL { ?item schema:description ?descriptionTR . FILTER(LANG(?descriptionTR) = "tr") }
  OPTIONAL { ?item schema:description ?descriptionEN . FILTER(LANG(?descriptionEN) = "en") }
  OPTIONAL { ?item skos:altLabel ?altLabelTR . FILTER(LANG(?altLabelTR) = "tr") }
  OPTIONAL { ?item wdt:%s ?coordinates . }
  OPTIONAL { ?item wdt:%s ?commonsCategory . }
  OPTIONAL { ?item wdt:%s ?img . }
  OPTIONAL {
    ?item wdt:%s ?instanceOf .
    OPTIONAL { ?instanceOf rdfs:label ?instanceOfLabelTR . FILTER(LANG(?instanceOfLabelTR) = "tr") }
  }
  OPTIONAL { ?articleTR schema:about ?item ; schema:isPartOf <https://tr.wikipedia.org/> . }
  OPTIONAL { ?articleEN schema:about ?item ; schema:isPartOf <https://en.wikipedia.org/> . }
`, propCoordinates, propCommonsCategory, propImage, propInstanceOf))
	b.WriteString("}\nGROUP BY ?item\nORDER BY ?item\n")
	fmt.Fprintf(&b, "LIMIT %d OFFSET %d\n", limit, offset)
	return b.String()
}

// CountQuery builds the authoritative distinct-count query used by the
// reconciliation pass.
func CountQuery() string {
	var b strings.Builder
	b.WriteString("SELECT (COUNT(DISTINCT ?item) AS ?count) WHERE {\n")
	b.WriteString(monumentFilter())
	b.WriteString("}\n")
	return b.String()
}

// IDListQuery builds one page of the distinct subject-ID listing used by
// the reconciliation diff.
func IDListQuery(offset, limit int) string {
	var b strings.Builder
	b.WriteString("SELECT DISTINCT ?item WHERE {\n")
	b.WriteString(monumentFilter())
	b.WriteString("}\nORDER BY ?item\n")
	fmt.Fprintf(&b, "LIMIT %d OFFSET %d\n", limit, offset)
	return b.String()
}

// hierarchyQuery retrieves the administrative containment chain at
// exactly three nesting levels with localized labels.
func hierarchyQuery(qid string) string {
	p := propAdminTerritory
	return fmt.Sprintf(`SELECT ?level ?place ?placeLabel WHERE {
  { wd:%[1]s wdt:%[2]s ?place . BIND(1 AS ?level) }
  UNION { wd:%[1]s wdt:%[2]s/wdt:%[2]s ?place . BIND(2 AS ?level) }
  UNION { wd:%[1]s wdt:%[2]s/wdt:%[2]s/wdt:%[2]s ?place . BIND(3 AS ?level) }
  SERVICE wikibase:label { bd:serviceParam wikibase:language "tr,en". }
}
ORDER BY ?level
`, qid, p)
}
