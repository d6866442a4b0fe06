package candidates

import "strings"

// synonyms maps alternate spellings to a canonical equipment name
var synonyms = map[string]string{
	"dumbbells":           "dumbbell",
	"db":                  "dumbbell",
	"dbs":                 "dumbbell",
	"kettlebells":         "kettlebell",
	"kb":                  "kettlebell",
	"barbells":            "barbell",
	"bb":                  "barbell",
	"pull up bar":         "pullup bar",
	"chin up bar":         "pullup bar",
	"chinup bar":          "pullup bar",
	"bands":               "band",
	"resistance band":     "band",
	"resistance bands":    "band",
	"mini band":           "band",
	"cable machine":       "cable",
	"cables":              "cable",
	"cable station":       "cable",
	"suspension trainer":  "trx",
	"rings":               "trx",
	"medicine ball":       "medball",
	"med ball":            "medball",
	"rower":               "row erg",
	"rowing machine":      "row erg",
	"bike":                "assault bike",
	"air bike":            "assault bike",
	"flat bench":          "bench",
	"adjustable bench":    "bench",
	"squat rack":          "rack",
	"power rack":          "rack",
	"plyo box":            "box",
	"stationary machines": "machine",
	"machines":            "machine",
}

var bodyweightTags = map[string]bool{
	"":             true,
	"none":         true,
	"bodyweight":   true,
	"body weight":  true,
	"no equipment": true,
}

func canonicalEquipment(s string) string {
	n := normalize(s)
	if c, ok := synonyms[n]; ok {
		return c
	}
	return n
}

// isBodyweight reports whether an exercise needs no equipment
func isBodyweight(equipment string) bool {
	return bodyweightTags[normalize(equipment)]
}

// equipmentSet holds the caller's allowed equipment in canonical form
type equipmentSet []string

func newEquipmentSet(allowed []string) equipmentSet {
	set := make(equipmentSet, 0, len(allowed))
	seen := make(map[string]bool, len(allowed))
	for _, a := range allowed {
		c := canonicalEquipment(a)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		set = append(set, c)
	}
	return set
}

// allows reports whether required equipment overlaps the set by exact,
// substring or synonym match. Multi-item requirements ("barbell, rack")
// match when any listed item is available.
func (s equipmentSet) allows(required string) bool {
	for _, part := range strings.FieldsFunc(required, func(r rune) bool { return r == ',' || r == '/' || r == '+' }) {
		need := canonicalEquipment(part)
		if need == "" {
			continue
		}
		for _, have := range s {
			if have == need || strings.Contains(have, need) || strings.Contains(need, have) {
				return true
			}
		}
	}
	return false
}
