package wizard

// Age thresholds for the relationship hint shown on the new-member form.
// The hint is advisory; the user can always pick something else.
const (
	ParentMinAge  = 50
	SiblingMinAge = 20
)

// Relationships offered by the new-member and link forms.
var Relationships = []string{
	"father", "mother", "spouse", "son", "daughter",
	"brother", "sister", "grandparent", "other",
}

// SuggestRelationship guesses a relationship from age and gender. It returns
// an empty string when there is nothing sensible to suggest.
func SuggestRelationship(age int, gender string) string {
	g, ok := NormalizeGender(gender)
	if !ok || g == "other" || age <= 0 {
		return ""
	}
	male := g == "male"
	switch {
	case age >= ParentMinAge:
		if male {
			return "father"
		}
		return "mother"
	case age >= SiblingMinAge:
		if male {
			return "brother"
		}
		return "sister"
	default:
		if male {
			return "son"
		}
		return "daughter"
	}
}

// ValidRelationship reports whether r is one of Relationships.
func ValidRelationship(r string) bool {
	for _, known := range Relationships {
		if known == r {
			return true
		}
	}
	return false
}
