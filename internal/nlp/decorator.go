package nlp

import (
	"regexp"
)

// Token feature names and values written by MimicTokenDecorator.
const (
	FeatureMimic = "mimic"
	FeatureOnto  = "onto"

	MaskFeature      = "mask"
	SeparatorFeature = "separator"

	// UnknownEntity is the norm of a mask token whose label matches no entity.
	UnknownEntity = "<UNKNOWN>"
)

var (
	maskRegex      = regexp.MustCompile(`\[\*\*([^\*]+)\*\*\]`)
	separatorRegex = regexp.MustCompile(`(_{5,}|[*]{5,}|[-]{5,})`)
)

// TokenEntity maps the label inside a mask token to an entity name and an
// optional OntoNotes label.
type TokenEntity struct {
	Pattern *regexp.Regexp
	Entity  string
	Onto    string
}

// TokenReplacement rewrites the norm of an unannotated token.
type TokenReplacement struct {
	Pattern     *regexp.Regexp
	Replacement string
}

func DefaultTokenEntities() []TokenEntity {
	return []TokenEntity{
		{Pattern: regexp.MustCompile(`^First Name`), Entity: "FIRSTNAME", Onto: "PERSON"},
		{Pattern: regexp.MustCompile(`^Last Name`), Entity: "LASTNAME", Onto: "PERSON"},
		{Pattern: regexp.MustCompile(`^21\d{2}-\d{1,2}-\d{1,2}$`), Entity: "DATE", Onto: "DATE"},
	}
}

// MimicTokenDecorator classifies tokens as masks or separators and rewrites
// their norms. Patterns are tried mask first, then separator, and only a
// match at the start of the norm counts. The first matching entity or
// replacement wins.
type MimicTokenDecorator struct {
	entities     []TokenEntity
	replacements []TokenReplacement
	onto         map[string]string
}

// NewMimicTokenDecorator returns a decorator using entities, or the default
// entities when nil.
func NewMimicTokenDecorator(entities []TokenEntity, replacements []TokenReplacement) *MimicTokenDecorator {
	if entities == nil {
		entities = DefaultTokenEntities()
	}
	onto := make(map[string]string, len(entities))
	for _, e := range entities {
		if e.Onto != "" {
			onto[e.Entity] = e.Onto
		}
	}
	return &MimicTokenDecorator{entities: entities, replacements: replacements, onto: onto}
}

func (d *MimicTokenDecorator) Decorate(tok *Token) {
	onto := NoneValue
	if m := matchStart(maskRegex, tok.Norm); m != nil {
		tok.SetFeature(FeatureMimic, MaskFeature)
		tok.Norm = UnknownEntity
		label := m[1]
		for _, e := range d.entities {
			if matchStart(e.Pattern, label) != nil {
				if o, ok := d.onto[e.Entity]; ok {
					onto = o
				}
				tok.Norm = e.Entity
				break
			}
		}
	} else if matchStart(separatorRegex, tok.Norm) != nil {
		tok.SetFeature(FeatureMimic, SeparatorFeature)
	} else {
		tok.SetFeature(FeatureMimic, NoneValue)
		for _, r := range d.replacements {
			if matchStart(r.Pattern, tok.Norm) != nil {
				tok.Norm = r.Replacement
				break
			}
		}
	}
	tok.SetFeature(FeatureOnto, onto)
}

// matchStart returns the submatches of re when it matches at the start of s.
func matchStart(re *regexp.Regexp, s string) []string {
	loc := re.FindStringSubmatchIndex(s)
	if loc == nil || loc[0] != 0 {
		return nil
	}
	subs := make([]string, len(loc)/2)
	for i := range subs {
		if loc[2*i] >= 0 {
			subs[i] = s[loc[2*i]:loc[2*i+1]]
		}
	}
	return subs
}
