package template

import "github.com/cwbudde/snid-go/internal/snidtypes"

// AgeRange is an inclusive [Min, Max] day range, applied only when Set is
// true. The zero value (Set false) means "unbounded".
type AgeRange struct {
	Min, Max float64
	Set      bool
}

// Filter selects the admissible subset of a Store's templates, per spec.md
// §4.3. Nil/empty whitelist slices mean "no restriction"; blacklist always
// applies.
type Filter struct {
	TypeWhitelist     []string
	NameWhitelist     []string
	NameBlacklist     []string
	SubtypeWhitelist  []string
	Age               AgeRange
}

// Apply returns the templates matching f, in the Store's stable
// type->subtype->age order.
func (s *Store) Apply(f Filter) []*snidtypes.Template {
	typeSet := toSet(f.TypeWhitelist)
	nameSet := toSet(f.NameWhitelist)
	blackSet := toSet(f.NameBlacklist)
	subtypeSet := toSet(f.SubtypeWhitelist)

	out := make([]*snidtypes.Template, 0, len(s.templates))
	for _, t := range s.templates {
		if len(typeSet) > 0 && !typeSet[t.Type] {
			continue
		}
		if len(nameSet) > 0 && !nameSet[t.Name] {
			continue
		}
		if blackSet[t.Name] {
			continue
		}
		if len(subtypeSet) > 0 && !subtypeSet[t.Subtype] {
			continue
		}
		if f.Age.Set && (t.AgeDays < f.Age.Min || t.AgeDays > f.Age.Max) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func toSet(xs []string) map[string]bool {
	if len(xs) == 0 {
		return nil
	}
	m := make(map[string]bool, len(xs))
	for _, x := range xs {
		m[x] = true
	}
	return m
}
