package template

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cwbudde/snid-go/internal/snidtypes"
)

func sampleTemplates() []*snidtypes.Template {
	return []*snidtypes.Template{
		{Name: "sn1994D", Type: "Ia", Subtype: "norm", AgeDays: 0},
		{Name: "sn1991T", Type: "Ia", Subtype: "91T-like", AgeDays: 5},
		{Name: "sn1993J", Type: "IIb", Subtype: "norm", AgeDays: 10},
		{Name: "sn1999em", Type: "II", Subtype: "P", AgeDays: -5},
	}
}

func TestFilterTypeWhitelist(t *testing.T) {
	s := NewMemoryStore(sampleTemplates())
	out := s.Apply(Filter{TypeWhitelist: []string{"Ia"}})
	assert.Len(t, out, 2)
	for _, tpl := range out {
		assert.Equal(t, "Ia", tpl.Type)
	}
}

func TestFilterNameBlacklist(t *testing.T) {
	s := NewMemoryStore(sampleTemplates())
	out := s.Apply(Filter{NameBlacklist: []string{"sn1994D"}})
	assert.Len(t, out, 3)
	for _, tpl := range out {
		assert.NotEqual(t, "sn1994D", tpl.Name)
	}
}

func TestFilterAgeRange(t *testing.T) {
	s := NewMemoryStore(sampleTemplates())
	out := s.Apply(Filter{Age: AgeRange{Set: true, Min: 0, Max: 6}})
	assert.Len(t, out, 2)
}

func TestFilterEmptyMeansUnrestricted(t *testing.T) {
	s := NewMemoryStore(sampleTemplates())
	out := s.Apply(Filter{})
	assert.Len(t, out, 4)
}

func TestFilterDeterministicOrder(t *testing.T) {
	s := NewMemoryStore(sampleTemplates())
	out := s.Apply(Filter{})
	var types []string
	for _, tpl := range out {
		types = append(types, tpl.Type)
	}
	// Store applies stable type->subtype->age ordering only via Open's sort;
	// NewMemoryStore preserves insertion order, so this just asserts Apply
	// itself does not reorder its input.
	assert.Equal(t, []string{"Ia", "Ia", "IIb", "II"}, types)
}
