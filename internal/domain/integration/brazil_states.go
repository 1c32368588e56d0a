package integration

import (
	"sort"
	"strings"
)

// brazilStates maps each Brazilian federative unit code to the normalized
// spellings that may appear in a state field.
var brazilStates = map[string][]string{
	"AC": {"ac", "acre"},
	"AL": {"al", "alagoas"},
	"AP": {"ap", "amapa"},
	"AM": {"am", "amazonas"},
	"BA": {"ba", "bahia"},
	"CE": {"ce", "ceara"},
	"DF": {"df", "distrito federal"},
	"ES": {"es", "espirito santo"},
	"GO": {"go", "goias"},
	"MA": {"ma", "maranhao"},
	"MT": {"mt", "mato grosso"},
	"MS": {"ms", "mato grosso do sul"},
	"MG": {"mg", "minas gerais"},
	"PA": {"pa", "para"},
	"PB": {"pb", "paraiba"},
	"PR": {"pr", "parana"},
	"PE": {"pe", "pernambuco"},
	"PI": {"pi", "piaui"},
	"RJ": {"rj", "rio de janeiro"},
	"RN": {"rn", "rio grande do norte"},
	"RS": {"rs", "rio grande do sul"},
	"RO": {"ro", "rondonia"},
	"RR": {"rr", "roraima"},
	"SC": {"sc", "santa catarina"},
	"SP": {"sp", "sao paulo"},
	"SE": {"se", "sergipe"},
	"TO": {"to", "tocantins"},
}

var stateNormToUF = func() map[string]string {
	m := make(map[string]string, len(brazilStates)*2)
	for uf, names := range brazilStates {
		for _, n := range names {
			m[n] = uf
		}
	}
	return m
}()

// StateToUF resolves a raw or normalized state value to its UF code. Any
// two-letter value is taken as a code.
func StateToUF(state string) (string, bool) {
	s := NormalizeText(state)
	if len(s) == 2 {
		return strings.ToUpper(s), true
	}
	uf, ok := stateNormToUF[s]
	return uf, ok
}

// StateNormsForUF returns the normalized state spellings accepted for a UF,
// or nil for an unknown code.
func StateNormsForUF(uf string) []string {
	names := brazilStates[strings.ToUpper(strings.TrimSpace(uf))]
	if names == nil {
		return nil
	}
	out := make([]string, len(names))
	copy(out, names)
	return out
}

// BrazilUFs returns all UF codes in alphabetical order
func BrazilUFs() []string {
	out := make([]string, 0, len(brazilStates))
	for uf := range brazilStates {
		out = append(out, uf)
	}
	sort.Strings(out)
	return out
}
