package aggregate

import (
	"sort"
)

// Finding kinds recorded by the comparison step.
const (
	KindAdded   = "added"
	KindMissing = "missing"
)

// ConceptSpread lists the distinct clinical concepts reported for one
// (idx, prompt) pair across all its runs.
type ConceptSpread struct {
	Idx      int      `json:"idx"`
	Prompt   string   `json:"prompt"`
	Kind     string   `json:"kind"`
	Concepts []string `json:"concepts"`
}

// ConceptVariance groups comparison findings by (idx, prompt) and reports
// the groups whose runs name more than one distinct clinical concept, for
// added and missing findings separately. Concepts keep first-seen order.
func ConceptVariance(t Table) ([]ConceptSpread, error) {
	if err := t.require(ColIdx, ColPrompt); err != nil {
		return nil, err
	}
	var out []ConceptSpread
	for _, kind := range []string{KindAdded, KindMissing} {
		if !t.Has(kind) {
			continue
		}
		type group struct {
			idx      int
			prompt   string
			concepts []string
			seen     map[string]bool
		}
		groups := map[string]*group{}
		for _, row := range t.Rows {
			idx, _ := row.Int(ColIdx)
			prompt := row.String(ColPrompt)
			key := groupKey(Row{ColIdx: idx, ColPrompt: prompt}, []string{ColIdx, ColPrompt})
			g, ok := groups[key]
			if !ok {
				g = &group{idx: idx, prompt: prompt, seen: map[string]bool{}}
				groups[key] = g
			}
			findings, _ := row[kind].([]any)
			for _, f := range findings {
				m, ok := f.(map[string]any)
				if !ok {
					continue
				}
				c, _ := m["clinical_concept"].(string)
				if c == "" || g.seen[c] {
					continue
				}
				g.seen[c] = true
				g.concepts = append(g.concepts, c)
			}
		}
		for _, g := range groups {
			if len(g.concepts) > 1 {
				out = append(out, ConceptSpread{Idx: g.idx, Prompt: g.prompt, Kind: kind, Concepts: g.concepts})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		if out[i].Idx != out[j].Idx {
			return out[i].Idx < out[j].Idx
		}
		return out[i].Prompt < out[j].Prompt
	})
	return out, nil
}
