package detect

import (
	"sort"
	"strings"

	"github.com/relgraph/relgraph-engine/pkg/config"
	"github.com/relgraph/relgraph-engine/pkg/models"
)

// Corroborated is a merged candidate carrying the union of the methods
// that independently proposed the same relationship.
type Corroborated struct {
	models.Candidate
	Methods []models.DiscoveryMethod
}

// Corroborate merges candidates that share the identity tuple across
// detectors. The final score is the strongest raw signal plus a bonus
// per additional agreeing method, capped at 1.0, so agreement is
// rewarded without inflating certainty. Output order is deterministic.
func Corroborate(cands []models.Candidate, cfg config.DetectionConfig) []Corroborated {
	byKey := make(map[string]*Corroborated)
	var keys []string

	for _, c := range cands {
		key := c.Key()
		group, ok := byKey[key]
		if !ok {
			merged := &Corroborated{Candidate: c, Methods: []models.DiscoveryMethod{c.Method}}
			byKey[key] = merged
			keys = append(keys, key)
			continue
		}

		if c.RawScore > group.RawScore {
			group.RawScore = c.RawScore
		}
		if !hasMethod(group.Methods, c.Method) {
			group.Methods = append(group.Methods, c.Method)
		}
		if c.Reason != "" {
			if group.Reason == "" {
				group.Reason = c.Reason
			} else {
				group.Reason = group.Reason + "; " + c.Reason
			}
		}
	}

	sort.Strings(keys)
	out := make([]Corroborated, 0, len(keys))
	for _, key := range keys {
		group := byKey[key]
		sort.Slice(group.Methods, func(i, j int) bool {
			return strings.Compare(string(group.Methods[i]), string(group.Methods[j])) < 0
		})

		bonus := cfg.CorroborationBonus * float64(len(group.Methods)-1)
		score := group.RawScore + bonus
		if score > 1.0 {
			score = 1.0
		}
		group.RawScore = score

		if len(group.Methods) > 1 {
			group.Method = models.DiscoveryMethodCorroborated
		} else {
			group.Method = group.Methods[0]
		}
		out = append(out, *group)
	}
	return out
}

func hasMethod(methods []models.DiscoveryMethod, m models.DiscoveryMethod) bool {
	for _, v := range methods {
		if v == m {
			return true
		}
	}
	return false
}
