package model

import "sort"

// Per-category caps on aggregated label arrays. These bound the payload size
// handed to downstream consumers (search indexing, UI chips).
const (
	MaxScenes  = 15
	MaxObjects = 20
	MaxStyle   = 10
	MaxMood    = 10
	MaxThemes  = 10
)

// LabelSet is the shared label shape, used both per-frame and as the
// aggregated parent-level set.
type LabelSet struct {
	Scenes           []string             `json:"scenes"`
	Objects          []string             `json:"objects"`
	Style            []string             `json:"style"`
	Mood             []string             `json:"mood"`
	Themes           []string             `json:"themes"`
	ConfidenceScores map[string][]float64 `json:"confidenceScores,omitempty"`
}

// IsEmpty reports whether the set carries no labels at all.
func (ls *LabelSet) IsEmpty() bool {
	if ls == nil {
		return true
	}
	return len(ls.Scenes) == 0 && len(ls.Objects) == 0 &&
		len(ls.Style) == 0 && len(ls.Mood) == 0 && len(ls.Themes) == 0
}

// AggregateLabelSets merges per-frame label sets into one parent-level set.
// Each category is deduplicated, sorted, and truncated to its cap. Sorting
// makes the result independent of the order in which frames completed, so
// re-running aggregation over the same frames yields an identical set.
func AggregateLabelSets(sets []*LabelSet) *LabelSet {
	agg := &LabelSet{
		Scenes:  []string{},
		Objects: []string{},
		Style:   []string{},
		Mood:    []string{},
		Themes:  []string{},
	}

	for _, ls := range sets {
		if ls == nil {
			continue
		}
		agg.Scenes = append(agg.Scenes, ls.Scenes...)
		agg.Objects = append(agg.Objects, ls.Objects...)
		agg.Style = append(agg.Style, ls.Style...)
		agg.Mood = append(agg.Mood, ls.Mood...)
		agg.Themes = append(agg.Themes, ls.Themes...)

		for category, scores := range ls.ConfidenceScores {
			if agg.ConfidenceScores == nil {
				agg.ConfidenceScores = make(map[string][]float64)
			}
			agg.ConfidenceScores[category] = append(agg.ConfidenceScores[category], scores...)
		}
	}

	agg.Scenes = dedupeCapped(agg.Scenes, MaxScenes)
	agg.Objects = dedupeCapped(agg.Objects, MaxObjects)
	agg.Style = dedupeCapped(agg.Style, MaxStyle)
	agg.Mood = dedupeCapped(agg.Mood, MaxMood)
	agg.Themes = dedupeCapped(agg.Themes, MaxThemes)

	for category, scores := range agg.ConfidenceScores {
		sort.Float64s(scores)
		if len(scores) > MaxObjects {
			scores = scores[:MaxObjects]
		}
		agg.ConfidenceScores[category] = scores
	}

	return agg
}

func dedupeCapped(values []string, limit int) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
