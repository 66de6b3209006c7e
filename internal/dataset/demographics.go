// Package dataset orchestrates the full generation pipeline: reference data
// preparation, point sampling, proportion aggregation, and the demographic
// join, with per-point checkpointing through the store.
package dataset

import (
	"sort"

	"github.com/stephenschott/affluence-cli/internal/model"
	"github.com/stephenschott/affluence-cli/internal/spatial"
)

// BuildDemographics builds the per-region reference table. Regions come from
// both sides: every region appearing in the located business records and
// every region in the external figures table. A region with figures but no
// businesses gets an all-zero tier proportion map (measured absence, not
// missing data); a region with businesses but no figures keeps Figures nil so
// the join can surface the mismatch.
func BuildDemographics(records []model.BusinessRecord, figures map[string]model.DemographicFigures, tiers []int) map[string]*model.RegionDemographics {
	byRegion := make(map[string][]model.BusinessRecord)
	for _, r := range records {
		if r.Region == "" {
			continue
		}
		byRegion[r.Region] = append(byRegion[r.Region], r)
	}

	names := make(map[string]bool, len(byRegion)+len(figures))
	for name := range byRegion {
		names[name] = true
	}
	for name := range figures {
		names[name] = true
	}

	table := make(map[string]*model.RegionDemographics, len(names))
	for name := range names {
		proportions := make(map[int]float64, len(tiers))
		for _, tier := range tiers {
			proportions[tier] = spatial.Proportion(byRegion[name], tier)
		}

		entry := &model.RegionDemographics{
			Region:         name,
			TierProportion: proportions,
		}
		if f, ok := figures[name]; ok {
			fc := f
			entry.Figures = &fc
		}
		table[name] = entry
	}
	return table
}

// RegionNames returns the table's region names sorted for stable output.
func RegionNames(table map[string]*model.RegionDemographics) []string {
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
