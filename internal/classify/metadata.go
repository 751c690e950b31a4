package classify

import "github.com/krjackso/gw2-data-repo/internal/acquisition"

// legalMetadata lists the metadata fields each kind may carry. Fields the
// extractor emitted that are not legal for the assigned kind are dropped
// during classification, never passed through.
var legalMetadata = map[acquisition.Kind]map[string]bool{
	acquisition.KindCrafting: {
		"recipeType":  true,
		"disciplines": true,
		"minRating":   true,
		"recipeSheet": true,
	},
	acquisition.KindMysticForge: {
		"recipeType": true,
	},
	acquisition.KindVendor: {
		"vendorLocation": true,
		"limitType":      true,
		"limitAmount":    true,
		"notes":          true,
	},
	acquisition.KindContainer: {
		"guaranteed": true,
		"choice":     true,
		"notes":      true,
	},
	acquisition.KindSalvage: {
		"guaranteed": true,
	},
	acquisition.KindResourceNode: {
		"guaranteed": true,
		"notes":      true,
	},
	acquisition.KindAchievement: {
		"achievementCategory": true,
		"repeatable":          true,
		"timeGated":           true,
		"notes":               true,
	},
	acquisition.KindWvWReward: {
		"notes": true,
	},
	acquisition.KindPvPReward: {
		"notes": true,
	},
	acquisition.KindMapReward: {
		"rewardType": true,
		"regionName": true,
		"notes":      true,
	},
	acquisition.KindWizardsVault: {
		"limitAmount": true,
		"seasonal":    true,
		"notes":       true,
	},
	acquisition.KindOther: {
		"notes": true,
	},
}

// filterMetadata keeps only fields legal for the kind. A nil map in means a
// nil map out.
func filterMetadata(kind acquisition.Kind, in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	legal := legalMetadata[kind]
	var out map[string]any
	for k, v := range in {
		if !legal[k] {
			continue
		}
		if out == nil {
			out = make(map[string]any, len(in))
		}
		out[k] = v
	}
	return out
}
