package stages

import "clipmill/internal/manifest"

// CompletedUnits returns, in manifest order, the group keys whose every
// output name appears in present.
func CompletedUnits(units []manifest.WorkUnit, present []string) []string {
	have := make(map[string]struct{}, len(present))
	for _, name := range present {
		have[name] = struct{}{}
	}
	var keys []string
	for _, unit := range units {
		if len(unit.SubItems) == 0 {
			continue
		}
		complete := true
		for _, item := range unit.SubItems {
			if _, ok := have[item.OutputName]; !ok {
				complete = false
				break
			}
		}
		if complete {
			keys = append(keys, unit.GroupKey)
		}
	}
	return keys
}
