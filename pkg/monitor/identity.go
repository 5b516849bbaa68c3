package monitor

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/minerwatch/minerwatch/pkg/database"
	"github.com/minerwatch/minerwatch/pkg/pool"
)

// unknownName replaces blank or missing worker names so they still group.
const unknownName = "Unknown"

// ResolveIdentities maps each raw worker report to a stable internal ID.
//
// Reports are grouped by raw name in response order. Within a group,
// previously assigned IDs for that name are handed out in first-seen order;
// members beyond the previously known count get freshly minted suffixed IDs
// (name_2, name_3, ...) continuing the existing numbering. A name observed
// once, with no prior duplicates, keeps the bare name as its ID. The result
// is parallel to reports and deterministic for a given persisted history:
// IDs are never reassigned or reused across different physical reports.
func ResolveIdentities(reports []pool.WorkerReport, known []*database.Worker) []string {
	// Prior assignments per raw name, in first-seen order. The known slice
	// is expected already ordered by first_seen (Store.ListWorkers).
	knownByName := make(map[string][]string)
	taken := make(map[string]bool, len(known))
	for _, w := range known {
		knownByName[w.APIName] = append(knownByName[w.APIName], w.ID)
		taken[w.ID] = true
	}

	// Group report indexes by sanitized name, preserving response order.
	groups := make(map[string][]int)
	var nameOrder []string
	for i, r := range reports {
		name := sanitizeName(r.Name)
		if _, seen := groups[name]; !seen {
			nameOrder = append(nameOrder, name)
		}
		groups[name] = append(groups[name], i)
	}

	ids := make([]string, len(reports))
	for _, name := range nameOrder {
		members := groups[name]
		existing := knownByName[name]

		for pos, reportIdx := range members {
			if pos < len(existing) {
				ids[reportIdx] = existing[pos]
				continue
			}
			// Surplus member: the first-ever observation of a name keeps
			// the bare name, everything after gets the next free suffix.
			if pos == 0 && !taken[name] {
				ids[reportIdx] = name
				existing = append(existing, name)
				taken[name] = true
				continue
			}
			id := mintSuffixedID(name, existing, taken)
			ids[reportIdx] = id
			existing = append(existing, id)
			taken[id] = true
		}
	}
	return ids
}

// mintSuffixedID returns name_N where N continues the numbering already
// present in assigned (the bare name counts as 1). IDs colliding with a
// worker of a different raw name are skipped, never reused.
func mintSuffixedID(name string, assigned []string, taken map[string]bool) string {
	maxSuffix := 0
	for _, id := range assigned {
		maxSuffix = max(maxSuffix, suffixOf(name, id))
	}
	if len(assigned) == 0 {
		// The name itself is position 1 even before it is persisted.
		maxSuffix = 1
	}
	for n := maxSuffix + 1; ; n++ {
		id := fmt.Sprintf("%s_%d", name, n)
		if !taken[id] {
			return id
		}
	}
}

func suffixOf(name, id string) int {
	if id == name {
		return 1
	}
	rest, ok := strings.CutPrefix(id, name+"_")
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(rest)
	if err != nil {
		return 0
	}
	return n
}
