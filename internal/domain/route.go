package domain

import (
	"fmt"
	"sort"
	"strings"
)

// PickingRoute is the walking order through a batch's distinct locations.
// It is a derived view and never persisted.
type PickingRoute struct {
	OrderedLocations []string `json:"orderedLocations"`
	TotalDistance    int      `json:"totalDistance"`
}

// DistinctLocations returns the location codes referenced by items in first-encounter order
func DistinctLocations(items []PickingItem) []string {
	seen := make(map[string]struct{}, len(items))
	locations := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.LocationCode]; ok {
			continue
		}
		seen[item.LocationCode] = struct{}{}
		locations = append(locations, item.LocationCode)
	}
	return locations
}

// OptimizeRoute sequences the batch's distinct locations with a nearest-neighbour walk
// starting at the first location encountered. A malformed location code fails the
// whole route.
func OptimizeRoute(batch *PickingBatch) (PickingRoute, error) {
	return OptimizeLocations(DistinctLocations(batch.Items))
}

// DistinctLocationCodes trims codes and drops blanks and repeats, keeping first-encounter order
func DistinctLocationCodes(codes []string) []string {
	seen := make(map[string]struct{}, len(codes))
	distinct := make([]string, 0, len(codes))
	for _, code := range codes {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		distinct = append(distinct, code)
	}
	return distinct
}

// OptimizeLocations sequences distinct location codes. Ties on distance go to the
// candidate that appears first in locations.
func OptimizeLocations(locations []string) (PickingRoute, error) {
	coords := make([]Coordinates, len(locations))
	for i, code := range locations {
		c, err := ParseLocation(code)
		if err != nil {
			return PickingRoute{}, fmt.Errorf("optimize route: %w", err)
		}
		coords[i] = c
	}

	if len(locations) <= 1 {
		return PickingRoute{OrderedLocations: append([]string{}, locations...), TotalDistance: 0}, nil
	}

	visited := make([]bool, len(locations))
	path := make([]string, 0, len(locations))
	total := 0

	current := 0
	visited[current] = true
	path = append(path, locations[current])

	for len(path) < len(locations) {
		next, best := -1, 0
		for j := range locations {
			if visited[j] {
				continue
			}
			d := coords[current].DistanceTo(coords[j])
			if next < 0 || d < best {
				next, best = j, d
			}
		}

		visited[next] = true
		path = append(path, locations[next])
		total += best
		current = next
	}

	return PickingRoute{OrderedLocations: path, TotalDistance: total}, nil
}

// PathDistance sums the distance over consecutive locations of a path
func PathDistance(path []string) (int, error) {
	total := 0
	for i := 1; i < len(path); i++ {
		d, err := Distance(path[i-1], path[i])
		if err != nil {
			return 0, err
		}
		total += d
	}
	return total, nil
}

// ReorderItems returns the batch items sorted by their location's position in the route.
// Items sharing a location keep their relative order; quantities are untouched.
func ReorderItems(batch *PickingBatch, route PickingRoute) []PickingItem {
	position := make(map[string]int, len(route.OrderedLocations))
	for i, code := range route.OrderedLocations {
		if _, ok := position[code]; !ok {
			position[code] = i
		}
	}

	rank := func(item PickingItem) int {
		if p, ok := position[item.LocationCode]; ok {
			return p
		}
		return len(route.OrderedLocations)
	}

	items := make([]PickingItem, len(batch.Items))
	copy(items, batch.Items)
	sort.SliceStable(items, func(i, j int) bool {
		return rank(items[i]) < rank(items[j])
	})
	return items
}
