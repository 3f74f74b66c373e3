package core

import "strings"

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// CleanOrdering drops the orderings on fields that are not allowed.
// Orderings end up in raw SQL, so never skip this for user input.
func CleanOrdering(ordering []DBOrdering, allowed ...string) []DBOrdering {
	if len(ordering) == 0 {
		return nil
	}
	cleaned := make([]DBOrdering, 0, len(ordering))
	for _, ord := range ordering {
		field := strings.ToLower(strings.TrimSpace(ord.Field))
		for _, a := range allowed {
			if field == a {
				cleaned = append(cleaned, DBOrdering{Field: field, Ascending: ord.Ascending})
				break
			}
		}
	}
	return cleaned
}
