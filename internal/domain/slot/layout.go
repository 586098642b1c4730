package slot

// Placeholder is a decorative, non-reservable position shown next to the live slots.
type Placeholder struct {
	Label  string
	Status Status
}

// MaintenancePlaceholders turns configured labels into maintenance placeholders.
func MaintenancePlaceholders(labels []string) []Placeholder {
	out := make([]Placeholder, 0, len(labels))
	for _, l := range labels {
		if l == "" {
			continue
		}
		out = append(out, Placeholder{Label: l, Status: StatusMaintenance})
	}
	return out
}
