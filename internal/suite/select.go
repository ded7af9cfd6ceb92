package suite

import "strings"

// Filter narrows a loaded suite to the tests a run should execute.
type Filter struct {
	// Subset lists test names in the order they should run. Empty means all.
	Subset []string

	// OnlyGroup keeps tests of this group only.
	OnlyGroup string

	// ExcludeGroup drops tests of this group.
	ExcludeGroup string
}

// SplitSubset parses a comma-separated list of names, dropping empty items.
func SplitSubset(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Select applies f to all. The subset is applied first, then ExcludeGroup,
// then OnlyGroup.
func Select(all []Test, f Filter) ([]Test, error) {
	active := all
	if len(f.Subset) > 0 {
		byName := make(map[string]Test, len(all))
		for _, t := range all {
			byName[t.Name] = t
		}
		picked := make(map[string]bool, len(f.Subset))
		active = make([]Test, 0, len(f.Subset))
		for _, name := range f.Subset {
			t, ok := byName[name]
			if !ok {
				return nil, &SelectionError{Name: name}
			}
			if picked[name] {
				continue
			}
			picked[name] = true
			active = append(active, t)
		}
	}

	if f.ExcludeGroup != "" {
		active = keep(active, func(t Test) bool { return t.Group != f.ExcludeGroup })
	}
	if f.OnlyGroup != "" {
		active = keep(active, func(t Test) bool { return t.Group == f.OnlyGroup })
	}
	return active, nil
}

func keep(tests []Test, pred func(Test) bool) []Test {
	out := make([]Test, 0, len(tests))
	for _, t := range tests {
		if pred(t) {
			out = append(out, t)
		}
	}
	return out
}
