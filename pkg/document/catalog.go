package document

import "slices"

// Catalog is the set of installed mods and the dashboards they provide.
type Catalog struct {
	Mods       []Mod       `yaml:"mods" json:"mods"`
	Dashboards []Dashboard `yaml:"dashboards" json:"dashboards"`
}

// Lookup finds a dashboard by full name.
func (c Catalog) Lookup(fullName string) (Dashboard, bool) {
	i := slices.IndexFunc(c.Dashboards, func(d Dashboard) bool { return d.FullName == fullName })
	if i < 0 {
		return Dashboard{}, false
	}
	return c.Dashboards[i], true
}

// TopLevel returns the dashboards flagged as top level, in catalog order.
func (c Catalog) TopLevel() []Dashboard {
	out := make([]Dashboard, 0, len(c.Dashboards))
	for _, d := range c.Dashboards {
		if d.IsTopLevel {
			out = append(out, d)
		}
	}
	return out
}
