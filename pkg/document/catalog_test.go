package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogLookup(t *testing.T) {
	cat := Catalog{
		Mods: []Mod{{FullName: "mod.aws", ShortName: "aws"}},
		Dashboards: []Dashboard{
			{Name: "a", FullName: "aws.dashboard.a", IsTopLevel: true},
			{Name: "b", FullName: "aws.dashboard.b"},
		},
	}

	d, ok := cat.Lookup("aws.dashboard.b")
	require.True(t, ok)
	assert.Equal(t, "b", d.Name)

	_, ok = cat.Lookup("aws.dashboard.c")
	assert.False(t, ok)

	top := cat.TopLevel()
	require.Len(t, top, 1)
	assert.Equal(t, "aws.dashboard.a", top[0].FullName)
}
