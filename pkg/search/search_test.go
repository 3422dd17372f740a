package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakwood-commons/dashx/pkg/document"
)

func catalog() []document.Dashboard {
	return []document.Dashboard{
		{Name: "s3", Title: "S3 Buckets", FullName: "aws.dashboard.s3", ModFullName: "mod.aws", IsTopLevel: true,
			Tags: map[string]string{"service": "AWS/S3", "type": "Report"}},
		{Name: "ec2", Title: "EC2 Instances", FullName: "aws.dashboard.ec2", ModFullName: "mod.aws", IsTopLevel: true,
			Tags: map[string]string{"service": "AWS/EC2"}},
		{Name: "vm", Title: "Compute VMs", FullName: "gcp.dashboard.vm", ModFullName: "mod.gcp",
			Tags: map[string]string{"type": "Dashboard"}},
		{Name: "acm", Title: "acm certificates", FullName: "aws.dashboard.acm", ModFullName: "mod.aws", IsTopLevel: true},
	}
}

func names(ds []document.Dashboard) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.Name
	}
	return out
}

func TestNewGroupBy(t *testing.T) {
	g, err := NewGroupBy(ModeMod, "ignored")
	require.NoError(t, err)
	assert.Equal(t, GroupBy{Mode: ModeMod}, g)

	g, err = NewGroupBy(ModeTag, " service ")
	require.NoError(t, err)
	assert.Equal(t, GroupBy{Mode: ModeTag, Tag: "service"}, g)

	_, err = NewGroupBy(ModeTag, "")
	assert.ErrorIs(t, err, ErrInvalidGroupBy)
	_, err = NewGroupBy("owner", "x")
	assert.ErrorIs(t, err, ErrInvalidGroupBy)
}

func TestMatches(t *testing.T) {
	d := catalog()[0]
	tests := []struct {
		value string
		want  bool
	}{
		{"", true},
		{"bucket", true},
		{"aws/s3", true},
		{"REPORT", true},
		{"ec2", false},
		{"s3.dashboard", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Matches(d, tt.value), tt.value)
	}
}

func TestFilterWithWhere(t *testing.T) {
	got, err := Filter(catalog(), State{Value: "aws"}, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"s3", "ec2"}, names(got))

	got, err = Filter(catalog(), DefaultState(), Options{Where: `_.is_top_level && !has(_.tags.service)`})
	require.NoError(t, err)
	assert.Equal(t, []string{"acm"}, names(got))

	_, err = Filter(catalog(), DefaultState(), Options{Where: "_.title"})
	assert.Error(t, err)
}

func TestGroupByMod(t *testing.T) {
	mods := []document.Mod{{FullName: "mod.aws", ShortName: "aws", Title: "AWS Insights"}}
	groups, err := GroupDashboards(catalog(), mods, DefaultState(), Options{})
	require.NoError(t, err)
	require.Len(t, groups, 2)

	assert.Equal(t, "mod.aws", groups[0].Key)
	assert.Equal(t, "AWS Insights", groups[0].Label)
	assert.Equal(t, []string{"acm", "ec2", "s3"}, names(groups[0].Dashboards))
	assert.Equal(t, "mod.gcp", groups[1].Label)
}

func TestGroupByTagUngroupedLast(t *testing.T) {
	state := State{GroupBy: GroupBy{Mode: ModeTag, Tag: "service"}}
	groups, err := GroupDashboards(catalog(), nil, state, Options{})
	require.NoError(t, err)
	require.Len(t, groups, 3)

	assert.Equal(t, "AWS/EC2", groups[0].Key)
	assert.Equal(t, "AWS/S3", groups[1].Key)
	assert.True(t, groups[2].Ungrouped())
	assert.Equal(t, UngroupedLabel, groups[2].Label)
	assert.Equal(t, []string{"acm", "vm"}, names(groups[2].Dashboards))
}

func TestGroupByMissingTagKeepsEveryDashboard(t *testing.T) {
	state := State{GroupBy: GroupBy{Mode: ModeTag, Tag: "mod"}}
	groups, err := GroupDashboards(catalog(), nil, state, Options{})
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.True(t, groups[0].Ungrouped())
	assert.Len(t, groups[0].Dashboards, len(catalog()))
}

func TestGroupingIsIdempotent(t *testing.T) {
	state := State{Value: "a", GroupBy: GroupBy{Mode: ModeTag, Tag: "type"}}
	first, err := GroupDashboards(catalog(), nil, state, Options{})
	require.NoError(t, err)
	second, err := GroupDashboards(catalog(), nil, state, Options{})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestTagKeys(t *testing.T) {
	assert.Equal(t, []string{"service", "type"}, TagKeys(catalog()))
	assert.Empty(t, TagKeys(nil))
}
