package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakwood-commons/dashx/pkg/document"
	"github.com/oakwood-commons/dashx/pkg/search"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func fixtureModDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "mod.yaml"), "name: aws\ntitle: AWS Insights\n")
	writeFile(t, filepath.Join(dir, "dashboards", "overview.yaml"), `
title: Overview
tags:
  service: aws/ec2
children:
  - name: summary
    node_type: container
    children:
      - name: count
        node_type: card
        sql: q.count
  - name: by_region
    node_type: table
    sql: q.regions
data:
  q.count: 12
  q.regions:
    - region: us-east-1
      total: 7
    - region: eu-west-1
      total: 5
depends:
  region: [q.count]
`)
	writeFile(t, filepath.Join(dir, "dashboards", "notes.yaml"), `
title: Notes
tags:
  category: docs
children:
  - name: readme
    node_type: text
    properties:
      value: "# Hello"
`)
	return dir
}

// runCLI executes the command tree against the fixture mod and returns
// stdout.
func runCLI(t *testing.T, modDir string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	root := NewRootCommand()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append(args, "--mod-dir", modDir, "--no-color", "--width", "120"))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

type renderJSON struct {
	Dashboard  string            `json:"dashboard"`
	Mode       string            `json:"data_mode"`
	SnapshotID string            `json:"snapshot_id"`
	Inputs     map[string]string `json:"inputs"`
	Panels     []struct {
		Path   string `json:"path"`
		Type   string `json:"node_type"`
		Status string `json:"status"`
		Data   any    `json:"data"`
	} `json:"panels"`
}

func decodeRender(t *testing.T, out string) renderJSON {
	t.Helper()
	var res renderJSON
	require.NoError(t, json.Unmarshal([]byte(out), &res), out)
	return res
}

func TestListTable(t *testing.T) {
	out, err := runCLI(t, fixtureModDir(t), "list")
	require.NoError(t, err)
	assert.Contains(t, out, "AWS Insights (2)")
	assert.Contains(t, out, "aws.dashboard.overview")
	assert.Contains(t, out, "service=aws/ec2")
}

func TestRootWithoutArgsLists(t *testing.T) {
	out, err := runCLI(t, fixtureModDir(t))
	require.NoError(t, err)
	assert.Contains(t, out, "aws.dashboard.notes")
}

func TestListSearchJSON(t *testing.T) {
	out, err := runCLI(t, fixtureModDir(t), "list", "--search", "NOTES", "-o", "json")
	require.NoError(t, err)

	var groups []struct {
		Label      string `json:"label"`
		Dashboards []struct {
			FullName string `json:"full_name"`
		} `json:"dashboards"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &groups))
	require.Len(t, groups, 1)
	require.Len(t, groups[0].Dashboards, 1)
	assert.Equal(t, "aws.dashboard.notes", groups[0].Dashboards[0].FullName)
}

func TestListGroupByTag(t *testing.T) {
	dir := fixtureModDir(t)

	out, err := runCLI(t, dir, "list", "--group-by", "tag", "--tag", "service")
	require.NoError(t, err)
	assert.Contains(t, out, "aws/ec2 (1)")
	assert.Contains(t, out, search.UngroupedLabel+" (1)")

	_, err = runCLI(t, dir, "list", "--group-by", "tag")
	assert.ErrorIs(t, err, search.ErrInvalidGroupBy)
}

func TestListWhere(t *testing.T) {
	out, err := runCLI(t, fixtureModDir(t), "list", "--where", `"service" in _.tags`, "-o", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "aws.dashboard.overview")
	assert.NotContains(t, out, "aws.dashboard.notes")
}

func TestRenderJSON(t *testing.T) {
	out, err := runCLI(t, fixtureModDir(t), "render", "overview", "-o", "json")
	require.NoError(t, err)

	res := decodeRender(t, out)
	assert.Equal(t, "aws.dashboard.overview", res.Dashboard)
	assert.Equal(t, "live", res.Mode)
	require.Len(t, res.Panels, 4)
	assert.Equal(t, "summary.count", res.Panels[2].Path)
	assert.Equal(t, "ready", res.Panels[2].Status)
	assert.InDelta(t, 12, res.Panels[2].Data, 0)
}

func TestRenderPanelPath(t *testing.T) {
	out, err := runCLI(t, fixtureModDir(t), "render", "aws.dashboard.overview", "summary", "-o", "json")
	require.NoError(t, err)

	res := decodeRender(t, out)
	require.Len(t, res.Panels, 2)
	assert.Equal(t, "summary", res.Panels[0].Path)
	assert.Equal(t, "summary.count", res.Panels[1].Path)
}

func TestRenderInputInvalidatesDependents(t *testing.T) {
	out, err := runCLI(t, fixtureModDir(t), "render", "overview", "--input", "region=eu-west-1", "-o", "json")
	require.NoError(t, err)

	res := decodeRender(t, out)
	assert.Equal(t, map[string]string{"region": "eu-west-1"}, res.Inputs)
	for _, p := range res.Panels {
		switch p.Path {
		case "summary.count":
			assert.Equal(t, "pending", p.Status)
		case "by_region":
			assert.Equal(t, "ready", p.Status)
		}
	}
}

func TestRenderSelect(t *testing.T) {
	out, err := runCLI(t, fixtureModDir(t), "render", "overview", "--select", `_.node_type == "table"`, "-o", "json")
	require.NoError(t, err)

	res := decodeRender(t, out)
	require.Len(t, res.Panels, 1)
	assert.Equal(t, "by_region", res.Panels[0].Path)
}

func TestRenderRowWindow(t *testing.T) {
	dir := fixtureModDir(t)

	out, err := runCLI(t, dir, "render", "overview", "by_region", "--tail", "1", "-o", "json")
	require.NoError(t, err)
	res := decodeRender(t, out)
	require.Len(t, res.Panels, 1)
	assert.Equal(t, []any{map[string]any{"region": "eu-west-1", "total": 5.0}}, res.Panels[0].Data)

	_, err = runCLI(t, dir, "render", "overview", "--limit", "1", "--tail", "1")
	assert.ErrorContains(t, err, "mutually exclusive")
}

func TestRenderQuery(t *testing.T) {
	dir := fixtureModDir(t)

	out, err := runCLI(t, dir, "render", "overview", "by_region", "-q", "[1].region", "-o", "json")
	require.NoError(t, err)
	res := decodeRender(t, out)
	require.Len(t, res.Panels, 1)
	assert.Equal(t, "eu-west-1", res.Panels[0].Data)

	out, err = runCLI(t, dir, "render", "overview", "by_region", "-q", "_.filter(r, r.total > 6).map(r, r.region)", "-o", "json")
	require.NoError(t, err)
	assert.Equal(t, []any{"us-east-1"}, decodeRender(t, out).Panels[0].Data)

	_, err = runCLI(t, dir, "render", "overview", "by_region", "-q", "[7]")
	assert.ErrorContains(t, err, `panel "by_region"`)
}

func TestFlagsHaveUsage(t *testing.T) {
	var walk func(c *cobra.Command)
	walk = func(c *cobra.Command) {
		c.Flags().VisitAll(func(f *pflag.Flag) {
			assert.NotEmpty(t, f.Usage, "%s --%s", c.CommandPath(), f.Name)
		})
		for _, sub := range c.Commands() {
			walk(sub)
		}
	}
	walk(NewRootCommand())
}

func TestRenderTableAndTree(t *testing.T) {
	dir := fixtureModDir(t)

	out, err := runCLI(t, dir, "render", "overview")
	require.NoError(t, err)
	assert.Contains(t, out, "Overview")
	assert.Contains(t, out, "us-east-1")
	assert.Contains(t, out, "12")

	out, err = runCLI(t, dir, "render", "overview", "-o", "tree")
	require.NoError(t, err)
	assert.Contains(t, out, "count (card) [ready]")
	assert.Contains(t, out, "summary (container)")
}

func TestRenderTOML(t *testing.T) {
	out, err := runCLI(t, fixtureModDir(t), "render", "overview", "summary.count", "-o", "toml")
	require.NoError(t, err)
	assert.Contains(t, out, "dashboard = 'aws.dashboard.overview'")
}

func TestRenderHTML(t *testing.T) {
	out, err := runCLI(t, fixtureModDir(t), "render", "notes", "--html")
	require.NoError(t, err)
	assert.Contains(t, out, `<section data-path="readme" data-type="text">`)
	assert.Contains(t, out, "Hello</h1>")
}

func TestRenderErrors(t *testing.T) {
	dir := fixtureModDir(t)

	_, err := runCLI(t, dir, "render", "missing")
	assert.ErrorIs(t, err, document.ErrNotFound)

	_, err = runCLI(t, dir, "render", "overview", "nope")
	assert.ErrorIs(t, err, document.ErrNotFound)

	_, err = runCLI(t, dir, "render")
	assert.Error(t, err)

	_, err = runCLI(t, dir, "render", "overview", "--input", "novalue")
	assert.ErrorContains(t, err, "name=value")

	_, err = runCLI(t, dir, "render", "overview", "-o", "csv")
	assert.ErrorContains(t, err, "unsupported output")

	_, err = runCLI(t, dir, "render", "overview", "--theme", "neon")
	var themeErr themeSelectionError
	assert.ErrorAs(t, err, &themeErr)
}

func TestSnapshotSaveListShow(t *testing.T) {
	dir := fixtureModDir(t)

	out, err := runCLI(t, dir, "snapshot", "save", "overview", "s1")
	require.NoError(t, err)
	assert.Contains(t, out, "saved snapshot s1 of aws.dashboard.overview")

	out, err = runCLI(t, dir, "snapshot", "list")
	require.NoError(t, err)
	assert.Equal(t, "s1\n", out)

	out, err = runCLI(t, dir, "snapshot", "show", "s1", "-o", "json")
	require.NoError(t, err)
	res := decodeRender(t, out)
	assert.Equal(t, "snapshot", res.Mode)
	assert.Equal(t, "s1", res.SnapshotID)
	assert.Equal(t, "aws.dashboard.overview", res.Dashboard)
	require.Len(t, res.Panels, 4)
	assert.InDelta(t, 12, res.Panels[2].Data, 0)

	out, err = runCLI(t, dir, "render", "--snapshot", "s1", "by_region", "-o", "json")
	require.NoError(t, err)
	assert.Len(t, decodeRender(t, out).Panels, 1)

	_, err = runCLI(t, dir, "snapshot", "show", "nope")
	assert.Error(t, err)
}

func TestThemesConfigVersion(t *testing.T) {
	dir := fixtureModDir(t)

	out, err := runCLI(t, dir, "themes")
	require.NoError(t, err)
	assert.Contains(t, out, "steampipe-dark")
	assert.Regexp(t, `\*\s+steampipe-default`, out)

	out, err = runCLI(t, dir, "config", "-o", "json")
	require.NoError(t, err)
	var cfg map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, "dashx", cfg["app"].(map[string]any)["name"])

	out, err = runCLI(t, dir, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "dashx")
}

func TestConfigFileOverridesTheme(t *testing.T) {
	dir := fixtureModDir(t)
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, cfgPath, "theme:\n  default: light\n")

	out, err := runCLI(t, dir, "render", "overview", "-o", "json", "--config-file", cfgPath)
	require.NoError(t, err)
	var res map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "light", res["theme"])
	assert.Equal(t, "lg", res["breakpoint"])
}

func TestBrowseNeedsTerminal(t *testing.T) {
	_, err := runCLI(t, fixtureModDir(t), "browse")
	assert.ErrorContains(t, err, "interactive terminal")
}

func TestParseInputs(t *testing.T) {
	got, err := parseInputs([]string{"a=1", "b = two=2", "c="})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": " two=2", "c": ""}, got)

	_, err = parseInputs([]string{"=x"})
	assert.Error(t, err)
}

func TestWithinPath(t *testing.T) {
	assert.True(t, withinPath("", "a.b"))
	assert.True(t, withinPath("a", "a"))
	assert.True(t, withinPath("a", "a.b"))
	assert.True(t, withinPath("a", `a["x.y"]`))
	assert.False(t, withinPath("a", "ab"))
}

func TestDropNulls(t *testing.T) {
	in := map[string]any{"a": nil, "b": []any{1.0, nil, map[string]any{"c": nil, "d": "x"}}}
	assert.Equal(t, map[string]any{"b": []any{1.0, map[string]any{"d": "x"}}}, dropNulls(in))
}
