package main

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/pdmq/internal/config"
	"github.com/tonimelisma/pdmq/internal/query"
)

func wellsTable() *query.Table {
	return &query.Table{
		Columns: []query.Column{
			{Name: "name", DatabaseType: "TEXT"},
			{Name: "depth", DatabaseType: "REAL"},
			{Name: "comment", DatabaseType: "TEXT"},
		},
		Rows: [][]any{
			{"15/9-F-11", 3720.5, []byte("main bore, sidetracked")},
			{"15/9-F-12", 3520.0, nil},
		},
	}
}

func TestOutputFormat(t *testing.T) {
	var buf bytes.Buffer

	tests := []struct {
		name       string
		json       bool
		configured string
		want       string
	}{
		{"json flag wins", true, config.FormatTable, config.FormatJSON},
		{"explicit table", false, config.FormatTable, config.FormatTable},
		{"explicit csv", false, config.FormatCSV, config.FormatCSV},
		{"auto when piped", false, config.FormatAuto, config.FormatCSV},
		{"empty is auto", false, "", config.FormatCSV},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := outputFormat(tt.json, tt.configured, &buf)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := outputFormat(false, "xml", &buf)
	require.Error(t, err)
}

func TestIsTerminal_NotAFile(t *testing.T) {
	assert.False(t, isTerminal(&bytes.Buffer{}))

	f, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	defer f.Close()

	assert.False(t, isTerminal(f))
}

func TestRenderCSV(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, renderTable(&buf, config.FormatCSV, wellsTable()))
	assert.Equal(t, "name,depth,comment\n"+
		"15/9-F-11,3720.5,\"main bore, sidetracked\"\n"+
		"15/9-F-12,3520,\n", buf.String())
}

func TestRenderJSON(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, renderTable(&buf, config.FormatJSON, wellsTable()))

	var got jsonResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))

	assert.Equal(t, []jsonColumn{{"name", "TEXT"}, {"depth", "REAL"}, {"comment", "TEXT"}}, got.Columns)
	require.Len(t, got.Rows, 2)
	assert.Equal(t, "main bore, sidetracked", got.Rows[0]["comment"])
	assert.Nil(t, got.Rows[1]["comment"])
}

func TestRenderJSON_EmptyResult(t *testing.T) {
	var buf bytes.Buffer

	empty := &query.Table{Columns: []query.Column{{Name: "name"}}}
	require.NoError(t, renderTable(&buf, config.FormatJSON, empty))
	assert.Contains(t, buf.String(), `"rows": []`)
}

func TestRenderPretty(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, renderTable(&buf, config.FormatTable, wellsTable()))

	out := buf.String()
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "15/9-F-12")
	assert.Contains(t, out, "╭")
}

func TestCellString(t *testing.T) {
	ts := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"x", "x"},
		{[]byte("raw"), "raw"},
		{int64(-42), "-42"},
		{3.25, "3.25"},
		{true, "true"},
		{ts, "2024-03-01T12:00:00Z"},
		{int32(7), "7"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, cellString(tt.in))
	}
}
