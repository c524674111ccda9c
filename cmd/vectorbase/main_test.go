package main

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/vectorbase/store"
)

func TestParseLogLevel(t *testing.T) {
	level, err := parseLogLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	level, err = parseLogLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)

	_, err = parseLogLevel("chatty")
	assert.Error(t, err)
}

func TestFindOptions(t *testing.T) {
	opts := findOptions(store.RelevanceDistance, 5, nil)
	assert.Equal(t, store.FindOptions{MaxResults: 5, Cutoff: store.MaxDistance(0.29)}, opts)

	opts = findOptions(store.RelevanceScore, 3, nil)
	assert.Equal(t, store.FindOptions{MaxResults: 3, Cutoff: store.MinScore(0.71)}, opts)

	cutoff := 0.5
	opts = findOptions(store.RelevanceDistance, 3, &cutoff)
	assert.Equal(t, store.MaxDistance(0.5), opts.Cutoff)

	opts = findOptions(store.RelevanceScore, 3, &cutoff)
	assert.Equal(t, store.MinScore(0.5), opts.Cutoff)
}

func TestReadLines(t *testing.T) {
	lines, err := readLines(strings.NewReader("first\n\n  second  \r\n\t\nthird"))
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, lines)

	lines, err = readLines(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestPrintResults(t *testing.T) {
	var buf bytes.Buffer
	printResults(&buf, nil)
	assert.Equal(t, "no matches\n", buf.String())

	buf.Reset()
	printResults(&buf, []store.Entry{
		store.NewEntry(nil, []byte("alpha")).WithID(4),
		store.NewEntry(nil, []byte("beta")),
	})
	assert.Equal(t, "4\talpha\n-\tbeta\n", buf.String())
}
