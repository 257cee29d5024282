package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verification/sim"
)

var scenarioPath = filepath.Join("..", "..", "sim", "testdata", "hack-2024.yaml")

func TestParseOptions(t *testing.T) {
	t.Setenv("REDIS_URL", "")
	t.Setenv("REGISTRY_SCENARIO_FILE", "")
	opts, err := parseOptions(flag.NewFlagSet("test", flag.ContinueOnError), []string{"-store", "memory", scenarioPath})
	require.NoError(t, err)
	assert.Equal(t, scenarioPath, opts.Scenario)
	assert.Equal(t, "memory", opts.Store)

	_, err = parseOptions(flag.NewFlagSet("test", flag.ContinueOnError), []string{"-store", "memory"})
	assert.ErrorContains(t, err, "scenario path is required")

	_, err = parseOptions(flag.NewFlagSet("test", flag.ContinueOnError), []string{"-store", "redis", scenarioPath})
	assert.ErrorContains(t, err, "REDIS_URL")
}

func TestRunJSONReport(t *testing.T) {
	opts, err := parseOptions(flag.NewFlagSet("test", flag.ContinueOnError), []string{"-store", "memory", "-json", scenarioPath})
	require.NoError(t, err)

	var out bytes.Buffer
	ok, err := run(context.Background(), opts, &out)
	require.NoError(t, err)
	assert.True(t, ok)

	var report sim.Report
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.Equal(t, "hack-2024", report.Scenario)
	assert.Equal(t, 0, report.Failed)
}
