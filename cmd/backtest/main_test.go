package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSweep(t *testing.T) {
	values, err := parseSweep(" 0.01, 0.02 ,0.05")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.01, 0.02, 0.05}, values)

	values, err = parseSweep("")
	require.NoError(t, err)
	assert.Nil(t, values)

	_, err = parseSweep("0.01,abc")
	assert.Error(t, err)
}

func TestRun_RejectsBadArgs(t *testing.T) {
	err := run([]string{"-sweep", "0.01,abc"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sweep")

	assert.Error(t, run([]string{"-unknown"}))
}
