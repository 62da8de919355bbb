package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAgentsFileParsesPublicAndPrivateAddresses(t *testing.T) {
	content := "# comment\n10.0.0.1:7000,192.168.1.1:7000\n\n10.0.0.2:7000\n"
	path := writeTemp(t, "agents.txt", content)

	entries, err := LoadAgentsFile(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "10.0.0.1:7000", entries[0].PublicAddress)
	assert.Equal(t, "192.168.1.1:7000", entries[0].PrivateAddress)
	assert.Equal(t, "10.0.0.2:7000", entries[1].PublicAddress)
	assert.Empty(t, entries[1].PrivateAddress)
}

func TestLoadAgentsFileRejectsEmptyPublicAddress(t *testing.T) {
	path := writeTemp(t, "agents.txt", ",192.168.1.1:7000\n")
	_, err := LoadAgentsFile(path)
	assert.Error(t, err)
}

func TestLoadAgentsFileMissingFileReturnsError(t *testing.T) {
	_, err := LoadAgentsFile(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestToAgentDataAssignsOneBasedIndices(t *testing.T) {
	entries := []AgentEntry{{PublicAddress: "a"}, {PublicAddress: "b"}}
	data := ToAgentData(entries)
	require.Len(t, data, 2)
	assert.Equal(t, 1, data[0].AddressIndex)
	assert.Equal(t, 2, data[1].AddressIndex)
}
