package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/cuemby/warrenbench/pkg/benchtypes"
)

// AgentEntry is one line of an agents file: a public address and an
// optional private address used for Worker <-> Agent loopback-adjacent
// traffic that should stay off the public network.
type AgentEntry struct {
	PublicAddress  string
	PrivateAddress string
}

// LoadAgentsFile reads a newline-delimited agents file, one entry per line
// as "publicAddress[,privateAddress]". Blank lines and lines starting with
// "#" are skipped.
func LoadAgentsFile(path string) ([]AgentEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open agents file %s: %w", path, err)
	}
	defer f.Close()

	var entries []AgentEntry
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, ",", 2)
		entry := AgentEntry{PublicAddress: strings.TrimSpace(parts[0])}
		if len(parts) == 2 {
			entry.PrivateAddress = strings.TrimSpace(parts[1])
		}
		if entry.PublicAddress == "" {
			return nil, fmt.Errorf("config: agents file %s line %d: empty public address", path, lineNo)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: read agents file %s: %w", path, err)
	}

	return entries, nil
}

// ToAgentData converts loaded agent entries into registry rows, assigning
// sequential address indices starting at 1 (0 is address.Simulator's
// "unset" sentinel).
func ToAgentData(entries []AgentEntry) []benchtypes.AgentData {
	out := make([]benchtypes.AgentData, 0, len(entries))
	for i, e := range entries {
		out = append(out, benchtypes.AgentData{
			AddressIndex:   i + 1,
			PublicAddress:  e.PublicAddress,
			PrivateAddress: e.PrivateAddress,
		})
	}
	return out
}
