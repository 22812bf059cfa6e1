package mifare

import (
	"bufio"
	"io"
	"log/slog"
	"strconv"
	"strings"
)

// KeyLogStats counts what ParseKeyLog did with its input.
type KeyLogStats struct {
	Lines   int // lines read
	Loaded  int // lines that set a key
	Skipped int // non-empty lines that did not match
}

// ParseKeyLog reads a line-oriented key log into a KeyStore.
//
// Accepted line shapes (fields split on ',' then ':'):
//
//	Block 12, type A, key: AABBCCDDEEFF
//	Block 63, type B, key ffffffffffff :00 00 00 ...
//
// The second is the mfoc recovery log layout, where the key precedes the
// colon. Any other line is skipped; only a read error stops parsing.
// A later line for the same block and key type replaces an earlier one.
func ParseKeyLog(r io.Reader) (*KeyStore, KeyLogStats, error) {
	ks := EmptyKeyStore()
	var stats KeyLogStats

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		stats.Lines++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		block, typ, key, ok := parseKeyLogLine(line)
		if !ok {
			stats.Skipped++
			slog.Debug("key log line skipped", "line", stats.Lines)
			continue
		}
		ks.keys[keySlot{block, typ}] = key
		stats.Loaded++
	}
	if err := scanner.Err(); err != nil {
		return EmptyKeyStore(), stats, &ParseError{Source: "keylog", Line: stats.Lines + 1, Msg: "read failed", Cause: err}
	}
	return ks, stats, nil
}

func parseKeyLogLine(line string) (int, KeyType, Key, bool) {
	if !strings.HasPrefix(line, "Block") {
		return 0, 0, Key{}, false
	}
	fields := strings.Split(line, ",")
	if len(fields) != 3 {
		return 0, 0, Key{}, false
	}

	block, err := strconv.Atoi(strings.TrimSpace(strings.Replace(fields[0], "Block", "", 1)))
	if err != nil || block < 0 || block >= Blocks {
		return 0, 0, Key{}, false
	}

	typ, ok := ParseKeyType(strings.TrimSpace(strings.Replace(fields[1], "type", "", 1)))
	if !ok {
		return 0, 0, Key{}, false
	}

	parts := strings.Split(fields[2], ":")
	if len(parts) != 2 {
		return 0, 0, Key{}, false
	}
	label := strings.TrimSpace(parts[0])
	if !strings.HasPrefix(label, "key") {
		return 0, 0, Key{}, false
	}
	keyHex := strings.TrimSpace(strings.TrimPrefix(label, "key"))
	if keyHex == "" {
		keyHex = strings.TrimSpace(parts[1])
	}

	raw, err := FromHex(keyHex)
	if err != nil || len(raw) != KeySize {
		return 0, 0, Key{}, false
	}
	var key Key
	copy(key[:], raw)
	return block, typ, key, true
}
