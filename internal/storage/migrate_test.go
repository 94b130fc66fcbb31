package storage

import (
	"strings"
	"testing"
)

func TestSchemaChecksum(t *testing.T) {
	sum := schemaChecksum()
	if len(sum) != 64 || sum != schemaChecksum() {
		t.Fatalf("checksum %q is not a stable sha256 hex digest", sum)
	}
	for _, table := range []string{"fleet_positions", "fleet_events", "idempotency_keys"} {
		if !strings.Contains(string(schemaSQL), "CREATE TABLE IF NOT EXISTS "+table) {
			t.Errorf("embedded schema lacks %s", table)
		}
	}
}
