package checkout

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func mustJSONField(t *testing.T, payload []byte, field string) json.RawMessage {
	t.Helper()
	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(payload, &fields))
	raw, ok := fields[field]
	require.True(t, ok, "field %q missing in %s", field, payload)
	return raw
}
