package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeOf(t *testing.T) {
	raw, err := json.Marshal(NewJoin("u1"))
	require.NoError(t, err)

	typ, err := TypeOf(raw)
	require.NoError(t, err)
	assert.Equal(t, TypeJoin, typ)
	assert.JSONEq(t, `{"type":"join","userId":"u1"}`, string(raw))

	_, err = TypeOf([]byte("{"))
	assert.Error(t, err)
}
