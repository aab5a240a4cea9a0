package wire

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscape(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"plain", "plain"},
		{"a b", "a%20b"},
		{"Reference/Aperio/CMU-1.svs", "Reference%2FAperio%2FCMU-1.svs"},
		{"x&y=z+1", "x%26y%3Dz%2B1"},
		{"keep-_.~", "keep-_.~"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Escape(tt.in))
		})
	}
}

func TestQuery(t *testing.T) {
	got := Query(
		Param{"sessionID", "abc 1"},
		Param{"path", ""},
		Param{"x", "3"},
	)
	assert.Equal(t, "sessionID=abc%201&path=&x=3", got)
}

func TestRootText(t *testing.T) {
	text, err := RootText([]byte(`<?xml version="1.0"?><boolean xmlns="http://schemas.microsoft.com/2003/10/Serialization/"> true </boolean>`))
	require.NoError(t, err)
	assert.Equal(t, "true", text)

	_, err = RootText([]byte(``))
	assert.Error(t, err)
}

func TestStringArray(t *testing.T) {
	body := []byte(`<ArrayOfstring xmlns="http://schemas.microsoft.com/2003/10/Serialization/Arrays">
  <string>Reference</string>
  <string>Archive</string>
  <string>Teaching</string>
</ArrayOfstring>`)

	all, err := StringArray(body, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Reference", "Archive", "Teaching"}, all)

	first, err := StringArray(body, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"Reference"}, first)

	none, err := StringArray([]byte(`<ArrayOfstring/>`), 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestLogon(t *testing.T) {
	ok, err := Logon([]byte(`<LogonInformation xmlns="urn:x"><Reason/><SessionId>s-1</SessionId><Success>true</Success></LogonInformation>`))
	require.NoError(t, err)
	assert.True(t, ok.OK())
	assert.Equal(t, "s-1", ok.SessionID)

	denied, err := Logon([]byte(`<LogonInformation><Reason>Bad credentials</Reason><Success>False</Success></LogonInformation>`))
	require.NoError(t, err)
	assert.False(t, denied.OK())
	assert.Equal(t, "Bad credentials", denied.Reason)
}

func TestDecodeJSON(t *testing.T) {
	t.Run("wrapped in d", func(t *testing.T) {
		var dirs []string
		require.NoError(t, DecodeJSON([]byte(`{"d":["A","B"]}`), &dirs))
		assert.Equal(t, []string{"A", "B"}, dirs)
	})

	t.Run("bare array", func(t *testing.T) {
		var dirs []string
		require.NoError(t, DecodeJSON([]byte(` ["A"] `), &dirs))
		assert.Equal(t, []string{"A"}, dirs)
	})

	t.Run("bare object keeps exact numbers", func(t *testing.T) {
		var doc map[string]any
		require.NoError(t, DecodeJSON([]byte(`{"Width":100000,"MicrometresPerPixelX":0.25}`), &doc))
		assert.Equal(t, json.Number("100000"), doc["Width"])
	})

	t.Run("service error", func(t *testing.T) {
		var doc map[string]any
		err := DecodeJSON([]byte(`{"Code":404,"Message":"Directory not found"}`), &doc)
		var remote *RemoteError
		require.True(t, errors.As(err, &remote))
		assert.Equal(t, "404", remote.Code)
		assert.Equal(t, "Directory not found", remote.Message)
	})

	t.Run("empty body", func(t *testing.T) {
		var doc map[string]any
		assert.Error(t, DecodeJSON(nil, &doc))
	})
}
