package jsonx

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name string `json:"name"`
	Age  int    `json:"age"`
}

func TestParseJSONObjectDecodesValidPayload(t *testing.T) {
	var dst sample
	err := ParseJSONObject(strings.NewReader(`{"name":"ada","age":30}`), &dst)
	require.NoError(t, err)
	assert.Equal(t, sample{Name: "ada", Age: 30}, dst)
}

func TestParseJSONObjectRejectsUnknownFields(t *testing.T) {
	var dst sample
	err := ParseJSONObject(strings.NewReader(`{"name":"ada","extra":1}`), &dst)
	assert.Error(t, err)
}

func TestParseStrictJSONBodyRejectsEmptyBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	var dst sample
	err := ParseStrictJSONBody(req, &dst)
	assert.ErrorIs(t, err, ErrEmptyBody)
}

func TestParseStrictJSONBodyRejectsTrailingData(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"ada"}{"name":"bob"}`))
	var dst sample
	err := ParseStrictJSONBody(req, &dst)
	assert.ErrorIs(t, err, ErrTrailingJSON)
}

func TestParseStrictJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"ada","bogus":true}`))
	var dst sample
	err := ParseStrictJSONBody(req, &dst)
	assert.Error(t, err)
}

func TestParseStrictJSONBodyAcceptsWellFormedSingleValue(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"ada","age":30}`))
	var dst sample
	require.NoError(t, ParseStrictJSONBody(req, &dst))
	assert.Equal(t, sample{Name: "ada", Age: 30}, dst)
}

func TestFieldDistinguishesUnsetNullAndValue(t *testing.T) {
	type patch struct {
		ReadOnly Field[bool] `json:"read_only"`
	}

	var unset patch
	require.NoError(t, ParseJSONObject(strings.NewReader(`{}`), &unset))
	assert.False(t, unset.ReadOnly.IsSet())
	_, ok := unset.ReadOnly.Value()
	assert.False(t, ok)

	var explicitNull patch
	require.NoError(t, ParseJSONObject(strings.NewReader(`{"read_only":null}`), &explicitNull))
	assert.True(t, explicitNull.ReadOnly.IsSet())
	assert.True(t, explicitNull.ReadOnly.IsNull())
	_, ok = explicitNull.ReadOnly.Value()
	assert.False(t, ok)

	var withValue patch
	require.NoError(t, ParseJSONObject(strings.NewReader(`{"read_only":true}`), &withValue))
	assert.True(t, withValue.ReadOnly.IsSet())
	assert.False(t, withValue.ReadOnly.IsNull())
	v, ok := withValue.ReadOnly.Value()
	require.True(t, ok)
	assert.True(t, v)
}
