package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swedify/internal/convert"
)

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusUnauthorized, StatusFor(convert.CategoryMissingCredential))
	assert.Equal(t, http.StatusGatewayTimeout, StatusFor(convert.CategoryRemoteTimeout))
	assert.Equal(t, http.StatusBadRequest, StatusFor(convert.CategoryInvalidInput))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(convert.Category("SomethingNew")))
}

func TestConvertRequest(t *testing.T) {
	in, err := ConvertRequest{Text: "recept"}.Input()
	require.NoError(t, err)
	assert.Equal(t, convert.TextInput{Text: "recept"}, in)

	// An empty request is a text input; the pipeline rejects it as EmptyInput.
	in, err = ConvertRequest{}.Input()
	require.NoError(t, err)
	assert.Equal(t, "text", in.Kind())

	_, err = ConvertRequest{Kind: "audio"}.Input()
	assert.Error(t, err)

	fast := false
	assert.True(t, ConvertRequest{}.Options().UseFastModel)
	assert.False(t, ConvertRequest{UseFastModel: &fast}.Options().UseFastModel)
}
