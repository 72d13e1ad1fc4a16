package shared

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type decodeTarget struct {
	Email    string `json:"email"    validate:"required,email"`
	Language string `json:"language" validate:"required,len=2"`
}

type selfValidating struct {
	ok bool
}

func (s selfValidating) Validate() error {
	if !s.ok {
		return errors.New("not ok")
	}
	return nil
}

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	t.Run("valid body", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodPost, "/test",
			strings.NewReader(`{"email":"ada@example.com","language":"en"}`))

		var target decodeTarget
		require.NoError(t, DecodeJSON(req, &target))
		assert.Equal(t, "ada@example.com", target.Email)
		assert.Equal(t, "en", target.Language)
	})

	t.Run("malformed body", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(`{"email":`))

		var target decodeTarget
		assert.Error(t, DecodeJSON(req, &target))
	})
}

func TestValidateRequest(t *testing.T) {
	t.Parallel()

	t.Run("valid struct", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, ValidateRequest(decodeTarget{Email: "ada@example.com", Language: "en"}))
	})

	t.Run("invalid struct", func(t *testing.T) {
		t.Parallel()
		assert.Error(t, ValidateRequest(decodeTarget{Email: "not-an-email", Language: "en"}))
	})

	t.Run("custom Validate method wins", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, ValidateRequest(selfValidating{ok: true}))
		assert.EqualError(t, ValidateRequest(selfValidating{ok: false}), "not ok")
	})
}
