package handler_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/scratchpad/internal/handler"
	"github.com/sakif/scratchpad/internal/model"
	"github.com/sakif/scratchpad/internal/service"
)

func TestSessionHandlers_CRUD(t *testing.T) {
	cs := newChatStack(t)

	created := cs.createSession("")
	assert.Equal(t, service.DefaultSessionTitle, created.Title)
	assert.Equal(t, "test-model", created.Model)
	assert.NotEmpty(t, created.ID)

	named := cs.createSession("plotting help")
	assert.Equal(t, "plotting help", named.Title)

	res := cs.do(http.MethodGet, "/api/sessions", "")
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var listed []model.Session
	require.NoError(t, json.NewDecoder(res.Body).Decode(&listed))
	assert.Len(t, listed, 2)

	// A fresh session's transcript is the session plus an empty message
	// array, never null, so the frontend can iterate without nil checks.
	res = cs.do(http.MethodGet, "/api/sessions/"+created.ID, "")
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var tr struct {
		Session  *model.Session  `json:"session"`
		Messages []model.Message `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&tr))
	require.NotNil(t, tr.Session)
	assert.Equal(t, created.ID, tr.Session.ID)
	assert.NotNil(t, tr.Messages)
	assert.Empty(t, tr.Messages)

	res = cs.do(http.MethodDelete, "/api/sessions/"+named.ID, "")
	res.Body.Close()
	assert.Equal(t, http.StatusNoContent, res.StatusCode)

	res = cs.do(http.MethodGet, "/api/sessions/"+named.ID, "")
	defer res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	var errRes handler.ErrorResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&errRes))
	assert.Equal(t, "not_found", errRes.Error)
}

func TestSessionHandlers_Validation(t *testing.T) {
	cs := newChatStack(t)

	t.Run("broken JSON body", func(t *testing.T) {
		res := cs.do(http.MethodPost, "/api/sessions", "{broken")
		defer res.Body.Close()
		assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	})

	t.Run("title too long", func(t *testing.T) {
		long := strings.Repeat("x", service.MaxTitleLength+1)
		res := cs.do(http.MethodPost, "/api/sessions", fmt.Sprintf(`{"title":%q}`, long))
		defer res.Body.Close()
		assert.Equal(t, http.StatusBadRequest, res.StatusCode)

		var errRes handler.ErrorResponse
		require.NoError(t, json.NewDecoder(res.Body).Decode(&errRes))
		assert.Equal(t, "validation_error", errRes.Error)
	})

	t.Run("anonymous requests are turned away", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, cs.srv.URL+"/api/sessions", nil)
		require.NoError(t, err)

		res, err := cs.srv.Client().Do(req)
		require.NoError(t, err)
		defer res.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	})
}
