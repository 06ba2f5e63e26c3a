package auth

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"basileus/internal/battle"
	"basileus/internal/campaign"
	"basileus/internal/catalog"
	"basileus/internal/data"
	"basileus/internal/enemy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T) *campaign.Manager {
	t.Helper()
	cat := catalog.Default()
	return campaign.NewManager(context.Background(), campaign.Config{StartingSolidi: 500}, campaign.Deps{
		Store:     data.NewMemoryStore(),
		Catalog:   cat,
		Quests:    campaign.DefaultQuests(),
		Generator: enemy.New(cat, rand.New(rand.NewSource(1))),
		Battles:   battle.New(battle.Config{}, rand.New(rand.NewSource(1)), nil),
	})
}

func TestRegisterHandler(t *testing.T) {
	a := NewAuth(newManager(t))

	rec := httptest.NewRecorder()
	a.RegisterHandler(rec, httptest.NewRequest(http.MethodPost, "/api/register", strings.NewReader(`{"name":" Anna "}`)))
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp playerResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "Anna", resp.Name)
	assert.Equal(t, 500, resp.Solidi)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, CookieName, cookies[0].Name)
	assert.Equal(t, resp.PlayerID, cookies[0].Value)
}

func TestRegisterHandler_BadInput(t *testing.T) {
	a := NewAuth(newManager(t))
	for _, body := range []string{`{`, `{"name":"   "}`, `{"name":"` + strings.Repeat("x", 40) + `"}`} {
		rec := httptest.NewRecorder()
		a.RegisterHandler(rec, httptest.NewRequest(http.MethodPost, "/api/register", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}

	rec := httptest.NewRecorder()
	a.RegisterHandler(rec, httptest.NewRequest(http.MethodGet, "/api/register", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestLoginHandler(t *testing.T) {
	m := newManager(t)
	a := NewAuth(m)
	p, _, err := m.Register(context.Background(), "Anna")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	a.LoginHandler(rec, httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"playerId":"`+p.ID+`"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, p.ID, rec.Result().Cookies()[0].Value)

	rec = httptest.NewRecorder()
	a.LoginHandler(rec, httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"playerId":"ghost"}`)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPlayerID(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws?player=q1", nil)
	id, err := PlayerID(r)
	require.NoError(t, err)
	assert.Equal(t, "q1", id)

	r.AddCookie(&http.Cookie{Name: CookieName, Value: "c1"})
	id, err = PlayerID(r)
	require.NoError(t, err)
	assert.Equal(t, "c1", id, "cookie wins over query")

	_, err = PlayerID(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.ErrorIs(t, err, ErrNoPlayer)
}
