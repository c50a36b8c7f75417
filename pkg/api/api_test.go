package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"channeld/pkg/models"
	"channeld/pkg/store"
)

var (
	ada = models.Identity{ID: 1, UserName: "ada", FirstName: "Ada"}
	bob = models.Identity{ID: 2, UserName: "bob", FirstName: "Bob"}
	eve = models.Identity{ID: 3, UserName: "eve", FirstName: "Eve"}
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	require.NoError(t, store.Open(t.TempDir(), 0))
	t.Cleanup(func() { _ = store.Close() })
	srv := httptest.NewServer(Router())
	t.Cleanup(srv.Close)
	return srv
}

// do issues a request as the given identity and decodes the JSON response
// into out (when non-nil).
func do(t *testing.T, srv *httptest.Server, as *models.Identity, method, path string, body interface{}, out interface{}) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	if as != nil {
		raw, err := json.Marshal(as)
		require.NoError(t, err)
		req.Header.Set("X-User", string(raw))
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestUnauthenticatedRequestsRejected(t *testing.T) {
	srv := newServer(t)

	code := do(t, srv, nil, http.MethodGet, "/v1/channels", nil, nil)
	require.Equal(t, http.StatusUnauthorized, code)
}

func TestPublicChannelMessageFlow(t *testing.T) {
	srv := newServer(t)

	// create a public channel
	var ch models.Channel
	code := do(t, srv, &ada, http.MethodPost, "/v1/channels",
		map[string]interface{}{"name": "general"}, &ch)
	require.Equal(t, http.StatusCreated, code)
	require.False(t, ch.Private)
	require.Empty(t, ch.Members)
	require.Equal(t, "No description", ch.Description)

	// any identity can post
	var m models.Message
	code = do(t, srv, &bob, http.MethodPost, fmt.Sprintf("/v1/channels/%d", ch.ID),
		map[string]string{"body": "hi"}, &m)
	require.Equal(t, http.StatusCreated, code)
	require.Equal(t, bob.ID, m.Creator.ID)

	// channel fetch returns the message
	var msgs []models.Message
	code = do(t, srv, &eve, http.MethodGet, fmt.Sprintf("/v1/channels/%d", ch.ID), nil, &msgs)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, msgs, 1)
	require.Equal(t, "hi", msgs[0].Body)

	// only the author may delete
	code = do(t, srv, &ada, http.MethodDelete, fmt.Sprintf("/v1/messages/%d", m.ID), nil, nil)
	require.Equal(t, http.StatusForbidden, code)

	code = do(t, srv, &bob, http.MethodDelete, fmt.Sprintf("/v1/messages/%d", m.ID), nil, nil)
	require.Equal(t, http.StatusOK, code)

	code = do(t, srv, &eve, http.MethodGet, fmt.Sprintf("/v1/channels/%d", ch.ID), nil, &msgs)
	require.Equal(t, http.StatusOK, code)
	require.Empty(t, msgs)
}

func TestPrivateChannelAccessControl(t *testing.T) {
	srv := newServer(t)

	// register bob so he can be referenced as a member
	do(t, srv, &bob, http.MethodGet, "/v1/channels", nil, nil)

	var ch models.Channel
	code := do(t, srv, &ada, http.MethodPost, "/v1/channels",
		map[string]interface{}{"name": "ops", "private": true, "members": []int64{bob.ID}}, &ch)
	require.Equal(t, http.StatusCreated, code)
	require.Equal(t, []int64{1, 2}, ch.MemberIDs())

	// non-member reads and posts are refused
	code = do(t, srv, &eve, http.MethodGet, fmt.Sprintf("/v1/channels/%d", ch.ID), nil, nil)
	require.Equal(t, http.StatusForbidden, code)
	code = do(t, srv, &eve, http.MethodPost, fmt.Sprintf("/v1/channels/%d", ch.ID),
		map[string]string{"body": "knock knock"}, nil)
	require.Equal(t, http.StatusForbidden, code)

	// member posts fine
	code = do(t, srv, &bob, http.MethodPost, fmt.Sprintf("/v1/channels/%d", ch.ID),
		map[string]string{"body": "hi team"}, nil)
	require.Equal(t, http.StatusCreated, code)

	// visibility filtering on the list
	var chs []models.Channel
	code = do(t, srv, &eve, http.MethodGet, "/v1/channels", nil, &chs)
	require.Equal(t, http.StatusOK, code)
	require.Empty(t, chs)

	code = do(t, srv, &bob, http.MethodGet, "/v1/channels", nil, &chs)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, chs, 1)
}

func TestChannelUpdateAndDelete(t *testing.T) {
	srv := newServer(t)

	var ch models.Channel
	code := do(t, srv, &ada, http.MethodPost, "/v1/channels",
		map[string]interface{}{"name": "general"}, &ch)
	require.Equal(t, http.StatusCreated, code)

	// nothing to update
	code = do(t, srv, &ada, http.MethodPatch, fmt.Sprintf("/v1/channels/%d", ch.ID),
		map[string]string{}, nil)
	require.Equal(t, http.StatusBadRequest, code)

	// creator only
	code = do(t, srv, &bob, http.MethodPatch, fmt.Sprintf("/v1/channels/%d", ch.ID),
		map[string]string{"name": "hijacked"}, nil)
	require.Equal(t, http.StatusForbidden, code)

	var updated models.Channel
	code = do(t, srv, &ada, http.MethodPatch, fmt.Sprintf("/v1/channels/%d", ch.ID),
		map[string]string{"description": "the town square"}, &updated)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "general", updated.Name)
	require.Equal(t, "the town square", updated.Description)

	code = do(t, srv, &bob, http.MethodDelete, fmt.Sprintf("/v1/channels/%d", ch.ID), nil, nil)
	require.Equal(t, http.StatusForbidden, code)
	code = do(t, srv, &ada, http.MethodDelete, fmt.Sprintf("/v1/channels/%d", ch.ID), nil, nil)
	require.Equal(t, http.StatusOK, code)
	code = do(t, srv, &ada, http.MethodGet, fmt.Sprintf("/v1/channels/%d", ch.ID), nil, nil)
	require.Equal(t, http.StatusNotFound, code)
}

func TestMembershipEndpoints(t *testing.T) {
	srv := newServer(t)

	do(t, srv, &bob, http.MethodGet, "/v1/channels", nil, nil)

	var ch models.Channel
	code := do(t, srv, &ada, http.MethodPost, "/v1/channels",
		map[string]interface{}{"name": "ops", "private": true}, &ch)
	require.Equal(t, http.StatusCreated, code)

	membersPath := fmt.Sprintf("/v1/channels/%d/members", ch.ID)

	code = do(t, srv, &ada, http.MethodPost, membersPath, map[string]int64{"id": bob.ID}, &ch)
	require.Equal(t, http.StatusCreated, code)
	require.Equal(t, []int64{1, 2}, ch.MemberIDs())

	// duplicate add conflicts
	code = do(t, srv, &ada, http.MethodPost, membersPath, map[string]int64{"id": bob.ID}, nil)
	require.Equal(t, http.StatusConflict, code)

	// unknown user id
	code = do(t, srv, &ada, http.MethodPost, membersPath, map[string]int64{"id": 42}, nil)
	require.Equal(t, http.StatusBadRequest, code)

	// missing id in the body
	code = do(t, srv, &ada, http.MethodPost, membersPath, map[string]string{}, nil)
	require.Equal(t, http.StatusBadRequest, code)

	// only the creator manages membership
	code = do(t, srv, &bob, http.MethodDelete, membersPath, map[string]int64{"id": bob.ID}, nil)
	require.Equal(t, http.StatusForbidden, code)

	code = do(t, srv, &ada, http.MethodDelete, membersPath, map[string]int64{"id": bob.ID}, &ch)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, []int64{1}, ch.MemberIDs())

	// removing a non-member
	code = do(t, srv, &ada, http.MethodDelete, membersPath, map[string]int64{"id": bob.ID}, nil)
	require.Equal(t, http.StatusBadRequest, code)

	// members on a public channel are invalid
	var pub models.Channel
	code = do(t, srv, &ada, http.MethodPost, "/v1/channels", map[string]interface{}{"name": "general"}, &pub)
	require.Equal(t, http.StatusCreated, code)
	code = do(t, srv, &ada, http.MethodPost, fmt.Sprintf("/v1/channels/%d/members", pub.ID),
		map[string]int64{"id": bob.ID}, nil)
	require.Equal(t, http.StatusBadRequest, code)
}

func TestMessageEditAndValidation(t *testing.T) {
	srv := newServer(t)

	var ch models.Channel
	code := do(t, srv, &ada, http.MethodPost, "/v1/channels", map[string]interface{}{"name": "general"}, &ch)
	require.Equal(t, http.StatusCreated, code)

	// empty body rejected
	code = do(t, srv, &ada, http.MethodPost, fmt.Sprintf("/v1/channels/%d", ch.ID),
		map[string]string{"body": ""}, nil)
	require.Equal(t, http.StatusBadRequest, code)

	var m models.Message
	code = do(t, srv, &ada, http.MethodPost, fmt.Sprintf("/v1/channels/%d", ch.ID),
		map[string]string{"body": "draft"}, &m)
	require.Equal(t, http.StatusCreated, code)

	code = do(t, srv, &bob, http.MethodPatch, fmt.Sprintf("/v1/messages/%d", m.ID),
		map[string]string{"body": "mine now"}, nil)
	require.Equal(t, http.StatusForbidden, code)

	var edited models.Message
	code = do(t, srv, &ada, http.MethodPatch, fmt.Sprintf("/v1/messages/%d", m.ID),
		map[string]string{"body": "final"}, &edited)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "final", edited.Body)

	code = do(t, srv, &ada, http.MethodPatch, "/v1/messages/999",
		map[string]string{"body": "ghost"}, nil)
	require.Equal(t, http.StatusNotFound, code)
}

func TestReactionAndStarEndpoints(t *testing.T) {
	srv := newServer(t)

	var ch models.Channel
	code := do(t, srv, &ada, http.MethodPost, "/v1/channels", map[string]interface{}{"name": "general"}, &ch)
	require.Equal(t, http.StatusCreated, code)
	var m models.Message
	code = do(t, srv, &ada, http.MethodPost, fmt.Sprintf("/v1/channels/%d", ch.ID),
		map[string]string{"body": "ship it"}, &m)
	require.Equal(t, http.StatusCreated, code)

	reactPath := fmt.Sprintf("/v1/messages/%d/reactions", m.ID)
	starPath := fmt.Sprintf("/v1/messages/%d/star", m.ID)

	code = do(t, srv, &bob, http.MethodPost, reactPath, map[string]string{"reaction": ""}, nil)
	require.Equal(t, http.StatusBadRequest, code)

	var got models.Message
	code = do(t, srv, &bob, http.MethodPost, reactPath, map[string]string{"reaction": "+1"}, &got)
	require.Equal(t, http.StatusCreated, code)
	r, ok := got.ReactionBy(bob.ID)
	require.True(t, ok)
	require.Equal(t, "+1", r.Reaction)

	code = do(t, srv, &bob, http.MethodDelete, reactPath, nil, &got)
	require.Equal(t, http.StatusOK, code)
	require.Empty(t, got.Reactions)

	code = do(t, srv, &bob, http.MethodPost, starPath, nil, &got)
	require.Equal(t, http.StatusCreated, code)
	require.True(t, got.StarredBy(bob.ID))

	code = do(t, srv, &bob, http.MethodDelete, starPath, nil, &got)
	require.Equal(t, http.StatusOK, code)
	require.False(t, got.StarredBy(bob.ID))
}
