package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"channeld/pkg/auth"
	"channeld/pkg/messages"
	"channeld/pkg/utils"
)

// RegisterMessages registers the message routes onto the authenticated
// subrouter. Posting happens on the channel resource; see channels.go.
func RegisterMessages(r *mux.Router) {
	r.HandleFunc("/messages/{id:[0-9]+}", updateMessage).Methods(http.MethodPatch)
	r.HandleFunc("/messages/{id:[0-9]+}", deleteMessage).Methods(http.MethodDelete)

	r.HandleFunc("/messages/{id:[0-9]+}/reactions", addReaction).Methods(http.MethodPost)
	r.HandleFunc("/messages/{id:[0-9]+}/reactions", removeReaction).Methods(http.MethodDelete)
	r.HandleFunc("/messages/{id:[0-9]+}/star", starMessage).Methods(http.MethodPost)
	r.HandleFunc("/messages/{id:[0-9]+}/star", unstarMessage).Methods(http.MethodDelete)
}

type postMessageRequest struct {
	Body string `json:"body"`
}

func postChannelMessage(w http.ResponseWriter, r *http.Request) {
	ident, err := auth.IdentityFromContext(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	chID, ok := pathID(r)
	if !ok {
		utils.JSONError(w, http.StatusNotFound, "not found")
		return
	}
	var req postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	m, err := messages.Post(ident, chID, req.Body)
	if err != nil {
		writeErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusCreated, m)
}

func updateMessage(w http.ResponseWriter, r *http.Request) {
	ident, err := auth.IdentityFromContext(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	msgID, ok := pathID(r)
	if !ok {
		utils.JSONError(w, http.StatusNotFound, "not found")
		return
	}
	var req postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	m, err := messages.Edit(ident, msgID, req.Body)
	if err != nil {
		writeErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, m)
}

func deleteMessage(w http.ResponseWriter, r *http.Request) {
	ident, err := auth.IdentityFromContext(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	msgID, ok := pathID(r)
	if !ok {
		utils.JSONError(w, http.StatusNotFound, "not found")
		return
	}
	if err := messages.Delete(ident, msgID); err != nil {
		writeErr(w, err)
		return
	}
	utils.JSONStatus(w, http.StatusOK, "deleted")
}

type reactionRequest struct {
	Reaction string `json:"reaction"`
}

func addReaction(w http.ResponseWriter, r *http.Request) {
	ident, err := auth.IdentityFromContext(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	msgID, ok := pathID(r)
	if !ok {
		utils.JSONError(w, http.StatusNotFound, "not found")
		return
	}
	var req reactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	m, err := messages.React(ident, msgID, req.Reaction)
	if err != nil {
		writeErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusCreated, m)
}

func removeReaction(w http.ResponseWriter, r *http.Request) {
	ident, err := auth.IdentityFromContext(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	msgID, ok := pathID(r)
	if !ok {
		utils.JSONError(w, http.StatusNotFound, "not found")
		return
	}
	m, err := messages.Unreact(ident, msgID)
	if err != nil {
		writeErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, m)
}

func starMessage(w http.ResponseWriter, r *http.Request) {
	ident, err := auth.IdentityFromContext(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	msgID, ok := pathID(r)
	if !ok {
		utils.JSONError(w, http.StatusNotFound, "not found")
		return
	}
	m, err := messages.Star(ident, msgID)
	if err != nil {
		writeErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusCreated, m)
}

func unstarMessage(w http.ResponseWriter, r *http.Request) {
	ident, err := auth.IdentityFromContext(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	msgID, ok := pathID(r)
	if !ok {
		utils.JSONError(w, http.StatusNotFound, "not found")
		return
	}
	m, err := messages.Unstar(ident, msgID)
	if err != nil {
		writeErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, m)
}
