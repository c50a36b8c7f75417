package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"channeld/pkg/auth"
	"channeld/pkg/channels"
	"channeld/pkg/utils"
)

// RegisterChannels registers the channel routes onto the authenticated
// subrouter.
func RegisterChannels(r *mux.Router) {
	r.HandleFunc("/channels", listChannels).Methods(http.MethodGet)
	r.HandleFunc("/channels", createChannel).Methods(http.MethodPost)

	// GET on a channel returns its recent messages; POST appends one.
	r.HandleFunc("/channels/{id:[0-9]+}", getChannelMessages).Methods(http.MethodGet)
	r.HandleFunc("/channels/{id:[0-9]+}", postChannelMessage).Methods(http.MethodPost)
	r.HandleFunc("/channels/{id:[0-9]+}", updateChannel).Methods(http.MethodPatch)
	r.HandleFunc("/channels/{id:[0-9]+}", deleteChannel).Methods(http.MethodDelete)

	r.HandleFunc("/channels/{id:[0-9]+}/members", addChannelMember).Methods(http.MethodPost)
	r.HandleFunc("/channels/{id:[0-9]+}/members", removeChannelMember).Methods(http.MethodDelete)
}

// pathID parses the {id} route variable. Routes constrain it to digits, so
// a parse failure only happens on overflow.
func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id, err == nil
}

type createChannelRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Private     bool    `json:"private"`
	Members     []int64 `json:"members"`
}

func createChannel(w http.ResponseWriter, r *http.Request) {
	ident, err := auth.IdentityFromContext(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	var req createChannelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	ch, err := channels.Create(ident, req.Name, req.Description, req.Private, req.Members)
	if err != nil {
		writeErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusCreated, ch)
}

func listChannels(w http.ResponseWriter, r *http.Request) {
	ident, err := auth.IdentityFromContext(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	chs, err := channels.ListVisible(ident)
	if err != nil {
		writeErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, chs)
}

func getChannelMessages(w http.ResponseWriter, r *http.Request) {
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
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		limit, _ = strconv.Atoi(s)
	}
	msgs, err := channels.Messages(ident, chID, limit)
	if err != nil {
		writeErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, msgs)
}

type updateChannelRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func updateChannel(w http.ResponseWriter, r *http.Request) {
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
	var req updateChannelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	ch, err := channels.Update(ident, chID, req.Name, req.Description)
	if err != nil {
		writeErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, ch)
}

func deleteChannel(w http.ResponseWriter, r *http.Request) {
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
	if err := channels.Delete(ident, chID); err != nil {
		writeErr(w, err)
		return
	}
	utils.JSONStatus(w, http.StatusOK, "deleted")
}

type memberRequest struct {
	ID int64 `json:"id"`
}

func addChannelMember(w http.ResponseWriter, r *http.Request) {
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
	var req memberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == 0 {
		utils.JSONError(w, http.StatusBadRequest, "member id required")
		return
	}
	ch, err := channels.AddMember(ident, chID, req.ID)
	if err != nil {
		writeErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusCreated, ch)
}

func removeChannelMember(w http.ResponseWriter, r *http.Request) {
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
	var req memberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == 0 {
		utils.JSONError(w, http.StatusBadRequest, "member id required")
		return
	}
	ch, err := channels.RemoveMember(ident, chID, req.ID)
	if err != nil {
		writeErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, ch)
}
