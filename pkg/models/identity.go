package models

// Identity is the authenticated user attached to a request by the upstream
// gateway. The core never mutates it; the fields mirror the gateway's
// X-User JSON exactly.
type Identity struct {
	ID        int64  `json:"id"`
	UserName  string `json:"userName"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	PhotoURL  string `json:"photoURL"`
}
