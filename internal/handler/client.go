package handler

import (
	"net/http"

	"github.com/xenking/storefront-checkout/pkg/httpmiddleware"
)

// SessionHeader carries the opaque checkout session id.
const SessionHeader = "X-Session-ID"

// ClientID identifies the caller for locking and rate limiting: the session
// id when a valid one is sent, otherwise the client IP. session reports
// which of the two was used.
func ClientID(r *http.Request) (id string, session bool) {
	if s := r.Header.Get(SessionHeader); httpmiddleware.ValidToken(s) {
		return s, true
	}
	return httpmiddleware.ClientIP(r), false
}
