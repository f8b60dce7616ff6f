package http

import (
	"net/http"
)

// IsReachableStatusCode reports whether a probe response proves the remote
// host is reachable. Redirects and 403 count: the host answered.
func IsReachableStatusCode(resp *http.Response) bool {
	switch resp.StatusCode {
	case http.StatusOK, http.StatusMovedPermanently, http.StatusFound, http.StatusForbidden:
		return true
	}
	return false
}
