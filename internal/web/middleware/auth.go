package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/JonMunkholm/listingest/internal/core"
	"github.com/JonMunkholm/listingest/internal/logging"
)

// OwnerHeader names the caller when API key auth is disabled.
const OwnerHeader = "X-Owner-ID"

// APIKeyAuth resolves the caller's owner id and stores it in the request
// context with core.ContextWithOwnerID.
//
// owners maps API keys to owner ids. When required is true a valid X-API-Key
// is mandatory. When it is false a valid key still identifies the caller,
// otherwise X-Owner-ID is used, falling back to core.AnonymousOwner.
func APIKeyAuth(required bool, owners map[string]string) func(http.Handler) http.Handler {
	keys := make([][]byte, 0, len(owners))
	ids := make([]string, 0, len(owners))
	for key, owner := range owners {
		keys = append(keys, []byte(key))
		ids = append(ids, owner)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := logging.FromContext(r.Context())
			apiKey := r.Header.Get("X-API-Key")

			var owner string
			switch {
			case apiKey != "":
				var ok bool
				owner, ok = lookupOwner([]byte(apiKey), keys, ids)
				if !ok {
					logger.Warn("auth: invalid API key",
						"path", r.URL.Path,
						"method", r.Method,
						"remote_addr", r.RemoteAddr,
					)
					writeAuthError(w, http.StatusForbidden, "invalid API key", "AUTH002")
					return
				}
			case required:
				logger.Warn("auth: missing API key",
					"path", r.URL.Path,
					"method", r.Method,
					"remote_addr", r.RemoteAddr,
				)
				writeAuthError(w, http.StatusUnauthorized, "missing API key", "AUTH001")
				return
			default:
				owner = r.Header.Get(OwnerHeader)
			}

			if owner == "" {
				owner = core.AnonymousOwner
			}
			SetOwner(w, owner)
			next.ServeHTTP(w, r.WithContext(core.ContextWithOwnerID(r.Context(), owner)))
		})
	}
}

// lookupOwner compares key against every configured key in constant time,
// so the time taken does not depend on which key matched.
func lookupOwner(key []byte, keys [][]byte, owners []string) (string, bool) {
	match := -1
	for i, k := range keys {
		if subtle.ConstantTimeCompare(key, k) == 1 {
			match = i
		}
	}
	if match < 0 {
		return "", false
	}
	return owners[match], true
}

func writeAuthError(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"message": message,
		"details": map[string]string{"code": code},
	})
}
