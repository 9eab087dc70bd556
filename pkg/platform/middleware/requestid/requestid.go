package requestid

import (
	"net/http"

	"github.com/google/uuid"

	"reliefpool/pkg/requestcontext"
)

// Header carries the correlation ID between services and into responses.
const Header = "X-Request-Id"

// RequestID assigns a correlation ID to every request, honoring one supplied
// by an upstream proxy, and echoes it on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(Header)
		if id == "" {
			id = uuid.NewString()
		}

		w.Header().Set(Header, id)
		ctx := requestcontext.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
