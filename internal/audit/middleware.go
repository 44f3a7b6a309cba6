package audit

import (
	"context"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/crm-quotes/internal/common"
)

// HTTPRecorder records quote requests after they have been handled.
type HTTPRecorder struct {
	Service *Service
	OnError func(error)
}

// Middleware records action for every request it wraps. The quote id comes from the
// {id} route parameter, or from the Location header a creation responds with.
func (r HTTPRecorder) Middleware(action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if r.Service == nil || !r.Service.Enabled {
				next.ServeHTTP(w, req)
				return
			}
			recorder := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(recorder, req)

			quoteID := chi.URLParam(req, "id")
			if quoteID == "" {
				if loc := recorder.Header().Get("Location"); loc != "" {
					quoteID = path.Base(loc)
				}
			}
			actor, _ := common.UserID(req.Context())
			// The request context may already be cancelled once the client has its response.
			ctx := context.WithoutCancel(req.Context())
			if err := r.Service.Record(ctx, actor, action, quoteID, req, recorder.Status()); err != nil && r.OnError != nil {
				r.OnError(err)
			}
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.ResponseWriter.Write(b)
}

func (s *statusRecorder) Status() int {
	if s.status == 0 {
		return http.StatusOK
	}
	return s.status
}
