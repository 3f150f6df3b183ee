package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"

	"github.com/palompy/gatekeeper/internal/auth"
	"github.com/palompy/gatekeeper/internal/models"
	"github.com/palompy/gatekeeper/pkg/logger"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func discardAudit() *logger.AuditLogger {
	return logger.NewAuditLogger(discardLogger())
}

func withUser(r *http.Request, userID int64) *http.Request {
	user := &models.AuthenticatedUser{UserID: userID, Token: "tok"}
	return r.WithContext(context.WithValue(r.Context(), auth.UserContextKey, user))
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func serve(h http.Handler, r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}
