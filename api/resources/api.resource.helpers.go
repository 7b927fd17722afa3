package resources

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/schema"
	"github.com/hydrozen/leakwatch/api/middleware"
	"github.com/hydrozen/leakwatch/internal/errors"
	nuts "github.com/vaudience/go-nuts"
)

var queryDecoder = newQueryDecoder()

func newQueryDecoder() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}

// limitQuery is shared by the feed endpoints
type limitQuery struct {
	Limit int `schema:"limit"`
}

func decodeQuery(dst interface{}, r *http.Request) error {
	if err := queryDecoder.Decode(dst, r.URL.Query()); err != nil {
		return errors.NewValidationError("invalid query parameters", err)
	}
	return nil
}

func currentUser(r *http.Request) (*middleware.UserContext, error) {
	user := middleware.UserFromContext(r.Context())
	if user == nil || user.ID == "" {
		return nil, errors.NewAuthError("user not authenticated", nil)
	}
	return user, nil
}

func versionString() string {
	return nuts.GetVersion()
}

func respondWithError(w http.ResponseWriter, err error, requestID string) {
	apiErr := errors.AsAPIError(err).WithRequestID(requestID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.Code)
	json.NewEncoder(w).Encode(apiErr)
	if apiErr.Code >= http.StatusInternalServerError {
		nuts.L.Errorf("[API] %s", apiErr.Error())
		return
	}
	nuts.L.Warnf("[API] %s", apiErr.Error())
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}
