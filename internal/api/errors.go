package api

import (
	"errors"

	"github.com/tmoreau/marginalia/internal/query"
)

// writeError maps a query.Error's Kind to the HTTP status/body it implies;
// anything else is treated as an internal error.
func writeError(rw *ResponseWriter, err error) {
	var qe *query.Error
	if errors.As(err, &qe) {
		switch qe.Kind {
		case query.ErrNotFound:
			rw.NotFound(qe.Err.Error())
		case query.ErrBadRequest:
			rw.BadRequest(qe.Err.Error())
		case query.ErrStoreUnavailable, query.ErrEmbeddingUnavailable:
			rw.ServiceUnavailable(qe.Err.Error())
		default:
			rw.InternalError(qe.Err.Error())
		}
		return
	}
	rw.InternalError(err.Error())
}
