package api

import (
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
)

func decodeJSON(r *http.Request, dst any) error {
	defer func() { _, _ = io.Copy(io.Discard, r.Body) }()
	return json.NewDecoder(r.Body).Decode(dst)
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
