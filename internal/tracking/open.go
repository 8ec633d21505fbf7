package tracking

import (
	"fmt"
	"strings"
)

// DefaultURI is where a locally started `mlflow server` listens.
const DefaultURI = "http://localhost:5000"

// Open picks a backend from an MLflow-style tracking URI:
// http(s)://host:port for a tracking server, sqlite:///path for a SQL store
// (sqlite:////abs/path for an absolute path).
func Open(uri string, auth Auth) (Backend, error) {
	switch {
	case uri == "":
		return NewRESTBackend(DefaultURI, auth), nil
	case strings.HasPrefix(uri, "http://"), strings.HasPrefix(uri, "https://"):
		return NewRESTBackend(uri, auth), nil
	case strings.HasPrefix(uri, "sqlite:///"):
		return NewSQLBackend(strings.TrimPrefix(uri, "sqlite:///"))
	}
	return nil, fmt.Errorf("unsupported tracking uri %q (want http, https or sqlite)", uri)
}
