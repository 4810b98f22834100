package api

import (
	_ "embed"
	"net/http"
	"sync"

	"sigs.k8s.io/yaml"
)

//go:embed openapi.yaml
var openAPIYAML []byte

var (
	openAPIJSON    []byte
	openAPIJSONErr error
	openAPIOnce    sync.Once
)

// OpenAPIHandler serves the embedded OpenAPI document as JSON. The YAML is
// converted once on first request.
func OpenAPIHandler(env string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		openAPIOnce.Do(func() {
			openAPIJSON, openAPIJSONErr = yaml.YAMLToJSON(openAPIYAML)
		})

		if openAPIJSONErr != nil {
			writeProblem(w, r, http.StatusInternalServerError, "OpenAPI document unavailable", openAPIJSONErr, env)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(openAPIJSON)
	}
}
