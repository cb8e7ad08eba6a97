package swagger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/smartystreets/goconvey/convey"
)

func serve(mux *http.ServeMux, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(method, path, http.NoBody))
	return w
}

func TestRegister(t *testing.T) {
	convey.Convey("Given a mux with the docs routes", t, func() {
		mux := http.NewServeMux()
		Register(context.Background(), mux)

		convey.Convey("Then the OpenAPI document is served as YAML", func() {
			w := serve(mux, http.MethodGet, "/openapi.yaml")
			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			convey.So(w.Header().Get("Content-Type"), convey.ShouldEqual, "application/yaml; charset=utf-8")
			convey.So(w.Body.Bytes(), convey.ShouldResemble, OpenAPI)
		})

		convey.Convey("Then the ReDoc page points at the document", func() {
			w := serve(mux, http.MethodGet, "/api-docs")
			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			convey.So(w.Header().Get("Content-Type"), convey.ShouldEqual, "text/html; charset=utf-8")
			convey.So(w.Body.String(), convey.ShouldContainSubstring, "redoc-container")
			convey.So(w.Body.String(), convey.ShouldContainSubstring, RedocURL)
			convey.So(w.Body.String(), convey.ShouldContainSubstring, "'/openapi.yaml'")
		})

		convey.Convey("Then writes are not routed", func() {
			convey.So(serve(mux, http.MethodPost, "/openapi.yaml").Code, convey.ShouldEqual, http.StatusNotFound)
			convey.So(serve(mux, http.MethodPut, "/api-docs").Code, convey.ShouldEqual, http.StatusNotFound)
		})
	})

	convey.Convey("Given a nil mux", t, func() {
		convey.So(func() { Register(context.Background(), nil) }, convey.ShouldPanic)
	})
}

func TestOpenAPIDocument(t *testing.T) {
	convey.Convey("Given the embedded document", t, func() {
		doc, err := yaml.Parser().Unmarshal(OpenAPI)
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("Then it is OpenAPI 3", func() {
			convey.So(doc["openapi"], convey.ShouldEqual, "3.0.3")
		})

		convey.Convey("Then every served route is documented", func() {
			paths, ok := doc["paths"].(map[string]interface{})
			convey.So(ok, convey.ShouldBeTrue)
			for _, p := range []string{"/predictions", "/predictions/{run_id}", "/stats", "/healthz"} {
				convey.So(paths, convey.ShouldContainKey, p)
			}
		})

		convey.Convey("Then the run request schema lists its required fields", func() {
			components := doc["components"].(map[string]interface{})
			schemas := components["schemas"].(map[string]interface{})
			req := schemas["RunRequest"].(map[string]interface{})
			convey.So(req["required"], convey.ShouldResemble, []interface{}{"year", "round"})
		})
	})
}
