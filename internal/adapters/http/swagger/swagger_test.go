package swagger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestRegister(t *testing.T) {
	Convey("Given a mux with the docs registered", t, func() {
		mux := http.NewServeMux()
		Register(context.Background(), mux)

		get := func(path string) *httptest.ResponseRecorder {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, http.NoBody))
			return rec
		}

		Convey("The OpenAPI document describes the stream endpoint", func() {
			rec := get("/openapi.yaml")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Header().Get("Content-Type"), ShouldEqual, "application/yaml; charset=utf-8")
			So(rec.Body.String(), ShouldContainSubstring, "/correlate:")
			So(rec.Body.String(), ShouldContainSubstring, "application/x-ndjson")
		})

		Convey("The docs page loads the document", func() {
			rec := get("/api-docs")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Header().Get("Content-Type"), ShouldEqual, "text/html; charset=utf-8")
			So(rec.Body.String(), ShouldContainSubstring, "Redoc.init('/openapi.yaml'")
		})
	})

	Convey("A nil mux is a programming error", t, func() {
		So(func() { Register(context.Background(), nil) }, ShouldPanic)
	})
}
