package web

import (
	"io/fs"
	"net/http"
	"strings"
)

type RequestFunc func(request *http.Request, simulatedDelay int) *Response

// Handler adapts a RequestFunc to http.Handler.
type Handler struct {
	Request        RequestFunc
	SimulatedDelay int
}

func (instance Handler) ServeHTTP(responseWriter http.ResponseWriter, request *http.Request) {
	instance.Request(request, instance.SimulatedDelay).Write(responseWriter)
}

// StaticHandler serves the files below root of assets under urlPrefix. Directory requests get defaultFile.
func StaticHandler(assets fs.FS, root string, urlPrefix string, defaultFile string) (http.Handler, error) {
	subtree, err := fs.Sub(assets, root)
	if err != nil {
		return nil, err
	}
	fileServer := http.FileServerFS(subtree)

	return http.StripPrefix(urlPrefix, http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		if request.URL.Path == "" || strings.HasSuffix(request.URL.Path, "/") {
			http.ServeFileFS(responseWriter, request, subtree, defaultFile)
			return
		}
		fileServer.ServeHTTP(responseWriter, request)
	})), nil
}
