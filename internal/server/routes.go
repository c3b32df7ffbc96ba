package server

import (
	"net/http"
)

func SetupRoutes(extractionHandler *ExtractionService) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/pa", extractionHandler.ExtractPA)

	return mux
}
