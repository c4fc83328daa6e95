package handler

import (
	"net/http"

	"github.com/mcoot/lessonprogress/internal/api/response"
	"github.com/mcoot/lessonprogress/internal/model"
)

// Layout handles GET /api/v1/layout
func Layout(layout model.Layout) http.HandlerFunc {
	body := response.LayoutFromModel(layout)
	return func(w http.ResponseWriter, _ *http.Request) {
		response.JSON(w, http.StatusOK, body)
	}
}

// Health handles GET /api/v1/health
func Health(w http.ResponseWriter, _ *http.Request) {
	response.JSON(w, http.StatusOK, response.Health{Status: "ok"})
}
