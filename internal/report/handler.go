package report

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/YLF-Cat/man-eating-tree-offline/internal/app/apiresp"
	"github.com/YLF-Cat/man-eating-tree-offline/internal/quiz"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Scoreboard(w http.ResponseWriter, r *http.Request) {
	data, err := h.svc.ScoreboardXLSX(r.Context())
	if err != nil {
		apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="scoreboard.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) Question(w http.ResponseWriter, r *http.Request) {
	qid, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || qid <= 0 {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid question id")
		return
	}

	data, err := h.svc.QuestionXLSX(r.Context(), qid)
	if err != nil {
		if errors.Is(err, quiz.ErrQuestionNotFound) {
			apiresp.WriteError(w, r, http.StatusNotFound, err.Error())
			return
		}
		apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="question-%d.xlsx"`, qid))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
