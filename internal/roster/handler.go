package roster

import (
	"context"
	"net/http"

	"github.com/YLF-Cat/man-eating-tree-offline/internal/app/apiresp"
)

type Handler struct {
	svc rosterService
}

type rosterService interface {
	EnsureSeeds(ctx context.Context) (int, error)
	ListSeeds(ctx context.Context) ([]Seed, error)
	ListStudents(ctx context.Context) ([]Student, error)
}

func NewHandler(svc rosterService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) ListSeeds(w http.ResponseWriter, r *http.Request) {
	seeds, err := h.svc.ListSeeds(r.Context())
	if err != nil {
		apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, seeds)
}

func (h *Handler) EnsureSeeds(w http.ResponseWriter, r *http.Request) {
	created, err := h.svc.EnsureSeeds(r.Context())
	if err != nil {
		apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, map[string]int{"created": created})
}

func (h *Handler) ListStudents(w http.ResponseWriter, r *http.Request) {
	students, err := h.svc.ListStudents(r.Context())
	if err != nil {
		apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, students)
}
