package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/YLF-Cat/man-eating-tree-offline/internal/app/apiresp"
	"github.com/YLF-Cat/man-eating-tree-offline/internal/preset"
	"github.com/YLF-Cat/man-eating-tree-offline/internal/roster"
)

type Handler struct {
	svc     quizService
	presets presetCatalog
}

type quizService interface {
	Publish(ctx context.Context, in PublishInput) (*Question, error)
	Settle(ctx context.Context) (*Question, error)
	EditOptions(ctx context.Context, qid int64, replacements, appends []string) (*Question, error)
	ActiveQuestion(ctx context.Context) (*Question, error)
	QuestionByID(ctx context.Context, qid int64) (*Question, error)
	History(ctx context.Context) ([]Question, error)
	Submit(ctx context.Context, raw string) (*SubmitResult, error)
	DeleteAnswer(ctx context.Context, qid int64, sid int) error
	Stats(ctx context.Context, qid int64) (*Stats, error)
	Results(ctx context.Context, qid int64) (*Results, error)
	ScoreOption(ctx context.Context, qid int64, idx int, delta float64) (*ScoreOutcome, error)
	ScoreStudent(ctx context.Context, qid int64, sid int, delta float64) (*ScoreOutcome, error)
	ScoreOptionLottery(ctx context.Context, qid int64, idx int, p, deltaWin, deltaLose float64) (*LotteryOutcome, error)
}

type presetCatalog interface {
	List() ([]preset.Preset, error)
	Find(id string) (preset.Preset, error)
}

type response struct {
	OK    bool        `json:"ok"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

type publishRequest struct {
	PresetID string   `json:"preset_id"`
	Content  string   `json:"content"`
	Options  []string `json:"options"`
}

type submitRequest struct {
	Code string `json:"code"`
}

type editOptionsRequest struct {
	Replacements []string `json:"replacements"`
	Appends      []string `json:"appends"`
}

type scoreOptionRequest struct {
	OptionIndex int     `json:"option_index"`
	Delta       float64 `json:"delta"`
}

type scoreStudentRequest struct {
	SID   int     `json:"sid"`
	Delta float64 `json:"delta"`
}

type scoreLotteryRequest struct {
	OptionIndex int     `json:"option_index"`
	ProbPercent float64 `json:"prob_percent"`
	DeltaWin    float64 `json:"delta_win"`
	DeltaLose   float64 `json:"delta_lose"`
}

func NewHandler(svc quizService, presets presetCatalog) *Handler {
	return &Handler{svc: svc, presets: presets}
}

func (h *Handler) ListPresets(w http.ResponseWriter, r *http.Request) {
	items, err := h.presets.List()
	if err != nil {
		writeJSON(w, r, http.StatusInternalServerError, response{OK: false, Error: "internal error"})
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: items})
}

// Publish opens a new question, either from the preset catalog or ad hoc.
func (h *Handler) Publish(w http.ResponseWriter, r *http.Request) {
	var req publishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid request body"})
		return
	}

	in := PublishInput{Content: req.Content, Options: req.Options}
	if id := strings.TrimSpace(req.PresetID); id != "" {
		p, err := h.presets.Find(id)
		if err != nil {
			if errors.Is(err, preset.ErrNotFound) {
				writeJSON(w, r, http.StatusNotFound, response{OK: false, Error: "preset not found"})
				return
			}
			writeJSON(w, r, http.StatusInternalServerError, response{OK: false, Error: "internal error"})
			return
		}
		in = PublishInput{PresetID: p.ID, Content: p.Content, Options: p.Options}
	}

	q, err := h.svc.Publish(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, response{OK: true, Data: q})
}

func (h *Handler) Settle(w http.ResponseWriter, r *http.Request) {
	q, err := h.svc.Settle(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: q})
}

func (h *Handler) Active(w http.ResponseWriter, r *http.Request) {
	q, err := h.svc.ActiveQuestion(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: q})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	qid, ok := questionID(w, r)
	if !ok {
		return
	}
	q, err := h.svc.QuestionByID(r.Context(), qid)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: q})
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.History(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: items})
}

func (h *Handler) EditOptions(w http.ResponseWriter, r *http.Request) {
	qid, ok := questionID(w, r)
	if !ok {
		return
	}
	var req editOptionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid request body"})
		return
	}
	q, err := h.svc.EditOptions(r.Context(), qid, req.Replacements, req.Appends)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: q})
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid request body"})
		return
	}
	res, err := h.svc.Submit(r.Context(), req.Code)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, response{OK: true, Data: res})
}

func (h *Handler) DeleteAnswer(w http.ResponseWriter, r *http.Request) {
	qid, ok := questionID(w, r)
	if !ok {
		return
	}
	sid, err := strconv.Atoi(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid sid"})
		return
	}
	if err := h.svc.DeleteAnswer(r.Context(), qid, sid); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true})
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	qid, ok := questionID(w, r)
	if !ok {
		return
	}
	st, err := h.svc.Stats(r.Context(), qid)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: st})
}

func (h *Handler) Results(w http.ResponseWriter, r *http.Request) {
	qid, ok := questionID(w, r)
	if !ok {
		return
	}
	res, err := h.svc.Results(r.Context(), qid)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: res})
}

func (h *Handler) ScoreOption(w http.ResponseWriter, r *http.Request) {
	qid, ok := questionID(w, r)
	if !ok {
		return
	}
	var req scoreOptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid request body"})
		return
	}
	out, err := h.svc.ScoreOption(r.Context(), qid, req.OptionIndex, req.Delta)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: out})
}

func (h *Handler) ScoreStudent(w http.ResponseWriter, r *http.Request) {
	qid, ok := questionID(w, r)
	if !ok {
		return
	}
	var req scoreStudentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid request body"})
		return
	}
	out, err := h.svc.ScoreStudent(r.Context(), qid, req.SID, req.Delta)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: out})
}

func (h *Handler) ScoreLottery(w http.ResponseWriter, r *http.Request) {
	qid, ok := questionID(w, r)
	if !ok {
		return
	}
	var req scoreLotteryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid request body"})
		return
	}
	out, err := h.svc.ScoreOptionLottery(r.Context(), qid, req.OptionIndex, req.ProbPercent/100.0, req.DeltaWin, req.DeltaLose)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: out})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrQuestionNotFound), errors.Is(err, ErrAnswerNotFound):
		writeJSON(w, r, http.StatusNotFound, response{OK: false, Error: err.Error()})
	case errors.Is(err, ErrDuplicateSubmission), errors.Is(err, ErrQuestionSettled):
		writeJSON(w, r, http.StatusConflict, response{OK: false, Error: err.Error()})
	case errors.Is(err, ErrNoActiveQuestion),
		errors.Is(err, ErrMalformedCipher),
		errors.Is(err, ErrSuffixOutOfRange),
		errors.Is(err, ErrOptionIndexOutOfRange),
		errors.Is(err, ErrOptionShrink),
		errors.Is(err, ErrInvalidOptions),
		errors.Is(err, roster.ErrSIDOutOfRange),
		errors.Is(err, roster.ErrUnknownSeed):
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: err.Error()})
	default:
		writeJSON(w, r, http.StatusInternalServerError, response{OK: false, Error: "internal error"})
	}
}

func questionID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	qid, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || qid <= 0 {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid question id"})
		return 0, false
	}
	return qid, true
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, payload response) {
	if payload.OK {
		apiresp.WriteOK(w, r, code, payload.Data)
		return
	}
	apiresp.WriteError(w, r, code, payload.Error)
}
