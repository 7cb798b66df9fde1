package quiz

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/YLF-Cat/man-eating-tree-offline/internal/roster"
)

// Option lists never grow past ten entries; the cipher's two-digit suffix
// depends on that bound.
const MaxOptions = 10

var (
	ErrNoActiveQuestion      = errors.New("no active question")
	ErrQuestionSettled       = errors.New("question already settled")
	ErrQuestionNotFound      = errors.New("question not found")
	ErrMalformedCipher       = errors.New("cipher must be decimal digits")
	ErrSuffixOutOfRange      = errors.New("cipher suffix must be 01..99")
	ErrOptionIndexOutOfRange = errors.New("option index out of range")
	ErrDuplicateSubmission   = errors.New("student already answered this question")
	ErrAnswerNotFound        = errors.New("no answer for student on this question")
	ErrOptionShrink          = errors.New("option list may not shrink")
	ErrInvalidOptions        = errors.New("question needs 1 to 10 non-blank options")
)

type Question struct {
	ID        int64      `json:"id"`
	PresetID  string     `json:"preset_id,omitempty"`
	Content   string     `json:"content"`
	Options   []string   `json:"options"`
	Active    bool       `json:"active"`
	CreatedAt time.Time  `json:"created_at"`
	SettledAt *time.Time `json:"settled_at,omitempty"`
}

type Answer struct {
	ID          int64     `json:"id"`
	SID         int       `json:"sid"`
	QuestionID  int64     `json:"question_id"`
	OptionIndex int       `json:"option_index"`
	Cipher      int64     `json:"cipher"`
	SubmittedAt time.Time `json:"submitted_at"`
	ScoreDelta  float64   `json:"score_delta"`
}

type PublishInput struct {
	PresetID string   `json:"preset_id,omitempty"`
	Content  string   `json:"content"`
	Options  []string `json:"options"`
}

type SubmitResult struct {
	SID           int       `json:"sid"`
	OptionIndex   int       `json:"option_index"`
	OptionText    string    `json:"option_text"`
	AnsweredCount int       `json:"answered_count"`
	MissingCount  int       `json:"missing_count"`
	SubmittedAt   time.Time `json:"submitted_at"`
}

// Stats is derived fresh from the ledger on every call; it holds no state of
// its own and is therefore always consistent with stored answers.
type Stats struct {
	Options       []string      `json:"options"`
	ByOption      map[int][]int `json:"by_option"`
	AnsweredCount int           `json:"answered_count"`
	Missing       []int         `json:"missing"`
}

type ResultGroup struct {
	Index   int      `json:"index"`
	Text    string   `json:"text"`
	Count   int      `json:"count"`
	Answers []Answer `json:"answers"`
}

type Results struct {
	Question      Question      `json:"question"`
	ByOption      []ResultGroup `json:"by_option"`
	Missing       []int         `json:"missing"`
	AnsweredCount int           `json:"answered_count"`
}

// Rand supplies the lottery draws; *math/rand.Rand satisfies it. Injected so
// tests can pin outcomes.
type Rand interface {
	Float64() float64
}

type Service struct {
	db    *sql.DB
	seeds seedSource
	rng   Rand
}

type seedSource interface {
	SeedFor(ctx context.Context, sid int) (int, error)
}

func NewService(db *sql.DB, seeds *roster.Service, rng Rand) *Service {
	return &Service{db: db, seeds: seeds, rng: rng}
}

// questionRow is the raw persisted shape; options live as a JSON string list.
type questionRow struct {
	ID          int64
	PresetID    sql.NullString
	Content     string
	OptionsJSON string
	Active      bool
	CreatedAt   int64
	SettledAt   sql.NullInt64
}

func (r *questionRow) toQuestion() (Question, error) {
	q := Question{
		ID:        r.ID,
		PresetID:  r.PresetID.String,
		Content:   r.Content,
		Active:    r.Active,
		CreatedAt: time.Unix(r.CreatedAt, 0),
	}
	if r.SettledAt.Valid {
		t := time.Unix(r.SettledAt.Int64, 0)
		q.SettledAt = &t
	}
	if err := json.Unmarshal([]byte(r.OptionsJSON), &q.Options); err != nil {
		return Question{}, fmt.Errorf("decode options json: %w", err)
	}
	return q, nil
}

// Publish atomically deactivates whatever question is live and opens a new
// one. This is the only path that clears the active flag, so the end state
// can never show two actives.
func (s *Service) Publish(ctx context.Context, in PublishInput) (*Question, error) {
	content := strings.TrimSpace(in.Content)
	options := cleanOptions(in.Options)
	if content == "" || len(options) < 1 || len(options) > MaxOptions {
		return nil, ErrInvalidOptions
	}

	optionsJSON, err := json.Marshal(options)
	if err != nil {
		return nil, fmt.Errorf("encode options: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin publish tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		UPDATE questions SET is_active = FALSE WHERE is_active = TRUE
	`); err != nil {
		return nil, fmt.Errorf("deactivate previous question: %w", err)
	}

	var presetID interface{}
	if p := strings.TrimSpace(in.PresetID); p != "" {
		presetID = p
	}

	var id int64
	if err := tx.QueryRowContext(ctx, `
		INSERT INTO questions (preset_id, content, options_json, is_active, created_at, settled_at)
		VALUES ($1, $2, $3, TRUE, $4, NULL)
		RETURNING id
	`, presetID, content, string(optionsJSON), time.Now().Unix()).Scan(&id); err != nil {
		return nil, fmt.Errorf("insert question: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit publish: %w", err)
	}

	return s.QuestionByID(ctx, id)
}

// Settle freezes the submission window of the active question. The question
// stays active so it remains "the question that was last opened"; only the
// settle timestamp marks the freeze. Settling twice is rejected to keep that
// timestamp stable.
func (s *Service) Settle(ctx context.Context) (*Question, error) {
	q, err := s.ActiveQuestion(ctx)
	if err != nil {
		return nil, err
	}
	if q.SettledAt != nil {
		return nil, ErrQuestionSettled
	}

	if _, err := s.db.ExecContext(ctx, `
		UPDATE questions SET settled_at = $1 WHERE id = $2 AND settled_at IS NULL
	`, time.Now().Unix(), q.ID); err != nil {
		return nil, fmt.Errorf("settle question: %w", err)
	}

	return s.QuestionByID(ctx, q.ID)
}

// EditOptions rewrites option texts and appends new trailing options.
// Indices already referenced by stored answers must stay valid, so the list
// may only grow: a blank replacement keeps the old text, appends are capped
// at MaxOptions, and any resulting shrink below the current length or below
// the highest referenced index rejects the whole edit.
func (s *Service) EditOptions(ctx context.Context, qid int64, replacements, appends []string) (*Question, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin edit tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row, err := loadQuestionRow(ctx, tx, qid)
	if err != nil {
		return nil, err
	}
	q, err := row.toQuestion()
	if err != nil {
		return nil, err
	}

	next := make([]string, len(q.Options))
	copy(next, q.Options)
	for i := 0; i < len(next) && i < len(replacements); i++ {
		if t := strings.TrimSpace(replacements[i]); t != "" {
			next[i] = t
		}
	}
	for _, a := range appends {
		if len(next) >= MaxOptions {
			break
		}
		if t := strings.TrimSpace(a); t != "" {
			next = append(next, t)
		}
	}

	if len(next) < len(q.Options) {
		return nil, ErrOptionShrink
	}

	var maxUsed sql.NullInt64
	if err := tx.QueryRowContext(ctx, `
		SELECT MAX(option_index) FROM answers WHERE question_id = $1
	`, qid).Scan(&maxUsed); err != nil {
		return nil, fmt.Errorf("query max used option: %w", err)
	}
	if maxUsed.Valid && int(maxUsed.Int64) > len(next) {
		return nil, ErrOptionShrink
	}

	optionsJSON, err := json.Marshal(next)
	if err != nil {
		return nil, fmt.Errorf("encode options: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE questions SET options_json = $1 WHERE id = $2
	`, string(optionsJSON), qid); err != nil {
		return nil, fmt.Errorf("update options: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit edit: %w", err)
	}

	return s.QuestionByID(ctx, qid)
}

func (s *Service) ActiveQuestion(ctx context.Context) (*Question, error) {
	row := &questionRow{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, preset_id, content, options_json, is_active, created_at, settled_at
		FROM questions
		WHERE is_active = TRUE
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`).Scan(&row.ID, &row.PresetID, &row.Content, &row.OptionsJSON, &row.Active, &row.CreatedAt, &row.SettledAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoActiveQuestion
	}
	if err != nil {
		return nil, fmt.Errorf("load active question: %w", err)
	}
	q, err := row.toQuestion()
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (s *Service) QuestionByID(ctx context.Context, qid int64) (*Question, error) {
	row, err := loadQuestionRow(ctx, s.db, qid)
	if err != nil {
		return nil, err
	}
	q, err := row.toQuestion()
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// History lists every question ever published, newest first.
func (s *Service) History(ctx context.Context) ([]Question, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, preset_id, content, options_json, is_active, created_at, settled_at
		FROM questions
		ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	out := make([]Question, 0)
	for rows.Next() {
		row := &questionRow{}
		if err := rows.Scan(&row.ID, &row.PresetID, &row.Content, &row.OptionsJSON, &row.Active, &row.CreatedAt, &row.SettledAt); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		q, err := row.toQuestion()
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return out, nil
}

// Submit decodes a raw cipher against the active question and records the
// answer. The dedup check and insert are one atomic statement: of two racing
// submissions for the same (sid, question), exactly one row lands and the
// other caller gets ErrDuplicateSubmission.
func (s *Service) Submit(ctx context.Context, raw string) (*SubmitResult, error) {
	q, err := s.ActiveQuestion(ctx)
	if err != nil {
		return nil, err
	}
	if q.SettledAt != nil {
		return nil, ErrQuestionSettled
	}

	cipher, err := ParseCipher(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}

	sid, idx, err := s.decode(ctx, cipher, q)
	if err != nil {
		return nil, err
	}

	now := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin submit tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := roster.EnsureStudent(ctx, tx, sid); err != nil {
		return nil, err
	}

	if err := insertAnswer(ctx, tx, q.ID, sid, idx, cipher, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit submit: %w", err)
	}

	stats, err := s.Stats(ctx, q.ID)
	if err != nil {
		return nil, err
	}

	return &SubmitResult{
		SID:           sid,
		OptionIndex:   idx,
		OptionText:    q.Options[idx-1],
		AnsweredCount: stats.AnsweredCount,
		MissingCount:  len(stats.Missing),
		SubmittedAt:   now,
	}, nil
}

// insertAnswer records one answer if the question is still open. The settle
// check is part of the INSERT itself, so a settle committing after the
// question was loaded still blocks the write. When the statement inserts
// nothing, an existing row means a duplicate, otherwise the window closed.
func insertAnswer(ctx context.Context, q roster.DBTX, qid int64, sid, idx int, cipher int64, at time.Time) error {
	res, err := q.ExecContext(ctx, `
		INSERT INTO answers (sid, question_id, option_index, cipher, submitted_at, score_delta)
		SELECT $1, $2, $3, $4, $5, 0
		WHERE EXISTS (SELECT 1 FROM questions WHERE id = $2 AND settled_at IS NULL)
		ON CONFLICT (sid, question_id) DO NOTHING
	`, sid, qid, idx, cipher, at.Unix())
	if err != nil {
		return fmt.Errorf("insert answer: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}

	var existing int
	if err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM answers WHERE sid = $1 AND question_id = $2
	`, sid, qid).Scan(&existing); err != nil {
		return fmt.Errorf("classify rejected answer: %w", err)
	}
	if existing > 0 {
		return ErrDuplicateSubmission
	}
	return ErrQuestionSettled
}

// decode is a pure read: no side effects on any failure path.
func (s *Service) decode(ctx context.Context, cipher int64, q *Question) (int, int, error) {
	sid, suffix := splitCipher(cipher)
	if err := checkSID(sid); err != nil {
		return 0, 0, err
	}
	if err := checkSuffix(suffix); err != nil {
		return 0, 0, err
	}
	offset, err := s.seeds.SeedFor(ctx, sid)
	if err != nil {
		return 0, 0, err
	}
	idx, err := optionIndex(suffix, offset, len(q.Options))
	if err != nil {
		return 0, 0, err
	}
	return sid, idx, nil
}

// DeleteAnswer removes one stored answer regardless of settlement state; it
// is the operator's correction tool. Any score already granted through that
// answer stays on the student; reversing it is an explicit, separate scoring
// action.
func (s *Service) DeleteAnswer(ctx context.Context, qid int64, sid int) error {
	if err := checkSID(sid); err != nil {
		return err
	}
	if _, err := s.QuestionByID(ctx, qid); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM answers WHERE question_id = $1 AND sid = $2
	`, qid, sid)
	if err != nil {
		return fmt.Errorf("delete answer: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrAnswerNotFound
	}
	return nil
}

// Stats derives answered/missing sets and the by-option grouping from the
// ledger. Group members are sorted by sid.
func (s *Service) Stats(ctx context.Context, qid int64) (*Stats, error) {
	q, err := s.QuestionByID(ctx, qid)
	if err != nil {
		return nil, err
	}

	answers, err := s.answersForQuestion(ctx, qid)
	if err != nil {
		return nil, err
	}

	st := &Stats{
		Options:  q.Options,
		ByOption: make(map[int][]int, len(q.Options)),
	}
	for i := 1; i <= len(q.Options); i++ {
		st.ByOption[i] = []int{}
	}

	answered := make(map[int]bool, len(answers))
	for _, a := range answers {
		answered[a.SID] = true
		if _, ok := st.ByOption[a.OptionIndex]; ok {
			st.ByOption[a.OptionIndex] = append(st.ByOption[a.OptionIndex], a.SID)
		}
	}
	for i := range st.ByOption {
		sort.Ints(st.ByOption[i])
	}

	st.AnsweredCount = len(answered)
	st.Missing = make([]int, 0, roster.MaxSID-len(answered))
	for sid := roster.MinSID; sid <= roster.MaxSID; sid++ {
		if !answered[sid] {
			st.Missing = append(st.Missing, sid)
		}
	}
	return st, nil
}

// Results is the review view: per-option groups carrying the full answer
// rows, plus the missing list.
func (s *Service) Results(ctx context.Context, qid int64) (*Results, error) {
	q, err := s.QuestionByID(ctx, qid)
	if err != nil {
		return nil, err
	}
	stats, err := s.Stats(ctx, qid)
	if err != nil {
		return nil, err
	}
	answers, err := s.answersForQuestion(ctx, qid)
	if err != nil {
		return nil, err
	}

	grouped := make(map[int][]Answer, len(q.Options))
	for _, a := range answers {
		if a.OptionIndex >= 1 && a.OptionIndex <= len(q.Options) {
			grouped[a.OptionIndex] = append(grouped[a.OptionIndex], a)
		}
	}

	res := &Results{
		Question:      *q,
		Missing:       stats.Missing,
		AnsweredCount: stats.AnsweredCount,
		ByOption:      make([]ResultGroup, 0, len(q.Options)),
	}
	for i, text := range q.Options {
		idx := i + 1
		group := grouped[idx]
		sort.Slice(group, func(a, b int) bool { return group[a].SID < group[b].SID })
		if group == nil {
			group = []Answer{}
		}
		res.ByOption = append(res.ByOption, ResultGroup{
			Index:   idx,
			Text:    text,
			Count:   len(group),
			Answers: group,
		})
	}
	return res, nil
}

func (s *Service) answersForQuestion(ctx context.Context, qid int64) ([]Answer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sid, question_id, option_index, cipher, submitted_at, score_delta
		FROM answers
		WHERE question_id = $1
	`, qid)
	if err != nil {
		return nil, fmt.Errorf("query answers: %w", err)
	}
	defer rows.Close()

	out := make([]Answer, 0)
	for rows.Next() {
		var (
			a           Answer
			submittedAt int64
		)
		if err := rows.Scan(&a.ID, &a.SID, &a.QuestionID, &a.OptionIndex, &a.Cipher, &submittedAt, &a.ScoreDelta); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		a.SubmittedAt = time.Unix(submittedAt, 0)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate answers: %w", err)
	}
	return out, nil
}

func loadQuestionRow(ctx context.Context, q roster.DBTX, qid int64) (*questionRow, error) {
	row := &questionRow{}
	err := q.QueryRowContext(ctx, `
		SELECT id, preset_id, content, options_json, is_active, created_at, settled_at
		FROM questions
		WHERE id = $1
	`, qid).Scan(&row.ID, &row.PresetID, &row.Content, &row.OptionsJSON, &row.Active, &row.CreatedAt, &row.SettledAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrQuestionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load question: %w", err)
	}
	return row, nil
}

func cleanOptions(in []string) []string {
	out := make([]string, 0, len(in))
	for _, o := range in {
		if t := strings.TrimSpace(o); t != "" {
			out = append(out, t)
		}
	}
	return out
}
