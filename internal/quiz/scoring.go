package quiz

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/YLF-Cat/man-eating-tree-offline/internal/roster"
)

// Scoring actions are stackable: re-invoking one reapplies its delta, so the
// operator can pile adjustments on top of each other. Each invocation is one
// transaction and a mid-batch failure rolls the whole action back.

type ScoreOutcome struct {
	QuestionID int64   `json:"question_id"`
	Affected   int     `json:"affected"`
	Delta      float64 `json:"delta,omitempty"`
}

type LotteryOutcome struct {
	QuestionID  int64   `json:"question_id"`
	OptionIndex int     `json:"option_index"`
	Probability float64 `json:"probability"`
	Winners     int     `json:"winners"`
	Losers      int     `json:"losers"`
}

// ScoreOption adds delta to every student whose answer on the question picked
// the given option, and records the same delta on each of those answers.
func (s *Service) ScoreOption(ctx context.Context, qid int64, idx int, delta float64) (*ScoreOutcome, error) {
	q, err := s.QuestionByID(ctx, qid)
	if err != nil {
		return nil, err
	}
	if idx < 1 || idx > len(q.Options) {
		return nil, ErrOptionIndexOutOfRange
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin score tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	answers, err := matchingAnswers(ctx, tx, qid, idx)
	if err != nil {
		return nil, err
	}
	for _, a := range answers {
		if err := applyDelta(ctx, tx, a.SID, a.ID, delta); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit score: %w", err)
	}
	return &ScoreOutcome{QuestionID: qid, Affected: len(answers), Delta: delta}, nil
}

// ScoreStudent adds delta to one student's score. When that student answered
// the question, the delta is also attributed to their answer record; a
// student with no answer still receives the score change, unattributed.
func (s *Service) ScoreStudent(ctx context.Context, qid int64, sid int, delta float64) (*ScoreOutcome, error) {
	if err := checkSID(sid); err != nil {
		return nil, err
	}
	if _, err := s.QuestionByID(ctx, qid); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin score tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := roster.EnsureStudent(ctx, tx, sid); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE students SET score = score + $1 WHERE sid = $2
	`, delta, sid); err != nil {
		return nil, fmt.Errorf("update student score: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE answers SET score_delta = score_delta + $1
		WHERE question_id = $2 AND sid = $3
	`, delta, qid, sid); err != nil {
		return nil, fmt.Errorf("update answer delta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit score: %w", err)
	}
	return &ScoreOutcome{QuestionID: qid, Affected: 1, Delta: delta}, nil
}

// ScoreOptionLottery draws one independent uniform trial per matching answer:
// deltaWin with probability p, deltaLose otherwise. The realized outcome is
// what gets recorded, never an expectation, and a re-invocation is a fresh
// lottery, so callers must not retry it blindly. p is clamped to [0,1]; the
// boundaries are deterministic because Float64 draws from [0,1).
func (s *Service) ScoreOptionLottery(ctx context.Context, qid int64, idx int, p, deltaWin, deltaLose float64) (*LotteryOutcome, error) {
	q, err := s.QuestionByID(ctx, qid)
	if err != nil {
		return nil, err
	}
	if idx < 1 || idx > len(q.Options) {
		return nil, ErrOptionIndexOutOfRange
	}
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin lottery tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	answers, err := matchingAnswers(ctx, tx, qid, idx)
	if err != nil {
		return nil, err
	}

	out := &LotteryOutcome{QuestionID: qid, OptionIndex: idx, Probability: p}
	for _, a := range answers {
		delta := deltaLose
		if s.rng.Float64() < p {
			delta = deltaWin
			out.Winners++
		} else {
			out.Losers++
		}
		if err := applyDelta(ctx, tx, a.SID, a.ID, delta); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit lottery: %w", err)
	}
	return out, nil
}

type answerRef struct {
	ID  int64
	SID int
}

func matchingAnswers(ctx context.Context, tx *sql.Tx, qid int64, idx int) ([]answerRef, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, sid FROM answers
		WHERE question_id = $1 AND option_index = $2
		ORDER BY sid ASC
	`, qid, idx)
	if err != nil {
		return nil, fmt.Errorf("query matching answers: %w", err)
	}
	defer rows.Close()

	out := make([]answerRef, 0)
	for rows.Next() {
		var a answerRef
		if err := rows.Scan(&a.ID, &a.SID); err != nil {
			return nil, fmt.Errorf("scan answer ref: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate matching answers: %w", err)
	}
	return out, nil
}

// applyDelta credits one student and one answer inside the action's tx. The
// student row is materialized first; answers can logically reference sids
// that have not scored yet.
func applyDelta(ctx context.Context, tx *sql.Tx, sid int, answerID int64, delta float64) error {
	if _, err := roster.EnsureStudent(ctx, tx, sid); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE students SET score = score + $1 WHERE sid = $2
	`, delta, sid); err != nil {
		return fmt.Errorf("update student score: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE answers SET score_delta = score_delta + $1 WHERE id = $2
	`, delta, answerID); err != nil {
		return fmt.Errorf("update answer delta: %w", err)
	}
	return nil
}
