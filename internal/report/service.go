package report

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/YLF-Cat/man-eating-tree-offline/internal/quiz"
	"github.com/YLF-Cat/man-eating-tree-offline/internal/roster"
)

// Service renders offline artifacts of the session: the scoreboard and a
// per-question answer breakdown as XLSX workbooks.
type Service struct {
	students studentLister
	quizzes  resultSource
}

type studentLister interface {
	ListStudents(ctx context.Context) ([]roster.Student, error)
}

type resultSource interface {
	Results(ctx context.Context, qid int64) (*quiz.Results, error)
}

func NewService(students studentLister, quizzes resultSource) *Service {
	return &Service{students: students, quizzes: quizzes}
}

func (s *Service) ScoreboardXLSX(ctx context.Context) ([]byte, error) {
	students, err := s.students.ListStudents(ctx)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	headers := []string{"sid", "score", "created_at"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	for i, st := range students {
		row := i + 2
		values := []any{st.SID, st.Score, st.CreatedAt.Format("2006-01-02 15:04:05")}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write scoreboard workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *Service) QuestionXLSX(ctx context.Context, qid int64) ([]byte, error) {
	res, err := s.quizzes.Results(ctx, qid)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	headers := []string{"option_index", "option_text", "sid", "cipher", "submitted_at", "score_delta"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, group := range res.ByOption {
		for _, a := range group.Answers {
			values := []any{
				group.Index,
				group.Text,
				a.SID,
				a.Cipher,
				a.SubmittedAt.Format("2006-01-02 15:04:05"),
				a.ScoreDelta,
			}
			for col, v := range values {
				cell, _ := excelize.CoordinatesToCellName(col+1, row)
				_ = f.SetCellValue(sheet, cell, v)
			}
			row++
		}
	}

	// Trailing section: who never answered.
	for _, sid := range res.Missing {
		cell, _ := excelize.CoordinatesToCellName(1, row)
		_ = f.SetCellValue(sheet, cell, "missing")
		cell, _ = excelize.CoordinatesToCellName(3, row)
		_ = f.SetCellValue(sheet, cell, sid)
		row++
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write question workbook: %w", err)
	}
	return buf.Bytes(), nil
}
