package report

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/YLF-Cat/man-eating-tree-offline/internal/quiz"
	"github.com/YLF-Cat/man-eating-tree-offline/internal/roster"
)

type mockStudentLister struct {
	listFn func(ctx context.Context) ([]roster.Student, error)
}

func (m *mockStudentLister) ListStudents(ctx context.Context) ([]roster.Student, error) {
	return m.listFn(ctx)
}

type mockResultSource struct {
	resultsFn func(ctx context.Context, qid int64) (*quiz.Results, error)
}

func (m *mockResultSource) Results(ctx context.Context, qid int64) (*quiz.Results, error) {
	return m.resultsFn(ctx, qid)
}

func openWorkbook(t *testing.T, data []byte) *excelize.File {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestScoreboardXLSX(t *testing.T) {
	students := &mockStudentLister{
		listFn: func(ctx context.Context) ([]roster.Student, error) {
			return []roster.Student{
				{SID: 2, Score: 5, CreatedAt: time.Unix(1700000000, 0)},
				{SID: 1, Score: 3, CreatedAt: time.Unix(1700000100, 0)},
			}, nil
		},
	}
	svc := NewService(students, &mockResultSource{})

	data, err := svc.ScoreboardXLSX(context.Background())
	if err != nil {
		t.Fatalf("scoreboard: %v", err)
	}

	f := openWorkbook(t, data)
	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header + 2", len(rows))
	}
	if rows[0][0] != "sid" || rows[0][1] != "score" {
		t.Fatalf("header = %v", rows[0])
	}
	// Order from the lister is preserved: scoreboard order.
	if rows[1][0] != "2" || rows[2][0] != "1" {
		t.Fatalf("sid column = [%s %s], want [2 1]", rows[1][0], rows[2][0])
	}
}

func TestQuestionXLSX(t *testing.T) {
	results := &mockResultSource{
		resultsFn: func(ctx context.Context, qid int64) (*quiz.Results, error) {
			if qid != 9 {
				t.Fatalf("qid = %d, want 9", qid)
			}
			return &quiz.Results{
				ByOption: []quiz.ResultGroup{
					{Index: 1, Text: "yes", Count: 1, Answers: []quiz.Answer{
						{SID: 4, Cipher: 411, SubmittedAt: time.Unix(1700000000, 0), ScoreDelta: 2},
					}},
					{Index: 2, Text: "no", Count: 0, Answers: []quiz.Answer{}},
				},
				Missing:       []int{7},
				AnsweredCount: 1,
			}, nil
		},
	}
	svc := NewService(&mockStudentLister{}, results)

	data, err := svc.QuestionXLSX(context.Background(), 9)
	if err != nil {
		t.Fatalf("question export: %v", err)
	}

	f := openWorkbook(t, data)
	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	// Header, one answer row, one missing row.
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if rows[1][1] != "yes" || rows[1][2] != "4" {
		t.Fatalf("answer row = %v", rows[1])
	}
	if rows[2][0] != "missing" || rows[2][2] != "7" {
		t.Fatalf("missing row = %v", rows[2])
	}
}
