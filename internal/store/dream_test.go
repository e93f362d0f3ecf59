package store

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/siamesedream/apiserver/types"
)

func TestDreamFilterConditionsDefault(t *testing.T) {
	filter := DreamFilter{UserID: 7}
	where, args := filter.Conditions()

	if where != "d.user_id = $1" {
		t.Fatalf("unexpected where clause: %q", where)
	}
	if len(args) != 1 || args[0] != 7 {
		t.Fatalf("unexpected args: %v", args)
	}
}

func TestDreamFilterConditionsAllFields(t *testing.T) {
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	lucid := true
	moodMin := 7
	moodMax := 9

	filter := DreamFilter{
		UserID:   3,
		Query:    "falling",
		Symbols:  []string{"flying", "water"},
		DateFrom: &from,
		DateTo:   &to,
		IsLucid:  &lucid,
		MoodMin:  &moodMin,
		MoodMax:  &moodMax,
	}

	where, args := filter.Conditions()

	wantFragments := []string{
		"d.user_id = $1",
		"(d.content ILIKE $2 OR d.summary ILIKE $2)",
		"s2.name = ANY($3)",
		"d.dream_date >= $4",
		"d.dream_date <= $5",
		"d.is_lucid = $6",
		"d.mood_score >= $7",
		"d.mood_score <= $8",
	}
	for _, fragment := range wantFragments {
		if !strings.Contains(where, fragment) {
			t.Fatalf("where clause missing %q:\n%s", fragment, where)
		}
	}

	if len(args) != 8 {
		t.Fatalf("want 8 args, got %d: %v", len(args), args)
	}
	if args[0] != 3 {
		t.Fatalf("user id arg: %v", args[0])
	}
	if args[1] != "%falling%" {
		t.Fatalf("query arg should be wrapped in wildcards, got %v", args[1])
	}
	if args[6] != 7 || args[7] != 9 {
		t.Fatalf("mood bounds: %v %v", args[6], args[7])
	}
}

func TestDreamFilterConditionsSkipsBlankQuery(t *testing.T) {
	filter := DreamFilter{UserID: 1, Query: "   "}
	where, args := filter.Conditions()

	if strings.Contains(where, "ILIKE") {
		t.Fatalf("blank query must not add a predicate: %q", where)
	}
	if len(args) != 1 {
		t.Fatalf("unexpected args: %v", args)
	}
}

func dreamRows(mock sqlmock.Sqlmock) *sqlmock.Rows {
	return mock.NewRows([]string{
		"id", "user_id", "summary", "content", "dream_date", "is_lucid",
		"mood_score", "sleep_duration", "sleep_quality", "bedtime",
		"sleep_disruptions", "created_at", "symbols",
	})
}

func TestSearchReturnsTotalAndPage(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mood := 8
	dreamDate := time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT COUNT\(DISTINCT d\.id\)`).
		WithArgs(3).
		WillReturnRows(mock.NewRows([]string{"count"}).AddRow(42))

	rows := dreamRows(mock).AddRow(
		11, 3, "Flying over the city", "I was flying.", dreamDate, true,
		mood, 7.5, 8, "23:30", []byte("{}"), time.Now(), []byte("{flying,water}"),
	)
	mock.ExpectQuery(`ORDER BY d\.dream_date DESC, d\.id DESC\s+LIMIT \$2 OFFSET \$3`).
		WithArgs(3, 50, 0).
		WillReturnRows(rows)

	repo := NewDreamRepository(db)
	dreams, total, err := repo.Search(context.Background(), DreamFilter{UserID: 3}, 0, 0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}

	if total != 42 {
		t.Fatalf("total: want 42, got %d", total)
	}
	if len(dreams) != 1 {
		t.Fatalf("want 1 dream, got %d", len(dreams))
	}
	dream := dreams[0]
	if dream.ID != 11 || dream.Title != "Flying over the city" {
		t.Fatalf("unexpected dream: %+v", dream)
	}
	if dream.MoodScore == nil || *dream.MoodScore != 8 {
		t.Fatalf("mood not scanned: %+v", dream.MoodScore)
	}
	if len(dream.Symbols) != 2 || dream.Symbols[0] != "flying" {
		t.Fatalf("symbols not scanned: %v", dream.Symbols)
	}
	if dream.SleepDisruptions == nil {
		t.Fatalf("disruptions must be an empty slice, not nil")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSearchScansNullOptionals(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT COUNT\(DISTINCT d\.id\)`).
		WithArgs(3).
		WillReturnRows(mock.NewRows([]string{"count"}).AddRow(1))

	rows := dreamRows(mock).AddRow(
		12, 3, "", "Bare bones entry.", time.Now(), false,
		nil, nil, nil, nil, []byte("{}"), time.Now(), []byte("{}"),
	)
	mock.ExpectQuery(`LIMIT \$2 OFFSET \$3`).
		WithArgs(3, 50, 0).
		WillReturnRows(rows)

	repo := NewDreamRepository(db)
	dreams, _, err := repo.Search(context.Background(), DreamFilter{UserID: 3}, 50, 0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(dreams) != 1 {
		t.Fatalf("want 1 dream, got %d", len(dreams))
	}

	dream := dreams[0]
	if dream.MoodScore != nil || dream.SleepDuration != nil || dream.SleepQuality != nil || dream.Bedtime != nil {
		t.Fatalf("null columns must scan to nil pointers: %+v", dream)
	}
	if dream.Symbols == nil || len(dream.Symbols) != 0 {
		t.Fatalf("empty symbols must scan to empty slice: %v", dream.Symbols)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreateLinksSymbolsInOneTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO dreams`).
		WillReturnRows(mock.NewRows([]string{"id"}).AddRow(21))

	for i, name := range []string{"flying", "water"} {
		mock.ExpectExec(`INSERT INTO symbols \(name\) VALUES \(\$1\) ON CONFLICT \(name\) DO NOTHING`).
			WithArgs(name).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SELECT id FROM symbols WHERE name = \$1`).
			WithArgs(name).
			WillReturnRows(mock.NewRows([]string{"id"}).AddRow(100 + i))
		mock.ExpectExec(`INSERT INTO dream_symbols \(dream_id, symbol_id\)`).
			WithArgs(21, 100+i).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	repo := NewDreamRepository(db)
	id, err := repo.Create(context.Background(), types.Dream{
		UserID:    3,
		Title:     "Flight",
		Content:   "Flying over water.",
		DreamDate: time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC),
		Symbols:   []string{"flying", "water"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id != 21 {
		t.Fatalf("want id 21, got %d", id)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreateRollsBackOnSymbolFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO dreams`).
		WillReturnRows(mock.NewRows([]string{"id"}).AddRow(22))
	mock.ExpectExec(`INSERT INTO symbols`).
		WithArgs("flying").
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	repo := NewDreamRepository(db)
	_, err = repo.Create(context.Background(), types.Dream{
		UserID:    3,
		Content:   "Short one.",
		DreamDate: time.Now(),
		Symbols:   []string{"flying"},
	})
	if err == nil {
		t.Fatalf("expected create to fail")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDeleteNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT user_id FROM dreams WHERE id = \$1`).
		WithArgs(99).
		WillReturnRows(mock.NewRows([]string{"user_id"}))
	mock.ExpectRollback()

	repo := NewDreamRepository(db)
	if err := repo.Delete(context.Background(), 99, 3); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDeleteForbiddenLeavesRowsAlone(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT user_id FROM dreams WHERE id = \$1`).
		WithArgs(15).
		WillReturnRows(mock.NewRows([]string{"user_id"}).AddRow(8))
	mock.ExpectRollback()

	repo := NewDreamRepository(db)
	if err := repo.Delete(context.Background(), 15, 3); !errors.Is(err, ErrForbidden) {
		t.Fatalf("want ErrForbidden, got %v", err)
	}

	// No DELETE statements were expected; stray ones fail here.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDeleteRemovesLinksThenDream(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT user_id FROM dreams WHERE id = \$1`).
		WithArgs(15).
		WillReturnRows(mock.NewRows([]string{"user_id"}).AddRow(3))
	mock.ExpectExec(`DELETE FROM dream_symbols WHERE dream_id = \$1`).
		WithArgs(15).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`DELETE FROM dreams WHERE id = \$1`).
		WithArgs(15).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	repo := NewDreamRepository(db)
	if err := repo.Delete(context.Background(), 15, 3); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`WHERE d\.id = \$1`).
		WithArgs(404).
		WillReturnRows(dreamRows(mock))

	repo := NewDreamRepository(db)
	if _, err := repo.Get(context.Background(), 404); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}
