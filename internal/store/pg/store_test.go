package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"tokenwatch.org/internal/audit"
	"tokenwatch.org/internal/token"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewWithDB(db), mock
}

func TestInsertAndGetToken(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	mock.ExpectExec("insert into tokens").
		WithArgs("tok_1", "Snek Inu", "SNEK", 88, "policy1", sqlmock.AnyArg(), sqlmock.AnyArg(), false, "simulation").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.InsertToken(ctx, token.Token{
		TokenID: "tok_1", Name: "Snek Inu", Symbol: "SNEK", TrustScore: 88,
		PolicyID: "policy1", Provenance: map[string]any{"asset": "tok_1"},
		CreatedAt: now, Source: token.SourceSimulation,
	})
	if err != nil {
		t.Fatalf("InsertToken: %v", err)
	}

	rows := sqlmock.NewRows([]string{
		"token_id", "name", "symbol", "trust_score", "policy_id",
		"provenance", "created_at", "is_disputed", "source",
	}).AddRow("tok_1", "Snek Inu", "SNEK", 88, "policy1", []byte(`{"asset":"tok_1"}`), now, false, "simulation")
	mock.ExpectQuery("select .* from tokens where token_id").
		WithArgs("tok_1").WillReturnRows(rows)

	got, err := s.GetToken(ctx, "tok_1")
	if err != nil {
		t.Fatalf("GetToken: %v", err)
	}
	if got.Symbol != "SNEK" || got.Provenance["asset"] != "tok_1" {
		t.Fatalf("unexpected token: %+v", got)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetTokenNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("select .* from tokens where token_id").
		WithArgs("tok_missing").
		WillReturnRows(sqlmock.NewRows([]string{"token_id"}))

	if _, err := s.GetToken(context.Background(), "tok_missing"); !errors.Is(err, token.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateTrustNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("update tokens set trust_score").
		WithArgs(40, true, "tok_missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := s.UpdateTrust(context.Background(), "tok_missing", 40, true); !errors.Is(err, token.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRecordVoteUpsert(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("insert into votes").
		WithArgs("tok_1", 0, 1).
		WillReturnRows(sqlmock.NewRows([]string{"agree", "disagree"}).AddRow(2, 3))

	tally, err := s.RecordVote(context.Background(), "tok_1", token.VoteDisagree)
	if err != nil {
		t.Fatalf("RecordVote: %v", err)
	}
	if tally.Agree != 2 || tally.Disagree != 3 {
		t.Fatalf("unexpected tally: %+v", tally)
	}
}

func TestGetTallyZeroDefault(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("select agree, disagree from votes").
		WithArgs("tok_1").
		WillReturnRows(sqlmock.NewRows([]string{"agree", "disagree"}))

	tally, err := s.GetTally(context.Background(), "tok_1")
	if err != nil {
		t.Fatalf("GetTally: %v", err)
	}
	if tally.Total() != 0 {
		t.Fatalf("expected zero tally, got %+v", tally)
	}
}

func TestAppendAndListAudit(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectQuery("insert into audits").
		WithArgs("tok_1", "VOTE", "anon", "agree vote", "", "", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

	e, err := s.AppendAudit(ctx, audit.Entry{
		TokenID: "tok_1", Action: audit.ActionVote, Actor: "anon", Info: "agree vote",
	})
	if err != nil {
		t.Fatalf("AppendAudit: %v", err)
	}
	if e.ID != 7 {
		t.Fatalf("id not assigned: %+v", e)
	}

	now := time.Now().UTC()
	mock.ExpectQuery("select .* from audits where token_id").
		WithArgs("tok_1", 10).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "token_id", "action", "actor", "info", "analysis_hash", "txid", "created_at",
		}).AddRow(8, "tok_1", "TRADE", "anonymous", "BUY", "", "tx_abc", now).
			AddRow(7, "tok_1", "VOTE", "anon", "agree vote", "", "", now))

	entries, err := s.ListAudit(ctx, "tok_1", 10)
	if err != nil {
		t.Fatalf("ListAudit: %v", err)
	}
	if len(entries) != 2 || entries[0].ID != 8 || entries[0].Action != audit.ActionTrade {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestInsertReportAssignsID(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("insert into reports").
		WithArgs("tok_1", "zk_anonymous", "rug", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))

	r, err := s.InsertReport(context.Background(), token.Report{
		TokenID: "tok_1", ReporterID: "zk_anonymous", Text: "rug",
	})
	if err != nil || r.ID != 3 {
		t.Fatalf("InsertReport: %v %+v", err, r)
	}
}
