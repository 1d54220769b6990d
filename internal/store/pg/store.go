// Package pg is the Postgres store used when TOKENWATCH_PG_DSN is set.
// Schema management lives in cmd/migrate.
package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"tokenwatch.org/internal/audit"
	"tokenwatch.org/internal/mpm"
	"tokenwatch.org/internal/token"
)

// Store implements the registry and market-pulse persistence contracts.
type Store struct {
	db *sql.DB
}

var (
	_ token.Store = (*Store)(nil)
	_ mpm.Store   = (*Store)(nil)
)

// Open connects to Postgres with tuned pool defaults.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing handle (tests).
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

// DB exposes the handle for readiness probes.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) InsertToken(ctx context.Context, t token.Token) error {
	blob, err := json.Marshal(t.Provenance)
	if err != nil {
		return fmt.Errorf("encode provenance: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		insert into tokens(token_id, name, symbol, trust_score, policy_id, provenance, created_at, is_disputed, source)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		t.TokenID, t.Name, t.Symbol, t.TrustScore, t.PolicyID, blob,
		t.CreatedAt.UTC(), t.IsDisputed, t.Source)
	return err
}

func (s *Store) GetToken(ctx context.Context, tokenID string) (token.Token, error) {
	return s.getToken(ctx, `where token_id = $1`, tokenID)
}

func (s *Store) GetTokenByPolicyID(ctx context.Context, policyID string) (token.Token, error) {
	return s.getToken(ctx, `where policy_id = $1`, policyID)
}

const tokenColumns = `token_id, name, symbol, trust_score, policy_id, provenance, created_at, is_disputed, source`

func (s *Store) getToken(ctx context.Context, where string, arg any) (token.Token, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+tokenColumns+` from tokens `+where, arg)
	t, err := scanToken(row)
	if errors.Is(err, sql.ErrNoRows) {
		return token.Token{}, token.ErrNotFound
	}
	return t, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanToken(row rowScanner) (token.Token, error) {
	var (
		t    token.Token
		blob []byte
	)
	if err := row.Scan(&t.TokenID, &t.Name, &t.Symbol, &t.TrustScore, &t.PolicyID,
		&blob, &t.CreatedAt, &t.IsDisputed, &t.Source); err != nil {
		return token.Token{}, err
	}
	if len(blob) > 0 {
		if err := json.Unmarshal(blob, &t.Provenance); err != nil {
			return token.Token{}, fmt.Errorf("decode provenance: %w", err)
		}
	}
	t.CreatedAt = t.CreatedAt.UTC()
	return t, nil
}

func (s *Store) ListTokens(ctx context.Context) ([]token.Token, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+tokenColumns+` from tokens order by created_at desc, token_id desc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []token.Token
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) UpdateTrust(ctx context.Context, tokenID string, score int, disputed bool) error {
	res, err := s.db.ExecContext(ctx,
		`update tokens set trust_score = $1, is_disputed = $2 where token_id = $3`,
		score, disputed, tokenID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return token.ErrNotFound
	}
	return nil
}

func (s *Store) RecordVote(ctx context.Context, tokenID string, kind token.VoteKind) (token.VoteTally, error) {
	agree, disagree := 1, 0
	if kind == token.VoteDisagree {
		agree, disagree = 0, 1
	}
	tally := token.VoteTally{TokenID: tokenID}
	err := s.db.QueryRowContext(ctx, `
		insert into votes(token_id, agree, disagree) values ($1,$2,$3)
		on conflict (token_id) do update set
			agree    = votes.agree + excluded.agree,
			disagree = votes.disagree + excluded.disagree
		returning agree, disagree`,
		tokenID, agree, disagree).Scan(&tally.Agree, &tally.Disagree)
	if err != nil {
		return token.VoteTally{}, err
	}
	return tally, nil
}

func (s *Store) GetTally(ctx context.Context, tokenID string) (token.VoteTally, error) {
	tally := token.VoteTally{TokenID: tokenID}
	err := s.db.QueryRowContext(ctx,
		`select agree, disagree from votes where token_id = $1`, tokenID).
		Scan(&tally.Agree, &tally.Disagree)
	if errors.Is(err, sql.ErrNoRows) {
		return tally, nil
	}
	if err != nil {
		return token.VoteTally{}, err
	}
	return tally, nil
}

func (s *Store) InsertReport(ctx context.Context, r token.Report) (token.Report, error) {
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
	err := s.db.QueryRowContext(ctx, `
		insert into reports(token_id, reporter_id, body, created_at)
		values ($1,$2,$3,$4) returning id`,
		r.TokenID, r.ReporterID, r.Text, r.Timestamp.UTC()).Scan(&r.ID)
	if err != nil {
		return token.Report{}, err
	}
	return r, nil
}

func (s *Store) ListReports(ctx context.Context, tokenID string) ([]token.Report, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, token_id, reporter_id, body, created_at
		from reports where token_id = $1 order by id desc`, tokenID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []token.Report
	for rows.Next() {
		var r token.Report
		if err := rows.Scan(&r.ID, &r.TokenID, &r.ReporterID, &r.Text, &r.Timestamp); err != nil {
			return nil, err
		}
		r.Timestamp = r.Timestamp.UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) AppendAudit(ctx context.Context, e audit.Entry) (audit.Entry, error) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	err := s.db.QueryRowContext(ctx, `
		insert into audits(token_id, action, actor, info, analysis_hash, txid, created_at)
		values ($1,$2,$3,$4,$5,$6,$7) returning id`,
		e.TokenID, string(e.Action), e.Actor, e.Info, e.AnalysisHash, e.Txid,
		e.Timestamp.UTC()).Scan(&e.ID)
	if err != nil {
		return audit.Entry{}, err
	}
	return e, nil
}

func (s *Store) ListAudit(ctx context.Context, tokenID string, limit int) ([]audit.Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	var (
		rows *sql.Rows
		err  error
	)
	if tokenID != "" {
		rows, err = s.db.QueryContext(ctx, `
			select id, token_id, action, actor, info, analysis_hash, txid, created_at
			from audits where token_id = $1 order by id desc limit $2`, tokenID, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			select id, token_id, action, actor, info, analysis_hash, txid, created_at
			from audits order by id desc limit $1`, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []audit.Entry
	for rows.Next() {
		var (
			e      audit.Entry
			action string
		)
		if err := rows.Scan(&e.ID, &e.TokenID, &action, &e.Actor, &e.Info,
			&e.AnalysisHash, &e.Txid, &e.Timestamp); err != nil {
			return nil, err
		}
		e.Action = audit.Action(action)
		e.Timestamp = e.Timestamp.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) UpsertMPM(ctx context.Context, r mpm.Record) error {
	_, err := s.db.ExecContext(ctx, `
		insert into mpm(policy_id, token_symbol, window_min, mpm, sentiment, sample_size, updated_at)
		values ($1,$2,$3,$4,$5,$6,$7)
		on conflict (policy_id) do update set
			token_symbol = excluded.token_symbol,
			window_min   = excluded.window_min,
			mpm          = excluded.mpm,
			sentiment    = excluded.sentiment,
			sample_size  = excluded.sample_size,
			updated_at   = excluded.updated_at`,
		r.PolicyID, r.TokenSymbol, r.WindowMinutes, r.MPM, r.Sentiment,
		r.SampleSize, r.LastUpdated.UTC())
	return err
}

func (s *Store) GetMPM(ctx context.Context, policyID string) (mpm.Record, error) {
	var r mpm.Record
	err := s.db.QueryRowContext(ctx, `
		select policy_id, token_symbol, window_min, mpm, sentiment, sample_size, updated_at
		from mpm where policy_id = $1`, policyID).
		Scan(&r.PolicyID, &r.TokenSymbol, &r.WindowMinutes, &r.MPM, &r.Sentiment,
			&r.SampleSize, &r.LastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return mpm.Record{}, token.ErrNotFound
	}
	if err != nil {
		return mpm.Record{}, err
	}
	r.LastUpdated = r.LastUpdated.UTC()
	return r, nil
}
