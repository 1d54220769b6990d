// Package sqlite is the single-file durable store used by default when no
// Postgres DSN is configured.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"tokenwatch.org/internal/ai"
	"tokenwatch.org/internal/audit"
	"tokenwatch.org/internal/mpm"
	"tokenwatch.org/internal/token"
)

const schema = `
create table if not exists tokens (
	token_id    text primary key,
	name        text not null,
	symbol      text not null,
	trust_score integer not null,
	policy_id   text not null default '',
	provenance  text not null default '{}',
	created_at  integer not null,
	is_disputed integer not null default 0,
	source      text not null default 'database'
);
create index if not exists idx_tokens_policy on tokens(policy_id);

create table if not exists votes (
	token_id text primary key,
	agree    integer not null default 0,
	disagree integer not null default 0
);

create table if not exists reports (
	id          integer primary key autoincrement,
	token_id    text not null,
	reporter_id text not null,
	body        text not null,
	created_at  integer not null
);
create index if not exists idx_reports_token on reports(token_id);

create table if not exists audits (
	id            integer primary key autoincrement,
	token_id      text not null,
	action        text not null,
	actor         text not null,
	info          text not null,
	analysis_hash text not null default '',
	txid          text not null default '',
	created_at    integer not null
);
create index if not exists idx_audits_token on audits(token_id);

create table if not exists mpm (
	policy_id    text primary key,
	token_symbol text not null,
	window_min   integer not null,
	mpm          integer not null,
	sentiment    text not null,
	sample_size  integer not null,
	updated_at   integer not null
);

create table if not exists identities (
	seed       text primary key,
	username   text not null,
	astrology  text not null,
	vibe       text not null,
	method     text not null,
	created_at integer not null
);
`

// Store implements the registry, market-pulse and identity persistence
// contracts over one SQLite file.
type Store struct {
	db *sql.DB
}

var (
	_ token.Store      = (*Store)(nil)
	_ mpm.Store        = (*Store)(nil)
	_ ai.IdentityStore = (*Store)(nil)
)

// Open opens (or creates) the database and applies the schema.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// modernc sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY churn under concurrent handlers.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the handle for readiness probes.
func (s *Store) DB() *sql.DB { return s.db }

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// --- token.Store ---

func (s *Store) InsertToken(ctx context.Context, t token.Token) error {
	blob, err := json.Marshal(t.Provenance)
	if err != nil {
		return fmt.Errorf("encode provenance: %w", err)
	}
	disputed := 0
	if t.IsDisputed {
		disputed = 1
	}
	_, err = s.db.ExecContext(ctx, `
		insert into tokens(token_id, name, symbol, trust_score, policy_id, provenance, created_at, is_disputed, source)
		values (?,?,?,?,?,?,?,?,?)`,
		t.TokenID, t.Name, t.Symbol, t.TrustScore, t.PolicyID, string(blob),
		toMillis(t.CreatedAt), disputed, t.Source)
	return err
}

func (s *Store) GetToken(ctx context.Context, tokenID string) (token.Token, error) {
	return s.getTokenBy(ctx, "token_id", tokenID)
}

func (s *Store) GetTokenByPolicyID(ctx context.Context, policyID string) (token.Token, error) {
	return s.getTokenBy(ctx, "policy_id", policyID)
}

func (s *Store) getTokenBy(ctx context.Context, column, value string) (token.Token, error) {
	row := s.db.QueryRowContext(ctx, `
		select token_id, name, symbol, trust_score, policy_id, provenance, created_at, is_disputed, source
		from tokens where `+column+` = ?`, value)
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
		t        token.Token
		blob     string
		created  int64
		disputed int
	)
	if err := row.Scan(&t.TokenID, &t.Name, &t.Symbol, &t.TrustScore, &t.PolicyID,
		&blob, &created, &disputed, &t.Source); err != nil {
		return token.Token{}, err
	}
	if blob != "" {
		if err := json.Unmarshal([]byte(blob), &t.Provenance); err != nil {
			return token.Token{}, fmt.Errorf("decode provenance: %w", err)
		}
	}
	t.CreatedAt = fromMillis(created)
	t.IsDisputed = disputed != 0
	return t, nil
}

func (s *Store) ListTokens(ctx context.Context) ([]token.Token, error) {
	rows, err := s.db.QueryContext(ctx, `
		select token_id, name, symbol, trust_score, policy_id, provenance, created_at, is_disputed, source
		from tokens order by created_at desc, token_id desc`)
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
	flag := 0
	if disputed {
		flag = 1
	}
	res, err := s.db.ExecContext(ctx,
		`update tokens set trust_score = ?, is_disputed = ? where token_id = ?`,
		score, flag, tokenID)
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
	column := "agree"
	if kind == token.VoteDisagree {
		column = "disagree"
	}
	_, err := s.db.ExecContext(ctx, `
		insert into votes(token_id, `+column+`) values (?, 1)
		on conflict(token_id) do update set `+column+` = `+column+` + 1`,
		tokenID)
	if err != nil {
		return token.VoteTally{}, err
	}
	return s.GetTally(ctx, tokenID)
}

func (s *Store) GetTally(ctx context.Context, tokenID string) (token.VoteTally, error) {
	tally := token.VoteTally{TokenID: tokenID}
	err := s.db.QueryRowContext(ctx,
		`select agree, disagree from votes where token_id = ?`, tokenID).
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
	res, err := s.db.ExecContext(ctx, `
		insert into reports(token_id, reporter_id, body, created_at)
		values (?,?,?,?)`,
		r.TokenID, r.ReporterID, r.Text, toMillis(r.Timestamp))
	if err != nil {
		return token.Report{}, err
	}
	r.ID, err = res.LastInsertId()
	return r, err
}

func (s *Store) ListReports(ctx context.Context, tokenID string) ([]token.Report, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, token_id, reporter_id, body, created_at
		from reports where token_id = ? order by id desc`, tokenID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []token.Report
	for rows.Next() {
		var (
			r       token.Report
			created int64
		)
		if err := rows.Scan(&r.ID, &r.TokenID, &r.ReporterID, &r.Text, &created); err != nil {
			return nil, err
		}
		r.Timestamp = fromMillis(created)
		out = append(out, r)
	}
	return out, rows.Err()
}

// --- audit.Store ---

func (s *Store) AppendAudit(ctx context.Context, e audit.Entry) (audit.Entry, error) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		insert into audits(token_id, action, actor, info, analysis_hash, txid, created_at)
		values (?,?,?,?,?,?,?)`,
		e.TokenID, string(e.Action), e.Actor, e.Info, e.AnalysisHash, e.Txid, toMillis(e.Timestamp))
	if err != nil {
		return audit.Entry{}, err
	}
	e.ID, err = res.LastInsertId()
	return e, err
}

func (s *Store) ListAudit(ctx context.Context, tokenID string, limit int) ([]audit.Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `select id, token_id, action, actor, info, analysis_hash, txid, created_at
		from audits`
	args := []any{}
	if tokenID != "" {
		query += ` where token_id = ?`
		args = append(args, tokenID)
	}
	query += ` order by id desc limit ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []audit.Entry
	for rows.Next() {
		var (
			e       audit.Entry
			action  string
			created int64
		)
		if err := rows.Scan(&e.ID, &e.TokenID, &action, &e.Actor, &e.Info,
			&e.AnalysisHash, &e.Txid, &created); err != nil {
			return nil, err
		}
		e.Action = audit.Action(action)
		e.Timestamp = fromMillis(created)
		out = append(out, e)
	}
	return out, rows.Err()
}

// --- mpm.Store ---

func (s *Store) UpsertMPM(ctx context.Context, r mpm.Record) error {
	_, err := s.db.ExecContext(ctx, `
		insert into mpm(policy_id, token_symbol, window_min, mpm, sentiment, sample_size, updated_at)
		values (?,?,?,?,?,?,?)
		on conflict(policy_id) do update set
			token_symbol = excluded.token_symbol,
			window_min   = excluded.window_min,
			mpm          = excluded.mpm,
			sentiment    = excluded.sentiment,
			sample_size  = excluded.sample_size,
			updated_at   = excluded.updated_at`,
		r.PolicyID, r.TokenSymbol, r.WindowMinutes, r.MPM, r.Sentiment,
		r.SampleSize, toMillis(r.LastUpdated))
	return err
}

func (s *Store) GetMPM(ctx context.Context, policyID string) (mpm.Record, error) {
	var (
		r       mpm.Record
		updated int64
	)
	err := s.db.QueryRowContext(ctx, `
		select policy_id, token_symbol, window_min, mpm, sentiment, sample_size, updated_at
		from mpm where policy_id = ?`, policyID).
		Scan(&r.PolicyID, &r.TokenSymbol, &r.WindowMinutes, &r.MPM, &r.Sentiment,
			&r.SampleSize, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return mpm.Record{}, token.ErrNotFound
	}
	if err != nil {
		return mpm.Record{}, err
	}
	r.LastUpdated = fromMillis(updated)
	return r, nil
}

// --- ai.IdentityStore ---

func (s *Store) SaveIdentity(ctx context.Context, id ai.Identity) error {
	created := time.Now().UTC()
	if id.CreatedAt != "" {
		if parsed, err := time.Parse(time.RFC3339, id.CreatedAt); err == nil {
			created = parsed
		}
	}
	_, err := s.db.ExecContext(ctx, `
		insert into identities(seed, username, astrology, vibe, method, created_at)
		values (?,?,?,?,?,?)
		on conflict(seed) do update set
			username  = excluded.username,
			astrology = excluded.astrology,
			vibe      = excluded.vibe,
			method    = excluded.method`,
		id.Seed, id.Username, id.Astrology, id.Vibe, id.Method, toMillis(created))
	return err
}

func (s *Store) GetIdentity(ctx context.Context, seed string) (ai.Identity, error) {
	var (
		id      ai.Identity
		created int64
	)
	err := s.db.QueryRowContext(ctx, `
		select seed, username, astrology, vibe, method, created_at
		from identities where seed = ?`, seed).
		Scan(&id.Seed, &id.Username, &id.Astrology, &id.Vibe, &id.Method, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return ai.Identity{}, token.ErrNotFound
	}
	if err != nil {
		return ai.Identity{}, err
	}
	id.CreatedAt = fromMillis(created).Format(time.RFC3339)
	return id, nil
}
