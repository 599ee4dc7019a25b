package db

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rawblock/scam-investigator/pkg/models"
)

//go:embed schema_sqlite.sql
var sqliteSchemaSQL string

// SQLiteStore is the embedded backend for single-operator and CLI use.
// No external database required; same Store contract as Postgres.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) a SQLite scan store at path.
// Use ":memory:" for an ephemeral store.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("unable to open sqlite store: %w", err)
	}
	// The sqlite driver serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent mutation.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() {
	if s.db != nil {
		s.db.Close()
	}
}

// InitSchema applies the embedded SQLite DDL.
func (s *SQLiteStore) InitSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema migrations: %v", err)
	}
	return nil
}

// encodeTime stores timestamps as unix nanoseconds; zero time maps to 0.
func encodeTime(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func decodeTime(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

const sqliteUpsertScan = `
	INSERT INTO scans (id, target_url, domain, mode, status, risk_score,
		started_at, finished_at, duration_seconds, evidence_zip_path, investigation, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO UPDATE SET
		status = excluded.status,
		risk_score = excluded.risk_score,
		finished_at = excluded.finished_at,
		duration_seconds = excluded.duration_seconds,
		evidence_zip_path = excluded.evidence_zip_path,
		investigation = excluded.investigation`

func (s *SQLiteStore) CreateScan(ctx context.Context, rec *ScanRecord) error {
	invJSON, err := marshalInvestigation(rec.Investigation)
	if err != nil {
		return err
	}
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err = s.db.ExecContext(ctx, sqliteUpsertScan,
		rec.ID, rec.TargetURL, rec.Domain, string(rec.Mode), string(rec.Status),
		rec.RiskScore, encodeTime(rec.StartedAt), encodeTime(rec.FinishedAt),
		rec.DurationSeconds, rec.EvidenceZipPath, invJSON, encodeTime(created))
	if err != nil {
		return fmt.Errorf("failed to save scan %s: %w", rec.ID, err)
	}
	return nil
}

func (s *SQLiteStore) UpdateScanStatus(ctx context.Context, id string, status models.InvestigationStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scans SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update scan status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("scan %s not found", id)
	}
	return nil
}

const sqliteScanColumns = `id, target_url, domain, mode, status, risk_score,
	started_at, finished_at, duration_seconds, evidence_zip_path,
	COALESCE(investigation, ''), created_at`

type sqlRow interface {
	Scan(dest ...interface{}) error
}

func scanSqliteRow(row sqlRow) (*ScanRecord, error) {
	var rec ScanRecord
	var mode, status, invJSON string
	var startedAt, finishedAt, createdAt int64
	err := row.Scan(&rec.ID, &rec.TargetURL, &rec.Domain, &mode, &status,
		&rec.RiskScore, &startedAt, &finishedAt, &rec.DurationSeconds,
		&rec.EvidenceZipPath, &invJSON, &createdAt)
	if err != nil {
		return nil, err
	}
	rec.Mode = models.ScanMode(mode)
	rec.Status = models.InvestigationStatus(status)
	rec.StartedAt = decodeTime(startedAt)
	rec.FinishedAt = decodeTime(finishedAt)
	rec.CreatedAt = decodeTime(createdAt)
	if invJSON != "" {
		var inv models.Investigation
		if err := json.Unmarshal([]byte(invJSON), &inv); err == nil {
			rec.Investigation = &inv
		}
	}
	return &rec, nil
}

func (s *SQLiteStore) GetScan(ctx context.Context, id string) (*ScanRecord, error) {
	rec, err := scanSqliteRow(s.db.QueryRowContext(ctx,
		`SELECT `+sqliteScanColumns+` FROM scans WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("scan %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scan: %w", err)
	}
	return rec, nil
}

func (s *SQLiteStore) GetScanByPrefix(ctx context.Context, prefix string) (*ScanRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM scans WHERE id LIKE ? || '%' LIMIT 2`, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve scan prefix: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch len(ids) {
	case 0:
		return nil, fmt.Errorf("no scan matches prefix %q", prefix)
	case 1:
		return s.GetScan(ctx, ids[0])
	default:
		return nil, fmt.Errorf("scan prefix %q is ambiguous", prefix)
	}
}

func (s *SQLiteStore) ListScans(ctx context.Context, filter ScanFilter) ([]ScanRecord, error) {
	query := `SELECT ` + sqliteScanColumns + ` FROM scans WHERE 1=1`
	args := []interface{}{}
	if filter.Domain != "" {
		query += " AND domain = ?"
		args = append(args, filter.Domain)
	}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list scans: %w", err)
	}
	defer rows.Close()

	results := []ScanRecord{}
	for rows.Next() {
		rec, err := scanSqliteRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		results = append(results, *rec)
	}
	return results, rows.Err()
}

const sqliteUpsertWallet = `
	INSERT INTO harvested_wallets (scan_id, site_url, token_name, token_symbol,
		network_name, network_short, wallet_address, source, confidence, captured_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (scan_id, token_symbol, network_short, wallet_address) DO UPDATE SET
		confidence = excluded.confidence,
		source = excluded.source,
		token_name = excluded.token_name,
		network_name = excluded.network_name,
		captured_at = excluded.captured_at`

func (s *SQLiteStore) PersistInvestigation(ctx context.Context, scanID string, inv *models.Investigation, site *models.SiteResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	invJSON, err := marshalInvestigation(inv)
	if err != nil {
		return err
	}
	riskScore := 0.0
	if inv.Taxonomy != nil {
		riskScore = inv.Taxonomy.RiskScore
	}
	_, err = tx.ExecContext(ctx, sqliteUpsertScan,
		scanID, inv.TargetURL, DomainOf(inv.TargetURL), string(inv.Mode),
		string(inv.Status), riskScore, encodeTime(inv.StartedAt),
		encodeTime(inv.FinishedAt), inv.DurationSeconds,
		inv.EvidenceZipPath, invJSON, encodeTime(time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("failed to save scan %s: %w", scanID, err)
	}

	for _, w := range inv.Wallets {
		_, err = tx.ExecContext(ctx, sqliteUpsertWallet,
			scanID, w.SiteURL, w.TokenName, w.TokenSymbol, w.NetworkName,
			w.NetworkShort, w.WalletAddress, string(w.Source), w.Confidence,
			encodeTime(w.CapturedAt))
		if err != nil {
			return fmt.Errorf("failed to save wallet %s: %w", w.WalletAddress, err)
		}
	}

	runID := ""
	if site != nil && site.Session != nil {
		runID = site.Session.RunID
	}
	for i, step := range inv.AgentSteps {
		detail, err := json.Marshal(step.Action)
		if err != nil {
			return fmt.Errorf("failed to encode agent action: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO agent_sessions (scan_id, run_id, sequence, state, action_type,
				action_detail, input_tokens, output_tokens, duration_ms, error)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			scanID, runID, i, step.State, string(step.Action.Action),
			string(detail), step.InputTokens, step.OutputTokens,
			step.DurationMs, step.Error)
		if err != nil {
			return fmt.Errorf("failed to save agent step %d: %w", i, err)
		}
	}

	for _, p := range inv.PII {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO pii_exposures (scan_id, category, field_label, form_action, page_url, required, submitted)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			scanID, string(p.Category), p.FieldLabel, p.FormAction,
			p.PageURL, p.Required, p.Submitted)
		if err != nil {
			return fmt.Errorf("failed to save PII exposure: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func (s *SQLiteStore) InsertWallet(ctx context.Context, scanID string, w models.WalletEntry) error {
	_, err := s.db.ExecContext(ctx, sqliteUpsertWallet,
		scanID, w.SiteURL, w.TokenName, w.TokenSymbol, w.NetworkName,
		w.NetworkShort, w.WalletAddress, string(w.Source), w.Confidence,
		encodeTime(w.CapturedAt))
	if err != nil {
		return fmt.Errorf("failed to save wallet %s: %w", w.WalletAddress, err)
	}
	return nil
}

func (s *SQLiteStore) SearchWallets(ctx context.Context, q WalletQuery) ([]WalletRow, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}

	where := "1=1"
	args := []interface{}{}
	if q.Address != "" {
		where += " AND wallet_address = ?"
		args = append(args, q.Address)
	}
	if q.Token != "" {
		where += " AND token_symbol = ?"
		args = append(args, strings.ToUpper(q.Token))
	}

	var query string
	if q.Deduplicate {
		// The correlated subqueries pick source and site_url from the
		// highest-confidence row of each group.
		query = fmt.Sprintf(`
			SELECT g.wallet_address, g.token_symbol, g.network_short,
				(SELECT source FROM harvested_wallets h
					WHERE h.wallet_address = g.wallet_address
						AND h.token_symbol = g.token_symbol
						AND h.network_short = g.network_short
					ORDER BY h.confidence DESC, h.captured_at ASC LIMIT 1),
				(SELECT site_url FROM harvested_wallets h
					WHERE h.wallet_address = g.wallet_address
						AND h.token_symbol = g.token_symbol
						AND h.network_short = g.network_short
					ORDER BY h.confidence DESC, h.captured_at ASC LIMIT 1),
				g.max_confidence, g.first_seen_at, g.last_seen_at, g.seen_count
			FROM (
				SELECT wallet_address, token_symbol, network_short,
					MAX(confidence) AS max_confidence,
					MIN(captured_at) AS first_seen_at,
					MAX(captured_at) AS last_seen_at,
					COUNT(*) AS seen_count
				FROM harvested_wallets WHERE %s
				GROUP BY wallet_address, token_symbol, network_short
			) g
			ORDER BY g.last_seen_at DESC LIMIT ?`, where)
	} else {
		query = fmt.Sprintf(`
			SELECT wallet_address, token_symbol, network_short, source, site_url,
				confidence, captured_at, captured_at, 1, scan_id
			FROM harvested_wallets WHERE %s
			ORDER BY captured_at DESC LIMIT ?`, where)
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search wallets: %w", err)
	}
	defer rows.Close()

	results := []WalletRow{}
	for rows.Next() {
		var r WalletRow
		var firstSeen, lastSeen int64
		if q.Deduplicate {
			err = rows.Scan(&r.WalletAddress, &r.TokenSymbol, &r.NetworkShort,
				&r.Source, &r.SiteURL, &r.Confidence, &firstSeen, &lastSeen,
				&r.SeenCount)
		} else {
			err = rows.Scan(&r.WalletAddress, &r.TokenSymbol, &r.NetworkShort,
				&r.Source, &r.SiteURL, &r.Confidence, &firstSeen, &lastSeen,
				&r.SeenCount, &r.ScanID)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to scan wallet row: %w", err)
		}
		r.FirstSeenAt = decodeTime(firstSeen)
		r.LastSeenAt = decodeTime(lastSeen)
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *SQLiteStore) InsertAgentStep(ctx context.Context, row AgentStepRow) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agent_sessions (scan_id, run_id, sequence, state, action_type,
			action_detail, page_url, dom_confidence, llm_model, input_tokens,
			output_tokens, cost_usd, duration_ms, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.ScanID, row.RunID, row.Sequence, row.State, row.ActionType,
		row.ActionDetail, row.PageURL, row.DOMConfidence, row.LLMModel,
		row.InputTokens, row.OutputTokens, row.CostUSD, row.DurationMs, row.Error)
	if err != nil {
		return fmt.Errorf("failed to save agent step: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListAgentSteps(ctx context.Context, scanID string) ([]AgentStepRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT scan_id, run_id, sequence, state, action_type,
			COALESCE(action_detail, ''), page_url, dom_confidence, llm_model,
			input_tokens, output_tokens, cost_usd, duration_ms, error
		FROM agent_sessions WHERE scan_id = ? ORDER BY sequence ASC`, scanID)
	if err != nil {
		return nil, fmt.Errorf("failed to list agent steps: %w", err)
	}
	defer rows.Close()

	results := []AgentStepRow{}
	for rows.Next() {
		var r AgentStepRow
		if err := rows.Scan(&r.ScanID, &r.RunID, &r.Sequence, &r.State,
			&r.ActionType, &r.ActionDetail, &r.PageURL, &r.DOMConfidence,
			&r.LLMModel, &r.InputTokens, &r.OutputTokens, &r.CostUSD,
			&r.DurationMs, &r.Error); err != nil {
			return nil, fmt.Errorf("failed to scan agent step: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *SQLiteStore) InsertPIIExposure(ctx context.Context, scanID string, p models.PIIExposure) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pii_exposures (scan_id, category, field_label, form_action, page_url, required, submitted)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		scanID, string(p.Category), p.FieldLabel, p.FormAction, p.PageURL,
		p.Required, p.Submitted)
	if err != nil {
		return fmt.Errorf("failed to save PII exposure: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListPIIExposures(ctx context.Context, scanID string) ([]models.PIIExposure, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category, field_label, form_action, page_url, required, submitted
		FROM pii_exposures WHERE scan_id = ? ORDER BY id ASC`, scanID)
	if err != nil {
		return nil, fmt.Errorf("failed to list PII exposures: %w", err)
	}
	defer rows.Close()

	results := []models.PIIExposure{}
	for rows.Next() {
		var p models.PIIExposure
		var cat string
		if err := rows.Scan(&cat, &p.FieldLabel, &p.FormAction, &p.PageURL,
			&p.Required, &p.Submitted); err != nil {
			return nil, fmt.Errorf("failed to scan PII row: %w", err)
		}
		p.Category = models.PIICategory(cat)
		results = append(results, p)
	}
	return results, rows.Err()
}
