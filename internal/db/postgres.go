package db

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rawblock/scam-investigator/pkg/models"
)

// schemaSQL is compiled into the binary at build time.
// This ensures schema init works inside the Docker runtime image which
// does not copy internal/db/schema.sql into the final stage.
//
//go:embed schema.sql
var schemaSQL string

// PostgresStore is the production scan store backed by a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// Connect initializes the connection pool to PostgreSQL using pgx
func Connect(ctx context.Context, connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %v", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping failed: %v", err)
	}

	log.Println("Successfully connected to PostgreSQL scan store")
	return &PostgresStore{pool: pool}, nil
}

// Close gracefully closes the connection pool
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// GetPool exposes the underlying pool for health checks.
func (s *PostgresStore) GetPool() *pgxpool.Pool {
	return s.pool
}

// InitSchema executes the embedded schema.sql DDL statements.
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema migrations: %v", err)
	}

	log.Println("Scan store schema initialized")
	return nil
}

const upsertScanSQL = `
	INSERT INTO scans (id, target_url, domain, mode, status, risk_score,
		started_at, finished_at, duration_seconds, evidence_zip_path, investigation)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (id) DO UPDATE SET
		status = EXCLUDED.status,
		risk_score = EXCLUDED.risk_score,
		finished_at = EXCLUDED.finished_at,
		duration_seconds = EXCLUDED.duration_seconds,
		evidence_zip_path = EXCLUDED.evidence_zip_path,
		investigation = EXCLUDED.investigation`

// CreateScan inserts or refreshes one scan row.
func (s *PostgresStore) CreateScan(ctx context.Context, rec *ScanRecord) error {
	invJSON, err := marshalInvestigation(rec.Investigation)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, upsertScanSQL,
		rec.ID, rec.TargetURL, rec.Domain, string(rec.Mode), string(rec.Status),
		rec.RiskScore, rec.StartedAt, nullableTime(rec.FinishedAt),
		rec.DurationSeconds, rec.EvidenceZipPath, invJSON)
	if err != nil {
		return fmt.Errorf("failed to save scan %s: %w", rec.ID, err)
	}
	return nil
}

// UpdateScanStatus flips the lifecycle column for one scan.
func (s *PostgresStore) UpdateScanStatus(ctx context.Context, id string, status models.InvestigationStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE scans SET status = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		return fmt.Errorf("failed to update scan status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("scan %s not found", id)
	}
	return nil
}

const scanColumns = `id, target_url, domain, mode, status, risk_score,
	started_at, COALESCE(finished_at, 'epoch'::timestamptz), duration_seconds,
	evidence_zip_path, COALESCE(investigation::text, ''), created_at`

func scanPgRow(row pgx.Row) (*ScanRecord, error) {
	var rec ScanRecord
	var mode, status, invJSON string
	err := row.Scan(&rec.ID, &rec.TargetURL, &rec.Domain, &mode, &status,
		&rec.RiskScore, &rec.StartedAt, &rec.FinishedAt, &rec.DurationSeconds,
		&rec.EvidenceZipPath, &invJSON, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	rec.Mode = models.ScanMode(mode)
	rec.Status = models.InvestigationStatus(status)
	if invJSON != "" {
		var inv models.Investigation
		if err := json.Unmarshal([]byte(invJSON), &inv); err == nil {
			rec.Investigation = &inv
		}
	}
	return &rec, nil
}

// GetScan fetches one scan by exact id.
func (s *PostgresStore) GetScan(ctx context.Context, id string) (*ScanRecord, error) {
	rec, err := scanPgRow(s.pool.QueryRow(ctx,
		`SELECT `+scanColumns+` FROM scans WHERE id = $1`, id))
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("scan %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scan: %w", err)
	}
	return rec, nil
}

// GetScanByPrefix resolves a scan by id prefix. Two matches is an error.
func (s *PostgresStore) GetScanByPrefix(ctx context.Context, prefix string) (*ScanRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id FROM scans WHERE id LIKE $1 || '%' LIMIT 2`, prefix)
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

// ListScans returns recent scans, optionally filtered by domain and status.
func (s *PostgresStore) ListScans(ctx context.Context, filter ScanFilter) ([]ScanRecord, error) {
	query := `SELECT ` + scanColumns + ` FROM scans WHERE 1=1`
	args := []interface{}{}
	if filter.Domain != "" {
		args = append(args, filter.Domain)
		query += fmt.Sprintf(" AND domain = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list scans: %w", err)
	}
	defer rows.Close()

	results := []ScanRecord{}
	for rows.Next() {
		rec, err := scanPgRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		results = append(results, *rec)
	}
	return results, rows.Err()
}

const upsertWalletSQL = `
	INSERT INTO harvested_wallets (scan_id, site_url, token_name, token_symbol,
		network_name, network_short, wallet_address, source, confidence, captured_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (scan_id, token_symbol, network_short, wallet_address) DO UPDATE SET
		confidence = EXCLUDED.confidence,
		source = EXCLUDED.source,
		token_name = EXCLUDED.token_name,
		network_name = EXCLUDED.network_name,
		captured_at = EXCLUDED.captured_at`

// PersistInvestigation commits the scan row plus all wallets, agent
// steps and PII exposures in one transaction.
func (s *PostgresStore) PersistInvestigation(ctx context.Context, scanID string, inv *models.Investigation, site *models.SiteResult) error {
	// 1. Begin Transaction
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// 2. Scan row
	invJSON, err := marshalInvestigation(inv)
	if err != nil {
		return err
	}
	riskScore := 0.0
	if inv.Taxonomy != nil {
		riskScore = inv.Taxonomy.RiskScore
	}
	_, err = tx.Exec(ctx, upsertScanSQL,
		scanID, inv.TargetURL, DomainOf(inv.TargetURL), string(inv.Mode),
		string(inv.Status), riskScore, inv.StartedAt,
		nullableTime(inv.FinishedAt), inv.DurationSeconds,
		inv.EvidenceZipPath, invJSON)
	if err != nil {
		return fmt.Errorf("failed to save scan %s: %w", scanID, err)
	}

	// 3. Harvested wallets
	for _, w := range inv.Wallets {
		_, err = tx.Exec(ctx, upsertWalletSQL,
			scanID, w.SiteURL, w.TokenName, w.TokenSymbol, w.NetworkName,
			w.NetworkShort, w.WalletAddress, string(w.Source), w.Confidence,
			w.CapturedAt)
		if err != nil {
			return fmt.Errorf("failed to save wallet %s: %w", w.WalletAddress, err)
		}
	}

	// 4. Agent action log, ordered by sequence
	runID := ""
	if site != nil && site.Session != nil {
		runID = site.Session.RunID
	}
	for i, step := range inv.AgentSteps {
		detail, err := json.Marshal(step.Action)
		if err != nil {
			return fmt.Errorf("failed to encode agent action: %w", err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO agent_sessions (scan_id, run_id, sequence, state, action_type,
				action_detail, input_tokens, output_tokens, duration_ms, error)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			scanID, runID, i, step.State, string(step.Action.Action),
			string(detail), step.InputTokens, step.OutputTokens,
			step.DurationMs, step.Error)
		if err != nil {
			return fmt.Errorf("failed to save agent step %d: %w", i, err)
		}
	}

	// 5. PII exposures
	for _, p := range inv.PII {
		_, err = tx.Exec(ctx, `
			INSERT INTO pii_exposures (scan_id, category, field_label, form_action, page_url, required, submitted)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			scanID, string(p.Category), p.FieldLabel, p.FormAction,
			p.PageURL, p.Required, p.Submitted)
		if err != nil {
			return fmt.Errorf("failed to save PII exposure: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// InsertWallet upserts one harvested wallet. A re-harvest of the same
// (scan, symbol, network, address) replaces confidence and source.
func (s *PostgresStore) InsertWallet(ctx context.Context, scanID string, w models.WalletEntry) error {
	_, err := s.pool.Exec(ctx, upsertWalletSQL,
		scanID, w.SiteURL, w.TokenName, w.TokenSymbol, w.NetworkName,
		w.NetworkShort, w.WalletAddress, string(w.Source), w.Confidence,
		w.CapturedAt)
	if err != nil {
		return fmt.Errorf("failed to save wallet %s: %w", w.WalletAddress, err)
	}
	return nil
}

// SearchWallets looks up harvested wallets across all scans. With
// Deduplicate set, rows collapse per (address, symbol, network) with
// first/last seen timestamps, a seen count and the max confidence.
func (s *PostgresStore) SearchWallets(ctx context.Context, q WalletQuery) ([]WalletRow, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}

	where := "1=1"
	args := []interface{}{}
	if q.Address != "" {
		args = append(args, q.Address)
		where += fmt.Sprintf(" AND wallet_address = $%d", len(args))
	}
	if q.Token != "" {
		args = append(args, strings.ToUpper(q.Token))
		where += fmt.Sprintf(" AND token_symbol = $%d", len(args))
	}
	args = append(args, limit)

	var query string
	if q.Deduplicate {
		query = fmt.Sprintf(`
			SELECT g.wallet_address, g.token_symbol, g.network_short,
				best.source, best.site_url, g.max_confidence,
				g.first_seen_at, g.last_seen_at, g.seen_count
			FROM (
				SELECT wallet_address, token_symbol, network_short,
					MAX(confidence) AS max_confidence,
					MIN(captured_at) AS first_seen_at,
					MAX(captured_at) AS last_seen_at,
					COUNT(*) AS seen_count
				FROM harvested_wallets WHERE %s
				GROUP BY wallet_address, token_symbol, network_short
			) g
			JOIN LATERAL (
				SELECT source, site_url FROM harvested_wallets h
				WHERE h.wallet_address = g.wallet_address
					AND h.token_symbol = g.token_symbol
					AND h.network_short = g.network_short
				ORDER BY h.confidence DESC, h.captured_at ASC LIMIT 1
			) best ON TRUE
			ORDER BY g.last_seen_at DESC LIMIT $%d`, where, len(args))
	} else {
		query = fmt.Sprintf(`
			SELECT wallet_address, token_symbol, network_short, source, site_url,
				confidence, captured_at, captured_at, 1, scan_id
			FROM harvested_wallets WHERE %s
			ORDER BY captured_at DESC LIMIT $%d`, where, len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search wallets: %w", err)
	}
	defer rows.Close()

	results := []WalletRow{}
	for rows.Next() {
		var r WalletRow
		if q.Deduplicate {
			err = rows.Scan(&r.WalletAddress, &r.TokenSymbol, &r.NetworkShort,
				&r.Source, &r.SiteURL, &r.Confidence, &r.FirstSeenAt,
				&r.LastSeenAt, &r.SeenCount)
		} else {
			err = rows.Scan(&r.WalletAddress, &r.TokenSymbol, &r.NetworkShort,
				&r.Source, &r.SiteURL, &r.Confidence, &r.FirstSeenAt,
				&r.LastSeenAt, &r.SeenCount, &r.ScanID)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to scan wallet row: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// InsertAgentStep appends one row to the agent action log.
func (s *PostgresStore) InsertAgentStep(ctx context.Context, row AgentStepRow) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO agent_sessions (scan_id, run_id, sequence, state, action_type,
			action_detail, page_url, dom_confidence, llm_model, input_tokens,
			output_tokens, cost_usd, duration_ms, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		row.ScanID, row.RunID, row.Sequence, row.State, row.ActionType,
		row.ActionDetail, row.PageURL, row.DOMConfidence, row.LLMModel,
		row.InputTokens, row.OutputTokens, row.CostUSD, row.DurationMs, row.Error)
	if err != nil {
		return fmt.Errorf("failed to save agent step: %w", err)
	}
	return nil
}

// ListAgentSteps replays the action log for one scan in sequence order.
func (s *PostgresStore) ListAgentSteps(ctx context.Context, scanID string) ([]AgentStepRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT scan_id, run_id, sequence, state, action_type,
			COALESCE(action_detail::text, ''), page_url, dom_confidence, llm_model,
			input_tokens, output_tokens, cost_usd, duration_ms, error
		FROM agent_sessions WHERE scan_id = $1 ORDER BY sequence ASC`, scanID)
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

// InsertPIIExposure records one harvesting form field.
func (s *PostgresStore) InsertPIIExposure(ctx context.Context, scanID string, p models.PIIExposure) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pii_exposures (scan_id, category, field_label, form_action, page_url, required, submitted)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		scanID, string(p.Category), p.FieldLabel, p.FormAction, p.PageURL,
		p.Required, p.Submitted)
	if err != nil {
		return fmt.Errorf("failed to save PII exposure: %w", err)
	}
	return nil
}

// ListPIIExposures returns all recorded exposures for one scan.
func (s *PostgresStore) ListPIIExposures(ctx context.Context, scanID string) ([]models.PIIExposure, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT category, field_label, form_action, page_url, required, submitted
		FROM pii_exposures WHERE scan_id = $1 ORDER BY id ASC`, scanID)
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
