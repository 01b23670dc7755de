package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"parley/internal/services"
)

// UpsertPersonaContext inserts or replaces the persona context for a source
// URL. The context text must be non-empty (invariant: a record exists only
// when summarization produced something).
func (s *Store) UpsertPersonaContext(ctx context.Context, pc *PersonaContext) error {
	if pc == nil {
		return errors.New("persona context is nil")
	}
	if strings.TrimSpace(pc.SourceURL) == "" {
		return errors.New("persona context source url required")
	}
	if strings.TrimSpace(pc.Context) == "" {
		return errors.New("persona context text required")
	}
	pc.CreatedAt = time.Now().UTC()

	var summariesJSON string
	if len(pc.PageSummaries) > 0 {
		data, err := json.Marshal(pc.PageSummaries)
		if err != nil {
			return fmt.Errorf("encode page summaries: %w", err)
		}
		summariesJSON = string(data)
	}

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO persona_contexts (source_url, context, page_summaries_json, created_at)
         VALUES (?, ?, ?, ?)
         ON CONFLICT(source_url) DO UPDATE SET
             context = excluded.context,
             page_summaries_json = excluded.page_summaries_json,
             created_at = excluded.created_at`,
		pc.SourceURL,
		pc.Context,
		nullableString(summariesJSON),
		pc.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return services.Wrap(services.ErrStorage, "store", "upsert persona context", pc.SourceURL, err)
	}
	return nil
}

// GetPersonaContext fetches the persona context for a source URL.
// Returns (nil, nil) when absent.
func (s *Store) GetPersonaContext(ctx context.Context, sourceURL string) (*PersonaContext, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT source_url, context, page_summaries_json, created_at
         FROM persona_contexts WHERE source_url = ?`,
		sourceURL,
	)
	pc, err := scanPersonaContext(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "store", "get persona context", sourceURL, err)
	}
	return pc, nil
}

// ListPersonaContexts returns all persona contexts ordered by source URL.
func (s *Store) ListPersonaContexts(ctx context.Context) ([]*PersonaContext, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT source_url, context, page_summaries_json, created_at
         FROM persona_contexts ORDER BY source_url`,
	)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "store", "list persona contexts", "", err)
	}
	defer rows.Close()

	var contexts []*PersonaContext
	for rows.Next() {
		pc, err := scanPersonaContext(rows)
		if err != nil {
			return nil, err
		}
		contexts = append(contexts, pc)
	}
	return contexts, rows.Err()
}

func scanPersonaContext(scanner interface{ Scan(dest ...any) error }) (*PersonaContext, error) {
	var (
		sourceURL     string
		contextText   string
		summariesJSON sql.NullString
		createdRaw    sql.NullString
	)
	if err := scanner.Scan(&sourceURL, &contextText, &summariesJSON, &createdRaw); err != nil {
		return nil, err
	}
	pc := &PersonaContext{
		SourceURL: sourceURL,
		Context:   contextText,
	}
	if summariesJSON.Valid && summariesJSON.String != "" {
		if err := json.Unmarshal([]byte(summariesJSON.String), &pc.PageSummaries); err != nil {
			return nil, fmt.Errorf("decode page summaries for %s: %w", sourceURL, err)
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		pc.CreatedAt = created
	}
	return pc, nil
}
