package retrieval

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
	_ "modernc.org/sqlite"
)

// maxTmMatches bounds how many translation-memory hints are attached to one
// segment; more than a handful just bloats the prompt.
const maxTmMatches = 3

// tmKeywordMinLen filters stop-word noise out of keyword matching.
const tmKeywordMinLen = 4

// Store is the SQLite-backed glossary and translation memory.
type Store struct {
	db *sql.DB
}

func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	-- glossary stores user-defined terminology for consistent translation of specific terms
	CREATE TABLE IF NOT EXISTS glossary (
		id TEXT PRIMARY KEY,
		source_lang TEXT NOT NULL,
		target_lang TEXT NOT NULL,
		source_term TEXT NOT NULL,
		target_term TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(source_lang, target_lang, source_term)
	);

	-- translation_memory stores masked source/target sentence pairs from completed runs
	CREATE TABLE IF NOT EXISTS translation_memory (
		id TEXT PRIMARY KEY,
		source_text TEXT NOT NULL,
		source_lang TEXT NOT NULL,
		target_lang TEXT NOT NULL,
		target_text TEXT NOT NULL,
		usage_count INTEGER DEFAULT 1,
		last_used TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(source_text, source_lang, target_lang)
	);

	CREATE INDEX IF NOT EXISTS idx_glossary_lookup ON glossary(source_lang, target_lang);
	CREATE INDEX IF NOT EXISTS idx_memory_lookup ON translation_memory(source_lang, target_lang);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// ForPair returns a read-only Retriever view of the store bound to one
// language pair.
func (s *Store) ForPair(sourceLang, targetLang string) Retriever {
	return &pairRetriever{store: s, sourceLang: sourceLang, targetLang: targetLang}
}

type pairRetriever struct {
	store      *Store
	sourceLang string
	targetLang string
}

func (p *pairRetriever) ExactTermMatch(ctx context.Context, text string) ([]TermMatch, error) {
	return p.store.ExactTermMatch(ctx, p.sourceLang, p.targetLang, text)
}

func (p *pairRetriever) HybridMatch(ctx context.Context, text string) ([]TmMatch, error) {
	return p.store.HybridMatch(ctx, p.sourceLang, p.targetLang, text)
}

// ExactTermMatch returns every glossary term for the pair that occurs in text
// (case-insensitive containment), ordered by source term.
func (s *Store) ExactTermMatch(ctx context.Context, sourceLang, targetLang, text string) ([]TermMatch, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source_term, target_term FROM glossary
		 WHERE source_lang = ? AND target_lang = ?
		 ORDER BY source_term`,
		sourceLang, targetLang)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lower := strings.ToLower(text)
	var matches []TermMatch
	for rows.Next() {
		var term, translation string
		if err := rows.Scan(&term, &translation); err != nil {
			return nil, err
		}
		if strings.Contains(lower, strings.ToLower(term)) {
			matches = append(matches, TermMatch{Term: term, Translation: translation})
		}
	}
	return matches, rows.Err()
}

// HybridMatch fuses keyword containment with an edit-distance similarity
// ranking over the pair's translation memory and returns the top matches,
// best first. Usage counters on the returned entries are bumped.
func (s *Store) HybridMatch(ctx context.Context, sourceLang, targetLang, text string) ([]TmMatch, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source_text, target_text FROM translation_memory
		 WHERE source_lang = ? AND target_lang = ?`,
		sourceLang, targetLang)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keywords := extractKeywords(text)
	normalized := normalizeText(text)

	type scored struct {
		match TmMatch
		score float64
	}
	var candidates []scored

	for rows.Next() {
		var src, tgt string
		if err := rows.Scan(&src, &tgt); err != nil {
			return nil, err
		}
		kw := keywordOverlap(keywords, src)
		if kw == 0 {
			continue
		}
		sim := stringSimilarity(normalized, normalizeText(src))
		candidates = append(candidates, scored{
			match: TmMatch{Source: src, Target: tgt},
			// Keyword overlap recalls, similarity ranks within the recalled set.
			score: kw + sim,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > maxTmMatches {
		candidates = candidates[:maxTmMatches]
	}

	matches := make([]TmMatch, 0, len(candidates))
	for _, c := range candidates {
		matches = append(matches, c.match)
		_, _ = s.db.ExecContext(ctx,
			`UPDATE translation_memory SET usage_count = usage_count + 1, last_used = ?
			 WHERE source_text = ? AND source_lang = ? AND target_lang = ?`,
			time.Now(), c.match.Source, sourceLang, targetLang)
	}
	return matches, nil
}

// SaveToMemory stores a completed segment pair. Both sides are expected to be
// in masked form so no sensitive original ever reaches disk.
func (s *Store) SaveToMemory(ctx context.Context, sourceLang, targetLang, sourceText, targetText string) error {
	id := fmt.Sprintf("tm_%d", time.Now().UnixNano())
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO translation_memory
		 (id, source_text, source_lang, target_lang, target_text, usage_count, last_used, created_at)
		 VALUES (?, ?, ?, ?, ?, 1, ?, ?)`,
		id, sourceText, sourceLang, targetLang, targetText, time.Now(), time.Now())
	return err
}

// MemoryEntry is a row from the translation_memory table.
type MemoryEntry struct {
	ID         string
	SourceText string
	SourceLang string
	TargetLang string
	TargetText string
	UsageCount int
	LastUsed   time.Time
}

// MemoryStats summarises translation memory usage.
type MemoryStats struct {
	TotalEntries int
	TotalUsage   int
}

// ListMemory returns all translation memory entries ordered by most recently used.
func (s *Store) ListMemory(ctx context.Context) ([]MemoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_text, source_lang, target_lang, target_text, usage_count, last_used
		 FROM translation_memory ORDER BY last_used DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []MemoryEntry
	for rows.Next() {
		var e MemoryEntry
		if err := rows.Scan(&e.ID, &e.SourceText, &e.SourceLang, &e.TargetLang, &e.TargetText, &e.UsageCount, &e.LastUsed); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// MemoryStats returns summary statistics for the translation memory.
func (s *Store) MemoryStats(ctx context.Context) (*MemoryStats, error) {
	stats := &MemoryStats{}
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(usage_count), 0) FROM translation_memory`).
		Scan(&stats.TotalEntries, &stats.TotalUsage)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// DeleteMemory permanently removes a translation memory entry by ID.
func (s *Store) DeleteMemory(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM translation_memory WHERE id = ?`, id)
	return err
}

// ClearMemory removes all translation memory entries.
func (s *Store) ClearMemory(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM translation_memory`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// GlossaryEntry represents a row in the glossary table.
type GlossaryEntry struct {
	ID         string
	SourceLang string
	TargetLang string
	SourceTerm string
	TargetTerm string
	CreatedAt  time.Time
}

// AddGlossaryTerm inserts or replaces a glossary entry.
func (s *Store) AddGlossaryTerm(ctx context.Context, sourceLang, targetLang, sourceTerm, targetTerm string) error {
	id := fmt.Sprintf("gl_%d", time.Now().UnixNano())
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO glossary (id, source_lang, target_lang, source_term, target_term)
		 VALUES (?, ?, ?, ?, ?)`,
		id, sourceLang, targetLang, sourceTerm, targetTerm)
	return err
}

// ListGlossaryTerms returns all glossary entries, optionally filtered by
// language pair (pass empty strings to return everything).
func (s *Store) ListGlossaryTerms(ctx context.Context, sourceLang, targetLang string) ([]GlossaryEntry, error) {
	query := `SELECT id, source_lang, target_lang, source_term, target_term, created_at FROM glossary`
	var args []interface{}

	switch {
	case sourceLang != "" && targetLang != "":
		query += ` WHERE source_lang = ? AND target_lang = ?`
		args = append(args, sourceLang, targetLang)
	case sourceLang != "":
		query += ` WHERE source_lang = ?`
		args = append(args, sourceLang)
	case targetLang != "":
		query += ` WHERE target_lang = ?`
		args = append(args, targetLang)
	}
	query += ` ORDER BY source_lang, target_lang, source_term`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []GlossaryEntry
	for rows.Next() {
		var e GlossaryEntry
		if err := rows.Scan(&e.ID, &e.SourceLang, &e.TargetLang, &e.SourceTerm, &e.TargetTerm, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DeleteGlossaryTerm removes a glossary entry by ID.
func (s *Store) DeleteGlossaryTerm(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM glossary WHERE id = ?`, id)
	return err
}

// extractKeywords returns the lowered words of text longer than the stop-word
// threshold.
func extractKeywords(text string) []string {
	var keywords []string
	for _, w := range strings.Fields(text) {
		w = strings.ToLower(strings.Trim(w, ".,!?;:\"'()"))
		if len(w) >= tmKeywordMinLen {
			keywords = append(keywords, w)
		}
	}
	return keywords
}

// keywordOverlap returns the fraction of keywords that occur in candidate.
func keywordOverlap(keywords []string, candidate string) float64 {
	if len(keywords) == 0 {
		return 0
	}
	lower := strings.ToLower(candidate)
	hits := 0
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			hits++
		}
	}
	return float64(hits) / float64(len(keywords))
}

// normalizeText trims whitespace and applies Unicode NFC normalization
// for consistent comparison.
func normalizeText(text string) string {
	return norm.NFC.String(strings.TrimSpace(text))
}

// levenshtein returns the edit distance between two strings (rune-aware).
// Uses a space-optimized two-row DP implementation.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}

	prev := make([]int, lb+1)
	curr := make([]int, lb+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= la; i++ {
		curr[0] = i
		for j := 1; j <= lb; j++ {
			if ra[i-1] == rb[j-1] {
				curr[j] = prev[j-1]
			} else {
				min := prev[j]
				if prev[j-1] < min {
					min = prev[j-1]
				}
				if curr[j-1] < min {
					min = curr[j-1]
				}
				curr[j] = min + 1
			}
		}
		prev, curr = curr, prev
	}

	return prev[lb]
}

// stringSimilarity returns a similarity score in [0, 1] (1 = identical).
func stringSimilarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	la, lb := len([]rune(a)), len([]rune(b))
	maxLen := la
	if lb > maxLen {
		maxLen = lb
	}
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(levenshtein(a, b))/float64(maxLen)
}
