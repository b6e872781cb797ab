// Package store persists the entire memory state to a single SQLite file
// and loads it back, with atomic temp-file-plus-rename save semantics and
// corrupt-file quarantine on load.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite"

	"memengine/internal/activation"
	"memengine/internal/graph"
	"memengine/internal/logging"
	"memengine/internal/policy"
)

// FormatVersion is the top-level schema major version. Engines must reject
// unknown major versions rather than attempt migration.
const FormatVersion = 1

// HistoryEntry is a single append-only operation log record.
type HistoryEntry struct {
	At            int64
	Op            string
	ArgsSummary   string
	ResultSummary string
}

// State is the full serializable aggregate root: items, edges, policy,
// policy versions, recent sessions, and history. The manifest cache is
// intentionally excluded; it is never persisted.
type State struct {
	FormatVersion int
	ID            string
	Born          int64
	GlobalEnergy  float64
	Threshold     float64

	Items []*graph.MemoryItem
	Edges []*graph.MemoryEdge

	PolicyVersions []*policy.Version
	ActivePolicy   map[policy.FunctionName]string
	PolicyParams   policy.Params

	RecentSessions []activation.SessionRecord
	History        []HistoryEntry
}

// Store persists State to and loads it from a single file at Path.
type Store struct {
	Path string
}

// New returns a Store writing to path.
func New(path string) *Store {
	return &Store{Path: path}
}

// Load reads the state file. If it does not exist, returns (nil, nil) so the
// caller initializes a fresh state. If it exists but is corrupt, the bad
// file is moved aside with a `.corrupt.<unix-ms>` suffix, a marker is
// logged, and (nil, nil) is returned — corruption is never fatal.
func (s *Store) Load(nowMs int64) (*State, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Load")
	defer timer.Stop()

	if _, err := os.Stat(s.Path); os.IsNotExist(err) {
		logging.StoreDebug("no snapshot at %s, starting fresh", s.Path)
		return nil, nil
	}

	state, err := s.loadFrom(s.Path)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("snapshot at %s is corrupt: %v", s.Path, err)
		corruptPath := fmt.Sprintf("%s.corrupt.%d", s.Path, nowMs)
		if renameErr := os.Rename(s.Path, corruptPath); renameErr != nil {
			logging.Get(logging.CategoryStore).Error("failed to quarantine corrupt snapshot: %v", renameErr)
		} else {
			logging.Get(logging.CategoryStore).Warn("quarantined corrupt snapshot at %s", corruptPath)
		}
		return nil, nil
	}

	if state.FormatVersion > FormatVersion {
		return nil, fmt.Errorf("snapshot format version %d is newer than supported %d", state.FormatVersion, FormatVersion)
	}

	logging.Store("loaded snapshot: %d items, %d edges, %d history entries", len(state.Items), len(state.Edges), len(state.History))
	return state, nil
}

// Save atomically replaces the state file: the new snapshot is written in
// full to a temp file in the same directory, fsynced, then renamed over the
// destination (I7) — readers always see either the pre-save or post-save
// file, never a partial one.
func (s *Store) Save(state *State) error {
	timer := logging.StartTimer(logging.CategoryStore, "Save")
	defer timer.Stop()

	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	tmpPath := fmt.Sprintf("%s.tmp-%d", s.Path, state.Born)
	if err := s.writeTo(tmpPath, state); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing snapshot: %w", err)
	}

	if err := os.Rename(tmpPath, s.Path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming snapshot into place: %w", err)
	}

	logging.Store("saved snapshot: %d items, %d edges", len(state.Items), len(state.Edges))
	return nil
}

func (s *Store) writeTo(path string, state *State) error {
	os.Remove(path)

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("opening snapshot db: %w", err)
	}
	defer db.Close()

	if _, err := db.Exec("PRAGMA synchronous = FULL"); err != nil {
		logging.StoreDebug("failed to set synchronous=FULL: %v", err)
	}

	if err := createSchema(db); err != nil {
		return err
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO meta (format_version, id, born, global_energy, threshold) VALUES (?,?,?,?,?)`,
		FormatVersion, state.ID, state.Born, state.GlobalEnergy, state.Threshold); err != nil {
		return fmt.Errorf("writing meta: %w", err)
	}

	for _, item := range state.Items {
		tags := item.TagSlice()
		sort.Strings(tags)
		tagsJSON, _ := json.Marshal(tags)
		if _, err := tx.Exec(
			`INSERT INTO items (id, type, text, tags, importance, energy, ttl, scope, created_at, updated_at, last_accessed_at, access_count, success, fail)
			 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
			item.ID, item.Type, item.Text, string(tagsJSON), item.Importance, item.Energy, string(item.TTL), item.Scope,
			item.CreatedAt, item.UpdatedAt, item.LastAccessedAt, item.AccessCount, item.Success, item.Fail,
		); err != nil {
			return fmt.Errorf("writing item %s: %w", item.ID, err)
		}
	}

	for _, edge := range state.Edges {
		if _, err := tx.Exec(
			`INSERT INTO edges (from_id, to_id, relation, weight, last_reinforced_at, context) VALUES (?,?,?,?,?,?)`,
			edge.From, edge.To, edge.Relation, edge.Weight, edge.LastReinforcedAt, edge.Context,
		); err != nil {
			return fmt.Errorf("writing edge %s-%s: %w", edge.From, edge.To, err)
		}
	}

	for _, v := range state.PolicyVersions {
		if _, err := tx.Exec(
			`INSERT INTO policy_versions (version_id, name, source, created_at, success, fail, superseded_by) VALUES (?,?,?,?,?,?,?)`,
			v.VersionID, string(v.Name), v.Source, v.CreatedAt, v.Success, v.Fail, v.SupersededBy,
		); err != nil {
			return fmt.Errorf("writing policy version %s: %w", v.VersionID, err)
		}
	}

	for name, versionID := range state.ActivePolicy {
		if _, err := tx.Exec(`INSERT INTO policy_active (name, version_id) VALUES (?,?)`, string(name), versionID); err != nil {
			return fmt.Errorf("writing active policy %s: %w", name, err)
		}
	}

	if _, err := tx.Exec(
		`INSERT INTO policy_params (half_life_days, activation_steps, activation_decay, activation_threshold, reinforce_delta, attribution_window)
		 VALUES (?,?,?,?,?,?)`,
		state.PolicyParams.HalfLifeDays, state.PolicyParams.ActivationSteps, state.PolicyParams.ActivationDecay,
		state.PolicyParams.ActivationThreshold, state.PolicyParams.ReinforceDelta, state.PolicyParams.AttributionWindow,
	); err != nil {
		return fmt.Errorf("writing policy params: %w", err)
	}

	for _, sess := range state.RecentSessions {
		returnedJSON, _ := json.Marshal(sess.ReturnedIDs)
		versionsJSON, _ := json.Marshal(sess.PolicyVersions)
		if _, err := tx.Exec(
			`INSERT INTO sessions (session_id, query, at, returned_ids, policy_versions) VALUES (?,?,?,?,?)`,
			sess.SessionID, sess.Query, sess.At, string(returnedJSON), string(versionsJSON),
		); err != nil {
			return fmt.Errorf("writing session %s: %w", sess.SessionID, err)
		}
	}

	for _, h := range state.History {
		if _, err := tx.Exec(
			`INSERT INTO history (at, op, args_summary, result_summary) VALUES (?,?,?,?)`,
			h.At, h.Op, h.ArgsSummary, h.ResultSummary,
		); err != nil {
			return fmt.Errorf("writing history entry: %w", err)
		}
	}

	return tx.Commit()
}

func (s *Store) loadFrom(path string) (*State, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot db: %w", err)
	}
	defer db.Close()

	state := &State{
		ActivePolicy: make(map[policy.FunctionName]string),
	}

	row := db.QueryRow(`SELECT format_version, id, born, global_energy, threshold FROM meta LIMIT 1`)
	if err := row.Scan(&state.FormatVersion, &state.ID, &state.Born, &state.GlobalEnergy, &state.Threshold); err != nil {
		return nil, fmt.Errorf("reading meta: %w", err)
	}

	itemRows, err := db.Query(`SELECT id, type, text, tags, importance, energy, ttl, scope, created_at, updated_at, last_accessed_at, access_count, success, fail FROM items`)
	if err != nil {
		return nil, fmt.Errorf("reading items: %w", err)
	}
	for itemRows.Next() {
		var item graph.MemoryItem
		var tagsJSON, ttl string
		if err := itemRows.Scan(&item.ID, &item.Type, &item.Text, &tagsJSON, &item.Importance, &item.Energy, &ttl, &item.Scope,
			&item.CreatedAt, &item.UpdatedAt, &item.LastAccessedAt, &item.AccessCount, &item.Success, &item.Fail); err != nil {
			itemRows.Close()
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		item.TTL = graph.TTL(ttl)
		var tags []string
		_ = json.Unmarshal([]byte(tagsJSON), &tags)
		item.Tags = make(map[string]struct{}, len(tags))
		for _, t := range tags {
			item.Tags[t] = struct{}{}
		}
		cp := item
		state.Items = append(state.Items, &cp)
	}
	itemRows.Close()

	edgeRows, err := db.Query(`SELECT from_id, to_id, relation, weight, last_reinforced_at, context FROM edges`)
	if err != nil {
		return nil, fmt.Errorf("reading edges: %w", err)
	}
	for edgeRows.Next() {
		var edge graph.MemoryEdge
		if err := edgeRows.Scan(&edge.From, &edge.To, &edge.Relation, &edge.Weight, &edge.LastReinforcedAt, &edge.Context); err != nil {
			edgeRows.Close()
			return nil, fmt.Errorf("scanning edge: %w", err)
		}
		cp := edge
		state.Edges = append(state.Edges, &cp)
	}
	edgeRows.Close()

	versionRows, err := db.Query(`SELECT version_id, name, source, created_at, success, fail, superseded_by FROM policy_versions`)
	if err != nil {
		return nil, fmt.Errorf("reading policy versions: %w", err)
	}
	for versionRows.Next() {
		var v policy.Version
		var name string
		if err := versionRows.Scan(&v.VersionID, &name, &v.Source, &v.CreatedAt, &v.Success, &v.Fail, &v.SupersededBy); err != nil {
			versionRows.Close()
			return nil, fmt.Errorf("scanning policy version: %w", err)
		}
		v.Name = policy.FunctionName(name)
		cp := v
		state.PolicyVersions = append(state.PolicyVersions, &cp)
	}
	versionRows.Close()

	activeRows, err := db.Query(`SELECT name, version_id FROM policy_active`)
	if err != nil {
		return nil, fmt.Errorf("reading active policy: %w", err)
	}
	for activeRows.Next() {
		var name, versionID string
		if err := activeRows.Scan(&name, &versionID); err != nil {
			activeRows.Close()
			return nil, fmt.Errorf("scanning active policy: %w", err)
		}
		state.ActivePolicy[policy.FunctionName(name)] = versionID
	}
	activeRows.Close()

	paramsRow := db.QueryRow(`SELECT half_life_days, activation_steps, activation_decay, activation_threshold, reinforce_delta, attribution_window FROM policy_params LIMIT 1`)
	if err := paramsRow.Scan(&state.PolicyParams.HalfLifeDays, &state.PolicyParams.ActivationSteps, &state.PolicyParams.ActivationDecay,
		&state.PolicyParams.ActivationThreshold, &state.PolicyParams.ReinforceDelta, &state.PolicyParams.AttributionWindow); err != nil {
		return nil, fmt.Errorf("reading policy params: %w", err)
	}

	sessionRows, err := db.Query(`SELECT session_id, query, at, returned_ids, policy_versions FROM sessions ORDER BY at ASC`)
	if err != nil {
		return nil, fmt.Errorf("reading sessions: %w", err)
	}
	for sessionRows.Next() {
		var sess activation.SessionRecord
		var returnedJSON, versionsJSON string
		if err := sessionRows.Scan(&sess.SessionID, &sess.Query, &sess.At, &returnedJSON, &versionsJSON); err != nil {
			sessionRows.Close()
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		_ = json.Unmarshal([]byte(returnedJSON), &sess.ReturnedIDs)
		sess.PolicyVersions = make(map[policy.FunctionName]string)
		_ = json.Unmarshal([]byte(versionsJSON), &sess.PolicyVersions)
		state.RecentSessions = append(state.RecentSessions, sess)
	}
	sessionRows.Close()

	historyRows, err := db.Query(`SELECT at, op, args_summary, result_summary FROM history ORDER BY at ASC`)
	if err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}
	for historyRows.Next() {
		var h HistoryEntry
		if err := historyRows.Scan(&h.At, &h.Op, &h.ArgsSummary, &h.ResultSummary); err != nil {
			historyRows.Close()
			return nil, fmt.Errorf("scanning history entry: %w", err)
		}
		state.History = append(state.History, h)
	}
	historyRows.Close()

	return state, nil
}

func createSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE meta (format_version INTEGER, id TEXT, born INTEGER, global_energy REAL, threshold REAL)`,
		`CREATE TABLE items (
			id TEXT PRIMARY KEY, type TEXT, text TEXT, tags TEXT, importance REAL, energy REAL,
			ttl TEXT, scope TEXT, created_at INTEGER, updated_at INTEGER, last_accessed_at INTEGER,
			access_count INTEGER, success INTEGER, fail INTEGER
		)`,
		`CREATE TABLE edges (
			from_id TEXT, to_id TEXT, relation TEXT, weight REAL, last_reinforced_at INTEGER, context TEXT,
			PRIMARY KEY (from_id, to_id, relation)
		)`,
		`CREATE TABLE policy_versions (
			version_id TEXT PRIMARY KEY, name TEXT, source TEXT, created_at INTEGER,
			success INTEGER, fail INTEGER, superseded_by TEXT
		)`,
		`CREATE TABLE policy_active (name TEXT PRIMARY KEY, version_id TEXT)`,
		`CREATE TABLE policy_params (
			half_life_days REAL, activation_steps INTEGER, activation_decay REAL,
			activation_threshold REAL, reinforce_delta REAL, attribution_window INTEGER
		)`,
		`CREATE TABLE sessions (session_id TEXT PRIMARY KEY, query TEXT, at INTEGER, returned_ids TEXT, policy_versions TEXT)`,
		`CREATE TABLE history (at INTEGER, op TEXT, args_summary TEXT, result_summary TEXT)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("creating schema (%s): %w", strings.SplitN(stmt, " ", 3)[1], err)
		}
	}
	return nil
}
