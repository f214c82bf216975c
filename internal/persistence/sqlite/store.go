// Package sqlite implements a SQLite-backed domain.ModelStore using the pure
// Go driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"genomcore/pkg/domain"
)

// Compile-time contract assertion.
var _ domain.ModelStore = (*Store)(nil)

// effectBatchSize bounds the per-statement payload when inserting marker
// effects; dense chips carry tens of thousands of rows per model.
const effectBatchSize = 1000

// Store persists model artifacts, marker effects, and GEBV predictions in
// relational tables. SaveModel runs in a single transaction so a failed
// training write never leaves a partial artifact behind.
type Store struct {
	db   *sql.DB
	path string
}

// New opens (creating if needed) a SQLite model store at path.
func New(path string) (*Store, error) {
	if path == "" {
		path = "genomcore.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	s := &Store{db: db, path: path}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS gs_models (
			id TEXT PRIMARY KEY,
			model_name TEXT NOT NULL,
			trait_name TEXT NOT NULL,
			method TEXT NOT NULL,
			training_population_size INTEGER NOT NULL,
			marker_count INTEGER NOT NULL,
			heritability REAL NOT NULL,
			genetic_variance REAL NOT NULL,
			error_variance REAL NOT NULL,
			accuracy REAL NOT NULL,
			mean REAL NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS marker_effects (
			model_id TEXT NOT NULL,
			marker_name TEXT NOT NULL,
			position INTEGER NOT NULL,
			effect REAL NOT NULL,
			PRIMARY KEY (model_id, position)
		)`,
		`CREATE TABLE IF NOT EXISTS gebv_predictions (
			model_id TEXT NOT NULL,
			individual_id TEXT NOT NULL,
			gebv REAL NOT NULL,
			reliability REAL NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_gebv_predictions_model ON gebv_predictions(model_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// SaveModel writes the artifact, its effects (in chunks), and the fitted
// predictions atomically.
func (s *Store) SaveModel(ctx context.Context, artifact domain.ModelArtifact, predictions []domain.GEBVPrediction) error {
	if artifact.ID == "" {
		return domain.NewValidationError("model artifact has no ID")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO gs_models (id, model_name, trait_name, method, training_population_size,
			marker_count, heritability, genetic_variance, error_variance, accuracy, mean, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		artifact.ID, artifact.ModelName, artifact.TraitName, artifact.Method,
		artifact.TrainingPopulationSize, artifact.MarkerCount, artifact.Heritability,
		artifact.GeneticVariance, artifact.ErrorVariance, artifact.Accuracy, artifact.Mean,
		artifact.CreatedAt.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("insert model: %w", err)
	}

	for start := 0; start < len(artifact.Effects); start += effectBatchSize {
		end := min(start+effectBatchSize, len(artifact.Effects))
		if err := insertEffects(ctx, tx, artifact.ID, artifact.Effects[start:end]); err != nil {
			return err
		}
	}

	if err := insertPredictions(ctx, tx, predictions); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func insertEffects(ctx context.Context, tx *sql.Tx, modelID string, effects []domain.MarkerEffect) error {
	if len(effects) == 0 {
		return nil
	}
	var sb strings.Builder
	sb.WriteString(`INSERT INTO marker_effects (model_id, marker_name, position, effect) VALUES `)
	args := make([]any, 0, len(effects)*4)
	for i, e := range effects {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?, ?)")
		args = append(args, modelID, e.MarkerName, e.Position, e.Effect)
	}
	if _, err := tx.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("insert effects: %w", err)
	}
	return nil
}

func insertPredictions(ctx context.Context, tx *sql.Tx, predictions []domain.GEBVPrediction) error {
	if len(predictions) == 0 {
		return nil
	}
	var sb strings.Builder
	sb.WriteString(`INSERT INTO gebv_predictions (model_id, individual_id, gebv, reliability) VALUES `)
	args := make([]any, 0, len(predictions)*4)
	for i, p := range predictions {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?, ?)")
		args = append(args, p.ModelID, p.IndividualID, p.GEBV, p.Reliability)
	}
	if _, err := tx.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("insert predictions: %w", err)
	}
	return nil
}

// GetModel loads the artifact and hydrates effects in position order.
func (s *Store) GetModel(ctx context.Context, id string) (domain.ModelArtifact, error) {
	artifact, err := s.scanModel(ctx, id)
	if err != nil {
		return domain.ModelArtifact{}, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT marker_name, position, effect FROM marker_effects WHERE model_id = ? ORDER BY position`, id)
	if err != nil {
		return domain.ModelArtifact{}, fmt.Errorf("select effects: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		e := domain.MarkerEffect{ModelID: id}
		if err := rows.Scan(&e.MarkerName, &e.Position, &e.Effect); err != nil {
			return domain.ModelArtifact{}, fmt.Errorf("scan effect: %w", err)
		}
		artifact.Effects = append(artifact.Effects, e)
	}
	if err := rows.Err(); err != nil {
		return domain.ModelArtifact{}, fmt.Errorf("iterate effects: %w", err)
	}
	return artifact, nil
}

func (s *Store) scanModel(ctx context.Context, id string) (domain.ModelArtifact, error) {
	var artifact domain.ModelArtifact
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, model_name, trait_name, method, training_population_size, marker_count,
			heritability, genetic_variance, error_variance, accuracy, mean, created_at
		 FROM gs_models WHERE id = ?`, id).Scan(
		&artifact.ID, &artifact.ModelName, &artifact.TraitName, &artifact.Method,
		&artifact.TrainingPopulationSize, &artifact.MarkerCount, &artifact.Heritability,
		&artifact.GeneticVariance, &artifact.ErrorVariance, &artifact.Accuracy, &artifact.Mean,
		&createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ModelArtifact{}, domain.ErrModelNotFound
	}
	if err != nil {
		return domain.ModelArtifact{}, fmt.Errorf("select model: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return domain.ModelArtifact{}, fmt.Errorf("parse created_at: %w", err)
	}
	artifact.CreatedAt = ts
	return artifact, nil
}

// ListModels returns artifacts without effect vectors, creation time
// ascending.
func (s *Store) ListModels(ctx context.Context) ([]domain.ModelArtifact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, model_name, trait_name, method, training_population_size, marker_count,
			heritability, genetic_variance, error_variance, accuracy, mean, created_at
		 FROM gs_models ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("select models: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []domain.ModelArtifact
	for rows.Next() {
		var artifact domain.ModelArtifact
		var createdAt string
		if err := rows.Scan(
			&artifact.ID, &artifact.ModelName, &artifact.TraitName, &artifact.Method,
			&artifact.TrainingPopulationSize, &artifact.MarkerCount, &artifact.Heritability,
			&artifact.GeneticVariance, &artifact.ErrorVariance, &artifact.Accuracy, &artifact.Mean,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan model: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		artifact.CreatedAt = ts
		out = append(out, artifact)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate models: %w", err)
	}
	return out, nil
}

// DeleteModel removes the model and cascades to effects and predictions.
func (s *Store) DeleteModel(ctx context.Context, id string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM gs_models WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete model: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return false, nil
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM marker_effects WHERE model_id = ?`, id); err != nil {
		return false, fmt.Errorf("delete effects: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM gebv_predictions WHERE model_id = ?`, id); err != nil {
		return false, fmt.Errorf("delete predictions: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

// SavePredictions stores predictions for already-persisted models.
func (s *Store) SavePredictions(ctx context.Context, predictions []domain.GEBVPrediction) error {
	if len(predictions) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if err := insertPredictions(ctx, tx, predictions); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ListPredictions returns a model's predictions, individual ID ascending.
func (s *Store) ListPredictions(ctx context.Context, modelID string) ([]domain.GEBVPrediction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT model_id, individual_id, gebv, reliability FROM gebv_predictions
		 WHERE model_id = ? ORDER BY individual_id`, modelID)
	if err != nil {
		return nil, fmt.Errorf("select predictions: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []domain.GEBVPrediction
	for rows.Next() {
		var p domain.GEBVPrediction
		if err := rows.Scan(&p.ModelID, &p.IndividualID, &p.GEBV, &p.Reliability); err != nil {
			return nil, fmt.Errorf("scan prediction: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate predictions: %w", err)
	}
	return out, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }
