// Package postgres implements a Postgres-backed domain.ModelStore via the
// pgx stdlib driver.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"genomcore/pkg/domain"
)

// Compile-time contract assertion.
var _ domain.ModelStore = (*Store)(nil)

const (
	driverName = "pgx"
	defaultDSN = "postgres://localhost/genomcore?sslmode=disable"

	// effectBatchSize bounds the per-statement payload when inserting
	// marker effects.
	effectBatchSize = 1000
)

// Store persists model artifacts, marker effects, and GEBV predictions in
// Postgres. SaveModel is a single transaction: no partial artifacts.
type Store struct {
	db *sql.DB
}

// New opens a Postgres model store using the provided DSN (falls back to
// defaultDSN) and applies the schema.
func New(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS gs_models (
			id TEXT PRIMARY KEY,
			model_name TEXT NOT NULL,
			trait_name TEXT NOT NULL,
			method TEXT NOT NULL,
			training_population_size INTEGER NOT NULL,
			marker_count INTEGER NOT NULL,
			heritability DOUBLE PRECISION NOT NULL,
			genetic_variance DOUBLE PRECISION NOT NULL,
			error_variance DOUBLE PRECISION NOT NULL,
			accuracy DOUBLE PRECISION NOT NULL,
			mean DOUBLE PRECISION NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS marker_effects (
			model_id TEXT NOT NULL REFERENCES gs_models(id) ON DELETE CASCADE,
			marker_name TEXT NOT NULL,
			position INTEGER NOT NULL,
			effect DOUBLE PRECISION NOT NULL,
			PRIMARY KEY (model_id, position)
		)`,
		`CREATE TABLE IF NOT EXISTS gebv_predictions (
			model_id TEXT NOT NULL REFERENCES gs_models(id) ON DELETE CASCADE,
			individual_id TEXT NOT NULL,
			gebv DOUBLE PRECISION NOT NULL,
			reliability DOUBLE PRECISION NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_gebv_predictions_model ON gebv_predictions(model_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
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
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		artifact.ID, artifact.ModelName, artifact.TraitName, artifact.Method,
		artifact.TrainingPopulationSize, artifact.MarkerCount, artifact.Heritability,
		artifact.GeneticVariance, artifact.ErrorVariance, artifact.Accuracy, artifact.Mean,
		artifact.CreatedAt.UTC(),
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
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d)", i*4+1, i*4+2, i*4+3, i*4+4)
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
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d)", i*4+1, i*4+2, i*4+3, i*4+4)
		args = append(args, p.ModelID, p.IndividualID, p.GEBV, p.Reliability)
	}
	if _, err := tx.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("insert predictions: %w", err)
	}
	return nil
}

// GetModel loads the artifact and hydrates effects in position order.
func (s *Store) GetModel(ctx context.Context, id string) (domain.ModelArtifact, error) {
	var artifact domain.ModelArtifact
	err := s.db.QueryRowContext(ctx,
		`SELECT id, model_name, trait_name, method, training_population_size, marker_count,
			heritability, genetic_variance, error_variance, accuracy, mean, created_at
		 FROM gs_models WHERE id = $1`, id).Scan(
		&artifact.ID, &artifact.ModelName, &artifact.TraitName, &artifact.Method,
		&artifact.TrainingPopulationSize, &artifact.MarkerCount, &artifact.Heritability,
		&artifact.GeneticVariance, &artifact.ErrorVariance, &artifact.Accuracy, &artifact.Mean,
		&artifact.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ModelArtifact{}, domain.ErrModelNotFound
	}
	if err != nil {
		return domain.ModelArtifact{}, fmt.Errorf("select model: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT marker_name, position, effect FROM marker_effects WHERE model_id = $1 ORDER BY position`, id)
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
		if err := rows.Scan(
			&artifact.ID, &artifact.ModelName, &artifact.TraitName, &artifact.Method,
			&artifact.TrainingPopulationSize, &artifact.MarkerCount, &artifact.Heritability,
			&artifact.GeneticVariance, &artifact.ErrorVariance, &artifact.Accuracy, &artifact.Mean,
			&artifact.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan model: %w", err)
		}
		out = append(out, artifact)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate models: %w", err)
	}
	return out, nil
}

// DeleteModel removes the model; effects and predictions cascade via foreign
// keys.
func (s *Store) DeleteModel(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM gs_models WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete model: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
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
		 WHERE model_id = $1 ORDER BY individual_id`, modelID)
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
