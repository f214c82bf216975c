package domain

import "context"

// ModelStore is the minimal abstraction over durable backends for trained
// models. A model artifact, its marker effects, and its fitted predictions
// are owned together: SaveModel persists them atomically and DeleteModel
// removes them as a unit.
type ModelStore interface {
	// SaveModel persists the artifact with its full effect vector plus the
	// fitted training-set predictions in one atomic write. Either everything
	// is stored or nothing is.
	SaveModel(ctx context.Context, artifact ModelArtifact, predictions []GEBVPrediction) error
	// GetModel returns the artifact with effects hydrated in position order.
	// Returns ErrModelNotFound when the ID resolves to nothing.
	GetModel(ctx context.Context, id string) (ModelArtifact, error)
	// ListModels returns all stored artifacts without their effect vectors,
	// ordered by creation time ascending.
	ListModels(ctx context.Context) ([]ModelArtifact, error)
	// DeleteModel removes the artifact and cascades to its effects and
	// predictions. Returns (false, nil) when the model does not exist.
	DeleteModel(ctx context.Context, id string) (bool, error)
	// SavePredictions stores breeding-value predictions for a model.
	SavePredictions(ctx context.Context, predictions []GEBVPrediction) error
	// ListPredictions returns the stored predictions for a model, ordered by
	// individual ID ascending.
	ListPredictions(ctx context.Context, modelID string) ([]GEBVPrediction, error)
	// Close releases backend resources.
	Close() error
}
