// Package network defines the neural network evaluator boundary the MCTS
// worker calls into, plus a real ONNX Runtime backend and deterministic
// test doubles standing in for it in unit tests.
package network

import "github.com/chesscoach-go/chesscoach/chess"

// PolicySize is the number of policy output planes per position: one
// logit per from-square/to-square/promotion combination the network's
// output head is trained against. PolicyIndex maps a legal move onto an
// index into this space.
const PolicySize = 73 * chess.BoardSize * chess.BoardSize

// Evaluator is the trait the MCTS worker batches leaf evaluations
// through. Values passed to PredictBatch are tanh-scaled in (-1,1); the
// caller (mcts) maps them to [0,1] via (v+1)/2 before storing them on a
// node, matching the spec's sign convention.
type Evaluator interface {
	// PredictBatch evaluates batchSize positions at once. images holds
	// batchSize*chess.InputPlaneCount*chess.BoardSize*chess.BoardSize
	// floats; valuesOut and policiesOut must have length batchSize and
	// batchSize*PolicySize respectively, and are filled in place.
	PredictBatch(batchSize int, images []float32, valuesOut []float32, policiesOut []float32) error

	// SaveFile persists bytes at a path relative to the evaluator's own
	// storage root; used by PGN/log sinks that live outside this module.
	SaveFile(relativePath string, bytes []byte) error

	// LogScalars emits named scalar telemetry for training step.
	LogScalars(step int, names []string, values []float32)
}
