package network

// ConstantEvaluator is a deterministic Evaluator test double: every
// position gets the same value and a uniform policy over every output
// plane. Useful for exercising tree-shape and bookkeeping logic (visit
// counts, backpropagation, cache wiring) without a real network.
type ConstantEvaluator struct {
	Value float32
}

func (e ConstantEvaluator) PredictBatch(batchSize int, images []float32, valuesOut []float32, policiesOut []float32) error {
	for i := 0; i < batchSize; i++ {
		valuesOut[i] = e.Value
	}
	var uniform = float32(1) / float32(PolicySize)
	for i := range policiesOut {
		policiesOut[i] = uniform
	}
	return nil
}

func (e ConstantEvaluator) SaveFile(relativePath string, bytes []byte) error { return nil }

func (e ConstantEvaluator) LogScalars(step int, names []string, values []float32) {}

// RecordingEvaluator wraps another Evaluator and counts how many batches
// and positions it has served, for tests that assert batching behavior.
type RecordingEvaluator struct {
	Evaluator
	BatchCount    int
	PositionCount int
}

func (e *RecordingEvaluator) PredictBatch(batchSize int, images []float32, valuesOut []float32, policiesOut []float32) error {
	e.BatchCount++
	e.PositionCount += batchSize
	return e.Evaluator.PredictBatch(batchSize, images, valuesOut, policiesOut)
}
