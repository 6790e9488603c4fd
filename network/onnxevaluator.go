package network

import (
	"fmt"
	"os"
	"path/filepath"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/chesscoach-go/chesscoach/chess"
)

// ONNXEvaluator batches positions through an onnxruntime_go session with a
// single "images" input and two outputs, "value" and "policy". The caller
// (the mcts worker) already assembles a full batch before calling
// PredictBatch, so unlike a server-style evaluator there's no internal
// queue or timeout-based batch collection here: one call in, one Run, one
// call out.
type ONNXEvaluator struct {
	session *ort.AdvancedSession

	maxBatchSize int
	imageInput   []float32
	valueOutput  []float32
	policyOutput []float32

	inputs  []ort.ArbitraryTensor
	outputs []ort.ArbitraryTensor

	storageRoot string
}

const imageFloatsPerPosition = chess.InputPlaneCount * chess.BoardSize * chess.BoardSize

// NewONNXEvaluator loads modelPath through the onnxruntime shared library
// at libPath, falling through CUDA, then CPU, same fallback order the
// rest of the pack uses for GPU-optional inference.
func NewONNXEvaluator(modelPath, libPath string, maxBatchSize int, storageRoot string) (*ONNXEvaluator, error) {
	if !ort.IsInitialized() {
		ort.SetSharedLibraryPath(libPath)
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("initialize onnxruntime: %w", err)
		}
	}

	var imageInput = make([]float32, maxBatchSize*imageFloatsPerPosition)
	var valueOutput = make([]float32, maxBatchSize)
	var policyOutput = make([]float32, maxBatchSize*PolicySize)

	var imageShape = ort.NewShape(int64(maxBatchSize), int64(chess.InputPlaneCount), int64(chess.BoardSize), int64(chess.BoardSize))
	var valueShape = ort.NewShape(int64(maxBatchSize), 1)
	var policyShape = ort.NewShape(int64(maxBatchSize), int64(PolicySize))

	imageTensor, err := ort.NewTensor(imageShape, imageInput)
	if err != nil {
		return nil, fmt.Errorf("create image tensor: %w", err)
	}
	valueTensor, err := ort.NewTensor(valueShape, valueOutput)
	if err != nil {
		return nil, fmt.Errorf("create value tensor: %w", err)
	}
	policyTensor, err := ort.NewTensor(policyShape, policyOutput)
	if err != nil {
		return nil, fmt.Errorf("create policy tensor: %w", err)
	}

	var inputs = []ort.ArbitraryTensor{imageTensor}
	var outputs = []ort.ArbitraryTensor{valueTensor, policyTensor}

	var providers = []struct {
		name  string
		setup func(*ort.SessionOptions) error
	}{
		{"CUDA", func(so *ort.SessionOptions) error {
			opts, setupErr := ort.NewCUDAProviderOptions()
			if setupErr != nil {
				return setupErr
			}
			defer opts.Destroy()
			return so.AppendExecutionProviderCUDA(opts)
		}},
		{"CPU", func(so *ort.SessionOptions) error { return nil }},
	}

	var session *ort.AdvancedSession
	for _, provider := range providers {
		so, setupErr := ort.NewSessionOptions()
		if setupErr != nil {
			continue
		}
		if setupErr := provider.setup(so); setupErr != nil {
			so.Destroy()
			continue
		}
		s, sessionErr := ort.NewAdvancedSession(modelPath, []string{"images"}, []string{"value", "policy"}, inputs, outputs, so)
		so.Destroy()
		if sessionErr != nil {
			continue
		}
		session = s
		break
	}
	if session == nil {
		return nil, fmt.Errorf("failed to create onnx session with any execution provider")
	}

	return &ONNXEvaluator{
		session:      session,
		maxBatchSize: maxBatchSize,
		imageInput:   imageInput,
		valueOutput:  valueOutput,
		policyOutput: policyOutput,
		inputs:       inputs,
		outputs:      outputs,
		storageRoot:  storageRoot,
	}, nil
}

func (e *ONNXEvaluator) Close() {
	e.session.Destroy()
	for _, v := range e.inputs {
		v.Destroy()
	}
	for _, v := range e.outputs {
		v.Destroy()
	}
}

func (e *ONNXEvaluator) PredictBatch(batchSize int, images []float32, valuesOut []float32, policiesOut []float32) error {
	if batchSize > e.maxBatchSize {
		return fmt.Errorf("network: batch size %d exceeds configured maximum %d", batchSize, e.maxBatchSize)
	}

	copy(e.imageInput, images[:batchSize*imageFloatsPerPosition])
	for i := batchSize * imageFloatsPerPosition; i < len(e.imageInput); i++ {
		e.imageInput[i] = 0
	}

	if err := e.session.Run(); err != nil {
		return fmt.Errorf("onnx session run: %w", err)
	}

	copy(valuesOut, e.valueOutput[:batchSize])
	copy(policiesOut, e.policyOutput[:batchSize*PolicySize])
	return nil
}

func (e *ONNXEvaluator) SaveFile(relativePath string, bytes []byte) error {
	var fullPath = filepath.Join(e.storageRoot, relativePath)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(fullPath, bytes, 0o644)
}

func (e *ONNXEvaluator) LogScalars(step int, names []string, values []float32) {
	// No training loop in this module; scalar telemetry has nowhere to go.
}
