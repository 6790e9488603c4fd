package main

import (
	"flag"
	"os"
	"runtime"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/chesscoach-go/chesscoach/config"
	"github.com/chesscoach-go/chesscoach/network"
	"github.com/chesscoach-go/chesscoach/uci"
)

const (
	name   = "ChessCoach"
	author = "the ChessCoach contributors"
)

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	var cfg = config.Default()
	var modelPath string
	var libPath string
	cfg.RegisterFlags(flag.CommandLine)
	flag.StringVar(&modelPath, "model", "", "path to an ONNX model; empty runs a uniform test evaluator")
	flag.StringVar(&libPath, "onnxruntime", "", "path to the onnxruntime shared library")
	flag.Parse()

	log.Info().
		Str("name", name).
		Str("author", author).
		Int("numWorkers", cfg.NumWorkers).
		Int("predictionBatchSize", cfg.PredictionBatchSize).
		Str("goVersion", runtime.Version()).
		Int("numCPU", runtime.NumCPU()).
		Msg("starting")

	var evaluator, err = buildEvaluator(cfg, modelPath, libPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build evaluator")
	}

	var controller = uci.NewController(cfg, evaluator)
	uci.Run(controller)
}

func buildEvaluator(cfg config.Config, modelPath, libPath string) (network.Evaluator, error) {
	if modelPath == "" {
		log.Warn().Msg("no -model given, running with a uniform test evaluator (search will not play well)")
		return network.ConstantEvaluator{Value: 0}, nil
	}
	return network.NewONNXEvaluator(modelPath, libPath, cfg.PredictionBatchSize, ".")
}
