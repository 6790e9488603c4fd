// Package config collects every tunable recognized by the engine: training
// hyperparameters consumed by an out-of-scope training loop, self-play/MCTS
// parameters consumed by the mcts package, and a handful of misc knobs for
// the prediction cache and UCI time control.
package config

import "flag"

// Config holds every recognized option, all numeric. Fields are grouped to
// match the spec's own Training / Self-play / Misc split.
type Config struct {
	// Training. Consumed by an out-of-scope training loop; carried here
	// only so the binary's flag surface matches the full option set.
	BatchSize            int
	Steps                int
	PgnInterval          int
	ValidationInterval   int
	CheckpointInterval   int
	StrengthTestInterval int
	NumGames             int

	// Self-play / MCTS.
	NumWorkers              int
	PredictionBatchSize     int
	NumSamplingMoves        int
	MaxMoves                int
	NumSimulations          int
	RootDirichletAlpha      float64
	RootExplorationFraction float64
	ExplorationRateBase     float64
	ExplorationRateInit     float64

	// Misc.
	PredictionCacheSizeGb          float64
	PredictionCacheMaxPly          int
	TimeControlSafetyBufferMs      int
	TimeControlFractionOfRemaining float64
	SearchMctsParallelism          int
}

// Default returns the option set a UCI search binary should start with:
// self-play and misc values tuned for interactive play, training values
// left at zero since they're meaningless outside the training loop this
// package doesn't implement.
func Default() Config {
	return Config{
		NumWorkers:              1,
		PredictionBatchSize:     16,
		NumSamplingMoves:        30,
		MaxMoves:                512,
		NumSimulations:          800,
		RootDirichletAlpha:      0.3,
		RootExplorationFraction: 0.25,
		ExplorationRateBase:     19652,
		ExplorationRateInit:     1.25,

		PredictionCacheSizeGb:          1,
		PredictionCacheMaxPly:          30,
		TimeControlSafetyBufferMs:      100,
		TimeControlFractionOfRemaining: 20,
		SearchMctsParallelism:          1,
	}
}

// RegisterFlags binds every field of c to a command-line flag named after
// the field, lower-cased, matching the teacher's one-flag-per-field style
// in its cmd/ binaries.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.BatchSize, "batchsize", c.BatchSize, "training batch size")
	fs.IntVar(&c.Steps, "steps", c.Steps, "training steps")
	fs.IntVar(&c.PgnInterval, "pginterval", c.PgnInterval, "steps between PGN dumps")
	fs.IntVar(&c.ValidationInterval, "validationinterval", c.ValidationInterval, "steps between validation runs")
	fs.IntVar(&c.CheckpointInterval, "checkpointinterval", c.CheckpointInterval, "steps between checkpoints")
	fs.IntVar(&c.StrengthTestInterval, "strengthtestinterval", c.StrengthTestInterval, "steps between strength tests")
	fs.IntVar(&c.NumGames, "numgames", c.NumGames, "self-play games per iteration")

	fs.IntVar(&c.NumWorkers, "numworkers", c.NumWorkers, "number of MCTS worker threads")
	fs.IntVar(&c.PredictionBatchSize, "predictionbatchsize", c.PredictionBatchSize, "parallel game slots per worker")
	fs.IntVar(&c.NumSamplingMoves, "numsamplingmoves", c.NumSamplingMoves, "plies sampling by visit count instead of taking bestChild")
	fs.IntVar(&c.MaxMoves, "maxmoves", c.MaxMoves, "maximum game length before adjudication")
	fs.IntVar(&c.NumSimulations, "numsimulations", c.NumSimulations, "simulation budget when no time control applies")
	fs.Float64Var(&c.RootDirichletAlpha, "rootdirichletalpha", c.RootDirichletAlpha, "Dirichlet noise concentration at the root")
	fs.Float64Var(&c.RootExplorationFraction, "rootexplorationfraction", c.RootExplorationFraction, "blend fraction for root exploration noise")
	fs.Float64Var(&c.ExplorationRateBase, "explorationratebase", c.ExplorationRateBase, "PUCT exploration rate base")
	fs.Float64Var(&c.ExplorationRateInit, "explorationrateinit", c.ExplorationRateInit, "PUCT exploration rate init")

	fs.Float64Var(&c.PredictionCacheSizeGb, "predictioncachesizegb", c.PredictionCacheSizeGb, "prediction cache size in GiB")
	fs.IntVar(&c.PredictionCacheMaxPly, "predictioncachemaxply", c.PredictionCacheMaxPly, "max ply to probe/store in self-play")
	fs.IntVar(&c.TimeControlSafetyBufferMs, "timecontrolsafetybufferms", c.TimeControlSafetyBufferMs, "ms reserved below the computed time budget")
	fs.Float64Var(&c.TimeControlFractionOfRemaining, "timecontrolfractionofremaining", c.TimeControlFractionOfRemaining, "divisor applied to remaining time")
	fs.IntVar(&c.SearchMctsParallelism, "searchmctsparallelism", c.SearchMctsParallelism, "number of MCTS worker threads during UCI search")
}
