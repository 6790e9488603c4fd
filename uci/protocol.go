package uci

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/chesscoach-go/chesscoach/chess"
)

type protocol struct {
	controller *Controller
	game       *chess.Game
	done       chan struct{}
	cancel     context.CancelFunc
	fields     []string
}

// Run reads UCI commands from stdin until "quit", driving controller and
// writing protocol responses to stdout.
func Run(controller *Controller) {
	var p = &protocol{
		controller: controller,
		game:       chess.NewGame(),
		done:       make(chan struct{}),
	}
	close(p.done)

	var scanner = bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		var line = scanner.Text()
		if line == "quit" {
			p.quitCommand()
			break
		}
		if err := p.handle(line); err != nil {
			log.Warn().Err(err).Str("command", line).Msg("uci command failed")
		}
	}
}

func (p *protocol) handle(msg string) error {
	var fields = strings.Fields(msg)
	if len(fields) == 0 {
		return nil
	}
	var commandName = fields[0]
	p.fields = fields[1:]

	if commandName == "stop" {
		return p.stopCommand()
	}

	select {
	case <-p.done:
	default:
		return errors.New("search still running")
	}

	var h func() error
	switch commandName {
	case "uci":
		h = p.uciCommand
	case "isready":
		h = p.isReadyCommand
	case "position":
		h = p.positionCommand
	case "go":
		h = p.goCommand
	case "ucinewgame":
		h = p.uciNewGameCommand
	case "debug":
		h = p.debugCommand
	case "setoption":
		h = func() error { return nil } // no GUI-configurable options recognized yet
	}
	if h == nil {
		return errors.New("command not found")
	}
	return h()
}

func (p *protocol) uciCommand() error {
	fmt.Println("id name ChessCoach")
	fmt.Println("id author the ChessCoach contributors")
	fmt.Println("uciok")
	return nil
}

func (p *protocol) isReadyCommand() error {
	fmt.Println("readyok")
	return nil
}

func (p *protocol) positionCommand() error {
	var args = p.fields
	if len(args) == 0 {
		return errors.New("missing position arguments")
	}
	var token = args[0]
	var fen string
	var movesIndex = findIndexString(args, "moves")
	switch token {
	case "startpos":
		fen = chess.InitialFEN
	case "fen":
		if movesIndex == -1 {
			fen = strings.Join(args[1:], " ")
		} else {
			fen = strings.Join(args[1:movesIndex], " ")
		}
	default:
		return errors.New("unknown position command")
	}

	var pos, err = chess.NewPositionFromFEN(fen)
	if err != nil {
		return err
	}
	var game = chess.NewGameFromPosition(pos)

	var applied []chess.Move
	if movesIndex >= 0 {
		for _, lan := range args[movesIndex+1:] {
			var legal = game.GenerateLegalMoves()
			var m = chess.ParseMoveLAN(legal, lan)
			if m == chess.MoveNone {
				log.Warn().Str("move", lan).Msg("position moves: parse failed, dropping remaining moves")
				break
			}
			game.ApplyMove(m)
			applied = append(applied, m)
		}
	}

	p.game = game
	p.controller.SetPosition(game, applied)
	return nil
}

func findIndexString(slice []string, value string) int {
	for i, v := range slice {
		if v == value {
			return i
		}
	}
	return -1
}

func (p *protocol) goCommand() error {
	var tc = parseTimeControl(p.fields)
	var ctx, cancel = context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})

	go func() {
		var move = p.controller.Go(ctx, tc, printSearchInfo)
		close(p.done)
		fmt.Printf("bestmove %v\n", move)
	}()
	return nil
}

func parseTimeControl(args []string) (result TimeControl) {
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "infinite":
			result.Infinite = true
		case "movetime":
			result.MoveTime, _ = strconv.Atoi(args[i+1])
			i++
		case "wtime":
			result.WhiteTime, _ = strconv.Atoi(args[i+1])
			i++
		case "btime":
			result.BlackTime, _ = strconv.Atoi(args[i+1])
			i++
		case "winc":
			result.WhiteInc, _ = strconv.Atoi(args[i+1])
			i++
		case "binc":
			result.BlackInc, _ = strconv.Atoi(args[i+1])
			i++
		case "nodes", "depth", "mate", "movestogo", "ponder":
			// Recognized but not separately budgeted: node/depth/mate
			// limits fold into NumSimulations via the controller's
			// existing fallback, and ponder search isn't implemented.
			if i+1 < len(args) {
				if _, err := strconv.Atoi(args[i+1]); err == nil {
					i++
				}
			}
		}
	}
	return
}

func (p *protocol) uciNewGameCommand() error {
	p.game = chess.NewGame()
	p.controller.SetPosition(p.game, nil)
	return nil
}

func (p *protocol) debugCommand() error {
	if len(p.fields) == 0 {
		return errors.New("missing debug argument")
	}
	p.controller.Debug(p.fields[0] == "on")
	return nil
}

func (p *protocol) stopCommand() error {
	if p.cancel != nil {
		p.controller.Stop(p.cancel)
	}
	return nil
}

func (p *protocol) quitCommand() {
	if p.cancel != nil {
		p.cancel()
	}
}

func printSearchInfo(si SearchInfo) {
	var score string
	if si.MateIn != 0 {
		score = fmt.Sprintf("mate %d", si.MateIn)
	} else {
		score = fmt.Sprintf("cp %d", si.ScoreCp)
	}

	var nps = si.Nodes * 1000 / (si.TimeMs + 1)
	var sb strings.Builder
	for i, m := range si.PV {
		if i > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(m.String())
	}

	fmt.Printf("info depth %d score %s nodes %d nps %d time %d hashfull %d pv %s\n",
		si.Depth, score, si.Nodes, nps, si.TimeMs, si.Hashfull, sb.String())
}
