package audio

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"lingokit/core"
)

// ExecPlayer plays audio by writing it to a temporary file and invoking an
// external player command. Argument placeholders {file} and {rate} are
// substituted before the command runs.
type ExecPlayer struct {
	command string
	args    []string
	logger  *core.Logger
}

// NewExecPlayer creates a player around the given command. With an empty
// command it defaults to ffplay with a tempo filter, which honors the
// playback rate.
func NewExecPlayer(command string, args []string, logger *core.Logger) *ExecPlayer {
	if command == "" {
		command = "ffplay"
		args = []string{"-autoexit", "-nodisp", "-loglevel", "quiet", "-af", "atempo={rate}", "{file}"}
	}
	if logger == nil {
		logger = core.NewDevelopmentLogger()
	}
	return &ExecPlayer{
		command: command,
		args:    args,
		logger:  logger.With(map[string]interface{}{"component": "player"}),
	}
}

// Play blocks until playback finishes.
func (p *ExecPlayer) Play(audio []byte, rate float64) error {
	file, err := os.CreateTemp("", "lingokit-*.mp3")
	if err != nil {
		return fmt.Errorf("player: creating temp file: %w", err)
	}
	defer os.Remove(file.Name())

	if _, err := file.Write(audio); err != nil {
		file.Close()
		return fmt.Errorf("player: writing temp file: %w", err)
	}
	file.Close()

	args := make([]string, len(p.args))
	for i, arg := range p.args {
		arg = strings.ReplaceAll(arg, "{file}", file.Name())
		arg = strings.ReplaceAll(arg, "{rate}", fmt.Sprintf("%.2f", rate))
		args[i] = arg
	}

	p.logger.Debug("playing audio", "command", p.command, "rate", rate)
	if err := exec.Command(p.command, args...).Run(); err != nil {
		return fmt.Errorf("player: running %s: %w", p.command, err)
	}
	return nil
}
