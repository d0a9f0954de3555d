package targets

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"

	"omibyte.io/riot/core/caps"
	"omibyte.io/riot/core/thread"
)

//go:embed boards.yaml
var rawBoards []byte

var boards Boards
var ErrBoardNotFound = errors.New("board not found")

func All() Boards {
	return boards
}

type Boards []Board
type Board struct {
	Name          string   `yaml:"board"`
	Cpu           string   `yaml:"cpu"`
	Architecture  string   `yaml:"architecture"`
	Hosted        bool     `yaml:"hosted"`
	Stdio         string   `yaml:"stdio"`
	LEDs          int      `yaml:"leds"`
	IdleStackSize int      `yaml:"idleStackSize"`
	MainStackSize int      `yaml:"mainStackSize"`
	Capabilities  []string `yaml:"capabilities"`
	Tags          []string `yaml:"tags"`
}

// Caps resolves the capability names of the profile.
func (b Board) Caps() (caps.Set, error) {
	set, err := caps.Parse(b.Capabilities)
	if err != nil {
		return 0, fmt.Errorf("board %s: %w", b.Name, err)
	}
	return set, nil
}

// StackSizes returns the idle and main stack sizes, falling back to the
// kernel defaults.
func (b Board) StackSizes() (idle, main int) {
	idle, main = b.IdleStackSize, b.MainStackSize
	if idle == 0 {
		idle = thread.StackSizeIdle
	}
	if main == 0 {
		main = thread.StackSizeMain
	}
	return idle, main
}

func (t Boards) FindByBoard(name string) (Board, error) {
	for _, board := range t {
		if board.Name == strings.ToLower(name) {
			return board, nil
		}
	}
	return Board{}, fmt.Errorf("%w: %s", ErrBoardNotFound, name)
}

// FindByCpu returns every board built around the given CPU.
func (t Boards) FindByCpu(name string) (Boards, error) {
	var result Boards
	for _, board := range t {
		if board.Cpu == strings.ToLower(name) {
			result = append(result, board)
		}
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("%w: no board with cpu %s", ErrBoardNotFound, name)
	}
	return result, nil
}

// FindByTag returns every board carrying the tag.
func (t Boards) FindByTag(tag string) Boards {
	var result Boards
	for _, board := range t {
		if slices.Contains(board.Tags, strings.ToLower(tag)) {
			result = append(result, board)
		}
	}
	return result
}

func (t Boards) Names() []string {
	names := make([]string, len(t))
	for i, board := range t {
		names[i] = board.Name
	}
	slices.Sort(names)
	return names
}

func parse(raw []byte) (Boards, error) {
	var t struct {
		Elements []Board `yaml:"boards"`
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return nil, err
	}
	for _, board := range t.Elements {
		set, err := board.Caps()
		if err != nil {
			return nil, err
		}
		if err := set.Validate(); err != nil {
			return nil, fmt.Errorf("board %s: %w", board.Name, err)
		}
	}
	return t.Elements, nil
}

func init() {
	var err error
	if boards, err = parse(rawBoards); err != nil {
		panic(err)
	}
}
