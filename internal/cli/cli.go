// Package cli parses voiceassist command lines.
package cli

import (
	"errors"
	"fmt"
	"strings"
)

type Command string

const (
	CommandCorrect    Command = "correct"
	CommandSpeak      Command = "speak"
	CommandStop       Command = "stop"
	CommandStatus     Command = "status"
	CommandVoices     Command = "voices"
	CommandVoice      Command = "voice"
	CommandPresets    Command = "presets"
	CommandApply      Command = "apply"
	CommandSave       Command = "save"
	CommandDelete     Command = "delete"
	CommandParams     Command = "params"
	CommandStability  Command = "stability"
	CommandSimilarity Command = "similarity"
	CommandProvider   Command = "provider"
	CommandKey        Command = "key"
	CommandDevices    Command = "devices"
	CommandDoctor     Command = "doctor"
	CommandVersion    Command = "version"
	CommandHelp       Command = "help"
)

// arity bounds positional arguments; max < 0 means unbounded.
type arity struct {
	min int
	max int
}

var validCommands = map[Command]arity{
	CommandCorrect:    {0, -1},
	CommandSpeak:      {0, -1},
	CommandStop:       {0, 0},
	CommandStatus:     {0, 0},
	CommandVoices:     {0, 0},
	CommandVoice:      {1, 1},
	CommandPresets:    {0, -1},
	CommandApply:      {1, 1},
	CommandSave:       {1, 3},
	CommandDelete:     {1, 1},
	CommandParams:     {0, 0},
	CommandStability:  {1, 1},
	CommandSimilarity: {1, 1},
	CommandProvider:   {0, 1},
	CommandKey:        {2, 2},
	CommandDevices:    {0, 0},
	CommandDoctor:     {0, 0},
	CommandVersion:    {0, 0},
	CommandHelp:       {0, 0},
}

type Parsed struct {
	Command    Command
	Args       []string
	ConfigPath string
	ShowHelp   bool
}

// Parse reads global flags, then one command. Everything after the command is
// positional, so values like "-0.2" reach the command untouched.
func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "-h", "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
		case "--version":
			parsed.ShowHelp = false
			parsed.Command = CommandVersion
		case "--config":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--config requires a path")
			}
			parsed.ConfigPath = args[i]
		default:
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}

			cmd := Command(arg)
			bounds, ok := validCommands[cmd]
			if !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}

			rest := args[i+1:]
			if len(rest) < bounds.min {
				return Parsed{}, fmt.Errorf("command %q requires %d argument(s)", arg, bounds.min)
			}
			if bounds.max >= 0 && len(rest) > bounds.max {
				return Parsed{}, fmt.Errorf("unexpected arguments after command %q", arg)
			}

			parsed.Command = cmd
			parsed.Args = make([]string, len(rest))
			copy(parsed.Args, rest)
			parsed.ShowHelp = cmd == CommandHelp
			return parsed, nil
		}
	}

	return parsed, nil
}

// Text joins free-form arguments into one input string.
func (p Parsed) Text() string {
	return strings.TrimSpace(strings.Join(p.Args, " "))
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] <command> [args]

Commands:
  correct [TEXT...]        Correct grammar (reads stdin without TEXT), print and copy
  speak [TEXT...]          Synthesize and play speech (reads stdin without TEXT)
  stop                     Stop active playback
  status                   Print current state
  voices                   List voices and mark the selected one
  voice ID                 Select a voice
  presets [QUERY]          List or search voice presets
  apply ID                 Apply a preset
  save NAME [DESC] [TAGS]  Save current parameters as a custom preset (TAGS comma-separated)
  delete ID                Delete a custom preset
  params                   Show current voice parameters
  stability VALUE          Set stability in [0,1] and play a preview
  similarity VALUE         Set similarity boost in [0,1] and play a preview
  provider [NAME]          Show or set the grammar provider (openai, anthropic)
  key NAME VALUE           Store an API key (openai, anthropic, elevenlabs); empty VALUE removes it
  devices                  List available output sinks
  doctor                   Run configuration and environment checks
  version                  Print version information
  help                     Show this help

Flags:
  --config PATH   Config file path (default: $XDG_CONFIG_HOME/voiceassist/config.yaml)
  -h, --help      Show help
  --version       Show version
`, binaryName)
}
