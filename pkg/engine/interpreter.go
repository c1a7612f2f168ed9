package engine

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/talDoFlemis/YggdrasilVinum/pkg/dberror"
	"github.com/talDoFlemis/YggdrasilVinum/pkg/logging"
)

// CommandKind discriminates the two verbs of the command language.
type CommandKind int

const (
	CommandInsert CommandKind = iota
	CommandSearch
)

// Command is one parsed line of the command file.
type Command struct {
	Kind CommandKind
	Year int32
}

// Script is a parsed command file: the header's max-children value and
// the command sequence.
type Script struct {
	MaxKeys  int
	Commands []Command
}

const (
	headerPrefix = "FLH/"
	insertPrefix = "INC:"
	searchPrefix = "BUS=:"
)

// ParseScript reads the command file: a mandatory FLH/<m> header, then
// one INC:<k> or BUS=:<k> per non-blank line.
func ParseScript(r io.Reader) (*Script, error) {
	scanner := bufio.NewScanner(r)

	if !scanner.Scan() {
		return nil, parseErr(1, "missing FLH header line")
	}
	header := strings.TrimSpace(scanner.Text())
	if !strings.HasPrefix(header, headerPrefix) {
		return nil, parseErr(1, "first line must be an FLH/<m> header, got %q", header)
	}
	maxKeys, err := strconv.Atoi(strings.TrimPrefix(header, headerPrefix))
	if err != nil {
		return nil, parseErr(1, "invalid FLH header value in %q", header)
	}
	if maxKeys < 2 {
		return nil, parseErr(1, "FLH header value must be greater than 1, got %d", maxKeys)
	}

	script := &Script{MaxKeys: maxKeys}
	lineNo := 1
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		cmd, err := parseCommand(line, lineNo)
		if err != nil {
			return nil, err
		}
		script.Commands = append(script.Commands, cmd)
	}
	if err := scanner.Err(); err != nil {
		return nil, dberror.Wrap(err, dberror.CodeParse, "ParseScript", "Interpreter")
	}

	return script, nil
}

func parseCommand(line string, lineNo int) (Command, error) {
	switch {
	case strings.HasPrefix(line, insertPrefix):
		year, err := parseYear(strings.TrimPrefix(line, insertPrefix))
		if err != nil {
			return Command{}, parseErr(lineNo, "invalid INC key in %q", line)
		}
		return Command{Kind: CommandInsert, Year: year}, nil

	case strings.HasPrefix(line, searchPrefix):
		year, err := parseYear(strings.TrimPrefix(line, searchPrefix))
		if err != nil {
			return Command{}, parseErr(lineNo, "invalid BUS= key in %q", line)
		}
		return Command{Kind: CommandSearch, Year: year}, nil
	}

	return Command{}, parseErr(lineNo, "unknown command %q", line)
}

// ParseCommandLine parses a single command line outside a script, for
// interactive front ends.
func ParseCommandLine(line string) (Command, error) {
	return parseCommand(strings.TrimSpace(line), 1)
}

func parseYear(s string) (int32, error) {
	year, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, err
	}
	return int32(year), nil
}

func parseErr(lineNo int, format string, args ...any) *dberror.DBError {
	return dberror.New(dberror.CategoryUser, dberror.CodeParse,
		fmt.Sprintf(format, args...)).WithDetail("line %d", lineNo)
}

// Interpreter runs a parsed script against an engine, echoing the
// header and one count line per command, then the final height line.
type Interpreter struct {
	engine *Engine
}

// NewInterpreter wraps an engine.
func NewInterpreter(engine *Engine) *Interpreter {
	return &Interpreter{engine: engine}
}

// Run executes the script in order, writing results to w as it goes.
// On a command failure nothing is written for that command and the
// error propagates to the caller.
func (in *Interpreter) Run(script *Script, w io.Writer) error {
	out := bufio.NewWriter(w)

	if _, err := fmt.Fprintf(out, "%s%d\n", headerPrefix, script.MaxKeys); err != nil {
		return dberror.Wrap(err, dberror.CodeStoreIO, "Run", "Interpreter")
	}

	for _, cmd := range script.Commands {
		switch cmd.Kind {
		case CommandInsert:
			n, err := in.engine.InsertYear(cmd.Year)
			if err != nil {
				// Lines of the commands that did succeed still reach
				// the output file.
				out.Flush()
				return err
			}
			fmt.Fprintf(out, "%s%d/%d\n", insertPrefix, cmd.Year, n)

		case CommandSearch:
			records, err := in.engine.Search(cmd.Year)
			if err != nil {
				out.Flush()
				return err
			}
			fmt.Fprintf(out, "%s%d/%d\n", searchPrefix, cmd.Year, len(records))
		}
	}

	fmt.Fprintf(out, "H/%d\n", in.engine.Height())

	if err := out.Flush(); err != nil {
		return dberror.Wrap(err, dberror.CodeStoreIO, "Run", "Interpreter")
	}

	logging.Info("script finished", "commands", len(script.Commands), "height", in.engine.Height())
	return nil
}
