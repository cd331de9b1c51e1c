// Package stepout is the command line client of the step-out group signature
// service: it fetches signatures of group members, verifies them locally and
// keeps the ones that verify.
package stepout

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap/zapcore"

	"github.com/drand/stepout/common"
	"github.com/drand/stepout/common/key"
	"github.com/drand/stepout/common/log"
	"github.com/drand/stepout/internal/fs"
)

// Automatically set through -ldflags
// Example: go install -ldflags "-X main.buildDate=$(date -u +%d/%m/%Y@%H:%M:%S) -X main.gitCommit=$(git rev-parse HEAD)"
var (
	gitCommit = "none"
	buildDate = "unknown"
)

var SetVersionPrinter sync.Once

var folderFlag = &cli.StringFlag{
	Name:    "folder",
	Value:   fs.DefaultFolder(),
	Usage:   "Folder where the signature archive is kept, with absolute path.",
	EnvVars: []string{"STEPOUT_FOLDER"},
}

var verboseFlag = &cli.BoolFlag{
	Name:    "verbose",
	Usage:   "If set, verbosity is at the debug level",
	EnvVars: []string{"STEPOUT_VERBOSE"},
}

var metricsFlag = &cli.StringFlag{
	Name:    "metrics",
	Usage:   "Launch a metrics server at the specified (host:)port.",
	EnvVars: []string{"STEPOUT_METRICS"},
}

var groupFlag = &cli.StringFlag{
	Name:     "group",
	Usage:    "Path to the group file published by the issuer.",
	Required: true,
	EnvVars:  []string{"STEPOUT_GROUP"},
}

var stepOutFlag = &cli.StringFlag{
	Name:    "stepout",
	Usage:   "Path to the step-out list published by the issuer. Without it no member is considered stepped out.",
	EnvVars: []string{"STEPOUT_LIST"},
}

var indexFlag = &cli.IntFlag{
	Name:  "index",
	Usage: "Index of the group member, starting at 0. Asked interactively if missing.",
}

var serverFlag = &cli.StringFlag{
	Name:     "server",
	Usage:    "Address (host:port) of the signature server.",
	Required: true,
	EnvVars:  []string{"STEPOUT_SERVER"},
}

var transportFlag = &cli.StringFlag{
	Name:  "transport",
	Usage: "Transport used to contact the server: tcp or grpc.",
	Value: "tcp",
}

var tlsFlag = &cli.BoolFlag{
	Name:  "tls",
	Usage: "Use TLS for the grpc transport.",
}

var timeoutFlag = &cli.DurationFlag{
	Name:  "timeout",
	Usage: "Maximum time to wait for the server.",
	Value: defaultTimeout,
}

var outFlag = &cli.StringFlag{
	Name:  "out",
	Usage: "File the verified signature is written to. Asked interactively if missing.",
}

var archiveFlag = &cli.BoolFlag{
	Name:  "archive",
	Usage: "Also keep verified signatures in the archive under --folder.",
}

var appCommands = []*cli.Command{
	{
		Name:   "get-signature",
		Usage:  "Fetch the signature of a member from the server, verify it and save it if it verifies.",
		Flags:  toArray(groupFlag, stepOutFlag, serverFlag, transportFlag, tlsFlag, indexFlag, outFlag, timeoutFlag, archiveFlag),
		Action: getSignatureCmd,
	},
	{
		Name:      "verify",
		Usage:     "Verify a saved signature against the group and the step-out list.",
		ArgsUsage: "<signature file>",
		Flags:     toArray(groupFlag, stepOutFlag, indexFlag),
		Action:    verifyCmd,
	},
	{
		Name:   "derive-key",
		Usage:  "Print the public key of a member derived from the group parameters.",
		Flags:  toArray(groupFlag, indexFlag),
		Action: deriveKeyCmd,
	},
	{
		Name:   "show-group",
		Usage:  "Print the group parameters and their hash.",
		Flags:  toArray(groupFlag),
		Action: showGroupCmd,
	},
	{
		Name:      "inspect",
		Usage:     "Print a saved signature as JSON.",
		ArgsUsage: "<signature file>",
		Action:    inspectCmd,
	},
}

// CLI runs the stepout app
func CLI() *cli.App {
	version := common.GetAppVersion()

	app := cli.NewApp()
	app.Name = "stepout"

	SetVersionPrinter.Do(func() {
		cli.VersionPrinter = func(c *cli.Context) {
			fmt.Fprintf(c.App.Writer, "stepout %s (date %v, commit %v)\n", version, buildDate, gitCommit)
		}
	})

	app.ExitErrHandler = func(context *cli.Context, err error) {
		// override to prevent default behavior of calling OS.exit(1),
		// when tests expect to be able to run multiple commands.
	}
	app.Version = version.String()
	app.Usage = "step-out group signature client"
	// we need to copy the underlying commands to avoid races, cli sadly doesn't support concurrent executions well
	appComm := make([]*cli.Command, len(appCommands))
	for i, p := range appCommands {
		v := *p
		appComm[i] = &v
	}
	app.Commands = appComm
	verbFlag := *verboseFlag
	foldFlag := *folderFlag
	metFlag := *metricsFlag
	app.Flags = toArray(&verbFlag, &foldFlag, &metFlag)
	app.Before = func(c *cli.Context) error {
		c.Context = log.ToContext(c.Context, newLogger(c))
		return nil
	}
	return app
}

func toArray(flags ...cli.Flag) []cli.Flag {
	return flags
}

// contextToLogger returns the logger the app stored in the command context.
func contextToLogger(c *cli.Context) log.Logger {
	return log.FromContextOrDefault(c.Context)
}

func newLogger(c *cli.Context) log.Logger {
	level := log.InfoLevel
	if c.Bool(verboseFlag.Name) {
		level = log.DebugLevel
	}
	return log.New(zapcore.AddSync(c.App.ErrWriter), level, false)
}

func getGroup(c *cli.Context) (*key.Group, error) {
	g, err := key.LoadGroup(c.String(groupFlag.Name))
	if err != nil {
		return nil, fmt.Errorf("stepout: error loading group file: %w", err)
	}
	return g, nil
}

// prompter reads answers from the app reader. A single instance is used per
// command so buffered input is not lost between questions.
type prompter struct {
	w io.Writer
	r *bufio.Reader
}

func newPrompter(c *cli.Context) *prompter {
	return &prompter{w: c.App.Writer, r: bufio.NewReader(c.App.Reader)}
}

func (p *prompter) ask(question string) (string, error) {
	fmt.Fprintf(p.w, "%s: ", question)
	answer, err := p.r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && answer != "") {
		return "", fmt.Errorf("error reading: %w", err)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", fmt.Errorf("no answer given to %q", question)
	}
	return answer, nil
}

// memberIndex returns --index, or asks for it.
func memberIndex(c *cli.Context, p *prompter) (uint32, error) {
	var s string
	if c.IsSet(indexFlag.Name) {
		s = strconv.Itoa(c.Int(indexFlag.Name))
	} else {
		if p == nil {
			return 0, fmt.Errorf("missing --%s", indexFlag.Name)
		}
		var err error
		if s, err = p.ask("Member index"); err != nil {
			return 0, err
		}
	}
	idx, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid member index %q: must be a non-negative integer", s)
	}
	return uint32(idx), nil
}
