package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"polyglot/internal/client/api"
	"polyglot/internal/client/events"
	"polyglot/internal/client/session"
	"polyglot/internal/shared/logging"
)

const (
	defaultServerURL = "http://localhost:8000"
	serverEnv        = "POLYGLOT_SERVER"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

// CLI holds flags and the lazily built API client.
type CLI struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	serverURL string
	tokenFile string
	timeout   time.Duration
	verbose   bool

	bus           *events.Bus
	notifications <-chan events.Notification
	unsubscribe   func()
	session       *session.Session
	client        *api.Client
}

func newCLI(in io.Reader, out, errOut io.Writer) *CLI {
	return &CLI{in: in, out: out, errOut: errOut}
}

func (c *CLI) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "polyglot",
		Short:         "Submit and review multilingual feedback",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level := "warn"
			if c.verbose {
				level = "debug"
			}
			logging.Configure(logging.Options{Level: level, Output: c.errOut})
			return nil
		},
	}
	serverDefault := defaultServerURL
	if env := strings.TrimSpace(os.Getenv(serverEnv)); env != "" {
		serverDefault = env
	}
	flags := root.PersistentFlags()
	flags.StringVar(&c.serverURL, "server", serverDefault, "API server URL (env "+serverEnv+")")
	flags.StringVar(&c.tokenFile, "token-file", "", "session token file (default ~/.polyglot/token)")
	flags.DurationVar(&c.timeout, "timeout", api.DefaultTimeout, "per-request and per-submission timeout")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "log requests and session events")

	root.AddCommand(
		c.loginCommand(),
		c.logoutCommand(),
		c.whoamiCommand(),
		c.passwordCommand(),
		c.submitCommand(),
		c.formCommand(),
		c.feedbackCommand(),
		c.statsCommand(),
		c.productsCommand(),
		c.modelCommand(),
	)
	return root
}

// apiClient builds the client on first use so commands that fail flag parsing never
// touch the token file.
func (c *CLI) apiClient() (*api.Client, error) {
	if c.client != nil {
		return c.client, nil
	}
	path := c.tokenFile
	if path == "" {
		var err error
		if path, err = session.DefaultTokenPath(); err != nil {
			return nil, err
		}
	}
	c.bus = events.NewBus(events.DefaultBuffer)
	c.notifications, c.unsubscribe = c.bus.Subscribe()
	c.session = session.New(session.NewFileStore(path), c.bus)
	c.session.Restore()

	client, err := api.NewClient(c.serverURL, c.session, c.bus, api.WithTimeout(c.timeout))
	if err != nil {
		return nil, err
	}
	c.client = client
	return client, nil
}

// close stops the expiry timer and reports session changes seen during the command.
func (c *CLI) close() {
	if c.session == nil {
		return
	}
	c.session.Close()
	for {
		select {
		case n := <-c.notifications:
			c.report(n)
		default:
			c.unsubscribe()
			return
		}
	}
}

func (c *CLI) report(n events.Notification) {
	switch n.Kind {
	case events.KindLoggedOut:
		if n.Reason != events.ReasonUser {
			fmt.Fprintf(c.errOut, "%s session ended (%s); run %s\n", yellow("!"), n.Reason, bold("polyglot login"))
		}
	case events.KindTokenRefreshed:
		if c.verbose {
			fmt.Fprintln(c.errOut, gray("session token refreshed"))
		}
	}
}

func (c *CLI) isTerminal() bool {
	in, inOK := c.in.(*os.File)
	out, outOK := c.out.(*os.File)
	return inOK && outOK && term.IsTerminal(int(in.Fd())) && term.IsTerminal(int(out.Fd()))
}

func (c *CLI) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}
