package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/weiawesome/chat-client/internal/app"
	"github.com/weiawesome/chat-client/internal/config"
	"github.com/weiawesome/chat-client/internal/domain"
	"github.com/weiawesome/chat-client/internal/gateway"
	"github.com/weiawesome/chat-client/internal/service"
	pkglog "github.com/weiawesome/chat-client/pkg/log"
)

var errUsage = errors.New("usage")

type command struct {
	args  string
	help  string
	nargs int // minimum
	run   func(ctx context.Context, a *app.App, w io.Writer, args []string) error
}

var commands = map[string]command{
	"login":          {"<username> <password>", "log in", 2, runLogin},
	"signup":         {"<username> <password>", "create an account and log in", 2, runSignup},
	"logout":         {"", "log out", 0, runLogout},
	"whoami":         {"", "show the current user", 0, runWhoami},
	"rooms":          {"", "list rooms", 0, runRooms},
	"room":           {"<id>", "show a room and its messages", 1, runRoom},
	"create-room":    {"<name>", "create a room", 1, runCreateRoom},
	"delete-room":    {"<id>", "delete a room", 1, runDeleteRoom},
	"post":           {"<room-id> <body...>", "post a message", 2, runPost},
	"delete-message": {"<id>", "delete a message", 1, runDeleteMessage},
	"mentions":       {"", "list your mentions", 0, runMentions},
	"read":           {"<mention-id>", "mark a mention read", 1, runRead},
	"sync":           {"", "refresh rooms and mentions", 0, runSync},
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one command and returns the process exit code: 0 on success,
// 1 when the command failed and 2 on a usage error.
func run(argv []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("chatctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "config file (default ./config/config.yaml)")
	fs.Usage = func() { usage(fs) }
	if err := fs.Parse(argv); err != nil {
		return 2
	}

	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}
	name, args := fs.Arg(0), fs.Args()[1:]
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n", name)
		fs.Usage()
		return 2
	}
	if len(args) < cmd.nargs {
		fmt.Fprintf(stderr, "usage: chatctl %s %s\n", name, cmd.args)
		return 2
	}

	// Load configuration
	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		report(stderr, fmt.Errorf("failed to load config: %w", err))
		return 1
	}

	// Initialize structured logger
	pkglog.Init(pkglog.Config{
		Level:     cfg.Log.Level,
		Pretty:    cfg.Log.Pretty,
		Component: "chatctl",
	})
	logger := pkglog.L()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = pkglog.WithLogger(ctx, logger)

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		report(stderr, err)
		return 1
	}
	defer a.Close()

	// Commands act on a confirmed session.
	if _, err := a.Restore.Wait(ctx); err != nil {
		logger.Warn().Err(err).Msg("session restore failed")
	}

	if err := cmd.run(ctx, a, stdout, args); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(stderr, err)
			return 2
		}
		report(stderr, err)
		return 1
	}
	return 0
}

func usage(fs *flag.FlagSet) {
	out := fs.Output()
	fmt.Fprintf(out, "Usage: chatctl [-config file] <command> [args]\n\nCommands:\n")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	slices.Sort(names)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, name := range names {
		c := commands[name]
		fmt.Fprintf(tw, "  %s %s\t%s\n", name, c.args, c.help)
	}
	tw.Flush()
	fmt.Fprintln(out)
	fs.PrintDefaults()
}

func report(w io.Writer, err error) {
	for _, msg := range gateway.Messages(err) {
		fmt.Fprintln(w, "error:", msg)
	}
}

func parseID(s string) (domain.ID, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id %q", errUsage, s)
	}
	return domain.ID(id), nil
}

func runLogin(ctx context.Context, a *app.App, w io.Writer, args []string) error {
	user, err := a.Session.Login(ctx, domain.Credentials{Username: args[0], Password: args[1]})
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "logged in as %s (#%s)\n", user.Username, user.ID)
	return nil
}

func runSignup(ctx context.Context, a *app.App, w io.Writer, args []string) error {
	user, err := a.Session.Signup(ctx, domain.Profile{Username: args[0], Password: args[1]})
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "signed up as %s (#%s)\n", user.Username, user.ID)
	return nil
}

func runLogout(ctx context.Context, a *app.App, w io.Writer, _ []string) error {
	if err := a.Session.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(w, "logged out")
	return nil
}

func runWhoami(_ context.Context, a *app.App, w io.Writer, _ []string) error {
	user, ok := a.Session.CurrentUser()
	if !ok {
		fmt.Fprintln(w, "not logged in")
		return nil
	}
	fmt.Fprintf(w, "%s (#%s)\n", user.Username, user.ID)
	return nil
}

func runRooms(ctx context.Context, a *app.App, w io.Writer, _ []string) error {
	if err := a.Rooms.Fetch(ctx); err != nil {
		return err
	}
	s := a.Store.Snapshot()

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tOWNER")
	for _, room := range service.SortedRooms(s) {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", room.ID, room.Name, s.Users[room.OwnerID].Username)
	}
	return tw.Flush()
}

func runRoom(ctx context.Context, a *app.App, w io.Writer, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	room, err := a.Rooms.FetchOne(ctx, id)
	if err != nil {
		return err
	}
	s := a.Store.Snapshot()

	fmt.Fprintf(w, "# %s\n", room.Name)
	for _, m := range service.RoomMessages(s, id) {
		fmt.Fprintf(w, "[%s] #%s %s: %s\n", m.CreatedAt.Local().Format("2006-01-02 15:04"), m.ID, s.Users[m.AuthorID].Username, m.Body)
	}
	return nil
}

func runCreateRoom(ctx context.Context, a *app.App, w io.Writer, args []string) error {
	room, err := a.Rooms.Create(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "created room #%s %s\n", room.ID, room.Name)
	return nil
}

func runDeleteRoom(ctx context.Context, a *app.App, w io.Writer, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	if err := a.Rooms.Destroy(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(w, "deleted room #%s\n", id)
	return nil
}

func runPost(ctx context.Context, a *app.App, w io.Writer, args []string) error {
	room, err := parseID(args[0])
	if err != nil {
		return err
	}
	msg, err := a.Messages.Create(ctx, room, strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "posted message #%s\n", msg.ID)
	return nil
}

func runDeleteMessage(ctx context.Context, a *app.App, w io.Writer, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	if err := a.Messages.Destroy(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(w, "deleted message #%s\n", id)
	return nil
}

func runMentions(ctx context.Context, a *app.App, w io.Writer, _ []string) error {
	if err := a.Sync(ctx); err != nil {
		return err
	}
	view := a.Mentions.View()

	fmt.Fprintf(w, "%d unread\n", view.NumUnread)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\t\tROOM\tFROM\tMESSAGE")
	for _, m := range view.Mentions {
		mark := " "
		if !m.Read {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", m.ID, mark, m.Room.Name, m.Message.Author, m.Message.Body)
	}
	return tw.Flush()
}

func runRead(ctx context.Context, a *app.App, w io.Writer, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	if err := a.Mentions.MarkRead(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(w, "mention #%s marked read\n", id)
	return nil
}

func runSync(ctx context.Context, a *app.App, w io.Writer, _ []string) error {
	if err := a.Sync(ctx); err != nil {
		return err
	}
	s := a.Store.Snapshot()
	fmt.Fprintf(w, "%d rooms, %d unread mentions\n", len(s.Rooms), a.Mentions.View().NumUnread)
	return nil
}
