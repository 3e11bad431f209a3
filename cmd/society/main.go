// society is the command-line client: it signs in, lists notifications and
// listens on the realtime channel.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/dkeye/society/internal/apiclient"
	"github.com/dkeye/society/internal/domain"
	"github.com/dkeye/society/internal/protocol"
	"github.com/dkeye/society/internal/realtime"
)

const usage = `Usage: society <command> [flags]

Commands:
  login          --email <email> [--password <password>]
  logout
  me
  notifications  [--filter all|unread|read]
  read           <notification-id> | --all
  announce       --title <title> --body <body>
  listen         [--room <id>]...

The API base URL comes from SOCIETY_API_URL (default http://localhost:8080).
`

func main() {
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" {
		fmt.Fprint(os.Stderr, usage)
		return nil
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	client, err := apiclient.New(apiclient.BaseURLFromEnv(), store)
	if err != nil {
		return err
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "login":
		return runLogin(ctx, client, rest)
	case "logout":
		return client.Logout(ctx)
	case "me":
		p, err := client.Me(ctx)
		if err != nil {
			return err
		}
		return printJSON(p)
	case "notifications":
		return runNotifications(ctx, client, rest)
	case "read":
		return runRead(ctx, client, rest)
	case "announce":
		return runAnnounce(ctx, client, rest)
	case "listen":
		return runListen(ctx, client, rest)
	}
	return fmt.Errorf("unknown command %q\n\n%s", cmd, usage)
}

func openStore() (*apiclient.KeyringStore, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return nil, err
	}
	return apiclient.OpenKeyring(filepath.Join(dir, "society", "credentials"))
}

func runLogin(ctx context.Context, client *apiclient.Client, args []string) error {
	fs := pflag.NewFlagSet("login", pflag.ContinueOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", os.Getenv("SOCIETY_PASSWORD"), "password (or SOCIETY_PASSWORD)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" || *password == "" {
		return errors.New("login needs --email and --password")
	}
	u, err := client.Login(ctx, *email, *password)
	if err != nil {
		return err
	}
	fmt.Printf("signed in as %s (%s)\n", u.Name, u.Function)
	return nil
}

func runNotifications(ctx context.Context, client *apiclient.Client, args []string) error {
	fs := pflag.NewFlagSet("notifications", pflag.ContinueOnError)
	raw := fs.String("filter", string(domain.FilterAll), "all, unread or read")
	if err := fs.Parse(args); err != nil {
		return err
	}
	filter, ok := domain.ParseNotificationFilter(*raw)
	if !ok {
		return fmt.Errorf("unknown filter %q", *raw)
	}
	page, err := client.Notifications(ctx, filter)
	if err != nil {
		return err
	}
	fmt.Printf("%d unread\n", page.Unread)
	for _, n := range page.Items {
		mark := " "
		if !n.Read {
			mark = "*"
		}
		fmt.Printf("%s %s [%s] %s: %s\n", mark, n.ID, n.Type, n.Title, n.Message)
	}
	return nil
}

func runRead(ctx context.Context, client *apiclient.Client, args []string) error {
	fs := pflag.NewFlagSet("read", pflag.ContinueOnError)
	all := fs.Bool("all", false, "mark every notification read")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *all {
		n, err := client.MarkAllRead(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%d marked read\n", n)
		return nil
	}
	if fs.NArg() != 1 {
		return errors.New("read needs one notification id or --all")
	}
	return client.MarkRead(ctx, domain.NotificationID(fs.Arg(0)))
}

func runAnnounce(ctx context.Context, client *apiclient.Client, args []string) error {
	fs := pflag.NewFlagSet("announce", pflag.ContinueOnError)
	title := fs.String("title", "", "announcement title")
	body := fs.String("body", "", "announcement text")
	if err := fs.Parse(args); err != nil {
		return err
	}
	a, err := client.PostAnnouncement(ctx, *title, *body)
	if err != nil {
		return err
	}
	fmt.Printf("posted %s\n", a.ID)
	return nil
}

// runListen prints realtime events. Lines typed on stdin go to the first
// --room as chat messages.
func runListen(ctx context.Context, client *apiclient.Client, args []string) error {
	fs := pflag.NewFlagSet("listen", pflag.ContinueOnError)
	rooms := fs.StringArray("room", nil, "chat room to join (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	me, err := client.Me(ctx)
	if err != nil {
		return err
	}

	ch := realtime.NewChannel(client.WebsocketURL(), realtime.WebsocketDialer{}, client.Tokens(),
		realtime.WithMessageHandler(printFrame))
	ch.Watch(func(connected bool) {
		fmt.Fprintf(os.Stderr, "-- connected: %v\n", connected)
		if !connected {
			return
		}
		for _, r := range *rooms {
			ch.JoinRoom(r)
		}
	})
	ch.SetUser(me.User)
	defer ch.Close()

	if len(*rooms) > 0 {
		go readChat(ch, (*rooms)[0])
	}
	<-ctx.Done()
	return nil
}

func readChat(ch *realtime.Channel, room string) {
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		if err := ch.SendChat(room, text); err != nil {
			fmt.Fprintf(os.Stderr, "-- not sent: %v\n", err)
		}
	}
}

func printFrame(data []byte) {
	typ, err := protocol.TypeOf(data)
	if err != nil {
		return
	}
	switch typ {
	case protocol.TypeNotification:
		var n protocol.Notification
		if json.Unmarshal(data, &n) == nil && n.Notification != nil {
			fmt.Printf("[%s] %s: %s\n", n.Notification.Type, n.Notification.Title, n.Notification.Message)
		}
	case protocol.TypeChatMessage:
		var m protocol.ChatMessage
		if json.Unmarshal(data, &m) == nil {
			fmt.Printf("#%s <%s> %s\n", m.Room, m.From.Name, m.Text)
		}
	case protocol.TypeError:
		var e protocol.Error
		if json.Unmarshal(data, &e) == nil {
			fmt.Fprintf(os.Stderr, "-- server error: %s\n", e.Error)
		}
	default:
		fmt.Fprintf(os.Stderr, "-- %s\n", data)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
