package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/matheus3301/nchat/internal/api"
	"github.com/matheus3301/nchat/internal/config"
	"github.com/matheus3301/nchat/internal/core"
	"github.com/matheus3301/nchat/internal/identity"
	"github.com/matheus3301/nchat/internal/logging"
	"github.com/matheus3301/nchat/internal/profile"
	"github.com/matheus3301/nchat/internal/thread"
	"github.com/matheus3301/nchat/internal/tui/views"
	"go.uber.org/zap"
)

type globals struct {
	profile string
	json    bool
	debug   bool
}

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	debugFlag := flag.Bool("debug", false, "log requests to stderr")
	flag.Usage = printUsage
	flag.Parse()

	g := globals{profile: profile.Resolve(*profileFlag), json: *jsonFlag, debug: *debugFlag}
	if err := profile.ValidateName(g.profile); err != nil {
		fatalf("%v", err)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	switch args[0] {
	case "status":
		cmdStatus(ctx, g)
	case "init":
		cmdInit(g, args[1:])
	case "keys":
		cmdKeys(g, args[1:])
	case "account":
		cmdAccount(ctx, g, args[1:])
	case "peers":
		cmdPeers(ctx, g, args[1:])
	case "thread":
		if len(args) < 2 {
			fatalf("usage: nchatctl thread <npub|hex>")
		}
		cmdThread(ctx, g, args[1])
	case "send":
		if len(args) < 3 {
			fatalf("usage: nchatctl send <npub|hex> <text>")
		}
		cmdSend(ctx, g, args[1], strings.Join(args[2:], " "))
	case "restart":
		c := newClient(g)
		if err := c.RestartConnection(ctx); err != nil {
			fatalf("%v", err)
		}
		fmt.Println("Connection restarted.")
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: nchatctl [--profile <name>] [--json] [--debug] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  status                        Probe the running nchat for this profile")
	fmt.Fprintln(os.Stderr, "  init --api-url <url> [--invoice-key k] [--admin-key k]")
	fmt.Fprintln(os.Stderr, "                                Write the profile to config.toml")
	fmt.Fprintln(os.Stderr, "  keys gen [--qr]               Generate a key pair")
	fmt.Fprintln(os.Stderr, "  keys show [--qr] <nsec|hex>   Show the public key of a secret")
	fmt.Fprintln(os.Stderr, "  account show                  Show the account")
	fmt.Fprintln(os.Stderr, "  account create <nsec|hex>     Create the account from a secret key")
	fmt.Fprintln(os.Stderr, "  account toggle                Activate or deactivate the account")
	fmt.Fprintln(os.Stderr, "  account requery               Re-fetch account data from relays")
	fmt.Fprintln(os.Stderr, "  account republish             Publish account data to relays again")
	fmt.Fprintln(os.Stderr, "  account unpublish             Delete account data from relays")
	fmt.Fprintln(os.Stderr, "  account delete                Delete the account")
	fmt.Fprintln(os.Stderr, "  peers list                    List peers")
	fmt.Fprintln(os.Stderr, "  peers add <npub|hex>          Add a peer")
	fmt.Fprintln(os.Stderr, "  thread <npub|hex>             Print the conversation with a peer")
	fmt.Fprintln(os.Stderr, "  send <npub|hex> <text>        Send a direct message")
	fmt.Fprintln(os.Stderr, "  restart                       Restart the backend relay connection")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

func loadProfile(g globals) config.Profile {
	prof, err := config.LoadProfile(profile.ConfigPath(), g.profile)
	if err != nil {
		fatalf("%v", err)
	}
	if err := prof.Validate(); err != nil {
		fatalf("profile %q: %v", g.profile, err)
	}
	return prof
}

func newClient(g globals) *api.Client {
	prof := loadProfile(g)
	logger := zap.NewNop()
	if g.debug {
		l, err := logging.New(profile.LogPath(g.profile), g.profile, logging.Options{Stderr: true, Debug: true})
		if err != nil {
			fatalf("%v", err)
		}
		logger = l
	}
	return api.NewClient(api.Config{
		BaseURL:    prof.APIURL,
		InvoiceKey: prof.InvoiceKey,
		AdminKey:   prof.AdminKey,
		Timeout:    prof.RequestTimeout,
	}, logger.Named("nchatctl"), nil)
}

func mustAccount(ctx context.Context, c *api.Client) *api.Account {
	acct, err := c.FetchAccount(ctx)
	if err != nil {
		fatalf("%v", err)
	}
	if acct == nil {
		fatalf("%v (run: nchatctl account create <nsec>)", core.ErrNoAccount)
	}
	return acct
}

func cmdStatus(ctx context.Context, g globals) {
	socketPath := profile.SocketPath(g.profile)
	st, err := core.Probe(ctx, socketPath)
	if err != nil {
		fatalf("nchat not running for profile %q: %v", g.profile, err)
	}
	if g.json {
		outputJSON(map[string]string{"profile": g.profile, "channel": st.String()})
		return
	}
	fmt.Printf("Profile: %s\n", g.profile)
	fmt.Printf("Channel: %s\n", st)
}

func cmdInit(g globals, args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	apiURL := fs.String("api-url", "", "backend base URL")
	invoiceKey := fs.String("invoice-key", "", "read-only API key")
	adminKey := fs.String("admin-key", "", "admin API key")
	_ = fs.Parse(args)

	path := profile.ConfigPath()
	cfg, err := config.Load(path)
	if err != nil {
		cfg = &config.Config{}
	}
	if cfg.Profiles == nil {
		cfg.Profiles = map[string]config.Profile{}
	}
	p := cfg.Profiles[g.profile]
	if *apiURL != "" {
		p.APIURL = *apiURL
	}
	if *invoiceKey != "" {
		p.InvoiceKey = *invoiceKey
	}
	if *adminKey != "" {
		p.AdminKey = *adminKey
	}
	if err := p.Validate(); err != nil {
		fatalf("%v", err)
	}
	cfg.Profiles[g.profile] = p
	if cfg.DefaultProfile == "" {
		cfg.DefaultProfile = g.profile
	}
	if err := os.MkdirAll(profile.BaseDir(), 0700); err != nil {
		fatalf("%v", err)
	}
	if err := config.Save(path, cfg); err != nil {
		fatalf("%v", err)
	}
	fmt.Printf("Profile %q written to %s\n", g.profile, path)
}

type keyOutput struct {
	NPub   string `json:"npub"`
	Public string `json:"public_key"`
	NSec   string `json:"nsec,omitempty"`
	Secret string `json:"private_key,omitempty"`
}

func cmdKeys(g globals, args []string) {
	if len(args) == 0 {
		fatalf("usage: nchatctl keys <gen|show> [--qr]")
	}
	fs := flag.NewFlagSet("keys "+args[0], flag.ExitOnError)
	qr := fs.Bool("qr", false, "print the npub as a QR code")
	_ = fs.Parse(args[1:])

	var kp identity.KeyPair
	var err error
	switch args[0] {
	case "gen":
		kp, err = identity.Generate()
	case "show":
		if fs.NArg() < 1 {
			fatalf("usage: nchatctl keys show [--qr] <nsec|hex>")
		}
		kp, err = identity.ParseSecret(fs.Arg(0))
	default:
		fatalf("unknown keys subcommand: %s", args[0])
	}
	if err != nil {
		fatalf("%v", err)
	}

	out := keyOutput{Public: kp.Public}
	if out.NPub, err = identity.EncodePublic(kp.Public); err != nil {
		fatalf("%v", err)
	}
	if args[0] == "gen" {
		out.Secret = kp.Secret
		if out.NSec, err = identity.EncodeSecret(kp.Secret); err != nil {
			fatalf("%v", err)
		}
	}
	if g.json {
		outputJSON(out)
		return
	}
	fmt.Printf("npub:   %s\n", out.NPub)
	fmt.Printf("public: %s\n", out.Public)
	if out.NSec != "" {
		fmt.Printf("nsec:   %s\n", out.NSec)
		fmt.Printf("secret: %s\n", out.Secret)
	}
	if *qr {
		fmt.Println()
		fmt.Print(views.RenderQR(out.NPub))
	}
}

func cmdAccount(ctx context.Context, g globals, args []string) {
	if len(args) == 0 {
		fatalf("usage: nchatctl account <show|create|toggle|requery|republish|unpublish|delete>")
	}
	c := newClient(g)
	var acct *api.Account
	var err error
	switch args[0] {
	case "show":
		acct = mustAccount(ctx, c)
	case "create":
		if len(args) < 2 {
			fatalf("usage: nchatctl account create <nsec|hex>")
		}
		kp, perr := identity.ParseSecret(args[1])
		if perr != nil {
			fatalf("%v", perr)
		}
		acct, err = c.CreateAccount(ctx, kp.Secret, kp.Public)
	case "toggle":
		acct, err = c.ToggleAccount(ctx, mustAccount(ctx, c).ID)
	case "requery":
		acct, err = c.RequeryAccount(ctx, mustAccount(ctx, c).ID)
	case "republish":
		acct, err = c.RepublishAccount(ctx, mustAccount(ctx, c).ID)
	case "unpublish":
		id := mustAccount(ctx, c).ID
		if err := c.DeleteAccountFromNostr(ctx, id); err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("Account %s deleted from relays.\n", id)
		return
	case "delete":
		id := mustAccount(ctx, c).ID
		if err := c.DeleteAccount(ctx, id); err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("Account %s deleted.\n", id)
		return
	default:
		fatalf("unknown account subcommand: %s", args[0])
	}
	if err != nil {
		fatalf("%v", err)
	}
	printAccount(g, acct)
}

func printAccount(g globals, acct *api.Account) {
	redacted := *acct
	redacted.PrivateKey = ""
	if g.json {
		outputJSON(redacted)
		return
	}
	npub, err := identity.EncodePublic(acct.PublicKey)
	if err != nil {
		npub = "-"
	}
	fmt.Printf("ID:      %s\n", acct.ID)
	fmt.Printf("Name:    %s\n", acct.Config.Name)
	fmt.Printf("npub:    %s\n", npub)
	fmt.Printf("Active:  %v\n", acct.Config.Active)
	if acct.Config.RestoreInProgress {
		fmt.Println("Restore: in progress")
	}
}

func cmdPeers(ctx context.Context, g globals, args []string) {
	if len(args) == 0 {
		fatalf("usage: nchatctl peers <list|add>")
	}
	c := newClient(g)
	switch args[0] {
	case "list":
		peers, err := c.ListPeers(ctx)
		if err != nil {
			fatalf("%v", err)
		}
		if g.json {
			outputJSON(peers)
			return
		}
		if len(peers) == 0 {
			fmt.Println("No peers.")
			return
		}
		for _, p := range peers {
			fmt.Printf("%-20s %s %d unread\n", p.DisplayName(), p.ShortKey(), p.UnreadMessages)
		}
	case "add":
		if len(args) < 2 {
			fatalf("usage: nchatctl peers add <npub|hex>")
		}
		pubkey, err := identity.ParsePublic(args[1])
		if err != nil {
			fatalf("%v", err)
		}
		p, err := c.AddPeer(ctx, mustAccount(ctx, c).ID, pubkey)
		if err != nil {
			fatalf("%v", err)
		}
		if g.json {
			outputJSON(p)
			return
		}
		fmt.Printf("Peer %s added.\n", p.ShortKey())
	default:
		fatalf("unknown peers subcommand: %s", args[0])
	}
}

func cmdThread(ctx context.Context, g globals, key string) {
	pubkey, err := identity.ParsePublic(key)
	if err != nil {
		fatalf("%v", err)
	}
	msgs, err := newClient(g).FetchThread(ctx, pubkey)
	if err != nil {
		fatalf("%v", err)
	}
	if g.json {
		outputJSON(msgs)
		return
	}
	for _, m := range msgs {
		who := "me"
		if m.Incoming {
			who = "peer"
		}
		ts := m.EventCreatedAt
		if ts == 0 {
			ts = m.Time
		}
		when := "-"
		if ts > 0 {
			when = humanize.Time(time.Unix(ts, 0))
		}
		fmt.Printf("[%s] %s: %s\n", when, who, thread.Decode(m.Message).Display())
	}
}

func cmdSend(ctx context.Context, g globals, key, text string) {
	pubkey, err := identity.ParsePublic(key)
	if err != nil {
		fatalf("%v", err)
	}
	if strings.TrimSpace(text) == "" {
		fatalf("empty message")
	}
	msg, err := newClient(g).SendMessage(ctx, pubkey, text)
	if err != nil {
		fatalf("%v", err)
	}
	if g.json {
		outputJSON(msg)
		return
	}
	fmt.Printf("Sent %s.\n", msg.Key())
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}
