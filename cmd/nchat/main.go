package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/matheus3301/nchat/internal/config"
	"github.com/matheus3301/nchat/internal/core"
	"github.com/matheus3301/nchat/internal/profile"
	"github.com/matheus3301/nchat/internal/tui"
	"github.com/matheus3301/nchat/internal/tui/model"
	"go.uber.org/fx"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	debugFlag := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	profileName := profile.Resolve(*profileFlag)
	if err := profile.ValidateName(profileName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	prof, err := config.LoadProfile(profile.ConfigPath(), profileName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if err := prof.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "error: profile %q: %v\n", profileName, err)
		os.Exit(1)
	}
	if *debugFlag {
		prof.Debug = true
	}

	var c *core.Core
	app := fx.New(
		core.Module(core.Params{ProfileName: profileName, Profile: prof}),
		fx.Populate(&c),
		fx.NopLogger,
	)
	if err := app.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	startCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	err = app.Start(startCtx)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	runErr := tui.NewApp(model.FromCore(c, profileName)).Run()

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := app.Stop(stopCtx); err != nil {
		fmt.Fprintf(os.Stderr, "shutdown: %v\n", err)
	}
	cancel()
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", runErr)
		os.Exit(1)
	}
}
