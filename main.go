package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"storyforge/client"
	"storyforge/config"
	"storyforge/logging"
	"storyforge/poll"
	"storyforge/session"
	"storyforge/tui"
	"storyforge/wizard"
)

func main() {
	// Load environment
	_ = godotenv.Load()

	// Parse command-line flags
	configPath := flag.String("config", "", "Path to the YAML config file")
	serverURL := flag.String("url", "", "Backend URL (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Config error: %v\n", err)
		os.Exit(1)
	}
	if *serverURL != "" {
		cfg.Server.URL = *serverURL
	}

	// Diagnostics go to a file so they do not fight bubbletea for the
	// terminal.
	log, err := logging.NewFile(cfg.Client.LogLevel, cfg.Client.LogFile)
	if err != nil {
		fmt.Printf("Log file error: %v\n", err)
		os.Exit(1)
	}

	sessionPath := cfg.Client.SessionPath
	if sessionPath == "" {
		sessionPath, err = session.DefaultPath()
		if err != nil {
			fmt.Printf("Session path error: %v\n", err)
			os.Exit(1)
		}
	}
	store := session.NewFileStore(sessionPath)
	sess, err := store.Load()
	if err != nil {
		log.Warn().Err(err).Msg("session load failed, starting fresh")
		sess = session.New()
	}

	api := client.New(cfg.Server.URL, sess, log)
	api.SetTimeout(cfg.Server.Timeout)

	poller := poll.New(api.GetJob, poll.Policy{
		Interval:       cfg.Poll.Interval,
		RequestTimeout: cfg.Poll.RequestTimeout,
		StopOnTerminal: true,
	}, log)

	ctrl := wizard.New(api, sess, wizard.Options{
		MinStoryChars: cfg.Client.MinStoryChars,
		StrictAdvance: cfg.Client.StrictAdvance,
		Logger:        log,
	})

	// Create the tea program
	m := tui.NewModel(ctrl, api, poller, sess, store, cfg.Client.MaxImageBytes, log)
	program := tea.NewProgram(m, tea.WithAltScreen())

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		program.Quit()
	}()

	// Run the program
	if _, err := program.Run(); err != nil {
		fmt.Printf("Error running program: %v\n", err)
		os.Exit(1)
	}
	poller.Stop()
}
