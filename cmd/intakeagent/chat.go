package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tbxark/intakeagent/agent"
	"github.com/tbxark/intakeagent/config"
	"github.com/tbxark/intakeagent/oracle"
	"github.com/tbxark/intakeagent/state"
)

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Run an interactive collection session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context())
		},
	}
}

func runChat(ctx context.Context) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	store, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	baseURL := cfg.LLMBaseURL
	if baseURL == "" {
		baseURL = os.Getenv("OPENAI_BASE_URL")
	}
	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:  os.Getenv("OPENAI_API_KEY"),
		BaseURL: baseURL,
		Model:   cfg.LLMModel,
	})
	if err != nil {
		return fmt.Errorf("init chat model: %w", err)
	}

	session := sessionID
	if session == "" {
		session = "cli-" + uuid.NewString()
	}

	runtime := agent.NewRuntime(cfg, oracle.NewChatModel(chatModel), store)

	agentLabel := color.New(color.FgCyan, color.Bold).Sprintf("%s:", cfg.Name)

	greeting, err := runtime.StartSession(ctx, session)
	if err != nil {
		return err
	}
	fmt.Printf("%s %s\n\n", agentLabel, greeting)

	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("You: ")
		line, rErr := reader.ReadString('\n')
		if rErr != nil {
			fmt.Println("\nGoodbye.")
			return nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		switch strings.ToLower(line) {
		case "quit", "exit", "q":
			fmt.Println("Goodbye.")
			return nil
		}
		reply, hErr := runtime.HandleMessage(ctx, session, line)
		if hErr != nil {
			return hErr
		}
		fmt.Printf("%s %s\n\n", agentLabel, reply)
	}
}

func openStore() (state.Store, func(), error) {
	if dbPath == "" {
		return state.NewMemoryStore(), func() {}, nil
	}
	store, err := state.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, nil, err
	}
	return store, func() { _ = store.Close() }, nil
}
