package main

import (
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Rrens/projecthub/internal/client"
	"github.com/Rrens/projecthub/internal/config"
	"github.com/Rrens/projecthub/internal/logging"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "projectwatch",
	Short: "Watch a projecthub server's live project updates",
	Long: `projectwatch signs in to a projecthub server, loads the project list,
opens a realtime connection and keeps the list converged with the events
other users cause. With --project it also follows one project's room.`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	flags := rootCmd.Flags()
	flags.String("server", "http://127.0.0.1:8080", "projecthub base URL")
	flags.String("email", "", "account email")
	flags.String("password", "", "account password")
	flags.String("token", "", "access token; skips login")
	flags.String("project", "", "project id whose room to join")
	flags.String("policy", "reload", "how events reach the cache: reload or patch")
	flags.String("log-level", "info", "log level")
}

func run(cmd *cobra.Command, _ []string) error {
	server, _ := cmd.Flags().GetString("server")
	email, _ := cmd.Flags().GetString("email")
	password, _ := cmd.Flags().GetString("password")
	token, _ := cmd.Flags().GetString("token")
	projectID, _ := cmd.Flags().GetString("project")
	policyName, _ := cmd.Flags().GetString("policy")
	level, _ := cmd.Flags().GetString("log-level")

	if _, err := logging.Setup(config.LoggingConfig{Level: level, Format: "console"}, false); err != nil {
		return err
	}

	policy, err := parsePolicy(policyName)
	if err != nil {
		return err
	}
	wsURL, err := websocketURL(server)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	creds := client.NewMemoryCredentials(token)
	api := client.NewAPIClient(server, creds)
	if token == "" {
		if email == "" || password == "" {
			return fmt.Errorf("either --token or --email and --password are required")
		}
		if _, err := api.Login(ctx, email, password); err != nil {
			return fmt.Errorf("login failed: %w", err)
		}
		log.Info().Str("email", email).Msg("signed in")
	}

	cache := client.NewProjectCache(api, creds, client.CacheOptions{
		OnAuthFailure: func() {
			log.Error().Msg("credentials rejected, stopping")
			stop()
		},
	})
	if err := cache.Load(ctx, false); err != nil {
		return fmt.Errorf("failed to load projects: %w", err)
	}
	log.Info().Int("projects", len(cache.Projects())).Msg("project list loaded")

	cache.OnChange(func() {
		log.Info().
			Int("projects", len(cache.Projects())).
			Bool("stale", cache.IsStale()).
			Msg("project list changed")
	})
	go cache.Run(ctx)

	subs := client.NewSubscriptionManager(client.SubscriptionOptions{
		URL:         wsURL,
		Credentials: creds,
	})
	subs.OnStateChange(func(s client.State) {
		log.Info().Str("state", string(s)).Msg("connection")
	})
	subs.OnServerError(func(message string) {
		log.Warn().Str("message", message).Msg("server error")
	})
	subs.OnProjectUpdate(func(e client.ProjectUpdate) {
		log.Info().Str("action", string(e.Action)).Str("project", e.Project.Name).Int64("version", e.Version).Msg("project")
	})
	subs.OnTaskUpdate(func(e client.TaskUpdate) {
		log.Info().Str("action", string(e.Action)).Str("task", e.Task.Title).Int64("version", e.Version).Msg("task")
	})
	subs.OnMilestoneUpdate(func(e client.MilestoneUpdate) {
		log.Info().Str("action", string(e.Action)).Str("milestone", e.Milestone.Title).Int64("version", e.Version).Msg("milestone")
	})
	subs.OnMemberUpdate(func(e client.MemberUpdate) {
		log.Info().Str("action", string(e.Action)).Str("user_id", e.Member.UserID.String()).Int64("version", e.Version).Msg("member")
	})
	subs.OnFileUpdate(func(e client.FileUpdate) {
		log.Info().Str("action", string(e.Action)).Str("file", e.File.Name).Int64("version", e.Version).Msg("file")
	})

	reconciler := client.NewReconciler(cache, subs, policy)
	reconciler.Start(ctx)
	defer reconciler.Stop()

	if projectID != "" {
		subs.JoinProject(projectID)
	}
	subs.Connect(ctx)
	defer subs.Close()

	<-ctx.Done()
	log.Info().Msg("stopping")
	return nil
}

func parsePolicy(name string) (client.Policy, error) {
	switch strings.ToLower(name) {
	case "reload":
		return client.PolicyReload, nil
	case "patch":
		return client.PolicyPatch, nil
	default:
		return 0, fmt.Errorf("unknown policy %q (want reload or patch)", name)
	}
}

// websocketURL derives the realtime endpoint from the REST base URL
func websocketURL(server string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("invalid server url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http", "":
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String(), nil
}
