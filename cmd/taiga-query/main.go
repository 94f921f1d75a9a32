package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/petr-muller/taiga-query/internal/flagutil"
	"github.com/petr-muller/taiga-query/internal/projects"
	"github.com/petr-muller/taiga-query/internal/search/query"
	"github.com/petr-muller/taiga-query/internal/search/service"
	"github.com/petr-muller/taiga-query/internal/search/storage"
	"github.com/petr-muller/taiga-query/internal/search/ui"
)

var (
	taigaOptions flagutil.TaigaOptions
	entityName   string
	outputFormat string
	interactive  bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "taiga-query",
		Short: "Query Taiga issues, user stories and tasks with a small filter language",
		Long: `taiga-query runs filter queries like

  status:open AND priority:high ORDER BY created DESC LIMIT 10

against the issues, user stories or tasks of a Taiga project. Queries can
be validated without executing them, and frequently used queries can be
stored by name and re-run later.`,
	}

	rootCmd.PersistentFlags().StringVarP(&entityName, "entity", "e", "issues", "Entity type to query (issues, userstories, tasks)")
	taigaOptions.AddPFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(
		newSearchCmd(),
		newValidateCmd(),
		newWatchCmd(),
		newInspectCmd(),
		newListCmd(),
		newDeleteCmd(),
		newProjectAliasCmd(),
	)

	if err := fang.Execute(context.Background(), rootCmd); err != nil {
		logrus.WithError(err).Fatal("command failed")
	}
}

func newSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <project> <query>",
		Short: "Execute a query against a project",
		Long: `Execute a query against a project. The project may be a numeric Taiga
project ID or a configured project alias.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), args[0], args[1])
		},
	}

	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Browse results in an interactive table")
	cmd.Flags().StringVarP(&outputFormat, "output", "o", "text", "Output format (text, yaml)")

	return cmd
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <query>",
		Short: "Check query syntax without executing it",
		Long: `Parse and validate a query without touching the network, reporting the
parsed filters and summary statistics.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(args[0])
		},
	}
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <name> <project> <query>",
		Short: "Store a query under a name and run it",
		Long: `Store a query under a name for later re-runs, then execute it. Only the
query text is stored; every run re-parses it.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), args[0], args[1], args[2])
		},
	}
}

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <name>",
		Short: "Re-run a stored query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd.Context(), args[0])
		},
	}
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all stored queries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList()
		},
	}
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a stored query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(args[0])
		},
	}
}

func newProjectAliasCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "project-alias <alias> <project-id>",
		Short: "Map a project alias to a numeric Taiga project ID",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProjectAlias(args[0], args[1])
		},
	}
}

func entityType() (query.EntityType, error) {
	entity, ok := query.ParseEntityType(entityName)
	if !ok {
		return "", fmt.Errorf("unknown entity type %q (expected issues, userstories or tasks)", entityName)
	}
	return entity, nil
}

func createService() (*service.Service, error) {
	if err := taigaOptions.Validate(); err != nil {
		return nil, fmt.Errorf("invalid Taiga options: %w", err)
	}

	client, err := taigaOptions.Client()
	if err != nil {
		return nil, fmt.Errorf("cannot create Taiga client: %w", err)
	}

	return service.NewService(client), nil
}

func createStore() (*storage.Store, error) {
	dataDir, err := storage.SavedQueriesDataDir()
	if err != nil {
		return nil, fmt.Errorf("cannot determine data directory: %w", err)
	}
	return storage.NewStore(dataDir), nil
}

func resolveProject(project string) (int, error) {
	aliases, err := projects.LoadAliases()
	if err != nil {
		return 0, fmt.Errorf("cannot load project aliases: %w", err)
	}
	return aliases.Resolve(project)
}

func runSearch(ctx context.Context, project, queryText string) error {
	entity, err := entityType()
	if err != nil {
		return err
	}

	projectID, err := resolveProject(project)
	if err != nil {
		return err
	}

	svc, err := createService()
	if err != nil {
		return err
	}

	result, err := svc.Search(ctx, projectID, queryText, entity)
	if err != nil {
		return fmt.Errorf("cannot execute query: %w", err)
	}

	return displayResult(queryText, result)
}

func runValidate(queryText string) error {
	entity, err := entityType()
	if err != nil {
		return err
	}

	// Validate needs no Taiga client: it never touches the network.
	svc := service.NewService(nil)
	spec, stats, err := svc.Validate(queryText, entity)
	if err != nil {
		return err
	}

	fmt.Printf("Query is valid (%s, logic %s)\n\n", spec.EntityType, spec.Logic)
	for _, clause := range spec.Filters {
		negated := ""
		if clause.Negate {
			negated = "NOT "
		}
		if len(clause.Values) > 0 {
			fmt.Printf("  %s%s %s %v\n", negated, clause.Field, clause.Operator, clause.Values)
		} else {
			fmt.Printf("  %s%s %s %s\n", negated, clause.Field, clause.Operator, clause.Value)
		}
	}

	data, err := yaml.Marshal(stats)
	if err != nil {
		return fmt.Errorf("cannot marshal statistics: %w", err)
	}
	fmt.Printf("\n%s", data)

	return nil
}

func runWatch(ctx context.Context, name, project, queryText string) error {
	entity, err := entityType()
	if err != nil {
		return err
	}

	projectID, err := resolveProject(project)
	if err != nil {
		return err
	}

	svc, err := createService()
	if err != nil {
		return err
	}

	result, err := svc.Search(ctx, projectID, queryText, entity)
	if err != nil {
		return fmt.Errorf("cannot execute query: %w", err)
	}

	store, err := createStore()
	if err != nil {
		return err
	}

	saved := storage.SavedQuery{
		Name:       name,
		Query:      queryText,
		EntityType: string(entity),
		ProjectID:  projectID,
		LastRun:    result.ExecutedAt,
		LastTotal:  result.Total,
	}
	if err := store.Save(saved); err != nil {
		return fmt.Errorf("cannot save query: %w", err)
	}

	return displayResult(queryText, result)
}

func runInspect(ctx context.Context, name string) error {
	store, err := createStore()
	if err != nil {
		return err
	}

	saved, err := store.Load(name)
	if err != nil {
		return fmt.Errorf("cannot load query: %w", err)
	}
	if saved == nil {
		return fmt.Errorf("query '%s' not found", name)
	}

	entity, ok := query.ParseEntityType(saved.EntityType)
	if !ok {
		return fmt.Errorf("stored query '%s' has unknown entity type %q", name, saved.EntityType)
	}

	svc, err := createService()
	if err != nil {
		return err
	}

	result, err := svc.Search(ctx, saved.ProjectID, saved.Query, entity)
	if err != nil {
		return fmt.Errorf("cannot execute query: %w", err)
	}

	saved.LastRun = result.ExecutedAt
	saved.LastTotal = result.Total
	if err := store.Save(*saved); err != nil {
		return fmt.Errorf("cannot save query: %w", err)
	}

	return displayResult(saved.Query, result)
}

func runList() error {
	store, err := createStore()
	if err != nil {
		return err
	}

	saved, err := store.List()
	if err != nil {
		return fmt.Errorf("cannot list queries: %w", err)
	}

	if len(saved) == 0 {
		fmt.Println("No stored queries found")
		return nil
	}

	fmt.Println("Stored queries:")
	for _, item := range saved {
		fmt.Printf("  - %s: %s [%s]", item.Name, item.Query, item.EntityType)
		if !item.LastRun.IsZero() {
			fmt.Printf(" (%d results, last run: %s)", item.LastTotal, item.LastRun.Format("2006-01-02 15:04"))
		}
		fmt.Printf("\n")
	}

	return nil
}

func runDelete(name string) error {
	store, err := createStore()
	if err != nil {
		return err
	}

	if !store.Exists(name) {
		return fmt.Errorf("query '%s' not found", name)
	}

	if err := store.Delete(name); err != nil {
		return fmt.Errorf("cannot delete query: %w", err)
	}

	fmt.Printf("Query '%s' deleted successfully\n", name)
	return nil
}

func runProjectAlias(alias, projectID string) error {
	id, err := strconv.Atoi(projectID)
	if err != nil || id <= 0 {
		return fmt.Errorf("project ID must be a positive number, got %q", projectID)
	}

	aliases, err := projects.LoadAliases()
	if err != nil {
		return fmt.Errorf("cannot load project aliases: %w", err)
	}

	aliases.SetAlias(alias, id)
	if err := aliases.SaveAliases(); err != nil {
		return fmt.Errorf("cannot save project aliases: %w", err)
	}

	fmt.Printf("Project alias '%s' -> %d saved\n", alias, id)
	return nil
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	groupStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("33"))

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

func displayResult(queryText string, result *query.ResultSet) error {
	if interactive {
		model := ui.NewModel(queryText, *result)
		program := tea.NewProgram(model, tea.WithAltScreen())
		if _, err := program.Run(); err != nil {
			return fmt.Errorf("cannot run TUI: %w", err)
		}
		return nil
	}

	if outputFormat == "yaml" {
		data, err := yaml.Marshal(result)
		if err != nil {
			return fmt.Errorf("cannot marshal result set: %w", err)
		}
		fmt.Print(string(data))
		return nil
	}

	if result.Total == 0 {
		fmt.Println("No items matched the query")
		return nil
	}

	fmt.Println(titleStyle.Render(fmt.Sprintf("Results for: %s", queryText)))

	if result.Grouped() {
		for _, group := range result.Groups {
			fmt.Println(groupStyle.Render(fmt.Sprintf("%s (%d)", group.Value, group.Count)))
			for _, record := range group.Items {
				fmt.Printf("  #%-5d %s\n", record.Ref, record.Subject)
			}
		}
	} else {
		for _, record := range result.Results {
			fmt.Printf("  #%-5d %s\n", record.Ref, record.Subject)
		}
	}

	fmt.Println(footerStyle.Render(fmt.Sprintf("%d matching, took %s", result.Total, result.Took.Round(time.Millisecond))))
	return nil
}
