package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vku/taskchat/internal/config"
	"github.com/vku/taskchat/internal/models"
	"github.com/vku/taskchat/internal/provider"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Seed and inspect the local task store",
}

var taskUserCmd = &cobra.Command{
	Use:   "user",
	Short: "Create or update a user with roles",
	RunE:  runTaskUser,
}

var taskAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a task for a user",
	RunE:  runTaskAdd,
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	RunE:  runTaskList,
}

var (
	seedUserID   int64
	seedUsername string
	seedFullName string
	seedRoles    string

	addUserID      int64
	addTitle       string
	addDesc        string
	addStatus      string
	addDeadline    string
	addAllowUpdate bool

	listUserID int64
	listAdmin  bool
)

func init() {
	taskUserCmd.Flags().Int64Var(&seedUserID, "id", 0, "User id")
	taskUserCmd.Flags().StringVar(&seedUsername, "username", "", "Username")
	taskUserCmd.Flags().StringVar(&seedFullName, "name", "", "Full display name")
	taskUserCmd.Flags().StringVar(&seedRoles, "roles", "USER", "Comma-separated role names")
	taskUserCmd.MarkFlagRequired("id")
	taskUserCmd.MarkFlagRequired("username")
	taskUserCmd.MarkFlagRequired("name")

	taskAddCmd.Flags().Int64Var(&addUserID, "user", 0, "Assigned user id")
	taskAddCmd.Flags().StringVar(&addTitle, "title", "", "Task title")
	taskAddCmd.Flags().StringVar(&addDesc, "desc", "", "Task description")
	taskAddCmd.Flags().StringVar(&addStatus, "status", string(models.TaskStatusOpen), "Status (OPEN, IN_PROGRESS, DONE, CANCELED)")
	taskAddCmd.Flags().StringVar(&addDeadline, "deadline", "", "Deadline (YYYY-MM-DD)")
	taskAddCmd.Flags().BoolVar(&addAllowUpdate, "allow-update", false, "Allow the assignee to update the task")
	taskAddCmd.MarkFlagRequired("user")
	taskAddCmd.MarkFlagRequired("title")

	taskListCmd.Flags().Int64Var(&listUserID, "user", 0, "Filter to one user's tasks")
	taskListCmd.Flags().BoolVar(&listAdmin, "all", false, "List every task (admin view)")

	taskCmd.AddCommand(taskUserCmd)
	taskCmd.AddCommand(taskAddCmd)
	taskCmd.AddCommand(taskListCmd)
}

// openSQLite opens the configured store; seeding is sqlite-only, the MySQL
// schema belongs to the task-management service.
func openSQLite() (*provider.SQLiteStore, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if cfg.Store.Driver != "sqlite" {
		return nil, fmt.Errorf("task commands require the sqlite store driver (configured: %s)", cfg.Store.Driver)
	}
	return provider.NewSQLiteStore(cfg.Store.SQLite.Path)
}

func runTaskUser(cmd *cobra.Command, args []string) error {
	s, err := openSQLite()
	if err != nil {
		return err
	}
	defer s.Close()

	var roles []string
	for _, r := range strings.Split(seedRoles, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}

	if err := s.EnsureUser(context.Background(), seedUserID, seedUsername, seedFullName, roles...); err != nil {
		return err
	}
	fmt.Printf("User %d (%s) ready with roles %s\n", seedUserID, seedUsername, strings.Join(roles, ", "))
	return nil
}

func runTaskAdd(cmd *cobra.Command, args []string) error {
	s, err := openSQLite()
	if err != nil {
		return err
	}
	defer s.Close()

	id, err := s.CreateTask(context.Background(), addUserID, addTitle, addDesc,
		models.TaskStatus(addStatus), addDeadline, addAllowUpdate)
	if err != nil {
		return err
	}
	fmt.Printf("Task %d created\n", id)
	return nil
}

func runTaskList(cmd *cobra.Command, args []string) error {
	s, err := openSQLite()
	if err != nil {
		return err
	}
	defer s.Close()

	tasks, err := s.Tasks(context.Background(), listUserID, listAdmin)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tDEADLINE\tASSIGNED\tALLOW UPDATE")
	for _, t := range tasks {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%t\n",
			t.ID, t.Title, t.Status, t.Deadline, t.AssignedFullName, t.AllowUserUpdate)
	}
	return w.Flush()
}
