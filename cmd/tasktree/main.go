package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tasktree/tasktree/internal/config"
	"github.com/tasktree/tasktree/internal/database"
	"github.com/tasktree/tasktree/internal/models"
	"github.com/tasktree/tasktree/internal/repository"
	"github.com/tasktree/tasktree/internal/service"
)

func main() {
	log.SetLevel(log.WarnLevel)

	rootCmd := &cobra.Command{
		Use:   "tasktree",
		Short: "A task tree manager backed by a local SQLite store",
	}

	rootCmd.AddCommand(
		addCmd(),
		treeCmd(),
		doneCmd(),
		mvCmd(),
		rmCmd(),
		searchCmd(),
		backupCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func openService() (*service.TaskService, func(), error) {
	if err := godotenv.Load(); err == nil {
		log.Debug("loaded .env")
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return nil, nil, err
	}
	if err := database.Migrate(context.Background(), db); err != nil {
		db.Close()
		return nil, nil, err
	}
	repo := repository.NewTaskRepository(db)
	return service.NewTaskService(repo, nil), func() { db.Close() }, nil
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

func parseParent(raw string) (*uuid.UUID, error) {
	if raw == "" || raw == "-" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid parent id %q: %w", raw, err)
	}
	return &id, nil
}

func addCmd() *cobra.Command {
	var parent, description, category string
	var priority int
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a task, optionally under a parent",
		Args:  cobra.ExactArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			svc, closeFn, err := openService()
			if err != nil {
				fail(err)
			}
			defer closeFn()

			parentID, err := parseParent(parent)
			if err != nil {
				fail(err)
			}
			var cat *string
			if category != "" {
				cat = &category
			}
			t, err := svc.Add(context.Background(), repository.NewTask{
				ParentID:    parentID,
				Title:       args[0],
				Description: description,
				Priority:    priority,
				Category:    cat,
			})
			if err != nil {
				fail(err)
			}
			fmt.Printf("added %s (%s)\n", t.Title, t.ID)
		},
	}
	cmd.Flags().StringVarP(&parent, "parent", "p", "", "Parent task id")
	cmd.Flags().StringVarP(&description, "description", "d", "", "Task description")
	cmd.Flags().StringVarP(&category, "category", "c", "", "Category label")
	cmd.Flags().IntVar(&priority, "priority", 0, "Priority 1-5 (default 3)")
	return cmd
}

func statusMarker(status string) string {
	switch status {
	case models.StatusDone:
		return "[x]"
	case models.StatusInProgress:
		return "[~]"
	default:
		return "[ ]"
	}
}

func treeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tree",
		Short: "Print the whole task forest",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			svc, closeFn, err := openService()
			if err != nil {
				fail(err)
			}
			defer closeFn()

			ctx := context.Background()
			var render func(parent *uuid.UUID, depth int)
			render = func(parent *uuid.UUID, depth int) {
				children, err := svc.Children(ctx, parent)
				if err != nil {
					fail(err)
				}
				for i := range children {
					t := &children[i]
					fmt.Printf("%s%s %s  %s\n",
						strings.Repeat("  ", depth), statusMarker(t.Status), t.Title, t.ID)
					id := t.ID
					render(&id, depth+1)
				}
			}
			render(nil, 0)
		},
	}
}

func doneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "done <id>",
		Short: "Toggle a task between done and todo",
		Args:  cobra.ExactArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			svc, closeFn, err := openService()
			if err != nil {
				fail(err)
			}
			defer closeFn()

			id, err := uuid.Parse(args[0])
			if err != nil {
				fail(fmt.Errorf("invalid task id: %w", err))
			}
			t, err := svc.ToggleStatus(context.Background(), id)
			if err != nil {
				fail(err)
			}
			if t == nil {
				fail(fmt.Errorf("task not found: %s", id))
			}
			fmt.Printf("%s %s\n", statusMarker(t.Status), t.Title)
		},
	}
}

func mvCmd() *cobra.Command {
	var index int
	cmd := &cobra.Command{
		Use:   "mv <id> <parent|->",
		Short: "Move a task under a new parent ('-' for root level)",
		Args:  cobra.ExactArgs(2),
		Run: func(_ *cobra.Command, args []string) {
			svc, closeFn, err := openService()
			if err != nil {
				fail(err)
			}
			defer closeFn()

			id, err := uuid.Parse(args[0])
			if err != nil {
				fail(fmt.Errorf("invalid task id: %w", err))
			}
			parent, err := parseParent(args[1])
			if err != nil {
				fail(err)
			}
			if err := svc.Move(context.Background(), id, parent, index); err != nil {
				fail(err)
			}
			fmt.Println("moved")
		},
	}
	cmd.Flags().IntVarP(&index, "index", "i", 0, "Position among the new siblings")
	return cmd
}

func rmCmd() *cobra.Command {
	var keepChildren bool
	cmd := &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a task and its subtree",
		Args:  cobra.ExactArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			svc, closeFn, err := openService()
			if err != nil {
				fail(err)
			}
			defer closeFn()

			id, err := uuid.Parse(args[0])
			if err != nil {
				fail(fmt.Errorf("invalid task id: %w", err))
			}
			if err := svc.Delete(context.Background(), id, !keepChildren); err != nil {
				fail(err)
			}
			fmt.Println("deleted")
		},
	}
	cmd.Flags().BoolVar(&keepChildren, "no-cascade", false, "Refuse to delete when the task has children")
	return cmd
}

func searchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Find tasks by title or description substring",
		Args:  cobra.ExactArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			svc, closeFn, err := openService()
			if err != nil {
				fail(err)
			}
			defer closeFn()

			tasks, err := svc.Search(context.Background(), args[0])
			if err != nil {
				fail(err)
			}
			for i := range tasks {
				t := &tasks[i]
				fmt.Printf("%s %s  %s\n", statusMarker(t.Status), t.Title, t.ID)
			}
		},
	}
}

func backupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup [dir]",
		Short: "Snapshot the store into a timestamped file",
		Args:  cobra.MaximumNArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			svc, closeFn, err := openService()
			if err != nil {
				fail(err)
			}
			defer closeFn()

			cfg, err := config.Load()
			if err != nil {
				fail(err)
			}
			dir := cfg.Backup.Dir
			if len(args) == 1 {
				dir = args[0]
			}
			path, err := svc.Backup(context.Background(), dir)
			if err != nil {
				fail(err)
			}
			fmt.Println(path)
		},
	}
}
