package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/mitcstore/mitc-api/internal/config"
	"github.com/mitcstore/mitc-api/internal/database"
	"github.com/mitcstore/mitc-api/internal/dto"
	"github.com/mitcstore/mitc-api/internal/models"
	"github.com/mitcstore/mitc-api/internal/repository"
	"github.com/mitcstore/mitc-api/internal/service"
	"github.com/mitcstore/mitc-api/internal/utils"
)

type dbOpener func() (*gorm.DB, error)

func openFromConfig() (*gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return database.Connect(cfg.DatabaseURL)
}

func newRootCmd(open dbOpener, out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "storectl",
		Short:         "Operational tasks for the MITC store API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)

	root.AddCommand(
		newMigrateCmd(open),
		newPromoteAdminCmd(open),
		newUsersCmd(open),
		newImportProductsCmd(open),
	)
	return root
}

func newMigrateCmd(open dbOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := open()
			if err != nil {
				return err
			}
			if err := database.Migrate(db); err != nil {
				return err
			}
			cmd.Printf("migrated %d tables\n", len(models.All()))
			return nil
		},
	}
}

func newPromoteAdminCmd(open dbOpener) *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "promote-admin <email>",
		Short: "Set the role of the profile registered with email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			role = strings.ToLower(strings.TrimSpace(role))
			switch role {
			case models.RoleAdmin, models.RoleUser, models.RoleGuest:
			default:
				return fmt.Errorf("unknown role %q", role)
			}

			db, err := open()
			if err != nil {
				return err
			}
			users := repository.NewUserRepository(db)
			ctx := context.Background()

			email := strings.ToLower(strings.TrimSpace(args[0]))
			user, err := users.GetByEmail(ctx, email)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("no profile registered for %s", email)
				}
				return err
			}
			if err := users.UpdateRole(ctx, user.UID, role); err != nil {
				return err
			}
			cmd.Printf("%s (%s) is now %s\n", email, user.UID, role)
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", models.RoleAdmin, "role to assign: admin, user or guest")
	return cmd
}

func newUsersCmd(open dbOpener) *cobra.Command {
	var (
		role  string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "users",
		Short: "List profiles",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := open()
			if err != nil {
				return err
			}
			users, err := repository.NewUserRepository(db).List(context.Background(), repository.UserFilter{Role: role, Limit: limit})
			if err != nil {
				return err
			}
			for _, user := range users {
				cmd.Printf("%-36s %-24s %-32s %-6s joined %s\n", user.UID, utils.TruncateText(user.Name, 21), user.Email, user.Role, humanize.Time(user.CreatedAt))
			}
			cmd.Printf("%s profiles\n", humanize.Comma(int64(len(users))))
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "filter by role")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows")
	return cmd
}

func newImportProductsCmd(open dbOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "import-products <file.json>",
		Short: "Create products from a JSON array, skipping titles already listed for the brand",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var items []dto.ProductCreateRequest
			if err := json.Unmarshal(raw, &items); err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}

			db, err := open()
			if err != nil {
				return err
			}
			logger := zerolog.New(cmd.ErrOrStderr()).With().Timestamp().Logger()
			repo := repository.NewProductRepository(db)
			products := service.NewProductService(repo, validator.New(validator.WithRequiredStructEnabled()), logger)

			result, err := service.NewCatalogImporter(products, repo, logger).Import(cmd.Context(), items)
			if err != nil {
				return err
			}

			indexes := make([]int, 0, len(result.Failed))
			for index := range result.Failed {
				indexes = append(indexes, index)
			}
			sort.Ints(indexes)
			for _, index := range indexes {
				cmd.Printf("item %d rejected: %v\n", index, result.Failed[index])
			}
			cmd.Printf("created %s, skipped %s, rejected %s\n",
				humanize.Comma(int64(result.Created)),
				humanize.Comma(int64(result.Skipped)),
				humanize.Comma(int64(len(result.Failed))))
			return nil
		},
	}
}
