package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/guaruja-saneamento/adesoes/internal/core"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

var newUser struct {
	login, name, role, password string
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a user",
	Long: `Creates a user directly in the database. This is how the first
administrator is created, since the /users endpoints need one.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		hash, err := a.Auth.HashPassword(newUser.password)
		if err != nil {
			return err
		}
		u, err := a.Service.CreateUser(ctx, core.NewUser{
			Login:        newUser.login,
			Nome:         newUser.name,
			NivelAcesso:  newUser.role,
			PasswordHash: hash,
		})
		if err != nil {
			return fmt.Errorf("%s: %w", core.MapError(err).Message, err)
		}

		color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "Usuário %s criado (id %d, %s).\n", u.Login, u.ID, u.NivelAcesso)
		return nil
	},
}

func init() {
	f := userCreateCmd.Flags()
	f.StringVar(&newUser.login, "login", "", "login name")
	f.StringVar(&newUser.name, "name", "", "display name")
	f.StringVar(&newUser.role, "role", core.RoleBackoffice, "access level")
	f.StringVar(&newUser.password, "password", "", "password")
	_ = userCreateCmd.MarkFlagRequired("login")
	_ = userCreateCmd.MarkFlagRequired("name")
	_ = userCreateCmd.MarkFlagRequired("password")

	userCmd.AddCommand(userCreateCmd)
	rootCmd.AddCommand(userCmd)
}
