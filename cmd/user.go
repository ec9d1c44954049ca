package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	flagPassword string
	flagRole     string
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user accounts",
}

var userRegisterCmd = &cobra.Command{
	Use:   "register <username> <email>",
	Short: "Create a new account",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		username, email := args[0], args[1]

		password := flagPassword
		if password == "" {
			var err error
			password, err = promptLine("Password: ")
			if err != nil {
				return err
			}
		}
		if password == "" {
			return fmt.Errorf("password must not be empty")
		}

		db, err := openAppDB()
		if err != nil {
			return err
		}
		defer db.Close()

		user, err := db.CreateUser(username, email, password, flagRole)
		if err != nil {
			return err
		}
		fmt.Printf("Created account %q (role %s)\n", user.Username, user.Role)
		return nil
	},
}

var userLoginCmd = &cobra.Command{
	Use:   "login <username>",
	Short: "Verify account credentials",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		username := args[0]

		password := flagPassword
		if password == "" {
			var err error
			password, err = promptLine("Password: ")
			if err != nil {
				return err
			}
		}

		db, err := openAppDB()
		if err != nil {
			return err
		}
		defer db.Close()

		user, err := db.Authenticate(username, password)
		if err != nil {
			return err
		}
		db.LogAction(user.ID, "LOGIN", "User logged in")
		fmt.Printf("Welcome, %s.\n", user.Username)
		return nil
	},
}

func promptLine(prompt string) (string, error) {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func init() {
	userRegisterCmd.Flags().StringVar(&flagPassword, "password", "", "password (prompted if omitted)")
	userRegisterCmd.Flags().StringVar(&flagRole, "role", "user", "account role (user or admin)")
	userLoginCmd.Flags().StringVar(&flagPassword, "password", "", "password (prompted if omitted)")
	userCmd.AddCommand(userRegisterCmd)
	userCmd.AddCommand(userLoginCmd)
	rootCmd.AddCommand(userCmd)
}
