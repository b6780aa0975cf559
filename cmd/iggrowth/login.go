package main

import (
	"github.com/spf13/cobra"

	"iggrowth/pkg/logger"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and store the session",
	Long: `Perform a fresh credential login and persist the resulting session
(cookie jar and device identity) to the system keychain or the encrypted
session file. Later runs restore the session instead of re-authenticating,
which avoids login-velocity anti-automation signals.

The password comes from IGGROWTH_PASSWORD, the config file, or an
interactive prompt.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			account := a.client.Account()
			logger.GetLogger().InfoWithFields("logged in", map[string]interface{}{
				"username": account.Username, "pk": account.PK,
			})
			return nil
		})
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logger.GetLogger()
		username := loadedConfig.Account.Username
		if err := newSessionManager(log).Delete(username); err != nil {
			return err
		}
		log.InfoWithFields("removed stored session", map[string]interface{}{"username": username})
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd, logoutCmd)
}
