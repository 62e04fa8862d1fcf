package main

import (
	"github.com/spf13/cobra"
)

func logoutCmd(o *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear the stored token",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, closeFn, err := openSession(cmd.Context(), o)
			if err != nil {
				return err
			}
			defer closeFn()

			ctrl.Bootstrap(cmd.Context())
			ctrl.Logout(cmd.Context())
			success("signed out")
			return nil
		},
	}
}
