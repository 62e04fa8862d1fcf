package main

import (
	"fmt"
	"os"

	"authbridge/internal/domain/auth"

	"github.com/spf13/cobra"
)

func loginCmd(o *globalOptions) *cobra.Command {
	var email, password, otp string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with credentials or a one-time passcode",
		Long: `Sign in and store the access token for this device.

Pass --otp to use a one-time passcode instead of a password. The password
may also be supplied through AUTHCTL_PASSWORD.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("AUTHCTL_PASSWORD")
			}

			var payload auth.LoginPayload
			if otp != "" {
				payload = auth.OTPPayload{Email: email, OTP: otp}
			} else {
				payload = auth.CredentialsPayload{Email: email, Password: password}
			}

			ctrl, closeFn, err := openSession(cmd.Context(), o)
			if err != nil {
				return err
			}
			defer closeFn()

			ctrl.Login(cmd.Context(), payload)
			s := ctrl.Snapshot()
			if s.LastError != nil {
				return fmt.Errorf("login failed: %s", s.LastError.Message)
			}
			success("signed in")
			describe(s)
			return nil
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password")
	cmd.Flags().StringVar(&otp, "otp", "", "one-time passcode")
	_ = cmd.MarkFlagRequired("email")
	cmd.MarkFlagsMutuallyExclusive("password", "otp")

	return cmd
}
