package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func whoamiCmd(o *globalOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the identity restored from the stored token",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, closeFn, err := openSession(cmd.Context(), o)
			if err != nil {
				return err
			}
			defer closeFn()

			ctrl.Bootstrap(cmd.Context())
			s := ctrl.Snapshot()

			if asJSON {
				out, err := json.MarshalIndent(s.View(), "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(out))
				return nil
			}
			describe(s)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the session view as JSON")
	return cmd
}
