package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/stevemurr/dashstate/app"
)

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func getCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "get [collection]",
		Short: "Print a collection, or list collections",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return printJSON(cmd.OutOrStdout(), rt.open().Names())
			}
			v, err := rt.open().Snapshot(args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), v)
		},
	}
}

func putCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "put <collection> <file|->",
		Short: "Replace a collection with a JSON document",
		Long:  "Replace a collection with the JSON document in file, or on stdin when file is \"-\". The document must match the collection's shape.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data []byte
				err  error
			)
			if args[1] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[1])
			}
			if err != nil {
				return fmt.Errorf("read %s: %w", args[1], err)
			}
			var value any
			if err := json.Unmarshal(data, &value); err != nil {
				return fmt.Errorf("parse %s: %w", args[1], err)
			}
			if err := rt.open().Replace(args[0], value); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Replaced %s\n", args[0])
			return nil
		},
	}
}

func inspectCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <collection>",
		Short: "Show the raw primary and backup slots of a collection",
		Long:  "Show the raw primary and backup slots of a collection and whether each validates. Nothing is loaded or repaired.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := app.Schema(args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rt.shadow.Inspect(args[0], v))
		},
	}
}

func counterCmd(rt *runtime) *cobra.Command {
	counter := &cobra.Command{
		Use:   "counter",
		Short: "Work with id counters",
	}
	counter.AddCommand(&cobra.Command{
		Use:       "next <name>",
		Short:     "Advance a counter and print the value it held",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{app.CounterUserID, app.CounterThreadID},
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := rt.open().NextCounter(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	})
	return counter
}

func logoutCmd(rt *runtime) *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "End the session and clear every collection not preserved",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rt.open().Logout(user); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged out; preserved %v\n", rt.cfg.Session.Preserve)
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user recorded in the activity log")
	return cmd
}
