package cli

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newInspectCmd(o *options) *cobra.Command {
	var (
		values bool
		show   int
	)
	cmd := &cobra.Command{
		Use:   "inspect [prefix]",
		Short: "Inspect raw store keys and patterns",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			}
			s, err := o.open()
			if err != nil {
				return err
			}
			defer s.Close()

			ks, err := s.store.ListKeys(prefix)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			counts := map[string]int{}
			shown := 0
			for _, k := range ks {
				counts[keyKind(k)]++
				if show > 0 && shown >= show {
					continue
				}
				shown++
				if !values {
					fmt.Fprintln(out, k)
					continue
				}
				v, err := s.store.GetKey(k)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s = %s\n", k, v)
			}

			fmt.Fprintln(out, "\nKey summary:")
			fmt.Fprintf(out, "  Total keys: %s\n", humanize.Comma(int64(len(ks))))
			for _, kind := range []string{"conversation", "message", "message-index", "user-index", "token", "other"} {
				if n := counts[kind]; n > 0 {
					fmt.Fprintf(out, "  %s: %s\n", kind, humanize.Comma(int64(n)))
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&values, "values", false, "print values next to keys")
	cmd.Flags().IntVar(&show, "show", 20, "keys to print; 0 prints all")
	return cmd
}

// keyKind classifies a key by the store's key layout.
func keyKind(k string) string {
	switch {
	case strings.HasPrefix(k, "tok:"):
		return "token"
	case strings.HasPrefix(k, "idx:c:"):
		return "message-index"
	case strings.HasPrefix(k, "idx:u:"):
		return "user-index"
	case strings.HasPrefix(k, "c:") && strings.Contains(k, ":m:"):
		return "message"
	case strings.HasPrefix(k, "c:"):
		return "conversation"
	default:
		return "other"
	}
}
