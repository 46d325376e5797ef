package cli

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"dmfeed/pkg/feed"
)

func (o *options) writer(s *session) (*feed.Writer, error) {
	identity, err := o.requireIdentity()
	if err != nil {
		return nil, err
	}
	return feed.NewWriter(feed.NewStoreSource(s.store), identity, feed.WithBlobs(s.blobs))
}

func newSendCmd(o *options) *cobra.Command {
	var image string
	cmd := &cobra.Command{
		Use:   "send <peer> [text...]",
		Short: "Send a message to a peer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := o.open()
			if err != nil {
				return err
			}
			defer s.Close()
			w, err := o.writer(s)
			if err != nil {
				return err
			}

			c := feed.Content{Text: strings.Join(args[1:], " ")}
			if image != "" {
				data, err := os.ReadFile(image)
				if err != nil {
					return err
				}
				meta, err := s.blobs.Put(w.Identity(), http.DetectContentType(data), data)
				if err != nil {
					return fmt.Errorf("upload %s: %w", image, err)
				}
				c.ImageRef = meta.Ref()
			}
			m, err := w.Send(cmd.Context(), args[0], c)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatMessage(m, time.Now()))
			return nil
		},
	}
	cmd.Flags().StringVar(&image, "image", "", "attach the image file at this path")
	return cmd
}

func newEditCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "edit <peer> <message-id> <text...>",
		Short: "Edit one of your messages",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := o.open()
			if err != nil {
				return err
			}
			defer s.Close()
			w, err := o.writer(s)
			if err != nil {
				return err
			}
			m, err := w.Edit(cmd.Context(), args[0], args[1], strings.Join(args[2:], " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatMessage(m, time.Now()))
			return nil
		},
	}
}

func newDeleteCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <peer> <message-id>",
		Short: "Delete one of your messages",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := o.open()
			if err != nil {
				return err
			}
			defer s.Close()
			w, err := o.writer(s)
			if err != nil {
				return err
			}
			m, err := w.Delete(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatMessage(m, time.Now()))
			return nil
		},
	}
}

func newTokenCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "token <delivery-token>",
		Short: "Register the push delivery token for your user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			identity, err := o.requireIdentity()
			if err != nil {
				return err
			}
			s, err := o.open()
			if err != nil {
				return err
			}
			defer s.Close()
			t, err := s.store.PutToken(identity, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "token registered for %s\n", t.UserID)
			return nil
		},
	}
}
