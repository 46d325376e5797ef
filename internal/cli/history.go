package cli

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"dmfeed/pkg/feed"
	"dmfeed/pkg/models"
	"dmfeed/pkg/store"
	"dmfeed/pkg/store/keys"
	"dmfeed/pkg/store/pagination"
)

func newHistoryCmd(o *options) *cobra.Command {
	var (
		limit  int
		cursor string
	)
	cmd := &cobra.Command{
		Use:   "history <peer>",
		Short: "Print one page of the conversation with a peer",
		Long: `history prints the newest page of the conversation, oldest first, or
the page just older than --cursor. The cursor for the next older page
is printed last.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			identity, err := o.requireIdentity()
			if err != nil {
				return err
			}
			convID, err := keys.ConversationID(identity, args[0])
			if err != nil {
				return err
			}
			limit = pagination.ClampLimit(limit, pageSizeOr(o.cfg.PageSize, pagination.MessageDefaultLimit))
			cp, err := pagination.DecodeCursor(cursor)
			if err != nil {
				return err
			}

			s, err := o.open()
			if err != nil {
				return err
			}
			defer s.Close()

			var page []models.Message
			if cp.IsZero() {
				page, err = s.store.ListNewest(convID, limit)
			} else {
				page, err = s.store.ListBefore(convID, store.Cursor{TS: cp.TS, ID: cp.MessageID}, limit)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			now := time.Now()
			asc := feed.Ascending(page)
			for _, m := range asc {
				fmt.Fprintln(out, formatMessage(m, now))
			}
			if len(page) == limit {
				next := pagination.EncodeCursor(pagination.CursorPayload{TS: asc[0].Timestamp, MessageID: asc[0].ID})
				fmt.Fprintf(out, "next cursor: %s\n", next)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "page size")
	cmd.Flags().StringVar(&cursor, "cursor", "", "print the page older than this cursor")
	return cmd
}

func newConversationsCmd(o *options) *cobra.Command {
	var (
		limit  int
		cursor string
	)
	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"convs"},
		Short:   "List your conversations, most recently active first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			identity, err := o.requireIdentity()
			if err != nil {
				return err
			}
			limit = pagination.ClampLimit(limit, pagination.ConversationDefaultLimit)
			cp, err := pagination.DecodeCursor(cursor)
			if err != nil {
				return err
			}

			s, err := o.open()
			if err != nil {
				return err
			}
			defer s.Close()

			convs, lastKey, hasMore, err := s.store.ListConversations(identity, cp.IndexKey, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, c := range convs {
				last := c.LastMessage
				if last == "" {
					last = "(no messages)"
				}
				fmt.Fprintf(out, "%-12s %-14s %s\n", c.Other(identity), humanize.Time(time.Unix(0, c.UpdatedAt)), last)
			}
			if hasMore {
				fmt.Fprintf(out, "next cursor: %s\n", pagination.EncodeCursor(pagination.CursorPayload{IndexKey: lastKey}))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "page size")
	cmd.Flags().StringVar(&cursor, "cursor", "", "continue after this cursor")
	return cmd
}

func pageSizeOr(n, def int) int {
	if n > 0 {
		return n
	}
	return def
}
