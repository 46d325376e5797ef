package cli

import (
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"dmfeed/pkg/feed"
	"dmfeed/pkg/models"
	"dmfeed/pkg/state/shutdown"
)

func newTailCmd(o *options) *cobra.Command {
	var (
		follow bool
		older  int
		wait   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "tail <peer>",
		Short: "Follow the conversation with a peer",
		Long: `tail opens the message feed on the conversation with <peer> and prints
the newest page, then every new, edited or deleted message until
interrupted. --older loads that many pages of history first.`,
		Args: cobra.ExactArgs(1),
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

			ctx, cancel := shutdown.SetupSignalHandler(cmd.Context())
			defer cancel()

			p := newPrinter(cmd.OutOrStdout())
			var once sync.Once
			first := make(chan struct{})
			vp := feed.NewMemoryViewport(1, 1, func(w []models.Message) {
				p.render(w)
				once.Do(func() { close(first) })
			})
			f, err := feed.New(feed.NewStoreSource(s.store), identity, vp,
				feed.WithPageSize(o.cfg.PageSize),
				feed.WithBlobs(s.blobs),
			)
			if err != nil {
				return err
			}
			defer f.Close()
			if err := f.Open(ctx, args[0]); err != nil {
				return err
			}

			select {
			case <-first:
			case <-time.After(wait):
				// an empty conversation never renders
			case <-ctx.Done():
				return nil
			}

			for i := 0; i < older && f.HasMore(); i++ {
				if err := f.LoadOlder(ctx); err != nil {
					return fmt.Errorf("load older: %w", err)
				}
			}
			if !follow {
				return nil
			}
			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", true, "keep printing new messages until interrupted")
	cmd.Flags().IntVar(&older, "older", 0, "pages of history to load before following")
	cmd.Flags().DurationVar(&wait, "wait", 2*time.Second, "how long to wait for the first page")
	return cmd
}
