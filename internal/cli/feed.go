package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/lendhand/lendhand/internal/geo"
	"github.com/lendhand/lendhand/internal/livequery"
	"github.com/lendhand/lendhand/internal/request"
	"github.com/lendhand/lendhand/internal/store"
)

// FeedOptions holds flags for the feed command.
type FeedOptions struct {
	*RootOptions
	Watch bool
}

// NewFeedCommand creates the feed command.
func NewFeedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FeedOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Show open requests",
		Long: `Show every open request, newest first.

With --watch the feed stays live: the current list first, then one line per
change as requests are posted, accepted, or deleted. Stop with Ctrl-C.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFeed(opts, cmd)
		},
	}

	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "stream live changes")
	return cmd
}

func runFeed(opts *FeedOptions, cmd *cobra.Command) error {
	f := formatter(opts.RootOptions, cmd)
	ctx := cmd.Context()

	a, err := newApp(opts.RootOptions)
	if err != nil {
		return f.Fail(err)
	}
	defer a.Close()

	viewer := viewerPoint(ctx, a, opts.RootOptions)

	if !opts.Watch {
		reqs, err := a.store.ListRequests(ctx, store.RequestFilter{Status: store.StatusOpen})
		if err != nil {
			return f.Fail(err)
		}
		if opts.Format == "json" {
			return f.Success(reqs)
		}
		WriteRequestList(f.Writer, reqs, viewer)
		return nil
	}

	sub := livequery.Subscribe(ctx, a.store, request.OpenFeed(a.store))
	defer sub.Unsubscribe()
	return streamRequests(ctx, f, sub, viewer)
}

// viewerPoint is the configured user's home position, when one is set. The
// feed works anonymously; the annotation is just dropped.
func viewerPoint(ctx context.Context, a *app, opts *RootOptions) *geo.Point {
	if opts.Config.User.ID == "" {
		return nil
	}
	u, err := a.dir.CurrentUser(ctx, opts.Config.User.ID)
	if err != nil {
		return nil
	}
	return u.Location
}

// streamRequests renders a request subscription until the context ends or
// the stream closes.
func streamRequests(ctx context.Context, f *OutputFormatter, sub *livequery.Subscription[store.Request], viewer *geo.Point) error {
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return nil
			}
			if err := renderRequestEvent(f, ev, viewer); err != nil {
				return err
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func renderRequestEvent(f *OutputFormatter, ev livequery.Event[store.Request], viewer *geo.Point) error {
	if ev.Kind == livequery.KindError {
		return f.Fail(ev.Err)
	}
	if f.Format == "json" {
		return f.Success(struct {
			Event    string          `json:"event"`
			Request  *store.Request  `json:"request,omitempty"`
			Requests []store.Request `json:"requests,omitempty"`
		}{
			Event:    ev.Kind.String(),
			Request:  eventRecord(ev),
			Requests: ev.Records,
		})
	}

	switch ev.Kind {
	case livequery.KindSnapshot:
		WriteRequestList(f.Writer, ev.Records, viewer)
	case livequery.KindAdded:
		f.println(eventTag(time.Now(), "+ ") + RequestLine(ev.Record, viewer))
	case livequery.KindModified:
		f.println(eventTag(time.Now(), "~ ") + RequestLine(ev.Record, viewer))
	case livequery.KindRemoved:
		f.println(eventTag(time.Now(), "- ") + RequestLine(ev.Record, viewer))
	}
	return nil
}

func eventRecord(ev livequery.Event[store.Request]) *store.Request {
	if ev.Kind == livequery.KindSnapshot {
		return nil
	}
	r := ev.Record
	return &r
}
