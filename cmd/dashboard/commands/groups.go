package commands

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/blikh/co2-dashboard/internal/backend"
	"github.com/blikh/co2-dashboard/internal/group"
	"github.com/blikh/co2-dashboard/internal/groupcard"
	"github.com/blikh/co2-dashboard/internal/session"
)

func Groups(args []string, logger *slog.Logger) {
	fs, configPath := sessionFlags("groups")
	expand := fs.Bool("expand", false, "show the per-media breakdown")
	favourite := fs.String("favourite", "", "toggle this group id as favourite before listing")
	fs.Parse(args)

	ctx, cancel := commandContext()
	defer cancel()

	l, err := openLocal(ctx, *configPath, logger)
	if err != nil {
		logger.Error("failed to open session", "err", err)
		os.Exit(1)
	}
	defer l.Close()

	st := l.sess.State()
	if st.Status != session.Authenticated {
		fmt.Fprintln(os.Stderr, "error: not logged in (run 'dashboard login -token <jwt>')")
		os.Exit(1)
	}

	groups, err := l.client.ListGroups(ctx, st.Token)
	if errors.Is(err, backend.ErrUnauthorized) {
		l.sess.Dispatch(session.Logout{})
		fmt.Fprintln(os.Stderr, "error: session expired, log in again")
		os.Exit(1)
	}
	if err != nil {
		logger.Error("failed to list groups", "err", err)
		os.Exit(1)
	}

	cards := buildCards(l.db, st, groups, *favourite, *expand, logger)
	renderCards(os.Stdout, cards)
}

// favouriteStore is the part of the dashboard database the groups command
// uses.
type favouriteStore interface {
	ListFavourites(userID string) (map[string]struct{}, error)
	IsFavourite(userID, groupID string) (bool, error)
	ToggleFavourite(userID, groupID string) (bool, error)
}

// buildCards turns groups into cards for the session user. When toggleID
// names one of the groups its favourite flag is flipped first and the card
// is rebuilt from the stored flag.
func buildCards(db favouriteStore, st session.State, groups []group.Group, toggleID string, expand bool, logger *slog.Logger) []*groupcard.Card {
	owner := st.OwnerKey()
	toggle := func(groupID string) {
		fav, err := db.ToggleFavourite(owner, groupID)
		if err != nil {
			logger.Error("failed to toggle favourite", "err", err)
			return
		}
		logger.Info("favourite updated", "group_id", groupID, "favourite", fav)
	}

	favs, err := db.ListFavourites(owner)
	if err != nil {
		logger.Warn("failed to list favourites", "err", err)
	}
	cards := make([]*groupcard.Card, 0, len(groups))
	for _, g := range groups {
		_, fav := favs[g.GroupID]
		card := groupcard.New(g, fav, toggle, st.UserName, nil)
		if g.GroupID == toggleID {
			card.ToggleFavourite()
			stored, err := db.IsFavourite(owner, g.GroupID)
			if err != nil {
				// Fall back to the listed flag.
				logger.Error("failed to read favourite", "err", err, "group_id", g.GroupID)
				stored = fav
			}
			card = groupcard.New(g, stored, toggle, st.UserName, nil)
		}
		if expand {
			card.ToggleExpand()
		}
		cards = append(cards, card)
	}
	return cards
}

func renderCards(w io.Writer, cards []*groupcard.Card) {
	if len(cards) == 0 {
		fmt.Fprintln(w, "No groups.")
		return
	}
	for i, c := range cards {
		if i > 0 {
			fmt.Fprintln(w)
		}
		g := c.Group()
		star := " "
		if c.IsFavourite() {
			star = "*"
		}
		fmt.Fprintf(w, "%s %s (%s)\n", star, g.GroupName, g.GroupID)

		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintf(tw, "  Participants\t%d\n", g.ParticipantsCount)
		fmt.Fprintf(tw, "  Messages\t%d\n", g.TotalMessages)
		fmt.Fprintf(tw, "  Size (KB)\t%.1f\n", g.TotalSizeKB)
		fmt.Fprintf(tw, "  CO2 1byte (g)\t%.3f\n", g.TotalEmissionsOneByte)
		fmt.Fprintf(tw, "  CO2 SWD (g)\t%.3f\n", g.TotalEmissionsSWD)
		fmt.Fprintf(tw, "  Limit\t%s\n", c.LimitToShow())
		fmt.Fprintf(tw, "  Last report\t%s\n", g.LastReportTimestamp.Display())
		if c.IsAdmin() {
			fmt.Fprintf(tw, "  Manage limit\t%s\n", groupcard.LimitPath(g.GroupID, g.GroupName, g.GroupLimits))
		}
		fmt.Fprintf(tw, "  Donate\t%s\n", groupcard.DonatePath(g.GroupID, g.GroupName))
		tw.Flush()

		if rows := c.Breakdown(); len(rows) > 0 {
			tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "  TYPE\tMESSAGES\tSIZE KB\t1BYTE G\tSWD G")
			for _, r := range rows {
				fmt.Fprintf(tw, "  %s\t%d\t%.1f\t%.3f\t%.3f\n", r.Media, r.Messages, r.SizeKB, r.EmissionsOneByte, r.EmissionsSWD)
			}
			tw.Flush()
		}
	}
}
