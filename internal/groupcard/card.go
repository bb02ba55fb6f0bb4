// Package groupcard is the view model behind one group's card on the
// dashboard: what it shows, and which intents it raises.
package groupcard

import (
	"net/url"

	"github.com/blikh/co2-dashboard/internal/group"
	"github.com/blikh/co2-dashboard/internal/metrics"
)

// Navigator moves the user to another page.
type Navigator interface {
	Navigate(path string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(path string)

func (f NavigatorFunc) Navigate(path string) { f(path) }

// DonatePath addresses the donation flow for a group.
func DonatePath(groupID, groupName string) string {
	return "/donate/" + url.PathEscape(groupID) + "/" + url.PathEscape(groupName)
}

// LimitPath addresses the limit-management flow for a group. The limit is
// relayed in its raw wire form, so unlimited groups carry "-1".
func LimitPath(groupID, groupName string, limit group.Limit) string {
	return "/limit/" + url.PathEscape(groupID) + "/" + url.PathEscape(groupName) + "/" + url.PathEscape(limit.String())
}

// StatsPath addresses the detailed statistics page for a group.
func StatsPath(groupID string) string {
	return "/stats/" + url.PathEscape(groupID)
}

// Modal is what the donation modal receives.
type Modal struct {
	DonationID string
	IsOpen     bool
}

// Card presents one group. It never changes the group, and the favourite
// flag belongs to the owner: the card only reports toggles through the
// callback and waits to be rebuilt.
type Card struct {
	group           group.Group
	isFavourite     bool
	toggleFavourite func(groupID string)
	userName        string
	nav             Navigator

	expanded         bool
	selectedDonation string
	modalOpen        bool
}

// New builds a card for g. userName is the current session's user name and
// only drives visibility of admin actions.
func New(g group.Group, isFavourite bool, toggleFavourite func(groupID string), userName string, nav Navigator) *Card {
	if toggleFavourite == nil {
		toggleFavourite = func(string) {}
	}
	if nav == nil {
		nav = NavigatorFunc(func(string) {})
	}
	return &Card{
		group:           g,
		isFavourite:     isFavourite,
		toggleFavourite: toggleFavourite,
		userName:        userName,
		nav:             nav,
	}
}

// Group returns the group being shown.
func (c *Card) Group() group.Group { return c.group }

// IsFavourite reports the owner-supplied favourite flag.
func (c *Card) IsFavourite() bool { return c.isFavourite }

// Expanded reports whether the per-media breakdown is shown.
func (c *Card) Expanded() bool { return c.expanded }

// IsAdmin reports whether the session user is a group admin. This decides
// what the card shows; the backend still authorizes every request.
func (c *Card) IsAdmin() bool {
	return c.group.HasAdmin(c.userName)
}

// ShowLimitAction reports whether the "Limit" action is rendered.
func (c *Card) ShowLimitAction() bool {
	return c.IsAdmin()
}

// LimitToShow is the group's limit as displayed.
func (c *Card) LimitToShow() string {
	return c.group.GroupLimits.Display()
}

// Modal returns the donation modal's inputs.
func (c *Card) Modal() Modal {
	return Modal{DonationID: c.selectedDonation, IsOpen: c.modalOpen}
}

// ToggleFavourite asks the owner to flip the favourite flag.
func (c *Card) ToggleFavourite() {
	metrics.CardActions.WithLabelValues("favourite").Inc()
	c.toggleFavourite(c.group.GroupID)
}

// ToggleExpand shows or hides the per-media breakdown.
func (c *Card) ToggleExpand() {
	c.expanded = !c.expanded
}

// SelectDonation opens the donation modal for donationID.
func (c *Card) SelectDonation(donationID string) {
	metrics.CardActions.WithLabelValues("donation").Inc()
	c.selectedDonation = donationID
	c.modalOpen = true
}

// CloseDonation closes the donation modal.
func (c *Card) CloseDonation() {
	c.selectedDonation = ""
	c.modalOpen = false
}

// Donate navigates to the donation flow.
func (c *Card) Donate() {
	metrics.CardActions.WithLabelValues("donate").Inc()
	c.nav.Navigate(DonatePath(c.group.GroupID, c.group.GroupName))
}

// Limit navigates to the limit-management flow. It does nothing and
// returns false when the action is hidden.
func (c *Card) Limit() bool {
	if !c.ShowLimitAction() {
		return false
	}
	metrics.CardActions.WithLabelValues("limit").Inc()
	c.nav.Navigate(LimitPath(c.group.GroupID, c.group.GroupName, c.group.GroupLimits))
	return true
}

// Stats navigates to the group's statistics page.
func (c *Card) Stats() {
	metrics.CardActions.WithLabelValues("stats").Inc()
	c.nav.Navigate(StatsPath(c.group.GroupID))
}

// BreakdownRow is one line of the per-media breakdown.
type BreakdownRow struct {
	Media group.MediaType
	group.MediaStats
}

// Breakdown returns the per-media rows in display order, or nil while the
// card is collapsed. Media types the backend did not report are skipped.
func (c *Card) Breakdown() []BreakdownRow {
	if !c.expanded {
		return nil
	}
	var rows []BreakdownRow
	for _, mt := range group.MediaTypes() {
		ms, ok := c.group.Media[mt]
		if !ok {
			continue
		}
		rows = append(rows, BreakdownRow{Media: mt, MediaStats: ms})
	}
	return rows
}
