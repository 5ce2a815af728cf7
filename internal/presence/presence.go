// Package presence projects the roster into the online indicator views.
package presence

import (
	"fmt"

	"github.com/MarcoPoloResearchLab/collab/internal/team"
)

// DefaultMaxVisible is the avatar stack size of the compact view.
const DefaultMaxVisible = 3

// Options selects the view.
type Options struct {
	Compact    bool
	MaxVisible int
}

// Entry is one member as the widget renders it.
type Entry struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Initials    string      `json:"initials"`
	AvatarURL   string      `json:"avatar,omitempty"`
	Role        team.Role   `json:"role"`
	Status      team.Status `json:"status"`
	StatusLabel string      `json:"statusLabel"`
	Indicator   string      `json:"indicator"`
}

// View is the projected widget state.
type View struct {
	OnlineCount   int     `json:"onlineCount"`
	TotalCount    int     `json:"totalCount"`
	Compact       bool    `json:"compact"`
	Members       []Entry `json:"members"`
	Overflow      int     `json:"overflow"`
	OverflowLabel string  `json:"overflowLabel,omitempty"`
}

// Project builds the view from the roster. The compact view stacks at most
// MaxVisible online members and counts the rest as overflow; the full view lists
// every member in roster order.
func Project(members []team.Member, opts Options) View {
	online := make([]team.Member, 0, len(members))
	for _, member := range members {
		if member.Status == team.StatusOnline {
			online = append(online, member)
		}
	}

	view := View{
		OnlineCount: len(online),
		TotalCount:  len(members),
		Compact:     opts.Compact,
	}

	if !opts.Compact {
		view.Members = entries(members)
		return view
	}

	maxVisible := opts.MaxVisible
	if maxVisible <= 0 {
		maxVisible = DefaultMaxVisible
	}
	visible := online
	if len(visible) > maxVisible {
		visible = visible[:maxVisible]
		view.Overflow = len(online) - maxVisible
		view.OverflowLabel = fmt.Sprintf("+%d", view.Overflow)
	}
	view.Members = entries(visible)
	return view
}

func entries(members []team.Member) []Entry {
	result := make([]Entry, 0, len(members))
	for _, member := range members {
		result = append(result, Entry{
			ID:          member.ID,
			Name:        member.Name,
			Initials:    member.Initials(),
			AvatarURL:   member.AvatarURL,
			Role:        member.Role,
			Status:      member.Status,
			StatusLabel: StatusLabel(member.Status),
			Indicator:   Indicator(member.Status),
		})
	}
	return result
}

// StatusLabel is the human label of a status.
func StatusLabel(status team.Status) string {
	switch status {
	case team.StatusOnline:
		return "Online"
	case team.StatusAway:
		return "Away"
	case team.StatusBusy:
		return "Busy"
	default:
		return "Offline"
	}
}

// Indicator names the colour of the status dot.
func Indicator(status team.Status) string {
	switch status {
	case team.StatusOnline:
		return "green"
	case team.StatusAway:
		return "yellow"
	case team.StatusBusy:
		return "red"
	default:
		return "gray"
	}
}
