package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/bassamadnan/mailsort/inbox"
)

var (
	AppStyle = lipgloss.NewStyle().Padding(0, 0)

	EmailListItemStyle         = lipgloss.NewStyle().PaddingLeft(1).PaddingRight(1)
	SelectedEmailListItemStyle = EmailListItemStyle

	NormalBoxCharStyle       = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "245", Dark: "238"})
	NormalSubjectStyle       = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "0", Dark: "15"})
	NormalSecondaryTextStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "240", Dark: "244"})

	SelectedBoxCharStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("99"))
	SelectedSubjectStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("231")).Bold(true)
	SelectedSecondaryTextStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("189"))

	UnreadMarkerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)

	EmailListStyle      = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, true, false, false).BorderForeground(lipgloss.Color("240")).PaddingRight(1)
	EmailListTitleStyle = lipgloss.NewStyle().Bold(true).MarginBottom(1).MarginLeft(1).Foreground(lipgloss.Color("63"))

	// Category pills
	PillStyle         = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("250")).Background(lipgloss.Color("236"))
	SelectedPillStyle = lipgloss.NewStyle().Padding(0, 1).Bold(true).Foreground(lipgloss.Color("255"))
	PillBarStyle      = lipgloss.NewStyle().PaddingLeft(1)

	ContentBoxStyle = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), true).Padding(0, 1)
	TitleStyle      = lipgloss.NewStyle().Bold(true).Background(lipgloss.Color("63")).Foreground(lipgloss.Color("255")).Padding(0, 1)
	HeaderKeyStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	HeaderValStyle  = lipgloss.NewStyle()
	BodyStyle       = lipgloss.NewStyle().MarginTop(1)
	DimStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	ErrorTextStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)

	StatusBarSuccessStyle = lipgloss.NewStyle().Background(lipgloss.Color("28")).Foreground(lipgloss.Color("255")).Padding(0, 1)
	StatusBarNormalStyle  = lipgloss.NewStyle().Background(lipgloss.Color("235")).Foreground(lipgloss.Color("250")).Padding(0, 1)
	StatusBarErrorStyle   = lipgloss.NewStyle().Background(lipgloss.Color("196")).Foreground(lipgloss.Color("255")).Padding(0, 1)
)

// categoryBadge renders the icon and label in the category color.
func categoryBadge(c inbox.Category) string {
	st := c.Style()
	return lipgloss.NewStyle().Foreground(lipgloss.Color(st.Color)).Render(st.Icon + " " + c.String())
}

func pillStyle(c *inbox.Category, selected bool) lipgloss.Style {
	if !selected {
		return PillStyle
	}
	bg := lipgloss.Color("63")
	if c != nil {
		bg = lipgloss.Color(c.Style().Color)
	}
	return SelectedPillStyle.Background(bg)
}

const (
	BoxTopLeft     = "┌"
	BoxTopRight    = "┐"
	BoxBottomLeft  = "└"
	BoxBottomRight = "┘"
	BoxHorizontal  = "─"
	BoxVertical    = "│"
)
