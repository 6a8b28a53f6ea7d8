// Package tui implements the Bubble Tea chat view for blindchat.
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/hay-kot/blindchat/internal/styles"
)

const iconDot = "•"

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(styles.ColorBlue).
			PaddingLeft(1)

	identityStyle = lipgloss.NewStyle().
			Foreground(styles.ColorGreen)

	signedOutStyle = lipgloss.NewStyle().
			Foreground(styles.ColorYellow)

	// Persistent subscription failure.
	bannerStyle = lipgloss.NewStyle().
			Foreground(styles.ColorBgDark).
			Background(styles.ColorRed).
			Bold(true).
			Padding(0, 1)

	// Transient send/delete failure.
	noticeStyle = lipgloss.NewStyle().
			Foreground(styles.ColorYellow).
			PaddingLeft(1)

	typingStyle = lipgloss.NewStyle().
			Foreground(styles.ColorGray).
			Italic(true).
			PaddingLeft(1)

	authorStyle = lipgloss.NewStyle().
			Foreground(styles.ColorPurple).
			Bold(true)

	mineAuthorStyle = lipgloss.NewStyle().
			Foreground(styles.ColorGreen).
			Bold(true)

	timeStyle = lipgloss.NewStyle().
			Foreground(styles.ColorGray)

	// Messages from others sit on the left, own messages on the right.
	theirsStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(styles.ColorBgHigh).
			Padding(0, 1)

	mineStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(styles.ColorGreen).
			Padding(0, 1)

	selectedStyle = mineStyle.
			BorderForeground(styles.ColorBlue).
			BorderStyle(lipgloss.ThickBorder())

	emptyStyle = lipgloss.NewStyle().
			Foreground(styles.ColorGray).
			Italic(true).
			PaddingLeft(2)

	inputStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(styles.ColorBlue).
			Padding(0, 1)

	inputDisabledStyle = inputStyle.
				BorderForeground(styles.ColorBgHigh)

	sendHintStyle = lipgloss.NewStyle().
			Foreground(styles.ColorBlue).
			Bold(true)

	sendDisabledStyle = lipgloss.NewStyle().
				Foreground(styles.ColorGray)

	spinnerStyle = lipgloss.NewStyle().
			Foreground(styles.ColorBlue)
)

var (
	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(styles.ColorBlue).
			Padding(1, 2)

	modalTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(styles.ColorWhite)

	modalHelpStyle = lipgloss.NewStyle().
			Foreground(styles.ColorGray).
			MarginTop(1)

	modalButtonStyle = lipgloss.NewStyle().
				Padding(0, 1).
				Background(styles.ColorBgHigh).
				Foreground(lipgloss.Color("#a9b1d6"))

	modalButtonSelectedStyle = lipgloss.NewStyle().
					Padding(0, 1).
					Background(styles.ColorBlue).
					Foreground(styles.ColorBgDark).
					Bold(true)
)
