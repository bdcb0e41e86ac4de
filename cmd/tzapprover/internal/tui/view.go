// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/aplane-algo/tzsigner/internal/approval"
	"github.com/aplane-algo/tzsigner/internal/protocol"
	"github.com/aplane-algo/tzsigner/internal/util"
)

// Palette (256-colour codes)
const (
	colPink   = lipgloss.Color("205")
	colGreen  = lipgloss.Color("42")
	colRed    = lipgloss.Color("196")
	colAmber  = lipgloss.Color("214")
	colMuted  = lipgloss.Color("241")
	colBorder = lipgloss.Color("240")
)

var (
	title  = lipgloss.NewStyle().Bold(true).Foreground(colPink)
	muted  = lipgloss.NewStyle().Foreground(colMuted)
	online = lipgloss.NewStyle().Foreground(colGreen)
	alert  = lipgloss.NewStyle().Bold(true).Foreground(colRed)
	baking = lipgloss.NewStyle().Bold(true).Foreground(colAmber)
	label  = lipgloss.NewStyle().Width(9)

	button   = lipgloss.NewStyle().Padding(0, 2).Border(lipgloss.RoundedBorder())
	focused  = button.BorderForeground(colGreen).Foreground(colGreen)
	blurred  = button.BorderForeground(colMuted).Foreground(colMuted)
	card     = lipgloss.NewStyle().Border(lipgloss.DoubleBorder()).BorderForeground(colAmber).Padding(1, 2)
	detailBx = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colBorder).Padding(0, 1)
)

// View renders the model.
func (m Model) View() string {
	if m.quitting {
		if m.lastError == "" {
			return ""
		}
		return alert.Render(m.lastError) + "\n"
	}

	body := muted.Render("Waiting for signing requests...")
	if req := m.current(); req != nil {
		body = m.requestCard(req)
	}

	footer := ""
	switch {
	case m.lastError != "":
		footer = alert.Render("Error: " + m.lastError)
	case m.lastInfo != "":
		footer = muted.Render(m.lastInfo)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.header(),
		"",
		body,
		"",
		footer,
		muted.Render(helpLine(keys.idleKeys())),
	)
}

func (m Model) header() string {
	signer := fmt.Sprintf("  %s  signer %s  curve %s  session %s",
		m.ipcPath, m.status.Version, m.status.Curve, m.status.State)
	counts := fmt.Sprintf("queued %d  approved %d  rejected %d", len(m.queue), m.approved, m.rejected)
	return lipgloss.JoinVertical(lipgloss.Left,
		title.Render("tzapprover"),
		"",
		online.Render("● connected")+muted.Render(signer),
		muted.Render(counts),
	)
}

func (m Model) requestCard(req *protocol.SignRequestMessage) string {
	var rows []string
	row := func(name, value string) {
		rows = append(rows, label.Render(name+":")+value)
	}

	row("Address", util.FormatAddressWithColor(req.Address))
	row("Path", fmt.Sprintf("%s (%s)", req.Path, req.Curve))
	switch approval.Kind(req.Kind) {
	case approval.KindOperations:
		row("Fees", fmt.Sprintf("%s over %d operation(s)", approval.FormatTez(req.TotalFee), req.Operations))
	case approval.KindBlock, approval.KindEndorsement:
		row("Level", baking.Render(fmt.Sprint(req.Level)))
	}
	if req.Deadline > 0 {
		row("Expires", time.Unix(req.Deadline, 0).Format("15:04:05"))
	}

	details := "Details (↑/↓ to scroll):\n" + detailBx.Render(m.viewport.View())
	if total := m.viewport.TotalLineCount(); total > m.viewport.Height {
		details += fmt.Sprintf("\n[%.0f%% - %d lines]", m.viewport.ScrollPercent()*100, total)
	}

	yes, no := focused, blurred
	if m.focus == 1 {
		yes, no = blurred, focused
	}
	buttons := lipgloss.JoinHorizontal(lipgloss.Center,
		yes.Render(marker(m.focus == 0)+"APPROVE"), "  ", no.Render(marker(m.focus == 1)+"REJECT"))

	content := lipgloss.JoinVertical(lipgloss.Left,
		title.Render(requestTitle(req)),
		"",
		strings.Join(rows, "\n"),
		"",
		details,
		"",
		buttons,
		"",
		muted.Render(helpLine(keys.requestKeys())),
	)
	return card.Width(min(100, max(m.width-4, 60))).Render(content)
}

func marker(on bool) string {
	if on {
		return "> "
	}
	return "  "
}

func requestTitle(req *protocol.SignRequestMessage) string {
	switch approval.Kind(req.Kind) {
	case approval.KindPublicKey:
		return "Public Key Request"
	case approval.KindBlock:
		return "Block Signing Request"
	case approval.KindEndorsement:
		return "Endorsement Request"
	default:
		return "Signing Request"
	}
}
