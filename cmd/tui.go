// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/nrfnet/pkg/nrfnet"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"
)

// Event log entry
type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for information
}

// sender transmits one message; the TUI calls it off the UI goroutine
type sender func(dest nrfnet.NodeAddress, payload []byte) error

// statsSource returns a statistics snapshot
type statsSource func() nrfnet.Statistics

// TUI model
type model struct {
	connInfo      string
	node          nrfnet.NodeAddress
	send          sender
	statsFn       statsSource
	stats         nrfnet.Statistics
	eventLog      []eventLogEntry
	maxLogEntries int
	input         textinput.Model
	width         int
	height        int
	quitting      bool
}

// Messages
type tickMsg time.Time
type deliveryMsg struct {
	from    nrfnet.NodeAddress
	payload []byte
}
type logMsg struct {
	level   logrus.Level
	message string
}
type sendResultMsg struct {
	dest nrfnet.NodeAddress
	size int
	err  error
}

// formatUptime formats uptime in milliseconds to human-friendly string
func formatUptime(ms uint64) string {
	if ms == 0 {
		return "0 seconds"
	}

	seconds := ms / 1000
	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	seconds %= 60
	minutes %= 60
	hours %= 24

	plural := func(n uint64, unit string) string {
		if n == 1 {
			return "1 " + unit
		}
		return fmt.Sprintf("%d %ss", n, unit)
	}

	parts := []string{}
	if days > 0 {
		parts = append(parts, plural(days, "day"))
	}
	if hours > 0 {
		parts = append(parts, plural(hours, "hour"))
	}
	if minutes > 0 {
		parts = append(parts, plural(minutes, "minute"))
	}
	if seconds > 0 || len(parts) == 0 {
		parts = append(parts, plural(seconds, "second"))
	}

	// Join with commas and "and" for last item
	if len(parts) == 1 {
		return parts[0]
	}
	if len(parts) == 2 {
		return parts[0] + " and " + parts[1]
	}
	last := parts[len(parts)-1]
	rest := strings.Join(parts[:len(parts)-1], ", ")
	return rest + ", and " + last
}

func initialModel(connInfo string, node nrfnet.NodeAddress, send sender, stats statsSource) model {
	input := textinput.New()
	input.Placeholder = "dest message (e.g. 02 hello)"
	input.Prompt = "send> "
	input.CharLimit = 64
	input.Width = 50
	input.Focus()

	return model{
		connInfo:      connInfo,
		node:          node,
		send:          send,
		statsFn:       stats,
		stats:         stats(),
		eventLog:      make([]eventLogEntry, 0),
		maxLogEntries: 100,
		input:         input,
		width:         80,
		height:        24,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		textinput.Blink,
		tea.EnterAltScreen,
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// parseSendLine splits "dest message" typed into the input.
func parseSendLine(line string) (nrfnet.NodeAddress, []byte, error) {
	destText, message, _ := strings.Cut(strings.TrimSpace(line), " ")
	dest, err := nrfnet.ParseNodeAddress(destText)
	if err != nil {
		return 0, nil, err
	}
	payload := []byte(strings.TrimSpace(message))
	if len(payload) > nrfnet.MaxPayloadSize {
		return 0, nil, fmt.Errorf("%w: %d bytes", nrfnet.ErrPayloadTooLarge, len(payload))
	}
	return dest, payload, nil
}

func (m model) sendCmd(dest nrfnet.NodeAddress, payload []byte) tea.Cmd {
	send := m.send
	return func() tea.Msg {
		return sendResultMsg{dest: dest, size: len(payload), err: send(dest, payload)}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "enter":
			line := m.input.Value()
			m.input.SetValue("")
			if strings.TrimSpace(line) == "" {
				return m, nil
			}
			dest, payload, err := parseSendLine(line)
			if err != nil {
				m.addLogEntry(fmt.Sprintf("Invalid input: %v", err), true)
				return m, nil
			}
			return m, m.sendCmd(dest, payload)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.stats = m.statsFn()
		return m, tickCmd()

	case deliveryMsg:
		text := fmt.Sprintf("% X", msg.payload)
		if nrfnet.IsPrintable(msg.payload) {
			text = fmt.Sprintf("%q", msg.payload)
		}
		m.addLogEntry(fmt.Sprintf("DATA from %s: %s", msg.from, text), false)
		m.stats = m.statsFn()

	case logMsg:
		m.addLogEntry(msg.message, msg.level <= logrus.WarnLevel)

	case sendResultMsg:
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("Send to %s failed: %v", msg.dest, msg.err), true)
		} else {
			m.addLogEntry(fmt.Sprintf("Sent %d bytes to %s", msg.size, msg.dest), false)
		}
		m.stats = m.statsFn()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *model) addLogEntry(message string, isError bool) {
	entry := eventLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.eventLog = append(m.eventLog, entry)

	// Keep only last N entries
	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

func (m model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	statsLabelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	infoStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	var s strings.Builder
	s.WriteString(titleStyle.Render(fmt.Sprintf("NRFNET - NODE %s", m.node)))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Press Esc to quit", m.connInfo)))
	s.WriteString("\n\n")

	// Statistics
	st := m.stats
	value := func(n uint64) string { return statsValueStyle.Render(fmt.Sprintf("%d", n)) }
	problem := func(n uint64) string {
		if n > 0 {
			return errorStyle.Render(fmt.Sprintf("%d", n))
		}
		return statsValueStyle.Render("0")
	}

	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("RX:"), value(st.RxPackets),
		statsLabelStyle.Render("TX:"), value(st.TxPackets),
		statsLabelStyle.Render("Delivered:"), value(st.Delivered),
		statsLabelStyle.Render("Forwarded:"), value(st.Forwarded),
	))
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("ACKs sent:"), value(st.AcksSent),
		statsLabelStyle.Render("ACKs received:"), value(st.AcksReceived),
		statsLabelStyle.Render("Reserved:"), value(st.Reserved),
	))
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s\n",
		statsLabelStyle.Render("TX failures:"), problem(st.TxFailures),
		statsLabelStyle.Render("Decode errors:"), problem(st.DecodeErrors),
	))
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s",
		statsLabelStyle.Render("Packet Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f pkts/s", st.PacketRate)),
		statsLabelStyle.Render("Error Rate:"), func() string {
			if st.ErrorRate > 0 {
				return errorStyle.Render(fmt.Sprintf("%.1f err/s", st.ErrorRate))
			}
			return statsValueStyle.Render(fmt.Sprintf("%.1f err/s", st.ErrorRate))
		}(),
		statsLabelStyle.Render("Up:"), statsValueStyle.Render(formatUptime(uint64(time.Since(st.StartTime).Milliseconds()))),
	))

	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// Event log
	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := m.height - 16 // header, stats and input
	if logHeight < 5 {
		logHeight = 5
	}

	logContent := strings.Builder{}
	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.eventLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			timestamp := entry.timestamp.Format("15:04:05.000")
			style, mark := infoStyle, "ℹ "
			if entry.isError {
				style, mark = errorStyle, "✗ "
			}
			logContent.WriteString(fmt.Sprintf("%s %s\n",
				headerStyle.Render(timestamp),
				style.Render(mark+entry.message),
			))
		}
	}

	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))
	s.WriteString("\n\n")
	s.WriteString(m.input.View())

	return s.String()
}
