// ABOUTME: Bubbletea model for the chat screen: conversation sidebar, message
// ABOUTME: viewport with connection banner, and the compose input.

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/campusmarket/campus-chat/internal/chat"
	"github.com/campusmarket/campus-chat/internal/realtime"
	"github.com/campusmarket/campus-chat/internal/session"
)

var (
	accentColor = lipgloss.Color("#2563EB")
	ownColor    = lipgloss.Color("#10B981")
	mutedColor  = lipgloss.Color("#9CA3AF")
	warnColor   = lipgloss.Color("#F59E0B")
	errColor    = lipgloss.Color("#EF4444")

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(accentColor).Padding(0, 1)

	sidebarStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accentColor).
			Padding(0, 1).
			MarginRight(1)

	selectedItemStyle = lipgloss.NewStyle().
				Foreground(ownColor).
				Bold(true).
				PaddingLeft(1).
				Border(lipgloss.NormalBorder(), false, false, false, true).
				BorderForeground(ownColor)

	unselectedItemStyle = lipgloss.NewStyle().PaddingLeft(2)

	chatWindowStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accentColor)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Border(lipgloss.NormalBorder(), false, false, true, false).
			BorderForeground(mutedColor).
			Padding(0, 1)

	footerStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), true, false, false, false).
			BorderForeground(mutedColor).
			Padding(0, 1)

	mutedStyle     = lipgloss.NewStyle().Foreground(mutedColor)
	ownNameStyle   = lipgloss.NewStyle().Foreground(ownColor).Bold(true)
	otherNameStyle = lipgloss.NewStyle().Foreground(accentColor).Bold(true)
	warnStyle      = lipgloss.NewStyle().Foreground(warnColor).Bold(true)
	errorStyle     = lipgloss.NewStyle().Foreground(errColor).Bold(true)
)

type pane int

const (
	paneSidebar pane = iota
	paneChat
)

// viewUpdateMsg arrives whenever the view model changed underneath us.
type viewUpdateMsg struct {
	update chat.Update
}

type viewDoneMsg struct{}

// directoryRefreshedMsg re-renders the sidebar after a manual refresh. It is
// distinct from viewUpdateMsg so it never re-arms the update waiter.
type directoryRefreshedMsg struct{}

type model struct {
	ctx  context.Context
	view *chat.View
	sess *session.Session

	conversations []chat.Conversation
	selected      int
	focusedPane   pane

	messageInput textinput.Model
	chatViewport viewport.Model
	width        int
	height       int
	sidebarWidth int

	deepLink int64
	ready    bool
}

func newModel(ctx context.Context, view *chat.View, sess *session.Session, deepLink int64) model {
	input := textinput.New()
	input.Placeholder = "Type a message..."
	input.CharLimit = 1000

	return model{
		ctx:          ctx,
		view:         view,
		sess:         sess,
		messageInput: input,
		chatViewport: viewport.New(80, 20),
		sidebarWidth: 30,
		deepLink:     deepLink,
	}
}

// waitForUpdate blocks on the view's update stream and re-arms after each
// delivery, the bubbletea equivalent of a consumer goroutine.
func waitForUpdate(v *chat.View) tea.Cmd {
	return func() tea.Msg {
		select {
		case u, ok := <-v.Updates():
			if !ok {
				return viewDoneMsg{}
			}
			return viewUpdateMsg{update: u}
		case <-v.Done():
			return viewDoneMsg{}
		}
	}
}

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, waitForUpdate(m.view)}
	if m.deepLink != 0 {
		link := m.deepLink
		v, ctx := m.view, m.ctx
		cmds = append(cmds, func() tea.Msg {
			v.Select(ctx, link)
			return nil
		})
	}
	return tea.Batch(cmds...)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "q":
			if m.focusedPane == paneSidebar {
				return m, tea.Quit
			}
		case "esc":
			if m.focusedPane == paneChat {
				m.focusedPane = paneSidebar
				m.messageInput.Blur()
				return m, nil
			}
		}

		switch m.focusedPane {
		case paneSidebar:
			switch msg.String() {
			case "up", "k":
				if m.selected > 0 {
					m.selected--
				}
			case "down", "j":
				if m.selected < len(m.conversations)-1 {
					m.selected++
				}
			case "r":
				dir, ctx := m.view.Directory(), m.ctx
				return m, func() tea.Msg {
					dir.Refresh(ctx)
					return directoryRefreshedMsg{}
				}
			case "enter", "l", "right":
				if len(m.conversations) > 0 {
					m.view.Select(m.ctx, m.conversations[m.selected].ID)
					m.focusedPane = paneChat
					m.messageInput.Focus()
					m.refreshViewport(true)
				}
			}

		case paneChat:
			if msg.String() == "enter" {
				if text := strings.TrimSpace(m.messageInput.Value()); text != "" {
					m.messageInput.SetValue("")
					m.view.Send(text)
				}
				return m, nil
			}
			m.messageInput, _ = m.messageInput.Update(msg)
			m.chatViewport, _ = m.chatViewport.Update(msg)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.sidebarWidth = m.width / 4
		if m.sidebarWidth < 26 {
			m.sidebarWidth = 26
		}

		chatWidth := m.width - m.sidebarWidth - 4
		chatHeight := m.height - 2
		m.chatViewport = viewport.New(chatWidth-4, chatHeight-7)
		m.messageInput.Width = chatWidth - 6
		m.ready = true
		m.syncConversations()
		m.refreshViewport(true)

	case directoryRefreshedMsg:
		m.syncConversations()

	case viewUpdateMsg:
		m.syncConversations()
		m.refreshViewport(msg.update.ScrollToLatest)
		cmds = append(cmds, waitForUpdate(m.view))

	case viewDoneMsg:
		return m, tea.Quit
	}

	return m, tea.Batch(cmds...)
}

// syncConversations snapshots the directory and keeps the cursor on the same
// conversation across refreshes.
func (m *model) syncConversations() {
	prev := int64(0)
	if m.selected < len(m.conversations) {
		prev = m.conversations[m.selected].ID
	}
	m.conversations = m.view.Directory().Conversations()
	m.selected = 0
	for i, c := range m.conversations {
		if c.ID == prev {
			m.selected = i
			break
		}
	}
}

func (m *model) refreshViewport(scroll bool) {
	m.chatViewport.SetContent(m.renderMessages())
	if scroll {
		m.chatViewport.GotoBottom()
	}
}

func (m *model) renderMessages() string {
	msgs := m.view.Messages()
	if len(msgs) == 0 {
		return mutedStyle.Render("No messages yet. Say hello!")
	}

	var b strings.Builder
	for _, msg := range msgs {
		nameStyle := otherNameStyle
		if msg.IsOwn {
			nameStyle = ownNameStyle
		}
		b.WriteString(fmt.Sprintf("%s %s: %s\n",
			mutedStyle.Render(msg.SentAt),
			nameStyle.Render(msg.SenderDisplayName),
			msg.Text,
		))
	}
	return b.String()
}

func (m model) View() string {
	if !m.ready {
		return "Loading..."
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, m.sidebarView(), m.chatView())
}

func (m model) sidebarView() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Chats") + "\n")
	b.WriteString(mutedStyle.Render(m.sess.Username) + "\n\n")

	if len(m.conversations) == 0 {
		b.WriteString(mutedStyle.Render("No conversations yet") + "\n")
	}
	active := m.view.ActiveID()
	for i, conv := range m.conversations {
		label := conv.Counterpart.DisplayName
		if conv.ID == active {
			label = "* " + label
		}
		line := fmt.Sprintf("%s\n%s", label, mutedStyle.Render(conv.Subject.Title))
		if i == m.selected {
			b.WriteString(selectedItemStyle.Render(line) + "\n")
		} else {
			b.WriteString(unselectedItemStyle.Render(line) + "\n")
		}
	}

	b.WriteString("\n" + mutedStyle.Render("j/k move · enter open\nr refresh · q quit"))
	return sidebarStyle.Width(m.sidebarWidth - 2).Height(m.height - 2).Render(b.String())
}

func (m model) chatView() string {
	chatWidth := m.width - m.sidebarWidth - 4
	header := "Select a conversation"
	if conv, ok := m.view.Directory().Get(m.view.ActiveID()); ok {
		header = fmt.Sprintf("%s · %s (%s)",
			conv.Counterpart.DisplayName, conv.Subject.Title, conv.Subject.PriceDisplay)
	}

	parts := []string{headerStyle.Width(chatWidth - 2).Render(header)}
	if banner := m.statusBanner(); banner != "" {
		parts = append(parts, banner)
	}
	parts = append(parts,
		m.chatViewport.View(),
		footerStyle.Width(chatWidth-2).Render(m.messageInput.View()),
	)

	return chatWindowStyle.Width(chatWidth).Height(m.height - 2).
		Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

// statusBanner surfaces loading and connection trouble; a healthy open
// channel renders nothing.
func (m model) statusBanner() string {
	st := m.view.Status()
	switch {
	case st.Fatal:
		return errorStyle.Render(" ✕ " + realtime.CloseReason(st.CloseCode))
	case st.LoadFailed:
		return errorStyle.Render(" ✕ Could not load message history")
	case st.Conn == realtime.StateConnecting && st.Attempt > 0:
		return warnStyle.Render(fmt.Sprintf(" ⟳ Reconnecting (%d/5)...", st.Attempt))
	case st.Conn == realtime.StateConnecting:
		return warnStyle.Render(" ⟳ Connecting...")
	case st.Loading:
		return mutedStyle.Render(" Loading history...")
	case st.Conn == realtime.StateClosed && m.view.ActiveID() != 0:
		return errorStyle.Render(" ✕ Disconnected: " + realtime.CloseReason(st.CloseCode))
	}
	return ""
}
