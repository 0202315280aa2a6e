package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

// Theme holds the color scheme for the chat display.
type Theme struct {
	Prompt  lipgloss.Color
	Reply   lipgloss.Color
	Nudge   lipgloss.Color
	Warning lipgloss.Color
	Hint    lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Prompt:  lipgloss.Color("#5FAFD7"), // light blue
	Reply:   lipgloss.Color("#00D787"), // green
	Nudge:   lipgloss.Color("#D7AF5F"), // amber
	Warning: lipgloss.Color("#FF005F"), // red
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
}

func (t Theme) promptStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Prompt).Bold(true)
}

func (t Theme) replyStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Reply)
}

func (t Theme) warningStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Warning)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive conversation",
	Long: `Start an interactive conversation with Luma.

A recent session is resumed automatically; otherwise a new one starts.

Commands inside the chat:
  /new    start a fresh session
  /quit   exit`,
	RunE: runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	orch, runner, err := buildOrchestrator()
	if err != nil {
		return err
	}
	defer runner.Wait()

	theme := defaultTheme
	ctx := context.Background()

	fmt.Println(theme.hintStyle().Render("Luma is listening. /new starts over, /quit exits."))

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 64*1024)

	for {
		fmt.Print(theme.promptStyle().Render("you> "))
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch line {
		case "/quit", "/exit":
			fmt.Println(theme.hintStyle().Render("Take care."))
			return nil
		case "/new":
			if err := orch.StartNewSession(ctx); err != nil {
				fmt.Println(theme.warningStyle().Render(fmt.Sprintf("could not start session: %v", err)))
				continue
			}
			fmt.Println(theme.hintStyle().Render("Fresh session started."))
			continue
		}

		reply, err := orch.SendMessage(ctx, line)
		if err != nil {
			fmt.Println(theme.warningStyle().Render(fmt.Sprintf("error: %v", err)))
			continue
		}

		fmt.Println(theme.replyStyle().Render("luma> " + reply.Text))
		if verbose {
			fmt.Println(theme.hintStyle().Render(
				fmt.Sprintf("[%s via %s, degraded=%v]", reply.Tier, reply.Backend, reply.Degraded)))
		}
	}

	return scanner.Err()
}
