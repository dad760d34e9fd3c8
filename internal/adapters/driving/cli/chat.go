package cli

import (
	"bufio"
	"errors"
	"strings"

	"github.com/spf13/cobra"
)

var chatFlags scopeFlags

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start a conversation about selected filings",
	Long: `Starts an interactive session scoped to the selected filings. Earlier
turns are replayed to the LLM so follow-up questions work. Type /quit or
press Ctrl-D to leave.

Example:
  tenk chat --ticker AAPL --ticker MSFT --filing "2023 Q4"`,
	RunE: runChat,
}

func init() {
	chatFlags.register(chatCmd)
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
	if chatService == nil {
		return errors.New("chat service not configured")
	}

	filter, err := chatFlags.filter()
	if err != nil {
		return err
	}

	session, err := chatService.NewSession(filter)
	if err != nil {
		return err
	}

	st := outputStyles(cmd)
	ctx := commandContext(cmd)
	cmd.Println(st.Muted("Chatting about " + describeFilter(filter) + ". Type /quit to leave."))

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		cmd.Print(st.Label("> "))
		if !scanner.Scan() {
			cmd.Println()
			return scanner.Err()
		}

		question := strings.TrimSpace(scanner.Text())
		switch question {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		}

		answer, err := chatService.Ask(ctx, session, question, chatFlags.k)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			cmd.Println(st.Error("Error: " + err.Error()))
			continue
		}
		printAnswer(cmd, answer)
		cmd.Println()
	}
}
