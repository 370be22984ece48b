package cli

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect stored conversation sessions",
}

var sessionShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Print a session and its message history",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionShow,
}

var sessionDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a session and its messages",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionDelete,
}

func init() {
	sessionCmd.AddCommand(sessionShowCmd)
	sessionCmd.AddCommand(sessionDeleteCmd)
}

func runSessionShow(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid session id: %w", err)
	}
	ctx := context.Background()

	sess, err := st.GetSession(ctx, id)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	fmt.Printf("Session %s\n", sess.ID)
	fmt.Printf("  Patient:  %s\n", sess.PatientID)
	fmt.Printf("  State:    %s\n", sess.State)
	fmt.Printf("  Created:  %s\n", sess.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Printf("  Updated:  %s\n", sess.UpdatedAt.Format("2006-01-02 15:04:05 MST"))
	if len(sess.SymptomList) > 0 {
		fmt.Printf("  Symptoms: %v\n", sess.SymptomList)
	}
	if len(sess.SeverityList) > 0 {
		fmt.Printf("  Severity: %v\n", sess.SeverityList)
	}
	if sess.OverallFeeling != "" {
		fmt.Printf("  Feeling:  %s\n", sess.OverallFeeling)
	}
	if sess.LongerSummary != "" {
		fmt.Printf("  Summary:  %s\n", sess.LongerSummary)
	}

	msgs, err := st.ListMessages(ctx, id)
	if err != nil {
		return fmt.Errorf("load messages: %w", err)
	}
	fmt.Printf("\n%d messages:\n", len(msgs))
	for _, m := range msgs {
		content := m.Content
		if !verbose && len(content) > 80 {
			content = content[:80] + "..."
		}
		fmt.Printf("  [%d] %-9s %-22s %s\n", m.ID, m.Sender, m.Type, content)
	}
	return nil
}

func runSessionDelete(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid session id: %w", err)
	}

	if err := st.DeleteSession(context.Background(), id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	fmt.Printf("Deleted session %s\n", id)
	return nil
}
