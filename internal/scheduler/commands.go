package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/phuslu/log"

	"QuoteSentinel/internal/alert"
	"QuoteSentinel/internal/collector"
	"QuoteSentinel/internal/notifier"
	"QuoteSentinel/internal/strategy"
)

const helpText = "Available commands:\n" +
	"• /quotes [symbols...]\n" +
	"• /indicators <symbol>\n" +
	"• /alert <symbol> <above|below> <price> [note]\n" +
	"• /alerts\n" +
	"• /toggle <id>\n" +
	"• /delete <id>\n" +
	"• /refresh"

// HandleCommand processes a chat command and returns a reply. chatID owns
// the alerts created from the chat.
func (s *Scheduler) HandleCommand(ctx context.Context, chatID, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return helpText
	}
	name, args := strings.ToLower(fields[0]), fields[1:]
	if i := strings.IndexByte(name, '@'); i > 0 {
		name = name[:i]
	}

	switch name {
	case "/quotes":
		return s.cmdQuotes(ctx, args)
	case "/indicators":
		return s.cmdIndicators(ctx, args)
	case "/refresh":
		s.RunNow()
		return "Refresh completed."
	case "/alerts":
		if s.Alerts == nil {
			return "Alerts are disabled."
		}
		return notifier.FormatAlertList(s.Alerts.List(chatID))
	case "/alert":
		return s.cmdCreateAlert(ctx, chatID, args)
	case "/toggle":
		return s.cmdToggle(ctx, chatID, args)
	case "/delete":
		return s.cmdDelete(ctx, chatID, args)
	default:
		return helpText
	}
}

func (s *Scheduler) cmdQuotes(ctx context.Context, args []string) string {
	symbols := args
	if len(symbols) == 0 {
		symbols = s.AllSymbols()
	}
	snap, err := s.Quotes.Get(ctx, symbols)
	if err != nil {
		log.Error().Err(err).Strs("symbols", symbols).Msg("quotes command failed")
		return "Quotes unavailable."
	}
	return notifier.FormatQuotes(snap.Quotes, snap.FromCache, snap.FetchedAt)
}

func (s *Scheduler) cmdIndicators(ctx context.Context, args []string) string {
	if len(args) != 1 {
		return "Usage: /indicators <symbol>"
	}
	r := s.Quotes.Indicators(ctx, args[0], collector.DefaultHistoryDays)
	reply := notifier.FormatIndicators(r)
	if a, ok := strategy.Evaluate(r); ok {
		reply += "\n" + notifier.FormatAssessment(a)
	}
	return reply
}

func (s *Scheduler) cmdCreateAlert(ctx context.Context, chatID string, args []string) string {
	if s.Alerts == nil {
		return "Alerts are disabled."
	}
	if len(args) < 3 {
		return "Usage: /alert <symbol> <above|below> <price> [note]"
	}
	threshold, err := strconv.ParseFloat(strings.ReplaceAll(args[2], ",", "."), 64)
	if err != nil {
		return fmt.Sprintf("Invalid price %q.", args[2])
	}
	a, err := s.Alerts.Create(ctx, chatID, args[0], args[1], threshold, strings.Join(args[3:], " "))
	if err != nil {
		if alert.IsValidation(err) {
			return fmt.Sprintf("Invalid alert: %v", err)
		}
		log.Error().Err(err).Str("chat", chatID).Msg("create alert failed")
		return "Could not save the alert, try again later."
	}
	return fmt.Sprintf("Alert created: %s %s %.2f\nid: <code>%s</code>", strings.ToUpper(a.Symbol), a.Condition, a.ThresholdPrice, a.ID)
}

func (s *Scheduler) cmdToggle(ctx context.Context, chatID string, args []string) string {
	if s.Alerts == nil {
		return "Alerts are disabled."
	}
	if len(args) != 1 {
		return "Usage: /toggle <id>"
	}
	if !s.ownedBy(args[0], chatID) {
		return "Alert not found."
	}
	a, err := s.Alerts.ToggleEnabled(ctx, args[0])
	if err != nil {
		log.Error().Err(err).Str("id", args[0]).Msg("toggle alert failed")
		return "Could not update the alert, try again later."
	}
	if a.Enabled {
		return "Alert enabled."
	}
	return "Alert paused."
}

func (s *Scheduler) cmdDelete(ctx context.Context, chatID string, args []string) string {
	if s.Alerts == nil {
		return "Alerts are disabled."
	}
	if len(args) != 1 {
		return "Usage: /delete <id>"
	}
	if !s.ownedBy(args[0], chatID) {
		return "Alert not found."
	}
	if err := s.Alerts.Delete(ctx, args[0]); err != nil {
		log.Error().Err(err).Str("id", args[0]).Msg("delete alert failed")
		return "Could not delete the alert, try again later."
	}
	return "Alert deleted."
}

func (s *Scheduler) ownedBy(id, chatID string) bool {
	a, err := s.Alerts.Get(id)
	return err == nil && a.OwnerID == chatID
}
