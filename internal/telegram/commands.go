package telegram

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Manjussha/inkd/internal/credit"
	"github.com/Manjussha/inkd/internal/usage"
)

// Reporter produces the usage report for /usage.
type Reporter interface {
	Report(ctx context.Context, period, userID string) (*usage.Report, error)
}

// GrantHook is told about every grant made from Telegram.
type GrantHook func(userID string, balance int64)

// CommandHandler handles Telegram bot commands.
type CommandHandler struct {
	ledger   credit.Ledger
	reporter Reporter
	onGrant  GrantHook
	bot      *Bot
}

// NewCommandHandler creates a CommandHandler. onGrant may be nil.
func NewCommandHandler(ledger credit.Ledger, reporter Reporter, onGrant GrantHook) *CommandHandler {
	return &CommandHandler{ledger: ledger, reporter: reporter, onGrant: onGrant}
}

// Handle dispatches incoming messages to the correct command handler.
func (h *CommandHandler) Handle(msg *tgbotapi.Message) {
	if msg == nil || !msg.IsCommand() {
		return
	}
	reply := h.Execute(context.Background(), msg.Command(), msg.CommandArguments())
	h.bot.reply(msg.Chat.ID, reply)
}

// Execute runs one command and returns the reply text.
func (h *CommandHandler) Execute(ctx context.Context, command, args string) string {
	fields := strings.Fields(args)
	switch command {
	case "balance":
		return h.balance(ctx, fields)
	case "grant":
		return h.grant(ctx, fields)
	case "usage":
		return h.usage(ctx, fields)
	case "help", "start":
		return helpText
	default:
		return "Unknown command. Use /help for a list of commands."
	}
}

// HandleCallback processes inline keyboard button presses.
// Data has the form grant:<user>:<words>.
func (h *CommandHandler) HandleCallback(data string) string {
	// The user id may itself contain ':', so the amount is split off the end.
	rest, found := strings.CutPrefix(data, "grant:")
	i := strings.LastIndex(rest, ":")
	if !found || i <= 0 {
		log.Printf("telegram: unknown callback %q", data)
		return ""
	}
	return h.grant(context.Background(), []string{rest[:i], rest[i+1:]})
}

func (h *CommandHandler) balance(ctx context.Context, args []string) string {
	if len(args) != 1 {
		return "Usage: /balance <user_id>"
	}
	bal, err := h.ledger.Balance(ctx, args[0])
	if errors.Is(err, credit.ErrAccountNotFound) {
		return fmt.Sprintf("No account for `%s`.", args[0])
	}
	if err != nil {
		return "Error reading balance."
	}
	return fmt.Sprintf("💳 `%s`: %d words", args[0], bal)
}

func (h *CommandHandler) grant(ctx context.Context, args []string) string {
	if len(args) != 2 {
		return "Usage: /grant <user_id> <words>"
	}
	words, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || words <= 0 {
		return "Words must be a positive number."
	}
	bal, err := h.ledger.Credit(ctx, args[0], words, credit.ReasonGrant)
	if err != nil {
		log.Printf("telegram: grant %d to %s: %v", words, args[0], err)
		return "Error granting credit."
	}
	if h.onGrant != nil {
		h.onGrant(args[0], bal)
	}
	return fmt.Sprintf("✅ Granted %d words to `%s`. Balance: %d", words, args[0], bal)
}

func (h *CommandHandler) usage(ctx context.Context, args []string) string {
	period := ""
	if len(args) > 0 {
		period = args[0]
	}
	rep, err := h.reporter.Report(ctx, period, "")
	if err != nil {
		return "Error fetching usage."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "*Usage (%s since %s)*\n\n", rep.Period, rep.Since)
	if len(rep.Rows) == 0 {
		sb.WriteString("_No requests._")
	}
	for _, r := range rep.Rows {
		fmt.Fprintf(&sb, "%s `%s`: %d req, %d words", r.Date, r.UserID, r.Requests, r.Words)
		if r.Failures > 0 {
			fmt.Fprintf(&sb, ", %d failed", r.Failures)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

const helpText = `*inkd Commands*

/balance <user> — Word credit balance
/grant <user> <words> — Add word credit
/usage [daily|weekly|monthly] — Usage report
/help — This help`
