// Package wizard provides the interactive terminal setup for inkd.
// Invoke with: inkd setup
package wizard

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"golang.org/x/term"

	"github.com/Manjussha/inkd/internal/platform"
)

const totalSteps = 7

// knownModels are offered in the provider step.
var knownModels = []struct {
	ID          string
	Description string
	Recommended bool
}{
	{ID: "gpt-4", Description: "original model", Recommended: true},
	{ID: "gpt-4o", Description: "faster, cheaper"},
	{ID: "gpt-4o-mini", Description: "cheapest"},
}

// Wizard collects settings from a terminal and writes them as a .env file.
type Wizard struct {
	in      *bufio.Reader
	out     io.Writer
	secret  func() (string, error)
	color   bool
	envPath string
	values  map[string]string
}

// New creates a Wizard on stdin/stdout writing envPath.
func New(envPath string) *Wizard {
	fd := int(os.Stdin.Fd())
	return &Wizard{
		in:  bufio.NewReader(os.Stdin),
		out: os.Stdout,
		secret: func() (string, error) {
			b, err := term.ReadPassword(fd)
			return string(b), err
		},
		color:   term.IsTerminal(int(os.Stdout.Fd())),
		envPath: envPath,
		values:  make(map[string]string),
	}
}

// Run executes the interactive setup wizard.
func Run(version string) error {
	return New(".env").Run(version)
}

// Run walks through every step and writes the file on confirmation.
func (w *Wizard) Run(version string) error {
	w.banner(version)

	steps := []struct {
		name string
		fn   func() error
	}{
		{"port", w.stepPort},
		{"admin", w.stepAdmin},
		{"workdir", w.stepWorkDir},
		{"provider", w.stepProvider},
		{"paypal", w.stepPayPal},
		{"telegram", w.stepTelegram},
	}
	for _, s := range steps {
		if err := s.fn(); err != nil {
			return fmt.Errorf("wizard: %s: %w", s.name, err)
		}
	}
	if !w.stepConfirm() {
		w.println("\n  Cancelled — no changes made.")
		return nil
	}
	if err := w.writeEnv(); err != nil {
		return fmt.Errorf("wizard: writeEnv: %w", err)
	}
	w.println("")
	w.println("  " + w.c(color.FgGreen, "✓") + " " + w.envPath + " saved — run inkd to start.")
	w.serviceHint()
	return nil
}

// Values returns the collected settings.
func (w *Wizard) Values() map[string]string { return w.values }

func (w *Wizard) banner(version string) {
	const width = 48
	w.println("")
	w.println(w.c(color.FgCyan, "╔"+strings.Repeat("═", width)+"╗"))
	for _, line := range []string{"", "  inkd " + version, "  Metered text humanizer", ""} {
		pad := width - len([]rune(line))
		if pad < 0 {
			pad = 0
		}
		w.println(w.c(color.FgCyan, "║") + line + strings.Repeat(" ", pad) + w.c(color.FgCyan, "║"))
	}
	w.println(w.c(color.FgCyan, "╚"+strings.Repeat("═", width)+"╝"))
	w.println("")
	w.println("  Press Enter to accept defaults, Ctrl+C to cancel.")
}

func (w *Wizard) header(n int, title string) {
	w.println("")
	w.println(w.c(color.FgYellow, fmt.Sprintf("━━━  %d / %d  —  %s  ━━━━━━━━━━━━━━━━━━━━", n, totalSteps, title)))
	w.println("")
}

// ── Step 1: Port ──────────────────────────────────────────────────────────────

func (w *Wizard) stepPort() error {
	w.header(1, "PORT")
	for {
		port := w.prompt("Listen port [5000]", "5000")
		n, err := strconv.Atoi(strings.TrimSpace(port))
		if err != nil || n < 1 || n > 65535 {
			w.println("  " + w.c(color.FgRed, "✗") + " Invalid port — enter a number 1–65535.")
			continue
		}
		if !portFree(n) {
			w.println("  " + w.c(color.FgYellow, "!") + " Port " + port + " is in use right now; inkd will fail to bind until it is free.")
		}
		w.values["PORT"] = strconv.Itoa(n)
		return nil
	}
}

func portFree(port int) bool {
	l, err := net.Listen("tcp", ":"+strconv.Itoa(port))
	if err != nil {
		return false
	}
	l.Close()
	return true
}

// ── Step 2: Admin ─────────────────────────────────────────────────────────────

func (w *Wizard) stepAdmin() error {
	w.header(2, "ADMIN ACCOUNT")
	w.values["ADMIN_USERNAME"] = w.prompt("Username [admin]", "admin")
	for {
		pass, err := w.readSecret("Password")
		if err != nil {
			return err
		}
		confirm, err := w.readSecret("Confirm ")
		if err != nil {
			return err
		}
		if pass != confirm {
			w.println("  " + w.c(color.FgRed, "✗") + " Passwords do not match — try again.")
			continue
		}
		if pass == "" {
			pass = "admin"
		}
		w.values["ADMIN_PASSWORD"] = pass
		return nil
	}
}

// ── Step 3: Work directory ────────────────────────────────────────────────────

func (w *Wizard) stepWorkDir() error {
	w.header(3, "WORK DIRECTORY")
	def := platform.DefaultWorkDir()
	w.printf("  Recommended for your OS:\n  %s\n\n", w.c(color.FgCyan, def))
	dir := filepath.Clean(w.prompt(fmt.Sprintf("Path [%s]", def), def))
	w.values["WORK_DIR"] = dir
	w.values["DB_PATH"] = filepath.Join(dir, "inkd.db")
	return nil
}

// ── Step 4: Provider ──────────────────────────────────────────────────────────

func (w *Wizard) stepProvider() error {
	w.header(4, "OPENAI")
	key, err := w.readSecret("API key (Enter to skip)")
	if err != nil {
		return err
	}
	if key == "" {
		w.println("  " + w.c(color.FgHiBlack, "Skipped — set OPENAI_API_KEY in .env later. /api/humanize will fail until then."))
	}
	w.values["OPENAI_API_KEY"] = key

	w.println("")
	def := 1
	for i, m := range knownModels {
		rec := ""
		if m.Recommended {
			rec = "  " + w.c(color.FgYellow, "← recommended")
			def = i + 1
		}
		w.printf("  %d.  %-14s %s%s\n", i+1, m.ID, w.c(color.FgHiBlack, m.Description), rec)
	}
	custom := len(knownModels) + 1
	w.printf("  %d.  Enter custom model name...\n\n", custom)

	sel := w.promptInt(fmt.Sprintf("Select model [%d]", def), 1, custom, def)
	if sel == custom {
		w.values["OPENAI_MODEL"] = w.prompt("Custom model ID", knownModels[def-1].ID)
	} else {
		w.values["OPENAI_MODEL"] = knownModels[sel-1].ID
	}
	w.values["OPENAI_BASE_URL"] = w.prompt("API base URL [https://api.openai.com/v1]", "https://api.openai.com/v1")
	return nil
}

// ── Step 5: PayPal ────────────────────────────────────────────────────────────

func (w *Wizard) stepPayPal() error {
	w.header(5, "PAYPAL  (Enter to skip)")
	id := w.prompt("Client ID (Enter to skip)", "")
	if id == "" {
		w.println("  " + w.c(color.FgHiBlack, "Skipped — purchases stay disabled until PAYPAL_CLIENT_ID is set."))
		return nil
	}
	secret, err := w.readSecret("Client secret")
	if err != nil {
		return err
	}
	mode := strings.ToLower(w.prompt("Mode sandbox/live [sandbox]", "sandbox"))
	if mode != "live" {
		mode = "sandbox"
	}
	w.values["PAYPAL_CLIENT_ID"] = id
	w.values["PAYPAL_CLIENT_SECRET"] = secret
	w.values["PAYPAL_MODE"] = mode
	w.values["PAYPAL_MERCHANT_EMAIL"] = w.prompt("Merchant email (optional)", "")
	w.values["FRONTEND_URL"] = w.prompt("Frontend URL [http://localhost:3000]", "http://localhost:3000")
	return nil
}

// ── Step 6: Telegram ──────────────────────────────────────────────────────────

func (w *Wizard) stepTelegram() error {
	w.header(6, "TELEGRAM  (Enter to skip)")
	w.println("  Create a bot at https://t.me/BotFather, then paste the token.")
	w.println("")
	token := w.prompt("Bot Token (Enter to skip)", "")
	if token == "" {
		w.println("  " + w.c(color.FgHiBlack, "Skipped — set TELEGRAM_TOKEN in .env later."))
		return nil
	}
	w.values["TELEGRAM_TOKEN"] = token
	for {
		chat := w.prompt("Admin chat ID", "")
		if chat == "" {
			return nil
		}
		if _, err := strconv.ParseInt(chat, 10, 64); err != nil {
			w.println("  " + w.c(color.FgRed, "✗") + " Chat ID must be a number.")
			continue
		}
		w.values["TELEGRAM_CHAT_ID"] = chat
		return nil
	}
}

// ── Step 7: Confirm ───────────────────────────────────────────────────────────

func (w *Wizard) stepConfirm() bool {
	w.header(7, "CONFIRM")
	rows := [][2]string{
		{"PORT", w.values["PORT"]},
		{"ADMIN", w.values["ADMIN_USERNAME"]},
		{"WORK DIR", w.values["WORK_DIR"]},
		{"MODEL", w.values["OPENAI_MODEL"]},
		{"OPENAI KEY", mask(w.values["OPENAI_API_KEY"])},
		{"PAYPAL", w.dash(w.values["PAYPAL_MODE"])},
		{"TELEGRAM", mask(w.values["TELEGRAM_TOKEN"])},
		{"CHAT ID", w.dash(w.values["TELEGRAM_CHAT_ID"])},
	}
	for _, r := range rows {
		w.printf("  %-12s %s\n", r[0], w.dash(r[1]))
	}
	w.println("")
	ans := strings.ToUpper(strings.TrimSpace(w.prompt("Save to "+w.envPath+"? [Y/n]", "Y")))
	return ans == "" || ans == "Y" || ans == "YES"
}

func mask(s string) string {
	if len(s) <= 4 {
		return s
	}
	return strings.Repeat("•", 6) + s[len(s)-4:]
}

func (w *Wizard) dash(s string) string {
	if s == "" {
		return w.c(color.FgHiBlack, "—")
	}
	return s
}

// ── Write .env ────────────────────────────────────────────────────────────────

func (w *Wizard) writeEnv() error {
	env := map[string]string{
		"SESSION_EXPIRY_HOURS":      "24",
		"BRUTE_FORCE_MAX_ATTEMPTS":  "5",
		"BRUTE_FORCE_BLOCK_MINUTES": "15",
		"LOW_CREDIT_THRESHOLD":      "500",
		"PROVIDER_TIMEOUT":          "90s",
	}
	for k, v := range w.values {
		if v != "" {
			env[k] = v
		}
	}
	if err := godotenv.Write(env, w.envPath); err != nil {
		return err
	}
	return os.Chmod(w.envPath, 0600)
}

func (w *Wizard) serviceHint() {
	exe, err := os.Executable()
	if err != nil {
		return
	}
	path, _ := platform.InstallServiceFile(platform.ServiceConfig{
		Name:        "inkd",
		Description: "inkd text humanizer",
		ExecPath:    exe,
		WorkDir:     w.values["WORK_DIR"],
	})
	if path != "" {
		w.printf("  To run inkd as a service, install a unit at %s\n", w.c(color.FgCyan, path))
	}
}

// ── Input helpers ─────────────────────────────────────────────────────────────

func (w *Wizard) prompt(label, defaultVal string) string {
	w.printf("  %s: ", label)
	line, _ := w.in.ReadString('\n')
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return defaultVal
	}
	return strings.TrimSpace(line)
}

func (w *Wizard) promptInt(label string, min, max, defaultVal int) int {
	for {
		s := w.prompt(label, strconv.Itoa(defaultVal))
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err == nil && n >= min && n <= max {
			return n
		}
		w.printf("  Enter a number between %d and %d.\n", min, max)
	}
}

func (w *Wizard) readSecret(label string) (string, error) {
	w.printf("  %s: ", label)
	s, err := w.secret()
	w.println("")
	if err != nil {
		return "", fmt.Errorf("read %s: %w", strings.ToLower(strings.TrimSpace(label)), err)
	}
	return strings.TrimSpace(s), nil
}

func (w *Wizard) printf(format string, args ...interface{}) { fmt.Fprintf(w.out, format, args...) }
func (w *Wizard) println(s string)                        { fmt.Fprintln(w.out, s) }

func (w *Wizard) c(attr color.Attribute, text string) string {
	if !w.color {
		return text
	}
	cl := color.New(attr)
	cl.EnableColor()
	return cl.Sprint(text)
}
