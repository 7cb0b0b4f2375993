package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"marketclient/internal/config"
	"marketclient/internal/credstore"
	"marketclient/internal/metrics"
	"marketclient/internal/otp"
	"marketclient/internal/session"
	"marketclient/internal/transport"
	"marketclient/pkg/apierr"
)

func main() {
	cfg := config.LoadConfig()
	logger := setupLogger(cfg.Env)

	store, err := credstore.Open(cfg.StorageConfig, cfg.RedisConfig, "cli")
	if err != nil {
		logger.Error("Failed to open credential store", "error", err)
		os.Exit(1)
	}

	m := metrics.NewMetrics(prometheus.NewRegistry())
	client := transport.NewClient(cfg.APIConfig, cfg.RefreshConfig, store, m, logger)
	mgr := session.New(client, store, m, logger)
	defer mgr.Close()

	ctx := context.Background()
	args := flag.Args()
	cmd := "status"
	if len(args) > 0 {
		cmd = args[0]
	}

	switch cmd {
	case "status":
		mgr.Resume(ctx)
		printStatus(mgr)

	case "register":
		email := requireArg(args, 1, "register <email>")
		if err := mgr.Register(ctx, email); err != nil {
			if errors.Is(err, apierr.ErrAccountExists) {
				fmt.Println("This email already has an account. Try: app login", email)
				os.Exit(1)
			}
			fail(logger, err)
		}
		fmt.Println("Registered. A verification code was sent to", email)
		runChallenge(ctx, mgr, email, true, cfg.OTPConfig, logger)
		printStatus(mgr)

	case "login":
		email := requireArg(args, 1, "login <email>")
		if err := mgr.Login(ctx, email); err != nil {
			if errors.Is(err, apierr.ErrAccountNotFound) {
				fmt.Println("No account for this email. Try: app register", email)
				os.Exit(1)
			}
			fail(logger, err)
		}
		printStatus(mgr)

	case "verify":
		email := requireArg(args, 1, "verify <email>")
		runChallenge(ctx, mgr, email, false, cfg.OTPConfig, logger)
		printStatus(mgr)

	case "logout":
		mgr.Logout(ctx)
		fmt.Println("Logged out.")

	case "addresses":
		mgr.Resume(ctx)
		if !mgr.IsAuthenticated() {
			fmt.Println("Not signed in.")
			os.Exit(1)
		}
		for _, a := range mgr.Addresses() {
			marker := " "
			if sel := mgr.SelectedAddress(); sel != nil && sel.ID == a.ID {
				marker = "*"
			}
			fmt.Printf("%s %-10s %s, %s %s (%s)\n", marker, a.Label, a.Street, a.City, a.Zip, a.Type)
		}

	default:
		fmt.Println("usage: app [status|register <email>|login <email>|verify <email>|addresses|logout]")
		os.Exit(2)
	}
}

// runChallenge drives the OTP controller from stdin: digits fill the buffer
// and the sixth one submits automatically; "r" asks for a resend once the
// countdown allows it.
func runChallenge(ctx context.Context, mgr *session.Manager, email string, isRegistration bool, cfg config.OTPConfig, logger *slog.Logger) {
	ctrl := otp.NewController(mgr, email, isRegistration, otp.Config{
		CountdownFrom: cfg.CountdownFrom,
		TickInterval:  cfg.TickInterval,
	}, logger)
	defer ctrl.Stop()

	scanner := bufio.NewScanner(os.Stdin)
	fmt.Printf("Enter the %d-digit code (or 'r' to resend):\n", otp.CodeLength)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "r" {
			if err := ctrl.Resend(ctx); err != nil {
				if errors.Is(err, apierr.ErrResendUnavailable) {
					fmt.Printf("Resend available in %ds\n", ctrl.Remaining())
				} else {
					fmt.Println("Resend failed:", err)
				}
				continue
			}
			fmt.Println("Code resent.")
			continue
		}

		pos := len(ctrl.Code())
		for _, ch := range line {
			submitted, err := ctrl.EnterDigit(ctx, pos, ch)
			if err != nil {
				fmt.Println("That code was not accepted, try again.")
				pos = 0
				break
			}
			if submitted {
				fmt.Println("Verified.")
				return
			}
			pos++
		}
	}
}

func printStatus(mgr *session.Manager) {
	if !mgr.IsAuthenticated() {
		fmt.Println("Signed out.")
		return
	}
	u := mgr.User()
	fmt.Printf("Signed in as %s (%s)\n", u.Email, u.Role)
	if sel := mgr.SelectedAddress(); sel != nil {
		fmt.Printf("Selected address: %s, %s\n", sel.Street, sel.City)
	}
}

func requireArg(args []string, i int, usage string) string {
	if len(args) <= i {
		fmt.Println("usage: app", usage)
		os.Exit(2)
	}
	return args[i]
}

func fail(logger *slog.Logger, err error) {
	logger.Error("command failed", slog.Any("error", err))
	os.Exit(1)
}

// setupLogger configures the logger based on the environment (production, development, local).
func setupLogger(env string) *slog.Logger {
	var log *slog.Logger
	switch env {
	case "production":
		log = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	case "development", "local":
		log = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	default:
		log = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return log
}
