package commands

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/blikh/co2-dashboard/internal/backend"
	"github.com/blikh/co2-dashboard/internal/config"
	"github.com/blikh/co2-dashboard/internal/session"
	"github.com/blikh/co2-dashboard/internal/store"
)

// local is the command-line side of a session: the token lives in the
// cookie jar of the dashboard database.
type local struct {
	cfg    *config.Config
	db     *store.Store
	client *backend.Client
	sess   *session.Store
}

func openLocal(ctx context.Context, configPath string, logger *slog.Logger) (*local, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	db, err := store.Open(cfg.DBPath, logger)
	if err != nil {
		return nil, err
	}
	client := backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.TimeoutDuration(), logger)
	sess := session.New(ctx, session.Options{
		Storage:  db.TokenStorage(cfg.Session.CookieName, cfg.Session.JarKey),
		Verifier: client,
		Timeout:  cfg.Session.VerifyTimeoutDuration(),
		Logger:   logger,
	})
	if err := sess.Wait(ctx); err != nil {
		sess.Close()
		db.Close()
		return nil, err
	}
	return &local{cfg: cfg, db: db, client: client, sess: sess}, nil
}

func (l *local) Close() {
	l.sess.Close()
	l.db.Close()
}

func sessionFlags(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	configPath := fs.String("config", "configs/dashboard.yaml", "path to config file")
	return fs, configPath
}

func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func Login(args []string, logger *slog.Logger) {
	fs, configPath := sessionFlags("login")
	token := fs.String("token", "", "access token issued by the bot (required)")
	fs.Parse(args)

	if strings.TrimSpace(*token) == "" {
		fmt.Fprintln(os.Stderr, "error: -token is required")
		fs.Usage()
		os.Exit(1)
	}

	ctx, cancel := commandContext()
	defer cancel()

	l, err := openLocal(ctx, *configPath, logger)
	if err != nil {
		logger.Error("failed to open session", "err", err)
		os.Exit(1)
	}
	defer l.Close()

	l.sess.Dispatch(session.SetUser{JWT: strings.TrimSpace(*token)})
	if err := l.sess.Wait(ctx); err != nil {
		logger.Error("login interrupted", "err", err)
		os.Exit(1)
	}

	st := l.sess.State()
	if st.Status != session.Authenticated {
		fmt.Fprintln(os.Stderr, "error: token was rejected by the backend")
		os.Exit(1)
	}
	printIdentity(st)
}

func WhoAmI(args []string, logger *slog.Logger) {
	fs, configPath := sessionFlags("whoami")
	fs.Parse(args)

	ctx, cancel := commandContext()
	defer cancel()

	l, err := openLocal(ctx, *configPath, logger)
	if err != nil {
		logger.Error("failed to open session", "err", err)
		os.Exit(1)
	}
	defer l.Close()

	st := l.sess.State()
	if st.Status != session.Authenticated {
		fmt.Println("Not logged in.")
		os.Exit(1)
	}
	printIdentity(st)
}

func Logout(args []string, logger *slog.Logger) {
	fs, configPath := sessionFlags("logout")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	db, err := store.Open(cfg.DBPath, logger)
	if err != nil {
		logger.Error("failed to open database", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	sess := session.New(context.Background(), session.Options{
		Storage:  db.TokenStorage(cfg.Session.CookieName, cfg.Session.JarKey),
		Verifier: backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.TimeoutDuration(), logger),
		Logger:   logger,
	})
	defer sess.Close()
	// Logout supersedes the verification of the stored token.
	sess.Dispatch(session.Logout{})
	fmt.Println("Logged out.")
}

func printIdentity(st session.State) {
	fmt.Println("=== Session ===")
	fmt.Printf("User:        %s\n", st.UserName)
	if st.UserNick != "" {
		fmt.Printf("Nick:        %s\n", st.UserNick)
	}
	fmt.Printf("User ID:     %s\n", st.UserID)
	fmt.Printf("Telegram ID: %s\n", st.TelegramID)
	fmt.Printf("Token:       %s\n", session.Fingerprint(st.Token))
}
