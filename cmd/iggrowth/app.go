package main

import (
	"errors"
	"fmt"
	"strings"
	"syscall"

	"golang.org/x/term"

	"iggrowth/pkg/bandit"
	"iggrowth/pkg/config"
	"iggrowth/pkg/engine"
	"iggrowth/pkg/instagram"
	"iggrowth/pkg/ledger"
	"iggrowth/pkg/logger"
	"iggrowth/pkg/relay"
	"iggrowth/pkg/retry"
	"iggrowth/pkg/session"
)

// app wires one authenticated session: config, ledger, client, engine. The
// session is exported back to the stores only on clean shutdown via Close; a
// crash just forces a re-login next run.
type app struct {
	cfg      *config.Config
	log      logger.Logger
	ledger   *ledger.Ledger
	sessions *session.Manager
	client   *instagram.Client
	engine   *engine.Engine
}

// newApp opens the ledger, restores or establishes the session, and builds
// the engine
func newApp() (*app, error) {
	cfg := loadedConfig
	log := logger.GetLogger()

	username := cfg.Account.Username
	if username == "" {
		return nil, errors.New("no account username configured (set IGGROWTH_USERNAME or account.username)")
	}

	lg, err := ledger.Open(cfg.Database.Path, log)
	if err != nil {
		return nil, err
	}

	sessions := newSessionManager(log)

	policy := retry.Policy{
		RateLimitCooldown:   cfg.Retry.RateLimitCooldown,
		NetworkCooldown:     cfg.Retry.NetworkCooldown,
		MaxRateLimitRetries: cfg.Retry.MaxRateLimitRetries,
		JitterBase:          cfg.Retry.JitterBase,
		JitterSpread:        cfg.Retry.JitterSpread,
	}
	client := instagram.NewClient(cfg.Retry.RequestTimeout, retry.NewExecutor(policy, log), log)

	if err := establishSession(client, sessions, lg, cfg, log); err != nil {
		return nil, err
	}

	selector := bandit.NewSelector(bandit.Prior{
		Alpha: cfg.Bandit.PriorAlpha,
		Beta:  cfg.Bandit.PriorBeta,
	})

	var opts []engine.Option
	if cfg.Relay.Enabled {
		opts = append(opts, engine.WithRelay(relay.New(cfg.Relay.BaseURL, log)))
	}

	return &app{
		cfg:      cfg,
		log:      log,
		ledger:   lg,
		sessions: sessions,
		client:   client,
		engine:   engine.New(client, lg, selector, cfg.Filter, log, opts...),
	}, nil
}

// newSessionManager builds the store chain: keychain when available, the
// encrypted file otherwise
func newSessionManager(log logger.Logger) *session.Manager {
	var stores []session.Store

	if keyringStore, err := session.NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	} else {
		log.DebugWithFields("keyring unavailable, using file store only", map[string]interface{}{
			"error": err.Error(),
		})
	}

	if path, err := session.DefaultPath(); err == nil {
		if fileStore, err := session.NewFileStore(path); err == nil {
			stores = append(stores, fileStore)
		}
	}

	return session.NewManager(stores...)
}

// establishSession restores a stored session when one exists, otherwise
// performs a fresh credential login
func establishSession(client *instagram.Client, sessions *session.Manager, lg *ledger.Ledger, cfg *config.Config, log logger.Logger) error {
	username := cfg.Account.Username

	if cred, err := sessions.Load(username); err == nil {
		log.InfoWithFields("restoring stored session", map[string]interface{}{"username": username})
		if err := client.RestoreSession(cred.CookieBlob, cred.DeviceID, username); err == nil {
			return nil
		}
		log.Warn("stored session restore failed, falling back to login")
	}

	password := cfg.Account.Password
	if password == "" {
		var err error
		password, err = promptPassword(username)
		if err != nil {
			return err
		}
	}
	if password == "" {
		return errors.New("no password available for login (set IGGROWTH_PASSWORD)")
	}

	return client.Login(username, password)
}

// promptPassword reads the password from the terminal without echo
func promptPassword(username string) (string, error) {
	if !term.IsTerminal(int(syscall.Stdin)) {
		return "", nil
	}
	fmt.Printf("Password for %s: ", username)
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}

// Close persists the session on clean shutdown
func (a *app) Close() {
	account := a.client.Account()
	if account == nil {
		return
	}

	blob, err := a.client.ExportSession()
	if err != nil {
		a.log.WarnWithFields("failed to export session", map[string]interface{}{"error": err.Error()})
		return
	}

	cred := &session.Credential{
		Username:   account.Username,
		UserPK:     account.PK,
		DeviceID:   a.client.DeviceID(),
		CookieBlob: blob,
	}
	if err := a.sessions.Save(cred); err != nil {
		a.log.WarnWithFields("failed to save session", map[string]interface{}{"error": err.Error()})
	}
	if err := a.ledger.UpsertSessionCredential(account.Username, account.PK, a.client.DeviceID(), blob); err != nil {
		a.log.WarnWithFields("failed to mirror session to ledger", map[string]interface{}{"error": err.Error()})
	}
}
