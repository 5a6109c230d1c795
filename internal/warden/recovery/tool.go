// Package recovery is the interactive side of the out-of-band credential
// reset tool. It prompts the operator and drives service.RecoveryService.
package recovery

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/aussiebroadwan/warden/internal/warden/domain"
	"github.com/aussiebroadwan/warden/internal/warden/service"
	"golang.org/x/term"
)

// DefaultMaxAttempts bounds how often the operator may retry password entry.
const DefaultMaxAttempts = 3

var (
	ErrCancelled       = errors.New("operation cancelled")
	ErrTooManyAttempts = errors.New("too many invalid password entries")
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// Options selects what the tool does for Username.
type Options struct {
	Username   string
	Create     bool // provision the account instead of resetting it
	UnlockOnly bool // clear the lock and counter, keep the password
	AssumeYes  bool // skip the confirmation prompt
}

// Tool runs one recovery operation against Service, reading answers from In
// and writing progress to Out.
type Tool struct {
	Service *service.RecoveryService
	In      *bufio.Reader
	Out     io.Writer

	// ReadPassword reads a secret without echo. Nil reads the terminal on
	// stdin.
	ReadPassword func() ([]byte, error)

	MaxAttempts int
}

// NewTool returns a Tool wired to the process terminal.
func NewTool(svc *service.RecoveryService) *Tool {
	return &Tool{
		Service: svc,
		In:      bufio.NewReader(os.Stdin),
		Out:     os.Stdout,
	}
}

func (t *Tool) Run(ctx context.Context, opts Options) error {
	if opts.Username == "" {
		return service.ErrInvalidUsername
	}
	if opts.Create && opts.UnlockOnly {
		return errors.New("-create and -unlock-only are mutually exclusive")
	}

	t.printf("warden credential recovery\n")
	t.printf("target user: %s\n\n", opts.Username)

	if opts.Create {
		return t.provision(ctx, opts)
	}

	before, err := t.Service.Lookup(ctx, opts.Username)
	if errors.Is(err, service.ErrUserNotFound) {
		t.printf("user %q not found, rerun with -create to provision it\n", opts.Username)
		return err
	}
	if err != nil {
		return err
	}
	t.describe(before)

	if opts.UnlockOnly {
		if err := t.confirm(opts, fmt.Sprintf("Unlock %q without changing the password?", opts.Username)); err != nil {
			return err
		}
		after, err := t.Service.Unlock(ctx, opts.Username)
		if err != nil {
			return err
		}
		t.printf("\naccount unlocked\n")
		t.summarize(before, after)
		return nil
	}

	if err := t.confirm(opts, fmt.Sprintf("Reset the password for %q?", opts.Username)); err != nil {
		return err
	}

	password, err := t.newPassword()
	if err != nil {
		return err
	}
	after, err := t.Service.ResetCredentials(ctx, opts.Username, password)
	if err != nil {
		return err
	}

	t.printf("\npassword reset for %s (id %s)\n", after.Username, after.ID)
	t.printf("  password changed\n")
	t.summarize(before, after)
	return nil
}

func (t *Tool) provision(ctx context.Context, opts Options) error {
	if err := t.confirm(opts, fmt.Sprintf("Create account %q?", opts.Username)); err != nil {
		return err
	}

	password, err := t.newPassword()
	if err != nil {
		return err
	}
	u, err := t.Service.Provision(ctx, opts.Username, password)
	if errors.Is(err, service.ErrUserExists) {
		t.printf("user %q already exists, rerun without -create to reset it\n", opts.Username)
		return err
	}
	if err != nil {
		return err
	}

	t.printf("\naccount created: %s (id %s)\n", u.Username, u.ID)
	return nil
}

// confirm requires a literal "yes" unless the operator passed -yes.
func (t *Tool) confirm(opts Options, question string) error {
	if opts.AssumeYes {
		return nil
	}

	t.printf("%s (yes/no): ", question)
	line, err := t.In.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	if !strings.EqualFold(strings.TrimSpace(line), "yes") {
		t.printf("cancelled\n")
		return ErrCancelled
	}
	return nil
}

// newPassword asks for the password twice and retries on mismatch or when
// it is too short.
func (t *Tool) newPassword() (string, error) {
	attempts := t.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}

	for range attempts {
		first, err := t.secret("New password: ")
		if err != nil {
			return "", err
		}
		second, err := t.secret("Confirm password: ")
		if err != nil {
			return "", err
		}

		switch {
		case first != second:
			t.printf("passwords do not match, try again\n")
		case len(first) < service.MinPasswordLength:
			t.printf("password must be at least %d characters, try again\n", service.MinPasswordLength)
		default:
			return first, nil
		}
	}
	return "", ErrTooManyAttempts
}

func (t *Tool) secret(prompt string) (string, error) {
	t.printf("%s", prompt)

	var (
		b   []byte
		err error
	)
	if t.ReadPassword != nil {
		b, err = t.ReadPassword()
	} else {
		b, err = readPassword(int(os.Stdin.Fd()))
	}
	t.printf("\n")
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}

	s := string(b)
	clear(b)
	return s, nil
}

func (t *Tool) describe(u domain.User) {
	t.printf("found user %s (id %s)\n", u.Username, u.ID)
	t.printf("  failed attempts: %d\n", u.FailedAttempts)
	if u.LockedAt(time.Now()) {
		t.printf("  locked until:    %s\n", u.LockedUntil.Local().Format(time.RFC3339))
	} else if u.LockedUntil != nil {
		t.printf("  lock expired:    %s\n", u.LockedUntil.Local().Format(time.RFC3339))
	} else {
		t.printf("  not locked\n")
	}
	t.printf("\n")
}

func (t *Tool) summarize(before, after domain.User) {
	t.printf("  failed attempts cleared: %d -> %d\n", before.FailedAttempts, after.FailedAttempts)
	if before.LockedUntil != nil {
		t.printf("  lock removed\n")
	}
}

func (t *Tool) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(t.Out, format, args...)
}
