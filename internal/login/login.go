// Package login signs the browser session into the wiki, asking for a
// one-time password when the identity provider wants one.
package login

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/chromedp/chromedp"
)

// ErrNoOTP is returned when the prompt yields an empty one-time password.
var ErrNoOTP = errors.New("no one-time password entered")

// Browser is the part of a browser session the login needs.
type Browser interface {
	Navigate(ctx context.Context, url string) error
	Run(ctx context.Context, actions ...chromedp.Action) error
	Source(ctx context.Context) (string, error)
}

// Prompter asks the user for a one-time password.
type Prompter func(ctx context.Context) (string, error)

// Form describes the login page.
type Form struct {
	URL              string
	Username         string
	Password         string
	UsernameSelector string
	PasswordSelector string
	SubmitSelector   string
	OTPSelector      string
	// OTPMarker is looked for, ignoring case, in the page source after the
	// first submit.
	OTPMarker string
	Timeout   time.Duration
}

// Login fills and submits form. When the resulting page mentions the OTP
// marker, prompt is asked for the code, which is submitted the same way.
func Login(ctx context.Context, b Browser, form Form, prompt Prompter, logger *log.Logger) error {
	if logger == nil {
		logger = log.Default()
	}
	if form.Timeout <= 0 {
		form.Timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, form.Timeout)
	defer cancel()

	logger.Info("Logging in", "url", form.URL, "user", form.Username)
	if err := b.Navigate(ctx, form.URL); err != nil {
		return fmt.Errorf("opening login page: %w", err)
	}

	err := b.Run(ctx,
		chromedp.WaitVisible(form.UsernameSelector, chromedp.ByQuery),
		chromedp.SendKeys(form.UsernameSelector, form.Username, chromedp.ByQuery),
		chromedp.SendKeys(form.PasswordSelector, form.Password, chromedp.ByQuery),
		chromedp.Click(form.SubmitSelector, chromedp.ByQuery),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("submitting credentials: %w", err)
	}

	src, err := b.Source(ctx)
	if err != nil {
		return err
	}
	if form.OTPMarker == "" || !strings.Contains(strings.ToLower(src), strings.ToLower(form.OTPMarker)) {
		logger.Info("Logged in")
		return nil
	}

	logger.Info("OTP required")
	otp, err := prompt(ctx)
	if err != nil {
		return fmt.Errorf("reading one-time password: %w", err)
	}
	otp = strings.TrimSpace(otp)
	if otp == "" {
		return ErrNoOTP
	}

	err = b.Run(ctx,
		chromedp.WaitVisible(form.OTPSelector, chromedp.ByQuery),
		chromedp.SendKeys(form.OTPSelector, otp, chromedp.ByQuery),
		chromedp.Click(form.SubmitSelector, chromedp.ByQuery),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("submitting one-time password: %w", err)
	}
	logger.Info("Logged in")
	return nil
}

// LinePrompter asks on out and reads one line from in.
func LinePrompter(in io.Reader, out io.Writer) Prompter {
	reader := bufio.NewReader(in)
	return func(ctx context.Context) (string, error) {
		fmt.Fprint(out, "Enter the OTP sent to your device: ")

		type result struct {
			line string
			err  error
		}
		done := make(chan result, 1)
		go func() {
			line, err := reader.ReadString('\n')
			if errors.Is(err, io.EOF) && line != "" {
				err = nil
			}
			done <- result{line, err}
		}()

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case r := <-done:
			return r.line, r.err
		}
	}
}
