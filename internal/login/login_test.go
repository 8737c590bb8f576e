package login

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBrowser struct {
	navigated []string
	runs      [][]chromedp.Action
	source    string
	runErr    error
}

func (f *fakeBrowser) Navigate(_ context.Context, url string) error {
	f.navigated = append(f.navigated, url)
	return nil
}

func (f *fakeBrowser) Run(_ context.Context, actions ...chromedp.Action) error {
	f.runs = append(f.runs, actions)
	return f.runErr
}

func (f *fakeBrowser) Source(context.Context) (string, error) {
	return f.source, nil
}

func testForm() Form {
	return Form{
		URL:              "https://wiki.example/login",
		Username:         "alice",
		Password:         "secret",
		UsernameSelector: "#username",
		PasswordSelector: "#password",
		SubmitSelector:   "#kc-login",
		OTPSelector:      "#otp",
		OTPMarker:        "otp",
	}
}

func quietLogger() *log.Logger {
	return log.New(&bytes.Buffer{})
}

func TestLoginWithoutOTP(t *testing.T) {
	b := &fakeBrowser{source: "<html><body>Welcome</body></html>"}
	prompted := false
	prompt := func(context.Context) (string, error) {
		prompted = true
		return "", nil
	}

	require.NoError(t, Login(context.Background(), b, testForm(), prompt, quietLogger()))
	assert.Equal(t, []string{"https://wiki.example/login"}, b.navigated)
	assert.Len(t, b.runs, 1)
	assert.Len(t, b.runs[0], 5)
	assert.False(t, prompted)
}

func TestLoginWithOTP(t *testing.T) {
	b := &fakeBrowser{source: `<input id="OTP" name="otp">`}
	prompt := func(context.Context) (string, error) { return " 123456\n", nil }

	require.NoError(t, Login(context.Background(), b, testForm(), prompt, quietLogger()))
	assert.Len(t, b.runs, 2)
}

func TestLoginEmptyOTP(t *testing.T) {
	b := &fakeBrowser{source: "enter otp"}
	prompt := func(context.Context) (string, error) { return "\n", nil }

	err := Login(context.Background(), b, testForm(), prompt, quietLogger())
	assert.ErrorIs(t, err, ErrNoOTP)
	assert.Len(t, b.runs, 1)
}

func TestLoginSubmitFailure(t *testing.T) {
	b := &fakeBrowser{runErr: errors.New("no such element")}

	err := Login(context.Background(), b, testForm(), nil, quietLogger())
	assert.ErrorContains(t, err, "submitting credentials")
	assert.ErrorContains(t, err, "no such element")
}

func TestLinePrompter(t *testing.T) {
	var out bytes.Buffer
	prompt := LinePrompter(strings.NewReader("424242\n"), &out)

	otp, err := prompt(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "424242\n", otp)
	assert.Contains(t, out.String(), "OTP")

	eof := LinePrompter(strings.NewReader("99"), &out)
	otp, err = eof(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "99", otp)
}

func TestLinePrompterCancelled(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	prompt := LinePrompter(r, &bytes.Buffer{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := prompt(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
