package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jarcoal/httpmock"
	"github.com/rileyhilliard/proxmon/internal/api"
	"github.com/rileyhilliard/proxmon/internal/tokenstore"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

const testServer = "https://proxmon.test"

// testEnv points the CLI at an empty config dir and a mock server.
type testEnv struct {
	dir string
	mt  *httpmock.MockTransport
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("PROXMON_CONFIG_DIR", dir)
	t.Setenv("PROXMON_SERVER", testServer)

	mt := httpmock.NewMockTransport()
	transport = mt
	t.Cleanup(func() { transport = nil })
	return &testEnv{dir: dir, mt: mt}
}

func (e *testEnv) store() *tokenstore.FileStore {
	return tokenstore.NewFileStore(filepath.Join(e.dir, tokenstore.CredentialsFile), testServer)
}

// login stores a token claiming email and role.
func (e *testEnv) login(t *testing.T, email, role string) string {
	t.Helper()
	tok := testToken(t, email, role)
	require.NoError(t, e.store().Set(tok))
	return tok
}

// me answers GET /me with the given identity.
func (e *testEnv) me(email, role string, superadmin bool) {
	e.mt.RegisterResponder("GET", testServer+api.PathMe,
		httpmock.NewJsonResponderOrPanic(200, api.Me{Email: email, Role: role, IsSuperadmin: superadmin}))
}

func (e *testEnv) calls(method, path string) int {
	return e.mt.GetCallCountInfo()[method+" "+testServer+path]
}

func testToken(t *testing.T, sub, role string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  sub,
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

// runCLI executes rootCmd with args and returns stdout and stderr.
func runCLI(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(rootCmd)
	t.Cleanup(func() { resetFlags(rootCmd) })

	var out, errOut bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetIn(strings.NewReader(stdin))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

// resetFlags puts every flag back to its default so a previous run's
// values do not leak into the next.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}
