package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testLinkID = "6f1c7c1e-8a4b-4b7e-9a57-2f3d4c5b6a79"

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())

	root, a := newRootCommand()
	defer a.close()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestShareCodeRoundTrip(t *testing.T) {
	out, err := run(t, "share-code", testLinkID)
	require.NoError(t, err)

	var code string
	for _, line := range strings.Split(out, "\n") {
		if v, ok := strings.CutPrefix(line, "code: "); ok {
			code = v
		}
	}
	require.NotEmpty(t, code)
	assert.Contains(t, out, "/l/"+code)

	out, err = run(t, "share-code", "--decode", code)
	require.NoError(t, err)
	assert.Equal(t, testLinkID, strings.TrimSpace(out))
}

func TestSubaccount(t *testing.T) {
	out, err := run(t, "subaccount", testLinkID)
	require.NoError(t, err)
	assert.Contains(t, out, "subaccount: 6f1c7c1e8a4b4b7e9a572f3d4c5b6a79"+strings.Repeat("0", 32))
}

func TestValidateTotal(t *testing.T) {
	out, err := run(t, "validate-total", "--per-use", "10", "--max-use", "5", "--max-total", "100")
	require.NoError(t, err)
	assert.Contains(t, out, "total:       50")

	_, err = run(t, "validate-total", "--per-use", "25", "--max-use", "5", "--max-total", "100")
	assert.Error(t, err)
}

func TestKeystoreRequiresPassword(t *testing.T) {
	t.Setenv("LINK_KEYSTORE_PASSWORD", "")
	_, err := run(t, "keystore", "new")
	assert.ErrorContains(t, err, "LINK_KEYSTORE_PASSWORD")
}
