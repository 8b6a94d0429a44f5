package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quayside-labs/quayscrape/internal/scrape"
)

func TestResolveCredentialsFromEnv(t *testing.T) {
	t.Setenv("QUAYSCRAPE_USERNAME", "operator")
	t.Setenv("QUAYSCRAPE_PASSWORD", "hunter2")

	creds, err := resolveCredentials("", strings.NewReader(""), &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, "operator", creds.Username)
	assert.Equal(t, "hunter2", creds.Password)
}

func TestResolveCredentialsFlagOverridesEnv(t *testing.T) {
	t.Setenv("QUAYSCRAPE_USERNAME", "ignored")
	t.Setenv("QUAYSCRAPE_PASSWORD", "hunter2")

	creds, err := resolveCredentials("flag-user", strings.NewReader(""), &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, "flag-user", creds.Username)
}

func TestResolveCredentialsPrompts(t *testing.T) {
	t.Setenv("QUAYSCRAPE_USERNAME", "")
	t.Setenv("QUAYSCRAPE_PASSWORD", "")

	var out bytes.Buffer
	creds, err := resolveCredentials("", strings.NewReader("operator\nhunter2\n"), &out)
	require.NoError(t, err)
	assert.Equal(t, "operator", creds.Username)
	assert.Equal(t, "hunter2", creds.Password)
	assert.Contains(t, out.String(), "Username: ")
	assert.Contains(t, out.String(), "Password: ")
}

func TestResolveCredentialsRejectsEmpty(t *testing.T) {
	t.Setenv("QUAYSCRAPE_USERNAME", "")
	t.Setenv("QUAYSCRAPE_PASSWORD", "")

	_, err := resolveCredentials("", strings.NewReader("\n\n"), &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required")
}

func TestPrintRunLog(t *testing.T) {
	var log scrape.RunLog
	var out bytes.Buffer

	log = append(log, scrape.Entry{Severity: scrape.SeverityInfo, Message: "Connecting..."})
	log = append(log, scrape.Entry{Severity: scrape.SeveritySuccess, Message: "Login successful!"})
	printRunLog(&out, log)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "[info] Connecting...", lines[0])
	assert.Equal(t, "[success] Login successful!", lines[1])
}
