package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Credentials holds the secret Zulip identity material for one or two
// credential bundles (a human user identity and, optionally, a bot
// identity). These never live in the non-secret server config file.
type Credentials struct {
	Site string // e.g. https://example.zulipchat.com

	UserEmail  string
	UserAPIKey string

	BotEmail  string
	BotAPIKey string
	BotName   string
}

// CredentialSource names the places a credential field can come from,
// for diagnostics.
type CredentialSource int

const (
	SourceUnset CredentialSource = iota
	SourceFlag
	SourceEnv
	SourceFile
)

func (s CredentialSource) String() string {
	switch s {
	case SourceFlag:
		return "flag"
	case SourceEnv:
		return "env"
	case SourceFile:
		return "zuliprc"
	default:
		return "unset"
	}
}

// FlagOverrides carries CLI-flag-sourced credential values, the
// highest-priority source. Zero values mean "not set on the command line".
type FlagOverrides struct {
	Site       string
	UserEmail  string
	UserAPIKey string
	BotEmail   string
	BotAPIKey  string
	BotName    string
}

// LoadCredentials resolves Zulip credentials in priority order: CLI
// flags, then environment variables, then a .zuliprc file. A field
// left unset by every source stays empty; callers validate which
// fields are required for the identities they actually need.
func LoadCredentials(flags FlagOverrides, zuliprcPath string) (*Credentials, error) {
	creds := &Credentials{}

	if zuliprcPath != "" {
		fileCreds, err := parseZuliprc(zuliprcPath)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read zuliprc: %w", err)
			}
		} else {
			*creds = *fileCreds
		}
	}

	applyEnv := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	applyEnv("ZULIP_SITE", &creds.Site)
	applyEnv("ZULIP_EMAIL", &creds.UserEmail)
	applyEnv("ZULIP_API_KEY", &creds.UserAPIKey)
	applyEnv("ZULIP_BOT_EMAIL", &creds.BotEmail)
	applyEnv("ZULIP_BOT_API_KEY", &creds.BotAPIKey)
	applyEnv("ZULIP_BOT_NAME", &creds.BotName)

	applyFlag := func(v string, dst *string) {
		if v != "" {
			*dst = v
		}
	}
	applyFlag(flags.Site, &creds.Site)
	applyFlag(flags.UserEmail, &creds.UserEmail)
	applyFlag(flags.UserAPIKey, &creds.UserAPIKey)
	applyFlag(flags.BotEmail, &creds.BotEmail)
	applyFlag(flags.BotAPIKey, &creds.BotAPIKey)
	applyFlag(flags.BotName, &creds.BotName)

	return creds, nil
}

// parseZuliprc reads the small INI-style format Zulip's own tooling
// uses for stored credentials:
//
//	[api]
//	email=user@example.com
//	key=abcdef0123456789
//	site=https://example.zulipchat.com
//
// The [api] section fills the user fields. A [bot] section (non-standard,
// used here to co-locate a bot identity alongside the user one) is also
// read, into the Bot* fields.
func parseZuliprc(path string) (*Credentials, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	creds := &Credentials{}
	section := ""

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.ToLower(strings.TrimSpace(line[1 : len(line)-1]))
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch section {
		case "api":
			switch key {
			case "email":
				creds.UserEmail = value
			case "key":
				creds.UserAPIKey = value
			case "site":
				creds.Site = value
			}
		case "bot":
			switch key {
			case "email":
				creds.BotEmail = value
			case "key":
				creds.BotAPIKey = value
			case "name":
				creds.BotName = value
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan zuliprc: %w", err)
	}
	return creds, nil
}

// HasUser reports whether a complete user identity is available.
func (c *Credentials) HasUser() bool {
	return c.Site != "" && c.UserEmail != "" && c.UserAPIKey != ""
}

// HasBot reports whether a complete bot identity is available.
func (c *Credentials) HasBot() bool {
	return c.Site != "" && c.BotEmail != "" && c.BotAPIKey != ""
}
