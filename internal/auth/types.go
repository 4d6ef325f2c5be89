package auth

import (
	"fmt"
	"strings"
)

// AccountType selects which account namespace ClientLogin authenticates against.
type AccountType string

const (
	AccountTypeHostedOrGoogle AccountType = "HOSTED_OR_GOOGLE"
	AccountTypeGoogle         AccountType = "GOOGLE"
	AccountTypeHosted         AccountType = "HOSTED"
)

// ParseAccountType validates s, defaulting to HOSTED_OR_GOOGLE when empty.
func ParseAccountType(s string) (AccountType, error) {
	switch t := AccountType(strings.ToUpper(strings.TrimSpace(s))); t {
	case "":
		return AccountTypeHostedOrGoogle, nil
	case AccountTypeHostedOrGoogle, AccountTypeGoogle, AccountTypeHosted:
		return t, nil
	default:
		return "", fmt.Errorf("unknown account type %q", s)
	}
}

func (t AccountType) String() string {
	if t == "" {
		return string(AccountTypeHostedOrGoogle)
	}
	return string(t)
}

// Credentials identify the calendar owner. Source names the client
// application in the form companyName-applicationName-versionID.
type Credentials struct {
	Username    string
	Password    string
	Source      string
	AccountType AccountType
}

// DefaultSource derives a client source identifier from an application name.
func DefaultSource(appName string) string {
	return strings.ReplaceAll(appName, " ", "_")
}
