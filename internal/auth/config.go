package auth

import (
	"encoding/json"
	"fmt"
	"os"
)

type credentialsFile struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	Source      string `json:"source"`
	AccountType string `json:"account_type"`
}

// LoadCredentials reads ClientLogin credentials from a JSON file.
func LoadCredentials(credentialsPath string) (Credentials, error) {
	b, err := os.ReadFile(credentialsPath)
	if err != nil {
		return Credentials{}, fmt.Errorf("unable to read credentials file: %w", err)
	}

	var f credentialsFile
	if err := json.Unmarshal(b, &f); err != nil {
		return Credentials{}, fmt.Errorf("unable to parse credentials file: %w", err)
	}

	accountType, err := ParseAccountType(f.AccountType)
	if err != nil {
		return Credentials{}, fmt.Errorf("unable to parse credentials file: %w", err)
	}

	return Credentials{
		Username:    f.Username,
		Password:    f.Password,
		Source:      f.Source,
		AccountType: accountType,
	}, nil
}
