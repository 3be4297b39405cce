package gateway

import (
	"encoding/json"
	"strings"

	"paybridge/internal/models"
)

// AccountContext is a read-only view of a merchant's gateway account:
// which gateway, which environment, and the credentials to use. The core
// never mutates it.
type AccountContext struct {
	GatewayName    string
	AccountType    string // test or live
	Credentials    map[string]string
	Requires3DS    bool
	AllowMoto      bool
	WebhookSecrets []string // newest first, older entries kept valid during rotation
}

// Credential returns a named credential or empty string when absent.
func (a AccountContext) Credential(key string) string {
	return a.Credentials[key]
}

// IsLive reports whether the account points at the live gateway environment.
func (a AccountContext) IsLive() bool {
	return a.AccountType == "live"
}

// AccountContextFrom builds the read-only view from a stored gateway account.
func AccountContextFrom(acct *models.GatewayAccount) (AccountContext, error) {
	creds := map[string]string{}
	if acct.CredentialsJSON != "" {
		if err := json.Unmarshal([]byte(acct.CredentialsJSON), &creds); err != nil {
			return AccountContext{}, err
		}
	}

	var secrets []string
	for _, s := range strings.Split(acct.WebhookSecrets, ",") {
		if s = strings.TrimSpace(s); s != "" {
			secrets = append(secrets, s)
		}
	}

	return AccountContext{
		GatewayName:    acct.GatewayName,
		AccountType:    acct.AccountType,
		Credentials:    creds,
		Requires3DS:    acct.Requires3DS,
		AllowMoto:      acct.AllowMoto,
		WebhookSecrets: secrets,
	}, nil
}
