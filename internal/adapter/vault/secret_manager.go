package vault

import (
	"fmt"

	"github.com/hashicorp/vault/api"
)

// SecretManager reads service credentials from HashiCorp Vault. Deployments
// without Vault fall back to environment variables in main.
type SecretManager struct {
	client *api.Client
}

func NewSecretManager(address, token string) (*SecretManager, error) {
	config := api.DefaultConfig()
	config.Address = address

	client, err := api.NewClient(config)
	if err != nil {
		return nil, err
	}

	client.SetToken(token)

	return &SecretManager{client: client}, nil
}

func (sm *SecretManager) read(path, field string) (string, error) {
	secret, err := sm.client.Logical().Read(path)
	if err != nil {
		return "", err
	}
	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("vault: no secret at %s", path)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("vault: unexpected secret format at %s", path)
	}
	value, ok := data[field].(string)
	if !ok {
		return "", fmt.Errorf("vault: field %q missing at %s", field, path)
	}
	return value, nil
}

func (sm *SecretManager) GetDatabaseURL() (string, error) {
	return sm.read("secret/data/database", "connection_string")
}

func (sm *SecretManager) GetOdooAPISecret() (string, error) {
	return sm.read("secret/data/odoo", "api_secret")
}

func (sm *SecretManager) GetOdooAdminAPIKey() (string, error) {
	return sm.read("secret/data/odoo", "admin_api_key")
}

func (sm *SecretManager) GetStevePassword() (string, error) {
	return sm.read("secret/data/steve", "api_password")
}
