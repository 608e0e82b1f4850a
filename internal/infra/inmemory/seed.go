package inmemory

import (
	"fmt"
	"io"

	"github.com/dvloznov/bank-sync/internal/domain"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Seed is the YAML fixture format for a dry-run store.
//
//	connections:
//	  - id: conn-1
//	    team_id: team-1
//	    provider: gocardless
//	    access_token: secret
//	    accounts:
//	      - id: acc-1
//	        provider_id: p-acc-1
//	        type: depository
//	        enabled: true
type Seed struct {
	Connections []SeedConnection `yaml:"connections"`
}

// SeedConnection is one connection with its accounts.
type SeedConnection struct {
	ID          string        `yaml:"id"`
	TeamID      string        `yaml:"team_id"`
	Provider    string        `yaml:"provider"`
	AccessToken string        `yaml:"access_token"`
	Status      string        `yaml:"status"`
	Cursor      string        `yaml:"cursor"`
	Accounts    []SeedAccount `yaml:"accounts"`
}

// SeedAccount is one account of a seeded connection.
type SeedAccount struct {
	ID         string `yaml:"id"`
	ProviderID string `yaml:"provider_id"`
	Type       string `yaml:"type"`
	Balance    string `yaml:"balance"`
	Enabled    bool   `yaml:"enabled"`
	Cursor     string `yaml:"cursor"`
}

// LoadSeed adds the connections and accounts in r to the store.
func (s *Store) LoadSeed(r io.Reader) error {
	var seed Seed
	if err := yaml.NewDecoder(r).Decode(&seed); err != nil {
		return fmt.Errorf("LoadSeed: parsing seed: %w", err)
	}

	for _, c := range seed.Connections {
		if c.ID == "" || c.TeamID == "" {
			return fmt.Errorf("LoadSeed: connection needs id and team_id")
		}
		status := domain.ConnectionUnknown
		if c.Status != "" {
			parsed, err := domain.ParseConnectionStatus(c.Status)
			if err != nil {
				return fmt.Errorf("LoadSeed: connection %s: %w", c.ID, err)
			}
			status = parsed
		}
		s.PutConnection(domain.BankConnection{
			ID:             c.ID,
			TeamID:         c.TeamID,
			Provider:       c.Provider,
			AccessToken:    c.AccessToken,
			Status:         status,
			LastCursorSync: c.Cursor,
		})

		for _, a := range c.Accounts {
			balance := decimal.Zero
			if a.Balance != "" {
				b, err := decimal.NewFromString(a.Balance)
				if err != nil {
					return fmt.Errorf("LoadSeed: account %s balance: %w", a.ID, err)
				}
				balance = b
			}
			s.PutAccount(domain.BankAccount{
				ID:               a.ID,
				TeamID:           c.TeamID,
				ProviderID:       a.ProviderID,
				Type:             a.Type,
				Balance:          balance,
				Enabled:          a.Enabled,
				BankConnectionID: c.ID,
				LastCursorSync:   a.Cursor,
			})
		}
	}
	return nil
}
