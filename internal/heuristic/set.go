package heuristic

import "fmt"

// Config enables analyzers individually.
type Config struct {
	Downgrade          bool `yaml:"downgrade" json:"downgrade"`
	NullCipher         bool `yaml:"null_cipher" json:"null_cipher"`
	PlaintextIdentity  bool `yaml:"plaintext_identity" json:"plaintext_identity"`
	CellAnomaly        bool `yaml:"cell_anomaly" json:"cell_anomaly"`
	ConnectionRedirect bool `yaml:"connection_redirect" json:"connection_redirect"`
}

// DefaultConfig enables every analyzer.
func DefaultConfig() Config {
	return Config{
		Downgrade:          true,
		NullCipher:         true,
		PlaintextIdentity:  true,
		CellAnomaly:        true,
		ConnectionRedirect: true,
	}
}

// New builds the enabled analyzers in their fixed evaluation order. Each
// session gets its own list.
func New(cfg Config) []Analyzer {
	var list []Analyzer
	if cfg.Downgrade {
		list = append(list, Downgrade{})
	}
	if cfg.NullCipher {
		list = append(list, NullCipher{})
	}
	if cfg.PlaintextIdentity {
		list = append(list, PlaintextIdentity{})
	}
	if cfg.CellAnomaly {
		list = append(list, CellAnomaly{})
	}
	if cfg.ConnectionRedirect {
		list = append(list, ConnectionRedirect{})
	}
	return list
}

// Only returns a Config enabling exactly the analyzers with the given ids.
func Only(ids ...string) (Config, error) {
	var cfg Config
	for _, id := range ids {
		switch id {
		case Downgrade{}.ID():
			cfg.Downgrade = true
		case NullCipher{}.ID():
			cfg.NullCipher = true
		case PlaintextIdentity{}.ID():
			cfg.PlaintextIdentity = true
		case CellAnomaly{}.ID():
			cfg.CellAnomaly = true
		case ConnectionRedirect{}.ID():
			cfg.ConnectionRedirect = true
		default:
			return Config{}, fmt.Errorf("unknown analyzer %q", id)
		}
	}
	return cfg, nil
}
